package poller

import "context"

// SnapshotClient is the camera operation the poller depends on
type SnapshotClient interface {
	FetchSnapshot(ctx context.Context) ([]byte, error)
}
