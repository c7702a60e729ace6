package uvc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appleguru/UniFi-Timelapse/pkg/errors"
	"github.com/appleguru/UniFi-Timelapse/pkg/logger"
)

// snapshotPayload is a minimal JPEG-looking byte sequence. The client must
// hand it through byte-for-byte.
var snapshotPayload = []byte{0xFF, 0xD8, 0xFF, 0xD9, 0x00}

// newTestClient builds a client pointed at a TLS test server
func newTestClient(server *httptest.Server, protocol Protocol) *Client {
	return NewClient(Options{
		Address:       server.URL,
		Username:      "ubnt",
		Password:      "pass1234",
		Protocol:      protocol,
		Timeout:       5 * time.Second,
		TLSSkipVerify: true,
		Logger:        logger.NewTestLogger(),
	})
}

// checkCredentials decodes and verifies the credential body of a login or
// direct snapshot request. Handlers run off the test goroutine, so this
// only uses assert.
func checkCredentials(t *testing.T, r *http.Request) bool {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		t.Errorf("failed to decode credentials: %v", err)
		return false
	}
	ok := assert.Equal(t, "ubnt", creds.Username)
	return assert.Equal(t, "pass1234", creds.Password) && ok
}

// issueSession answers a login request with an authId cookie
func issueSession(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{Name: "authId", Value: token})
	w.WriteHeader(http.StatusOK)
}

func TestParseProtocol(t *testing.T) {
	tests := []struct {
		input   string
		want    Protocol
		wantErr bool
	}{
		{"auto", ProtocolAuto, false},
		{"session", ProtocolSession, false},
		{"direct", ProtocolDirect, false},
		{"SESSION", ProtocolSession, false},
		{"", ProtocolAuto, false},
		{"telnet", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseProtocol(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("establishes session", func(t *testing.T) {
		logins := 0
		server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logins++
			assert.Equal(t, LoginEndpoint, r.URL.Path)
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			if !checkCredentials(t, r) {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			issueSession(w, "abc123")
		}))
		defer server.Close()

		client := newTestClient(server, ProtocolSession)

		err := client.Login(ctx)
		require.NoError(t, err)
		assert.True(t, client.Authenticated())
		assert.Equal(t, "abc123", client.session)
		assert.Equal(t, 1, logins)
	})

	t.Run("invalid credentials", func(t *testing.T) {
		server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		client := newTestClient(server, ProtocolSession)

		err := client.Login(ctx)
		require.Error(t, err)
		assert.True(t, errors.IsAuth(err))

		var uvcErr *errors.Error
		require.ErrorAs(t, err, &uvcErr)
		assert.Equal(t, http.StatusUnauthorized, uvcErr.Code)

		// A failed login must leave no session behind
		assert.False(t, client.Authenticated())
	})

	t.Run("missing session cookie", func(t *testing.T) {
		server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := newTestClient(server, ProtocolSession)

		err := client.Login(ctx)
		require.Error(t, err)

		var uvcErr *errors.Error
		require.ErrorAs(t, err, &uvcErr)
		assert.Equal(t, errors.ErrorTypeTransport, uvcErr.Type)
		assert.False(t, client.Authenticated())
	})

	t.Run("server error", func(t *testing.T) {
		server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		client := newTestClient(server, ProtocolSession)

		err := client.Login(ctx)
		require.Error(t, err)

		var uvcErr *errors.Error
		require.ErrorAs(t, err, &uvcErr)
		assert.Equal(t, errors.ErrorTypeTransport, uvcErr.Type)
		assert.Equal(t, http.StatusInternalServerError, uvcErr.Code)
	})

	t.Run("direct protocol has no session to establish", func(t *testing.T) {
		requests := 0
		server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++
		}))
		defer server.Close()

		client := newTestClient(server, ProtocolDirect)

		require.NoError(t, client.Login(ctx))
		assert.Equal(t, 0, requests)
		assert.False(t, client.Authenticated())
	})
}

func TestFetchSnapshot(t *testing.T) {
	ctx := context.Background()

	t.Run("logs in once and returns bytes verbatim", func(t *testing.T) {
		logins, snapshots := 0, 0
		server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case LoginEndpoint:
				logins++
				if !checkCredentials(t, r) {
					w.WriteHeader(http.StatusBadRequest)
					return
				}
				issueSession(w, "abc123")
			case SnapshotEndpoint:
				snapshots++
				cookie, err := r.Cookie("authId")
				if assert.NoError(t, err, "snapshot request must carry the session cookie") {
					assert.Equal(t, "abc123", cookie.Value)
				}
				w.Write(snapshotPayload)
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		}))
		defer server.Close()

		client := newTestClient(server, ProtocolSession)

		data, err := client.FetchSnapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, snapshotPayload, data)

		// The session must be reused, not re-established
		data, err = client.FetchSnapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, snapshotPayload, data)

		assert.Equal(t, 1, logins)
		assert.Equal(t, 2, snapshots)
	})

	t.Run("recovers from one expired session", func(t *testing.T) {
		logins, snapshots := 0, 0
		server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case LoginEndpoint:
				logins++
				issueSession(w, "fresh")
			case SnapshotEndpoint:
				snapshots++
				if snapshots == 1 {
					w.WriteHeader(http.StatusUnauthorized)
					return
				}
				cookie, err := r.Cookie("authId")
				if assert.NoError(t, err) {
					assert.Equal(t, "fresh", cookie.Value)
				}
				w.Write(snapshotPayload)
			}
		}))
		defer server.Close()

		client := newTestClient(server, ProtocolSession)

		data, err := client.FetchSnapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, snapshotPayload, data)
		assert.Equal(t, 2, logins)
		assert.Equal(t, 2, snapshots)
	})

	t.Run("second rejection is fatal", func(t *testing.T) {
		logins, snapshots := 0, 0
		server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case LoginEndpoint:
				logins++
				issueSession(w, "doomed")
			case SnapshotEndpoint:
				snapshots++
				w.WriteHeader(http.StatusUnauthorized)
			}
		}))
		defer server.Close()

		client := newTestClient(server, ProtocolSession)

		data, err := client.FetchSnapshot(ctx)
		assert.Nil(t, data)
		require.Error(t, err)
		assert.True(t, errors.IsAuth(err))

		// Exactly one re-authentication and one repeat, never a loop
		assert.Equal(t, 2, logins)
		assert.Equal(t, 2, snapshots)
	})

	t.Run("re-login failure surfaces", func(t *testing.T) {
		logins, snapshots := 0, 0
		server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case LoginEndpoint:
				logins++
				if logins == 1 {
					issueSession(w, "revoked")
					return
				}
				w.WriteHeader(http.StatusUnauthorized)
			case SnapshotEndpoint:
				snapshots++
				w.WriteHeader(http.StatusUnauthorized)
			}
		}))
		defer server.Close()

		client := newTestClient(server, ProtocolSession)

		_, err := client.FetchSnapshot(ctx)
		require.Error(t, err)
		assert.True(t, errors.IsAuth(err))
		assert.Equal(t, 2, logins)
		assert.Equal(t, 1, snapshots)
	})

	t.Run("other failures do not trigger re-authentication", func(t *testing.T) {
		logins, snapshots := 0, 0
		server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case LoginEndpoint:
				logins++
				issueSession(w, "abc123")
			case SnapshotEndpoint:
				snapshots++
				w.WriteHeader(http.StatusServiceUnavailable)
			}
		}))
		defer server.Close()

		client := newTestClient(server, ProtocolSession)

		_, err := client.FetchSnapshot(ctx)
		require.Error(t, err)

		var uvcErr *errors.Error
		require.ErrorAs(t, err, &uvcErr)
		assert.Equal(t, errors.ErrorTypeTransport, uvcErr.Type)
		assert.Equal(t, http.StatusServiceUnavailable, uvcErr.Code)
		assert.Equal(t, 1, logins)
		assert.Equal(t, 1, snapshots)
	})

	t.Run("network failure is a transport error", func(t *testing.T) {
		server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		client := newTestClient(server, ProtocolSession)
		server.Close()

		_, err := client.FetchSnapshot(ctx)
		require.Error(t, err)

		var uvcErr *errors.Error
		require.ErrorAs(t, err, &uvcErr)
		assert.Equal(t, errors.ErrorTypeTransport, uvcErr.Type)
	})

	t.Run("cancelled context aborts the call", func(t *testing.T) {
		server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			issueSession(w, "abc123")
		}))
		defer server.Close()

		client := newTestClient(server, ProtocolSession)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := client.FetchSnapshot(cancelled)
		require.Error(t, err)

		var uvcErr *errors.Error
		require.ErrorAs(t, err, &uvcErr)
		assert.Equal(t, errors.ErrorTypeTransport, uvcErr.Type)
	})
}

func TestProtocolAuto(t *testing.T) {
	ctx := context.Background()

	t.Run("falls back to direct when login endpoint is absent", func(t *testing.T) {
		logins, directs := 0, 0
		server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case LoginEndpoint:
				logins++
				w.WriteHeader(http.StatusNotFound)
			case DirectSnapshotEndpoint:
				directs++
				assert.Equal(t, http.MethodPost, r.Method)
				if !checkCredentials(t, r) {
					w.WriteHeader(http.StatusBadRequest)
					return
				}
				w.Write(snapshotPayload)
			}
		}))
		defer server.Close()

		client := newTestClient(server, ProtocolAuto)

		data, err := client.FetchSnapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, snapshotPayload, data)

		// The fallback is permanent: no further login probes
		_, err = client.FetchSnapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, logins)
		assert.Equal(t, 2, directs)
	})

	t.Run("does not fall back on rejected credentials", func(t *testing.T) {
		directs := 0
		server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case LoginEndpoint:
				w.WriteHeader(http.StatusUnauthorized)
			case DirectSnapshotEndpoint:
				directs++
				w.Write(snapshotPayload)
			}
		}))
		defer server.Close()

		client := newTestClient(server, ProtocolAuto)

		_, err := client.FetchSnapshot(ctx)
		require.Error(t, err)
		assert.True(t, errors.IsAuth(err))
		assert.Equal(t, 0, directs)
	})
}

func TestProtocolSession(t *testing.T) {
	t.Run("surfaces a missing login endpoint instead of probing", func(t *testing.T) {
		directs := 0
		server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case LoginEndpoint:
				w.WriteHeader(http.StatusNotFound)
			case DirectSnapshotEndpoint:
				directs++
				w.Write(snapshotPayload)
			}
		}))
		defer server.Close()

		client := newTestClient(server, ProtocolSession)

		_, err := client.FetchSnapshot(context.Background())
		require.Error(t, err)
		assert.True(t, errors.IsNotFound(err))
		assert.Equal(t, 0, directs)
	})
}

func TestProtocolDirect(t *testing.T) {
	ctx := context.Background()

	t.Run("posts credentials and returns bytes", func(t *testing.T) {
		logins, directs := 0, 0
		server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case LoginEndpoint:
				logins++
				issueSession(w, "unused")
			case DirectSnapshotEndpoint:
				directs++
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				if !checkCredentials(t, r) {
					w.WriteHeader(http.StatusBadRequest)
					return
				}
				w.Write(snapshotPayload)
			}
		}))
		defer server.Close()

		client := newTestClient(server, ProtocolDirect)

		data, err := client.FetchSnapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, snapshotPayload, data)
		assert.Equal(t, 0, logins)
		assert.Equal(t, 1, directs)
	})

	t.Run("rejected credentials", func(t *testing.T) {
		directs := 0
		server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			directs++
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		client := newTestClient(server, ProtocolDirect)

		_, err := client.FetchSnapshot(ctx)
		require.Error(t, err)
		assert.True(t, errors.IsAuth(err))

		// There is no session to refresh, so no retry either
		assert.Equal(t, 1, directs)
	})

	t.Run("server failure", func(t *testing.T) {
		server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		client := newTestClient(server, ProtocolDirect)

		_, err := client.FetchSnapshot(ctx)
		require.Error(t, err)

		var uvcErr *errors.Error
		require.ErrorAs(t, err, &uvcErr)
		assert.Equal(t, errors.ErrorTypeTransport, uvcErr.Type)
		assert.Equal(t, http.StatusBadGateway, uvcErr.Code)
	})
}

func TestSaveSnapshot(t *testing.T) {
	ctx := context.Background()

	t.Run("writes fetched bytes to disk", func(t *testing.T) {
		server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case LoginEndpoint:
				issueSession(w, "abc123")
			case SnapshotEndpoint:
				w.Write(snapshotPayload)
			}
		}))
		defer server.Close()

		client := newTestClient(server, ProtocolSession)
		path := filepath.Join(t.TempDir(), "snap.jpg")

		require.NoError(t, client.SaveSnapshot(ctx, path))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, snapshotPayload, data)
	})

	t.Run("failed fetch leaves no file", func(t *testing.T) {
		server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		client := newTestClient(server, ProtocolSession)
		path := filepath.Join(t.TempDir(), "snap.jpg")

		require.Error(t, client.SaveSnapshot(ctx, path))

		_, err := os.Stat(path)
		assert.True(t, os.IsNotExist(err), "no file must be created on failure")
	})

	t.Run("failed fetch leaves an existing file untouched", func(t *testing.T) {
		server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		client := newTestClient(server, ProtocolSession)
		path := filepath.Join(t.TempDir(), "snap.jpg")
		require.NoError(t, os.WriteFile(path, []byte("previous frame"), 0644))

		require.Error(t, client.SaveSnapshot(ctx, path))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, []byte("previous frame"), data)
	})
}
