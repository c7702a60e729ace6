package uvc

import (
	"fmt"
	"strings"
)

const (
	// LoginEndpoint establishes a session on firmware that supports them
	LoginEndpoint = "/api/1.1/login"

	// SnapshotEndpoint serves the current frame to an authenticated session
	SnapshotEndpoint = "/snap.jpeg"

	// DirectSnapshotEndpoint serves the current frame for credentials
	// presented in the request body
	DirectSnapshotEndpoint = "/api/1.2/snapshot"

	// sessionCookieName is the cookie the camera issues on login
	sessionCookieName = "authId"
)

// SanitizeAddress normalizes a camera address to host or host:port form.
// Scheme prefixes and trailing slashes are dropped; the camera API is
// always HTTPS regardless of what the address claims.
func SanitizeAddress(address string) string {
	address = strings.TrimSpace(address)
	address = strings.TrimPrefix(address, "https://")
	address = strings.TrimPrefix(address, "http://")
	return strings.TrimRight(address, "/")
}

// LoginURL constructs the URL for establishing a session
func LoginURL(address string) string {
	return fmt.Sprintf("https://%s%s", SanitizeAddress(address), LoginEndpoint)
}

// SnapshotURL constructs the URL for fetching a frame with a session cookie
func SnapshotURL(address string) string {
	return fmt.Sprintf("https://%s%s", SanitizeAddress(address), SnapshotEndpoint)
}

// DirectSnapshotURL constructs the URL for the credential-per-request variant
func DirectSnapshotURL(address string) string {
	return fmt.Sprintf("https://%s%s", SanitizeAddress(address), DirectSnapshotEndpoint)
}
