package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
)

// jpegPayload is a tiny stand-in for the bytes a camera returns. The
// pipeline never inspects snapshot content, so a few marker bytes are
// enough to verify verbatim delivery.
var jpegPayload = []byte{0xFF, 0xD8, 0xFF, 0xD9, 0x00}

// MockCamera simulates a UniFi Video camera over TLS. It speaks both
// firmware generations: the session login endpoint with the authId
// cookie, and the direct snapshot endpoint that takes credentials in
// the request body.
type MockCamera struct {
	server   *httptest.Server
	password string

	mu            sync.Mutex
	sessionSeq    int
	validSessions map[string]bool
	oldFirmware   bool

	loginCount    int32
	snapshotCount int32
	directCount   int32
}

// NewMockCamera starts a TLS mock camera accepting the ubnt account
// with the given password.
func NewMockCamera(password string) *MockCamera {
	m := &MockCamera{
		password:      password,
		validSessions: make(map[string]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/1.1/login", m.handleLogin)
	mux.HandleFunc("/snap.jpeg", m.handleSnapshot)
	mux.HandleFunc("/api/1.2/snapshot", m.handleDirectSnapshot)

	m.server = httptest.NewTLSServer(mux)
	return m
}

// Address returns the camera address for client configuration.
func (m *MockCamera) Address() string {
	return m.server.URL
}

// SetOldFirmware switches the camera to the generation that has no
// login endpoint and only serves direct snapshots.
func (m *MockCamera) SetOldFirmware(old bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.oldFirmware = old
}

// ExpireSessions invalidates every session the camera has issued, the
// way a camera reboot or an idle timeout does.
func (m *MockCamera) ExpireSessions() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validSessions = make(map[string]bool)
}

// LoginCount returns the number of login requests received.
func (m *MockCamera) LoginCount() int {
	return int(atomic.LoadInt32(&m.loginCount))
}

// SnapshotCount returns the number of session snapshot requests received.
func (m *MockCamera) SnapshotCount() int {
	return int(atomic.LoadInt32(&m.snapshotCount))
}

// DirectCount returns the number of direct snapshot requests received.
func (m *MockCamera) DirectCount() int {
	return int(atomic.LoadInt32(&m.directCount))
}

// Close shuts down the mock camera.
func (m *MockCamera) Close() {
	m.server.Close()
}

func (m *MockCamera) handleLogin(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&m.loginCount, 1)

	m.mu.Lock()
	old := m.oldFirmware
	m.mu.Unlock()
	if old {
		http.NotFound(w, r)
		return
	}

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if !m.checkCredentials(w, r) {
		return
	}

	m.mu.Lock()
	m.sessionSeq++
	token := fmt.Sprintf("session-%04d", m.sessionSeq)
	m.validSessions[token] = true
	m.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: "authId", Value: token, Path: "/"})
	w.WriteHeader(http.StatusOK)
}

func (m *MockCamera) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&m.snapshotCount, 1)

	cookie, err := r.Cookie("authId")
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	m.mu.Lock()
	valid := m.validSessions[cookie.Value]
	m.mu.Unlock()
	if !valid {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(jpegPayload)
}

func (m *MockCamera) handleDirectSnapshot(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&m.directCount, 1)

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if !m.checkCredentials(w, r) {
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(jpegPayload)
}

func (m *MockCamera) checkCredentials(w http.ResponseWriter, r *http.Request) bool {
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return false
	}
	if creds.Username != "ubnt" || creds.Password != m.password {
		w.WriteHeader(http.StatusUnauthorized)
		return false
	}
	return true
}
