package uvc

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/appleguru/UniFi-Timelapse/pkg/errors"
	"github.com/appleguru/UniFi-Timelapse/pkg/logger"
	"github.com/appleguru/UniFi-Timelapse/pkg/storage"
)

// Protocol selects how the client authenticates snapshot requests
type Protocol string

const (
	// ProtocolAuto tries the session login endpoint first and switches to
	// the direct endpoint when the firmware does not serve it
	ProtocolAuto Protocol = "auto"

	// ProtocolSession authenticates once and reuses the session cookie
	ProtocolSession Protocol = "session"

	// ProtocolDirect sends credentials with every snapshot request
	ProtocolDirect Protocol = "direct"
)

// ParseProtocol converts a configuration string into a Protocol
func ParseProtocol(s string) (Protocol, error) {
	switch Protocol(strings.ToLower(s)) {
	case ProtocolAuto, "":
		return ProtocolAuto, nil
	case ProtocolSession:
		return ProtocolSession, nil
	case ProtocolDirect:
		return ProtocolDirect, nil
	}
	return "", fmt.Errorf("unknown protocol %q", s)
}

// Client retrieves snapshots from a single UniFi Video camera.
//
// The client holds at most one session token at a time; a re-login replaces
// it. Calls are synchronous and the client is not safe for concurrent use.
type Client struct {
	httpClient *http.Client
	address    string
	username   string
	password   string
	protocol   Protocol
	logger     logger.Logger

	// session is the authId cookie value. Empty means unauthenticated.
	session string

	// direct is set when the firmware only serves the direct snapshot
	// endpoint. Once set it never resets for the client's lifetime.
	direct bool
}

// Options configures a Client
type Options struct {
	// Address is the camera host or host:port. Scheme prefixes are ignored.
	Address string

	// Username defaults to ubnt, the factory account
	Username string

	Password string

	// Protocol defaults to ProtocolAuto
	Protocol Protocol

	// Timeout bounds every HTTP call. Defaults to 30 seconds.
	Timeout time.Duration

	// TLSSkipVerify disables certificate verification. Cameras ship
	// self-signed certificates, so most deployments need this on.
	TLSSkipVerify bool

	Logger logger.Logger
}

// NewClient creates a camera client
func NewClient(opts Options) *Client {
	// Use default logger if none provided
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}
	if opts.Username == "" {
		opts.Username = "ubnt"
	}
	if opts.Protocol == "" {
		opts.Protocol = ProtocolAuto
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: opts.TLSSkipVerify}

	return &Client{
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		address:  SanitizeAddress(opts.Address),
		username: opts.Username,
		password: opts.Password,
		protocol: opts.Protocol,
		direct:   opts.Protocol == ProtocolDirect,
		logger:   opts.Logger,
	}
}

// credentials is the JSON body for login and direct snapshot requests
type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Authenticated reports whether the client currently holds a session token
func (c *Client) Authenticated() bool {
	return c.session != ""
}

// Login authenticates against the camera and stores the session token the
// camera issues. Under the direct protocol there is no session to establish
// and Login does nothing.
func (c *Client) Login(ctx context.Context) error {
	if c.direct {
		c.logger.Debug("direct protocol carries credentials per request, skipping login")
		return nil
	}

	req, err := c.newJSONRequest(ctx, http.MethodPost, LoginURL(c.address))
	if err != nil {
		return err
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		c.logger.WarnWithFields("camera rejected credentials", map[string]interface{}{
			"camera":   c.address,
			"username": c.username,
		})
		return errors.New(errors.ErrorTypeAuth, resp.StatusCode, "invalid credentials")
	case resp.StatusCode == http.StatusNotFound:
		return errors.New(errors.ErrorTypeNotFound, resp.StatusCode, "login endpoint not found")
	case !statusOK(resp.StatusCode):
		return errors.New(errors.ErrorTypeTransport, resp.StatusCode, "unexpected login status %d", resp.StatusCode)
	}

	session := sessionCookie(resp)
	if session == "" {
		return errors.New(errors.ErrorTypeTransport, resp.StatusCode, "login response carries no %s cookie", sessionCookieName)
	}

	c.session = session
	c.logger.DebugWithFields("session established", map[string]interface{}{
		"camera": c.address,
	})
	return nil
}

// FetchSnapshot retrieves the current frame as raw JPEG bytes.
//
// Under the session protocol the client logs in when it holds no session
// and recovers from exactly one expired session per call: on a 401 it
// discards the token, logs in again and repeats the request once. A 401 on
// the repeated request means the credentials themselves are the problem.
func (c *Client) FetchSnapshot(ctx context.Context) ([]byte, error) {
	if c.direct {
		return c.fetchDirect(ctx)
	}

	if c.session == "" {
		if err := c.Login(ctx); err != nil {
			if c.protocol == ProtocolAuto && errors.IsNotFound(err) {
				c.logger.InfoWithFields("login endpoint absent, switching to direct snapshot protocol", map[string]interface{}{
					"camera": c.address,
				})
				c.direct = true
				return c.fetchDirect(ctx)
			}
			return nil, err
		}
	}

	data, err := c.fetchWithSession(ctx)
	if err == nil {
		return data, nil
	}
	if !errors.IsSessionExpired(err) {
		return nil, err
	}

	c.logger.WarnWithFields("session expired, re-authenticating", map[string]interface{}{
		"camera": c.address,
	})
	c.session = ""
	if err := c.Login(ctx); err != nil {
		return nil, err
	}

	data, err = c.fetchWithSession(ctx)
	if err == nil {
		return data, nil
	}
	if errors.IsSessionExpired(err) {
		// A freshly issued session was rejected, so the credentials no
		// longer grant access.
		return nil, errors.New(errors.ErrorTypeAuth, http.StatusUnauthorized, "camera rejected a freshly established session")
	}
	return nil, err
}

// SaveSnapshot fetches the current frame and writes it to path, replacing
// any existing file. The write is atomic: on failure the path is left
// untouched, never truncated or partially written.
func (c *Client) SaveSnapshot(ctx context.Context, path string) error {
	data, err := c.FetchSnapshot(ctx)
	if err != nil {
		return err
	}

	if err := storage.WriteFileAtomic(path, data); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	c.logger.DebugWithFields("snapshot saved", map[string]interface{}{
		"camera": c.address,
		"path":   path,
		"size":   len(data),
	})
	return nil
}

// fetchWithSession performs one authenticated snapshot request. A 401 is
// reported as a session expiry for FetchSnapshot's recovery step.
func (c *Client) fetchWithSession(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, SnapshotURL(c.address), nil)
	if err != nil {
		return nil, errors.New(errors.ErrorTypeTransport, 0, "failed to create snapshot request: %v", err)
	}
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: c.session})

	resp, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, errors.New(errors.ErrorTypeSessionExpired, resp.StatusCode, "camera no longer accepts the session")
	case !statusOK(resp.StatusCode):
		return nil, errors.New(errors.ErrorTypeTransport, resp.StatusCode, "unexpected snapshot status %d", resp.StatusCode)
	}

	return c.readSnapshot(resp)
}

// fetchDirect performs one credential-in-body snapshot request
func (c *Client) fetchDirect(ctx context.Context) ([]byte, error) {
	req, err := c.newJSONRequest(ctx, http.MethodPost, DirectSnapshotURL(c.address))
	if err != nil {
		return nil, err
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		c.logger.WarnWithFields("camera rejected credentials", map[string]interface{}{
			"camera":   c.address,
			"username": c.username,
		})
		return nil, errors.New(errors.ErrorTypeAuth, resp.StatusCode, "invalid credentials")
	case !statusOK(resp.StatusCode):
		return nil, errors.New(errors.ErrorTypeTransport, resp.StatusCode, "unexpected snapshot status %d", resp.StatusCode)
	}

	return c.readSnapshot(resp)
}

// newJSONRequest builds a request carrying the client credentials as JSON
func (c *Client) newJSONRequest(ctx context.Context, method, url string) (*http.Request, error) {
	body, err := json.Marshal(credentials{Username: c.username, Password: c.password})
	if err != nil {
		return nil, errors.New(errors.ErrorTypeTransport, 0, "failed to encode credentials: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.New(errors.ErrorTypeTransport, 0, "failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// doRequest performs an HTTP request and maps network failures to typed errors
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errors.New(errors.ErrorTypeTransport, 0, "network error: %v", err)
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return resp, nil
}

// readSnapshot reads the response body verbatim. The camera's JPEG bytes
// are never inspected or transformed.
func (c *Client) readSnapshot(resp *http.Response) ([]byte, error) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.New(errors.ErrorTypeTransport, resp.StatusCode, "failed to read snapshot body: %v", err)
	}

	c.logger.DebugWithFields("snapshot received", map[string]interface{}{
		"camera": c.address,
		"size":   len(data),
	})
	return data, nil
}

// sessionCookie extracts the session token from a login response
func sessionCookie(resp *http.Response) string {
	for _, cookie := range resp.Cookies() {
		if cookie.Name == sessionCookieName && cookie.Value != "" {
			return cookie.Value
		}
	}
	return ""
}

func statusOK(code int) bool {
	return code >= 200 && code < 300
}
