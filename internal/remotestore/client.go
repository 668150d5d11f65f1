// Package remotestore is an HTTP client for the remote account service and
// user document store.
package remotestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"inspirepixel/internal/model"
	"inspirepixel/internal/storage"
)

const (
	sessionHeader = "X-Session-Token"
	sessionKey    = "remote_session"
	maxBodyBytes  = 1024 * 1024
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the remote store. The session token is kept in the local
// key-value store so a restarted process resumes the session.
type Client struct {
	client  HTTPClient
	baseURL string
	token   string
	kv      storage.KV
	log     *slog.Logger

	mu      sync.Mutex
	session string
	loaded  bool
}

// New creates a client for the store at baseURL authenticated with token.
func New(client HTTPClient, baseURL, token string, kv storage.KV, log *slog.Logger) *Client {
	return &Client{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		kv:      kv,
		log:     log,
	}
}

type sessionResponse struct {
	UID     string `json:"uid"`
	Session string `json:"session"`
}

// SignIn opens a session for the credentials.
func (c *Client) SignIn(ctx context.Context, creds model.Credentials) (string, error) {
	var resp sessionResponse
	body := map[string]string{"email": creds.Email, "password": creds.Password}
	if err := c.do(ctx, http.MethodPost, "/auth/signin", body, &resp, false); err != nil {
		return "", fmt.Errorf("sign in: %w", err)
	}
	if err := c.setSession(ctx, resp.Session); err != nil {
		return "", err
	}
	return resp.UID, nil
}

// SignUp creates an account and opens a session for it.
func (c *Client) SignUp(ctx context.Context, r model.Registration) (string, error) {
	var resp sessionResponse
	body := map[string]string{"name": r.Name, "email": r.Email, "password": r.Password}
	if err := c.do(ctx, http.MethodPost, "/auth/signup", body, &resp, true); err != nil {
		return "", fmt.Errorf("sign up: %w", err)
	}
	if err := c.setSession(ctx, resp.Session); err != nil {
		return "", err
	}
	return resp.UID, nil
}

// SignOut closes the session. The local token is dropped even when the
// request fails.
func (c *Client) SignOut(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/auth/signout", nil, nil, true)
	if clearErr := c.setSession(ctx, ""); clearErr != nil {
		c.log.Warn("clear remote session", "error", clearErr)
	}
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

// CurrentUser returns the user id bound to the session, or "" when there is
// no valid session.
func (c *Client) CurrentUser(ctx context.Context) (string, error) {
	if s, err := c.currentSession(ctx); err != nil || s == "" {
		return "", err
	}
	var resp sessionResponse
	err := c.do(ctx, http.MethodGet, "/auth/session", nil, &resp, false)
	switch {
	case isStatus(err, http.StatusUnauthorized), isStatus(err, http.StatusForbidden):
		c.log.Info("remote session expired")
		return "", c.setSession(ctx, "")
	case err != nil:
		return "", fmt.Errorf("current user: %w", err)
	}
	return resp.UID, nil
}

// GetProfile reads the user document.
func (c *Client) GetProfile(ctx context.Context, uid string) (model.Profile, error) {
	var p model.Profile
	if err := c.do(ctx, http.MethodGet, userPath(uid), nil, &p, false); err != nil {
		return model.Profile{}, fmt.Errorf("get profile %s: %w", uid, err)
	}
	p.Entitlement = model.ParseEntitlement(string(p.Entitlement))
	return p, nil
}

// CreateProfile writes the full user document.
func (c *Client) CreateProfile(ctx context.Context, uid string, p model.Profile) error {
	if p.Favorites == nil {
		p.Favorites = []string{}
	}
	if err := c.do(ctx, http.MethodPut, userPath(uid), p, nil, true); err != nil {
		return fmt.Errorf("create profile %s: %w", uid, err)
	}
	return nil
}

// SetEntitlement updates the access tier.
func (c *Client) SetEntitlement(ctx context.Context, uid string, e model.Entitlement) error {
	patch := map[string]any{"entitlement": e}
	if e == model.EntitlementPro {
		patch["upgradedAt"] = time.Now().UTC()
	}
	return c.patch(ctx, uid, patch)
}

// SetFavorites replaces the favorites list.
func (c *Client) SetFavorites(ctx context.Context, uid string, favorites []string) error {
	if favorites == nil {
		favorites = []string{}
	}
	return c.patch(ctx, uid, map[string]any{"favorites": favorites})
}

// UpdateName changes the display name.
func (c *Client) UpdateName(ctx context.Context, uid, name string) error {
	return c.patch(ctx, uid, map[string]any{"name": name})
}

func (c *Client) patch(ctx context.Context, uid string, fields map[string]any) error {
	if err := c.do(ctx, http.MethodPatch, userPath(uid), fields, nil, true); err != nil {
		return fmt.Errorf("update profile %s: %w", uid, err)
	}
	return nil
}

func userPath(uid string) string {
	return "/users/" + url.PathEscape(uid)
}

func (c *Client) currentSession(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return c.session, nil
	}
	s, _, err := c.kv.Get(ctx, sessionKey)
	if err != nil {
		return "", fmt.Errorf("read session token: %w", err)
	}
	c.session, c.loaded = s, true
	return s, nil
}

func (c *Client) setSession(ctx context.Context, s string) error {
	c.mu.Lock()
	c.session, c.loaded = s, true
	c.mu.Unlock()

	var err error
	if s == "" {
		err = c.kv.Delete(ctx, sessionKey)
	} else {
		err = c.kv.Set(ctx, sessionKey, s)
	}
	if err != nil {
		return fmt.Errorf("store session token: %w", err)
	}
	return nil
}

// StatusError is returned for non-2xx responses. It unwraps to the model
// error matching the status.
type StatusError struct {
	Code int
	Body string
	kind error
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("remote store: status %d", e.Code)
	}
	return fmt.Sprintf("remote store: status %d: %s", e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return e.kind }

func statusError(code int, body string, write bool) *StatusError {
	var kind error
	switch {
	case code == http.StatusNotFound:
		kind = model.ErrNotFound
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		kind = model.ErrBadCredentials
	case code == http.StatusConflict:
		kind = model.ErrAlreadyExists
	case write:
		kind = model.ErrRemoteWrite
	default:
		kind = model.ErrNetwork
	}
	return &StatusError{Code: code, Body: body, kind: kind}
}

func isStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, write bool) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	session, err := c.currentSession(ctx)
	if err != nil {
		return err
	}
	if session != "" {
		req.Header.Set(sessionHeader, session)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		kind := model.ErrNetwork
		if write {
			kind = model.ErrRemoteWrite
		}
		return fmt.Errorf("%s %s: %w: %w", method, path, kind, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return statusError(resp.StatusCode, strings.TrimSpace(string(snippet)), write)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w: %w", method, path, model.ErrMalformedResponse, err)
	}
	return nil
}
