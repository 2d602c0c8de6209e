// Package console is the Go client for the TrustFlow admin API: an envelope
// HTTP client with cookie auth, a session store, the route guards, the
// permission-gated sidebar model, and the settings dirty tracker.
package console

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
)

// ErrUnauthorized is returned on any 401 response. The client has already
// invoked the unauthorized hook by the time callers see this error; the
// response envelope is still returned alongside it when the body decoded.
var ErrUnauthorized = errors.New("unauthorized")

// Envelope is the backend's uniform response wrapper.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// DecodeData unmarshals the envelope's data field into out.
func (e *Envelope) DecodeData(out any) error {
	if len(e.Data) == 0 {
		return errors.New("envelope has no data")
	}
	return json.Unmarshal(e.Data, out)
}

// Client is the single shared HTTP client: fixed base URL, credentialed
// cookies, and a 401 hook that forgets the local session. No retries and no
// timeout beyond the caller's context.
type Client struct {
	base *url.URL
	http *http.Client

	// onUnauthorized runs before ErrUnauthorized propagates; the session
	// store installs its logout here.
	onUnauthorized func()
}

func NewClient(baseURL string) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Client{
		base: u,
		http: &http.Client{Jar: jar},
	}, nil
}

// SetUnauthorizedHook installs the callback run on any 401 response.
func (c *Client) SetUnauthorizedHook(fn func()) {
	c.onUnauthorized = fn
}

func (c *Client) Get(ctx context.Context, path string) (*Envelope, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *Client) Post(ctx context.Context, path string, body any) (*Envelope, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

func (c *Client) Put(ctx context.Context, path string, body any) (*Envelope, error) {
	return c.do(ctx, http.MethodPut, path, body)
}

func (c *Client) Patch(ctx context.Context, path string, body any) (*Envelope, error) {
	return c.do(ctx, http.MethodPatch, path, body)
}

func (c *Client) Delete(ctx context.Context, path string) (*Envelope, error) {
	return c.do(ctx, http.MethodDelete, path, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*Envelope, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+"/"+strings.TrimLeft(path, "/"), reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	var env Envelope
	decodeErr := json.NewDecoder(res.Body).Decode(&env)

	if res.StatusCode == http.StatusUnauthorized {
		// the one place where "the server considers my session invalid"
		// becomes "the client forgets its session"
		if c.onUnauthorized != nil && !isLogoutPath(path) {
			c.onUnauthorized()
		}
		// a failed login answers 401 with a message; the caller still
		// gets the envelope so the login page can show it
		if decodeErr != nil {
			return nil, ErrUnauthorized
		}
		return &env, ErrUnauthorized
	}

	if decodeErr != nil {
		return nil, fmt.Errorf("decode envelope: %w", decodeErr)
	}
	if res.StatusCode >= 400 || !env.Success {
		msg := env.Message
		if msg == "" {
			msg = res.Status
		}
		return &env, errors.New(msg)
	}
	return &env, nil
}

func isLogoutPath(path string) bool {
	return strings.Trim(path, "/") == "users/logout"
}
