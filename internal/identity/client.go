// Package identity talks to the external identity provider and resolves
// display identities for local users.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cookiegram/internal/observability"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultTimeout bounds every call to the identity provider.
const DefaultTimeout = 5 * time.Second

// ErrNotFound is returned when the provider has no user with the requested ID.
var ErrNotFound = errors.New("identity: user not found")

// User is the provider-side profile of an account.
type User struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	ImageURL  string `json:"image_url"`
	Username  string `json:"username,omitempty"`
}

// DisplayName joins first and last name.
func (u *User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Provider is the subset of the identity provider API the service uses.
type Provider interface {
	GetUser(ctx context.Context, id string) (*User, error)
	UpdateName(ctx context.Context, id, firstName, lastName string) (*User, error)
	UploadProfileImage(ctx context.Context, id, filename string, image io.Reader) (*User, error)
}

// StatusError is a non-2xx answer from the provider.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("identity %s: status %d: %s", e.Op, e.Status, e.Body)
}

// Client is an HTTP Provider for a Clerk-compatible backend API.
type Client struct {
	base   string
	secret string
	hc     *http.Client
}

// NewClient returns a client for the API rooted at base, authenticated with secret.
func NewClient(base, secret string) *Client {
	return &Client{
		base:   strings.TrimRight(base, "/"),
		secret: secret,
		hc: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (c *Client) GetUser(ctx context.Context, id string) (*User, error) {
	return c.do(ctx, "get_user", http.MethodGet, "/users/"+url.PathEscape(id), "", nil)
}

func (c *Client) UpdateName(ctx context.Context, id, firstName, lastName string) (*User, error) {
	body, err := json.Marshal(map[string]string{"first_name": firstName, "last_name": lastName})
	if err != nil {
		return nil, err
	}
	return c.do(ctx, "update_name", http.MethodPatch, "/users/"+url.PathEscape(id), "application/json", bytes.NewReader(body))
}

func (c *Client) UploadProfileImage(ctx context.Context, id, filename string, image io.Reader) (*User, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, image); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	return c.do(ctx, "upload_profile_image", http.MethodPost, "/users/"+url.PathEscape(id)+"/profile_image", mw.FormDataContentType(), &buf)
}

func (c *Client) do(ctx context.Context, op, method, path, contentType string, body io.Reader) (*User, error) {
	start := time.Now()
	defer func() {
		observability.IdentityLookupLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	var u User
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("identity %s: decode: %w", op, err)
	}
	return &u, nil
}
