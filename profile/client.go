// Package profile talks to the campus REST API on behalf of the session
// layer: the login endpoint and the user profile lookup.
package profile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/campus-portal/internal/errors"
	"github.com/jrsteele09/campus-portal/session"
	"golang.org/x/oauth2"
)

const (
	userInfoPath = "/api/user/info/"
	loginPath    = "/api/user/login/"

	maxBodyBytes = 1 << 20
)

// StatusError is a non-2xx response from the REST API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("campus api returned %d: %s", e.StatusCode, e.Body)
}

// Unwrap classifies the status: 401 and 403 are authentication rejections,
// everything else is transient.
func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden {
		return apperrors.ErrUnauthorized
	}
	return apperrors.ErrTransient
}

// Client calls the campus REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

type ClientOption func(*Client)

// WithHTTPClient sets the client used as the base transport. The bearer
// token is layered on top of it per request.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// NewClient returns a client for the API rooted at baseURL.
func NewClient(baseURL string, options ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("api base url %q must be absolute: %w", baseURL, apperrors.ErrInvalidRequest)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the API root.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// userResponse mirrors the API's UserResponse schema.
type userResponse struct {
	ID        json.Number `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	AvatarURL string      `json:"avatar_url"`
	Grade     string      `json:"grade"`
	Major     string      `json:"major"`
	Role      string      `json:"role"`
}

// FetchUser looks up the profile of userID, presenting accessToken as the
// bearer credential. Errors wrap ErrUnauthorized for 401/403 and
// ErrTransient for everything else, including network failures, bodies that
// cannot be decoded and profiles without a role.
func (c *Client) FetchUser(ctx context.Context, userID, accessToken string) (*session.User, error) {
	endpoint := c.baseURL.JoinPath(userInfoPath, userID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build profile request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.bearerClient(ctx, accessToken).Do(req)
	if err != nil {
		return nil, fmt.Errorf("profile lookup: %w: %w", apperrors.ErrTransient, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, fmt.Errorf("profile lookup: %w", err)
	}

	var body userResponse
	dec := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("profile lookup: %w: %w: %w", apperrors.ErrTransient, apperrors.ErrMalformedProfile, err)
	}
	if strings.TrimSpace(body.Role) == "" {
		return nil, fmt.Errorf("profile lookup: %w: %w: missing role", apperrors.ErrTransient, apperrors.ErrMalformedProfile)
	}

	return &session.User{
		ID:        userID,
		Name:      body.Name,
		Role:      body.Role,
		Email:     body.Email,
		AvatarURL: body.AvatarURL,
		Grade:     body.Grade,
		Major:     body.Major,
	}, nil
}

// Login exchanges a student or admin id and password for an access token.
func (c *Client) Login(ctx context.Context, userID, password string) (string, error) {
	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("user id %q must be numeric: %w", userID, apperrors.ErrInvalidRequest)
	}

	payload, err := json.Marshal(struct {
		ID       int64  `json:"id"`
		Password string `json:"password"`
	}{ID: id, Password: password})
	if err != nil {
		return "", fmt.Errorf("marshal login request: %w", err)
	}

	endpoint := c.baseURL.JoinPath(loginPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("login: %w: %w", apperrors.ErrTransient, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return "", fmt.Errorf("login: %w", err)
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil || body.AccessToken == "" {
		return "", fmt.Errorf("login: %w: missing access_token", apperrors.ErrTransient)
	}
	return body.AccessToken, nil
}

func (c *Client) bearerClient(ctx context.Context, accessToken string) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	client := oauth2.NewClient(ctx, src)
	client.Timeout = c.httpClient.Timeout
	return client
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
