package shopclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"
)

var (
	// ErrUnauthenticated is returned when a request cannot be satisfied even
	// after a silent refresh attempt.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// APIError carries the server's status code and message for non-2xx replies.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// User is the profile summary the server returns; the password never crosses
// the wire.
type User struct {
	ID             string    `json:"id"`
	Phone          string    `json:"phone"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	Role           string    `json:"role"`
	MobileVerified bool      `json:"mobileVerified"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Cart mirrors the server-side cart payload.
type Cart struct {
	Items []CartItem `json:"items"`
}

// envelope matches the server's response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Client talks to the storefront identity/cart API. The refresh token rides in
// an HTTP-only cookie held by the client's cookie jar; only the short-lived
// access token is kept in memory.
type Client struct {
	baseURL string
	http    *http.Client

	mu          sync.Mutex
	accessToken string
}

func NewClient(baseURL string) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http: &http.Client{
			Jar:     jar,
			Timeout: 10 * time.Second,
		},
	}
}

// AccessToken returns the in-memory access token, empty when logged out.
func (c *Client) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

func (c *Client) setAccessToken(tok string) {
	c.mu.Lock()
	c.accessToken = tok
	c.mu.Unlock()
}

type RegisterParams struct {
	Phone     string `json:"phone"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (c *Client) Register(ctx context.Context, p RegisterParams) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", p, false, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

type loginPayload struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type loginResult struct {
	AccessToken string `json:"accessToken"`
	User        *User  `json:"user"`
}

// Login authenticates and stores the returned access token; the server sets
// the refresh cookie on the jar as a side effect.
func (c *Client) Login(ctx context.Context, phone, password string) (*User, error) {
	var res loginResult
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", loginPayload{Phone: phone, Password: password}, false, &res); err != nil {
		return nil, err
	}
	c.setAccessToken(res.AccessToken)
	return res.User, nil
}

type refreshResult struct {
	AccessToken string `json:"accessToken"`
}

// Refresh silently exchanges the refresh cookie for a new access token.
func (c *Client) Refresh(ctx context.Context) error {
	var res refreshResult
	if err := c.do(ctx, http.MethodPost, "/api/auth/refresh", nil, false, &res); err != nil {
		return err
	}
	c.setAccessToken(res.AccessToken)
	return nil
}

func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, true, nil)
	// The local token is dropped regardless; the server call is best effort.
	c.setAccessToken("")
	return err
}

func (c *Client) Profile(ctx context.Context) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/api/auth/profile", nil, true, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

type updateProfilePayload struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (c *Client) UpdateProfile(ctx context.Context, firstName, lastName string) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodPut, "/api/auth/profile", updateProfilePayload{FirstName: firstName, LastName: lastName}, true, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) Cart(ctx context.Context) (*Cart, error) {
	var cart Cart
	if err := c.do(ctx, http.MethodGet, "/api/cart", nil, true, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

type mergePayload struct {
	SessionID string     `json:"sessionId"`
	Items     []CartItem `json:"items"`
}

// MergeCart appends guest line items into the authenticated cart. The guest
// session id makes a retried merge a no-op on the server.
func (c *Client) MergeCart(ctx context.Context, sessionID string, items []CartItem) (*Cart, error) {
	var cart Cart
	if err := c.do(ctx, http.MethodPost, "/api/cart/merge", mergePayload{SessionID: sessionID, Items: items}, true, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

type otpSendPayload struct {
	Phone string `json:"phone"`
}

type otpVerifyPayload struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

func (c *Client) SendOTP(ctx context.Context, phone string) error {
	return c.do(ctx, http.MethodPost, "/api/auth/otp/send", otpSendPayload{Phone: phone}, true, nil)
}

func (c *Client) VerifyOTP(ctx context.Context, phone, code string) error {
	return c.do(ctx, http.MethodPost, "/api/auth/otp/verify", otpVerifyPayload{Phone: phone, Code: code}, true, nil)
}

// do issues one request. Authenticated calls that bounce with 401 get a single
// transparent refresh-and-retry before the error is surfaced.
func (c *Client) do(ctx context.Context, method, path string, body any, authed bool, out any) error {
	status, err := c.once(ctx, method, path, body, authed, out)
	if err != nil && authed && status == http.StatusUnauthorized {
		if rErr := c.Refresh(ctx); rErr != nil {
			return ErrUnauthenticated
		}
		_, err = c.once(ctx, method, path, body, authed, out)
	}
	return err
}

func (c *Client) once(ctx context.Context, method, path string, body any, authed bool, out any) (int, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		if tok := c.AccessToken(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode >= 400 || !env.Success {
		return resp.StatusCode, &APIError{Status: resp.StatusCode, Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode data: %w", err)
		}
	}
	return resp.StatusCode, nil
}
