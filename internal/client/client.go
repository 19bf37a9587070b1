// Package client provides an HTTP client for the Tally server API,
// used by the command line interface.
package client

import (
	"bytes"
	"context"
	"encoding/json/v2"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	domainerrors "github.com/tallyapp/tally-server/internal/errors"
)

// Client talks to a Tally server.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	accessToken string
}

// New creates a client for the server at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetAccessToken sets the bearer token sent with authenticated requests.
func (c *Client) SetAccessToken(token string) {
	c.accessToken = token
}

// apiError mirrors the server's error body.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// do issues a request and decodes the JSON response into out (when
// out is non-nil). Error responses are mapped back to domain errors so
// callers can use errors.Is against the usual sentinels.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		buf := &bytes.Buffer{}
		if err := json.MarshalWrite(buf, body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if out != nil {
		if err := json.UnmarshalRead(resp.Body, out); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}
	return nil
}

// decodeError turns an error response into a domain error.
func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	var apiErr apiError
	if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Message != "" {
		code := domainerrors.Code(apiErr.Code)
		if code == "" {
			code = statusCode(resp.StatusCode)
		}
		return &domainerrors.Error{Code: code, Message: apiErr.Message}
	}

	return &domainerrors.Error{
		Code:    statusCode(resp.StatusCode),
		Message: fmt.Sprintf("server returned status %d", resp.StatusCode),
	}
}

func statusCode(status int) domainerrors.Code {
	switch status {
	case http.StatusBadRequest:
		return domainerrors.CodeValidation
	case http.StatusUnauthorized:
		return domainerrors.CodeUnauthorized
	case http.StatusForbidden:
		return domainerrors.CodeForbidden
	case http.StatusNotFound:
		return domainerrors.CodeNotFound
	case http.StatusConflict:
		return domainerrors.CodeConflict
	case http.StatusGone:
		return domainerrors.CodeExpired
	case http.StatusServiceUnavailable:
		return domainerrors.CodeUnavailable
	default:
		return domainerrors.CodeInternal
	}
}

// ParseInviteToken extracts the token from a shareable invitation link
// of the form <base>/join?invite=<token>. A bare token passes through
// unchanged so users can paste either.
func ParseInviteToken(raw string) (string, error) {
	if !strings.Contains(raw, "://") && !strings.Contains(raw, "?") {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid invitation link: %w", err)
	}
	token := u.Query().Get("invite")
	if token == "" {
		return "", fmt.Errorf("invitation link has no invite parameter")
	}
	return token, nil
}
