// ABOUTME: Minimal Gitea REST API client for user-facing commands
// ABOUTME: Covers the current-user lookup used by whoami and login verification

package gitea

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// User is the subset of a Gitea user record the bot reports on.
type User struct {
	ID       int64  `json:"id"`
	Login    string `json:"login"`
	FullName string `json:"full_name"`
}

// apiError is the JSON error body Gitea returns on failures.
type apiError struct {
	Message string `json:"message"`
}

// Client talks to a single Gitea server on behalf of one stored login.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient creates a client for the given server URL and API token.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// CurrentUser returns the user the API token belongs to.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "token "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.handleErrorResponse(resp)
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decoding user response: %w", err)
	}
	return &user, nil
}

// handleErrorResponse extracts the error message from non-200 responses.
func (c *Client) handleErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		var errResp apiError
		if json.Unmarshal(body, &errResp) == nil && errResp.Message != "" {
			return fmt.Errorf("gitea error (%d): %s", resp.StatusCode, errResp.Message)
		}
	}

	return fmt.Errorf("gitea returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
