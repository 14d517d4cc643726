package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fndlabs/foundation/internal/pkg/config"
)

// AuthUser is an identity record as returned by the provider's admin listing
// endpoint. The provider is the system of record for credentials; we only
// ever read id, email and the display-name metadata.
type AuthUser struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	UserMetadata UserMetadata `json:"user_metadata"`
}

// UserMetadata carries the optional profile fields set at sign-up.
type UserMetadata struct {
	FullName string `json:"full_name"`
}

// FullName returns the user's display name, falling back to the local part
// of the email address when no full name was provided at sign-up.
func (u AuthUser) FullName() string {
	if name := strings.TrimSpace(u.UserMetadata.FullName); name != "" {
		return name
	}
	local, _, _ := strings.Cut(u.Email, "@")
	return local
}

type listUsersResponse struct {
	Users []AuthUser `json:"users"`
}

// Client talks to the identity provider's admin API.
type Client struct {
	BaseURL   string
	SecretKey string

	HTTPClient *http.Client
}

// NewClient creates an admin API client from configuration.
func NewClient(cfg config.Supabase) *Client {
	return &Client{
		BaseURL:   strings.TrimRight(cfg.URL, "/"),
		SecretKey: cfg.SecretKey,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// ListUsers fetches one page of identity records. Pages are 1-based; a page
// shorter than perPage is the last one.
func (c *Client) ListUsers(ctx context.Context, page, perPage int) ([]AuthUser, error) {
	if strings.TrimSpace(c.BaseURL) == "" {
		return nil, errors.New("SUPABASE_URL is not configured")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return nil, errors.New("SUPABASE_SECRET_KEY is not configured")
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 100
	}

	u, err := url.Parse(c.BaseURL + "/auth/v1/admin/users")
	if err != nil {
		return nil, fmt.Errorf("invalid SUPABASE_URL: %w", err)
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	req.Header.Set("apikey", c.SecretKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("admin user listing failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed listUsersResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode user listing: %w", err)
	}
	return parsed.Users, nil
}
