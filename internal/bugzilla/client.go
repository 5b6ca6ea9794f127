package bugzilla

import (
	"context"
	"fmt"
	"time"
)

// Record is the subset of a Bugzilla bug the aggregations need.
type Record struct {
	ID         int    `json:"id"`
	Summary    string `json:"summary,omitempty"`
	Assignee   string `json:"assigned_to"`
	Component  string `json:"component"`
	Status     string `json:"status"`
	Priority   string `json:"priority"`
	Whiteboard string `json:"whiteboard"`
	Flags      []Flag `json:"flags"`
}

// Flag is a single bug flag. Name is nil when Bugzilla sent no name attribute.
type Flag struct {
	Name      *string `json:"name,omitempty"`
	Status    string  `json:"status,omitempty"`
	Setter    string  `json:"setter,omitempty"`
	Requestee string  `json:"requestee,omitempty"`
}

// Client fetches the records of a single product.
type Client interface {
	FetchProduct(ctx context.Context, product string) ([]Record, error)
}

// AuthMode selects the authentication strategy.
type AuthMode string

const (
	AuthAPIKeyWithFallback AuthMode = "api-key-with-fallback"
	AuthBasic              AuthMode = "basic"
)

// ParseAuthMode validates a configured mode string.
func ParseAuthMode(s string) (AuthMode, error) {
	switch AuthMode(s) {
	case AuthAPIKeyWithFallback, AuthBasic:
		return AuthMode(s), nil
	}
	return "", fmt.Errorf("unknown auth mode %q (want %q or %q)", s, AuthAPIKeyWithFallback, AuthBasic)
}

// Config holds the connection and authentication settings for Bugzilla.
type Config struct {
	BaseURL string

	// Credentials
	Username string
	Password string
	APIKey   string

	AuthMode             AuthMode
	UseLegacyCredentials bool
	SSLVerify            bool

	// Zero means no timeout.
	Timeout time.Duration
}

// NewClient creates a REST client with the authenticator selected by cfg.AuthMode.
func NewClient(cfg Config) Client {
	return NewRESTClient(cfg, NewAuthenticator(cfg))
}
