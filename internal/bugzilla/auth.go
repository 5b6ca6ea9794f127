package bugzilla

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
)

// sessionAPI is the part of the REST client an Authenticator drives.
type sessionAPI interface {
	loggedIn(ctx context.Context, s *Session) (bool, error)
	login(ctx context.Context, username, password string) (*Session, error)
}

// Authenticator produces a verified session for one tracker run.
type Authenticator interface {
	Authenticate(ctx context.Context, api sessionAPI) (*Session, error)
}

// NewAuthenticator picks the strategy named by cfg.AuthMode. An empty mode
// means api-key-with-fallback when an API key is configured, basic otherwise.
func NewAuthenticator(cfg Config) Authenticator {
	mode := cfg.AuthMode
	if mode == "" {
		mode = AuthBasic
		if cfg.APIKey != "" {
			mode = AuthAPIKeyWithFallback
		}
	}
	if mode == AuthAPIKeyWithFallback {
		return &apiKeyAuth{
			apiKey:    cfg.APIKey,
			username:  cfg.Username,
			password:  cfg.Password,
			useLegacy: cfg.UseLegacyCredentials,
		}
	}
	return &basicAuth{username: cfg.Username, password: cfg.Password}
}

// apiKeyAuth tries the API key first and, when allowed, falls back to a
// username/password login.
type apiKeyAuth struct {
	apiKey    string
	username  string
	password  string
	useLegacy bool
}

func (a *apiKeyAuth) Authenticate(ctx context.Context, api sessionAPI) (*Session, error) {
	s := &Session{APIKey: a.apiKey}
	ok, err := api.loggedIn(ctx, s)
	if err == nil && ok {
		return s, nil
	}
	if err == nil {
		err = ErrNotLoggedIn
	}

	// Only credential failures fall back; transport and server faults propagate.
	if !isAuthFailure(err) {
		return nil, err
	}
	if !a.useLegacy {
		var authErr *AuthenticationError
		if errors.As(err, &authErr) {
			return nil, err
		}
		return nil, &AuthenticationError{Method: "apikey", Err: err}
	}

	log.Warn().Err(err).Msg("There was an error authenticating Bugzilla using API key")
	log.Info().Msg("Trying authentication using legacy username and password")
	return api.login(ctx, a.username, a.password)
}

// basicAuth logs in with username and password only.
type basicAuth struct {
	username string
	password string
}

func (a *basicAuth) Authenticate(ctx context.Context, api sessionAPI) (*Session, error) {
	return api.login(ctx, a.username, a.password)
}
