package bugzilla

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
)

// Session carries whichever credential the authenticator settled on.
type Session struct {
	APIKey string
	Token  string
}

// Method names the credential kind for logs and errors. A nil session is a
// username/password login in progress.
func (s *Session) Method() string {
	if s == nil || s.Token != "" {
		return "legacy"
	}
	return "apikey"
}

type restClient struct {
	cfg        Config
	httpClient *http.Client
	auth       Authenticator
}

// NewRESTClient creates a Bugzilla REST client that authenticates with auth
// before every product query.
func NewRESTClient(cfg Config, auth Authenticator) Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !cfg.SSLVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &restClient{
		cfg: cfg,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		auth: auth,
	}
}

func (c *restClient) FetchProduct(ctx context.Context, product string) ([]Record, error) {
	log.Info().Str("url", c.cfg.BaseURL).Msg("Trying to authenticate to Bugzilla")
	session, err := c.auth.Authenticate(ctx, c)
	if err != nil {
		return nil, err
	}
	log.Info().Str("method", session.Method()).Msg("Bugzilla authentication was successful")

	params := url.Values{}
	params.Set("product", product)
	params.Set("include_fields", includeFields)

	var result SearchResponse
	if err := c.get(ctx, "query", "/rest/bug", params, session, &result); err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(result.Bugs))
	for _, dto := range result.Bugs {
		records = append(records, MapBug(dto))
	}
	log.Debug().Str("product", product).Int("count", len(records)).Msg("Bugzilla query returned")
	return records, nil
}

// loggedIn asks Bugzilla who the session belongs to.
func (c *restClient) loggedIn(ctx context.Context, s *Session) (bool, error) {
	var who WhoAmIResponse
	if err := c.get(ctx, "whoami", "/rest/whoami", nil, s, &who); err != nil {
		return false, err
	}
	return who.ID != 0, nil
}

// login exchanges username and password for a session token.
func (c *restClient) login(ctx context.Context, username, password string) (*Session, error) {
	params := url.Values{}
	params.Set("login", username)
	params.Set("password", password)

	var resp LoginResponse
	if err := c.get(ctx, "login", "/rest/login", params, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, &AuthenticationError{Method: "legacy", Err: errors.New("login response carried no token")}
	}
	return &Session{Token: resp.Token}, nil
}

func (c *restClient) authenticateRequest(req *http.Request, s *Session) {
	if s == nil {
		return
	}
	if s.Token != "" {
		req.Header.Set("X-BUGZILLA-TOKEN", s.Token)
		return
	}
	if s.APIKey != "" {
		req.Header.Set("X-BUGZILLA-API-KEY", s.APIKey)
	}
}

func (c *restClient) get(ctx context.Context, op, path string, params url.Values, s *Session, out any) error {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	log.Debug().Str("op", op).Str("path", path).Msg("Bugzilla request")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &QueryError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	c.authenticateRequest(req, s)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &QueryError{Op: op, Err: redactURL(err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &QueryError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	var envelope ErrorEnvelope
	if json.Unmarshal(body, &envelope) == nil && envelope.Error {
		return faultError(op, s.Method(), resp.StatusCode, envelope)
	}

	if resp.StatusCode != http.StatusOK {
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &AuthenticationError{Method: s.Method(), Err: fmt.Errorf("%s returned status %d", op, resp.StatusCode)}
		default:
			return &QueryError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected response: %s", snippet(body))}
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &QueryError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

func faultError(op, method string, status int, e ErrorEnvelope) error {
	msg := errors.New(e.Message)
	if authErrorCodes[e.Code] {
		return &AuthenticationError{Method: method, Code: e.Code, Err: fmt.Errorf("%s: %w", op, msg)}
	}
	return &QueryError{Op: op, StatusCode: status, Code: e.Code, Err: msg}
}

// redactURL drops the query string from transport errors; login requests
// carry the password there.
func redactURL(err error) error {
	var uErr *url.Error
	if !errors.As(err, &uErr) {
		return err
	}
	redacted := *uErr
	if u, perr := url.Parse(uErr.URL); perr == nil {
		u.RawQuery = ""
		u.User = nil
		redacted.URL = u.String()
	} else {
		redacted.URL = ""
	}
	return &redacted
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
