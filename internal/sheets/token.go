package sheets

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	grantTypeRefreshToken = "refresh_token"
	grantTypeJWTBearer    = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	// tokenLifetime is assumed when the token endpoint omits expires_in.
	tokenLifetime = time.Hour

	// expirySlack is how long before the stated expiry a cached token is
	// considered stale.
	expirySlack = 30 * time.Second
)

// Token is a bearer access token with its expiry. It lives for at most one
// pipeline execution unless held by a CachingTokenSource.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Valid reports whether the token can still be presented upstream.
func (t Token) Valid(now time.Time) bool {
	return t.Value != "" && now.Before(t.ExpiresAt.Add(-expirySlack))
}

// TokenSource obtains a bearer access token.
type TokenSource interface {
	Token(ctx context.Context) (Token, error)
}

// ExchangeOptions parameterise the token endpoint call.
type ExchangeOptions struct {
	TokenURL string
	Timeout  time.Duration
}

// NewTokenSource builds the token source matching the credential strategy.
// The service-account variant prepares its signer eagerly so a malformed key
// fails before any network call.
func NewTokenSource(creds Credentials, opts ExchangeOptions, scope string, logger zerolog.Logger) (TokenSource, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := &http.Client{Timeout: timeout}
	logger = logger.With().Str("component", "token_source").Str("strategy", string(creds.Strategy)).Logger()

	switch creds.Strategy {
	case StrategyServiceAccount:
		signer, err := NewAssertionSigner(creds.ServiceAccountEmail, creds.PrivateKeyBase64, scope, opts.TokenURL)
		if err != nil {
			return nil, err
		}
		return &assertionTokenSource{
			signer:   signer,
			tokenURL: opts.TokenURL,
			client:   client,
			logger:   logger,
		}, nil
	default:
		return &refreshTokenSource{
			creds:    creds,
			tokenURL: opts.TokenURL,
			client:   client,
			logger:   logger,
		}, nil
	}
}

// refreshTokenSource exchanges a long-lived refresh token for an access token.
type refreshTokenSource struct {
	creds    Credentials
	tokenURL string
	client   *http.Client
	logger   zerolog.Logger
}

func (s *refreshTokenSource) Token(ctx context.Context) (Token, error) {
	form := url.Values{
		"client_id":     {s.creds.ClientID},
		"client_secret": {s.creds.ClientSecret},
		"refresh_token": {s.creds.RefreshToken},
		"grant_type":    {grantTypeRefreshToken},
	}
	return exchange(ctx, s.client, s.tokenURL, form, s.logger)
}

// assertionTokenSource exchanges a signed JWT assertion for an access token.
type assertionTokenSource struct {
	signer   *AssertionSigner
	tokenURL string
	client   *http.Client
	logger   zerolog.Logger
}

func (s *assertionTokenSource) Token(ctx context.Context) (Token, error) {
	assertion, err := s.signer.Sign(time.Now().UTC())
	if err != nil {
		return Token{}, err
	}

	form := url.Values{
		"grant_type": {grantTypeJWTBearer},
		"assertion":  {assertion},
	}
	return exchange(ctx, s.client, s.tokenURL, form, s.logger)
}

// exchange posts a form-encoded grant to the token endpoint. Both strategies
// share this call shape; only the form differs.
func exchange(ctx context.Context, client *http.Client, tokenURL string, form url.Values, logger zerolog.Logger) (Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return Token{}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return Token{}, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Token{}, &TokenExchangeError{Status: resp.StatusCode, Body: strings.TrimSpace(string(payload))}
	}

	// The token structure is trusted as-is; only access_token and expires_in
	// are read.
	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return Token{}, &TokenExchangeError{Status: resp.StatusCode, Body: "malformed token response"}
	}
	if body.AccessToken == "" {
		return Token{}, &TokenExchangeError{Status: resp.StatusCode, Body: "token response missing access_token"}
	}

	lifetime := tokenLifetime
	if body.ExpiresIn > 0 {
		lifetime = time.Duration(body.ExpiresIn) * time.Second
	}

	logger.Debug().Dur("lifetime", lifetime).Msg("access token acquired")

	return Token{
		Value:     body.AccessToken,
		ExpiresAt: time.Now().UTC().Add(lifetime),
	}, nil
}

// CachingTokenSource reuses a token until shortly before expiry. At most one
// refresh is in flight at a time; each caching source is scoped to a single
// credential identity by construction.
type CachingTokenSource struct {
	src TokenSource

	mu  sync.Mutex
	tok Token
}

// NewCachingTokenSource wraps src with a per-credential token cache.
func NewCachingTokenSource(src TokenSource) *CachingTokenSource {
	return &CachingTokenSource{src: src}
}

// Token returns the cached token when still valid, refreshing otherwise.
func (c *CachingTokenSource) Token(ctx context.Context) (Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tok.Valid(time.Now().UTC()) {
		return c.tok, nil
	}

	tok, err := c.src.Token(ctx)
	if err != nil {
		return Token{}, err
	}
	c.tok = tok
	return tok, nil
}
