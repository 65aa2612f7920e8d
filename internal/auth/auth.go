// Package auth logs in to the Time Doctor API and caches the resulting
// token on disk.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// TokenType is the Authorization scheme Time Doctor expects.
const TokenType = "JWT"

// DefaultTTL is how long a login token is trusted when the API does not
// say otherwise.
const DefaultTTL = 180 * 24 * time.Hour

// Provider is an oauth2.TokenSource backed by Time Doctor password login.
type Provider struct {
	client    *resty.Client
	email     string
	password  string
	cachePath string
	ttl       time.Duration
	logger    *zap.Logger

	mu  sync.Mutex
	now func() time.Time
}

// Options configures a Provider.
type Options struct {
	Email    string
	Password string
	// CachePath is where the token is stored between runs. Empty disables caching.
	CachePath string
	TTL       time.Duration
}

// NewProvider creates a Provider that logs in through client, which must
// have the API base URL set.
func NewProvider(client *resty.Client, opts Options, logger *zap.Logger) *Provider {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	return &Provider{
		client:    client,
		email:     opts.Email,
		password:  opts.Password,
		cachePath: opts.CachePath,
		ttl:       opts.TTL,
		logger:    logger,
		now:       time.Now,
	}
}

type loginRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Permissions string `json:"permissions"`
}

type loginResponse struct {
	Data struct {
		Token     string `json:"token"`
		ExpiresAt string `json:"expiresAt"`
	} `json:"data"`
}

// Token returns the cached token when still valid, logging in otherwise.
func (p *Provider) Token() (*oauth2.Token, error) {
	return p.TokenContext(context.Background())
}

// TokenContext is Token with a context for the login request.
func (p *Provider) TokenContext(ctx context.Context) (*oauth2.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tok, err := p.loadToken()
	if err != nil {
		// Corrupt cache; log in again.
		p.logger.Warn("ignoring token cache", zap.Error(err))
		tok = nil
	}
	if tok != nil && tok.Valid() && tok.Expiry.After(p.now()) {
		return tok, nil
	}
	return p.login(ctx)
}

// Login performs a fresh login and replaces the cached token.
func (p *Provider) Login(ctx context.Context) (*oauth2.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.login(ctx)
}

func (p *Provider) login(ctx context.Context) (*oauth2.Token, error) {
	var out loginResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(loginRequest{Email: p.email, Password: p.password, Permissions: "read"}).
		SetResult(&out).
		Post("/login")
	if err != nil {
		return nil, fmt.Errorf("time doctor login: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("time doctor login: status %d: %s", resp.StatusCode(), resp.String())
	}
	if out.Data.Token == "" {
		return nil, fmt.Errorf("time doctor login: response carried no token")
	}

	expiry := p.now().Add(p.ttl)
	if out.Data.ExpiresAt != "" {
		if t, err := time.Parse(time.RFC3339, out.Data.ExpiresAt); err == nil && t.Before(expiry) {
			expiry = t
		}
	}
	tok := &oauth2.Token{AccessToken: out.Data.Token, TokenType: TokenType, Expiry: expiry}

	if err := p.saveToken(tok); err != nil {
		p.logger.Warn("could not save token", zap.Error(err))
	}
	p.logger.Info("logged in to time doctor", zap.Time("expires", expiry))
	return tok, nil
}

// TokenSource returns a source that reuses the token in memory and only
// consults the cache or logs in once it expires.
func (p *Provider) TokenSource(ctx context.Context) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(nil, contextSource{ctx: ctx, p: p})
}

// HTTPClient returns a client that authorizes every request.
func (p *Provider) HTTPClient(ctx context.Context) *http.Client {
	return oauth2.NewClient(ctx, p.TokenSource(ctx))
}

type contextSource struct {
	ctx context.Context
	p   *Provider
}

func (s contextSource) Token() (*oauth2.Token, error) {
	return s.p.TokenContext(s.ctx)
}

// loadToken loads a previously saved token from disk.
func (p *Provider) loadToken() (*oauth2.Token, error) {
	if p.cachePath == "" {
		return nil, nil
	}
	data, err := os.ReadFile(p.cachePath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading token file: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("corrupt token file (delete %s to log in again): %w", p.cachePath, err)
	}
	return &tok, nil
}

// saveToken persists a token to disk.
func (p *Provider) saveToken(tok *oauth2.Token) error {
	if p.cachePath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(p.cachePath), 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling token: %w", err)
	}
	tmpPath := p.cachePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	if err := os.Rename(tmpPath, p.cachePath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("saving token file: %w", err)
	}
	return nil
}
