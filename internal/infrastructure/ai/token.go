package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/storyloom/storyloom-go/internal/domain"
	"github.com/storyloom/storyloom-go/internal/infrastructure/observability/logging"
)

const (
	tokenScope     = "https://www.googleapis.com/auth/cloud-platform"
	jwtBearerGrant = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	tokenLifetime  = time.Hour
)

// AccessToken is a short-lived bearer token owned by one orchestration run.
type AccessToken struct {
	Value      string
	ObtainedAt time.Time
}

// TokenProvider exchanges a signed JWT assertion for a bearer access token.
// Each call performs one network round-trip; there is no caching, so every
// orchestration run re-authenticates.
type TokenProvider struct {
	httpClient *http.Client
	logger     *logging.ChanneledLogger
	now        func() time.Time
}

// NewTokenProvider creates a token provider using the given HTTP client.
func NewTokenProvider(httpClient *http.Client, logger *logging.ChanneledLogger) *TokenProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &TokenProvider{
		httpClient: httpClient,
		logger:     logger,
		now:        time.Now,
	}
}

// Token builds and signs the RS256 JWT assertion for the service account and
// exchanges it at the OAuth2 token endpoint. Any failure is an AuthError:
// credential and config problems are not transient, so nothing here retries.
func (p *TokenProvider) Token(ctx context.Context, sa *ServiceAccount) (*AccessToken, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(sa.PrivateKey))
	if err != nil {
		return nil, &domain.AuthError{Op: "parse private key", Err: err}
	}

	now := p.now().UTC()
	claims := jwt.MapClaims{
		"iss":   sa.ClientEmail,
		"scope": tokenScope,
		"aud":   sa.TokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(tokenLifetime).Unix(),
	}

	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return nil, &domain.AuthError{Op: "sign assertion", Err: err}
	}

	form := url.Values{}
	form.Set("grant_type", jwtBearerGrant)
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sa.TokenURI, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &domain.AuthError{Op: "build token request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &domain.AuthError{Op: "token exchange", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.AuthError{Op: "read token response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.AuthError{
			Op:  "token exchange",
			Err: fmt.Errorf("token endpoint returned HTTP %d", resp.StatusCode),
		}
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &domain.AuthError{Op: "parse token response", Err: err}
	}
	if parsed.AccessToken == "" {
		return nil, &domain.AuthError{
			Op:  "parse token response",
			Err: fmt.Errorf("token endpoint response has no access_token"),
		}
	}

	if p.logger != nil {
		p.logger.Auth().Info("Obtained access token", "account", sa.ClientEmail, "expiresIn", parsed.ExpiresIn)
	}

	return &AccessToken{Value: parsed.AccessToken, ObtainedAt: now}, nil
}
