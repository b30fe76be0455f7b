// Package ai provides the Vertex AI infrastructure for storyboard
// generation: service-account credentials, the OAuth2 JWT-bearer token
// exchange, and the text and image generation clients.
package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

const defaultTokenURI = "https://oauth2.googleapis.com/token"

// ServiceAccount holds the parsed service-account credential blob. The
// private key is sensitive: it stays in memory, is never logged, and is
// only ever handed to the token provider.
type ServiceAccount struct {
	Type        string `json:"type"`
	ProjectID   string `json:"project_id"`
	PrivateKey  string `json:"private_key"`
	ClientEmail string `json:"client_email"`
	TokenURI    string `json:"token_uri"`
}

// Some hosting providers mangle JSON-valued environment variables: keys and
// values arrive single-quoted or keys arrive bare. These patterns repair the
// quoting back to strict JSON; the result still goes through the same shape
// validation as the strict path.
var (
	singleQuotedKey   = regexp.MustCompile(`([{,]\s*)'([^']+)'(\s*:)`)
	singleQuotedValue = regexp.MustCompile(`(:\s*)'((?:[^'\\]|\\.)*)'`)
	bareKey           = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)(\s*:)`)
)

// LoadCredentials parses a service-account credential blob. Strict JSON is
// tried first; on failure a quote-repair pass is applied and the result is
// re-parsed. Either way the parsed object must carry client_email and
// private_key or loading fails.
func LoadCredentials(raw string) (*ServiceAccount, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("service account credentials are not configured")
	}

	sa := &ServiceAccount{}
	if err := json.Unmarshal([]byte(raw), sa); err != nil {
		repaired := repairQuoting(raw)
		if repairErr := json.Unmarshal([]byte(repaired), sa); repairErr != nil {
			return nil, fmt.Errorf("service account blob is not valid JSON: %w", err)
		}
	}

	if err := sa.validate(); err != nil {
		return nil, err
	}

	// Env vars often carry the key with literal \n sequences.
	sa.PrivateKey = strings.ReplaceAll(sa.PrivateKey, `\n`, "\n")

	if sa.TokenURI == "" {
		sa.TokenURI = defaultTokenURI
	}

	return sa, nil
}

func (sa *ServiceAccount) validate() error {
	if sa.ClientEmail == "" {
		return fmt.Errorf("service account blob is missing client_email")
	}
	if sa.PrivateKey == "" {
		return fmt.Errorf("service account blob is missing private_key")
	}
	return nil
}

func repairQuoting(raw string) string {
	// Strip a stray outer quoting layer first.
	if len(raw) >= 2 {
		first, last := raw[0], raw[len(raw)-1]
		if (first == '\'' && last == '\'') || (first == '"' && last == '"') {
			inner := strings.TrimSpace(raw[1 : len(raw)-1])
			if strings.HasPrefix(inner, "{") {
				raw = inner
			}
		}
	}

	raw = singleQuotedKey.ReplaceAllString(raw, `$1"$2"$3`)
	raw = singleQuotedValue.ReplaceAllString(raw, `$1"$2"`)
	raw = bareKey.ReplaceAllString(raw, `$1"$2"$3`)
	return raw
}
