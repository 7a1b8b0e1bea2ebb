package sheets

import (
	"strings"

	"ibex-sync/internal/config"
)

// AuthStrategy identifies how an access token is obtained.
type AuthStrategy string

const (
	// StrategyOAuthRefresh exchanges a long-lived refresh token.
	StrategyOAuthRefresh AuthStrategy = "oauth-refresh"
	// StrategyServiceAccount exchanges a signed JWT assertion.
	StrategyServiceAccount AuthStrategy = "service-account"
)

// Credentials is the resolved credential set for exactly one auth strategy.
// It is request-scoped input to the pipeline and never persisted.
type Credentials struct {
	Strategy AuthStrategy
	SheetID  string

	// StrategyOAuthRefresh
	ClientID     string
	ClientSecret string
	RefreshToken string

	// StrategyServiceAccount
	ServiceAccountEmail string
	PrivateKeyBase64    string
}

// Identity returns a stable key for this credential set, used to scope the
// token cache.
func (c Credentials) Identity() string {
	switch c.Strategy {
	case StrategyServiceAccount:
		return string(c.Strategy) + ":" + c.ServiceAccountEmail + ":" + c.SheetID
	default:
		return string(c.Strategy) + ":" + c.ClientID + ":" + c.SheetID
	}
}

// ResolveCredentials selects the auth strategy from whichever credential
// variant is fully populated. The sheet identifier is always required. When
// both variants are complete the service-account variant wins, since headless
// access is what the sync endpoint is built for.
func ResolveCredentials(cfg config.SheetsConfig) (Credentials, error) {
	missing := make([]string, 0, 4)

	if strings.TrimSpace(cfg.SheetID) == "" {
		missing = append(missing, "IBEXSYNC_SHEETS_SHEET_ID")
	}

	serviceAccount := cfg.ServiceAccountEmail != "" && cfg.PrivateKeyBase64 != ""
	oauthRefresh := cfg.ClientID != "" && cfg.ClientSecret != "" && cfg.RefreshToken != ""

	if !serviceAccount && !oauthRefresh {
		missing = append(missing,
			"IBEXSYNC_SHEETS_SERVICE_ACCOUNT_EMAIL and IBEXSYNC_SHEETS_PRIVATE_KEY_BASE64 (or IBEXSYNC_SHEETS_CLIENT_ID, IBEXSYNC_SHEETS_CLIENT_SECRET and IBEXSYNC_SHEETS_REFRESH_TOKEN)",
		)
	}

	if len(missing) > 0 {
		return Credentials{}, &ConfigurationError{Missing: missing}
	}

	if serviceAccount {
		return Credentials{
			Strategy:            StrategyServiceAccount,
			SheetID:             cfg.SheetID,
			ServiceAccountEmail: cfg.ServiceAccountEmail,
			PrivateKeyBase64:    cfg.PrivateKeyBase64,
		}, nil
	}

	return Credentials{
		Strategy:     StrategyOAuthRefresh,
		SheetID:      cfg.SheetID,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RefreshToken: cfg.RefreshToken,
	}, nil
}
