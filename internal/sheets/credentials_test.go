package sheets

import (
	"errors"
	"strings"
	"testing"

	"ibex-sync/internal/config"
)

func TestResolveCredentialsMissingSheetID(t *testing.T) {
	cfg := config.SheetsConfig{
		ClientID:     "id",
		ClientSecret: "secret",
		RefreshToken: "refresh",
	}

	_, err := ResolveCredentials(cfg)
	if err == nil {
		t.Fatal("missing sheet id must fail resolution")
	}

	var confErr *ConfigurationError
	if !errors.As(err, &confErr) {
		t.Fatalf("expected ConfigurationError, got %T", err)
	}
	if !strings.Contains(err.Error(), "SHEET_ID") {
		t.Fatalf("error should name the sheet id variable: %v", err)
	}
}

func TestResolveCredentialsNoVariantComplete(t *testing.T) {
	cfg := config.SheetsConfig{
		SheetID:  "sheet-1",
		ClientID: "id",
		// client secret and refresh token absent; no service account either
	}

	_, err := ResolveCredentials(cfg)
	if err == nil {
		t.Fatal("incomplete credential variants must fail resolution")
	}
	if !strings.Contains(err.Error(), "SERVICE_ACCOUNT_EMAIL") || !strings.Contains(err.Error(), "CLIENT_ID") {
		t.Fatalf("error should hint at both variants: %v", err)
	}
}

func TestResolveCredentialsOAuthVariant(t *testing.T) {
	cfg := config.SheetsConfig{
		SheetID:      "sheet-1",
		ClientID:     "id",
		ClientSecret: "secret",
		RefreshToken: "refresh",
	}

	creds, err := ResolveCredentials(cfg)
	if err != nil {
		t.Fatalf("complete oauth variant should resolve: %v", err)
	}
	if creds.Strategy != StrategyOAuthRefresh {
		t.Fatalf("expected oauth-refresh strategy, got %s", creds.Strategy)
	}
	if creds.SheetID != "sheet-1" || creds.RefreshToken != "refresh" {
		t.Fatalf("credential fields not carried over: %#v", creds)
	}
}

func TestResolveCredentialsServiceAccountWins(t *testing.T) {
	cfg := config.SheetsConfig{
		SheetID:             "sheet-1",
		ClientID:            "id",
		ClientSecret:        "secret",
		RefreshToken:        "refresh",
		ServiceAccountEmail: "svc@example.iam",
		PrivateKeyBase64:    "key",
	}

	creds, err := ResolveCredentials(cfg)
	if err != nil {
		t.Fatalf("resolution should succeed: %v", err)
	}
	if creds.Strategy != StrategyServiceAccount {
		t.Fatalf("service account should win when both variants are complete, got %s", creds.Strategy)
	}
}

func TestCredentialIdentityDiffersByStrategy(t *testing.T) {
	a := Credentials{Strategy: StrategyOAuthRefresh, ClientID: "x", SheetID: "s"}
	b := Credentials{Strategy: StrategyServiceAccount, ServiceAccountEmail: "x", SheetID: "s"}
	if a.Identity() == b.Identity() {
		t.Fatal("identities must differ across strategies")
	}
}
