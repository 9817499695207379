// Package idp obtains an identity-provider credential (a Google ID token)
// for the backend's provider login. The backend treats the credential as
// opaque; this package only fetches it.
package idp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

var (
	ErrNoCredential          = errors.New("no provider credential configured")
	ErrDeviceFlowUnsupported = errors.New("identity provider does not support device authorization")
	ErrNoIDToken             = errors.New("token response has no id_token")
	errMissingClientID       = errors.New("provider client id is required")
)

// CredentialSource yields a credential to forward to the backend.
type CredentialSource interface {
	Credential(ctx context.Context) (string, error)
}

// Static is a pre-obtained credential, e.g. from ASTROSHARE_GOOGLE_CREDENTIAL.
type Static string

func (s Static) Credential(context.Context) (string, error) {
	if s == "" {
		return "", ErrNoCredential
	}
	return string(s), nil
}

// DevicePrompt is what the user needs to approve a device login.
type DevicePrompt struct {
	VerificationURI string
	UserCode        string
	Expires         time.Time
}

// GoogleConfig configures the device flow.
type GoogleConfig struct {
	Issuer       string
	ClientID     string
	ClientSecret string
}

// Select returns the source for the configured provider login: the static
// credential when one is set, otherwise the device flow when a client id is
// configured. It returns nil when provider login is not configured.
func Select(static string, cfg GoogleConfig, prompt func(DevicePrompt), log zerolog.Logger) CredentialSource {
	if static != "" {
		return Static(static)
	}
	if cfg.ClientID == "" {
		return nil
	}
	return NewGoogle(cfg, prompt, log)
}

// Google runs the OAuth 2.0 device authorization flow against the issuer
// discovered through OpenID Connect and returns the verified ID token.
type Google struct {
	cfg    GoogleConfig
	prompt func(DevicePrompt)
	log    zerolog.Logger
}

// NewGoogle creates a device-flow source. prompt is called once the user
// code is known and must not block.
func NewGoogle(cfg GoogleConfig, prompt func(DevicePrompt), log zerolog.Logger) *Google {
	return &Google{cfg: cfg, prompt: prompt, log: log}
}

func (g *Google) Credential(ctx context.Context) (string, error) {
	if g.cfg.ClientID == "" {
		return "", errMissingClientID
	}

	provider, err := oidc.NewProvider(ctx, g.cfg.Issuer)
	if err != nil {
		return "", fmt.Errorf("discovering %s: %w", g.cfg.Issuer, err)
	}

	conf := &oauth2.Config{
		ClientID:     g.cfg.ClientID,
		ClientSecret: g.cfg.ClientSecret,
		Endpoint:     provider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}
	if conf.Endpoint.DeviceAuthURL == "" {
		return "", ErrDeviceFlowUnsupported
	}

	da, err := conf.DeviceAuth(ctx)
	if err != nil {
		return "", fmt.Errorf("starting device authorization: %w", err)
	}
	g.log.Debug().Str("verification_uri", da.VerificationURI).Msg("device authorization started")

	if g.prompt != nil {
		g.prompt(DevicePrompt{
			VerificationURI: da.VerificationURI,
			UserCode:        da.UserCode,
			Expires:         da.Expiry,
		})
	}

	tok, err := conf.DeviceAccessToken(ctx, da)
	if err != nil {
		return "", fmt.Errorf("waiting for device approval: %w", err)
	}

	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return "", ErrNoIDToken
	}

	idToken, err := provider.Verifier(&oidc.Config{ClientID: g.cfg.ClientID}).Verify(ctx, rawIDToken)
	if err != nil {
		return "", fmt.Errorf("verifying id token: %w", err)
	}
	g.log.Debug().Str("subject", idToken.Subject).Msg("provider credential obtained")

	return rawIDToken, nil
}
