package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	deviceGrantType           = "urn:ietf:params:oauth:grant-type:device_code"
	defaultPollInterval       = 5 * time.Second
	defaultDeviceCodeLifetime = 15 * time.Minute
	slowDownIncrement         = 5 * time.Second
	maxTokenResponseBytes     = 1 << 20
)

// OAuth error codes with special handling during device polling.
const (
	errCodeAuthorizationPending = "authorization_pending"
	errCodeSlowDown             = "slow_down"
)

func (m *Manager) clientCredentials(ctx context.Context, secret string) (Credential, error) {
	cfg := clientcredentials.Config{
		ClientID:     m.settings.ClientID,
		ClientSecret: secret,
		TokenURL:     m.endpoint.TokenURL,
		Scopes:       []string{m.settings.Scope},
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	issued := m.now()

	tok, err := cfg.Token(m.withHTTPClient(ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: client credentials exchange: %w", ErrAuth, err)
	}

	expiresOn, err := expiryFrom(tok, issued)
	if err != nil {
		return nil, err
	}

	m.logger.Info("client credentials login succeeded", slog.Time("expires_on", expiresOn))

	return ClientCredentials{
		AccessToken:  tok.AccessToken,
		ClientSecret: secret,
		ExpiresOn:    expiresOn,
	}, nil
}

func (m *Manager) deviceConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID: m.settings.ClientID,
		Endpoint: m.endpoint,
		Scopes:   []string{m.settings.Scope, "offline_access"},
	}
}

func (m *Manager) refreshDevice(ctx context.Context, refreshToken string) (Credential, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token", ErrAuth)
	}

	issued := m.now()
	src := m.deviceConfig().TokenSource(m.withHTTPClient(ctx), &oauth2.Token{RefreshToken: refreshToken})

	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: refresh token exchange: %w", ErrAuth, err)
	}

	expiresOn, err := expiryFrom(tok, issued)
	if err != nil {
		return nil, err
	}

	return DeviceCode{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresOn:    expiresOn,
	}, nil
}

// deviceFlow requests a device code, shows the sign-in instructions and
// polls the token endpoint until the user finishes, declines, or the code
// expires.
func (m *Manager) deviceFlow(ctx context.Context) (Credential, error) {
	start := m.now()

	da, err := m.deviceConfig().DeviceAuth(m.withHTTPClient(ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: requesting device code: %w", ErrAuth, err)
	}

	fmt.Fprintf(m.settings.Prompt,
		"To sign in, use a web browser to open the page %s and enter the code %s to authenticate.\n",
		da.VerificationURI, da.UserCode)

	// oauth2 turns expires_in into a wall-clock Expiry; convert it back to a
	// lifetime so the deadline follows m.now.
	lifetime := defaultDeviceCodeLifetime
	if !da.Expiry.IsZero() {
		lifetime = da.Expiry.Sub(time.Now()).Round(time.Second)
	}

	deadline := start.Add(lifetime)

	interval := time.Duration(da.Interval) * time.Second
	if interval <= 0 {
		interval = defaultPollInterval
	}

	m.logger.Info("device code received, waiting for user authorization",
		slog.Duration("interval", interval),
		slog.Time("deadline", deadline),
	)

	for {
		if !m.now().Before(deadline) {
			return nil, fmt.Errorf("%w: device code expired before authorization", ErrAuth)
		}

		if err := m.sleep(ctx, interval); err != nil {
			return nil, err
		}

		issued := m.now()

		tr, err := m.exchangeDeviceCode(ctx, da.DeviceCode)
		if err == nil {
			return tr.deviceCredential(issued)
		}

		var re *oauth2.RetrieveError
		if !errors.As(err, &re) {
			m.logger.Debug("device token poll failed, retrying", slog.String("error", err.Error()))

			continue
		}

		switch re.ErrorCode {
		case errCodeAuthorizationPending:
		case errCodeSlowDown:
			interval += slowDownIncrement
			m.logger.Debug("slowing down device polling", slog.Duration("interval", interval))
		default:
			return nil, fmt.Errorf("%w: device authorization: %w", ErrAuth, err)
		}
	}
}

// tokenResponse is the token endpoint payload, success or error.
type tokenResponse struct {
	AccessToken      string          `json:"access_token"`
	RefreshToken     string          `json:"refresh_token"`
	TokenType        string          `json:"token_type"`
	ExpiresIn        json.RawMessage `json:"expires_in"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

func (tr *tokenResponse) deviceCredential(issued time.Time) (Credential, error) {
	secs, ok := parseSeconds(string(tr.ExpiresIn))
	if !ok {
		return nil, ErrInvalidToken
	}

	return DeviceCode{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresOn:    issued.Add(time.Duration(secs) * time.Second),
	}, nil
}

// exchangeDeviceCode makes a single device_code grant request. OAuth errors
// come back as *oauth2.RetrieveError with ErrorCode set.
func (m *Manager) exchangeDeviceCode(ctx context.Context, deviceCode string) (*tokenResponse, error) {
	form := url.Values{
		"grant_type":  {deviceGrantType},
		"device_code": {deviceCode},
		"client_id":   {m.settings.ClientID},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("auth: building token request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("auth: reading token response: %w", err)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("auth: decoding token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || tr.Error != "" {
		return nil, &oauth2.RetrieveError{
			Response:         resp,
			Body:             body,
			ErrorCode:        tr.Error,
			ErrorDescription: tr.ErrorDescription,
		}
	}

	return &tr, nil
}

// expiryFrom computes the absolute expiry of tok relative to issued, the
// time captured before the request was sent.
func expiryFrom(tok *oauth2.Token, issued time.Time) (time.Time, error) {
	var raw string

	switch v := tok.Extra("expires_in").(type) {
	case float64:
		raw = strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		raw = v
	case json.Number:
		raw = v.String()
	}

	if secs, ok := parseSeconds(raw); ok {
		return issued.Add(time.Duration(secs) * time.Second), nil
	}

	return time.Time{}, ErrInvalidToken
}

// parseSeconds accepts expires_in as a JSON number or a quoted number.
func parseSeconds(raw string) (int64, bool) {
	raw = strings.Trim(strings.TrimSpace(raw), `"`)
	if raw == "" {
		return 0, false
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f <= 0 {
		return 0, false
	}

	return int64(f), true
}
