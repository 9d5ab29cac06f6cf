package auth

import (
	"fmt"
	"time"

	"github.com/tonimelisma/freta/internal/credfile"
)

// Credential is one of Unauthenticated, ClientCredentials or DeviceCode.
// A refresh always yields the same variant it started from.
type Credential interface {
	kind() string
}

// Unauthenticated is used against a local development backend.
type Unauthenticated struct{}

// ClientCredentials is a service-principal login. The secret is kept so the
// exchange can be repeated when the access token expires.
type ClientCredentials struct {
	AccessToken  string
	ClientSecret string
	ExpiresOn    time.Time
}

// DeviceCode is an interactive user login.
type DeviceCode struct {
	AccessToken  string
	RefreshToken string
	ExpiresOn    time.Time
}

func (Unauthenticated) kind() string   { return credfile.KindNone }
func (ClientCredentials) kind() string { return credfile.KindClientCredentials }
func (DeviceCode) kind() string        { return credfile.KindDeviceCode }

// accessToken returns the bearer value and expiry of c.
func accessToken(c Credential) (string, time.Time) {
	switch v := c.(type) {
	case ClientCredentials:
		return v.AccessToken, v.ExpiresOn
	case DeviceCode:
		return v.AccessToken, v.ExpiresOn
	default:
		return "", time.Time{}
	}
}

func toFile(clientID string, c Credential) *credfile.File {
	f := &credfile.File{ClientID: clientID, Kind: c.kind()}

	switch v := c.(type) {
	case ClientCredentials:
		f.AccessToken = v.AccessToken
		f.ClientSecret = v.ClientSecret
		f.ExpiresOn = v.ExpiresOn
	case DeviceCode:
		f.AccessToken = v.AccessToken
		f.RefreshToken = v.RefreshToken
		f.ExpiresOn = v.ExpiresOn
	}

	return f
}

func fromFile(f *credfile.File) (Credential, error) {
	switch f.Kind {
	case credfile.KindNone:
		return Unauthenticated{}, nil
	case credfile.KindClientCredentials:
		return ClientCredentials{
			AccessToken:  f.AccessToken,
			ClientSecret: f.ClientSecret,
			ExpiresOn:    f.ExpiresOn,
		}, nil
	case credfile.KindDeviceCode:
		return DeviceCode{
			AccessToken:  f.AccessToken,
			RefreshToken: f.RefreshToken,
			ExpiresOn:    f.ExpiresOn,
		}, nil
	default:
		return nil, fmt.Errorf("auth: unknown credential kind %q", f.Kind)
	}
}
