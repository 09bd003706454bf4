package config

import (
	"strings"
)

// Key is one of the recognized client configuration keys.
type Key string

const (
	KeyAPIUser     Key = "apiUser"
	KeyAPIKey      Key = "apiKey"
	KeyUsername    Key = "username"
	KeyPassword    Key = "password"
	KeyPasskey     Key = "passkey"
	KeyBaseURL     Key = "baseUrl"
	KeyCookiesFile Key = "cookiesFile"
	KeyRetry       Key = "retry"
)

// EnvPrefix is prepended to the upper-cased key name to form the environment
// variable, e.g. PTP_APIUSER.
const EnvPrefix = "PTP_"

// Defaults
const (
	DefaultBaseURL     = "https://passthepopcorn.me/"
	DefaultCookiesFile = ".cookies"
	DefaultRetry       = true
)

// Keys lists every recognized key in declaration order.
var Keys = []Key{
	KeyAPIUser,
	KeyAPIKey,
	KeyUsername,
	KeyPassword,
	KeyPasskey,
	KeyBaseURL,
	KeyCookiesFile,
	KeyRetry,
}

// RequiredKeys is a named set of keys that must all be present.
type RequiredKeys []Key

var (
	// APIAuthKeys are required for API-key authentication.
	APIAuthKeys = RequiredKeys{KeyAPIUser, KeyAPIKey}
	// PasswordAuthKeys are required for password authentication.
	PasswordAuthKeys = RequiredKeys{KeyUsername, KeyPassword, KeyPasskey}
)

// EnvVar returns the environment variable name for the key.
func (k Key) EnvVar() string {
	return EnvPrefix + strings.ToUpper(string(k))
}

// IsBool reports whether the key holds a boolean.
func (k Key) IsBool() bool {
	return k == KeyRetry
}

// Secret reports whether the key holds a credential.
func (k Key) Secret() bool {
	switch k {
	case KeyAPIKey, KeyPassword, KeyPasskey:
		return true
	}
	return false
}

// ParseKey maps a key name to a Key. Matching is case-insensitive because
// configuration files come back from viper lower-cased.
func ParseKey(name string) (Key, bool) {
	for _, k := range Keys {
		if strings.EqualFold(string(k), name) {
			return k, true
		}
	}
	return "", false
}
