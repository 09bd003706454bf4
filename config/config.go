package config

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/s0up4200/ptpapi/apierr"
)

// Sources are the layers a Config is resolved from. Later layers win:
// built-in defaults, then File, then Env, then Explicit.
type Sources struct {
	// Env holds environment variables by name (see Environ). Only PTP_*
	// variables for recognized keys are read.
	Env map[string]string
	// File holds the "ptp" section of an application config file.
	File map[string]any
	// Explicit holds caller-supplied values by key name (apiUser, retry, ...).
	Explicit map[string]any
}

// Config is the resolved client configuration. It is safe for concurrent use.
type Config struct {
	mu sync.RWMutex
	v  *viper.Viper
}

// Settings is a typed snapshot of a Config.
type Settings struct {
	APIUser     string `mapstructure:"apiUser"`
	APIKey      string `mapstructure:"apiKey"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	Passkey     string `mapstructure:"passkey"`
	BaseURL     string `mapstructure:"baseUrl"`
	CookiesFile string `mapstructure:"cookiesFile"`
	Retry       bool   `mapstructure:"retry"`
}

// Resolve builds a Config from defaults and the given sources. Unknown keys
// and empty values are ignored.
func Resolve(src Sources) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	layer := make(map[string]any)
	for name, raw := range src.File {
		key, ok := ParseKey(name)
		if !ok {
			continue
		}
		if val, ok := parseValue(key, raw); ok {
			layer[string(key)] = val
		}
	}
	for _, key := range Keys {
		raw, ok := src.Env[key.EnvVar()]
		if !ok {
			continue
		}
		if val, ok := parseValue(key, raw); ok {
			layer[string(key)] = val
		}
	}
	if len(layer) > 0 {
		if err := v.MergeConfigMap(layer); err != nil {
			return nil, fmt.Errorf("error merging configuration: %w", err)
		}
	}

	for name, raw := range src.Explicit {
		key, ok := ParseKey(name)
		if !ok {
			continue
		}
		if val, ok := parseValue(key, raw); ok {
			v.Set(string(key), val)
		}
	}

	return &Config{v: v}, nil
}

// FromEnvironment resolves a Config from defaults and the process environment.
func FromEnvironment(explicit map[string]any) (*Config, error) {
	return Resolve(Sources{
		Env:      Environ(os.Environ()),
		Explicit: explicit,
	})
}

// Environ converts KEY=value pairs, as returned by os.Environ, into a map.
func Environ(pairs []string) map[string]string {
	env := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		env[name] = value
	}
	return env
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault(string(KeyBaseURL), DefaultBaseURL)
	v.SetDefault(string(KeyCookiesFile), DefaultCookiesFile)
	v.SetDefault(string(KeyRetry), DefaultRetry)
}

// parseValue applies per-key parsing. It reports false for values that
// should not be layered (empty strings, nil, unconvertible types).
func parseValue(key Key, raw any) (any, bool) {
	if raw == nil {
		return nil, false
	}

	if key.IsBool() {
		if b, ok := raw.(bool); ok {
			return b, true
		}
		s, err := cast.ToStringE(raw)
		if err != nil {
			return nil, false
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, false
		}
		return strings.EqualFold(s, "true"), true
	}

	s, err := cast.ToStringE(raw)
	if err != nil || s == "" {
		return nil, false
	}
	if key == KeyBaseURL {
		s = normalizeURL(s)
	}
	return s, true
}

// normalizeURL makes sure the URL ends with exactly one slash.
func normalizeURL(raw string) string {
	return strings.TrimRight(raw, "/") + "/"
}

// Get returns the value for key. Missing keys and empty strings are absent.
func (c *Config) Get(key Key) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.lookup(key)
}

func (c *Config) lookup(key Key) (any, bool) {
	if !c.v.IsSet(string(key)) {
		return nil, false
	}
	if key.IsBool() {
		return c.v.GetBool(string(key)), true
	}
	s := c.v.GetString(string(key))
	if s == "" {
		return nil, false
	}
	return s, true
}

// GetString returns a string value for key.
func (c *Config) GetString(key Key) (string, bool) {
	val, ok := c.Get(key)
	if !ok {
		return "", false
	}
	s, ok := val.(string)
	return s, ok
}

// GetBool returns a boolean value for key, false when absent.
func (c *Config) GetBool(key Key) bool {
	val, ok := c.Get(key)
	if !ok {
		return false
	}
	b, _ := val.(bool)
	return b
}

// GetRequired returns the value for key or a config validation error.
func (c *Config) GetRequired(key Key) (any, error) {
	val, ok := c.Get(key)
	if !ok {
		return nil, apierr.ConfigValidation(string(key))
	}
	return val, nil
}

// GetRequiredString is GetRequired for string keys.
func (c *Config) GetRequiredString(key Key) (string, error) {
	s, ok := c.GetString(key)
	if !ok {
		return "", apierr.ConfigValidation(string(key))
	}
	return s, nil
}

// Has reports whether every given key is present.
func (c *Config) Has(keys ...Key) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, key := range keys {
		if _, ok := c.lookup(key); !ok {
			return false
		}
	}
	return true
}

// Set overwrites a single key. The value must convert to the key's type.
func (c *Config) Set(key Key, value any) error {
	if _, known := ParseKey(string(key)); !known {
		return fmt.Errorf("unknown configuration key: %s", key)
	}

	var val any
	if key.IsBool() {
		switch b := value.(type) {
		case bool:
			val = b
		case string:
			val = strings.EqualFold(strings.TrimSpace(b), "true")
		default:
			return fmt.Errorf("configuration key %s expects a boolean, got %T", key, value)
		}
	} else {
		s, err := cast.ToStringE(value)
		if err != nil {
			return fmt.Errorf("configuration key %s expects a string: %w", key, err)
		}
		if key == KeyBaseURL && s != "" {
			s = normalizeURL(s)
		}
		val = s
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.v.Set(string(key), val)
	return nil
}

// Validate returns a config validation error listing every missing key of
// the required set, in declaration order.
func (c *Config) Validate(required RequiredKeys) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var missing []string
	for _, key := range required {
		if _, ok := c.lookup(key); !ok {
			missing = append(missing, string(key))
		}
	}
	if len(missing) > 0 {
		return apierr.ConfigValidation(missing...)
	}
	return nil
}

// ValidateAPIAuth validates the API-key authentication key set.
func (c *Config) ValidateAPIAuth() error {
	return c.Validate(APIAuthKeys)
}

// ValidatePasswordAuth validates the password authentication key set.
func (c *Config) ValidatePasswordAuth() error {
	return c.Validate(PasswordAuthKeys)
}

// Settings returns a typed snapshot of the configuration.
func (c *Config) Settings() (Settings, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var s Settings
	if err := c.v.Unmarshal(&s); err != nil {
		return s, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return s, nil
}

// Redacted returns the settings as a map with credentials masked, for logging.
func (s Settings) Redacted() map[string]any {
	mask := func(v string) string {
		if v == "" {
			return ""
		}
		return "********"
	}
	return map[string]any{
		string(KeyAPIUser):     s.APIUser,
		string(KeyAPIKey):      mask(s.APIKey),
		string(KeyUsername):    s.Username,
		string(KeyPassword):    mask(s.Password),
		string(KeyPasskey):     mask(s.Passkey),
		string(KeyBaseURL):     s.BaseURL,
		string(KeyCookiesFile): s.CookiesFile,
		string(KeyRetry):       s.Retry,
	}
}
