package config

// AppConfig represents the CLI configuration file
type AppConfig struct {
	// PTP holds client keys (apiUser, apiKey, ...). It is the file layer
	// passed to Resolve.
	PTP         map[string]any    `mapstructure:"ptp"`
	Limits      LimitsConfig      `mapstructure:"limits"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	QBittorrent QBittorrentConfig `mapstructure:"qbittorrent"`
	Radarr      RadarrConfig      `mapstructure:"radarr"`
	Filters     FilterConfig      `mapstructure:"filters"`
}

// LimitsConfig sizes the request token bucket
type LimitsConfig struct {
	Capacity int     `mapstructure:"capacity"`
	Rate     float64 `mapstructure:"rate"`
	// Timeout is the per-request timeout, e.g. "30s".
	Timeout string `mapstructure:"timeout"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Color  bool   `mapstructure:"color"`
}

// QBittorrentConfig holds qBittorrent WebUI connection details
type QBittorrentConfig struct {
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Category string `mapstructure:"category"`
	SavePath string `mapstructure:"save_path"`
	Paused   bool   `mapstructure:"paused"`
}

// Enabled reports whether a qBittorrent instance is configured.
func (q QBittorrentConfig) Enabled() bool {
	return q.URL != ""
}

// RadarrConfig holds Radarr API connection details
type RadarrConfig struct {
	URL    string `mapstructure:"url"`
	APIKey string `mapstructure:"api_key"`
}

// Enabled reports whether a Radarr instance is configured.
func (r RadarrConfig) Enabled() bool {
	return r.URL != ""
}

// FilterConfig maps a filter name to an expression, usable as --filter @name.
type FilterConfig map[string]string
