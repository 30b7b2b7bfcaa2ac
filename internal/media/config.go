package media

import "time"

// Config configures the upload store.
type Config struct {
	Dir     string `json:"dir" toml:"dir" yaml:"dir"`             // Base directory (empty = ~/.minutes/media)
	TTL     int    `json:"ttl" toml:"ttl" yaml:"ttl"`             // Seconds an upload may wait for save/discard (default: 600)
	MaxSize int64  `json:"maxSize" toml:"maxSize" yaml:"maxSize"` // Max upload size in bytes (default: 25MB)
	Cleanup string `json:"cleanup" toml:"cleanup" yaml:"cleanup"` // Sweep schedule, cron syntax or "@every 5m"
}

const (
	// DefaultTTL is the default time-to-live for uploads (10 minutes)
	DefaultTTL = 10 * time.Minute

	// DefaultMaxSize matches the largest request the hosted STT APIs accept (25MB)
	DefaultMaxSize = 25 * 1024 * 1024

	// DefaultCleanup is the default sweep schedule
	DefaultCleanup = "@every 5m"
)

// DefaultConfig returns the defaults written by "config init".
func DefaultConfig() Config {
	return Config{
		TTL:     int(DefaultTTL / time.Second),
		MaxSize: DefaultMaxSize,
		Cleanup: DefaultCleanup,
	}
}
