package metrics

// Config controls metrics persistence. Notes are never persisted; only the
// counters and timings about them are.
type Config struct {
	Persist bool   `json:"persist" toml:"persist" yaml:"persist"` // Keep counters across restarts (sqlite, needs cgo)
	Path    string `json:"path" toml:"path" yaml:"path"`          // Database file (empty = ~/.minutes/metrics.db)
}
