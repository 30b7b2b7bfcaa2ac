package metrics

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	. "github.com/roelfdiedericks/minutes/internal/logging"
	"github.com/roelfdiedericks/minutes/internal/paths"
)

const (
	defaultSaveInterval = 5 * time.Minute
	pruneMaxAge         = 30 * 24 * time.Hour
	dbFileName          = "metrics.db"
	dbOpenOptions       = "?_busy_timeout=5000"
)

const schemaSQL = `CREATE TABLE IF NOT EXISTS metrics (
	path       TEXT PRIMARY KEY,
	type       TEXT NOT NULL,
	data       BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`

// Gauges describe live state (notes/stored) and are not persisted.

type persistTiming struct {
	Count   int64           `json:"count"`
	Total   time.Duration   `json:"total"`
	Min     time.Duration   `json:"min"`
	Max     time.Duration   `json:"max"`
	Last    time.Duration   `json:"last"`
	Samples []time.Duration `json:"samples,omitempty"`
}

type persistCounter struct {
	Value int64     `json:"value"`
	Last  time.Time `json:"last"`
}

type persistSuccessFail struct {
	Success        int64            `json:"success"`
	Failures       int64            `json:"failures"`
	LastSuccess    time.Time        `json:"last_success"`
	LastFailure    time.Time        `json:"last_failure"`
	FailureReasons map[string]int64 `json:"failure_reasons,omitempty"`
}

// Open applies cfg: with Persist set it opens the database, restores saved
// metrics and starts the periodic save. Without it, Open is a no-op.
func (m *MetricsManager) Open(cfg Config) error {
	if !cfg.Persist {
		return nil
	}

	dbPath := cfg.Path
	if dbPath == "" {
		p, err := paths.DataPath(dbFileName)
		if err != nil {
			return err
		}
		dbPath = p
	}
	return m.openDB(dbPath, defaultSaveInterval)
}

func (m *MetricsManager) openDB(dbPath string, interval time.Duration) error {
	if m.db != nil {
		return fmt.Errorf("metrics: persistence already open")
	}

	expanded, err := paths.ExpandTilde(dbPath)
	if err != nil {
		return err
	}
	if err := paths.EnsureParentDir(expanded); err != nil {
		return err
	}

	db, err := sql.Open("sqlite3", expanded+dbOpenOptions)
	if err != nil {
		return fmt.Errorf("metrics: failed to open %s: %w", expanded, err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return fmt.Errorf("metrics: failed to create schema: %w", err)
	}

	m.db = db
	m.stopSave = make(chan struct{})
	m.saveDone = make(chan struct{})

	loaded, err := m.load()
	if err != nil {
		L_warn("metrics: failed to load persisted data", "error", err)
	} else if loaded > 0 {
		L_info("metrics: loaded persisted data", "count", loaded, "path", expanded)
	}

	if pruned, err := m.prune(); err != nil {
		L_warn("metrics: failed to prune stale data", "error", err)
	} else if pruned > 0 {
		L_debug("metrics: pruned stale metrics", "count", pruned)
	}

	go m.saveLoop(interval)
	return nil
}

func (m *MetricsManager) saveLoop(interval time.Duration) {
	defer close(m.saveDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := m.save(); err != nil {
				L_warn("metrics: periodic save failed", "error", err)
			}
		case <-m.stopSave:
			return
		}
	}
}

// Close stops the periodic save, writes a final snapshot and closes the
// database. Safe to call when persistence was never opened.
func (m *MetricsManager) Close() error {
	if m.db == nil {
		return nil
	}

	close(m.stopSave)
	<-m.saveDone

	if err := m.save(); err != nil {
		L_warn("metrics: final save failed", "error", err)
	}

	err := m.db.Close()
	m.db = nil
	return err
}

// save upserts every persisted metric in one transaction.
func (m *MetricsManager) save() error {
	if m.db == nil {
		return nil
	}

	tx, err := m.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(`INSERT INTO metrics (path, type, data, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().Unix()

	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := saveMapEntries(stmt, now, m.timings, TypeTiming, marshalTiming); err != nil {
		return err
	}
	if err := saveMapEntries(stmt, now, m.counters, TypeCounter, marshalCounter); err != nil {
		return err
	}
	if err := saveMapEntries(stmt, now, m.successFail, TypeSuccessFail, marshalSuccessFail); err != nil {
		return err
	}

	return tx.Commit()
}

func saveMapEntries[T any](stmt *sql.Stmt, now int64, metrics map[string]*T, metricType MetricType, marshal func(*T) ([]byte, error)) error {
	for path, metric := range metrics {
		data, err := marshal(metric)
		if err != nil {
			L_warn("metrics: failed to marshal metric", "path", path, "type", metricType, "error", err)
			continue
		}
		if _, err := stmt.Exec(path, string(metricType), data, now); err != nil {
			return err
		}
	}
	return nil
}

func (m *MetricsManager) load() (int, error) {
	rows, err := m.db.Query("SELECT path, type, data FROM metrics")
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for rows.Next() {
		var path, metricType string
		var data []byte
		if err := rows.Scan(&path, &metricType, &data); err != nil {
			L_warn("metrics: failed to scan row", "error", err)
			continue
		}
		if err := m.restoreMetric(path, MetricType(metricType), data); err != nil {
			L_warn("metrics: failed to restore metric", "path", path, "type", metricType, "error", err)
			continue
		}
		count++
	}
	return count, rows.Err()
}

func (m *MetricsManager) prune() (int, error) {
	cutoff := time.Now().Add(-pruneMaxAge).Unix()
	result, err := m.db.Exec("DELETE FROM metrics WHERE updated_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

// restoreMetric must be called with m.mu held.
func (m *MetricsManager) restoreMetric(path string, metricType MetricType, data []byte) error {
	switch metricType {
	case TypeTiming:
		var p persistTiming
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		metric := &TimingMetric{Count: p.Count, Total: p.Total, Min: p.Min, Max: p.Max, Last: p.Last, samples: p.Samples}
		if metric.samples == nil {
			metric.samples = make([]time.Duration, 0, maxSamples)
		}
		if len(metric.samples) > maxSamples {
			metric.samples = metric.samples[len(metric.samples)-maxSamples:]
		}
		if len(metric.samples) == maxSamples {
			metric.sampleIdx = 0
		}
		m.timings[path] = metric

	case TypeCounter:
		var p persistCounter
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		m.counters[path] = &CounterMetric{Value: p.Value, Last: p.Last}

	case TypeSuccessFail:
		var p persistSuccessFail
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		if p.FailureReasons == nil {
			p.FailureReasons = make(map[string]int64)
		}
		m.successFail[path] = &SuccessFailMetric{
			Success:        p.Success,
			Failures:       p.Failures,
			LastSuccess:    p.LastSuccess,
			LastFailure:    p.LastFailure,
			FailureReasons: p.FailureReasons,
		}

	default:
		return fmt.Errorf("unknown metric type %q", metricType)
	}
	return nil
}

func marshalTiming(m *TimingMetric) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return json.Marshal(persistTiming{
		Count: m.Count, Total: m.Total, Min: m.Min, Max: m.Max, Last: m.Last, Samples: m.samples,
	})
}

func marshalCounter(m *CounterMetric) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return json.Marshal(persistCounter{Value: m.Value, Last: m.Last})
}

func marshalSuccessFail(m *SuccessFailMetric) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return json.Marshal(persistSuccessFail{
		Success: m.Success, Failures: m.Failures,
		LastSuccess: m.LastSuccess, LastFailure: m.LastFailure, FailureReasons: m.FailureReasons,
	})
}
