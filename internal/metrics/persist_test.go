package metrics

import (
	"path/filepath"
	"testing"
	"time"
)

// openTestDB skips when the sqlite driver is unusable (CGO_ENABLED=0).
func openTestDB(t *testing.T, m *MetricsManager, path string) {
	t.Helper()
	if err := m.openDB(path, time.Hour); err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
}

func TestPersistRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.db")

	m := NewManager()
	openTestDB(t, m, path)
	m.AddCounter("notes", "created", 4)
	m.RecordSuccess("stt", "transcribe")
	m.RecordFailure("stt", "transcribe", "google")
	m.RecordDuration("stt", "latency", 1500*time.Millisecond)
	m.SetGauge("notes", "stored", 4)
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	restored := NewManager()
	openTestDB(t, restored, path)
	defer restored.Close()

	if got := restored.Counter("notes", "created"); got != 4 {
		t.Errorf("notes/created = %d, want 4", got)
	}

	snap := restored.GetSnapshot()
	sf, ok := snap["stt/transcribe"]
	if !ok {
		t.Fatal("stt/transcribe not restored")
	}
	data := sf.Data.(SuccessFailSnapshot)
	if data.Success != 1 || data.Failures != 1 || data.FailureReasons["google"] != 1 {
		t.Errorf("stt/transcribe = %+v", data)
	}

	timing, ok := snap["stt/latency"]
	if !ok || timing.Data.(TimingSnapshot).Count != 1 {
		t.Errorf("stt/latency = %+v", timing)
	}

	if _, ok := snap["notes/stored"]; ok {
		t.Error("gauges should not be persisted")
	}
}

func TestOpenWithoutPersistIsNoop(t *testing.T) {
	m := NewManager()
	if err := m.Open(Config{Path: filepath.Join(t.TempDir(), "unused.db")}); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if m.db != nil {
		t.Fatal("database opened without persist")
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
