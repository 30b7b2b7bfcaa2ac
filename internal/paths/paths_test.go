package paths

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfigPathPriority(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	work := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(work); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	// Nothing anywhere: valid, empty
	got, err := ConfigPath("")
	if err != nil || got != "" {
		t.Fatalf("ConfigPath = %q, %v; want empty", got, err)
	}

	global := filepath.Join(home, ".minutes", ConfigFileName)
	if err := EnsureParentDir(global); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(global, []byte("{}"), 0600); err != nil {
		t.Fatal(err)
	}
	got, err = ConfigPath("")
	if err != nil || got != global {
		t.Fatalf("ConfigPath = %q, %v; want %q", got, err, global)
	}

	if err := os.WriteFile(filepath.Join(work, "minutes.toml"), nil, 0600); err != nil {
		t.Fatal(err)
	}
	got, err = ConfigPath("")
	if err != nil || filepath.Base(got) != "minutes.toml" {
		t.Fatalf("ConfigPath = %q, %v; want local minutes.toml", got, err)
	}

	explicit := filepath.Join(work, "other.yaml")
	if err := os.WriteFile(explicit, nil, 0600); err != nil {
		t.Fatal(err)
	}
	got, err = ConfigPath(explicit)
	if err != nil || got != explicit {
		t.Fatalf("ConfigPath(explicit) = %q, %v", got, err)
	}

	if _, err := ConfigPath(filepath.Join(work, "missing.json")); err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

func TestExpandTilde(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/etc/minutes.json", "/etc/minutes.json"},
		{"~", home},
		{"~/notes/minutes.json", filepath.Join(home, "notes/minutes.json")},
	}
	for _, tt := range tests {
		got, err := ExpandTilde(tt.in)
		if err != nil {
			t.Fatalf("ExpandTilde(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ExpandTilde(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
