package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/roelfdiedericks/minutes/internal/config"
	"github.com/roelfdiedericks/minutes/internal/user"
)

// captureStdout redirects command output for the duration of the test.
func captureStdout(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = prev })
	return &buf
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
}

func TestTranscribeCmdMock(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "minutes.json")
	writeFile(t, cfgPath, `{"stt": {"provider": "mock", "mock": {"text": "ata da reunião"}}}`)
	audio := filepath.Join(dir, "a.wav")
	writeFile(t, audio, "RIFF\x00\x00\x00\x00WAVEfmt ")

	out := captureStdout(t)
	cmd := &TranscribeCmd{File: audio, Quiet: true}
	if err := cmd.Run(&Context{ConfigPath: cfgPath}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := out.String(); got != "ata da reunião\n" {
		t.Errorf("output = %q", got)
	}

	out.Reset()
	cmd.Quiet = false
	if err := cmd.Run(&Context{ConfigPath: cfgPath}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "Reunião em ") || !strings.Contains(out.String(), "mock") {
		t.Errorf("output = %q", out.String())
	}

	// openai without a key cannot start
	cmd.Provider = "openai"
	if err := cmd.Run(&Context{ConfigPath: cfgPath}); err == nil {
		t.Error("expected failure for a provider that cannot start")
	}
}

func TestConfigInitCmd(t *testing.T) {
	prev := interactive
	interactive = func() bool { return false }
	t.Cleanup(func() { interactive = prev })
	captureStdout(t)

	path := filepath.Join(t.TempDir(), "minutes.json")
	writeFile(t, path, `{"logging": {"level": "debug"}}`)

	cmd := &ConfigInitCmd{Output: path}
	if err := cmd.Run(&Context{}); err == nil || !strings.Contains(err.Error(), "--force") {
		t.Fatalf("existing file err = %v", err)
	}

	cmd.Force = true
	if err := cmd.Run(&Context{}); err != nil {
		t.Fatalf("Run --force: %v", err)
	}

	bak, err := os.ReadFile(path + ".bak")
	if err != nil {
		t.Fatalf("backup: %v", err)
	}
	if !strings.Contains(string(bak), "debug") {
		t.Errorf("backup = %q, want the old file", bak)
	}

	cfg, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.STT.Provider != config.Default().STT.Provider || cfg.Logging.Level != "info" {
		t.Errorf("written config = %+v", cfg)
	}
}

func TestConfigCheckCmdUnknownProvider(t *testing.T) {
	captureStdout(t)

	path := filepath.Join(t.TempDir(), "minutes.json")
	writeFile(t, path, `{"stt": {"provider": "carrier-pigeon"}}`)
	if err := (&ConfigCheckCmd{}).Run(&Context{ConfigPath: path}); err == nil {
		t.Fatal("expected unknown provider to fail")
	}

	writeFile(t, path, `{"stt": {"provider": "mock"}}`)
	out := captureStdout(t)
	if err := (&ConfigCheckCmd{}).Run(&Context{ConfigPath: path}); err != nil {
		t.Fatalf("mock provider: %v", err)
	}
	if !strings.Contains(out.String(), "ok") {
		t.Errorf("output = %q", out.String())
	}
}

func TestApplyInitAnswers(t *testing.T) {
	cfg := config.Default()
	err := applyInitAnswers(cfg, initAnswers{
		Provider:     "google",
		LanguageCode: " en-US ",
		APIKey:       "key",
		Username:     "alice",
		Password:     "segredo",
	})
	if err != nil {
		t.Fatalf("applyInitAnswers: %v", err)
	}
	if cfg.STT.Provider != "google" || cfg.STT.Google.APIKey != "key" || cfg.STT.LanguageCode != "en-US" {
		t.Errorf("stt = %+v", cfg.STT)
	}
	if _, ok := user.NewRegistry(cfg.HTTP.Users).Authenticate("alice", "segredo"); !ok {
		t.Error("first user cannot log in")
	}

	cfg = config.Default()
	if err := applyInitAnswers(cfg, initAnswers{Provider: "google", CredentialsFile: "/etc/sa.json"}); err != nil {
		t.Fatal(err)
	}
	if cfg.STT.Google.CredentialsFile != "/etc/sa.json" || len(cfg.HTTP.Users) != 0 {
		t.Errorf("google service account = %+v, users %d", cfg.STT.Google, len(cfg.HTTP.Users))
	}

	bad := []initAnswers{
		{Provider: "openai"},
		{Provider: "telepathy"},
		{Provider: "mock", Username: "Bad Name", Password: "x"},
		{Provider: "mock", Username: "bob"},
	}
	for _, a := range bad {
		if err := applyInitAnswers(config.Default(), a); err == nil {
			t.Errorf("applyInitAnswers(%+v) accepted", a)
		}
	}
}
