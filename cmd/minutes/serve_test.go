package main

import (
	"testing"

	"github.com/roelfdiedericks/minutes/internal/config"
	"github.com/roelfdiedericks/minutes/internal/stt"
	"github.com/roelfdiedericks/minutes/internal/user"
)

func TestApplyReload(t *testing.T) {
	hash, err := user.HashPassword("pw")
	if err != nil {
		t.Fatal(err)
	}

	prev := config.Default()
	transcriber := stt.NewManager()
	if err := transcriber.ApplyConfig(prev.STT); err != nil {
		t.Fatal(err)
	}
	users := user.NewRegistry(nil)

	next := config.Default()
	next.STT.Provider = ""
	next.HTTP.Users = map[string]string{"alice": hash}

	applyReload(&Context{}, prev, next, transcriber, users)

	if transcriber.Name() != "none" {
		t.Errorf("provider = %q, want none", transcriber.Name())
	}
	if !users.AuthRequired() || users.Get("alice") == nil {
		t.Error("users not replaced")
	}

	// A provider that cannot start leaves transcription reporting why
	broken := config.Default()
	broken.STT.Provider = "openai"
	applyReload(&Context{}, next, broken, transcriber, users)
	if transcriber.Active() != nil {
		t.Error("broken provider became active")
	}
}
