package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/roelfdiedericks/minutes/internal/config"
	"github.com/roelfdiedericks/minutes/internal/user"
)

// initAnswers is what the config init questions collect.
type initAnswers struct {
	Provider        string
	LanguageCode    string
	APIKey          string // google, openai, groq
	CredentialsFile string // google service account, instead of a key
	ModelsDir       string // whispercpp
	Model           string // whispercpp
	Username        string // optional first web user
	Password        string
}

func isAbort(err error) bool {
	return errors.Is(err, huh.ErrUserAborted)
}

// askInit runs the interactive questions for config init.
func askInit(cfg *config.Config) (initAnswers, error) {
	a := initAnswers{
		Provider:     cfg.STT.Provider,
		LanguageCode: cfg.STT.LanguageCode,
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Transcription provider").
				Options(
					huh.NewOption("Google Cloud Speech-to-Text", "google"),
					huh.NewOption("OpenAI Whisper", "openai"),
					huh.NewOption("Groq Whisper", "groq"),
					huh.NewOption("whisper.cpp (local, needs a build with -tags whispercpp)", "whispercpp"),
					huh.NewOption("Mock (offline placeholder)", "mock"),
					huh.NewOption("None (notes only)", ""),
				).
				Value(&a.Provider),
			huh.NewInput().
				Title("Language").
				Description("BCP-47 code sent with every request").
				Value(&a.LanguageCode),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("API key").
				Description("Leave empty for Google to use a service account instead").
				EchoMode(huh.EchoModePassword).
				Value(&a.APIKey),
		).WithHideFunc(func() bool {
			return a.Provider != "google" && a.Provider != "openai" && a.Provider != "groq"
		}),
		huh.NewGroup(
			huh.NewInput().
				Title("Service account JSON file").
				Description("Empty = $GOOGLE_APPLICATION_CREDENTIALS").
				Value(&a.CredentialsFile),
		).WithHideFunc(func() bool {
			return a.Provider != "google" || a.APIKey != ""
		}),
		huh.NewGroup(
			huh.NewInput().
				Title("Models directory").
				Value(&a.ModelsDir),
			huh.NewInput().
				Title("Model file").
				Placeholder("ggml-base.bin").
				Value(&a.Model),
		).WithHideFunc(func() bool {
			return a.Provider != "whispercpp"
		}),
		huh.NewGroup(
			huh.NewInput().
				Title("First web user (optional)").
				Description("Empty leaves the web UI without a login").
				Value(&a.Username).
				Validate(func(s string) error {
					if s == "" {
						return nil
					}
					return user.ValidateUsername(s)
				}),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&a.Password).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("password is required")
					}
					return nil
				}),
		).WithHideFunc(func() bool {
			return a.Username == ""
		}),
	)

	if err := form.Run(); err != nil {
		return a, err
	}
	return a, nil
}

// applyInitAnswers writes the answers into cfg.
func applyInitAnswers(cfg *config.Config, a initAnswers) error {
	cfg.STT.Provider = a.Provider
	if lang := strings.TrimSpace(a.LanguageCode); lang != "" {
		cfg.STT.LanguageCode = lang
	}

	key := strings.TrimSpace(a.APIKey)
	switch a.Provider {
	case "google":
		cfg.STT.Google.APIKey = key
		if key == "" {
			cfg.STT.Google.CredentialsFile = strings.TrimSpace(a.CredentialsFile)
		}
	case "openai":
		cfg.STT.OpenAI.APIKey = key
	case "groq":
		cfg.STT.Groq.APIKey = key
	case "whispercpp":
		cfg.STT.WhisperCpp.ModelsDir = strings.TrimSpace(a.ModelsDir)
		cfg.STT.WhisperCpp.Model = strings.TrimSpace(a.Model)
	case "", "mock":
	default:
		return fmt.Errorf("unknown provider %q", a.Provider)
	}

	if (a.Provider == "openai" || a.Provider == "groq") && key == "" {
		return fmt.Errorf("%s needs an API key", a.Provider)
	}

	if a.Username == "" {
		return nil
	}
	if err := user.ValidateUsername(a.Username); err != nil {
		return err
	}
	if a.Password == "" {
		return fmt.Errorf("password for %s is required", a.Username)
	}
	hash, err := user.HashPassword(a.Password)
	if err != nil {
		return err
	}
	if cfg.HTTP.Users == nil {
		cfg.HTTP.Users = make(map[string]string)
	}
	cfg.HTTP.Users[a.Username] = hash
	return nil
}
