package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/roelfdiedericks/minutes/internal/config"
	"github.com/roelfdiedericks/minutes/internal/ingest"
	. "github.com/roelfdiedericks/minutes/internal/logging"
	"github.com/roelfdiedericks/minutes/internal/notes"
	"github.com/roelfdiedericks/minutes/internal/paths"
	"github.com/roelfdiedericks/minutes/internal/stt"
	"github.com/roelfdiedericks/minutes/internal/user"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)

// stdout is where command output goes.
var stdout io.Writer = os.Stdout

func printf(format string, args ...any) {
	fmt.Fprintf(stdout, format, args...)
}

// TranscribeCmd runs one file through the configured provider.
type TranscribeCmd struct {
	File     string `arg:"" type:"existingfile" help:"Audio file (.ogg, .wav, .mp3, .flac, .webm)."`
	Language string `short:"l" help:"BCP-47 language code (default: stt.languageCode)."`
	Provider string `short:"p" help:"Override stt.provider."`
	Quiet    bool   `short:"q" help:"Print only the transcript."`
}

func (c *TranscribeCmd) Run(ctx *Context) error {
	cfg, _, err := config.Load(ctx.ConfigPath)
	if err != nil {
		return err
	}
	setupLogging(ctx, cfg.Logging.Level)
	if c.Provider != "" {
		cfg.STT.Provider = c.Provider
	}

	audio, err := os.ReadFile(c.File)
	if err != nil {
		return fmt.Errorf("failed to read audio: %w", err)
	}

	provider, err := stt.New(cfg.STT)
	if err != nil {
		return err
	}
	var transcriber ingest.Transcriber
	if provider != nil {
		defer provider.Close()
		transcriber = provider
	}

	controller := ingest.NewController(notes.NewStore(), transcriber)
	text, err := controller.RequestTranscription(context.Background(), audio, c.Language)
	if err != nil {
		var terr *ingest.TranscriptionError
		if errors.As(err, &terr) {
			fmt.Fprintln(os.Stderr, errorStyle.Render("Erro ao transcrever o áudio: "+terr.Message))
			return fmt.Errorf("transcription failed")
		}
		return err
	}

	if c.Quiet {
		printf("%s\n", text)
		return nil
	}
	printf("%s\n", titleStyle.Render(controller.SuggestedTitle()))
	printf("%s\n\n", mutedStyle.Render(fmt.Sprintf("%s · %s · %d bytes", controller.ProviderName(), stt.DetectMIME(audio), len(audio))))
	printf("%s\n", text)
	return nil
}

// ConfigCmd groups config file commands.
type ConfigCmd struct {
	Init  ConfigInitCmd  `cmd:"" help:"Write a config file, asking for the provider and first user on a terminal."`
	Check ConfigCheckCmd `cmd:"" help:"Load and validate the config file."`
}

// ConfigInitCmd writes a config file. The format follows the extension.
// On a terminal it asks for the provider, its credentials and a first
// user; otherwise, or with --defaults, it writes the built-in defaults.
type ConfigInitCmd struct {
	Output   string `short:"o" type:"path" help:"Where to write (default: ~/.minutes/minutes.json)."`
	Force    bool   `short:"f" help:"Overwrite an existing file (the old one is kept as .bak)."`
	Defaults bool   `short:"d" help:"Skip the questions and write the defaults."`
}

// interactive reports whether config init may ask questions.
var interactive = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) // #nosec G115 - fd fits in int
}

func (c *ConfigInitCmd) Run(ctx *Context) error {
	path := c.Output
	if path == "" {
		path = ctx.ConfigPath
	}
	if path == "" {
		p, err := paths.DefaultConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	if _, err := os.Stat(path); err == nil && !c.Force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	cfg := config.Default()
	if !c.Defaults && interactive() {
		answers, err := askInit(cfg)
		if err != nil {
			if isAbort(err) {
				printf("%s\n", mutedStyle.Render("cancelled, nothing written"))
				return nil
			}
			return err
		}
		if err := applyInitAnswers(cfg, answers); err != nil {
			return err
		}
	}

	if err := config.Save(path, cfg); err != nil {
		return err
	}
	printf("%s %s\n", successStyle.Render("wrote"), path)
	printf("  provider  %s\n", orNone(cfg.STT.Provider))
	printf("  users     %d\n", len(cfg.HTTP.Users))
	return nil
}

// ConfigCheckCmd loads the config and reports where it came from.
type ConfigCheckCmd struct{}

func (c *ConfigCheckCmd) Run(ctx *Context) error {
	cfg, path, err := config.Load(ctx.ConfigPath)
	if err != nil {
		return err
	}
	if path == "" {
		path = "(none, using defaults)"
	}

	printf("%s %s\n", titleStyle.Render("config"), path)
	printf("  listen    %s\n", cfg.HTTP.Listen)
	printf("  provider  %s (%s)\n", orNone(cfg.STT.Provider), cfg.STT.LanguageCode)
	printf("  users     %d\n", len(cfg.HTTP.Users))
	printf("  uploads   ttl %ds, max %d bytes\n", cfg.Media.TTL, cfg.Media.MaxSize)

	provider, err := stt.New(cfg.STT)
	if err != nil {
		printf("%s %v\n", errorStyle.Render("stt:"), err)
		return fmt.Errorf("provider %q cannot start", cfg.STT.Provider)
	}
	if provider != nil {
		provider.Close()
	}
	printf("%s\n", successStyle.Render("ok"))
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

// PasswdCmd prints an Argon2id hash to paste into http.users.
type PasswdCmd struct {
	Username string `arg:"" help:"Account name."`
}

func (c *PasswdCmd) Run(ctx *Context) error {
	if err := user.ValidateUsername(c.Username); err != nil {
		return err
	}

	password, err := readPassword()
	if err != nil {
		return err
	}

	hash, err := user.HashPassword(password)
	if err != nil {
		return err
	}

	L_debug("passwd: hash generated", "username", c.Username)
	fmt.Fprintln(os.Stderr, mutedStyle.Render("add to http.users in your config:"))
	printf("\"%s\": \"%s\"\n", c.Username, hash)
	return nil
}

// readPassword prompts twice on a terminal, or reads one line from a pipe.
func readPassword() (string, error) {
	fd := int(os.Stdin.Fd()) // #nosec G115 - fd fits in int
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	fmt.Fprint(os.Stderr, "Repeat:   ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	if string(first) != string(second) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(first), nil
}
