// Command minutes serves a small web app for meeting notes, typed by hand
// or transcribed from uploaded audio.
package main

import (
	"github.com/alecthomas/kong"

	. "github.com/roelfdiedericks/minutes/internal/logging"
)

var version = "0.1.0"

// Context carries the global flags into every command's Run.
type Context struct {
	ConfigPath string
	Debug      bool
	Trace      bool
}

// CLI is the kong command tree.
type CLI struct {
	ConfigPath string `name:"config" short:"c" type:"path" help:"Config file (default: ./minutes.json, then ~/.minutes/minutes.json)."`
	Debug      bool   `help:"Enable debug logging."`
	Trace      bool   `help:"Enable trace logging."`

	Serve      ServeCmd      `cmd:"" default:"1" help:"Start the web UI (default)."`
	Transcribe TranscribeCmd `cmd:"" help:"Transcribe an audio file and print the text."`
	Config     ConfigCmd     `cmd:"" help:"Manage the config file."`
	Passwd     PasswdCmd     `cmd:"" help:"Hash a password for http.users."`
	Version    VersionCmd    `cmd:"" help:"Print the version."`
}

// VersionCmd prints the version.
type VersionCmd struct{}

func (v *VersionCmd) Run(ctx *Context) error {
	printf("minutes %s\n", version)
	return nil
}

// setupLogging applies the config level unless a flag overrides it.
func setupLogging(ctx *Context, configLevel string) {
	level := ParseLevel(configLevel)
	if ctx.Debug {
		level = LevelDebug
	}
	if ctx.Trace {
		level = LevelTrace
	}

	cfg := DefaultLogConfig()
	cfg.Level = level
	cfg.ShowCaller = ctx.Trace
	Init(cfg)
	SetLevel(level)
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("minutes"),
		kong.Description("Meeting notes with audio transcription."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)

	ctx := &Context{
		ConfigPath: cli.ConfigPath,
		Debug:      cli.Debug,
		Trace:      cli.Trace,
	}
	// Flags apply before the config is read, so loading is logged too
	setupLogging(ctx, "")

	kctx.FatalIfErrorf(kctx.Run(ctx))
}
