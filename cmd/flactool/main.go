// flactool reads tags, stream parameters and audio samples of FLAC files.
//
// Usage:
//
//	flactool [flags] COMMAND
//
// Commands:
//
//	tags PATH              print the tags of a FLAC file as JSON
//	list [DIR]             summarize the FLAC files of a library directory
//	decode [-o OUT] PATH   decode a FLAC file to WAV or raw PCM
//	inspect PATH...        list the metadata blocks of FLAC files
//	musicdir               print the music directory of the user
//
// Configuration is read from the file given by --config, then from FLACTOOL_*
// environment variables (e.g. FLACTOOL_LIBRARY_DIR), and finally from flags.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/mewkiz/pkg/errutil"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Configuration keys.
const (
	keyLibraryDir = "library_dir"
	keyLogLevel   = "log_level"
	keyVerifyMD5  = "verify_md5"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("flactool: ")
	errutil.UseColor = false
	a := newApp(os.Stdout, os.Stderr)
	if err := a.root.Execute(); err != nil {
		if a.debug() {
			log.Fatalf("%+v", err)
		}
		log.Fatal(err)
	}
}

// app holds the command tree and the state shared by its commands.
type app struct {
	root   *cobra.Command
	conf   *viper.Viper
	log    *slog.Logger
	stdout io.Writer
	stderr io.Writer
	// Path of the configuration file; empty if none.
	configPath string
}

// newApp returns the command tree of flactool, printing results to stdout and
// logging to stderr.
func newApp(stdout, stderr io.Writer) *app {
	a := &app{
		conf:   viper.New(),
		log:    slog.New(slog.DiscardHandler),
		stdout: stdout,
		stderr: stderr,
	}
	a.root = &cobra.Command{
		Use:           "flactool",
		Short:         "Inspect and decode FLAC files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initialize()
		},
	}
	a.root.SetOut(stdout)
	a.root.SetErr(stderr)

	flags := a.root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "configuration file (JSON, TOML or YAML)")
	flags.String("library-dir", "", "library directory listed by default")
	flags.String("log-level", "info", "log level (debug, info, warn or error)")
	a.conf.BindPFlag(keyLibraryDir, flags.Lookup("library-dir"))
	a.conf.BindPFlag(keyLogLevel, flags.Lookup("log-level"))

	a.root.AddCommand(
		a.tagsCmd(),
		a.listCmd(),
		a.decodeCmd(),
		a.inspectCmd(),
		a.musicDirCmd(),
	)
	return a
}

// initialize loads the configuration and sets up logging. It runs after the
// flags are parsed and before any command.
func (a *app) initialize() error {
	a.conf.SetDefault(keyLogLevel, "info")
	a.conf.SetEnvPrefix("FLACTOOL")
	a.conf.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.conf.AutomaticEnv()
	if a.configPath != "" {
		a.conf.SetConfigFile(a.configPath)
		if err := a.conf.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "unable to read configuration file %q", a.configPath)
		}
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(a.conf.GetString(keyLogLevel))); err != nil {
		return errors.Wrapf(err, "invalid %s", keyLogLevel)
	}
	a.log = slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))
	a.log.Debug("configuration loaded", "file", a.conf.ConfigFileUsed(), keyLibraryDir, a.conf.GetString(keyLibraryDir))
	return nil
}

// debug reports whether debug logging is enabled.
func (a *app) debug() bool {
	return a.log.Enabled(context.Background(), slog.LevelDebug)
}

// printJSON writes v to standard output as indented JSON.
func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// usageError returns an error for invalid command line arguments.
func usageError(cmd *cobra.Command, format string, args ...any) error {
	return fmt.Errorf("%s: %s", cmd.CommandPath(), fmt.Sprintf(format, args...))
}
