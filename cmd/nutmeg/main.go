package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cactusdynamics/nutmeg"
	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"
)

// ExitError is an error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

// fileFailure reports the input file a conversion failed on.
type fileFailure struct {
	Path string
	Err  error
}

func (e *fileFailure) Error() string {
	msg := strings.TrimPrefix(e.Err.Error(), e.Path+": ")
	return fmt.Sprintf("%s: %s: %s", e.Path, nutmeg.KindOf(e.Err), msg)
}

func (e *fileFailure) Unwrap() error {
	return e.Err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	if err != nil && err.Error() != "" {
		fmt.Fprintln(os.Stderr, err)
	}

	stop()
	os.Exit(exitCode(err))
}

// exitCode is 0 on success, 2 for usage errors and 1 for everything else.
func exitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

type app struct {
	ConfigFile string `long:"config" value-name:"FILE" description:"HCL configuration file"`
	LogLevel   string `long:"log-level" value-name:"LEVEL" description:"Log level (trace, debug, info, warn, error)"`
	LogFormat  string `long:"log-format" choice:"text" choice:"json" description:"Log output format"`

	cfg    nutmeg.Config
	ctx    context.Context
	stdout io.Writer
	stderr io.Writer
}

// run parses args and executes the selected command.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{ctx: ctx, stdout: stdout, stderr: stderr}

	parser := flags.NewParser(a, flags.HelpFlag|flags.PassDoubleDash)
	parser.Name = "nutmeg"
	parser.ShortDescription = "SPICE raw file reader and converter"

	addCommands(parser, a)

	parser.CommandHandler = func(command flags.Commander, args []string) error {
		if command == nil {
			return nil
		}
		if err := a.setup(); err != nil {
			return err
		}
		return command.Execute(args)
	}

	_, err := parser.ParseArgs(args)
	if err == nil {
		return nil
	}

	var flagsErr *flags.Error
	if errors.As(err, &flagsErr) {
		if flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(stdout, flagsErr.Message)
			return nil
		}
		return &ExitError{Code: 2, Message: flagsErr.Message}
	}

	return err
}

// setup loads the configuration, applies the global flags on top of it and
// configures logging.
func (a *app) setup() error {
	cfg, err := nutmeg.LoadConfig(a.ConfigFile)
	if err != nil {
		return &ExitError{Code: 2, Message: err.Error()}
	}

	if a.LogLevel != "" {
		cfg.LogLevel = a.LogLevel
	}
	if a.LogFormat != "" {
		cfg.LogFormat = a.LogFormat
	}
	if err := cfg.Validate(); err != nil {
		return &ExitError{Code: 2, Message: err.Error()}
	}

	level, _ := logrus.ParseLevel(cfg.LogLevel)
	logrus.SetLevel(level)
	logrus.SetOutput(a.stderr)
	if cfg.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{})
	}

	a.cfg = cfg
	return nil
}
