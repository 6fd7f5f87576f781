package nutmeg

import (
	"fmt"
	"os"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/sirupsen/logrus"
)

const (
	DefaultMaxFileSize int64 = 1 << 30
	DefaultMaxPoints         = 50_000_000
)

// Config carries the settings shared by the library entry points and the
// command line tool. It can be loaded from an HCL file; attributes missing
// from the file keep their defaults.
type Config struct {
	LogLevel  string `hcl:"log_level,optional"`
	LogFormat string `hcl:"log_format,optional"`

	ArrayFormat string `hcl:"array_format,optional"`
	Single      bool   `hcl:"single,optional"`
	Overwrite   bool   `hcl:"overwrite,optional"`
	Delimiter   string `hcl:"delimiter,optional"`

	// How plots without an analysis label are keyed: "random" or "index".
	NamePolicy string `hcl:"name_policy,optional"`

	// Limits checked before reading a file and before allocating a plot.
	// Zero disables a limit.
	MaxFileSize int64 `hcl:"max_file_size,optional"`
	MaxPoints   int   `hcl:"max_points,optional"`

	WatchPatterns []string `hcl:"watch_patterns,optional"`
	WatchDebounce string   `hcl:"watch_debounce,optional"`
}

func DefaultConfig() Config {
	return Config{
		LogLevel:      "info",
		LogFormat:     "text",
		ArrayFormat:   string(ArrayFormatNPZ),
		Delimiter:     ",",
		NamePolicy:    string(NamePolicyRandom),
		MaxFileSize:   DefaultMaxFileSize,
		MaxPoints:     DefaultMaxPoints,
		WatchPatterns: []string{"*.raw"},
		WatchDebounce: "500ms",
	}
}

// LoadConfig returns the defaults overlaid with the HCL (or JSON, by
// extension) file at path. An empty path yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	if _, err := os.Stat(path); err != nil {
		return Config{}, withPath(path, fileError(err))
	}

	if err := hclsimple.DecodeFile(path, nil, &cfg); err != nil {
		return Config{}, fmt.Errorf("unable to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}

	logrus.WithFields(logrus.Fields{
		"tag":  "Config",
		"path": path,
	}).Debug("loaded config")
	return cfg, nil
}

func (c Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("invalid log_format %q, want text or json", c.LogFormat)
	}

	if _, err := ParseArrayFormat(c.ArrayFormat); err != nil {
		return err
	}

	if _, err := ParseDelimiter(c.Delimiter); err != nil {
		return err
	}

	if _, err := ParseNamePolicy(c.NamePolicy); err != nil {
		return err
	}

	if c.MaxFileSize < 0 || c.MaxPoints < 0 {
		return fmt.Errorf("limits must not be negative: max_file_size=%d max_points=%d", c.MaxFileSize, c.MaxPoints)
	}

	if _, err := c.Debounce(); err != nil {
		return err
	}

	return nil
}

// Debounce is the quiet period the watcher waits for after the last change
// to a file.
func (c Config) Debounce() (time.Duration, error) {
	d, err := time.ParseDuration(c.WatchDebounce)
	if err != nil {
		return 0, fmt.Errorf("invalid watch_debounce: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("watch_debounce must be positive, got %v", d)
	}
	return d, nil
}

// ParseDelimiter accepts a single character other than quotes and line
// breaks.
func ParseDelimiter(s string) (rune, error) {
	if s == `\t` {
		return '\t', nil
	}

	r, size := utf8.DecodeRuneInString(s)
	if size == 0 || size != len(s) || r == utf8.RuneError {
		return 0, fmt.Errorf("delimiter %q must be a single character", s)
	}
	if r == '"' || r == '\r' || r == '\n' {
		return 0, fmt.Errorf("delimiter %q is not allowed", s)
	}
	return r, nil
}
