package nutmeg

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// Entry pairs a plot with the analysis name it is exported under.
type Entry struct {
	Key  string
	Plot *Plot
}

// Result is the content of one Nutmeg file, in file order.
type Result struct {
	Path    string
	Format  Format
	Entries []Entry
}

// NewResult keys plots with the given policy.
func NewResult(plots []*Plot, policy NamePolicy, rnd *rand.Rand) *Result {
	keys := policy.Keys(plots, rnd)

	entries := make([]Entry, len(plots))
	for i, plot := range plots {
		entries[i] = Entry{Key: keys[i], Plot: plot}
	}
	return &Result{Entries: entries}
}

func (r *Result) Len() int {
	return len(r.Entries)
}

func (r *Result) Keys() []string {
	keys := make([]string, len(r.Entries))
	for i, e := range r.Entries {
		keys[i] = e.Key
	}
	return keys
}

func (r *Result) Plots() []*Plot {
	plots := make([]*Plot, len(r.Entries))
	for i, e := range r.Entries {
		plots[i] = e.Plot
	}
	return plots
}

// Get returns the first plot stored under key.
func (r *Result) Get(key string) (*Plot, bool) {
	for _, e := range r.Entries {
		if e.Key == key {
			return e.Plot, true
		}
	}
	return nil, false
}

// PlotMap indexes the plots by their Plotname. The first plot wins when
// names repeat.
func (r *Result) PlotMap() map[string]*Plot {
	plots := make(map[string]*Plot, len(r.Entries))
	for _, e := range r.Entries {
		if _, ok := plots[e.Plot.Name]; !ok {
			plots[e.Plot.Name] = e.Plot
		}
	}
	return plots
}

// Reader reads Nutmeg files from disk: detection, size guards, parsing and
// analysis naming.
type Reader struct {
	MaxFileSize int64
	NamePolicy  NamePolicy

	// Source for placeholder names. When nil every Read seeds its own. A
	// shared Rand makes the Reader unsafe for concurrent use.
	Rand *rand.Rand

	parser *Parser
	logger logrus.FieldLogger
}

func NewReader(cfg Config) *Reader {
	logger := logrus.WithField("tag", "Reader")

	// Config.Validate rejects unknown policies; callers that skip it get
	// the default policy and a warning.
	policy, err := ParseNamePolicy(cfg.NamePolicy)
	if err != nil {
		logger.WithError(err).WithField("name_policy", cfg.NamePolicy).Warn("unknown name policy, using random")
		policy = NamePolicyRandom
	}

	return &Reader{
		MaxFileSize: cfg.MaxFileSize,
		NamePolicy:  policy,
		parser:      NewParser(cfg.MaxPoints),
		logger:      logger,
	}
}

// ReadNutmeg reads the file at path with the default configuration.
func ReadNutmeg(path string) (*Result, error) {
	return NewReader(DefaultConfig()).Read(path)
}

// ReadFile returns the plots of the file at path without naming them.
func ReadFile(path string) ([]*Plot, error) {
	result, err := NewReader(DefaultConfig()).Read(path)
	if err != nil {
		return nil, err
	}
	return result.Plots(), nil
}

// Read parses the file at path. It fails on the first error and never
// returns a partial result.
func (r *Reader) Read(path string) (*Result, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, withPath(path, fileError(err))
	}
	if r.MaxFileSize > 0 && info.Size() > r.MaxFileSize {
		return nil, fmt.Errorf("%s: %w: file is %s, limit is %s", path, ErrLimitExceeded,
			humanize.IBytes(uint64(info.Size())), humanize.IBytes(uint64(r.MaxFileSize)))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, withPath(path, fileError(err))
	}

	parser := r.parser
	if parser == nil {
		parser = NewParser(DefaultMaxPoints)
	}

	plots, err := parser.ParseFormat(data, format)
	if err != nil {
		return nil, withPath(path, err)
	}

	rnd := r.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	result := NewResult(plots, r.NamePolicy, rnd)
	result.Path = path
	result.Format = format

	logger := r.logger
	if logger == nil {
		logger = logrus.WithField("tag", "Reader")
	}
	logger.WithFields(logrus.Fields{
		"path":   path,
		"format": format,
		"size":   humanize.IBytes(uint64(len(data))),
		"plots":  result.Len(),
	}).Debug("read nutmeg file")

	return result, nil
}
