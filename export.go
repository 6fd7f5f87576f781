package nutmeg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// ArrayFormat is the container written by ToArrayFiles.
type ArrayFormat string

const (
	// Zip archive of numpy .npy arrays, loadable with numpy.load.
	ArrayFormatNPZ ArrayFormat = "npz"

	// SQLite database with one row per array.
	ArrayFormatSQLite ArrayFormat = "sqlite"
)

func ParseArrayFormat(s string) (ArrayFormat, error) {
	switch ArrayFormat(s) {
	case ArrayFormatNPZ, ArrayFormatSQLite:
		return ArrayFormat(s), nil
	case "":
		return ArrayFormatNPZ, nil
	default:
		return "", fmt.Errorf("unknown array format %q, want %q or %q", s, ArrayFormatNPZ, ArrayFormatSQLite)
	}
}

func (f ArrayFormat) Ext() string {
	if f == ArrayFormatSQLite {
		return ".sqlite"
	}
	return ".npz"
}

// arrayContainer receives the plots of one output file.
type arrayContainer interface {
	// AddPlot stores the waves of plot under group, or at the top level when
	// group is empty.
	AddPlot(group string, plot *Plot) error
	Close() error
}

func (f ArrayFormat) create(path string) (arrayContainer, error) {
	if f == ArrayFormatSQLite {
		return createSQLite(path)
	}
	return createNPZ(path)
}

type ArrayOptions struct {
	// Write all plots into one container, one group per plot.
	Single bool

	Overwrite bool
	Format    ArrayFormat
}

type TextOptions struct {
	Overwrite bool

	// Field separator, ',' when zero.
	Delimiter rune
}

type RawOptions struct {
	Overwrite bool
	Encoding  Format
}

// ToArrayFiles exports result next to path: "<stem>.<ext>" when
// opts.Single is set, otherwise "<stem>_<analysis>.<ext>" per plot. Nothing
// is written when any target exists and opts.Overwrite is not set. It
// returns the produced paths in plot order.
func ToArrayFiles(result *Result, path string, opts ArrayOptions) ([]string, error) {
	format, err := ParseArrayFormat(string(opts.Format))
	if err != nil {
		return nil, err
	}
	if err := checkExportable(result); err != nil {
		return nil, err
	}

	keys := result.Keys()
	targets := exportTargets(path, format.Ext(), keys, opts.Single)

	if opts.Single {
		if dups := duplicates(keys); len(dups) > 0 {
			groups := make([]string, len(dups))
			for i, key := range dups {
				groups[i] = targets[0] + ":" + key
			}
			return nil, &ExistsError{Paths: groups, Err: ErrTargetCollision}
		}
	}

	// SQLite keeps group and array name in separate columns. Only npz
	// entry names flatten slashes and can collide.
	if format == ArrayFormatNPZ {
		if collisions := npzCollisions(result, targets, opts.Single); len(collisions) > 0 {
			return nil, &ExistsError{Paths: collisions, Err: ErrTargetCollision}
		}
	}

	if err := preflight(targets, opts.Overwrite); err != nil {
		return nil, err
	}

	logger := exportLogger().WithField("format", format)

	if opts.Single {
		err := writeAtomic(targets[0], func(tmp string) error {
			container, err := format.create(tmp)
			if err != nil {
				return err
			}
			for _, e := range result.Entries {
				if err := container.AddPlot(e.Key, e.Plot); err != nil {
					container.Close()
					return err
				}
			}
			return container.Close()
		})
		if err != nil {
			return nil, err
		}
		logProduced(logger, targets[0], result.Len())
		return targets, nil
	}

	for i, e := range result.Entries {
		plot := e.Plot
		err := writeAtomic(targets[i], func(tmp string) error {
			container, err := format.create(tmp)
			if err != nil {
				return err
			}
			if err := container.AddPlot("", plot); err != nil {
				container.Close()
				return err
			}
			return container.Close()
		})
		if err != nil {
			return nil, err
		}
		logProduced(logger, targets[i], 1)
	}

	return targets, nil
}

// ToTextFiles writes one delimited text file per plot, named
// "<stem>_<analysis>.csv" (".tsv" for tabs, ".txt" for other delimiters).
func ToTextFiles(result *Result, path string, opts TextOptions) ([]string, error) {
	delimiter := opts.Delimiter
	if delimiter == 0 {
		delimiter = ','
	}
	if err := checkExportable(result); err != nil {
		return nil, err
	}

	targets := exportTargets(path, textExt(delimiter), result.Keys(), false)
	if err := preflight(targets, opts.Overwrite); err != nil {
		return nil, err
	}

	logger := exportLogger().WithField("format", "text")
	for i, e := range result.Entries {
		plot := e.Plot
		err := writeAtomic(targets[i], func(tmp string) error {
			return writeTextFile(tmp, plot, delimiter)
		})
		if err != nil {
			return nil, err
		}
		logProduced(logger, targets[i], 1)
	}

	return targets, nil
}

// ToRawFile re-encodes result as a single Nutmeg file
// "<stem>.<encoding>.raw".
func ToRawFile(result *Result, path string, opts RawOptions) (string, error) {
	if opts.Encoding != FormatASCII && opts.Encoding != FormatBinary {
		return "", fmt.Errorf("%w: cannot encode format %v", ErrUnsupportedFormat, opts.Encoding)
	}
	if err := checkExportable(result); err != nil {
		return "", err
	}

	target := exportTargets(path, "."+opts.Encoding.String()+".raw", nil, true)[0]
	if err := preflight([]string{target}, opts.Overwrite); err != nil {
		return "", err
	}

	err := writeAtomic(target, func(tmp string) error {
		f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_TRUNC, 0)
		if err != nil {
			return err
		}
		if err := Write(f, result.Plots(), opts.Encoding); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	})
	if err != nil {
		return "", err
	}

	logProduced(exportLogger().WithField("format", opts.Encoding), target, result.Len())
	return target, nil
}

func checkExportable(result *Result) error {
	if result == nil || result.Len() == 0 {
		return errors.New("nothing to export: result holds no plots")
	}
	return nil
}

// exportTargets derives output paths from the input path with its extension
// removed.
func exportTargets(path, ext string, keys []string, single bool) []string {
	stem := strings.TrimSuffix(path, filepath.Ext(path))
	if single {
		return []string{stem + ext}
	}

	targets := make([]string, len(keys))
	for i, key := range keys {
		targets[i] = stem + "_" + fileSafe(key) + ext
	}
	return targets
}

// fileSafe keeps analysis names from escaping the output directory.
func fileSafe(name string) string {
	name = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator || r < 0x20 {
			return '_'
		}
		return r
	}, name)

	if name == "." || name == ".." {
		return strings.Repeat("_", len(name))
	}
	return name
}

func textExt(delimiter rune) string {
	switch delimiter {
	case ',':
		return ".csv"
	case '\t':
		return ".tsv"
	default:
		return ".txt"
	}
}

// preflight fails before any write when targets collide with each other, or
// exist on disk and overwrite is not set. All offending paths are reported.
func preflight(targets []string, overwrite bool) error {
	if dups := duplicates(targets); len(dups) > 0 {
		return &ExistsError{Paths: dups, Err: ErrTargetCollision}
	}

	var existing []string
	for _, target := range targets {
		info, err := os.Lstat(target)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return withPath(target, fileError(err))
		}

		if !overwrite || info.IsDir() {
			existing = append(existing, target)
		}
	}

	if len(existing) > 0 {
		return &ExistsError{Paths: existing, Err: ErrAlreadyExists}
	}
	return nil
}

// duplicates returns the values occurring more than once, in order of their
// first occurrence.
func duplicates(values []string) []string {
	counts := make(map[string]int, len(values))
	for _, v := range values {
		counts[v]++
	}

	return Filter(stableUnique(values), func(v string) bool {
		return counts[v] > 1
	})
}

func stableUnique(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	unique := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		unique = append(unique, v)
	}
	return unique
}

// writeAtomic lets write fill a temporary file next to target, then renames
// it into place. A failed write never leaves a partial target behind.
func writeAtomic(target string, write func(tmp string) error) error {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return withPath(dir, fileError(err))
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return withPath(target, fileError(err))
	}
	tmp := f.Name()
	f.Close()

	if err := write(tmp); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("unable to write %s: %w", target, err)
	}

	if err := os.Chmod(tmp, 0o644); err != nil {
		os.Remove(tmp)
		return withPath(target, fileError(err))
	}

	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return withPath(target, fileError(err))
	}
	return nil
}

func exportLogger() logrus.FieldLogger {
	return logrus.WithField("tag", "Export")
}

func logProduced(logger logrus.FieldLogger, path string, plots int) {
	entry := logger.WithFields(logrus.Fields{
		"path":  path,
		"plots": plots,
	})
	if info, err := os.Stat(path); err == nil {
		entry = entry.WithField("size", humanize.Bytes(uint64(info.Size())))
	}
	entry.Info("wrote file")
}
