package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cactusdynamics/nutmeg"
	"github.com/dustin/go-humanize"
	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"
)

func addCommands(parser *flags.Parser, a *app) {
	parser.AddCommand("convert-to-array",
		"Convert raw files to array containers",
		"Writes <stem>_<analysis>.npz per plot, or <stem>.npz with one group per plot when --single is given.",
		&convertArrayCommand{app: a})

	parser.AddCommand("convert-to-text",
		"Convert raw files to delimited text",
		"Writes one <stem>_<analysis>.csv per plot. The first column is the point index.",
		&convertTextCommand{app: a})

	parser.AddCommand("convert-to-raw",
		"Re-encode raw files as ASCII or binary Nutmeg",
		"Writes <stem>.<encoding>.raw holding every plot of the input.",
		&convertRawCommand{app: a})

	parser.AddCommand("info",
		"Describe the plots of raw files",
		"Prints the plots of each file with their kind, point count and waves.",
		&infoCommand{app: a})

	parser.AddCommand("watch",
		"Reconvert raw files when they change",
		"Watches directories and converts every matching raw file once it has been quiet for the debounce period.",
		&watchCommand{app: a})
}

type inputFiles struct {
	Files []string `positional-arg-name:"FILE" required:"1"`
}

type convertArrayCommand struct {
	Single   bool   `short:"s" long:"single" description:"Write all plots of a file into one container"`
	Override bool   `short:"o" long:"override" description:"Overwrite existing outputs"`
	Format   string `short:"f" long:"format" choice:"npz" choice:"sqlite" description:"Array container format"`

	Args inputFiles `positional-args:"yes" required:"yes"`

	app *app
}

func (c *convertArrayCommand) Execute(args []string) error {
	cfg := c.app.cfg

	format := cfg.ArrayFormat
	if c.Format != "" {
		format = c.Format
	}
	arrayFormat, err := nutmeg.ParseArrayFormat(format)
	if err != nil {
		return &ExitError{Code: 2, Message: err.Error()}
	}

	opts := nutmeg.ArrayOptions{
		Single:    c.Single || cfg.Single,
		Overwrite: c.Override || cfg.Overwrite,
		Format:    arrayFormat,
	}

	return c.app.convertEach(c.Args.Files, func(result *nutmeg.Result) ([]string, error) {
		return nutmeg.ToArrayFiles(result, result.Path, opts)
	})
}

type convertTextCommand struct {
	Override  bool   `short:"o" long:"override" description:"Overwrite existing outputs"`
	Delimiter string `short:"d" long:"delimiter" value-name:"CHAR" description:"Field delimiter, \\t for tabs"`

	Args inputFiles `positional-args:"yes" required:"yes"`

	app *app
}

func (c *convertTextCommand) Execute(args []string) error {
	cfg := c.app.cfg

	delimiterFlag := cfg.Delimiter
	if c.Delimiter != "" {
		delimiterFlag = c.Delimiter
	}
	delimiter, err := nutmeg.ParseDelimiter(delimiterFlag)
	if err != nil {
		return &ExitError{Code: 2, Message: err.Error()}
	}

	opts := nutmeg.TextOptions{
		Overwrite: c.Override || cfg.Overwrite,
		Delimiter: delimiter,
	}

	return c.app.convertEach(c.Args.Files, func(result *nutmeg.Result) ([]string, error) {
		return nutmeg.ToTextFiles(result, result.Path, opts)
	})
}

type convertRawCommand struct {
	Encoding string `short:"e" long:"encoding" choice:"ascii" choice:"binary" required:"yes" description:"Output encoding"`
	Override bool   `short:"o" long:"override" description:"Overwrite existing outputs"`

	Args inputFiles `positional-args:"yes" required:"yes"`

	app *app
}

func (c *convertRawCommand) Execute(args []string) error {
	opts := nutmeg.RawOptions{
		Overwrite: c.Override || c.app.cfg.Overwrite,
		Encoding:  nutmeg.FormatBinary,
	}
	if c.Encoding == "ascii" {
		opts.Encoding = nutmeg.FormatASCII
	}

	return c.app.convertEach(c.Args.Files, func(result *nutmeg.Result) ([]string, error) {
		path, err := nutmeg.ToRawFile(result, result.Path, opts)
		if err != nil {
			return nil, err
		}
		return []string{path}, nil
	})
}

type infoCommand struct {
	JSON bool `long:"json" description:"Print JSON instead of text"`

	Args inputFiles `positional-args:"yes" required:"yes"`

	app *app
}

func (c *infoCommand) Execute(args []string) error {
	files, err := expandInputs(c.Args.Files)
	if err != nil {
		return err
	}

	reader := nutmeg.NewReader(c.app.cfg)
	infos := make([]nutmeg.FileInfo, 0, len(files))
	for _, file := range files {
		result, err := reader.Read(file)
		if err != nil {
			return &fileFailure{Path: file, Err: err}
		}

		var size int64
		if stat, err := os.Stat(file); err == nil {
			size = stat.Size()
		}

		infos = append(infos, nutmeg.FileInfo{
			Path:   file,
			Format: result.Format.String(),
			Size:   size,
			Plots:  result.Info(),
		})
	}

	if c.JSON {
		encoder := json.NewEncoder(c.app.stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(infos)
	}

	for _, info := range infos {
		printFileInfo(c.app, info)
	}
	return nil
}

func printFileInfo(a *app, info nutmeg.FileInfo) {
	out := a.stdout
	fmt.Fprintf(out, "%s: %s, %s, %d plots\n", info.Path, info.Format, humanize.Bytes(uint64(info.Size)), len(info.Plots))

	for i, plot := range info.Plots {
		fmt.Fprintf(out, "  [%d] %s: %q %s, %d points, %d waves\n", i, plot.Key, plot.Plotname, plot.Kind, plot.NumPoints, plot.NumWaves)
		for _, wave := range plot.Waves {
			if wave.Min != nil {
				fmt.Fprintf(out, "      %s [%s] %g .. %g\n", wave.Name, wave.Unit, *wave.Min, *wave.Max)
			} else {
				fmt.Fprintf(out, "      %s [%s]\n", wave.Name, wave.Unit)
			}
		}
	}
}

type watchCommand struct {
	To       string   `long:"to" choice:"array" choice:"text" default:"array" description:"Output kind"`
	Format   string   `short:"f" long:"format" choice:"npz" choice:"sqlite" description:"Array container format"`
	Single   bool     `short:"s" long:"single" description:"Write all plots of a file into one container"`
	Patterns []string `short:"p" long:"pattern" value-name:"GLOB" description:"File name pattern to watch, repeatable"`
	Debounce string   `long:"debounce" value-name:"DURATION" description:"Quiet period before converting"`

	Args struct {
		Dirs []string `positional-arg-name:"DIR" required:"1"`
	} `positional-args:"yes" required:"yes"`

	app *app
}

func (c *watchCommand) Execute(args []string) error {
	cfg := c.app.cfg

	if len(c.Patterns) > 0 {
		cfg.WatchPatterns = c.Patterns
	}
	if c.Debounce != "" {
		cfg.WatchDebounce = c.Debounce
	}
	if c.Format != "" {
		cfg.ArrayFormat = c.Format
	}
	cfg.Single = cfg.Single || c.Single

	debounce, err := cfg.Debounce()
	if err != nil {
		return &ExitError{Code: 2, Message: err.Error()}
	}
	arrayFormat, err := nutmeg.ParseArrayFormat(cfg.ArrayFormat)
	if err != nil {
		return &ExitError{Code: 2, Message: err.Error()}
	}
	delimiter, err := nutmeg.ParseDelimiter(cfg.Delimiter)
	if err != nil {
		return &ExitError{Code: 2, Message: err.Error()}
	}

	reader := nutmeg.NewReader(cfg)
	convert := func(ctx context.Context, path string) error {
		result, err := reader.Read(path)
		if err != nil {
			return err
		}

		// Rewritten inputs replace the outputs of their previous version.
		if c.To == "text" {
			_, err = nutmeg.ToTextFiles(result, path, nutmeg.TextOptions{Overwrite: true, Delimiter: delimiter})
		} else {
			_, err = nutmeg.ToArrayFiles(result, path, nutmeg.ArrayOptions{Single: cfg.Single, Overwrite: true, Format: arrayFormat})
		}
		return err
	}

	watcher := nutmeg.NewWatcher(c.Args.Dirs, cfg.WatchPatterns, debounce, convert)
	if err := watcher.Start(c.app.ctx); err != nil {
		return err
	}
	return watcher.Wait()
}

// convertEach reads every input and hands it to convert, printing the
// produced paths. It stops at the first failure.
func (a *app) convertEach(patterns []string, convert func(*nutmeg.Result) ([]string, error)) error {
	files, err := expandInputs(patterns)
	if err != nil {
		return err
	}

	reader := nutmeg.NewReader(a.cfg)
	start := time.Now()
	for _, file := range files {
		result, err := reader.Read(file)
		if err != nil {
			return &fileFailure{Path: file, Err: err}
		}

		produced, err := convert(result)
		if err != nil {
			return &fileFailure{Path: file, Err: err}
		}

		for _, path := range produced {
			fmt.Fprintln(a.stdout, path)
		}
	}

	logrus.WithFields(logrus.Fields{
		"tag":      "Convert",
		"files":    len(files),
		"duration": time.Since(start),
	}).Info("conversion complete")
	return nil
}

// expandInputs resolves doublestar patterns such as "sims/**/*.raw". Plain
// paths are kept as they are so that missing files are reported by the
// reader.
func expandInputs(args []string) ([]string, error) {
	files := make([]string, 0, len(args))
	for _, arg := range args {
		if !strings.ContainsAny(arg, "*?[{") {
			files = append(files, arg)
			continue
		}

		matches, err := doublestar.FilepathGlob(arg, doublestar.WithFilesOnly())
		if err != nil {
			return nil, &ExitError{Code: 2, Message: fmt.Sprintf("invalid pattern %q: %v", arg, err)}
		}
		if len(matches) == 0 {
			return nil, &fileFailure{Path: arg, Err: fmt.Errorf("%w: no file matches the pattern", nutmeg.ErrNotFound)}
		}
		files = append(files, matches...)
	}
	return files, nil
}
