package nutmeg

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zip"
)

// npzContainer writes a numpy .npz archive. Entries carry no timestamps, so
// the same plots always produce the same bytes.
type npzContainer struct {
	f  *os.File
	zw *zip.Writer

	// Entry names written so far.
	names map[string]struct{}
}

func createNPZ(path string) (*npzContainer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fileError(err)
	}

	return &npzContainer{
		f:     f,
		zw:    zip.NewWriter(f),
		names: make(map[string]struct{}),
	}, nil
}

func (c *npzContainer) AddPlot(group string, plot *Plot) error {
	for _, a := range plotArrays(plot) {
		name := npzEntryName(group, a.name)
		if _, ok := c.names[name]; ok {
			return &ExistsError{Paths: []string{name}, Err: ErrTargetCollision}
		}
		c.names[name] = struct{}{}

		w, err := c.zw.CreateHeader(&zip.FileHeader{
			Name:   name,
			Method: zip.Deflate,
		})
		if err != nil {
			return fmt.Errorf("unable to add %s: %w", name, err)
		}

		if err := writeNPY(w, a.data); err != nil {
			return fmt.Errorf("unable to write %s: %w", name, err)
		}
	}
	return nil
}

func (c *npzContainer) Close() error {
	zipErr := c.zw.Close()
	fileErr := c.f.Close()
	if zipErr != nil {
		return zipErr
	}
	return fileErr
}

// Slashes separate the group from the array name, so they cannot appear in
// either. Names differing only in '/' versus '_' map to the same entry;
// npzCollisions finds them before anything is written.
func npzEntryName(group, name string) string {
	name = strings.ReplaceAll(name, "/", "_") + ".npy"
	if group == "" {
		return name
	}
	return strings.ReplaceAll(group, "/", "_") + "/" + name
}

// ReadNPZ loads every array of an archive written by ToArrayFiles, keyed by
// its entry name without the .npy suffix ("tran/time" in single mode).
func ReadNPZ(path string) (map[string][]float64, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, withPath(path, fileError(err))
	}
	defer zr.Close()

	arrays := make(map[string][]float64, len(zr.File))
	for _, f := range zr.File {
		if !strings.HasSuffix(f.Name, ".npy") {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", path, f.Name, err)
		}
		buf, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", path, f.Name, err)
		}

		data, err := readNPY(buf)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", path, f.Name, err)
		}
		arrays[strings.TrimSuffix(f.Name, ".npy")] = data
	}

	return arrays, nil
}

// npzCollisions lists the archive entries that two arrays of result would
// share, as "<target>:<entry>". Archives are checked one by one unless
// single is set.
func npzCollisions(result *Result, targets []string, single bool) []string {
	var collisions []string
	seen := make(map[string]struct{})

	for i, e := range result.Entries {
		target, group := targets[0], e.Key
		if !single {
			target, group = targets[i], ""
			seen = make(map[string]struct{})
		}

		for _, name := range arrayNames(e.Plot) {
			entry := npzEntryName(group, name)
			if _, ok := seen[entry]; ok {
				collisions = append(collisions, target+":"+entry)
				continue
			}
			seen[entry] = struct{}{}
		}
	}
	return stableUnique(collisions)
}
