package nutmeg

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"strings"

	_ "modernc.org/sqlite"
)

// sqliteContainer stores plots in a SQLite database. Arrays are blobs of
// little-endian float64, the same layout as the npz payload.
type sqliteContainer struct {
	db *sql.DB
	tx *sql.Tx

	insertPlot  *sql.Stmt
	insertArray *sql.Stmt
}

const sqliteSchema = `
CREATE TABLE plots (
	grp TEXT NOT NULL,
	title TEXT NOT NULL,
	date TEXT NOT NULL,
	plotname TEXT NOT NULL,
	kind TEXT NOT NULL,
	num_points INTEGER NOT NULL,
	num_waves INTEGER NOT NULL,
	PRIMARY KEY (grp)
);

CREATE TABLE arrays (
	grp TEXT NOT NULL,
	name TEXT NOT NULL,
	wave TEXT NOT NULL,
	part TEXT NOT NULL,
	unit TEXT NOT NULL,
	kind TEXT NOT NULL,
	idx_order INTEGER NOT NULL,
	data BLOB NOT NULL,
	PRIMARY KEY (grp, name)
);
`

func createSQLite(path string) (*sqliteContainer, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	for _, stmt := range strings.Split(sqliteSchema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("unable to create schema: %w", err)
		}
	}

	tx, err := db.Begin()
	if err != nil {
		db.Close()
		return nil, err
	}

	c := &sqliteContainer{db: db, tx: tx}

	c.insertPlot, err = tx.Prepare(`INSERT INTO plots (grp, title, date, plotname, kind, num_points, num_waves) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		c.abort()
		return nil, err
	}

	c.insertArray, err = tx.Prepare(`INSERT INTO arrays (grp, name, wave, part, unit, kind, idx_order, data) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		c.abort()
		return nil, err
	}

	return c, nil
}

func (c *sqliteContainer) AddPlot(group string, plot *Plot) error {
	_, err := c.insertPlot.Exec(group, plot.Title, plot.Date, plot.Name, plot.Kind.String(), plot.NumPoints, len(plot.Waves))
	if err != nil {
		return fmt.Errorf("unable to insert plot %q: %w", group, err)
	}

	for i, a := range plotArrays(plot) {
		_, err := c.insertArray.Exec(group, a.name, a.wave, a.part, a.unit, plot.Kind.String(), i, float64Blob(a.data))
		if err != nil {
			return fmt.Errorf("unable to insert array %q: %w", a.name, err)
		}
	}
	return nil
}

// Close commits everything added so far. A container whose AddPlot failed is
// still closed with Close; the temporary file is discarded by the caller.
func (c *sqliteContainer) Close() error {
	c.insertPlot.Close()
	c.insertArray.Close()

	if err := c.tx.Commit(); err != nil {
		c.db.Close()
		return err
	}
	return c.db.Close()
}

func (c *sqliteContainer) abort() {
	if c.insertPlot != nil {
		c.insertPlot.Close()
	}
	c.tx.Rollback()
	c.db.Close()
}

func float64Blob(data []float64) []byte {
	buf := make([]byte, 8*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	return buf
}

func blobFloat64(buf []byte) ([]float64, error) {
	if len(buf)%8 != 0 {
		return nil, fmt.Errorf("%w: blob of %d bytes is not a float64 array", ErrMalformedRecord, len(buf))
	}

	data := make([]float64, len(buf)/8)
	for i := range data {
		data[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[8*i:]))
	}
	return data, nil
}

// ReadSQLite loads every array of a database written by ToArrayFiles, keyed
// like ReadNPZ: "<group>/<name>", or "<name>" for top-level arrays.
func ReadSQLite(path string) (map[string][]float64, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, withPath(path, fileError(err))
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, withPath(path, err)
	}
	defer db.Close()

	rows, err := db.Query(`SELECT grp, name, data FROM arrays ORDER BY grp, idx_order`)
	if err != nil {
		return nil, withPath(path, err)
	}
	defer rows.Close()

	arrays := make(map[string][]float64)
	for rows.Next() {
		var group, name string
		var blob []byte
		if err := rows.Scan(&group, &name, &blob); err != nil {
			return nil, withPath(path, err)
		}

		data, err := blobFloat64(blob)
		if err != nil {
			return nil, withPath(path, err)
		}

		key := name
		if group != "" {
			key = group + "/" + name
		}
		arrays[key] = data
	}

	if err := rows.Err(); err != nil {
		return nil, withPath(path, err)
	}
	return arrays, nil
}
