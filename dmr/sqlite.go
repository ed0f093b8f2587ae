// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package dmr

import (
	"strconv"
	"strings"

	"github.com/grailbio/epivar/interval"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE dmr (
	chrom TEXT NOT NULL,
	start_pos INTEGER NOT NULL,
	end_pos INTEGER NOT NULL,
	sample TEXT NOT NULL,
	sample_group TEXT NOT NULL,
	direction TEXT NOT NULL,
	n_probes INTEGER NOT NULL,
	score TEXT NOT NULL,
	positions TEXT NOT NULL,
	window_start INTEGER NOT NULL,
	window_end INTEGER NOT NULL
)`

const sqliteInsert = `INSERT INTO dmr (chrom, start_pos, end_pos, sample, sample_group, direction, n_probes, score, positions, window_start, window_end)
VALUES (:chrom, :start_pos, :end_pos, :sample, :sample_group, :direction, :n_probes, :score, :positions, :window_start, :window_end)`

// sqliteRow is one row of the "dmr" table.  Scores are stored as text, in
// FormatScore form, so the table agrees exactly with the TSV output.
type sqliteRow struct {
	Chrom       string `db:"chrom"`
	Start       int64  `db:"start_pos"`
	End         int64  `db:"end_pos"`
	Sample      string `db:"sample"`
	Group       string `db:"sample_group"`
	Direction   string `db:"direction"`
	NProbes     int64  `db:"n_probes"`
	Score       string `db:"score"`
	Positions   string `db:"positions"`
	WindowStart int64  `db:"window_start"`
	WindowEnd   int64  `db:"window_end"`
}

func sqliteURI(path string) string {
	// URI filenames have to begin with 'file:'; see
	// https://www.sqlite.org/c3ref/open.html .
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	return path
}

func joinPositions(positions []interval.PosType) string {
	if len(positions) == 0 {
		return ""
	}
	buf := make([]byte, 0, 10*len(positions))
	for i, pos := range positions {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendInt(buf, int64(pos), 10)
	}
	return string(buf)
}

// WriteSQLite (re)creates table "dmr" in the SQLite database at path.  Only
// local paths are supported.
func WriteSQLite(path string, dmrs []DMR) (err error) {
	db, err := sqlx.Connect("sqlite", sqliteURI(path))
	if err != nil {
		return errors.Wrapf(err, "couldn't open %s", path)
	}
	defer func() {
		if e := db.Close(); e != nil && err == nil {
			err = e
		}
	}()
	if _, err = db.Exec("DROP TABLE IF EXISTS dmr"); err != nil {
		return errors.Wrap(err, path)
	}
	if _, err = db.Exec(sqliteSchema); err != nil {
		return errors.Wrap(err, path)
	}
	tx, err := db.Beginx()
	if err != nil {
		return errors.Wrap(err, path)
	}
	for i := range dmrs {
		d := &dmrs[i]
		row := sqliteRow{
			Chrom:       d.Chrom,
			Start:       int64(d.Start),
			End:         int64(d.End),
			Sample:      d.Sample,
			Group:       d.Group,
			Direction:   d.Direction.String(),
			NProbes:     int64(d.NProbes),
			Score:       FormatScore(d.Score),
			Positions:   joinPositions(d.Positions),
			WindowStart: int64(d.WindowStart),
			WindowEnd:   int64(d.WindowEnd),
		}
		if _, err = tx.NamedExec(sqliteInsert, &row); err != nil {
			_ = tx.Rollback()
			return errors.Wrapf(err, "%s: inserting %v", path, d)
		}
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, path)
	}
	return nil
}

// ReadSQLite loads table "dmr" from path in insertion order.
func ReadSQLite(path string) (dmrs []DMR, err error) {
	db, err := sqlx.Connect("sqlite", sqliteURI(path))
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't open %s", path)
	}
	defer func() {
		if e := db.Close(); e != nil && err == nil {
			err = e
		}
	}()
	var rows []sqliteRow
	if err = db.Select(&rows, "SELECT * FROM dmr ORDER BY rowid"); err != nil {
		return nil, errors.Wrap(err, path)
	}
	dmrs = make([]DMR, len(rows))
	for i, row := range rows {
		d := DMR{
			Chrom:       row.Chrom,
			Start:       interval.PosType(row.Start),
			End:         interval.PosType(row.End),
			Sample:      row.Sample,
			Group:       row.Group,
			NProbes:     int(row.NProbes),
			FirstProbe:  -1,
			LastProbe:   -1,
			WindowStart: interval.PosType(row.WindowStart),
			WindowEnd:   interval.PosType(row.WindowEnd),
		}
		if d.Direction, err = ParseDirection(row.Direction); err != nil {
			return nil, errors.Wrap(err, path)
		}
		if d.Score, err = strconv.ParseFloat(row.Score, 64); err != nil {
			return nil, errors.Wrap(err, path)
		}
		if d.Positions, err = parsePositions(row.Positions); err != nil {
			return nil, errors.Wrap(err, path)
		}
		dmrs[i] = d
	}
	return dmrs, nil
}
