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
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/hts/bgzf"
)

// Format is an output file format.
type Format int

const (
	// FormatTSV is plain tab-separated text.
	FormatTSV Format = iota
	// FormatTSVBgz is bgzipped tab-separated text.
	FormatTSVBgz
	// FormatSQLite is a SQLite database with a single "dmr" table.
	FormatSQLite
)

var formatNames = map[string]Format{
	"tsv":     FormatTSV,
	"tsv-bgz": FormatTSVBgz,
	"sqlite":  FormatSQLite,
}

// ParseFormat maps a -format value to its Format.
func ParseFormat(s string) (Format, error) {
	if f, ok := formatNames[s]; ok {
		return f, nil
	}
	return FormatTSV, fmt.Errorf("unrecognized format %q (want tsv, tsv-bgz or sqlite)", s)
}

// Suffix is appended to the output prefix to form the output path.
func (f Format) Suffix() string {
	switch f {
	case FormatTSVBgz:
		return ".dmr.tsv.gz"
	case FormatSQLite:
		return ".dmr.sqlite"
	}
	return ".dmr.tsv"
}

const (
	colNameChrom     = "#CHROM"
	colNameStart     = "START"
	colNameEnd       = "END"
	colNameSample    = "SAMPLE"
	colNameDirection = "DIRECTION"
	colNameNProbes   = "N_PROBES"
	colNameScore     = "SCORE"
	colNameGroup     = "GROUP"
	colNamePositions = "POSITIONS"
	colNameWinStart  = "WINDOW_START"
	colNameWinEnd    = "WINDOW_END"
)

// FormatScore renders a score the way every output format stores it, so
// that output is byte-identical across runs.
func FormatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', 6, 64)
}

// writeHeader writes the header line for colBitset.
func writeHeader(tsvw *tsv.Writer, colBitset int) error {
	for _, name := range []string{colNameChrom, colNameStart, colNameEnd, colNameSample, colNameDirection, colNameNProbes, colNameScore} {
		tsvw.WriteString(name)
	}
	if (colBitset & ColBitGroup) != 0 {
		tsvw.WriteString(colNameGroup)
	}
	if (colBitset & ColBitPositions) != 0 {
		tsvw.WriteString(colNamePositions)
	}
	if (colBitset & ColBitWindows) != 0 {
		tsvw.WriteString(colNameWinStart)
		tsvw.WriteString(colNameWinEnd)
	}
	return tsvw.EndLine()
}

func writeRow(tsvw *tsv.Writer, d *DMR, colBitset int) error {
	tsvw.WriteString(d.Chrom)
	tsvw.WriteUint32(uint32(d.Start))
	tsvw.WriteUint32(uint32(d.End))
	tsvw.WriteString(d.Sample)
	tsvw.WriteString(d.Direction.String())
	tsvw.WriteUint32(uint32(d.NProbes))
	tsvw.WriteString(FormatScore(d.Score))
	if (colBitset & ColBitGroup) != 0 {
		if d.Group == "" {
			tsvw.WriteByte('.')
		} else {
			tsvw.WriteString(d.Group)
		}
	}
	if (colBitset & ColBitPositions) != 0 {
		if len(d.Positions) == 0 {
			tsvw.WriteByte('.')
		} else {
			for _, pos := range d.Positions {
				tsvw.WriteCsvUint32(uint32(pos))
			}
			tsvw.EndCsv()
		}
	}
	if (colBitset & ColBitWindows) != 0 {
		tsvw.WriteUint32(uint32(d.WindowStart))
		tsvw.WriteUint32(uint32(d.WindowEnd))
	}
	return tsvw.EndLine()
}

// WriteTSV writes a header line followed by one line per DMR.
func WriteTSV(w io.Writer, dmrs []DMR, colBitset int) error {
	tsvw := tsv.NewWriter(w)
	if err := writeHeader(tsvw, colBitset); err != nil {
		return err
	}
	for i := range dmrs {
		if err := writeRow(tsvw, &dmrs[i], colBitset); err != nil {
			return err
		}
	}
	return tsvw.Flush()
}

// Write saves dmrs to outPrefix+format.Suffix() and returns that path.
// parallelism only affects bgzip compression.
func Write(ctx context.Context, outPrefix string, format Format, dmrs []DMR, colBitset, parallelism int) (path string, err error) {
	path = outPrefix + format.Suffix()
	if format == FormatSQLite {
		err = WriteSQLite(path, dmrs)
		return
	}
	var dst file.File
	if dst, err = file.Create(ctx, path); err != nil {
		return
	}
	defer file.CloseAndReport(ctx, dst, &err)
	if format == FormatTSV {
		err = WriteTSV(dst.Writer(ctx), dmrs, colBitset)
	} else {
		bgzfWriter := bgzf.NewWriter(dst.Writer(ctx), parallelism)
		err = WriteTSV(bgzfWriter, dmrs, colBitset)
		if e := bgzfWriter.Close(); e != nil && err == nil {
			err = e
		}
	}
	if err == nil {
		log.Printf("dmr.Write: %d DMR(s) written to %s", len(dmrs), path)
	}
	return
}
