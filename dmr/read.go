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
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/epivar/interval"
	"github.com/klauspost/compress/gzip"
)

func parsePositions(s string) ([]interval.PosType, error) {
	if s == "" || s == "." {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	positions := make([]interval.PosType, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseInt(part, 10, 32)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("invalid probe position %q", part)
		}
		if i > 0 && interval.PosType(v) <= positions[i-1] {
			return nil, fmt.Errorf("probe positions %q are not ascending", s)
		}
		positions[i] = interval.PosType(v)
	}
	return positions, nil
}

func parsePos(s string) (interval.PosType, error) {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid position %q", s)
	}
	return interval.PosType(v), nil
}

// ReadTSV parses WriteTSV output, with any subset of the optional columns.
// Probe ordinals are not stored, so they are set to -1.
func ReadTSV(r io.Reader) ([]DMR, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64<<10), 64<<20)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("dmr.ReadTSV: empty input")
	}
	header := strings.Split(scanner.Text(), "\t")
	required := []string{colNameChrom, colNameStart, colNameEnd, colNameSample, colNameDirection, colNameNProbes, colNameScore}
	if len(header) < len(required) {
		return nil, fmt.Errorf("dmr.ReadTSV: header has %d columns, need at least %d", len(header), len(required))
	}
	for i, name := range required {
		if header[i] != name {
			return nil, fmt.Errorf("dmr.ReadTSV: header column %d is %q, expected %q", i+1, header[i], name)
		}
	}
	colIdx := map[string]int{}
	for i, name := range header[len(required):] {
		colIdx[name] = len(required) + i
	}
	_, hasWinStart := colIdx[colNameWinStart]
	if _, hasWinEnd := colIdx[colNameWinEnd]; hasWinStart != hasWinEnd {
		return nil, fmt.Errorf("dmr.ReadTSV: %s and %s must appear together", colNameWinStart, colNameWinEnd)
	}

	var dmrs []DMR
	lineIdx := 1
	for scanner.Scan() {
		lineIdx++
		line := scanner.Text()
		if line == "" || line[0] == '#' {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != len(header) {
			return nil, fmt.Errorf("dmr.ReadTSV: line %d has %d columns, expected %d", lineIdx, len(fields), len(header))
		}
		d, err := parseRow(fields, colIdx)
		if err != nil {
			return nil, fmt.Errorf("dmr.ReadTSV: line %d: %v", lineIdx, err)
		}
		dmrs = append(dmrs, d)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return dmrs, nil
}

func parseRow(fields []string, colIdx map[string]int) (d DMR, err error) {
	d.FirstProbe, d.LastProbe = -1, -1
	d.Chrom = fields[0]
	if d.Start, err = parsePos(fields[1]); err != nil {
		return
	}
	if d.End, err = parsePos(fields[2]); err != nil {
		return
	}
	if d.End <= d.Start {
		err = fmt.Errorf("empty interval [%d, %d)", d.Start, d.End)
		return
	}
	d.Sample = fields[3]
	if d.Direction, err = ParseDirection(fields[4]); err != nil {
		return
	}
	var n int64
	if n, err = strconv.ParseInt(fields[5], 10, 32); err != nil || n < 1 {
		err = fmt.Errorf("invalid probe count %q", fields[5])
		return
	}
	d.NProbes = int(n)
	if d.Score, err = strconv.ParseFloat(fields[6], 64); err != nil {
		return
	}
	if i, ok := colIdx[colNameGroup]; ok && fields[i] != "." {
		d.Group = fields[i]
	}
	if i, ok := colIdx[colNamePositions]; ok {
		if d.Positions, err = parsePositions(fields[i]); err != nil {
			return
		}
		if d.Positions != nil && len(d.Positions) != d.NProbes {
			err = fmt.Errorf("%d positions listed for %d probes", len(d.Positions), d.NProbes)
			return
		}
	}
	if i, ok := colIdx[colNameWinStart]; ok {
		if d.WindowStart, err = parsePos(fields[i]); err != nil {
			return
		}
		if d.WindowEnd, err = parsePos(fields[colIdx[colNameWinEnd]]); err != nil {
			return
		}
	}
	return d, nil
}

// ReadFile reads a DMR TSV file; gzipped (including bgzipped) files are
// recognized by extension.
func ReadFile(ctx context.Context, path string) (dmrs []DMR, err error) {
	var infile file.File
	if infile, err = file.Open(ctx, path); err != nil {
		return
	}
	defer func() {
		if cerr := infile.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	reader := io.Reader(infile.Reader(ctx))
	if fileio.DetermineType(path) == fileio.Gzip {
		var gz *gzip.Reader
		if gz, err = gzip.NewReader(reader); err != nil {
			return
		}
		defer gz.Close()
		reader = gz
	}
	if dmrs, err = ReadTSV(reader); err != nil {
		err = fmt.Errorf("%s: %v", path, err)
	}
	return
}
