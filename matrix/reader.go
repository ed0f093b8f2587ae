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
package matrix

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"sync/atomic"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/grailbio/epivar/interval"
	"github.com/klauspost/compress/gzip"
)

// maxLoggedMalformed is the number of malformed rows a single Reader reports
// individually before it switches to a summary at the end.
const maxLoggedMalformed = 20

// Counter is a malformed-row counter which may be shared between Readers.
type Counter struct {
	n int64
}

// Add increments the counter and returns the new value.
func (c *Counter) Add(delta int64) int64 {
	return atomic.AddInt64(&c.n, delta)
}

// Load returns the current value.
func (c *Counter) Load() int64 {
	return atomic.LoadInt64(&c.n)
}

// Opts controls Reader behavior.
type Opts struct {
	// MaxMalformed bounds the number of malformed rows tolerated before
	// reading fails with TooManyMalformedError.  Negative means no limit.
	MaxMalformed int
	// Malformed, if non-nil, is shared by every Reader of one run, so that
	// MaxMalformed applies to the whole input rather than to each block.
	Malformed *Counter
}

// DefaultOpts tolerates any number of malformed rows.
var DefaultOpts = Opts{MaxMalformed: -1}

// Header describes the matrix columns.
type Header struct {
	// Samples lists the sample ids in column order; Probe.Betas uses the same
	// indexing.
	Samples []string
}

// Probe is one parsed matrix row.  It is immutable once returned.
type Probe struct {
	ID    string
	Chrom string
	Pos   interval.PosType
	// Betas[i] is the beta value of Header.Samples[i], or NaN if missing.
	Betas []float64
	// Line is the 1-based input line the probe was read from.
	Line int
}

// Stats summarizes what a Reader has consumed.
type Stats struct {
	// Rows counts non-blank, non-comment data lines.
	Rows int
	// Probes counts rows handed out by Scan.
	Probes int
	// Malformed counts rows skipped as MalformedInputError.
	Malformed int
	// Discarded counts well-formed rows dropped because their chromosome
	// failed with an OrderingViolationError, or because the caller moved on
	// before reading them.
	Discarded int
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Rows += o.Rows
	s.Probes += o.Probes
	s.Malformed += o.Malformed
	s.Discarded += o.Discarded
}

// Reader iterates over the chromosome blocks of a sorted beta-value matrix:
//
//   for r.NextChrom() {
//     for r.Scan() {
//       p := r.Probe()
//       ...
//     }
//     if err := r.ChromErr(); err != nil {
//       ... // the chromosome failed; other chromosomes are still readable
//     }
//   }
//   if err := r.Err(); err != nil {
//     ...
//   }
type Reader struct {
	path   string
	opts   Opts
	header Header
	lr     *lineReader
	fields [][]byte

	in file.File
	gz io.Closer

	// single is set for block readers, which stop after one chromosome.
	// blockChrom is that chromosome.
	single     bool
	blockChrom string
	nChrom     int
	chrom      string
	seen       map[string]bool

	pending  *Probe
	probe    *Probe
	lastPos  interval.PosType
	havePos  bool
	chromErr error
	err      error
	eof      bool

	stats   Stats
	nLogged int
}

func newReader(lr *lineReader, path string, header Header, opts Opts) *Reader {
	if opts.Malformed == nil {
		opts.Malformed = &Counter{}
	}
	return &Reader{
		path:   path,
		opts:   opts,
		header: header,
		lr:     lr,
		fields: make([][]byte, 3+len(header.Samples)),
		seen:   make(map[string]bool),
	}
}

// NewReader reads the header from r and returns a Reader positioned before
// the first chromosome.
func NewReader(r io.Reader, opts Opts) (*Reader, error) {
	return newStreamReader(r, "", opts)
}

func newStreamReader(r io.Reader, path string, opts Opts) (*Reader, error) {
	lr := newLineReader(r, 0, 0)
	header, err := readHeader(lr, path)
	if err != nil {
		return nil, err
	}
	return newReader(lr, path, header, opts), nil
}

// openStream opens path and wraps it in a decompressor if its extension
// calls for one.
func openStream(ctx context.Context, path string) (in file.File, raw io.ReadSeeker, rd io.Reader, gz io.Closer, err error) {
	if in, err = file.Open(ctx, path); err != nil {
		err = errors.E(err, "matrix: open", path)
		return
	}
	raw = in.Reader(ctx)
	rd = raw
	if fileio.DetermineType(path) == fileio.Gzip {
		var gzr *gzip.Reader
		if gzr, err = gzip.NewReader(raw); err != nil {
			_ = in.Close(ctx)
			err = errors.E(err, "matrix: gzip", path)
			return
		}
		rd, gz = gzr, gzr
	}
	return
}

// Open opens the matrix at path for sequential reading.
func Open(ctx context.Context, path string, opts Opts) (*Reader, error) {
	in, _, rd, gz, err := openStream(ctx, path)
	if err != nil {
		return nil, err
	}
	r, err := newStreamReader(rd, path, opts)
	if err != nil {
		if gz != nil {
			_ = gz.Close()
		}
		_ = in.Close(ctx)
		return nil, err
	}
	r.in, r.gz = in, gz
	return r, nil
}

// Close releases the underlying file, if the Reader opened one.
func (r *Reader) Close(ctx context.Context) (err error) {
	r.logSummary()
	if r.gz != nil {
		err = r.gz.Close()
		r.gz = nil
	}
	if r.in != nil {
		if e := r.in.Close(ctx); e != nil && err == nil {
			err = e
		}
		r.in = nil
	}
	return
}

// readHeader consumes lines up to and including the header.
func readHeader(lr *lineReader, path string) (Header, error) {
	for {
		line, _, err := lr.next()
		if err == io.EOF {
			return Header{}, &MalformedInputError{Path: path, Line: lr.line, Reason: "missing header line"}
		}
		if err != nil {
			return Header{}, err
		}
		if isBlank(line) {
			continue
		}
		return parseHeader(line, path, lr.line)
	}
}

func isBlank(line []byte) bool {
	for _, c := range line {
		if c > ' ' {
			return false
		}
	}
	return true
}

func parseHeader(line []byte, path string, lineNum int) (Header, error) {
	if line[0] == '#' {
		line = line[1:]
	}
	n := splitTabs(nil, line)
	if n < 4 {
		return Header{}, &MalformedInputError{Path: path, Line: lineNum, Reason: fmt.Sprintf("header has %d column(s); need probe id, chromosome, position and at least one sample", n)}
	}
	fields := make([][]byte, n)
	splitTabs(fields, line)
	h := Header{Samples: make([]string, 0, n-3)}
	seen := make(map[string]bool, n-3)
	for _, f := range fields[3:] {
		name := string(f)
		if name == "" {
			return Header{}, &MalformedInputError{Path: path, Line: lineNum, Reason: "empty sample id in header"}
		}
		if seen[name] {
			return Header{}, &MalformedInputError{Path: path, Line: lineNum, Reason: fmt.Sprintf("duplicate sample id %q in header", name)}
		}
		seen[name] = true
		h.Samples = append(h.Samples, name)
	}
	return h, nil
}

// Header returns the parsed header.
func (r *Reader) Header() Header {
	return r.header
}

// Path returns the input path, or "" for streams.
func (r *Reader) Path() string {
	return r.path
}

// Stats returns the reader's counters so far.
func (r *Reader) Stats() Stats {
	return r.stats
}

// Err returns the first fatal error: I/O failure or TooManyMalformedError.
func (r *Reader) Err() error {
	return r.err
}

// ChromErr returns the OrderingViolationError, if any, that ended the current
// chromosome.
func (r *Reader) ChromErr() error {
	return r.chromErr
}

// Chrom returns the current chromosome name.
func (r *Reader) Chrom() string {
	return r.chrom
}

// Probe returns the probe read by the last successful Scan.
func (r *Reader) Probe() *Probe {
	return r.probe
}

func isMissing(tok []byte) bool {
	switch gunsafe.BytesToString(tok) {
	case "NA", "NaN", "nan", ".", "":
		return true
	}
	return false
}

// parseRow returns the parsed probe, or a non-empty reason if the row is
// malformed.
func (r *Reader) parseRow(line []byte) (*Probe, string) {
	fields := r.fields
	want := len(fields)
	if n := splitTabs(fields, line); n != want {
		return nil, fmt.Sprintf("expected %d columns (%d samples), found %d", want, want-3, n)
	}
	if len(fields[0]) == 0 {
		return nil, "empty probe id"
	}
	if len(fields[1]) == 0 {
		return nil, "empty chromosome"
	}
	pos, err := strconv.ParseInt(gunsafe.BytesToString(fields[2]), 10, 32)
	if err != nil || pos < 0 {
		return nil, fmt.Sprintf("invalid position %q", fields[2])
	}
	p := &Probe{
		ID:    string(fields[0]),
		Pos:   interval.PosType(pos),
		Betas: make([]float64, want-3),
		Line:  r.lr.line,
	}
	for i, tok := range fields[3:] {
		if isMissing(tok) {
			p.Betas[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(gunsafe.BytesToString(tok), 64)
		if err != nil {
			return nil, fmt.Sprintf("non-numeric beta %q for sample %s", tok, r.header.Samples[i])
		}
		if !(v >= 0 && v <= 1) {
			return nil, fmt.Sprintf("beta %v for sample %s outside [0, 1]", v, r.header.Samples[i])
		}
		p.Betas[i] = v
	}
	// Chromosome names repeat for every row of a block; avoid reallocating.
	chrom := gunsafe.BytesToString(fields[1])
	switch {
	case chrom == r.chrom:
		p.Chrom = r.chrom
	case r.pending != nil && chrom == r.pending.Chrom:
		p.Chrom = r.pending.Chrom
	default:
		p.Chrom = string(fields[1])
	}
	return p, ""
}

func (r *Reader) malformed(reason string) {
	r.stats.Malformed++
	n := r.opts.Malformed.Add(1)
	if r.nLogged < maxLoggedMalformed {
		log.Printf("matrix.Reader: warning: %v (row skipped)", &MalformedInputError{Path: r.path, Line: r.lr.line, Reason: reason})
	}
	r.nLogged++
	if r.opts.MaxMalformed >= 0 && n > int64(r.opts.MaxMalformed) {
		r.err = &TooManyMalformedError{Path: r.path, Malformed: n, Max: r.opts.MaxMalformed}
	}
}

func (r *Reader) logSummary() {
	if r.nLogged > maxLoggedMalformed {
		log.Printf("matrix.Reader: warning: %s: %d further malformed row(s) not shown", displayPath(r.path), r.nLogged-maxLoggedMalformed)
		r.nLogged = maxLoggedMalformed
	}
}

// next returns the next well-formed row, or nil at EOF or on a fatal error.
func (r *Reader) next() *Probe {
	for r.err == nil && !r.eof {
		line, _, err := r.lr.next()
		if err == io.EOF {
			r.eof = true
			r.logSummary()
			return nil
		}
		if err != nil {
			r.err = errors.E(err, "matrix: read", displayPath(r.path))
			return nil
		}
		if isBlankOrComment(line) {
			continue
		}
		r.stats.Rows++
		p, reason := r.parseRow(line)
		if reason != "" {
			r.malformed(reason)
			continue
		}
		return p
	}
	return nil
}

// park holds p, the first row of the next chromosome, for NextChrom.  A block
// reader never returns it, and leaves counting it to that block's reader.
func (r *Reader) park(p *Probe) {
	r.pending = p
	if r.single {
		r.stats.Rows--
	}
}

// NextChrom advances to the next chromosome block, discarding any unread
// probes of the current one.  It returns false at the end of input or on a
// fatal error.
func (r *Reader) NextChrom() bool {
	if r.err != nil {
		return false
	}
	if r.nChrom > 0 {
		if r.pending != nil && r.pending.Chrom == r.chrom {
			r.pending = nil
			r.stats.Discarded++
		}
		if r.pending == nil {
			for {
				p := r.next()
				if p == nil {
					break
				}
				if p.Chrom != r.chrom {
					r.park(p)
					break
				}
				r.stats.Discarded++
			}
		}
		if r.single || r.err != nil {
			return false
		}
	}
	if r.pending == nil {
		if p := r.next(); p != nil && r.single && p.Chrom != r.blockChrom {
			// Every row of the block was malformed.
			r.park(p)
		} else {
			r.pending = p
		}
	}
	if r.pending == nil || (r.single && r.pending.Chrom != r.blockChrom) {
		return false
	}
	r.chrom = r.pending.Chrom
	r.nChrom++
	r.chromErr = nil
	r.havePos = false
	r.probe = nil
	if r.seen[r.chrom] {
		r.chromErr = &OrderingViolationError{Path: r.path, Chrom: r.chrom, Line: r.pending.Line, Split: true}
	}
	r.seen[r.chrom] = true
	return true
}

// Scan advances to the next probe of the current chromosome.  It returns
// false at the end of the chromosome, on an ordering violation (see
// ChromErr), or on a fatal error (see Err).
func (r *Reader) Scan() bool {
	if r.err != nil || r.chromErr != nil || r.nChrom == 0 {
		return false
	}
	var p *Probe
	if r.pending != nil {
		if r.pending.Chrom != r.chrom {
			return false
		}
		p, r.pending = r.pending, nil
	} else {
		if p = r.next(); p == nil {
			return false
		}
		if p.Chrom != r.chrom {
			r.park(p)
			return false
		}
	}
	if r.havePos && p.Pos <= r.lastPos {
		r.chromErr = &OrderingViolationError{Path: r.path, Chrom: r.chrom, Line: p.Line, Pos: p.Pos, PrevPos: r.lastPos}
		r.stats.Discarded++
		return false
	}
	r.lastPos, r.havePos = p.Pos, true
	r.probe = p
	r.stats.Probes++
	return true
}
