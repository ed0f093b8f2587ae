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
package epivar

import (
	"context"

	"github.com/grailbio/base/log"
	"github.com/grailbio/epivar/interval"
	"github.com/grailbio/epivar/matrix"
)

// ProbeSource yields the probes of one chromosome in ascending position
// order.  *matrix.Reader satisfies it.
type ProbeSource interface {
	Scan() bool
	Probe() *matrix.Probe
}

// Window is a [Start, End) slice of a chromosome together with the
// classified probes inside it.  Probes is only valid until the next call to
// WindowScanner.Next.
type Window struct {
	Chrom      string
	Start, End interval.PosType
	Probes     []*ClassifiedProbe
}

// WindowScanner groups one chromosome's probes into windows
// [origin + k*step, origin + k*step + size), where origin is the position of
// the first probe.  Windows without probes are not emitted.  Every probe is
// classified once, on entry; memory is bounded by the densest window.
type WindowScanner struct {
	src        ProbeSource
	classifier *Classifier
	chrom      string
	size, step int64

	origin  int64
	start   int64
	started bool
	buf     []*ClassifiedProbe
	ahead   *ClassifiedProbe
	done    bool
	ordinal int
	win     Window

	nProbes, nSkipped, nWindows, nLogged int
}

// NewWindowScanner returns a scanner over src.  0 < step <= size is assumed.
func NewWindowScanner(chrom string, src ProbeSource, size, step interval.PosType, classifier *Classifier) *WindowScanner {
	return &WindowScanner{
		src:        src,
		classifier: classifier,
		chrom:      chrom,
		size:       int64(size),
		step:       int64(step),
	}
}

// read pulls and classifies the next probe from the source.
func (s *WindowScanner) read() *ClassifiedProbe {
	if s.ahead != nil {
		cp := s.ahead
		s.ahead = nil
		return cp
	}
	if s.done {
		return nil
	}
	if !s.src.Scan() {
		s.done = true
		return nil
	}
	cp, err := s.classifier.Classify(s.src.Probe(), s.ordinal)
	s.ordinal++
	s.nProbes++
	if err != nil {
		s.nSkipped++
		if s.nLogged < maxLoggedSkips {
			log.Printf("WindowScanner: warning: %v (probe skipped)", err)
		}
		s.nLogged++
	}
	return cp
}

const maxLoggedSkips = 20

// Next advances to the next non-empty window.  It returns false at the end of
// the chromosome, or when ctx is done, in which case the partial state is
// dropped.
func (s *WindowScanner) Next(ctx context.Context) bool {
	if ctx.Err() != nil {
		s.buf, s.ahead, s.done = nil, nil, true
		return false
	}
	if !s.started {
		first := s.read()
		if first == nil {
			return false
		}
		s.started = true
		s.origin = int64(first.Pos)
		s.start = s.origin
		s.buf = append(s.buf[:0], first)
	} else {
		s.start += s.step
		n := 0
		for n < len(s.buf) && int64(s.buf[n].Pos) < s.start {
			n++
		}
		s.buf = s.buf[:copy(s.buf, s.buf[n:])]
		if len(s.buf) == 0 {
			cp := s.read()
			if cp == nil {
				return false
			}
			s.buf = append(s.buf, cp)
		}
		// Skip to the first grid window containing the lowest buffered probe.
		if pos := int64(s.buf[0].Pos); pos >= s.start+s.size {
			k := (pos-s.origin-s.size)/s.step + 1
			s.start = s.origin + k*s.step
		}
	}
	end := s.start + s.size
	for {
		cp := s.read()
		if cp == nil {
			break
		}
		if int64(cp.Pos) >= end {
			s.ahead = cp
			break
		}
		s.buf = append(s.buf, cp)
	}
	if end > interval.PosTypeMax {
		end = interval.PosTypeMax
	}
	s.nWindows++
	s.win = Window{
		Chrom:  s.chrom,
		Start:  interval.PosType(s.start),
		End:    interval.PosType(end),
		Probes: s.buf,
	}
	return true
}

// Window returns the window found by the last successful Next.
func (s *WindowScanner) Window() *Window {
	return &s.win
}

// Stats returns the number of probes read, probes skipped for an
// insufficient cohort, and windows emitted.
func (s *WindowScanner) Stats() (probes, skipped, windows int) {
	return s.nProbes, s.nSkipped, s.nWindows
}

func (s *WindowScanner) logSummary() {
	if s.nLogged > maxLoggedSkips {
		log.Printf("WindowScanner: warning: %s: %d further skipped probe(s) not shown", s.chrom, s.nLogged-maxLoggedSkips)
	}
}
