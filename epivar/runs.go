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
	"github.com/grailbio/epivar/dmr"
	"github.com/grailbio/epivar/interval"
)

// Candidate is a run of at least MinRunLength consecutive window probes at
// which one sample is flagged in one direction.
type Candidate struct {
	Chrom     string
	Sample    int
	Direction dmr.Direction
	// Probes is the run, in position order.  The slice is owned by the
	// Candidate.
	Probes                 []*ClassifiedProbe
	WindowStart, WindowEnd interval.PosType
	Score                  float64
}

// Start is the position of the first probe of the run.
func (c *Candidate) Start() interval.PosType {
	return c.Probes[0].Pos
}

// End is one past the position of the last probe of the run.
func (c *Candidate) End() interval.PosType {
	return c.Probes[len(c.Probes)-1].Pos + 1
}

// DMR converts c into a single-candidate region.
func (c *Candidate) DMR(sample, group string) dmr.DMR {
	positions := make([]interval.PosType, len(c.Probes))
	for i, cp := range c.Probes {
		positions[i] = cp.Pos
	}
	return dmr.DMR{
		Chrom:       c.Chrom,
		Start:       c.Start(),
		End:         c.End(),
		Sample:      sample,
		Group:       group,
		Direction:   c.Direction,
		NProbes:     len(c.Probes),
		Score:       c.Score,
		Positions:   positions,
		FirstProbe:  c.Probes[0].Ordinal,
		LastProbe:   c.Probes[len(c.Probes)-1].Ordinal,
		WindowStart: c.WindowStart,
		WindowEnd:   c.WindowEnd,
	}
}

// FindRuns returns the candidates of w, ordered by sample and then by
// position.  A run is broken by any probe at which the sample is unflagged,
// flagged in the other direction, or skipped.
func FindRuns(w *Window, nSample, minRunLength int) []Candidate {
	var out []Candidate
	emit := func(sample int, dir dmr.Direction, begin, end int) {
		if dir == dmr.DirNone || end-begin < minRunLength {
			return
		}
		probes := make([]*ClassifiedProbe, end-begin)
		copy(probes, w.Probes[begin:end])
		out = append(out, Candidate{
			Chrom:       w.Chrom,
			Sample:      sample,
			Direction:   dir,
			Probes:      probes,
			WindowStart: w.Start,
			WindowEnd:   w.End,
		})
	}
	for sample := 0; sample < nSample; sample++ {
		runDir, runBegin := dmr.DirNone, 0
		for j, cp := range w.Probes {
			if dir := cp.Direction(sample); dir != runDir {
				emit(sample, runDir, runBegin, j)
				runDir, runBegin = dir, j
			}
		}
		emit(sample, runDir, runBegin, len(w.Probes))
	}
	return out
}
