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
	"fmt"

	"github.com/grailbio/epivar/interval"
)

// Direction is the tail in which a sample is an outlier.
type Direction uint8

const (
	// DirNone marks an unflagged sample.
	DirNone Direction = iota
	// Hypo is the low tail (beta below the qcut-min quantile).
	Hypo
	// Hyper is the high tail (beta above the qcut-max quantile).
	Hyper
)

func (d Direction) String() string {
	switch d {
	case Hypo:
		return "hypo"
	case Hyper:
		return "hyper"
	}
	return "none"
}

// ParseDirection is the inverse of Direction.String.  "low" and "high" are
// accepted as synonyms.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "hypo", "low":
		return Hypo, nil
	case "hyper", "high":
		return Hyper, nil
	}
	return DirNone, fmt.Errorf("dmr.ParseDirection: unknown direction %q", s)
}

// DMR is an outlier region of one sample in one direction.  Start and End
// are half-open: End is one past the last probe position.
type DMR struct {
	Chrom      string
	Start, End interval.PosType
	Sample     string
	// Group is the sample's metadata group label, if known.
	Group     string
	Direction Direction
	NProbes   int
	Score     float64
	// Positions lists the distinct probe positions, ascending.  It is nil
	// when unknown, e.g. for regions read back from a file without the
	// POSITIONS column.
	Positions []interval.PosType
	// FirstProbe and LastProbe are chromosome-local probe ordinals, or -1
	// when unknown.
	FirstProbe, LastProbe int
	// WindowStart and WindowEnd bound the scan windows the region came from.
	WindowStart, WindowEnd interval.PosType
}

func (d *DMR) String() string {
	return fmt.Sprintf("%s:%d-%d %s %s n=%d score=%.6g", d.Chrom, d.Start, d.End, d.Sample, d.Direction, d.NProbes, d.Score)
}

// hasOrdinals is true when both probe ordinals are known.
func (d *DMR) hasOrdinals() bool {
	return d.FirstProbe >= 0 && d.LastProbe >= 0
}
