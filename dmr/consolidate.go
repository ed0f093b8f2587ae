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
	"sort"

	"github.com/grailbio/epivar/interval"
)

// Aggregate selects how the scores of merged regions combine.
type Aggregate uint8

const (
	// AggregateMax keeps the highest constituent score.
	AggregateMax Aggregate = iota
	// AggregateSum adds the constituent scores.
	AggregateSum
)

func (a Aggregate) String() string {
	if a == AggregateSum {
		return "sum"
	}
	return "max"
}

// ParseAggregate maps "max" and "sum" to their Aggregate.
func ParseAggregate(s string) (Aggregate, error) {
	switch s {
	case "max":
		return AggregateMax, nil
	case "sum":
		return AggregateSum, nil
	}
	return AggregateMax, fmt.Errorf("unknown score aggregate %q (want max or sum)", s)
}

// ConsolidateOpts controls Consolidate.
type ConsolidateOpts struct {
	// MergeDistance is the largest gap, in bases, between the end of one
	// region and the start of the next that still merges them.  0 merges
	// touching and overlapping regions only.
	MergeDistance int
	Aggregate     Aggregate
}

var DefaultConsolidateOpts = ConsolidateOpts{}

// sameKey is true when a and b may be merged at all.
func sameKey(a, b *DMR) bool {
	return a.Chrom == b.Chrom && a.Sample == b.Sample && a.Direction == b.Direction
}

// sweepLess orders regions for the merge sweep.
func sweepLess(a, b *DMR) bool {
	if a.Chrom != b.Chrom {
		return a.Chrom < b.Chrom
	}
	if a.Sample != b.Sample {
		return a.Sample < b.Sample
	}
	if a.Direction != b.Direction {
		return a.Direction < b.Direction
	}
	if a.Start != b.Start {
		return a.Start < b.Start
	}
	return a.End < b.End
}

// canExtend is true when next, which does not sort before d, continues d:
// either their spans are within MergeDistance, or next's run starts at most
// one probe after d's run ends in an adjacent or overlapping window.
func (d *DMR) canExtend(next *DMR, mergeDistance int) bool {
	if int64(next.Start)-int64(d.End) <= int64(mergeDistance) {
		return true
	}
	return d.hasOrdinals() && next.hasOrdinals() &&
		next.FirstProbe <= d.LastProbe+1 && next.WindowStart <= d.WindowEnd
}

// extend merges next into d.
func (d *DMR) extend(next *DMR, agg Aggregate) {
	if next.Start < d.Start {
		d.Start = next.Start
	}
	if next.End > d.End {
		d.End = next.End
	}
	if d.Positions != nil && next.Positions != nil {
		d.Positions = unionPositions(d.Positions, next.Positions)
		d.NProbes = len(d.Positions)
	} else {
		d.Positions = nil
		d.NProbes += next.NProbes
	}
	if d.hasOrdinals() && next.hasOrdinals() {
		if next.FirstProbe < d.FirstProbe {
			d.FirstProbe = next.FirstProbe
		}
		if next.LastProbe > d.LastProbe {
			d.LastProbe = next.LastProbe
		}
	} else {
		d.FirstProbe, d.LastProbe = -1, -1
	}
	if next.WindowStart < d.WindowStart {
		d.WindowStart = next.WindowStart
	}
	if next.WindowEnd > d.WindowEnd {
		d.WindowEnd = next.WindowEnd
	}
	if d.Group == "" {
		d.Group = next.Group
	}
	switch agg {
	case AggregateSum:
		d.Score += next.Score
	default:
		if next.Score > d.Score {
			d.Score = next.Score
		}
	}
}

// unionPositions merges two ascending position lists, dropping duplicates.
func unionPositions(a, b []interval.PosType) []interval.PosType {
	out := make([]interval.PosType, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		case a[i] > b[j]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}

// Consolidate merges regions of the same chromosome, sample and direction
// whose spans are within opts.MergeDistance of each other, or which
// continue one probe run across a window boundary.  The merge is a single
// sweep over regions sorted by start, each compared against the region
// accumulated so far, so it is transitive.  The result is in output order
// (see Sort) and consolidating it again changes nothing.  The input is not
// modified.
func Consolidate(regions []DMR, opts ConsolidateOpts) []DMR {
	if len(regions) == 0 {
		return nil
	}
	sorted := make([]DMR, len(regions))
	copy(sorted, regions)
	sort.SliceStable(sorted, func(i, j int) bool { return sweepLess(&sorted[i], &sorted[j]) })

	out := make([]DMR, 0, len(sorted))
	cur := sorted[0]
	cur.Positions = append([]interval.PosType(nil), cur.Positions...)
	for i := 1; i < len(sorted); i++ {
		next := &sorted[i]
		if sameKey(&cur, next) && cur.canExtend(next, opts.MergeDistance) {
			cur.extend(next, opts.Aggregate)
			continue
		}
		out = append(out, cur)
		cur = *next
		cur.Positions = append([]interval.PosType(nil), cur.Positions...)
	}
	out = append(out, cur)
	Sort(out)
	return out
}

// Less is the output order: natural chromosome order, then start, end,
// sample and direction.
func Less(a, b *DMR) bool {
	if c := interval.CompareChrom(a.Chrom, b.Chrom); c != 0 {
		return c < 0
	}
	if a.Start != b.Start {
		return a.Start < b.Start
	}
	if a.End != b.End {
		return a.End < b.End
	}
	if a.Sample != b.Sample {
		return a.Sample < b.Sample
	}
	return a.Direction < b.Direction
}

// Sort puts dmrs in output order.
func Sort(dmrs []DMR) {
	sort.SliceStable(dmrs, func(i, j int) bool { return Less(&dmrs[i], &dmrs[j]) })
}
