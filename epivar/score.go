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
	"fmt"
	"math"
	"sort"

	"github.com/grailbio/epivar/dmr"
)

// ScoreFunc rates a candidate.  Implementations must be deterministic, and
// must not decrease when the run gets longer or its betas get more extreme.
type ScoreFunc func(c *Candidate) float64

var scorers = map[string]ScoreFunc{
	"distance": DistanceScore,
	"zscore":   ZScore,
}

// LookupScorer returns the scorer registered under name.
func LookupScorer(name string) (ScoreFunc, error) {
	if f, ok := scorers[name]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("unknown scorer %q", name)
}

// ScorerNames lists the registered scorers in sorted order.
func ScorerNames() []string {
	names := make([]string, 0, len(scorers))
	for name := range scorers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DistanceScore sums, over the run, how far the sample's beta lies beyond the
// quantile boundary it crossed.
func DistanceScore(c *Candidate) float64 {
	var score float64
	for _, cp := range c.Probes {
		b := cp.Betas[c.Sample]
		if c.Direction == dmr.Hyper {
			score += b - cp.QHigh
		} else {
			score += cp.QLow - b
		}
	}
	return score
}

// ZScore sums |beta - mean| / sd over the run, using each probe's cohort
// mean and sample standard deviation.
func ZScore(c *Candidate) float64 {
	var score float64
	for _, cp := range c.Probes {
		if cp.SD > 0 {
			score += math.Abs(cp.Betas[c.Sample]-cp.Mean) / cp.SD
		}
	}
	return score
}
