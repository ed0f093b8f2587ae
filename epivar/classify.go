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
	"math"
	"sort"

	"github.com/grailbio/epivar/dmr"
	"github.com/grailbio/epivar/matrix"
	"github.com/willf/bitset"
	"gonum.org/v1/gonum/stat"
)

// ClassifiedProbe is a probe together with its cohort statistics and the
// samples flagged at it.
type ClassifiedProbe struct {
	*matrix.Probe
	// Ordinal is the probe's 0-based index among the scanned probes of its
	// chromosome.
	Ordinal int
	// Skipped is set when the cohort was too small; no sample is flagged then.
	Skipped bool
	// N is the number of non-missing betas.
	N int
	// QLow and QHigh are the qcut-min and qcut-max quantiles of the cohort.
	QLow, QHigh float64
	Mean, SD    float64
	// Low and High hold the indices of samples below QLow and above QHigh.
	Low, High *bitset.BitSet
}

// Direction returns the flag of sample i.
func (c *ClassifiedProbe) Direction(i int) dmr.Direction {
	switch {
	case c.High.Test(uint(i)):
		return dmr.Hyper
	case c.Low.Test(uint(i)):
		return dmr.Hypo
	}
	return dmr.DirNone
}

// NFlagged returns the number of flagged samples.
func (c *ClassifiedProbe) NFlagged() int {
	return int(c.High.Count() + c.Low.Count())
}

// Classifier flags per-sample outliers against per-probe cohort quantiles.
// It is not safe for concurrent use.
type Classifier struct {
	qCutMin, qCutMax float64
	minCohort        int
	buf              []float64
}

// NewClassifier returns a classifier for the given quantile cutoffs.  Probes
// with fewer than minCohort non-missing values are skipped.
func NewClassifier(qCutMin, qCutMax float64, minCohort int) *Classifier {
	return &Classifier{qCutMin: qCutMin, qCutMax: qCutMax, minCohort: minCohort}
}

// Classify computes the quantile boundaries of p and flags samples strictly
// outside them.  Missing betas never flag.  A non-nil error is always an
// *InsufficientCohortError, in which case the result is marked Skipped.
func (c *Classifier) Classify(p *matrix.Probe, ordinal int) (*ClassifiedProbe, error) {
	n := len(p.Betas)
	cp := &ClassifiedProbe{
		Probe:   p,
		Ordinal: ordinal,
		Low:     bitset.New(uint(n)),
		High:    bitset.New(uint(n)),
	}
	vals := c.buf[:0]
	for _, b := range p.Betas {
		if !math.IsNaN(b) {
			vals = append(vals, b)
		}
	}
	c.buf = vals
	cp.N = len(vals)
	if cp.N < c.minCohort {
		cp.Skipped = true
		return cp, &InsufficientCohortError{ProbeID: p.ID, Chrom: p.Chrom, Pos: p.Pos, N: cp.N, Min: c.minCohort}
	}
	sort.Float64s(vals)
	cp.QLow = quantile(c.qCutMin, vals)
	cp.QHigh = quantile(c.qCutMax, vals)
	cp.Mean, cp.SD = stat.MeanStdDev(vals, nil)
	for i, b := range p.Betas {
		switch {
		case b > cp.QHigh:
			cp.High.Set(uint(i))
		case b < cp.QLow:
			cp.Low.Set(uint(i))
		}
	}
	return cp, nil
}
