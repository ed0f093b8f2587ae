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
	"runtime"
	"strings"

	"github.com/grailbio/epivar/dmr"
	"github.com/grailbio/epivar/interval"
)

type Opts struct {
	// Commandline options.
	WindowSize    int
	Step          int
	QCutMin       float64
	QCutMax       float64
	MinRunLength  int
	MinCohort     int
	MergeDistance int
	Scorer        string
	Aggregate     string
	MaxMalformed  int
	Parallelism   int
	Region        string
	BedPath       string
	SamplePath    string
}

var DefaultOpts = Opts{
	WindowSize:    1000,
	Step:          0,
	QCutMin:       0.25,
	QCutMax:       0.75,
	MinRunLength:  3,
	MinCohort:     2,
	MergeDistance: 0,
	Scorer:        "distance",
	Aggregate:     "max",
	MaxMalformed:  -1,
	Parallelism:   0,
}

// callOpts is the validated form of Opts.
type callOpts struct {
	windowSize   interval.PosType
	step         interval.PosType
	qCutMin      float64
	qCutMax      float64
	minRunLength int
	minCohort    int
	scorer       ScoreFunc
	consolidate  dmr.ConsolidateOpts
	maxMalformed int
	parallelism  int
	filter       *filter
	samplePath   string
}

func configErr(field, format string, args ...interface{}) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks o without reading any input.
func (o *Opts) Validate() error {
	_, err := o.resolve()
	return err
}

func (o *Opts) resolve() (*callOpts, error) {
	c := &callOpts{
		qCutMin:      o.QCutMin,
		qCutMax:      o.QCutMax,
		minRunLength: o.MinRunLength,
		minCohort:    o.MinCohort,
		maxMalformed: o.MaxMalformed,
		parallelism:  o.Parallelism,
		samplePath:   o.SamplePath,
	}
	if o.WindowSize <= 0 || o.WindowSize >= interval.PosTypeMax {
		return nil, configErr("window size", "%d is not in [1, %d)", o.WindowSize, interval.PosTypeMax)
	}
	c.windowSize = interval.PosType(o.WindowSize)
	c.step = c.windowSize
	if o.Step != 0 {
		if o.Step < 0 || o.Step > o.WindowSize {
			return nil, configErr("step", "%d is not in [1, window size %d]", o.Step, o.WindowSize)
		}
		c.step = interval.PosType(o.Step)
	}
	// The negated comparisons also reject NaN.
	if !(o.QCutMin >= 0 && o.QCutMax <= 1) {
		return nil, configErr("quantile cutoffs", "[%v, %v] is not within [0, 1]", o.QCutMin, o.QCutMax)
	}
	if !(o.QCutMin < o.QCutMax) {
		return nil, configErr("quantile cutoffs", "qcut-min %v must be below qcut-max %v", o.QCutMin, o.QCutMax)
	}
	if o.MinRunLength < 1 {
		return nil, configErr("minimum run length", "%d < 1", o.MinRunLength)
	}
	if o.MinCohort < 2 {
		return nil, configErr("minimum cohort size", "%d < 2", o.MinCohort)
	}
	if o.MergeDistance < 0 {
		return nil, configErr("merge distance", "%d < 0", o.MergeDistance)
	}
	c.consolidate.MergeDistance = o.MergeDistance
	var err error
	if c.scorer, err = LookupScorer(o.Scorer); err != nil {
		return nil, configErr("scorer", "%q is not one of %s", o.Scorer, strings.Join(ScorerNames(), ", "))
	}
	if c.consolidate.Aggregate, err = dmr.ParseAggregate(o.Aggregate); err != nil {
		return nil, configErr("aggregate", "%v", err)
	}
	if o.Parallelism < 0 {
		return nil, configErr("parallelism", "%d < 0", o.Parallelism)
	}
	if c.parallelism == 0 {
		c.parallelism = runtime.NumCPU()
	}
	if o.Region != "" {
		region, err := interval.ParseRegionString(o.Region)
		if err != nil {
			return nil, configErr("region", "%v", err)
		}
		c.filter = &filter{region: &region}
	}
	return c, nil
}
