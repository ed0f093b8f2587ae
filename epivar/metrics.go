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
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/grailbio/base/file"
	"github.com/grailbio/epivar/dmr"
)

// FailedChrom names a chromosome that did not complete.
type FailedChrom struct {
	Chrom string `json:"chrom"`
	Error string `json:"error"`
}

// Metrics is the cumulative run report written next to the DMR output.
// Every row or probe that did not reach the scan is accounted for here.
type Metrics struct {
	RunID             string        `json:"run_id"`
	Date              string        `json:"date"`
	Elapsed           string        `json:"elapsed"`
	Input             string        `json:"input"`
	Samples           int           `json:"samples"`
	Chromosomes       int           `json:"chromosomes"`
	FailedChromosomes []FailedChrom `json:"failed_chromosomes"`
	Rows              int           `json:"rows_read"`
	MalformedRows     int           `json:"malformed_rows"`
	DiscardedRows     int           `json:"discarded_rows"`
	Probes            int           `json:"probes_scanned"`
	SkippedProbes     int           `json:"skipped_probes"`
	FilteredProbes    int           `json:"filtered_probes"`
	Windows           int           `json:"windows"`
	Candidates        int           `json:"candidates"`
	DMRs              int           `json:"dmrs"`
	Fingerprint       string        `json:"dmr_fingerprint"`
	Options           Opts          `json:"options"`
}

// NewMetrics summarizes res.  start is when the run began.
func NewMetrics(res *Result, opts Opts, start time.Time) *Metrics {
	m := &Metrics{
		RunID:             uuid.New().String(),
		Date:              start.UTC().Format(time.RFC3339),
		Elapsed:           time.Since(start).String(),
		Input:             res.Path,
		Samples:           len(res.Samples),
		Chromosomes:       len(res.Chroms),
		FailedChromosomes: []FailedChrom{},
		Rows:              res.Stats.Rows,
		MalformedRows:     res.Stats.Malformed,
		DiscardedRows:     res.Stats.Discarded,
		DMRs:              len(res.DMRs),
		Fingerprint:       fmt.Sprintf("%016x", dmr.Fingerprint(res.DMRs)),
		Options:           opts,
	}
	for _, c := range res.Chroms {
		m.Probes += c.Probes
		m.SkippedProbes += c.Skipped
		m.FilteredProbes += c.Filtered
		m.Windows += c.Windows
		m.Candidates += c.Candidates
		if c.Err != nil {
			m.FailedChromosomes = append(m.FailedChromosomes, FailedChrom{Chrom: c.Chrom, Error: c.Err.Error()})
		}
	}
	return m
}

// Write saves m as indented JSON at path.
func (m *Metrics) Write(ctx context.Context, path string) (err error) {
	data, err := json.MarshalIndent(m, "", "\t")
	if err != nil {
		return err
	}
	var out file.File
	if out, err = file.Create(ctx, path); err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, out, &err)
	_, err = out.Writer(ctx).Write(append(data, '\n'))
	return err
}
