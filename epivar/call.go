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
	"github.com/grailbio/base/sync/multierror"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/epivar/dmr"
	"github.com/grailbio/epivar/interval"
	"github.com/grailbio/epivar/matrix"
)

// ChromResult is the outcome of scanning one chromosome.
type ChromResult struct {
	Chrom string
	// DMRs are consolidated and in output order.  They are dropped when the
	// chromosome fails.
	DMRs []dmr.DMR
	// Probes counts the probes scanned; Skipped the subset with too small a
	// cohort.  Filtered counts probes outside -region/-bed.
	Probes, Skipped, Filtered int
	Windows, Candidates       int
	// Err is the error that made this chromosome fail, typically a
	// *matrix.OrderingViolationError.
	Err error
}

func (r *ChromResult) fail(err error) {
	r.Err = err
	r.DMRs = nil
}

// Result is the outcome of a run.
type Result struct {
	Path string
	// Samples are in matrix column order.  Group is empty without a sample
	// table.
	Samples []matrix.Sample
	// Chroms lists the chromosomes in input order.
	Chroms []ChromResult
	// DMRs holds the DMRs of all chromosomes that completed, in output order.
	DMRs  []dmr.DMR
	Stats matrix.Stats
}

// Failed returns the chromosomes that failed.
func (r *Result) Failed() []ChromResult {
	var failed []ChromResult
	for _, c := range r.Chroms {
		if c.Err != nil {
			failed = append(failed, c)
		}
	}
	return failed
}

// caller holds the per-run state shared by all chromosome workers.  It is
// read-only once built.
type caller struct {
	opts    *callOpts
	samples []matrix.Sample
}

func newCaller(ctx context.Context, opts *callOpts, bedPath string, header matrix.Header) (*caller, error) {
	c := &caller{opts: opts}
	if opts.samplePath != "" {
		table, err := matrix.ReadSampleTable(ctx, opts.samplePath)
		if err != nil {
			return nil, err
		}
		if c.samples, err = matrix.MatchSamples(header, table); err != nil {
			return nil, err
		}
	} else {
		c.samples = make([]matrix.Sample, len(header.Samples))
		for i, id := range header.Samples {
			c.samples[i].ID = id
		}
	}
	if bedPath != "" {
		mask, err := interval.NewMaskFromPath(ctx, bedPath)
		if err != nil {
			return nil, err
		}
		if opts.filter == nil {
			opts.filter = &filter{}
		}
		opts.filter.mask = &mask
	}
	return c, nil
}

// callChromosome runs the scan, classification, run-length filter, scoring
// and consolidation stages over one chromosome, strictly in position order.
func (c *caller) callChromosome(ctx context.Context, chrom string, src ProbeSource) ChromResult {
	res := ChromResult{Chrom: chrom}
	var fs *filteredSource
	if c.opts.filter != nil {
		fs = c.opts.filter.wrap(src)
		src = fs
	}
	classifier := NewClassifier(c.opts.qCutMin, c.opts.qCutMax, c.opts.minCohort)
	scanner := NewWindowScanner(chrom, src, c.opts.windowSize, c.opts.step, classifier)
	var regions []dmr.DMR
	for scanner.Next(ctx) {
		w := scanner.Window()
		candidates := FindRuns(w, len(c.samples), c.opts.minRunLength)
		for i := range candidates {
			cand := &candidates[i]
			cand.Score = c.opts.scorer(cand)
			s := c.samples[cand.Sample]
			regions = append(regions, cand.DMR(s.ID, s.Group))
		}
		res.Candidates += len(candidates)
	}
	scanner.logSummary()
	res.Probes, res.Skipped, res.Windows = scanner.Stats()
	if fs != nil {
		res.Filtered = fs.nFiltered
	}
	if err := ctx.Err(); err != nil {
		res.fail(err)
		return res
	}
	res.DMRs = dmr.Consolidate(regions, c.opts.consolidate)
	log.Debug.Printf("epivar: %s: %d probe(s), %d window(s), %d candidate(s), %d DMR(s)", chrom, res.Probes, res.Windows, res.Candidates, len(res.DMRs))
	return res
}

// finish assembles the run result.  Chromosome failures are returned as a
// multierror alongside the partial result.
func (c *caller) finish(path string, chroms []ChromResult, stats matrix.Stats) (*Result, error) {
	if stats.Rows-stats.Malformed == 0 {
		return nil, ErrNoProbes
	}
	res := &Result{
		Path:    path,
		Samples: c.samples,
		Chroms:  chroms,
		Stats:   stats,
	}
	errs := multierror.NewMultiError(len(chroms))
	for _, chrom := range chroms {
		if chrom.Err != nil {
			log.Printf("epivar: chromosome %s failed: %v", chrom.Chrom, chrom.Err)
			errs.Add(chrom.Err)
			continue
		}
		res.DMRs = append(res.DMRs, chrom.DMRs...)
	}
	dmr.Sort(res.DMRs)
	log.Printf("epivar: %d chromosome(s), %d DMR(s); rows read %d, malformed %d, discarded %d",
		len(chroms), len(res.DMRs), stats.Rows, stats.Malformed, stats.Discarded)
	return res, errs.Err()
}

// CallReader runs the caller sequentially over every chromosome of r.  The
// returned Result is non-nil whenever the error only reports failed
// chromosomes.
func CallReader(ctx context.Context, r *matrix.Reader, opts Opts) (*Result, error) {
	co, err := opts.resolve()
	if err != nil {
		return nil, err
	}
	c, err := newCaller(ctx, co, opts.BedPath, r.Header())
	if err != nil {
		return nil, err
	}
	var (
		chroms []ChromResult
		seen   = make(map[string]int)
	)
	for r.NextChrom() {
		res := c.callChromosome(ctx, r.Chrom(), r)
		if err := r.Err(); err != nil {
			return nil, err
		}
		if err := r.ChromErr(); err != nil {
			res.fail(err)
		}
		if i, ok := seen[res.Chrom]; ok {
			// A split chromosome also invalidates its earlier block.
			chroms[i].fail(res.Err)
			continue
		}
		seen[res.Chrom] = len(chroms)
		chroms = append(chroms, res)
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.finish(r.Path(), chroms, r.Stats())
}

// Call runs the caller over the matrix at path, processing chromosome blocks
// in parallel.  The returned Result is non-nil whenever the error only
// reports failed chromosomes.
func Call(ctx context.Context, path string, opts Opts) (*Result, error) {
	co, err := opts.resolve()
	if err != nil {
		return nil, err
	}
	idx, err := matrix.BuildIndex(ctx, path)
	if err != nil {
		return nil, err
	}
	c, err := newCaller(ctx, co, opts.BedPath, idx.Header)
	if err != nil {
		return nil, err
	}

	// Split chromosomes fail without being read.  Every other block is one
	// job.
	var (
		chroms     []ChromResult
		jobs       []int
		jobResults []int
		splitErrs  = make(map[string]*matrix.OrderingViolationError)
		stats      matrix.Stats
	)
	for i, b := range idx.Blocks {
		if !b.Split {
			jobs = append(jobs, i)
			jobResults = append(jobResults, len(chroms))
			chroms = append(chroms, ChromResult{Chrom: b.Chrom})
			continue
		}
		stats.Rows += b.Rows + b.Malformed
		stats.Malformed += b.Malformed
		stats.Discarded += b.Rows
		if ov, ok := splitErrs[b.Chrom]; ok {
			// Report where the chromosome reappears.
			if !ov.Split {
				ov.Line, ov.Split = b.Line, true
			}
			continue
		}
		ov := &matrix.OrderingViolationError{Path: path, Chrom: b.Chrom, Line: b.Line}
		splitErrs[b.Chrom] = ov
		chroms = append(chroms, ChromResult{Chrom: b.Chrom, Err: ov})
	}

	nJob := len(jobs)
	jobStats := make([]matrix.Stats, nJob)
	mopts := matrix.Opts{MaxMalformed: co.maxMalformed, Malformed: &matrix.Counter{}}
	parallelism := co.parallelism
	if parallelism > nJob {
		parallelism = nJob
	}
	if nJob > 0 {
		log.Printf("epivar.Call: %s: %d chromosome block(s), %d sample(s), %d job(s)", path, len(idx.Blocks), len(idx.Header.Samples), parallelism)
		err = traverse.Each(parallelism, func(jobIdx int) error {
			startIdx := (jobIdx * nJob) / parallelism
			endIdx := ((jobIdx + 1) * nJob) / parallelism
			for i := startIdx; i < endIdx; i++ {
				if err := c.callBlock(ctx, idx, jobs[i], mopts, &chroms[jobResults[i]], &jobStats[i]); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	for _, s := range jobStats {
		stats.Add(s)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.finish(path, chroms, stats)
}

// callBlock processes one chromosome block.  Only run-fatal errors are
// returned; chromosome failures are recorded in *res.
func (c *caller) callBlock(ctx context.Context, idx *matrix.Index, block int, opts matrix.Opts, res *ChromResult, stats *matrix.Stats) (err error) {
	r, err := matrix.OpenBlock(ctx, idx, block, opts)
	if err != nil {
		return err
	}
	defer func() {
		if e := r.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	if r.NextChrom() {
		*res = c.callChromosome(ctx, r.Chrom(), r)
		if e := r.ChromErr(); e != nil {
			res.fail(e)
		}
		// Count whatever an ordering violation left unread.
		r.NextChrom()
	}
	*stats = r.Stats()
	return r.Err()
}
