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
package main

import (
	"fmt"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/epivar/epivar"
	"v.io/x/lib/cmdline"
)

const colsHelp = `Output TSV column sets. #CHROM/START/END/SAMPLE/DIRECTION/N_PROBES/SCORE are
always present. Optional sets are 'group', 'positions' and 'windows'. A list of
'+name'/'-name' terms patches the default (no optional column); a list of bare
names replaces it.`

func newCmdCall() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "call",
		Short:    "Call epivariations in a beta-value matrix",
		ArgsName: "matrixpath",
		Long: `
call scans each chromosome of a probe x sample beta matrix with a sliding
window, flags samples outside the cohort's quantile cutoffs at every probe, and
reports runs of consecutive flagged probes as DMRs.  It writes
<out>.dmr.{tsv,tsv.gz,sqlite} and <out>.metrics.json.  Chromosomes that could
not be processed are listed in the metrics, and make the command exit non-zero
after the output for the other chromosomes is written.`,
	}
	d := epivar.DefaultOpts
	flags := callFlags{}
	cmd.Flags.IntVar(&flags.opts.WindowSize, "window-size", d.WindowSize, "Window width in bases")
	cmd.Flags.IntVar(&flags.opts.Step, "step", d.Step, "Distance between window starts; 0 = window-size (non-overlapping windows)")
	cmd.Flags.Float64Var(&flags.opts.QCutMin, "qcut-min", d.QCutMin, "Lower cohort quantile; betas strictly below it are flagged hypo")
	cmd.Flags.Float64Var(&flags.opts.QCutMax, "qcut-max", d.QCutMax, "Upper cohort quantile; betas strictly above it are flagged hyper")
	cmd.Flags.IntVar(&flags.opts.MinRunLength, "min-run-length", d.MinRunLength, "Minimum number of consecutive flagged probes in a DMR")
	cmd.Flags.IntVar(&flags.opts.MinCohort, "min-cohort", d.MinCohort, "Probes with fewer non-missing betas are skipped")
	cmd.Flags.IntVar(&flags.opts.MergeDistance, "merge-distance", d.MergeDistance, "Largest gap in bases between DMRs of one sample and direction that still merges them")
	cmd.Flags.StringVar(&flags.opts.Scorer, "scorer", d.Scorer, "DMR score; 'distance' or 'zscore'")
	cmd.Flags.StringVar(&flags.opts.Aggregate, "aggregate", d.Aggregate, "How merged DMR scores combine; 'max' or 'sum'")
	cmd.Flags.IntVar(&flags.opts.MaxMalformed, "max-malformed", d.MaxMalformed, "Abort after this many malformed rows; -1 = unlimited")
	cmd.Flags.IntVar(&flags.opts.Parallelism, "parallelism", d.Parallelism, "Maximum number of simultaneous chromosome jobs; 0 = runtime.NumCPU()")
	cmd.Flags.StringVar(&flags.opts.Region, "region", d.Region, "Only scan probes in this region. Format as <contig ID>:<1-based first pos>-<last pos>, <contig ID>:<1-based pos>, or just <contig ID>")
	cmd.Flags.StringVar(&flags.opts.BedPath, "bed", d.BedPath, "Only scan probes in the intervals of this BED file; combines with -region")
	cmd.Flags.StringVar(&flags.opts.SamplePath, "samples", d.SamplePath, "Sample table TSV (sample_id, group, sex) covering every matrix sample")
	cmd.Flags.StringVar(&flags.format, "format", "tsv", "Output format; 'tsv', 'tsv-bgz' and 'sqlite' supported")
	cmd.Flags.StringVar(&flags.cols, "cols", "", colsHelp)
	cmd.Flags.StringVar(&flags.out, "out", "bio-epivar", "Output path prefix")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("call takes one matrix path argument, but got %v", argv)
		}
		return runCall(vcontext.Background(), flags, argv[0])
	})
	return cmd
}

func newCmdMerge() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "merge",
		Short:    "Consolidate DMR TSV files",
		ArgsName: "dmrpath...",
		Long: `
merge reads DMR TSV files written by 'call' (plain or gzipped) and consolidates
DMRs of the same chromosome, sample and direction that lie within
-merge-distance of each other.  Probe ordinals are not persisted, so DMRs that
only continued a probe run across a window boundary are merged by span alone.`,
	}
	flags := mergeFlags{}
	cmd.Flags.IntVar(&flags.consolidate.MergeDistance, "merge-distance", 0, "Largest gap in bases between DMRs that still merges them")
	cmd.Flags.StringVar(&flags.aggregate, "aggregate", "max", "How merged DMR scores combine; 'max' or 'sum'")
	cmd.Flags.StringVar(&flags.format, "format", "tsv", "Output format; 'tsv', 'tsv-bgz' and 'sqlite' supported")
	cmd.Flags.StringVar(&flags.cols, "cols", "", colsHelp)
	cmd.Flags.StringVar(&flags.out, "out", "bio-epivar-merged", "Output path prefix")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) == 0 {
			return fmt.Errorf("merge takes one or more DMR paths")
		}
		return runMerge(vcontext.Background(), flags, argv)
	})
	return cmd
}

func newCmdIndex() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "index",
		Short:    "Print the chromosome blocks of a beta-value matrix",
		ArgsName: "matrixpath",
	}
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("index takes one matrix path argument, but got %v", argv)
		}
		return runIndex(vcontext.Background(), argv[0], env.Stdout)
	})
	return cmd
}

func main() {
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(
		&cmdline.Command{
			Name:     "bio-epivar",
			Short:    "Rare methylation outlier (epivariation) caller",
			LookPath: false,
			Children: []*cmdline.Command{
				newCmdCall(),
				newCmdMerge(),
				newCmdIndex(),
			},
		})
}
