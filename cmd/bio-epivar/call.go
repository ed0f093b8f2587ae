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
	"context"
	"runtime"
	"time"

	"github.com/grailbio/base/log"
	"github.com/grailbio/epivar/dmr"
	"github.com/grailbio/epivar/epivar"
	"github.com/pkg/errors"
)

type callFlags struct {
	opts   epivar.Opts
	format string
	cols   string
	out    string
}

// outputOpts resolves the -format and -cols flags shared by call and merge.
func outputOpts(format, cols string) (dmr.Format, int, error) {
	f, err := dmr.ParseFormat(format)
	if err != nil {
		return f, 0, err
	}
	colBitset, err := dmr.ParseCols(cols, dmr.ColNameMap, dmr.DefaultColBitset)
	return f, colBitset, err
}

func compressParallelism(parallelism int) int {
	if parallelism == 0 {
		return runtime.NumCPU()
	}
	return parallelism
}

func runCall(ctx context.Context, flags callFlags, path string) error {
	format, colBitset, err := outputOpts(flags.format, flags.cols)
	if err != nil {
		return err
	}
	if err = flags.opts.Validate(); err != nil {
		return err
	}
	start := time.Now()
	res, callErr := epivar.Call(ctx, path, flags.opts)
	if res == nil {
		return callErr
	}
	outPath, err := dmr.Write(ctx, flags.out, format, res.DMRs, colBitset, compressParallelism(flags.opts.Parallelism))
	if err != nil {
		return errors.Wrapf(err, "write %s", outPath)
	}
	metricsPath := flags.out + ".metrics.json"
	if err = epivar.NewMetrics(res, flags.opts, start).Write(ctx, metricsPath); err != nil {
		return errors.Wrapf(err, "write %s", metricsPath)
	}
	log.Printf("bio-epivar call: %d DMR(s) in %s, metrics in %s", len(res.DMRs), outPath, metricsPath)
	if callErr != nil {
		return errors.Wrapf(callErr, "%d chromosome(s) failed; their DMRs are missing from %s", len(res.Failed()), outPath)
	}
	return nil
}
