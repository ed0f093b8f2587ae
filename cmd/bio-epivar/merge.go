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
	"fmt"

	"github.com/grailbio/base/log"
	"github.com/grailbio/epivar/dmr"
)

type mergeFlags struct {
	consolidate dmr.ConsolidateOpts
	aggregate   string
	format      string
	cols        string
	out         string
}

func runMerge(ctx context.Context, flags mergeFlags, paths []string) error {
	format, colBitset, err := outputOpts(flags.format, flags.cols)
	if err != nil {
		return err
	}
	if flags.consolidate.MergeDistance < 0 {
		return fmt.Errorf("merge distance %d < 0", flags.consolidate.MergeDistance)
	}
	if flags.consolidate.Aggregate, err = dmr.ParseAggregate(flags.aggregate); err != nil {
		return err
	}
	var all []dmr.DMR
	for _, path := range paths {
		dmrs, err := dmr.ReadFile(ctx, path)
		if err != nil {
			return err
		}
		log.Debug.Printf("bio-epivar merge: %d DMR(s) in %s", len(dmrs), path)
		all = append(all, dmrs...)
	}
	merged := dmr.Consolidate(all, flags.consolidate)
	log.Printf("bio-epivar merge: %d DMR(s) from %d file(s) consolidated into %d", len(all), len(paths), len(merged))
	_, err = dmr.Write(ctx, flags.out, format, merged, colBitset, compressParallelism(0))
	return err
}
