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
package matrix

import (
	"context"
	"io"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
	"github.com/pkg/errors"
)

// Sample is one row of the sample metadata table.  Group and Sex are carried
// for bookkeeping; outlier calls never depend on them.
type Sample struct {
	ID    string `tsv:"sample_id"`
	Group string `tsv:"group"`
	Sex   string `tsv:"sex"`
}

// ReadSamples parses a sample table with a "sample_id group sex" header row.
func ReadSamples(r io.Reader) ([]Sample, error) {
	reader := tsv.NewReader(r)
	reader.HasHeaderRow = true
	reader.UseHeaderNames = true
	var (
		samples []Sample
		seen    = make(map[string]bool)
	)
	for {
		var s Sample
		if err := reader.Read(&s); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.Wrap(err, "couldn't read sample table")
		}
		if s.ID == "" {
			return nil, errors.Errorf("sample table row %d: empty sample_id", len(samples)+1)
		}
		if seen[s.ID] {
			return nil, errors.Errorf("sample table: duplicate sample_id %s", s.ID)
		}
		seen[s.ID] = true
		samples = append(samples, s)
	}
	return samples, nil
}

// ReadSampleTable reads the sample table at path.
func ReadSampleTable(ctx context.Context, path string) (samples []Sample, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't open sample table %s", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	if samples, err = ReadSamples(in.Reader(ctx)); err != nil {
		return nil, errors.Wrap(err, path)
	}
	return samples, nil
}

// MatchSamples returns the table entries in matrix column order.  Every
// matrix sample must appear in the table; table entries absent from the
// matrix are ignored.
func MatchSamples(h Header, table []Sample) ([]Sample, error) {
	byID := make(map[string]Sample, len(table))
	for _, s := range table {
		byID[s.ID] = s
	}
	matched := make([]Sample, len(h.Samples))
	for i, id := range h.Samples {
		s, ok := byID[id]
		if !ok {
			return nil, errors.Errorf("matrix sample %s is missing from the sample table", id)
		}
		matched[i] = s
	}
	return matched, nil
}
