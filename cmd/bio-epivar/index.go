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
	"io"
	"strconv"

	"github.com/grailbio/base/tsv"
	"github.com/grailbio/epivar/matrix"
)

// runIndex prints one row per chromosome block: the chromosome, the byte
// offset and line of its first row, its row count, and whether the
// chromosome is split across blocks.
func runIndex(ctx context.Context, path string, w io.Writer) error {
	idx, err := matrix.BuildIndex(ctx, path)
	if err != nil {
		return err
	}
	tsvw := tsv.NewWriter(w)
	for _, name := range []string{"#CHROM", "OFFSET", "LINE", "ROWS", "SPLIT"} {
		tsvw.WriteString(name)
	}
	if err = tsvw.EndLine(); err != nil {
		return err
	}
	for _, b := range idx.Blocks {
		tsvw.WriteString(b.Chrom)
		tsvw.WriteString(strconv.FormatInt(b.Offset, 10))
		tsvw.WriteString(strconv.Itoa(b.Line))
		tsvw.WriteString(strconv.Itoa(b.Rows))
		tsvw.WriteString(strconv.FormatBool(b.Split))
		if err = tsvw.EndLine(); err != nil {
			return err
		}
	}
	return tsvw.Flush()
}
