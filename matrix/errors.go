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
	"fmt"

	"github.com/grailbio/epivar/interval"
)

// MalformedInputError describes a header or row that could not be parsed.
// Row-level instances are recoverable: the row is skipped and counted.
type MalformedInputError struct {
	Path   string
	Line   int
	Reason string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("matrix: %s:%d: malformed input: %s", displayPath(e.Path), e.Line, e.Reason)
}

// OrderingViolationError is reported when probes of a chromosome are not in
// strictly ascending position order, or when a chromosome's rows are not
// contiguous.  It is fatal for the affected chromosome.
type OrderingViolationError struct {
	Path  string
	Chrom string
	Line  int
	// Pos and PrevPos are set for position-order violations.
	Pos, PrevPos interval.PosType
	// Split is set when the chromosome appears in more than one block.
	Split bool
}

func (e *OrderingViolationError) Error() string {
	if e.Split {
		return fmt.Sprintf("matrix: %s:%d: rows for chromosome %s are not contiguous", displayPath(e.Path), e.Line, e.Chrom)
	}
	return fmt.Sprintf("matrix: %s:%d: position %d on %s does not follow %d; input must be sorted by position", displayPath(e.Path), e.Line, e.Pos, e.Chrom, e.PrevPos)
}

// TooManyMalformedError is returned once the number of malformed rows exceeds
// Opts.MaxMalformed.
type TooManyMalformedError struct {
	Path      string
	Malformed int64
	Max       int
}

func (e *TooManyMalformedError) Error() string {
	return fmt.Sprintf("matrix: %s: %d malformed rows exceeds the limit of %d", displayPath(e.Path), e.Malformed, e.Max)
}

func displayPath(path string) string {
	if path == "" {
		return "<stream>"
	}
	return path
}
