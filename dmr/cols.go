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
package dmr

import (
	"fmt"
	"strings"
)

// Optional output columns.  The seven core columns are always written.
const (
	ColBitGroup = 1 << iota
	ColBitPositions
	ColBitWindows
)

// ColNameMap maps -cols names to column bits.
var ColNameMap = map[string]int{
	"group":     ColBitGroup,
	"positions": ColBitPositions,
	"windows":   ColBitWindows,
}

// DefaultColBitset includes no optional column.
const DefaultColBitset = 0

// ParseCols parses a column-set-descriptor string given on the command line
// (colsParam) into a bitset of optional columns.
func ParseCols(colsParam string, colNameMap map[string]int, defaultColBitset int) (colBitset int, err error) {
	if colsParam == "" {
		return defaultColBitset, nil
	}

	colsParamParts := strings.Split(colsParam, ",")
	// Two cases:
	// 1. Each part has a '+' or a '-' in front.  Treat these as patches to the
	//    default column set.
	// 2. No part has a '+' or a '-' in front.  Ignore the default and treat this
	//    as the full set.
	patch := isPatch(colsParamParts[0])
	if patch {
		colBitset = defaultColBitset
	}
	for _, part := range colsParamParts {
		if part == "" {
			return 0, fmt.Errorf("ParseCols: empty term in column set descriptor %q", colsParam)
		}
		if isPatch(part) != patch {
			return 0, fmt.Errorf("ParseCols: either all terms in column set descriptor must be preceded by +/-, or none can be")
		}
		name := part
		if patch {
			name = part[1:]
		}
		v := colNameMap[name]
		if v == 0 {
			return 0, fmt.Errorf("ParseCols: %v not found", name)
		}
		if patch && part[0] == '-' {
			colBitset &= ^v
		} else {
			colBitset |= v
		}
	}
	return colBitset, nil
}

func isPatch(part string) bool {
	return part != "" && (part[0] == '+' || part[0] == '-')
}
