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
	"bytes"

	farm "github.com/dgryski/go-farm"
)

// Fingerprint hashes the full-column TSV rendering of dmrs.  Two runs with
// identical output have identical fingerprints.
func Fingerprint(dmrs []DMR) uint64 {
	var buf bytes.Buffer
	// Writes to a bytes.Buffer cannot fail.
	_ = WriteTSV(&buf, dmrs, ColBitGroup|ColBitPositions|ColBitWindows)
	return farm.Fingerprint64(buf.Bytes())
}
