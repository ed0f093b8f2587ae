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
	"errors"
	"fmt"

	"github.com/grailbio/epivar/interval"
)

// ErrNoProbes is returned when an entire run yields no well-formed probe.
var ErrNoProbes = errors.New("epivar: input contains no valid probes")

// ConfigurationError reports an invalid option.  It is always returned before
// any input is read.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("epivar: invalid %s: %s", e.Field, e.Reason)
}

// InsufficientCohortError describes a probe with too few non-missing betas
// to compute quantiles.  The probe is skipped and counted.
type InsufficientCohortError struct {
	ProbeID string
	Chrom   string
	Pos     interval.PosType
	N, Min  int
}

func (e *InsufficientCohortError) Error() string {
	return fmt.Sprintf("epivar: probe %s (%s:%d): %d non-missing beta value(s), need %d", e.ProbeID, e.Chrom, e.Pos, e.N, e.Min)
}
