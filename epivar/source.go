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
	"github.com/grailbio/epivar/interval"
	"github.com/grailbio/epivar/matrix"
)

// filter restricts the scan to a -region and/or a -bed mask.  When both are
// set, a probe must lie in both.
type filter struct {
	region *interval.Entry
	mask   *interval.Mask
}

// wrap returns a source which drops the probes of src outside the filter.
func (f *filter) wrap(src ProbeSource) *filteredSource {
	fs := &filteredSource{src: src, region: f.region}
	if f.mask != nil {
		// Mask caches its search cursor, so each chromosome needs its own.
		mask := f.mask.Clone()
		fs.mask = &mask
	}
	return fs
}

// filteredSource is a ProbeSource over the probes passing a filter.
type filteredSource struct {
	src       ProbeSource
	region    *interval.Entry
	mask      *interval.Mask
	nFiltered int
}

func (fs *filteredSource) keep(p *matrix.Probe) bool {
	if fs.region != nil && !fs.region.Contains(p.Chrom, p.Pos) {
		return false
	}
	return fs.mask == nil || fs.mask.Contains(p.Chrom, p.Pos)
}

func (fs *filteredSource) Scan() bool {
	for fs.src.Scan() {
		if fs.keep(fs.src.Probe()) {
			return true
		}
		fs.nFiltered++
	}
	return false
}

func (fs *filteredSource) Probe() *matrix.Probe {
	return fs.src.Probe()
}
