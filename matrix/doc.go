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

// Package matrix reads sorted beta-value matrices: one row per array probe
// (probe id, chromosome, position, then one beta per sample), grouped into
// contiguous chromosome blocks.  Reader iterates a stream sequentially;
// BuildIndex and OpenBlock let independent workers each take one block.
package matrix
