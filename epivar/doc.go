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

// Package epivar calls epivariations: short runs of array probes at which a
// single sample lies in the same tail of the cohort distribution.
//
// Problem:
// Given a beta-value matrix sorted by chromosome and position, find, for each
// sample, the regions where its methylation is consistently above (hyper) or
// below (hypo) the rest of the cohort, while the cohort itself is not.
//
// Implementation strategy:
// Chromosomes are independent, so each one is a job (see Call).  Within a
// chromosome everything happens in one pass, in position order:
// 1. WindowScanner cuts the probe stream into windows of -window-size bases
//    on a grid anchored at the first probe, advancing by -step.  Only the
//    probes of the current window are buffered.
// 2. Classifier computes, for each probe as it enters the buffer, the
//    qcut-min and qcut-max quantiles of the non-missing betas, and flags the
//    samples strictly outside them.
// 3. FindRuns looks, per window and per sample, for runs of at least
//    -min-run-length consecutive probes flagged in one direction.
// 4. The configured ScoreFunc rates each run.
// 5. dmr.Consolidate merges runs of the same sample and direction that touch,
//    overlap or continue across a window boundary.
// Results are merged in natural chromosome order at the end, so the output
// does not depend on -parallelism.
package epivar
