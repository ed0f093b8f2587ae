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

/*
Given a methylation array beta-value matrix (one row per probe, one column per
sample), bio-epivar reports epivariations: regions where a single sample is
consistently hyper- or hypomethylated relative to the rest of the cohort.

Sample usage:
bio-epivar call \
    -window-size 1000 \
    -min-run-length 3 \
    -samples samples.tsv \
    -out output-prefix \
    betas.tsv.gz

bio-epivar merge -merge-distance 500 -out merged a.dmr.tsv b.dmr.tsv
bio-epivar index betas.tsv.gz
*/
package main
