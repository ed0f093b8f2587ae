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
	"bytes"
	"encoding/json"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/epivar/dmr"
	"github.com/grailbio/epivar/epivar"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

const testMatrix = `#probe	chrom	pos	S1	S2	S3	S4	S5
cg1	chr1	100	0.48	0.48	0.50	0.52	0.52
cg2	chr1	200	0.48	0.48	0.50	0.52	0.52
cg3	chr1	300	0.48	0.48	0.50	0.52	0.52
cg4	chr1	400	0.48	0.48	0.9	0.52	0.52
cg5	chr1	500	0.48	0.48	0.9	0.52	0.52
cg6	chr1	600	0.48	0.48	0.9	0.52	0.52
cg7	chr1	700	0.48	0.48	0.50	0.52	0.52
cg8	chr2	100	0.48	0.48	0.50	0.52	0.52
cg9	chr2	50	0.48	0.48	0.50	0.52	0.52
`

func TestCall(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()
	matrixPath := filepath.Join(tmpdir, "betas.tsv")
	assert.NoError(t, ioutil.WriteFile(matrixPath, []byte(testMatrix), 0644))

	flags := callFlags{opts: epivar.DefaultOpts, format: "tsv", cols: "+positions", out: filepath.Join(tmpdir, "out")}
	err := runCall(ctx, flags, matrixPath)
	// chr2 is out of order; chr1 is still written.
	assert.True(t, err != nil)
	expect.True(t, strings.Contains(err.Error(), "1 chromosome(s) failed"), err.Error())

	data, err := ioutil.ReadFile(flags.out + ".dmr.tsv")
	assert.NoError(t, err)
	expect.EQ(t, string(data),
		"#CHROM\tSTART\tEND\tSAMPLE\tDIRECTION\tN_PROBES\tSCORE\tPOSITIONS\n"+
			"chr1\t400\t601\tS3\thyper\t3\t1.140000\t400,500,600\n")

	data, err = ioutil.ReadFile(flags.out + ".metrics.json")
	assert.NoError(t, err)
	var m epivar.Metrics
	assert.NoError(t, json.Unmarshal(data, &m))
	expect.EQ(t, m.DMRs, 1)
	expect.EQ(t, m.Chromosomes, 2)
	assert.EQ(t, len(m.FailedChromosomes), 1)
	expect.EQ(t, m.FailedChromosomes[0].Chrom, "chr2")
	expect.EQ(t, m.Options.WindowSize, 1000)

	flags.format = "sqlite"
	assert.True(t, runCall(ctx, flags, matrixPath) != nil)
	dmrs, err := dmr.ReadSQLite(flags.out + ".dmr.sqlite")
	assert.NoError(t, err)
	expect.EQ(t, len(dmrs), 1)

	for _, bad := range []callFlags{
		{opts: epivar.DefaultOpts, format: "bed", out: flags.out},
		{opts: epivar.DefaultOpts, format: "tsv", cols: "+score", out: flags.out},
	} {
		expect.True(t, runCall(ctx, bad, matrixPath) != nil, "%+v", bad)
	}
	opts := epivar.DefaultOpts
	opts.MinRunLength = 0
	expect.True(t, runCall(ctx, callFlags{opts: opts, format: "tsv", out: flags.out}, matrixPath) != nil)
}

func TestMerge(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	const header = "#CHROM\tSTART\tEND\tSAMPLE\tDIRECTION\tN_PROBES\tSCORE\tPOSITIONS\n"
	a := filepath.Join(tmpdir, "a.dmr.tsv")
	b := filepath.Join(tmpdir, "b.dmr.tsv")
	assert.NoError(t, ioutil.WriteFile(a, []byte(header+
		"chr1\t100\t301\tS1\thyper\t3\t0.500000\t100,200,300\n"), 0644))
	assert.NoError(t, ioutil.WriteFile(b, []byte(header+
		"chr1\t350\t551\tS1\thyper\t3\t0.700000\t350,450,550\n"+
		"chr1\t350\t551\tS2\thypo\t3\t0.200000\t350,450,550\n"), 0644))

	flags := mergeFlags{aggregate: "sum", format: "tsv", cols: "positions", out: filepath.Join(tmpdir, "m")}
	assert.NoError(t, runMerge(ctx, flags, []string{a, b}))
	got, err := dmr.ReadFile(ctx, flags.out+".dmr.tsv")
	assert.NoError(t, err)
	expect.EQ(t, len(got), 3)

	// The S1 regions are 49 bases apart.
	flags.consolidate.MergeDistance = 49
	assert.NoError(t, runMerge(ctx, flags, []string{a, b}))
	got, err = dmr.ReadFile(ctx, flags.out+".dmr.tsv")
	assert.NoError(t, err)
	assert.EQ(t, len(got), 2)
	expect.EQ(t, got[0].String(), "chr1:100-551 S1 hyper n=6 score=1.2")
	expect.EQ(t, got[1].Sample, "S2")

	flags.aggregate = "mean"
	expect.True(t, runMerge(ctx, flags, []string{a}) != nil)
	flags.aggregate = "max"
	expect.True(t, runMerge(ctx, flags, []string{filepath.Join(tmpdir, "missing.tsv")}) != nil)
}

func TestIndex(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	matrixPath := filepath.Join(tmpdir, "betas.tsv")
	assert.NoError(t, ioutil.WriteFile(matrixPath, []byte(testMatrix), 0644))

	var out bytes.Buffer
	assert.NoError(t, runIndex(vcontext.Background(), matrixPath, &out))
	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	assert.EQ(t, len(lines), 3)
	expect.EQ(t, lines[0], "#CHROM\tOFFSET\tLINE\tROWS\tSPLIT")
	expect.True(t, strings.HasPrefix(lines[1], "chr1\t"))
	expect.True(t, strings.HasSuffix(lines[1], "\t2\t7\tfalse"))
	expect.True(t, strings.HasSuffix(lines[2], "\t9\t2\tfalse"))
}
