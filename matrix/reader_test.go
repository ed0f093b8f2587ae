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
package matrix_test

import (
	"bytes"
	"errors"
	"io/ioutil"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/epivar/interval"
	"github.com/grailbio/epivar/matrix"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/klauspost/compress/gzip"
)

const testMatrix = "#probe\tchrom\tpos\tS1\tS2\tS3\n" +
	"cg01\tchr1\t100\t0.1\t0.2\t0.3\n" +
	"cg02\tchr1\t200\tNA\t0.5\t.\r\n" +
	"# a comment\n" +
	"\n" +
	"cg03\tchr1\t300\t0\t1\t0.25\n" +
	"cg04\tchr2\t50\t0.9\t0.8\t0.7\n" +
	"cg05\tchr2\t60\t0.4\tNaN\t0.6\n"

type chromProbes struct {
	chrom string
	pos   []interval.PosType
	err   error
}

func readAll(t *testing.T, r *matrix.Reader) []chromProbes {
	var got []chromProbes
	for r.NextChrom() {
		c := chromProbes{chrom: r.Chrom()}
		for r.Scan() {
			expect.EQ(t, r.Probe().Chrom, r.Chrom())
			c.pos = append(c.pos, r.Probe().Pos)
		}
		c.err = r.ChromErr()
		got = append(got, c)
	}
	return got
}

func TestReader(t *testing.T) {
	r, err := matrix.NewReader(strings.NewReader(testMatrix), matrix.DefaultOpts)
	assert.NoError(t, err)
	expect.EQ(t, r.Header().Samples, []string{"S1", "S2", "S3"})

	assert.True(t, r.NextChrom())
	expect.EQ(t, r.Chrom(), "chr1")
	assert.True(t, r.Scan())
	p := r.Probe()
	expect.EQ(t, p.ID, "cg01")
	expect.EQ(t, p.Pos, interval.PosType(100))
	expect.EQ(t, p.Betas, []float64{0.1, 0.2, 0.3})
	expect.EQ(t, p.Line, 2)
	assert.True(t, r.Scan())
	p = r.Probe()
	expect.True(t, math.IsNaN(p.Betas[0]))
	expect.EQ(t, p.Betas[1], 0.5)
	expect.True(t, math.IsNaN(p.Betas[2]))
	assert.True(t, r.Scan())
	expect.EQ(t, r.Probe().Line, 6)
	expect.False(t, r.Scan())
	expect.NoError(t, r.ChromErr())

	assert.True(t, r.NextChrom())
	expect.EQ(t, r.Chrom(), "chr2")
	assert.True(t, r.Scan())
	expect.EQ(t, r.Probe().ID, "cg04")
	// The remaining chr2 probe is discarded unread.
	expect.False(t, r.NextChrom())
	expect.NoError(t, r.Err())
	expect.EQ(t, r.Stats(), matrix.Stats{Rows: 5, Probes: 4, Discarded: 1})
}

func TestReaderMalformed(t *testing.T) {
	input := "probe\tchrom\tpos\tS1\tS2\n" +
		"cg01\tchr1\t100\t0.1\t0.2\n" +
		"cg02\tchr1\t200\t0.1\n" +
		"cg03\tchr1\tx\t0.1\t0.2\n" +
		"cg04\tchr1\t300\tabc\t0.2\n" +
		"cg05\tchr1\t400\t1.5\t0.2\n" +
		"cg06\tchr1\t500\t0.1\t0.2\t0.3\n" +
		"cg07\tchr1\t-1\t0.1\t0.2\n" +
		"cg08\tchr1\t600\t0.1\t0.2\n"
	r, err := matrix.NewReader(strings.NewReader(input), matrix.DefaultOpts)
	assert.NoError(t, err)
	got := readAll(t, r)
	expect.EQ(t, len(got), 1)
	expect.EQ(t, got[0].pos, []interval.PosType{100, 600})
	expect.NoError(t, r.Err())
	expect.EQ(t, r.Stats().Malformed, 6)

	// With a shared counter, the limit applies across readers.
	counter := &matrix.Counter{}
	opts := matrix.Opts{MaxMalformed: 8, Malformed: counter}
	r, err = matrix.NewReader(strings.NewReader(input), opts)
	assert.NoError(t, err)
	readAll(t, r)
	expect.NoError(t, r.Err())
	r, err = matrix.NewReader(strings.NewReader(input), opts)
	assert.NoError(t, err)
	readAll(t, r)
	var tooMany *matrix.TooManyMalformedError
	expect.True(t, errors.As(r.Err(), &tooMany))
	expect.EQ(t, tooMany.Malformed, int64(9))
	expect.EQ(t, counter.Load(), int64(9))
}

func TestReaderOrdering(t *testing.T) {
	input := "probe\tchrom\tpos\tS1\n" +
		"a\tchr1\t100\t0.1\n" +
		"b\tchr1\t200\t0.1\n" +
		"c\tchr1\t150\t0.1\n" +
		"d\tchr1\t300\t0.1\n" +
		"e\tchr2\t10\t0.1\n" +
		"f\tchr1\t500\t0.1\n" +
		"g\tchr3\t10\t0.1\n" +
		"h\tchr3\t10\t0.1\n"
	r, err := matrix.NewReader(strings.NewReader(input), matrix.DefaultOpts)
	assert.NoError(t, err)
	got := readAll(t, r)
	assert.EQ(t, len(got), 4)
	assert.NoError(t, r.Err())

	var ov *matrix.OrderingViolationError
	expect.EQ(t, got[0].chrom, "chr1")
	expect.EQ(t, got[0].pos, []interval.PosType{100, 200})
	assert.True(t, errors.As(got[0].err, &ov))
	expect.EQ(t, ov.Line, 4)
	expect.EQ(t, ov.Pos, interval.PosType(150))
	expect.EQ(t, ov.PrevPos, interval.PosType(200))
	expect.False(t, ov.Split)

	expect.EQ(t, got[1].chrom, "chr2")
	expect.NoError(t, got[1].err)

	expect.EQ(t, got[2].chrom, "chr1")
	assert.True(t, errors.As(got[2].err, &ov))
	expect.True(t, ov.Split)

	// Duplicate positions are not strictly ascending.
	expect.EQ(t, got[3].chrom, "chr3")
	expect.True(t, errors.As(got[3].err, &ov))
	expect.EQ(t, r.Stats(), matrix.Stats{Rows: 8, Probes: 4, Discarded: 4})
}

func TestHeaderErrors(t *testing.T) {
	for _, input := range []string{
		"",
		"\n\n",
		"probe\tchrom\tpos\n",
		"probe\tchrom\tpos\tS1\tS1\n",
		"probe\tchrom\tpos\tS1\t\tS2\n",
	} {
		_, err := matrix.NewReader(strings.NewReader(input), matrix.DefaultOpts)
		var malformed *matrix.MalformedInputError
		expect.True(t, errors.As(err, &malformed), "input %q: %v", input, err)
	}
}

func writeFile(t *testing.T, path, data string, compress bool) {
	var buf bytes.Buffer
	if compress {
		w := gzip.NewWriter(&buf)
		_, err := w.Write([]byte(data))
		assert.NoError(t, err)
		assert.NoError(t, w.Close())
	} else {
		buf.WriteString(data)
	}
	assert.NoError(t, ioutil.WriteFile(path, buf.Bytes(), 0644))
}

func TestIndex(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	for _, name := range []string{"m.tsv", "m.tsv.gz"} {
		path := filepath.Join(tmpdir, name)
		writeFile(t, path, testMatrix, strings.HasSuffix(name, ".gz"))

		idx, err := matrix.BuildIndex(ctx, path)
		assert.NoError(t, err)
		expect.EQ(t, idx.Compressed, strings.HasSuffix(name, ".gz"))
		expect.EQ(t, idx.Header.Samples, []string{"S1", "S2", "S3"})
		assert.EQ(t, len(idx.Blocks), 2)
		expect.EQ(t, idx.Blocks[0].Chrom, "chr1")
		expect.EQ(t, idx.Blocks[0].Line, 2)
		expect.EQ(t, idx.Blocks[0].Rows, 3)
		expect.EQ(t, idx.Blocks[1].Chrom, "chr2")
		expect.EQ(t, idx.Blocks[1].Line, 7)
		expect.EQ(t, idx.Blocks[1].Offset, int64(strings.Index(testMatrix, "cg04")))

		for i, want := range [][]interval.PosType{{100, 200, 300}, {50, 60}} {
			r, err := matrix.OpenBlock(ctx, idx, i, matrix.DefaultOpts)
			assert.NoError(t, err)
			got := readAll(t, r)
			assert.EQ(t, len(got), 1, "%s block %d", name, i)
			expect.EQ(t, got[0].chrom, idx.Blocks[i].Chrom)
			expect.EQ(t, got[0].pos, want)
			expect.NoError(t, r.Err())
			expect.NoError(t, r.Close(ctx))
		}

		r, err := matrix.OpenBlock(ctx, idx, 1, matrix.DefaultOpts)
		assert.NoError(t, err)
		assert.True(t, r.NextChrom())
		assert.True(t, r.Scan())
		expect.EQ(t, r.Probe().Line, 7)
		expect.NoError(t, r.Close(ctx))

		r, err = matrix.Open(ctx, path, matrix.DefaultOpts)
		assert.NoError(t, err)
		expect.EQ(t, len(readAll(t, r)), 2)
		expect.NoError(t, r.Close(ctx))
	}

	split := filepath.Join(tmpdir, "split.tsv")
	writeFile(t, split, "probe\tchrom\tpos\tS1\n"+
		"a\tchr1\t1\t0.1\n"+
		"b\tchr2\t1\t0.1\n"+
		"c\tchr2\t2\tbad\n"+
		"d\tchr1\t5\t0.1\n"+
		"e\tchr1\t6\t0.1\t0.2\n"+
		"f\tchrX\t6\t0.1\n", false)
	idx, err := matrix.BuildIndex(ctx, split)
	assert.NoError(t, err)
	assert.EQ(t, len(idx.Blocks), 4)
	expect.True(t, idx.Blocks[0].Split)
	expect.False(t, idx.Blocks[1].Split)
	expect.EQ(t, idx.Blocks[1].Rows, 1)
	expect.EQ(t, idx.Blocks[1].Malformed, 1)
	expect.True(t, idx.Blocks[2].Split)
	expect.EQ(t, idx.Blocks[2].Rows, 1)
	expect.EQ(t, idx.Blocks[2].Malformed, 1)
	expect.False(t, idx.Blocks[3].Split)
}

func TestIndexMalformed(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	// Malformed rows, including ones naming another chromosome, neither
	// start nor split a block.
	input := "probe\tchrom\tpos\tS1\tS2\n" +
		"x\tchr9\tbad\t0.1\t0.2\n" +
		"a\tchr1\t1\t0.1\t0.2\n" +
		"b\tchr1\t2\t0.1\t0.2\n" +
		"z\tchrZ\t3\t0.1\n" +
		"c\tchr1\t4\t0.1\t0.2\n" +
		"d\tchr2\t1\t0.1\t0.2\n" +
		"y\tchr2\t2\tbad\t0.2\n" +
		"e\tchr3\t1\t0.1\t0.2\n"
	for _, name := range []string{"m.tsv", "m.tsv.gz"} {
		path := filepath.Join(tmpdir, name)
		writeFile(t, path, input, strings.HasSuffix(name, ".gz"))

		idx, err := matrix.BuildIndex(ctx, path)
		assert.NoError(t, err)
		assert.EQ(t, len(idx.Blocks), 3, name)
		for i, want := range []matrix.Block{
			{Chrom: "chr1", Line: 3, Rows: 3, Malformed: 2},
			{Chrom: "chr2", Line: 7, Rows: 1, Malformed: 1},
			{Chrom: "chr3", Line: 9, Rows: 1},
		} {
			want.Offset = idx.Blocks[i].Offset
			expect.EQ(t, idx.Blocks[i], want, "%s block %d", name, i)
		}

		r, err := matrix.Open(ctx, path, matrix.DefaultOpts)
		assert.NoError(t, err)
		seq := readAll(t, r)
		wantStats := r.Stats()
		expect.NoError(t, r.Close(ctx))
		expect.EQ(t, wantStats, matrix.Stats{Rows: 8, Probes: 5, Malformed: 3})

		// Reading every block covers each row exactly once.
		var (
			got   []chromProbes
			stats matrix.Stats
		)
		for i := range idx.Blocks {
			r, err := matrix.OpenBlock(ctx, idx, i, matrix.DefaultOpts)
			assert.NoError(t, err)
			got = append(got, readAll(t, r)...)
			expect.NoError(t, r.Err())
			stats.Add(r.Stats())
			expect.NoError(t, r.Close(ctx))
		}
		expect.EQ(t, got, seq, name)
		expect.EQ(t, stats, wantStats, name)
	}
}

func TestSamples(t *testing.T) {
	table := "sample_id\tgroup\tsex\n" +
		"S2\tcase\tF\n" +
		"S1\tcontrol\tM\n" +
		"S9\tcontrol\tM\n"
	samples, err := matrix.ReadSamples(strings.NewReader(table))
	assert.NoError(t, err)
	expect.EQ(t, len(samples), 3)
	expect.EQ(t, samples[0], matrix.Sample{ID: "S2", Group: "case", Sex: "F"})

	matched, err := matrix.MatchSamples(matrix.Header{Samples: []string{"S1", "S2"}}, samples)
	assert.NoError(t, err)
	expect.EQ(t, matched[0].Group, "control")
	expect.EQ(t, matched[1].Group, "case")

	_, err = matrix.MatchSamples(matrix.Header{Samples: []string{"S1", "S3"}}, samples)
	expect.True(t, err != nil)

	_, err = matrix.ReadSamples(strings.NewReader(table + "S1\tcase\tF\n"))
	expect.True(t, err != nil)
}
