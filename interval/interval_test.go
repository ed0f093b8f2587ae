package interval

import (
	"sort"
	"strings"
	"testing"

	"github.com/grailbio/testutil/expect"
)

func TestParseRegionString(t *testing.T) {
	tests := []struct {
		region  string
		chrName string
		start0  PosType
		end     PosType
	}{
		{"chr1:1-1000", "chr1", 0, 1000},
		{"chr1:1000", "chr1", 999, 1000},
		{"chr1:1,001-2,000", "chr1", 1000, 2000},
		{"chr1", "chr1", 0, PosTypeMax - 1},
	}
	for _, tt := range tests {
		result, err := ParseRegionString(tt.region)
		expect.NoError(t, err)
		expect.EQ(t, result.ChrName, tt.chrName)
		expect.EQ(t, result.Start0, tt.start0)
		expect.EQ(t, result.End, tt.end)
	}

	for _, bad := range []string{"", ":1-10", "chr1:0-10", "chr1:20-10", "chr1:x-10", "chr1:-5"} {
		_, err := ParseRegionString(bad)
		expect.True(t, err != nil, "region %q", bad)
	}
}

func TestMask(t *testing.T) {
	bed := "track name=test\n" +
		"chr1\t100\t200\n" +
		"chr1\t150\t250\n" +
		"chr1\t250\t300\n" +
		"chr1\t400\t400\n" +
		"chr1\t500\t600\tname\n" +
		"chr2\t10\t10\n"
	m, err := NewMask(strings.NewReader(bed))
	expect.NoError(t, err)
	expect.EQ(t, m.NBase(), 300)
	expect.EQ(t, m.NChrom(), 2)

	tests := []struct {
		chr  string
		pos  PosType
		want bool
	}{
		{"chr1", 99, false},
		{"chr1", 100, true},
		{"chr1", 299, true},
		{"chr1", 300, false},
		{"chr1", 400, false},
		{"chr1", 550, true},
		{"chr1", 600, false},
		{"chr1", 120, true}, // Non-sequential query.
		{"chr2", 10, false},
		{"chr3", 120, false},
	}
	for _, tt := range tests {
		expect.EQ(t, m.Contains(tt.chr, tt.pos), tt.want, "%s:%d", tt.chr, tt.pos)
	}

	c := m.Clone()
	expect.True(t, c.Contains("chr1", 100))
	expect.False(t, c.Contains("chr1", 700))

	_, err = NewMask(strings.NewReader("chr1\t100\t200\nchr2\t1\t5\nchr1\t300\t400\n"))
	expect.True(t, err != nil)
	_, err = NewMask(strings.NewReader("chr1\t300\t400\nchr1\t100\t200\n"))
	expect.True(t, err != nil)
}

func TestMaskFromEntries(t *testing.T) {
	region, err := ParseRegionString("chr5:11-20")
	expect.NoError(t, err)
	m, err := NewMaskFromEntries([]Entry{region})
	expect.NoError(t, err)
	expect.False(t, m.Contains("chr5", 9))
	expect.True(t, m.Contains("chr5", 10))
	expect.True(t, m.Contains("chr5", 19))
	expect.False(t, m.Contains("chr5", 20))
	expect.True(t, region.Contains("chr5", 19))
	expect.False(t, region.Contains("chr6", 19))
}

func TestCompareChrom(t *testing.T) {
	names := []string{"chrY", "chr10", "chrUn_gl000220", "chr2", "chrM", "chr1", "chrX", "7", "chr1_random"}
	sort.Slice(names, func(i, j int) bool { return CompareChrom(names[i], names[j]) < 0 })
	expect.EQ(t, names, []string{"chr1", "chr2", "7", "chr10", "chrX", "chrY", "chrM", "chr1_random", "chrUn_gl000220"})
	expect.EQ(t, CompareChrom("chr3", "chr3"), 0)
}
