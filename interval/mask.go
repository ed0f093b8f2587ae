package interval

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/klauspost/compress/gzip"
)

// getTokens identifies up to the first len(tokens) tokens from curLine,
// returning the number of tokens saved.  Any (group of) characters <= ' ' is
// treated as a delimiter.
func getTokens(tokens [][]byte, curLine []byte) int {
	posEnd := 0
	lineLen := len(curLine)
	for tokenIdx := range tokens {
		pos := posEnd
		for ; pos != lineLen; pos++ {
			if curLine[pos] > ' ' {
				break
			}
		}
		if pos == lineLen {
			return tokenIdx
		}
		posEnd = pos
		for ; posEnd != lineLen; posEnd++ {
			if curLine[posEnd] <= ' ' {
				break
			}
		}
		tokens[tokenIdx] = curLine[pos:posEnd]
	}
	return len(tokens)
}

// searchPosType returns the index of x in a[], or the position where x would
// be inserted if x isn't in a (this could be len(a)).
func searchPosType(a []PosType, x PosType) int {
	return sort.Search(len(a), func(i int) bool { return a[i] >= x })
}

// fwdsearchPosType checks a[idx], then a[idx + 1], then a[idx + 3], etc., and
// then uses binary search to finish the job.  It's usually a better choice
// than searchPosType when queries arrive in position order, which is always
// the case for a probe stream.
func fwdsearchPosType(a []PosType, x PosType, idx int) int {
	nextIncr := 1
	startIdx := idx
	endIdx := len(a)
	for idx < endIdx {
		if a[idx] >= x {
			endIdx = idx
			break
		}
		startIdx = idx + 1
		idx += nextIncr
		nextIncr *= 2
	}
	for startIdx < endIdx {
		midIdx := int(uint(startIdx+endIdx) >> 1)
		if a[midIdx] >= x {
			endIdx = midIdx
		} else {
			startIdx = midIdx + 1
		}
	}
	return startIdx
}

// Mask is a chromosome-keyed union of disjoint intervals.  Each chromosome's
// intervals are stored as a length-2N sequence of endpoints: the (0-based)
// start of interval #k is element [2k] and its end is element [2k+1].  A
// position is covered iff the number of endpoints <= it is odd.
//
// Contains caches its search state, so a Mask must not be queried from
// multiple goroutines; use Clone to get an independent cursor.
type Mask struct {
	// nameMap is always initialized.
	nameMap map[string][]PosType
	// nBase is the number of covered positions.
	nBase int

	lastChrName      string
	lastChrIntervals []PosType
	lastPosPlus1     PosType
	lastIdx          int
	isSequential     bool
}

func newMask() Mask {
	return Mask{nameMap: make(map[string][]PosType)}
}

// NBase returns the number of positions covered by the mask.
func (m *Mask) NBase() int {
	return m.nBase
}

// NChrom returns the number of chromosomes mentioned by the mask.
func (m *Mask) NChrom() int {
	return len(m.nameMap)
}

// Clone returns a new Mask which shares the interval set, but has its own
// search state.
func (m *Mask) Clone() Mask {
	return Mask{nameMap: m.nameMap, nBase: m.nBase}
}

// Contains checks whether the (0-based) position pos on chrName is covered.
func (m *Mask) Contains(chrName string, pos PosType) bool {
	posPlus1 := pos + 1
	if chrName != m.lastChrName || m.lastChrIntervals == nil {
		m.lastChrName = chrName
		m.lastChrIntervals = m.nameMap[chrName]
		if m.lastChrIntervals == nil {
			return false
		}
		m.lastIdx = searchPosType(m.lastChrIntervals, posPlus1)
		m.lastPosPlus1 = posPlus1
		m.isSequential = true
		return m.lastIdx&1 == 1
	}
	if m.isSequential {
		if posPlus1 >= m.lastPosPlus1 {
			m.lastIdx = fwdsearchPosType(m.lastChrIntervals, posPlus1, m.lastIdx)
			m.lastPosPlus1 = posPlus1
			return m.lastIdx&1 == 1
		}
		m.isSequential = false
	}
	return searchPosType(m.lastChrIntervals, posPlus1)&1 == 1
}

// maskBuilder accumulates sorted intervals one chromosome at a time, merging
// touching/overlapping intervals and dropping empty ones.
type maskBuilder struct {
	mask               Mask
	curChr             string
	curIntervals       []PosType
	curStart, curEnd   PosType
	haveCur, haveChrom bool
}

func (b *maskBuilder) add(chrName string, start, end PosType) error {
	if !b.haveChrom || chrName != b.curChr {
		b.finishChrom()
		if _, found := b.mask.nameMap[chrName]; found {
			return fmt.Errorf("unsorted input (split chromosome %v)", chrName)
		}
		b.curChr = chrName
		b.curIntervals = []PosType{}
		b.haveChrom = true
	}
	if end == start {
		return nil
	}
	if !b.haveCur {
		b.curStart, b.curEnd, b.haveCur = start, end, true
		return nil
	}
	if start < b.curStart {
		return fmt.Errorf("unsorted input on %v", chrName)
	}
	if start > b.curEnd {
		b.curIntervals = append(b.curIntervals, b.curStart, b.curEnd)
		b.mask.nBase += int(b.curEnd - b.curStart)
		b.curStart, b.curEnd = start, end
		return nil
	}
	if end > b.curEnd {
		b.curEnd = end
	}
	return nil
}

func (b *maskBuilder) finishChrom() {
	if !b.haveChrom {
		return
	}
	if b.haveCur {
		b.curIntervals = append(b.curIntervals, b.curStart, b.curEnd)
		b.mask.nBase += int(b.curEnd - b.curStart)
	}
	// A chromosome mentioned only by empty intervals still gets an entry, so
	// that it is distinguishable from an unmentioned one.
	b.mask.nameMap[b.curChr] = b.curIntervals
	b.haveCur = false
	b.haveChrom = false
}

// NewMask loads the intervals from a sorted (by chromosome block, then start)
// BED stream.  Only the first three columns are examined.  Header, track and
// browser lines are skipped.
func NewMask(reader io.Reader) (m Mask, err error) {
	b := maskBuilder{mask: newMask()}
	scanner := bufio.NewScanner(reader)
	var tokens [3][]byte
	lineIdx := 0
	for scanner.Scan() {
		lineIdx++
		curLine := scanner.Bytes()
		if len(curLine) == 0 || curLine[0] == '#' || hasPrefix(curLine, "track") || hasPrefix(curLine, "browser") {
			continue
		}
		nToken := getTokens(tokens[:], curLine)
		if nToken != 3 {
			if nToken == 0 {
				continue
			}
			err = fmt.Errorf("interval.NewMask: line %d has fewer tokens than expected", lineIdx)
			return
		}
		var parsedStart, parsedEnd int64
		if parsedStart, err = strconv.ParseInt(gunsafe.BytesToString(tokens[1]), 10, 32); err != nil {
			err = fmt.Errorf("interval.NewMask: line %d: %v", lineIdx, err)
			return
		}
		if parsedEnd, err = strconv.ParseInt(gunsafe.BytesToString(tokens[2]), 10, 32); err != nil {
			err = fmt.Errorf("interval.NewMask: line %d: %v", lineIdx, err)
			return
		}
		if parsedStart < 0 || parsedEnd < parsedStart || parsedEnd >= PosTypeMax {
			err = fmt.Errorf("interval.NewMask: invalid coordinate pair on line %d", lineIdx)
			return
		}
		// The map key must not alias scanner memory.
		if err = b.add(string(tokens[0]), PosType(parsedStart), PosType(parsedEnd)); err != nil {
			err = fmt.Errorf("interval.NewMask: line %d: %v", lineIdx, err)
			return
		}
	}
	if err = scanner.Err(); err != nil {
		return
	}
	b.finishChrom()
	m = b.mask
	log.Printf("interval.NewMask: BED loaded, %d base(s) covered on %d chromosome(s)", m.nBase, len(m.nameMap))
	return
}

func hasPrefix(line []byte, prefix string) bool {
	return len(line) >= len(prefix) && gunsafe.BytesToString(line[:len(prefix)]) == prefix
}

// NewMaskFromPath is a wrapper for NewMask that takes a path instead of an
// io.Reader.  Gzipped BED files are recognized by extension.
func NewMaskFromPath(ctx context.Context, path string) (m Mask, err error) {
	var infile file.File
	if infile, err = file.Open(ctx, path); err != nil {
		return
	}
	defer func() {
		if cerr := infile.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	reader := io.Reader(infile.Reader(ctx))
	if fileio.DetermineType(path) == fileio.Gzip {
		var gz *gzip.Reader
		if gz, err = gzip.NewReader(reader); err != nil {
			return
		}
		defer gz.Close()
		reader = gz
	}
	return NewMask(reader)
}

// NewMaskFromEntries initializes a Mask from a sorted []Entry.
func NewMaskFromEntries(entries []Entry) (m Mask, err error) {
	b := maskBuilder{mask: newMask()}
	for _, entry := range entries {
		if entry.Start0 < 0 {
			err = fmt.Errorf("interval.NewMaskFromEntries: negative start coordinate")
			return
		}
		if entry.End < entry.Start0 || entry.End >= PosTypeMax {
			err = fmt.Errorf("interval.NewMaskFromEntries: invalid coordinate pair [%d, %d)", entry.Start0, entry.End)
			return
		}
		if err = b.add(entry.ChrName, entry.Start0, entry.End); err != nil {
			err = fmt.Errorf("interval.NewMaskFromEntries: %v", err)
			return
		}
	}
	b.finishChrom()
	return b.mask, nil
}
