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
package matrix

import (
	"bufio"
	"io"
)

// lineReader yields lines without their terminators, along with the byte
// offset of each line's start, so that chromosome blocks can be resumed
// later.  bufio.Scanner hides both the offsets and the '\r' it strips, which
// is why it isn't used here.
type lineReader struct {
	br   *bufio.Reader
	off  int64
	line int
	buf  []byte
}

func newLineReader(r io.Reader, off int64, line int) *lineReader {
	return &lineReader{
		br:   bufio.NewReaderSize(r, 1<<20),
		off:  off,
		line: line,
	}
}

// next returns the next line and its starting offset.  The returned slice is
// only valid until the following call.  io.EOF is returned after the last
// line.
func (lr *lineReader) next() (line []byte, off int64, err error) {
	off = lr.off
	lr.buf = lr.buf[:0]
	for {
		chunk, e := lr.br.ReadSlice('\n')
		lr.buf = append(lr.buf, chunk...)
		if e == bufio.ErrBufferFull {
			continue
		}
		if e == io.EOF {
			if len(lr.buf) == 0 {
				return nil, off, io.EOF
			}
			break
		}
		if e != nil {
			return nil, off, e
		}
		break
	}
	lr.off += int64(len(lr.buf))
	lr.line++
	line = lr.buf
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
	}
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line, off, nil
}

// splitTabs stores the tab-separated fields of line in fields, returning the
// total number of fields (which may exceed len(fields); extra fields are
// counted but not stored).
func splitTabs(fields [][]byte, line []byte) int {
	n := 0
	start := 0
	for i, c := range line {
		if c == '\t' {
			if n < len(fields) {
				fields[n] = line[start:i]
			}
			n++
			start = i + 1
		}
	}
	if n < len(fields) {
		fields[n] = line[start:]
	}
	return n + 1
}

// isBlankOrComment returns true for lines that carry no probe data.
func isBlankOrComment(line []byte) bool {
	for _, c := range line {
		if c == '#' {
			return true
		}
		if c > ' ' {
			return false
		}
	}
	return true
}
