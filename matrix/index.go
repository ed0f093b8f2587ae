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
	"context"
	"io"
	"io/ioutil"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

// Block locates one contiguous run of rows sharing a chromosome.
type Block struct {
	Chrom string
	// Offset is the byte offset of the block's first row in the decompressed
	// stream.
	Offset int64
	// Line is the 1-based line number of the block's first row.
	Line int
	// Rows is the number of well-formed rows in the block.
	Rows int
	// Malformed counts the rejected rows a Reader of this block passes over:
	// those after its first row and before the next block, plus, for the
	// first block, any before it.
	Malformed int
	// Split is set when the chromosome also appears in another block.
	Split bool
}

// Index describes the chromosome blocks of a matrix file.
type Index struct {
	Path       string
	Compressed bool
	Header     Header
	// DataOffset and DataLine locate the end of the header: the byte offset
	// of the following line and the number of lines up to and including the
	// header.
	DataOffset int64
	DataLine   int
	Blocks     []Block
}

// BuildIndex makes a single pass over path, recording where each chromosome
// block starts.  Rows are validated as the Reader validates them, so a
// malformed row never starts or splits a block.
func BuildIndex(ctx context.Context, path string) (idx *Index, err error) {
	in, _, rd, gz, err := openStream(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if gz != nil {
			_ = gz.Close()
		}
		if cerr := in.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	lr := newLineReader(rd, 0, 0)
	header, err := readHeader(lr, path)
	if err != nil {
		return nil, err
	}
	idx = &Index{
		Path:       path,
		Compressed: gz != nil,
		Header:     header,
		DataOffset: lr.off,
		DataLine:   lr.line,
	}
	var (
		check    = newReader(lr, path, header, DefaultOpts)
		blockIdx = make(map[string][]int)
		cur      = -1
		leading  int
	)
	for {
		line, off, err := lr.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.E(err, "matrix.BuildIndex", path)
		}
		if isBlankOrComment(line) {
			continue
		}
		p, reason := check.parseRow(line)
		if reason != "" {
			if cur < 0 {
				leading++
			} else {
				idx.Blocks[cur].Malformed++
			}
			continue
		}
		if cur < 0 || idx.Blocks[cur].Chrom != p.Chrom {
			idx.Blocks = append(idx.Blocks, Block{Chrom: p.Chrom, Offset: off, Line: lr.line})
			cur = len(idx.Blocks) - 1
			blockIdx[p.Chrom] = append(blockIdx[p.Chrom], cur)
			check.chrom = p.Chrom
		}
		idx.Blocks[cur].Rows++
	}
	if len(idx.Blocks) > 0 {
		idx.Blocks[0].Malformed += leading
	}
	for chrom, blocks := range blockIdx {
		if len(blocks) < 2 {
			continue
		}
		log.Printf("matrix.BuildIndex: warning: %s: chromosome %s is split into %d blocks", path, chrom, len(blocks))
		for _, i := range blocks {
			idx.Blocks[i].Split = true
		}
	}
	log.Debug.Printf("matrix.BuildIndex: %s: %d block(s), %d sample(s)", path, len(idx.Blocks), len(header.Samples))
	return idx, nil
}

// OpenBlock returns a Reader for block i of idx.  The reader yields exactly
// one chromosome: NextChrom returns true once.  Plain files are seeked;
// compressed files are decompressed and skipped up to the block offset.
func OpenBlock(ctx context.Context, idx *Index, i int, opts Opts) (*Reader, error) {
	b := idx.Blocks[i]
	in, raw, rd, gz, err := openStream(ctx, idx.Path)
	if err != nil {
		return nil, err
	}
	fail := func(err error) (*Reader, error) {
		if gz != nil {
			_ = gz.Close()
		}
		_ = in.Close(ctx)
		return nil, errors.E(err, "matrix.OpenBlock", idx.Path, b.Chrom)
	}
	if (gz != nil) != idx.Compressed {
		return fail(errors.E("compression does not match the index"))
	}
	// The first block also covers any malformed rows before it.
	off, line := b.Offset, b.Line-1
	if i == 0 {
		off, line = idx.DataOffset, idx.DataLine
	}
	if gz != nil {
		if _, err := io.CopyN(ioutil.Discard, rd, off); err != nil {
			return fail(err)
		}
	} else if _, err := raw.Seek(off, io.SeekStart); err != nil {
		return fail(err)
	}
	r := newReader(newLineReader(rd, off, line), idx.Path, idx.Header, opts)
	r.single, r.blockChrom = true, b.Chrom
	r.in, r.gz = in, gz
	return r, nil
}
