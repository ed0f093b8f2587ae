package interval

import (
	"strconv"
	"strings"
)

// chromRank maps a chromosome name onto (rank, numeric) such that
// chr1 < chr2 < ... < chr22 < chrX < chrY < chrM < everything else.  The
// "chr" prefix is optional.  Unrecognized names share the last rank and are
// ordered lexically by the caller.
func chromRank(name string) (rank int, ok bool) {
	s := name
	if len(s) > 3 && strings.EqualFold(s[:3], "chr") {
		s = s[3:]
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n, true
	}
	switch s {
	case "X", "x":
		return 1 << 20, true
	case "Y", "y":
		return 1<<20 + 1, true
	case "M", "m", "MT", "mt":
		return 1<<20 + 2, true
	}
	return 0, false
}

// CompareChrom returns -1, 0, or 1 depending on whether a sorts before, with,
// or after b in natural chromosome order.
func CompareChrom(a, b string) int {
	if a == b {
		return 0
	}
	ra, oka := chromRank(a)
	rb, okb := chromRank(b)
	switch {
	case oka && okb:
		if ra != rb {
			if ra < rb {
				return -1
			}
			return 1
		}
	case oka:
		return -1
	case okb:
		return 1
	}
	if a < b {
		return -1
	}
	return 1
}
