package core

// The line transform runs in place on a slice holding one row or column,
// ordered from the edge tiles move towards. Each stage writes at an index no
// greater than the one it reads, so no scratch space is needed.

// CompactLine moves all non-zero values to the front of line, keeping their
// relative order, and returns how many there are. The tail is left untouched.
func CompactLine(line []int) int {
	n := 0
	for _, v := range line {
		if v != EmptyTile {
			line[n] = v
			n++
		}
	}
	return n
}

// MergeLine merges adjacent equal pairs among the first n values of a
// compacted line. A merged tile never merges again in the same pass, so
// [2,2,2,2] becomes [4,4]. It returns the new length and the sum of all
// merged values.
func MergeLine(line []int, n int) (int, int) {
	gained := 0
	w := 0
	for r := 0; r < n; r++ {
		v := line[r]
		if r+1 < n && line[r+1] == v {
			v *= 2
			gained += v
			r++
		}
		line[w] = v
		w++
	}
	return w, gained
}

// PadLine zero-fills line from index n onwards.
func PadLine(line []int, n int) {
	for i := n; i < len(line); i++ {
		line[i] = EmptyTile
	}
}

// TransformLine applies compact, merge and pad to line and returns the
// reward gained from merges.
func TransformLine(line []int) int {
	n := CompactLine(line)
	n, gained := MergeLine(line, n)
	PadLine(line, n)
	return gained
}
