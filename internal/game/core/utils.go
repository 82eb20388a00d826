package core

import "fmt"

// IntToStringFixedWidth converts an integer to a string of a specified width,
// left-padding with spaces. Longer numbers are not truncated.
func IntToStringFixedWidth(num int, width int) string {
	return fmt.Sprintf("%*d", width, num)
}

// IsPowerOfTwo reports whether v is a positive power of two.
func IsPowerOfTwo(v int) bool {
	return v > 0 && v&(v-1) == 0
}

// Log2 returns the exponent of a power-of-two tile, or 0 for an empty cell.
func Log2(v int) int {
	n := 0
	for v > 1 {
		v >>= 1
		n++
	}
	return n
}

// IsTileValue reports whether v may appear on a board: empty, or 2, 4, 8...
func IsTileValue(v int) bool {
	return v == EmptyTile || (v >= 2 && IsPowerOfTwo(v))
}
