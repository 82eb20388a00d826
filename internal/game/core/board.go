package core

import "fmt"

// Board is an N x N grid of tile values stored row-major.
// 0 means empty; every other value is a power of two.
type Board struct {
	N int
	T []int // length = N*N (row-major)
}

const EmptyTile = 0

func NewBoard(n int) *Board {
	return &Board{N: n, T: make([]int, n*n)}
}

// BoardFromRows builds a board from a square matrix, rejecting ragged input
// and values that are neither zero nor a power of two of at least 2.
func BoardFromRows(rows [][]int) (*Board, error) {
	n := len(rows)
	if n <= 1 {
		return nil, fmt.Errorf("board must be at least 2x2, got %d rows: %w", n, ErrInvalidBoard)
	}
	b := NewBoard(n)
	for y, row := range rows {
		if len(row) != n {
			return nil, fmt.Errorf("row %d has %d cells, want %d: %w", y, len(row), n, ErrInvalidBoard)
		}
		for x, v := range row {
			if !IsTileValue(v) {
				return nil, fmt.Errorf("cell %s holds %d: %w", NewCoordinate(x, y), v, ErrInvalidBoard)
			}
			b.T[b.Idx(x, y)] = v
		}
	}
	return b, nil
}

func (b *Board) Idx(x, y int) int      { return y*b.N + x }
func (b *Board) XY(idx int) (int, int) { return idx % b.N, idx / b.N }

// InBounds checks if coordinates are within board boundaries
func (b *Board) InBounds(x, y int) bool {
	return x >= 0 && x < b.N && y >= 0 && y < b.N
}

func (b *Board) Get(x, y int) int    { return b.T[b.Idx(x, y)] }
func (b *Board) Set(x, y, v int)     { b.T[b.Idx(x, y)] = v }
func (b *Board) At(c Coordinate) int { return b.T[c.ToIndex(b.N)] }

// Clear zeroes every cell.
func (b *Board) Clear() {
	for i := range b.T {
		b.T[i] = EmptyTile
	}
}

func (b *Board) Clone() *Board {
	c := &Board{N: b.N, T: make([]int, len(b.T))}
	copy(c.T, b.T)
	return c
}

// CopyFrom overwrites b with src. Both boards must have the same size.
func (b *Board) CopyFrom(src *Board) {
	copy(b.T, src.T)
}

func (b *Board) Equal(other *Board) bool {
	if other == nil || b.N != other.N {
		return false
	}
	for i, v := range b.T {
		if other.T[i] != v {
			return false
		}
	}
	return true
}

// EmptyCells appends the indices of all empty cells to dst in row-major
// order and returns the extended slice.
func (b *Board) EmptyCells(dst []int) []int {
	for i, v := range b.T {
		if v == EmptyTile {
			dst = append(dst, i)
		}
	}
	return dst
}

func (b *Board) CountEmpty() int {
	n := 0
	for _, v := range b.T {
		if v == EmptyTile {
			n++
		}
	}
	return n
}

func (b *Board) IsFull() bool {
	for _, v := range b.T {
		if v == EmptyTile {
			return false
		}
	}
	return true
}

func (b *Board) MaxTile() int {
	m := 0
	for _, v := range b.T {
		if v > m {
			m = v
		}
	}
	return m
}

// Sum returns the total face value of all tiles.
func (b *Board) Sum() int {
	s := 0
	for _, v := range b.T {
		s += v
	}
	return s
}

// Rows returns a freshly allocated N x N copy of the grid.
func (b *Board) Rows() [][]int {
	rows := make([][]int, b.N)
	for y := range rows {
		rows[y] = make([]int, b.N)
		copy(rows[y], b.T[y*b.N:(y+1)*b.N])
	}
	return rows
}
