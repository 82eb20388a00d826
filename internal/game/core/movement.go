package core

// Mover slides a board in one direction using a reusable line buffer, so a
// step allocates nothing once the mover exists.
type Mover struct {
	buf []int
}

func NewMover(n int) *Mover {
	return &Mover{buf: make([]int, n)}
}

// Apply slides every line of b in direction a and returns the merge reward
// and whether any cell changed. The action must already be validated.
func (m *Mover) Apply(b *Board, a Action) (int, bool) {
	return m.run(b, a, true)
}

// Preview reports what Apply would return without touching b.
func (m *Mover) Preview(b *Board, a Action) (int, bool) {
	return m.run(b, a, false)
}

func (m *Mover) run(b *Board, a Action, write bool) (int, bool) {
	if len(m.buf) != b.N {
		m.buf = make([]int, b.N)
	}
	gained := 0
	changed := false
	for line := 0; line < b.N; line++ {
		for pos := 0; pos < b.N; pos++ {
			m.buf[pos] = b.T[lineCell(b.N, a, line, pos)]
		}
		gained += TransformLine(m.buf)
		for pos := 0; pos < b.N; pos++ {
			idx := lineCell(b.N, a, line, pos)
			if b.T[idx] != m.buf[pos] {
				changed = true
				if write {
					b.T[idx] = m.buf[pos]
				}
			}
		}
	}
	return gained, changed
}

// lineCell maps position pos (counted from the edge tiles slide towards) of
// line number line to a row-major board index.
func lineCell(n int, a Action, line, pos int) int {
	if a.IsReversed() {
		pos = n - 1 - pos
	}
	if a.IsVertical() {
		return pos*n + line
	}
	return line*n + pos
}

// ApplyMove is a convenience wrapper for one-off moves.
func ApplyMove(b *Board, a Action) (int, bool, error) {
	if err := a.Validate(); err != nil {
		return 0, false, err
	}
	gained, changed := NewMover(b.N).Apply(b, a)
	return gained, changed, nil
}
