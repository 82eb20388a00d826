package common

// BoardLayout places an N×N board of square tiles separated by Gap pixels,
// with its top-left corner at (OffsetX, OffsetY).
type BoardLayout struct {
	N        int
	TileSize int
	Gap      int
	OffsetX  int
	OffsetY  int
}

// Size returns the board's width and height in pixels, outer gaps included
func (l BoardLayout) Size() int {
	return l.N*l.TileSize + (l.N+1)*l.Gap
}

// TileOrigin returns the top-left pixel of tile (x, y)
func (l BoardLayout) TileOrigin(x, y int) (int, int) {
	return l.OffsetX + l.Gap + x*(l.TileSize+l.Gap),
		l.OffsetY + l.Gap + y*(l.TileSize+l.Gap)
}

// Contains reports whether pixel (px, py) lies on the board
func (l BoardLayout) Contains(px, py int) bool {
	size := l.Size()
	return px >= l.OffsetX && px < l.OffsetX+size && py >= l.OffsetY && py < l.OffsetY+size
}

// TileAt returns the tile under pixel (px, py). Gaps belong to no tile.
func (l BoardLayout) TileAt(px, py int) (int, int, bool) {
	if !l.Contains(px, py) {
		return 0, 0, false
	}
	stride := l.TileSize + l.Gap
	rx, ry := px-l.OffsetX-l.Gap, py-l.OffsetY-l.Gap
	if rx < 0 || ry < 0 || rx%stride >= l.TileSize || ry%stride >= l.TileSize {
		return 0, 0, false
	}
	x, y := rx/stride, ry/stride
	if x >= l.N || y >= l.N {
		return 0, 0, false
	}
	return x, y, true
}

// Centered returns l moved so the board is centred horizontally in width
// and starts top pixels from the top.
func (l BoardLayout) Centered(width, top int) BoardLayout {
	l.OffsetX = max(0, (width-l.Size())/2)
	l.OffsetY = top
	return l
}
