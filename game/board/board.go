package board

// Cell is the content of a single board position.
type Cell uint8

const (
	Empty Cell = 0
	X     Cell = 1
	O     Cell = 2
)

// Size is the number of cells on the board.
const Size = 9

// Board holds the 9 cells of a tic-tac-toe grid, row-major:
//
//	0 1 2
//	3 4 5
//	6 7 8
type Board [Size]Cell

// winPatterns lists the 8 winning triples in a fixed evaluation order:
// rows, then columns, then diagonals.
var winPatterns = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8}, // rows
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8}, // columns
	{0, 4, 8}, {2, 4, 6}, // diagonals
}

// Encode packs the board into 3 bytes, 2 bits per cell, 4 cells per
// byte. Cell i lands in byte i/4 at bit offset (i%4)*2.
func Encode(b Board) [3]byte {
	var encoded [3]byte
	for i, cell := range b {
		encoded[i/4] |= byte(cell) << ((i % 4) * 2)
	}
	return encoded
}

// Decode unpacks a 3-byte encoded board. Decode(Encode(b)) == b for
// every valid board.
func Decode(encoded [3]byte) Board {
	var b Board
	for i := range b {
		v := (encoded[i/4] >> ((i % 4) * 2)) & 3
		if v == uint8(X) || v == uint8(O) {
			b[i] = Cell(v)
		}
	}
	return b
}

// Winner scans the 8 winning triples in fixed order and returns the
// symbol of the first completed one, or Empty when no triple is
// complete. Draw detection is the caller's job: Full(b) && Winner(b)
// == Empty.
func Winner(b Board) Cell {
	for _, p := range winPatterns {
		if b[p[0]] != Empty && b[p[0]] == b[p[1]] && b[p[0]] == b[p[2]] {
			return b[p[0]]
		}
	}
	return Empty
}

// Full reports whether every cell has been played.
func Full(b Board) bool {
	for _, cell := range b {
		if cell == Empty {
			return false
		}
	}
	return true
}

// Label returns the wire label for a symbol: "X" or "O". Empty has no
// label.
func (c Cell) Label() string {
	switch c {
	case X:
		return "X"
	case O:
		return "O"
	}
	return ""
}

// Other returns the opposing symbol. Calling it on Empty returns Empty.
func (c Cell) Other() Cell {
	switch c {
	case X:
		return O
	case O:
		return X
	}
	return Empty
}

// ParseCell maps a wire label back to a symbol. Unknown labels map to
// Empty.
func ParseCell(label string) Cell {
	switch label {
	case "X":
		return X
	case "O":
		return O
	}
	return Empty
}

// Labels renders the board in its wire form: 9 entries, each nil for
// an empty cell or a pointer to "X"/"O".
func Labels(b Board) [Size]*string {
	var out [Size]*string
	for i, cell := range b {
		if cell != Empty {
			label := cell.Label()
			out[i] = &label
		}
	}
	return out
}
