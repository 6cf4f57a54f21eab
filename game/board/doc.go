// Package board implements the compact board representation for
// tic-tac-toe games.
//
// A board is 9 cells, each empty or holding one of the two symbols.
// For storage the board is packed into 3 bytes, 2 bits per cell
// (00 empty, 01 X, 10 O), so a full game record stays small enough to
// cache and log cheaply.
//
// The package also detects terminal outcomes: Winner checks the 8
// winning triples (3 rows, 3 columns, 2 diagonals) in a fixed order
// and returns the first completed symbol. A draw is derived by the
// caller as a full board with no winner.
//
// All functions are pure and deterministic. Out-of-range cell indexes
// are programmer errors, not runtime conditions.
package board
