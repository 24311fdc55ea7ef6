package ticket

import (
	"errors"
	"fmt"
	"slices"
)

const (
	Rows        = 3
	Cols        = 9
	PerRow      = 5
	Filled      = Rows * PerRow
	MaxPerCol   = 3
	MaxNumber   = 90
	repairLimit = 10

	// MaxSerial bounds the serials the server will build grids for.
	MaxSerial = 1_000_000
)

var ErrInvalidTicket = errors.New("invalid ticket")

// Ticket is a 3x9 housie grid. Zero marks an empty cell.
type Ticket [Rows][Cols]int

type cell struct {
	col int
	n   int
}

// ColumnRange returns the inclusive value range of column c.
func ColumnRange(c int) (lo, hi int) {
	switch c {
	case 0:
		return 1, 9
	case Cols - 1:
		return 80, MaxNumber
	default:
		return c * 10, c*10 + 9
	}
}

// ColumnFor returns the column that holds n, or -1 when n is out of range.
func ColumnFor(n int) int {
	switch {
	case n < 1 || n > MaxNumber:
		return -1
	case n < 10:
		return 0
	case n >= 80:
		return Cols - 1
	default:
		return n / 10
	}
}

// Generate builds the ticket for serial. The same serial always yields the
// same grid.
func Generate(serial int) Ticket {
	r := newStream(serial)

	counts := [Cols]int{}
	for c := range counts {
		counts[c] = 1
	}
	for remaining := Filled - Cols; remaining > 0; {
		c := r.intn(Cols)
		if counts[c] < MaxPerCol {
			counts[c]++
			remaining--
		}
	}

	values := [Cols][]int{}
	for c := 0; c < Cols; c++ {
		lo, hi := ColumnRange(c)
		pool := make([]int, 0, hi-lo+1)
		for n := lo; n <= hi; n++ {
			pool = append(pool, n)
		}
		vals := r.pick(pool, counts[c])
		slices.Sort(vals)
		values[c] = vals
	}

	rows := [Rows][]cell{}
	for c, vals := range values {
		for i, row := range leastLoaded(r, rows, len(vals)) {
			rows[row] = append(rows[row], cell{col: c, n: vals[i]})
		}
	}
	repair(r, &rows)

	// Rows holding a column take its values top to bottom in ascending order.
	var t Ticket
	for c, vals := range values {
		var holders []int
		for row := range rows {
			if hasColumn(rows[row], c) {
				holders = append(holders, row)
			}
		}
		for i, row := range holders {
			if i < len(vals) {
				t[row][c] = vals[i]
			}
		}
	}
	return t
}

// leastLoaded returns k distinct rows ordered by current fill, ties broken by
// the seeded stream.
func leastLoaded(r *stream, rows [Rows][]cell, k int) []int {
	order := []int{0, 1, 2}
	keys := [Rows]float64{}
	for i := range keys {
		keys[i] = r.float()
	}
	slices.SortFunc(order, func(a, b int) int {
		if d := len(rows[a]) - len(rows[b]); d != 0 {
			return d
		}
		switch {
		case keys[a] < keys[b]:
			return -1
		case keys[a] > keys[b]:
			return 1
		}
		return a - b
	})
	return order[:k]
}

// repair moves entries out of rows holding more than PerRow cells and returns
// the passes it took. It gives up after repairLimit passes or once a pass
// changes nothing.
func repair(r *stream, rows *[Rows][]cell) int {
	iter := 0
	for iter < repairLimit {
		iter++
		changed := false
		for src := range rows {
			for len(rows[src]) > PerRow {
				var targets []int
				for dst := range rows {
					if len(rows[dst]) < PerRow {
						targets = append(targets, dst)
					}
				}
				if len(targets) == 0 {
					break
				}
				dst := targets[r.intn(len(targets))]
				moved := -1
				for i := len(rows[src]) - 1; i >= 0; i-- {
					if !hasColumn(rows[dst], rows[src][i].col) {
						moved = i
						break
					}
				}
				if moved < 0 {
					break
				}
				rows[dst] = append(rows[dst], rows[src][moved])
				rows[src] = slices.Delete(rows[src], moved, moved+1)
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return iter
}

func hasColumn(cells []cell, c int) bool {
	return slices.ContainsFunc(cells, func(x cell) bool { return x.col == c })
}

// Row returns the filled values of row i, left to right.
func (t Ticket) Row(i int) []int {
	out := make([]int, 0, PerRow)
	for _, n := range t[i] {
		if n != 0 {
			out = append(out, n)
		}
	}
	return out
}

// Numbers returns every filled value, row by row.
func (t Ticket) Numbers() []int {
	out := make([]int, 0, Filled)
	for i := range t {
		out = append(out, t.Row(i)...)
	}
	return out
}

// Contains reports whether n is on the ticket.
func (t Ticket) Contains(n int) bool {
	c := ColumnFor(n)
	if c < 0 {
		return false
	}
	for row := range t {
		if t[row][c] == n {
			return true
		}
	}
	return false
}

// Validate checks the structural rules of a housie ticket.
func (t Ticket) Validate() error {
	seen := make(map[int]bool, Filled)
	total := 0
	for row := range t {
		inRow := 0
		for c, n := range t[row] {
			if n == 0 {
				continue
			}
			lo, hi := ColumnRange(c)
			if n < lo || n > hi {
				return fmt.Errorf("%w: %d outside column %d", ErrInvalidTicket, n, c)
			}
			if seen[n] {
				return fmt.Errorf("%w: duplicate %d", ErrInvalidTicket, n)
			}
			seen[n] = true
			inRow++
		}
		if inRow != PerRow {
			return fmt.Errorf("%w: row %d has %d numbers", ErrInvalidTicket, row, inRow)
		}
		total += inRow
	}
	if total != Filled {
		return fmt.Errorf("%w: %d numbers", ErrInvalidTicket, total)
	}
	for c := 0; c < Cols; c++ {
		last, inCol := 0, 0
		for row := range t {
			n := t[row][c]
			if n == 0 {
				continue
			}
			if n <= last {
				return fmt.Errorf("%w: column %d not ascending", ErrInvalidTicket, c)
			}
			last = n
			inCol++
		}
		if inCol < 1 || inCol > MaxPerCol {
			return fmt.Errorf("%w: column %d has %d numbers", ErrInvalidTicket, c, inCol)
		}
	}
	return nil
}
