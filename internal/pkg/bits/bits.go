// Package bits expands raw flow and status bitfields into bit indices and names.
package bits

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

const wordWidth = 16

// Transition describes how a bitfield changed between two consecutive reads.
type Transition struct {
	Prev    uint16
	Cur     uint16
	XOR     uint16
	Changed []int
}

// Any reports whether any bit differs.
func (t Transition) Any() bool {
	return t.XOR != 0
}

// BitsSet returns the ascending indices of the bits set in a 16-bit word.
func BitsSet(v uint16) []int {
	return BitsSetWidth(uint64(v), wordWidth)
}

// BitsSetWidth returns the ascending indices of the bits set in the lowest
// width bits of v. The result is empty, never nil, when no bit is set.
func BitsSetWidth(v uint64, width int) []int {
	width = min(max(width, 0), 64)
	return lo.Filter(lo.Range(width), func(bit int, _ int) bool {
		return v&(1<<uint(bit)) != 0
	})
}

// NamesForBits returns the names of the set bits that appear in names, ordered
// by bit index. Set bits without a name are omitted.
func NamesForBits(v uint16, names map[int]string) []string {
	return lo.FilterMap(BitsSet(v), func(bit int, _ int) (string, bool) {
		name, ok := names[bit]
		return name, ok
	})
}

// Diff compares two raw readings of the same bitfield.
func Diff(prev, cur uint16) Transition {
	xor := prev ^ cur
	return Transition{
		Prev:    prev,
		Cur:     cur,
		XOR:     xor,
		Changed: BitsSet(xor),
	}
}

// Text renders the set bits of v as "b0, b2".
func Text(v uint16) string {
	return strings.Join(lo.Map(BitsSet(v), func(bit int, _ int) string {
		return fmt.Sprintf("b%d", bit)
	}), ", ")
}

// IsSet reports whether bit is set in v.
func IsSet(v uint16, bit int) bool {
	if bit < 0 || bit >= wordWidth {
		return false
	}
	return v&(1<<uint(bit)) != 0
}
