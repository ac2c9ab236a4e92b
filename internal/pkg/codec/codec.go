// Package codec converts raw 16-bit register words into physical values.
package codec

// AsSigned16 interprets w as a two's-complement 16-bit integer.
func AsSigned16(w uint16) int {
	if w >= 0x8000 {
		return int(w) - 0x10000
	}
	return int(w)
}

// AsUnsigned16 returns w as a non-negative integer.
func AsUnsigned16(w uint16) int {
	return int(w) & 0xFFFF
}

// Scaled turns a fixed-point register value into a float, e.g. tenths of a volt
// with divisor 10 or hundredths of a hertz with divisor 100.
func Scaled(raw int, divisor float64) float64 {
	return float64(raw) / divisor
}
