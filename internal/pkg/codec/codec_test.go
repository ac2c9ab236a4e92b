package codec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAsSigned16(t *testing.T) {
	testCases := []struct {
		name string
		in   uint16
		want int
	}{
		{name: "zero", in: 0, want: 0},
		{name: "max positive", in: 0x7FFF, want: 32767},
		{name: "min negative", in: 0x8000, want: -32768},
		{name: "minus one", in: 0xFFFF, want: -1},
		{name: "battery discharge", in: 0xFF6A, want: -150},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, AsSigned16(tc.in))
		})
	}
}

func TestAsSigned16_AllWords(t *testing.T) {
	for w := 0; w <= 0xFFFF; w++ {
		got := AsSigned16(uint16(w))
		if w >= 0x8000 {
			if got != w-0x10000 {
				t.Fatalf("AsSigned16(%#04x) = %d, want %d", w, got, w-0x10000)
			}
			continue
		}
		if got != w {
			t.Fatalf("AsSigned16(%#04x) = %d, want %d", w, got, w)
		}
	}
}

func TestAsUnsigned16(t *testing.T) {
	assert.Equal(t, 0, AsUnsigned16(0))
	assert.Equal(t, 0xFFFF, AsUnsigned16(0xFFFF))
	assert.Equal(t, 2301, AsUnsigned16(2301))
}

func TestScaled(t *testing.T) {
	assert.InDelta(t, 230.1, Scaled(2301, 10), 1e-9)
	assert.InDelta(t, 50.01, Scaled(5001, 100), 1e-9)
	assert.InDelta(t, -1.5, Scaled(-15, 10), 1e-9)
}

func TestScaled_RoundTripsTenths(t *testing.T) {
	for raw := -32768; raw <= 65535; raw++ {
		if got := int(math.Round(Scaled(raw, 10) * 10)); got != raw {
			t.Fatalf("round(Scaled(%d, 10) * 10) = %d", raw, got)
		}
	}
}
