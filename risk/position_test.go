package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   SizeInputs
		want int64
	}{
		{"floors to whole units", SizeInputs{Equity: 100_000, AllocationPct: 0.05, Price: 333}, 15},
		{"exact", SizeInputs{Equity: 10_000, AllocationPct: 0.10, Price: 100}, 10},
		{"too expensive", SizeInputs{Equity: 1_000, AllocationPct: 0.05, Price: 600}, 0},
		{"no price", SizeInputs{Equity: 1_000, AllocationPct: 0.05}, 0},
		{"no equity", SizeInputs{AllocationPct: 0.05, Price: 10}, 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Size(tt.in).IntPart())
		})
	}
}

func TestNotional(t *testing.T) {
	t.Parallel()

	got := Notional(Size(SizeInputs{Equity: 10_000, AllocationPct: 0.10, Price: 100}), 100)
	f, _ := got.Float64()
	assert.InDelta(t, 1_000, f, 1e-9)
}
