package plu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFill(t *testing.T) {
	tests := []struct {
		name      string
		slots     []string
		flags     []bool
		codes     []string
		max       int
		wantSlots []string
		wantFlags []bool
	}{
		{
			name:      "fills empty",
			codes:     []string{"1234", "5678"},
			max:       4,
			wantSlots: []string{"1234", "5678"},
			wantFlags: []bool{true, true},
		},
		{
			name:      "caps at max",
			codes:     []string{"1111", "2222", "3333"},
			max:       2,
			wantSlots: []string{"1111", "2222"},
			wantFlags: []bool{true, true},
		},
		{
			name:      "replaces previous run",
			slots:     []string{"1111", "9999", "manual"},
			flags:     []bool{true, true, false},
			codes:     []string{"1111"},
			max:       8,
			wantSlots: []string{"1111"},
			wantFlags: []bool{true},
		},
		{
			name:      "no codes leaves slots",
			slots:     []string{"typed"},
			flags:     []bool{false},
			max:       8,
			wantSlots: []string{"typed"},
			wantFlags: []bool{false},
		},
		{
			name:      "zero max means unlimited",
			codes:     []string{"1111", "2222", "3333"},
			wantSlots: []string{"1111", "2222", "3333"},
			wantFlags: []bool{true, true, true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slots, flags := Fill(tt.slots, tt.flags, tt.codes, tt.max)
			assert.Equal(t, tt.wantSlots, slots)
			assert.Equal(t, tt.wantFlags, flags)
		})
	}
}
