package series

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nums(vs ...float64) []sql.NullFloat64 {
	out := make([]sql.NullFloat64, len(vs))
	for i, v := range vs {
		out[i] = Known(v)
	}
	return out
}

func TestRound(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{1.234, 1.23},
		{1.236, 1.24},
		{-2.5551, -2.56},
		{0.125, 0.12},
		{0.375, 0.38},
		{10, 10},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Round(tt.in, 2), "Round(%v, 2)", tt.in)
	}
}

func TestRollingMean_MinPeriodOne(t *testing.T) {
	got := RollingMean(nums(2.5, 3.5, 6), 14, 1, 2)
	require.Len(t, got, 3)

	assert.True(t, got[0].Valid)
	assert.Equal(t, 2.5, got[0].Float64)
	assert.Equal(t, 3.0, got[1].Float64)
	assert.Equal(t, 4.0, got[2].Float64)
}

func TestRollingMean_TrailingWindow(t *testing.T) {
	got := RollingMean(nums(1, 2, 3, 4, 5), 2, 1, -1)

	want := []float64{1, 1.5, 2.5, 3.5, 4.5}
	for i, w := range want {
		assert.True(t, got[i].Valid, "position %d", i)
		assert.InDelta(t, w, got[i].Float64, 1e-12, "position %d", i)
	}
}

func TestRollingMean_SkipsUndefined(t *testing.T) {
	values := []sql.NullFloat64{Unknown(), Known(4), Unknown(), Known(8), Unknown(), Unknown(), Unknown()}

	got := RollingMean(values, 4, 2, 2)

	assert.False(t, got[0].Valid)
	assert.False(t, got[1].Valid, "one defined value is below min periods")
	assert.False(t, got[2].Valid)
	assert.True(t, got[3].Valid)
	assert.Equal(t, 6.0, got[3].Float64)
	assert.True(t, got[4].Valid)
	assert.Equal(t, 6.0, got[4].Float64)
	assert.False(t, got[5].Valid, "window [2,5] holds only position 3")
	assert.False(t, got[6].Valid)
}

func TestRollingMean_AllUndefined(t *testing.T) {
	got := RollingMean([]sql.NullFloat64{Unknown(), Unknown()}, 7, 1, 2)
	for i, v := range got {
		assert.False(t, v.Valid, "position %d", i)
	}
}

func TestMeanStd(t *testing.T) {
	mean, std, ok := MeanStd([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	require.True(t, ok)
	assert.InDelta(t, 5.0, mean, 1e-12)
	assert.InDelta(t, 2.138089935, std, 1e-9)

	_, _, ok = MeanStd([]float64{1})
	assert.False(t, ok)
}

func TestCumSum_ForwardFillsTrailingGaps(t *testing.T) {
	values := []sql.NullFloat64{Unknown(), Known(1), Known(2), Unknown(), Known(3), Unknown()}

	got := CumSum(values)

	assert.False(t, got[0].Valid, "leading gap stays undefined")
	want := []float64{0, 1, 3, 3, 6, 6}
	for i := 1; i < len(want); i++ {
		assert.True(t, got[i].Valid, "position %d", i)
		assert.Equal(t, want[i], got[i].Float64, "position %d", i)
	}
}

func TestSum(t *testing.T) {
	assert.Equal(t, Known(5), Sum([]sql.NullFloat64{Known(2), Unknown(), Known(3)}))
	assert.Equal(t, Known(0), Sum(nums(0, 0)))
	assert.False(t, Sum([]sql.NullFloat64{Unknown(), Unknown()}).Valid)
	assert.False(t, Sum(nil).Valid)
}

func TestInterpolate_InsideOnly(t *testing.T) {
	values := []sql.NullFloat64{Unknown(), Unknown(), Known(2), Unknown(), Unknown(), Known(8), Unknown()}

	got := Interpolate(values)

	assert.False(t, got[0].Valid)
	assert.False(t, got[1].Valid)
	assert.Equal(t, 2.0, got[2].Float64)
	assert.InDelta(t, 4.0, got[3].Float64, 1e-12)
	assert.InDelta(t, 6.0, got[4].Float64, 1e-12)
	assert.Equal(t, 8.0, got[5].Float64)
	assert.False(t, got[6].Valid, "no extrapolation past the last known value")

	// input is not modified
	assert.False(t, values[3].Valid)
}

func TestFillIndex(t *testing.T) {
	tests := []struct {
		name  string
		known []bool
		want  []int
	}{
		{"leading gap back-filled", []bool{false, false, true, false, true}, []int{2, 2, 2, 2, 4}},
		{"trailing gap forward-filled", []bool{true, false, false}, []int{0, 0, 0}},
		{"nothing known", []bool{false, false}, []int{-1, -1}},
		{"empty", []bool{}, []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FillIndex(tt.known))
		})
	}
}
