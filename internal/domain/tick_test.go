package domain

import "testing"

import "github.com/stretchr/testify/require"

func TestToTickClamps(t *testing.T) {
	require.Equal(t, 0.01, ToTick(-1))
	require.Equal(t, 0.99, ToTick(5))
	require.Equal(t, 0.45, ToTick(0.451))
	require.Equal(t, 0.46, ToTick(0.455))
}

func TestToTickIdempotent(t *testing.T) {
	for _, x := range []float64{0.01, 0.02, 0.37, 0.5, 0.98, 0.99} {
		require.Equal(t, ToTick(x), ToTick(ToTick(x)))
	}
}

func TestLogitRejectsExtremes(t *testing.T) {
	_, ok := Logit(0.01)
	require.False(t, ok)
	_, ok = Logit(0.99)
	require.False(t, ok)
	v, ok := Logit(0.5)
	require.True(t, ok)
	require.InDelta(t, 0, v, 1e-9)
}

func TestEWMA(t *testing.T) {
	require.Equal(t, 0.0, EWMA(nil, 0.3))
	require.Equal(t, 5.0, EWMA([]float64{5}, 0.3))

	got := EWMA([]float64{1, 2, 3}, 0.5)
	// y0=1, y1=0.5*2+0.5*1=1.5, y2=0.5*3+0.5*1.5=2.25
	require.InDelta(t, 2.25, got, 1e-9)
}
