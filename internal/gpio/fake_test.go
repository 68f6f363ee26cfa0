package gpio

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeReaderRead(t *testing.T) {
	samples := []Sample{
		{Beam: true},
		{Turn: 1},
		{Beam: true, Pressed: true},
	}

	f := NewFakeReader(samples)

	for i, want := range samples {
		got, err := f.Read()
		require.NoError(t, err)
		assert.Equal(t, want, got, "sample %d", i)
	}

	// Exhausted: beam level holds, no movement or presses
	got, err := f.Read()
	require.NoError(t, err)
	assert.Equal(t, Sample{Beam: true}, got)
}

func TestFakeReaderNoSamples(t *testing.T) {
	f := NewFakeReader(nil)

	_, err := f.Read()
	assert.Error(t, err)
}

func TestFakeReaderError(t *testing.T) {
	f := NewFakeReader([]Sample{{Beam: true}})
	f.ReadError = errors.New("simulated error")

	_, err := f.Read()
	require.Error(t, err)
	assert.Equal(t, "simulated error", err.Error())
}

func TestFakeReaderClose(t *testing.T) {
	f := NewFakeReader([]Sample{{Beam: true}})
	assert.False(t, f.Closed, "should not be closed initially")

	require.NoError(t, f.Close())
	assert.True(t, f.Closed)
}

func TestFakeReaderReset(t *testing.T) {
	f := NewFakeReader([]Sample{{Beam: true}, {Turn: -1}})

	f.Read()
	f.Reset()

	got, _ := f.Read()
	assert.Equal(t, Sample{Beam: true}, got, "after reset the first sample repeats")
}

func TestDefaultPins(t *testing.T) {
	p := DefaultPins()
	assert.Equal(t, "gpiochip0", p.Chip)
	assert.True(t, p.IRActiveLow)
	assert.ElementsMatch(t, []int{17, 27, 22, 23}, []int{p.IR, p.CLK, p.DT, p.SW})
}
