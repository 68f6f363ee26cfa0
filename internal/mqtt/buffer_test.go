package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pushN(rb *ringBuffer, from, to int) {
	for i := from; i < to; i++ {
		rb.push(bufferedMsg{topic: "t", payload: []byte{byte(i)}})
	}
}

func payloadBytes(msgs []bufferedMsg) []byte {
	out := make([]byte, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.payload[0])
	}
	return out
}

func TestRingBufferEmptyDrain(t *testing.T) {
	assert.Nil(t, newRingBuffer(4).drainAll())
}

func TestRingBufferFIFO(t *testing.T) {
	rb := newRingBuffer(10)
	pushN(rb, 0, 5)
	assert.Equal(t, 5, rb.len())
	assert.Equal(t, []byte{0, 1, 2, 3, 4}, payloadBytes(rb.drainAll()))
	assert.Nil(t, rb.drainAll())
	assert.Zero(t, rb.len())
}

func TestRingBufferOverflowKeepsNewest(t *testing.T) {
	rb := newRingBuffer(5)
	pushN(rb, 0, 8)
	assert.Equal(t, 5, rb.len())
	assert.Equal(t, 3, rb.dropped)
	assert.Equal(t, []byte{3, 4, 5, 6, 7}, payloadBytes(rb.drainAll()))
	assert.Zero(t, rb.dropped)
}

func TestRingBufferReuseAfterDrain(t *testing.T) {
	rb := newRingBuffer(5)
	pushN(rb, 0, 3)
	require.Len(t, rb.drainAll(), 3)
	pushN(rb, 10, 14)
	assert.Equal(t, []byte{10, 11, 12, 13}, payloadBytes(rb.drainAll()))
}

func TestRingBufferPreservesFields(t *testing.T) {
	rb := newRingBuffer(2)
	rb.push(bufferedMsg{topic: "sensores/equipo1/sistema", payload: []byte(`{"a":1}`), qos: 1, retained: true})
	got := rb.drainAll()
	require.Len(t, got, 1)
	assert.Equal(t, bufferedMsg{topic: "sensores/equipo1/sistema", payload: []byte(`{"a":1}`), qos: 1, retained: true}, got[0])
}

func TestRingBufferMinimumCapacity(t *testing.T) {
	rb := newRingBuffer(0)
	pushN(rb, 0, 2)
	assert.Equal(t, []byte{1}, payloadBytes(rb.drainAll()))
}
