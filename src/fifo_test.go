package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func Test_octetFIFO_emptyInitially(t *testing.T) {
	f := newOctetFIFO(8)
	assert.True(t, f.empty())
	_, ok := f.pop()
	assert.False(t, ok)
}

func Test_octetFIFO_pushPopOrder(t *testing.T) {
	f := newOctetFIFO(8)
	for _, b := range []byte{1, 2, 3} {
		assert.True(t, f.push(b))
	}
	for _, want := range []byte{1, 2, 3} {
		got, ok := f.pop()
		assert.True(t, ok)
		assert.Equal(t, want, got)
	}
	assert.True(t, f.empty())
}

func Test_octetFIFO_fullRejectsPush(t *testing.T) {
	f := newOctetFIFO(4) // holds 3 before reporting full
	assert.True(t, f.push(1))
	assert.True(t, f.push(2))
	assert.True(t, f.push(3))
	assert.False(t, f.push(4), "ring should report full one slot before wraparound")
	assert.Equal(t, 0, f.free())
}

func Test_octetFIFO_peekDoesNotConsume(t *testing.T) {
	f := newOctetFIFO(8)
	f.push(0x42)
	b, ok := f.peek()
	assert.True(t, ok)
	assert.Equal(t, byte(0x42), b)
	assert.Equal(t, 1, f.size())
}

func Test_octetFIFO_clearEmpties(t *testing.T) {
	f := newOctetFIFO(8)
	f.push(1)
	f.push(2)
	f.clear()
	assert.True(t, f.empty())
	assert.Equal(t, 7, f.free())
}

// Property: for any sequence of pushes that stay within capacity, popping
// the same number of times returns them in FIFO order with no loss.
func Test_octetFIFO_propertyFIFOOrder(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(2, 64).Draw(t, "capacity")
		f := newOctetFIFO(capacity)

		n := rapid.IntRange(0, capacity-1).Draw(t, "n")
		in := make([]byte, n)
		for i := range in {
			in[i] = rapid.Byte().Draw(t, "b")
			assert.True(t, f.push(in[i]))
		}

		out := make([]byte, 0, n)
		for {
			b, ok := f.pop()
			if !ok {
				break
			}
			out = append(out, b)
		}
		assert.Equal(t, in, out)
	})
}
