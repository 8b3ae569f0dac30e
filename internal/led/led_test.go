package led

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/spi/spitest"
)

var _ Driver = (*Sim)(nil)
var _ Driver = (*NRZ)(nil)

func TestSimWrite(t *testing.T) {
	s := NewSim(2)
	require.NoError(t, s.Write([]byte{1, 2, 3, 4, 5, 6}))
	require.NoError(t, s.Write([]byte{6, 5, 4, 3, 2, 1}))
	assert.Equal(t, uint64(2), s.Frames())
	assert.Equal(t, []byte{6, 5, 4, 3, 2, 1}, s.Last())

	assert.Error(t, s.Write([]byte{1, 2, 3}))

	require.NoError(t, s.Close())
	assert.Equal(t, make([]byte, 6), s.Last())
	assert.Error(t, s.Write(make([]byte, 6)))
}

func TestNRZ_Empty(t *testing.T) {
	_, err := NewNRZ(spitest.NewRecordRaw(&bytes.Buffer{}), 0)
	assert.Error(t, err)
}

func TestNRZWrite(t *testing.T) {
	buf := bytes.Buffer{}
	d, err := NewNRZ(spitest.NewRecordRaw(&buf), 4)
	require.NoError(t, err)
	if got, expected := d.String(), "nrzled{recordraw}"; got != expected {
		t.Fatalf("\nGot:  %s\nWant: %s\n", got, expected)
	}

	assert.Error(t, d.Write([]byte{1, 2, 3}))

	frame := make([]byte, 4*3)
	for i := range frame {
		frame[i] = 0xFF
	}
	require.NoError(t, d.Write(frame))
	assert.NotZero(t, buf.Len(), "encoded stream should reach the port")

	require.NoError(t, d.Close())
	assert.Equal(t, "nrz{closed}", d.String())
	assert.Error(t, d.Write(frame))
	assert.NoError(t, d.Close())
}
