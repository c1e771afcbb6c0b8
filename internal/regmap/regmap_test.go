package regmap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sensorreplay/internal/directory"
	"github.com/roach88/sensorreplay/internal/replay"
)

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"short", "int", "float", "long", "double"} {
		f, err := ParseFormat(s)
		require.NoError(t, err)
		assert.Equal(t, Format(s), f)
	}

	_, err := ParseFormat("word")
	assert.Error(t, err)
}

func TestFormat_Width(t *testing.T) {
	assert.Equal(t, 1, Short.Width())
	assert.Equal(t, 2, Int.Width())
	assert.Equal(t, 2, Float.Width())
	assert.Equal(t, 4, Long.Width())
	assert.Equal(t, 4, Double.Width())
	assert.Equal(t, 0, Format("word").Width())
}

func TestEncode_BigEndianWords(t *testing.T) {
	tests := []struct {
		name   string
		value  int64
		format Format
		want   []uint16
	}{
		{"short", -19689, Short, []uint16{0xB317}},
		{"int", 0x01020304, Int, []uint16{0x0102, 0x0304}},
		{"long", 0x0102030405060708, Long, []uint16{0x0102, 0x0304, 0x0506, 0x0708}},
		{"negative long", -1, Long, []uint16{0xFFFF, 0xFFFF, 0xFFFF, 0xFFFF}},
		{"float", 1, Float, []uint16{0x3F80, 0x0000}},
		{"double", 1, Double, []uint16{0x3FF0, 0, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.value, tt.format)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncode_UnknownFormat(t *testing.T) {
	_, err := Encode(1, Format("word"))
	assert.Error(t, err)
}

func TestEncodeDecode_Values(t *testing.T) {
	for _, f := range []Format{Short, Int, Float, Long, Double} {
		for _, v := range []int64{0, 1, -1, 1968, -19689} {
			words, err := Encode(v, f)
			require.NoError(t, err)
			got, err := Decode(words, f)
			require.NoError(t, err)
			assert.Equal(t, float64(v), got, "format %s value %d", f, v)
		}
	}
}

func TestEncode_ShortTruncates(t *testing.T) {
	words, err := Encode(70000, Short)
	require.NoError(t, err)
	got, err := Decode(words, Short)
	require.NoError(t, err)
	assert.Equal(t, float64(int16(70000&0xFFFF)), got)
}

func TestDecode_WrongWidth(t *testing.T) {
	_, err := Decode([]uint16{1}, Long)
	assert.Error(t, err)
}

func TestBank_SetAndRead(t *testing.T) {
	b := NewBank()

	require.NoError(t, b.SetInputRegister(1, 10, -19689, Short))
	require.NoError(t, b.SetInputRegister(1, 13, 1968, Float))
	require.NoError(t, b.SetInputRegister(2, 0, 123456789, Long))

	v, err := b.Value(1, 10, Short)
	require.NoError(t, err)
	assert.Equal(t, float64(-19689), v)

	v, err = b.Value(1, 13, Float)
	require.NoError(t, err)
	assert.Equal(t, float64(1968), v)

	words, err := b.InputRegisters(2, 0, 4)
	require.NoError(t, err)
	assert.Len(t, words, 4)

	assert.Equal(t, []int{1, 2}, b.Endpoints())
}

func TestBank_InvalidEndpoint(t *testing.T) {
	b := NewBank()

	err := b.SetInputRegister(0, 0, 1, Long)
	assert.ErrorIs(t, err, ErrInvalidEndpoint)

	_, err = b.InputRegisters(0, 0, 1)
	assert.ErrorIs(t, err, ErrInvalidEndpoint)
}

func TestBank_InvalidAddress(t *testing.T) {
	b := NewBank()

	_, err := b.InputRegisters(5, 0, 1)
	assert.ErrorIs(t, err, ErrInvalidAddress)

	require.NoError(t, b.SetInputRegister(5, 0, 1, Short))
	_, err = b.InputRegisters(5, 0, 2)
	assert.True(t, errors.Is(err, ErrInvalidAddress))

	err = b.SetInputRegister(5, -1, 1, Short)
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestBank_Observer(t *testing.T) {
	dir := directory.New(map[string]directory.Entry{
		"temp":     {EndpointID: 1, RegisterOffset: 0},
		"pressure": {EndpointID: 1, RegisterOffset: 4},
	})
	registers := replay.NewRegisterStore(dir, nil)
	b := NewBank()
	registers.AddObserver(b.Observer(Long))

	require.NoError(t, registers.Initialize())

	// Initialize publishes zeros into the image.
	v, err := b.Value(1, 4, Long)
	require.NoError(t, err)
	assert.Equal(t, float64(0), v)

	require.NoError(t, registers.Commit("pressure", 1013))
	v, err = b.Value(1, 4, Long)
	require.NoError(t, err)
	assert.Equal(t, float64(1013), v)

	v, err = b.Value(1, 0, Long)
	require.NoError(t, err)
	assert.Equal(t, float64(0), v)
}
