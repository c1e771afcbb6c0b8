// Package regmap keeps an in-process input-register image for every bridge
// endpoint.
//
// Committed readings are int64 values; the bridge presents each one as a
// block of 16-bit input registers at the channel's register offset, encoded
// in the configured format. Multi-register values are big-endian: the most
// significant word sits at the lowest offset.
package regmap

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/roach88/sensorreplay/internal/replay"
)

// Format is the numeric encoding of a value in the register image.
type Format string

const (
	Short  Format = "short"  // 2-byte signed int, 1 register
	Int    Format = "int"    // 4-byte signed int, 2 registers
	Float  Format = "float"  // 4-byte IEEE float, 2 registers
	Long   Format = "long"   // 8-byte signed int, 4 registers
	Double Format = "double" // 8-byte IEEE float, 4 registers
)

var (
	// ErrInvalidEndpoint is returned for endpoint id 0, which is reserved.
	ErrInvalidEndpoint = errors.New("regmap: invalid endpoint id")

	// ErrInvalidAddress is returned when reading a register that was never written.
	ErrInvalidAddress = errors.New("regmap: invalid register address")
)

// ParseFormat returns the Format named s.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case Short, Int, Float, Long, Double:
		return f, nil
	}
	return "", fmt.Errorf("regmap: unknown format %q", s)
}

// Width returns the number of 16-bit registers a value of format f occupies.
func (f Format) Width() int {
	switch f {
	case Short:
		return 1
	case Int, Float:
		return 2
	case Long, Double:
		return 4
	}
	return 0
}

// Encode converts value to its register words in format f.
// Integer formats truncate to their width.
func Encode(value int64, f Format) ([]uint16, error) {
	var buf []byte
	switch f {
	case Short:
		buf = binary.BigEndian.AppendUint16(nil, uint16(int16(value)))
	case Int:
		buf = binary.BigEndian.AppendUint32(nil, uint32(int32(value)))
	case Float:
		buf = binary.BigEndian.AppendUint32(nil, math.Float32bits(float32(value)))
	case Long:
		buf = binary.BigEndian.AppendUint64(nil, uint64(value))
	case Double:
		buf = binary.BigEndian.AppendUint64(nil, math.Float64bits(float64(value)))
	default:
		return nil, fmt.Errorf("regmap: unknown format %q", f)
	}

	words := make([]uint16, len(buf)/2)
	for i := range words {
		words[i] = binary.BigEndian.Uint16(buf[2*i:])
	}
	return words, nil
}

// Decode converts register words back to a number.
func Decode(words []uint16, f Format) (float64, error) {
	if w := f.Width(); w == 0 || len(words) != w {
		return 0, fmt.Errorf("regmap: %d registers do not hold a %q value", len(words), f)
	}
	buf := make([]byte, 0, 2*len(words))
	for _, w := range words {
		buf = binary.BigEndian.AppendUint16(buf, w)
	}

	switch f {
	case Short:
		return float64(int16(binary.BigEndian.Uint16(buf))), nil
	case Int:
		return float64(int32(binary.BigEndian.Uint32(buf))), nil
	case Float:
		return float64(math.Float32frombits(binary.BigEndian.Uint32(buf))), nil
	case Long:
		return float64(int64(binary.BigEndian.Uint64(buf))), nil
	default:
		return math.Float64frombits(binary.BigEndian.Uint64(buf)), nil
	}
}

// Image is the input-register image of one endpoint.
type Image struct {
	endpoint int
	regs     map[int]uint16
}

// Bank holds the register images of every endpoint, created on first write.
//
// Thread-safety: Bank is safe for concurrent use.
type Bank struct {
	mu     sync.RWMutex
	images map[int]*Image
}

// NewBank creates an empty bank.
func NewBank() *Bank {
	return &Bank{images: make(map[int]*Image)}
}

// SetInputRegister writes value at offset of endpoint's image in format f.
func (b *Bank) SetInputRegister(endpoint, offset int, value int64, f Format) error {
	if endpoint == 0 {
		return ErrInvalidEndpoint
	}
	if offset < 0 {
		return fmt.Errorf("%w: offset %d", ErrInvalidAddress, offset)
	}
	words, err := Encode(value, f)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	img, ok := b.images[endpoint]
	if !ok {
		img = &Image{endpoint: endpoint, regs: make(map[int]uint16)}
		b.images[endpoint] = img
	}
	for i, w := range words {
		img.regs[offset+i] = w
	}
	return nil
}

// InputRegisters reads n registers of endpoint starting at offset.
// Every register in the range must have been written.
func (b *Bank) InputRegisters(endpoint, offset, n int) ([]uint16, error) {
	if endpoint == 0 {
		return nil, ErrInvalidEndpoint
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	img, ok := b.images[endpoint]
	if !ok {
		return nil, fmt.Errorf("%w: endpoint %d has no registers", ErrInvalidAddress, endpoint)
	}
	out := make([]uint16, n)
	for i := range out {
		w, ok := img.regs[offset+i]
		if !ok {
			return nil, fmt.Errorf("%w: endpoint %d offset %d", ErrInvalidAddress, endpoint, offset+i)
		}
		out[i] = w
	}
	return out, nil
}

// Value reads the value at offset of endpoint in format f.
func (b *Bank) Value(endpoint, offset int, f Format) (float64, error) {
	words, err := b.InputRegisters(endpoint, offset, f.Width())
	if err != nil {
		return 0, err
	}
	return Decode(words, f)
}

// Endpoints returns the ids of every endpoint with an image, ascending.
func (b *Bank) Endpoints() []int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ids := make([]int, 0, len(b.images))
	for id := range b.images {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Observer returns a register-store observer that writes every commit into
// the bank in format f.
func (b *Bank) Observer(f Format) replay.Observer {
	return replay.ObserverFunc(func(c replay.Commit) error {
		return b.SetInputRegister(c.EndpointID, c.RegisterOffset, c.Value, f)
	})
}
