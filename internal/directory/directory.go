// Package directory holds the static channel address directory.
//
// Each channel id maps to the endpoint (slave) id and register offset that
// the register bridge writes it to. The directory is loaded once, before the
// replay starts, from two JSON tables and is never mutated afterwards.
package directory

import (
	"fmt"
	"os"
	"sort"

	"github.com/sugawarayuuta/sonnet"
	"golang.org/x/text/unicode/norm"
)

// Entry is the address of one channel on the register bridge.
type Entry struct {
	EndpointID     int `json:"endpoint_id"`
	RegisterOffset int `json:"register_offset"`
}

// Directory maps channel ids to their bridge address.
// Safe for concurrent reads; there are no writers after construction.
type Directory struct {
	entries  map[string]Entry
	channels []string
}

// LoadError reports a directory table that could not be read or is inconsistent.
// It is always fatal: the replay must not start with a partial directory.
type LoadError struct {
	Path    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("directory %s: %s: %v", e.Path, e.Message, e.Err)
	}
	return fmt.Sprintf("directory %s: %s", e.Path, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Normalize returns the canonical (NFC) form of a channel id.
// Tables and datastore rows are normalised the same way so visually identical
// ids written with different Unicode compositions resolve to one channel.
func Normalize(channel string) string {
	return norm.NFC.String(channel)
}

// Load reads the endpoint table and the register table and joins them.
//
// Both files are JSON objects of the form {"channel": integer}. Every channel
// must appear in both tables, endpoint ids must be >= 1 and register offsets
// must be >= 0.
func Load(endpointsPath, registersPath string) (*Directory, error) {
	endpoints, err := readTable(endpointsPath)
	if err != nil {
		return nil, err
	}
	registers, err := readTable(registersPath)
	if err != nil {
		return nil, err
	}

	entries := make(map[string]Entry, len(endpoints))
	for channel, endpointID := range endpoints {
		offset, ok := registers[channel]
		if !ok {
			return nil, &LoadError{Path: registersPath, Message: fmt.Sprintf("channel %q has no register offset", channel)}
		}
		if endpointID < 1 {
			return nil, &LoadError{Path: endpointsPath, Message: fmt.Sprintf("channel %q: endpoint id must be >= 1, got %d", channel, endpointID)}
		}
		if offset < 0 {
			return nil, &LoadError{Path: registersPath, Message: fmt.Sprintf("channel %q: register offset must be >= 0, got %d", channel, offset)}
		}
		entries[channel] = Entry{EndpointID: endpointID, RegisterOffset: offset}
	}
	for channel := range registers {
		if _, ok := endpoints[channel]; !ok {
			return nil, &LoadError{Path: endpointsPath, Message: fmt.Sprintf("channel %q has no endpoint id", channel)}
		}
	}

	return New(entries), nil
}

// New builds a directory from an in-memory table. Channel ids are normalised.
func New(entries map[string]Entry) *Directory {
	d := &Directory{
		entries:  make(map[string]Entry, len(entries)),
		channels: make([]string, 0, len(entries)),
	}
	for channel, e := range entries {
		channel = Normalize(channel)
		if _, dup := d.entries[channel]; !dup {
			d.channels = append(d.channels, channel)
		}
		d.entries[channel] = e
	}
	sort.Strings(d.channels)
	return d
}

// Lookup returns the address of a channel.
func (d *Directory) Lookup(channel string) (Entry, bool) {
	e, ok := d.entries[channel]
	return e, ok
}

// Channels returns all channel ids in sorted order.
// The returned slice must not be modified.
func (d *Directory) Channels() []string {
	return d.channels
}

// Len returns the number of channels.
func (d *Directory) Len() int {
	return len(d.entries)
}

func readTable(path string) (map[string]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Message: "read failed", Err: err}
	}

	var raw map[string]int
	if err := sonnet.Unmarshal(data, &raw); err != nil {
		return nil, &LoadError{Path: path, Message: "invalid JSON table", Err: err}
	}
	if len(raw) == 0 {
		return nil, &LoadError{Path: path, Message: "table is empty"}
	}

	table := make(map[string]int, len(raw))
	for channel, v := range raw {
		channel = Normalize(channel)
		if _, dup := table[channel]; dup {
			return nil, &LoadError{Path: path, Message: fmt.Sprintf("channel %q appears twice after normalisation", channel)}
		}
		table[channel] = v
	}
	return table, nil
}
