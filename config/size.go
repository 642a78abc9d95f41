package config

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// Size is a byte count written in configuration as "8MiB", "64 KiB" or a
// plain integer.
type Size uint64

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Size) UnmarshalText(text []byte) error {
	n, err := humanize.ParseBytes(string(text))
	if err != nil {
		return fmt.Errorf("config: size %q: %w", text, err)
	}
	*s = Size(n)
	return nil
}

// MarshalText implements encoding.TextMarshaler. Exact multiples of a binary
// unit keep the unit so a round trip is lossless.
func (s Size) MarshalText() ([]byte, error) {
	v := uint64(s)
	for _, u := range []struct {
		size uint64
		name string
	}{
		{humanize.GiByte, "GiB"},
		{humanize.MiByte, "MiB"},
		{humanize.KiByte, "KiB"},
	} {
		if v != 0 && v%u.size == 0 {
			return []byte(fmt.Sprintf("%d%s", v/u.size, u.name)), nil
		}
	}
	return []byte(fmt.Sprintf("%d", v)), nil
}

// String renders the size for people, e.g. "8.0 MiB".
func (s Size) String() string {
	return humanize.IBytes(uint64(s))
}
