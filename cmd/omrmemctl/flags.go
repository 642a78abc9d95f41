package main

import "github.com/eclipse-openj9/openj9-omr-sub008/config"

// sizeFlag adapts config.Size to pflag.Value.
type sizeFlag struct {
	s *config.Size
}

func (f sizeFlag) String() string {
	if f.s == nil {
		return "0"
	}
	b, _ := f.s.MarshalText()
	return string(b)
}

func (f sizeFlag) Set(v string) error {
	return f.s.UnmarshalText([]byte(v))
}

func (f sizeFlag) Type() string {
	return "size"
}
