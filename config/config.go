// Package config loads allocator configuration from TOML.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/eclipse-openj9/openj9-omr-sub008/internal/logger"
	"github.com/eclipse-openj9/openj9-omr-sub008/port/category"
	"github.com/eclipse-openj9/openj9-omr-sub008/port/sub4g"
	"github.com/eclipse-openj9/openj9-omr-sub008/port/vmem"
)

// Environment variables that override file settings.
const (
	EnvHeapSize        = "OMR_HEAP_SIZE"
	EnvCommitIncrement = "OMR_COMMIT_INCREMENT"
)

// ErrInvalid is matched by every validation error.
var ErrInvalid = errors.New("config: invalid configuration")

// Config is the whole configuration file.
type Config struct {
	Memory32   Memory32   `toml:"memory32"`
	Categories []Category `toml:"categories"`
	Log        Log        `toml:"log"`
}

// Memory32 configures the sub-4GB allocator.
type Memory32 struct {
	HeapSize        Size     `toml:"heap_size"`
	CommitIncrement Size     `toml:"commit_increment"`
	InitialCapacity Size     `toml:"initial_capacity"`
	SearchStep      Size     `toml:"search_step"`
	Unconstrained   bool     `toml:"unconstrained"`
	Windows         []Window `toml:"windows"`
}

// Window is an inclusive address range below 4GB.
type Window struct {
	Low  uint64 `toml:"low"`
	High uint64 `toml:"high"`
}

// Category registers an accounting category.
type Category struct {
	Code   uint32 `toml:"code"`
	Name   string `toml:"name"`
	Parent uint32 `toml:"parent"`
}

// Log configures the process logger.
type Log struct {
	Enabled bool   `toml:"enabled"`
	Level   string `toml:"level"`
	Dir     string `toml:"dir"`
}

// Default returns the built-in configuration.
func Default() Config {
	cfg := Config{
		Memory32: Memory32{
			HeapSize:        sub4g.DefaultHeapSize,
			CommitIncrement: sub4g.DefaultCommitIncrement,
			SearchStep:      sub4g.DefaultSearchStep,
		},
		Log: Log{Level: "info"},
	}
	for _, w := range sub4g.DefaultWindows() {
		cfg.Memory32.Windows = append(cfg.Memory32.Windows, Window{Low: uint64(w.Low), High: uint64(w.High)})
	}
	return cfg
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path loads only defaults and environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("cannot read %s: %w", path, err)
		}
		if err := Decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse error in %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Decode parses TOML into cfg. Keys absent from data keep their value.
func Decode(data []byte, cfg *Config) error {
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("%w: unknown key %q", ErrInvalid, undecoded[0].String())
	}
	return nil
}

// ApplyEnv overrides sizes from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	for _, o := range []struct {
		env string
		dst *Size
	}{
		{EnvHeapSize, &c.Memory32.HeapSize},
		{EnvCommitIncrement, &c.Memory32.CommitIncrement},
	} {
		v, ok := lookup(o.env)
		if !ok || v == "" {
			continue
		}
		if err := o.dst.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("%s: %w", o.env, err)
		}
	}
	return nil
}

// Validate rejects settings the allocator cannot use.
func (c Config) Validate() error {
	if err := c.Memory32.Options().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err := c.Registry(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.Log.Level != "" {
		if _, err := logger.ParseLevel(c.Log.Level); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalid, err)
		}
	}
	return nil
}

// Options converts the section to allocator options.
func (m Memory32) Options() sub4g.Options {
	opts := sub4g.Options{
		HeapSize:        uint64(m.HeapSize),
		CommitIncrement: uint64(m.CommitIncrement),
		SearchStep:      uint64(m.SearchStep),
		Unconstrained:   m.Unconstrained,
	}
	for _, w := range m.Windows {
		opts.Windows = append(opts.Windows, sub4g.Window{Low: vmem.Addr(w.Low), High: vmem.Addr(w.High)})
	}
	return opts
}

// Registry builds a category registry holding the built-ins and the
// configured categories.
func (c Config) Registry() (*category.Registry, error) {
	defs := make([]category.Definition, 0, len(c.Categories))
	for _, d := range c.Categories {
		defs = append(defs, category.Definition{
			Code:   category.Code(d.Code),
			Name:   d.Name,
			Parent: category.Code(d.Parent),
		})
	}
	return category.NewRegistry(defs...)
}

// Encode writes cfg as TOML.
func Encode(w io.Writer, cfg Config) error {
	return toml.NewEncoder(w).Encode(cfg)
}

// LoggerOptions converts the log section for logger.Init. A non-nil w sends
// output there instead of the log directory.
func (l Log) LoggerOptions(w io.Writer) (logger.Options, error) {
	level, err := logger.ParseLevel(l.Level)
	if err != nil {
		return logger.Options{}, err
	}
	return logger.Options{Enabled: l.Enabled, Dir: l.Dir, Writer: w, Level: level}, nil
}
