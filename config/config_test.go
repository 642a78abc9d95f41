package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eclipse-openj9/openj9-omr-sub008/port/category"
	"github.com/eclipse-openj9/openj9-omr-sub008/port/sub4g"
)

func Test_Config_DefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	opts := cfg.Memory32.Options()
	require.Equal(t, uint64(sub4g.DefaultHeapSize), opts.HeapSize)
	require.Equal(t, sub4g.DefaultWindows(), opts.Windows)
}

func Test_Config_DecodeOverDefaults(t *testing.T) {
	cfg := Default()
	err := Decode([]byte(`
[memory32]
heap_size = "4MiB"
initial_capacity = "16 MiB"
search_step = 65536

[[memory32.windows]]
low = 0x10000000
high = 0x7FFFFFFF

[[categories]]
code = 1
name = "VM"
parent = 0x80000001

[log]
enabled = true
level = "debug"
`), &cfg)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, Size(4<<20), cfg.Memory32.HeapSize)
	require.Equal(t, Size(sub4g.DefaultCommitIncrement), cfg.Memory32.CommitIncrement)
	require.Equal(t, Size(16<<20), cfg.Memory32.InitialCapacity)
	require.Equal(t, Size(65536), cfg.Memory32.SearchStep)
	require.Equal(t, []Window{{Low: 0x1000_0000, High: 0x7FFF_FFFF}}, cfg.Memory32.Windows)

	cats, err := cfg.Registry()
	require.NoError(t, err)
	require.True(t, cats.Known(1))
	require.Equal(t, []category.Code{category.UnusedSub4G, 1}, cats.Lookup(category.PortLibrary).Children())

	lo, err := cfg.Log.LoggerOptions(nil)
	require.NoError(t, err)
	require.True(t, lo.Enabled)
	require.Equal(t, slog.LevelDebug, lo.Level)
}

func Test_Config_RejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"window past 4GB": "[[memory32.windows]]\nlow = 0x10000\nhigh = 0x100000000\n",
		"inverted window": "[[memory32.windows]]\nlow = 0x20000000\nhigh = 0x10000000\n",
		"tiny heap":       "[memory32]\nheap_size = \"1KiB\"\ncommit_increment = \"512\"\n",
		"orphan category": "[[categories]]\ncode = 5\nname = \"x\"\nparent = 9\n",
		"bad level":       "[log]\nlevel = \"loud\"\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			require.NoError(t, Decode([]byte(doc), &cfg))
			require.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func Test_Config_DecodeErrors(t *testing.T) {
	cfg := Default()
	require.ErrorIs(t, Decode([]byte("[memory32]\nheap_sise = \"1MiB\"\n"), &cfg), ErrInvalid)
	require.Error(t, Decode([]byte("[memory32]\nheap_size = \"lots\"\n"), &cfg))
}

func Test_Config_EnvOverrides(t *testing.T) {
	cfg := Default()
	env := map[string]string{EnvHeapSize: "16MiB", EnvCommitIncrement: "2 MiB"}
	require.NoError(t, cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}))
	require.Equal(t, Size(16<<20), cfg.Memory32.HeapSize)
	require.Equal(t, Size(2<<20), cfg.Memory32.CommitIncrement)

	env[EnvHeapSize] = "huge"
	require.Error(t, cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}))
}

func Test_Config_LoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "omrport.toml")
	require.NoError(t, os.WriteFile(path, []byte("[memory32]\nheap_size = \"2MiB\"\ncommit_increment = \"256KiB\"\n"), 0o644))

	t.Setenv(EnvHeapSize, "")
	t.Setenv(EnvCommitIncrement, "")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, Size(2<<20), cfg.Memory32.HeapSize)

	_, err = Load(filepath.Join(dir, "missing.toml"))
	require.Error(t, err)
}

func Test_Config_EncodeRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Memory32.InitialCapacity = 3 * 1024
	cfg.Categories = []Category{{Code: 2, Name: "JIT", Parent: uint32(category.PortLibrary)}}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, cfg))
	require.Contains(t, buf.String(), `heap_size = "8MiB"`)
	require.Contains(t, buf.String(), `initial_capacity = "3KiB"`)

	got := Config{}
	require.NoError(t, Decode(buf.Bytes(), &got))
	require.Equal(t, cfg, got)
}

func Test_Size_Text(t *testing.T) {
	var s Size
	require.NoError(t, s.UnmarshalText([]byte("1.5 MiB")))
	require.Equal(t, Size(1536*1024), s)

	b, err := s.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "1536KiB", string(b))

	b, err = Size(1000).MarshalText()
	require.NoError(t, err)
	require.Equal(t, "1000", string(b))

	require.Equal(t, "8.0 MiB", Size(8<<20).String())
}
