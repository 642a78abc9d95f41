package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "omrport.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestCommands(t *testing.T) {
	t.Setenv("OMR_HEAP_SIZE", "")
	t.Setenv("OMR_COMMIT_INCREMENT", "")

	custom := `
[memory32]
heap_size = "1MiB"
commit_increment = "256KiB"

[[memory32.windows]]
low = 0x10000000
high = 0x1FFFFFFF
`

	tests := []struct {
		name        string
		args        []string
		config      string
		wantErr     bool
		wantContain []string
		wantJSON    bool
	}{
		{
			name:        "config prints defaults",
			args:        []string{"config"},
			wantContain: []string{"[memory32]", `heap_size = "8MiB"`, `commit_increment = "1MiB"`},
		},
		{
			name:        "config reflects file",
			args:        []string{"config"},
			config:      custom,
			wantContain: []string{`heap_size = "1MiB"`, `commit_increment = "256KiB"`},
		},
		{
			name:     "config as JSON",
			args:     []string{"config", "--json"},
			wantJSON: true,
		},
		{
			name:    "config rejects unknown keys",
			args:    []string{"config"},
			config:  "[memory32]\nheap_sise = \"1MiB\"\n",
			wantErr: true,
		},
		{
			name:        "windows default",
			args:        []string{"windows"},
			wantContain: []string{"0x10000", "0xffffffff", "4.0 GiB"},
		},
		{
			name:        "windows from file",
			args:        []string{"windows"},
			config:      custom,
			wantContain: []string{"0x10000000", "0x1fffffff", "256 MiB"},
		},
		{
			name:     "windows as JSON",
			args:     []string{"windows", "--json"},
			wantJSON: true,
		},
		{
			name:        "version",
			args:        []string{"version"},
			wantContain: []string{"omrmemctl dev", "commit: none"},
		},
		{
			name:        "stress small run",
			args:        []string{"stress", "-n", "200", "--max-size", "2KiB", "--prime", "8MiB"},
			wantContain: []string{"Allocations: 200", "Frees:       200", "Prime:       success", "Corruptions: 0", "stress"},
		},
		{
			name:     "stress as JSON",
			args:     []string{"stress", "-n", "50", "--json"},
			wantJSON: true,
		},
		{
			name:    "stress rejects inverted sizes",
			args:    []string{"stress", "--min-size", "4KiB", "--max-size", "1KiB"},
			wantErr: true,
		},
		{
			name:    "stress rejects bad size",
			args:    []string{"stress", "--max-size", "lots"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := tt.args
			if tt.config != "" {
				args = append([]string{"--config", writeConfig(t, tt.config)}, args...)
			}
			out, err := runCommand(t, args...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v\nOutput: %s", err, tt.wantErr, out)
			}
			if tt.wantErr {
				return
			}
			if tt.wantJSON {
				assertJSON(t, out)
			}
			assertContains(t, out, tt.wantContain)
		})
	}
}
