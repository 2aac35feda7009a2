package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Session != (Session{Dialect: Intel, Bitness: Bits64}) {
		t.Errorf("default session = %v, want intel/64", cfg.Session)
	}
	if cfg.Debounce.Std() != DefaultDebounce {
		t.Errorf("debounce = %v, want %v", cfg.Debounce, DefaultDebounce)
	}
	if cfg.Timeout.Std() != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", cfg.Timeout, DefaultTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		check   func(t *testing.T, cfg Config)
		wantErr bool
	}{
		{
			name:    "overrides session and durations",
			content: `{"session":{"dialect":"att","bitness":32},"debounce":"40ms","timeout":"2s"}`,
			check: func(t *testing.T, cfg Config) {
				if cfg.Session.Dialect != ATT || cfg.Session.Bitness != Bits32 {
					t.Errorf("session = %v, want att/32", cfg.Session)
				}
				if cfg.Debounce.Std() != 40*time.Millisecond {
					t.Errorf("debounce = %v", cfg.Debounce)
				}
				if cfg.Timeout.Std() != 2*time.Second {
					t.Errorf("timeout = %v", cfg.Timeout)
				}
			},
		},
		{
			name:    "missing keys keep defaults",
			content: `{"disassembler":"builtin"}`,
			check: func(t *testing.T, cfg Config) {
				if cfg.Disassembler != DisassemblerBuiltin {
					t.Errorf("disassembler = %q", cfg.Disassembler)
				}
				if cfg.Session != DefaultSession() {
					t.Errorf("session = %v, want default", cfg.Session)
				}
				if cfg.Assembler != "as" || cfg.Linker != "ld" || cfg.Objdump != "objdump" {
					t.Errorf("tool names not defaulted: %+v", cfg)
				}
			},
		},
		{
			name:    "bad duration",
			content: `{"debounce":"soon"}`,
			wantErr: true,
		},
		{
			name:    "bad bitness",
			content: `{"session":{"bitness":16}}`,
			wantErr: true,
		},
		{
			name:    "unknown disassembler",
			content: `{"disassembler":"capstone"}`,
			wantErr: true,
		},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, "cfg"+string(rune('a'+i))+".json")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			cfg, err := Load(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg != Default() {
		t.Errorf("Load(\"\") = %+v, want defaults", cfg)
	}
}

func TestSessionToggles(t *testing.T) {
	s := DefaultSession()
	if got := s.ToggleDialect(); got.Dialect != ATT || got.Bitness != Bits64 {
		t.Errorf("ToggleDialect = %v", got)
	}
	if got := s.ToggleBitness(); got.Bitness != Bits32 || got.Dialect != Intel {
		t.Errorf("ToggleBitness = %v", got)
	}
	if s != DefaultSession() {
		t.Error("toggles must not mutate the receiver")
	}
	if s.String() != "intel/64" {
		t.Errorf("String() = %q", s.String())
	}
}

func TestSchema(t *testing.T) {
	bts, err := json.Marshal(Schema())
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"debounce", "disassembler", "session"} {
		if !strings.Contains(string(bts), want) {
			t.Errorf("schema missing %q", want)
		}
	}
}
