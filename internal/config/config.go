// Package config holds the session configuration (syntax dialect and bitness)
// and the tuning settings of the toolchain and the synchronization engine.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/invopop/jsonschema"
)

// Dialect is the assembly syntax convention.
type Dialect string

const (
	Intel Dialect = "intel"
	ATT   Dialect = "att"
)

// Bitness is the target word size.
type Bitness int

const (
	Bits64 Bitness = 64
	Bits32 Bitness = 32
)

// Session is the configuration a transformation runs under. It is a value
// type: changing it means building a new Session.
type Session struct {
	Dialect Dialect `json:"dialect" jsonschema:"title=Dialect,description=Assembly syntax,enum=intel,enum=att,default=intel"`
	Bitness Bitness `json:"bitness" jsonschema:"title=Bitness,description=Target word size,enum=64,enum=32,default=64"`
}

// DefaultSession is Intel syntax, 64-bit.
func DefaultSession() Session {
	return Session{Dialect: Intel, Bitness: Bits64}
}

// ToggleDialect returns a copy with the other dialect selected.
func (s Session) ToggleDialect() Session {
	if s.Dialect == ATT {
		s.Dialect = Intel
	} else {
		s.Dialect = ATT
	}
	return s
}

// ToggleBitness returns a copy with the other word size selected.
func (s Session) ToggleBitness() Session {
	if s.Bitness == Bits32 {
		s.Bitness = Bits64
	} else {
		s.Bitness = Bits32
	}
	return s
}

func (s Session) String() string {
	return fmt.Sprintf("%s/%d", s.Dialect, s.Bitness)
}

// Validate reports an unsupported dialect or bitness.
func (s Session) Validate() error {
	switch s.Dialect {
	case Intel, ATT:
	default:
		return fmt.Errorf("unsupported dialect %q", s.Dialect)
	}
	switch s.Bitness {
	case Bits64, Bits32:
	default:
		return fmt.Errorf("unsupported bitness %d", s.Bitness)
	}
	return nil
}

// Disassembler backends.
const (
	DisassemblerObjdump = "objdump"
	DisassemblerBuiltin = "builtin"
)

// Config is the full tool configuration. It may be loaded from a JSON file;
// command line flags override what the file sets.
type Config struct {
	Debug        bool     `json:"debug" jsonschema:"title=Debug,description=Enable debug logging"`
	Session      Session  `json:"session" jsonschema:"title=Session,description=Syntax dialect and bitness"`
	Disassembler string   `json:"disassembler,omitempty" jsonschema:"title=Disassembler,description=Disassembler backend,enum=objdump,enum=builtin,default=objdump"`
	Assembler    string   `json:"assembler,omitempty" jsonschema:"title=Assembler,description=Path or name of the GNU assembler,default=as"`
	Linker       string   `json:"linker,omitempty" jsonschema:"title=Linker,description=Path or name of the GNU linker,default=ld"`
	Objdump      string   `json:"objdump,omitempty" jsonschema:"title=Objdump,description=Path or name of objdump,default=objdump"`
	Debounce     Duration `json:"debounce,omitempty" jsonschema:"title=Debounce,description=Quiet period after an edit before transforming"`
	Timeout      Duration `json:"timeout,omitempty" jsonschema:"title=Timeout,description=Hard limit for a single toolchain invocation"`
}

const (
	DefaultDebounce = 150 * time.Millisecond
	DefaultTimeout  = 5 * time.Second
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Session:      DefaultSession(),
		Disassembler: DisassemblerObjdump,
		Assembler:    "as",
		Linker:       "ld",
		Objdump:      "objdump",
		Debounce:     Duration(DefaultDebounce),
		Timeout:      Duration(DefaultTimeout),
	}
}

// Load reads a JSON config file and overlays it on the defaults. An empty
// path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// fillDefaults restores defaults for keys that a file set to their zero value.
func (c *Config) fillDefaults() {
	def := Default()
	if c.Session.Dialect == "" {
		c.Session.Dialect = def.Session.Dialect
	}
	if c.Session.Bitness == 0 {
		c.Session.Bitness = def.Session.Bitness
	}
	if c.Disassembler == "" {
		c.Disassembler = def.Disassembler
	}
	if c.Assembler == "" {
		c.Assembler = def.Assembler
	}
	if c.Linker == "" {
		c.Linker = def.Linker
	}
	if c.Objdump == "" {
		c.Objdump = def.Objdump
	}
	if c.Debounce <= 0 {
		c.Debounce = def.Debounce
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
}

// Validate checks the session and the backend selection.
func (c Config) Validate() error {
	if err := c.Session.Validate(); err != nil {
		return err
	}
	switch c.Disassembler {
	case DisassemblerObjdump, DisassemblerBuiltin:
	default:
		return fmt.Errorf("unknown disassembler %q", c.Disassembler)
	}
	return nil
}

// Schema returns the JSON schema of the config file.
func Schema() *jsonschema.Schema {
	reflector := new(jsonschema.Reflector)
	return reflector.Reflect(&Config{})
}
