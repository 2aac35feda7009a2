// Package elfx opens linked ELF artifacts and extracts the raw bytes of their
// executable code.
package elfx

import (
	"bytes"
	"debug/elf"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ianlancetaylor/demangle"
)

// ErrNoExecutableSection is returned when an artifact has no allocated,
// executable section and no executable PT_LOAD segment.
var ErrNoExecutableSection = errors.New("no executable section")

// ExtractError ties an extraction failure to the artifact it came from.
type ExtractError struct {
	Path string
	Err  error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extract code from %s: %v", e.Path, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }

type Image struct {
	Path  string
	File  *elf.File
	All   []byte
	Loads []Seg
	Exec  []Section // executable sections in file order
}

type Seg struct {
	Vaddr, Off, Filesz uint64
	Flags              elf.ProgFlag
}

type Section struct {
	Name          string
	VA, Off, Size uint64
	Index         int // section header index, -1 for a PT_LOAD fallback
}

// Label is a symbol that points into the extracted code.
type Label struct {
	Name   string
	Offset uint64 // offset into Code.Bytes
}

// Code is the executable content of an artifact.
type Code struct {
	Bytes    []byte
	Sections []Section
	Labels   []Label
}

func Open(path string) (*Image, error) {
	all, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	f, err := elf.NewFile(bytes.NewReader(all))
	if err != nil {
		return nil, fmt.Errorf("open elf: %w", err)
	}

	im := &Image{Path: path, File: f, All: all}
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		im.Loads = append(im.Loads, Seg{
			Vaddr:  p.Vaddr,
			Off:    p.Off,
			Filesz: p.Filesz,
			Flags:  p.Flags,
		})
	}

	for i, s := range f.Sections {
		if s.Type != elf.SHT_PROGBITS {
			continue
		}
		if s.Flags&elf.SHF_ALLOC == 0 || s.Flags&elf.SHF_EXECINSTR == 0 {
			continue
		}
		im.Exec = append(im.Exec, Section{s.Name, s.Addr, s.Offset, s.Size, i})
	}
	sort.SliceStable(im.Exec, func(i, j int) bool { return im.Exec[i].Off < im.Exec[j].Off })

	// Fallback if stripped of section headers.
	if len(im.Exec) == 0 && len(f.Sections) <= 1 {
		for _, l := range im.Loads {
			if l.Flags&elf.PF_X != 0 && l.Filesz > 0 {
				im.Exec = append(im.Exec, Section{"LOAD(exec)", l.Vaddr, l.Off, l.Filesz, -1})
				break
			}
		}
	}
	return im, nil
}

// Close releases the parsed file.
func (im *Image) Close() error {
	im.All = nil
	if im.File != nil {
		err := im.File.Close()
		im.File = nil
		return err
	}
	return nil
}

// SectionBytes returns the file contents of s, or false if it lies outside
// the file.
func (im *Image) SectionBytes(s Section) ([]byte, bool) {
	end := s.Off + s.Size
	if end < s.Off || end > uint64(len(im.All)) {
		return nil, false
	}
	return im.All[s.Off:end], true
}

// Code concatenates every executable section in file order.
func (im *Image) Code() (*Code, error) {
	if len(im.Exec) == 0 {
		return nil, ErrNoExecutableSection
	}

	code := &Code{Bytes: []byte{}, Sections: im.Exec}
	bases := make([]uint64, len(im.Exec))
	for i, s := range im.Exec {
		data, ok := im.SectionBytes(s)
		if !ok {
			return nil, fmt.Errorf("section %s out of bounds (off %#x size %#x)", s.Name, s.Off, s.Size)
		}
		bases[i] = uint64(len(code.Bytes))
		code.Bytes = append(code.Bytes, data...)
	}

	code.Labels = im.labels(bases)
	return code, nil
}

var linkerSymbols = map[string]bool{
	"_edata": true,
	"_end":   true,
	"_etext": true,
}

// labels maps code symbols from .symtab to offsets in the concatenated code.
func (im *Image) labels(bases []uint64) []Label {
	if im.File == nil {
		return nil
	}
	syms, err := im.File.Symbols()
	if err != nil {
		return nil // .symtab not available or stripped
	}

	var out []Label
	for _, sym := range syms {
		// Skip empty names and the linker's boundary symbols
		if sym.Name == "" || strings.HasPrefix(sym.Name, "__") || linkerSymbols[sym.Name] {
			continue
		}
		switch elf.ST_TYPE(sym.Info) {
		case elf.STT_NOTYPE, elf.STT_FUNC:
		default:
			continue
		}
		for i, s := range im.Exec {
			if s.Index >= 0 && int(sym.Section) != s.Index {
				continue
			}
			// a label may sit right after the last instruction
			if sym.Value < s.VA || sym.Value > s.VA+s.Size {
				continue
			}
			name := demangle.Filter(sym.Name)
			if name == "" {
				name = sym.Name
			}
			out = append(out, Label{Name: name, Offset: bases[i] + sym.Value - s.VA})
			break
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Offset != out[j].Offset {
			return out[i].Offset < out[j].Offset
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Extract opens the artifact at path and returns its executable code.
func Extract(path string) (*Code, error) {
	im, err := Open(path)
	if err != nil {
		return nil, &ExtractError{Path: path, Err: err}
	}
	defer im.Close()

	code, err := im.Code()
	if err != nil {
		return nil, &ExtractError{Path: path, Err: err}
	}
	return code, nil
}
