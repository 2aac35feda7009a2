package elfx

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type testSection struct {
	name  string
	typ   elf.SectionType
	flags elf.SectionFlag
	addr  uint64
	data  []byte
}

type testSym struct {
	name    string
	value   uint64
	section int // index into the sections slice
	typ     elf.SymType
}

const execFlags = elf.SHF_ALLOC | elf.SHF_EXECINSTR

// writeELF writes a minimal little-endian ELF64 executable. With reverseData
// the section contents are laid out in the opposite order of their headers.
func writeELF(t *testing.T, sections []testSection, syms []testSym, reverseData bool) string {
	t.Helper()

	var body bytes.Buffer
	body.Write(make([]byte, 64)) // header, patched below

	offsets := make([]uint64, len(sections))
	order := make([]int, len(sections))
	for i := range sections {
		order[i] = i
		if reverseData {
			order[i] = len(sections) - 1 - i
		}
	}
	for _, i := range order {
		offsets[i] = uint64(body.Len())
		body.Write(sections[i].data)
	}

	// string tables
	shstr := []byte{0}
	addName := func(tab *[]byte, name string) uint32 {
		off := uint32(len(*tab))
		*tab = append(*tab, name...)
		*tab = append(*tab, 0)
		return off
	}
	names := make([]uint32, len(sections))
	for i, s := range sections {
		names[i] = addName(&shstr, s.name)
	}
	shstrName := addName(&shstr, ".shstrtab")
	symtabName := addName(&shstr, ".symtab")
	strtabName := addName(&shstr, ".strtab")

	shstrOff := uint64(body.Len())
	body.Write(shstr)

	shstrndx := uint16(len(sections) + 1)
	var symtabOff, strtabOff uint64
	var symtabData bytes.Buffer
	strtab := []byte{0}
	if len(syms) > 0 {
		binary.Write(&symtabData, binary.LittleEndian, elf.Sym64{})
		for _, sym := range syms {
			binary.Write(&symtabData, binary.LittleEndian, elf.Sym64{
				Name:  addName(&strtab, sym.name),
				Info:  elf.ST_INFO(elf.STB_GLOBAL, sym.typ),
				Shndx: uint16(sym.section + 1),
				Value: sym.value,
			})
		}
		for body.Len()%8 != 0 {
			body.WriteByte(0)
		}
		symtabOff = uint64(body.Len())
		body.Write(symtabData.Bytes())
		strtabOff = uint64(body.Len())
		body.Write(strtab)
	}

	for body.Len()%8 != 0 {
		body.WriteByte(0)
	}
	shoff := uint64(body.Len())

	headers := []elf.Section64{{}}
	for i, s := range sections {
		headers = append(headers, elf.Section64{
			Name:      names[i],
			Type:      uint32(s.typ),
			Flags:     uint64(s.flags),
			Addr:      s.addr,
			Off:       offsets[i],
			Size:      uint64(len(s.data)),
			Addralign: 1,
		})
	}
	headers = append(headers, elf.Section64{
		Name:      shstrName,
		Type:      uint32(elf.SHT_STRTAB),
		Off:       shstrOff,
		Size:      uint64(len(shstr)),
		Addralign: 1,
	})
	if len(syms) > 0 {
		strtabIndex := uint32(len(headers) + 1)
		headers = append(headers, elf.Section64{
			Name:      symtabName,
			Type:      uint32(elf.SHT_SYMTAB),
			Off:       symtabOff,
			Size:      uint64(symtabData.Len()),
			Link:      strtabIndex,
			Info:      1,
			Addralign: 8,
			Entsize:   elf.Sym64Size,
		})
		headers = append(headers, elf.Section64{
			Name:      strtabName,
			Type:      uint32(elf.SHT_STRTAB),
			Off:       strtabOff,
			Size:      uint64(len(strtab)),
			Addralign: 1,
		})
	}
	for _, h := range headers {
		binary.Write(&body, binary.LittleEndian, h)
	}

	hdr := elf.Header64{
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(elf.EM_X86_64),
		Version:   uint32(elf.EV_CURRENT),
		Shoff:     shoff,
		Ehsize:    64,
		Phentsize: 56,
		Shentsize: 64,
		Shnum:     uint16(len(headers)),
		Shstrndx:  shstrndx,
	}
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	var hb bytes.Buffer
	binary.Write(&hb, binary.LittleEndian, hdr)

	out := body.Bytes()
	copy(out, hb.Bytes())

	path := filepath.Join(t.TempDir(), "a.out")
	if err := os.WriteFile(path, out, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExtract(t *testing.T) {
	text := []byte{0xb8, 0x01, 0x00, 0x00, 0x00}
	initCode := []byte{0x90, 0xc3}

	tests := []struct {
		name         string
		sections     []testSection
		reverseData  bool
		want         []byte
		wantSections []string
		wantErr      error
	}{
		{
			name: "single text section",
			sections: []testSection{
				{".text", elf.SHT_PROGBITS, execFlags, 0x401000, text},
			},
			want:         text,
			wantSections: []string{".text"},
		},
		{
			name: "data sections are ignored",
			sections: []testSection{
				{".text", elf.SHT_PROGBITS, execFlags, 0x401000, text},
				{".data", elf.SHT_PROGBITS, elf.SHF_ALLOC | elf.SHF_WRITE, 0x402000, []byte{1, 2, 3}},
			},
			want:         text,
			wantSections: []string{".text"},
		},
		{
			name: "multiple executable sections concatenate in file order",
			sections: []testSection{
				{".text", elf.SHT_PROGBITS, execFlags, 0x401000, text},
				{".init", elf.SHT_PROGBITS, execFlags, 0x400f00, initCode},
			},
			reverseData:  true,
			want:         append(append([]byte{}, initCode...), text...),
			wantSections: []string{".init", ".text"},
		},
		{
			name: "empty text section",
			sections: []testSection{
				{".text", elf.SHT_PROGBITS, execFlags, 0x401000, nil},
			},
			want:         []byte{},
			wantSections: []string{".text"},
		},
		{
			name: "no executable section",
			sections: []testSection{
				{".data", elf.SHT_PROGBITS, elf.SHF_ALLOC | elf.SHF_WRITE, 0x402000, []byte{1}},
			},
			wantErr: ErrNoExecutableSection,
		},
		{
			name: "nobits executable section is not code",
			sections: []testSection{
				{".bss", elf.SHT_NOBITS, execFlags, 0x402000, nil},
			},
			wantErr: ErrNoExecutableSection,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeELF(t, tt.sections, nil, tt.reverseData)
			code, err := Extract(path)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Extract() error = %v, want %v", err, tt.wantErr)
				}
				var extractErr *ExtractError
				if !errors.As(err, &extractErr) || extractErr.Path != path {
					t.Errorf("error %v is not an *ExtractError for %s", err, path)
				}
				return
			}
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			if !bytes.Equal(code.Bytes, tt.want) {
				t.Errorf("Bytes = % x, want % x", code.Bytes, tt.want)
			}
			var got []string
			for _, s := range code.Sections {
				got = append(got, s.Name)
			}
			if len(got) != len(tt.wantSections) {
				t.Fatalf("sections = %v, want %v", got, tt.wantSections)
			}
			for i := range got {
				if got[i] != tt.wantSections[i] {
					t.Errorf("sections = %v, want %v", got, tt.wantSections)
				}
			}
		})
	}
}

func TestExtractLabels(t *testing.T) {
	sections := []testSection{
		{".init", elf.SHT_PROGBITS, execFlags, 0x400f00, []byte{0x90, 0x90}},
		{".text", elf.SHT_PROGBITS, execFlags, 0x401000, []byte{0x31, 0xc0, 0xff, 0xc0, 0xeb, 0xfc, 0xc3}},
	}
	syms := []testSym{
		{"_start", 0x401000, 1, elf.STT_NOTYPE},
		{"loop", 0x401002, 1, elf.STT_NOTYPE},
		{"_Z3foov", 0x400f01, 0, elf.STT_FUNC},
		{"done", 0x401007, 1, elf.STT_NOTYPE}, // one past the last byte
		{"__bss_start", 0x401007, 1, elf.STT_NOTYPE},
		{"_edata", 0x401007, 1, elf.STT_NOTYPE},
		{"msg", 0x401001, 1, elf.STT_OBJECT},
	}
	path := writeELF(t, sections, syms, false)

	code, err := Extract(path)
	if err != nil {
		t.Fatal(err)
	}

	want := []Label{
		{Name: "foo()", Offset: 1},
		{Name: "_start", Offset: 2},
		{Name: "loop", Offset: 4},
		{Name: "done", Offset: 9},
	}
	if len(code.Labels) != len(want) {
		t.Fatalf("Labels = %+v, want %+v", code.Labels, want)
	}
	for i := range want {
		if code.Labels[i] != want[i] {
			t.Errorf("Labels[%d] = %+v, want %+v", i, code.Labels[i], want[i])
		}
	}
}

func TestExtractNotELF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk")
	if err := os.WriteFile(path, []byte("not an elf"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Extract(path)
	var extractErr *ExtractError
	if !errors.As(err, &extractErr) {
		t.Fatalf("Extract() error = %v, want *ExtractError", err)
	}
	if errors.Is(err, ErrNoExecutableSection) {
		t.Error("a parse failure must not be reported as a missing section")
	}
}

func TestExtractMissingFile(t *testing.T) {
	if _, err := Extract(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
