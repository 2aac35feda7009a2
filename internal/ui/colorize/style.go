package colorize

import (
	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/x/exp/charmtone"
)

// ShellsyncDark is the palette for both assembly dialects. Registers,
// numbers and labels stand out; mnemonics stay plain.
var ShellsyncDark = styles.Register(chroma.MustNewStyle("shellsync-dark", chroma.StyleEntries{
	chroma.Text:           charmtone.Smoke.Hex(),
	chroma.Comment:        charmtone.Squid.Hex(),
	chroma.CommentPreproc: charmtone.Squid.Hex(),

	chroma.Keyword:       charmtone.Salt.Hex(),
	chroma.KeywordPseudo: charmtone.Malibu.Hex(), // directives
	chroma.Name:          charmtone.Guac.Hex(),
	chroma.NameBuiltin:   charmtone.Guac.Hex(),
	chroma.NameVariable:  charmtone.Guac.Hex(),
	chroma.NameAttribute: charmtone.Malibu.Hex(),

	chroma.LiteralNumber:        charmtone.Coral.Hex(),
	chroma.LiteralNumberHex:     charmtone.Coral.Hex(),
	chroma.LiteralNumberBin:     charmtone.Coral.Hex(),
	chroma.LiteralNumberOct:     charmtone.Coral.Hex(),
	chroma.LiteralNumberInteger: charmtone.Coral.Hex(),

	chroma.NameLabel:    charmtone.Zest.Hex(),
	chroma.NameFunction: charmtone.Salt.Hex(), // gas tokenizes mnemonics as functions

	chroma.Operator:    charmtone.Smoke.Hex(),
	chroma.Punctuation: charmtone.Smoke.Hex(),
	chroma.String:      charmtone.Citron.Hex(),
}))
