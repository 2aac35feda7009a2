package cmd

const helpMarkdown = `# shellsync

Edit either panel; the other one follows once you pause typing.

## Keys

| key | action |
|-----|--------|
| ` + "`tab`" + ` / ` + "`ctrl+→`" + ` | focus next panel |
| ` + "`shift+tab`" + ` / ` + "`ctrl+←`" + ` | focus previous panel |
| ` + "`ctrl+t`" + ` | switch Intel / AT&T syntax |
| ` + "`ctrl+b`" + ` | switch 64 / 32 bit |
| ` + "`f1`" + ` | toggle this help |
| ` + "`esc`" + ` / ` + "`ctrl+q`" + ` | quit and print the result |

## Byte panel

Type hex digits; every pair inserts one byte at the cursor. ` + "`backspace`" + `
drops a half-typed digit first, then whole bytes.

## Status line

- **green**: both panels agree
- **blue**: a transformation is running
- **amber**: the assembler or disassembler rejected the input; nothing was changed
- **red**: the toolchain itself is broken (missing binary, no temp dir)
`
