package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"shellsync/internal/buffer"
	"shellsync/internal/config"
	"shellsync/internal/elfx"
	"shellsync/internal/logging"
	"shellsync/internal/pipeline"
	shellsynclog "shellsync/internal/shellsync/log"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single non-interactive transformation",
	Long: `Assemble or disassemble once and exit. Input comes from a file or
from stdin; the result goes to stdout and diagnostics to stderr.`,
	Example: `
# Assemble a file and print the shellcode as a C string
shellsync run asm --format escaped exploit.s

# Disassemble hex from stdin in AT&T syntax
echo '48 31 c0 c3' | shellsync run disasm -a
  `,
}

var runAsmCmd = &cobra.Command{
	Use:          "asm [file]",
	Short:        "Assemble source text into shellcode",
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, p, cleanup, err := setupRun(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		src, err := readInput(cmd.InOrStdin(), args)
		if err != nil {
			return err
		}

		code, err := p.Assemble(cmd.Context(), string(src), cfg.Session)
		if err != nil {
			slog.Debug("assemble failed", "error", err)
			return transformError(err)
		}

		out := cmd.OutOrStdout()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(out, newAsmResult(code.Bytes, code.Labels))
		}

		format, _ := cmd.Flags().GetString("format")
		switch format {
		case "hex":
			_, err = fmt.Fprintln(out, buffer.Hex(code.Bytes))
		case "escaped":
			_, err = fmt.Fprintf(out, "\"%s\"\n", buffer.Escaped(code.Bytes))
		case "raw":
			_, err = out.Write(code.Bytes)
		default:
			return fmt.Errorf("unknown format %q: want hex, escaped or raw", format)
		}
		return err
	},
}

var runDisasmCmd = &cobra.Command{
	Use:          "disasm [file]",
	Short:        "Disassemble shellcode into source text",
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, p, cleanup, err := setupRun(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		data, err := readInput(cmd.InOrStdin(), args)
		if err != nil {
			return err
		}

		raw := data
		if rawInput, _ := cmd.Flags().GetBool("raw"); !rawInput {
			raw, err = buffer.ParseHex(string(data))
			if err != nil {
				return fmt.Errorf("bad hex input: %w", err)
			}
		}

		text, err := p.Disassemble(cmd.Context(), raw, cfg.Session)
		if err != nil {
			slog.Debug("disassemble failed", "error", err)
			return transformError(err)
		}
		text = strings.TrimRight(text, "\n")
		if text == "" {
			return nil
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
		return err
	},
}

func init() {
	runAsmCmd.Flags().StringP("format", "f", "hex", "Output format: hex, escaped or raw")
	runAsmCmd.Flags().Bool("json", false, "Print bytes, labels and null count as JSON")
	runDisasmCmd.Flags().Bool("raw", false, "Read raw bytes instead of hex text")

	runCmd.AddCommand(runAsmCmd)
	runCmd.AddCommand(runDisasmCmd)
}

// setupRun loads the config and logging for a one-shot transformation.
func setupRun(cmd *cobra.Command) (config.Config, *pipeline.Pipelines, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return cfg, nil, nil, err
	}
	logFile, _ := cmd.Flags().GetString("log-file")
	if err := shellsynclog.Setup(logFile, cfg.Debug); err != nil {
		return cfg, nil, nil, err
	}

	logger := logging.NewLogger(false)
	if cfg.Debug {
		logger.SetLevel(log.DebugLevel)
	}
	cleanup := func() {
		logger.Close()
		shellsynclog.Close()
	}

	p := newPipelines(cfg, logger.Logger)
	if err := p.Invoker.Probe(); err != nil {
		cleanup()
		return cfg, nil, nil, fmt.Errorf("cannot create temporary files: %w", err)
	}
	return cfg, p, cleanup, nil
}

// transformError turns a pipeline failure into the message printed by cobra.
func transformError(err error) error {
	msg := pipeline.Diagnostic(err)
	if pipeline.SeverityOf(err) == pipeline.Environment {
		return fmt.Errorf("toolchain: %s", msg)
	}
	var perr *pipeline.Error
	if errors.As(err, &perr) {
		return fmt.Errorf("%s failed:\n%s", perr.Stage, msg)
	}
	return errors.New(msg)
}

type asmResult struct {
	Bytes     string     `json:"bytes"`
	Escaped   string     `json:"escaped"`
	Length    int        `json:"length"`
	NullBytes int        `json:"null_bytes"`
	Labels    []asmLabel `json:"labels,omitempty"`
}

type asmLabel struct {
	Name   string `json:"name"`
	Offset uint64 `json:"offset"`
}

func newAsmResult(code []byte, labels []elfx.Label) asmResult {
	res := asmResult{
		Bytes:     buffer.Hex(code),
		Escaped:   buffer.Escaped(code),
		Length:    len(code),
		NullBytes: buffer.NullCount(code),
	}
	for _, l := range labels {
		res.Labels = append(res.Labels, asmLabel{Name: l.Name, Offset: l.Offset})
	}
	return res
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
