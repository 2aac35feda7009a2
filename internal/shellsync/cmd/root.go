package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"shellsync/internal/buffer"
	"shellsync/internal/config"
	"shellsync/internal/controller"
	"shellsync/internal/engine"
	"shellsync/internal/input"
	"shellsync/internal/logging"
	"shellsync/internal/pipeline"
	shellsynclog "shellsync/internal/shellsync/log"
	"shellsync/internal/toolchain"
)

// newPipelines builds the transformations for cfg. Tests replace it.
var newPipelines = func(cfg config.Config, logger *log.Logger) *pipeline.Pipelines {
	iv := toolchain.NewInvoker(toolchain.FromConfig(cfg), logger)
	iv.Timeout = cfg.Timeout.Std()
	return pipeline.New(iv)
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a JSON config file")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Debug")
	rootCmd.PersistentFlags().BoolP("att-syntax", "a", false, "Use AT&T syntax instead of Intel")
	rootCmd.PersistentFlags().Bool("m32", false, "Assemble for 32-bit x86 instead of x86-64")
	rootCmd.PersistentFlags().String("disassembler", "", "Disassembler backend: objdump or builtin")
	rootCmd.PersistentFlags().Duration("timeout", 0, "Hard limit for each toolchain invocation")
	rootCmd.PersistentFlags().String("log-file", "", "Append diagnostic logs to this file")

	rootCmd.Flags().BoolP("help", "h", false, "Help")
	rootCmd.Flags().Duration("debounce", 0, "Quiet period after an edit before transforming")

	rootCmd.AddCommand(runCmd)
}

// loadConfig reads the config file named by --config and applies any flags
// the user set on top of it.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("debug") {
		cfg.Debug, _ = flags.GetBool("debug")
	}
	if att, _ := flags.GetBool("att-syntax"); att {
		cfg.Session.Dialect = config.ATT
	}
	if m32, _ := flags.GetBool("m32"); m32 {
		cfg.Session.Bitness = config.Bits32
	}
	if flags.Changed("disassembler") {
		cfg.Disassembler, _ = flags.GetString("disassembler")
	}
	if flags.Changed("timeout") {
		d, _ := flags.GetDuration("timeout")
		cfg.Timeout = config.Duration(d)
	}
	if flags.Lookup("debounce") != nil && flags.Changed("debounce") {
		d, _ := flags.GetDuration("debounce")
		cfg.Debounce = config.Duration(d)
	}
	return cfg, cfg.Validate()
}

var rootCmd = &cobra.Command{
	Use:   "shellsync [file]",
	Short: "Edit assembly and shellcode side by side",
	Long: `Shellsync is a terminal editor with two panels, assembly text and
shellcode bytes, kept in sync through the GNU assembler, linker and objdump.
Edit either side; the other one follows.`,
	Example: `
# Start with empty panels, Intel syntax, x86-64
shellsync

# Preload a source file, AT&T syntax, 32-bit
shellsync -a --m32 exploit.s

# Non-interactive
echo 'xor eax, eax' | shellsync run asm --format escaped
  `,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !term.IsTerminal(os.Stdout.Fd()) {
			return errors.New("stdout is not a terminal; use `shellsync run asm|disasm` for non-interactive use")
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		var preload string
		if len(args) == 1 {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("cannot read source: %w", err)
			}
			preload = strings.TrimRight(string(data), "\n")
		}

		logFile, _ := cmd.Flags().GetString("log-file")
		logger, err := interactiveLogger(logFile, cfg.Debug)
		if err != nil {
			return err
		}
		defer logger.Close()
		defer shellsynclog.Close()

		p := newPipelines(cfg, logger.Logger)
		if err := p.Invoker.Probe(); err != nil {
			return fmt.Errorf("cannot create temporary files: %w", err)
		}

		final, err := runTUI(cmd.Context(), cfg, p, preload, logger.Logger)
		if err != nil {
			return err
		}
		return printFinal(cmd.OutOrStdout(), final)
	},
}

// interactiveLogger sets up slog and the charm logger for the TUI. stderr
// belongs to the terminal while the UI runs, so both go to logFile when one
// is given and are discarded otherwise.
func interactiveLogger(logFile string, debug bool) (*logging.LoggerCloser, error) {
	slogFile := logFile
	if slogFile == "" {
		slogFile = os.DevNull
	}
	if err := shellsynclog.Setup(slogFile, debug); err != nil {
		return nil, err
	}

	logger := logging.NewLogger(true)
	if logFile != "" {
		logger.Close()
		var err error
		if logger, err = logging.NewFileLogger(logFile); err != nil {
			return nil, err
		}
	}
	if debug {
		logger.SetLevel(log.DebugLevel)
	}
	return logger, nil
}

// runTUI runs the controller and the bubbletea program until the user quits
// and returns the last frame.
func runTUI(ctx context.Context, cfg config.Config, p *pipeline.Pipelines, preload string, logger *log.Logger) (controller.Frame, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eng := engine.New(p, cfg.Session, logger)
	ctrl := controller.New(eng, cfg.Debounce.Std(), logger)
	ctrl.Preload = preload

	events := make(chan input.Event, 256)
	frames := make(chan controller.Frame, 1)

	var (
		mu   sync.Mutex
		last controller.Frame
	)
	publish := func(f controller.Frame) {
		mu.Lock()
		last = f
		mu.Unlock()
		// keep only the newest frame; the controller is the only sender
		select {
		case <-frames:
		default:
		}
		frames <- f
	}

	program := tea.NewProgram(
		newModel(events, cfg.Session),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	ctrlErr := make(chan error, 1)
	go func() {
		ctrlErr <- ctrl.Run(ctx, events, publish)
		close(frames)
	}()
	go func() {
		for f := range frames {
			program.Send(frameMsg(f))
		}
	}()

	_, err := program.Run()
	cancel()
	if cerr := <-ctrlErr; cerr != nil && !errors.Is(cerr, context.Canceled) {
		slog.Error("controller stopped", "error", cerr)
	}
	if err != nil {
		slog.Error("TUI run error", "error", err)
		return controller.Frame{}, fmt.Errorf("TUI error: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	return last, nil
}

// printFinal writes the source and its shellcode after the TUI exits.
func printFinal(w io.Writer, f controller.Frame) error {
	src := strings.TrimRight(strings.Join(f.Source, "\n"), "\n")
	if src != "" {
		if _, err := fmt.Fprintln(w, src); err != nil {
			return err
		}
	}
	if len(f.Bytes) > 0 {
		_, err := fmt.Fprintf(w, "\n\"%s\"\n", buffer.Escaped(f.Bytes))
		return err
	}
	return nil
}

func Execute() {
	if !term.IsTerminal(os.Stdout.Fd()) {
		// plain cobra when piped, fang renders for terminals
		if err := rootCmd.Execute(); err != nil {
			os.Exit(1)
		}
		return
	}

	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}

// readInput returns the contents of the named file, or stdin when no file
// is given and stdin is not a terminal.
func readInput(stdin io.Reader, args []string) ([]byte, error) {
	if len(args) > 0 && args[0] != "-" {
		return os.ReadFile(args[0])
	}
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(f.Fd()) {
		return nil, errors.New("no input: pass a file or pipe data on stdin")
	}
	return io.ReadAll(stdin)
}
