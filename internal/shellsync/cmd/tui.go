package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/v2/spinner"
	"github.com/charmbracelet/bubbles/v2/viewport"
	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/lipgloss/v2"

	"shellsync/internal/buffer"
	"shellsync/internal/config"
	"shellsync/internal/controller"
	"shellsync/internal/engine"
	"shellsync/internal/input"
	"shellsync/internal/pipeline"
	"shellsync/internal/shellsync/styles"
	"shellsync/internal/ui/colorize"
)

// frameMsg carries a controller frame into the bubbletea loop.
type frameMsg controller.Frame

type model struct {
	events chan<- input.Event
	frame  controller.Frame

	spinner  spinner.Model
	help     viewport.Model
	showHelp bool

	width  int
	height int
}

func newModel(events chan<- input.Event, s config.Session) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.StatusPending

	vp := viewport.New()
	vp.SetWidth(80)
	vp.SetHeight(22)

	m := model{
		events:  events,
		spinner: sp,
		help:    vp,
		width:   80,
		height:  24,
	}
	m.frame.Session = s
	m.frame.Source = []string{""}
	return m
}

func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case frameMsg:
		m.frame = controller.Frame(msg)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.SetWidth(msg.Width)
		m.help.SetHeight(msg.Height - 1)
		if m.showHelp {
			m.help.SetContent(styles.RenderMarkdown(helpMarkdown, msg.Width-4))
		}
		return m, nil

	case tea.PasteMsg:
		if m.showHelp {
			return m, nil
		}
		m.paste(string(msg))
		return m, nil

	case tea.KeyMsg:
		key := msg.String()
		if m.showHelp {
			switch key {
			case "f1", "esc", "q":
				m.showHelp = false
				return m, nil
			}
			var cmd tea.Cmd
			m.help, cmd = m.help.Update(msg)
			return m, cmd
		}
		if key == "f1" {
			m.showHelp = true
			m.help.SetContent(styles.RenderMarkdown(helpMarkdown, m.width-4))
			m.help.GotoTop()
			return m, nil
		}
		return m, m.handleKey(key)
	}
	return m, nil
}

// handleKey forwards a key to the controller. Quit also ends the program.
func (m model) handleKey(key string) tea.Cmd {
	ev, ok := input.FromKey(key)
	if !ok {
		return nil
	}
	if ev.Kind == input.Quit {
		select {
		case m.events <- ev:
		default:
		}
		return tea.Quit
	}
	select {
	case m.events <- ev:
	default:
		// controller is far behind, drop the key
	}
	return nil
}

// paste forwards pasted text as typed input. It blocks until the controller
// has taken every event.
func (m model) paste(text string) {
	for _, ev := range input.FromPaste(text) {
		m.events <- ev
	}
}

func (m model) View() string {
	if m.showHelp {
		return m.help.View() + "\n" + styles.Menu.Render(" F1/Esc: close help ")
	}

	status := m.statusView()
	menu := m.menuView()
	bodyHeight := m.height - lipgloss.Height(status) - lipgloss.Height(menu)
	if bodyHeight < 3 {
		bodyHeight = 3
	}

	half := m.width / 2
	src := m.panel("assembly", m.sourceLines(half-4, bodyHeight-3), m.frame.Focus == input.SourcePanel, half, bodyHeight)
	code := m.panel("shellcode", m.byteLines(bodyHeight-3), m.frame.Focus == input.BytesPanel, m.width-half, bodyHeight)

	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Top, src, code),
		status,
		menu,
	)
}

func (m model) panel(title string, lines []string, focused bool, width, height int) string {
	frame, titleStyle := styles.Panel, styles.PanelTitle
	if focused {
		frame, titleStyle = styles.FocusedPanel, styles.FocusedPanelTitle
	}
	inner := height - 2
	body := append([]string{titleStyle.Render(title)}, lines...)
	if len(body) > inner {
		body = body[:inner]
	}
	for len(body) < inner {
		body = append(body, "")
	}
	return frame.Width(width - 2).Render(strings.Join(body, "\n"))
}

// window returns the first row to show so that cursor is visible in a view
// of height rows.
func window(cursor, total, height int) int {
	if height <= 0 || total <= height {
		return 0
	}
	start := cursor - height + 1
	if start < 0 {
		start = 0
	}
	if start > total-height {
		start = total - height
	}
	return start
}

func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func (m model) sourceLines(width, height int) []string {
	f := m.frame
	focused := f.Focus == input.SourcePanel
	start := window(f.SourceRow, len(f.Source), height)
	end := min(len(f.Source), start+height)

	out := make([]string, 0, end-start)
	for row := start; row < end; row++ {
		num := styles.Offset.Render(fmt.Sprintf("%3d ", row+1))
		line := truncate(f.Source[row], width-4)
		if focused && row == f.SourceRow {
			out = append(out, num+cursorLine(line, f.SourceCol))
			continue
		}
		out = append(out, num+colorize.Line(line, f.Session.Dialect))
	}
	return out
}

func cursorLine(line string, col int) string {
	r := []rune(line)
	if col >= len(r) {
		return line + styles.Cursor.Render(" ")
	}
	return string(r[:col]) + styles.Cursor.Render(string(r[col])) + string(r[col+1:])
}

func (m model) byteLines(height int) []string {
	f := m.frame
	focused := f.Focus == input.BytesPanel

	rows := len(f.Bytes)/buffer.RowWidth + 1
	labelRows := 0
	if len(f.Labels) > 0 {
		labelRows = 1
	}
	start := window(f.ByteCursor/buffer.RowWidth, rows, height-labelRows)

	var out []string
	for row := start; row < rows && len(out) < height-labelRows; row++ {
		var b strings.Builder
		b.WriteString(styles.Offset.Render(fmt.Sprintf("%04x  ", row*buffer.RowWidth)))
		for i := row * buffer.RowWidth; i < (row+1)*buffer.RowWidth; i++ {
			if i > row*buffer.RowWidth {
				b.WriteByte(' ')
			}
			atCursor := focused && i == f.ByteCursor
			switch {
			case i < len(f.Bytes):
				cell := fmt.Sprintf("%02x", f.Bytes[i])
				switch {
				case atCursor && f.NibbleSet:
					b.WriteString(styles.Nibble.Render(string(f.Nibble) + "_"))
				case atCursor:
					b.WriteString(styles.Cursor.Render(cell))
				case f.Bytes[i] == 0:
					b.WriteString(styles.NullByte.Render(cell))
				default:
					b.WriteString(cell)
				}
			case i == len(f.Bytes) && atCursor:
				if f.NibbleSet {
					b.WriteString(styles.Nibble.Render(string(f.Nibble) + "_"))
				} else {
					b.WriteString(styles.Cursor.Render("  "))
				}
			}
		}
		out = append(out, b.String())
	}

	if labelRows > 0 {
		names := make([]string, len(f.Labels))
		for i, l := range f.Labels {
			names[i] = fmt.Sprintf("%s@%#x", l.Name, l.Offset)
		}
		out = append(out, styles.Label.Render(strings.Join(names, " ")))
	}
	return out
}

func (m model) statusView() string {
	f := m.frame
	st := f.State
	switch st.Status {
	case engine.SourceAuthoritative:
		return m.spinner.View() + styles.StatusPending.Render(" assembling")
	case engine.BytesAuthoritative:
		return m.spinner.View() + styles.StatusPending.Render(" disassembling")
	case engine.Failed:
		lines := strings.Split(strings.TrimSpace(st.Message), "\n")
		if len(lines) > 3 {
			lines = lines[len(lines)-3:]
		}
		msg := strings.Join(lines, "\n")
		if st.Severity == pipeline.Environment {
			return styles.StatusEnv.Render(" toolchain: " + msg + " ")
		}
		return styles.StatusInput.Render(fmt.Sprintf("✗ %s: %s", st.Origin, msg))
	}
	return styles.StatusSynced.Render("✓ synced") +
		styles.StatusInfo.Render(fmt.Sprintf("  %d bytes, %d null", len(f.Bytes), buffer.NullCount(f.Bytes)))
}

func (m model) menuView() string {
	return styles.Menu.Render(fmt.Sprintf(
		" %s • Tab: switch panel • Ctrl+T: syntax • Ctrl+B: bits • F1: help • Esc: quit ",
		m.frame.Session))
}
