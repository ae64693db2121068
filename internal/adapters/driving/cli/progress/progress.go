// Package progress renders pipeline progress events in the terminal.
//
// On a TTY a bubbletea program draws a spinner, the current stage and a
// progress bar. Elsewhere each change of stage or message is printed as
// a plain line.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/custodia-labs/sercha-synth/internal/adapters/driving/cli/styles"
	"github.com/custodia-labs/sercha-synth/internal/core/domain"
)

// barWidth is the width of the progress bar in cells.
const barWidth = 40

type eventMsg domain.Progress

type doneMsg struct{}

// model is the bubbletea model behind the interactive reporter.
type model struct {
	title   string
	styles  *styles.Styles
	spinner spinner.Model
	bar     progress.Model
	stage   domain.Stage
	message string
	percent float64
	done    bool
}

func newModel(title string) model {
	return model{
		title:   title,
		styles:  styles.DefaultStyles(),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(barWidth)),
	}
}

func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		m.stage = msg.Stage
		m.message = msg.Message
		m.percent = clamp(msg.Percent)
		return m, m.bar.SetPercent(m.percent / 100)
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		if b, ok := bar.(progress.Model); ok {
			m.bar = b
		}
		return m, cmd
	}
	return m, nil
}

func (m model) View() string {
	if m.done {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(m.spinner.View())
	sb.WriteString(" ")
	sb.WriteString(m.styles.Title.Render(m.title))
	if m.stage != "" {
		sb.WriteString(" ")
		sb.WriteString(m.styles.Subtitle.Render(string(m.stage)))
	}
	sb.WriteString("\n  ")
	sb.WriteString(m.bar.View())
	if m.message != "" {
		sb.WriteString("\n  ")
		sb.WriteString(m.styles.Muted.Render(m.message))
	}
	sb.WriteString("\n")
	return sb.String()
}

// Reporter receives progress events and renders them.
type Reporter struct {
	out     io.Writer
	program *tea.Program
	done    chan struct{}

	mu       sync.Mutex
	last     domain.Progress
	stopOnce sync.Once
}

// Start begins rendering to out. Call Stop when the work is finished.
func Start(out io.Writer, title string) *Reporter {
	r := &Reporter{out: out}
	if !IsTerminal(out) {
		return r
	}

	// No input and no signal handler: Ctrl-C stays with the caller's context.
	r.program = tea.NewProgram(newModel(title),
		tea.WithOutput(out),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)
	r.done = make(chan struct{})
	go func() {
		defer close(r.done)
		_, _ = r.program.Run() //nolint:errcheck // rendering failures are not fatal
	}()
	return r
}

// Func returns a ProgressFunc that feeds the reporter.
func (r *Reporter) Func() domain.ProgressFunc {
	return r.report
}

func (r *Reporter) report(p domain.Progress) {
	if r.program != nil {
		r.program.Send(eventMsg(p))
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if p.Stage == r.last.Stage && p.Message == r.last.Message {
		return
	}
	r.last = p
	if p.Message != "" {
		fmt.Fprintf(r.out, "[%s] %3.0f%% %s\n", p.Stage, clamp(p.Percent), p.Message)
	} else {
		fmt.Fprintf(r.out, "[%s] %3.0f%%\n", p.Stage, clamp(p.Percent))
	}
}

// Stop ends rendering and waits for the terminal to be restored.
func (r *Reporter) Stop() {
	r.stopOnce.Do(func() {
		if r.program == nil {
			return
		}
		r.program.Send(doneMsg{})
		<-r.done
	})
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) //nolint:gosec // fd fits in int
}

func clamp(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
