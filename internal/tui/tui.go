// Package tui provides a live terminal view of a running loop.
package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"continuous/internal/loop"
	"continuous/internal/progress"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"
)

// MaxLogLines is the number of recent log lines kept on screen.
const MaxLogLines = 12

// Model is the Bubble Tea model for the loop view.
type Model struct {
	styles  Styles
	spinner spinner.Model
	now     func() time.Time

	task   string
	limits loop.Limits

	// Current iteration
	iteration int
	phase     loop.Phase
	detail    string
	branch    string
	active    bool

	// Tallies
	merged  int
	failed  int
	cost    float64
	lastErr string

	logs []progress.Event

	// State
	loopStarted bool
	loopDone    bool
	stopping    bool
	loopStart   time.Time
	duration    time.Duration
	summary     *loop.Summary
	err         error

	width int

	cancel context.CancelFunc
}

var _ tea.Model = (*Model)(nil)

// Message types for TUI updates
type (
	loopStartMsg struct {
		Task   string
		Limits loop.Limits
	}
	iterationStartMsg struct{ Ordinal int }
	phaseMsg          struct {
		Ordinal int
		Phase   loop.Phase
		Detail  string
	}
	iterationEndMsg struct{ Result loop.IterationResult }
	loopDoneMsg     struct {
		Summary *loop.Summary
		Err     error
	}
	durationTickMsg struct{}
)

// Observer implements loop.Observer and forwards events to the program.
type Observer struct {
	loop.NoopObserver
	send func(tea.Msg)
}

var _ loop.Observer = (*Observer)(nil)

// NewObserver returns an Observer that delivers events through send
// (typically (*tea.Program).Send).
func NewObserver(send func(tea.Msg)) *Observer {
	return &Observer{send: send}
}

// OnLoopStart is called when the loop begins.
func (o *Observer) OnLoopStart(task string, limits loop.Limits) {
	o.send(loopStartMsg{Task: task, Limits: limits})
}

// OnIterationStart is called when an iteration begins.
func (o *Observer) OnIterationStart(ordinal int) {
	o.send(iterationStartMsg{Ordinal: ordinal})
}

// OnPhase is called when an iteration enters a phase.
func (o *Observer) OnPhase(ordinal int, phase loop.Phase, detail string) {
	o.send(phaseMsg{Ordinal: ordinal, Phase: phase, Detail: detail})
}

// OnIterationEnd is called when an iteration merges or fails. Besides
// updating the tallies it adds a done or error line to the log.
func (o *Observer) OnIterationEnd(result loop.IterationResult) {
	o.send(iterationEndMsg{Result: result})
	o.send(outcomeEvent(result))
}

func outcomeEvent(r loop.IterationResult) progress.Event {
	ev := progress.Event{Timestamp: time.Now()}
	if r.Outcome == loop.OutcomeMerged {
		ev.Status = progress.StatusDone
		ev.Message = fmt.Sprintf("Iteration %d merged PR #%d", r.Ordinal, r.PullRequest)
		return ev
	}
	ev.Status = progress.StatusError
	ev.Message = fmt.Sprintf("Iteration %d failed during %s", r.Ordinal, r.Phase)
	if r.Err != nil {
		ev.Message += ": " + r.Err.Error()
	}
	return ev
}

// NewModel creates a new TUI model.
func NewModel() *Model {
	s := DefaultStyles()
	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(s.Spinner))
	return &Model{
		styles:  s,
		spinner: sp,
		now:     time.Now,
		logs:    make([]progress.Event, 0, MaxLogLines+1),
	}
}

// LoopFunc runs the loop, reporting progress to obs and log lines to out.
type LoopFunc func(ctx context.Context, obs loop.Observer, out io.Writer) (*loop.Summary, error)

// Run starts the TUI and runs fn in a background goroutine. The first q or
// ctrl+c cancels fn's context so the loop stops after the current
// iteration; a second one closes the view immediately. The view closes by
// itself once fn returns. Run returns fn's results.
func Run(ctx context.Context, fn LoopFunc, opts ...tea.ProgramOption) (*loop.Summary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := NewModel()
	m.cancel = cancel
	p := tea.NewProgram(m, opts...)

	out := progress.NewWriter(progress.FuncEmitter(func(ev progress.Event) { p.Send(ev) }))
	obs := NewObserver(p.Send)

	var (
		summary *loop.Summary
		loopErr error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		summary, loopErr = fn(ctx, obs, out)
		out.Flush()
		p.Send(loopDoneMsg{Summary: summary, Err: loopErr})
	}()

	_, err := p.Run()
	cancel()
	<-done
	if err != nil {
		return summary, fmt.Errorf("tui: %w", err)
	}
	return summary, loopErr
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg { return durationTickMsg{} })
}

// Init implements tea.Model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.stopping || m.loopDone {
				return m, tea.Quit
			}
			m.stopping = true
			if m.cancel != nil {
				m.cancel()
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case durationTickMsg:
		if m.loopStarted && !m.loopDone {
			m.duration = m.now().Sub(m.loopStart)
		}
		return m, tick()

	case loopStartMsg:
		m.loopStarted = true
		m.loopStart = m.now()
		m.task = msg.Task
		m.limits = msg.Limits

	case iterationStartMsg:
		m.iteration = msg.Ordinal
		m.active = true
		m.phase = loop.PhaseBranch
		m.detail = ""
		m.branch = ""

	case phaseMsg:
		m.phase = msg.Phase
		m.detail = msg.Detail
		if msg.Phase == loop.PhaseAgent && msg.Detail != "" {
			m.branch = msg.Detail
		}

	case iterationEndMsg:
		m.active = false
		m.cost += msg.Result.Cost
		if msg.Result.Outcome == loop.OutcomeMerged {
			m.merged++
		} else {
			m.failed++
			if msg.Result.Err != nil {
				m.lastErr = msg.Result.Err.Error()
			}
		}

	case progress.Event:
		m.logs = append(m.logs, msg)
		if len(m.logs) > MaxLogLines {
			m.logs = m.logs[len(m.logs)-MaxLogLines:]
		}

	case loopDoneMsg:
		m.loopDone = true
		m.active = false
		m.summary = msg.Summary
		m.err = msg.Err
		if msg.Summary != nil {
			m.duration = msg.Summary.Duration
			m.cost = msg.Summary.TotalCost
		}
		return m, tea.Quit
	}

	return m, nil
}

// View implements tea.Model
func (m *Model) View() string {
	var b strings.Builder

	header := m.styles.Title.Render("⟳ CONTINUOUS")
	if m.task != "" {
		header += " " + m.styles.Subtitle.Render("→ "+truncate(m.task, m.taskWidth()))
	}
	b.WriteString(header)
	b.WriteString("\n\n")

	if m.iteration > 0 {
		line := m.styles.Muted.Render("Iteration " + iterationLabel(m.iteration, m.limits.MaxRuns))
		if m.active {
			line += "  " + m.spinner.View() + " " + m.styles.Status.Render(m.phase.String())
			if m.detail != "" && m.detail != m.branch {
				line += " " + m.styles.Muted.Render(m.detail)
			}
		}
		b.WriteString(line + "\n")
		if m.active && m.branch != "" {
			b.WriteString(m.styles.Branch.Render(m.branch) + "\n")
		}
	}

	failedStyle := m.styles.Muted
	if m.failed > 0 {
		failedStyle = m.styles.Error
	}
	tallies := []string{
		m.styles.Success.Render(fmt.Sprintf("%s %d merged", loop.StatusIcon(loop.OutcomeMerged), m.merged)),
		failedStyle.Render(fmt.Sprintf("%s %d failed", loop.StatusIcon(loop.OutcomeFailed), m.failed)),
		m.styles.Cost.Render(loop.FormatCost(m.cost)),
	}
	if m.limits.MaxCost > 0 {
		tallies[2] += m.styles.Muted.Render(" / " + loop.FormatCost(m.limits.MaxCost))
	}
	b.WriteString(strings.Join(tallies, "  "))
	b.WriteString("\n")
	if m.lastErr != "" {
		b.WriteString(m.styles.Error.Render("last error: "+truncate(m.lastErr, 100)) + "\n")
	}
	if m.loopDone && m.err != nil {
		b.WriteString(m.styles.Error.Render(loop.IconFailed+" "+m.err.Error()) + "\n")
	}

	if len(m.logs) > 0 {
		lines := make([]string, len(m.logs))
		for i, ev := range m.logs {
			lines[i] = m.logLine(ev)
		}
		b.WriteString("\n")
		b.WriteString(m.styles.Log.Render(strings.Join(lines, "\n")))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.statusBar())
	return b.String()
}

func (m *Model) logLine(ev progress.Event) string {
	switch ev.Status {
	case progress.StatusDone:
		return m.styles.Success.Render(loop.IconSuccess + " " + ev.Message)
	case progress.StatusError:
		return m.styles.Error.Render(loop.IconFailed + " " + truncate(ev.Message, 100))
	default:
		return ev.Message
	}
}

func (m *Model) statusBar() string {
	var parts []string
	switch {
	case m.loopDone && m.summary != nil:
		style := m.styles.Success
		if m.summary.StopReason.ExitCode() != 0 {
			style = m.styles.Error
		}
		parts = append(parts, style.Render("Stopped: "+m.summary.StopReason.String()))
	case m.loopDone:
		parts = append(parts, m.styles.Error.Render("Stopped"))
	case m.stopping:
		parts = append(parts, m.styles.Warning.Render(loop.IconWarning+" Stopping after the current iteration (q again to close)"))
	case m.loopStarted:
		parts = append(parts, m.styles.Status.Render(loop.IconRunning+" Running"))
	default:
		parts = append(parts, m.styles.Muted.Render("○ Waiting"))
	}
	if m.loopStarted && m.duration > 0 {
		parts = append(parts, m.styles.Muted.Render(loop.FormatDuration(m.duration)))
	}
	if !m.loopDone && !m.stopping {
		parts = append(parts, m.styles.Muted.Render("q to stop"))
	}
	return strings.Join(parts, " │ ")
}

func (m *Model) taskWidth() int {
	if m.width > 20 {
		return m.width - 16
	}
	return 60
}

func iterationLabel(n, maxRuns int) string {
	if maxRuns > 0 {
		return fmt.Sprintf("%d/%d", n, maxRuns)
	}
	return fmt.Sprintf("%d", n)
}

// truncate collapses s onto one line and shortens it to n terminal columns.
func truncate(s string, n int) string {
	return runewidth.Truncate(strings.Join(strings.Fields(s), " "), n, "...")
}
