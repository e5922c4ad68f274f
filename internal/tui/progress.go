package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/bbngrid/internal/batch"
)

var (
	cyan    = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim     = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	dimmer  = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	green   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	yellow  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	red     = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	magenta = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
)

const (
	refreshInterval = 200 * time.Millisecond
	historyLen      = 60
	maxFailures     = 5
)

// Source is the batch the view follows.
type Source interface {
	Snapshot() batch.Snapshot
	Stop()
}

type model struct {
	src  Source
	snap batch.Snapshot

	stopping bool
	quitting bool

	lastDone int
	history  []float64

	width  int
	height int
}

func newModel(src Source) model {
	snap := src.Snapshot()
	return model{
		src:      src,
		snap:     snap,
		lastDone: snap.Finished + snap.Failed,
		history:  make([]float64, 0, historyLen),
		width:    80,
		height:   24,
	}
}

type tickMsg time.Time

type stoppedMsg struct{}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Init() tea.Cmd { return tick() }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case stoppedMsg:
		m.stopping = false
		m.refresh()
		if m.quitting {
			return m, tea.Quit
		}
		return m, nil
	case tickMsg:
		m.refresh()
		return m, tick()
	}
	return m, nil
}

func (m *model) refresh() {
	m.snap = m.src.Snapshot()
	done := m.snap.Finished + m.snap.Failed
	m.history = append(m.history, float64(done-m.lastDone))
	if len(m.history) > historyLen {
		m.history = m.history[len(m.history)-historyLen:]
	}
	m.lastDone = done
}

func (m model) stop() tea.Cmd {
	src := m.src
	return func() tea.Msg {
		src.Stop()
		return stoppedMsg{}
	}
}

func (m model) handleKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.snap.Phase == batch.Running {
			m.quitting = true
			if m.stopping {
				return m, nil
			}
			m.stopping = true
			return m, m.stop()
		}
		return m, tea.Quit
	case "s":
		if m.snap.Phase == batch.Running && !m.stopping {
			m.stopping = true
			return m, m.stop()
		}
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(dimmer.Render("    ╺━━━━━━━━━━━━━━━━━━━━━━━━╸") + "\n")
	b.WriteString("           " + cyan.Render("b b n g r i d") + "\n")
	b.WriteString(dimmer.Render("    ╺━━━━━━━━━━━━━━━━━━━━━━━━╸") + "\n\n")

	icon, status := m.status()
	b.WriteString(fmt.Sprintf("   %s %s  %s\n", icon, cyan.Render(m.snap.Tag), status))
	if m.snap.Folder != "" {
		b.WriteString("   " + dim.Render(m.snap.Folder) + "\n")
	}
	b.WriteString("\n")

	barWidth := 36
	filled := int(m.snap.Progress * float64(barWidth))
	if filled > barWidth {
		filled = barWidth
	}
	bar := cyan.Render(strings.Repeat("━", filled)) + dimmer.Render(strings.Repeat("─", barWidth-filled))
	count := fmt.Sprintf("%d/%d", m.snap.Finished+m.snap.Failed, m.snap.Total)
	b.WriteString(fmt.Sprintf("   %s %s  %s\n\n", bar, dim.Render(count), dim.Render(m.elapsed())))

	b.WriteString(fmt.Sprintf("   %s %d  %s %d  %s %d  %s %d\n",
		green.Render("finished"), m.snap.Finished,
		red.Render("failed"), m.snap.Failed,
		yellow.Render("running"), m.snap.Running,
		dim.Render("pending"), m.snap.Pending))

	if grid := m.jobGrid(); grid != "" {
		b.WriteString("\n" + grid)
	}

	if len(m.history) > 1 {
		b.WriteString(fmt.Sprintf("\n   %s %s\n", dim.Render("rate"), cyan.Render(sparkline(m.history, 24))))
	}

	if len(m.snap.Failures) > 0 {
		b.WriteString("\n")
		failures := m.snap.Failures
		if len(failures) > maxFailures {
			failures = failures[len(failures)-maxFailures:]
		}
		for _, f := range failures {
			b.WriteString(fmt.Sprintf("   %s %s\n",
				red.Render(fmt.Sprintf("✕ job %d", f.ID)),
				dim.Render(fmt.Sprintf("exit %d", f.ExitCode))))
		}
	}

	if m.snap.Error != "" {
		b.WriteString("\n   " + red.Render(m.snap.Error) + "\n")
	}
	if s := m.snap.Summary; s != nil && m.snap.Phase.Terminal() {
		b.WriteString("\n   " + dim.Render("results ") + white.Render(s.Aggregate) + "\n")
		if s.Remediation != "" {
			b.WriteString("   " + dim.Render("re-run  ") + magenta.Render(s.Remediation) + "\n")
		}
	}

	help := "   s stop  q quit"
	if m.snap.Phase.Terminal() {
		help = "   q quit"
	}
	b.WriteString("\n" + dim.Render(help) + "\n")
	return b.String()
}

func (m model) status() (string, string) {
	switch {
	case m.stopping:
		return yellow.Render("○"), yellow.Render("stopping")
	case m.snap.Phase == batch.Running:
		return green.Render("●"), green.Render("running")
	case m.snap.Phase == batch.Completed && m.snap.Failed == 0:
		return green.Render("✓"), green.Render("completed")
	case m.snap.Phase == batch.Completed:
		return yellow.Render("✓"), yellow.Render("completed with failures")
	case m.snap.Phase == batch.Cancelled:
		return yellow.Render("■"), yellow.Render("cancelled")
	case m.snap.Phase == batch.Aborted:
		return red.Render("✕"), red.Render("aborted")
	}
	return dim.Render("○"), dim.Render(m.snap.Phase.String())
}

func (m model) elapsed() string {
	if m.snap.StartedAt.IsZero() {
		return ""
	}
	end := m.snap.EndedAt
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(m.snap.StartedAt).Truncate(time.Second).String()
}

// jobGrid draws one cell per job, wrapped to the terminal width.
func (m model) jobGrid() string {
	if len(m.snap.Jobs) == 0 {
		return ""
	}
	cols := m.width - 6
	if cols < 20 {
		cols = 20
	}
	maxRows := m.height - 20
	if maxRows < 3 {
		maxRows = 3
	}

	var b strings.Builder
	rows := 0
	for i := 0; i < len(m.snap.Jobs) && rows < maxRows; i += cols {
		end := min(i+cols, len(m.snap.Jobs))
		b.WriteString("   ")
		for _, js := range m.snap.Jobs[i:end] {
			b.WriteString(jobCell(js))
		}
		b.WriteString("\n")
		rows++
	}
	if hidden := len(m.snap.Jobs) - rows*cols; hidden > 0 {
		b.WriteString("   " + dimmer.Render(fmt.Sprintf("… %d more", hidden)) + "\n")
	}
	return b.String()
}

func jobCell(js batch.JobState) string {
	switch js {
	case batch.JobRunning:
		return yellow.Render("○")
	case batch.JobFinished:
		return green.Render("●")
	case batch.JobFailed:
		return red.Render("✕")
	}
	return dimmer.Render("·")
}

func sparkline(data []float64, width int) string {
	if len(data) == 0 {
		return ""
	}
	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	minVal, maxVal := data[0], data[0]
	for _, v := range data {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	rang := maxVal - minVal
	if rang == 0 {
		rang = 1
	}
	start := 0
	if len(data) > width {
		start = len(data) - width
	}
	var sb strings.Builder
	for _, v := range data[start:] {
		idx := int((v - minVal) / rang * 7)
		if idx > 7 {
			idx = 7
		}
		if idx < 0 {
			idx = 0
		}
		sb.WriteRune(chars[idx])
	}
	return sb.String()
}

// Run shows the progress of src until the user quits. Quitting a running
// batch stops it first.
func Run(src Source) error {
	p := tea.NewProgram(newModel(src), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
