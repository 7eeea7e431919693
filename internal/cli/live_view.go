package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"autoclipper/internal/model"
	"autoclipper/internal/pipeline"
	"autoclipper/internal/toolrun"
)

const liveLogLines = 8

var (
	liveTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	liveMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	liveErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	liveOKStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	livePanelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type liveLogMsg string

type liveProgressMsg float64

type liveDownloadMsg float64

type liveDoneMsg struct {
	result model.RunResult
	err    error
}

type livePhase int

const (
	livePhasePreparing livePhase = iota
	livePhaseDownloading
	livePhaseClipping
)

type liveModel struct {
	url      string
	spinner  spinner.Model
	bar      progress.Model
	phase    livePhase
	status   string
	percent  float64
	lines    []string
	skips    int
	width    int
	stopping bool
	done     *liveDoneMsg
	cancel   context.CancelFunc
}

func newLiveModel(url string, cancel context.CancelFunc) liveModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return liveModel{
		url:     url,
		spinner: s,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		status:  "Preparing tools...",
		cancel:  cancel,
	}
}

func (m liveModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m liveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(10, min(60, msg.Width-12))
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if m.done != nil {
				return m, tea.Quit
			}
			if !m.stopping {
				m.stopping = true
				m.cancel()
			}
		}
		return m, nil
	case liveLogMsg:
		m = m.withLine(string(msg))
		return m, nil
	case liveProgressMsg:
		m.percent = float64(msg)
		return m, nil
	case liveDownloadMsg:
		if m.phase == livePhaseDownloading {
			m.percent = float64(msg)
		}
		return m, nil
	case liveDoneMsg:
		m.done = &msg
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m liveModel) withLine(line string) liveModel {
	switch {
	case strings.HasPrefix(line, "Downloading "):
		m.phase = livePhaseDownloading
		m.status = line
		m.percent = 0
	case strings.HasPrefix(line, "Clipping "):
		m.phase = livePhaseClipping
		m.status = line
		m.percent = 0
	case strings.HasPrefix(line, "Skipping ") || strings.HasPrefix(line, "Skipped: "):
		m.skips++
	}
	m.lines = append(m.lines, line)
	if len(m.lines) > liveLogLines {
		m.lines = m.lines[len(m.lines)-liveLogLines:]
	}
	return m
}

func (m liveModel) View() string {
	header := liveTitleStyle.Render("autoclipper") + " " + liveMutedStyle.Render(m.url)

	if m.done != nil {
		if m.done.err != nil && !m.done.result.Canceled {
			return header + "\n" + liveErrorStyle.Render("error: "+m.done.err.Error()) + "\n"
		}
		return header + "\n" + liveOKStyle.Render(fmt.Sprintf("done: %d clip(s), %d skipped", m.done.result.ClipsCreated, len(m.done.result.Skipped))) + "\n"
	}

	status := m.spinner.View() + " " + m.status
	if m.stopping {
		status += liveErrorStyle.Render("  stopping after the current step")
	}
	body := []string{status}
	if m.phase != livePhasePreparing {
		body = append(body, m.bar.ViewAs(m.percent/100))
	}
	logs := make([]string, 0, len(m.lines))
	for _, l := range m.lines {
		logs = append(logs, truncateLine(l, max(20, m.width-6)))
	}
	if len(logs) > 0 {
		body = append(body, livePanelStyle.Render(liveMutedStyle.Render(strings.Join(logs, "\n"))))
	}
	footer := liveMutedStyle.Render(fmt.Sprintf("skipped so far: %d  |  ctrl+c/q: stop after the current step", m.skips))
	return lipgloss.JoinVertical(lipgloss.Left, header, lipgloss.JoinVertical(lipgloss.Left, body...), footer) + "\n"
}

func truncateLine(s string, width int) string {
	r := []rune(s)
	if width <= 1 || len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}

// teaSink forwards pipeline events into the bubbletea program; Send is safe
// to call from the pipeline goroutine.
type teaSink struct {
	p *tea.Program
}

func (s teaSink) Log(line string) {
	s.p.Send(liveLogMsg(line))
}

func (s teaSink) Progress(percent float64) {
	s.p.Send(liveProgressMsg(percent))
}

func (s teaSink) ToolOutput(_ toolrun.OutputStream, line string) {
	if pct, ok := downloadPercent(line); ok {
		s.p.Send(liveDownloadMsg(pct))
	}
}

// runLive runs the pipeline on a goroutine while the live view owns the
// terminal. It always waits for the pipeline to return.
func runLive(ctx context.Context, opts pipeline.Options) (model.RunResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newLiveModel(opts.PlaylistURL, cancel))
	opts.Sink = teaSink{p: p}

	done := make(chan liveDoneMsg, 1)
	go func() {
		res, err := pipeline.Run(ctx, opts)
		msg := liveDoneMsg{result: res, err: err}
		done <- msg
		p.Send(msg)
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		out := <-done
		if out.err == nil {
			out.err = fmt.Errorf("live view: %w", err)
		}
		return out.result, out.err
	}
	out := <-done
	return out.result, out.err
}
