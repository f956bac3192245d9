// Package watch is a terminal UI that polls the admin endpoint of a
// running pipeline and renders its status.
package watch

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"fieldops-sim/internal/orchestrator"
)

const pollInterval = 2 * time.Second

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Width(12)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// statusMsg carries a successful poll result.
type statusMsg struct{ status orchestrator.Status }

// pollErrMsg carries a failed poll.
type pollErrMsg struct{ err error }

// tickMsg schedules the next poll.
type tickMsg struct{}

// triggeredMsg reports that a manual run was requested.
type triggeredMsg struct{}

type model struct {
	baseURL   string
	client    *http.Client
	spinner   spinner.Model
	status    orchestrator.Status
	havePoll  bool
	pollErr   error
	triggered bool
}

func newModel(baseURL string) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	return model{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
		spinner: sp,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.poll)
}

func (m model) poll() tea.Msg {
	resp, err := m.client.Get(m.baseURL + "/status")
	if err != nil {
		return pollErrMsg{err: err}
	}
	defer resp.Body.Close()

	var status orchestrator.Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return pollErrMsg{err: err}
	}
	return statusMsg{status: status}
}

func (m model) runOnce() tea.Msg {
	resp, err := m.client.Post(m.baseURL+"/run-once", "application/json", nil)
	if err != nil {
		return pollErrMsg{err: err}
	}
	resp.Body.Close()
	return triggeredMsg{}
}

func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, m.runOnce
		}
	case statusMsg:
		m.status = msg.status
		m.havePoll = true
		m.pollErr = nil
		m.triggered = false
		return m, tick()
	case pollErrMsg:
		m.pollErr = msg.err
		return m, tick()
	case tickMsg:
		return m, m.poll
	case triggeredMsg:
		m.triggered = true
		return m, m.poll
	default:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) View() string {
	s := titleStyle.Render("fieldops-sim") + "  " + m.baseURL + "\n\n"

	switch {
	case m.pollErr != nil:
		s += errStyle.Render("unreachable: "+m.pollErr.Error()) + "\n"
	case !m.havePoll:
		s += m.spinner.View() + " connecting\n"
	default:
		running := errStyle.Render("stopped")
		if m.status.Running {
			running = okStyle.Render("running")
		}
		s += labelStyle.Render("state") + running + "\n"
		s += labelStyle.Render("cycles") + fmt.Sprintf("%d", m.status.Cycles) + "\n"
		if !m.status.LastCycle.IsZero() {
			s += labelStyle.Render("last cycle") + m.status.LastCycle.Format(time.RFC3339) + "\n"
		}
		if m.status.LastError != "" {
			s += labelStyle.Render("last error") + errStyle.Render(m.status.LastError) + "\n"
		}
		if m.triggered {
			s += okStyle.Render("cycle requested") + "\n"
		}
	}

	s += "\n" + helpStyle.Render("r run cycle now · q quit")
	return s
}

// Run starts the watcher against the given admin base URL and blocks until
// the user quits.
func Run(baseURL string) error {
	p := tea.NewProgram(newModel(baseURL))
	_, err := p.Run()
	return err
}
