package terminal

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
)

const defaultWidth = 80

type styles struct {
	title     lipgloss.Style
	label     lipgloss.Style
	user      lipgloss.Style
	assistant lipgloss.Style
	status    lipgloss.Style
	help      lipgloss.Style
}

func newStyles() styles {
	primary := lipgloss.Color("#00ff9f")
	dim := lipgloss.Color("#6e7681")
	return styles{
		title:     lipgloss.NewStyle().Bold(true).Foreground(primary).Padding(0, 1),
		label:     lipgloss.NewStyle().Bold(true).Foreground(primary),
		user:      lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(dim).Padding(0, 1),
		assistant: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(primary).Padding(0, 1),
		status:    lipgloss.NewStyle().Foreground(primary),
		help:      lipgloss.NewStyle().Foreground(dim),
	}
}

type refreshMsg time.Time

type model struct {
	display  *Display
	spinner  spinner.Model
	styles   styles
	width    int
	texts    snapshot
	quitting bool
}

func newModel(display *Display) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return model{
		display: display,
		spinner: s,
		styles:  newStyles(),
		width:   defaultWidth,
		texts:   display.current(),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.refresh())
}

func (m model) refresh() tea.Cmd {
	return tea.Tick(m.display.refreshInterval, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m.quit()
		case tea.KeyRunes:
			if len(msg.Runes) == 1 && msg.Runes[0] == 'q' {
				return m.quit()
			}
		}

	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
		}

	case refreshMsg:
		m.texts = m.display.current()
		return m, m.refresh()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.display.quit()
	return m, tea.Quit
}

func (m model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	paneWidth := max(m.width-4, 20)
	maxLength := m.display.maxTextLength

	var b strings.Builder
	b.WriteString(m.styles.title.Render("EMA EDGE"))
	b.WriteString("\n\n")

	b.WriteString(m.styles.label.Render("You"))
	b.WriteString("\n")
	b.WriteString(m.styles.user.Width(paneWidth).Render(wordwrap.String(shorten(m.texts.user, maxLength), paneWidth-4)))
	b.WriteString("\n")

	b.WriteString(m.styles.label.Render("Assistant"))
	b.WriteString("\n")
	b.WriteString(m.styles.assistant.Width(paneWidth).Render(wordwrap.String(shorten(m.texts.assistant, maxLength), paneWidth-4)))
	b.WriteString("\n\n")

	status := m.texts.status
	if status == "" {
		status = "starting"
	}
	b.WriteString(m.spinner.View() + " " + m.styles.status.Render(status))
	b.WriteString("\n")
	b.WriteString(m.styles.help.Render("q/Ctrl+C=quit"))
	b.WriteString("\n")

	return b.String()
}

// shorten keeps the first maxLength characters of text and marks the cut
// with "...".
func shorten(text string, maxLength int) string {
	if maxLength <= 0 || lipgloss.Width(text) <= maxLength {
		return text
	}
	return truncate.String(text, uint(maxLength)) + "..."
}
