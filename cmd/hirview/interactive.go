package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	stageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	matchStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#000000")).
			Background(lipgloss.Color("#FFD700"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444"))
)

const listWidth = 26

type browserModel struct {
	title    string
	stages   []snapshot
	view     viewport.Model
	search   textinput.Model
	selected int
	width    int
	height   int
	ready    bool
	typing   bool
}

func newBrowserModel(title string, stages []snapshot, width, height int) *browserModel {
	ti := textinput.New()
	ti.Prompt = "/"
	ti.Placeholder = "search"
	ti.Width = 30

	m := &browserModel{title: title, stages: stages, search: ti}
	if len(stages) > 0 {
		m.selected = len(stages) - 1
	}
	m.resize(width, height)
	return m
}

func (m *browserModel) Init() tea.Cmd {
	return nil
}

func (m *browserModel) resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	m.width, m.height = width, height
	w := width - listWidth - 4
	h := height - 5
	if w < 10 {
		w = 10
	}
	if h < 3 {
		h = 3
	}
	if !m.ready {
		m.view = viewport.New(w, h)
		m.ready = true
	} else {
		m.view.Width, m.view.Height = w, h
	}
	m.refresh()
}

// refresh loads the selected stage into the viewport, marking lines that
// contain the search text.
func (m *browserModel) refresh() {
	if !m.ready || len(m.stages) == 0 {
		return
	}
	s := m.stages[m.selected]
	text := s.text
	if s.name == "error" {
		text = errorStyle.Render(text)
	} else if q := m.search.Value(); q != "" {
		lines := strings.Split(text, "\n")
		for i, l := range lines {
			if strings.Contains(l, q) {
				lines[i] = matchStyle.Render(l)
			}
		}
		text = strings.Join(lines, "\n")
	}
	m.view.SetContent(text)
	m.view.GotoTop()
}

func (m *browserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		if m.typing {
			switch msg.String() {
			case "enter", "esc":
				m.typing = false
				m.search.Blur()
				if msg.String() == "esc" {
					m.search.SetValue("")
				}
				m.refresh()
				return m, nil
			}
			var cmd tea.Cmd
			m.search, cmd = m.search.Update(msg)
			m.refresh()
			return m, cmd
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "up", "k":
			if m.selected > 0 {
				m.selected--
				m.refresh()
			}
			return m, nil

		case "down", "j":
			if m.selected < len(m.stages)-1 {
				m.selected++
				m.refresh()
			}
			return m, nil

		case "/":
			m.typing = true
			return m, m.search.Focus()
		}
	}

	var cmd tea.Cmd
	m.view, cmd = m.view.Update(msg)
	return m, cmd
}

func (m *browserModel) View() string {
	if !m.ready {
		return "Loading..."
	}

	var list strings.Builder
	for i, s := range m.stages {
		label := fmt.Sprintf("%2d %s", i+1, s.name)
		if len(label) > listWidth-2 {
			label = label[:listWidth-2]
		}
		if i == m.selected {
			list.WriteString(selectedStyle.Width(listWidth - 2).Render(label))
		} else {
			list.WriteString(stageStyle.Render(label))
		}
		list.WriteString("\n")
	}

	left := paneStyle.Width(listWidth - 2).Height(m.view.Height).Render(list.String())
	right := paneStyle.Render(m.view.View())

	var b strings.Builder
	b.WriteString(titleStyle.Render("HIR Stages"))
	b.WriteString(" ")
	b.WriteString(m.title)
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right))
	b.WriteString("\n")
	if m.typing || m.search.Value() != "" {
		b.WriteString(m.search.View())
		b.WriteString("  ")
	}
	b.WriteString(helpStyle.Render(fmt.Sprintf("↑/↓ stage • pgup/pgdn scroll • / search • q quit  %3.f%%", m.view.ScrollPercent()*100)))
	return b.String()
}

func runInteractive(title string, stages []snapshot) error {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return fmt.Errorf("interactive mode needs a terminal on stdout")
	}
	width, height, err := term.GetSize(fd)
	if err != nil {
		width, height = 100, 30
	}
	p := tea.NewProgram(newBrowserModel(title, stages, width, height), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
