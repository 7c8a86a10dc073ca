package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/gpu-runtime/intrinsics"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	irStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const pageSize = 15

type browserState int

const (
	stateList browserState = iota
	stateFragment
)

type browserModel struct {
	sess     *intrinsics.Session
	all      []*intrinsics.Intrinsic
	visible  []*intrinsics.Intrinsic
	filter   textinput.Model
	selected int
	state    browserState
	fragment string
	err      error
}

func newBrowserModel(sess *intrinsics.Session, entries []*intrinsics.Intrinsic) *browserModel {
	ti := textinput.New()
	ti.Prompt = "filter: "
	ti.Placeholder = "name or family"
	ti.Width = 30
	ti.Focus()
	return &browserModel{
		sess:    sess,
		all:     entries,
		visible: entries,
		filter:  ti,
		state:   stateList,
	}
}

type fragmentMsg struct {
	err  error
	text string
}

func (m *browserModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *browserModel) emit() tea.Msg {
	if len(m.visible) == 0 {
		return fragmentMsg{err: fmt.Errorf("no intrinsic selected")}
	}
	frag, err := m.sess.EmitFragment(m.visible[m.selected].Name)
	if err != nil {
		return fragmentMsg{err: err}
	}
	return fragmentMsg{text: frag.String()}
}

func (m *browserModel) applyFilter() {
	q := strings.ToLower(strings.TrimSpace(m.filter.Value()))
	if q == "" {
		m.visible = m.all
	} else {
		m.visible = m.visible[:0:0]
		for _, in := range m.all {
			if strings.Contains(in.Name, q) || strings.Contains(string(in.Family), q) {
				m.visible = append(m.visible, in)
			}
		}
	}
	if m.selected >= len(m.visible) {
		m.selected = max(len(m.visible)-1, 0)
	}
}

func (m *browserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "up":
			if m.state == stateList && m.selected > 0 {
				m.selected--
			}
			return m, nil

		case "down":
			if m.state == stateList && m.selected < len(m.visible)-1 {
				m.selected++
			}
			return m, nil

		case "enter":
			if m.state == stateList {
				return m, m.emit
			}
			m.state = stateList
			return m, nil

		case "esc":
			if m.state == stateFragment {
				m.state = stateList
				m.fragment = ""
				m.err = nil
				return m, nil
			}
			return m, tea.Quit
		}

	case fragmentMsg:
		m.fragment = msg.text
		m.err = msg.err
		m.state = stateFragment
		return m, nil
	}

	if m.state != stateList {
		return m, nil
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.applyFilter()
	return m, cmd
}

func (m *browserModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Intrinsic Catalog"))
	t := m.sess.Target()
	fmt.Fprintf(&b, " %s, shuffle %s\n\n", t.Name, m.sess.ShuffleForm())

	switch m.state {
	case stateList:
		b.WriteString(m.filter.View())
		b.WriteString("\n\n")
		start := 0
		if m.selected >= pageSize {
			start = m.selected - pageSize + 1
		}
		end := min(start+pageSize, len(m.visible))
		for i := start; i < end; i++ {
			line := m.formatEntry(m.visible[i])
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "\n%d of %d\n", len(m.visible), len(m.all))
		b.WriteString(helpStyle.Render("type to filter • ↑/↓ select • enter emit • esc quit"))

	case stateFragment:
		in := m.visible[m.selected]
		fmt.Fprintf(&b, "%s lowers to:\n\n", nameStyle.Render(in.Name))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(irStyle.Render(m.fragment))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter/esc back • ctrl+c quit"))
	}

	return b.String()
}

func (m *browserModel) formatEntry(in *intrinsics.Intrinsic) string {
	return nameStyle.Render(in.Name) + " " + typeStyle.Render(signature(in))
}

func runInteractive(sess *intrinsics.Session, entries []*intrinsics.Intrinsic) error {
	p := tea.NewProgram(newBrowserModel(sess, entries), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
