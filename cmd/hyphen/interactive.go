package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/hyphen"
	"github.com/wippyai/hyphen/descriptor"
	"github.com/wippyai/hyphen/witschema"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	classStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	tabStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateSelectType modelState = iota
	stateTypeExpr
	stateShowType
	stateInputValue
	stateShowResult
)

type view int

const (
	viewDescriptor view = iota
	viewListing
	viewWIT
	viewCount
)

var viewNames = [...]string{
	viewDescriptor: "descriptor",
	viewListing:    "routines",
	viewWIT:        "wit",
}

type interactiveModel struct {
	err      error
	session  *hyphen.Session
	current  *compiled
	opts     options
	result   string
	types    []string
	input    textinput.Model
	selected int
	view     view
	state    modelState
}

type loadedMsg struct {
	err     error
	session *hyphen.Session
	types   []string
}

type compiledMsg struct {
	err error
	c   *compiled
}

type encodedMsg struct {
	err    error
	result string
}

func newInteractiveModel(o options) *interactiveModel {
	return &interactiveModel{opts: o, state: stateSelectType}
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadSchema
}

func (m *interactiveModel) loadSchema() tea.Msg {
	s, err := load(m.opts)
	if err != nil {
		return loadedMsg{err: err}
	}
	var types []string
	for _, c := range s.Registry().Classes() {
		if !c.Generic() {
			types = append(types, c.Name)
		}
	}
	return loadedMsg{session: s, types: types}
}

func (m *interactiveModel) compileType(expr string) tea.Cmd {
	return func() tea.Msg {
		c, err := compile(m.session, expr)
		return compiledMsg{c: c, err: err}
	}
}

func (m *interactiveModel) encodeValue() tea.Msg {
	wire, err := encodeJSON(m.current, []byte(m.input.Value()))
	if err != nil {
		return encodedMsg{err: err}
	}
	back, err := decodeJSON(m.current, wire)
	if err != nil {
		return encodedMsg{err: err}
	}
	return encodedMsg{result: fmt.Sprintf("%d bytes\n%s\n\n%s", len(wire), hex.EncodeToString(wire), back)}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		typing := m.state == stateTypeExpr || m.state == stateInputValue
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			if !typing {
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateSelectType && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectType && m.selected < len(m.types)-1 {
				m.selected++
			}

		case "/":
			if m.state == stateSelectType {
				m.prepareInput("type: ", "Box<i32>")
				m.state = stateTypeExpr
				return m, nil
			}

		case "tab":
			if m.state == stateShowType {
				m.view = (m.view + 1) % viewCount
			}

		case "e":
			if m.state == stateShowType {
				m.prepareInput("value: ", "{...}")
				m.state = stateInputValue
				return m, nil
			}

		case "enter":
			switch m.state {
			case stateSelectType:
				if len(m.types) > 0 {
					return m, m.compileType(m.types[m.selected])
				}
			case stateTypeExpr:
				return m, m.compileType(m.input.Value())
			case stateInputValue:
				return m, m.encodeValue
			case stateShowResult:
				m.state = stateShowType
				m.result = ""
				m.err = nil
			}

		case "esc":
			switch m.state {
			case stateTypeExpr, stateShowType:
				m.state = stateSelectType
				m.err = nil
			case stateInputValue, stateShowResult:
				m.state = stateShowType
				m.result = ""
				m.err = nil
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.session = msg.session
		m.types = msg.types

	case compiledMsg:
		m.err = msg.err
		if msg.err == nil {
			m.current = msg.c
			m.view = viewDescriptor
			m.state = stateShowType
		}

	case encodedMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateTypeExpr || m.state == stateInputValue {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *interactiveModel) prepareInput(prompt, placeholder string) {
	ti := textinput.New()
	ti.Prompt = prompt
	ti.Placeholder = placeholder
	ti.Width = 60
	ti.Focus()
	m.input = ti
}

func (m *interactiveModel) View() string {
	if m.session == nil {
		if m.err != nil {
			return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
		}
		return "Loading schema..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Hyphen"))
	b.WriteString(" ")
	b.WriteString(m.opts.schemaFile)
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectType, stateTypeExpr:
		b.WriteString("Select a class to compile:\n\n")
		for i, name := range m.types {
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + name))
			} else {
				b.WriteString("  " + classStyle.Render(name))
			}
			b.WriteString("\n")
		}
		if m.state == stateTypeExpr {
			b.WriteString("\n")
			b.WriteString(m.input.View())
			b.WriteString("\n")
		}
		if m.err != nil {
			b.WriteString("\n")
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter compile • / type expression • q quit"))

	case stateShowType:
		b.WriteString(m.tabs())
		b.WriteString("\n\n")
		b.WriteString(m.viewBody())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab switch view • e encode a value • esc back • q quit"))

	case stateInputValue:
		b.WriteString(fmt.Sprintf("Encode a %s as JSON\n\n", classStyle.Render(m.current.desc.Name())))
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter encode • esc back"))

	case stateShowResult:
		b.WriteString(fmt.Sprintf("Encoded %s:\n\n", classStyle.Render(m.current.desc.Name())))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func (m *interactiveModel) tabs() string {
	parts := make([]string, viewCount)
	for v := range viewCount {
		if v == m.view {
			parts[v] = selectedStyle.Render(" " + viewNames[v] + " ")
		} else {
			parts[v] = tabStyle.Render(" " + viewNames[v] + " ")
		}
	}
	return classStyle.Render(m.current.desc.Name()) + "  " + strings.Join(parts, " ")
}

func (m *interactiveModel) viewBody() string {
	switch m.view {
	case viewListing:
		var b strings.Builder
		for _, r := range m.session.Routines() {
			b.WriteString(r.Listing())
			b.WriteString("\n")
		}
		return b.String()
	case viewWIT:
		typ, err := witschema.Map(m.current.desc)
		if err != nil {
			return errorStyle.Render(err.Error()) + "\n"
		}
		return witschema.Render(typ)
	}
	return descriptor.Describe(m.current.desc)
}

func runInteractive(o options) error {
	p := tea.NewProgram(newInteractiveModel(o), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
