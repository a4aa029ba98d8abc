// Package ui provides the interactive terminal pickers. Everything renders
// to stderr so stdout stays free for SQL output.
package ui

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// ErrCancelled is returned when the user quits a prompt without choosing.
var ErrCancelled = errors.New("selection cancelled")

var (
	accent     = lipgloss.Color("#0E7490")
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(accent).
			Padding(0, 1)
	selectedStyle = lipgloss.NewStyle().
			Border(lipgloss.ThickBorder(), false, false, false, true).
			BorderForeground(accent).
			Foreground(accent).
			Padding(0, 0, 0, 1)
)

// IsInteractive reports whether both stdin and stderr are terminals.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stderr.Fd()))
}

type item struct {
	title string
	index int
}

func (i item) Title() string       { return i.title }
func (i item) Description() string { return "" }
func (i item) FilterValue() string { return i.title }

type selectModel struct {
	list   list.Model
	choice int
}

func newSelectModel(prompt string, items []string) selectModel {
	listItems := make([]list.Item, len(items))
	for i, it := range items {
		listItems[i] = item{title: it, index: i}
	}

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = false
	delegate.SetSpacing(0)
	delegate.Styles.SelectedTitle = selectedStyle

	l := list.New(listItems, delegate, 0, 0)
	l.Title = prompt
	l.Styles.Title = titleStyle
	l.SetShowStatusBar(false)

	return selectModel{list: l, choice: -1}
}

func (m selectModel) Init() tea.Cmd { return nil }

func (m selectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "enter":
			if it, ok := m.list.SelectedItem().(item); ok {
				m.choice = it.index
			}
			return m, tea.Quit
		case "ctrl+c", "esc", "q":
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m selectModel) View() string {
	return m.list.View()
}

// Select presents items in a filterable list and returns the chosen index.
func Select(prompt string, items []string) (int, error) {
	if len(items) == 0 {
		return -1, fmt.Errorf("no items to select from")
	}

	final, err := tea.NewProgram(newSelectModel(prompt, items), tea.WithOutput(os.Stderr), tea.WithAltScreen()).Run()
	if err != nil {
		return -1, fmt.Errorf("running picker: %w", err)
	}

	m, ok := final.(selectModel)
	if !ok || m.choice < 0 {
		return -1, ErrCancelled
	}
	return m.choice, nil
}

// Confirm asks the user a yes/no question.
func Confirm(prompt string) (bool, error) {
	idx, err := Select(prompt, []string{"Yes", "No"})
	if err != nil {
		return false, err
	}
	return idx == 0, nil
}

type inputModel struct {
	input     textinput.Model
	done      bool
	cancelled bool
}

func newInputModel(prompt string) inputModel {
	ti := textinput.New()
	ti.Prompt = titleStyle.Render(prompt) + " "
	ti.Placeholder = "type and press enter"
	ti.CharLimit = 120
	ti.Focus()
	return inputModel{input: ti}
}

func (m inputModel) Init() tea.Cmd { return textinput.Blink }

func (m inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.Type {
		case tea.KeyEnter:
			m.done = true
			return m, tea.Quit
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancelled = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m inputModel) View() string {
	return m.input.View() + "\n"
}

// Input prompts the user for a line of free text.
func Input(prompt string) (string, error) {
	final, err := tea.NewProgram(newInputModel(prompt), tea.WithOutput(os.Stderr)).Run()
	if err != nil {
		return "", fmt.Errorf("running prompt: %w", err)
	}

	m, ok := final.(inputModel)
	if !ok || m.cancelled {
		return "", ErrCancelled
	}
	query := strings.TrimSpace(m.input.Value())
	if query == "" {
		return "", fmt.Errorf("no input provided")
	}
	return query, nil
}
