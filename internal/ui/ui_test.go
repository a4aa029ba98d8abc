package ui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func press(t *testing.T, m tea.Model, msgs ...tea.Msg) tea.Model {
	t.Helper()
	for _, msg := range msgs {
		m, _ = m.Update(msg)
	}
	return m
}

func TestSelectModelChoosesHighlightedItem(t *testing.T) {
	m := press(t, newSelectModel("Pick", []string{"Naruto", "Bleach", "One Piece"}),
		tea.WindowSizeMsg{Width: 80, Height: 20},
		tea.KeyMsg{Type: tea.KeyDown},
		tea.KeyMsg{Type: tea.KeyEnter},
	)

	sm, ok := m.(selectModel)
	require.True(t, ok)
	assert.Equal(t, 1, sm.choice)
}

func TestSelectModelCancel(t *testing.T) {
	m := press(t, newSelectModel("Pick", []string{"Naruto"}),
		tea.WindowSizeMsg{Width: 80, Height: 20},
		tea.KeyMsg{Type: tea.KeyEsc},
	)

	assert.Equal(t, -1, m.(selectModel).choice)
}

func TestSelectRejectsEmpty(t *testing.T) {
	_, err := Select("Pick", nil)
	assert.Error(t, err)
}

func TestInputModel(t *testing.T) {
	m := press(t, newInputModel("Search"),
		tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("frieren")},
		tea.KeyMsg{Type: tea.KeyEnter},
	)

	im := m.(inputModel)
	assert.True(t, im.done)
	assert.False(t, im.cancelled)
	assert.Equal(t, "frieren", im.input.Value())
}

func TestInputModelCancel(t *testing.T) {
	m := press(t, newInputModel("Search"), tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.True(t, m.(inputModel).cancelled)
}
