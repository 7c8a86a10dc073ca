package main

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/gpu-runtime/intrinsics"
	"github.com/wippyai/gpu-runtime/target"
)

func newBrowser(t *testing.T) *browserModel {
	t.Helper()
	tgt, err := target.GetTarget("sm_70")
	require.NoError(t, err)
	entries, err := catalogEntries("")
	require.NoError(t, err)
	return newBrowserModel(intrinsics.NewSession(tgt), entries)
}

func TestBrowserFilterAndEmit(t *testing.T) {
	m := newBrowser(t)
	assert.Len(t, m.visible, intrinsics.Default().Len())

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("shfl_idx")})
	require.Len(t, m.visible, 6)
	assert.Equal(t, "shfl_idx_i32", m.visible[0].Name)

	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 2, m.selected)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	m.Update(cmd())
	assert.Equal(t, stateFragment, m.state)
	require.NoError(t, m.err)
	assert.Contains(t, m.fragment, "@llvm.nvvm.shfl.sync.idx.f32")
	assert.Contains(t, m.View(), "lowers to")

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, stateList, m.state)
	assert.Contains(t, m.View(), "6 of 60")
}

func TestBrowserEmptyFilter(t *testing.T) {
	m := newBrowser(t)
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("zzz")})
	assert.Empty(t, m.visible)
	assert.Equal(t, 0, m.selected)

	msg := m.emit()
	fm, ok := msg.(fragmentMsg)
	require.True(t, ok)
	assert.Error(t, fm.err)
}

func TestBrowserQuit(t *testing.T) {
	m := newBrowser(t)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
