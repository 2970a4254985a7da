package session

import (
	"context"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/raibid-labs/scarab/pane"
)

func shSpawner(cols, rows int) (*pane.Pane, error) {
	return pane.New(0, []string{"/bin/sh"}, nil, "", cols, rows, "", nil)
}

func TestNewTabStartsWithOnePane(t *testing.T) {
	tab, err := NewTab(1, "main", 40, 10, shSpawner)
	assert.NilError(t, err)
	defer tab.CloseAll(context.Background())

	assert.Equal(t, tab.PaneCount(), 1)
	active, ok := tab.GetActivePane()
	assert.Assert(t, ok)
	assert.Equal(t, active.ID, uint64(1))
}

func TestSplitPaneHalvesDimensions(t *testing.T) {
	tab, err := NewTab(1, "main", 80, 24, shSpawner)
	assert.NilError(t, err)
	defer tab.CloseAll(context.Background())

	entry, err := tab.SplitPane(SplitVertical, shSpawner)
	assert.NilError(t, err)
	cols, rows := entry.Dimensions()
	assert.Equal(t, cols, 40)
	assert.Equal(t, rows, 24)
	assert.Equal(t, tab.PaneCount(), 2)
}

func TestCannotCloseLastPane(t *testing.T) {
	tab, err := NewTab(1, "main", 40, 10, shSpawner)
	assert.NilError(t, err)
	defer tab.CloseAll(context.Background())

	err = tab.ClosePane(context.Background(), tab.ActivePaneID())
	assert.ErrorContains(t, err, "cannot close the last pane")
}

func TestClosePaneReassignsActive(t *testing.T) {
	tab, err := NewTab(1, "main", 40, 10, shSpawner)
	assert.NilError(t, err)
	defer tab.CloseAll(context.Background())

	entry, err := tab.SplitPane(SplitHorizontal, shSpawner)
	assert.NilError(t, err)

	err = tab.ClosePane(context.Background(), tab.ActivePaneID())
	assert.NilError(t, err)
	assert.Equal(t, tab.ActivePaneID(), entry.ID)
}

func TestSetActivePaneRejectsUnknown(t *testing.T) {
	tab, err := NewTab(1, "main", 40, 10, shSpawner)
	assert.NilError(t, err)
	defer tab.CloseAll(context.Background())

	err = tab.SetActivePane(999)
	assert.ErrorContains(t, err, "not found")
}
