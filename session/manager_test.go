package session

import (
	"context"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "scarab-test.db")
	st, err := OpenStore(dsn)
	assert.NilError(t, err)
	t.Cleanup(func() { st.Close() })

	factory := func(command []string, env []string, cwd string, navSocket string) PaneSpawner {
		return shSpawner
	}
	m := NewManager(st, "", factory, 0)
	t.Cleanup(func() { m.Close(context.Background()) })
	return m
}

func TestBootstrapCreatesDefaultSession(t *testing.T) {
	m := testManager(t)
	err := m.Bootstrap(context.Background())
	assert.NilError(t, err)

	sessions := m.ListSessions()
	assert.Equal(t, len(sessions), 1)
	assert.Equal(t, sessions[0].Name, "default")
}

func TestCreateSessionGeneratesUniqueName(t *testing.T) {
	m := testManager(t)
	s1, err := m.CreateSession(context.Background(), "", nil, nil, "")
	assert.NilError(t, err)
	assert.Assert(t, s1.Name != "")

	s2, err := m.CreateSession(context.Background(), "", nil, nil, "")
	assert.NilError(t, err)
	assert.Assert(t, s1.Name != s2.Name)
}

func TestCreateSessionIsIdempotentByName(t *testing.T) {
	m := testManager(t)
	s1, err := m.CreateSession(context.Background(), "work", nil, nil, "")
	assert.NilError(t, err)
	s2, err := m.CreateSession(context.Background(), "work", nil, nil, "")
	assert.NilError(t, err)
	assert.Equal(t, s1.ID, s2.ID)
}

func TestDeleteSessionRejectsLastSession(t *testing.T) {
	m := testManager(t)
	_, err := m.CreateSession(context.Background(), "only", nil, nil, "")
	assert.NilError(t, err)

	err = m.DeleteSession(context.Background(), "only")
	assert.ErrorContains(t, err, "cannot delete the last session")
}

func TestDeleteSessionRemovesExtra(t *testing.T) {
	m := testManager(t)
	_, err := m.CreateSession(context.Background(), "one", nil, nil, "")
	assert.NilError(t, err)
	_, err = m.CreateSession(context.Background(), "two", nil, nil, "")
	assert.NilError(t, err)

	err = m.DeleteSession(context.Background(), "two")
	assert.NilError(t, err)

	_, ok := m.GetSession("two")
	assert.Assert(t, !ok)
}

func TestRenameSession(t *testing.T) {
	m := testManager(t)
	_, err := m.CreateSession(context.Background(), "old-name", nil, nil, "")
	assert.NilError(t, err)

	err = m.RenameSession("old-name", "new-name")
	assert.NilError(t, err)

	s, ok := m.GetSession("new-name")
	assert.Assert(t, ok)
	assert.Equal(t, s.Name, "new-name")
}

func TestRenameSessionRejectsEmptyName(t *testing.T) {
	m := testManager(t)
	_, err := m.CreateSession(context.Background(), "keep-name", nil, nil, "")
	assert.NilError(t, err)

	err = m.RenameSession("keep-name", "")
	assert.ErrorContains(t, err, "must not be empty")

	s, ok := m.GetSession("keep-name")
	assert.Assert(t, ok)
	assert.Equal(t, s.Name, "keep-name")
}

func TestAttachDetachTracksClients(t *testing.T) {
	m := testManager(t)
	_, err := m.CreateSession(context.Background(), "sess", nil, nil, "")
	assert.NilError(t, err)

	sess, err := m.AttachSession("sess", "client-1")
	assert.NilError(t, err)
	assert.Equal(t, sess.AttachedClientCount(), 1)

	err = m.DetachSession("sess", "client-1")
	assert.NilError(t, err)
	assert.Equal(t, sess.AttachedClientCount(), 0)
}
