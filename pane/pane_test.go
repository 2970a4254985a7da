package pane

import (
	"context"
	"strings"
	"testing"
	"time"

	"gotest.tools/v3/assert"
)

func waitForOutput(t *testing.T, p *Pane, substr string, timeout time.Duration) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		dump := p.Term.DumpScreen(0)
		if strings.Contains(dump.Text, substr) {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %q in screen: %q", substr, dump.Text)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestNewRunsShellAndFeedsOutput(t *testing.T) {
	p, err := New(1, []string{"/bin/sh", "-c", "echo hello-pane"}, nil, "", 40, 10, "", nil)
	assert.NilError(t, err)
	defer p.Close(context.Background())

	waitForOutput(t, p, "hello-pane", 2*time.Second)
}

func TestWriteForwardsToShell(t *testing.T) {
	p, err := New(2, []string{"/bin/sh"}, nil, "", 40, 10, "", nil)
	assert.NilError(t, err)
	defer p.Close(context.Background())

	err = p.Write([]byte("echo from-write\n"))
	assert.NilError(t, err)

	waitForOutput(t, p, "from-write", 2*time.Second)
}

func TestResizeUpdatesDimensions(t *testing.T) {
	p, err := New(3, []string{"/bin/sh"}, nil, "", 40, 10, "", nil)
	assert.NilError(t, err)
	defer p.Close(context.Background())

	err = p.Resize(80, 24)
	assert.NilError(t, err)
	cols, rows := p.Term.Dimensions()
	assert.Equal(t, cols, 80)
	assert.Equal(t, rows, 24)
}

func TestCloseEndsReadLoop(t *testing.T) {
	p, err := New(4, []string{"/bin/sh"}, nil, "", 40, 10, "", nil)
	assert.NilError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = p.Close(ctx)
	assert.NilError(t, err)

	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("pane did not signal done after close")
	}
}

func TestResolveShellPrefersExplicitCommand(t *testing.T) {
	got := resolveShell([]string{"/usr/bin/zsh", "-l"}, nil)
	assert.DeepEqual(t, got, []string{"/usr/bin/zsh", "-l"})
}

func TestResolveShellFallsBackToEnv(t *testing.T) {
	got := resolveShell(nil, []string{"SHELL=/bin/bash"})
	assert.DeepEqual(t, got, []string{"/bin/bash"})
}
