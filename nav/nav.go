// Package nav implements the navigation hint core: scanning the visible
// grid for URIs, assigning short labels to each match, and driving an
// input-consuming hint mode that opens the selected URI via a host-OS
// helper.
package nav

import (
	"os/exec"
	"regexp"
	"runtime"

	"github.com/raibid-labs/scarab/protocol"
)

// DefaultAlphabet is the label source used when a Mode's Alphabet is
// unset. Single letters are assigned first; once exhausted, two-letter
// combinations are drawn from the same alphabet (aa, as, ad, ...).
const DefaultAlphabet = "asdfghjkl"

// uriPattern matches http(s) URIs up to the first whitespace or
// terminal grid padding. It deliberately stays permissive about the
// path/query/fragment tail, matching what a user would visually
// recognize as "the rest of the URL".
var uriPattern = regexp.MustCompile(`https?://[^\s]+`)

// Hint is one discovered URI and the label a user types to open it.
type Hint struct {
	ID    int
	Label string
	URI   string
	Row   int
	Col   int
}

// Scan walks every visible row of state and returns one Hint per URI
// match, in discovery order (row-major, left to right), each assigned
// the next label drawn from alphabet (DefaultAlphabet if empty).
func Scan(state *protocol.SharedState, cols, rows int, alphabet string) []Hint {
	if alphabet == "" {
		alphabet = DefaultAlphabet
	}
	if cols > protocol.GridWidth {
		cols = protocol.GridWidth
	}
	if rows > protocol.GridHeight {
		rows = protocol.GridHeight
	}

	var hints []Hint
	for row := 0; row < rows; row++ {
		line := rowText(state, row, cols)
		for _, loc := range uriPattern.FindAllStringIndex(line, -1) {
			hints = append(hints, Hint{
				ID:    len(hints),
				Label: Label(len(hints), alphabet),
				URI:   line[loc[0]:loc[1]],
				Row:   row,
				Col:   loc[0],
			})
		}
	}
	return hints
}

// rowText renders one grid row as text, substituting a space for
// zero-codepoint (unwritten) cells so match offsets line up with
// column positions.
func rowText(state *protocol.SharedState, row, cols int) string {
	runes := make([]rune, cols)
	for col := 0; col < cols; col++ {
		c := state.Cells[protocol.CellIndex(row, col)]
		if c.Codepoint == 0 {
			runes[col] = ' '
			continue
		}
		runes[col] = rune(c.Codepoint)
	}
	return string(runes)
}

// Label returns the hint label for the n-th discovered match: single
// letters from alphabet first, then two-letter combinations once the
// alphabet is exhausted.
func Label(n int, alphabet string) string {
	if alphabet == "" {
		alphabet = DefaultAlphabet
	}
	if n < len(alphabet) {
		return string(alphabet[n])
	}
	n -= len(alphabet)
	first := alphabet[n/len(alphabet)]
	second := alphabet[n%len(alphabet)]
	return string([]byte{first, second})
}

// Mode holds the hints active since the last Activate, and consumes
// input until a label matches, Esc cancels, or a caller calls Exit.
// Alphabet picks the label source (config.NavConfig.HintChars);
// DefaultAlphabet is used when empty.
type Mode struct {
	Alphabet string

	hints  []Hint
	active bool
}

// Activate scans state and begins hint mode. Returns the overlay
// commands the caller should forward to the attached client — one
// DrawOverlay per hint.
func (m *Mode) Activate(state *protocol.SharedState, cols, rows int) []protocol.Message {
	m.hints = Scan(state, cols, rows, m.Alphabet)
	m.active = true

	msgs := make([]protocol.Message, 0, len(m.hints))
	for _, h := range m.hints {
		msgs = append(msgs, &protocol.DrawOverlay{
			ID:    uint64(h.ID),
			X:     uint16(h.Col),
			Y:     uint16(h.Row),
			Text:  h.Label,
			Style: protocol.DefaultOverlayStyle,
		})
	}
	return msgs
}

// Active reports whether hint mode is currently consuming input.
func (m *Mode) Active() bool { return m.active }

// Input feeds one input chunk to an active hint mode. It returns
// (uri, true) when a label was matched and the caller should open uri.
// The caller calls Exit after a match or an Esc; any other input while
// active is simply swallowed and hint mode stays active.
func (m *Mode) Input(b []byte) (uri string, matched bool) {
	if !m.active || len(b) == 0 {
		return "", false
	}
	if b[0] == 0x1b { // Esc cancels
		return "", false
	}
	label := string(b)
	for _, h := range m.hints {
		if h.Label == label {
			return h.URI, true
		}
	}
	return "", false
}

// Exit clears hint state and returns the overlay-clear command the
// caller should forward to the attached client.
func (m *Mode) Exit() protocol.Message {
	m.hints = nil
	m.active = false
	return &protocol.ClearOverlays{}
}

// Open launches the host OS's preferred handler for uri. Unsupported
// platforms return an error rather than silently doing nothing.
func Open(uri string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", uri)
	case "linux":
		cmd = exec.Command("xdg-open", uri)
	default:
		return errUnsupportedPlatform{goos: runtime.GOOS}
	}
	return cmd.Start()
}

type errUnsupportedPlatform struct{ goos string }

func (e errUnsupportedPlatform) Error() string {
	return "nav: no URI handler known for GOOS " + e.goos
}
