package session

import (
	"fmt"
	"math/rand/v2"
)

// adjectives and nouns generate a default session name when the caller
// doesn't supply one, per spec.md §4.5's "default session" behavior.
// Grounded on _examples/seruman-hauntty/internal/daemon/namegen.go,
// retitled for the terminal-emulator domain rather than hauntty's
// ghost theme.
var adjectives = []string{
	"amber", "quiet", "swift", "bright", "quartz",
	"copper", "cobalt", "violet", "crimson", "marble",
	"gilded", "rapid", "steady", "cedar", "granite",
	"indigo", "olive", "maroon", "russet", "teal",
	"jade", "slate", "bronze", "ivory", "auburn",
	"coral", "opal", "sable", "pewter", "linen",
}

var nouns = []string{
	"terminal", "shell", "pane", "cursor", "grid",
	"scroll", "socket", "buffer", "signal", "cable",
	"relay", "anchor", "beacon", "compass", "harbor",
	"summit", "bridge", "orbit", "vector", "prism",
	"circuit", "lattice", "current", "channel", "spindle",
	"forge", "hearth", "thicket", "meadow", "ridge",
}

func generateName() string {
	adj := adjectives[rand.IntN(len(adjectives))]
	noun := nouns[rand.IntN(len(nouns))]
	return adj + "-" + noun
}

func generateUniqueName(existing map[string]bool) string {
	for range 100 {
		name := generateName()
		if !existing[name] {
			return name
		}
	}
	name := generateName()
	return fmt.Sprintf("%s-%d", name, rand.IntN(1000))
}
