package viewer

import (
	"github.com/joeblew999/plat-walkmap/internal/humastar"
	"github.com/joeblew999/plat-walkmap/internal/walk"
)

// Signal names bound on the map page.
const (
	signalDest    = "dest"    // {"dest": {"parks": true, ...}} from data-bind checkboxes
	signalScheme  = "scheme"  // selected scheme ID
	signalFeature = "feature" // ID of the hovered feature, empty when none
)

// State is the per-request view state carried by Datastar signals.
type State struct {
	Selection walk.Selection
	Scheme    string
	Feature   string
}

func parseState(signals humastar.Signals) State {
	return State{
		Selection: walk.NewSelection(signals.Checked(signalDest)...),
		Scheme:    signals.String(signalScheme),
		Feature:   signals.String(signalFeature),
	}
}

// destSignals builds the dest signal object with every destination present,
// so unchecked boxes bind to false rather than undefined.
func destSignals(names []string, sel walk.Selection) map[string]bool {
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[n] = false
	}
	for _, n := range sel {
		out[n] = true
	}
	return out
}
