package hunt

import (
	"fmt"
	"strings"

	"github.com/ConserveLee/cavebot/internal/engine/state"
)

// FormatStatus renders the status line shown under the controls
func FormatStatus(s state.Snapshot) string {
	if !s.Running {
		return "Status: Stopped"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "HP %.0f%%  Mana %.0f%%", s.HP, s.Mana)

	switch {
	case s.Loot.Active:
		b.WriteString("  | looting")
	case s.Combat.CurrentlyAttacking:
		b.WriteString("  | attacking")
	case s.Combat.EnemyInBattleList:
		b.WriteString("  | enemy")
	default:
		fmt.Fprintf(&b, "  | walking to wp %d", s.WaypointIndex+1)
	}

	if !s.Position.UpdatedAt.IsZero() {
		fmt.Fprintf(&b, "  @ %s", s.Position.Position)
	}
	if s.Unreachable > 0 {
		fmt.Fprintf(&b, "  (%d blacklisted)", s.Unreachable)
	}
	return b.String()
}
