package hunt

import (
	"testing"
	"time"

	"github.com/ConserveLee/cavebot/internal/engine/state"
	"github.com/stretchr/testify/assert"
)

func TestFormatStatus(t *testing.T) {
	assert.Equal(t, "Status: Stopped", FormatStatus(state.Snapshot{HP: 50}))

	s := state.Snapshot{Running: true, HP: 82.4, Mana: 40, WaypointIndex: 2}
	assert.Equal(t, "HP 82%  Mana 40%  | walking to wp 3", FormatStatus(s))

	s.Combat = state.CombatInfo{EnemyInBattleList: true, CurrentlyAttacking: true}
	s.Position = state.PositionInfo{Position: state.Position{X: 1, Y: 2, Z: 7}, UpdatedAt: time.Now()}
	s.Unreachable = 1
	assert.Equal(t, "HP 82%  Mana 40%  | attacking  @ (1,2,7)  (1 blacklisted)", FormatStatus(s))

	s.Loot.Active = true
	assert.Contains(t, FormatStatus(s), "| looting")
}
