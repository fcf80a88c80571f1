// Package state holds the game facts shared by all bot modules.
package state

import (
	"fmt"
	"time"

	"github.com/ConserveLee/cavebot/internal/constants"
	"github.com/sasha-s/go-deadlock"
)

// Position is a world coordinate
type Position struct {
	X, Y, Z int
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d,%d)", p.X, p.Y, p.Z)
}

// Sample is one entry of the position history
type Sample struct {
	At       time.Time
	Position Position
}

// PositionInfo is the current position with the time it was read
type PositionInfo struct {
	Position  Position
	UpdatedAt time.Time // zero until the first read
}

// CombatInfo groups the fields written by Combat
type CombatInfo struct {
	EnemyInBattleList  bool
	CurrentlyAttacking bool
}

// LootInfo groups the handoff flags
type LootInfo struct {
	Pending bool
	Active  bool
}

// Snapshot is a consistent copy of the whole state
type Snapshot struct {
	Running       bool
	HP            float64
	Mana          float64
	Position      PositionInfo
	LastMovedAt   time.Time
	Combat        CombatInfo
	Loot          LootInfo
	WaypointIndex int
	Unreachable   int // live blacklist entries
}

// GameState is the single mutable aggregate shared by the modules.
// All access goes through its methods. Once Stop is called, mutators are no-ops.
type GameState struct {
	mu  deadlock.Mutex
	now func() time.Time

	running bool

	hp   float64
	mana float64

	position          Position
	positionUpdatedAt time.Time
	history           []Sample
	lastMovedAt       time.Time

	enemyInBattleList  bool
	currentlyAttacking bool
	unreachable        map[Position]time.Time

	lootPending   bool
	lootingActive bool

	waypointIndex int
}

// Option configures a GameState
type Option func(*GameState)

// WithClock replaces time.Now (tests)
func WithClock(now func() time.Time) Option {
	return func(s *GameState) { s.now = now }
}

// New creates a running state with empty history and blacklist
func New(opts ...Option) *GameState {
	s := &GameState{
		now:         time.Now,
		running:     true,
		unreachable: make(map[Position]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lastMovedAt = s.now()
	return s
}

// Running reports the liveness flag
func (s *GameState) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stop clears the liveness flag. It is the only teardown signal.
func (s *GameState) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
}

// mutate runs fn under the lock if the state is still running
func (s *GameState) mutate(fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return false
	}
	fn()
	return true
}

// Resources

func (s *GameState) SetHP(pct float64)   { s.mutate(func() { s.hp = pct }) }
func (s *GameState) SetMana(pct float64) { s.mutate(func() { s.mana = pct }) }

// Position

// UpdatePosition records a position read. lastMovedAt only advances when it differs from the previous one.
func (s *GameState) UpdatePosition(p Position) {
	s.mutate(func() {
		now := s.now()
		if p != s.position {
			s.lastMovedAt = now
		}
		s.position = p
		s.positionUpdatedAt = now
		s.history = append(s.history, Sample{At: now, Position: p})
		if len(s.history) > constants.PositionHistorySize {
			s.history = s.history[len(s.history)-constants.PositionHistorySize:]
		}
	})
}

// MarkMoved records motion observed without coordinates
func (s *GameState) MarkMoved() {
	s.mutate(func() { s.lastMovedAt = s.now() })
}

// Position returns the current position and when it was read
func (s *GameState) Position() PositionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return PositionInfo{Position: s.position, UpdatedAt: s.positionUpdatedAt}
}

// PositionStale reports whether the last position read is older than maxAge (or never happened)
func (s *GameState) PositionStale(maxAge time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.positionUpdatedAt.IsZero() {
		return true
	}
	return s.now().Sub(s.positionUpdatedAt) > maxAge
}

// SinceLastMove is the time since the position last changed
func (s *GameState) SinceLastMove() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now().Sub(s.lastMovedAt)
}

// SecondsSinceLastMove is SinceLastMove in seconds
func (s *GameState) SecondsSinceLastMove() float64 {
	return s.SinceLastMove().Seconds()
}

// History returns the position history, oldest first
func (s *GameState) History() []Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Sample(nil), s.history...)
}

// Reachability

// MarkUnreachable blacklists p for d
func (s *GameState) MarkUnreachable(p Position, d time.Duration) {
	s.mutate(func() { s.unreachable[p] = s.now().Add(d) })
}

// IsUnreachable reports whether p is blacklisted. Expired entries are evicted.
func (s *GameState) IsUnreachable(p Position) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isUnreachableLocked(p)
}

func (s *GameState) isUnreachableLocked(p Position) bool {
	expiry, ok := s.unreachable[p]
	if !ok {
		return false
	}
	if !s.now().Before(expiry) {
		delete(s.unreachable, p)
		return false
	}
	return true
}

// CurrentPositionUnreachable checks the blacklist for the current position.
// Without a fresh position read there is nothing to look up and it reports false.
func (s *GameState) CurrentPositionUnreachable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentUnreachableLocked()
}

func (s *GameState) currentUnreachableLocked() bool {
	if s.positionUpdatedAt.IsZero() || s.now().Sub(s.positionUpdatedAt) > constants.PositionStaleAfter {
		return false
	}
	return s.isUnreachableLocked(s.position)
}

// Combat

func (s *GameState) SetEnemy(present bool) { s.mutate(func() { s.enemyInBattleList = present }) }

func (s *GameState) SetAttacking(attacking bool) {
	s.mutate(func() { s.currentlyAttacking = attacking })
}

// Combat returns the combat flags
func (s *GameState) Combat() CombatInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return CombatInfo{EnemyInBattleList: s.enemyInBattleList, CurrentlyAttacking: s.currentlyAttacking}
}

// Loot handoff

// SetLootPending is the producer side of the handoff
func (s *GameState) SetLootPending(pending bool) { s.mutate(func() { s.lootPending = pending }) }

// BeginLooting sets lootingActive if loot is pending. It returns false otherwise.
func (s *GameState) BeginLooting() bool {
	started := false
	s.mutate(func() {
		if s.lootPending {
			s.lootingActive = true
			started = true
		}
	})
	return started
}

// FinishLooting clears both handoff flags
func (s *GameState) FinishLooting() {
	s.mutate(func() {
		s.lootPending = false
		s.lootingActive = false
	})
}

// Loot returns the handoff flags
func (s *GameState) Loot() LootInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return LootInfo{Pending: s.lootPending, Active: s.lootingActive}
}

// MovementBlocked reports whether navigation must yield.
// An enemy seen from a blacklisted position does not block, combat will not engage there.
// The exception needs a fresh position read; otherwise any enemy blocks.
func (s *GameState) MovementBlocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lootingActive {
		return true
	}
	return s.enemyInBattleList && !s.currentUnreachableLocked()
}

// Navigation

func (s *GameState) WaypointIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waypointIndex
}

func (s *GameState) SetWaypointIndex(i int) { s.mutate(func() { s.waypointIndex = i }) }

// Snapshot returns a consistent copy of every field
func (s *GameState) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	live := 0
	now := s.now()
	for _, expiry := range s.unreachable {
		if now.Before(expiry) {
			live++
		}
	}
	return Snapshot{
		Running:       s.running,
		HP:            s.hp,
		Mana:          s.mana,
		Position:      PositionInfo{Position: s.position, UpdatedAt: s.positionUpdatedAt},
		LastMovedAt:   s.lastMovedAt,
		Combat:        CombatInfo{EnemyInBattleList: s.enemyInBattleList, CurrentlyAttacking: s.currentlyAttacking},
		Loot:          LootInfo{Pending: s.lootPending, Active: s.lootingActive},
		WaypointIndex: s.waypointIndex,
		Unreachable:   live,
	}
}
