// Package game holds the turn state machine for one lobby: roster and turn
// rotation, the active kana pattern, guess validation and win detection.
// A Session is not safe for concurrent use; the owning lobby goroutine is
// its single writer.
package game

import (
	"math/rand"
	"strings"
	"time"

	"github.com/kanabomb/server/internal/kana"
	"github.com/kanabomb/server/internal/words"
)

// User-facing rejection messages, surfaced through the last_error snapshot
// field rather than Go errors.
const (
	MsgWrongPattern = "Incorrect pattern"
	MsgUnknownWord  = "Word does not exist"
	MsgAlreadyUsed  = "Word already used"
)

const (
	defaultLives     = 3
	defaultTimeLimit = 3 * time.Second
	defaultTurns     = 2

	// streakStart puts the streak one below zero so the advance baked into
	// StartGame does not count as a wrong turn.
	streakStart = -1
)

// Session is the authoritative game state for one lobby.
type Session struct {
	players []*Player
	queue   []*Player

	dict       words.Dictionary
	patterns   words.Patterns
	patternSet words.PatternSet

	turnIndex      int
	currentPattern string
	usedWords      map[string]struct{}

	// wrongGuesses counts turns since the last pattern change; patternStale
	// marks that a correct guess already forced a change, so the next
	// advance regenerates regardless of the count.
	wrongGuesses int
	patternStale bool

	turnStart   time.Time
	timeLimit   time.Duration
	startLives  int
	turnsBefore int

	active    bool
	lastError string
	winner    *Player

	now  func() time.Time
	intn func(int) int
}

// Option overrides a Session collaborator, used by tests to pin down the
// otherwise non-deterministic pattern pick and clock.
type Option func(*Session)

func WithRand(intn func(int) int) Option {
	return func(s *Session) { s.intn = intn }
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// NewSession creates an inactive session with default settings, drawing
// patterns from the easy tier until changed.
func NewSession(dict words.Dictionary, patterns words.Patterns, opts ...Option) *Session {
	s := &Session{
		dict:         dict,
		patterns:     patterns,
		patternSet:   patterns.ForTier(words.TierEasy),
		usedWords:    make(map[string]struct{}),
		wrongGuesses: streakStart,
		timeLimit:    defaultTimeLimit,
		startLives:   defaultLives,
		turnsBefore:  defaultTurns,
		now:          time.Now,
		intn:         rand.Intn,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) Active() bool       { return s.active }
func (s *Session) Pattern() string    { return s.currentPattern }
func (s *Session) LastError() string  { return s.lastError }
func (s *Session) Winner() *Player    { return s.winner }
func (s *Session) StartingLives() int { return s.startLives }
func (s *Session) PlayerCount() int   { return len(s.players) }

// CurrentPlayer returns the player whose turn it is, or nil for an empty
// roster.
func (s *Session) CurrentPlayer() *Player {
	if len(s.players) == 0 {
		return nil
	}
	return s.players[s.turnIndex]
}

// FindPlayer returns the roster entry with the given display name, or nil.
func (s *Session) FindPlayer(name string) *Player {
	for _, p := range s.players {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// AddPlayer appends to the roster while in the lobby, or to the join queue
// while a round is running; queued players enter on the next restart.
func (s *Session) AddPlayer(p *Player) {
	if s.active {
		s.queue = append(s.queue, p)
		return
	}
	s.players = append(s.players, p)
}

// RemovePlayer drops the first roster entry with the given display name.
// No-op if absent.
func (s *Session) RemovePlayer(name string) {
	for i, p := range s.players {
		if p.Name == name {
			s.players = append(s.players[:i], s.players[i+1:]...)
			if s.turnIndex >= len(s.players) && len(s.players) > 0 {
				s.turnIndex %= len(s.players)
			}
			return
		}
	}
}

// StartGame activates the session on a random player and deals the first
// pattern. The random index is immediately rotated off by AdvanceTurn, so
// the advance algorithm decides who actually goes first. Requires at least
// one non-eliminated player.
func (s *Session) StartGame() {
	s.active = true
	s.turnIndex = s.intn(len(s.players))
	s.currentPattern = s.generatePattern()
	s.AdvanceTurn()
}

// RestartGame folds queued joiners into the roster, restores every player's
// lives, clears the round state and starts a fresh round.
func (s *Session) RestartGame() {
	s.players = append(s.players, s.queue...)
	for _, p := range s.players {
		p.Lives = s.startLives
		p.Eliminated = false
	}
	s.queue = nil
	s.winner = nil
	s.lastError = ""
	s.usedWords = make(map[string]struct{})
	s.turnStart = time.Time{}
	s.wrongGuesses = streakStart
	s.patternStale = false
	s.currentPattern = s.generatePattern()
	s.StartGame()
}

// ResetToLobby clears the roster and every per-round field, returning the
// session to its pre-game state.
func (s *Session) ResetToLobby() {
	s.players = nil
	s.queue = nil
	s.active = false
	s.turnIndex = 0
	s.lastError = ""
	s.usedWords = make(map[string]struct{})
	s.winner = nil
	s.currentPattern = ""
	s.turnStart = time.Time{}
	s.wrongGuesses = streakStart
	s.patternStale = false
}

// AdvanceTurn rotates to the next non-eliminated player, rolls the pattern
// when the wrong-guess streak runs out (or a correct guess just landed) and
// stamps the turn start. The caller must guarantee at least one
// non-eliminated player; an empty or fully eliminated roster never returns.
func (s *Session) AdvanceTurn() {
	s.lastError = ""
	for {
		s.turnIndex = (s.turnIndex + 1) % len(s.players)
		if !s.players[s.turnIndex].Eliminated {
			break
		}
	}
	s.wrongGuesses++
	if s.patternStale || s.wrongGuesses > s.turnsBefore {
		s.currentPattern = s.generatePattern()
		s.wrongGuesses = 0
		s.patternStale = false
	}
	s.turnStart = s.now()
}

func (s *Session) generatePattern() string {
	return s.patternSet[s.intn(len(s.patternSet))]
}

// SubmitWord validates a guess against the current pattern, the dictionary
// and the used-word set, in that order. On success the normalized word is
// recorded, a fresh pattern is dealt and the next AdvanceTurn will not roll
// it again prematurely. Rejections set LastError and leave state untouched.
func (s *Session) SubmitWord(raw string) bool {
	s.lastError = ""

	word := kana.Normalize(raw)

	if !strings.Contains(word, s.currentPattern) {
		s.lastError = MsgWrongPattern
		return false
	}
	if !s.dict.Contains(word) {
		s.lastError = MsgUnknownWord
		return false
	}
	if _, used := s.usedWords[word]; used {
		s.lastError = MsgAlreadyUsed
		return false
	}

	s.usedWords[word] = struct{}{}
	s.currentPattern = s.generatePattern()
	s.patternStale = true
	return true
}

// CheckWinner resolves the end of a round. Solo games end when the lone
// player is eliminated (the winner field stays empty); otherwise the last
// player with lives remaining wins and is recorded.
func (s *Session) CheckWinner() *Player {
	if len(s.players) == 1 {
		if s.players[0].Eliminated {
			return s.players[0]
		}
		return nil
	}

	var alive *Player
	count := 0
	for _, p := range s.players {
		if p.Lives > 0 {
			alive = p
			count++
		}
	}
	if count == 1 {
		s.winner = alive
		return alive
	}
	return nil
}

// TimeRemaining reports how much of the current turn is left, clamped at
// zero. Before the first turn starts it reports the full limit.
func (s *Session) TimeRemaining() time.Duration {
	if s.turnStart.IsZero() {
		return s.timeLimit
	}
	remaining := s.timeLimit - s.now().Sub(s.turnStart)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// TurnExpired reports whether the current turn has outrun the time limit.
// Expiry is only ever resolved by an explicit timeout message; nothing in
// the session acts on the clock by itself.
func (s *Session) TurnExpired() bool {
	if s.turnStart.IsZero() {
		return false
	}
	return s.now().Sub(s.turnStart) > s.timeLimit
}

// ChangeSettings applies lobby configuration. Lives and the time limit take
// effect immediately; the pattern tier only influences patterns generated
// from here on.
func (s *Session) ChangeSettings(lives int, limit time.Duration, turnsBefore int, tier words.Tier) {
	s.startLives = lives
	s.timeLimit = limit
	s.turnsBefore = turnsBefore
	s.patternSet = s.patterns.ForTier(tier)
}
