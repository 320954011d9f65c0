package game

// PlayerState is one roster entry in a state snapshot.
type PlayerState struct {
	Name       string `json:"name"`
	Lives      int    `json:"lives"`
	Eliminated bool   `json:"eliminated"`
	DeviceID   string `json:"device_id"`
}

// State is the snapshot broadcast to every client after a change. Field
// names match what the frontend reads off the raw JSON object.
type State struct {
	Started             bool          `json:"started"`
	Pattern             string        `json:"pattern"`
	TimeRemaining       float64       `json:"time_remaining"`
	CurrentPlayerName   string        `json:"current_player_name"`
	CurrentPlayerDevice string        `json:"current_player_device"`
	Players             []PlayerState `json:"players"`
	LastError           string        `json:"last_error"`
	Winner              *string       `json:"winner"`
	HostID              *string       `json:"host_id"`
}

// Snapshot captures the session for broadcast. The host is whoever sits
// first in the roster.
func (s *Session) Snapshot() State {
	snap := State{
		Started:   s.active,
		LastError: s.lastError,
		Players:   make([]PlayerState, 0, len(s.players)),
	}

	if s.active {
		snap.Pattern = s.currentPattern
		snap.TimeRemaining = s.TimeRemaining().Seconds()
		if current := s.CurrentPlayer(); current != nil {
			snap.CurrentPlayerName = current.Name
			snap.CurrentPlayerDevice = current.DeviceID
		}
	}

	for _, p := range s.players {
		snap.Players = append(snap.Players, PlayerState{
			Name:       p.Name,
			Lives:      p.Lives,
			Eliminated: p.Eliminated,
			DeviceID:   p.DeviceID,
		})
	}

	if s.winner != nil {
		name := s.winner.Name
		snap.Winner = &name
	}
	if len(s.players) > 0 {
		id := s.players[0].DeviceID
		snap.HostID = &id
	}

	return snap
}
