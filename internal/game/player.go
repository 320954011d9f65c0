package game

// Player is one participant in a session. Name is the mutable display name;
// DeviceID is the stable identity a reconnecting socket rebinds to.
type Player struct {
	Name       string
	DeviceID   string
	Lives      int
	Eliminated bool
}

func NewPlayer(name, deviceID string, lives int) *Player {
	return &Player{Name: name, DeviceID: deviceID, Lives: lives}
}

// LoseLife removes one life and flags elimination when none remain.
func (p *Player) LoseLife() {
	if p.Lives <= 0 {
		return
	}
	p.Lives--
	if p.Lives == 0 {
		p.Eliminated = true
	}
}
