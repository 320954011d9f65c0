// Package protocol defines the client/server wire messages. Inbound JSON
// carries a type discriminator and is decoded into a closed set of command
// variants so lobby handling can switch over them exhaustively.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnknownType     = errors.New("unknown message type")
	ErrMissingSettings = errors.New("settings message without settings payload")
)

// Command is a decoded client message. Implementations are the only valid
// inbound messages; anything else fails Parse.
type Command interface{ isCommand() }

type Join struct {
	Name     string
	DeviceID string
}

type Start struct{}

type Submit struct {
	Word string
}

type Reconnect struct {
	DeviceID string
}

type Timeout struct{}

type ReturnToLobby struct{}

type Restart struct{}

type LeaveLobby struct {
	DeviceID string
}

type ChangeSettings struct {
	Lives             int
	TimeLimit         time.Duration
	TurnsBeforeChange int
	Difficulty        string
}

type RequestState struct{}

func (Join) isCommand()           {}
func (Start) isCommand()          {}
func (Submit) isCommand()         {}
func (Reconnect) isCommand()      {}
func (Timeout) isCommand()        {}
func (ReturnToLobby) isCommand()  {}
func (Restart) isCommand()        {}
func (LeaveLobby) isCommand()     {}
func (ChangeSettings) isCommand() {}
func (RequestState) isCommand()   {}

type clientMessage struct {
	Type     string           `json:"type"`
	Name     string           `json:"name"`
	DeviceID string           `json:"device_id"`
	Word     string           `json:"word"`
	Settings *settingsPayload `json:"settings"`
}

type settingsPayload struct {
	Lives int     `json:"lives"`
	Time  float64 `json:"time"` // seconds
	Turns int     `json:"turns"`
	Diff  string  `json:"diff"`
}

// Parse decodes one inbound frame into its command variant.
func Parse(data []byte) (Command, error) {
	var m clientMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}

	switch m.Type {
	case "join":
		return Join{Name: m.Name, DeviceID: m.DeviceID}, nil
	case "start":
		return Start{}, nil
	case "submit":
		return Submit{Word: m.Word}, nil
	case "reconnect":
		return Reconnect{DeviceID: m.DeviceID}, nil
	case "timeout":
		return Timeout{}, nil
	case "return_to_lobby":
		return ReturnToLobby{}, nil
	case "restart":
		return Restart{}, nil
	case "leave_lobby":
		return LeaveLobby{DeviceID: m.DeviceID}, nil
	case "settings":
		if m.Settings == nil {
			return nil, ErrMissingSettings
		}
		return ChangeSettings{
			Lives:             m.Settings.Lives,
			TimeLimit:         time.Duration(m.Settings.Time * float64(time.Second)),
			TurnsBeforeChange: m.Settings.Turns,
			Difficulty:        m.Settings.Diff,
		}, nil
	case "request_state":
		return RequestState{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, m.Type)
	}
}

// ForceReturnToLobby is the control frame telling every client to navigate
// back to the lobby menu. Broadcast as-is, no envelope around it.
func ForceReturnToLobby() []byte {
	return []byte(`{"type":"force_return_to_lobby"}`)
}
