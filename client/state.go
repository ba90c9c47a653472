// Package client is the avatar session controller: a pure state machine plus
// an event loop that drives a transport, a view and a microphone.
package client

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/room4-2/interactive-avatar/messages"
)

// State of the client session
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Recording
	AwaitingResponse
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Recording:
		return "recording"
	case AwaitingResponse:
		return "awaiting_response"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Role tags a transcript bubble
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// DefaultReconnectDelay is the fixed wait between reconnect attempts
const DefaultReconnectDelay = 3 * time.Second

// User-facing texts
const (
	LoadingAudio       = "Processing audio..."
	LoadingText        = "Generating response..."
	MsgNotConnected    = "Not connected to server"
	MsgWaitForReply    = "Please wait for the current response"
	MsgStopRecording   = "Stop recording before sending text"
	MsgNoAudio         = "No audio captured"
	MsgGaveUp          = "Unable to reach the server, giving up"
	StatusConnecting   = "Connecting..."
	StatusConnected    = "Connected"
	StatusDisconnected = "Disconnected"
)

// Policy controls reconnects. MaxAttempts of zero retries forever.
type Policy struct {
	ReconnectDelay time.Duration
	MaxAttempts    int
}

// Outcome is the result of the last finished request. At most one field is set.
type Outcome struct {
	VideoURL string
	Error    string
}

// Snapshot is the whole client state
type Snapshot struct {
	State     State
	SessionID string
	Outcome   Outcome
	Attempts  int // consecutive failed or dropped connections
	Policy    Policy
}

// NewSnapshot returns the initial disconnected state
func NewSnapshot(p Policy) Snapshot {
	if p.ReconnectDelay <= 0 {
		p.ReconnectDelay = DefaultReconnectDelay
	}
	return Snapshot{State: Disconnected, Policy: p}
}

// Event is an input to Transition
type Event interface{ isEvent() }

type (
	// Connect asks for a connection attempt
	Connect struct{ At time.Time }
	// Opened reports a successful dial
	Opened struct{ At time.Time }
	// Closed reports a failed dial or a dropped socket
	Closed struct {
		At  time.Time
		Err error
	}
	// RecordStart is the press of the record control
	RecordStart struct{ At time.Time }
	// RecordStop is the release of the record control
	RecordStop struct{ At time.Time }
	// MicFailed reports a microphone error
	MicFailed struct {
		At  time.Time
		Err error
	}
	// AudioCaptured carries a finished recording to send
	AudioCaptured struct {
		At   time.Time
		Data []byte
	}
	// TextSubmitted carries typed input
	TextSubmitted struct {
		At   time.Time
		Text string
	}
	// ServerEvent carries one decoded server frame
	ServerEvent struct {
		At      time.Time
		Message *messages.ServerMessage
	}
)

func (Connect) isEvent()       {}
func (Opened) isEvent()        {}
func (Closed) isEvent()        {}
func (RecordStart) isEvent()   {}
func (RecordStop) isEvent()    {}
func (MicFailed) isEvent()     {}
func (AudioCaptured) isEvent() {}
func (TextSubmitted) isEvent() {}
func (ServerEvent) isEvent()   {}

// Effect is a side effect requested by Transition
type Effect interface{ isEffect() }

type (
	Dial              struct{}
	ScheduleReconnect struct{ Delay time.Duration }
	SendBinary        struct{ Data []byte }
	SendJSON          struct{ Message *messages.ClientMessage }
	AcquireMic        struct{}
	// ReleaseMic stops capture. Keep sends the recording on as AudioCaptured.
	ReleaseMic    struct{ Keep bool }
	SetSession    struct{ ID string }
	SystemMessage struct{ Text string }
	ShowLoading   struct{ Text string }
	HideLoading   struct{}
	ShowVideo     struct{ URL string }
	ShowError     struct{ Text string }
	SetRecording  struct{ On bool }
)

// SetStatus updates the connection indicator
type SetStatus struct {
	Text      string
	Connected bool
}

// AppendMessage adds a transcript bubble
type AppendMessage struct {
	Role Role
	Text string
}

func (Dial) isEffect()              {}
func (ScheduleReconnect) isEffect() {}
func (SendBinary) isEffect()        {}
func (SendJSON) isEffect()          {}
func (AcquireMic) isEffect()        {}
func (ReleaseMic) isEffect()        {}
func (SetStatus) isEffect()         {}
func (SetSession) isEffect()        {}
func (AppendMessage) isEffect()     {}
func (SystemMessage) isEffect()     {}
func (ShowLoading) isEffect()       {}
func (HideLoading) isEffect()       {}
func (ShowVideo) isEffect()         {}
func (ShowError) isEffect()         {}
func (SetRecording) isEffect()      {}

// Transition computes the next state and the effects to run. It has no side
// effects of its own.
func Transition(s Snapshot, e Event) (Snapshot, []Effect) {
	switch ev := e.(type) {
	case Connect:
		if s.State != Disconnected {
			return s, nil
		}
		s.State = Connecting
		return s, []Effect{SetStatus{Text: StatusConnecting}, Dial{}}

	case Opened:
		if s.State != Connecting {
			return s, nil
		}
		s.State = Connected
		s.Attempts = 0
		return s, []Effect{SetStatus{Text: StatusConnected, Connected: true}}

	case Closed:
		return onClosed(s)

	case RecordStart:
		switch s.State {
		case Connected:
			s.State = Recording
			return s, []Effect{AcquireMic{}, SetRecording{On: true}}
		case AwaitingResponse:
			return s, []Effect{SystemMessage{Text: MsgWaitForReply}}
		case Recording:
			return s, nil
		default:
			return s, []Effect{SystemMessage{Text: MsgNotConnected}}
		}

	case RecordStop:
		if s.State != Recording {
			return s, nil
		}
		s.State = Connected
		return s, []Effect{ReleaseMic{Keep: true}, SetRecording{On: false}}

	case MicFailed:
		effects := []Effect{SystemMessage{Text: fmt.Sprintf("Microphone error: %v", ev.Err)}}
		if s.State == Recording {
			s.State = Connected
			effects = append(effects, SetRecording{On: false})
		}
		return s, effects

	case AudioCaptured:
		switch s.State {
		case Connected:
			if len(ev.Data) == 0 {
				return s, []Effect{SystemMessage{Text: MsgNoAudio}}
			}
			s.State = AwaitingResponse
			return s, []Effect{SendBinary{Data: ev.Data}, ShowLoading{Text: LoadingAudio}}
		case AwaitingResponse, Recording:
			return s, []Effect{SystemMessage{Text: MsgWaitForReply}}
		default:
			return s, []Effect{SystemMessage{Text: MsgNotConnected}}
		}

	case TextSubmitted:
		text := strings.TrimSpace(ev.Text)
		if text == "" {
			return s, nil
		}
		switch s.State {
		case Connected:
			s.State = AwaitingResponse
			return s, []Effect{
				AppendMessage{Role: RoleUser, Text: text},
				SendJSON{Message: messages.NewTextInputMessage(text)},
				ShowLoading{Text: LoadingText},
			}
		case AwaitingResponse:
			return s, []Effect{SystemMessage{Text: MsgWaitForReply}}
		case Recording:
			return s, []Effect{SystemMessage{Text: MsgStopRecording}}
		default:
			return s, []Effect{SystemMessage{Text: MsgNotConnected}}
		}

	case ServerEvent:
		return onServerEvent(s, ev)
	}
	return s, nil
}

func onClosed(s Snapshot) (Snapshot, []Effect) {
	if s.State == Disconnected {
		return s, nil
	}

	var effects []Effect
	switch s.State {
	case Recording:
		effects = append(effects, ReleaseMic{Keep: false}, SetRecording{On: false})
	case AwaitingResponse:
		effects = append(effects, HideLoading{})
	}

	s.State = Disconnected
	s.Attempts++
	if s.SessionID != "" {
		s.SessionID = ""
		effects = append(effects, SetSession{ID: ""})
	}
	effects = append(effects, SetStatus{Text: StatusDisconnected})

	if s.Policy.MaxAttempts > 0 && s.Attempts >= s.Policy.MaxAttempts {
		return s, append(effects, SystemMessage{Text: MsgGaveUp})
	}
	return s, append(effects, ScheduleReconnect{Delay: s.Policy.ReconnectDelay})
}

func onServerEvent(s Snapshot, ev ServerEvent) (Snapshot, []Effect) {
	msg := ev.Message
	if msg == nil || s.State == Disconnected || s.State == Connecting {
		return s, nil
	}

	switch msg.Type {
	case messages.TypeConnection:
		s.SessionID = msg.SessionID
		effects := []Effect{SetSession{ID: msg.SessionID}}
		if msg.Message != "" {
			effects = append(effects, SystemMessage{Text: msg.Message})
		}
		return s, effects

	case messages.TypeStatus:
		if s.State != AwaitingResponse || msg.Message == "" {
			return s, nil
		}
		return s, []Effect{ShowLoading{Text: msg.Message}}

	case messages.TypeTranscription:
		return s, []Effect{AppendMessage{Role: RoleUser, Text: msg.Text}}

	case messages.TypeResponse:
		return s, []Effect{AppendMessage{Role: RoleAssistant, Text: msg.Text}}

	case messages.TypeVideoReady:
		url := CacheBust(msg.VideoURL, ev.At)
		s.Outcome = Outcome{VideoURL: url}
		if s.State == AwaitingResponse {
			s.State = Connected
		}
		return s, []Effect{HideLoading{}, ShowVideo{URL: url}}

	case messages.TypeError:
		s.Outcome = Outcome{Error: msg.Message}
		if s.State == AwaitingResponse {
			s.State = Connected
		}
		return s, []Effect{HideLoading{}, ShowError{Text: msg.Message}}
	}

	// Unknown and informational types change nothing
	return s, nil
}

// CacheBust appends t=<unix millis> so players never reuse a stale file
func CacheBust(url string, at time.Time) string {
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return url + sep + "t=" + strconv.FormatInt(at.UnixMilli(), 10)
}
