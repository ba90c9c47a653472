package messages

// Error codes
const (
	ErrCodeInvalidMessage = "INVALID_MESSAGE"
	ErrCodeSessionFailed  = "SESSION_FAILED"
	ErrCodeBusy           = "BUSY"
	ErrCodeAudioFailed    = "AUDIO_FAILED"
	ErrCodeProcessing     = "PROCESSING_FAILED"
)

// Server event types
const (
	TypeConnection    = "connection"
	TypeStatus        = "status"
	TypeTranscription = "transcription"
	TypeResponse      = "response"
	TypeVideoReady    = "video_ready"
	TypeError         = "error"
	TypeConfigUpdated = "config_updated"
)

// Pipeline progress values carried by status events
const (
	StatusTranscribing    = "transcribing"
	StatusThinking        = "thinking"
	StatusSynthesizing    = "synthesizing"
	StatusGeneratingVideo = "generating_video"
)

// ServerMessage is every event pushed to the client. The type field selects
// which of the remaining fields are meaningful.
type ServerMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Status    string `json:"status,omitempty"`
	Message   string `json:"message,omitempty"`
	Text      string `json:"text,omitempty"`
	VideoURL  string `json:"video_url,omitempty"`
	Code      string `json:"code,omitempty"`
}

// IsTerminal reports whether the event ends a request's loading state.
func (m *ServerMessage) IsTerminal() bool {
	return m.Type == TypeVideoReady || m.Type == TypeError
}

// NewConnectionMessage announces a freshly created session
func NewConnectionMessage(sessionID, message string) *ServerMessage {
	return &ServerMessage{
		Type:      TypeConnection,
		SessionID: sessionID,
		Message:   message,
	}
}

// NewStatusMessage creates a progress update
func NewStatusMessage(status, message string) *ServerMessage {
	return &ServerMessage{
		Type:    TypeStatus,
		Status:  status,
		Message: message,
	}
}

// NewTranscriptionMessage carries recognized speech for an audio request
func NewTranscriptionMessage(text string) *ServerMessage {
	return &ServerMessage{
		Type: TypeTranscription,
		Text: text,
	}
}

// NewResponseMessage carries the generated reply text
func NewResponseMessage(text string) *ServerMessage {
	return &ServerMessage{
		Type: TypeResponse,
		Text: text,
	}
}

// NewVideoReadyMessage is the terminal success event
func NewVideoReadyMessage(videoURL string) *ServerMessage {
	return &ServerMessage{
		Type:     TypeVideoReady,
		VideoURL: videoURL,
		Message:  "Avatar video ready!",
	}
}

// NewErrorMessage is the terminal failure event
func NewErrorMessage(code, message string) *ServerMessage {
	return &ServerMessage{
		Type:    TypeError,
		Code:    code,
		Message: message,
	}
}

// NewConfigUpdatedMessage acknowledges a config frame
func NewConfigUpdatedMessage() *ServerMessage {
	return &ServerMessage{
		Type:    TypeConfigUpdated,
		Message: "Configuration updated",
	}
}
