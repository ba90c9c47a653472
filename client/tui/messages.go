package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/room4-2/interactive-avatar/client"
)

type statusMsg struct {
	text      string
	connected bool
}

type sessionMsg struct{ id string }

type lineMsg struct {
	role client.Role
	text string
}

type loadingMsg struct {
	text string
	on   bool
}

type videoMsg struct{ url string }

type errorMsg struct{ text string }

type recordingMsg struct{ on bool }

// Bridge implements client.View by forwarding every call into the program
// as a message, so the model is only touched from the bubbletea goroutine.
type Bridge struct {
	send func(tea.Msg)
}

// NewBridge wraps tea.Program.Send
func NewBridge(send func(tea.Msg)) *Bridge {
	return &Bridge{send: send}
}

func (b *Bridge) SetStatus(text string, connected bool) {
	b.send(statusMsg{text: text, connected: connected})
}

func (b *Bridge) SetSession(id string) { b.send(sessionMsg{id: id}) }

func (b *Bridge) AppendMessage(role client.Role, text string) {
	b.send(lineMsg{role: role, text: text})
}

func (b *Bridge) ShowLoading(text string) { b.send(loadingMsg{text: text, on: true}) }

func (b *Bridge) HideLoading() { b.send(loadingMsg{}) }

func (b *Bridge) ShowVideo(url string) { b.send(videoMsg{url: url}) }

func (b *Bridge) ShowError(text string) { b.send(errorMsg{text: text}) }

func (b *Bridge) SetRecording(on bool) { b.send(recordingMsg{on: on}) }

var _ client.View = (*Bridge)(nil)
