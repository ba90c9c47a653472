// Package tui is a terminal front end for the avatar client.
package tui

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/room4-2/interactive-avatar/client"
)

const maxLines = 500

// Actions are the user intents the model raises. *client.Controller
// satisfies it.
type Actions interface {
	SendText(text string)
	StartRecording()
	StopRecording()
}

type line struct {
	role client.Role
	text string
}

// Model is the root bubbletea model
type Model struct {
	actions Actions
	baseURL *url.URL

	input   textinput.Model
	spinner spinner.Model

	status    string
	connected bool
	session   string
	lines     []line
	loading   string
	video     string
	errText   string
	recording bool

	width  int
	height int
}

// NewModel builds the model. base resolves relative video URLs and may be
// empty.
func NewModel(actions Actions, base string) Model {
	ti := textinput.New()
	ti.Placeholder = "Type a message and press Enter"
	ti.Prompt = "> "
	ti.CharLimit = 2000
	ti.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = assistantStyle

	m := Model{
		actions: actions,
		input:   ti,
		spinner: s,
		status:  client.StatusDisconnected,
	}
	if u, err := url.Parse(base); err == nil && u.Host != "" {
		m.baseURL = u
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = max(msg.Width-4, 10)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			text := m.input.Value()
			m.input.Reset()
			if strings.TrimSpace(text) != "" {
				m.actions.SendText(text)
			}
			return m, nil
		case "ctrl+r":
			if m.recording {
				m.actions.StopRecording()
			} else {
				m.actions.StartRecording()
			}
			return m, nil
		}

	case statusMsg:
		m.status, m.connected = msg.text, msg.connected
		return m, nil
	case sessionMsg:
		m.session = msg.id
		return m, nil
	case lineMsg:
		m.lines = append(m.lines, line{role: msg.role, text: msg.text})
		if len(m.lines) > maxLines {
			m.lines = m.lines[len(m.lines)-maxLines:]
		}
		return m, nil
	case loadingMsg:
		if msg.on {
			m.loading = msg.text
		} else {
			m.loading = ""
		}
		return m, nil
	case videoMsg:
		m.video, m.errText = m.resolve(msg.url), ""
		return m, nil
	case errorMsg:
		m.errText, m.video = msg.text, ""
		return m, nil
	case recordingMsg:
		m.recording = msg.on
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// resolve makes a server-relative video URL absolute
func (m Model) resolve(raw string) string {
	if m.baseURL == nil {
		return raw
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return m.baseURL.ResolveReference(ref).String()
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Interactive Avatar"))
	b.WriteString("  ")
	if m.connected {
		b.WriteString(onlineStyle.Render("● " + m.status))
	} else {
		b.WriteString(offlineStyle.Render("○ " + m.status))
	}
	if m.session != "" {
		b.WriteString(hintStyle.Render("  " + m.session))
	}
	b.WriteString("\n\n")

	for _, l := range m.visibleLines() {
		b.WriteString(renderLine(l))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	switch {
	case m.loading != "":
		b.WriteString(m.spinner.View() + " " + m.loading + "\n")
	case m.video != "":
		b.WriteString(videoStyle.Render("▶ Video ready: "+m.video) + "\n")
	case m.errText != "":
		b.WriteString(errorStyle.Render("✗ "+m.errText) + "\n")
	default:
		b.WriteString("\n")
	}

	if m.recording {
		b.WriteString(recordingStyle.Render("● REC  ctrl+r to stop") + "\n")
	}
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(hintStyle.Render("enter send • ctrl+r record • esc quit"))
	return b.String()
}

// visibleLines keeps the transcript within the window
func (m Model) visibleLines() []line {
	if m.height <= 0 {
		return m.lines
	}
	room := max(m.height-8, 1)
	if len(m.lines) <= room {
		return m.lines
	}
	return m.lines[len(m.lines)-room:]
}

func renderLine(l line) string {
	switch l.role {
	case client.RoleUser:
		return userStyle.Render("You: ") + l.text
	case client.RoleAssistant:
		return assistantStyle.Render("Avatar: ") + l.text
	default:
		return systemStyle.Render(fmt.Sprintf("· %s", l.text))
	}
}
