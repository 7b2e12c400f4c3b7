// Package wire defines the frame vocabulary of the agent's duplex websocket
// protocol and the decoder that classifies raw socket messages.
//
// Every message read from the socket maps to exactly one [Frame]. Text
// messages carry a JSON envelope discriminated by its "type" field; binary
// messages carry reply audio. Anything that fails to parse is retained as
// [Unparseable] rather than dropped, because even unrecognized frames count
// as agent activity when deciding whether a turn produced a response.
package wire

import (
	"encoding/json"

	"github.com/gorilla/websocket"
)

// Inbound envelope types.
const (
	TypeResponseText      = "response.text"
	TypeResponseTextDelta = "response.text.delta"
	TypeAudioKill         = "audio.kill"
	TypeSkillTransfer     = "skill.transfer"
	TypeIdleWarning       = "idle.warning"
	TypeIdleTerminate     = "idle.terminate"
	TypeSessionOpen       = "session.open"
	TypeSessionClose      = "session.close"
)

// Outbound envelope types.
const (
	TypeSessionGreeting   = "session.greeting"
	TypeSessionPing       = "session.ping"
	TypeSessionDisconnect = "session.disconnect"
	TypeText              = "text"
)

// TypeNoResponse is the sentinel kind reported for a turn that produced no
// frames at all.
const TypeNoResponse = "no_response"

// Frame is one classified inbound message.
type Frame interface {
	frame()
}

// Delta is a streaming text fragment ("response.text.delta").
type Delta struct {
	Text string
}

// Final is the agent's complete turn text ("response.text"). An empty Text
// never completes a turn.
type Final struct {
	Text string
}

// Audio is a binary message carrying the agent's spoken reply.
type Audio struct {
	Data []byte
}

// Control is any other valid JSON envelope. Kind holds the raw "type" value;
// unknown types are kept as controls so they still count as activity.
type Control struct {
	Kind string
}

// Unparseable is a text message that is not a JSON object.
type Unparseable struct {
	Raw []byte
}

func (Delta) frame()       {}
func (Final) frame()       {}
func (Audio) frame()       {}
func (Control) frame()     {}
func (Unparseable) frame() {}

// Decode classifies a single websocket message into a Frame. messageType is
// the gorilla message type returned by ReadMessage.
func Decode(messageType int, payload []byte) Frame {
	if messageType == websocket.BinaryMessage {
		return Audio{Data: payload}
	}

	var envelope struct {
		Type     string `json:"type"`
		Response string `json:"response"`
		Delta    string `json:"delta"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return Unparseable{Raw: payload}
	}

	switch envelope.Type {
	case TypeResponseText:
		return Final{Text: envelope.Response}
	case TypeResponseTextDelta:
		return Delta{Text: envelope.Delta}
	default:
		return Control{Kind: envelope.Type}
	}
}

// Text returns the reply text carried by a frame, or "" for frames that carry
// none.
func Text(f Frame) string {
	switch f := f.(type) {
	case Final:
		return f.Text
	case Delta:
		return f.Text
	}
	return ""
}

// IsTerminal reports whether a frame announces that the server is ending the
// session.
func IsTerminal(f Frame) bool {
	c, ok := f.(Control)
	return ok && (c.Kind == TypeSessionClose || c.Kind == TypeIdleTerminate)
}
