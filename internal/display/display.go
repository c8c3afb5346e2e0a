// Package display defines the push-only output surface of the engine.
package display

// Channel names one region of the screen.
type Channel int

const (
	ChannelTelemetry Channel = iota
	ChannelProblem
	ChannelFeedback
	ChannelDigit
	ChannelMarker
	ChannelStatus
	ChannelReport
)

var channelNames = [...]string{"telemetry", "problem", "feedback", "digit", "marker", "status", "report"}

func (c Channel) String() string {
	if c < 0 || int(c) >= len(channelNames) {
		return "unknown"
	}
	return channelNames[c]
}

// Tone hints how a renderer should style an update.
type Tone int

const (
	ToneNeutral Tone = iota
	TonePositive
	ToneNegative
	ToneTarget
	ToneDecoy
)

// Update replaces the content of one channel. An empty Text clears it.
type Update struct {
	Channel Channel
	Text    string
	Tone    Tone
}

// Display receives updates from the engine. The engine never reads back.
type Display interface {
	Show(Update)
}

// Func adapts a plain function to Display.
type Func func(Update)

// Show implements Display.
func (f Func) Show(u Update) {
	f(u)
}

// Discard drops every update.
var Discard Display = Func(func(Update) {})

// Clear returns the update that empties ch.
func Clear(ch Channel) Update {
	return Update{Channel: ch}
}
