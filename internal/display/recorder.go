package display

// Recorder keeps the latest update per channel and the full update log.
// Tests and headless drivers render from it.
type Recorder struct {
	current map[Channel]Update
	log     []Update
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{current: map[Channel]Update{}}
}

// Show implements Display.
func (r *Recorder) Show(u Update) {
	r.current[u.Channel] = u
	r.log = append(r.log, u)
}

// Current returns the visible update on ch, if any.
func (r *Recorder) Current(ch Channel) (Update, bool) {
	u, ok := r.current[ch]
	if !ok || u.Text == "" {
		return Update{}, false
	}
	return u, true
}

// Text returns the visible text on ch.
func (r *Recorder) Text(ch Channel) string {
	return r.current[ch].Text
}

// History returns every non-empty update pushed to ch, in order.
func (r *Recorder) History(ch Channel) []Update {
	var out []Update
	for _, u := range r.log {
		if u.Channel == ch && u.Text != "" {
			out = append(out, u)
		}
	}
	return out
}
