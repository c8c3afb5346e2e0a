package telemetry

import (
	"time"

	"github.com/verte-zerg/sepia/internal/display"
	"github.com/verte-zerg/sepia/internal/scheduler"
)

// PollPeriod is the interval between two telemetry reads.
const PollPeriod = 500 * time.Millisecond

// Scheduler is the part of scheduler.Scheduler the poller needs.
type Scheduler interface {
	Schedule(delay time.Duration, fn scheduler.Func) scheduler.Handle
}

// Poller pushes a telemetry status line to the display every PollPeriod.
type Poller struct {
	sched  Scheduler
	source Source
	out    display.Display

	running bool
	gen     int
	last    Reading
	polls   int
}

// NewPoller constructs a Poller.
func NewPoller(sched Scheduler, source Source, out display.Display) *Poller {
	if source == nil {
		source = Unavailable
	}
	if out == nil {
		out = display.Discard
	}
	return &Poller{sched: sched, source: source, out: out}
}

// Start polls immediately and then every PollPeriod until Stop.
func (p *Poller) Start() {
	if p.running {
		return
	}
	p.running = true
	p.gen++
	gen := p.gen
	p.sched.Schedule(0, func() error {
		return p.tick(gen)
	})
}

// Stop ends polling after the pending tick.
func (p *Poller) Stop() {
	p.running = false
}

// Last returns the most recent reading.
func (p *Poller) Last() Reading {
	return p.last
}

// Polls returns the number of completed polls.
func (p *Poller) Polls() int {
	return p.polls
}

func (p *Poller) tick(gen int) error {
	if !p.running || gen != p.gen {
		return nil
	}
	p.last = Sample(p.source)
	p.polls++
	tone := display.ToneNeutral
	if !p.last.Available {
		tone = display.ToneNegative
	}
	p.out.Show(display.Update{Channel: display.ChannelTelemetry, Text: Format(p.last), Tone: tone})
	p.sched.Schedule(PollPeriod, func() error {
		return p.tick(gen)
	})
	return nil
}
