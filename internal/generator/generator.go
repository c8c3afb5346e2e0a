// Package generator builds the randomized payloads of a phase.
package generator

import (
	"math/rand"
	"time"

	"github.com/verte-zerg/sepia/internal/model"
)

const (
	MinOperand = 1
	MaxOperand = 20

	RevealOffset = 5 * time.Second
	RevealGapMin = 5 * time.Second
	RevealGapMax = 15 * time.Second

	TargetEvents      = 10
	TargetMargin      = 5 * time.Second
	TargetProbability = 0.5
)

// Generator produces randomized phase content.
type Generator struct {
	rnd *rand.Rand
}

// NewSeeded returns a Generator with a fixed seed.
func NewSeeded(seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed))}
}

// Problem draws an operator and two operands. Division problems always have
// an exact integer answer.
func (g *Generator) Problem() model.ArithmeticProblem {
	op := model.Operators[g.rnd.Intn(len(model.Operators))]
	a := g.operand()
	b := g.operand()
	if op == model.OpDiv {
		a = a * b
	}
	return NewProblem(op, a, b)
}

// NewProblem builds a problem and computes its expected answer.
// Division truncates toward zero.
func NewProblem(op model.Operator, a, b int) model.ArithmeticProblem {
	p := model.ArithmeticProblem{A: a, B: b, Op: op}
	switch op {
	case model.OpAdd:
		p.Expected = a + b
	case model.OpSub:
		p.Expected = a - b
	case model.OpMul:
		p.Expected = a * b
	case model.OpDiv:
		if b != 0 {
			p.Expected = a / b
		}
	}
	return p
}

// DigitSequence draws 4 or 5 digits and their reveal offsets. Offsets are not
// bounded by the phase duration.
func (g *Generator) DigitSequence() model.DigitSequence {
	length := 4 + g.rnd.Intn(2)
	seq := model.DigitSequence{
		Digits:  make([]int, length),
		Reveals: make([]time.Duration, length),
	}
	at := RevealOffset
	for i := 0; i < length; i++ {
		if i > 0 {
			at += g.between(RevealGapMin, RevealGapMax)
		}
		seq.Digits[i] = g.rnd.Intn(10)
		seq.Reveals[i] = at
	}
	return seq
}

// Targets draws the visual events of a phase lasting phaseDuration. The
// target count is fixed here and never recomputed.
func (g *Generator) Targets(phaseDuration time.Duration) model.TargetSet {
	lo := TargetMargin
	hi := phaseDuration - TargetMargin
	if hi < lo {
		hi = lo
	}
	set := model.TargetSet{Events: make([]model.TargetEvent, TargetEvents)}
	for i := range set.Events {
		ev := model.TargetEvent{
			FiresAt:  g.between(lo, hi),
			IsTarget: g.rnd.Float64() < TargetProbability,
		}
		if ev.IsTarget {
			set.TargetCount++
		}
		set.Events[i] = ev
	}
	return set
}

func (g *Generator) operand() int {
	return MinOperand + g.rnd.Intn(MaxOperand-MinOperand+1)
}

func (g *Generator) between(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(g.rnd.Int63n(int64(hi-lo)+1))
}
