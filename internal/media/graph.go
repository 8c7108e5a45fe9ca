package media

import (
	"sync"
	"time"
)

// Graph is a minimal gain-routing graph. Channels connect through per-channel
// GainNodes into a master GainNode, so crossfades ramp channel gains while
// the user volume stays on the master.
type Graph struct {
	mu        sync.Mutex
	suspended bool
	master    *GainNode
	now       func() time.Time
}

// NewGraph creates a running graph with master gain at 1.0
func NewGraph() *Graph {
	g := &Graph{now: time.Now}
	g.master = newGainNode(g)
	return g
}

// CreateGain returns a new gain node scheduled against the graph clock
func (g *Graph) CreateGain() *GainNode {
	return newGainNode(g)
}

// Master returns the graph's master gain node
func (g *Graph) Master() *GainNode {
	return g.master
}

// Suspended reports whether the graph is suspended. A suspended graph still
// accepts gain changes; they take effect on resume.
func (g *Graph) Suspended() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.suspended
}

// Suspend pauses the graph clock
func (g *Graph) Suspend() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.suspended = true
}

// Resume restarts a suspended graph
func (g *Graph) Resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.suspended = false
}

// GainNode holds a gain value with optional linear ramps. Reads during an
// active ramp interpolate against the graph clock, so a ramp needs no
// ticker of its own.
type GainNode struct {
	graph *Graph

	mu    sync.Mutex
	value float64

	ramping    bool
	rampFrom   float64
	rampTarget float64
	rampStart  time.Time
	rampDur    time.Duration
}

func newGainNode(g *Graph) *GainNode {
	return &GainNode{graph: g, value: 1.0}
}

// SetValue sets the gain immediately, cancelling any active ramp
func (n *GainNode) SetValue(v float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ramping = false
	n.value = clampGain(v)
}

// RampTo schedules a linear ramp from the current value to target over dur.
// A zero duration applies the target immediately.
func (n *GainNode) RampTo(target float64, dur time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()

	target = clampGain(target)
	if dur <= 0 {
		n.ramping = false
		n.value = target
		return
	}

	n.rampFrom = n.currentLocked()
	n.rampTarget = target
	n.rampStart = n.graph.now()
	n.rampDur = dur
	n.ramping = true
}

// Value returns the current gain, interpolating an active ramp
func (n *GainNode) Value() float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.currentLocked()
}

// Ramping reports whether a ramp is still in progress
func (n *GainNode) Ramping() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.ramping {
		return false
	}
	return n.graph.now().Sub(n.rampStart) < n.rampDur
}

func (n *GainNode) currentLocked() float64 {
	if !n.ramping {
		return n.value
	}
	elapsed := n.graph.now().Sub(n.rampStart)
	if elapsed >= n.rampDur {
		n.ramping = false
		n.value = n.rampTarget
		return n.value
	}
	frac := float64(elapsed) / float64(n.rampDur)
	return n.rampFrom + (n.rampTarget-n.rampFrom)*frac
}

func clampGain(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
