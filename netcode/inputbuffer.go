// Package netcode implements the client side of the prediction loop:
// a buffer of inputs the server has not yet acknowledged, and a
// predictor that replays them on top of fresh server poses.
package netcode

import (
	"time"

	"tankarena/sim"
)

// DefaultCapacity bounds the pending-input buffer: one second of
// inputs at 60 fps. Past that the oldest entries are dropped.
const DefaultCapacity = 60

// Input is one locally-applied intent with its sequence number.
type Input struct {
	Seq      int
	DX       float64
	DY       float64
	Rotation float64
	Fire     bool
}

// Pending is an input the server has not acknowledged yet, together
// with the pose prediction produced when it was applied locally.
type Pending struct {
	Input     Input
	Predicted sim.Pose
	Timestamp time.Time
}

// InputBuffer is a capped FIFO of pending inputs. Not safe for
// concurrent use: prediction and reconciliation both run on the one
// frame-driving goroutine.
type InputBuffer struct {
	pending  []Pending
	lastAck  int
	capacity int
}

// NewInputBuffer creates a buffer with DefaultCapacity.
func NewInputBuffer() *InputBuffer {
	return &InputBuffer{capacity: DefaultCapacity}
}

// Add appends a locally-applied input and its predicted pose,
// dropping the oldest entry if the buffer is full.
func (b *InputBuffer) Add(in Input, predicted sim.Pose) {
	b.pending = append(b.pending, Pending{
		Input:     in,
		Predicted: predicted,
		Timestamp: time.Now(),
	})
	if len(b.pending) > b.capacity {
		b.pending = b.pending[1:]
	}
}

// Acknowledge retires every entry with sequence <= seq. Stale or
// duplicate acknowledgements are ignored: the ack watermark is
// monotonically non-decreasing.
func (b *InputBuffer) Acknowledge(seq int) {
	if seq <= b.lastAck {
		return
	}
	b.lastAck = seq

	kept := b.pending[:0]
	for _, p := range b.pending {
		if p.Input.Seq > seq {
			kept = append(kept, p)
		}
	}
	b.pending = kept
}

// Unacknowledged returns the entries with sequence strictly greater
// than the last acknowledged, in send order.
func (b *InputBuffer) Unacknowledged() []Pending {
	out := make([]Pending, 0, len(b.pending))
	for _, p := range b.pending {
		if p.Input.Seq > b.lastAck {
			out = append(out, p)
		}
	}
	return out
}

// LastPredicted returns the newest predicted pose, if any.
func (b *InputBuffer) LastPredicted() (sim.Pose, bool) {
	if len(b.pending) == 0 {
		return sim.Pose{}, false
	}
	return b.pending[len(b.pending)-1].Predicted, true
}

// LastAck returns the acknowledgement watermark.
func (b *InputBuffer) LastAck() int { return b.lastAck }

// Len returns the number of buffered entries.
func (b *InputBuffer) Len() int { return len(b.pending) }

// Clear empties the buffer and resets the watermark.
func (b *InputBuffer) Clear() {
	b.pending = nil
	b.lastAck = 0
}
