package compose

import "github.com/paulmach/orb"

// Op names a map command.
type Op string

const (
	OpClear  Op = "clear"
	OpAdd    Op = "add"
	OpFly    Op = "fly"
	OpLabels Op = "labels"
)

// Command is one call made against a Map.
type Command struct {
	Op      Op          `json:"op" enum:"clear,add,fly,labels"`
	Layer   *Layer      `json:"layer,omitempty"`
	Bounds  *orb.Bound  `json:"bounds,omitempty"`
	Options *FlyOptions `json:"options,omitempty"`
}

// Recorder is a Map that records commands instead of drawing. Motion
// completes only when Complete is called.
type Recorder struct {
	Width    float64
	Commands []Command

	pending   func() error
	pendingID int
	seq       int
}

var _ Map = (*Recorder)(nil)

func (r *Recorder) ClearOverlay() {
	r.Commands = append(r.Commands, Command{Op: OpClear})
}

func (r *Recorder) AddLayer(l *Layer) {
	r.Commands = append(r.Commands, Command{Op: OpAdd, Layer: l})
}

func (r *Recorder) ShowLabels(l *Layer) {
	r.Commands = append(r.Commands, Command{Op: OpLabels, Layer: l})
}

func (r *Recorder) FlyToBounds(b orb.Bound, opts FlyOptions) {
	r.Commands = append(r.Commands, Command{Op: OpFly, Bounds: &b, Options: &opts})
}

func (r *Recorder) OnceMoveEnd(fn func() error) func() {
	r.seq++
	id := r.seq
	r.pending, r.pendingID = fn, id
	return func() {
		if r.pendingID == id {
			r.pending = nil
		}
	}
}

func (r *Recorder) ViewportWidth() float64 {
	return r.Width
}

// Pending reports whether a motion handler is registered.
func (r *Recorder) Pending() bool {
	return r.pending != nil
}

// Complete finishes the current camera motion, firing the registered
// handler once.
func (r *Recorder) Complete() error {
	fn := r.pending
	r.pending = nil
	if fn == nil {
		return nil
	}
	return fn()
}

// Reset forgets recorded commands.
func (r *Recorder) Reset() {
	r.Commands = nil
}

// Ops lists the recorded operations in order.
func (r *Recorder) Ops() []Op {
	ops := make([]Op, len(r.Commands))
	for i, c := range r.Commands {
		ops[i] = c.Op
	}
	return ops
}
