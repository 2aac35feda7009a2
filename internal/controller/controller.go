// Package controller runs the single control loop: it applies input events
// to the focused buffer, debounces edits per origin, hands settled requests
// to worker goroutines and folds their results back into the engine.
package controller

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"shellsync/internal/buffer"
	"shellsync/internal/config"
	"shellsync/internal/engine"
	"shellsync/internal/input"
)

// Frame is what gets published after every state change.
type Frame struct {
	engine.Snapshot
	Focus input.Panel
}

type settled struct {
	origin engine.Origin
	seq    uint64
}

// Controller owns the engine for the lifetime of Run. Nothing else may touch
// the engine while Run is active.
type Controller struct {
	Engine   *engine.Engine
	Debounce time.Duration
	Logger   *log.Logger

	// Preload, when set, is loaded into the source buffer and assembled as
	// soon as Run starts.
	Preload string

	focus   input.Panel
	settle  chan settled
	results chan engine.Result
	timers  [2]*time.Timer
	seq     [2]uint64
	done    <-chan struct{}
	workers sync.WaitGroup
}

func New(e *engine.Engine, debounce time.Duration, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Controller{
		Engine:   e,
		Debounce: debounce,
		Logger:   logger,
		settle:   make(chan settled, 4),
		results:  make(chan engine.Result, 16),
	}
}

// Run consumes events until a Quit event, until events is closed, or until
// ctx is done. It returns ctx.Err() in the last case and nil otherwise. On
// return all debounce timers are stopped and all workers have exited.
func (c *Controller) Run(ctx context.Context, events <-chan input.Event, publish func(Frame)) error {
	defer c.workers.Wait()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer c.stopTimers()
	c.done = ctx.Done()

	if c.Preload != "" {
		c.dispatch(ctx, c.Engine.Load(c.Preload))
	}
	publish(c.frame())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Kind == input.Quit {
				c.Logger.Debug("quit")
				return nil
			}
			c.handle(ctx, ev)

		case s := <-c.settle:
			if s.seq != c.seq[s.origin] {
				continue
			}
			if req, ok := c.Engine.Settle(s.origin); ok {
				c.dispatch(ctx, req)
			}

		case res := <-c.results:
			c.Engine.Apply(res)
		}
		publish(c.frame())
	}
}

func (c *Controller) frame() Frame {
	return Frame{Snapshot: c.Engine.Snapshot(), Focus: c.focus}
}

func (c *Controller) handle(ctx context.Context, ev input.Event) {
	switch ev.Kind {
	case input.FocusNext, input.FocusPrev:
		c.Engine.MoveBytes((*buffer.Bytes).ClearPending)
		if ev.Kind == input.FocusNext {
			c.focus = c.focus.Next()
		} else {
			c.focus = c.focus.Prev()
		}
		return
	case input.ToggleDialect:
		c.reconfigure(ctx, c.Engine.Session().ToggleDialect())
		return
	case input.ToggleBitness:
		c.reconfigure(ctx, c.Engine.Session().ToggleBitness())
		return
	}

	if c.focus == input.BytesPanel {
		if !ev.Edits() {
			c.moveBytes(ev.Kind)
		} else if c.editBytes(ev) {
			c.schedule(ctx, engine.FromBytes)
		}
		return
	}
	if !ev.Edits() {
		c.moveSource(ev.Kind)
	} else if c.editSource(ev) {
		c.schedule(ctx, engine.FromSource)
	}
}

func (c *Controller) editSource(ev input.Event) bool {
	switch ev.Kind {
	case input.Insert:
		return c.Engine.EditSource(func(s *buffer.Source) bool { return s.InsertRune(ev.Rune) })
	case input.Newline:
		return c.Engine.EditSource((*buffer.Source).Newline)
	case input.Backspace:
		return c.Engine.EditSource((*buffer.Source).Backspace)
	case input.Delete:
		return c.Engine.EditSource((*buffer.Source).Delete)
	}
	return false
}

var sourceMoves = map[input.Kind]func(*buffer.Source){
	input.Left:  (*buffer.Source).Left,
	input.Right: (*buffer.Source).Right,
	input.Up:    (*buffer.Source).Up,
	input.Down:  (*buffer.Source).Down,
	input.Home:  (*buffer.Source).Home,
	input.End:   (*buffer.Source).End,
}

func (c *Controller) moveSource(k input.Kind) {
	if op, ok := sourceMoves[k]; ok {
		c.Engine.MoveSource(op)
	}
}

// editBytes applies a content edit to the byte buffer. Newline has no
// meaning there.
func (c *Controller) editBytes(ev input.Event) bool {
	switch ev.Kind {
	case input.Insert:
		return c.Engine.EditBytes(func(b *buffer.Bytes) bool { return b.InputNibble(ev.Rune) })
	case input.Backspace:
		return c.Engine.EditBytes((*buffer.Bytes).Backspace)
	case input.Delete:
		return c.Engine.EditBytes((*buffer.Bytes).Delete)
	}
	return false
}

var byteMoves = map[input.Kind]func(*buffer.Bytes){
	input.Left:  (*buffer.Bytes).Left,
	input.Right: (*buffer.Bytes).Right,
	input.Up:    (*buffer.Bytes).Up,
	input.Down:  (*buffer.Bytes).Down,
	input.Home:  (*buffer.Bytes).Home,
	input.End:   (*buffer.Bytes).End,
}

func (c *Controller) moveBytes(k input.Kind) {
	if op, ok := byteMoves[k]; ok {
		c.Engine.MoveBytes(op)
	}
}

// schedule (re)starts the debounce timer for o. A timer that already fired
// but whose message is still queued is invalidated by the sequence number.
func (c *Controller) schedule(ctx context.Context, o engine.Origin) {
	c.seq[o]++
	seq := c.seq[o]
	if t := c.timers[o]; t != nil {
		t.Stop()
	}
	if c.Debounce <= 0 {
		c.timers[o] = nil
		if req, ok := c.Engine.Settle(o); ok {
			c.dispatch(ctx, req)
		}
		return
	}
	done := c.done
	c.timers[o] = time.AfterFunc(c.Debounce, func() {
		select {
		case c.settle <- settled{origin: o, seq: seq}:
		case <-done:
		}
	})
}

func (c *Controller) stopTimers() {
	for i, t := range c.timers {
		if t != nil {
			t.Stop()
			c.timers[i] = nil
		}
		c.seq[i]++
	}
}

func (c *Controller) reconfigure(ctx context.Context, s config.Session) {
	c.stopTimers()
	c.dispatch(ctx, c.Engine.Reconfigure(s))
}

// dispatch runs req on a worker. The worker never blocks past ctx.
func (c *Controller) dispatch(ctx context.Context, req engine.Request) {
	c.Logger.Debug("worker start", "origin", req.Origin, "generation", req.Generation)
	c.workers.Add(1)
	go func() {
		defer c.workers.Done()
		res := c.Engine.Execute(ctx, req)
		select {
		case c.results <- res:
		case <-ctx.Done():
		}
	}()
}
