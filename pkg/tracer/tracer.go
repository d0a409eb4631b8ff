// Package tracer is the hot-path handler: one invocation per traversal of
// a traced object through an instrumented call site. The handler filters,
// extracts, assembles, and emits exactly one fixed-layout event per
// accepted invocation. Nothing here blocks, sleeps, takes a lock, or
// propagates an error to the instrumentation layer; every failure
// degrades to reduced event fidelity.
package tracer

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/zhangbo1882/pwru/pkg/config"
	"github.com/zhangbo1882/pwru/pkg/dump"
	"github.com/zhangbo1882/pwru/pkg/event"
	"github.com/zhangbo1882/pwru/pkg/extract"
	"github.com/zhangbo1882/pwru/pkg/filter"
	"github.com/zhangbo1882/pwru/pkg/sink"
	"github.com/zhangbo1882/pwru/pkg/skb"
	"github.com/zhangbo1882/pwru/pkg/stack"
)

// ArgSlot names the argument position holding the traced-object pointer
// at an instrumented call site. Which function is instrumented is decided
// entirely by the external loader; the engine is purely positional.
type ArgSlot int

// The five supported argument positions.
const (
	Arg1 ArgSlot = iota + 1
	Arg2
	Arg3
	Arg4
	Arg5
)

// Context is the execution context of a single invocation, provided by
// the instrumentation layer.
type Context struct {
	// Params are the first five argument registers of the instrumented
	// call.
	Params [5]uint64
	// IP is the instruction address of the probe site.
	IP uint64
	// PID identifies the process the invocation interrupted.
	PID uint32
}

// Param returns the register for slot, or zero for an out-of-range slot.
func (c *Context) Param(slot ArgSlot) uint64 {
	if slot < Arg1 || slot > Arg5 {
		return 0
	}
	return c.Params[slot-1]
}

// Walker produces the invocation's call stack into buf; injected so an
// instrumentation layer with its own unwinder can replace the in-process
// default.
type Walker func(ctx *Context, buf *[stack.MaxDepth]uint64) []uint64

// Options wires a Tracer. Config, View, and Sink are required. Dump and
// Formatter come as a pair and enable the full-object dump; Stacks
// enables stack capture. Absent capabilities silently skip the matching
// annotation even when the configuration asks for it.
type Options struct {
	Config    *config.Map
	View      *skb.View
	Sink      sink.Sink
	Dump      *dump.Ring
	Formatter dump.Formatter
	Stacks    *stack.Table
	Walker    Walker
	// Now returns the event timestamp in nanoseconds; monotonic since
	// engine start by default.
	Now    func() uint64
	Logger *zap.Logger
}

// Tracer is immutable after New and safe for arbitrary concurrent
// invocation.
type Tracer struct {
	cfg    *config.Map
	view   *skb.View
	sink   sink.Sink
	ring   *dump.Ring
	fmtr   dump.Formatter
	stacks *stack.Table
	walk   Walker
	now    func() uint64
}

// New validates the wiring and builds the handler.
func New(o Options) (*Tracer, error) {
	if o.Config == nil {
		return nil, fmt.Errorf("tracer: nil config map")
	}
	if o.View == nil {
		return nil, fmt.Errorf("tracer: nil object view")
	}
	if o.Sink == nil {
		return nil, fmt.Errorf("tracer: nil sink")
	}
	if (o.Dump == nil) != (o.Formatter == nil) {
		return nil, fmt.Errorf("tracer: dump ring and formatter must be wired together")
	}

	t := &Tracer{
		cfg:    o.Config,
		view:   o.View,
		sink:   o.Sink,
		ring:   o.Dump,
		fmtr:   o.Formatter,
		stacks: o.Stacks,
		walk:   o.Walker,
		now:    o.Now,
	}
	if t.walk == nil {
		t.walk = defaultWalker
	}
	if t.now == nil {
		t.now = monotonicNow
	}

	log := o.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log.Info("tracer ready",
		zap.Bool("dump", t.ring != nil),
		zap.Bool("stack", t.stacks != nil))
	return t, nil
}

// Handle processes one invocation whose traced-object pointer sits in
// slot. With no published configuration the engine traces everything and
// annotates nothing: a minimal event still goes out per call. With
// configuration, a filter rejection is silent and emits nothing.
func (t *Tracer) Handle(ctx *Context, slot ArgSlot, probeType uint32) {
	skbAddr := ctx.Param(slot)

	var ev event.Event
	if cfg, ok := t.cfg.Lookup(); ok {
		if !filter.Match(t.view, skbAddr, cfg) {
			return
		}
		t.setOutput(ctx, skbAddr, &ev, cfg)
	}

	ev.PID = ctx.PID
	ev.Type = probeType
	ev.Addr = ctx.IP
	ev.SkbAddr = skbAddr
	ev.TS = t.now()
	t.sink.Emit(&ev)
}

// Hook binds one of the five entry points: the loader attaches the
// returned function to a target whose traced object is the slot-th
// argument, tagging its events with probeType.
func (t *Tracer) Hook(slot ArgSlot, probeType uint32) func(*Context) {
	return func(ctx *Context) {
		t.Handle(ctx, slot, probeType)
	}
}

func (t *Tracer) setOutput(ctx *Context, skbAddr uint64, ev *event.Event, cfg *config.Config) {
	if cfg.Output.Meta {
		extract.Meta(t.view, skbAddr, &ev.Meta)
	}
	if cfg.Output.Tuple {
		extract.Tuple(t.view, skbAddr, &ev.Tuple)
	}
	if cfg.Output.Skb && t.ring != nil {
		if id, ok := t.ring.Capture(t.fmtr, skbAddr); ok {
			ev.PrintSkbID = id
		}
	}
	if cfg.Output.Stack {
		ev.PrintStackID = stack.IDFailed
		if t.stacks != nil {
			var buf [stack.MaxDepth]uint64
			ev.PrintStackID = t.stacks.GetID(t.walk(ctx, &buf))
		}
	}
}

// defaultWalker records the in-process call stack, starting above the
// handler's own frames.
func defaultWalker(_ *Context, buf *[stack.MaxDepth]uint64) []uint64 {
	return stack.Callers(2, buf)
}

var engineStart = time.Now()

func monotonicNow() uint64 {
	return uint64(time.Since(engineStart))
}
