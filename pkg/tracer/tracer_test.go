package tracer_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhangbo1882/pwru/pkg/config"
	"github.com/zhangbo1882/pwru/pkg/dump"
	"github.com/zhangbo1882/pwru/pkg/event"
	"github.com/zhangbo1882/pwru/pkg/kmem"
	"github.com/zhangbo1882/pwru/pkg/sink"
	"github.com/zhangbo1882/pwru/pkg/skb/skbtest"
	"github.com/zhangbo1882/pwru/pkg/stack"
	"github.com/zhangbo1882/pwru/pkg/tracer"
)

// harness wires a tracer over one packet image.
type harness struct {
	tr *tracer.Tracer
	ch *sink.Channel
}

type harnessOpts struct {
	cfg    *config.Config
	dump   *dump.Ring
	fmtr   dump.Formatter
	stacks *stack.Table
}

func newHarness(t *testing.T, mem kmem.Reader, o harnessOpts) *harness {
	t.Helper()

	cfgMap := config.NewMap()
	if o.cfg != nil {
		require.NoError(t, cfgMap.Publish(*o.cfg))
	}
	ch := sink.NewChannel(16)
	tr, err := tracer.New(tracer.Options{
		Config:    cfgMap,
		View:      skbtest.View(t, mem),
		Sink:      ch,
		Dump:      o.dump,
		Formatter: o.fmtr,
		Stacks:    o.stacks,
		Now:       func() uint64 { return 42 },
	})
	require.NoError(t, err)
	return &harness{tr: tr, ch: ch}
}

func (h *harness) drain() []event.Event {
	var out []event.Event
	for {
		select {
		case e := <-h.ch.Events():
			out = append(out, e)
		default:
			return out
		}
	}
}

func skbContext(skbAddr uint64, slot tracer.ArgSlot) *tracer.Context {
	ctx := &tracer.Context{IP: 0xffffffff81001234, PID: 4242}
	ctx.Params[slot-1] = skbAddr
	return ctx
}

func TestAbsentConfigEmitsMinimalEvent(t *testing.T) {
	mem, addr := skbtest.Build(t, skbtest.Packet{
		Mark: 5,
		IPv4: &skbtest.IPv4{Src: "10.0.0.1", Dst: "10.0.0.2", Proto: config.ProtoTCP},
	})
	h := newHarness(t, mem, harnessOpts{})

	h.tr.Handle(skbContext(addr, tracer.Arg1), tracer.Arg1, 7)
	h.tr.Handle(skbContext(addr, tracer.Arg1), tracer.Arg1, 7)

	events := h.drain()
	require.Len(t, events, 2, "exactly one event per call")

	e := events[0]
	assert.Equal(t, uint32(4242), e.PID)
	assert.Equal(t, uint32(7), e.Type)
	assert.Equal(t, uint64(0xffffffff81001234), e.Addr)
	assert.Equal(t, addr, e.SkbAddr)
	assert.Equal(t, uint64(42), e.TS)
	assert.Equal(t, event.Meta{}, e.Meta, "no annotation without config")
	assert.Equal(t, event.Tuple{}, e.Tuple)
	assert.Zero(t, e.PrintSkbID)
	assert.Zero(t, e.PrintStackID)
}

func TestEndToEndAcceptAndReject(t *testing.T) {
	mem, addr := skbtest.Build(t, skbtest.Packet{
		Mark: 5,
		IPv4: &skbtest.IPv4{Src: "192.168.1.1", Dst: "192.168.1.2", Proto: config.ProtoTCP, Sport: 4444, Dport: 443},
	})

	accept := &config.Config{Mark: 5, DPort: 443, Output: config.Output{Tuple: true}}
	h := newHarness(t, mem, harnessOpts{cfg: accept})
	h.tr.Handle(skbContext(addr, tracer.Arg2), tracer.Arg2, 1)

	events := h.drain()
	require.Len(t, events, 1)
	tpl := events[0].Tuple
	assert.Equal(t, "192.168.1.1", tpl.Src().String())
	assert.Equal(t, "192.168.1.2", tpl.Dst().String())
	assert.Equal(t, uint16(4444), tpl.SPort)
	assert.Equal(t, uint16(443), tpl.DPort)
	assert.Equal(t, uint8(config.ProtoTCP), tpl.Proto)

	reject := &config.Config{Mark: 6, DPort: 443, Output: config.Output{Tuple: true}}
	h2 := newHarness(t, mem, harnessOpts{cfg: reject})
	h2.tr.Handle(skbContext(addr, tracer.Arg2), tracer.Arg2, 1)

	assert.Empty(t, h2.drain(), "rejection must be silent")
}

func TestPositionalDispatch(t *testing.T) {
	mem, addr := skbtest.Build(t, skbtest.Packet{Mark: 9})
	h := newHarness(t, mem, harnessOpts{cfg: &config.Config{Mark: 9}})

	// The pointer sits in argument 3; reading any other slot sees zero
	// and the mark filter rejects the null object.
	h.tr.Handle(skbContext(addr, tracer.Arg3), tracer.Arg3, 3)
	h.tr.Handle(skbContext(addr, tracer.Arg3), tracer.Arg1, 1)

	events := h.drain()
	require.Len(t, events, 1)
	assert.Equal(t, uint32(3), events[0].Type)
	assert.Equal(t, addr, events[0].SkbAddr)
}

func TestHookBinding(t *testing.T) {
	mem, addr := skbtest.Build(t, skbtest.Packet{})
	h := newHarness(t, mem, harnessOpts{})

	hook := h.tr.Hook(tracer.Arg5, 5)
	hook(skbContext(addr, tracer.Arg5))

	events := h.drain()
	require.Len(t, events, 1)
	assert.Equal(t, uint32(5), events[0].Type)
	assert.Equal(t, addr, events[0].SkbAddr)
}

type stubFormatter struct {
	err error
}

func (s stubFormatter) Format(dst []byte, _ uint64) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	return copy(dst, "dump"), nil
}

func TestDumpAnnotation(t *testing.T) {
	mem, addr := skbtest.Build(t, skbtest.Packet{})
	cfg := &config.Config{Output: config.Output{Skb: true}}

	ring := dump.NewRing()
	h := newHarness(t, mem, harnessOpts{cfg: cfg, dump: ring, fmtr: stubFormatter{}})
	h.tr.Handle(skbContext(addr, tracer.Arg1), tracer.Arg1, 0)
	h.tr.Handle(skbContext(addr, tracer.Arg1), tracer.Arg1, 0)

	events := h.drain()
	require.Len(t, events, 2)
	assert.Equal(t, uint64(0), events[0].PrintSkbID)
	assert.Equal(t, uint64(1), events[1].PrintSkbID)

	text, ok := ring.Snapshot(events[1].PrintSkbID)
	require.True(t, ok)
	assert.Equal(t, "dump", string(text))
}

func TestDumpFailureStillEmits(t *testing.T) {
	mem, addr := skbtest.Build(t, skbtest.Packet{})
	cfg := &config.Config{Output: config.Output{Skb: true}}

	h := newHarness(t, mem, harnessOpts{
		cfg:  cfg,
		dump: dump.NewRing(),
		fmtr: stubFormatter{err: errors.New("render failed")},
	})
	h.tr.Handle(skbContext(addr, tracer.Arg1), tracer.Arg1, 0)

	events := h.drain()
	require.Len(t, events, 1, "dump failure must not drop the event")
	assert.Zero(t, events[0].PrintSkbID)
}

func TestDumpAbsentCapability(t *testing.T) {
	mem, addr := skbtest.Build(t, skbtest.Packet{})
	cfg := &config.Config{Output: config.Output{Skb: true}}

	h := newHarness(t, mem, harnessOpts{cfg: cfg})
	h.tr.Handle(skbContext(addr, tracer.Arg1), tracer.Arg1, 0)

	events := h.drain()
	require.Len(t, events, 1, "missing dump subsystem skips the annotation only")
	assert.Zero(t, events[0].PrintSkbID)
}

func TestStackAnnotation(t *testing.T) {
	mem, addr := skbtest.Build(t, skbtest.Packet{})
	cfg := &config.Config{Output: config.Output{Stack: true}}

	h := newHarness(t, mem, harnessOpts{cfg: cfg, stacks: stack.NewTable()})
	h.tr.Handle(skbContext(addr, tracer.Arg1), tracer.Arg1, 0)

	events := h.drain()
	require.Len(t, events, 1)
	assert.GreaterOrEqual(t, events[0].PrintStackID, int64(0))
	assert.Less(t, events[0].PrintStackID, int64(stack.Entries))
}

func TestStackAbsentCapabilityUsesSentinel(t *testing.T) {
	mem, addr := skbtest.Build(t, skbtest.Packet{})
	cfg := &config.Config{Output: config.Output{Stack: true}}

	h := newHarness(t, mem, harnessOpts{cfg: cfg})
	h.tr.Handle(skbContext(addr, tracer.Arg1), tracer.Arg1, 0)

	events := h.drain()
	require.Len(t, events, 1)
	assert.Equal(t, stack.IDFailed, events[0].PrintStackID)
}

func TestNewValidation(t *testing.T) {
	mem, _ := skbtest.Build(t, skbtest.Packet{})
	view := skbtest.View(t, mem)
	ch := sink.NewChannel(1)

	_, err := tracer.New(tracer.Options{View: view, Sink: ch})
	assert.Error(t, err, "config map is required")

	_, err = tracer.New(tracer.Options{Config: config.NewMap(), Sink: ch})
	assert.Error(t, err, "view is required")

	_, err = tracer.New(tracer.Options{Config: config.NewMap(), View: view})
	assert.Error(t, err, "sink is required")

	_, err = tracer.New(tracer.Options{
		Config: config.NewMap(), View: view, Sink: ch, Dump: dump.NewRing(),
	})
	assert.Error(t, err, "dump ring without formatter must fail")
}
