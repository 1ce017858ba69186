package tcpopts

import (
	"context"
	"log/slog"
)

// levelTrace is a logging level below [slog.LevelDebug] for fine-grained
// per-packet decisions (index recycling, the only one traced) that are
// too noisy for Debug but useful when chasing a specific flow.
const levelTrace slog.Level = slog.LevelDebug - 2

// Slot is the persistent state of a single index, §3.2. Zero value is an
// unused slot.
type Slot struct {
	Used    bool
	Kind    Kind
	Payload [MaxOptionLen - 2]byte
	DataLen int

	FullTransNr int
	DynTransNr  int
	Age         uint32
}

// Context is the persistent per-flow compression context the core reads
// during compression of one packet and that [Context.Commit] advances
// afterwards. A Context must not be shared between flows or used
// concurrently; it belongs exclusively to its caller for one packet cycle
// at a time.
type Context struct {
	Slots [MaxIndex + 1]Slot

	TSReqWindow   WLSBWindow
	TSReplyWindow WLSBWindow

	OldStructure     [MaxOptions]Kind
	OldStructureNr   int
	StructureNrTrans int

	OARepetitionsNr uint8
	SackCode        SackCoder
	TSLSBCode       TSLSBCoder
	Log             *slog.Logger

	ageTick uint32
}

// SetOARepetitionsNr configures how many consecutive successful
// transmissions are required before a value is assumed latched by the
// decompressor.
func (ctx *Context) SetOARepetitionsNr(n uint8) { ctx.OARepetitionsNr = n }

// SetTSWindows configures the two W-LSB windows used to probe timestamp
// option feasibility.
func (ctx *Context) SetTSWindows(req, reply WLSBWindow) {
	ctx.TSReqWindow = req
	ctx.TSReplyWindow = reply
}

// SetSackCoder configures the SACK block encoder collaborator.
func (ctx *Context) SetSackCoder(f SackCoder) { ctx.SackCode = f }

// SetTSLSBCoder configures the timestamp LSB encoder collaborator.
func (ctx *Context) SetTSLSBCoder(f TSLSBCoder) { ctx.TSLSBCode = f }

// SetLogger attaches a trace sink. A nil logger disables tracing.
func (ctx *Context) SetLogger(l *slog.Logger) { ctx.Log = l }

func (ctx *Context) nextAge() uint32 {
	ctx.ageTick++
	return ctx.ageTick
}

func (ctx *Context) trace(msg string, attrs ...slog.Attr) {
	if ctx.Log == nil {
		return
	}
	ctx.Log.LogAttrs(context.Background(), levelTrace, msg, attrs...)
}

// storePayload records desc's content and kind into slot, as the basis for
// the next packet's change detection.
func storePayload(slot *Slot, desc Descriptor) {
	slot.Kind = desc.Kind
	slot.DataLen = copy(slot.Payload[:], desc.payload())
}

// Commit rolls the temporary per-packet state tmp, produced by [Detect],
// into ctx so the next call to [Detect] sees an up-to-date baseline. It
// implements the §4.E state machine (Unused -> Fresh -> Stable, with the
// recycle short-circuit) plus the structure-transmission counter of §3.2;
// neither is mutated by [Detect] itself, since the context must stay
// read-only for the duration of one packet's compression.
//
// Commit must be called once per packet, after the packet has been
// successfully emitted, and exactly once per occurrence in opts.
func (ctx *Context) Commit(opts *Options, tmp *Temp) {
	oaRep := int(ctx.OARepetitionsNr)
	for i := 0; i < opts.N; i++ {
		desc := opts.Items[i]
		idx := tmp.Position2Index[i]
		slot := &ctx.Slots[idx]
		ch := tmp.Changes[idx]

		if ch.IsIndexRecycled {
			slot.Used = false
			slot.FullTransNr = 0
			slot.DynTransNr = 0
			ctx.trace("index recycled", slogIndex("index", idx), slogKind("kind", desc.Kind))
		}

		switch {
		case !slot.Used:
			slot.Used = true
			slot.FullTransNr = 1
			slot.DynTransNr = 1
		case ch.StaticChanged:
			slot.FullTransNr = 1
			slot.DynTransNr = 1
		case ch.DynChanged:
			slot.DynTransNr = 1
			slot.FullTransNr = incCapped(slot.FullTransNr, oaRep)
		default:
			slot.FullTransNr = incCapped(slot.FullTransNr, oaRep)
			slot.DynTransNr = incCapped(slot.DynTransNr, oaRep)
		}
		storePayload(slot, desc)
		slot.Age = ctx.nextAge()
	}

	if tmp.DoListStructChanged {
		ctx.StructureNrTrans = 1
	} else {
		ctx.StructureNrTrans = incCapped(ctx.StructureNrTrans, oaRep)
	}
	ctx.OldStructureNr = opts.N
	for i := 0; i < opts.N; i++ {
		ctx.OldStructure[i] = opts.Items[i].Kind
	}
}

// incCapped increments n by one unless it has already reached cap, so the
// transmission counters never grow past the point where they stop
// affecting any decision in §4.C's tables.
func incCapped(n, cap int) int {
	if n < cap {
		return n + 1
	}
	return n
}
