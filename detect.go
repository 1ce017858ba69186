package tcpopts

import (
	"bytes"
	"encoding/binary"
)

// ChangeKind classifies how an option's value changed relative to the
// persistent context, per §4.C.
type ChangeKind uint8

const (
	ChangeNone    ChangeKind = iota // content identical to the persistent slot
	ChangeDynamic                   // change representable in the irregular chain
	ChangeStatic                    // change that forces a full list item
)

// IndexChange is the temporary per-index change record, §3.4.
type IndexChange struct {
	Used            bool
	IsIndexRecycled bool
	StaticChanged   bool
	DynChanged      bool
}

// Temp is the per-packet scratch state produced by [Detect] and consumed
// by [CodeListItem] and [CodeIrregular]. It carries no back-pointer into
// the persistent [Context]; detection and encoding only ever read it.
type Temp struct {
	Changes        [MaxIndex + 1]IndexChange
	ListItemNeeded [MaxIndex + 1]bool
	Position2Index [MaxOptions]Index
	PositionN      int
	IdxMax         Index

	DoListStructChanged bool
	IsListNeeded        bool

	TSReq          uint32
	TSReqBytesNr   int
	TSReply        uint32
	TSReplyBytesNr int
}

// sdvlBits[k] is the number of LSB-bits an SDVL field of k bytes can carry;
// index 0 means "not representable". These match the four SDVL lengths
// the TS LSB encoder is budgeted in (1..4 bytes).
var sdvlBits = [5]int{0, 7, 14, 21, 29}

// tsFeasibleBytes returns the smallest SDVL byte count in [1,4] for which
// the window's feasibility oracle accepts value, or 0 if none do.
func tsFeasibleBytes(w WLSBWindow, value uint32) int {
	if w == nil {
		return 0
	}
	for k := 1; k <= 4; k++ {
		if w.IsKPossible(value, sdvlBits[k], 0) {
			return k
		}
	}
	return 0
}

// Detect runs the change detector of §4.C over opts against ctx, returning
// the temporary state the wire encoder needs. It never mutates ctx;
// advancing the persistent state for the next packet is [Context.Commit]'s
// job.
func (ctx *Context) Detect(opts *Options, ackNum uint32, ackChanged bool) Temp {
	var tmp Temp

	tmp.DoListStructChanged = opts.N != ctx.OldStructureNr
	if !tmp.DoListStructChanged {
		for i := 0; i < opts.N; i++ {
			if opts.Items[i].Kind != ctx.OldStructure[i] {
				tmp.DoListStructChanged = true
				break
			}
		}
	}

	var inUse uint16
	for i := 0; i < opts.N; i++ {
		desc := opts.Items[i]
		idx, recycled := ctx.Allocate(desc.Kind, inUse)
		inUse |= 1 << idx
		tmp.Position2Index[i] = idx
		tmp.PositionN++
		if idx > tmp.IdxMax {
			tmp.IdxMax = idx
		}

		slot := &ctx.Slots[idx]
		used := slot.Used && !recycled
		change := detectChange(slot, used, desc, ctx, ackChanged, &tmp)

		tmp.Changes[idx] = IndexChange{
			Used:            used,
			IsIndexRecycled: recycled,
			StaticChanged:   change == ChangeStatic,
			DynChanged:      change == ChangeDynamic,
		}
	}

	oaRep := int(ctx.OARepetitionsNr)
	for i := 0; i < opts.N; i++ {
		desc := opts.Items[i]
		idx := tmp.Position2Index[i]
		ch := tmp.Changes[idx]
		slot := &ctx.Slots[idx]

		needed := false
		switch {
		case desc.Kind == KindNOP || desc.Kind == KindSACKPermitted:
			// Their item body is always empty; never worth a list item.
			needed = false
		case ch.StaticChanged:
			needed = true
		case slot.FullTransNr == 0:
			needed = true
		case slot.FullTransNr < oaRep:
			needed = true
		}
		tmp.ListItemNeeded[idx] = needed
	}

	switch {
	case tmp.DoListStructChanged:
		tmp.IsListNeeded = true
	case ctx.StructureNrTrans < oaRep:
		tmp.IsListNeeded = true
	default:
		for i := 0; i < opts.N; i++ {
			if tmp.ListItemNeeded[tmp.Position2Index[i]] {
				tmp.IsListNeeded = true
				break
			}
		}
	}

	return tmp
}

// detectChange is the closed per-kind dispatch of §4.C, replacing the
// source's function-pointer table with a switch the compiler can check
// for totality.
func detectChange(slot *Slot, used bool, desc Descriptor, ctx *Context, ackChanged bool, tmp *Temp) ChangeKind {
	payload := desc.payload()
	switch desc.Kind {
	case KindNOP, KindSACKPermitted:
		if !used {
			return ChangeStatic
		}
		return ChangeNone

	case KindEOL, KindMSS, KindWS:
		if !used {
			return ChangeStatic
		}
		if len(payload) != slot.DataLen || !bytes.Equal(payload, slot.Payload[:slot.DataLen]) {
			return ChangeStatic
		}
		return ChangeNone

	case KindTimestamps:
		tsReq := binary.BigEndian.Uint32(payload[0:4])
		tsReply := binary.BigEndian.Uint32(payload[4:8])
		tmp.TSReq = tsReq
		tmp.TSReply = tsReply
		tmp.TSReqBytesNr = tsFeasibleBytes(ctx.TSReqWindow, tsReq)
		tmp.TSReplyBytesNr = tsFeasibleBytes(ctx.TSReplyWindow, tsReply)
		if !used || tmp.TSReqBytesNr == 0 || tmp.TSReplyBytesNr == 0 {
			return ChangeStatic
		}
		return ChangeDynamic

	case KindSACK:
		if !used {
			return ChangeStatic
		}
		if ackChanged {
			return ChangeDynamic
		}
		if len(payload) != slot.DataLen || !bytes.Equal(payload, slot.Payload[:slot.DataLen]) {
			return ChangeDynamic
		}
		return ChangeNone

	default: // generic
		if !used {
			return ChangeStatic
		}
		if len(payload) != slot.DataLen {
			return ChangeStatic
		}
		if !bytes.Equal(payload, slot.Payload[:slot.DataLen]) {
			return ChangeDynamic
		}
		return ChangeNone
	}
}
