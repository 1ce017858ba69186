package tcpopts

// Allocate maps one option occurrence to a stable index in [0,15],
// implementing §4.B. inUse is a bitmask of indices already claimed by
// earlier occurrences in the same packet; Allocate never returns an index
// set in inUse. The caller must OR the returned index into its mask
// before the next call.
//
// recycled reports whether the returned index previously held a different
// kind's state, which the change detector must treat as a fresh
// occurrence regardless of what is still stored in the slot.
func (ctx *Context) Allocate(kind Kind, inUse uint16) (idx Index, recycled bool) {
	if ri, ok := reservedIndexForKind(kind); ok {
		return ri, false
	}

	// Reuse: a generic slot already tracking this kind.
	for i := firstGenericIndex; i <= MaxIndex; i++ {
		s := &ctx.Slots[i]
		if s.Used && s.Kind == kind && inUse&(1<<i) == 0 {
			return i, false
		}
	}

	// Fresh: the first unused slot not already claimed this packet.
	for i := firstGenericIndex; i <= MaxIndex; i++ {
		if !ctx.Slots[i].Used && inUse&(1<<i) == 0 {
			return i, false
		}
	}

	// Recycle: among used slots not already claimed this packet, the
	// least recently used one (smallest age); ties broken by lowest index.
	var best Index
	var bestAge uint32
	found := false
	for i := firstGenericIndex; i <= MaxIndex; i++ {
		s := &ctx.Slots[i]
		if !s.Used || inUse&(1<<i) != 0 {
			continue
		}
		if !found || s.Age < bestAge {
			found = true
			best = i
			bestAge = s.Age
		}
	}
	if !found {
		// More distinct generic-kind options in one packet than the nine
		// generic slots can hold. §3.3 bounds a packet to MaxOptions
		// options total but does not bound distinct generic kinds to
		// nine; a caller that lets this invariant slip has no slot left
		// to assign, which Accept cannot have caught.
		panic("tcpopts: no generic index slot available for allocation")
	}
	return best, true
}
