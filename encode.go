package tcpopts

// cursor is a bounds-checked append cursor over a caller-owned buffer,
// following the same "never read-modify-write past what's already
// written" discipline as a ring buffer's Off/End bookkeeping, scaled down
// to a single forward-only write pointer.
type cursor struct {
	out []byte
	pos int
}

func (c *cursor) writeByte(op string, b byte) error {
	if c.pos >= len(c.out) {
		return newBufferTooSmall(op, c.pos+1, len(c.out))
	}
	c.out[c.pos] = b
	c.pos++
	return nil
}

func (c *cursor) write(op string, b []byte) error {
	if c.pos+len(b) > len(c.out) {
		return newBufferTooSmall(op, c.pos+len(b), len(c.out))
	}
	c.pos += copy(c.out[c.pos:], b)
	return nil
}

// xiWriter packs XI fields into a cursor, remembering whether it is
// midway through a 4-bit nibble pair so callers never need to know
// whether they are writing the high or low half of a byte.
type xiWriter struct {
	c       *cursor
	ps      uint8
	pending bool // a high nibble has been written, awaiting its low nibble
}

func (w *xiWriter) put(op string, idx Index, needed bool) error {
	if w.ps == 1 {
		b := byte(idx)
		if needed {
			b |= 0x80
		}
		return w.c.writeByte(op, b)
	}
	if !w.pending {
		b := byte(idx) << 4
		if needed {
			b |= 0x80
		}
		if err := w.c.writeByte(op, b); err != nil {
			return err
		}
		w.pending = true
		return nil
	}
	b := byte(idx)
	if needed {
		b |= 0x08
	}
	w.c.out[w.c.pos-1] |= b
	w.pending = false
	return nil
}

// CodeListItem emits the compressed options list, 4.D.1: an XI header and
// block followed by the full item body for every index the caller marked
// needed in tmp.ListItemNeeded. ackNum is passed through to the SACK
// encoder collaborator for any SACK item. It returns the number of bytes
// written to out, or fails with [KindBufferTooSmall] /
// [KindEncodingUnrepresentable].
func CodeListItem(ctx *Context, opts *Options, tmp *Temp, ackNum uint32, out []byte) (int, error) {
	const op = "code_list_item"
	m := opts.N
	var ps uint8
	if tmp.IdxMax > 7 {
		ps = 1
	}

	c := &cursor{out: out}
	header := (ps << 4) | uint8(m)
	if err := c.writeByte(op, header); err != nil {
		return 0, err
	}

	xw := &xiWriter{c: c, ps: ps}
	for i := 0; i < m; i++ {
		idx := tmp.Position2Index[i]
		if err := xw.put(op, idx, tmp.ListItemNeeded[idx]); err != nil {
			return 0, err
		}
	}

	for i := 0; i < m; i++ {
		idx := tmp.Position2Index[i]
		if !tmp.ListItemNeeded[idx] {
			continue
		}
		if err := codeListItemBody(c, ctx, opts.Items[i], ackNum); err != nil {
			return 0, err
		}
	}
	return c.pos, nil
}

func codeListItemBody(c *cursor, ctx *Context, desc Descriptor, ackNum uint32) error {
	const op = "code_list_item"
	switch desc.Kind {
	case KindNOP, KindSACKPermitted:
		return nil

	case KindEOL:
		bits := (desc.Length - 1) * 8
		if bits > 255 {
			return newUnrepresentable(op, desc.Kind, "EOL padding exceeds 255 bits")
		}
		return c.writeByte(op, byte(bits))

	case KindMSS:
		return c.write(op, desc.Slice[2:4])

	case KindWS:
		return c.writeByte(op, desc.Slice[2])

	case KindTimestamps:
		return c.write(op, desc.Slice[2:10])

	case KindSACK:
		if ctx.SackCode == nil {
			return newUnrepresentable(op, desc.Kind, "no SACK encoder configured")
		}
		blocks := desc.Slice[2:]
		n, err := ctx.SackCode(ackNum, blocks, len(blocks), false, c.out[c.pos:])
		if err != nil {
			return err
		}
		c.pos += n
		return nil

	default: // generic
		if desc.Length > 127 {
			return newUnrepresentable(op, desc.Kind, "generic option exceeds 127 bytes")
		}
		if err := c.writeByte(op, byte(desc.Kind)); err != nil {
			return err
		}
		const optionStatic = 0 // preserved in the wire layout; never set on emit, see DESIGN.md
		if err := c.writeByte(op, optionStatic<<7|byte(desc.Length&0x7f)); err != nil {
			return err
		}
		return c.write(op, desc.Slice[2:])
	}
}

// CodeIrregular emits the irregular-chain deltas, 4.D.2, for every
// accepted option whose list item was not emitted this packet. Options
// appear in input order. It returns the number of bytes written.
func CodeIrregular(ctx *Context, opts *Options, tmp *Temp, ackNum uint32, out []byte) (int, error) {
	const op = "code_irregular"
	c := &cursor{out: out}
	oaRep := int(ctx.OARepetitionsNr)

	for i := 0; i < opts.N; i++ {
		desc := opts.Items[i]
		idx := tmp.Position2Index[i]
		if tmp.ListItemNeeded[idx] {
			continue
		}
		slot := &ctx.Slots[idx]
		ch := tmp.Changes[idx]

		switch desc.Kind {
		case KindNOP, KindEOL, KindMSS, KindWS, KindSACKPermitted:
			// Nothing is carried in the irregular chain for these kinds.

		case KindTimestamps:
			if tmp.TSReqBytesNr == 0 || tmp.TSReplyBytesNr == 0 {
				panic("tcpopts: irregular TS item requested with infeasible LSB width")
			}
			if ctx.TSLSBCode == nil {
				return 0, newUnrepresentable(op, desc.Kind, "no TS LSB encoder configured")
			}
			n, err := ctx.TSLSBCode(tmp.TSReq, tmp.TSReqBytesNr, c.out[c.pos:])
			if err != nil {
				return 0, err
			}
			c.pos += n
			n, err = ctx.TSLSBCode(tmp.TSReply, tmp.TSReplyBytesNr, c.out[c.pos:])
			if err != nil {
				return 0, err
			}
			c.pos += n

		case KindSACK:
			if ctx.SackCode == nil {
				return 0, newUnrepresentable(op, desc.Kind, "no SACK encoder configured")
			}
			unchanged := !(ch.DynChanged || slot.DynTransNr < oaRep)
			blocks := desc.Slice[2:]
			n, err := ctx.SackCode(ackNum, blocks, len(blocks), unchanged, c.out[c.pos:])
			if err != nil {
				return 0, err
			}
			c.pos += n

		default: // generic
			if ch.DynChanged || slot.DynTransNr < oaRep {
				if err := c.writeByte(op, 0x00); err != nil {
					return 0, err
				}
				if err := c.write(op, desc.Slice[2:]); err != nil {
					return 0, err
				}
			} else {
				if err := c.writeByte(op, 0xff); err != nil {
					return 0, err
				}
			}
		}
	}
	return c.pos, nil
}
