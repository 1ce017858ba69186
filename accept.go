package tcpopts

// Accept parses and validates a raw TCP options block, returning a
// position-indexed view of kinds, lengths and slices. raw must be exactly
// the options area of the TCP header (data_offset*4 - 20 bytes); the
// caller owns raw and it must not change while the returned [Options]
// value is in use, since descriptor slices alias it.
//
// Accept fails with a [KindMalformedOptions] [Error] if the block does not
// conform to the acceptance rules: malformed option headers, a
// well-formedness violation for a fixed-shape kind, more than
// [MaxOptions] options, or a non-NOP non-EOL kind repeated within the
// block.
func Accept(raw []byte) (Options, error) {
	const op = "accept"
	var out Options
	l := len(raw)
	out.TotalLen = l
	cursor := 0
	for cursor < l {
		kind := Kind(raw[cursor])
		var length int
		switch kind {
		case KindNOP:
			length = 1
		case KindEOL:
			length = l - cursor
		default:
			if l-cursor < 2 {
				return out, newMalformed(op, kind, "truncated option header")
			}
			length = int(raw[cursor+1])
			if length < 2 || length > l-cursor {
				return out, newMalformed(op, kind, "option length out of range")
			}
		}
		opt := raw[cursor : cursor+length]
		if err := wellFormed(kind, opt); err != nil {
			return out, err
		}
		if kind != KindNOP && kind != KindEOL {
			for i := 0; i < out.N; i++ {
				if out.Items[i].Kind == kind {
					return out, newMalformed(op, kind, "kind repeated in options block")
				}
			}
		}
		if out.N >= MaxOptions {
			return out, newMalformed(op, kind, "more than MaxOptions options in block")
		}
		out.Items[out.N] = Descriptor{Kind: kind, Length: length, Slice: opt}
		out.N++
		cursor += length
	}
	return out, nil
}

// wellFormed checks the per-kind shape rules of §4.A against one already
// length-framed option.
func wellFormed(kind Kind, opt []byte) error {
	const op = "accept"
	length := len(opt)
	if length > MaxOptionLen {
		return newMalformed(op, kind, "option exceeds MaxOptionLen")
	}
	switch kind {
	case KindEOL:
		if length > 32 {
			return newMalformed(op, kind, "EOL longer than 32 bytes")
		}
		for _, b := range opt {
			if b != 0 {
				return newMalformed(op, kind, "EOL bytes must be zero")
			}
		}
	case KindMSS:
		if length != 4 {
			return newMalformed(op, kind, "MSS must be 4 bytes")
		}
	case KindWS:
		if length != 3 {
			return newMalformed(op, kind, "WS must be 3 bytes")
		}
	case KindSACKPermitted:
		if length != 2 {
			return newMalformed(op, kind, "SACK-Permitted must be 2 bytes")
		}
	case KindSACK:
		if (length-2)%8 != 0 {
			return newMalformed(op, kind, "SACK length not 2+8N")
		}
		n := (length - 2) / 8
		if n < 1 || n > MaxSACKBlocks {
			return newMalformed(op, kind, "SACK block count out of range")
		}
	case KindTimestamps:
		if length != 10 {
			return newMalformed(op, kind, "TS must be 10 bytes")
		}
	}
	return nil
}
