package tcpopts

import "log/slog"

// Kind is the TCP option kind code as it appears on the wire (the first
// byte of an option). It is distinct from [Index], the small compressed
// identifier this package assigns to a kind for the lifetime of a flow.
type Kind uint8

// Option kinds the reserved index table in §3.1 knows by name. Any other
// kind code occupies a generic slot (indices 7..15).
const (
	KindEOL           Kind = 0 // end of option list
	KindNOP           Kind = 1 // no-operation
	KindMSS           Kind = 2 // maximum segment size
	KindWS            Kind = 3 // window scale
	KindSACKPermitted Kind = 4 // SACK permitted
	KindSACK          Kind = 5 // SACK
	KindTimestamps    Kind = 8 // timestamps
)

// Index is a 4-bit identifier 0..15 that aliases a TCP option kind within a
// flow. 0..6 are reserved for the well-known kinds above; 7..15 are
// recyclable generic slots.
type Index uint8

const (
	// MaxIndex is the highest valid index.
	MaxIndex = 15
	// MaxOptions is ROHC_TCP_OPTS_MAX, the most options one packet may carry.
	MaxOptions = 15
	// MaxOptionLen is ROHC_TCP_OPT_MAX_LEN, the longest a single option may be.
	MaxOptionLen = 40
	// MaxSACKBlocks is the most SACK blocks a single SACK option may carry.
	MaxSACKBlocks = 4
	// firstGenericIndex is the lowest index available for a non-reserved kind.
	firstGenericIndex Index = 7
)

// IsReserved reports whether idx names one of the seven well-known indices.
func (idx Index) IsReserved() bool { return idx <= 6 }

// reservedIndexForKind implements the kind-code to reserved-index table of
// §3.1 as a closed switch rather than a sparse lookup array, so every
// addition to the reserved set is a compile-time-visible change here.
func reservedIndexForKind(k Kind) (idx Index, ok bool) {
	switch k {
	case KindNOP:
		return 0, true
	case KindEOL:
		return 1, true
	case KindMSS:
		return 2, true
	case KindWS:
		return 3, true
	case KindTimestamps:
		return 4, true
	case KindSACKPermitted:
		return 5, true
	case KindSACK:
		return 6, true
	}
	return 0, false
}

// Descriptor is one parsed option occurrence: its kind, its length
// including any type/length header bytes, and the exact bytes as they
// appeared in the input.
type Descriptor struct {
	Kind   Kind
	Length int
	Slice  []byte
}

// payload returns the portion of the descriptor's bytes that the per-index
// state machine tracks for change detection: the content after the 2-byte
// type/length prefix for multi-byte options, or the whole slice for
// NOP/EOL, which carry no such prefix.
func (d Descriptor) payload() []byte {
	switch d.Kind {
	case KindNOP, KindEOL:
		return d.Slice
	default:
		return d.Slice[2:]
	}
}

// Options is the parsed, validated view of one packet's options area
// produced by [Accept]. It is a fixed-size value so accepting options
// never allocates.
type Options struct {
	Items    [MaxOptions]Descriptor
	N        int
	TotalLen int
}

// Descriptors returns the accepted option descriptors in input order.
func (o *Options) Descriptors() []Descriptor { return o.Items[:o.N] }

// WLSBWindow is the W-LSB feasibility oracle over a sliding window of
// recently-sent values. It is supplied by the enclosing compression
// context; this package never constructs or mutates one.
type WLSBWindow interface {
	// IsKPossible reports whether value can be reconstructed from its
	// kBits least significant bits, shifted by shift, given everything in
	// the window so far.
	IsKPossible(value uint32, kBits, shift int) bool
}

// SackCoder encodes a SACK option's blocks relative to ackNum into out,
// either as a full encoding or as the "unchanged" form, and returns the
// number of bytes written.
type SackCoder func(ackNum uint32, blocks []byte, blocksLen int, unchanged bool, out []byte) (int, error)

// TSLSBCoder encodes value's least significant bits, budgeted to
// byteBudget bytes (an SDVL length 1..4), into out and returns the number
// of bytes written.
type TSLSBCoder func(value uint32, byteBudget int, out []byte) (int, error)

// slogKind returns a slog.Attr for an option kind without allocating a
// string representation on the hot path.
func slogKind(key string, k Kind) slog.Attr {
	return slog.Uint64(key, uint64(k))
}

// slogIndex returns a slog.Attr for an option index.
func slogIndex(key string, idx Index) slog.Attr {
	return slog.Uint64(key, uint64(idx))
}
