// Package tcpopts implements the TCP-options compression core for the
// compressor side of a ROHC-TCP (RFC 6846) profile.
//
// Given a TCP header's raw options block and a per-flow compression
// context, the package validates the options, assigns each a stable
// small-integer index, classifies the change relative to the
// previously-compressed packet, and emits the two ROHC-TCP wire forms:
// the list-item encoding (full or per-option item, carried in the
// dynamic/replicate/CO chains) and the irregular-chain encoding
// (compact delta for options not retransmitted in full this packet).
//
// The surrounding ROHC engine (packet dispatch, CRC, generic W-LSB
// window management, socket I/O) lives above this package. The W-LSB
// feasibility oracle, the SACK encoder and the timestamp LSB encoder
// are referenced only through the [WLSBWindow], [SackCoder] and
// [TSLSBCoder] interfaces/func types; this package never implements
// them.
package tcpopts
