package tcpopts

import (
	"bytes"
	"testing"
)

// These mirror the six worked end-to-end scenarios: a fresh SYN's option
// list, its retransmission, its steady state, a static MSS change, a fresh
// timestamp option, and a SACK option gone dormant on the irregular chain.
// All run with oa_repetitions_nr=3.

func TestScenarioFreshSYN(t *testing.T) {
	var ctx Context
	ctx.SetOARepetitionsNr(3)
	opts := mustAccept(t, []byte{0x02, 0x04, 0x05, 0xb4, 0x01, 0x03, 0x03, 0x07})
	tmp := ctx.Detect(&opts, 0, false)

	if opts.N != 3 {
		t.Fatalf("expected m=3, got %d", opts.N)
	}
	wantIdx := [3]Index{2, 0, 3}
	for i, want := range wantIdx {
		if tmp.Position2Index[i] != want {
			t.Fatalf("position %d: want index %d, got %d", i, want, tmp.Position2Index[i])
		}
	}
	if tmp.IdxMax != 3 {
		t.Fatalf("want idx_max=3, got %d", tmp.IdxMax)
	}
	if !tmp.DoListStructChanged {
		t.Fatal("want do_list_struct_changed=true on a fresh context")
	}
	for i := 0; i < opts.N; i++ {
		kind := opts.Items[i].Kind
		idx := tmp.Position2Index[i]
		// NOP and SACK-Permitted never need a list item: their body is
		// empty, so there is nothing a full item would add.
		want := kind != KindNOP && kind != KindSACKPermitted
		if tmp.ListItemNeeded[idx] != want {
			t.Fatalf("position %d (kind %v): list_item_needed=%v, want %v", i, kind, tmp.ListItemNeeded[idx], want)
		}
	}

	var out [32]byte
	n, err := CodeListItem(&ctx, &opts, &tmp, 0, out[:])
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x03, 0xa0, 0xb0, 0x05, 0xb4, 0x07}
	if !bytes.Equal(out[:n], want) {
		t.Fatalf("got % x, want % x", out[:n], want)
	}
	ctx.Commit(&opts, &tmp)
}

func TestScenarioSecondIdenticalPacketStillNeedsList(t *testing.T) {
	var ctx Context
	ctx.SetOARepetitionsNr(3)
	opts := mustAccept(t, []byte{0x02, 0x04, 0x05, 0xb4, 0x01, 0x03, 0x03, 0x07})
	tmp := ctx.Detect(&opts, 0, false)
	ctx.Commit(&opts, &tmp)

	tmp2 := ctx.Detect(&opts, 0, false)
	if tmp2.DoListStructChanged {
		t.Fatal("structure did not change on the second identical packet")
	}
	if ctx.StructureNrTrans != 1 {
		t.Fatalf("want structure_nr_trans=1 before the second commit, got %d", ctx.StructureNrTrans)
	}
	if !tmp2.IsListNeeded {
		t.Fatal("want is_list_needed=true while structure_nr_trans < oa_repetitions_nr")
	}

	var out [32]byte
	n, err := CodeListItem(&ctx, &opts, &tmp2, 0, out[:])
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x03, 0xa0, 0xb0, 0x05, 0xb4, 0x07}
	if !bytes.Equal(out[:n], want) {
		t.Fatalf("expected the same items re-emitted, got % x want % x", out[:n], want)
	}
}

func TestScenarioFourthIdenticalPacketDropsList(t *testing.T) {
	var ctx Context
	ctx.SetOARepetitionsNr(3)
	opts := mustAccept(t, []byte{0x02, 0x04, 0x05, 0xb4, 0x01, 0x03, 0x03, 0x07})

	for i := 0; i < 3; i++ {
		tmp := ctx.Detect(&opts, 0, false)
		ctx.Commit(&opts, &tmp)
	}
	if ctx.StructureNrTrans != 3 {
		t.Fatalf("want structure_nr_trans=3 after three commits, got %d", ctx.StructureNrTrans)
	}

	tmp := ctx.Detect(&opts, 0, false)
	if tmp.IsListNeeded {
		t.Fatal("want is_list_needed=false on the fourth identical packet")
	}
	var out [8]byte
	n, err := CodeIrregular(&ctx, &opts, &tmp, 0, out[:])
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("want an empty irregular chain for three static-only options, got % x", out[:n])
	}
}

func TestScenarioMSSChangeForcesFullItem(t *testing.T) {
	var ctx Context
	ctx.SetOARepetitionsNr(3)
	first := mustAccept(t, []byte{0x02, 0x04, 0x05, 0xb4, 0x01, 0x03, 0x03, 0x07})
	for i := 0; i < 3; i++ {
		tmp := ctx.Detect(&first, 0, false)
		ctx.Commit(&first, &tmp)
	}

	second := mustAccept(t, []byte{0x02, 0x04, 0x05, 0x78, 0x01, 0x03, 0x03, 0x07})
	tmp := ctx.Detect(&second, 0, false)
	mssIdx := tmp.Position2Index[0]
	if mssIdx != 2 {
		t.Fatalf("want MSS at reserved index 2, got %d", mssIdx)
	}
	if !tmp.Changes[mssIdx].StaticChanged {
		t.Fatal("want MSS value change classified as Static")
	}
	if !tmp.ListItemNeeded[mssIdx] {
		t.Fatal("want list_item_needed[2]=true after a static MSS change")
	}

	var out [32]byte
	n, err := CodeListItem(&ctx, &second, &tmp, 0, out[:])
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(out[:n], []byte{0x05, 0x78}) {
		t.Fatalf("expected the full MSS=1400 item 05 78 in % x", out[:n])
	}

	ctx.Commit(&second, &tmp)
	if ctx.Slots[mssIdx].FullTransNr != 1 {
		t.Fatalf("want full_trans_nr reset to 1 after the static change, got %d", ctx.Slots[mssIdx].FullTransNr)
	}
}

func TestScenarioTimestampsFirstPacketIsStaticFullBody(t *testing.T) {
	var ctx Context
	ctx.SetOARepetitionsNr(3)
	ctx.SetTSWindows(fakeWindow{kOK: 1}, fakeWindow{kOK: 1})
	raw := []byte{0x08, 0x0a, 0, 0, 0, 1, 0, 0, 0, 0}
	opts := mustAccept(t, raw)
	tmp := ctx.Detect(&opts, 0, false)

	idx := tmp.Position2Index[0]
	if idx != 4 {
		t.Fatalf("want Timestamps at reserved index 4, got %d", idx)
	}
	if !tmp.Changes[idx].StaticChanged {
		t.Fatal("want a fresh Timestamps option classified as Static")
	}

	var out [32]byte
	n, err := CodeListItem(&ctx, &opts, &tmp, 0, out[:])
	if err != nil {
		t.Fatal(err)
	}
	wantBody := []byte{0, 0, 0, 1, 0, 0, 0, 0}
	if !bytes.Contains(out[:n], wantBody) {
		t.Fatalf("expected raw 8-byte TS body in % x", out[:n])
	}
}

func TestScenarioSACKDormantUsesUnchangedIrregularForm(t *testing.T) {
	var ctx Context
	ctx.SetOARepetitionsNr(3)
	raw := []byte{0x05, 0x0a, 0, 0, 0, 1, 0, 0, 0, 10}

	var sackCalls int
	var lastUnchanged bool
	ctx.SetSackCoder(func(ackNum uint32, blocks []byte, blocksLen int, unchanged bool, out []byte) (int, error) {
		sackCalls++
		lastUnchanged = unchanged
		if unchanged {
			out[0] = 0xfe
			return 1, nil
		}
		n := copy(out, blocks[:blocksLen])
		return n, nil
	})

	opts := mustAccept(t, raw)
	for i := 0; i < 3; i++ {
		tmp := ctx.Detect(&opts, 100, false)
		ctx.Commit(&opts, &tmp)
	}

	tmp := ctx.Detect(&opts, 100, false)
	idx := tmp.Position2Index[0]
	if tmp.ListItemNeeded[idx] {
		t.Fatal("want no list item once the SACK block has stabilized")
	}
	var out [4]byte
	n, err := CodeIrregular(&ctx, &opts, &tmp, 100, out[:])
	if err != nil {
		t.Fatal(err)
	}
	if sackCalls == 0 {
		t.Fatal("expected the SACK coder to be invoked on the irregular chain")
	}
	if !lastUnchanged {
		t.Fatal("want the coder invoked with unchanged=true once ack and content stabilize")
	}
	if n != 1 || out[0] != 0xfe {
		t.Fatalf("expected the coder's unchanged-form output passed through, got % x", out[:n])
	}
}
