package jtag

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBuildSequencesSplitsOnTMS(t *testing.T) {
	// 8 bits: TMS = 0,0,0,1,1,0,0,0 must split into three runs.
	tms := []byte{0b0001_1000}
	tdi := []byte{0b1010_0101}

	seqs := buildSequences(tms, tdi, 8)
	if len(seqs) != 3 {
		t.Fatalf("got %d sequences, want 3", len(seqs))
	}

	counts := []int{3, 2, 3}
	levels := []bool{false, true, false}
	for i, seq := range seqs {
		count := int(seq.info & seqTCKMask)
		if count != counts[i] {
			t.Fatalf("sequence %d: count %d, want %d", i, count, counts[i])
		}
		if (seq.info&seqTMS != 0) != levels[i] {
			t.Fatalf("sequence %d: TMS level mismatch", i)
		}
		if seq.info&seqTDO == 0 {
			t.Fatalf("sequence %d: TDO capture not requested", i)
		}
	}

	// TDI bits redistribute across the runs: 101, 00, 101.
	want := [][]byte{{0b101}, {0b00}, {0b101}}
	for i, seq := range seqs {
		if diff := cmp.Diff(want[i], seq.tdi); diff != "" {
			t.Fatalf("sequence %d TDI mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestBuildSequencesNoTMSBuffer(t *testing.T) {
	seqs := buildSequences(nil, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x01}, 65)
	if len(seqs) != 2 {
		t.Fatalf("got %d sequences, want 2 for 65 bits", len(seqs))
	}
	if count := int(seqs[0].info & seqTCKMask); count != 0 { // 0 encodes 64
		t.Fatalf("first sequence count field = %d, want 0 (=64)", count)
	}
	if count := int(seqs[1].info & seqTCKMask); count != 1 {
		t.Fatalf("second sequence count = %d, want 1", count)
	}
}

func TestEncodeDecodeSequencesRoundTrip(t *testing.T) {
	seqs := buildSequences(nil, []byte{0xA5, 0x03}, 10)
	cmd := encodeSequences(seqs)
	if cmd[0] != cmdJTAGSequence || cmd[1] != byte(len(seqs)) {
		t.Fatalf("bad command header % X", cmd[:2])
	}

	// Fake a probe response echoing the TDI bytes as TDO.
	resp := []byte{cmdJTAGSequence, statusOK, 0xA5, 0x03}
	tdo, err := decodeSequences(resp, seqs, 10)
	if err != nil {
		t.Fatalf("decodeSequences: %v", err)
	}
	if diff := cmp.Diff([]byte{0xA5, 0x03}, tdo); diff != "" {
		t.Fatalf("TDO mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeSequencesRejectsErrors(t *testing.T) {
	seqs := buildSequences(nil, []byte{0x01}, 1)
	if _, err := decodeSequences([]byte{cmdJTAGSequence}, seqs, 1); err == nil {
		t.Fatalf("expected error for short response")
	}
	if _, err := decodeSequences([]byte{cmdJTAGSequence, 0xFF, 0x00}, seqs, 1); err == nil {
		t.Fatalf("expected error for probe status failure")
	}
}
