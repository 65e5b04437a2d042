package imap

import (
	"testing"
)

var seqContainsTests = []struct {
	seqs    []SeqRange
	want    []uint32
	wantNot []uint32
}{
	{
		seqs: []SeqRange{{1, SeqMax}},
		want: []uint32{1, 2, 3, 4},
	},
	{
		seqs:    []SeqRange{{1, 1}, {3, 4}},
		want:    []uint32{1, 3, 4},
		wantNot: []uint32{2, 5},
	},
	{
		seqs:    []SeqRange{{4, SeqMax}},
		want:    []uint32{4, 5, 6},
		wantNot: []uint32{1, 2, 3},
	},
}

func TestSeqContains(t *testing.T) {
	for _, test := range seqContainsTests {
		for _, id := range test.want {
			if !SeqContains(test.seqs, id) {
				t.Errorf("SeqContains(%v, %d)=false, want true", test.seqs, id)
			}
		}
		for _, id := range test.wantNot {
			if SeqContains(test.seqs, id) {
				t.Errorf("SeqContains(%v, %d)=true, want false", test.seqs, id)
			}
		}
	}
}

var formatSeqsTests = []struct {
	seqs []SeqRange
	want string
}{
	{[]SeqRange{{1, 1}}, "1"},
	{[]SeqRange{{1, 3}}, "1:3"},
	{[]SeqRange{{1, 1}, {3, 4}, {9, 9}}, "1,3:4,9"},
	{[]SeqRange{{12, SeqMax}}, "12:*"},
	{[]SeqRange{{SeqMax, SeqMax}}, "*"},
	{[]SeqRange{{41, 41}, {43, 116}, {118, 118}, {120, 211}}, "41,43:116,118,120:211"},
}

func TestFormatSeqs(t *testing.T) {
	for _, test := range formatSeqsTests {
		if got := SeqsString(test.seqs); got != test.want {
			t.Errorf("SeqsString(%v)=%q, want %q", test.seqs, got, test.want)
		}
	}
}

func TestAppendSeqRange(t *testing.T) {
	var seqs []SeqRange
	for _, v := range []uint32{1, 2, 3, 5, 9, 10} {
		seqs = AppendSeqRange(seqs, v)
	}
	if got := SeqsString(seqs); got != "1:3,5,9:10" {
		t.Errorf("appended seqs = %q, want 1:3,5,9:10", got)
	}
}

func TestSeqCount(t *testing.T) {
	n, bounded := SeqCount([]SeqRange{{1, 3}, {7, 7}})
	if n != 4 || !bounded {
		t.Errorf("SeqCount = %d bounded=%v", n, bounded)
	}
	if _, bounded := SeqCount([]SeqRange{{1, SeqMax}}); bounded {
		t.Error("open range reported bounded")
	}
}
