package imap

import (
	"fmt"
	"io"
	"strings"
)

// SeqMax is the decoded value of the sequence token '*'.
// Whether it means "largest seq-number" or "largest UID" is
// determined by the command it appears in.
const SeqMax = ^uint32(0)

// SeqRange is a normalized IMAP seq-range.
// Normalized means that Min is always less than or equal to Max.
//
// The value SeqMax is the decoding of '*'.
// When Min == Max, a SeqRange refers to a single value.
type SeqRange struct {
	Min uint32
	Max uint32
}

// Seq builds a single-value range.
func Seq(v uint32) SeqRange { return SeqRange{Min: v, Max: v} }

// SeqAll is the range 1:*.
func SeqAll() []SeqRange { return []SeqRange{{Min: 1, Max: SeqMax}} }

// FormatSeqs writes the wire form of an IMAP sequence-set.
// SeqMax values emit '*'.
func FormatSeqs(w io.Writer, seqs []SeqRange) error {
	for i, seq := range seqs {
		if i > 0 {
			if _, err := fmt.Fprint(w, ","); err != nil {
				return err
			}
		}
		if seq.Min == seq.Max {
			if err := formatSeqNum(w, seq.Min); err != nil {
				return err
			}
			continue
		}
		if err := formatSeqNum(w, seq.Min); err != nil {
			return err
		}
		if _, err := fmt.Fprint(w, ":"); err != nil {
			return err
		}
		if err := formatSeqNum(w, seq.Max); err != nil {
			return err
		}
	}
	return nil
}

func formatSeqNum(w io.Writer, v uint32) error {
	if v == SeqMax {
		_, err := fmt.Fprint(w, "*")
		return err
	}
	_, err := fmt.Fprintf(w, "%d", v)
	return err
}

// SeqsString is FormatSeqs into a string.
func SeqsString(seqs []SeqRange) string {
	buf := new(strings.Builder)
	FormatSeqs(buf, seqs)
	return buf.String()
}

// AppendSeqRange appends v to seqs, extending the final range
// when v directly follows it.
func AppendSeqRange(seqs []SeqRange, v uint32) []SeqRange {
	if len(seqs) > 0 && v > 0 {
		last := &seqs[len(seqs)-1]
		if last.Min > last.Max {
			last.Min, last.Max = last.Max, last.Min // normalize
		}
		if last.Max != SeqMax && last.Max == v-1 {
			last.Max++ // append v to last SeqRange
			return seqs
		}
	}
	return append(seqs, SeqRange{Min: v, Max: v})
}

// SeqContains reports whether seqNum falls inside sequences.
func SeqContains(sequences []SeqRange, seqNum uint32) bool {
	for _, seq := range sequences {
		if seq.Min <= seqNum && seq.Max >= seqNum {
			return true
		}
	}
	return false
}

// SeqCount reports the number of values covered by sequences.
// Ranges ending in SeqMax count as open and report 0.
func SeqCount(sequences []SeqRange) (n uint64, bounded bool) {
	bounded = true
	for _, seq := range sequences {
		if seq.Max == SeqMax {
			bounded = false
			continue
		}
		n += uint64(seq.Max-seq.Min) + 1
	}
	return n, bounded
}
