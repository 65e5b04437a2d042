package imapwire

import (
	"bufio"
	"fmt"
	"os"
	"reflect"
	"strings"
	"testing"

	"crawshaw.io/iox"
	"spool.ink/imap"
)

var filer *iox.Filer

func TestMain(m *testing.M) {
	filer = iox.NewFiler(0)
	os.Exit(m.Run())
}

type tok struct {
	t Token
	v string
	s []imap.SeqRange
}

func (t tok) String() string {
	return fmt.Sprintf("{%s %q %v}", t.t, t.v, t.s)
}

var scannerTests = []struct {
	name    string
	input   string
	expects map[int]Token
	output  []tok
	errstr  string
}{
	{
		input:  "\r\n",
		output: []tok{{t: TokenEnd}},
	},
	{
		input: `OK "My \"Drafts\": \\o/"` + "\r\n",
		output: []tok{
			{t: TokenAtom, v: "OK"},
			{t: TokenString, v: `My "Drafts": \o/`},
			{t: TokenEnd},
		},
	},
	{
		input:  `"unterminated`,
		output: []tok{},
		errstr: "unterminated string",
	},
	{
		input:  `"unterminated\`,
		output: []tok{},
		errstr: "unterminated string",
	},
	{
		name:  "atoms stop at brackets",
		input: "[UIDVALIDITY 3857529045]\r\n",
		expects: map[int]Token{
			0: TokenBracketStart,
			2: TokenNumber,
			3: TokenBracketEnd,
		},
		output: []tok{
			{t: TokenBracketStart},
			{t: TokenAtom, v: "UIDVALIDITY"},
			{t: TokenNumber},
			{t: TokenBracketEnd},
			{t: TokenEnd},
		},
	},
	{
		input: "41,43:116,118,120:211 15 9:3 *\r\n",
		expects: map[int]Token{
			0: TokenSequences,
			1: TokenSequences,
			2: TokenSequences,
			3: TokenSequences,
		},
		output: []tok{
			{t: TokenSequences, s: []imap.SeqRange{
				{Min: 41, Max: 41},
				{Min: 43, Max: 116},
				{Min: 118, Max: 118},
				{Min: 120, Max: 211},
			}},
			{t: TokenSequences, s: []imap.SeqRange{{Min: 15, Max: 15}}},
			{t: TokenSequences, s: []imap.SeqRange{{Min: 3, Max: 9}}},
			{t: TokenSequences, s: []imap.SeqRange{{Min: imap.SeqMax, Max: imap.SeqMax}}},
			{t: TokenEnd},
		},
	},
	{
		name:  "open range decodes star as max uint32",
		input: "12:*\r\n",
		expects: map[int]Token{
			0: TokenSequences,
		},
		output: []tok{
			{t: TokenSequences, s: []imap.SeqRange{{Min: 12, Max: imap.SeqMax}}},
			{t: TokenEnd},
		},
	},
	{
		name:  "short literal",
		input: "{4}\r\n💩\r\n",
		expects: map[int]Token{
			0: TokenString,
		},
		output: []tok{
			{t: TokenString, v: "💩"},
			{t: TokenEnd},
		},
	},
	{
		name:  "nstring NIL",
		input: "NIL \"\" nil\r\n",
		expects: map[int]Token{
			0: TokenNString,
			1: TokenNString,
			2: TokenNString,
		},
		output: []tok{
			{t: TokenNString},
			{t: TokenNString},
			{t: TokenNString},
			{t: TokenEnd},
		},
	},
	{
		name:  "flags",
		input: `\Seen \* $Forwarded \Extension` + "\r\n",
		expects: map[int]Token{
			0: TokenFlag,
			1: TokenFlag,
			2: TokenFlag,
			3: TokenFlag,
		},
		output: []tok{
			{t: TokenFlag, v: `\Seen`},
			{t: TokenFlag, v: `\*`},
			{t: TokenFlag, v: `$Forwarded`},
			{t: TokenFlag, v: `\Extension`},
			{t: TokenEnd},
		},
	},
	{
		name:  "64-bit number",
		input: "18446744073709551615\r\n",
		expects: map[int]Token{
			0: TokenNumber,
		},
		output: []tok{
			{t: TokenNumber},
			{t: TokenEnd},
		},
	},
}

func TestScanner(t *testing.T) {
	for _, test := range scannerTests {
		name := test.name
		if name == "" {
			name = test.input
		}
		t.Run(name, func(t *testing.T) {
			r := bufio.NewReader(strings.NewReader(test.input))
			s := NewScanner(r, filer)
			got := []tok{}
			i := 0
			const limit = 1000
			for ; i < limit && s.Next(test.expects[i]); i++ {
				token := tok{
					t: s.Token,
					v: string(s.Value),
					s: append(([]imap.SeqRange)(nil), s.Sequences...),
				}
				if token.t == TokenNumber || token.t == TokenNString {
					token.v = "" // value checked via Number/IsNil directly
				}
				got = append(got, token)
			}
			if i == limit {
				t.Error("limit overrun")
			}
			if rem := s.buf.Buffered(); s.Error == nil && rem > 0 {
				t.Errorf("unscanned bytes, %d remaining", rem)
			}
			errstr := ""
			if s.Error != nil {
				errstr = s.Error.Error()
			}
			if !strings.Contains(errstr, test.errstr) {
				t.Errorf("scanner.Error=%q, want substring %q", s.Error, test.errstr)
			}
			if !reflect.DeepEqual(got, test.output) {
				t.Errorf("scanner\n got: %v\nwant: %v", got, test.output)
			}
			if s.Next(TokenUnknown) {
				t.Errorf("trailing token: %v", s.Token)
			}
		})
	}
}

func TestScannerNumberValues(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("3857529045 18446744073709551615 917162500\r\n"))
	s := NewScanner(r, filer)
	want := []uint64{3857529045, 18446744073709551615, 917162500}
	for i, w := range want {
		if !s.Next(TokenNumber) {
			t.Fatalf("number %d: scan failed: %v", i, s.Error)
		}
		if s.Number != w {
			t.Errorf("number %d = %d, want %d", i, s.Number, w)
		}
	}
}

func TestScannerNStringNil(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("NIL \"\"\r\n"))
	s := NewScanner(r, filer)
	if !s.Next(TokenNString) {
		t.Fatalf("scan NIL failed: %v", s.Error)
	}
	if !s.IsNil {
		t.Error("NIL did not set IsNil")
	}
	if !s.Next(TokenNString) {
		t.Fatalf("scan empty string failed: %v", s.Error)
	}
	if s.IsNil {
		t.Error(`"" set IsNil`)
	}
	if len(s.Value) != 0 {
		t.Errorf(`"" scanned as %q`, s.Value)
	}
}

func Test7bitPrint(t *testing.T) {
	for b := byte(0x20); b <= 0x7e; b++ {
		if !is7bitPrint(b) {
			t.Errorf("is7bitPrint(%q)=false, want true", string(b))
		}
	}
	for _, b := range []byte{0x00, 0x1f, 0x7f, 0x80, 0xff, '\r', '\n', '\t'} {
		if is7bitPrint(b) {
			t.Errorf("is7bitPrint(%q)=true, want false", string(b))
		}
	}
}
