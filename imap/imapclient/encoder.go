package imapclient

import (
	"bytes"
	"io"
	"strconv"
	"time"
	"unicode/utf8"

	"spool.ink/imap"
	"spool.ink/imap/imapwire/utf7mod"
)

// cmdPart is one write segment of an encoded command. A non-nil lit
// is a literal payload following the "{n}\r\n" announcement that
// ends text; sync marks the announcements that must await the
// server's continuation request before the payload is sent.
type cmdPart struct {
	text []byte
	lit  io.Reader
	litN int64
	sync bool
}

// cmdBuilder assembles the wire form of a command.
//
// Strings encode as a quoted string when they fit in printable
// US-ASCII, escaping '"' and '\' in place; otherwise as a literal.
// When the server advertised LITERAL+ the literal is
// non-synchronizing and no continuation is awaited.
type cmdBuilder struct {
	c     *Conn
	name  string
	tag   string
	buf   []byte
	parts []cmdPart
}

func (c *Conn) newCmd(name string) *cmdBuilder {
	b := &cmdBuilder{c: c, name: name, tag: c.nextTag()}
	b.buf = append(b.buf, b.tag...)
	b.sp()
	b.buf = append(b.buf, name...)
	return b
}

func (b *cmdBuilder) sp() {
	b.buf = append(b.buf, ' ')
}

func (b *cmdBuilder) atom(s string) {
	b.buf = append(b.buf, s...)
}

func (b *cmdBuilder) number(n uint64) {
	b.buf = strconv.AppendUint(b.buf, n, 10)
}

func (b *cmdBuilder) end() {
	b.buf = append(b.buf, '\r', '\n')
	b.parts = append(b.parts, cmdPart{text: b.buf})
	b.buf = nil
}

// string encodes s as quoted or literal.
func (b *cmdBuilder) string(s []byte) {
	if quotable(s) {
		b.buf = append(b.buf, '"')
		for _, c := range s {
			if c == '"' || c == '\\' {
				b.buf = append(b.buf, '\\')
			}
			b.buf = append(b.buf, c)
		}
		b.buf = append(b.buf, '"')
		return
	}
	b.literal(bytes.NewReader(s), int64(len(s)))
}

// quotable reports whether s fits in a quoted string: printable
// US-ASCII only. Quote specials are escaped by the writer.
func quotable(s []byte) bool {
	for _, c := range s {
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	return true
}

// literal encodes a literal of n octets. A "{n+}" announcement is
// used when the server advertised LITERAL+ (or LITERAL- and the
// payload is small, RFC 7888), and no continuation is awaited.
func (b *cmdBuilder) literal(r io.Reader, n int64) {
	nonSync := b.c.caps.Has(imap.CapLiteralPlus) ||
		(b.c.caps.Has(imap.CapLiteralMinus) && n <= 4096)
	b.buf = append(b.buf, '{')
	b.buf = strconv.AppendInt(b.buf, n, 10)
	if nonSync {
		b.buf = append(b.buf, '+')
	}
	b.buf = append(b.buf, '}', '\r', '\n')
	b.parts = append(b.parts, cmdPart{text: b.buf, lit: r, litN: n, sync: !nonSync})
	b.buf = nil
}

// mailbox encodes a mailbox name, applying modified UTF-7 unless
// UTF8=ACCEPT has been enabled.
func (b *cmdBuilder) mailbox(name string) {
	name = imap.NormalizeMailbox(name)
	if b.c.enabled.Has(imap.CapUTF8Accept) {
		b.string([]byte(name))
		return
	}
	enc, err := utf7mod.AppendEncode(nil, []byte(name))
	if err != nil {
		b.string([]byte(name))
		return
	}
	b.string(enc)
}

func (b *cmdBuilder) seqs(seqs []imap.SeqRange) {
	buf := new(bytes.Buffer)
	imap.FormatSeqs(buf, seqs)
	b.buf = append(b.buf, buf.Bytes()...)
}

// flags encodes a parenthesized flag list.
func (b *cmdBuilder) flags(flags []imap.Flag) {
	b.buf = append(b.buf, '(')
	for i, f := range flags {
		if i > 0 {
			b.sp()
		}
		b.atom(string(f))
	}
	b.buf = append(b.buf, ')')
}

// date encodes a search date: 2-Jan-2006, unquoted.
func (b *cmdBuilder) date(t time.Time) {
	b.buf = t.AppendFormat(b.buf, "2-Jan-2006")
}

// dateTime encodes an APPEND date-time: quoted, fixed-width day.
func (b *cmdBuilder) dateTime(t time.Time) {
	b.buf = append(b.buf, '"')
	b.buf = t.AppendFormat(b.buf, "02-Jan-2006 15:04:05 -0700")
	b.buf = append(b.buf, '"')
}

// searchOp serializes a search expression left-to-right.
// AND children juxtapose; nested AND groups parenthesize.
func (b *cmdBuilder) searchOp(op *imap.SearchOp, nested bool) {
	switch op.Key {
	case imap.SearchKeyAnd:
		if nested {
			b.buf = append(b.buf, '(')
		}
		for i := range op.Children {
			if i > 0 {
				b.sp()
			}
			b.searchOp(&op.Children[i], true)
		}
		if nested {
			b.buf = append(b.buf, ')')
		}
	case imap.SearchKeyOr:
		b.atom("OR")
		b.sp()
		b.searchOp(&op.Children[0], true)
		b.sp()
		b.searchOp(&op.Children[1], true)
	case imap.SearchKeyNot:
		b.atom("NOT")
		b.sp()
		b.searchOp(&op.Children[0], true)
	case imap.SearchKeyBcc, imap.SearchKeyBody, imap.SearchKeyCc, imap.SearchKeyFrom,
		imap.SearchKeySubject, imap.SearchKeyText, imap.SearchKeyTo,
		imap.SearchKeyXGmRaw:
		b.atom(string(op.Key))
		b.sp()
		b.string([]byte(op.Value))
	case imap.SearchKeyKeyword, imap.SearchKeyUnkeyword:
		b.atom(string(op.Key))
		b.sp()
		b.atom(op.Value)
	case imap.SearchKeyHeader:
		b.atom("HEADER")
		b.sp()
		b.string([]byte(op.HeaderField))
		b.sp()
		b.string([]byte(op.Value))
	case imap.SearchKeyBefore, imap.SearchKeyOn, imap.SearchKeySince,
		imap.SearchKeySentBefore, imap.SearchKeySentOn, imap.SearchKeySentSince:
		b.atom(string(op.Key))
		b.sp()
		b.date(op.Date)
	case imap.SearchKeyLarger, imap.SearchKeySmaller, imap.SearchKeyModSeq,
		imap.SearchKeyXGmMsgID, imap.SearchKeyXGmThrID:
		b.atom(string(op.Key))
		b.sp()
		b.number(op.Num)
	case imap.SearchKeyUID:
		b.atom("UID")
		b.sp()
		b.seqs(op.Sequences)
	case imap.SearchKeyXGmLabels:
		for i, label := range op.Labels {
			if i > 0 {
				b.sp()
			}
			b.atom("X-GM-LABELS")
			b.sp()
			b.string([]byte(label))
		}
	default:
		// Valueless keys: ALL, ANSWERED, DELETED, SEEN, NEW, ...
		b.atom(string(op.Key))
	}
}

// searchNeedsCharset reports whether any string argument of op
// requires a non-ASCII charset declaration.
func searchNeedsCharset(op *imap.SearchOp) bool {
	if !isASCII(op.Value) || !isASCII(op.HeaderField) {
		return true
	}
	for _, label := range op.Labels {
		if !isASCII(label) {
			return true
		}
	}
	for i := range op.Children {
		if searchNeedsCharset(&op.Children[i]) {
			return true
		}
	}
	return false
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// FetchItem is one requested FETCH data item.
type FetchItem struct {
	Type imap.FetchAttrType
	Peek bool // BODY.PEEK

	// Section is set for BODY[...] requests (Type AttrBodySection).
	Section imap.Section

	// Partial requests the octet range <Start.Length>.
	Partial struct {
		Start  uint32
		Length uint32
	}
}

// Convenience constructors for the orthogonal fetch atoms.
func FetchFlags() FetchItem         { return FetchItem{Type: imap.AttrFlags} }
func FetchEnvelope() FetchItem      { return FetchItem{Type: imap.AttrEnvelope} }
func FetchInternalDate() FetchItem  { return FetchItem{Type: imap.AttrInternalDate} }
func FetchRFC822Size() FetchItem    { return FetchItem{Type: imap.AttrRFC822Size} }
func FetchUID() FetchItem           { return FetchItem{Type: imap.AttrUID} }
func FetchModSeq() FetchItem        { return FetchItem{Type: imap.AttrModSeq} }
func FetchBodyStructure() FetchItem { return FetchItem{Type: imap.AttrBodyStructure} }
func FetchXGmMsgID() FetchItem      { return FetchItem{Type: imap.AttrXGmMsgID} }
func FetchXGmThrID() FetchItem      { return FetchItem{Type: imap.AttrXGmThrID} }
func FetchXGmLabels() FetchItem     { return FetchItem{Type: imap.AttrXGmLabels} }

// FetchBodySection requests BODY[...]; peek avoids setting \Seen.
func FetchBodySection(sec imap.Section, peek bool) FetchItem {
	return FetchItem{Type: imap.AttrBodySection, Section: sec, Peek: peek}
}

func (b *cmdBuilder) fetchItems(items []FetchItem) {
	b.buf = append(b.buf, '(')
	for i := range items {
		if i > 0 {
			b.sp()
		}
		b.fetchItem(&items[i])
	}
	b.buf = append(b.buf, ')')
}

func (b *cmdBuilder) fetchItem(item *FetchItem) {
	switch item.Type {
	case imap.AttrBodySection:
		if item.Peek {
			b.atom("BODY.PEEK")
		} else {
			b.atom("BODY")
		}
		b.section(&item.Section)
		if item.Partial.Start != 0 || item.Partial.Length != 0 {
			b.buf = append(b.buf, '<')
			b.number(uint64(item.Partial.Start))
			b.buf = append(b.buf, '.')
			b.number(uint64(item.Partial.Length))
			b.buf = append(b.buf, '>')
		}
	default:
		b.atom(string(item.Type))
	}
}

func (b *cmdBuilder) section(sec *imap.Section) {
	b.buf = append(b.buf, '[')
	for i, v := range sec.Path {
		if i > 0 {
			b.buf = append(b.buf, '.')
		}
		b.number(uint64(v))
	}
	if sec.Name != "" {
		if len(sec.Path) > 0 {
			b.buf = append(b.buf, '.')
		}
		b.atom(sec.Name)
		if len(sec.Headers) > 0 {
			b.buf = append(b.buf, ' ', '(')
			for i, h := range sec.Headers {
				if i > 0 {
					b.sp()
				}
				b.string(h)
			}
			b.buf = append(b.buf, ')')
		}
	}
	b.buf = append(b.buf, ']')
}
