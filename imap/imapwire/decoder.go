package imapwire

import (
	"fmt"
	"io"

	"crawshaw.io/iox"
	"spool.ink/imap"
	"spool.ink/imap/imapwire/utf7mod"
)

// FrameType discriminates decoded response frames.
type FrameType int

const (
	FrameTagged FrameType = iota + 1
	FrameUntagged
	FrameCont
)

// Response is one complete decoded server frame.
type Response struct {
	Type FrameType

	// Tag, Cond, Code, and Text are set for Tagged frames.
	Tag  string
	Cond imap.RespCond
	Code imap.RespCode
	Text string

	// Cont is the human text of a continuation request.
	Cont string

	Untagged *imap.Untagged
}

// Decoder decodes IMAP server responses, one complete frame per
// ReadResponse call.
//
// A Decoder never consumes bytes beyond the frame it reports.
// Literal payloads are counted exactly by their declared length.
type Decoder struct {
	Scanner *Scanner
}

func NewDecoder(r *Scanner) *Decoder {
	return &Decoder{Scanner: r}
}

// parseError builds the terminal parse failure for the current
// position. The connection is treated as broken by the caller.
func (d *Decoder) parseError(format string, v ...interface{}) error {
	err := d.Scanner.Error
	if err == nil {
		err = fmt.Errorf(format, v...)
	}
	if err == io.EOF || d.Scanner.ioErr != nil {
		ioErr := d.Scanner.ioErr
		if ioErr == nil {
			ioErr = err
		}
		return &imap.Error{Kind: imap.ErrIO, Err: ioErr}
	}
	line, col := d.Scanner.Pos()
	d.Scanner.Drain()
	return &imap.Error{Kind: imap.ErrProtocolParse, Line: line, Col: col, Err: err}
}

// ReadResponse decodes the next server frame.
//
// It reports io.EOF unwrapped when the stream ends cleanly between
// frames; every other failure is an *imap.Error.
func (d *Decoder) ReadResponse() (*Response, error) {
	s := d.Scanner

	switch b := s.peekChar(); b {
	case 0:
		if s.ioErr == io.EOF {
			return nil, io.EOF
		}
		return nil, &imap.Error{Kind: imap.ErrIO, Err: s.ioErr}
	case '+':
		s.readChar()
		if !s.NextOrEnd(TokenText) {
			return nil, d.parseError("continuation missing text")
		}
		resp := &Response{Type: FrameCont}
		if s.Token == TokenEnd {
			return resp, nil
		}
		resp.Cont = string(s.Value)
		if !s.Next(TokenEnd) {
			return nil, d.parseError("continuation has trailing data")
		}
		return resp, nil
	case '*':
		s.readChar()
		u, err := d.readUntagged()
		if err != nil {
			return nil, err
		}
		return &Response{Type: FrameUntagged, Untagged: u}, nil
	}

	// Tagged response.
	s.clear()
	if !s.readTag() {
		return nil, d.parseError("missing response tag")
	}
	resp := &Response{Type: FrameTagged, Tag: string(s.Value)}
	if !s.Next(TokenAtom) {
		return nil, d.parseError("tagged response missing condition")
	}
	asciiUpper(s.Value)
	switch string(s.Value) {
	case "OK":
		resp.Cond = imap.CondOK
	case "NO":
		resp.Cond = imap.CondNo
	case "BAD":
		resp.Cond = imap.CondBad
	default:
		return nil, d.parseError("tagged response bad condition %q", string(s.Value))
	}
	code, text, err := d.readRespText()
	if err != nil {
		return nil, err
	}
	resp.Code, resp.Text = code, text
	return resp, nil
}

// readUntagged decodes everything following "* ".
func (d *Decoder) readUntagged() (*imap.Untagged, error) {
	s := d.Scanner
	s.consumeWhitespace()

	if isDigit(s.peekChar()) {
		num, err := s.readUint32()
		if err != nil {
			return nil, d.parseError("untagged response bad number: %v", err)
		}
		if !s.Next(TokenAtom) {
			return nil, d.parseError("untagged numeric response missing keyword")
		}
		asciiUpper(s.Value)
		u := &imap.Untagged{Num: num}
		switch string(s.Value) {
		case "EXISTS":
			u.Type = imap.UntaggedExists
		case "RECENT":
			u.Type = imap.UntaggedRecent
		case "EXPUNGE":
			u.Type = imap.UntaggedExpunge
		case "FETCH":
			u.Type = imap.UntaggedFetch
			attrs, err := d.readFetchAttrs()
			if err != nil {
				return nil, err
			}
			u.Fetch = attrs
			return u, nil
		default:
			return nil, d.parseError("unknown numeric response keyword %q", string(s.Value))
		}
		if !s.Next(TokenEnd) {
			return nil, d.parseError("%s response has trailing data", u.Type)
		}
		return u, nil
	}

	if !s.Next(TokenAtom) {
		return nil, d.parseError("untagged response missing keyword")
	}
	asciiUpper(s.Value)
	switch string(s.Value) {
	case "OK", "NO", "BAD":
		u := &imap.Untagged{Type: imap.UntaggedState, Cond: imap.RespCond(string(s.Value))}
		code, text, err := d.readRespText()
		if err != nil {
			return nil, err
		}
		u.Code, u.Text = code, text
		return u, nil
	case "BYE":
		u := &imap.Untagged{Type: imap.UntaggedBye, Cond: imap.CondBye}
		code, text, err := d.readRespText()
		if err != nil {
			return nil, err
		}
		u.Code, u.Text = code, text
		return u, nil
	case "PREAUTH":
		u := &imap.Untagged{Type: imap.UntaggedPreauth, Cond: imap.CondPreauth}
		code, text, err := d.readRespText()
		if err != nil {
			return nil, err
		}
		u.Code, u.Text = code, text
		return u, nil
	case "CAPABILITY":
		caps, err := d.readCapabilities(TokenEnd)
		if err != nil {
			return nil, err
		}
		return &imap.Untagged{Type: imap.UntaggedCapability, Caps: caps}, nil
	case "ENABLED":
		caps, err := d.readCapabilities(TokenEnd)
		if err != nil {
			return nil, err
		}
		return &imap.Untagged{Type: imap.UntaggedEnabled, Caps: caps}, nil
	case "FLAGS":
		flags, err := d.readFlagList()
		if err != nil {
			return nil, err
		}
		if !s.Next(TokenEnd) {
			return nil, d.parseError("FLAGS response has trailing data")
		}
		return &imap.Untagged{Type: imap.UntaggedFlags, Flags: flags}, nil
	case "LIST", "XLIST":
		return d.readList(imap.UntaggedList)
	case "LSUB":
		return d.readList(imap.UntaggedLsub)
	case "SEARCH":
		return d.readSearch()
	case "ESEARCH":
		return d.readESearch()
	case "STATUS":
		return d.readStatus()
	case "VANISHED":
		return d.readVanished()
	case "NAMESPACE":
		return d.readNamespace()
	case "ID":
		return d.readID()
	default:
		return nil, d.parseError("unknown untagged response keyword %q", string(s.Value))
	}
}

// readRespText decodes resp-text: an optional leading space, an
// optional [resp-text-code], and the verbatim human text.
// It consumes the terminating CRLF.
func (d *Decoder) readRespText() (imap.RespCode, string, error) {
	s := d.Scanner
	s.consumeWhitespace()

	var code imap.RespCode
	if s.peekChar() == '[' {
		s.readChar()
		var err error
		code, err = d.readRespCode()
		if err != nil {
			return code, "", err
		}
		if !s.Next(TokenBracketEnd) {
			return code, "", d.parseError("response code missing \"]\"")
		}
	}
	if !s.NextOrEnd(TokenText) {
		return code, "", d.parseError("response missing text")
	}
	if s.Token == TokenEnd {
		return code, "", nil
	}
	text := string(s.Value)
	if !s.Next(TokenEnd) {
		return code, "", d.parseError("response text missing CRLF")
	}
	return code, text, nil
}

// readRespCode decodes the body of a bracketed resp-text-code.
// Unknown atoms decode as Other codes; they are never rejected.
func (d *Decoder) readRespCode() (imap.RespCode, error) {
	s := d.Scanner
	var code imap.RespCode
	if !s.Next(TokenAtom) {
		return code, d.parseError("response code missing atom")
	}
	asciiUpper(s.Value)
	code.Name = imap.RespCodeName(string(s.Value))

	switch code.Name {
	case imap.CodeAlert, imap.CodeParse, imap.CodeReadOnly, imap.CodeReadWrite,
		imap.CodeTryCreate, imap.CodeClosed, imap.CodeNoModSeq,
		imap.CodeUIDNotSticky, imap.CodeCompressionActive, imap.CodeUseAttr:
		// no arguments

	case imap.CodeCapability:
		caps, err := d.readCapabilities(TokenBracketEnd)
		if err != nil {
			return code, err
		}
		code.Caps = caps

	case imap.CodeBadCharset:
		s.consumeWhitespace()
		if s.peekChar() == '(' {
			if !s.Next(TokenListStart) {
				return code, d.parseError("BADCHARSET missing list")
			}
			for {
				if s.Next(TokenListEnd) {
					break
				}
				if !s.Next(TokenString) {
					return code, d.parseError("BADCHARSET bad charset value")
				}
				code.Charsets = append(code.Charsets, string(s.Value))
			}
		}

	case imap.CodePermanentFlags:
		flags, err := d.readFlagList()
		if err != nil {
			return code, err
		}
		code.Flags = flags

	case imap.CodeUIDNext, imap.CodeUnseen:
		if !s.Next(TokenNumber) {
			return code, d.parseError("%s missing number", code.Name)
		}
		if s.Number > maxUint32 {
			return code, d.parseError("%s value out of range", code.Name)
		}
		code.Num = uint32(s.Number)

	case imap.CodeUIDValidity:
		if !s.Next(TokenNumber) {
			return code, d.parseError("UIDVALIDITY missing number")
		}
		if s.Number > maxUint32 {
			return code, d.parseError("UIDVALIDITY value out of range")
		}
		code.UIDValidity = uint32(s.Number)

	case imap.CodeHighestModSeq:
		if !s.Next(TokenNumber) {
			return code, d.parseError("HIGHESTMODSEQ missing number")
		}
		code.ModSeq = s.Number

	case imap.CodeModified:
		if !s.Next(TokenSequences) {
			return code, d.parseError("MODIFIED missing sequence-set")
		}
		code.SrcUIDs = append([]imap.SeqRange(nil), s.Sequences...)

	case imap.CodeAppendUID:
		if !s.Next(TokenNumber) || s.Number > maxUint32 {
			return code, d.parseError("APPENDUID missing uidvalidity")
		}
		code.UIDValidity = uint32(s.Number)
		if !s.Next(TokenSequences) {
			return code, d.parseError("APPENDUID missing uid-set")
		}
		code.DstUIDs = append([]imap.SeqRange(nil), s.Sequences...)

	case imap.CodeCopyUID:
		if !s.Next(TokenNumber) || s.Number > maxUint32 {
			return code, d.parseError("COPYUID missing uidvalidity")
		}
		code.UIDValidity = uint32(s.Number)
		if !s.Next(TokenSequences) {
			return code, d.parseError("COPYUID missing source uid-set")
		}
		code.SrcUIDs = append([]imap.SeqRange(nil), s.Sequences...)
		if !s.Next(TokenSequences) {
			return code, d.parseError("COPYUID missing destination uid-set")
		}
		code.DstUIDs = append([]imap.SeqRange(nil), s.Sequences...)

	default:
		// Unknown code: capture the argument tail verbatim.
		text := make([]byte, 0, 32)
		for {
			b := s.peekChar()
			if b == 0 || b == ']' || b == '\r' || b == '\n' {
				break
			}
			s.readChar()
			text = append(text, b)
		}
		if len(text) > 0 && text[0] == ' ' {
			text = text[1:]
		}
		code.Text = string(text)
	}
	return code, nil
}

// readCapabilities reads space-separated capability atoms until term,
// either end-of-line (consumed) or ']' (left for the caller).
func (d *Decoder) readCapabilities(term Token) ([]imap.Capability, error) {
	s := d.Scanner
	var caps []imap.Capability
	for {
		s.consumeWhitespace()
		b := s.peekChar()
		if term == TokenBracketEnd && b == ']' {
			return caps, nil
		}
		if b == '\r' || b == '\n' {
			if term != TokenEnd {
				return nil, d.parseError("capability list missing \"]\"")
			}
			if !s.Next(TokenEnd) {
				return nil, d.parseError("capability list bad CRLF")
			}
			return caps, nil
		}
		if !s.Next(TokenAtom) {
			return nil, d.parseError("capability list bad token")
		}
		asciiUpper(s.Value)
		caps = append(caps, imap.Capability(string(s.Value)))
	}
}

// readFlagList reads "(" *flag ")".
func (d *Decoder) readFlagList() ([]imap.Flag, error) {
	s := d.Scanner
	if !s.Next(TokenListStart) {
		return nil, d.parseError("missing flag list")
	}
	var flags []imap.Flag
	for {
		if s.Next(TokenListEnd) {
			return flags, nil
		}
		if !s.Next(TokenFlag) {
			return nil, d.parseError("bad flag in flag list")
		}
		flags = append(flags, imap.CanonicalFlag(imap.Flag(string(s.Value))))
	}
}

// readMailbox reads a mailbox name, reversing the modified UTF-7
// encoding and canonicalizing INBOX.
func (d *Decoder) readMailbox() (string, error) {
	s := d.Scanner
	if !s.Next(TokenString) {
		return "", d.parseError("missing mailbox name")
	}
	name := d.takeStringValue()
	if len(name) == 5 && asciiUpperEq(name, "INBOX") {
		return "INBOX", nil
	}
	dec, err := utf7mod.AppendDecode(nil, name)
	if err != nil {
		// Tolerate raw non-conforming names from lax servers.
		return string(name), nil
	}
	return string(dec), nil
}

// takeStringValue copies the last scanned string token, draining a
// spooled literal when the payload was large.
func (d *Decoder) takeStringValue() []byte {
	s := d.Scanner
	if f := s.TakeLiteral(); f != nil {
		b := make([]byte, f.Size())
		f.ReadAt(b, 0)
		f.Close()
		return b
	}
	return append([]byte(nil), s.Value...)
}

func (d *Decoder) readList(typ imap.UntaggedType) (*imap.Untagged, error) {
	s := d.Scanner
	u := &imap.Untagged{Type: typ}
	if !s.Next(TokenListStart) {
		return nil, d.parseError("LIST missing attribute list")
	}
	for {
		if s.Next(TokenListEnd) {
			break
		}
		if !s.Next(TokenFlag) {
			return nil, d.parseError("LIST bad attribute")
		}
		if attr := imap.ParseListAttr(string(s.Value)); attr != 0 {
			u.List.Attrs |= attr
		} else {
			u.List.OtherAttrs = append(u.List.OtherAttrs, string(s.Value))
		}
	}

	if !s.Next(TokenNString) {
		return nil, d.parseError("LIST missing hierarchy delimiter")
	}
	if !s.IsNil {
		if len(s.Value) != 1 {
			return nil, d.parseError("LIST delimiter is not a single character")
		}
		u.List.Delim = s.Value[0]
	}

	name, err := d.readMailbox()
	if err != nil {
		return nil, err
	}
	u.List.Mailbox = name

	if !s.Next(TokenEnd) {
		return nil, d.parseError("LIST response has trailing data")
	}
	return u, nil
}

// readSearch reads "* SEARCH" ids, greedy space-separated numbers
// terminated by either EOL or an optional "(MODSEQ n)" trailer.
func (d *Decoder) readSearch() (*imap.Untagged, error) {
	s := d.Scanner
	u := &imap.Untagged{Type: imap.UntaggedSearch}
	for {
		s.consumeWhitespace()
		switch b := s.peekChar(); {
		case b == '\r' || b == '\n':
			if !s.Next(TokenEnd) {
				return nil, d.parseError("SEARCH bad line end")
			}
			return u, nil
		case b == '(':
			if !s.Next(TokenListStart) {
				return nil, d.parseError("SEARCH bad trailer")
			}
			if !s.Next(TokenAtom) || !asciiUpperEq(s.Value, "MODSEQ") {
				return nil, d.parseError("SEARCH trailer is not MODSEQ")
			}
			if !s.Next(TokenNumber) {
				return nil, d.parseError("SEARCH MODSEQ missing value")
			}
			u.SearchModSeq = s.Number
			if !s.Next(TokenListEnd) {
				return nil, d.parseError("SEARCH MODSEQ missing list end")
			}
			if !s.Next(TokenEnd) {
				return nil, d.parseError("SEARCH has trailing data")
			}
			return u, nil
		case isDigit(b):
			if !s.Next(TokenNumber) || s.Number > maxUint32 {
				return nil, d.parseError("SEARCH bad id")
			}
			u.SearchIDs = append(u.SearchIDs, uint32(s.Number))
		default:
			return nil, d.parseError("SEARCH bad id token")
		}
	}
}

// readESearch reads an RFC 4731 extended search response:
//
//	ESEARCH [SP "(" "TAG" SP tag-string ")"] [SP "UID"]
//	        *(SP search-return-data)
func (d *Decoder) readESearch() (*imap.Untagged, error) {
	s := d.Scanner
	es := &imap.ESearch{}
	u := &imap.Untagged{Type: imap.UntaggedESearch, ESearch: es}

	s.consumeWhitespace()
	if s.peekChar() == '(' {
		if !s.Next(TokenListStart) {
			return nil, d.parseError("ESEARCH bad correlator")
		}
		if !s.Next(TokenAtom) || !asciiUpperEq(s.Value, "TAG") {
			return nil, d.parseError("ESEARCH correlator is not TAG")
		}
		if !s.Next(TokenString) {
			return nil, d.parseError("ESEARCH correlator missing tag string")
		}
		es.Tag = string(s.Value)
		if !s.Next(TokenListEnd) {
			return nil, d.parseError("ESEARCH correlator missing list end")
		}
	}

	for {
		if !s.NextOrEnd(TokenAtom) {
			return nil, d.parseError("ESEARCH bad return data")
		}
		if s.Token == TokenEnd {
			return u, nil
		}
		asciiUpper(s.Value)
		switch string(s.Value) {
		case "UID":
			es.UID = true
		case "MIN":
			if !s.Next(TokenNumber) || s.Number > maxUint32 {
				return nil, d.parseError("ESEARCH MIN bad value")
			}
			es.Min = uint32(s.Number)
		case "MAX":
			if !s.Next(TokenNumber) || s.Number > maxUint32 {
				return nil, d.parseError("ESEARCH MAX bad value")
			}
			es.Max = uint32(s.Number)
		case "COUNT":
			if !s.Next(TokenNumber) || s.Number > maxUint32 {
				return nil, d.parseError("ESEARCH COUNT bad value")
			}
			es.Count = uint32(s.Number)
			es.HasCount = true
		case "ALL":
			if !s.Next(TokenSequences) {
				return nil, d.parseError("ESEARCH ALL missing sequence-set")
			}
			es.All = append([]imap.SeqRange(nil), s.Sequences...)
		case "MODSEQ":
			if !s.Next(TokenNumber) {
				return nil, d.parseError("ESEARCH MODSEQ bad value")
			}
			es.ModSeq = s.Number
		default:
			return nil, d.parseError("ESEARCH unknown return data %q", string(s.Value))
		}
	}
}

func (d *Decoder) readStatus() (*imap.Untagged, error) {
	s := d.Scanner
	name, err := d.readMailbox()
	if err != nil {
		return nil, err
	}
	st := &imap.MailboxStatus{Mailbox: name}
	if !s.Next(TokenListStart) {
		return nil, d.parseError("STATUS missing attribute list")
	}
	for {
		if s.Next(TokenListEnd) {
			break
		}
		if !s.Next(TokenAtom) {
			return nil, d.parseError("STATUS missing attribute name")
		}
		asciiUpper(s.Value)
		item := imap.StatusItem(string(s.Value))
		switch item {
		case imap.StatusMessages, imap.StatusRecent, imap.StatusUIDNext,
			imap.StatusUIDValidity, imap.StatusUnseen, imap.StatusHighestModSeq:
		default:
			// Unknown attributes are preserved with their value.
		}
		if !s.Next(TokenNumber) {
			return nil, d.parseError("STATUS attribute %s missing value", item)
		}
		st.Attrs = append(st.Attrs, imap.StatusAttr{Item: item, Value: s.Number})
	}
	if !s.Next(TokenEnd) {
		return nil, d.parseError("STATUS response has trailing data")
	}
	return &imap.Untagged{Type: imap.UntaggedStatus, Status: st}, nil
}

// readVanished reads "* VANISHED [(EARLIER)] known-uids" (RFC 7162).
func (d *Decoder) readVanished() (*imap.Untagged, error) {
	s := d.Scanner
	u := &imap.Untagged{Type: imap.UntaggedVanished}
	s.consumeWhitespace()
	if s.peekChar() == '(' {
		if !s.Next(TokenListStart) {
			return nil, d.parseError("VANISHED bad modifier")
		}
		if !s.Next(TokenAtom) || !asciiUpperEq(s.Value, "EARLIER") {
			return nil, d.parseError("VANISHED unknown modifier")
		}
		if !s.Next(TokenListEnd) {
			return nil, d.parseError("VANISHED modifier missing list end")
		}
		u.Earlier = true
	}
	if !s.Next(TokenSequences) {
		return nil, d.parseError("VANISHED missing uid-set")
	}
	u.Vanished = append([]imap.SeqRange(nil), s.Sequences...)
	if !s.Next(TokenEnd) {
		return nil, d.parseError("VANISHED response has trailing data")
	}
	return u, nil
}

// readNamespace reads the three namespace lists of RFC 2342.
func (d *Decoder) readNamespace() (*imap.Untagged, error) {
	ns := &imap.Namespace{}
	for i := 0; i < 3; i++ {
		items, err := d.readNamespaceList()
		if err != nil {
			return nil, err
		}
		switch i {
		case 0:
			ns.Personal = items
		case 1:
			ns.Other = items
		case 2:
			ns.Shared = items
		}
	}
	if !d.Scanner.Next(TokenEnd) {
		return nil, d.parseError("NAMESPACE response has trailing data")
	}
	return &imap.Untagged{Type: imap.UntaggedNamespace, Namespace: ns}, nil
}

func (d *Decoder) readNamespaceList() ([]imap.NamespaceItem, error) {
	s := d.Scanner
	s.consumeWhitespace()
	if s.peekChar() != '(' {
		if !s.Next(TokenNString) || !s.IsNil {
			return nil, d.parseError("NAMESPACE list is neither NIL nor a list")
		}
		return nil, nil
	}
	if !s.Next(TokenListStart) {
		return nil, d.parseError("NAMESPACE bad list")
	}
	var items []imap.NamespaceItem
	for {
		if s.Next(TokenListEnd) {
			return items, nil
		}
		if !s.Next(TokenListStart) {
			return nil, d.parseError("NAMESPACE missing pair list")
		}
		var item imap.NamespaceItem
		if !s.Next(TokenString) {
			return nil, d.parseError("NAMESPACE missing prefix")
		}
		item.Prefix = string(d.takeStringValue())
		if !s.Next(TokenNString) {
			return nil, d.parseError("NAMESPACE missing delimiter")
		}
		if !s.IsNil {
			if len(s.Value) != 1 {
				return nil, d.parseError("NAMESPACE delimiter is not a single character")
			}
			item.Delim = s.Value[0]
		}
		// Namespace-response extensions are parsed and dropped.
		if err := d.skipUntilListEnd(1); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
}

// readID reads an RFC 2971 ID response: NIL or a parameter list.
func (d *Decoder) readID() (*imap.Untagged, error) {
	s := d.Scanner
	u := &imap.Untagged{Type: imap.UntaggedID}
	s.consumeWhitespace()
	if s.peekChar() != '(' {
		if !s.Next(TokenNString) || !s.IsNil {
			return nil, d.parseError("ID response is neither NIL nor a list")
		}
		if !s.Next(TokenEnd) {
			return nil, d.parseError("ID response has trailing data")
		}
		return u, nil
	}
	if !s.Next(TokenListStart) {
		return nil, d.parseError("ID bad list")
	}
	for {
		if s.Next(TokenListEnd) {
			break
		}
		var p imap.IDParam
		if !s.Next(TokenString) {
			return nil, d.parseError("ID missing field name")
		}
		p.Field = string(s.Value)
		if !s.Next(TokenNString) {
			return nil, d.parseError("ID missing field value")
		}
		if !s.IsNil {
			p.Value = d.takeStringValue()
		}
		u.IDParams = append(u.IDParams, p)
	}
	if !s.Next(TokenEnd) {
		return nil, d.parseError("ID response has trailing data")
	}
	return u, nil
}

// skipUntilListEnd consumes tokens generically until depth list
// closings have been consumed. It accepts strings, literals,
// numbers, atoms, and nested lists.
func (d *Decoder) skipUntilListEnd(depth int) error {
	s := d.Scanner
	for depth > 0 {
		if !s.Next(0) {
			return d.parseError("unterminated list")
		}
		switch s.Token {
		case TokenListStart:
			depth++
		case TokenListEnd:
			depth--
		case TokenEnd:
			return d.parseError("unterminated list")
		}
	}
	return nil
}

const maxUint32 = 1<<32 - 1

// dataBuffer spools the last scanned nstring payload into a
// BufferFile. It reports nil exactly when the payload was NIL.
func (d *Decoder) dataBuffer() (*iox.BufferFile, error) {
	s := d.Scanner
	if s.IsNil {
		return nil, nil
	}
	if f := s.TakeLiteral(); f != nil {
		return f, nil
	}
	if s.Filer == nil {
		return nil, d.parseError("no filer for data payload")
	}
	f := s.Filer.BufferFile(len(s.Value))
	if _, err := f.Write(s.Value); err != nil {
		f.Close()
		return nil, &imap.Error{Kind: imap.ErrIO, Err: err}
	}
	if _, err := f.Seek(0, 0); err != nil {
		f.Close()
		return nil, &imap.Error{Kind: imap.ErrIO, Err: err}
	}
	return f, nil
}
