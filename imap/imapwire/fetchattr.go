package imapwire

import (
	"spool.ink/imap"
)

// readFetchAttrs decodes the parenthesized attribute list of a
// "* n FETCH (...)" response, consuming the terminating CRLF.
func (d *Decoder) readFetchAttrs() ([]imap.FetchAttr, error) {
	s := d.Scanner
	if !s.Next(TokenListStart) {
		return nil, d.parseError("FETCH missing attribute list")
	}
	var attrs []imap.FetchAttr
	for {
		if s.Next(TokenListEnd) {
			break
		}
		if !s.Next(TokenAtom) {
			return nil, d.parseError("FETCH missing attribute name")
		}
		asciiUpper(s.Value)
		var attr imap.FetchAttr
		switch string(s.Value) {
		case "FLAGS":
			attr.Type = imap.AttrFlags
			flags, err := d.readFlagList()
			if err != nil {
				return nil, err
			}
			attr.Flags = flags

		case "ENVELOPE":
			attr.Type = imap.AttrEnvelope
			env, err := d.readEnvelope()
			if err != nil {
				return nil, err
			}
			attr.Envelope = env

		case "INTERNALDATE":
			attr.Type = imap.AttrInternalDate
			if !s.Next(TokenString) {
				return nil, d.parseError("INTERNALDATE missing date-time")
			}
			attr.InternalDate = string(s.Value)

		case "RFC822", "RFC822.HEADER", "RFC822.TEXT":
			attr.Type = imap.FetchAttrType(string(s.Value))
			if !s.Next(TokenNString) {
				return nil, d.parseError("%s missing data", attr.Type)
			}
			data, err := d.dataBuffer()
			if err != nil {
				return nil, err
			}
			attr.Data = data

		case "RFC822.SIZE":
			attr.Type = imap.AttrRFC822Size
			if !s.Next(TokenNumber) || s.Number > maxUint32 {
				return nil, d.parseError("RFC822.SIZE bad value")
			}
			attr.Size = uint32(s.Number)

		case "BODYSTRUCTURE":
			attr.Type = imap.AttrBodyStructure
			body, err := d.readBody()
			if err != nil {
				return nil, err
			}
			attr.Body = body

		case "BODY":
			if s.peekChar() == '[' {
				s.readChar()
				attr.Type = imap.AttrBodySection
				sec, err := d.readSection()
				if err != nil {
					return nil, err
				}
				attr.Section = sec
				if !s.Next(TokenNString) {
					return nil, d.parseError("BODY[] missing data")
				}
				data, err := d.dataBuffer()
				if err != nil {
					return nil, err
				}
				attr.Data = data
			} else {
				attr.Type = imap.AttrBody
				body, err := d.readBody()
				if err != nil {
					return nil, err
				}
				attr.Body = body
			}

		case "UID":
			attr.Type = imap.AttrUID
			if !s.Next(TokenNumber) || s.Number > maxUint32 {
				return nil, d.parseError("UID bad value")
			}
			attr.UID = uint32(s.Number)

		case "MODSEQ":
			attr.Type = imap.AttrModSeq
			if !s.Next(TokenListStart) {
				return nil, d.parseError("MODSEQ missing value list")
			}
			if !s.Next(TokenNumber) {
				return nil, d.parseError("MODSEQ bad value")
			}
			attr.ModSeq = s.Number
			if !s.Next(TokenListEnd) {
				return nil, d.parseError("MODSEQ missing list end")
			}

		case "X-GM-MSGID", "X-GM-THRID":
			attr.Type = imap.FetchAttrType(string(s.Value))
			if !s.Next(TokenNumber) {
				return nil, d.parseError("%s bad value", attr.Type)
			}
			attr.GmID = s.Number

		case "X-GM-LABELS":
			attr.Type = imap.AttrXGmLabels
			labels, err := d.readLabelList()
			if err != nil {
				return nil, err
			}
			attr.Labels = labels

		default:
			return nil, d.parseError("FETCH unknown attribute %q", string(s.Value))
		}
		attrs = append(attrs, attr)
	}
	if !s.Next(TokenEnd) {
		return nil, d.parseError("FETCH response has trailing data")
	}
	return attrs, nil
}

// readSection decodes a BODY[...] section spec after the opening '[',
// including the optional "<origin>" partial marker.
func (d *Decoder) readSection() (*imap.Section, error) {
	s := d.Scanner
	sec := &imap.Section{}

	for isDigit(s.peekChar()) {
		v, err := s.readUint32()
		if err != nil {
			return nil, d.parseError("BODY section bad part number: %v", err)
		}
		if v >= 1<<16 {
			return nil, d.parseError("BODY section part number too big")
		}
		sec.Path = append(sec.Path, uint16(v))
		if s.peekChar() == '.' {
			s.readChar()
		}
	}

	if s.peekChar() != ']' {
		s.clear()
		if !s.readAtom() {
			return nil, d.parseError("BODY section bad name")
		}
		asciiUpper(s.Value)
		switch string(s.Value) {
		case "HEADER", "TEXT":
			sec.Name = string(s.Value)
		case "MIME":
			if len(sec.Path) == 0 {
				return nil, d.parseError("BODY section MIME requires a part path")
			}
			sec.Name = "MIME"
		case "HEADER.FIELDS", "HEADER.FIELDS.NOT":
			sec.Name = string(s.Value)
			if !s.Next(TokenListStart) {
				return nil, d.parseError("BODY section missing header-list")
			}
			for {
				if s.Next(TokenListEnd) {
					break
				}
				if !s.Next(TokenString) {
					return nil, d.parseError("BODY section bad header name")
				}
				sec.Headers = append(sec.Headers, d.takeStringValue())
			}
		default:
			return nil, d.parseError("BODY section unknown name %q", string(s.Value))
		}
	}

	if s.peekChar() != ']' {
		return nil, d.parseError("BODY section missing \"]\"")
	}
	s.readChar()

	if s.peekChar() == '<' {
		s.readChar()
		v, err := s.readUint32()
		if err != nil {
			return nil, d.parseError("BODY section bad origin octet: %v", err)
		}
		sec.Origin, sec.HasOrigin = v, true
		if s.peekChar() != '>' {
			return nil, d.parseError("BODY section missing \">\"")
		}
		s.readChar()
	}
	return sec, nil
}

// nstringBytes reads an nstring and copies its payload.
// NIL reports nil; an empty quoted string reports a non-nil
// empty slice.
func (d *Decoder) nstringBytes() ([]byte, error) {
	s := d.Scanner
	if !s.Next(TokenNString) {
		return nil, d.parseError("missing nstring")
	}
	if s.IsNil {
		return nil, nil
	}
	b := d.takeStringValue()
	if b == nil {
		b = []byte{}
	}
	return b, nil
}

// readEnvelope decodes the ten-field envelope production of
// RFC 3501 section 7.4.2.
func (d *Decoder) readEnvelope() (*imap.Envelope, error) {
	s := d.Scanner
	if !s.Next(TokenListStart) {
		return nil, d.parseError("ENVELOPE missing list")
	}
	env := &imap.Envelope{}
	var err error
	if env.Date, err = d.nstringBytes(); err != nil {
		return nil, err
	}
	if env.Subject, err = d.nstringBytes(); err != nil {
		return nil, err
	}
	for _, dst := range []*[]imap.Address{
		&env.From, &env.Sender, &env.ReplyTo, &env.To, &env.CC, &env.BCC,
	} {
		if *dst, err = d.readAddressList(); err != nil {
			return nil, err
		}
	}
	if env.InReplyTo, err = d.nstringBytes(); err != nil {
		return nil, err
	}
	if env.MessageID, err = d.nstringBytes(); err != nil {
		return nil, err
	}
	if !s.Next(TokenListEnd) {
		return nil, d.parseError("ENVELOPE missing list end")
	}
	return env, nil
}

// readAddressList decodes "(" 1*address ")" / NIL.
// A NIL list decodes to the empty sequence.
func (d *Decoder) readAddressList() ([]imap.Address, error) {
	s := d.Scanner
	s.consumeWhitespace()
	if s.peekChar() != '(' {
		if !s.Next(TokenNString) || !s.IsNil {
			return nil, d.parseError("address list is neither NIL nor a list")
		}
		return nil, nil
	}
	if !s.Next(TokenListStart) {
		return nil, d.parseError("address list bad list")
	}
	var addrs []imap.Address
	for {
		if s.Next(TokenListEnd) {
			return addrs, nil
		}
		if !s.Next(TokenListStart) {
			return nil, d.parseError("address missing list")
		}
		var addr imap.Address
		var err error
		if addr.Name, err = d.nstringBytes(); err != nil {
			return nil, err
		}
		if addr.ADL, err = d.nstringBytes(); err != nil {
			return nil, err
		}
		if addr.Mailbox, err = d.nstringBytes(); err != nil {
			return nil, err
		}
		if addr.Host, err = d.nstringBytes(); err != nil {
			return nil, err
		}
		if !s.Next(TokenListEnd) {
			return nil, d.parseError("address missing list end")
		}
		addrs = append(addrs, addr)
	}
}

// readBody decodes a body / bodystructure value.
func (d *Decoder) readBody() (*imap.BodyStructure, error) {
	if !d.Scanner.Next(TokenListStart) {
		return nil, d.parseError("BODY missing list")
	}
	return d.readBodyInner()
}

// readBodyInner parses a body after its opening '(' and consumes
// the closing ')'. The first character disambiguates: another '('
// means body-type-mpart, anything else body-type-1part.
func (d *Decoder) readBodyInner() (*imap.BodyStructure, error) {
	s := d.Scanner
	s.consumeWhitespace()
	bs := &imap.BodyStructure{}

	if s.peekChar() == '(' {
		bs.Kind = imap.BodyMultipart
		for {
			s.consumeWhitespace()
			if s.peekChar() != '(' {
				break
			}
			s.Next(TokenListStart)
			child, err := d.readBodyInner()
			if err != nil {
				return nil, err
			}
			bs.Children = append(bs.Children, *child)
		}
		if !s.Next(TokenString) {
			return nil, d.parseError("multipart body missing subtype")
		}
		bs.MIMESubtype = d.takeStringValue()

		s.consumeWhitespace()
		if s.peekChar() == ')' {
			s.Next(TokenListEnd)
			return bs, nil
		}
		// body-ext-mpart: the parameter list is retained, the
		// remaining extension data is parsed and dropped.
		params, err := d.readParams()
		if err != nil {
			return nil, err
		}
		bs.Params = params
		return bs, d.skipUntilListEnd(1)
	}

	// body-type-1part
	var err error
	if bs.MIMEType, err = d.nstringBytes(); err != nil {
		return nil, err
	}
	if bs.MIMESubtype, err = d.nstringBytes(); err != nil {
		return nil, err
	}
	if bs.Fields.Params, err = d.readParams(); err != nil {
		return nil, err
	}
	if bs.Fields.ID, err = d.nstringBytes(); err != nil {
		return nil, err
	}
	if bs.Fields.Desc, err = d.nstringBytes(); err != nil {
		return nil, err
	}
	if bs.Fields.Encoding, err = d.nstringBytes(); err != nil {
		return nil, err
	}
	if !s.Next(TokenNumber) || s.Number > maxUint32 {
		return nil, d.parseError("body missing octet count")
	}
	bs.Fields.Octets = uint32(s.Number)

	switch {
	case asciiUpperEq(bs.MIMEType, "TEXT"):
		bs.Kind = imap.BodyText
		if !s.Next(TokenNumber) || s.Number > maxUint32 {
			return nil, d.parseError("text body missing line count")
		}
		bs.Lines = uint32(s.Number)
	case asciiUpperEq(bs.MIMEType, "MESSAGE") && asciiUpperEq(bs.MIMESubtype, "RFC822"):
		bs.Kind = imap.BodyMessage
		if bs.Envelope, err = d.readEnvelope(); err != nil {
			return nil, err
		}
		if bs.Child, err = d.readBody(); err != nil {
			return nil, err
		}
		if !s.Next(TokenNumber) || s.Number > maxUint32 {
			return nil, d.parseError("message body missing line count")
		}
		bs.Lines = uint32(s.Number)
	default:
		bs.Kind = imap.BodyBasic
	}

	// body-ext-1part is parsed and dropped, along with the
	// closing ')'.
	return bs, d.skipUntilListEnd(1)
}

// readParams decodes body-fld-param: "(" string string ... ")" / NIL.
// Insertion order is preserved.
func (d *Decoder) readParams() ([]imap.Param, error) {
	s := d.Scanner
	s.consumeWhitespace()
	if s.peekChar() != '(' {
		if !s.Next(TokenNString) || !s.IsNil {
			return nil, d.parseError("parameter list is neither NIL nor a list")
		}
		return nil, nil
	}
	if !s.Next(TokenListStart) {
		return nil, d.parseError("parameter list bad list")
	}
	var params []imap.Param
	for {
		if s.Next(TokenListEnd) {
			return params, nil
		}
		var p imap.Param
		if !s.Next(TokenString) {
			return nil, d.parseError("parameter list bad key")
		}
		p.Key = d.takeStringValue()
		var err error
		if p.Value, err = d.nstringBytes(); err != nil {
			return nil, err
		}
		params = append(params, p)
	}
}

// readLabelList decodes an X-GM-LABELS value: NIL or a
// parenthesized list of astrings and backslash atoms.
func (d *Decoder) readLabelList() ([][]byte, error) {
	s := d.Scanner
	s.consumeWhitespace()
	if s.peekChar() != '(' {
		if !s.Next(TokenNString) || !s.IsNil {
			return nil, d.parseError("X-GM-LABELS is neither NIL nor a list")
		}
		return nil, nil
	}
	if !s.Next(TokenListStart) {
		return nil, d.parseError("X-GM-LABELS bad list")
	}
	var labels [][]byte
	for {
		if !s.Next(0) {
			return nil, d.parseError("X-GM-LABELS bad label")
		}
		switch s.Token {
		case TokenListEnd:
			return labels, nil
		case TokenAtom, TokenString, TokenLiteral:
			labels = append(labels, d.takeStringValue())
		default:
			return nil, d.parseError("X-GM-LABELS bad label token %v", s.Token)
		}
	}
}
