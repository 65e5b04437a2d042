package imap

// Address is a single electronic mail address from an envelope.
//
// Fields that arrived as NIL are nil slices; an empty quoted
// string decodes as an empty, non-nil slice.
type Address struct {
	Name    []byte // personal name
	ADL     []byte // at-domain-list (source route)
	Mailbox []byte
	Host    []byte
}

func (a *Address) String() string {
	if len(a.Mailbox) == 0 || len(a.Host) == 0 {
		return ""
	}
	return string(a.Mailbox) + "@" + string(a.Host)
}

// Envelope is the decoded form of an ENVELOPE fetch attribute.
//
// NIL address lists decode to empty slices.
type Envelope struct {
	Date      []byte
	Subject   []byte
	From      []Address
	Sender    []Address
	ReplyTo   []Address
	To        []Address
	CC        []Address
	BCC       []Address
	InReplyTo []byte
	MessageID []byte
}

// Param is one attribute/value pair from a body parameter list.
// Order of appearance on the wire is preserved.
type Param struct {
	Key   []byte
	Value []byte
}

// ParamValue finds the value for key under ASCII case-folding.
func ParamValue(params []Param, key string) ([]byte, bool) {
	for _, p := range params {
		if len(p.Key) == len(key) && asciiEqualFold(p.Key, key) {
			return p.Value, true
		}
	}
	return nil, false
}

func asciiEqualFold(b []byte, s string) bool {
	if len(b) != len(s) {
		return false
	}
	for i := 0; i < len(b); i++ {
		c0, c1 := b[i], s[i]
		if 'a' <= c0 && c0 <= 'z' {
			c0 -= 'a' - 'A'
		}
		if 'a' <= c1 && c1 <= 'z' {
			c1 -= 'a' - 'A'
		}
		if c0 != c1 {
			return false
		}
	}
	return true
}

// BodyKind discriminates the body-structure variants of RFC 3501
// section 7.4.2.
type BodyKind int

const (
	BodyBasic     BodyKind = iota + 1 // body-type-basic
	BodyText                          // body-type-text
	BodyMessage                       // body-type-msg (MESSAGE/RFC822)
	BodyMultipart                     // body-type-mpart
)

func (k BodyKind) String() string {
	switch k {
	case BodyBasic:
		return "basic"
	case BodyText:
		return "text"
	case BodyMessage:
		return "message"
	case BodyMultipart:
		return "multipart"
	}
	return "BodyKind(unknown)"
}

// BodyFields is the body-fields production common to all
// non-multipart parts.
type BodyFields struct {
	Params   []Param
	ID       []byte // NIL -> nil
	Desc     []byte // NIL -> nil
	Encoding []byte
	Octets   uint32
}

// BodyStructure is a parsed BODY or BODYSTRUCTURE attribute.
//
// Extension data (body-ext-1part, body-ext-mpart) is parsed so that
// responses carrying it are accepted, but only multipart Params are
// retained.
type BodyStructure struct {
	Kind BodyKind

	// MIMEType and MIMESubtype are set for Basic and Text parts
	// ("IMAGE"/"PNG", "TEXT"/"PLAIN"). Multipart parts carry only
	// MIMESubtype ("MIXED", "ALTERNATIVE"). Message parts are
	// implicitly MESSAGE/RFC822.
	MIMEType    []byte
	MIMESubtype []byte

	// Fields is set for Basic, Text, and Message parts.
	Fields BodyFields

	// Lines is set for Text and Message parts.
	Lines uint32

	// Envelope and Child are set for Message parts.
	Envelope *Envelope
	Child    *BodyStructure

	// Children and Params are set for Multipart parts.
	Children []BodyStructure
	Params   []Param
}

// Part addresses a nested part by its 1-based part path,
// the dotted-number form of a fetch section ("1.2.3").
func (bs *BodyStructure) Part(path ...uint16) *BodyStructure {
	node := bs
	for _, p := range path {
		if p == 0 {
			return nil
		}
		switch node.Kind {
		case BodyMultipart:
			if int(p) > len(node.Children) {
				return nil
			}
			node = &node.Children[p-1]
		case BodyMessage:
			if p != 1 || node.Child == nil {
				return nil
			}
			node = node.Child
		default:
			// BODY[1] of a non-multipart is the part itself.
			if p != 1 {
				return nil
			}
		}
	}
	return node
}
