package imap

import (
	"bytes"
	"fmt"
	"io"

	"crawshaw.io/iox"
)

// RespCond is the condition atom of a status response.
type RespCond string

const (
	CondOK      RespCond = "OK"
	CondNo      RespCond = "NO"
	CondBad     RespCond = "BAD"
	CondBye     RespCond = "BYE"
	CondPreauth RespCond = "PREAUTH"
)

// RespCodeName names a bracketed resp-text-code.
// Unknown codes are carried verbatim with their arguments in Text.
type RespCodeName string

const (
	CodeNone              RespCodeName = "" // no code present
	CodeAlert             RespCodeName = "ALERT"
	CodeBadCharset        RespCodeName = "BADCHARSET"
	CodeCapability        RespCodeName = "CAPABILITY"
	CodeParse             RespCodeName = "PARSE"
	CodePermanentFlags    RespCodeName = "PERMANENTFLAGS"
	CodeReadOnly          RespCodeName = "READ-ONLY"
	CodeReadWrite         RespCodeName = "READ-WRITE"
	CodeTryCreate         RespCodeName = "TRYCREATE"
	CodeUIDNext           RespCodeName = "UIDNEXT"
	CodeUIDValidity       RespCodeName = "UIDVALIDITY"
	CodeUnseen            RespCodeName = "UNSEEN"
	CodeClosed            RespCodeName = "CLOSED"
	CodeHighestModSeq     RespCodeName = "HIGHESTMODSEQ"
	CodeNoModSeq          RespCodeName = "NOMODSEQ"
	CodeModified          RespCodeName = "MODIFIED"
	CodeAppendUID         RespCodeName = "APPENDUID"
	CodeCopyUID           RespCodeName = "COPYUID"
	CodeUIDNotSticky      RespCodeName = "UIDNOTSTICKY"
	CodeCompressionActive RespCodeName = "COMPRESSIONACTIVE"
	CodeUseAttr           RespCodeName = "USEATTR"
)

// RespCode is a decoded resp-text-code.
// The zero value is "no code" (Name == CodeNone).
type RespCode struct {
	Name RespCodeName

	Caps     []Capability // CAPABILITY
	Flags    []Flag       // PERMANENTFLAGS
	Charsets []string     // BADCHARSET
	Num      uint32       // UIDNEXT, UNSEEN
	ModSeq   uint64       // HIGHESTMODSEQ

	// UIDValidity is set for UIDVALIDITY, APPENDUID, and COPYUID.
	// Values are unsigned 32-bit and may exceed signed-32 range.
	UIDValidity uint32

	SrcUIDs []SeqRange // COPYUID source set, MODIFIED set
	DstUIDs []SeqRange // COPYUID destination set, APPENDUID uid(s)

	// Text is the unparsed argument tail of an unknown code.
	Text string
}

func (c RespCode) String() string {
	if c.Name == CodeNone {
		return "<nil>"
	}
	buf := new(bytes.Buffer)
	buf.WriteString(string(c.Name))
	switch c.Name {
	case CodeUIDValidity, CodeUIDNext, CodeUnseen:
		fmt.Fprintf(buf, " %d", pickNum(c))
	case CodeHighestModSeq:
		fmt.Fprintf(buf, " %d", c.ModSeq)
	case CodeAppendUID:
		fmt.Fprintf(buf, " %d %s", c.UIDValidity, SeqsString(c.DstUIDs))
	case CodeCopyUID:
		fmt.Fprintf(buf, " %d %s %s", c.UIDValidity, SeqsString(c.SrcUIDs), SeqsString(c.DstUIDs))
	case CodeModified:
		fmt.Fprintf(buf, " %s", SeqsString(c.SrcUIDs))
	default:
		if c.Text != "" {
			fmt.Fprintf(buf, " %s", c.Text)
		}
	}
	return buf.String()
}

func pickNum(c RespCode) uint32 {
	if c.Name == CodeUIDValidity {
		return c.UIDValidity
	}
	return c.Num
}

// UntaggedType discriminates Untagged responses.
type UntaggedType int

const (
	UntaggedState      UntaggedType = iota + 1 // * OK/NO/BAD
	UntaggedBye                                // * BYE
	UntaggedPreauth                            // * PREAUTH greeting
	UntaggedCapability                         // * CAPABILITY
	UntaggedEnabled                            // * ENABLED
	UntaggedFlags                              // * FLAGS
	UntaggedList                               // * LIST (and XLIST)
	UntaggedLsub                               // * LSUB
	UntaggedSearch                             // * SEARCH
	UntaggedESearch                            // * ESEARCH
	UntaggedStatus                             // * STATUS
	UntaggedExists                             // * n EXISTS
	UntaggedRecent                             // * n RECENT
	UntaggedExpunge                            // * n EXPUNGE
	UntaggedFetch                              // * n FETCH
	UntaggedVanished                           // * VANISHED
	UntaggedNamespace                          // * NAMESPACE
	UntaggedID                                 // * ID
)

func (t UntaggedType) String() string {
	switch t {
	case UntaggedState:
		return "STATE"
	case UntaggedBye:
		return "BYE"
	case UntaggedPreauth:
		return "PREAUTH"
	case UntaggedCapability:
		return "CAPABILITY"
	case UntaggedEnabled:
		return "ENABLED"
	case UntaggedFlags:
		return "FLAGS"
	case UntaggedList:
		return "LIST"
	case UntaggedLsub:
		return "LSUB"
	case UntaggedSearch:
		return "SEARCH"
	case UntaggedESearch:
		return "ESEARCH"
	case UntaggedStatus:
		return "STATUS"
	case UntaggedExists:
		return "EXISTS"
	case UntaggedRecent:
		return "RECENT"
	case UntaggedExpunge:
		return "EXPUNGE"
	case UntaggedFetch:
		return "FETCH"
	case UntaggedVanished:
		return "VANISHED"
	case UntaggedNamespace:
		return "NAMESPACE"
	case UntaggedID:
		return "ID"
	default:
		return fmt.Sprintf("UntaggedType(%d)", int(t))
	}
}

// ListItem is the payload of a LIST, LSUB, or XLIST response.
type ListItem struct {
	Attrs      ListAttr
	OtherAttrs []string // attributes with no ListAttr bit, verbatim
	Delim      byte     // 0 when the hierarchy delimiter is NIL
	Mailbox    string
}

// ESearch is the payload of an RFC 4731 ESEARCH response.
type ESearch struct {
	Tag      string // search-correlator, "" if absent
	UID      bool
	Min      uint32
	Max      uint32
	Count    uint32
	HasCount bool
	All      []SeqRange
	ModSeq   uint64
}

// NamespaceItem is one namespace of an RFC 2342 NAMESPACE response.
type NamespaceItem struct {
	Prefix string
	Delim  byte // 0 when NIL
}

type Namespace struct {
	Personal []NamespaceItem
	Other    []NamespaceItem
	Shared   []NamespaceItem
}

// IDParam is one field/value pair of an RFC 2971 ID response.
// A NIL value decodes as a nil Value slice.
type IDParam struct {
	Field string
	Value []byte
}

// Untagged is a single decoded untagged server response.
// Type selects which fields are meaningful.
type Untagged struct {
	Type UntaggedType

	// Cond, Code, and Text are set for State, Bye, and Preauth.
	Cond RespCond
	Code RespCode
	Text string

	Caps []Capability // Capability, Enabled

	Flags []Flag // Flags

	List ListItem // List, Lsub

	// SearchIDs and SearchModSeq are set for Search.
	// SearchModSeq is 0 when no (MODSEQ n) trailer was sent.
	SearchIDs    []uint32
	SearchModSeq uint64

	ESearch *ESearch

	Status *MailboxStatus

	// Num is the leading number of Exists, Recent, Expunge,
	// and Fetch responses.
	Num uint32

	Fetch []FetchAttr

	// Vanished is set for Vanished; Earlier reports the
	// (EARLIER) marker of RFC 7162.
	Vanished []SeqRange
	Earlier  bool

	Namespace *Namespace

	IDParams []IDParam
}

// FetchAttrType names one attribute inside a FETCH response.
// The set is open: servers may send attributes this package
// does not know, which fail the parse only if their shape
// cannot be skipped.
type FetchAttrType string

const (
	AttrFlags         FetchAttrType = "FLAGS"
	AttrEnvelope      FetchAttrType = "ENVELOPE"
	AttrInternalDate  FetchAttrType = "INTERNALDATE"
	AttrRFC822        FetchAttrType = "RFC822"
	AttrRFC822Header  FetchAttrType = "RFC822.HEADER"
	AttrRFC822Text    FetchAttrType = "RFC822.TEXT"
	AttrRFC822Size    FetchAttrType = "RFC822.SIZE"
	AttrBodyStructure FetchAttrType = "BODYSTRUCTURE"
	AttrBody          FetchAttrType = "BODY"   // BODY without a section
	AttrBodySection   FetchAttrType = "BODY[]" // BODY[...]
	AttrUID           FetchAttrType = "UID"
	AttrModSeq        FetchAttrType = "MODSEQ"
	AttrXGmMsgID      FetchAttrType = "X-GM-MSGID"
	AttrXGmThrID      FetchAttrType = "X-GM-THRID"
	AttrXGmLabels     FetchAttrType = "X-GM-LABELS"
)

// Section addresses a message part in a BODY[...] attribute.
type Section struct {
	Path    []uint16
	Name    string // one of: "", HEADER, HEADER.FIELDS[.NOT], TEXT, MIME
	Headers [][]byte

	// Origin is the <origin> octet of a partial response.
	Origin    uint32
	HasOrigin bool
}

func (s *Section) String() string {
	buf := new(bytes.Buffer)
	buf.WriteByte('[')
	for i, v := range s.Path {
		if i > 0 {
			buf.WriteByte('.')
		}
		fmt.Fprintf(buf, "%d", v)
	}
	if s.Name != "" {
		if len(s.Path) > 0 {
			buf.WriteByte('.')
		}
		buf.WriteString(s.Name)
	}
	if len(s.Headers) > 0 {
		buf.WriteString(" (")
		for i, h := range s.Headers {
			if i > 0 {
				buf.WriteByte(' ')
			}
			buf.Write(h)
		}
		buf.WriteByte(')')
	}
	buf.WriteByte(']')
	if s.HasOrigin {
		fmt.Fprintf(buf, "<%d>", s.Origin)
	}
	return buf.String()
}

// FetchAttr is one decoded attribute of a FETCH response.
// Type selects which fields are meaningful.
type FetchAttr struct {
	Type FetchAttrType

	Flags        []Flag
	Envelope     *Envelope
	InternalDate string // verbatim date-time string
	Size         uint32 // RFC822.SIZE
	Body         *BodyStructure

	// Section is set for BODY[...] attributes.
	Section *Section

	// Data carries literal payloads: RFC822, RFC822.HEADER,
	// RFC822.TEXT, and BODY[...]. It is nil exactly when the
	// server sent NIL; a zero-length payload is non-nil.
	Data *iox.BufferFile

	UID    uint32
	ModSeq uint64 // 64-bit unsigned per RFC 7162

	GmID   uint64   // X-GM-MSGID, X-GM-THRID
	Labels [][]byte // X-GM-LABELS
}

// DataBytes reads the full Data payload.
// It reports nil when the attribute was NIL.
func (a *FetchAttr) DataBytes() ([]byte, error) {
	if a.Data == nil {
		return nil, nil
	}
	b := make([]byte, a.Data.Size())
	if len(b) == 0 {
		return b, nil
	}
	n, err := a.Data.ReadAt(b, 0)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if n != len(b) {
		return nil, io.ErrUnexpectedEOF
	}
	return b, nil
}

// CloseData releases the buffered payload, if any.
func (a *FetchAttr) CloseData() error {
	if a.Data == nil {
		return nil
	}
	err := a.Data.Close()
	a.Data = nil
	return err
}
