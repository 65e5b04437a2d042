// Package imap defines the core types used by the IMAP client.
//
// The wire grammar these types model is RFC 3501, along with the
// grammar for several extensions.
//
// See RFC 4466 for the grammar for many typical IMAP extensions.
package imap

import (
	"sort"
	"strings"
)

// Flag is a message flag.
//
// System flags carry their leading backslash (`\Seen`).
// Keywords are bare atoms (`$Forwarded`, `NonJunk`).
type Flag string

const (
	FlagAnswered Flag = `\Answered`
	FlagFlagged  Flag = `\Flagged`
	FlagDeleted  Flag = `\Deleted`
	FlagSeen     Flag = `\Seen`
	FlagDraft    Flag = `\Draft`

	// FlagRecent is only valid in FETCH responses.
	FlagRecent Flag = `\Recent`

	// FlagAny is only valid inside a PERMANENTFLAGS response code.
	FlagAny Flag = `\*`
)

// CanonicalFlag folds the system flags to their canonical spelling.
// Flag keywords are case-preserved.
func CanonicalFlag(f Flag) Flag {
	if len(f) == 0 || f[0] != '\\' {
		return f
	}
	for _, sys := range sysFlags {
		if FlagEqual(f, sys) {
			return sys
		}
	}
	return f
}

// FlagEqual reports whether two flags are equal under the
// ASCII case-insensitivity the grammar gives flag atoms.
func FlagEqual(f0, f1 Flag) bool {
	return strings.EqualFold(string(f0), string(f1))
}

var sysFlags = []Flag{
	FlagAnswered, FlagFlagged, FlagDeleted, FlagSeen,
	FlagDraft, FlagRecent, FlagAny,
}

// ListAttr is a set of mailbox name attributes from a
// LIST, LSUB, or XLIST response.
type ListAttr int

const (
	AttrNoinferiors ListAttr = 1 << iota
	AttrNoselect
	AttrMarked
	AttrUnmarked

	// RFC 5258 LIST-EXTENDED attributes
	AttrHasChildren
	AttrHasNoChildren

	// SPECIAL-USE mailbox attributes, RFC 6154 (and XLIST)
	AttrAll
	AttrArchive
	AttrDrafts
	AttrFlagged
	AttrJunk
	AttrSent
	AttrTrash
)

func (attrs ListAttr) String() (res string) {
	for _, attr := range attrList {
		if attrs&attr != 0 {
			s := attrStrings[attr]
			if res == "" {
				res = s
			} else {
				res = res + " " + s
			}
		}
	}
	return res
}

var attrStrings = map[ListAttr]string{
	AttrNoinferiors:   `\Noinferiors`,
	AttrNoselect:      `\Noselect`,
	AttrMarked:        `\Marked`,
	AttrUnmarked:      `\Unmarked`,
	AttrHasChildren:   `\HasChildren`,
	AttrHasNoChildren: `\HasNoChildren`,
	AttrAll:           `\All`,
	AttrArchive:       `\Archive`,
	AttrDrafts:        `\Drafts`,
	AttrFlagged:       `\Flagged`,
	AttrJunk:          `\Junk`,
	AttrSent:          `\Sent`,
	AttrTrash:         `\Trash`,
}

var attrList = func() (attrList []ListAttr) {
	for attr := range attrStrings {
		attrList = append(attrList, attr)
	}
	sort.Slice(attrList, func(i, j int) bool { return attrList[i] < attrList[j] })
	return attrList
}()

// ParseListAttr maps a single mailbox attribute flag to its bit.
// Unknown attributes report 0; the caller preserves them separately.
func ParseListAttr(s string) ListAttr {
	for attr, name := range attrStrings {
		if strings.EqualFold(name, s) {
			return attr
		}
	}
	// XLIST uses \Inbox and \AllMail for what SPECIAL-USE spells
	// differently. Fold the one with a SPECIAL-USE equivalent.
	if strings.EqualFold(s, `\AllMail`) {
		return AttrAll
	}
	return 0
}

// Capability is a server capability token.
//
// Unknown capabilities are carried verbatim and never rejected.
type Capability string

const (
	CapIMAP4rev1       Capability = "IMAP4REV1"
	CapLoginDisabled   Capability = "LOGINDISABLED"
	CapStartTLS        Capability = "STARTTLS"
	CapAuthPlain       Capability = "AUTH=PLAIN"
	CapAuthLogin       Capability = "AUTH=LOGIN"
	CapAuthXOAuth2     Capability = "AUTH=XOAUTH2"
	CapIdle            Capability = "IDLE"
	CapID              Capability = "ID"
	CapEnable          Capability = "ENABLE"
	CapNamespace       Capability = "NAMESPACE"
	CapUIDPlus         Capability = "UIDPLUS"
	CapMove            Capability = "MOVE"
	CapCondstore       Capability = "CONDSTORE"
	CapQresync         Capability = "QRESYNC"
	CapESearch         Capability = "ESEARCH"
	CapCompressDeflate Capability = "COMPRESS=DEFLATE"
	CapLiteralPlus     Capability = "LITERAL+"
	CapLiteralMinus    Capability = "LITERAL-"
	CapUTF8Accept      Capability = "UTF8=ACCEPT"
	CapSpecialUse      Capability = "SPECIAL-USE"
	CapListExtended    Capability = "LIST-EXTENDED"
	CapChildren        Capability = "CHILDREN"
	CapXList           Capability = "XLIST"
	CapXGmExt1         Capability = "X-GM-EXT-1"
)

// CanonicalCapability upper-cases cap for the case-insensitive
// comparison capability atoms require.
func CanonicalCapability(cap Capability) Capability {
	return Capability(strings.ToUpper(string(cap)))
}

// CapSet is the set of capabilities most recently advertised
// by the server.
type CapSet map[Capability]bool

func NewCapSet(caps []Capability) CapSet {
	set := make(CapSet, len(caps))
	for _, cap := range caps {
		set[CanonicalCapability(cap)] = true
	}
	return set
}

func (set CapSet) Has(cap Capability) bool {
	return set[CanonicalCapability(cap)]
}

// NormalizeMailbox canonicalizes names equal to "INBOX" under ASCII
// case-folding. No other mailbox name is case-folded.
func NormalizeMailbox(name string) string {
	if len(name) == 5 && strings.EqualFold(name, "INBOX") {
		return "INBOX"
	}
	return name
}

// StatusItem is a STATUS request (and response) attribute.
type StatusItem string

const (
	StatusMessages      StatusItem = "MESSAGES"
	StatusRecent        StatusItem = "RECENT"
	StatusUIDNext       StatusItem = "UIDNEXT"
	StatusUIDValidity   StatusItem = "UIDVALIDITY"
	StatusUnseen        StatusItem = "UNSEEN"
	StatusHighestModSeq StatusItem = "HIGHESTMODSEQ"
)

// MailboxStatus is the decoded form of a STATUS response.
// Attrs holds the (attr, value) pairs in server order.
type MailboxStatus struct {
	Mailbox string
	Attrs   []StatusAttr
}

type StatusAttr struct {
	Item  StatusItem
	Value uint64
}

// Get reports the value of item and whether the server sent it.
func (st *MailboxStatus) Get(item StatusItem) (uint64, bool) {
	for _, attr := range st.Attrs {
		if attr.Item == item {
			return attr.Value, true
		}
	}
	return 0, false
}

// SelectedMailbox is the session state extracted from a
// SELECT or EXAMINE response.
type SelectedMailbox struct {
	Name           string
	UIDValidity    uint32
	UIDNext        uint32 // 0 if not reported
	HighestModSeq  uint64 // 0 if NOMODSEQ
	NumMessages    uint32 // EXISTS
	NumRecent      uint32 // RECENT
	FirstUnseen    uint32 // UNSEEN response code, 0 if not reported
	Flags          []Flag
	PermanentFlags []Flag
	ReadOnly       bool
}

// StoreMode selects the FLAGS data item form of a STORE command.
// The encoder emits exactly one form.
type StoreMode int

const (
	StoreAdd     StoreMode = iota + 1 // +FLAGS
	StoreRemove                       // -FLAGS
	StoreReplace                      //  FLAGS
)

func (s StoreMode) String() string {
	switch s {
	case StoreAdd:
		return "+FLAGS"
	case StoreRemove:
		return "-FLAGS"
	case StoreReplace:
		return "FLAGS"
	default:
		return "StoreMode(unknown)"
	}
}
