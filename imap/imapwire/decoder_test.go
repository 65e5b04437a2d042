package imapwire

import (
	"bufio"
	"reflect"
	"strings"
	"testing"

	"spool.ink/imap"
)

func newTestDecoder(input string) *Decoder {
	r := bufio.NewReader(strings.NewReader(input))
	return NewDecoder(NewScanner(r, filer))
}

func TestContinuation(t *testing.T) {
	d := newTestDecoder("+ Ready for literal data\r\n")
	resp, err := d.ReadResponse()
	if err != nil {
		t.Fatal(err)
	}
	if resp.Type != FrameCont {
		t.Fatalf("frame type = %v, want cont", resp.Type)
	}
	if resp.Cont != "Ready for literal data" {
		t.Errorf("cont text = %q", resp.Cont)
	}
}

func TestBareContinuation(t *testing.T) {
	d := newTestDecoder("+\r\n")
	resp, err := d.ReadResponse()
	if err != nil {
		t.Fatal(err)
	}
	if resp.Type != FrameCont || resp.Cont != "" {
		t.Errorf("got %v %q, want empty cont", resp.Type, resp.Cont)
	}
}

func TestTagged(t *testing.T) {
	d := newTestDecoder("A142 OK [READ-WRITE] SELECT completed\r\n")
	resp, err := d.ReadResponse()
	if err != nil {
		t.Fatal(err)
	}
	if resp.Type != FrameTagged || resp.Tag != "A142" || resp.Cond != imap.CondOK {
		t.Fatalf("got %v %q %s", resp.Type, resp.Tag, resp.Cond)
	}
	if resp.Code.Name != imap.CodeReadWrite {
		t.Errorf("code = %v, want READ-WRITE", resp.Code.Name)
	}
	if resp.Text != "SELECT completed" {
		t.Errorf("text = %q", resp.Text)
	}
}

func TestTaggedNo(t *testing.T) {
	d := newTestDecoder("A003 NO [TRYCREATE] no such mailbox\r\n")
	resp, err := d.ReadResponse()
	if err != nil {
		t.Fatal(err)
	}
	if resp.Cond != imap.CondNo || resp.Code.Name != imap.CodeTryCreate {
		t.Errorf("got %s [%v]", resp.Cond, resp.Code.Name)
	}
}

func untagged(t *testing.T, input string) *imap.Untagged {
	t.Helper()
	d := newTestDecoder(input)
	resp, err := d.ReadResponse()
	if err != nil {
		t.Fatalf("%q: %v", input, err)
	}
	if resp.Type != FrameUntagged {
		t.Fatalf("%q: frame type = %v, want untagged", input, resp.Type)
	}
	return resp.Untagged
}

func TestUntaggedState(t *testing.T) {
	u := untagged(t, "* OK [UIDVALIDITY 3857529045] UIDs valid\r\n")
	if u.Type != imap.UntaggedState || u.Cond != imap.CondOK {
		t.Fatalf("got %v %s", u.Type, u.Cond)
	}
	if u.Code.Name != imap.CodeUIDValidity {
		t.Fatalf("code = %v", u.Code.Name)
	}
	// 3857529045 exceeds signed-32 range; it must round-trip as
	// an unsigned value, never as its signed reinterpretation.
	if u.Code.UIDValidity != 3857529045 {
		t.Errorf("UIDVALIDITY = %d, want 3857529045", u.Code.UIDValidity)
	}
	if u.Text != "UIDs valid" {
		t.Errorf("text = %q", u.Text)
	}
}

func TestUntaggedFetchFlagsUID(t *testing.T) {
	u := untagged(t, "* 23 FETCH (FLAGS (\\Seen) UID 4827313)\r\n")
	if u.Type != imap.UntaggedFetch || u.Num != 23 {
		t.Fatalf("got %v num=%d", u.Type, u.Num)
	}
	if len(u.Fetch) != 2 {
		t.Fatalf("attrs = %d, want 2", len(u.Fetch))
	}
	if u.Fetch[0].Type != imap.AttrFlags || !reflect.DeepEqual(u.Fetch[0].Flags, []imap.Flag{imap.FlagSeen}) {
		t.Errorf("attr 0 = %+v", u.Fetch[0])
	}
	if u.Fetch[1].Type != imap.AttrUID || u.Fetch[1].UID != 4827313 {
		t.Errorf("attr 1 = %+v", u.Fetch[1])
	}
}

func TestUntaggedList(t *testing.T) {
	u := untagged(t, "* LIST (\\Noselect) \"/\" foo\r\n")
	if u.Type != imap.UntaggedList {
		t.Fatalf("got %v", u.Type)
	}
	want := imap.ListItem{Attrs: imap.AttrNoselect, Delim: '/', Mailbox: "foo"}
	if !reflect.DeepEqual(u.List, want) {
		t.Errorf("list = %+v, want %+v", u.List, want)
	}
}

func TestListNilDelim(t *testing.T) {
	u := untagged(t, "* LIST (\\Noinferiors) NIL foo\r\n")
	if u.List.Delim != 0 {
		t.Errorf("delim = %q, want none", u.List.Delim)
	}
}

func TestListINBOXFolding(t *testing.T) {
	for _, name := range []string{"INBOX", "inbox", "iNbOx"} {
		u := untagged(t, "* LIST () \"/\" "+name+"\r\n")
		if u.List.Mailbox != "INBOX" {
			t.Errorf("%q folded to %q, want INBOX", name, u.List.Mailbox)
		}
	}
	u := untagged(t, "* LIST () \"/\" INBOXES\r\n")
	if u.List.Mailbox != "INBOXES" {
		t.Errorf("INBOXES folded to %q", u.List.Mailbox)
	}
}

func TestListUTF7Mailbox(t *testing.T) {
	u := untagged(t, "* LIST () \"/\" \"~peter/mail/&U,BTFw-/&ZeVnLIqe-\"\r\n")
	if u.List.Mailbox != "~peter/mail/台北/日本語" {
		t.Errorf("mailbox = %q", u.List.Mailbox)
	}
}

func TestUntaggedVanishedEarlier(t *testing.T) {
	u := untagged(t, "* VANISHED (EARLIER) 41,43:116,118,120:211\r\n")
	if u.Type != imap.UntaggedVanished || !u.Earlier {
		t.Fatalf("got %v earlier=%v", u.Type, u.Earlier)
	}
	want := []imap.SeqRange{
		{Min: 41, Max: 41},
		{Min: 43, Max: 116},
		{Min: 118, Max: 118},
		{Min: 120, Max: 211},
	}
	if !reflect.DeepEqual(u.Vanished, want) {
		t.Errorf("vanished = %v, want %v", u.Vanished, want)
	}
}

func TestUntaggedVanished(t *testing.T) {
	u := untagged(t, "* VANISHED 405,407,410,425\r\n")
	if u.Earlier {
		t.Error("plain VANISHED reported EARLIER")
	}
	if len(u.Vanished) != 4 {
		t.Errorf("vanished = %v", u.Vanished)
	}
}

func TestUntaggedStatus(t *testing.T) {
	u := untagged(t, "* STATUS blurdybloop (MESSAGES 231 UIDNEXT 44292)\r\n")
	if u.Type != imap.UntaggedStatus {
		t.Fatalf("got %v", u.Type)
	}
	if u.Status.Mailbox != "blurdybloop" {
		t.Errorf("mailbox = %q", u.Status.Mailbox)
	}
	want := []imap.StatusAttr{
		{Item: imap.StatusMessages, Value: 231},
		{Item: imap.StatusUIDNext, Value: 44292},
	}
	if !reflect.DeepEqual(u.Status.Attrs, want) {
		t.Errorf("attrs = %v, want %v", u.Status.Attrs, want)
	}
}

func TestUntaggedSearchEmpty(t *testing.T) {
	u := untagged(t, "* SEARCH\r\n")
	if u.Type != imap.UntaggedSearch {
		t.Fatalf("got %v", u.Type)
	}
	if len(u.SearchIDs) != 0 || u.SearchModSeq != 0 {
		t.Errorf("ids=%v modseq=%d, want empty", u.SearchIDs, u.SearchModSeq)
	}
}

func TestUntaggedSearchModSeq(t *testing.T) {
	u := untagged(t, "* SEARCH 2 5 6 (MODSEQ 917162500)\r\n")
	if !reflect.DeepEqual(u.SearchIDs, []uint32{2, 5, 6}) {
		t.Errorf("ids = %v", u.SearchIDs)
	}
	if u.SearchModSeq != 917162500 {
		t.Errorf("modseq = %d", u.SearchModSeq)
	}
}

func TestUntaggedESearch(t *testing.T) {
	u := untagged(t, "* ESEARCH (TAG \"A282\") UID COUNT 17 ALL 4:18,21\r\n")
	if u.Type != imap.UntaggedESearch {
		t.Fatalf("got %v", u.Type)
	}
	es := u.ESearch
	if es.Tag != "A282" || !es.UID {
		t.Errorf("correlator = %q uid=%v", es.Tag, es.UID)
	}
	if !es.HasCount || es.Count != 17 {
		t.Errorf("count = %d (has=%v)", es.Count, es.HasCount)
	}
	want := []imap.SeqRange{{Min: 4, Max: 18}, {Min: 21, Max: 21}}
	if !reflect.DeepEqual(es.All, want) {
		t.Errorf("all = %v, want %v", es.All, want)
	}
}

func TestUntaggedESearchMinMax(t *testing.T) {
	u := untagged(t, "* ESEARCH (TAG \"t\") MIN 2 MAX 47 MODSEQ 1237\r\n")
	es := u.ESearch
	if es.Min != 2 || es.Max != 47 || es.ModSeq != 1237 {
		t.Errorf("got %+v", es)
	}
}

func TestUntaggedCapability(t *testing.T) {
	u := untagged(t, "* CAPABILITY IMAP4rev1 LITERAL+ IDLE X-GM-EXT-1 AUTH=PLAIN\r\n")
	if u.Type != imap.UntaggedCapability {
		t.Fatalf("got %v", u.Type)
	}
	set := imap.NewCapSet(u.Caps)
	for _, cap := range []imap.Capability{
		imap.CapIMAP4rev1, imap.CapLiteralPlus, imap.CapIdle,
		imap.CapXGmExt1, imap.CapAuthPlain,
	} {
		if !set.Has(cap) {
			t.Errorf("missing capability %s", cap)
		}
	}
}

func TestUntaggedEnabled(t *testing.T) {
	u := untagged(t, "* ENABLED CONDSTORE QRESYNC\r\n")
	if u.Type != imap.UntaggedEnabled || len(u.Caps) != 2 {
		t.Fatalf("got %v %v", u.Type, u.Caps)
	}
}

func TestUntaggedNumeric(t *testing.T) {
	tests := []struct {
		input string
		typ   imap.UntaggedType
		num   uint32
	}{
		{"* 23 EXISTS\r\n", imap.UntaggedExists, 23},
		{"* 5 RECENT\r\n", imap.UntaggedRecent, 5},
		{"* 44 EXPUNGE\r\n", imap.UntaggedExpunge, 44},
	}
	for _, test := range tests {
		u := untagged(t, test.input)
		if u.Type != test.typ || u.Num != test.num {
			t.Errorf("%q = %v %d", test.input, u.Type, u.Num)
		}
	}
}

func TestUntaggedFlags(t *testing.T) {
	u := untagged(t, "* FLAGS (\\Answered \\Flagged \\Deleted \\Seen \\Draft)\r\n")
	want := []imap.Flag{
		imap.FlagAnswered, imap.FlagFlagged, imap.FlagDeleted,
		imap.FlagSeen, imap.FlagDraft,
	}
	if !reflect.DeepEqual(u.Flags, want) {
		t.Errorf("flags = %v", u.Flags)
	}
}

func TestPermanentFlagsAny(t *testing.T) {
	u := untagged(t, "* OK [PERMANENTFLAGS (\\Deleted \\Seen \\*)] Limited\r\n")
	want := []imap.Flag{imap.FlagDeleted, imap.FlagSeen, imap.FlagAny}
	if !reflect.DeepEqual(u.Code.Flags, want) {
		t.Errorf("flags = %v", u.Code.Flags)
	}
}

func TestUnknownRespCode(t *testing.T) {
	u := untagged(t, "* OK [XWIDGET 3 spinning] ready\r\n")
	if u.Code.Name != imap.RespCodeName("XWIDGET") {
		t.Fatalf("code = %v", u.Code.Name)
	}
	if u.Code.Text != "3 spinning" {
		t.Errorf("code text = %q", u.Code.Text)
	}
}

func TestHighestModSeq64(t *testing.T) {
	u := untagged(t, "* OK [HIGHESTMODSEQ 18446744073709551615] big\r\n")
	if u.Code.ModSeq != 18446744073709551615 {
		t.Errorf("modseq = %d", u.Code.ModSeq)
	}
}

func TestCopyUIDCode(t *testing.T) {
	d := newTestDecoder("A003 OK [COPYUID 38505 304,319:320 3956:3958] Done\r\n")
	resp, err := d.ReadResponse()
	if err != nil {
		t.Fatal(err)
	}
	code := resp.Code
	if code.Name != imap.CodeCopyUID || code.UIDValidity != 38505 {
		t.Fatalf("code = %+v", code)
	}
	wantSrc := []imap.SeqRange{{Min: 304, Max: 304}, {Min: 319, Max: 320}}
	wantDst := []imap.SeqRange{{Min: 3956, Max: 3958}}
	if !reflect.DeepEqual(code.SrcUIDs, wantSrc) || !reflect.DeepEqual(code.DstUIDs, wantDst) {
		t.Errorf("uids = %v -> %v", code.SrcUIDs, code.DstUIDs)
	}
}

func TestAppendUIDCode(t *testing.T) {
	d := newTestDecoder("A003 OK [APPENDUID 38505 3955] APPEND completed\r\n")
	resp, err := d.ReadResponse()
	if err != nil {
		t.Fatal(err)
	}
	if resp.Code.UIDValidity != 38505 || !reflect.DeepEqual(resp.Code.DstUIDs, []imap.SeqRange{{Min: 3955, Max: 3955}}) {
		t.Errorf("code = %+v", resp.Code)
	}
}

func TestFetchLiteralHeader(t *testing.T) {
	u := untagged(t, "* 1 FETCH (RFC822.HEADER {11}\r\nSubject: hi)\r\n")
	if u.Num != 1 || len(u.Fetch) != 1 {
		t.Fatalf("got num=%d attrs=%d", u.Num, len(u.Fetch))
	}
	attr := &u.Fetch[0]
	if attr.Type != imap.AttrRFC822Header {
		t.Fatalf("attr = %v", attr.Type)
	}
	// Exactly 11 octets captured; the ")\r\n" following the
	// literal is consumed from the resumed line.
	b, err := attr.DataBytes()
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "Subject: hi" {
		t.Errorf("data = %q", b)
	}
	attr.CloseData()
}

func TestFetchBodySectionNil(t *testing.T) {
	u := untagged(t, "* 3 FETCH (BODY[TEXT] NIL)\r\n")
	attr := &u.Fetch[0]
	if attr.Type != imap.AttrBodySection {
		t.Fatalf("attr = %v", attr.Type)
	}
	if attr.Section.Name != "TEXT" {
		t.Errorf("section = %v", attr.Section)
	}
	if attr.Data != nil {
		t.Error("NIL payload produced data")
	}
}

func TestFetchBodySectionOrigin(t *testing.T) {
	u := untagged(t, "* 3 FETCH (BODY[1.2.HEADER.FIELDS (From To)]<2048> {3}\r\nabc)\r\n")
	attr := &u.Fetch[0]
	sec := attr.Section
	if !reflect.DeepEqual(sec.Path, []uint16{1, 2}) || sec.Name != "HEADER.FIELDS" {
		t.Fatalf("section = %v", sec)
	}
	if len(sec.Headers) != 2 || string(sec.Headers[0]) != "From" || string(sec.Headers[1]) != "To" {
		t.Errorf("headers = %q", sec.Headers)
	}
	if !sec.HasOrigin || sec.Origin != 2048 {
		t.Errorf("origin = %d (has=%v)", sec.Origin, sec.HasOrigin)
	}
	b, _ := attr.DataBytes()
	if string(b) != "abc" {
		t.Errorf("data = %q", b)
	}
	attr.CloseData()
}

func TestFetchInternalDateSize(t *testing.T) {
	u := untagged(t, "* 12 FETCH (INTERNALDATE \"17-Jul-1996 02:44:25 -0700\" RFC822.SIZE 4286)\r\n")
	if u.Fetch[0].InternalDate != "17-Jul-1996 02:44:25 -0700" {
		t.Errorf("internaldate = %q", u.Fetch[0].InternalDate)
	}
	if u.Fetch[1].Size != 4286 {
		t.Errorf("size = %d", u.Fetch[1].Size)
	}
}

func TestFetchModSeq(t *testing.T) {
	u := untagged(t, "* 50 FETCH (MODSEQ (12121231000) FLAGS (\\Seen))\r\n")
	if u.Fetch[0].ModSeq != 12121231000 {
		t.Errorf("modseq = %d", u.Fetch[0].ModSeq)
	}
}

func TestFetchGmail(t *testing.T) {
	u := untagged(t, "* 1 FETCH (X-GM-MSGID 1278455344230334865 X-GM-THRID 1266894439832287888 X-GM-LABELS (\"\\\\Inbox\" \"\\\\Sent\" work))\r\n")
	if u.Fetch[0].GmID != 1278455344230334865 {
		t.Errorf("msgid = %d", u.Fetch[0].GmID)
	}
	if u.Fetch[1].GmID != 1266894439832287888 {
		t.Errorf("thrid = %d", u.Fetch[1].GmID)
	}
	labels := u.Fetch[2].Labels
	if len(labels) != 3 || string(labels[0]) != `\Inbox` || string(labels[2]) != "work" {
		t.Errorf("labels = %q", labels)
	}
}

func TestEnvelope(t *testing.T) {
	u := untagged(t, `* 12 FETCH (ENVELOPE ("Wed, 17 Jul 1996 02:23:25 -0700 (PDT)" "IMAP4rev1 WG mtg summary and minutes" (("Terry Gray" NIL "gray" "cac.washington.edu")) (("Terry Gray" NIL "gray" "cac.washington.edu")) (("Terry Gray" NIL "gray" "cac.washington.edu")) ((NIL NIL "imap" "cac.washington.edu")) ((NIL NIL "minutes" "CNRI.Reston.VA.US") ("" NIL "john-klensin" "MIT.EDU")) NIL NIL "<B27397-0100000@cac.washington.edu>"))` + "\r\n")
	env := u.Fetch[0].Envelope
	if env == nil {
		t.Fatal("no envelope")
	}
	if string(env.Subject) != "IMAP4rev1 WG mtg summary and minutes" {
		t.Errorf("subject = %q", env.Subject)
	}
	if len(env.From) != 1 || string(env.From[0].Name) != "Terry Gray" {
		t.Errorf("from = %+v", env.From)
	}
	if len(env.CC) != 2 {
		t.Fatalf("cc = %+v", env.CC)
	}
	// NIL name vs empty quoted string name: absent vs present-empty.
	if env.CC[0].Name != nil {
		t.Errorf("cc[0].Name = %q, want nil", env.CC[0].Name)
	}
	if env.CC[1].Name == nil || len(env.CC[1].Name) != 0 {
		t.Errorf("cc[1].Name = %v, want empty non-nil", env.CC[1].Name)
	}
	if len(env.BCC) != 0 || len(env.InReplyTo) != 0 {
		t.Errorf("bcc = %v, in-reply-to = %q", env.BCC, env.InReplyTo)
	}
	if string(env.MessageID) != "<B27397-0100000@cac.washington.edu>" {
		t.Errorf("message-id = %q", env.MessageID)
	}
}

func TestBodyStructureText(t *testing.T) {
	u := untagged(t, `* 1 FETCH (BODYSTRUCTURE ("TEXT" "PLAIN" ("CHARSET" "US-ASCII") NIL NIL "7BIT" 3028 92))` + "\r\n")
	bs := u.Fetch[0].Body
	if bs.Kind != imap.BodyText {
		t.Fatalf("kind = %v", bs.Kind)
	}
	if string(bs.MIMEType) != "TEXT" || string(bs.MIMESubtype) != "PLAIN" {
		t.Errorf("type = %s/%s", bs.MIMEType, bs.MIMESubtype)
	}
	if v, ok := imap.ParamValue(bs.Fields.Params, "charset"); !ok || string(v) != "US-ASCII" {
		t.Errorf("charset = %q (ok=%v)", v, ok)
	}
	if bs.Fields.Octets != 3028 || bs.Lines != 92 {
		t.Errorf("octets=%d lines=%d", bs.Fields.Octets, bs.Lines)
	}
}

func TestBodyStructureExt1Part(t *testing.T) {
	u := untagged(t, `* 1 FETCH (BODYSTRUCTURE ("IMAGE" "PNG" ("NAME" "img.png") "<id1>" "a picture" "BASE64" 4096 NIL ("ATTACHMENT" ("FILENAME" "img.png")) NIL NIL))` + "\r\n")
	bs := u.Fetch[0].Body
	if bs.Kind != imap.BodyBasic {
		t.Fatalf("kind = %v", bs.Kind)
	}
	if string(bs.Fields.ID) != "<id1>" || string(bs.Fields.Desc) != "a picture" {
		t.Errorf("id=%q desc=%q", bs.Fields.ID, bs.Fields.Desc)
	}
	if string(bs.Fields.Encoding) != "BASE64" || bs.Fields.Octets != 4096 {
		t.Errorf("encoding=%q octets=%d", bs.Fields.Encoding, bs.Fields.Octets)
	}
}

func TestBodyStructureMultipart(t *testing.T) {
	u := untagged(t, `* 1 FETCH (BODYSTRUCTURE (("TEXT" "PLAIN" ("CHARSET" "UTF-8") NIL NIL "QUOTED-PRINTABLE" 403 6)("TEXT" "HTML" ("CHARSET" "UTF-8") NIL NIL "QUOTED-PRINTABLE" 421 6) "ALTERNATIVE" ("BOUNDARY" "b1") NIL NIL))` + "\r\n")
	bs := u.Fetch[0].Body
	if bs.Kind != imap.BodyMultipart {
		t.Fatalf("kind = %v", bs.Kind)
	}
	if len(bs.Children) != 2 {
		t.Fatalf("children = %d", len(bs.Children))
	}
	if string(bs.MIMESubtype) != "ALTERNATIVE" {
		t.Errorf("subtype = %q", bs.MIMESubtype)
	}
	if v, ok := imap.ParamValue(bs.Params, "boundary"); !ok || string(v) != "b1" {
		t.Errorf("boundary = %q (ok=%v)", v, ok)
	}
	if string(bs.Children[1].MIMESubtype) != "HTML" {
		t.Errorf("child 1 = %s", bs.Children[1].MIMESubtype)
	}
}

func TestBodyStructureNestedMultipartExt(t *testing.T) {
	// A multipart containing a multipart, both carrying extension
	// data. Nested body-ext-mpart must parse recursively.
	u := untagged(t, `* 4 FETCH (BODYSTRUCTURE ((("TEXT" "PLAIN" ("CHARSET" "UTF-8") NIL NIL "7BIT" 12 1 NIL NIL NIL NIL)("TEXT" "HTML" ("CHARSET" "UTF-8") NIL NIL "7BIT" 28 1 NIL NIL NIL NIL) "ALTERNATIVE" ("BOUNDARY" "inner") NIL NIL NIL)("APPLICATION" "PDF" ("NAME" "a.pdf") NIL NIL "BASE64" 1024 NIL ("ATTACHMENT" ("FILENAME" "a.pdf")) NIL NIL) "MIXED" ("BOUNDARY" "outer") NIL NIL NIL))` + "\r\n")
	bs := u.Fetch[0].Body
	if bs.Kind != imap.BodyMultipart || len(bs.Children) != 2 {
		t.Fatalf("outer = %v children=%d", bs.Kind, len(bs.Children))
	}
	inner := &bs.Children[0]
	if inner.Kind != imap.BodyMultipart || len(inner.Children) != 2 {
		t.Fatalf("inner = %v children=%d", inner.Kind, len(inner.Children))
	}
	if v, ok := imap.ParamValue(inner.Params, "boundary"); !ok || string(v) != "inner" {
		t.Errorf("inner boundary = %q (ok=%v)", v, ok)
	}
	if v, ok := imap.ParamValue(bs.Params, "boundary"); !ok || string(v) != "outer" {
		t.Errorf("outer boundary = %q (ok=%v)", v, ok)
	}
	if bs.Children[1].Kind != imap.BodyBasic {
		t.Errorf("attachment kind = %v", bs.Children[1].Kind)
	}
}

func TestBodyStructureMessage(t *testing.T) {
	u := untagged(t, `* 8 FETCH (BODYSTRUCTURE ("MESSAGE" "RFC822" NIL NIL NIL "7BIT" 342 ("Thu, 1 Aug 2024 10:00:00 +0000" "fwd" NIL NIL NIL NIL NIL NIL NIL "<m1@example.com>") ("TEXT" "PLAIN" ("CHARSET" "US-ASCII") NIL NIL "7BIT" 14 1) 12))` + "\r\n")
	bs := u.Fetch[0].Body
	if bs.Kind != imap.BodyMessage {
		t.Fatalf("kind = %v", bs.Kind)
	}
	if bs.Envelope == nil || string(bs.Envelope.Subject) != "fwd" {
		t.Errorf("envelope = %+v", bs.Envelope)
	}
	if bs.Child == nil || bs.Child.Kind != imap.BodyText {
		t.Errorf("child = %+v", bs.Child)
	}
	if bs.Lines != 12 {
		t.Errorf("lines = %d", bs.Lines)
	}
}

func TestUntaggedID(t *testing.T) {
	u := untagged(t, `* ID ("name" "Cyrus" "version" NIL)` + "\r\n")
	if len(u.IDParams) != 2 {
		t.Fatalf("params = %+v", u.IDParams)
	}
	if u.IDParams[0].Field != "name" || string(u.IDParams[0].Value) != "Cyrus" {
		t.Errorf("param 0 = %+v", u.IDParams[0])
	}
	if u.IDParams[1].Value != nil {
		t.Errorf("param 1 value = %q, want nil", u.IDParams[1].Value)
	}
}

func TestUntaggedNamespace(t *testing.T) {
	u := untagged(t, `* NAMESPACE (("" "/")) NIL (("#shared/" "/"))` + "\r\n")
	ns := u.Namespace
	if len(ns.Personal) != 1 || ns.Personal[0].Prefix != "" || ns.Personal[0].Delim != '/' {
		t.Errorf("personal = %+v", ns.Personal)
	}
	if ns.Other != nil {
		t.Errorf("other = %+v", ns.Other)
	}
	if len(ns.Shared) != 1 || ns.Shared[0].Prefix != "#shared/" {
		t.Errorf("shared = %+v", ns.Shared)
	}
}

func TestUntaggedBye(t *testing.T) {
	u := untagged(t, "* BYE Autologout; idle for too long\r\n")
	if u.Type != imap.UntaggedBye {
		t.Fatalf("got %v", u.Type)
	}
	if u.Text != "Autologout; idle for too long" {
		t.Errorf("text = %q", u.Text)
	}
}

func TestParseDeterministic(t *testing.T) {
	const input = "* 23 FETCH (FLAGS (\\Seen) UID 4827313)\r\n"
	u0 := untagged(t, input)
	u1 := untagged(t, input)
	if !reflect.DeepEqual(u0, u1) {
		t.Errorf("two parses differ:\n%+v\n%+v", u0, u1)
	}
}

func TestParseErrorPosition(t *testing.T) {
	d := newTestDecoder("* 23 BOGUS\r\n")
	_, err := d.ReadResponse()
	ierr, ok := err.(*imap.Error)
	if !ok {
		t.Fatalf("err = %v (%T)", err, err)
	}
	if ierr.Kind != imap.ErrProtocolParse {
		t.Errorf("kind = %v", ierr.Kind)
	}
	if ierr.Line != 1 || ierr.Col == 0 {
		t.Errorf("position = %d:%d", ierr.Line, ierr.Col)
	}
}

func TestParseStopsAtFrame(t *testing.T) {
	d := newTestDecoder("* 3 EXISTS\r\n* 5 RECENT\r\n")
	resp, err := d.ReadResponse()
	if err != nil {
		t.Fatal(err)
	}
	if resp.Untagged.Type != imap.UntaggedExists {
		t.Fatalf("got %v", resp.Untagged.Type)
	}
	// The second frame must be untouched.
	if rem := d.Scanner.buf.Buffered(); rem != len("* 5 RECENT\r\n") {
		t.Errorf("buffered = %d after first frame", rem)
	}
	resp, err = d.ReadResponse()
	if err != nil {
		t.Fatal(err)
	}
	if resp.Untagged.Type != imap.UntaggedRecent {
		t.Errorf("got %v", resp.Untagged.Type)
	}
}
