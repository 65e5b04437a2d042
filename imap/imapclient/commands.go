package imapclient

import (
	"io"
	"time"

	"spool.ink/imap"
)

// Capability asks the server for its capability list and updates
// the connection's set.
func (c *Conn) Capability() ([]imap.Capability, error) {
	if err := c.checkState(StateNotAuthenticated); err != nil {
		return nil, err
	}
	b := c.newCmd("CAPABILITY")
	b.end()
	var caps []imap.Capability
	_, err := c.roundTrip(b, func(u *imap.Untagged) bool {
		if u.Type == imap.UntaggedCapability {
			caps = u.Caps
			return true
		}
		return false
	})
	return caps, err
}

func (c *Conn) Noop() error {
	if err := c.checkState(StateNotAuthenticated); err != nil {
		return err
	}
	b := c.newCmd("NOOP")
	b.end()
	_, err := c.roundTrip(b, nil)
	return err
}

// Login authenticates with the LOGIN command.
func (c *Conn) Login(username, password string) error {
	if err := c.checkState(StateNotAuthenticated); err != nil {
		return err
	}
	if c.state != StateNotAuthenticated {
		return c.stateError("LOGIN in %s state", c.state)
	}
	if c.caps.Has(imap.CapLoginDisabled) {
		return c.stateError("server has disabled LOGIN")
	}
	b := c.newCmd("LOGIN")
	b.sp()
	b.string([]byte(username))
	b.sp()
	b.string([]byte(password))
	b.end()
	if _, err := c.roundTrip(b, nil); err != nil {
		return err
	}
	c.state = StateAuthenticated
	return nil
}

// Enable requests RFC 5161 extensions; it reports the set the
// server confirmed.
func (c *Conn) Enable(caps ...imap.Capability) ([]imap.Capability, error) {
	if err := c.checkState(StateAuthenticated); err != nil {
		return nil, err
	}
	b := c.newCmd("ENABLE")
	for _, cap := range caps {
		b.sp()
		b.atom(string(cap))
	}
	b.end()
	var enabled []imap.Capability
	_, err := c.roundTrip(b, func(u *imap.Untagged) bool {
		if u.Type == imap.UntaggedEnabled {
			enabled = append(enabled, u.Caps...)
			return true
		}
		return false
	})
	return enabled, err
}

// ID exchanges RFC 2971 implementation identity. A nil params sends
// "ID NIL".
func (c *Conn) ID(params []imap.IDParam) ([]imap.IDParam, error) {
	if err := c.checkState(StateNotAuthenticated); err != nil {
		return nil, err
	}
	b := c.newCmd("ID")
	b.sp()
	if len(params) == 0 {
		b.atom("NIL")
	} else {
		b.buf = append(b.buf, '(')
		for i, p := range params {
			if i > 0 {
				b.sp()
			}
			b.string([]byte(p.Field))
			b.sp()
			if p.Value == nil {
				b.atom("NIL")
			} else {
				b.string(p.Value)
			}
		}
		b.buf = append(b.buf, ')')
	}
	b.end()
	var got []imap.IDParam
	_, err := c.roundTrip(b, func(u *imap.Untagged) bool {
		if u.Type == imap.UntaggedID {
			got = u.IDParams
			return true
		}
		return false
	})
	return got, err
}

// Namespace fetches the RFC 2342 namespaces.
func (c *Conn) Namespace() (*imap.Namespace, error) {
	if err := c.checkState(StateAuthenticated); err != nil {
		return nil, err
	}
	b := c.newCmd("NAMESPACE")
	b.end()
	var ns *imap.Namespace
	_, err := c.roundTrip(b, func(u *imap.Untagged) bool {
		if u.Type == imap.UntaggedNamespace {
			ns = u.Namespace
			return true
		}
		return false
	})
	return ns, err
}

func (c *Conn) list(name, ref, pattern string, typ imap.UntaggedType) ([]imap.ListItem, error) {
	if err := c.checkState(StateAuthenticated); err != nil {
		return nil, err
	}
	b := c.newCmd(name)
	b.sp()
	b.mailbox(ref)
	b.sp()
	b.mailbox(pattern)
	b.end()
	var items []imap.ListItem
	_, err := c.roundTrip(b, func(u *imap.Untagged) bool {
		if u.Type == typ {
			items = append(items, u.List)
			return true
		}
		return false
	})
	return items, err
}

// List runs LIST with the given reference and mailbox pattern.
func (c *Conn) List(ref, pattern string) ([]imap.ListItem, error) {
	return c.list("LIST", ref, pattern, imap.UntaggedList)
}

// Lsub lists the subscribed mailboxes.
func (c *Conn) Lsub(ref, pattern string) ([]imap.ListItem, error) {
	return c.list("LSUB", ref, pattern, imap.UntaggedLsub)
}

// Xlist is the pre-SPECIAL-USE GMail listing; results carry the
// special-use attributes.
func (c *Conn) Xlist(ref, pattern string) ([]imap.ListItem, error) {
	return c.list("XLIST", ref, pattern, imap.UntaggedList)
}

// Status fetches mailbox counters without selecting it.
func (c *Conn) Status(mailbox string, items ...imap.StatusItem) (*imap.MailboxStatus, error) {
	if err := c.checkState(StateAuthenticated); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		items = []imap.StatusItem{imap.StatusMessages, imap.StatusUIDNext, imap.StatusUIDValidity}
	}
	b := c.newCmd("STATUS")
	b.sp()
	b.mailbox(mailbox)
	b.buf = append(b.buf, ' ', '(')
	for i, item := range items {
		if i > 0 {
			b.sp()
		}
		b.atom(string(item))
	}
	b.buf = append(b.buf, ')')
	b.end()
	var st *imap.MailboxStatus
	_, err := c.roundTrip(b, func(u *imap.Untagged) bool {
		if u.Type == imap.UntaggedStatus {
			st = u.Status
			return true
		}
		return false
	})
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, c.stateError("STATUS returned no data")
	}
	return st, nil
}

// QresyncParams requests RFC 7162 quick resynchronization during
// SELECT, from cached UIDVALIDITY and HIGHESTMODSEQ values.
type QresyncParams struct {
	UIDValidity uint32
	ModSeq      uint64
	KnownUIDs   []imap.SeqRange // optional
}

// SelectOptions modify SELECT and EXAMINE.
type SelectOptions struct {
	Condstore bool
	Qresync   *QresyncParams
}

// Select selects a mailbox read-write. The extracted mailbox state
// is recorded on the session and returned.
func (c *Conn) Select(mailbox string, opts *SelectOptions) (*imap.SelectedMailbox, error) {
	return c.selectCmd("SELECT", mailbox, opts)
}

// Examine selects a mailbox read-only.
func (c *Conn) Examine(mailbox string, opts *SelectOptions) (*imap.SelectedMailbox, error) {
	return c.selectCmd("EXAMINE", mailbox, opts)
}

func (c *Conn) selectCmd(name, mailbox string, opts *SelectOptions) (*imap.SelectedMailbox, error) {
	if err := c.checkState(StateAuthenticated); err != nil {
		return nil, err
	}
	b := c.newCmd(name)
	b.sp()
	b.mailbox(mailbox)
	if opts != nil && (opts.Condstore || opts.Qresync != nil) {
		b.buf = append(b.buf, ' ', '(')
		wrote := false
		if opts.Condstore {
			b.atom("CONDSTORE")
			wrote = true
		}
		if q := opts.Qresync; q != nil {
			if wrote {
				b.sp()
			}
			b.atom("QRESYNC (")
			b.number(uint64(q.UIDValidity))
			b.sp()
			b.number(q.ModSeq)
			if len(q.KnownUIDs) > 0 {
				b.sp()
				b.seqs(q.KnownUIDs)
			}
			b.buf = append(b.buf, ')')
		}
		b.buf = append(b.buf, ')')
	}
	b.end()

	c.pendingSelected = &imap.SelectedMailbox{
		Name:     imap.NormalizeMailbox(mailbox),
		ReadOnly: name == "EXAMINE",
	}
	res, err := c.roundTrip(b, nil)
	mbox := c.pendingSelected
	c.pendingSelected = nil
	if err != nil {
		// A failed SELECT leaves no mailbox selected.
		if _, ok := err.(*imap.Error); ok && c.state == StateSelected {
			c.selected = nil
			c.state = StateAuthenticated
		}
		return nil, err
	}
	switch res.code.Name {
	case imap.CodeReadOnly:
		mbox.ReadOnly = true
	case imap.CodeReadWrite:
		mbox.ReadOnly = false
	}
	c.selected = mbox
	c.state = StateSelected
	return mbox, nil
}

func (c *Conn) mailboxCmd(name, mailbox string) error {
	if err := c.checkState(StateAuthenticated); err != nil {
		return err
	}
	b := c.newCmd(name)
	b.sp()
	b.mailbox(mailbox)
	b.end()
	_, err := c.roundTrip(b, nil)
	return err
}

func (c *Conn) Create(mailbox string) error      { return c.mailboxCmd("CREATE", mailbox) }
func (c *Conn) Delete(mailbox string) error      { return c.mailboxCmd("DELETE", mailbox) }
func (c *Conn) Subscribe(mailbox string) error   { return c.mailboxCmd("SUBSCRIBE", mailbox) }
func (c *Conn) Unsubscribe(mailbox string) error { return c.mailboxCmd("UNSUBSCRIBE", mailbox) }

func (c *Conn) Rename(oldName, newName string) error {
	if err := c.checkState(StateAuthenticated); err != nil {
		return err
	}
	b := c.newCmd("RENAME")
	b.sp()
	b.mailbox(oldName)
	b.sp()
	b.mailbox(newName)
	b.end()
	_, err := c.roundTrip(b, nil)
	return err
}

// AppendResult carries the RFC 4315 APPENDUID data when the server
// supports UIDPLUS; both fields are zero otherwise.
type AppendResult struct {
	UIDValidity uint32
	UID         uint32
}

// Append stores a message of n octets read from r. A zero date
// omits the optional date-time; nil flags omit the flag list.
func (c *Conn) Append(mailbox string, flags []imap.Flag, date time.Time, r io.Reader, n int64) (*AppendResult, error) {
	if err := c.checkState(StateAuthenticated); err != nil {
		return nil, err
	}
	b := c.newCmd("APPEND")
	b.sp()
	b.mailbox(mailbox)
	if flags != nil {
		b.sp()
		b.flags(flags)
	}
	if !date.IsZero() {
		b.sp()
		b.dateTime(date)
	}
	b.sp()
	b.literal(r, n)
	b.end()
	res, err := c.roundTrip(b, nil)
	if err != nil {
		return nil, err
	}
	result := &AppendResult{}
	if res.code.Name == imap.CodeAppendUID {
		result.UIDValidity = res.code.UIDValidity
		if len(res.code.DstUIDs) > 0 {
			result.UID = res.code.DstUIDs[0].Min
		}
	}
	return result, nil
}

// Check requests a server checkpoint of the selected mailbox.
func (c *Conn) Check() error {
	if err := c.checkState(StateSelected); err != nil {
		return err
	}
	b := c.newCmd("CHECK")
	b.end()
	_, err := c.roundTrip(b, nil)
	return err
}

// CloseMailbox closes the selected mailbox, expunging silently.
func (c *Conn) CloseMailbox() error {
	return c.unselectCmd("CLOSE")
}

// Unselect closes the selected mailbox without expunging.
func (c *Conn) Unselect() error {
	return c.unselectCmd("UNSELECT")
}

func (c *Conn) unselectCmd(name string) error {
	if err := c.checkState(StateSelected); err != nil {
		return err
	}
	b := c.newCmd(name)
	b.end()
	if _, err := c.roundTrip(b, nil); err != nil {
		return err
	}
	c.selected = nil
	c.state = StateAuthenticated
	return nil
}

// Expunge removes \Deleted messages, reporting the expunged
// sequence numbers in server order.
func (c *Conn) Expunge() ([]uint32, error) {
	return c.expungeCmd(nil)
}

// UIDExpunge is the RFC 4315 UID EXPUNGE, restricted to uids.
func (c *Conn) UIDExpunge(uids []imap.SeqRange) ([]uint32, error) {
	return c.expungeCmd(uids)
}

func (c *Conn) expungeCmd(uids []imap.SeqRange) ([]uint32, error) {
	if err := c.checkState(StateSelected); err != nil {
		return nil, err
	}
	var b *cmdBuilder
	if uids == nil {
		b = c.newCmd("EXPUNGE")
	} else {
		b = c.newCmd("UID EXPUNGE")
		b.sp()
		b.seqs(uids)
	}
	b.end()
	var seqnums []uint32
	_, err := c.roundTrip(b, func(u *imap.Untagged) bool {
		if u.Type == imap.UntaggedExpunge {
			seqnums = append(seqnums, u.Num)
			return true
		}
		return false
	})
	return seqnums, err
}

// SearchResult is the outcome of a SEARCH or UID SEARCH.
type SearchResult struct {
	// IDs are sequence numbers or UIDs depending on the command
	// form, in server order.
	IDs []uint32

	// ModSeq is the CONDSTORE (MODSEQ n) trailer, 0 if absent.
	ModSeq uint64

	// ESearch is set when the server answered with an RFC 4731
	// extended response instead.
	ESearch *imap.ESearch
}

// Search runs SEARCH over message sequence numbers.
func (c *Conn) Search(op imap.SearchOp) (*SearchResult, error) {
	return c.searchCmd(false, op)
}

// UIDSearch runs UID SEARCH; results are UIDs.
func (c *Conn) UIDSearch(op imap.SearchOp) (*SearchResult, error) {
	return c.searchCmd(true, op)
}

func (c *Conn) searchCmd(uid bool, op imap.SearchOp) (*SearchResult, error) {
	if err := c.checkState(StateSelected); err != nil {
		return nil, err
	}
	name := "SEARCH"
	if uid {
		name = "UID SEARCH"
	}
	b := c.newCmd(name)
	b.sp()
	if searchNeedsCharset(&op) {
		b.atom("CHARSET UTF-8")
		b.sp()
	}
	b.searchOp(&op, false)
	b.end()
	result := &SearchResult{}
	_, err := c.roundTrip(b, func(u *imap.Untagged) bool {
		switch u.Type {
		case imap.UntaggedSearch:
			result.IDs = append(result.IDs, u.SearchIDs...)
			if u.SearchModSeq != 0 {
				result.ModSeq = u.SearchModSeq
			}
			return true
		case imap.UntaggedESearch:
			result.ESearch = u.ESearch
			for _, seq := range u.ESearch.All {
				if seq.Max == imap.SeqMax {
					continue // open range, reported via ESearch only
				}
				for v := seq.Min; ; v++ {
					result.IDs = append(result.IDs, v)
					if v == seq.Max {
						break
					}
				}
			}
			if u.ESearch.ModSeq != 0 {
				result.ModSeq = u.ESearch.ModSeq
			}
			return true
		}
		return false
	})
	return result, err
}

// StoreOptions select the FLAGS data item form of a STORE.
type StoreOptions struct {
	Mode   imap.StoreMode
	Silent bool

	// UnchangedSince emits the RFC 7162 modifier when nonzero.
	UnchangedSince uint64
}

// StoreResult reports the FETCH updates provoked by a STORE and, for
// conditional stores, the messages the server refused to modify.
type StoreResult struct {
	Updates  []FetchResult
	Modified []imap.SeqRange
}

// Store alters flags on the messages named by seqs.
func (c *Conn) Store(seqs []imap.SeqRange, opts StoreOptions, flags []imap.Flag) (*StoreResult, error) {
	return c.storeCmd(false, seqs, opts, flags)
}

// UIDStore is the UID form of Store.
func (c *Conn) UIDStore(uids []imap.SeqRange, opts StoreOptions, flags []imap.Flag) (*StoreResult, error) {
	return c.storeCmd(true, uids, opts, flags)
}

func (c *Conn) storeCmd(uid bool, seqs []imap.SeqRange, opts StoreOptions, flags []imap.Flag) (*StoreResult, error) {
	if err := c.checkState(StateSelected); err != nil {
		return nil, err
	}
	if opts.Mode == 0 {
		return nil, c.stateError("STORE requires a mode")
	}
	name := "STORE"
	if uid {
		name = "UID STORE"
	}
	b := c.newCmd(name)
	b.sp()
	b.seqs(seqs)
	if opts.UnchangedSince != 0 {
		b.atom(" (UNCHANGEDSINCE ")
		b.number(opts.UnchangedSince)
		b.buf = append(b.buf, ')')
	}
	b.sp()
	b.atom(opts.Mode.String())
	if opts.Silent {
		b.atom(".SILENT")
	}
	b.sp()
	b.flags(flags)
	b.end()
	result := &StoreResult{}
	res, err := c.roundTrip(b, func(u *imap.Untagged) bool {
		if u.Type == imap.UntaggedFetch {
			result.Updates = append(result.Updates, FetchResult{SeqNum: u.Num, Attrs: u.Fetch})
			return true
		}
		return false
	})
	if res != nil && res.code.Name == imap.CodeModified {
		result.Modified = res.code.SrcUIDs
	}
	if err != nil {
		ierr, ok := err.(*imap.Error)
		if ok && ierr.Kind == imap.ErrNoResponse && ierr.Code.Name == imap.CodeModified {
			result.Modified = ierr.Code.SrcUIDs
		}
		return result, err
	}
	return result, nil
}

// CopyResult carries RFC 4315 COPYUID data when available.
type CopyResult struct {
	UIDValidity uint32
	SrcUIDs     []imap.SeqRange
	DstUIDs     []imap.SeqRange
}

// Copy copies messages to another mailbox.
func (c *Conn) Copy(seqs []imap.SeqRange, mailbox string) (*CopyResult, error) {
	return c.copyCmd("COPY", false, seqs, mailbox)
}

// UIDCopy is the UID form of Copy.
func (c *Conn) UIDCopy(uids []imap.SeqRange, mailbox string) (*CopyResult, error) {
	return c.copyCmd("COPY", true, uids, mailbox)
}

// Move moves messages to another mailbox (RFC 6851).
func (c *Conn) Move(seqs []imap.SeqRange, mailbox string) (*CopyResult, error) {
	return c.copyCmd("MOVE", false, seqs, mailbox)
}

// UIDMove is the UID form of Move.
func (c *Conn) UIDMove(uids []imap.SeqRange, mailbox string) (*CopyResult, error) {
	return c.copyCmd("MOVE", true, uids, mailbox)
}

func (c *Conn) copyCmd(name string, uid bool, seqs []imap.SeqRange, mailbox string) (*CopyResult, error) {
	if err := c.checkState(StateSelected); err != nil {
		return nil, err
	}
	if uid {
		name = "UID " + name
	}
	b := c.newCmd(name)
	b.sp()
	b.seqs(seqs)
	b.sp()
	b.mailbox(mailbox)
	b.end()
	res, err := c.roundTrip(b, nil)
	if err != nil {
		return nil, err
	}
	result := &CopyResult{}
	code := res.code
	if code.Name != imap.CodeCopyUID {
		// MOVE reports COPYUID on an untagged OK (RFC 6851).
		for _, u := range res.untagged {
			if u.Type == imap.UntaggedState && u.Code.Name == imap.CodeCopyUID {
				code = u.Code
				break
			}
		}
	}
	if code.Name == imap.CodeCopyUID {
		result.UIDValidity = code.UIDValidity
		result.SrcUIDs = code.SrcUIDs
		result.DstUIDs = code.DstUIDs
	}
	return result, nil
}

// Logout ends the session cleanly and closes the stream.
func (c *Conn) Logout() error {
	if err := c.checkState(StateNotAuthenticated); err != nil {
		return err
	}
	b := c.newCmd("LOGOUT")
	b.end()
	_, err := c.roundTrip(b, nil)
	if err != nil {
		if ierr, ok := err.(*imap.Error); !ok || ierr.Terminal() {
			return err
		}
	}
	c.netConn.Close()
	c.state = StateClosed
	return nil
}
