package imapclient

import (
	"spool.ink/imap"
	"spool.ink/imap/imapwire"
)

// FetchResult is one message of a FETCH response stream.
type FetchResult struct {
	SeqNum uint32
	Attrs  []imap.FetchAttr
}

// UID reports the UID attribute, 0 when the server sent none.
func (r *FetchResult) UID() uint32 {
	for i := range r.Attrs {
		if r.Attrs[i].Type == imap.AttrUID {
			return r.Attrs[i].UID
		}
	}
	return 0
}

// Attr finds the first attribute of the given type.
func (r *FetchResult) Attr(typ imap.FetchAttrType) *imap.FetchAttr {
	for i := range r.Attrs {
		if r.Attrs[i].Type == typ {
			return &r.Attrs[i]
		}
	}
	return nil
}

// FetchOptions are the CONDSTORE and QRESYNC FETCH modifiers.
type FetchOptions struct {
	ChangedSince uint64
	Vanished     bool // requires a UID FETCH with ChangedSince
}

// FetchStream is a lazy, finite, non-restartable sequence of FETCH
// results, yielded in server order.
//
// The stream terminates when the tagged completion arrives. Closing
// the stream early cancels the consumer side but not the server: the
// engine drains remaining responses into a sink before any further
// command is issued on the connection.
type FetchStream struct {
	c    *Conn
	tag  string
	cur  FetchResult
	done bool
	err  error

	// Vanished accumulates VANISHED (EARLIER) data delivered
	// during a QRESYNC fetch.
	Vanished []imap.SeqRange
}

// Fetch requests items for the messages named by seqs and streams
// the results.
func (c *Conn) Fetch(seqs []imap.SeqRange, items []FetchItem, opts *FetchOptions) (*FetchStream, error) {
	return c.fetchCmd(false, seqs, items, opts)
}

// UIDFetch is the UID form of Fetch.
func (c *Conn) UIDFetch(uids []imap.SeqRange, items []FetchItem, opts *FetchOptions) (*FetchStream, error) {
	return c.fetchCmd(true, uids, items, opts)
}

func (c *Conn) fetchCmd(uid bool, seqs []imap.SeqRange, items []FetchItem, opts *FetchOptions) (*FetchStream, error) {
	if err := c.checkState(StateSelected); err != nil {
		return nil, err
	}
	if err := c.drainStream(); err != nil {
		return nil, err
	}
	name := "FETCH"
	if uid {
		name = "UID FETCH"
	}
	b := c.newCmd(name)
	b.sp()
	b.seqs(seqs)
	b.sp()
	b.fetchItems(items)
	if opts != nil && (opts.ChangedSince != 0 || opts.Vanished) {
		b.atom(" (")
		if opts.ChangedSince != 0 {
			b.atom("CHANGEDSINCE ")
			b.number(opts.ChangedSince)
		}
		if opts.Vanished {
			if opts.ChangedSince != 0 {
				b.sp()
			}
			b.atom("VANISHED")
		}
		b.buf = append(b.buf, ')')
	}
	b.end()

	stream := &FetchStream{c: c, tag: b.tag}
	res := &result{}
	if err := c.writeCommand(b, res, stream.collect); err != nil {
		return nil, err
	}
	c.stream = stream
	return stream, nil
}

// collect consumes untagged responses belonging to the fetch window.
func (f *FetchStream) collect(u *imap.Untagged) bool {
	switch u.Type {
	case imap.UntaggedVanished:
		f.Vanished = append(f.Vanished, u.Vanished...)
		return true
	}
	return false
}

// Next advances to the next FETCH result. It reports false when the
// tagged completion has arrived or the stream failed; Err
// distinguishes the two.
func (f *FetchStream) Next() bool {
	if f.done || f.err != nil {
		return false
	}
	c := f.c
	for {
		resp, err := c.readResponse()
		if err != nil {
			f.err = err
			f.finish()
			return false
		}
		switch resp.Type {
		case imapwire.FrameCont:
			f.err = c.broken(&imap.Error{Kind: imap.ErrUnexpectedCont})
			f.finish()
			return false
		case imapwire.FrameUntagged:
			if resp.Untagged.Type == imap.UntaggedFetch {
				// State updates still apply.
				c.handleUntagged(resp.Untagged, nil, func(*imap.Untagged) bool { return true })
				f.cur = FetchResult{SeqNum: resp.Untagged.Num, Attrs: resp.Untagged.Fetch}
				return true
			}
			c.handleUntagged(resp.Untagged, nil, f.collect)
		case imapwire.FrameTagged:
			if resp.Tag != f.tag {
				f.err = c.broken(&imap.Error{Kind: imap.ErrProtocolParse,
					Err: errBadTag(resp.Tag, f.tag)})
				f.finish()
				return false
			}
			res := &result{}
			if _, err := c.completionError(resp, res); err != nil {
				f.err = err
			}
			f.finish()
			return false
		}
	}
}

func errBadTag(got, want string) error {
	return &tagMismatchError{got: got, want: want}
}

type tagMismatchError struct {
	got, want string
}

func (e *tagMismatchError) Error() string {
	return "completion tag " + e.got + ", want " + e.want
}

// Result reports the current FETCH result. The attribute payloads
// are owned by the caller; close their Data buffers when done.
func (f *FetchStream) Result() *FetchResult {
	return &f.cur
}

// Err reports the terminal error of the stream, nil after a clean
// completion.
func (f *FetchStream) Err() error {
	return f.err
}

func (f *FetchStream) finish() {
	f.done = true
	if f.c.stream == f {
		f.c.stream = nil
	}
}

// Close drains the stream to its tagged completion, discarding
// any remaining results.
func (f *FetchStream) Close() error {
	for f.Next() {
		for i := range f.cur.Attrs {
			f.cur.Attrs[i].CloseData()
		}
	}
	return f.err
}
