// Package imapclient implements an IMAP client as described in RFC 3501.
//
// The client drives a caller-provided duplex byte stream, typically a
// TLS connection. TLS setup and certificate validation are the
// caller's concern.
//
// Supported extension RFCs:
//	RFC 2177 IDLE
//	RFC 2342 NAMESPACE
//	RFC 2971 ID
//	RFC 4315 UIDPLUS
//	RFC 4731 ESEARCH
//	RFC 4978 COMPRESS=DEFLATE
//	RFC 5161 ENABLE
//	RFC 6851 MOVE
//	RFC 6855 UTF8=ACCEPT
//	RFC 7162 CONDSTORE QRESYNC
//	RFC 7888 LITERAL+/-
//
// The GMail extensions X-GM-MSGID, X-GM-THRID, X-GM-LABELS, X-GM-RAW,
// and XLIST are also supported.
package imapclient

import (
	"bufio"
	"compress/flate"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"crawshaw.io/iox"
	"spool.ink/imap"
	"spool.ink/imap/imapwire"
)

// State is the session state of a connection.
//
//	Disconnected → Greeting → NotAuthenticated → Authenticated ⇄ Selected
//	                                 → Logout → Closed
//
// Any state may also transition to Broken on a fatal I/O or
// parse error.
type State int

const (
	StateDisconnected State = iota
	StateGreeting
	StateNotAuthenticated
	StateAuthenticated
	StateSelected
	StateLogout
	StateClosed
	StateBroken
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateGreeting:
		return "Greeting"
	case StateNotAuthenticated:
		return "NotAuthenticated"
	case StateAuthenticated:
		return "Authenticated"
	case StateSelected:
		return "Selected"
	case StateLogout:
		return "Logout"
	case StateClosed:
		return "Closed"
	case StateBroken:
		return "Broken"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Options configures a connection.
type Options struct {
	// Logf is the destination for session logs. Nil disables logging.
	Logf func(format string, v ...interface{})

	// Filer allocates buffers for literal payloads.
	// A private Filer is created when nil.
	Filer *iox.Filer

	// Push receives unsolicited untagged responses: those arriving
	// outside any in-flight command window, including IDLE updates.
	// It is called from the connection's reader; it must not issue
	// commands on the same connection.
	Push func(u *imap.Untagged)

	// Debug receives a C:/S: transcript of the session.
	// Note this includes credentials sent during authentication.
	Debug io.Writer

	// TagPrefix overrides the prefix of generated command tags.
	TagPrefix string
}

// Conn is an IMAP client connection.
//
// Conn is not safe for concurrent use; commands are serialized by
// the caller. The sole exception is IdleDone, which may be called
// while Idle blocks.
type Conn struct {
	Logf func(format string, v ...interface{})

	netConn  io.ReadWriteCloser
	br       *bufio.Reader
	dec      *imapwire.Decoder
	filer    *iox.Filer
	ownFiler bool
	push     func(u *imap.Untagged)
	debugW   *debugWriter

	bwMu          sync.Mutex
	bw            *bufio.Writer
	compressing   bool // COMPRESS active
	compressFlush func() error
	idling        bool

	state    State
	stateErr error // terminal error once Broken
	sawBye   bool

	caps     imap.CapSet
	enabled  imap.CapSet
	selected *imap.SelectedMailbox

	// pendingSelected accumulates mailbox state while a
	// SELECT or EXAMINE is in flight.
	pendingSelected *imap.SelectedMailbox

	tagPrefix  string
	tagCounter uint32

	// stream is the open FETCH stream, drained before any
	// further command is issued.
	stream *FetchStream
}

// Connect takes ownership of conn and consumes the server greeting.
//
// The greeting decides the initial state: an OK greeting leaves the
// connection NotAuthenticated, a PREAUTH greeting Authenticated.
// A BYE greeting closes conn and reports the server's text.
func Connect(conn io.ReadWriteCloser, opts *Options) (*Conn, error) {
	if opts == nil {
		opts = &Options{}
	}
	c := &Conn{
		Logf:      opts.Logf,
		netConn:   conn,
		filer:     opts.Filer,
		push:      opts.Push,
		state:     StateGreeting,
		tagPrefix: opts.TagPrefix,
		caps:      make(imap.CapSet),
		enabled:   make(imap.CapSet),
	}
	if c.Logf == nil {
		c.Logf = func(format string, v ...interface{}) {}
	}
	if c.filer == nil {
		c.filer = iox.NewFiler(0)
		c.ownFiler = true
	}
	if c.tagPrefix == "" {
		c.tagPrefix = "sp"
	}
	if opts.Debug != nil {
		c.debugW = newDebugWriter(c.Logf, opts.Debug)
	}
	c.initBufio(conn, conn)

	resp, err := c.readResponse()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if resp.Type != imapwire.FrameUntagged {
		c.broken(&imap.Error{Kind: imap.ErrProtocolParse, Err: fmt.Errorf("greeting is not untagged")})
		return nil, c.stateErr
	}
	u := resp.Untagged
	switch u.Type {
	case imap.UntaggedState:
		if u.Cond != imap.CondOK {
			c.broken(&imap.Error{Kind: imap.ErrProtocolParse, Err: fmt.Errorf("greeting condition %s", u.Cond)})
			return nil, c.stateErr
		}
		c.state = StateNotAuthenticated
	case imap.UntaggedPreauth:
		c.state = StateAuthenticated
	case imap.UntaggedBye:
		conn.Close()
		c.state = StateClosed
		return nil, &imap.Error{Kind: imap.ErrBye, Code: u.Code, Text: u.Text}
	default:
		c.broken(&imap.Error{Kind: imap.ErrProtocolParse, Err: fmt.Errorf("greeting type %v", u.Type)})
		return nil, c.stateErr
	}
	if u.Code.Name == imap.CodeCapability {
		c.caps = imap.NewCapSet(u.Code.Caps)
	}
	return c, nil
}

func (c *Conn) initBufio(r io.Reader, w io.Writer) {
	if c.debugW == nil {
		c.br = bufio.NewReader(r)
		c.bw = bufio.NewWriter(w)
	} else {
		c.br = bufio.NewReader(io.TeeReader(r, c.debugW.server))
		c.bw = bufio.NewWriter(io.MultiWriter(c.debugW.client, w))
	}
	if c.dec == nil {
		c.dec = imapwire.NewDecoder(imapwire.NewScanner(c.br, c.filer))
	} else {
		c.dec.Scanner.SetSource(c.br)
	}
}

// State reports the current session state.
func (c *Conn) State() State { return c.state }

// Caps reports the most recently advertised capability set.
func (c *Conn) Caps() imap.CapSet { return c.caps }

// Selected reports the selected mailbox state, nil when no
// mailbox is selected.
func (c *Conn) Selected() *imap.SelectedMailbox { return c.selected }

func (c *Conn) nextTag() string {
	c.tagCounter++
	return fmt.Sprintf("%s%d", c.tagPrefix, c.tagCounter)
}

func (c *Conn) flush() error {
	if err := c.bw.Flush(); err != nil {
		return err
	}
	if c.compressFlush != nil {
		if err := c.compressFlush(); err != nil {
			return err
		}
	}
	return nil
}

// broken records a terminal error and closes the stream.
func (c *Conn) broken(err error) error {
	if c.state == StateBroken {
		return c.stateErr
	}
	c.state = StateBroken
	c.stateErr = err
	c.netConn.Close()
	if c.ownFiler {
		c.filer.Shutdown(context.Background())
	}
	return err
}

// Close releases the connection without a LOGOUT exchange.
func (c *Conn) Close() error {
	if c.state == StateClosed || c.state == StateBroken {
		return nil
	}
	c.state = StateClosed
	err := c.netConn.Close()
	if c.ownFiler {
		c.filer.Shutdown(context.Background())
	}
	return err
}

func (c *Conn) readResponse() (*imapwire.Response, error) {
	resp, err := c.dec.ReadResponse()
	if err != nil {
		if err == io.EOF {
			err = &imap.Error{Kind: imap.ErrIO, Err: io.ErrUnexpectedEOF}
		}
		return nil, c.broken(err)
	}
	return resp, nil
}

func (c *Conn) stateError(format string, v ...interface{}) error {
	return &imap.Error{Kind: imap.ErrSessionState, Text: fmt.Sprintf(format, v...)}
}

// checkState verifies the command is legal in the current state
// without touching the wire.
func (c *Conn) checkState(min State) error {
	switch c.state {
	case StateBroken:
		if c.stateErr != nil {
			return c.stateErr
		}
		return c.stateError("connection is broken")
	case StateClosed, StateLogout, StateDisconnected, StateGreeting:
		return c.stateError("connection is %s", c.state)
	}
	switch min {
	case StateNotAuthenticated:
		return nil
	case StateAuthenticated:
		if c.state == StateAuthenticated || c.state == StateSelected {
			return nil
		}
	case StateSelected:
		if c.state == StateSelected {
			return nil
		}
	}
	return c.stateError("command requires %s state, connection is %s", min, c.state)
}

// result is the data gathered during one command window.
type result struct {
	untagged []*imap.Untagged
	code     imap.RespCode
	text     string
}

// roundTrip writes the built command and reads frames until its
// tagged completion. Untagged responses inside the window update
// connection state and, unless consumed by collect, accumulate on
// the result.
func (c *Conn) roundTrip(b *cmdBuilder, collect func(u *imap.Untagged) bool) (*result, error) {
	if err := c.drainStream(); err != nil {
		return nil, err
	}
	start := time.Now()
	res, err := c.exchange(b, collect)
	c.logCmd(b, start, err)
	return res, err
}

func (c *Conn) exchange(b *cmdBuilder, collect func(u *imap.Untagged) bool) (*result, error) {
	res := &result{}
	if err := c.writeCommand(b, res, collect); err != nil {
		return res, err
	}
	return c.awaitCompletion(b.tag, res, collect)
}

// writeCommand sends every part of the command, pausing before each
// synchronizing literal until the server requests continuation.
func (c *Conn) writeCommand(b *cmdBuilder, res *result, collect func(u *imap.Untagged) bool) error {
	c.bwMu.Lock()
	defer c.bwMu.Unlock()
	for _, part := range b.parts {
		if _, err := c.bw.Write(part.text); err != nil {
			return c.broken(&imap.Error{Kind: imap.ErrIO, Err: err})
		}
		if part.lit == nil {
			continue
		}
		if part.sync {
			if err := c.flush(); err != nil {
				return c.broken(&imap.Error{Kind: imap.ErrIO, Err: err})
			}
			// Await the continuation request.
		contWait:
			for {
				resp, err := c.readResponse()
				if err != nil {
					return err
				}
				switch resp.Type {
				case imapwire.FrameCont:
					break contWait
				case imapwire.FrameUntagged:
					c.handleUntagged(resp.Untagged, res, collect)
				case imapwire.FrameTagged:
					// The server refused the literal and completed
					// the command early.
					if resp.Tag != b.tag {
						return c.broken(&imap.Error{Kind: imap.ErrProtocolParse,
							Err: fmt.Errorf("unknown tag %q awaiting continuation", resp.Tag)})
					}
					res.code, res.text = resp.Code, resp.Text
					_, err := c.completionError(resp, res)
					if err == nil {
						err = c.stateError("completion before literal")
					}
					return err
				}
			}
		}
		if c.debugW != nil {
			c.debugW.client.literalDataFollows(int(part.litN))
		}
		if _, err := io.CopyN(c.bw, part.lit, part.litN); err != nil {
			return c.broken(&imap.Error{Kind: imap.ErrIO, Err: err})
		}
	}
	if err := c.flush(); err != nil {
		return c.broken(&imap.Error{Kind: imap.ErrIO, Err: err})
	}
	return nil
}

// awaitCompletion reads frames until the tagged completion for tag.
func (c *Conn) awaitCompletion(tag string, res *result, collect func(u *imap.Untagged) bool) (*result, error) {
	for {
		resp, err := c.readResponse()
		if err != nil {
			return res, err
		}
		switch resp.Type {
		case imapwire.FrameCont:
			return res, c.broken(&imap.Error{Kind: imap.ErrUnexpectedCont})
		case imapwire.FrameUntagged:
			c.handleUntagged(resp.Untagged, res, collect)
		case imapwire.FrameTagged:
			if resp.Tag != tag {
				return res, c.broken(&imap.Error{Kind: imap.ErrProtocolParse,
					Err: fmt.Errorf("completion tag %q, want %q", resp.Tag, tag)})
			}
			res.code, res.text = resp.Code, resp.Text
			return c.completionError(resp, res)
		}
	}
}

// completionError folds a tagged completion into the session state
// and the command's error value. NO leaves the connection usable;
// BAD breaks it.
func (c *Conn) completionError(resp *imapwire.Response, res *result) (*result, error) {
	c.applyCode(resp.Code)
	if c.sawBye {
		// BYE followed by the tagged reply: the server is gone.
		c.netConn.Close()
		c.state = StateClosed
	}
	switch resp.Cond {
	case imap.CondOK:
		return res, nil
	case imap.CondNo:
		return res, &imap.Error{Kind: imap.ErrNoResponse, Code: resp.Code, Text: resp.Text}
	default:
		err := &imap.Error{Kind: imap.ErrBadResponse, Code: resp.Code, Text: resp.Text}
		c.broken(err)
		return res, err
	}
}

// handleUntagged folds an untagged response into connection state.
// Responses not consumed by collect accumulate on res; responses
// outside any window (res == nil) go to the push handler.
func (c *Conn) handleUntagged(u *imap.Untagged, res *result, collect func(u *imap.Untagged) bool) {
	switch u.Type {
	case imap.UntaggedCapability:
		c.caps = imap.NewCapSet(u.Caps)
	case imap.UntaggedEnabled:
		for _, cap := range u.Caps {
			c.enabled[imap.CanonicalCapability(cap)] = true
		}
	case imap.UntaggedBye:
		c.sawBye = true
		c.state = StateLogout
	case imap.UntaggedState:
		c.applyCode(u.Code)
	case imap.UntaggedFlags:
		if mbox := c.mailboxInProgress(); mbox != nil {
			mbox.Flags = u.Flags
		}
	case imap.UntaggedExists:
		if mbox := c.mailboxInProgress(); mbox != nil {
			mbox.NumMessages = u.Num
		}
	case imap.UntaggedRecent:
		if mbox := c.mailboxInProgress(); mbox != nil {
			mbox.NumRecent = u.Num
		}
	case imap.UntaggedExpunge:
		if c.selected != nil && c.selected.NumMessages > 0 {
			c.selected.NumMessages--
		}
	}

	if collect != nil && collect(u) {
		return
	}
	if res != nil {
		res.untagged = append(res.untagged, u)
		return
	}
	if c.push != nil {
		c.push(u)
	}
}

// mailboxInProgress is the record mailbox-state responses apply to:
// the pending record while a SELECT or EXAMINE is being answered,
// the live one otherwise.
func (c *Conn) mailboxInProgress() *imap.SelectedMailbox {
	if c.pendingSelected != nil {
		return c.pendingSelected
	}
	return c.selected
}

// applyCode folds a response code into connection state.
func (c *Conn) applyCode(code imap.RespCode) {
	switch code.Name {
	case imap.CodeCapability:
		c.caps = imap.NewCapSet(code.Caps)
	case imap.CodeUIDValidity:
		if mbox := c.mailboxInProgress(); mbox != nil {
			mbox.UIDValidity = code.UIDValidity
		}
	case imap.CodeUIDNext:
		if mbox := c.mailboxInProgress(); mbox != nil {
			mbox.UIDNext = code.Num
		}
	case imap.CodeUnseen:
		if mbox := c.mailboxInProgress(); mbox != nil {
			mbox.FirstUnseen = code.Num
		}
	case imap.CodePermanentFlags:
		if mbox := c.mailboxInProgress(); mbox != nil {
			mbox.PermanentFlags = code.Flags
		}
	case imap.CodeHighestModSeq:
		if mbox := c.mailboxInProgress(); mbox != nil {
			mbox.HighestModSeq = code.ModSeq
		}
	case imap.CodeNoModSeq:
		if mbox := c.mailboxInProgress(); mbox != nil {
			mbox.HighestModSeq = 0
		}
	case imap.CodeClosed:
		c.selected = nil
		if c.state == StateSelected {
			c.state = StateAuthenticated
		}
	}
}

// drainStream finishes an abandoned FETCH stream so the connection
// is positioned between frames before the next command.
func (c *Conn) drainStream() error {
	if c.stream == nil {
		return nil
	}
	stream := c.stream
	if err := stream.Close(); err != nil {
		if ierr, ok := err.(*imap.Error); ok && ierr.Terminal() {
			return err
		}
	}
	return nil
}

func (c *Conn) logCmd(b *cmdBuilder, start time.Time, err error) {
	msg := logMsg{
		What:     b.name,
		When:     start,
		Duration: time.Since(start),
		Tag:      b.tag,
		Err:      err,
	}
	c.Logf("%s", msg)
}

// Compress negotiates COMPRESS=DEFLATE (RFC 4978) and rewires both
// directions through deflate streams, starting immediately after
// the OK completion.
func (c *Conn) Compress() error {
	if err := c.checkState(StateAuthenticated); err != nil {
		return err
	}
	if c.compressing {
		return c.stateError("DEFLATE active")
	}
	b := c.newCmd("COMPRESS")
	b.sp()
	b.atom("DEFLATE")
	b.end()
	if _, err := c.roundTrip(b, nil); err != nil {
		return err
	}
	c.compressing = true
	r := flate.NewReader(c.netConn)
	w, _ := flate.NewWriter(c.netConn, 1)
	c.compressFlush = w.Flush
	c.initBufio(r, w)
	return nil
}
