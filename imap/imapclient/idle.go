package imapclient

import (
	"spool.ink/imap"
	"spool.ink/imap/imapwire"
)

// Idle enters RFC 2177 IDLE and blocks, delivering untagged
// responses to the push handler as they arrive. It returns after
// IdleDone has been called and the server acknowledged with the
// tagged OK, or with an error if the server ends the session.
func (c *Conn) Idle() error {
	if err := c.checkState(StateAuthenticated); err != nil {
		return err
	}
	if err := c.drainStream(); err != nil {
		return err
	}
	b := c.newCmd("IDLE")
	b.end()

	c.bwMu.Lock()
	_, err := c.bw.Write(b.parts[0].text)
	if err == nil {
		err = c.flush()
	}
	c.bwMu.Unlock()
	if err != nil {
		return c.broken(&imap.Error{Kind: imap.ErrIO, Err: err})
	}

	// Await the continuation that opens the idle window.
	for {
		resp, err := c.readResponse()
		if err != nil {
			return err
		}
		switch resp.Type {
		case imapwire.FrameCont:
			c.idling = true
		case imapwire.FrameUntagged:
			c.handleUntagged(resp.Untagged, nil, nil)
			if resp.Untagged.Type == imap.UntaggedBye {
				// A BYE mid-idle ends the session.
				return c.broken(&imap.Error{Kind: imap.ErrBye,
					Code: resp.Untagged.Code, Text: resp.Untagged.Text})
			}
			continue
		case imapwire.FrameTagged:
			if resp.Tag != b.tag {
				return c.broken(&imap.Error{Kind: imap.ErrProtocolParse,
					Err: errBadTag(resp.Tag, b.tag)})
			}
			wasIdling := c.idling
			c.idling = false
			_, err := c.completionError(resp, &result{})
			if err != nil {
				return err
			}
			if !wasIdling {
				return c.stateError("IDLE completed without continuation")
			}
			return nil
		}
	}
}

// IdleDone asks the server to end the current IDLE window. It is
// the only method that may be called concurrently with a blocked
// Idle; Idle itself returns once the tagged OK arrives.
func (c *Conn) IdleDone() error {
	c.bwMu.Lock()
	defer c.bwMu.Unlock()
	if _, err := c.bw.WriteString("DONE\r\n"); err != nil {
		return c.broken(&imap.Error{Kind: imap.ErrIO, Err: err})
	}
	if err := c.flush(); err != nil {
		return c.broken(&imap.Error{Kind: imap.ErrIO, Err: err})
	}
	return nil
}
