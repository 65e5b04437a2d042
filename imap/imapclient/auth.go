package imapclient

import (
	"encoding/base64"

	"github.com/emersion/go-sasl"
	"spool.ink/imap"
	"spool.ink/imap/imapwire"
)

// Authenticate runs the AUTHENTICATE exchange with the given SASL
// mechanism, e.g. sasl.NewPlainClient("", user, pass) or XOAuth2.
//
// Continuation requests carry base64 challenges; responses are sent
// base64-encoded followed by CRLF.
func (c *Conn) Authenticate(mech sasl.Client) error {
	if err := c.checkState(StateNotAuthenticated); err != nil {
		return err
	}
	if c.state != StateNotAuthenticated {
		return c.stateError("AUTHENTICATE in %s state", c.state)
	}
	mechName, ir, err := mech.Start()
	if err != nil {
		return err
	}
	b := c.newCmd("AUTHENTICATE")
	b.sp()
	b.atom(mechName)
	b.end()

	res := &result{}
	if err := c.writeCommand(b, res, nil); err != nil {
		return err
	}

	first := true
	for {
		resp, err := c.readResponse()
		if err != nil {
			return err
		}
		switch resp.Type {
		case imapwire.FrameCont:
			var out []byte
			if first && ir != nil {
				out = ir
				first = false
			} else {
				first = false
				challenge, err := base64.StdEncoding.DecodeString(resp.Cont)
				if err != nil {
					return c.broken(&imap.Error{Kind: imap.ErrProtocolParse, Err: err})
				}
				out, err = mech.Next(challenge)
				if err != nil {
					// Abort the exchange per RFC 3501 section 6.2.2.
					if werr := c.writeLine("*"); werr != nil {
						return werr
					}
					continue
				}
			}
			if err := c.writeLine(base64.StdEncoding.EncodeToString(out)); err != nil {
				return err
			}
		case imapwire.FrameUntagged:
			c.handleUntagged(resp.Untagged, res, nil)
		case imapwire.FrameTagged:
			if resp.Tag != b.tag {
				return c.broken(&imap.Error{Kind: imap.ErrProtocolParse,
					Err: errBadTag(resp.Tag, b.tag)})
			}
			if _, err := c.completionError(resp, res); err != nil {
				return err
			}
			c.state = StateAuthenticated
			return nil
		}
	}
}

func (c *Conn) writeLine(s string) error {
	c.bwMu.Lock()
	defer c.bwMu.Unlock()
	if _, err := c.bw.WriteString(s + "\r\n"); err != nil {
		return c.broken(&imap.Error{Kind: imap.ErrIO, Err: err})
	}
	if err := c.flush(); err != nil {
		return c.broken(&imap.Error{Kind: imap.ErrIO, Err: err})
	}
	return nil
}

// xoauth2Client is the SASL XOAUTH2 mechanism used by GMail and
// Outlook. Only the initial-response string is constructed; an
// error challenge is answered with an empty line so the server
// reports the failure on the tagged completion.
type xoauth2Client struct {
	user  string
	token string
}

// XOAuth2 builds a SASL client for an OAuth 2.0 access token.
func XOAuth2(user, token string) sasl.Client {
	return &xoauth2Client{user: user, token: token}
}

func (x *xoauth2Client) Start() (string, []byte, error) {
	ir := []byte("user=" + x.user + "\x01auth=Bearer " + x.token + "\x01\x01")
	return "XOAUTH2", ir, nil
}

func (x *xoauth2Client) Next(challenge []byte) ([]byte, error) {
	return []byte{}, nil
}
