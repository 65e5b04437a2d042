// Package utf7mod implements "Modified UTF-7".
//
// Modified UTF-7 is how IMAP spells non-ASCII mailbox names. It is
// described in RFC 3501 section 5.1.3, based on the original UTF-7
// defined in RFC 2152.
//
// There are several MUST requirements in the spec that we relax for
// decoding. There are no good options when faced with bad UTF-7, so
// we make do as best we can.
package utf7mod

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"unicode/utf16"
	"unicode/utf8"
)

var ErrInvalidUTF7 = errors.New("utf7mod: invalid UTF-7")

// Modified UTF-7 uses a modified base64, described as:
//
//	modified BASE64, with a further modification from
//	[UTF-7] that "," is used instead of "/".
const encodeModB64 = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+,"

var b64 = base64.NewEncoding(encodeModB64).WithPadding(base64.NoPadding)

// AppendDecode appends the decoded UTF-8 form of src to dst.
//
// The shift character '&' opens a base64 run terminated by '-';
// the two-byte sequence "&-" encodes a literal ampersand.
func AppendDecode(dst, src []byte) ([]byte, error) {
	for len(src) > 0 {
		c := src[0]
		src = src[1:]
		if c != '&' {
			dst = append(dst, c)
			continue
		}
		end := bytes.IndexByte(src, '-')
		if end == -1 {
			return nil, ErrInvalidUTF7
		}
		if end == 0 {
			dst = append(dst, '&')
			src = src[1:]
			continue
		}
		var err error
		dst, err = appendShiftRun(dst, src[:end])
		if err != nil {
			return nil, err
		}
		src = src[end+1:]
	}
	return dst, nil
}

// appendShiftRun decodes one base64 run of UTF-16BE code units.
func appendShiftRun(dst, run []byte) ([]byte, error) {
	units := make([]byte, b64.DecodedLen(len(run)))
	n, err := b64.Decode(units, run)
	if err != nil {
		return nil, fmt.Errorf("utf7mod: decode: %v", err)
	}
	units = units[:n]
	if len(units)%2 == 1 {
		return nil, ErrInvalidUTF7
	}
	for len(units) > 0 {
		r := rune(units[0])<<8 | rune(units[1])
		units = units[2:]
		if utf16.IsSurrogate(r) {
			if len(units) < 2 {
				return nil, ErrInvalidUTF7
			}
			r2 := rune(units[0])<<8 | rune(units[1])
			units = units[2:]
			r = utf16.DecodeRune(r, r2)
		}
		var b [4]byte
		dst = append(dst, b[:utf8.EncodeRune(b[:], r)]...)
	}
	return dst, nil
}

// AppendEncode appends the modified UTF-7 form of the UTF-8 src
// to dst.
func AppendEncode(dst, src []byte) ([]byte, error) {
	for len(src) > 0 {
		r, _ := utf8.DecodeRune(src)
		switch {
		case r == '&':
			dst = append(dst, '&', '-')
			src = src[1:]
		case r < utf8.RuneSelf:
			dst = append(dst, byte(r))
			src = src[1:]
		default:
			// A run of non-ASCII encodes as base64 UTF-16BE.
			units := make([]byte, 0, 64)
			for len(src) > 0 {
				r, sz := utf8.DecodeRune(src)
				if r < utf8.RuneSelf {
					break
				}
				src = src[sz:]
				if r1, r2 := utf16.EncodeRune(r); r1 != '\uFFFD' {
					units = append(units, byte(r1>>8), byte(r1))
					r = r2
				}
				units = append(units, byte(r>>8), byte(r))
			}

			n := b64.EncodedLen(len(units))
			dst = append(dst, '&')
			dst = append(dst, make([]byte, n)...)
			b64.Encode(dst[len(dst)-n:], units)
			dst = append(dst, '-')
		}
	}
	return dst, nil
}
