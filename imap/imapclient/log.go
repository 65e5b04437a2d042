package imapclient

import (
	"fmt"
	"strings"
	"time"
)

type logMsg struct {
	What     string
	When     time.Time
	Duration time.Duration
	Tag      string
	Mailbox  string
	Err      error
	Data     string
}

func (l logMsg) String() string {
	const where = "imapclient"

	buf := new(strings.Builder)
	fmt.Fprintf(buf, `{"where": %q, "what": %q, `, where, l.What)

	if l.When.IsZero() {
		l.When = time.Now()
	}
	buf.WriteString(`"when": "`)
	buf.Write(l.When.AppendFormat(make([]byte, 0, 64), time.RFC3339Nano))
	buf.WriteString(`"`)

	if l.Duration != 0 {
		fmt.Fprintf(buf, `, "duration": "%s"`, l.Duration)
	}
	if l.Tag != "" {
		fmt.Fprintf(buf, `, "tag": "%s"`, l.Tag)
	}
	if l.Mailbox != "" {
		fmt.Fprintf(buf, `, "mailbox": %q`, l.Mailbox)
	}
	if l.Err != nil {
		fmt.Fprintf(buf, `, "err": %q`, l.Err.Error())
	}
	if l.Data != "" {
		fmt.Fprintf(buf, `, "data": "%s"`, l.Data)
	}
	buf.WriteByte('}')
	return buf.String()
}
