package imapclient

import (
	"bytes"
	"io"
	"sync"
	"time"
)

const debugLiteralWrite = 256 // number of bytes of a literal to keep

// debugWriter writes a copy of an IMAP session.
// It skips over long literals.
//
// There is no buffering in debugWriter because the client batches
// writes to it using the same bufio it uses to batch network
// communication.
type debugWriter struct {
	logf func(format string, v ...interface{}) // used to report failed writing

	mu         sync.Mutex
	writer     io.Writer
	client     *debugWriterDirectional
	server     *debugWriterDirectional
	lastPrefix string
}

func newDebugWriter(logf func(format string, v ...interface{}), writer io.Writer) *debugWriter {
	w := &debugWriter{
		logf:   logf,
		writer: writer,
	}
	w.client = &debugWriterDirectional{
		w:      w,
		prefix: "C: ",
	}
	w.server = &debugWriterDirectional{
		w:      w,
		prefix: "S: ",
	}
	return w
}

type debugWriterDirectional struct {
	w       *debugWriter
	prefix  string
	litHead int
	litSkip int
}

// literalDataFollows announces that the next n bytes written are an
// opaque literal; only the head and tail of large payloads are kept.
func (w *debugWriterDirectional) literalDataFollows(n int) {
	w.w.mu.Lock()
	defer w.w.mu.Unlock()

	if n < debugLiteralWrite {
		return // write the whole literal
	}
	w.litHead = debugLiteralWrite / 2
	litTail := debugLiteralWrite / 2
	w.litSkip = n - w.litHead - litTail
}

func (w *debugWriterDirectional) Write(p []byte) (int, error) {
	w.w.mu.Lock()
	defer w.w.mu.Unlock()

	n := len(p)

	if w.litHead > 0 {
		head := p
		if len(head) > w.litHead {
			head = head[:w.litHead]
		}
		if !w.writeWithPrefix(head) {
			return n, nil
		}
		w.litHead -= len(head)
		p = p[len(head):]
		if w.litHead == 0 {
			w.write([]byte("\n"))
			w.writePrefix()
			w.write([]byte("... skipping literal bytes ...\n"))
			w.w.lastPrefix = ""
		}
	}
	if w.litSkip > 0 {
		if len(p) < w.litSkip {
			w.litSkip -= len(p)
			return n, nil
		}
		p = p[w.litSkip:]
		w.litSkip = 0
	}

	w.writeWithPrefix(p)
	return n, nil
}

func (w *debugWriterDirectional) writeWithPrefix(p []byte) bool {
	if len(p) == 0 {
		return true
	}
	if w.w.lastPrefix != w.prefix {
		if !w.writePrefix() {
			return false
		}
	}
	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		if i == -1 {
			break
		}
		if !w.write(p[:i+1]) {
			return false
		}
		p = p[i+1:]
		if len(p) == 0 {
			w.w.lastPrefix = "" // whoever comes next should write a prefix
			break
		}
		if !w.writePrefix() {
			return false
		}
	}
	return w.write(p)
}

func (w *debugWriterDirectional) write(p []byte) bool {
	if len(p) == 0 {
		return true
	}
	if _, err := w.w.writer.Write(p); err != nil {
		w.w.logf("debugWriter failed: %v", err)
		return false
	}
	return true
}

func (w *debugWriterDirectional) writePrefix() bool {
	w.w.lastPrefix = w.prefix
	b := make([]byte, 0, 32)
	b = time.Now().AppendFormat(b, "15:04:05.000 ")
	b = append(b, w.prefix...)
	if _, err := w.w.writer.Write(b); err != nil {
		w.w.logf("debugWriter failed: %v", err)
		return false
	}
	return true
}
