package sse

import (
	"bytes"
	"io"
)

// WriteData writes data as a single unnamed event.
func WriteData(w io.Writer, data []byte) (int, error) {
	return WriteEvent(w, Event{Data: data})
}

// WriteEvent writes ev in wire form. Embedded newlines in Data are split over
// several data lines so Decoder reassembles the original payload.
func WriteEvent(w io.Writer, ev Event) (int, error) {
	var buf bytes.Buffer
	if ev.ID != "" {
		buf.WriteString("id: " + ev.ID + "\n")
	}
	if ev.Name != "" {
		buf.WriteString("event: " + ev.Name + "\n")
	}
	for _, line := range bytes.Split(ev.Data, []byte("\n")) {
		buf.WriteString("data: ")
		buf.Write(line)
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	return w.Write(buf.Bytes())
}
