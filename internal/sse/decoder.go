// Package sse reads and writes Server-Sent Events as used by the UI message
// stream protocol.
package sse

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Event is one dispatched SSE event. Data holds the "data:" lines joined with
// newlines.
type Event struct {
	Name string
	ID   string
	Data []byte
}

// Decoder yields events from an SSE byte stream. Blocks that carry no data
// lines (comments, keep-alives) are skipped.
type Decoder struct {
	r   *bufio.Reader
	cur Event
	err error
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next advances to the next event with a payload. It returns false at the end
// of input or on a read error.
func (d *Decoder) Next() bool {
	if d.err != nil {
		return false
	}
	var (
		ev      Event
		data    strings.Builder
		hasData bool
	)
	for {
		line, err := d.r.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			d.err = err
			if err == io.EOF && hasData {
				ev.Data = []byte(data.String())
				d.cur = ev
				return true
			}
			return false
		}
		if err == io.EOF {
			d.err = io.EOF
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if hasData {
				ev.Data = []byte(data.String())
				d.cur = ev
				return true
			}
			ev = Event{}
			if d.err != nil {
				return false
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			hasData = true
		case "event":
			ev.Name = value
		case "id":
			ev.ID = value
		}

		if d.err != nil {
			if hasData {
				ev.Data = []byte(data.String())
				d.cur = ev
				return true
			}
			return false
		}
	}
}

func (d *Decoder) Event() Event {
	if d == nil {
		return Event{}
	}
	return d.cur
}

func (d *Decoder) Data() []byte {
	if d == nil {
		return nil
	}
	return d.cur.Data
}

// Err reports the first read error. Reaching the end of input is not an
// error.
func (d *Decoder) Err() error {
	if d == nil || d.err == nil || d.err == io.EOF {
		return nil
	}
	return fmt.Errorf("sse decode: %w", d.err)
}
