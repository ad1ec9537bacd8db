package push

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"
)

// frame is one dispatched server-sent event.
type frame struct {
	event string
	data  string
	retry time.Duration
}

// parser reads text/event-stream framing.
type parser struct {
	scanner *bufio.Scanner
}

func newParser(r io.Reader) *parser {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	return &parser{scanner: sc}
}

// next returns the next dispatched frame. It returns io.EOF when the
// stream ends cleanly.
func (p *parser) next() (frame, error) {
	var (
		f       frame
		data    []string
		pending bool
	)
	for p.scanner.Scan() {
		line := p.scanner.Text()
		if line == "" {
			if !pending {
				continue
			}
			f.data = strings.Join(data, "\n")
			if f.event == "" {
				f.event = "message"
			}
			return f, nil
		}
		if strings.HasPrefix(line, ":") {
			continue // comment
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			f.event = value
			pending = true
		case "data":
			data = append(data, value)
			pending = true
		case "retry":
			if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
				f.retry = time.Duration(ms) * time.Millisecond
				pending = true
			}
		}
	}
	if err := p.scanner.Err(); err != nil {
		return frame{}, err
	}
	return frame{}, io.EOF
}
