package logtail

import (
	"bytes"
	"io"

	"github.com/muesli/termenv"
)

// MinHeaderLen is the shortest line that can carry a date and device header.
const MinHeaderLen = 16

// Spans holds the three space offsets that split a syslog line into
// header, process, level and message.
type Spans struct {
	line   []byte
	spaces [3]int
}

// Split locates the first three spaces at or after MinHeaderLen. It reports
// false when the line is too short or the header is malformed.
func Split(line []byte) (Spans, bool) {
	if len(line) < MinHeaderLen {
		return Spans{}, false
	}
	s := Spans{line: line}
	found := 0
	for i := MinHeaderLen; i < len(line) && found < len(s.spaces); i++ {
		if line[i] == ' ' {
			s.spaces[found] = i
			found++
		}
	}
	if found < len(s.spaces) {
		return Spans{}, false
	}
	return s, true
}

// Offsets returns the three space offsets.
func (s Spans) Offsets() [3]int {
	return s.spaces
}

// Header is the date and device name.
func (s Spans) Header() []byte {
	return s.line[:s.spaces[0]]
}

// Process is the process name including its leading space and any
// bracketed pid suffix.
func (s Spans) Process() []byte {
	return s.line[s.spaces[0]:s.spaces[1]]
}

// Bracket returns the offset of the '[' that opens a pid suffix within the
// process span. The suffix must also close the span with ']'.
func (s Spans) Bracket() (int, bool) {
	start, end := s.spaces[0], s.spaces[1]
	if s.line[end-1] != ']' {
		return 0, false
	}
	i := bytes.IndexByte(s.line[start:end], '[')
	if i < 0 {
		return 0, false
	}
	return start + i, true
}

// Level is the severity token, e.g. " <Error>:".
func (s Spans) Level() []byte {
	return s.line[s.spaces[1]:s.spaces[2]]
}

// Message is everything after the level token, including the leading space
// and any terminator.
func (s Spans) Message() []byte {
	return s.line[s.spaces[2]:]
}

// Level names a recognized syslog severity.
type Level struct {
	Name  string
	token []byte
	color termenv.ANSIColor
}

var levels = []Level{
	{Name: "Debug", token: []byte(" <Debug>:"), color: termenv.ANSIMagenta},
	{Name: "Warning", token: []byte(" <Warning>:"), color: termenv.ANSIYellow},
	{Name: "Error", token: []byte(" <Error>:"), color: termenv.ANSIRed},
	{Name: "Notice", token: []byte(" <Notice>:"), color: termenv.ANSIGreen},
}

// LookupLevel matches token exactly against the known severities.
func LookupLevel(token []byte) (Level, bool) {
	if len(token) <= 4 {
		return Level{}, false
	}
	for _, lvl := range levels {
		if bytes.Equal(token, lvl.token) {
			return lvl, true
		}
	}
	return Level{}, false
}

// Palette holds the SGR sequences used to render each span.
type Palette struct {
	Neutral    string
	Reset      string
	Accent     string
	AccentDark string
	normal     map[termenv.ANSIColor]string
	dark       map[termenv.ANSIColor]string
}

// DefaultPalette mirrors the classic device console colors.
func DefaultPalette() Palette {
	p := Palette{
		Neutral:    sgr(termenv.ResetSeq, termenv.ANSIWhite.Sequence(false)),
		Reset:      termenv.CSI + "m",
		Accent:     sgr(termenv.ResetSeq, termenv.ANSICyan.Sequence(false)),
		AccentDark: sgr(termenv.FaintSeq, termenv.ANSICyan.Sequence(false)),
		normal:     make(map[termenv.ANSIColor]string, len(levels)),
		dark:       make(map[termenv.ANSIColor]string, len(levels)),
	}
	for _, lvl := range levels {
		p.normal[lvl.color] = sgr(termenv.ResetSeq, lvl.color.Sequence(false))
		p.dark[lvl.color] = sgr(termenv.FaintSeq, lvl.color.Sequence(false))
	}
	return p
}

func sgr(attr, color string) string {
	return termenv.CSI + attr + ";" + color + "m"
}

// Normal returns the normal tone for a level.
func (p Palette) Normal(lvl Level) string {
	return p.normal[lvl.color]
}

// Dark returns the dim tone for a level.
func (p Palette) Dark(lvl Level) string {
	return p.dark[lvl.color]
}

// Append renders line into dst and returns the extended slice. Lines that
// cannot be split are appended unchanged.
func (p Palette) Append(dst, line []byte) []byte {
	s, ok := Split(line)
	if !ok {
		return append(dst, line...)
	}

	dst = append(dst, p.Neutral...)
	dst = append(dst, s.Header()...)

	dst = append(dst, p.Accent...)
	if pos, ok := s.Bracket(); ok {
		dst = append(dst, line[s.spaces[0]:pos]...)
		dst = append(dst, p.AccentDark...)
		dst = append(dst, line[pos:s.spaces[1]]...)
	} else {
		dst = append(dst, s.Process()...)
	}

	token := s.Level()
	if lvl, ok := LookupLevel(token); ok {
		n := len(token)
		dst = append(dst, p.Dark(lvl)...)
		dst = append(dst, token[:2]...)
		dst = append(dst, p.Normal(lvl)...)
		dst = append(dst, token[2:n-2]...)
		dst = append(dst, p.Dark(lvl)...)
		dst = append(dst, token[n-2])
		dst = append(dst, p.Neutral...)
		dst = append(dst, token[n-1])
	} else {
		dst = append(dst, p.Reset...)
		dst = append(dst, token...)
	}

	dst = append(dst, p.Reset...)
	return append(dst, s.Message()...)
}

// Colorizer writes rendered lines to an output sink.
type Colorizer struct {
	w       io.Writer
	plain   bool
	palette Palette
	scratch []byte
}

// NewColorizer returns a Colorizer writing to w. When plain is set lines are
// written without styling.
func NewColorizer(w io.Writer, plain bool) *Colorizer {
	return &Colorizer{
		w:       w,
		plain:   plain,
		palette: DefaultPalette(),
		scratch: make([]byte, 0, DefaultCapacity*2),
	}
}

// Plain reports whether styling is disabled.
func (c *Colorizer) Plain() bool {
	return c.plain
}

// WriteLine renders line and writes it in a single call.
func (c *Colorizer) WriteLine(line []byte) error {
	if c.plain {
		_, err := c.w.Write(line)
		return err
	}
	c.scratch = c.palette.Append(c.scratch[:0], line)
	_, err := c.w.Write(c.scratch)
	return err
}

// ShouldColor decides whether output written to w supports ANSI colors.
func ShouldColor(w io.Writer) bool {
	return termenv.NewOutput(w).EnvColorProfile() != termenv.Ascii
}
