package model

import "strings"

// Stream is the output sink a Summary interpolation or child-provider
// renderer writes into. It tracks the state shared by every write call —
// pointer width (for address formatting), the running output length (so
// callers can enforce a size cap), and the current recursion level (so
// nested Expand-of-Expand summaries can refuse to recurse past the
// dispatch engine's depth limit).
type Stream interface {
	WriteKeyword(s string)
	WriteString(s string)
	WriteNumber(s string)
	WriteComment(s string)
	WriteValue(s string)
	WritePlain(s string)

	Len() int
	PointerWidth() int
	RecursionLevel() int
	EnterRecursion() (ok bool)
	ExitRecursion()

	String() string
}

// markupKind is one of the five sentinel-tagged run kinds.
type markupKind byte

const (
	markupKeyword markupKind = 'K'
	markupString  markupKind = 'S'
	markupNumber  markupKind = 'N'
	markupComment markupKind = 'C'
	markupValue   markupKind = 'V'
)

const (
	sentinelOpen  = '\xFE'
	sentinelClose = "\xFEE"
)

type streamBase struct {
	b             strings.Builder
	pointerWidth  int
	recursion     int
	maxRecursion  int
}

func newStreamBase(pointerWidth, maxRecursion int) streamBase {
	return streamBase{pointerWidth: pointerWidth, maxRecursion: maxRecursion}
}

func (s *streamBase) Len() int            { return s.b.Len() }
func (s *streamBase) PointerWidth() int    { return s.pointerWidth }
func (s *streamBase) RecursionLevel() int  { return s.recursion }
func (s *streamBase) String() string       { return s.b.String() }

// EnterRecursion increments the recursion level and reports whether doing
// so stayed within maxRecursion; callers that get false back must not
// proceed and should ExitRecursion to undo the increment.
func (s *streamBase) EnterRecursion() bool {
	s.recursion++
	return s.maxRecursion <= 0 || s.recursion <= s.maxRecursion
}

func (s *streamBase) ExitRecursion() {
	if s.recursion > 0 {
		s.recursion--
	}
}

// PlainStream collapses all markup to bare text, used when the host
// surface has no use for run classification (e.g. logging, MCP tool
// responses).
type PlainStream struct {
	streamBase
}

func NewPlainStream(pointerWidth, maxRecursion int) *PlainStream {
	return &PlainStream{streamBase: newStreamBase(pointerWidth, maxRecursion)}
}

func (s *PlainStream) WriteKeyword(str string) { s.b.WriteString(str) }
func (s *PlainStream) WriteString(str string)  { s.b.WriteString(str) }
func (s *PlainStream) WriteNumber(str string)  { s.b.WriteString(str) }
func (s *PlainStream) WriteComment(str string) { s.b.WriteString(str) }
func (s *PlainStream) WriteValue(str string)   { s.b.WriteString(str) }
func (s *PlainStream) WritePlain(str string)   { s.b.WriteString(str) }

// MarkupStream wraps classified runs in `\xFE<kind>...\xFEE` sentinel
// spans so a host IDE's variables pane can re-apply syntax highlighting
// without re-lexing the rendered summary string.
type MarkupStream struct {
	streamBase
}

func NewMarkupStream(pointerWidth, maxRecursion int) *MarkupStream {
	return &MarkupStream{streamBase: newStreamBase(pointerWidth, maxRecursion)}
}

func (s *MarkupStream) writeRun(kind markupKind, str string) {
	s.b.WriteByte(sentinelOpen)
	s.b.WriteByte(byte(kind))
	s.b.WriteString(str)
	s.b.WriteString(sentinelClose)
}

func (s *MarkupStream) WriteKeyword(str string) { s.writeRun(markupKeyword, str) }
func (s *MarkupStream) WriteString(str string)  { s.writeRun(markupString, str) }
func (s *MarkupStream) WriteNumber(str string)  { s.writeRun(markupNumber, str) }
func (s *MarkupStream) WriteComment(str string) { s.writeRun(markupComment, str) }
func (s *MarkupStream) WriteValue(str string)   { s.writeRun(markupValue, str) }
func (s *MarkupStream) WritePlain(str string)   { s.b.WriteString(str) }
