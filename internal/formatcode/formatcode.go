// Package formatcode defines the bit-packed format-spec integer the
// engine exchanges with its host: the low bits select a basic display
// format (decimal, hex, string encodings...), the next few bits carry
// view-suppression flags, and the high bits carry a custom view id.
// Ported verbatim (bit-for-bit) from jb_lldb_format_specs.py so that a
// format code computed here means exactly what the upstream renderer
// meant by it.
package formatcode

// Basic format ids, bits 0-5. The first block mirrors the host
// debugger's own built-in format enumeration (kNumFormats worth of
// slots); the ones below NumHostFormats are LLDB-specific additions
// the natvis format-spec vocabulary needs that the host enum has no
// slot for (no-prefix hex/binary, unquoted/encoded string variants).
const (
	Default FormatSpec = iota
	Boolean
	Binary
	Bytes
	BytesWithASCII
	Char
	CharPrintable
	Complex
	ComplexFloat
	CString
	Decimal
	Enum
	Hex
	HexUppercase
	Float
	Octal
	OSType
	Unicode16
	Unicode32
	Unsigned
	Pointer
	VectorOfChar
	VectorOfFloat
	VectorOfSInt
	VectorOfUInt
	VectorOfSInt8
	VectorOfUInt8
	VectorOfSInt16
	VectorOfUInt16
	VectorOfSInt32
	VectorOfUInt32
	VectorOfSInt64
	VectorOfUInt64
	VectorOfFloat16
	VectorOfFloat32
	VectorOfFloat64
	VectorOfUInt128
	ComplexInteger
	CharArray
	AddressInfo
	HexFloat
	Instruction
	Void

	// NumHostFormats marks one past the last host-native format id;
	// the LLDB-specific extensions below are numbered starting here,
	// matching the Python source's `lldb.kNumFormats + N` scheme.
	NumHostFormats
)

// FormatSpec is a basic display format selector, bits 0-5 of a packed
// format code (eFormatBasicSpecsMask below).
type FormatSpec int

const (
	HexNoPrefix            = FormatSpec(NumHostFormats + 1)
	HexUppercaseNoPrefix   = FormatSpec(NumHostFormats + 2)
	BinaryNoPrefix         = FormatSpec(NumHostFormats + 3)
	CStringNoQuotes        = FormatSpec(NumHostFormats + 4)
	Utf8String             = FormatSpec(NumHostFormats + 5)
	Utf8StringNoQuotes     = FormatSpec(NumHostFormats + 6)
	WideString             = FormatSpec(NumHostFormats + 7)
	WideStringNoQuotes     = FormatSpec(NumHostFormats + 8)
	Utf32String            = FormatSpec(NumHostFormats + 9)
	Utf32StringNoQuotes    = FormatSpec(NumHostFormats + 10)
)

// Flags occupy bits 6-19 of a packed format code; bits 20+ carry a
// custom view spec id (set_custom_view_id/get_custom_view_id below).
const (
	BasicSpecsMask = (1 << 6) - 1
	FlagSpecsMask  = (1<<20 - 1) - BasicSpecsMask

	NoAddress = 1 << 6
	NoDerived = 1 << 7
	NoRawView = 1 << 8
	RawView   = 1 << 9
	AsArray   = 1 << 10
)

// InheritedFlagsMask masks out RawView when a format code is inherited
// by a nested value: a <Type> rule's own RawView request must not leak
// into every child it produces.
const InheritedFlagsMask = ^uint64(RawView)

// Code is a full packed format code: a FormatSpec in the low 6 bits,
// flag bits above it, and an optional custom view id in bits 20+.
type Code uint64

// Basic returns the basic FormatSpec bits of c.
func (c Code) Basic() FormatSpec { return FormatSpec(uint64(c) & BasicSpecsMask) }

// HasFlag reports whether c carries flag (one of NoAddress, NoDerived,
// NoRawView, RawView, AsArray).
func (c Code) HasFlag(flag uint64) bool { return uint64(c)&flag != 0 }

// WithFlag returns c with flag set.
func (c Code) WithFlag(flag uint64) Code { return Code(uint64(c) | flag) }

// CustomViewID extracts the view-spec id packed into bits 20+.
func (c Code) CustomViewID() int { return int(uint64(c) >> 20) }

// WithCustomViewID packs id into bits 20+ of c, preserving the basic
// spec and flag bits.
func WithCustomViewID(c Code, id int) Code {
	return Code(uint64(c) | (uint64(id) << 20))
}

// CharPresentation describes how one of the string/char FormatSpecs
// should decode bytes: element width, the Go encoding name to decode
// with, and any literal
// prefix a rendered string should carry (L"...", U"...").
type CharPresentation struct {
	ElementSize int
	Encoding    string // "" means the platform/locale default
	Prefix      string
}

// StringPresentations maps every quoted and unquoted string FormatSpec
// to its decode parameters.
var StringPresentations = map[FormatSpec]CharPresentation{
	CString:            {ElementSize: 1},
	Utf8String:         {ElementSize: 1, Encoding: "utf-8"},
	WideString:         {ElementSize: 2, Encoding: "utf-16", Prefix: "L"},
	Utf32String:        {ElementSize: 4, Encoding: "utf-32", Prefix: "U"},
	CStringNoQuotes:    {ElementSize: 1},
	Utf8StringNoQuotes: {ElementSize: 1, Encoding: "utf-8"},
	WideStringNoQuotes: {ElementSize: 2, Encoding: "utf-16", Prefix: "L"},
	Utf32StringNoQuotes: {ElementSize: 4, Encoding: "utf-32", Prefix: "U"},
}

// unquote maps a quoted string FormatSpec to its NoQuotes counterpart,
// used when a <StringView> or synthetic getter requests the unquoted
// rendering of an otherwise-quoted format.
var unquote = map[FormatSpec]FormatSpec{
	CString:    CStringNoQuotes,
	Utf8String: Utf8StringNoQuotes,
	WideString: WideStringNoQuotes,
	Utf32String: Utf32StringNoQuotes,
}

// Unquote returns the unquoted variant of spec, or spec unchanged if it
// has none.
func Unquote(spec FormatSpec) FormatSpec {
	if u, ok := unquote[spec]; ok {
		return u
	}
	return spec
}

// IsQuotedString reports whether spec is one of the quoted string
// presentations.
func IsQuotedString(spec FormatSpec) bool {
	_, ok := unquote[spec]
	return ok
}
