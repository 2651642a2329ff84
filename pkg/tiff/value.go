package tiff

import (
	"time"
	"unicode/utf16"

	"github.com/samcharles93/dngpack/pkg/dngerr"
)

// Value is one typed tag payload. The set of implementations is closed;
// Encode handles every one of them.
type Value interface {
	Code() uint16
	Type() Type
	Count() uint32
	// Size is the serialized payload size in bytes.
	Size() uint32

	sealed()
}

type tag struct {
	code uint16
	typ  Type
}

func (t tag) Code() uint16 { return t.code }
func (t tag) Type() Type   { return t.typ }
func (tag) sealed()        {}

// Bytes is a BYTE, SBYTE, ASCII or UNDEFINED payload written verbatim. It
// also carries opaque blobs such as ICC profiles, XMP packets and private
// maker data.
type Bytes struct {
	tag
	data []byte
}

// NewBytes returns a BYTE value.
func NewBytes(code uint16, data ...byte) *Bytes {
	return &Bytes{tag{code, TypeByte}, data}
}

// NewSBytes returns an SBYTE value.
func NewSBytes(code uint16, vals ...int8) *Bytes {
	data := make([]byte, len(vals))
	for i, v := range vals {
		data[i] = byte(v)
	}
	return &Bytes{tag{code, TypeSByte}, data}
}

// NewUndefined returns an UNDEFINED value.
func NewUndefined(code uint16, data []byte) *Bytes {
	return &Bytes{tag{code, TypeUndefined}, data}
}

func (v *Bytes) Count() uint32 { return uint32(len(v.data)) }
func (v *Bytes) Size() uint32  { return uint32(len(v.data)) }
func (v *Bytes) Data() []byte  { return v.data }

// Shorts is a SHORT or SSHORT array.
type Shorts struct {
	tag
	vals []uint16
}

func NewShorts(code uint16, vals ...uint16) *Shorts {
	return &Shorts{tag{code, TypeShort}, vals}
}

func NewSShorts(code uint16, vals ...int16) *Shorts {
	raw := make([]uint16, len(vals))
	for i, v := range vals {
		raw[i] = uint16(v)
	}
	return &Shorts{tag{code, TypeSShort}, raw}
}

func (v *Shorts) Count() uint32    { return uint32(len(v.vals)) }
func (v *Shorts) Size() uint32     { return uint32(len(v.vals)) * 2 }
func (v *Shorts) Values() []uint16 { return v.vals }

// Longs is a LONG, SLONG or IFD array.
type Longs struct {
	tag
	vals []uint32
}

func NewLongs(code uint16, vals ...uint32) *Longs {
	return &Longs{tag{code, TypeLong}, vals}
}

func NewSLongs(code uint16, vals ...int32) *Longs {
	raw := make([]uint32, len(vals))
	for i, v := range vals {
		raw[i] = uint32(v)
	}
	return &Longs{tag{code, TypeSLong}, raw}
}

// NewIFDPointers returns an IFD typed value holding directory offsets.
func NewIFDPointers(code uint16, offsets ...uint32) *Longs {
	return &Longs{tag{code, TypeIFD}, offsets}
}

func (v *Longs) Count() uint32    { return uint32(len(v.vals)) }
func (v *Longs) Size() uint32     { return uint32(len(v.vals)) * 4 }
func (v *Longs) Values() []uint32 { return v.vals }

// Rationals is a RATIONAL array.
type Rationals struct {
	tag
	vals []URational
}

func NewRationals(code uint16, vals ...URational) *Rationals {
	return &Rationals{tag{code, TypeRational}, vals}
}

func (v *Rationals) Count() uint32       { return uint32(len(v.vals)) }
func (v *Rationals) Size() uint32        { return uint32(len(v.vals)) * 8 }
func (v *Rationals) Values() []URational { return v.vals }

// SRationals is an SRATIONAL array.
type SRationals struct {
	tag
	vals []SRational
}

func NewSRationals(code uint16, vals ...SRational) *SRationals {
	return &SRationals{tag{code, TypeSRational}, vals}
}

// MatrixDenominator is the fixed denominator used for matrix entries.
const MatrixDenominator = 10000

// NewMatrix flattens rows row-major into an SRATIONAL array with
// MatrixDenominator as the denominator.
func NewMatrix(code uint16, rows [][]float64) *SRationals {
	var vals []SRational
	for _, row := range rows {
		for _, x := range row {
			vals = append(vals, SRationalOf(x, MatrixDenominator))
		}
	}
	return NewSRationals(code, vals...)
}

func (v *SRationals) Count() uint32       { return uint32(len(v.vals)) }
func (v *SRationals) Size() uint32        { return uint32(len(v.vals)) * 8 }
func (v *SRationals) Values() []SRational { return v.vals }

// Floats is a FLOAT array.
type Floats struct {
	tag
	vals []float32
}

func NewFloats(code uint16, vals ...float32) *Floats {
	return &Floats{tag{code, TypeFloat}, vals}
}

func (v *Floats) Count() uint32 { return uint32(len(v.vals)) }
func (v *Floats) Size() uint32  { return uint32(len(v.vals)) * 4 }

// Doubles is a DOUBLE array.
type Doubles struct {
	tag
	vals []float64
}

func NewDoubles(code uint16, vals ...float64) *Doubles {
	return &Doubles{tag{code, TypeDouble}, vals}
}

func (v *Doubles) Count() uint32 { return uint32(len(v.vals)) }
func (v *Doubles) Size() uint32  { return uint32(len(v.vals)) * 8 }

// String is a NUL-terminated string. Text that is not 7-bit clean is
// stored as BYTE (UTF-8) unless ASCII was forced.
type String struct {
	tag
	text string
}

// NewString picks ASCII or BYTE depending on the text.
func NewString(code uint16, text string) *String {
	typ := TypeASCII
	if !isASCII(text) {
		typ = TypeByte
	}
	return &String{tag{code, typ}, text}
}

// NewASCII always stores ASCII, replacing other characters with '?'.
func NewASCII(code uint16, text string) *String {
	if !isASCII(text) {
		b := make([]byte, 0, len(text))
		for _, r := range text {
			if r < 0x80 {
				b = append(b, byte(r))
			} else {
				b = append(b, '?')
			}
		}
		text = string(b)
	}
	return &String{tag{code, TypeASCII}, text}
}

func (v *String) Count() uint32 { return uint32(len(v.text)) + 1 }
func (v *String) Size() uint32  { return uint32(len(v.text)) + 1 }
func (v *String) Text() string  { return v.text }

// DateTimeLayout is the fixed TIFF/Exif date format.
const DateTimeLayout = "2006:01:02 15:04:05"

// NewDateTime stores t as a 20 byte ASCII date. The zero time is written as
// all NUL bytes.
func NewDateTime(code uint16, t time.Time) *Bytes {
	data := make([]byte, 20)
	if !t.IsZero() {
		copy(data, t.Format(DateTimeLayout))
	}
	return &Bytes{tag{code, TypeASCII}, data}
}

// EncodedText is an Exif character-code prefixed comment: "ASCII\0\0\0"
// followed by the text, or "UNICODE\0" followed by UTF-16 code units.
type EncodedText struct {
	tag
	text  string
	utf16 []uint16
}

func NewEncodedText(code uint16, text string) *EncodedText {
	v := &EncodedText{tag: tag{code, TypeUndefined}, text: text}
	if !isASCII(text) {
		v.utf16 = utf16.Encode([]rune(text))
	}
	return v
}

func (v *EncodedText) Count() uint32 {
	if v.utf16 != nil {
		return 8 + uint32(len(v.utf16))*2
	}
	return 8 + uint32(len(v.text))
}

func (v *EncodedText) Size() uint32 { return v.Count() }

// IPTC holds IPTC-NAA records. The type is LONG for compatibility but the
// bytes are never swapped.
type IPTC struct {
	tag
	data []byte
}

func NewIPTC(data []byte) *IPTC {
	return &IPTC{tag{TagIPTC, TypeLong}, data}
}

func (v *IPTC) Count() uint32 { return (uint32(len(v.data)) + 3) >> 2 }
func (v *IPTC) Size() uint32  { return v.Count() * 4 }

// CFAPattern is the Exif CFA pattern: column and row counts as SHORTs
// followed by the colour of every cell, column by column.
type CFAPattern struct {
	tag
	rows, cols int
	pattern    []uint8
}

// NewCFAPattern takes the pattern in row-major order.
func NewCFAPattern(code uint16, rows, cols int, pattern []uint8) (*CFAPattern, error) {
	if rows < 1 || cols < 1 || len(pattern) != rows*cols {
		return nil, dngerr.Programf("tiff: cfa pattern %dx%d with %d cells", rows, cols, len(pattern))
	}
	return &CFAPattern{tag{code, TypeUndefined}, rows, cols, pattern}, nil
}

func (v *CFAPattern) Count() uint32 { return 4 + uint32(v.rows*v.cols) }
func (v *CFAPattern) Size() uint32  { return v.Count() }

// OffsetTable is a LONG array of slots reserved when a directory is laid
// out and filled once the data it points at has been written. Encoding an
// unfilled table is a program error.
type OffsetTable struct {
	tag
	slots  []uint32
	filled bool
}

func NewOffsetTable(code uint16, n int) *OffsetTable {
	return &OffsetTable{tag: tag{code, TypeLong}, slots: make([]uint32, n)}
}

func (v *OffsetTable) Count() uint32 { return uint32(len(v.slots)) }
func (v *OffsetTable) Size() uint32  { return uint32(len(v.slots)) * 4 }

// Fill copies vals into the slots. The length must match exactly.
func (v *OffsetTable) Fill(vals []uint32) error {
	if len(vals) != len(v.slots) {
		return dngerr.Programf("tiff: tag %d has %d slots, got %d values", v.code, len(v.slots), len(vals))
	}
	copy(v.slots, vals)
	v.filled = true
	return nil
}

func (v *OffsetTable) Filled() bool { return v.filled }

// Values returns a copy of the slots.
func (v *OffsetTable) Values() []uint32 {
	return append([]uint32(nil), v.slots...)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
