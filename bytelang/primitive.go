package bytelang

import (
	"fmt"
	"math"
	"strconv"

	"golang.org/x/xerrors"
)

// Encoding is how a PrimitiveType's bytes should be interpreted.
type Encoding int

const (
	Unsigned Encoding = iota
	Signed
	Exponent
)

func (e Encoding) String() string {
	switch e {
	case Unsigned:
		return "unsigned"
	case Signed:
		return "signed"
	case Exponent:
		return "exponent"
	default:
		return "?encoding?"
	}
}

func parseEncoding(s string) (Encoding, bool) {
	switch s {
	case "unsigned":
		return Unsigned, true
	case "signed":
		return Signed, true
	case "exponent":
		return Exponent, true
	default:
		return 0, false
	}
}

// PrimitiveType is a fixed-width numeric type with a packing rule. Once
// built by the registry it never changes; all fields are safe to read
// concurrently.
type PrimitiveType struct {
	Name     string
	Size     int
	Encoding Encoding
}

func (p PrimitiveType) String() string {
	return fmt.Sprintf("%s(%d,%s)", p.Name, p.Size, p.Encoding)
}

// IsFloating reports whether values of this type are packed as IEEE floats.
func (p PrimitiveType) IsFloating() bool {
	return p.Encoding == Exponent
}

// packInt encodes an integer value as this primitive's wire bytes,
// little-endian, failing if the value doesn't fit.
func (p PrimitiveType) packInt(v int64) ([]byte, error) {
	if p.Encoding == Exponent {
		return p.packFloat(float64(v))
	}

	buf := make([]byte, p.Size)
	if p.Encoding == Unsigned {
		max := maxUnsigned(p.Size)
		// At size 8, v's int64 representation is just the two's-complement
		// reinterpretation of a uint64 that overflowed int64's positive
		// range during parsing (see statement.go's ParseUint fallback) -
		// its sign bit carries no meaning here, so don't reject on it.
		if p.Size < 8 && v < 0 {
			return nil, fmt.Errorf("value %d out of range for %s (max %d)", v, p, max)
		}
		if uint64(v) > max {
			return nil, fmt.Errorf("value %d out of range for %s (max %d)", v, p, max)
		}
		putUintLE(buf, uint64(v))
		return buf, nil
	}

	lo, hi := signedRange(p.Size)
	if v < lo || v > hi {
		return nil, fmt.Errorf("value %d out of range for %s ([%d, %d])", v, p, lo, hi)
	}
	putUintLE(buf, uint64(v)&maxUnsigned(p.Size))
	return buf, nil
}

// packFloat encodes a float value as this primitive's wire bytes.
func (p PrimitiveType) packFloat(v float64) ([]byte, error) {
	if p.Encoding != Exponent {
		return p.packInt(int64(v))
	}

	buf := make([]byte, p.Size)
	switch p.Size {
	case 4:
		putUintLE(buf, uint64(math.Float32bits(float32(v))))
	case 8:
		putUintLE(buf, math.Float64bits(v))
	default:
		return nil, fmt.Errorf("exponent encoding unsupported at size %d", p.Size)
	}
	return buf, nil
}

// Pack encodes v according to this primitive's encoding, taking the integer
// view for integer primitives and the float view for exponent primitives.
func (p PrimitiveType) Pack(v UniversalArgument) ([]byte, error) {
	if p.IsFloating() {
		f, ok := v.FloatView()
		if !ok {
			return nil, fmt.Errorf("argument has no floating value")
		}
		return p.packFloat(f)
	}
	i, ok := v.IntView()
	if !ok {
		return nil, fmt.Errorf("argument has no integer value")
	}
	return p.packInt(i)
}

// unpackInt decodes this primitive's wire bytes back into a signed/unsigned
// integer view. Used by round-trip tests and debug tooling.
func (p PrimitiveType) unpackInt(b []byte) int64 {
	u := uintLE(b[:p.Size])
	if p.Encoding == Signed {
		return signExtend(u, p.Size)
	}
	return int64(u)
}

// unpackFloat decodes this primitive's wire bytes back into a float64.
func (p PrimitiveType) unpackFloat(b []byte) float64 {
	u := uintLE(b[:p.Size])
	switch p.Size {
	case 4:
		return float64(math.Float32frombits(uint32(u)))
	case 8:
		return math.Float64frombits(u)
	default:
		return 0
	}
}

func maxUnsigned(size int) uint64 {
	if size >= 8 {
		return math.MaxUint64
	}
	return (uint64(1) << (uint(size) * 8)) - 1
}

func signedRange(size int) (int64, int64) {
	bits := uint(size) * 8
	hi := int64((uint64(1) << (bits - 1)) - 1)
	lo := -hi - 1
	return lo, hi
}

func signExtend(u uint64, size int) int64 {
	bits := uint(size) * 8
	if bits == 64 {
		return int64(u)
	}
	signBit := uint64(1) << (bits - 1)
	if u&signBit != 0 {
		u |= ^uint64(0) << bits
	}
	return int64(u)
}

func putUintLE(buf []byte, v uint64) {
	for i := range buf {
		buf[i] = byte(v >> (uint(i) * 8))
	}
}

func uintLE(b []byte) uint64 {
	var v uint64
	for i, c := range b {
		v |= uint64(c) << (uint(i) * 8)
	}
	return v
}

// validSize reports whether size is one of the widths the content layer
// understands for the given encoding.
func validSize(size int, enc Encoding) bool {
	switch enc {
	case Exponent:
		return size == 4 || size == 8
	case Signed, Unsigned:
		return size == 1 || size == 2 || size == 4 || size == 8
	default:
		return false
	}
}

// PrimitiveRegistry loads and indexes the fixed-width numeric types declared
// in a single descriptor file (see SPEC_FULL.md §6.4). It is lazy: nothing
// is read from disk until the first Get/GetBySize call after SetFile.
type PrimitiveRegistry struct {
	path       string
	byName     map[string]PrimitiveType
	bySizeEnc  map[sizeEncKey]PrimitiveType
	loaded     bool
	loadErr    error
}

type sizeEncKey struct {
	size int
	enc  Encoding
}

// NewPrimitiveRegistry returns an empty registry; SetFile must be called
// before Get/GetBySize will resolve anything.
func NewPrimitiveRegistry() *PrimitiveRegistry {
	return &PrimitiveRegistry{}
}

// SetFile points the registry at a descriptor file and clears any cached
// content loaded from a previous file.
func (r *PrimitiveRegistry) SetFile(path string) {
	r.path = path
	r.byName = nil
	r.bySizeEnc = nil
	r.loaded = false
	r.loadErr = nil
}

func (r *PrimitiveRegistry) ensureLoaded() error {
	if r.loaded {
		return r.loadErr
	}
	r.loaded = true

	if r.path == "" {
		r.loadErr = xerrors.New("primitive registry: no descriptor file set")
		return r.loadErr
	}

	lines, err := scanContentLines(r.path)
	if err != nil {
		r.loadErr = xerrors.Errorf("primitive registry: reading %q: %w", r.path, err)
		return r.loadErr
	}

	byName := make(map[string]PrimitiveType, len(lines))
	bySizeEnc := make(map[sizeEncKey]PrimitiveType, len(lines))

	for _, l := range lines {
		fields := splitFields(l.text)
		if len(fields) != 3 {
			r.loadErr = xerrors.Errorf("primitive registry: %s:%d: expected 'name size encoding', got %q", r.path, l.line, l.text)
			return r.loadErr
		}

		name, sizeStr, encStr := fields[0], fields[1], fields[2]
		if name == "" {
			r.loadErr = xerrors.Errorf("primitive registry: %s:%d: empty primitive name", r.path, l.line)
			return r.loadErr
		}
		if _, exists := byName[name]; exists {
			r.loadErr = xerrors.Errorf("primitive registry: %s:%d: duplicate primitive name %q", r.path, l.line, name)
			return r.loadErr
		}

		size, err := strconv.Atoi(sizeStr)
		if err != nil {
			r.loadErr = xerrors.Errorf("primitive registry: %s:%d: invalid size %q: %w", r.path, l.line, sizeStr, err)
			return r.loadErr
		}

		enc, ok := parseEncoding(encStr)
		if !ok {
			r.loadErr = xerrors.Errorf("primitive registry: %s:%d: unknown encoding %q", r.path, l.line, encStr)
			return r.loadErr
		}

		if !validSize(size, enc) {
			r.loadErr = xerrors.Errorf("primitive registry: %s:%d: size %d invalid for encoding %s", r.path, l.line, size, enc)
			return r.loadErr
		}

		key := sizeEncKey{size, enc}
		if existing, exists := bySizeEnc[key]; exists {
			r.loadErr = xerrors.Errorf("primitive registry: %s:%d: (size %d, encoding %s) already used by %q", r.path, l.line, size, enc, existing.Name)
			return r.loadErr
		}

		pt := PrimitiveType{Name: name, Size: size, Encoding: enc}
		byName[name] = pt
		bySizeEnc[key] = pt
	}

	r.byName = byName
	r.bySizeEnc = bySizeEnc
	return nil
}

// Get resolves a primitive by name, loading the descriptor file on first
// use. ok is false both when the file fails to load and when name is
// unknown; callers that need to distinguish should call EnsureLoaded first.
func (r *PrimitiveRegistry) Get(name string) (PrimitiveType, bool) {
	if err := r.ensureLoaded(); err != nil {
		return PrimitiveType{}, false
	}
	pt, ok := r.byName[name]
	return pt, ok
}

// GetBySize resolves the unique primitive with the given (size, encoding)
// pair, used by profiles to size their pointer types.
func (r *PrimitiveRegistry) GetBySize(size int, enc Encoding) (PrimitiveType, bool) {
	if err := r.ensureLoaded(); err != nil {
		return PrimitiveType{}, false
	}
	pt, ok := r.bySizeEnc[sizeEncKey{size, enc}]
	return pt, ok
}

// EnsureLoaded forces the descriptor file to be read now, surfacing any
// load error instead of deferring it to the first failed lookup.
func (r *PrimitiveRegistry) EnsureLoaded() error {
	return r.ensureLoaded()
}
