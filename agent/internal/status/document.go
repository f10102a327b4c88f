package status

import (
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// Sentinel errors wrapped by FieldError.
var (
	ErrFieldMissing = errors.New("field missing")
	ErrTypeMismatch = errors.New("type mismatch")
)

// FieldError describes a failed lookup.
type FieldError struct {
	// Path is the dotted path up to and including the segment that failed.
	Path string

	// Want and Got are set for type mismatches.
	Want string
	Got  string

	// Err is ErrFieldMissing or ErrTypeMismatch.
	Err error
}

func (e *FieldError) Error() string {
	if errors.Is(e.Err, ErrTypeMismatch) {
		return fmt.Sprintf("status: %s: %v: want %s, got %s", e.Path, e.Err, e.Want, e.Got)
	}
	return fmt.Sprintf("status: %s: %v", e.Path, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// Document is a serverStatus reply. The zero value is an empty document.
type Document struct {
	raw bson.Raw
}

// New wraps a raw BSON document.
func New(raw bson.Raw) Document {
	return Document{raw: raw}
}

// FromExtJSON parses a MongoDB Extended JSON document (relaxed or canonical).
func FromExtJSON(data []byte) (Document, error) {
	var d bson.D
	if err := bson.UnmarshalExtJSON(data, false, &d); err != nil {
		return Document{}, fmt.Errorf("status: parse extended json: %w", err)
	}
	raw, err := bson.Marshal(d)
	if err != nil {
		return Document{}, fmt.Errorf("status: marshal bson: %w", err)
	}
	return Document{raw: raw}, nil
}

// Raw returns the underlying BSON bytes.
func (d Document) Raw() bson.Raw {
	return d.raw
}

// Document returns the embedded document at path.
func (d Document) Document(path ...string) (Document, error) {
	v, err := d.lookup(path)
	if err != nil {
		return Document{}, err
	}
	sub, ok := v.DocumentOK()
	if !ok {
		return Document{}, mismatch(path, "embedded document", v)
	}
	return Document{raw: sub}, nil
}

// Int returns the integer at path. Both int32 and int64 nodes are accepted;
// doubles are not, so a counter that changed type is reported rather than
// silently truncated.
func (d Document) Int(path ...string) (int64, error) {
	v, err := d.lookup(path)
	if err != nil {
		return 0, err
	}
	if n, ok := v.Int32OK(); ok {
		return int64(n), nil
	}
	if n, ok := v.Int64OK(); ok {
		return n, nil
	}
	return 0, mismatch(path, "integer", v)
}

// Float returns the number at path as a float64. Integer nodes are widened.
func (d Document) Float(path ...string) (float64, error) {
	v, err := d.lookup(path)
	if err != nil {
		return 0, err
	}
	if f, ok := v.DoubleOK(); ok {
		return f, nil
	}
	if n, ok := v.Int32OK(); ok {
		return float64(n), nil
	}
	if n, ok := v.Int64OK(); ok {
		return float64(n), nil
	}
	return 0, mismatch(path, "number", v)
}

// lookup walks path one segment at a time so the error names the exact
// segment that failed.
func (d Document) lookup(path []string) (bson.RawValue, error) {
	if len(path) == 0 {
		return bson.RawValue{}, &FieldError{Path: "", Err: ErrFieldMissing}
	}

	cur := d.raw
	for i, key := range path {
		v, err := cur.LookupErr(key)
		if err != nil {
			return bson.RawValue{}, &FieldError{Path: join(path[:i+1]), Err: ErrFieldMissing}
		}
		if i == len(path)-1 {
			return v, nil
		}
		sub, ok := v.DocumentOK()
		if !ok {
			return bson.RawValue{}, mismatch(path[:i+1], "embedded document", v)
		}
		cur = sub
	}
	// unreachable: the loop returns on the last segment
	return bson.RawValue{}, &FieldError{Path: join(path), Err: ErrFieldMissing}
}

func mismatch(path []string, want string, v bson.RawValue) *FieldError {
	return &FieldError{
		Path: join(path),
		Want: want,
		Got:  v.Type.String(),
		Err:  ErrTypeMismatch,
	}
}

func join(path []string) string {
	return strings.Join(path, ".")
}
