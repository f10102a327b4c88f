// Package status is a typed, read-only view over the document returned by
// MongoDB's serverStatus command.
//
// A Document wraps the raw BSON reply. Lookups take a path of nested keys and
// return explicit errors instead of panicking on untrusted input:
//
//   - Document(path...) resolves an embedded document
//   - Int(path...) resolves a BSON int32 or int64
//   - Float(path...) resolves a BSON double, widening int32/int64
//
// Every failure is a *FieldError carrying the dotted path of the segment that
// failed. errors.Is(err, ErrFieldMissing) reports a key that does not exist;
// errors.Is(err, ErrTypeMismatch) reports a node of the wrong BSON type.
package status
