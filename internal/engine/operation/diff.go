package operation

import (
	"fmt"
	"unicode/utf8"

	"github.com/dshills/docengine/internal/engine/docerr"
)

// DiffKind identifies the sub-operation of an update.
type DiffKind uint8

const (
	// DiffTextInsert inserts text before a rune offset.
	DiffTextInsert DiffKind = iota
	// DiffTextDelete deletes the half-open rune range [Offset, End).
	DiffTextDelete
	// DiffArrayInsert inserts an element before an index.
	DiffArrayInsert
	// DiffArrayDelete removes the element at an index.
	DiffArrayDelete
)

// String returns the diff kind name.
func (k DiffKind) String() string {
	switch k {
	case DiffTextInsert:
		return "text-insert"
	case DiffTextDelete:
		return "text-delete"
	case DiffArrayInsert:
		return "array-insert"
	case DiffArrayDelete:
		return "array-delete"
	default:
		return "unknown"
	}
}

// Diff is the typed sub-operation carried by an update.
//
// For inserts Value holds the inserted text or element. For deletes Value
// holds the pre-image (deleted text or removed element); deletes decoded
// from the wire without a value have no pre-image and cannot be inverted.
type Diff struct {
	Kind   DiffKind
	Offset int
	End    int
	Value  any

	captured bool
}

// TextInsert inserts text before the rune at offset.
func TextInsert(offset int, text string) Diff {
	return Diff{Kind: DiffTextInsert, Offset: offset, End: offset, Value: text, captured: true}
}

// TextDelete deletes [start, end) without a pre-image. Use Capture to
// record the deleted text before applying.
func TextDelete(start, end int) Diff {
	return Diff{Kind: DiffTextDelete, Offset: start, End: end}
}

// TextDeleteOf deletes [start, end) and records the deleted text.
func TextDeleteOf(start, end int, deleted string) Diff {
	return Diff{Kind: DiffTextDelete, Offset: start, End: end, Value: deleted, captured: true}
}

// ArrayInsert inserts value before index.
func ArrayInsert(index int, value any) Diff {
	return Diff{Kind: DiffArrayInsert, Offset: index, End: index, Value: Clone(value), captured: true}
}

// ArrayDelete removes the element at index without a pre-image.
func ArrayDelete(index int) Diff {
	return Diff{Kind: DiffArrayDelete, Offset: index, End: index + 1}
}

// ArrayDeleteOf removes the element at index and records it.
func ArrayDeleteOf(index int, removed any) Diff {
	return Diff{Kind: DiffArrayDelete, Offset: index, End: index + 1, Value: Clone(removed), captured: true}
}

// IsText reports whether the diff applies to strings.
func (d Diff) IsText() bool {
	return d.Kind == DiffTextInsert || d.Kind == DiffTextDelete
}

// IsInsert reports whether the diff inserts content.
func (d Diff) IsInsert() bool {
	return d.Kind == DiffTextInsert || d.Kind == DiffArrayInsert
}

// HasPreimage reports whether the diff carries what it deletes.
func (d Diff) HasPreimage() bool {
	return d.captured
}

// Clone returns a deep copy of the diff.
func (d Diff) Clone() Diff {
	d.Value = Clone(d.Value)
	return d
}

// Capture returns a copy of a delete diff with its pre-image read from
// current. Insert diffs are returned unchanged.
func (d Diff) Capture(current any) (Diff, error) {
	switch d.Kind {
	case DiffTextDelete:
		s, err := asText(current)
		if err != nil {
			return d, err
		}
		runes := []rune(s)
		if err := d.checkRange(len(runes)); err != nil {
			return d, err
		}
		return TextDeleteOf(d.Offset, d.End, string(runes[d.Offset:d.End])), nil
	case DiffArrayDelete:
		arr, err := asArray(current)
		if err != nil {
			return d, err
		}
		if d.Offset < 0 || d.Offset >= len(arr) {
			return d, docerr.Application(nil, "array index %d out of range [0, %d)", d.Offset, len(arr))
		}
		return ArrayDeleteOf(d.Offset, arr[d.Offset]), nil
	default:
		return d, nil
	}
}

// Apply returns the result of applying the diff to value. The input is not
// modified.
func (d Diff) Apply(value any) (any, error) {
	switch d.Kind {
	case DiffTextInsert:
		s, err := asText(value)
		if err != nil {
			return nil, err
		}
		text, ok := d.Value.(string)
		if !ok {
			return nil, docerr.Application(nil, "text insert value is %T, want string", d.Value)
		}
		runes := []rune(s)
		if d.Offset < 0 || d.Offset > len(runes) {
			return nil, docerr.Application(nil, "insert offset %d out of range [0, %d]", d.Offset, len(runes))
		}
		return string(runes[:d.Offset]) + text + string(runes[d.Offset:]), nil

	case DiffTextDelete:
		s, err := asText(value)
		if err != nil {
			return nil, err
		}
		runes := []rune(s)
		if err := d.checkRange(len(runes)); err != nil {
			return nil, err
		}
		return string(runes[:d.Offset]) + string(runes[d.End:]), nil

	case DiffArrayInsert:
		arr, err := asArray(value)
		if err != nil {
			return nil, err
		}
		if d.Offset < 0 || d.Offset > len(arr) {
			return nil, docerr.Application(nil, "insert index %d out of range [0, %d]", d.Offset, len(arr))
		}
		out := make([]any, 0, len(arr)+1)
		out = append(out, arr[:d.Offset]...)
		out = append(out, Clone(d.Value))
		out = append(out, arr[d.Offset:]...)
		return out, nil

	case DiffArrayDelete:
		arr, err := asArray(value)
		if err != nil {
			return nil, err
		}
		if d.Offset < 0 || d.Offset >= len(arr) {
			return nil, docerr.Application(nil, "delete index %d out of range [0, %d)", d.Offset, len(arr))
		}
		out := make([]any, 0, len(arr)-1)
		out = append(out, arr[:d.Offset]...)
		out = append(out, arr[d.Offset+1:]...)
		return out, nil

	default:
		return nil, docerr.InvalidArguments("unknown diff kind %d", d.Kind)
	}
}

// Invert returns the diff that undoes d.
func (d Diff) Invert() (Diff, error) {
	switch d.Kind {
	case DiffTextInsert:
		text, _ := d.Value.(string)
		return TextDeleteOf(d.Offset, d.Offset+utf8.RuneCountInString(text), text), nil
	case DiffTextDelete:
		if !d.captured {
			return Diff{}, ErrNotInvertible
		}
		text, _ := d.Value.(string)
		return TextInsert(d.Offset, text), nil
	case DiffArrayInsert:
		return ArrayDeleteOf(d.Offset, d.Value), nil
	case DiffArrayDelete:
		if !d.captured {
			return Diff{}, ErrNotInvertible
		}
		return ArrayInsert(d.Offset, d.Value), nil
	default:
		return Diff{}, docerr.InvalidArguments("unknown diff kind %d", d.Kind)
	}
}

// String renders the diff for logs.
func (d Diff) String() string {
	switch d.Kind {
	case DiffTextDelete:
		return fmt.Sprintf("%s[%d:%d]", d.Kind, d.Offset, d.End)
	default:
		return fmt.Sprintf("%s@%d", d.Kind, d.Offset)
	}
}

func (d Diff) checkRange(length int) error {
	if d.Offset < 0 || d.End < d.Offset || d.End > length {
		return docerr.Application(nil, "delete range [%d, %d) out of range [0, %d]", d.Offset, d.End, length)
	}
	return nil
}

func asText(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", docerr.Application(nil, "text diff on %T value", v)
	}
	return s, nil
}

func asArray(v any) ([]any, error) {
	switch t := v.(type) {
	case []any:
		return t, nil
	case []string:
		return Clone(t).([]any), nil
	default:
		return nil, docerr.Application(nil, "array diff on %T value", v)
	}
}
