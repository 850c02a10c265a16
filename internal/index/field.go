package index

import (
	"fmt"
	"strings"
)

// Field names one indexed section of an entity record.
type Field uint8

const (
	FieldTitle Field = iota
	FieldKeywords
	FieldBody

	// NumFields is the number of stored fields.
	NumFields = 3

	// FieldAll addresses the concatenation of every field. It is accepted
	// by the statistics accessors but never stored.
	FieldAll Field = 255
)

// Fields lists the stored fields in declaration order.
var Fields = []Field{FieldTitle, FieldKeywords, FieldBody}

func (f Field) String() string {
	switch f {
	case FieldTitle:
		return "title"
	case FieldKeywords:
		return "keywords"
	case FieldBody:
		return "body"
	case FieldAll:
		return "all"
	default:
		return fmt.Sprintf("field(%d)", uint8(f))
	}
}

func (f Field) valid() bool {
	return f < NumFields
}

// Expand returns the stored fields f stands for.
func (f Field) Expand() []Field {
	if f == FieldAll {
		return Fields
	}
	if f.valid() {
		return []Field{f}
	}
	return nil
}

func ParseField(s string) (Field, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "title":
		return FieldTitle, nil
	case "keywords":
		return FieldKeywords, nil
	case "body", "text":
		return FieldBody, nil
	case "all", "":
		return FieldAll, nil
	default:
		return 0, fmt.Errorf("unknown field %q", s)
	}
}

// Lengths holds the token count of each stored field of one document.
type Lengths [NumFields]int

func (l Lengths) Get(f Field) int {
	if f == FieldAll {
		return l.Total()
	}
	if !f.valid() {
		return 0
	}
	return l[f]
}

func (l Lengths) Total() int {
	total := 0
	for _, n := range l {
		total += n
	}
	return total
}
