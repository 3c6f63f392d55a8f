package dynamo

import (
	"encoding/base64"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// keyAttr is the partition key of every table.
const keyAttr = "pk"

const escape = "~"

// encodeName maps a column name to an attribute name. Composite models pack
// binary column keys into names, so names that are not printable UTF-8 are
// escaped.
func encodeName(name string) string {
	if name == "" || name == keyAttr || strings.HasPrefix(name, escape) || !printable(name) {
		return escape + base64.RawURLEncoding.EncodeToString([]byte(name))
	}
	return name
}

func printable(s string) bool {
	if !utf8.ValidString(s) {
		return false
	}
	for _, r := range s {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

func decodeName(attr string) (string, error) {
	if !strings.HasPrefix(attr, escape) {
		return attr, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(attr[len(escape):])
	if err != nil {
		return "", fmt.Errorf("dynamo: malformed attribute name %q: %w", attr, err)
	}
	return string(b), nil
}

// exprNames collects #placeholders for one request. DynamoDB rejects unused
// placeholders, so names are only added when referenced.
type exprNames struct {
	refs map[string]string
}

func (e *exprNames) ref(attr string) string {
	if e.refs == nil {
		e.refs = make(map[string]string)
	}
	for ref, a := range e.refs {
		if a == attr {
			return ref
		}
	}
	ref := fmt.Sprintf("#n%d", len(e.refs))
	e.refs[ref] = attr
	return ref
}

// projection lists the key and the given columns.
func (e *exprNames) projection(columns []string) string {
	parts := make([]string, 0, len(columns)+1)
	parts = append(parts, e.ref(keyAttr))
	for _, c := range columns {
		parts = append(parts, e.ref(encodeName(c)))
	}
	return strings.Join(parts, ", ")
}

func (e *exprNames) attributeNames() map[string]string {
	if len(e.refs) == 0 {
		return nil
	}
	return e.refs
}

// KeyAttribute is the partition key attribute holding the row key.
const KeyAttribute = keyAttr

// ColumnName returns the column stored under attribute name attr.
func ColumnName(attr string) (string, error) { return decodeName(attr) }

// AttributeName returns the attribute name a column is stored under.
func AttributeName(column string) string { return encodeName(column) }
