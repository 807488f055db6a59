// Package id implements the dotted hierarchical identifiers used to number
// nested tests ("1", "1.2", "1.2.3").
package id

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnderflow is returned by Up on a single-component identifier.
var ErrUnderflow = errors.New("id: cannot go up from a top-level identifier")

// ID is an immutable, non-empty sequence of integers. The zero value
// behaves like New().
type ID struct {
	parts []int
}

// New returns the first top-level identifier, "1".
func New() ID {
	return ID{parts: []int{1}}
}

// Of builds an identifier from explicit components.
func Of(parts ...int) ID {
	if len(parts) == 0 {
		return New()
	}
	return ID{parts: append([]int(nil), parts...)}
}

// Parse reads a dotted identifier such as "1.3.2".
func Parse(s string) (ID, error) {
	fields := strings.Split(s, ".")
	parts := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil || n < 0 {
			return ID{}, fmt.Errorf("id: invalid identifier %q", s)
		}
		parts = append(parts, n)
	}
	return ID{parts: parts}, nil
}

func (i ID) components() []int {
	if len(i.parts) == 0 {
		return []int{1}
	}
	return i.parts
}

// Down returns a deeper identifier with base appended.
func (i ID) Down(base int) ID {
	c := i.components()
	parts := make([]int, len(c), len(c)+1)
	copy(parts, c)
	return ID{parts: append(parts, base)}
}

// Next increments the last component.
func (i ID) Next() ID {
	return i.Add(1)
}

// Add increments the last component by n.
func (i ID) Add(n int) ID {
	c := i.components()
	parts := append([]int(nil), c...)
	parts[len(parts)-1] += n
	return ID{parts: parts}
}

// Up drops the last component.
func (i ID) Up() (ID, error) {
	c := i.components()
	if len(c) < 2 {
		return ID{}, ErrUnderflow
	}
	return ID{parts: append([]int(nil), c[:len(c)-1]...)}, nil
}

// Len is the depth of the identifier.
func (i ID) Len() int {
	return len(i.components())
}

// Parts returns a copy of the components.
func (i ID) Parts() []int {
	return append([]int(nil), i.components()...)
}

// Last returns the last component.
func (i ID) Last() int {
	c := i.components()
	return c[len(c)-1]
}

func (i ID) String() string {
	c := i.components()
	s := make([]string, len(c))
	for k, n := range c {
		s[k] = strconv.Itoa(n)
	}
	return strings.Join(s, ".")
}

// Compare orders identifiers lexicographically by component.
func (i ID) Compare(other ID) int {
	a, b := i.components(), other.components()
	for k := 0; k < len(a) && k < len(b); k++ {
		switch {
		case a[k] < b[k]:
			return -1
		case a[k] > b[k]:
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

// Equal reports whether both identifiers have the same components.
func (i ID) Equal(other ID) bool {
	return i.Compare(other) == 0
}

// MarshalText renders the dotted form, so identifiers serialize as strings.
func (i ID) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText parses the dotted form.
func (i *ID) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}
