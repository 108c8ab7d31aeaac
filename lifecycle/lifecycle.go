// Package lifecycle tracks the ownership chain between long-lived GPU objects.
//
// A Stack releases objects in the reverse of the order they were pushed. An Owner
// counts the objects that borrow it and refuses to be released while any remain.
package lifecycle

import (
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrStillBorrowed is returned when an Owner is released while borrowed.
var ErrStillBorrowed = errors.New("object is still borrowed")

type entry struct {
	name  string
	close func() error
}

// Stack is a LIFO of release functions. The zero value is ready to use.
type Stack struct {
	entries []entry
	pushed  []string
	closed  []string
}

func (s *Stack) Push(name string, close func() error) {
	s.entries = append(s.entries, entry{name: name, close: close})
	s.pushed = append(s.pushed, name)
}

func (s *Stack) Len() int {
	return len(s.entries)
}

// Close releases every entry, newest first. It keeps going after a failure and
// returns the combined errors. A second Close is a no-op.
func (s *Stack) Close() error {
	var err error
	for len(s.entries) > 0 {
		last := s.entries[len(s.entries)-1]
		s.entries = s.entries[:len(s.entries)-1]

		if closeErr := last.close(); closeErr != nil {
			err = errors.CombineErrors(err, errors.Wrapf(closeErr, "close %s", last.name))
		}
		s.closed = append(s.closed, last.name)
	}
	return err
}

// Pushed returns the names in the order they were pushed.
func (s *Stack) Pushed() []string {
	return append([]string(nil), s.pushed...)
}

// Closed returns the names in the order they were released.
func (s *Stack) Closed() []string {
	return append([]string(nil), s.closed...)
}

// Owner is embedded by an object that others hold a non-owning reference to.
type Owner struct {
	name      string
	borrowers map[string]int
}

func NewOwner(name string) *Owner {
	return &Owner{name: name, borrowers: make(map[string]int)}
}

func (o *Owner) Name() string {
	return o.name
}

// Borrow records that by depends on o. The returned func drops the reference and
// may be called more than once.
func (o *Owner) Borrow(by string) (release func()) {
	o.borrowers[by]++
	released := false
	return func() {
		if released {
			return
		}
		released = true
		o.borrowers[by]--
		if o.borrowers[by] == 0 {
			delete(o.borrowers, by)
		}
	}
}

func (o *Owner) Borrowed() bool {
	return len(o.borrowers) > 0
}

// CheckReleasable fails with ErrStillBorrowed naming the live borrowers.
func (o *Owner) CheckReleasable() error {
	if !o.Borrowed() {
		return nil
	}

	names := make([]string, 0, len(o.borrowers))
	for name := range o.borrowers {
		names = append(names, name)
	}
	sort.Strings(names)

	return errors.Wrapf(ErrStillBorrowed, "%s is borrowed by %s", o.name, strings.Join(names, ", "))
}
