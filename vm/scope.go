package vm

// ---------------------------------------------------------------------------
// Scope: the ordered variable environment for one evaluation
// ---------------------------------------------------------------------------
//
// Entries are an ordered sequence; lookup scans backward so the most
// recently pushed binding shadows earlier ones. Block scoping is a saved
// length plus Truncate on exit, which holds on every exit path.

type scopeEntry struct {
	name     string
	value    Dynamic
	constant bool
}

// Scope holds the variables of a single evaluation. It is owned by that
// evaluation and never shared across goroutines.
type Scope struct {
	entries []scopeEntry
}

// NewScope returns an empty scope.
func NewScope() *Scope {
	return &Scope{}
}

// Push appends a binding, taking ownership of value. An existing binding
// with the same name is shadowed, not replaced.
func (s *Scope) Push(name string, value Dynamic, constant bool) {
	s.entries = append(s.entries, scopeEntry{name: name, value: value, constant: constant})
}

// Len returns the number of entries, used as a mark for Truncate.
func (s *Scope) Len() int {
	return len(s.entries)
}

// Truncate removes every entry pushed after the mark, releasing their
// values.
func (s *Scope) Truncate(mark int) {
	for i := mark; i < len(s.entries); i++ {
		s.entries[i].value.Release()
	}
	s.entries = s.entries[:mark]
}

// lookup returns the index of the nearest binding, or -1.
func (s *Scope) lookup(name string) int {
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].name == name {
			return i
		}
	}
	return -1
}

// Get returns an owned copy of the nearest binding's value.
func (s *Scope) Get(name string) (Dynamic, bool) {
	i := s.lookup(name)
	if i < 0 {
		return Unit(), false
	}
	return s.entries[i].value.Clone(), true
}

// Contains reports whether name is bound.
func (s *Scope) Contains(name string) bool {
	return s.lookup(name) >= 0
}

// IsConstant reports whether the nearest binding for name is a constant.
func (s *Scope) IsConstant(name string) (constant, found bool) {
	i := s.lookup(name)
	if i < 0 {
		return false, false
	}
	return s.entries[i].constant, true
}

// Set replaces the nearest binding's value, taking ownership of value.
// The previous value is released. Fails when the binding is missing or
// constant; ownership of value stays with the caller on failure.
func (s *Scope) Set(name string, value Dynamic) *Error {
	i := s.lookup(name)
	if i < 0 {
		return &Error{Kind: VariableNotFound, Msg: "variable not found: " + name}
	}
	if s.entries[i].constant {
		return &Error{Kind: AssignmentToConstant, Msg: "cannot assign to constant: " + name}
	}
	s.entries[i].value.Release()
	s.entries[i].value = value
	return nil
}

// slot returns the live storage of the nearest binding, for aliasing
// first-parameter method calls. The pointer stays valid until the next
// Push or Truncate.
func (s *Scope) slot(name string) (slot *Dynamic, constant bool, found bool) {
	i := s.lookup(name)
	if i < 0 {
		return nil, false, false
	}
	return &s.entries[i].value, s.entries[i].constant, true
}
