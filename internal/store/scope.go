package store

import "fmt"

// Scope records which collections a transaction may touch and how.
type Scope struct {
	mode    Mode
	allowed map[Collection]bool
}

// NewScope builds the scope for a transaction.
func NewScope(collections []Collection, mode Mode) Scope {
	allowed := make(map[Collection]bool, len(collections))
	for _, c := range collections {
		allowed[c] = true
	}
	return Scope{mode: mode, allowed: allowed}
}

// Mode returns the transaction mode.
func (s Scope) Mode() Mode { return s.mode }

// Check validates access to c; write marks a mutating call.
func (s Scope) Check(c Collection, write bool) error {
	if !s.allowed[c] {
		return fmt.Errorf("%w: %s", ErrNotInScope, c)
	}
	if write && s.mode != ReadWrite {
		return fmt.Errorf("%w: %s", ErrReadOnly, c)
	}
	return nil
}
