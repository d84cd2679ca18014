package clients

import "fmt"

// UnknownCodeError indicates a client code with no entry in the code map.
// It always requires manual map maintenance; the resolver never guesses.
type UnknownCodeError struct {
	Code string
}

func (e *UnknownCodeError) Error() string {
	return fmt.Sprintf("unknown client code %q", e.Code)
}

// Resolver maps 3-letter client codes to canonical client names. The map is
// copied at construction and never mutated afterwards; reloading config
// means building a new Resolver.
type Resolver struct {
	codes map[string]string
}

// NewResolver builds a resolver from the configured code map.
func NewResolver(codes map[string]string) *Resolver {
	m := make(map[string]string, len(codes))
	for code, name := range codes {
		m[code] = name
	}
	return &Resolver{codes: m}
}

// Resolve returns the canonical client name for a code, or an
// UnknownCodeError when unmapped.
func (r *Resolver) Resolve(code string) (string, error) {
	name, ok := r.codes[code]
	if !ok {
		return "", &UnknownCodeError{Code: code}
	}
	return name, nil
}

// Len reports the number of mapped codes.
func (r *Resolver) Len() int {
	return len(r.codes)
}
