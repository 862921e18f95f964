package circlog

import "fmt"

// Status is the outcome of a public entry. It mirrors the teacher's
// byte-enum-of-outcomes idiom (internal/proto.Status*) but also satisfies
// the error interface, so it can be used either way: tested against
// StatusNone for a quick success check, or propagated as a plain error.
type Status int

const (
	StatusNone Status = iota
	StatusIO
	StatusAPI
	StatusInit
)

func (s Status) String() string {
	switch s {
	case StatusNone:
		return "none"
	case StatusIO:
		return "io"
	case StatusAPI:
		return "api"
	case StatusInit:
		return "init"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Error implements the error interface. StatusNone.Error() still returns a
// string (Go's error interface has no notion of "no error"); callers must
// compare against StatusNone directly, exactly as spec.md's enum is tested
// by value rather than by nil-ness.
func (s Status) Error() string {
	return "circlog: " + s.String()
}

// Ok reports whether s represents success.
func (s Status) Ok() bool {
	return s == StatusNone
}
