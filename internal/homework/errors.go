package homework

import (
	"errors"
	"fmt"
)

// Kind classifies every failure the bot knows about.
//
// The set is closed: the poll loop's error report switches over all of them.
type Kind int

const (
	KindPrecondition   Kind = iota + 1 // startup only, fatal
	KindTransport                      // fetch: network call did not complete
	KindUpstreamStatus                 // fetch: HTTP status != 200
	KindMalformedBody                  // fetch: body is not JSON
	KindSchema                         // validate/extract: unexpected shape
	KindUnknownStatus                  // extract: status outside the verdict table
	KindNotify                         // send: always swallowed
)

func (k Kind) String() string {
	switch k {
	case KindPrecondition:
		return "precondition"
	case KindTransport:
		return "transport"
	case KindUpstreamStatus:
		return "upstream_status"
	case KindMalformedBody:
		return "malformed_body"
	case KindSchema:
		return "schema"
	case KindUnknownStatus:
		return "unknown_status"
	case KindNotify:
		return "notify"
	case 0:
		return "internal"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Sentinels for errors.Is checks. An *Error matches the sentinel of its Kind.
var (
	ErrPrecondition   = &Error{Kind: KindPrecondition}
	ErrTransport      = &Error{Kind: KindTransport}
	ErrUpstreamStatus = &Error{Kind: KindUpstreamStatus}
	ErrMalformedBody  = &Error{Kind: KindMalformedBody}
	ErrSchema         = &Error{Kind: KindSchema}
	ErrUnknownStatus  = &Error{Kind: KindUnknownStatus}
	ErrNotify         = &Error{Kind: KindNotify}
)

// Error is the single error type of the bot. Payload fields are set per Kind:
//
//	KindUpstreamStatus: StatusCode
//	KindUnknownStatus:  Value (the offending status)
//	KindPrecondition:   Value (logical name of the missing credential)
//	KindSchema:         Msg
//	KindTransport, KindMalformedBody, KindNotify: Err
type Error struct {
	Kind       Kind
	Op         string
	Msg        string
	StatusCode int
	Value      string
	Err        error
}

func (e *Error) Error() string {
	var s string
	switch e.Kind {
	case KindPrecondition:
		s = fmt.Sprintf("missing required credential %s", e.Value)
	case KindUpstreamStatus:
		s = fmt.Sprintf("unexpected status code %d", e.StatusCode)
	case KindUnknownStatus:
		s = fmt.Sprintf("unknown homework status %q", e.Value)
	default:
		s = e.Kind.String() + " error"
		if e.Msg != "" {
			s = e.Msg
		}
	}
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels by Kind so that errors.Is(err, ErrSchema) works for any schema error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Msg == "" && t.Value == "" && t.StatusCode == 0 && t.Err == nil
}

// KindOf returns the Kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func schemaError(msg string) error {
	return &Error{Kind: KindSchema, Op: "validate", Msg: msg}
}
