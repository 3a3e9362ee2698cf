package scrapers

import "errors"

// Kind classifies scraper failures
type Kind int

const (
	KindLaunch Kind = iota + 1
	KindLogin
	KindNavigationTimeout
	KindStructuralElementMissing
	KindValidationFailed
)

func (k Kind) String() string {
	switch k {
	case KindLaunch:
		return "launch"
	case KindLogin:
		return "login"
	case KindNavigationTimeout:
		return "navigation timeout"
	case KindStructuralElementMissing:
		return "structural element missing"
	case KindValidationFailed:
		return "validation failed"
	default:
		return "unknown"
	}
}

// LoginReason tells why a login failed
type LoginReason string

const (
	LoginCredentialsMissing LoginReason = "credentials missing"
	LoginTimeout            LoginReason = "timeout"
	LoginUnexpectedRedirect LoginReason = "unexpected redirect"
)

// Error is the error type returned by the portal operations
type Error struct {
	Kind   Kind
	Op     string
	Reason LoginReason
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Reason != "" {
		msg += " (" + string(e.Reason) + ")"
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the sentinels below can be
// used with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Reason == "" || t.Reason == e.Reason)
}

var (
	ErrLaunch                   = &Error{Kind: KindLaunch}
	ErrLogin                    = &Error{Kind: KindLogin}
	ErrNavigationTimeout        = &Error{Kind: KindNavigationTimeout}
	ErrStructuralElementMissing = &Error{Kind: KindStructuralElementMissing}
	ErrValidationFailed         = &Error{Kind: KindValidationFailed}
)

func newError(kind Kind, op, detail string, err error) *Error {
	return &Error{Kind: kind, Op: op, Detail: detail, Err: err}
}

// LoginError builds a login failure with the given reason
func LoginError(reason LoginReason, detail string, err error) *Error {
	return &Error{Kind: KindLogin, Op: "login", Reason: reason, Detail: detail, Err: err}
}

// NavigationTimeout builds a navigation failure for op
func NavigationTimeout(op string, err error) *Error {
	return newError(KindNavigationTimeout, op, "", err)
}

// StructuralElementMissing reports that the page lacks an expected element
func StructuralElementMissing(op, element string) *Error {
	return newError(KindStructuralElementMissing, op, element, nil)
}

// ValidationFailed reports fetched content that is not a usable document
func ValidationFailed(op, detail string) *Error {
	return newError(KindValidationFailed, op, detail, nil)
}

// KindOf returns the kind of err, or 0 when err is not an *Error
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// Launch wraps a browser start failure
func Launch(err error) *Error {
	return newError(KindLaunch, "open", "cannot start browser", err)
}
