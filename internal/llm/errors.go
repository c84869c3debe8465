package llm

// unavailableError signals that a backend cannot run in this build or on
// this host (missing build tag, missing shared library) so the HTTP layer
// can return 503 instead of 500.
type unavailableError struct{ msg string }

func (e unavailableError) Error() string { return e.msg }

// ErrUnavailable constructs an unavailableError.
func ErrUnavailable(msg string) error { return unavailableError{msg: msg} }

// IsUnavailable reports whether err indicates a missing/unbuilt backend.
func IsUnavailable(err error) bool {
	_, ok := err.(unavailableError)
	return ok
}
