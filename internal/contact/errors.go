package contact

import "fmt"

// Sentinel error kinds per spec.md §7's taxonomy. Each wraps the offending
// URL and component for attribution; callers compare with errors.Is against
// the bare sentinel.
var (
	ErrInvalidURL        = fmt.Errorf("contact: invalid url")
	ErrRobotsBlocked     = fmt.Errorf("contact: blocked by robots.txt")
	ErrTimeout           = fmt.Errorf("contact: request timed out")
	ErrNetwork           = fmt.Errorf("contact: network error")
	ErrTooLarge          = fmt.Errorf("contact: artifact exceeds size cap")
	ErrParseError        = fmt.Errorf("contact: malformed content")
	ErrValidationFailed  = fmt.Errorf("contact: validation failed")
	ErrStoreConflict     = fmt.Errorf("contact: concurrent store conflict")
	ErrCancelled         = fmt.Errorf("contact: operation cancelled")
	ErrExtractorUnavailable = fmt.Errorf("contact: extractor backend unavailable")
)

// HTTPStatusError reports a non-2xx response from a fetch.
type HTTPStatusError struct {
	URL  string
	Code int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("contact: http status %d for %s", e.Code, e.URL)
}

// Is lets errors.Is(err, ErrHTTPStatus("", 0)) match any HTTPStatusError,
// and errors.Is(err, ErrHTTPStatus("", 404)) match exactly that code.
func (e *HTTPStatusError) Is(target error) bool {
	t, ok := target.(*HTTPStatusError)
	if !ok {
		return false
	}
	return t.Code == 0 || t.Code == e.Code
}

// ErrHTTPStatus constructs an HTTPStatusError for the given URL and code.
func ErrHTTPStatus(url string, code int) error {
	return &HTTPStatusError{URL: url, Code: code}
}

// ComponentError attributes a wrapped error to the component/URL it came
// from, satisfying the error-handling design's requirement (d) that every
// surfaced error carries the offending URL and component name.
type ComponentError struct {
	Component string
	URL       string
	Err       error
}

func (e *ComponentError) Error() string {
	return fmt.Sprintf("contact[%s] %s: %v", e.Component, e.URL, e.Err)
}

func (e *ComponentError) Unwrap() error { return e.Err }

// Wrap attributes err to component/url, leaving err itself inspectable via
// errors.Is/errors.As through Unwrap.
func Wrap(component, url string, err error) error {
	if err == nil {
		return nil
	}
	return &ComponentError{Component: component, URL: url, Err: err}
}
