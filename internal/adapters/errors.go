package adapters

import "fmt"

// HTTPError carries a downstream service's non-success response.
type HTTPError struct {
	Service string
	Status  int
	Body    string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned status %d", e.Service, e.Status)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.Status, e.Body)
}

// HTTPStatusCode makes the error recognizable by the retry helpers.
func (e *HTTPError) HTTPStatusCode() int { return e.Status }

// MissingInputError signals that a stage cannot be dispatched because
// a required input from a predecessor stage is absent.
type MissingInputError struct {
	Msg string
}

func (e *MissingInputError) Error() string { return e.Msg }

func missingInput(format string, args ...any) *MissingInputError {
	return &MissingInputError{Msg: fmt.Sprintf(format, args...)}
}
