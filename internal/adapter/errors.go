package adapter

import "fmt"

// RemoteCallError reports a failed call to an embedding provider. The
// underlying transport or SDK error is kept as-is and exposed via Unwrap.
type RemoteCallError struct {
	Provider string
	Op       string
	Err      error
}

func (e *RemoteCallError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *RemoteCallError) Unwrap() error {
	return e.Err
}

func remoteErr(provider, op string, err error) error {
	return &RemoteCallError{Provider: provider, Op: op, Err: err}
}
