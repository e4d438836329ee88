package transport

import "fmt"

// RemoteError is an error reported by the grid server, either as an error
// field on the persistent connection or as a non-2xx HTTP status. Status is
// zero on the persistent-connection path, where no status code exists.
type RemoteError struct {
	Message string
	Status  int
}

func (e *RemoteError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("grid: %s (status %d)", e.Message, e.Status)
	}
	return "grid: " + e.Message
}
