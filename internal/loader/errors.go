package loader

import "fmt"

// LoadError reports a corpus file that could not be read or parsed.
// The ingestion run logs it and moves on to the next file.
type LoadError struct {
	Filename string
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Filename, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
