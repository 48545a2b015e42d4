package norms

import "fmt"

// NormLoadError reports that the norm source was unreachable or unusable.
type NormLoadError struct {
	Source string
	Err    error
}

func (e *NormLoadError) Error() string {
	return fmt.Sprintf("load norm from %s: %s", e.Source, e.Err)
}

func (e *NormLoadError) Unwrap() error {
	return e.Err
}
