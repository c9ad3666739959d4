package common

import "fmt"

// ConfigError reports a setting or argument that prevents an operation
// from running at all. It is the only error class that fails a whole call;
// everything else degrades per item.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
