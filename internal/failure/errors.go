// Package failure defines the error taxonomy shared by the pipeline stages.
package failure

import (
	"errors"
	"fmt"
)

// NetworkError reports a failed geometry download (transport failure,
// timeout, or non-2xx status). It is never retried.
type NetworkError struct {
	Err        error
	URL        string
	StatusCode int
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("network: %s returned status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("network: %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError wraps err as a NetworkError for url with an optional HTTP status code.
func NewNetworkError(err error, url string, statusCode int) *NetworkError {
	return &NetworkError{Err: err, URL: url, StatusCode: statusCode}
}

// SchemaError reports an expected key or column that is absent from a source.
type SchemaError struct {
	Source    string
	Column    string
	Available []string
}

func (e *SchemaError) Error() string {
	msg := fmt.Sprintf("schema: %s has no %s column", e.Source, e.Column)
	if len(e.Available) > 0 {
		msg += fmt.Sprintf(" (available: %v)", e.Available)
	}
	return msg
}

// NewSchemaError reports that source lacks column.
func NewSchemaError(source, column string, available []string) *SchemaError {
	return &SchemaError{Source: source, Column: column, Available: available}
}

// TypeConversionError reports a non-numeric value where a number is required.
type TypeConversionError struct {
	Column string
	Key    string
	Value  any
}

func (e *TypeConversionError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("type conversion: %s for %s: %v is not numeric", e.Column, e.Key, e.Value)
	}
	return fmt.Sprintf("type conversion: %s: %v is not numeric", e.Column, e.Value)
}

// NewTypeConversionError reports that value in column (row key) is not numeric.
func NewTypeConversionError(column, key string, value any) *TypeConversionError {
	return &TypeConversionError{Column: column, Key: key, Value: value}
}

// IsNetwork returns true if err (or any error in its chain) is a NetworkError.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsSchema returns true if err (or any error in its chain) is a SchemaError.
func IsSchema(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

// IsTypeConversion returns true if err (or any error in its chain) is a TypeConversionError.
func IsTypeConversion(err error) bool {
	var te *TypeConversionError
	return errors.As(err, &te)
}
