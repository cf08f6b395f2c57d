package domain

import "fmt"

// InferenceError reports a failure opening or consuming a model stream.
// The conversation history is left as it was when the failure happened.
type InferenceError struct {
	Op  string // "open stream" or "read stream"
	Err error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference %s: %v", e.Op, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// QueryError reports a failed query. No partial result accompanies it.
type QueryError struct {
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed: %v", e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// IntrospectionError reports a failed catalog query. No partial schema accompanies it.
type IntrospectionError struct {
	Stage string // "columns" or "foreign key info"
	Err   error
}

func (e *IntrospectionError) Error() string {
	return fmt.Sprintf("could not get %s: %v", e.Stage, e.Err)
}

func (e *IntrospectionError) Unwrap() error { return e.Err }
