package gomarkup

import "fmt"

// DeserializationError is the single domain error raised by the
// tokenizer. It carries the stream position at which tokenization
// could not continue. Errors from lower layers are attached as Cause.
type DeserializationError struct {
	Message string
	Index   int
	Line    int
	Column  int
	Cause   error
}

func (e *DeserializationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s at line %d, column %d (index %d): %v",
			e.Message, e.Line, e.Column, e.Index, e.Cause)
	}
	return fmt.Sprintf("%s at line %d, column %d (index %d)",
		e.Message, e.Line, e.Column, e.Index)
}

func (e *DeserializationError) Unwrap() error {
	return e.Cause
}

func deserializationError(s TextStream, message string) *DeserializationError {
	return &DeserializationError{
		Message: message,
		Index:   s.Index(),
		Line:    s.Line(),
		Column:  s.Column(),
	}
}

func wrapDeserializationError(s TextStream, cause error) *DeserializationError {
	return &DeserializationError{
		Message: "deserialization failed",
		Index:   s.Index(),
		Line:    s.Line(),
		Column:  s.Column(),
		Cause:   cause,
	}
}
