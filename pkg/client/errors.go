package client

import (
	"errors"
	"fmt"
)

// ErrorClass represents a classification of page fetch failures.
type ErrorClass string

const (
	// ErrorClassNetwork represents dial, timeout and other transport-level failures.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassClient represents 4xx responses.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx and other unexpected non-2xx responses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassDecode represents a response body that is not a list of records.
	ErrorClassDecode ErrorClass = "decode"
)

// TransportError is returned when the page request itself fails.
type TransportError struct {
	Page       int
	StatusCode int // 0 when no response was received
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch page %d: %s error (status %d): %s: %v",
			e.Page, e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("fetch page %d: %s error (status %d): %s",
		e.Page, e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodeError is returned when a page body cannot be decoded into records.
type DecodeError struct {
	Page int
	Err  error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("fetch page %d: decode error: %v", e.Page, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ClassOf returns the ErrorClass carried by err, or "" for foreign errors.
func ClassOf(err error) ErrorClass {
	var te *TransportError
	if errors.As(err, &te) {
		return te.ErrorClass
	}
	var de *DecodeError
	if errors.As(err, &de) {
		return ErrorClassDecode
	}
	return ""
}

// classifyStatus maps a non-2xx status code to an error class.
func classifyStatus(statusCode int) ErrorClass {
	if statusCode >= 400 && statusCode < 500 {
		return ErrorClassClient
	}
	return ErrorClassServer
}
