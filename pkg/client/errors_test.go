package client

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorClass
	}{
		{400, ErrorClassClient},
		{404, ErrorClassClient},
		{429, ErrorClassClient},
		{500, ErrorClassServer},
		{503, ErrorClassServer},
		{302, ErrorClassServer},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d", tt.status), func(t *testing.T) {
			if got := classifyStatus(tt.status); got != tt.want {
				t.Errorf("classifyStatus(%d) = %q, want %q", tt.status, got, tt.want)
			}
		})
	}
}

func TestTransportError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *TransportError
		expected string
	}{
		{
			name: "with wrapped error",
			err: &TransportError{
				Page:       2,
				ErrorClass: ErrorClassNetwork,
				Message:    "request failed",
				Err:        errors.New("connection refused"),
			},
			expected: "fetch page 2: network error (status 0): request failed: connection refused",
		},
		{
			name: "status only",
			err: &TransportError{
				Page:       1,
				StatusCode: 503,
				ErrorClass: ErrorClassServer,
				Message:    "503 Service Unavailable",
			},
			expected: "fetch page 1: server error (status 503): 503 Service Unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestErrorsUnwrap(t *testing.T) {
	cause := errors.New("boom")

	te := &TransportError{Page: 1, ErrorClass: ErrorClassNetwork, Err: cause}
	if !errors.Is(te, cause) {
		t.Error("TransportError should unwrap to its cause")
	}

	de := &DecodeError{Page: 1, Err: cause}
	if !errors.Is(de, cause) {
		t.Error("DecodeError should unwrap to its cause")
	}
}

func TestClassOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"transport", &TransportError{ErrorClass: ErrorClassServer}, ErrorClassServer},
		{"wrapped transport", fmt.Errorf("load: %w", &TransportError{ErrorClass: ErrorClassNetwork}), ErrorClassNetwork},
		{"decode", &DecodeError{Page: 1, Err: errors.New("x")}, ErrorClassDecode},
		{"foreign", errors.New("other"), ""},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassOf(tt.err); got != tt.want {
				t.Errorf("ClassOf() = %q, want %q", got, tt.want)
			}
		})
	}
}
