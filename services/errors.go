package services

import (
	"fmt"
	"net/http"
)

// ErrorKind tags an AppError so callers can pick status codes and retry
// behavior without matching on message text.
type ErrorKind int

const (
	KindPolicyViolation ErrorKind = iota + 1
	KindTransientAllocation
	KindIntegrityFailure
	KindSecurityFinding
	KindUpstreamFailure
	KindStoreFailure
)

type AppError struct {
	Kind     ErrorKind
	HTTPCode int
	Message  string
	Data     interface{}
	Err      error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newAppError(kind ErrorKind, httpCode int, message string, err error) *AppError {
	return &AppError{Kind: kind, HTTPCode: httpCode, Message: message, Err: err}
}

func newAppErrorWithData(kind ErrorKind, httpCode int, message string, data interface{}, err error) *AppError {
	return &AppError{Kind: kind, HTTPCode: httpCode, Message: message, Data: data, Err: err}
}

func newPolicyError(message string) *AppError {
	return newAppError(KindPolicyViolation, http.StatusBadRequest, message, nil)
}

func newIntegrityError(message string, err error) *AppError {
	return newAppError(KindIntegrityFailure, http.StatusBadRequest, message, err)
}

func newSecurityError(message string) *AppError {
	return newAppError(KindSecurityFinding, http.StatusBadRequest, message, nil)
}

func newUpstreamError(message string, err error) *AppError {
	return newAppError(KindUpstreamFailure, http.StatusInternalServerError, message, err)
}

func newStoreError(message string, err error) *AppError {
	return newAppError(KindStoreFailure, http.StatusInternalServerError, message, err)
}
