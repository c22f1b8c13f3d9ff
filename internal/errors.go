package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden    ErrorType = "FORBIDDEN"
	ErrorTypeConflict     ErrorType = "CONFLICT"
	ErrorTypeInternal     ErrorType = "INTERNAL_ERROR"
	ErrorTypeExternal     ErrorType = "EXTERNAL_ERROR"
)

var statusByType = map[ErrorType]int{
	ErrorTypeValidation:   http.StatusBadRequest,
	ErrorTypeNotFound:     http.StatusNotFound,
	ErrorTypeUnauthorized: http.StatusUnauthorized,
	ErrorTypeForbidden:    http.StatusForbidden,
	ErrorTypeConflict:     http.StatusConflict,
	ErrorTypeInternal:     http.StatusInternalServerError,
	ErrorTypeExternal:     http.StatusBadGateway,
}

type ErrorCode string

// Request payload
const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidAmount    ErrorCode = "INVALID_AMOUNT"
	ErrCodeInvalidCategory  ErrorCode = "INVALID_CATEGORY"
	ErrCodeInvalidDate      ErrorCode = "INVALID_DATE"
	ErrCodeInvalidCurrency  ErrorCode = "INVALID_CURRENCY"
	ErrCodeInvalidRole      ErrorCode = "INVALID_ROLE"
	ErrCodeWeakPassword     ErrorCode = "WEAK_PASSWORD"
)

// Auth
const (
	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeUserInactive       ErrorCode = "USER_INACTIVE"
	ErrCodeInvalidToken       ErrorCode = "INVALID_TOKEN"
	ErrCodeTokenExpired       ErrorCode = "TOKEN_EXPIRED"
	ErrCodeCrossCompany       ErrorCode = "CROSS_COMPANY_ACCESS"
	ErrCodeInsufficientRole   ErrorCode = "INSUFFICIENT_ROLE"
)

// Workflow
const (
	ErrCodeExpenseNotFound     ErrorCode = "EXPENSE_NOT_FOUND"
	ErrCodeUnauthorizedAccess  ErrorCode = "UNAUTHORIZED_ACCESS"
	ErrCodeCannotModifyExpense ErrorCode = "CANNOT_MODIFY_EXPENSE"
	ErrCodeInvalidState        ErrorCode = "INVALID_STATE"
	ErrCodeApprovalNotFound    ErrorCode = "APPROVAL_NOT_FOUND"
	ErrCodeNoApprovers         ErrorCode = "NO_APPROVERS"
	ErrCodeFlowNotFound        ErrorCode = "FLOW_NOT_FOUND"
	ErrCodeRuleNotFound        ErrorCode = "RULE_NOT_FOUND"
	ErrCodeInvalidFlowStep     ErrorCode = "INVALID_FLOW_STEP"
	ErrCodeInvalidRule         ErrorCode = "INVALID_RULE"
	ErrCodeInvalidDecision     ErrorCode = "INVALID_DECISION"
	ErrCodeUserNotFound        ErrorCode = "USER_NOT_FOUND"
	ErrCodeCompanyNotFound     ErrorCode = "COMPANY_NOT_FOUND"
	ErrCodeEmailTaken          ErrorCode = "EMAIL_TAKEN"
	ErrCodeInvalidRelation     ErrorCode = "INVALID_MANAGER_RELATION"
)

// Upstream services
const (
	ErrCodeUnsupportedPair ErrorCode = "UNSUPPORTED_CURRENCY"
	ErrCodeCountryNotFound ErrorCode = "COUNTRY_NOT_FOUND"
	ErrCodeUpstreamFailed  ErrorCode = "UPSTREAM_FAILED"
	ErrCodeOCRFailed       ErrorCode = "OCR_FAILED"
)

// AppError is the error shape every handler renders. Sentinel values below
// are compared with errors.Is, so services wrap them with %w freely.
type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func newAppError(t ErrorType, code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Type:       t,
		Code:       code,
		Message:    message,
		StatusCode: statusByType[t],
		Cause:      cause,
	}
}

func (e *AppError) Error() string {
	if msgs := e.fieldMessages(); len(msgs) > 0 {
		return msgs[0]
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// GetDetailedMessage joins every field message of a validation error.
func (e *AppError) GetDetailedMessage() string {
	if msgs := e.fieldMessages(); len(msgs) > 0 {
		return strings.Join(msgs, "; ")
	}
	return e.Message
}

func (e *AppError) fieldMessages() []string {
	details, ok := e.Details.(ValidationErrors)
	if !ok {
		return nil
	}
	msgs := make([]string, 0, len(details.Errors))
	for _, fe := range details.Errors {
		msgs = append(msgs, fe.Message)
	}
	return msgs
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return newAppError(ErrorTypeValidation, code, message, nil)
}

func NewValidationFieldError(field, message string, code ErrorCode) *AppError {
	return newAppError(ErrorTypeValidation, ErrCodeValidationFailed, "Validation failed", nil).
		WithDetails(ValidationErrors{
			Errors: []ValidationError{{Field: field, Message: message, Code: string(code)}},
		})
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return newAppError(ErrorTypeNotFound, code, message, nil)
}

func NewUnauthorizedError(message string, code ErrorCode) *AppError {
	return newAppError(ErrorTypeUnauthorized, code, message, nil)
}

func NewForbiddenError(message string, code ErrorCode) *AppError {
	return newAppError(ErrorTypeForbidden, code, message, nil)
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return newAppError(ErrorTypeConflict, code, message, nil)
}

func NewInternalError(message string, cause error) *AppError {
	return newAppError(ErrorTypeInternal, "INTERNAL_ERROR", message, cause)
}

func NewExternalError(message string, code ErrorCode, cause error) *AppError {
	return newAppError(ErrorTypeExternal, code, message, cause)
}

var (
	ErrInvalidCredentials = NewUnauthorizedError("Invalid email or password", ErrCodeInvalidCredentials)
	ErrUserInactive       = NewForbiddenError("User account is inactive", ErrCodeUserInactive)
	ErrInvalidToken       = NewUnauthorizedError("Invalid token", ErrCodeInvalidToken)
	ErrTokenExpired       = NewUnauthorizedError("Token has expired", ErrCodeTokenExpired)
	ErrCrossCompany       = NewForbiddenError("Resource belongs to another company", ErrCodeCrossCompany)
	ErrInsufficientRole   = NewForbiddenError("Insufficient role for this operation", ErrCodeInsufficientRole)

	ErrExpenseNotFound     = NewNotFoundError("Expense not found", ErrCodeExpenseNotFound)
	ErrUnauthorizedAccess  = NewForbiddenError("unauthorized access to expense", ErrCodeUnauthorizedAccess)
	ErrCannotModifyExpense = NewValidationError("Cannot modify expense in current status", ErrCodeCannotModifyExpense)
	ErrApprovalNotFound    = NewNotFoundError("No pending approval for this approver", ErrCodeApprovalNotFound)
	ErrInvalidState        = NewConflictError("Operation not allowed in the current state", ErrCodeInvalidState)
	ErrNoApprovers         = NewConflictError("No approver could be resolved for this expense", ErrCodeNoApprovers)
	ErrFlowNotFound        = NewNotFoundError("Approval flow step not found", ErrCodeFlowNotFound)
	ErrRuleNotFound        = NewNotFoundError("Approval rule not found", ErrCodeRuleNotFound)
	ErrUserNotFound        = NewNotFoundError("User not found", ErrCodeUserNotFound)
	ErrCompanyNotFound     = NewNotFoundError("Company not found", ErrCodeCompanyNotFound)
	ErrEmailTaken          = NewConflictError("Email is already registered", ErrCodeEmailTaken)

	ErrCountryNotFound     = NewValidationError("Country not found", ErrCodeCountryNotFound)
	ErrUnsupportedCurrency = NewValidationError("Currency pair is not supported", ErrCodeUnsupportedPair)
	ErrRatesUnavailable    = NewExternalError("Exchange rates are unavailable", ErrCodeUpstreamFailed, nil)
)

// IsAppError unwraps err looking for an *AppError.
func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

type Response struct {
	Error *AppError `json:"error"`
}

func (e *AppError) ToHTTPResponse() (int, interface{}) {
	return e.StatusCode, Response{Error: e}
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	type wire struct {
		Type    ErrorType   `json:"type"`
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}
	return json.Marshal(wire{Type: e.Type, Code: e.Code, Message: e.Message, Details: e.Details})
}
