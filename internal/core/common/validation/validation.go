package validation

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	errors "github.com/frahmantamala/expense-approval/internal"
	"github.com/shopspring/decimal"
)

// rule returns a human message and error code when value fails, or ok.
type rule func(value interface{}) (message string, code errors.ErrorCode, ok bool)

type FieldValidator struct {
	FieldName string
	Value     interface{}
	rules     []rule
}

type ValidationBuilder struct {
	fields []*FieldValidator
}

func NewValidator() *ValidationBuilder {
	return &ValidationBuilder{}
}

func (v *ValidationBuilder) Field(name string, value interface{}) *FieldValidator {
	fv := &FieldValidator{FieldName: name, Value: value}
	v.fields = append(v.fields, fv)
	return fv
}

func (fv *FieldValidator) add(r rule) *FieldValidator {
	fv.rules = append(fv.rules, r)
	return fv
}

func (fv *FieldValidator) msg(format string, args ...interface{}) string {
	return fv.FieldName + " " + fmt.Sprintf(format, args...)
}

func (fv *FieldValidator) Required() *FieldValidator {
	return fv.add(func(value interface{}) (string, errors.ErrorCode, bool) {
		var empty bool
		switch v := value.(type) {
		case string:
			empty = v == ""
		case *string:
			empty = v == nil || *v == ""
		case int64:
			empty = v == 0
		case time.Time:
			empty = v.IsZero()
		}
		if empty {
			return fv.msg("is required"), errors.ErrCodeValidationFailed, false
		}
		return "", "", true
	})
}

func (fv *FieldValidator) MinInt(min int64, code errors.ErrorCode) *FieldValidator {
	return fv.add(func(value interface{}) (string, errors.ErrorCode, bool) {
		if v, ok := value.(int64); ok && v < min {
			return fv.msg("must be at least %d", min), code, false
		}
		return "", "", true
	})
}

func (fv *FieldValidator) MaxInt(max int64, code errors.ErrorCode) *FieldValidator {
	return fv.add(func(value interface{}) (string, errors.ErrorCode, bool) {
		if v, ok := value.(int64); ok && v > max {
			return fv.msg("must not exceed %d", max), code, false
		}
		return "", "", true
	})
}

func (fv *FieldValidator) MinLength(min int) *FieldValidator {
	return fv.add(func(value interface{}) (string, errors.ErrorCode, bool) {
		if v, ok := value.(string); ok && len(v) < min {
			return fv.msg("must be at least %d characters", min), errors.ErrCodeValidationFailed, false
		}
		return "", "", true
	})
}

func (fv *FieldValidator) MaxLength(max int) *FieldValidator {
	return fv.add(func(value interface{}) (string, errors.ErrorCode, bool) {
		if v, ok := value.(string); ok && len(v) > max {
			return fv.msg("must not exceed %d characters", max), errors.ErrCodeValidationFailed, false
		}
		return "", "", true
	})
}

// NotFuture allows any time up to the end of the current day.
func (fv *FieldValidator) NotFuture() *FieldValidator {
	return fv.add(func(value interface{}) (string, errors.ErrorCode, bool) {
		v, ok := value.(time.Time)
		if !ok {
			return "", "", true
		}
		now := time.Now()
		endOfToday := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, now.Location())
		if v.After(endOfToday) {
			return fv.msg("cannot be in the future"), errors.ErrCodeInvalidDate, false
		}
		return "", "", true
	})
}

// PositiveDecimal rejects zero and negative amounts.
func (fv *FieldValidator) PositiveDecimal(code errors.ErrorCode) *FieldValidator {
	return fv.add(func(value interface{}) (string, errors.ErrorCode, bool) {
		if v, ok := value.(decimal.Decimal); ok && !v.IsPositive() {
			return fv.msg("must be greater than 0"), code, false
		}
		return "", "", true
	})
}

// MaxDecimals rejects amounts with more fractional digits than places.
func (fv *FieldValidator) MaxDecimals(places int32, code errors.ErrorCode) *FieldValidator {
	return fv.add(func(value interface{}) (string, errors.ErrorCode, bool) {
		if v, ok := value.(decimal.Decimal); ok && !v.Equal(v.Truncate(places)) {
			return fv.msg("must have at most %d decimal places", places), code, false
		}
		return "", "", true
	})
}

func (fv *FieldValidator) OneOf(code errors.ErrorCode, allowed ...string) *FieldValidator {
	return fv.add(func(value interface{}) (string, errors.ErrorCode, bool) {
		v, ok := value.(string)
		if !ok {
			return "", "", true
		}
		for _, a := range allowed {
			if v == a {
				return "", "", true
			}
		}
		return fv.msg("must be one of %s", strings.Join(allowed, ", ")), code, false
	})
}

func (fv *FieldValidator) Email() *FieldValidator {
	return fv.add(func(value interface{}) (string, errors.ErrorCode, bool) {
		if v, ok := value.(string); ok && v != "" {
			if _, err := mail.ParseAddress(v); err != nil {
				return fv.msg("must be a valid email address"), errors.ErrCodeValidationFailed, false
			}
		}
		return "", "", true
	})
}

// CurrencyCode accepts three upper-case ASCII letters.
func (fv *FieldValidator) CurrencyCode() *FieldValidator {
	return fv.add(func(value interface{}) (string, errors.ErrorCode, bool) {
		if v, ok := value.(string); ok && !IsCurrencyCode(v) {
			return fv.msg("must be a 3-letter ISO 4217 code"), errors.ErrCodeInvalidCurrency, false
		}
		return "", "", true
	})
}

// Validate runs every rule and collects all failures into one error.
func (v *ValidationBuilder) Validate() *errors.AppError {
	var failures []errors.ValidationError

	for _, field := range v.fields {
		for _, r := range field.rules {
			if message, code, ok := r(field.Value); !ok {
				failures = append(failures, errors.ValidationError{
					Field:   field.FieldName,
					Message: message,
					Code:    string(code),
				})
			}
		}
	}

	if len(failures) == 0 {
		return nil
	}
	return errors.NewValidationError("Validation failed", errors.ErrCodeValidationFailed).
		WithDetails(errors.ValidationErrors{Errors: failures})
}

func IsCurrencyCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, c := range code {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}
