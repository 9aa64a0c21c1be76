package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Bounds of a SearchQuery.
const (
	MinQueryLength      = 1
	MaxQueryLength      = 500
	MinResultsPerSource = 1
	MaxResultsPerSource = 50

	// DefaultResultsPerSource is used when a caller does not specify a cap.
	DefaultResultsPerSource = 10
)

// SearchQuery is the validated input of an evidence search.
type SearchQuery struct {
	Query               string `json:"query" validate:"min=1,max=500"`
	MaxResultsPerSource int    `json:"max_results" validate:"min=1,max=50"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// queryValidator returns the shared validator, reporting fields by their JSON names.
func queryValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks the query length and per-source cap. It returns a
// *ValidationError for the first violated constraint.
func (q SearchQuery) Validate() error {
	err := queryValidator().Struct(q)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	fe := fieldErrs[0]
	switch fe.Field() {
	case "query":
		return NewValidationError("query",
			fmt.Sprintf("must be between %d and %d characters", MinQueryLength, MaxQueryLength))
	case "max_results":
		return NewValidationError("max_results",
			fmt.Sprintf("must be between %d and %d", MinResultsPerSource, MaxResultsPerSource))
	default:
		return NewValidationError(fe.Field(), fe.Error())
	}
}
