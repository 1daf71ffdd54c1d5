package middleware

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	apierrors "github.com/jordanlanch/colorbook/pkg/api/errors"
	"github.com/jordanlanch/colorbook/pkg/models"
)

// Source is the request section a schema is bound from
type Source int

const (
	SourceBody Source = iota
	SourceQuery
	SourceParams
)

func (s Source) contextKey() string {
	switch s {
	case SourceQuery:
		return "validated_query"
	case SourceParams:
		return "validated_params"
	default:
		return "validated_body"
	}
}

func (s Source) String() string {
	switch s {
	case SourceQuery:
		return "query"
	case SourceParams:
		return "params"
	default:
		return "body"
	}
}

var (
	binder   = &echo.DefaultBinder{}
	validate = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by the name clients send them as.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "query", "param"} {
			name, _, _ := strings.Cut(fld.Tag.Get(tag), ",")
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})
	return v
}

// Validate binds the given request section into a new T, applies its
// defaults and validates it, reporting every failing field. Fields that T
// does not declare are ignored. The result is read with ValidatedBody,
// ValidatedQuery or ValidatedParams.
func Validate[T any](source Source) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			value := new(T)

			if err := bindSource(c, source, value); err != nil {
				return apierrors.ValidationError(c, []models.FieldError{{
					Field:   source.String(),
					Message: bindMessage(source),
					Value:   nil,
				}})
			}

			if d, ok := any(value).(models.Defaulter); ok {
				d.ApplyDefaults()
			}

			if err := validate.Struct(value); err != nil {
				var verrs validator.ValidationErrors
				if !errors.As(err, &verrs) {
					return err
				}
				return apierrors.ValidationError(c, fieldErrors(verrs))
			}

			c.Set(source.contextKey(), value)
			return next(c)
		}
	}
}

func bindSource(c echo.Context, source Source, value any) error {
	switch source {
	case SourceQuery:
		return binder.BindQueryParams(c, value)
	case SourceParams:
		return binder.BindPathParams(c, value)
	default:
		return binder.BindBody(c, value)
	}
}

func bindMessage(source Source) string {
	switch source {
	case SourceQuery:
		return "query parameters have invalid types"
	case SourceParams:
		return "path parameters have invalid types"
	default:
		return "request body must be valid JSON"
	}
}

// ValidatedBody returns the body stored by Validate[T](SourceBody)
func ValidatedBody[T any](c echo.Context) (*T, bool) {
	return validated[T](c, SourceBody)
}

// ValidatedQuery returns the query stored by Validate[T](SourceQuery)
func ValidatedQuery[T any](c echo.Context) (*T, bool) {
	return validated[T](c, SourceQuery)
}

// ValidatedParams returns the path params stored by Validate[T](SourceParams)
func ValidatedParams[T any](c echo.Context) (*T, bool) {
	return validated[T](c, SourceParams)
}

func validated[T any](c echo.Context, source Source) (*T, bool) {
	v, ok := c.Get(source.contextKey()).(*T)
	return v, ok && v != nil
}

func fieldErrors(verrs validator.ValidationErrors) []models.FieldError {
	details := make([]models.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		field := fieldPath(fe.Namespace())
		details = append(details, models.FieldError{
			Field:   field,
			Message: fieldMessage(field, fe),
			Value:   fe.Value(),
		})
	}
	return details
}

// fieldPath drops the struct type name: "CheckoutRequest.cancelUrl" -> "cancelUrl"
func fieldPath(namespace string) string {
	_, path, found := strings.Cut(namespace, ".")
	if !found {
		return namespace
	}
	return path
}

func fieldMessage(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
