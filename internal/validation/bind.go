package validation

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
)

// BindAndValidate binds JSON body into `out` and runs validation.
// If validation fails, it writes an error response and returns an error for the handler to short-circuit.
// An empty body is accepted when allowEmpty is set (e.g. optional reject reason).
func BindAndValidate(c *gin.Context, out interface{}, v *validatorv10.Validate, allowEmpty bool) error {
	if err := c.ShouldBindJSON(out); err != nil {
		if !(allowEmpty && errors.Is(err, io.EOF)) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": "invalid request body: " + err.Error()})
			return err
		}
	}

	if err := v.Struct(out); err != nil {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": FieldErrors(err)})
		return err
	}
	return nil
}

// FieldErrors converts validator errors into the detail list shape.
func FieldErrors(err error) []FieldError {
	var ve validatorv10.ValidationErrors
	if !errors.As(err, &ve) {
		return []FieldError{{Loc: []string{"body"}, Msg: err.Error(), Type: "value_error"}}
	}
	out := make([]FieldError, 0, len(ve))
	for _, fe := range ve {
		loc := []string{"body"}
		// Namespace is e.g. CreateOrderRequest.items[0].quantity
		ns := strings.SplitN(fe.Namespace(), ".", 2)
		if len(ns) == 2 {
			loc = append(loc, strings.Split(ns[1], ".")...)
		} else {
			loc = append(loc, fe.Field())
		}
		out = append(out, FieldError{Loc: loc, Msg: message(fe), Type: fe.Tag()})
	}
	return out
}

// Summary joins field messages into the single line shown in a toast.
func Summary(fields []FieldError) string {
	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		msgs = append(msgs, f.Msg)
	}
	return strings.Join(msgs, "; ")
}
