package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// bindMessages overrides the generated message for a json field and rule.
type bindMessages map[string]map[string]string

func bindJSON(c *gin.Context, req any, messages bindMessages) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindErrorMessage(err, messages)})
		return false
	}
	return true
}

// bindURI answers 404 for malformed path parameters: a session or round
// that cannot be named cannot exist.
func bindURI(c *gin.Context, req any) bool {
	if err := c.ShouldBindUri(req); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return false
	}
	return true
}

func bindErrorMessage(err error, messages bindMessages) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		verr := verrs[0]
		if msg, ok := messages[verr.Field()][verr.Tag()]; ok {
			return msg
		}
		return ruleMessage(verr)
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return fmt.Sprintf("%s must be %s", typeErr.Field, jsonKind(typeErr.Type))
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return "request body must be a JSON object"
	}
	return "invalid request"
}

func ruleMessage(verr validator.FieldError) string {
	switch verr.Tag() {
	case "required":
		return verr.Field() + " is required"
	case "min":
		return verr.Field() + " must be at least " + verr.Param()
	case "max":
		return verr.Field() + " must be at most " + verr.Param()
	case "entityid":
		return verr.Field() + " is malformed"
	default:
		return verr.Field() + " is invalid"
	}
}

func jsonKind(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "a number"
	case reflect.String:
		return "a string"
	case reflect.Bool:
		return "true or false"
	case reflect.Slice, reflect.Array:
		return "a list"
	default:
		return "an object"
	}
}
