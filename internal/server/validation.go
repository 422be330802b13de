package server

import (
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const maxEntityIDLength = 64

var validatorOnce sync.Once

func registerValidators() {
	validatorOnce.Do(func() {
		engine, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		engine.RegisterTagNameFunc(jsonFieldName)
		_ = engine.RegisterValidation("entityid", func(fl validator.FieldLevel) bool {
			return isEntityID(fl.Field().String())
		})
	})
}

// jsonFieldName reports validation errors under the name clients send.
func jsonFieldName(field reflect.StructField) string {
	name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return field.Name
	}
	return name
}

// isEntityID accepts opaque identifiers: UUIDs and the player IDs handed out
// by the identity provider.
func isEntityID(value string) bool {
	if value == "" || len(value) > maxEntityIDLength {
		return false
	}
	for _, r := range value {
		if r >= 'a' && r <= 'z' {
			continue
		}
		if r >= 'A' && r <= 'Z' {
			continue
		}
		if r >= '0' && r <= '9' {
			continue
		}
		if r == '-' || r == '_' || r == '.' || r == '@' {
			continue
		}
		return false
	}
	return true
}
