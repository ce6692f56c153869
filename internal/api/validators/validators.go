// Package validators builds the request validator used by the HTTP handlers.
package validators

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/mermaid-studio/engine/internal/mermaid"
	"github.com/mermaid-studio/engine/internal/models"
	appErr "github.com/mermaid-studio/engine/pkg/errors"
)

var (
	once     sync.Once
	validate *validator.Validate
)

// New returns the shared validator with the domain tags registered:
// diagramtype accepts a known diagram label, permission a grant level.
func New() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string { return jsonName(f.Tag.Get("json"), f.Name) })
		_ = v.RegisterValidation("diagramtype", func(fl validator.FieldLevel) bool {
			_, ok := mermaid.ParseDiagramType(fl.Field().String())
			return ok
		})
		_ = v.RegisterValidation("permission", func(fl validator.FieldLevel) bool {
			return models.ValidPermission(fl.Field().String())
		})
		validate = v
	})
	return validate
}

// Struct validates s and converts failures into a validation AppError
// naming the first offending field.
func Struct(s any) error {
	err := New().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return appErr.Wrap(err, appErr.CodeInvalid, "invalid request")
	}
	fe := verrs[0]
	return appErr.Validation(fmt.Sprintf("%s failed %q validation", fe.Field(), fe.Tag())).WithMeta("field", fe.Field())
}

func jsonName(tag, fallback string) string {
	name, _, _ := strings.Cut(tag, ",")
	switch name {
	case "-":
		return ""
	case "":
		return fallback
	}
	return name
}
