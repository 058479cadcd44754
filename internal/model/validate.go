package model

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			if name := strings.Split(f.Tag.Get("json"), ",")[0]; name != "" && name != "-" {
				return name
			}
			return strings.ToLower(f.Name[:1]) + f.Name[1:]
		})
		_ = validate.RegisterValidation("category", func(fl validator.FieldLevel) bool {
			return Category(fl.Field().String()).Valid()
		})
		_ = validate.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
			f := fl.Field().Float()
			return !math.IsInf(f, 0) && !math.IsNaN(f)
		})
	})
	return validate
}

// Validate checks a full product record against the catalog invariants.
func (p *Product) Validate() error {
	return validationError(validatorInstance().Struct(p))
}

// Validate checks only the fields present in the patch.
func (p *ProductPatch) Validate() error {
	return validationError(validatorInstance().Struct(p))
}

func validationError(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := &ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		key := fe.Namespace()
		if i := strings.Index(key, "."); i >= 0 {
			key = key[i+1:]
		}
		out.Fields[key] = fieldMessage(fe)
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Field() {
	case "name":
		return "Product name is required"
	case "description":
		return "Product description is required"
	case "price":
		if fe.Tag() == "finite" {
			return "Price must be a number"
		}
		return "Price cannot be negative"
	case "stock":
		return "Stock cannot be negative"
	case "category":
		if fe.Tag() == "category" {
			return fmt.Sprintf("%v is not a valid category", fe.Value())
		}
		return "Product category is required"
	}
	return fmt.Sprintf("%s failed on rule: %s", fe.Namespace(), fe.Tag())
}
