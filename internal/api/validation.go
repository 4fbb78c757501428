package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"listmyspace/server/internal/models"
)

var registerOnce sync.Once

// enumTags maps listing tags to their case-insensitive allowed values
var enumTags = map[string][]string{
	"adaction":           models.AdActions,
	"commercialcategory": models.CommercialCategories,
	"landtype":           models.LandTypes,
	"landcategory":       models.LandCategories,
}

// RegisterValidators adds the marketplace tags to gin's validator
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name, _, _ := strings.Cut(field.Tag.Get(tag), ",")
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return field.Name
		})

		v.RegisterValidation("selfrole", func(fl validator.FieldLevel) bool {
			role, err := models.ParseRole(fl.Field().String())
			return err == nil && role.CanSelfRegister()
		})
		v.RegisterValidation("propertykind", func(fl validator.FieldLevel) bool {
			_, err := models.ParsePropertyKind(fl.Field().String())
			return err == nil
		})
		for tag, allowed := range enumTags {
			allowed := allowed
			v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
				_, ok := models.MatchEnum(fl.Field().String(), allowed)
				return ok
			})
		}
	})
}

// bindingMessage turns a binding error into a readable message
func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid request body"
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", fe.Field()))
		case "selfrole":
			parts = append(parts, fmt.Sprintf("invalid role %q: must be owner or customer", fe.Value()))
		case "propertykind":
			parts = append(parts, fmt.Sprintf("invalid property type %q", fe.Value()))
		case "adaction", "commercialcategory", "landtype", "landcategory":
			parts = append(parts, fmt.Sprintf("invalid %s %q: must be one of %s",
				fe.Field(), fe.Value(), strings.Join(enumTags[fe.Tag()], ", ")))
		case "email":
			parts = append(parts, fmt.Sprintf("%s must be a valid email", fe.Field()))
		default:
			parts = append(parts, fmt.Sprintf("%s failed on the %s rule", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
