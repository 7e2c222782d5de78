package handlers

import (
	"reflect"
	"strings"
	"sync"

	"bugtracker/internal/models"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Custom validation tags for request structs
const (
	tagSeverity = "severity"
	tagCategory = "category"
	tagStatus   = "status"
)

var registerOnce sync.Once

// RegisterValidators installs the lifecycle enum tags on gin's validator and makes
// error messages use json field names. Safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation(tagSeverity, func(fl validator.FieldLevel) bool {
			_, err := models.ParseSeverity(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation(tagCategory, func(fl validator.FieldLevel) bool {
			_, err := models.ParseCategory(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation(tagStatus, func(fl validator.FieldLevel) bool {
			_, err := models.ParseStatus(fl.Field().String())
			return err == nil
		})
	})
}
