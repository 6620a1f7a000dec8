package handlers

import (
	"sync"
	"time"

	"github.com/geocoder89/carshare/internal/domain/car"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators installs the custom binding rules on gin's validator.
// It must run before any request binds a car.CreateCarRequest.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		_ = v.RegisterValidation("caryear", func(fl validator.FieldLevel) bool {
			return car.ValidYear(int(fl.Field().Int()), time.Now())
		})
		_ = v.RegisterValidation("cents", func(fl validator.FieldLevel) bool {
			return car.HasCents(fl.Field().Float())
		})
	})
}

func init() {
	RegisterValidators()
}
