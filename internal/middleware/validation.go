package middleware

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	pkgvalidator "github.com/jwalitptl/clinic-api/pkg/validator"
)

// RegisterValidators installs json field names and the domain tags on gin's
// binding engine so ShouldBindJSON reports the same fields as services do.
func RegisterValidators(custom map[string]validator.Func) {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		pkgvalidator.Configure(v, custom)
	}
}
