package model

import (
	"github.com/go-playground/validator/v10"

	pkgvalidator "github.com/jwalitptl/clinic-api/pkg/validator"
)

// Validators returns the domain binding tags keyed by tag name.
func Validators() map[string]validator.Func {
	return map[string]validator.Func{
		"module":     pkgvalidator.OneOf(Modules...),
		"action":     pkgvalidator.OneOf(Actions...),
		"clinicrole": pkgvalidator.OneOf(Roles...),
		"apptstatus": pkgvalidator.OneOf(
			AppointmentStatusScheduled, AppointmentStatusConfirmed, AppointmentStatusCompleted,
			AppointmentStatusCancelled, AppointmentStatusNoShow,
		),
	}
}
