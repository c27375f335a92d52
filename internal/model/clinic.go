package model

// Clinic status constants
const (
	ClinicStatusActive    = "active"
	ClinicStatusSuspended = "suspended"
)

// Clinic is the tenant. All tenant data is scoped by clinic_id.
type Clinic struct {
	Base
	Name               string  `db:"name" json:"name"`
	Slug               string  `db:"slug" json:"slug"`
	Document           *string `db:"document" json:"document,omitempty"`
	Phone              *string `db:"phone" json:"phone,omitempty"`
	Email              *string `db:"email" json:"email,omitempty"`
	Timezone           string  `db:"timezone" json:"timezone"`
	Currency           string  `db:"currency" json:"currency"`
	Status             string  `db:"status" json:"status"`
	Plan               string  `db:"plan" json:"plan"`
	PaymentCustomerID  *string `db:"payment_customer_id" json:"-"`
	SubscriptionID     *string `db:"subscription_id" json:"subscription_id,omitempty"`
	SubscriptionStatus *string `db:"subscription_status" json:"subscription_status,omitempty"`
}

type CreateClinicRequest struct {
	Name     string  `json:"name" binding:"required,max=200"`
	Document *string `json:"document" binding:"omitempty,max=30"`
	Phone    *string `json:"phone" binding:"omitempty,max=30"`
	Email    *string `json:"email" binding:"omitempty,email"`
	Timezone string  `json:"timezone" binding:"omitempty,timezone"`
	Currency string  `json:"currency" binding:"omitempty,currency"`
}

type UpdateClinicRequest struct {
	Name     *string `json:"name" binding:"omitempty,min=1,max=200"`
	Document *string `json:"document" binding:"omitempty,max=30"`
	Phone    *string `json:"phone" binding:"omitempty,max=30"`
	Email    *string `json:"email" binding:"omitempty,email"`
	Timezone *string `json:"timezone" binding:"omitempty,timezone"`
	Currency *string `json:"currency" binding:"omitempty,currency"`
}

// ClinicMembership is a clinic as seen by one of its members.
type ClinicMembership struct {
	Clinic
	ClinicUserID string `db:"clinic_user_id" json:"clinic_user_id"`
	Role         Role   `db:"role" json:"role"`
}
