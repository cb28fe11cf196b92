package dto

import (
	"github.com/go-playground/validator/v10"

	"tinysubs/pkg/amount"
)

// Amounts travel as base-unit decimal strings. Plan names and prices are not
// marked required here; the ledger rejects them with its own reasons.

type RegisterCreatorRequest struct {
	PlanName      string `json:"plan_name" validate:"max=128"`
	Description   string `json:"description" validate:"max=2048"`
	PricePerMonth string `json:"price_per_month" validate:"required,amount"`
	AssetID       string `json:"asset_id" validate:"omitempty,eth_addr"`
}

type UpdatePlanRequest struct {
	PlanName      string `json:"plan_name" validate:"max=128"`
	Description   string `json:"description" validate:"max=2048"`
	PricePerMonth string `json:"price_per_month" validate:"required,amount"`
}

type PaymentRequest struct {
	Payment string `json:"payment" validate:"required,amount"`
}

type UpdateFeeRequest struct {
	FeeBasisPoints *uint64 `json:"fee_basis_points" validate:"required"`
}

type WithdrawFeesRequest struct {
	AssetID string `json:"asset_id" validate:"omitempty,eth_addr"`
}

type TransferOwnershipRequest struct {
	NewOwner string `json:"new_owner" validate:"required,eth_addr"`
}

var Validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
		_, err := amount.Parse(fl.Field().String())
		return err == nil
	})
	return v
}
