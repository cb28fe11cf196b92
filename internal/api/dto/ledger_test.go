package dto

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterCreatorRequest(t *testing.T) {
	ok := RegisterCreatorRequest{PlanName: "Gold", PricePerMonth: "10000000000000000"}
	assert.NoError(t, Validate.Struct(ok))

	// Zero price and empty name are left for the ledger to reject.
	assert.NoError(t, Validate.Struct(RegisterCreatorRequest{PricePerMonth: "0"}))

	err := Validate.Struct(RegisterCreatorRequest{PlanName: "Gold", PricePerMonth: "-5"})
	require.Error(t, err)
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "PricePerMonth", verrs[0].Field())
	assert.Equal(t, "amount", verrs[0].Tag())

	assert.Error(t, Validate.Struct(RegisterCreatorRequest{PricePerMonth: "1", AssetID: "0x123"}))
	assert.NoError(t, Validate.Struct(RegisterCreatorRequest{PricePerMonth: "1", AssetID: "0x5FbDB2315678afecb367f032d93F642f64180aa3"}))
}

func TestFeeAndOwnerRequests(t *testing.T) {
	assert.Error(t, Validate.Struct(UpdateFeeRequest{}))
	zero := uint64(0)
	assert.NoError(t, Validate.Struct(UpdateFeeRequest{FeeBasisPoints: &zero}))

	assert.Error(t, Validate.Struct(TransferOwnershipRequest{NewOwner: "bob"}))
	assert.NoError(t, Validate.Struct(TransferOwnershipRequest{NewOwner: "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"}))

	assert.Error(t, Validate.Struct(PaymentRequest{}))
	assert.Error(t, Validate.Struct(PaymentRequest{Payment: "1.5"}))
}
