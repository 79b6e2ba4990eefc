package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lookupParams struct {
	ProductID int64  `query:"productId" validate:"gt=0"`
	BrandID   int64  `json:"brand_id" validate:"gt=0"`
	Store     string `validate:"omitempty,oneof=memory postgres redis"`
	Date      string `query:"applicationDate" validate:"required"`
}

func TestValidate_Success(t *testing.T) {
	err := Validate(lookupParams{ProductID: 35455, BrandID: 1, Date: "2020-06-14T10:00:00"})
	assert.NoError(t, err)
}

func TestValidate_FieldNamesFollowTags(t *testing.T) {
	err := Validate(lookupParams{})
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	fields := valErr.Fields()

	assert.Equal(t, "must be greater than 0", fields["productId"])
	assert.Equal(t, "must be greater than 0", fields["brand_id"])
	assert.Equal(t, "is required", fields["applicationDate"])
	assert.NotContains(t, fields, "Store")
}

func TestValidate_OneOf(t *testing.T) {
	err := Validate(lookupParams{ProductID: 1, BrandID: 1, Date: "x", Store: "mysql"})

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "must be one of: memory postgres redis", valErr.Fields()["Store"])
}

func TestValidationError_MessageIsSorted(t *testing.T) {
	err := Validate(lookupParams{ProductID: 1})
	require.Error(t, err)
	assert.Equal(t,
		"field 'applicationDate' is required; field 'brand_id' must be greater than 0",
		err.Error())
}

func TestValidate_NonStruct(t *testing.T) {
	err := Validate("not a struct")
	require.Error(t, err)

	var valErr *ValidationError
	assert.False(t, errors.As(err, &valErr))
}
