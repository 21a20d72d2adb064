package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopflow/internal/domain"
)

type line struct {
	ProductID int64 `json:"productId" validate:"gt=0"`
	Quantity  int   `json:"quantity" validate:"gt=0"`
}

type request struct {
	UserID int64  `json:"userId" validate:"gt=0"`
	Email  string `json:"email" validate:"omitempty,email"`
	Items  []line `json:"items" validate:"required,min=1,dive"`
}

func TestStruct(t *testing.T) {
	require.NoError(t, Struct(request{UserID: 1, Items: []line{{ProductID: 1, Quantity: 1}}}))

	err := Struct(request{UserID: 0, Email: "nope", Items: []line{{ProductID: 1, Quantity: 0}}})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "userId must be greater than 0")
	assert.Contains(t, err.Error(), "email must be a valid email address")
	assert.Contains(t, err.Error(), "items[0].quantity must be greater than 0")
}

func TestStruct_MaxBytes(t *testing.T) {
	type secret struct {
		Password string `json:"password" validate:"required,max=72,maxbytes=72"`
	}

	require.NoError(t, Struct(secret{Password: strings.Repeat("a", 72)}))

	// 72 characters, 144 bytes
	err := Struct(secret{Password: strings.Repeat("é", 72)})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "password must be at most 72 bytes")
}

func TestStruct_EmptyItems(t *testing.T) {
	err := Struct(request{UserID: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "items is required")
}
