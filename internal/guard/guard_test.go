package guard

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const hex = "507f1f77bcf86cd799439011"

func TestAuthorize(t *testing.T) {
	oid, err := primitive.ObjectIDFromHex(hex)
	require.NoError(t, err)

	tt := []struct {
		name      string
		owner     interface{}
		requester interface{}
		allowed   bool
	}{
		{name: "same strings", owner: hex, requester: hex, allowed: true},
		{name: "object id owner", owner: oid, requester: hex, allowed: true},
		{name: "object id requester", owner: hex, requester: oid, allowed: true},
		{name: "upper case requester", owner: oid, requester: "507F1F77BCF86CD799439011", allowed: true},
		{name: "different", owner: hex, requester: "507f1f77bcf86cd799439012"},
		{name: "empty owner", owner: "", requester: ""},
		{name: "nil owner", owner: nil, requester: hex},
	}

	for i := range tt {
		tc := tt[i]

		t.Run(tc.name, func(t *testing.T) {
			err := Authorize(tc.owner, tc.requester)
			if tc.allowed {
				require.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrNotOwner))
		})
	}
}

func TestAuthorize_SymmetricUnderRepresentation(t *testing.T) {
	oid, err := primitive.ObjectIDFromHex(hex)
	require.NoError(t, err)

	assert.Equal(t, Authorize(hex, hex), Authorize(hex, oid))
	assert.Equal(t, Authorize(oid, hex), Authorize(hex, oid))
}

func TestAuthorize_NotOwnerDetails(t *testing.T) {
	err := Authorize("owner", "stranger")

	var e *NotOwnerError
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "owner", e.Owner)
	assert.Equal(t, "stranger", e.Requester)
	assert.Contains(t, err.Error(), "owner=owner requester=stranger")
}
