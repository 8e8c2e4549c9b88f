// Package identity converts user identifiers to their canonical string form.
//
// Identifiers reach the service in different shapes: strings decoded from
// tokens, primitive.ObjectID values decoded from documents, uuid.UUID values
// produced by the relational store. Every comparison between two identities
// must go through Canonical.
package identity

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Canonical returns canonical string form of identifier v.
// Nil and zero identifiers produce an empty string.
func Canonical(v interface{}) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return canonicalString(id)
	case *string:
		if id == nil {
			return ""
		}
		return canonicalString(*id)
	case primitive.ObjectID:
		if id.IsZero() {
			return ""
		}
		return id.Hex()
	case *primitive.ObjectID:
		if id == nil || id.IsZero() {
			return ""
		}
		return id.Hex()
	case uuid.UUID:
		if id == uuid.Nil {
			return ""
		}
		return id.String()
	case *uuid.UUID:
		if id == nil || *id == uuid.Nil {
			return ""
		}
		return id.String()
	case []byte:
		return canonicalString(string(id))
	case fmt.Stringer:
		return canonicalString(id.String())
	default:
		return canonicalString(fmt.Sprint(v))
	}
}

// Equal reports whether a and b denote the same identity.
// Two empty identities are never equal.
func Equal(a, b interface{}) bool {
	ca := Canonical(a)

	return ca != "" && ca == Canonical(b)
}

// canonicalString lowercases hex object ids and uuids, and trims everything else.
func canonicalString(s string) string {
	s = strings.TrimSpace(s)

	if primitive.IsValidObjectID(s) {
		return strings.ToLower(s)
	}

	if u, err := uuid.Parse(s); err == nil && len(s) == 36 {
		return u.String()
	}

	return s
}
