package idgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDsAreUniqueAndPrefixed(t *testing.T) {
	assert.NotEqual(t, Session(), Session())

	order := Order()
	assert.True(t, len(order) > 3)
	assert.Equal(t, "ORD", order[:3])

	complaint := Complaint()
	assert.Equal(t, "CMP", complaint[:3])

	assert.NotEqual(t, Order(), Order())
	assert.NotEqual(t, Complaint(), Complaint())
}
