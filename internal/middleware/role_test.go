package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCan(t *testing.T) {
	assert.True(t, Can("admin", "booking.delete"))
	assert.True(t, Can("manager", "booking.approve"))
	assert.True(t, Can("Admin", "property.correct")) // role casing from the token

	assert.False(t, Can("agent", "booking.delete"))
	assert.False(t, Can("manager", "property.correct"))
	assert.False(t, Can("manager", "activity.view"))
	assert.False(t, Can("admin", "no.such.action"))
	assert.False(t, Can("", "booking.delete"))
}
