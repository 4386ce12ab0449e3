package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	assert.Equal(t, RoleAdmin, ParseRole("admin"))
	assert.Equal(t, RoleCustomer, ParseRole("customer"))
	// Unknown and legacy values degrade to the least-privileged role.
	assert.Equal(t, RoleCustomer, ParseRole(""))
	assert.Equal(t, RoleCustomer, ParseRole("superuser"))
}

func TestHasAdminCapability(t *testing.T) {
	assert.True(t, HasAdminCapability(&User{Role: RoleAdmin}))
	assert.False(t, HasAdminCapability(&User{Role: RoleCustomer}))
	assert.False(t, HasAdminCapability(nil))
}
