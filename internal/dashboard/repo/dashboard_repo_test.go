package repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// role_permissions has no "name" column; the display name lives in
// role_name. Pin the overview query to the real schema.
func TestRoleOverviewQueryMatchesRoleSchema(t *testing.T) {
	assert.Contains(t, roleOverviewSQL, "rp.role_name")
	assert.NotRegexp(t, `rp\.name\b`, roleOverviewSQL)
}
