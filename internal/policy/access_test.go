package policy

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/smallbiznis/redmine-mcp-gateway/internal/domain"
)

func ptr(s string) *string { return &s }

func TestAssertCanQuery(t *testing.T) {
	user := domain.Principal{UserID: "alice@company.com", Role: domain.RoleUser}
	admin := domain.Principal{UserID: "root@company.com", Role: domain.RoleAdmin}

	cases := []struct {
		name      string
		principal domain.Principal
		target    *string
		denied    bool
	}{
		{name: "nil target", principal: user},
		{name: "empty target", principal: user, target: ptr(" ")},
		{name: "self", principal: user, target: ptr("alice@company.com")},
		{name: "user queries other", principal: user, target: ptr("bob@company.com"), denied: true},
		{name: "admin queries other", principal: admin, target: ptr("bob@company.com")},
		{name: "admin self", principal: admin, target: ptr("root@company.com")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := AssertCanQuery(tc.principal, tc.target)
			if !tc.denied {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, domain.ErrAccessDenied)
			require.Equal(t, CrossUserDeniedMessage, err.Error())
		})
	}
}
