package policy

import (
	"strings"

	"github.com/smallbiznis/redmine-mcp-gateway/internal/domain"
)

// CrossUserDeniedMessage is returned when a non-admin targets another user.
const CrossUserDeniedMessage = "Access denied: Only administrators can query other users' data"

// AssertCanQuery allows a principal to act on its own data, and admins to act
// on anyone's. A nil or empty target means the principal itself.
func AssertCanQuery(principal domain.Principal, target *string) error {
	if target == nil {
		return nil
	}
	id := strings.TrimSpace(*target)
	if id == "" || id == principal.UserID {
		return nil
	}
	if principal.IsAdmin() {
		return nil
	}
	return &domain.AccessDeniedError{Message: CrossUserDeniedMessage}
}
