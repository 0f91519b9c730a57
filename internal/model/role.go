package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Role is the coarse permission level of an account. The wire format is the
// numeric value (0 = standard, 1 = admin) to stay compatible with existing clients.
type Role int16

const (
	RoleStandard Role = 0
	RoleAdmin    Role = 1
)

func (r Role) String() string {
	switch r {
	case RoleStandard:
		return "user"
	case RoleAdmin:
		return "admin"
	default:
		return "role(" + strconv.Itoa(int(r)) + ")"
	}
}

func (r Role) Valid() bool {
	return r == RoleStandard || r == RoleAdmin
}

// ParseRole accepts the symbolic aliases "user"/"admin" as well as the numeric
// encoding "0"/"1".
func ParseRole(value string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "user", "standard", "0":
		return RoleStandard, nil
	case "admin", "1":
		return RoleAdmin, nil
	default:
		return 0, fmt.Errorf("unknown role %q", value)
	}
}

// UnmarshalJSON accepts both 0/1 and "user"/"admin".
func (r *Role) UnmarshalJSON(data []byte) error {
	var n int16
	if err := json.Unmarshal(data, &n); err == nil {
		role := Role(n)
		if !role.Valid() {
			return fmt.Errorf("unknown role %d", n)
		}
		*r = role
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("role must be a number or a string: %w", err)
	}
	role, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = role
	return nil
}
