package fluidpay

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

type Role string

const (
	RoleOwner  Role = "owner"
	RoleUpkeep Role = "upkeep"
)

// authorize passes when caller holds any of roles. Caller must hold the module lock.
func (m *Module) authorize(caller common.Address, roles ...Role) error {
	if caller == (common.Address{}) {
		return fmt.Errorf("%w: zero caller", ErrAuthorization)
	}
	for _, role := range roles {
		switch role {
		case RoleOwner:
			if caller == m.params.Owner {
				return nil
			}
		case RoleUpkeep:
			if caller == m.params.Upkeep {
				return nil
			}
		}
	}
	return fmt.Errorf("%w: %s requires role %v", ErrAuthorization, caller.Hex(), roles)
}
