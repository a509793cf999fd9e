package model

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Role is an opaque permission identifier: keccak256 of the role name.
type Role common.Hash

var (
	RoleAdmin   = NewRole("ADMIN_ROLE")
	RoleBanker  = NewRole("BANKER_ROLE")
	RoleMinter  = NewRole("MINTER_ROLE")
	RoleManager = NewRole("MANAGER_ROLE")
)

var roleNames = map[Role]string{
	RoleAdmin:   "ADMIN_ROLE",
	RoleBanker:  "BANKER_ROLE",
	RoleMinter:  "MINTER_ROLE",
	RoleManager: "MANAGER_ROLE",
}

func NewRole(name string) Role {
	return Role(crypto.Keccak256Hash([]byte(name)))
}

// ParseRole accepts a well-known role name or a 32-byte hex identifier.
func ParseRole(input string) (Role, bool) {
	for role, name := range roleNames {
		if name == input {
			return role, true
		}
	}
	if len(input) == 66 && (input[:2] == "0x" || input[:2] == "0X") {
		return Role(common.HexToHash(input)), true
	}
	return Role{}, false
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return common.Hash(r).Hex()
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	role, ok := ParseRole(string(text))
	if !ok {
		return fmt.Errorf("unknown role: %s", text)
	}
	*r = role
	return nil
}
