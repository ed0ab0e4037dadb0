package user

import (
	"time"

	"github.com/google/uuid"
)

// Role is a role-bound identity class. Ownership of credits is tracked on
// the credit itself, never duplicated here.
type Role string

const (
	RoleProducer  Role = "producer"
	RoleBuyer     Role = "buyer"
	RoleRegulator Role = "regulator"
)

// User is a directory entry: the opaque identity the credit engine trusts.
type User struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	Role      Role      `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
