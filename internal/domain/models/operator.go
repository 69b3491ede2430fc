package models

import "time"

// OperatorRole gates which workflows an operator may start.
type OperatorRole string

const (
	RoleAdmin   OperatorRole = "ADMIN"
	RoleManager OperatorRole = "MANAGER"
	RoleStaff   OperatorRole = "STAFF"
)

// Operator is a registered farm worker.
type Operator struct {
	ID        string       `bson:"_id"`
	Name      string       `bson:"name"`
	Role      OperatorRole `bson:"role"`
	Active    bool         `bson:"active"`
	CreatedAt time.Time    `bson:"createdAt"`
}
