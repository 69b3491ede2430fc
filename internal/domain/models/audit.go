package models

import "time"

// AuditLogEntry is one immutable row per committed workflow action.
type AuditLogEntry struct {
	ID         string    `bson:"_id"`
	Timestamp  time.Time `bson:"timestamp"`
	OperatorID string    `bson:"operatorId"`
	Action     string    `bson:"action"`
	Details    string    `bson:"details"`
}
