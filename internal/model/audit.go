package model

import "time"

const (
	AuditRoleChanged = "role_changed"
	AuditLocked      = "locked"
	AuditUnlocked    = "unlocked"
	AuditDeleted     = "deleted"
)

// AuditEntry describes one admin action on another account.
type AuditEntry struct {
	Action      string
	ActorID     int64
	ActorEmail  string
	TargetID    int64
	TargetEmail string
	Detail      string
	At          time.Time
}
