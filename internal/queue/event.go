// Package queue defines message payloads exchanged over the message broker.
package queue

import "encoding/json"

// PrivilegeQueueName is the durable queue carrying privilege-bundle updates
// from the identity services that own user and privilege mutations.
const PrivilegeQueueName = "privilege.updated"

// PrivilegeUpdatedEvent is published whenever a user's privileges change or
// a user logs in.  The consumer writes Bundle verbatim to the privilege
// cache key for (tenant, user); an empty bundle invalidates the entry
// instead.  TenantID carries the literal "None" for super-admin bundles.
type PrivilegeUpdatedEvent struct {
	UserID   string          `json:"user_id"`
	TenantID string          `json:"tenant_id"`
	Bundle   json.RawMessage `json:"bundle,omitempty"`
}
