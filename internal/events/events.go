package events

import (
	"github.com/google/uuid"
)

// Event names.
const (
	LeadEscalatedName = "intelligence.lead.escalated"
	ReminderDueName   = "intelligence.reminder.due"
)

// LeadEscalated fires when a background scan finds a lead at escalation
// level 3 or higher.
type LeadEscalated struct {
	BaseEvent
	TenantID       uuid.UUID `json:"tenantId"`
	LeadID         uuid.UUID `json:"leadId"`
	Level          int       `json:"level"`
	Recommendation string    `json:"recommendation"`
}

// EventName implements Event.
func (e LeadEscalated) EventName() string { return LeadEscalatedName }

// NewLeadEscalated builds the event with the current timestamp.
func NewLeadEscalated(tenantID, leadID uuid.UUID, level int, recommendation string) LeadEscalated {
	return LeadEscalated{
		BaseEvent:      NewBaseEvent(),
		TenantID:       tenantID,
		LeadID:         leadID,
		Level:          level,
		Recommendation: recommendation,
	}
}

// ReminderDue fires when a background scan produces a reminder whose
// remind-at time has arrived.
type ReminderDue struct {
	BaseEvent
	TenantID uuid.UUID `json:"tenantId"`
	LeadID   uuid.UUID `json:"leadId"`
	Kind     string    `json:"kind"`
	Channel  string    `json:"channel,omitempty"`
	Message  string    `json:"message"`
}

// EventName implements Event.
func (e ReminderDue) EventName() string { return ReminderDueName }

// NewReminderDue builds the event with the current timestamp.
func NewReminderDue(tenantID, leadID uuid.UUID, kind, channel, message string) ReminderDue {
	return ReminderDue{
		BaseEvent: NewBaseEvent(),
		TenantID:  tenantID,
		LeadID:    leadID,
		Kind:      kind,
		Channel:   channel,
		Message:   message,
	}
}
