// Package reminders decides whether a lead deserves a nudge right now and
// when to resurface it. A snoozed lead is left alone unconditionally; the
// snooze is the agent overriding the engine, not an input to it.
package reminders

import (
	"fmt"
	"time"

	"realty_portal_backend/internal/intelligence/domain"
	"realty_portal_backend/internal/intelligence/signals"
	"realty_portal_backend/platform/logger"
)

// Reminder kinds, most urgent rule first.
const (
	KindOverdueFollowUp = "overdue_follow_up"
	KindDueToday        = "due_today"
	KindHotLead         = "hot_lead"
	KindNoContact       = "no_contact"
	KindGoingQuiet      = "going_quiet"
)

// Rule thresholds, in days.
const (
	noContactDays   = 7
	quietMinDays    = 7
	quietMaxDays    = 30
	hotLeadActivity = 5
)

// SnoozeOption is one offered deferral.
type SnoozeOption struct {
	Label string    `json:"label"`
	Until time.Time `json:"until"`
}

// Suggestion is a single reminder for a lead. The engine emits at most one
// per lead per evaluation; rules are ordered and the first match wins.
type Suggestion struct {
	Kind          string         `json:"kind"`
	RemindAt      time.Time      `json:"remindAt"`
	Channel       string         `json:"channel,omitempty"`
	Message       string         `json:"message"`
	SnoozeOptions []SnoozeOption `json:"snoozeOptions"`
	GeneratedAt   time.Time      `json:"generatedAt"`
}

// Service evaluates reminder rules.
type Service struct {
	log *logger.Logger
}

// NewService wires the reminder engine. Reminders are fully deterministic;
// there is nothing for AI to add to "call this person at 9".
func NewService(log *logger.Logger) *Service {
	return &Service{log: log}
}

// Suggest returns the lead's reminder, or nil when none applies. An active
// snooze suppresses every rule, including overdue follow-ups.
func (s *Service) Suggest(lead domain.Lead, activities []domain.Activity, now time.Time) *Suggestion {
	if lead.Status.Closed() {
		return nil
	}
	if lead.ReminderSnoozedUntil != nil && lead.ReminderSnoozedUntil.After(now) {
		return nil
	}

	sig := signals.ExtractActivity(activities, now)
	channel := sig.PreferredChannel

	if lead.NextActionAt != nil {
		if lead.NextActionAt.Before(now) && !sameDay(*lead.NextActionAt, now) {
			days := int(now.Sub(*lead.NextActionAt).Hours() / 24)
			return s.build(lead, KindOverdueFollowUp, now, pickChannel(lead, channel),
				fmt.Sprintf("Follow-up was due %d days ago.", days), now)
		}
		if sameDay(*lead.NextActionAt, now) {
			return s.build(lead, KindDueToday, *lead.NextActionAt, pickChannel(lead, channel),
				"Follow-up is scheduled for today.", now)
		}
		// A future follow-up means the lead is handled.
		return nil
	}

	if sig.CountLast7d >= hotLeadActivity {
		return s.build(lead, KindHotLead, now.Add(time.Hour), "call",
			fmt.Sprintf("Lead logged %d activities this week and nothing is scheduled. Strike now.", sig.CountLast7d), now)
	}

	if sig.LastAgentContactAt != nil {
		sinceContact := int(now.Sub(*sig.LastAgentContactAt).Hours() / 24)
		if sinceContact >= noContactDays {
			return s.build(lead, KindNoContact, now.Add(2*time.Hour), channel,
				fmt.Sprintf("No contact with this lead in %d days.", sinceContact), now)
		}
	}

	if sig.LastActivityAt != nil {
		sinceActivity := int(now.Sub(*sig.LastActivityAt).Hours() / 24)
		if sinceActivity >= quietMinDays && sinceActivity <= quietMaxDays {
			return s.build(lead, KindGoingQuiet, tomorrowMorning(now), "email",
				fmt.Sprintf("Lead has gone quiet for %d days. A light touch tomorrow keeps it warm.", sinceActivity), now)
		}
	}

	return nil
}

func (s *Service) build(lead domain.Lead, kind string, remindAt time.Time, channel, message string, now time.Time) *Suggestion {
	return &Suggestion{
		Kind:          kind,
		RemindAt:      remindAt,
		Channel:       channel,
		Message:       message,
		SnoozeOptions: snoozeOptions(now),
		GeneratedAt:   now,
	}
}

// snoozeOptions are the standard deferrals offered with every reminder.
func snoozeOptions(now time.Time) []SnoozeOption {
	return []SnoozeOption{
		{Label: "in an hour", Until: now.Add(time.Hour)},
		{Label: "tomorrow morning", Until: tomorrowMorning(now)},
		{Label: "next week", Until: now.Add(7 * 24 * time.Hour)},
	}
}

// pickChannel prefers the channel already planned on the lead, falling back
// to the lead's observed preference.
func pickChannel(lead domain.Lead, preferred string) string {
	if lead.NextActionChannel != nil && *lead.NextActionChannel != "" {
		return *lead.NextActionChannel
	}
	return preferred
}

func tomorrowMorning(now time.Time) time.Time {
	next := now.Add(24 * time.Hour)
	return time.Date(next.Year(), next.Month(), next.Day(), 9, 0, 0, 0, now.Location())
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
