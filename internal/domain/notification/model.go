// Package notification holds the per-user notification and email-outbox
// types consumed by the fan-out/admin-broadcast component (§4.I).
package notification

import "time"

// Category selects channel routing and quiet-hours behavior.
type Category string

const (
	CategoryTaskUpdate    Category = "task_update"
	CategoryDisputeUpdate Category = "dispute_update"
	CategorySupplyInvite  Category = "supply_invite"
	CategorySecurityAlert Category = "security_alert" // bypasses quiet hours
)

// Priority is the urgency of a notification.
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// Channel is a delivery surface.
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelPush  Channel = "push"
	ChannelEmail Channel = "email"
)

// Notification is associated with at most one task; admin-cohort rows
// omit TaskID and therefore bypass the "must be a participant" check.
type Notification struct {
	ID        string
	UserID    string
	TaskID    string // empty for admin-cohort notifications
	Category  Category
	Priority  Priority
	Title     string
	Body      string
	Channels  []Channel
	CreatedAt time.Time
	ReadAt    time.Time
}

// EmailState is the email_outbox delivery state machine.
type EmailState string

const (
	EmailPending    EmailState = "pending"
	EmailSending    EmailState = "sending"
	EmailSent       EmailState = "sent"
	EmailFailed     EmailState = "failed"
	EmailSuppressed EmailState = "suppressed"
)

// EmailOutboxRow drives the email channel driver.
type EmailOutboxRow struct {
	ID           string
	NotificationID string
	ToAddress    string
	State        EmailState
	ProviderID   string
	NextRetryAt  time.Time
	Attempts     int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// channelsByCategory fixes which channels a category fans out to, per §4.I.
var channelsByCategory = map[Category][]Channel{
	CategoryTaskUpdate:    {ChannelInApp, ChannelPush},
	CategoryDisputeUpdate: {ChannelInApp, ChannelPush, ChannelEmail},
	CategorySupplyInvite:  {ChannelInApp, ChannelPush, ChannelEmail},
	CategorySecurityAlert: {ChannelInApp, ChannelPush, ChannelEmail},
}

// ChannelsFor returns the fixed channel set for a category.
func ChannelsFor(c Category) []Channel {
	if chans, ok := channelsByCategory[c]; ok {
		return chans
	}
	return []Channel{ChannelInApp}
}

// BypassesQuietHours reports whether a category bypasses quiet hours.
func BypassesQuietHours(c Category) bool {
	return c == CategorySecurityAlert
}
