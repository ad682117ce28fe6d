package model

import "time"

type NotificationStatus string

const (
	WaitlistPending   NotificationStatus = "PENDING"
	WaitlistNotified  NotificationStatus = "NOTIFIED"
	WaitlistExpired   NotificationStatus = "EXPIRED"
	WaitlistConverted NotificationStatus = "CONVERTED"
	WaitlistCancelled NotificationStatus = "CANCELLED"
)

// WaitlistEntry orders customers by Priority (join time), then by ID. IDs are time-ordered
// so entries sharing a millisecond keep their join order. PositionInQueue is a snapshot
// taken at join time and is not kept in sync.
type WaitlistEntry struct {
	ID                    string             `json:"id" bson:"_id"`
	SessionID             string             `json:"session_id" bson:"session_id"`
	TourID                string             `json:"tour_id" bson:"tour_id"`
	CustomerEmail         string             `json:"customer_email" bson:"customer_email"`
	VendorID              string             `json:"vendor_id" bson:"vendor_id"`
	TicketPreferences     []TicketLine       `json:"ticket_preferences,omitempty" bson:"ticket_preferences,omitempty"`
	PositionInQueue       int                `json:"position_in_queue" bson:"position_in_queue"`
	Priority              time.Time          `json:"priority" bson:"priority"`
	NotificationStatus    NotificationStatus `json:"notification_status" bson:"notification_status"`
	NotificationAttempts  int                `json:"notification_attempts" bson:"notification_attempts"`
	NotifiedAt            *time.Time         `json:"notified_at,omitempty" bson:"notified_at,omitempty"`
	NotificationExpiresAt *time.Time         `json:"notification_expires_at,omitempty" bson:"notification_expires_at,omitempty"`
	ConvertedBookingID    string             `json:"converted_booking_id,omitempty" bson:"converted_booking_id,omitempty"`
	Active                bool               `json:"active" bson:"active"`
	CreatedAt             time.Time          `json:"created_at" bson:"created_at"`
}

// Ahead reports whether e is served before other.
func (e *WaitlistEntry) Ahead(other *WaitlistEntry) bool {
	if !e.Priority.Equal(other.Priority) {
		return e.Priority.Before(other.Priority)
	}
	return e.ID < other.ID
}
