package model

import "time"

type CapacityMode string

const (
	PerPerson CapacityMode = "PER_PERSON"
	PerTicket CapacityMode = "PER_TICKET"
)

const DateLayout = "2006-01-02"

type Capacity struct {
	Max       int          `json:"max" bson:"max"`
	Current   int          `json:"current" bson:"current"`
	Remaining int          `json:"remaining" bson:"remaining"`
	Mode      CapacityMode `json:"mode" bson:"mode"`
}

// Session is one bookable instance of a tour. Bookings holds only the ticket summary
// needed for capacity math; full bookings live in their own collection.
type Session struct {
	ID             string           `json:"id" bson:"_id"`
	TourID         string           `json:"tour_id" bson:"tour_id"`
	ScheduleID     string           `json:"schedule_id,omitempty" bson:"schedule_id"`
	Date           string           `json:"date" bson:"date"`
	StartTime      string           `json:"start_time" bson:"start_time"`
	EndTime        string           `json:"end_time" bson:"end_time"`
	TimeZone       string           `json:"time_zone,omitempty" bson:"time_zone,omitempty"`
	Capacity       Capacity         `json:"capacity" bson:"capacity"`
	Bookings       []SessionBooking `json:"bookings" bson:"bookings"`
	Announcements  []string         `json:"announcements,omitempty" bson:"announcements,omitempty"`
	ActivityListID string           `json:"activity_list_id,omitempty" bson:"activity_list_id,omitempty"`
	ExpiresAt      *time.Time       `json:"expires_at,omitempty" bson:"expires_at,omitempty"`
	Version        int64            `json:"version" bson:"version"`
	CreatedAt      time.Time        `json:"created_at" bson:"created_at"`
}

type SessionBooking struct {
	BookingID string       `json:"booking_id" bson:"booking_id"`
	Tickets   []TicketLine `json:"tickets" bson:"tickets"`
}

type TicketLine struct {
	VariantID string `json:"variant_id" bson:"variant_id" validate:"required"`
	Quantity  int    `json:"quantity" bson:"quantity" validate:"required,min=1,max=100"`
}

// StartsAt resolves the session start in its time zone, falling back to UTC.
func (s *Session) StartsAt() (time.Time, error) {
	loc := time.UTC
	if s.TimeZone != "" {
		l, err := time.LoadLocation(s.TimeZone)
		if err != nil {
			return time.Time{}, err
		}
		loc = l
	}
	start := s.StartTime
	if start == "" {
		start = "00:00"
	}
	return time.ParseInLocation(DateLayout+" 15:04", s.Date+" "+start, loc)
}

func (s *Session) HasBooking(bookingID string) bool {
	for _, b := range s.Bookings {
		if b.BookingID == bookingID {
			return true
		}
	}
	return false
}

func (s *Session) WithoutBooking(bookingID string) []SessionBooking {
	out := make([]SessionBooking, 0, len(s.Bookings))
	for _, b := range s.Bookings {
		if b.BookingID != bookingID {
			out = append(out, b)
		}
	}
	return out
}

type ScheduleTemplate struct {
	MaxCapacity    int          `json:"max_capacity" bson:"max_capacity" validate:"required,min=1"`
	Mode           CapacityMode `json:"mode" bson:"mode" validate:"required,oneof=PER_PERSON PER_TICKET"`
	StartTime      string       `json:"start_time" bson:"start_time" validate:"required,valid_clock"`
	EndTime        string       `json:"end_time" bson:"end_time" validate:"required,valid_clock"`
	ActivityListID string       `json:"activity_list_id,omitempty" bson:"activity_list_id,omitempty"`
	Announcements  []string     `json:"announcements,omitempty" bson:"announcements,omitempty"`
}

// Schedule generates sessions either from an explicit date list or from an RRULE.
type Schedule struct {
	ID         string           `json:"id" bson:"_id"`
	TourID     string           `json:"tour_id" bson:"tour_id" validate:"required"`
	Dates      []string         `json:"dates,omitempty" bson:"dates,omitempty" validate:"omitempty,dive,datetime=2006-01-02"`
	RRule      string           `json:"rrule,omitempty" bson:"rrule,omitempty" validate:"omitempty,valid_rrule"`
	ValidFrom  *time.Time       `json:"valid_from,omitempty" bson:"valid_from,omitempty"`
	ValidUntil *time.Time       `json:"valid_until,omitempty" bson:"valid_until,omitempty"`
	TimeZone   string           `json:"time_zone,omitempty" bson:"time_zone,omitempty" validate:"omitempty,timezone"`
	Template   ScheduleTemplate `json:"template" bson:"template"`
	CreatedAt  time.Time        `json:"created_at" bson:"created_at"`
}
