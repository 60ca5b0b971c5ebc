package domain

import (
	"fmt"
	"strings"
	"time"
)

// Canonical records: the engine's normalized representation of bridge
// data. These structs are marshaled verbatim into the document store,
// so the JSON tags are the stored schema. Date-only fields use the
// YYYY-MM-DD form the bridge speaks.

type Room struct {
	ExternalID string    `json:"externalId"`
	Name       string    `json:"name"`
	CategoryID string    `json:"categoryId"`
	BedCount   int       `json:"bedCount"`
	Capacity   int       `json:"capacity"`
	Active     bool      `json:"active"`
	SyncedAt   time.Time `json:"syncedAt"`
}

type Category struct {
	ExternalID string    `json:"externalId"`
	Name       string    `json:"name"`
	SyncedAt   time.Time `json:"syncedAt"`
}

type Guest struct {
	ExternalID string    `json:"externalId"`
	Salutation string    `json:"salutation"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	Street     string    `json:"street"`
	PostalCode string    `json:"postalCode"`
	City       string    `json:"city"`
	Country    string    `json:"country"`
	BirthDate  string    `json:"birthDate"`
	SyncedAt   time.Time `json:"syncedAt"`
}

// DisplayName is the trimmed "first last" concatenation used wherever
// a booking needs a guest label.
func (g Guest) DisplayName() string {
	return joinNonEmpty(g.FirstName, g.LastName)
}

type RoomStay struct {
	RoomExternalID string  `json:"roomExternalId"`
	RoomName       string  `json:"roomName"`
	CheckIn        string  `json:"checkIn"`
	CheckOut       string  `json:"checkOut"`
	OccupantsAdult int     `json:"occupantsAdult"`
	OccupantsChild int     `json:"occupantsChild"`
	MealPlan       string  `json:"mealPlan"`
	Nights         int     `json:"nights"`
	Price          float64 `json:"price"`
}

type Booking struct {
	ExternalID      string     `json:"externalId"`
	GuestExternalID string     `json:"guestExternalId"`
	Status          string     `json:"status"`
	Arrival         string     `json:"arrival"`
	Departure       string     `json:"departure"`
	ChannelID       string     `json:"channelId"`
	GuestName       string     `json:"guestName"`
	GuestEmail      string     `json:"guestEmail"`
	GuestPhone      string     `json:"guestPhone"`
	MealPlan        string     `json:"mealPlan"`
	Nights          int        `json:"nights"`
	TotalPrice      float64    `json:"totalPrice"`
	RoomCount       int        `json:"roomCount"`
	RoomStays       []RoomStay `json:"roomStays"`
	SyncedAt        time.Time  `json:"syncedAt"`
}

type Article struct {
	ExternalID string    `json:"externalId"`
	Name       string    `json:"name"`
	Price      float64   `json:"price"`
	Account    string    `json:"account"`
	SyncedAt   time.Time `json:"syncedAt"`
}

type Channel struct {
	ExternalID string    `json:"externalId"`
	Name       string    `json:"name"`
	SyncedAt   time.Time `json:"syncedAt"`
}

// Per-day room occupancy states reported by the bridge.
const (
	AvailFree    = "free"
	AvailBooked  = "booked"
	AvailBlocked = "blocked"
)

type AvailabilitySlot struct {
	Date              string    `json:"date"`
	RoomExternalID    string    `json:"roomExternalId"`
	Status            string    `json:"status"`
	BookingExternalID string    `json:"bookingExternalId,omitempty"`
	SyncedAt          time.Time `json:"syncedAt"`
}

// Key is the document key: availability has no single upstream id, so
// day and room together identify a slot.
func (s AvailabilitySlot) Key() string {
	return fmt.Sprintf("%s:%s", s.Date, s.RoomExternalID)
}

// Document is one canonical record ready for the store: the key it is
// upserted under and the marshaled record body.
type Document struct {
	ExternalID string
	Body       []byte
}

// DateRange is an inclusive [From, To] window in YYYY-MM-DD form.
type DateRange struct {
	From string
	To   string
}

func (r DateRange) IsZero() bool { return r.From == "" && r.To == "" }

func joinNonEmpty(parts ...string) string {
	var out []string
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return strings.Join(out, " ")
}
