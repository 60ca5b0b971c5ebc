package domain

import "fmt"

// ResourceKind identifies one of the synchronized data categories.
type ResourceKind string

const (
	KindRooms        ResourceKind = "rooms"
	KindCategories   ResourceKind = "categories"
	KindGuests       ResourceKind = "guests"
	KindBookings     ResourceKind = "bookings"
	KindAvailability ResourceKind = "availability"
	KindArticles     ResourceKind = "articles"
	KindChannels     ResourceKind = "channels"
)

// SyncOrder is the fixed full-run sequence. Lookup data (rooms,
// categories) lands before the resources that reference it, so the
// consuming UI never renders a booking whose category name is missing.
var SyncOrder = []ResourceKind{
	KindRooms,
	KindCategories,
	KindGuests,
	KindBookings,
	KindAvailability,
	KindArticles,
	KindChannels,
}

func ParseKind(s string) (ResourceKind, error) {
	k := ResourceKind(s)
	for _, known := range SyncOrder {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown resource kind %q", s)
}
