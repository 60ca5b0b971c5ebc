package app

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"capcorn_sync/internal/domain"
)

// Pure mappers, one per resource kind: external bridge record in,
// canonical record out. No network, no store. Required fields raise a
// *domain.MappingError; optional fields default to zero values. Same
// input always yields a structurally equal output.

/********** tiny helpers **********/

// firstID returns the first non-zero id among field aliases.
func firstID(vals ...domain.FlexInt) int64 {
	for _, v := range vals {
		if v != 0 {
			return int64(v)
		}
	}
	return 0
}

// firstStr returns the first alias with non-blank content, trimmed.
func firstStr(vals ...string) string {
	for _, v := range vals {
		if t := strings.TrimSpace(v); t != "" {
			return t
		}
	}
	return ""
}

func extID(v int64) string { return strconv.FormatInt(v, 10) }

// normDate reduces the bridge's date spellings (plain date or a
// timestamp with a date prefix) to YYYY-MM-DD. Unparseable input
// yields "".
func normDate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 10 {
		return ""
	}
	if _, err := time.Parse("2006-01-02", s[:10]); err != nil {
		return ""
	}
	return s[:10]
}

func nightsBetween(from, to string) int {
	a, errA := time.Parse("2006-01-02", from)
	b, errB := time.Parse("2006-01-02", to)
	if errA != nil || errB != nil {
		return 0
	}
	if n := int(b.Sub(a).Hours() / 24); n > 0 {
		return n
	}
	return 0
}

func joinNonEmpty(parts ...string) string {
	var out []string
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return strings.Join(out, " ")
}

// bookingStatus renders the PMS status code. The source system is not
// consistent about codes beyond the first few, so unknown codes keep
// their number instead of being guessed at.
func bookingStatus(code int64) string {
	switch code {
	case 0:
		return "option"
	case 1, 2:
		return "confirmed"
	default:
		return fmt.Sprintf("status_%d", code)
	}
}

// mealPlan renders the PMS board code.
func mealPlan(code int64) string {
	switch code {
	case 0:
		return ""
	case 1:
		return "breakfast"
	case 2:
		return "half_board"
	case 3:
		return "full_board"
	default:
		return fmt.Sprintf("plan_%d", code)
	}
}

/********** per-kind mappers **********/

func mapRoom(in domain.BridgeRoom, syncedAt time.Time) (domain.Room, error) {
	id := firstID(in.Zimn, in.Zimm)
	if id == 0 {
		return domain.Room{}, &domain.MappingError{Kind: domain.KindRooms, Field: "zimn", Reason: "missing room id"}
	}
	beds := int(firstID(in.Bession, in.Bett))

	active := true
	switch {
	case in.Stat != nil:
		active = *in.Stat == 0
	case in.Status != "":
		active = strings.EqualFold(in.Status, "active") || in.Status == "0"
	}

	return domain.Room{
		ExternalID: extID(id),
		Name:       firstStr(in.Name, in.Beze),
		CategoryID: extID(firstID(in.Caid, in.Catg)),
		BedCount:   beds,
		Capacity:   beds + int(in.Extrabet),
		Active:     active,
		SyncedAt:   syncedAt,
	}, nil
}

func mapCategory(in domain.BridgeCategory, syncedAt time.Time) (domain.Category, error) {
	id := firstID(in.Catg, in.Caid)
	if id == 0 {
		return domain.Category{}, &domain.MappingError{Kind: domain.KindCategories, Field: "catg", Reason: "missing category id"}
	}
	return domain.Category{
		ExternalID: extID(id),
		Name:       firstStr(in.Name, in.Beze),
		SyncedAt:   syncedAt,
	}, nil
}

func mapGuest(in domain.BridgeGuest, syncedAt time.Time) (domain.Guest, error) {
	if in.Gast == 0 {
		return domain.Guest{}, &domain.MappingError{Kind: domain.KindGuests, Field: "gast", Reason: "missing guest id"}
	}
	return domain.Guest{
		ExternalID: extID(int64(in.Gast)),
		Salutation: strings.TrimSpace(in.Anre),
		FirstName:  strings.TrimSpace(in.Vorn),
		LastName:   strings.TrimSpace(in.Nacn),
		Email:      strings.TrimSpace(in.Mail),
		Phone:      strings.TrimSpace(in.Teln),
		Street:     strings.TrimSpace(in.Stra),
		PostalCode: strings.TrimSpace(in.Polz),
		City:       strings.TrimSpace(in.Ortb),
		Country:    strings.TrimSpace(in.Land),
		BirthDate:  normDate(in.Gebd),
		SyncedAt:   syncedAt,
	}, nil
}

func mapBooking(in domain.BridgeBooking, syncedAt time.Time) (domain.Booking, error) {
	if in.Resn == 0 {
		return domain.Booking{}, &domain.MappingError{Kind: domain.KindBookings, Field: "resn", Reason: "missing reservation id"}
	}

	stays := make([]domain.RoomStay, 0, len(in.Rooms))
	var total float64
	for _, r := range in.Rooms {
		checkIn := firstStr(normDate(r.Datea), normDate(r.Vndt))
		checkOut := firstStr(normDate(r.Datee), normDate(r.Bsdt))
		nights := int(r.Nights)
		if nights == 0 {
			nights = nightsBetween(checkIn, checkOut)
		}
		stay := domain.RoomStay{
			RoomExternalID: extID(firstID(r.Zimn, r.Zimm)),
			RoomName:       strings.TrimSpace(r.RoomName),
			CheckIn:        checkIn,
			CheckOut:       checkOut,
			OccupantsAdult: int(r.Pers),
			OccupantsChild: int(r.Kndr),
			MealPlan:       mealPlan(int64(r.Pession)),
			Nights:         nights,
			Price:          float64(r.Preis),
		}
		total += stay.Price
		stays = append(stays, stay)
	}

	arrival := normDate(in.Andf)
	departure := normDate(in.Ande)
	if arrival == "" || departure == "" {
		// older bridges omit the header window; recover it from the stays
		for _, s := range stays {
			if s.CheckIn != "" && (arrival == "" || s.CheckIn < arrival) {
				arrival = s.CheckIn
			}
			if s.CheckOut != "" && (departure == "" || s.CheckOut > departure) {
				departure = s.CheckOut
			}
		}
	}

	plan := ""
	if len(stays) > 0 {
		plan = stays[0].MealPlan
	}

	guestID := ""
	if in.Gast != 0 {
		guestID = extID(int64(in.Gast))
	}

	return domain.Booking{
		ExternalID:      extID(int64(in.Resn)),
		GuestExternalID: guestID,
		Status:          bookingStatus(int64(in.Stat)),
		Arrival:         arrival,
		Departure:       departure,
		ChannelID:       extID(int64(in.Chid)),
		GuestName:       joinNonEmpty(in.Vorn, in.Nacn),
		GuestEmail:      strings.TrimSpace(in.Mail),
		GuestPhone:      strings.TrimSpace(in.Teln),
		MealPlan:        plan,
		Nights:          nightsBetween(arrival, departure),
		TotalPrice:      total,
		RoomCount:       len(stays),
		RoomStays:       stays,
		SyncedAt:        syncedAt,
	}, nil
}

func mapArticle(in domain.BridgeArticle, syncedAt time.Time) (domain.Article, error) {
	if in.Artn == 0 {
		return domain.Article{}, &domain.MappingError{Kind: domain.KindArticles, Field: "artn", Reason: "missing article id"}
	}
	account := ""
	if in.Knto != 0 {
		account = extID(int64(in.Knto))
	}
	return domain.Article{
		ExternalID: extID(int64(in.Artn)),
		Name:       strings.TrimSpace(in.Beze),
		Price:      float64(in.Prei),
		Account:    account,
		SyncedAt:   syncedAt,
	}, nil
}

func mapChannel(in domain.BridgeChannel, syncedAt time.Time) (domain.Channel, error) {
	if in.Chid == 0 {
		return domain.Channel{}, &domain.MappingError{Kind: domain.KindChannels, Field: "chid", Reason: "missing channel id"}
	}
	return domain.Channel{
		ExternalID: extID(int64(in.Chid)),
		Name:       strings.TrimSpace(in.Name),
		SyncedAt:   syncedAt,
	}, nil
}

func mapAvailability(in domain.BridgeAvailabilitySlot, syncedAt time.Time) (domain.AvailabilitySlot, error) {
	roomID := firstID(in.Zimn, in.Zimm)
	if roomID == 0 {
		return domain.AvailabilitySlot{}, &domain.MappingError{Kind: domain.KindAvailability, Field: "zimn", Reason: "missing room id"}
	}
	date := normDate(in.Date)
	if date == "" {
		return domain.AvailabilitySlot{}, &domain.MappingError{Kind: domain.KindAvailability, Field: "date", Reason: "missing or malformed date"}
	}

	status := strings.ToLower(strings.TrimSpace(in.Status))
	switch status {
	case domain.AvailFree, domain.AvailBooked, domain.AvailBlocked:
	default:
		return domain.AvailabilitySlot{}, &domain.MappingError{
			Kind: domain.KindAvailability, Field: "status",
			Reason: fmt.Sprintf("unknown status %q", in.Status),
		}
	}

	bookingID := ""
	if in.Resn != 0 {
		bookingID = extID(int64(in.Resn))
	}
	return domain.AvailabilitySlot{
		Date:              date,
		RoomExternalID:    extID(roomID),
		Status:            status,
		BookingExternalID: bookingID,
		SyncedAt:          syncedAt,
	}, nil
}
