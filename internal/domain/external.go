package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// External bridge schemas. The property-management bridge has shipped
// two generations of field names (e.g. zimn vs zimm, name vs beze), and
// numeric fields arrive as JSON numbers or as strings, sometimes with a
// comma decimal separator. The structs below carry both aliases; the
// mappers pick the first populated one.

// FlexInt decodes an integer from a JSON number, a quoted number, or
// null (zero).
type FlexInt int64

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(bytes.Trim(b, `"`)))
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	// some payloads carry integral floats ("3.0")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = FlexInt(v)
	return nil
}

// FlexFloat additionally accepts comma decimals ("12,50").
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(bytes.Trim(b, `"`)))
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return err
	}
	*f = FlexFloat(v)
	return nil
}

type BridgeRoom struct {
	Zimn     FlexInt  `json:"zimn"`
	Zimm     FlexInt  `json:"zimm"` // legacy alias
	Name     string   `json:"name"`
	Beze     string   `json:"beze"` // legacy alias
	Caid     FlexInt  `json:"caid"`
	Catg     FlexInt  `json:"catg"` // legacy alias
	Bession  FlexInt  `json:"bession"`
	Bett     FlexInt  `json:"bett"` // legacy alias
	Extrabet FlexInt  `json:"extrabet"`
	Status   string   `json:"status"`
	Stat     *FlexInt `json:"stat"`
}

type BridgeCategory struct {
	Catg FlexInt `json:"catg"`
	Caid FlexInt `json:"caid"`
	Name string  `json:"name"`
	Beze string  `json:"beze"`
}

type BridgeGuest struct {
	Gast FlexInt `json:"gast"`
	Anre string  `json:"anre"`
	Vorn string  `json:"vorn"`
	Nacn string  `json:"nacn"`
	Mail string  `json:"mail"`
	Teln string  `json:"teln"`
	Stra string  `json:"stra"`
	Polz string  `json:"polz"`
	Ortb string  `json:"ortb"`
	Land string  `json:"land"`
	Gebd string  `json:"gebd"`
}

type BridgeBookingRoom struct {
	Buzn     FlexInt   `json:"buzn"`
	Zimn     FlexInt   `json:"zimn"`
	Zimm     FlexInt   `json:"zimm"`
	RoomName string    `json:"room_name"`
	Datea    string    `json:"datea"`
	Datee    string    `json:"datee"`
	Vndt     string    `json:"vndt"` // legacy check-in alias
	Bsdt     string    `json:"bsdt"` // legacy check-out alias
	Nights   FlexInt   `json:"nights"`
	Pers     FlexInt   `json:"pers"`
	Kndr     FlexInt   `json:"kndr"`
	Pession  FlexInt   `json:"pession"`
	Preis    FlexFloat `json:"preis"`
}

type BridgeBooking struct {
	Resn        FlexInt             `json:"resn"`
	Gast        FlexInt             `json:"gast"`
	Stat        FlexInt             `json:"stat"`
	Andf        string              `json:"andf"`
	Ande        string              `json:"ande"`
	Chid        FlexInt             `json:"chid"`
	ChannelName string              `json:"channel_name"`
	Anre        string              `json:"anre"`
	Vorn        string              `json:"vorn"`
	Nacn        string              `json:"nacn"`
	Mail        string              `json:"mail"`
	Teln        string              `json:"teln"`
	Rooms       []BridgeBookingRoom `json:"rooms"`
}

type BridgeArticle struct {
	Artn FlexInt   `json:"artn"`
	Beze string    `json:"beze"`
	Prei FlexFloat `json:"prei"`
	Knto FlexInt   `json:"knto"`
}

type BridgeChannel struct {
	Chid FlexInt `json:"chid"`
	Name string  `json:"name"`
}

type BridgeAvailabilitySlot struct {
	Date     string  `json:"date"`
	Zimn     FlexInt `json:"zimn"`
	Zimm     FlexInt `json:"zimm"`
	RoomName string  `json:"room_name"`
	Status   string  `json:"status"`
	Resn     FlexInt `json:"resn"`
}

// BridgeStats: aggregate counts the bridge reports for operator
// display.
type BridgeStats struct {
	TotalGuests   FlexInt         `json:"total_guests"`
	TotalBookings FlexInt         `json:"total_bookings"`
	TotalRooms    FlexInt         `json:"total_rooms"`
	Categories    FlexInt         `json:"categories"`
	Channels      []BridgeChannel `json:"channels"`
}

// compile-time check that the flex types implement json.Unmarshaler
var (
	_ json.Unmarshaler = (*FlexInt)(nil)
	_ json.Unmarshaler = (*FlexFloat)(nil)
)
