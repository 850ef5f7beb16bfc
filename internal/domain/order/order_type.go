package order

import "strings"

// Type is the internal order-type enum
type Type string

const (
	TypeDineIn    Type = "dine_in"
	TypeTakeout   Type = "takeout"
	TypeDelivery  Type = "delivery"
	TypeDriveThru Type = "drive_thru"
	TypeCatering  Type = "catering"
)

// saleTypeVocabulary maps the polymorphic POS sale-type vocabulary, including
// synonyms and legacy numeric codes, onto the internal enum
var saleTypeVocabulary = map[string]Type{
	"dine_in":     TypeDineIn,
	"dine-in":     TypeDineIn,
	"dinein":      TypeDineIn,
	"comedor":     TypeDineIn,
	"mesa":        TypeDineIn,
	"salon":       TypeDineIn,
	"local":       TypeDineIn,
	"1":           TypeDineIn,
	"takeout":     TypeTakeout,
	"take_out":    TypeTakeout,
	"take-away":   TypeTakeout,
	"takeaway":    TypeTakeout,
	"to_go":       TypeTakeout,
	"togo":        TypeTakeout,
	"llevar":      TypeTakeout,
	"para_llevar": TypeTakeout,
	"pickup":      TypeTakeout,
	"2":           TypeTakeout,
	"delivery":    TypeDelivery,
	"domicilio":   TypeDelivery,
	"reparto":     TypeDelivery,
	"envio":       TypeDelivery,
	"3":           TypeDelivery,
	"drive_thru":  TypeDriveThru,
	"drive-thru":  TypeDriveThru,
	"drivethru":   TypeDriveThru,
	"auto":        TypeDriveThru,
	"4":           TypeDriveThru,
	"catering":    TypeCatering,
	"banquete":    TypeCatering,
	"evento":      TypeCatering,
	"5":           TypeCatering,
}

// NormalizeSaleType maps a raw POS sale-type value to the internal order type.
// Unknown inputs default to dine_in; the second return reports whether the
// input was recognized so callers can log vocabulary gaps.
func NormalizeSaleType(raw string) (Type, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.ReplaceAll(key, " ", "_")
	if t, ok := saleTypeVocabulary[key]; ok {
		return t, true
	}
	return TypeDineIn, false
}
