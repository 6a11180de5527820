package models

// PlaceCategory is the fixed enumeration a place is tagged with.
type PlaceCategory string

const (
	PlaceRestaurant PlaceCategory = "RESTAURANT"
	PlaceCafe       PlaceCategory = "CAFE"
	PlaceBar        PlaceCategory = "BAR"
	PlaceClub       PlaceCategory = "CLUB"
	PlaceMuseum     PlaceCategory = "MUSEUM"
	PlaceGallery    PlaceCategory = "GALLERY"
	PlaceTheater    PlaceCategory = "THEATER"
	PlaceMonument   PlaceCategory = "MONUMENT"
	PlacePark       PlaceCategory = "PARK"
	PlaceBeach      PlaceCategory = "BEACH"
	PlaceTrail      PlaceCategory = "TRAIL"
	PlaceViewpoint  PlaceCategory = "VIEWPOINT"
	PlaceMarket     PlaceCategory = "MARKET"
	PlaceShop       PlaceCategory = "SHOP"
	PlaceHotel      PlaceCategory = "HOTEL"
	PlaceSpa        PlaceCategory = "SPA"
)

// InterestCategory is the coarser category declared interests are keyed by.
type InterestCategory string

const (
	InterestFoodDrink      InterestCategory = "FOOD_DRINK"
	InterestNightlife      InterestCategory = "NIGHTLIFE"
	InterestArtCulture     InterestCategory = "ART_CULTURE"
	InterestHistory        InterestCategory = "HISTORY"
	InterestOutdoorsNature InterestCategory = "OUTDOORS_NATURE"
	InterestShopping       InterestCategory = "SHOPPING"
	InterestStays          InterestCategory = "STAYS"
	InterestWellness       InterestCategory = "WELLNESS"
)

// placeToInterest bridges behavioral signals (keyed by place category) with
// declared interests (keyed by interest category). Hand-authored and fixed.
var placeToInterest = map[PlaceCategory]InterestCategory{
	PlaceRestaurant: InterestFoodDrink,
	PlaceCafe:       InterestFoodDrink,
	PlaceMarket:     InterestFoodDrink,
	PlaceBar:        InterestNightlife,
	PlaceClub:       InterestNightlife,
	PlaceMuseum:     InterestArtCulture,
	PlaceGallery:    InterestArtCulture,
	PlaceTheater:    InterestArtCulture,
	PlaceMonument:   InterestHistory,
	PlacePark:       InterestOutdoorsNature,
	PlaceBeach:      InterestOutdoorsNature,
	PlaceTrail:      InterestOutdoorsNature,
	PlaceViewpoint:  InterestOutdoorsNature,
	PlaceShop:       InterestShopping,
	PlaceHotel:      InterestStays,
	PlaceSpa:        InterestWellness,
}

// InterestCategoryFor returns the interest category a place category maps to.
func InterestCategoryFor(pc PlaceCategory) (InterestCategory, bool) {
	ic, ok := placeToInterest[pc]
	return ic, ok
}
