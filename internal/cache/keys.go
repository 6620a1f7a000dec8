package cache

import (
	"strconv"
	"strings"

	"github.com/geocoder89/carshare/internal/domain/car"
)

// ListingsKey builds a stable key for a listings query. The unfiltered list
// and each distinct search get their own entry.
func ListingsKey(filter car.SearchFilter) string {
	loc := ""
	if filter.Location != nil {
		loc = strings.ToLower(strings.TrimSpace(*filter.Location))
	}
	price := ""
	if filter.MaxPrice != nil {
		price = strconv.FormatFloat(*filter.MaxPrice, 'f', -1, 64)
	}

	return "cars:list:v1:location=" + loc +
		":max_price=" + price
}
