package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"property-marketplace/internal/database"
	"property-marketplace/internal/models"
)

// queryInt parses an integer query parameter, falling back on absence or garbage
func queryInt(c *gin.Context, key string, fallback int) int {
	if v, err := strconv.Atoi(c.Query(key)); err == nil {
		return v
	}
	return fallback
}

func queryIntPtr(c *gin.Context, key string) *int {
	if s := c.Query(key); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			return &v
		}
	}
	return nil
}

func queryFloatPtr(c *gin.Context, key string) *float64 {
	if s := c.Query(key); s != "" {
		if v, err := strconv.ParseFloat(s, 64); err == nil && v >= 0 {
			return &v
		}
	}
	return nil
}

// propertyFilters reads the shared listing query parameters. Unknown type and
// status values are ignored rather than matching nothing.
func propertyFilters(c *gin.Context) database.PropertyFilters {
	filters := database.PropertyFilters{
		Query:  c.Query("q"),
		SortBy: c.DefaultQuery("sort", database.SortNewest),
		Limit:  queryInt(c, "limit", database.DefaultQueryLimit),
		Offset: queryInt(c, "offset", 0),
	}

	if t := models.PropertyType(c.Query("type")); t.Valid() {
		filters.Type = t
	}
	if s := models.ListingStatus(c.Query("status")); s.Valid() {
		filters.Status = s
	}

	// Price range
	filters.MinPrice = queryFloatPtr(c, "minPrice")
	filters.MaxPrice = queryFloatPtr(c, "maxPrice")

	filters.MinBedrooms = queryIntPtr(c, "bedrooms")
	filters.MinBathrooms = queryIntPtr(c, "bathrooms")

	return filters.Normalize()
}
