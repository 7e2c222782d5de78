package handlers

import (
	"strconv"
	"strings"

	"bugtracker/internal/models"

	"github.com/gin-gonic/gin"
)

// ParseLimit reads the limit query param. Missing, invalid or non-positive values
// return 0 so the service applies the view default.
func ParseLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(strings.TrimSpace(c.Query("limit")))
	if err != nil || limit < 1 {
		return 0
	}
	return limit
}

// ParseFilters returns a map of non-empty trimmed query params for the given keys.
func ParseFilters(c *gin.Context, keys ...string) map[string]string {
	filters := make(map[string]string, len(keys))
	for _, key := range keys {
		if val := strings.TrimSpace(c.Query(key)); val != "" {
			filters[key] = val
		}
	}
	return filters
}

// parseListFilters reads the status and severity filters shared by the list views
func parseListFilters(c *gin.Context) (models.Status, models.Severity, error) {
	filters := ParseFilters(c, "status", "severity")
	status, err := models.ParseStatusFilter(filters["status"])
	if err != nil {
		return "", "", err
	}
	severity, err := models.ParseSeverityFilter(filters["severity"])
	if err != nil {
		return "", "", err
	}
	return status, severity, nil
}
