package handler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Freeeeeet/drivingschool_scheduler/internal/apperr"
	"github.com/Freeeeeet/drivingschool_scheduler/internal/service"
)

const monthLayout = "2006-01"

// pathID положительный int64 из пути; при ошибке ответ уже отправлен
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		Error(c, apperr.Clone(apperr.ErrValidation, fmt.Sprintf("%s must be a positive integer", name)))
		return 0, false
	}
	return id, true
}

// queryInt64 необязательный положительный int64 из query
func queryInt64(c *gin.Context, name string) (*int64, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, apperr.Clone(apperr.ErrValidation, fmt.Sprintf("%s must be a positive integer", name))
	}
	return &id, nil
}

// queryTime RFC3339 или календарная дата в зоне школы
func queryTime(c *gin.Context, name string, loc *time.Location) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.ParseInLocation(service.DateLayout, raw, loc)
	if err != nil {
		return nil, apperr.Clone(apperr.ErrValidation, fmt.Sprintf("%s must be RFC3339 or YYYY-MM-DD", name))
	}
	return &t, nil
}

// parseMonths "2024-01,2024-02"
func parseMonths(raw string, loc *time.Location) ([]time.Time, error) {
	var months []time.Time
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		m, err := time.ParseInLocation(monthLayout, part, loc)
		if err != nil {
			return nil, apperr.Clone(apperr.ErrValidation, fmt.Sprintf("invalid month %q, expected YYYY-MM", part))
		}
		months = append(months, m)
	}
	return months, nil
}
