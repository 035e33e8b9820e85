package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"conversation-analytics/backend/internal/models"
	"conversation-analytics/backend/internal/service"
	apperrors "conversation-analytics/backend/pkg/errors"
	"conversation-analytics/backend/pkg/middleware"
	"conversation-analytics/backend/pkg/query"

	"github.com/gin-gonic/gin"
)

const dateLayout = "2006-01-02"

// Envelope is the body of every successful response
type Envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// Limits bounds page sizes for list and search endpoints
type Limits struct {
	Page          query.Limits
	SearchDefault int
	SearchMax     int
}

// DefaultLimits matches the configuration defaults
var DefaultLimits = Limits{Page: query.DefaultLimits, SearchDefault: 10, SearchMax: 50}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

func created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

// fail pushes err to the error middleware
func fail(c *gin.Context, err error) {
	c.Error(err)
	c.Abort()
}

// tenant returns the tenant resolved by the guard, failing the request otherwise
func tenant(c *gin.Context) (int64, bool) {
	id, err := middleware.TenantID(c)
	if err != nil {
		fail(c, err)
		return 0, false
	}
	return id, true
}

func invalidInput(field, message string, value any) *apperrors.AppError {
	return apperrors.BadRequestWithDetails(apperrors.CodeInvalidInput, message, map[string]any{field: value})
}

// pathID parses a positive integer path parameter
func pathID(c *gin.Context, name string) (int64, error) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, invalidInput(name, name+" must be a positive integer", raw)
	}
	return id, nil
}

// optionalID parses a positive integer query parameter; absent yields nil
func optionalID(c *gin.Context, name string) (*int64, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return nil, invalidInput(name, name+" must be a positive integer", raw)
	}
	return &id, nil
}

// parseStatus accepts an integer session status 0..4; blank yields nil
func parseStatus(raw string) (*models.SessionStatus, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	status := models.SessionStatus(n)
	if err != nil || !status.Valid() {
		return nil, apperrors.BadRequestWithDetails(apperrors.CodeInvalidStatus,
			"status must be an integer between 0 and 4", map[string]any{"status": raw})
	}
	return &status, nil
}

// parseDateRange reads start_date/end_date as YYYY-MM-DD; the end date is
// inclusive, so the range runs to the following midnight.
func parseDateRange(c *gin.Context) (service.DateRange, error) {
	var r service.DateRange
	if raw := strings.TrimSpace(c.Query("start_date")); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			return r, invalidInput("start_date", "start_date must be YYYY-MM-DD", raw)
		}
		r.From = t
	}
	if raw := strings.TrimSpace(c.Query("end_date")); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			return r, invalidInput("end_date", "end_date must be YYYY-MM-DD", raw)
		}
		r.To = t.AddDate(0, 0, 1)
	}
	if !r.From.IsZero() && !r.To.IsZero() && !r.From.Before(r.To) {
		return r, apperrors.BadRequestWithDetails(apperrors.CodeInvalidInput,
			"start_date must not be after end_date",
			map[string]any{"start_date": c.Query("start_date"), "end_date": c.Query("end_date")})
	}
	return r, nil
}

func optionalFloat(c *gin.Context, name string) (*float64, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, invalidInput(name, name+" must be a number", raw)
	}
	return &v, nil
}

func optionalInt(c *gin.Context, name string) (*int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, invalidInput(name, name+" must be an integer", raw)
	}
	return &v, nil
}

func (l Limits) page(c *gin.Context) (query.Page, error) {
	return query.ParsePage(c.Query("page"), c.Query("limit"), l.Page)
}

func (l Limits) search(c *gin.Context) (int, error) {
	return query.ParseLimit(c.Query("limit"), l.SearchDefault, l.SearchMax)
}
