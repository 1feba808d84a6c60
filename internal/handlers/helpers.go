package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	domain "github.com/paperloft/api/internal/domain"
	"github.com/paperloft/api/internal/platform/auth"
	"github.com/paperloft/api/internal/platform/pagination"
	"github.com/paperloft/api/internal/services"
)

var (
	errEmptyBody    = errors.New("request body is empty")
	errBodyTooLarge = errors.New("request body too large")
)

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = 64 * 1024
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePointer(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

// parseFilterValues splits repeated and comma separated query values into a
// deduplicated lower-cased list.
func parseFilterValues(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	filters := make([]string, 0, len(values))
	for _, raw := range values {
		for _, part := range strings.Split(raw, ",") {
			trimmed := strings.ToLower(strings.TrimSpace(part))
			if trimmed == "" {
				continue
			}
			if _, exists := seen[trimmed]; exists {
				continue
			}
			seen[trimmed] = struct{}{}
			filters = append(filters, trimmed)
		}
	}
	return filters
}

func parseTimeParam(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("timestamp is empty")
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts.UTC(), nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts.UTC(), nil
	}
	return time.Time{}, errors.New("must be RFC3339 timestamp")
}

// parsePlacedRange reads the placed_from and placed_to query parameters into
// an inclusive creation-time range.
func parsePlacedRange(r *http.Request) (domain.RangeQuery[time.Time], error) {
	var placed domain.RangeQuery[time.Time]
	if raw := strings.TrimSpace(r.URL.Query().Get("placed_from")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			return domain.RangeQuery[time.Time]{}, errors.New("placed_from " + err.Error())
		}
		placed.From = &ts
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("placed_to")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			return domain.RangeQuery[time.Time]{}, errors.New("placed_to " + err.Error())
		}
		placed.To = &ts
	}
	return placed, nil
}

// parsePageSize reads page_size from the query, clamping to [1, max] and
// falling back to def for missing or non-positive values.
func parsePageSize(r *http.Request, def, max int) (int, error) {
	params, err := pagination.FromRequest(r, pagination.Options{
		DefaultPageSize: def,
		MaxPageSize:     max,
	})
	if err != nil {
		return 0, errors.New("page_size must be an integer")
	}
	return params.PageSize, nil
}

func pageTokenParam(r *http.Request) string {
	return pagination.TokenFromRequest(r)
}

// actorFromContext resolves the authenticated caller into a service actor.
// Staff and admin roles both grant the elevated flag.
func actorFromContext(r *http.Request) (services.Actor, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		return services.Actor{}, false
	}
	return services.Actor{
		ID:    strings.TrimSpace(identity.UID),
		Admin: identity.HasAnyRole(auth.RoleStaff, auth.RoleAdmin),
	}, true
}
