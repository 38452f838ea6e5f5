package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Default query limits.
const (
	defaultMaxLimit     = 500
	defaultHistoryLimit = 20
)

var (
	errInvalidLimit = errors.New("limit must be a positive integer")
	errInvalidDate  = errors.New("date must be YYYY-MM-DD")
)

// parseLimit reads ?limit=, falling back to def when absent. Values above
// maxLimit are rejected rather than clamped.
func parseLimit(r *http.Request, def, maxLimit int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return min(def, maxLimit), nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errInvalidLimit
	}
	if n > maxLimit {
		return 0, fmt.Errorf("limit %d exceeds maximum %d", n, maxLimit)
	}
	return n, nil
}

func parseDate(raw string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, errInvalidDate
	}
	return t, nil
}

func queryParam(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}
