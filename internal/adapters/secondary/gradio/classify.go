package gradio

import (
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"image3d-service/internal/core/domain"
)

var (
	quotaPattern     = regexp.MustCompile(`(?i)exceeded your (?:\w+ )?(?:gpu )?quota`)
	waitTimePattern  = regexp.MustCompile(`(?i)(?:try again|retry) in (\d+:\d{1,2}:\d{1,2})`)
	rateLimitPattern = regexp.MustCompile(`(?i)rate[ _-]?limit|too many requests`)
)

// Classify maps a failed response onto the domain error taxonomy. Quota
// exhaustion takes precedence over rate limiting when a response carries both.
func Classify(status int, message string) error {
	message = strings.TrimSpace(message)

	if quotaPattern.MatchString(message) {
		qe := &domain.QuotaExceededError{Message: message}
		if m := waitTimePattern.FindStringSubmatch(message); m != nil {
			qe.WaitText = m[1]
			qe.WaitTime = parseClock(m[1])
		}
		return qe
	}

	if status == http.StatusTooManyRequests || rateLimitPattern.MatchString(message) {
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, orStatus(message, status))
	}

	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %s", domain.ErrServiceUnreachable, orStatus(message, status))
	}

	return fmt.Errorf("%w: %s", domain.ErrRemoteInference, orStatus(message, status))
}

// parseClock parses H:MM:SS into a duration.
func parseClock(s string) time.Duration {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0
	}
	var total time.Duration
	units := []time.Duration{time.Hour, time.Minute, time.Second}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0
		}
		total += time.Duration(n) * units[i]
	}
	return total
}

func orStatus(message string, status int) string {
	if message != "" {
		return message
	}
	if status == 0 {
		return "no details"
	}
	return fmt.Sprintf("status %d", status)
}
