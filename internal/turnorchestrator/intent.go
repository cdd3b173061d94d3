package turnorchestrator

import (
	"regexp"
	"strings"
	"time"

	"github.com/auroraspa/receptionist/internal/services"
	"github.com/auroraspa/receptionist/internal/spaclock"
)

// bookingIntentRE matches the explicit verbs spec §4.4 calls out as
// preemptive-availability triggers.
var bookingIntentRE = regexp.MustCompile(`(?i)\b(book|schedule|appointment|availability|opening|openings|slot|slots|reschedule)\b`)

// HasBookingIntent reports whether the message crosses the lexical
// booking-intent threshold.
func HasBookingIntent(content string) bool {
	return bookingIntentRE.MatchString(content)
}

var relativeDateWords = map[string]int{
	"today":    0,
	"tomorrow": 1,
}

var dateRE = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// ExtractServiceAndDate makes a best-effort attempt to pull a service_type
// and an ISO date out of free text, for the preemptive availability check.
// It returns ok=false if either cannot be determined with confidence.
func ExtractServiceAndDate(content string, clock *spaclock.Clock, now time.Time) (serviceType, date string, ok bool) {
	lower := strings.ToLower(content)

	for _, svc := range services.All() {
		if strings.Contains(lower, strings.ToLower(svc.DisplayName)) || strings.Contains(lower, svc.Key) {
			serviceType = svc.Key
			break
		}
	}
	if serviceType == "" {
		return "", "", false
	}

	if m := dateRE.FindString(content); m != "" {
		date = m
	} else {
		for word, offsetDays := range relativeDateWords {
			if strings.Contains(lower, word) {
				date = now.In(clock.Location()).AddDate(0, 0, offsetDays).Format(spaclock.ISODate)
				break
			}
		}
	}
	if date == "" {
		return "", "", false
	}

	return serviceType, date, true
}
