package conversation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// n8n schedule triggers take standard five-field expressions.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

var (
	cronLike     = regexp.MustCompile(`^[\d*/,\-]+\s+[\d*/,\-]+(\s+[\d*/,\-?a-z]+){3}$`)
	everyMinutes = regexp.MustCompile(`every\s+(\d+)\s*(?:minutes?|mins?)`)
	everyHours   = regexp.MustCompile(`every\s+(\d+)\s*(?:hours?|hrs?)`)
	atTime       = regexp.MustCompile(`\bat\s+(\d{1,2})(?::(\d{2}))?\s*(am|pm)?`)
)

var descriptors = map[string]string{
	"@hourly":   "0 * * * *",
	"@daily":    "0 0 * * *",
	"@midnight": "0 0 * * *",
	"@weekly":   "0 0 * * 0",
	"@monthly":  "0 0 1 * *",
	"@yearly":   "0 0 1 1 *",
	"@annually": "0 0 1 1 *",
}

var weekdays = []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

const defaultHour = 9

// FrequencyToCron maps a frequency answer to a five-field cron expression.
// Text that reads as a cron expression must parse; descriptive text that names
// no recognizable schedule yields an empty expression.
func FrequencyToCron(answer string) (string, error) {
	text := strings.ToLower(strings.TrimSpace(answer))

	if expr, ok := descriptors[text]; ok {
		return expr, nil
	}

	if cronLike.MatchString(text) {
		if _, err := cronParser.Parse(text); err != nil {
			return "", invalidAnswer("%q is not a valid cron expression: %v", answer, err)
		}

		return text, nil
	}

	expr, err := describeSchedule(text)
	if err != nil || expr == "" {
		return "", err
	}

	if _, err := cronParser.Parse(expr); err != nil {
		return "", invalidAnswer("%q does not describe a valid schedule: %v", answer, err)
	}

	return expr, nil
}

func describeSchedule(text string) (string, error) {
	if m := everyMinutes.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		if n < 1 || n > 59 {
			return "", invalidAnswer("minute interval %d is out of range", n)
		}

		return fmt.Sprintf("*/%d * * * *", n), nil
	}

	if m := everyHours.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		if n < 1 || n > 23 {
			return "", invalidAnswer("hour interval %d is out of range", n)
		}

		return fmt.Sprintf("0 */%d * * *", n), nil
	}

	if strings.Contains(text, "every hour") || strings.Contains(text, "hourly") {
		return "0 * * * *", nil
	}

	hour, minute, err := timeOfDay(text)
	if err != nil {
		return "", err
	}

	for i, day := range weekdays {
		if strings.Contains(text, day) {
			return fmt.Sprintf("%d %d * * %d", minute, hour, i), nil
		}
	}

	switch {
	case strings.Contains(text, "weekday"):
		return fmt.Sprintf("%d %d * * 1-5", minute, hour), nil
	case strings.Contains(text, "week"):
		return fmt.Sprintf("%d %d * * 1", minute, hour), nil
	case strings.Contains(text, "month"):
		return fmt.Sprintf("%d %d 1 * *", minute, hour), nil
	case strings.Contains(text, "daily"), strings.Contains(text, "day"),
		strings.Contains(text, "morning"), strings.Contains(text, "nightly"):
		return fmt.Sprintf("%d %d * * *", minute, hour), nil
	}

	return "", nil
}

// timeOfDay reads "at 8", "at 8:30" or "at 8:30pm", defaulting to 09:00.
func timeOfDay(text string) (hour, minute int, err error) {
	m := atTime.FindStringSubmatch(text)
	if m == nil {
		if strings.Contains(text, "nightly") || strings.Contains(text, "midnight") {
			return 0, 0, nil
		}

		return defaultHour, 0, nil
	}

	hour, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}

	switch m[3] {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}

	if hour > 23 || minute > 59 {
		return 0, 0, invalidAnswer("%s is not a valid time of day", strings.TrimSpace(m[0]))
	}

	return hour, minute, nil
}

// NextRun is the first activation of expr after now in the named zone, or the
// zero time when the expression does not parse.
func NextRun(expr, timezone string, now time.Time) time.Time {
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}
	}

	if loc, err := time.LoadLocation(timezone); err == nil {
		now = now.In(loc)
	}

	return schedule.Next(now)
}
