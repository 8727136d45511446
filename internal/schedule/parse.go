package schedule

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hireloop/hireloop/internal/model"
)

var weekdayNames = map[string]time.Weekday{
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
	"sunday": time.Sunday, "sun": time.Sunday,
}

var (
	wordRe = regexp.MustCompile(`[a-z]+`)
	hourRe = regexp.MustCompile(`\b([01]?[0-9]|2[0-3])(?::[0-5][0-9])?\s*(am|pm|a\.m\.|p\.m\.)?\b`)
)

// ParseWeekdays extracts day-name mentions ("friday", "tue") from a message,
// in order of appearance, without duplicates.
func ParseWeekdays(message string) []time.Weekday {
	seen := make(map[time.Weekday]bool)
	var out []time.Weekday
	for _, w := range wordRe.FindAllString(strings.ToLower(message), -1) {
		if wd, ok := weekdayNames[w]; ok && !seen[wd] {
			seen[wd] = true
			out = append(out, wd)
		}
	}
	return out
}

// ParsePeriod extracts a morning/afternoon preference from free text.
// It recognizes keyword families ("morning", "after lunch") and hour
// mentions ("10am", "at 15:00"). Ambiguous or absent time talk yields
// PreferNone — a bare small number like "2" is a slot ordinal, not a time.
func ParsePeriod(message string) model.TimePreference {
	msg := strings.ToLower(message)

	switch {
	case strings.Contains(msg, "morning"), strings.Contains(msg, "before noon"), strings.Contains(msg, "before lunch"):
		return model.PreferMorning
	case strings.Contains(msg, "afternoon"), strings.Contains(msg, "after lunch"), strings.Contains(msg, "evening"):
		return model.PreferAfternoon
	}

	m := hourRe.FindStringSubmatch(msg)
	if m == nil {
		return model.PreferNone
	}
	hour, err := strconv.Atoi(m[1])
	if err != nil {
		return model.PreferNone
	}
	meridiem := strings.ReplaceAll(m[2], ".", "")

	switch meridiem {
	case "am":
		return model.PreferMorning
	case "pm":
		return model.PreferAfternoon
	}

	// No am/pm marker: only unambiguous 24h hours count.
	switch {
	case hour >= MorningStartHour && hour < MorningEndHour:
		return model.PreferMorning
	case hour >= AfternoonStartHour && hour < AfternoonEndHour:
		return model.PreferAfternoon
	default:
		return model.PreferNone
	}
}

// MentionsTime reports whether the message contains any time or day talk.
// Used by intent matching to keep bare affirmations ("yes") separate from
// slot references ("yes, friday at 10").
func MentionsTime(message string) bool {
	if len(ParseWeekdays(message)) > 0 {
		return true
	}
	if ParsePeriod(message) != model.PreferNone {
		return true
	}
	msg := strings.ToLower(message)
	for _, kw := range []string{"time", "slot", "am", "pm"} {
		if containsWord(msg, kw) {
			return true
		}
	}
	return false
}

func containsWord(msg, word string) bool {
	for _, w := range wordRe.FindAllString(msg, -1) {
		if w == word {
			return true
		}
	}
	return false
}
