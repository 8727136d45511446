// Package intent turns one inbound chat message plus the current conversation
// context into a ranked intent with an optional structured payload.
//
// Pattern categories are evaluated as an explicit ordered list, most specific
// first: the first category that matches becomes the primary intent and every
// later match is appended as secondary. The ordering is load-bearing — a bare
// "2" while slots are on offer must resolve as a slot selection even though a
// looser category might also match fragments of the message.
package intent

import (
	"strings"

	"github.com/hireloop/hireloop/internal/model"
	"github.com/hireloop/hireloop/internal/schedule"
)

// Intent tags, in priority order.
const (
	SelectSlot          = "select_slot"
	ConfirmBooking      = "confirm_booking"
	MorningPreference   = "morning_preference"
	AfternoonPreference = "afternoon_preference"
	Reschedule          = "reschedule"
	AskQuestions        = "ask_questions"
	ProvideAvailability = "provide_availability"
	ScheduleInterview   = "schedule_interview"
	General             = "general"
)

// Confidence levels: matched categories are firm, the general fallback is not.
const (
	matchedConfidence = 0.8
	generalConfidence = 0.3
)

// Context is the slice of conversation state the classifier needs.
type Context struct {
	Stage          model.Stage
	ShownSlots     []model.SlotRef
	TimePreference model.TimePreference
}

// SlotSelection carries a resolved selection against the shown slots.
// Downstream flow logic must reuse Slot exactly — never regenerate
// availability to find "the same" slot again.
type SlotSelection struct {
	Index int // zero-based index into Context.ShownSlots
	Slot  model.SlotRef
}

// Result is the ranked classification of one message.
type Result struct {
	Primary         string
	Secondary       []string
	Confidence      float64
	SlotSelection   *SlotSelection
	NeedsEscalation bool
}

// Classifier matches messages against the ordered pattern categories.
// The zero value is ready to use.
type Classifier struct{}

// New returns a Classifier.
func New() *Classifier { return &Classifier{} }

// matcher is one (predicate, tag) pair in the priority list.
type matcher struct {
	tag   string
	match func(msg string, c Context) (*SlotSelection, bool)
}

func plain(fn func(msg string, c Context) bool) func(string, Context) (*SlotSelection, bool) {
	return func(msg string, c Context) (*SlotSelection, bool) {
		return nil, fn(msg, c)
	}
}

var matchers = []matcher{
	{SelectSlot, matchSelectSlot},
	{ConfirmBooking, plain(matchConfirm)},
	{MorningPreference, plain(matchMorning)},
	{AfternoonPreference, plain(matchAfternoon)},
	{Reschedule, plain(matchReschedule)},
	{AskQuestions, plain(matchQuestion)},
	{ProvideAvailability, plain(matchAvailability)},
	{ScheduleInterview, plain(matchScheduleRequest)},
}

// Classify evaluates the pattern categories top to bottom.
func (cl *Classifier) Classify(message string, c Context) Result {
	msg := strings.ToLower(strings.TrimSpace(message))

	res := Result{Primary: General, Confidence: generalConfidence}
	for _, m := range matchers {
		sel, ok := m.match(msg, c)
		if !ok {
			continue
		}
		if res.Primary == General {
			res.Primary = m.tag
			res.Confidence = matchedConfidence
			res.SlotSelection = sel
		} else {
			res.Secondary = append(res.Secondary, m.tag)
		}
		if m.tag == Reschedule {
			res.NeedsEscalation = true
		}
	}
	return res
}

// ── Category predicates, most specific first ──────────────────────────────────

var ordinalWords = map[string]int{
	"one": 1, "first": 1, "1st": 1,
	"two": 2, "second": 2, "2nd": 2,
	"three": 3, "third": 3, "3rd": 3,
	"four": 4, "fourth": 4, "4th": 4,
	"five": 5, "fifth": 5, "5th": 5,
}

// matchSelectSlot resolves a slot choice against the slots actually shown.
// Only attempted while slots are on offer; recognizes a bare ordinal, an
// "option N" / "slot N" / ordinal-word phrase, and a day-name (+ optional
// period) that singles out one shown slot.
func matchSelectSlot(msg string, c Context) (*SlotSelection, bool) {
	if (c.Stage != model.StageSlotsOffered && c.Stage != model.StageSlotSelection) || len(c.ShownSlots) == 0 {
		return nil, false
	}

	if n, ok := parseOrdinal(msg); ok && n >= 1 && n <= len(c.ShownSlots) {
		return &SlotSelection{Index: n - 1, Slot: c.ShownSlots[n-1]}, true
	}

	// Day-name (+ optional period) resolved against the shown slots — not a
	// free-date request, which is a preference, not a selection.
	days := schedule.ParseWeekdays(msg)
	if len(days) != 1 {
		return nil, false
	}
	pref := schedule.ParsePeriod(msg)
	for i, s := range c.ShownSlots {
		if s.Weekday() == days[0] && schedule.InPeriod(s.Hour(), pref) {
			return &SlotSelection{Index: i, Slot: s}, true
		}
	}
	return nil, false
}

// parseOrdinal extracts a slot ordinal: "2", "option 2", "slot two", "the second one".
func parseOrdinal(msg string) (int, bool) {
	fields := strings.Fields(msg)

	// A bare ordinal is the whole message.
	if len(fields) == 1 {
		if n, ok := ordinalValue(fields[0]); ok {
			return n, true
		}
	}

	for i, f := range fields {
		switch strings.Trim(f, ".,!?") {
		case "option", "slot", "number":
			if i+1 < len(fields) {
				if n, ok := ordinalValue(strings.Trim(fields[i+1], ".,!?")); ok {
					return n, true
				}
			}
		default:
			if n, ok := ordinalWords[strings.Trim(f, ".,!?")]; ok {
				return n, true
			}
		}
	}
	return 0, false
}

func ordinalValue(tok string) (int, bool) {
	if len(tok) == 1 && tok[0] >= '1' && tok[0] <= '9' {
		return int(tok[0] - '0'), true
	}
	if n, ok := ordinalWords[tok]; ok {
		return n, true
	}
	return 0, false
}

var affirmativeWords = []string{
	"yes", "yep", "yeah", "sure", "ok", "okay", "confirm", "confirmed",
	"perfect", "great", "correct",
}

var affirmativePhrases = []string{"book it", "sounds good", "that works"}

// matchConfirm accepts affirmative tokens without an accompanying time or
// slot reference, so it never steals a message that names a slot.
func matchConfirm(msg string, _ Context) bool {
	if schedule.MentionsTime(msg) {
		return false
	}
	if _, ok := parseOrdinal(msg); ok {
		return false
	}
	for _, p := range affirmativePhrases {
		if strings.Contains(msg, p) {
			return true
		}
	}
	for _, f := range strings.Fields(msg) {
		f = strings.Trim(f, ".,!?")
		for _, a := range affirmativeWords {
			if f == a {
				return true
			}
		}
	}
	return false
}

func matchMorning(msg string, _ Context) bool {
	return schedule.ParsePeriod(msg) == model.PreferMorning
}

func matchAfternoon(msg string, _ Context) bool {
	return schedule.ParsePeriod(msg) == model.PreferAfternoon
}

var rescheduleTerms = []string{
	"reschedule", "resched", "cancel", "change the time", "change my interview",
	"different time", "another time", "move the interview", "move my interview",
	"can't make", "cannot make", "won't make",
}

func matchReschedule(msg string, _ Context) bool {
	for _, t := range rescheduleTerms {
		if strings.Contains(msg, t) {
			return true
		}
	}
	return false
}

var questionWords = []string{"what", "when", "where", "how", "why", "who", "which"}

func matchQuestion(msg string, _ Context) bool {
	if strings.Contains(msg, "?") {
		return true
	}
	fields := strings.Fields(msg)
	if len(fields) == 0 {
		return false
	}
	for _, q := range questionWords {
		if fields[0] == q {
			return true
		}
	}
	return false
}

var availabilityTerms = []string{
	"available", "availability", "free on", "i'm free", "im free", "i can do",
	"works for me", "any day", "anytime", "any time",
}

func matchAvailability(msg string, _ Context) bool {
	for _, t := range availabilityTerms {
		if strings.Contains(msg, t) {
			return true
		}
	}
	// A bare day mention ("what about friday") is an availability statement.
	return len(schedule.ParseWeekdays(msg)) > 0
}

var scheduleTerms = []string{"schedule", "interview", "book", "appointment", "meet"}

func matchScheduleRequest(msg string, _ Context) bool {
	for _, t := range scheduleTerms {
		if strings.Contains(msg, t) {
			return true
		}
	}
	return false
}
