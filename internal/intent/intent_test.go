package intent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hireloop/hireloop/internal/model"
)

func shownSlots() []model.SlotRef {
	// Tue 10:00, Wed 14:00, Fri 09:30.
	return []model.SlotRef{
		{Date: time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), Time: "10:00", Label: "Tuesday, March 3 at 10:00"},
		{Date: time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), Time: "14:00", Label: "Wednesday, March 4 at 14:00"},
		{Date: time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC), Time: "09:30", Label: "Friday, March 6 at 09:30"},
	}
}

func offerCtx() Context {
	return Context{Stage: model.StageSlotsOffered, ShownSlots: shownSlots()}
}

func TestBareOrdinalSelectsSlot(t *testing.T) {
	cl := New()

	res := cl.Classify("2", offerCtx())

	assert.Equal(t, SelectSlot, res.Primary)
	require.NotNil(t, res.SlotSelection)
	assert.Equal(t, 1, res.SlotSelection.Index)
	assert.Equal(t, "14:00", res.SlotSelection.Slot.Time)
	assert.InDelta(t, 0.8, res.Confidence, 0.001)
}

func TestOrdinalPhrases(t *testing.T) {
	cl := New()

	tests := []struct {
		msg  string
		want int // zero-based index
	}{
		{"option 1", 0},
		{"slot two", 1},
		{"the third one", 2},
		{"number 3 please", 2},
		{"I'll take the first.", 0},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			res := cl.Classify(tt.msg, offerCtx())
			require.NotNil(t, res.SlotSelection, "message %q should select a slot", tt.msg)
			assert.Equal(t, tt.want, res.SlotSelection.Index)
		})
	}
}

func TestDayNameResolvesAgainstShownSlots(t *testing.T) {
	cl := New()

	res := cl.Classify("friday works", offerCtx())

	assert.Equal(t, SelectSlot, res.Primary)
	require.NotNil(t, res.SlotSelection)
	assert.Equal(t, 2, res.SlotSelection.Index)
}

func TestDayNameOutsideOfferIsNotSelection(t *testing.T) {
	cl := New()

	// Same message, but no slots on offer: a preference, not a selection.
	res := cl.Classify("friday works", Context{Stage: model.StageTimePreference})

	assert.Equal(t, ProvideAvailability, res.Primary)
	assert.Nil(t, res.SlotSelection)
}

func TestOrdinalOutOfRangeFallsThrough(t *testing.T) {
	cl := New()

	res := cl.Classify("7", offerCtx())

	assert.NotEqual(t, SelectSlot, res.Primary)
	assert.Nil(t, res.SlotSelection)
}

func TestConfirmDoesNotStealTimedMessages(t *testing.T) {
	cl := New()

	// Affirmative plus a period mention must classify as a preference,
	// not a confirmation.
	res := cl.Classify("yes, morning works best", Context{})
	assert.Equal(t, MorningPreference, res.Primary)
	assert.NotContains(t, res.Secondary, ConfirmBooking)

	// A plain affirmative confirms.
	res = cl.Classify("sounds good!", Context{})
	assert.Equal(t, ConfirmBooking, res.Primary)
}

func TestPreferenceTags(t *testing.T) {
	cl := New()

	assert.Equal(t, MorningPreference, cl.Classify("morning please", Context{}).Primary)
	assert.Equal(t, AfternoonPreference, cl.Classify("I prefer the afternoon", Context{}).Primary)
	// Bare-hour bands map onto periods too.
	assert.Equal(t, MorningPreference, cl.Classify("sometime around 10am", Context{}).Primary)
}

func TestRescheduleSetsEscalationFlag(t *testing.T) {
	cl := New()

	res := cl.Classify("I need to reschedule my interview", Context{})

	assert.Equal(t, Reschedule, res.Primary)
	assert.True(t, res.NeedsEscalation)
	assert.Contains(t, res.Secondary, ScheduleInterview) // "interview" also matches
}

func TestRescheduleFlagSurvivesAsSecondary(t *testing.T) {
	cl := New()

	// A higher-priority category wins primary, but the escalation flag is
	// still raised when reschedule matches anywhere in the ranking.
	res := cl.Classify("yes but I need to cancel", Context{})

	assert.Equal(t, ConfirmBooking, res.Primary)
	assert.Contains(t, res.Secondary, Reschedule)
	assert.True(t, res.NeedsEscalation)
}

func TestQuestionAndAvailability(t *testing.T) {
	cl := New()

	assert.Equal(t, AskQuestions, cl.Classify("where is the office?", Context{}).Primary)
	assert.Equal(t, AskQuestions, cl.Classify("how long does it take", Context{}).Primary)
	assert.Equal(t, ProvideAvailability, cl.Classify("i'm free next week", Context{}).Primary)
	assert.Equal(t, ScheduleInterview, cl.Classify("let's book the appointment", Context{}).Primary)
}

func TestGeneralFallback(t *testing.T) {
	cl := New()

	res := cl.Classify("hello there", Context{})

	assert.Equal(t, General, res.Primary)
	assert.InDelta(t, 0.3, res.Confidence, 0.001)
	assert.Empty(t, res.Secondary)
	assert.False(t, res.NeedsEscalation)
}
