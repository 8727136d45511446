package dialogue

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hireloop/hireloop/internal/intent"
	"github.com/hireloop/hireloop/internal/meeting"
	"github.com/hireloop/hireloop/internal/model"
	"github.com/hireloop/hireloop/internal/notifier"
	"github.com/hireloop/hireloop/internal/schedule"
	"github.com/hireloop/hireloop/internal/storage"
	"github.com/hireloop/hireloop/internal/testutil"
)

// testNow is a Monday so generated slots start on a Tuesday.
var testNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

type fakeStore struct {
	states   map[uuid.UUID]model.ConversationState
	cleared  []uuid.UUID
	booked   []model.InterviewSlot
	bookErr  error
	nextSlot *model.InterviewSlot
	stages   []model.InterviewStage
	queue    map[uuid.UUID]model.QueueEntry
	notices  []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		states: make(map[uuid.UUID]model.ConversationState),
		queue:  make(map[uuid.UUID]model.QueueEntry),
	}
}

func (f *fakeStore) LoadConversationState(_ context.Context, id uuid.UUID) (model.ConversationState, error) {
	s, ok := f.states[id]
	if !ok {
		return model.ConversationState{}, storage.ErrNotFound
	}
	return s, nil
}

func (f *fakeStore) SaveConversationState(_ context.Context, s model.ConversationState, _ time.Duration) error {
	f.states[s.CandidateID] = s
	return nil
}

func (f *fakeStore) ClearConversationState(_ context.Context, id uuid.UUID) error {
	delete(f.states, id)
	f.cleared = append(f.cleared, id)
	return nil
}

func (f *fakeStore) BookSlot(_ context.Context, candidateID uuid.UUID, date time.Time, hm string, status model.SlotStatus, link string) (model.InterviewSlot, error) {
	if f.bookErr != nil {
		return model.InterviewSlot{}, f.bookErr
	}
	slot := model.InterviewSlot{
		ID:            uuid.New(),
		CandidateID:   candidateID,
		ScheduledDate: date,
		ScheduledTime: hm,
		Status:        status,
		MeetingLink:   link,
	}
	f.booked = append(f.booked, slot)
	return slot, nil
}

func (f *fakeStore) NextSlotForCandidate(_ context.Context, _ uuid.UUID) (model.InterviewSlot, error) {
	if f.nextSlot == nil {
		return model.InterviewSlot{}, storage.ErrNotFound
	}
	return *f.nextSlot, nil
}

func (f *fakeStore) UpdateInterviewStage(_ context.Context, _ uuid.UUID, stage model.InterviewStage) error {
	f.stages = append(f.stages, stage)
	return nil
}

func (f *fakeStore) TouchCandidateLastSeen(_ context.Context, _ uuid.UUID) error { return nil }

func (f *fakeStore) UpsertQueueEntry(_ context.Context, e model.QueueEntry) error {
	f.queue[e.CandidateID] = e
	return nil
}

func (f *fakeStore) DeleteQueueEntry(_ context.Context, id uuid.UUID) error {
	delete(f.queue, id)
	return nil
}

func (f *fakeStore) Notify(_ context.Context, _, payload string) error {
	f.notices = append(f.notices, payload)
	return nil
}

type fakeAvailability struct{ taken map[string]bool }

func (f fakeAvailability) BookedTimes(context.Context, time.Time, time.Time) (map[string]bool, error) {
	if f.taken == nil {
		return map[string]bool{}, nil
	}
	return f.taken, nil
}

type captureEscalator struct{ tickets []model.EscalationTicket }

func (c *captureEscalator) Escalate(_ context.Context, t model.EscalationTicket) error {
	c.tickets = append(c.tickets, t)
	return nil
}

type captureNotifier struct{ confirmed chan notifier.Confirmation }

func (c *captureNotifier) Confirm(_ context.Context, conf notifier.Confirmation) error {
	c.confirmed <- conf
	return nil
}

func newTestManager(fs *fakeStore) (*Manager, *captureEscalator, *captureNotifier) {
	esc := &captureEscalator{}
	not := &captureNotifier{confirmed: make(chan notifier.Confirmation, 1)}
	now := func() time.Time { return testNow }
	m := NewManager(Config{
		Store:     fs,
		Slots:     schedule.NewEngine(fakeAvailability{}, now),
		Intents:   intent.New(),
		Escalator: esc,
		Notifier:  not,
		Links:     meeting.NewLinkSigner("test-secret", "https://meet.example.com", now),
		Logger:    testutil.DiscardLogger(),
		Now:       now,
	})
	return m, esc, not
}

func testCandidate() model.Candidate {
	return model.Candidate{ID: uuid.New(), Name: "Ada", WorkerStatus: model.StatusPending}
}

func TestFirstMessageGreets(t *testing.T) {
	fs := newFakeStore()
	m, _, _ := newTestManager(fs)
	cand := testCandidate()

	p := m.ProcessTurn(context.Background(), cand, model.FlowInterviewScheduling, "hello")

	assert.Equal(t, model.ResponseGreeting, p.Type)
	assert.Contains(t, p.Content, "Ada")
	assert.Equal(t, []string{"Morning", "Afternoon"}, p.QuickReplies)

	saved := fs.states[cand.ID]
	assert.Equal(t, model.StageTimePreference, saved.Stage)
	assert.Equal(t, "hello", saved.LastMessage)
}

func TestMorningPreferenceOffersMorningSlots(t *testing.T) {
	fs := newFakeStore()
	m, _, _ := newTestManager(fs)
	cand := testCandidate()
	fs.states[cand.ID] = model.ConversationState{
		CandidateID: cand.ID,
		Flow:        model.FlowInterviewScheduling,
		Stage:       model.StageTimePreference,
	}

	p := m.ProcessTurn(context.Background(), cand, model.FlowInterviewScheduling, "mornings work best")

	require.Equal(t, model.ResponseSlotsOffer, p.Type)
	require.NotNil(t, p.SchedulingContext)
	slots := p.SchedulingContext.AvailableSlots
	require.Len(t, slots, 3)
	for _, s := range slots {
		h := s.Hour()
		assert.GreaterOrEqual(t, h, schedule.MorningStartHour)
		assert.Less(t, h, schedule.MorningEndHour)
		assert.NotEqual(t, time.Saturday, s.Weekday())
		assert.NotEqual(t, time.Sunday, s.Weekday())
	}

	saved := fs.states[cand.ID]
	assert.Equal(t, model.StageSlotsOffered, saved.Stage)
	assert.Equal(t, model.PreferMorning, saved.TimePreference)
	assert.Len(t, saved.ShownSlots, 3)

	entry, ok := fs.queue[cand.ID]
	require.True(t, ok)
	assert.Equal(t, model.QueueWaiting, entry.QueueStatus)
}

func TestBareOrdinalBooksShownSlot(t *testing.T) {
	fs := newFakeStore()
	m, _, not := newTestManager(fs)
	cand := testCandidate()

	shown := []model.SlotRef{
		{Date: time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), Time: "09:00", Label: "Tuesday, Mar 3 at 09:00"},
		{Date: time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), Time: "09:30", Label: "Tuesday, Mar 3 at 09:30"},
		{Date: time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), Time: "10:00", Label: "Tuesday, Mar 3 at 10:00"},
	}
	fs.states[cand.ID] = model.ConversationState{
		CandidateID: cand.ID,
		Flow:        model.FlowInterviewScheduling,
		Stage:       model.StageSlotsOffered,
		ShownSlots:  shown,
	}
	fs.queue[cand.ID] = model.QueueEntry{CandidateID: cand.ID}

	p := m.ProcessTurn(context.Background(), cand, model.FlowInterviewScheduling, "2")

	require.Equal(t, model.ResponseBookingConfirmed, p.Type)
	require.NotNil(t, p.SchedulingContext.SelectedSlot)
	assert.Equal(t, "09:30", p.SchedulingContext.SelectedSlot.Time)
	assert.Contains(t, p.Metadata["meeting_link"], "https://meet.example.com/interview/")

	require.Len(t, fs.booked, 1)
	assert.Equal(t, model.SlotConfirmed, fs.booked[0].Status)
	assert.Equal(t, []model.InterviewStage{model.InterviewScheduled}, fs.stages)
	assert.Contains(t, fs.cleared, cand.ID)
	assert.NotContains(t, fs.queue, cand.ID)
	assert.NotContains(t, fs.states, cand.ID)

	select {
	case conf := <-not.confirmed:
		assert.Equal(t, "09:30", conf.ScheduledTime)
	case <-time.After(2 * time.Second):
		t.Fatal("confirmation never delivered")
	}
}

func TestLostBookingRaceReoffers(t *testing.T) {
	fs := newFakeStore()
	fs.bookErr = storage.ErrSlotTaken
	m, _, _ := newTestManager(fs)
	cand := testCandidate()

	fs.states[cand.ID] = model.ConversationState{
		CandidateID: cand.ID,
		Flow:        model.FlowInterviewScheduling,
		Stage:       model.StageSlotsOffered,
		ShownSlots: []model.SlotRef{
			{Date: time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), Time: "09:00", Label: "Tuesday, Mar 3 at 09:00"},
		},
	}

	p := m.ProcessTurn(context.Background(), cand, model.FlowInterviewScheduling, "1")

	assert.Equal(t, model.ResponseSlotUnavailable, p.Type)
	assert.NotEmpty(t, p.SchedulingContext.AvailableSlots)

	saved := fs.states[cand.ID]
	assert.Equal(t, model.StageSlotsOffered, saved.Stage)
	assert.NotEmpty(t, saved.ShownSlots)
}

func TestThreeFailedSelectionsEscalate(t *testing.T) {
	fs := newFakeStore()
	m, esc, _ := newTestManager(fs)
	cand := testCandidate()

	fs.states[cand.ID] = model.ConversationState{
		CandidateID: cand.ID,
		Flow:        model.FlowInterviewScheduling,
		Stage:       model.StageSlotsOffered,
		ShownSlots: []model.SlotRef{
			{Date: time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), Time: "09:00", Label: "Tuesday, Mar 3 at 09:00"},
		},
	}

	var p model.ResponsePayload
	for range 3 {
		p = m.ProcessTurn(context.Background(), cand, model.FlowInterviewScheduling, "hmm not sure")
	}

	assert.Equal(t, model.ResponseEscalationHandoff, p.Type)
	require.Len(t, esc.tickets, 1)
	assert.Equal(t, model.TriggerSelectionExhausted, esc.tickets[0].TriggerType)
	assert.Equal(t, model.UrgencyHigh, esc.tickets[0].Urgency)
	require.Len(t, fs.notices, 1)

	// Further failures don't file duplicate tickets.
	p = m.ProcessTurn(context.Background(), cand, model.FlowInterviewScheduling, "still not sure")
	assert.Equal(t, model.ResponseEscalationHandoff, p.Type)
	assert.Len(t, esc.tickets, 1)
}

func TestRescheduleWithImminentInterviewIsCritical(t *testing.T) {
	fs := newFakeStore()
	fs.nextSlot = &model.InterviewSlot{
		ID:            uuid.New(),
		ScheduledDate: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		ScheduledTime: "20:00", // 10 hours after testNow
		Status:        model.SlotConfirmed,
	}
	m, esc, _ := newTestManager(fs)
	cand := testCandidate()

	p := m.ProcessTurn(context.Background(), cand, model.FlowInterviewScheduling, "i need to reschedule my interview")

	assert.Equal(t, model.ResponseEscalationHandoff, p.Type)
	assert.Equal(t, string(model.UrgencyCritical), p.SchedulingContext.Priority)
	require.Len(t, esc.tickets, 1)
	assert.Equal(t, model.TriggerRescheduleWithin24h, esc.tickets[0].TriggerType)
	assert.Equal(t, model.UrgencyCritical, esc.tickets[0].Urgency)
}

func TestRescheduleWithDistantInterviewIsHigh(t *testing.T) {
	fs := newFakeStore()
	fs.nextSlot = &model.InterviewSlot{
		ID:            uuid.New(),
		ScheduledDate: time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC),
		ScheduledTime: "09:00",
		Status:        model.SlotConfirmed,
	}
	m, esc, _ := newTestManager(fs)

	p := m.ProcessTurn(context.Background(), testCandidate(), model.FlowInterviewScheduling, "can we reschedule?")

	assert.Equal(t, model.ResponseEscalationHandoff, p.Type)
	require.Len(t, esc.tickets, 1)
	assert.Equal(t, model.TriggerRescheduleRequest, esc.tickets[0].TriggerType)
	assert.Equal(t, model.UrgencyHigh, esc.tickets[0].Urgency)
}

func TestDayRequestOffersThatDay(t *testing.T) {
	fs := newFakeStore()
	m, _, _ := newTestManager(fs)
	cand := testCandidate()
	fs.states[cand.ID] = model.ConversationState{
		CandidateID: cand.ID,
		Flow:        model.FlowInterviewScheduling,
		Stage:       model.StageTimePreference,
	}

	p := m.ProcessTurn(context.Background(), cand, model.FlowInterviewScheduling, "what about friday?")

	require.Equal(t, model.ResponseSlotsOffer, p.Type)
	require.NotEmpty(t, p.SchedulingContext.AvailableSlots)
	for _, s := range p.SchedulingContext.AvailableSlots {
		assert.Equal(t, time.Friday, s.Weekday())
	}
	assert.Equal(t, "Friday", fs.states[cand.ID].SchedulingContext.RequestedDay)
}

func TestSupportFlowAcknowledges(t *testing.T) {
	fs := newFakeStore()
	m, esc, _ := newTestManager(fs)

	p := m.ProcessTurn(context.Background(), testCandidate(), model.FlowStandardSupport, "how do i get paid?")

	assert.Equal(t, model.ResponseSupportAck, p.Type)
	assert.Empty(t, esc.tickets)
}

func TestReactivationFlow(t *testing.T) {
	fs := newFakeStore()
	m, _, _ := newTestManager(fs)

	p := m.ProcessTurn(context.Background(), testCandidate(), model.FlowReactivation, "hello?")

	assert.Equal(t, model.ResponseReactivationInfo, p.Type)
}

func TestGreetingWithExistingBookingSaysAllSet(t *testing.T) {
	fs := newFakeStore()
	fs.nextSlot = &model.InterviewSlot{
		ID:            uuid.New(),
		ScheduledDate: time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC),
		ScheduledTime: "10:00",
		Status:        model.SlotConfirmed,
	}
	m, _, _ := newTestManager(fs)

	p := m.ProcessTurn(context.Background(), testCandidate(), model.FlowInterviewScheduling, "hi")

	assert.Equal(t, model.ResponseAllSet, p.Type)
	require.NotNil(t, p.SchedulingContext.SelectedSlot)
	assert.Equal(t, "10:00", p.SchedulingContext.SelectedSlot.Time)
}

func TestAllSetRecapRepeatsSlotOnLaterMessages(t *testing.T) {
	fs := newFakeStore()
	fs.nextSlot = &model.InterviewSlot{
		ID:            uuid.New(),
		ScheduledDate: time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC),
		ScheduledTime: "10:00",
		Status:        model.SlotConfirmed,
	}
	m, _, _ := newTestManager(fs)
	cand := testCandidate()

	first := m.ProcessTurn(context.Background(), cand, model.FlowInterviewScheduling, "hi")
	require.Equal(t, model.ResponseAllSet, first.Type)

	// The booked slot must survive into the saved session so every later
	// turn recaps it, not just the one that re-discovered the booking.
	saved := fs.states[cand.ID]
	require.NotNil(t, saved.SelectedSlotIndex)
	require.Len(t, saved.ShownSlots, 1)

	second := m.ProcessTurn(context.Background(), cand, model.FlowInterviewScheduling, "hello again")
	assert.Equal(t, model.ResponseAllSet, second.Type)
	require.NotNil(t, second.SchedulingContext)
	require.NotNil(t, second.SchedulingContext.SelectedSlot)
	assert.Equal(t, "10:00", second.SchedulingContext.SelectedSlot.Time)
	assert.Contains(t, second.Content, "10:00")
}

type brokenPhrases struct{ DefaultPhrases }

func (brokenPhrases) Greeting(string) string { return "hi" }

func TestQualityGateRejectsThinContent(t *testing.T) {
	fs := newFakeStore()
	m, _, _ := newTestManager(fs)
	m.phrases = brokenPhrases{}

	p := m.ProcessTurn(context.Background(), testCandidate(), model.FlowInterviewScheduling, "hello")

	assert.Equal(t, model.ResponseSystemError, p.Type)
	assert.GreaterOrEqual(t, len(p.Content), 10)
}
