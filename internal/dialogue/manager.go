// Package dialogue orchestrates one conversational turn: load session state,
// classify the message, advance the scheduling state machine, persist the
// replacement state, and emit a response payload.
//
// Session state is a single TTL'd row per candidate, replaced wholesale on
// every turn (last write wins). An expired or missing row means the
// conversation starts over from the greeting stage.
package dialogue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/hireloop/hireloop/internal/escalation"
	"github.com/hireloop/hireloop/internal/intent"
	"github.com/hireloop/hireloop/internal/meeting"
	"github.com/hireloop/hireloop/internal/model"
	"github.com/hireloop/hireloop/internal/notifier"
	"github.com/hireloop/hireloop/internal/schedule"
	"github.com/hireloop/hireloop/internal/storage"
)

const (
	// offeredSlotCount is how many slots one offer shows.
	offeredSlotCount = 3
	// maxSelectionAttempts is how many failed selections we tolerate before
	// handing off to a human.
	maxSelectionAttempts = 3
	// confirmTimeout bounds the fire-and-forget confirmation delivery.
	confirmTimeout = 5 * time.Second
	// rescheduleCriticalWindow marks reschedules of imminent interviews.
	rescheduleCriticalWindow = 24 * time.Hour
)

// Store is the slice of the storage layer the manager needs.
type Store interface {
	LoadConversationState(ctx context.Context, candidateID uuid.UUID) (model.ConversationState, error)
	SaveConversationState(ctx context.Context, s model.ConversationState, ttl time.Duration) error
	ClearConversationState(ctx context.Context, candidateID uuid.UUID) error
	BookSlot(ctx context.Context, candidateID uuid.UUID, date time.Time, hm string, status model.SlotStatus, meetingLink string) (model.InterviewSlot, error)
	NextSlotForCandidate(ctx context.Context, candidateID uuid.UUID) (model.InterviewSlot, error)
	UpdateInterviewStage(ctx context.Context, id uuid.UUID, stage model.InterviewStage) error
	TouchCandidateLastSeen(ctx context.Context, id uuid.UUID) error
	UpsertQueueEntry(ctx context.Context, e model.QueueEntry) error
	DeleteQueueEntry(ctx context.Context, candidateID uuid.UUID) error
	Notify(ctx context.Context, channel, payload string) error
}

// Manager runs conversational turns.
type Manager struct {
	store     Store
	slots     *schedule.Engine
	intents   *intent.Classifier
	escalator escalation.Escalator
	notifier  notifier.Notifier
	links     *meeting.LinkSigner
	phrases   Phrases
	logger    *slog.Logger

	stateTTL       time.Duration
	slotWindowDays int
	granularity    time.Duration
	now            func() time.Time
}

// Config wires a Manager. Zero-value durations fall back to defaults.
type Config struct {
	Store          Store
	Slots          *schedule.Engine
	Intents        *intent.Classifier
	Escalator      escalation.Escalator
	Notifier       notifier.Notifier
	Links          *meeting.LinkSigner
	Phrases        Phrases
	Logger         *slog.Logger
	StateTTL       time.Duration
	SlotWindowDays int
	Granularity    time.Duration
	Now            func() time.Time
}

// NewManager creates a Manager.
func NewManager(cfg Config) *Manager {
	if cfg.StateTTL <= 0 {
		cfg.StateTTL = 24 * time.Hour
	}
	if cfg.SlotWindowDays <= 0 {
		cfg.SlotWindowDays = 14
	}
	if cfg.Granularity <= 0 {
		cfg.Granularity = schedule.GranularityHalfHour
	}
	if cfg.Phrases == nil {
		cfg.Phrases = DefaultPhrases{}
	}
	if cfg.Escalator == nil {
		cfg.Escalator = escalation.NoopEscalator{}
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notifier.NoopNotifier{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{
		store:          cfg.Store,
		slots:          cfg.Slots,
		intents:        cfg.Intents,
		escalator:      cfg.Escalator,
		notifier:       cfg.Notifier,
		links:          cfg.Links,
		phrases:        cfg.Phrases,
		logger:         cfg.Logger,
		stateTTL:       cfg.StateTTL,
		slotWindowDays: cfg.SlotWindowDays,
		granularity:    cfg.Granularity,
		now:            cfg.Now,
	}
}

// ProcessTurn handles one inbound message for a candidate under the given
// flow. Internal failures never surface to the candidate: the turn degrades
// to a generic error payload and the session resets to a recoverable stage.
func (m *Manager) ProcessTurn(ctx context.Context, cand model.Candidate, flow model.FlowName, message string) model.ResponsePayload {
	if err := m.store.TouchCandidateLastSeen(ctx, cand.ID); err != nil {
		m.logger.Warn("touch last seen failed", "candidate_id", cand.ID, "error", err)
	}

	payload, err := m.processTurn(ctx, cand, flow, message)
	if err != nil {
		m.logger.Error("turn failed", "candidate_id", cand.ID, "flow", flow, "error", err)
		m.resetToRecoverableStage(ctx, cand.ID, flow, message)
		payload = model.ResponsePayload{
			Type:    model.ResponseSystemError,
			Content: m.phrases.SystemError(),
		}
	}
	return m.verifyResponse(cand.ID, payload)
}

func (m *Manager) processTurn(ctx context.Context, cand model.Candidate, flow model.FlowName, message string) (model.ResponsePayload, error) {
	state, err := m.store.LoadConversationState(ctx, cand.ID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		state = model.ConversationState{
			CandidateID: cand.ID,
			Flow:        flow,
			Stage:       model.StageGreeting,
		}
	case err != nil:
		return model.ResponsePayload{}, fmt.Errorf("dialogue: load state: %w", err)
	}
	// A tier change between turns restarts the conversation under the new flow.
	if state.Flow != flow {
		state = model.ConversationState{
			CandidateID: cand.ID,
			Flow:        flow,
			Stage:       model.StageGreeting,
		}
	}

	res := m.intents.Classify(message, intent.Context{
		Stage:          state.Stage,
		ShownSlots:     state.ShownSlots,
		TimePreference: state.TimePreference,
	})

	var payload model.ResponsePayload
	var next *model.ConversationState
	switch flow {
	case model.FlowInterviewScheduling:
		payload, next, err = m.schedulingTurn(ctx, cand, state, message, res)
	case model.FlowStandardSupport:
		payload, next, err = m.supportTurn(ctx, cand, state, res)
	case model.FlowReactivation:
		payload = model.ResponsePayload{Type: model.ResponseReactivationInfo, Content: m.phrases.ReactivationInfo()}
		next = &state
	default:
		payload = model.ResponsePayload{Type: model.ResponseSupportAck, Content: m.phrases.SupportAck()}
		next = &state
	}
	if err != nil {
		return model.ResponsePayload{}, err
	}

	// next == nil means the turn ended the session (booking confirmed).
	if next != nil {
		next.LastMessage = message
		if err := m.store.SaveConversationState(ctx, *next, m.stateTTL); err != nil {
			return model.ResponsePayload{}, fmt.Errorf("dialogue: save state: %w", err)
		}
	}
	return payload, nil
}

// schedulingTurn advances the interview-scheduling state machine.
func (m *Manager) schedulingTurn(ctx context.Context, cand model.Candidate, state model.ConversationState, message string, res intent.Result) (model.ResponsePayload, *model.ConversationState, error) {
	if res.NeedsEscalation {
		return m.rescheduleEscalation(ctx, cand, state)
	}
	if res.Primary == intent.SelectSlot && res.SlotSelection != nil {
		return m.book(ctx, cand, state, *res.SlotSelection)
	}

	// Day and period mentions drive slot offers regardless of which category
	// won ("what about friday" classifies as a question but asks for Friday).
	days := schedule.ParseWeekdays(message)
	pref := schedule.ParsePeriod(message)

	if state.Stage == model.StageConfirmed {
		var selected *model.SlotRef
		if state.SelectedSlotIndex != nil && *state.SelectedSlotIndex < len(state.ShownSlots) {
			s := state.ShownSlots[*state.SelectedSlotIndex]
			selected = &s
		}
		payload := model.ResponsePayload{
			Type:    model.ResponseAllSet,
			Content: m.phrases.AllSet(selected),
			SchedulingContext: &model.ResponseScheduling{
				Stage:        model.StageConfirmed,
				SelectedSlot: selected,
			},
		}
		return payload, &state, nil
	}

	if len(days) > 0 || pref != model.PreferNone {
		return m.offerSlots(ctx, cand, state, days, pref)
	}

	switch state.Stage {
	case model.StageGreeting:
		// A fresh session with an upcoming interview on file means the
		// previous session booked and expired; don't re-greet.
		if slot, err := m.store.NextSlotForCandidate(ctx, cand.ID); err == nil {
			ref := slot.Ref()
			ref.Label = fmt.Sprintf("%s, %s at %s", ref.Date.Weekday(), ref.Date.Format("Jan 2"), ref.Time)
			state.Stage = model.StageConfirmed
			// Carry the booked slot in the session so later turns can recap
			// it without another lookup.
			state.ShownSlots = []model.SlotRef{ref}
			idx := 0
			state.SelectedSlotIndex = &idx
			payload := model.ResponsePayload{
				Type:    model.ResponseAllSet,
				Content: m.phrases.AllSet(&ref),
				SchedulingContext: &model.ResponseScheduling{
					Stage:        model.StageConfirmed,
					SelectedSlot: &ref,
				},
			}
			return payload, &state, nil
		} else if !errors.Is(err, storage.ErrNotFound) {
			return model.ResponsePayload{}, nil, err
		}

		state.Stage = model.StageTimePreference
		payload := model.ResponsePayload{
			Type:         model.ResponseGreeting,
			Content:      m.phrases.Greeting(cand.Name),
			QuickReplies: []string{"Morning", "Afternoon"},
			SchedulingContext: &model.ResponseScheduling{
				Stage: model.StageTimePreference,
			},
		}
		return payload, &state, nil

	case model.StageSlotsOffered, model.StageSlotSelection:
		return m.failedSelection(ctx, cand, state)

	default: // time_preference
		payload := model.ResponsePayload{
			Type:         model.ResponseAskTimePreference,
			Content:      m.phrases.AskTimePreference(),
			QuickReplies: []string{"Morning", "Afternoon"},
			SchedulingContext: &model.ResponseScheduling{
				Stage: model.StageTimePreference,
			},
		}
		return payload, &state, nil
	}
}

// offerSlots generates availability for the requested day or period and
// presents the first few options.
func (m *Manager) offerSlots(ctx context.Context, cand model.Candidate, state model.ConversationState, days []time.Weekday, pref model.TimePreference) (model.ResponsePayload, *model.ConversationState, error) {
	if pref == model.PreferNone {
		pref = state.TimePreference
	}

	var slots []model.SlotRef
	var err error
	if len(days) > 0 {
		slots, err = m.slots.GenerateSlotsForWeekday(ctx, days[0], pref, m.granularity)
		if err != nil {
			return model.ResponsePayload{}, nil, err
		}
		state.SchedulingContext.RequestedDay = days[0].String()
	}
	if len(slots) == 0 {
		slots, err = m.slots.GenerateSlots(ctx, m.slotWindowDays, pref, m.granularity)
		if err != nil {
			return model.ResponsePayload{}, nil, err
		}
	}

	if len(slots) == 0 {
		m.enqueue(ctx, cand.ID, pref, model.UrgencyMedium)
		payload := model.ResponsePayload{
			Type:    model.ResponseSlotsOffer,
			Content: m.phrases.NoAvailability(),
			SchedulingContext: &model.ResponseScheduling{
				Stage: model.StageTimePreference,
			},
		}
		state.Stage = model.StageTimePreference
		return payload, &state, nil
	}

	if len(slots) > offeredSlotCount {
		slots = slots[:offeredSlotCount]
	}

	state.Stage = model.StageSlotsOffered
	state.ShownSlots = slots
	state.SelectedSlotIndex = nil
	if pref != model.PreferNone {
		state.TimePreference = pref
	}
	state.SchedulingContext.OfferRound++

	m.enqueue(ctx, cand.ID, pref, model.UrgencyLow)

	replies := make([]string, len(slots))
	for i := range slots {
		replies[i] = strconv.Itoa(i + 1)
	}
	payload := model.ResponsePayload{
		Type:         model.ResponseSlotsOffer,
		Content:      m.phrases.SlotsOffer(slots),
		QuickReplies: replies,
		SchedulingContext: &model.ResponseScheduling{
			Stage:          model.StageSlotsOffered,
			AvailableSlots: slots,
		},
	}
	return payload, &state, nil
}

// book writes the booking and ends the session. The unique index on
// (scheduled_date, scheduled_time) is the arbiter under concurrency: losing
// the race re-offers instead of double-booking.
func (m *Manager) book(ctx context.Context, cand model.Candidate, state model.ConversationState, sel intent.SlotSelection) (model.ResponsePayload, *model.ConversationState, error) {
	slot := sel.Slot
	startsAt := time.Date(slot.Date.Year(), slot.Date.Month(), slot.Date.Day(), slot.Hour(), slotMinute(slot.Time), 0, 0, time.UTC)

	link, err := m.links.Link(cand.ID, slot.Date, slot.Time, startsAt)
	if err != nil {
		return model.ResponsePayload{}, nil, err
	}

	booked, err := m.store.BookSlot(ctx, cand.ID, slot.Date, slot.Time, model.SlotConfirmed, link)
	if errors.Is(err, storage.ErrSlotTaken) {
		m.logger.Info("slot race lost, re-offering",
			"candidate_id", cand.ID, "date", slot.Date.Format("2006-01-02"), "time", slot.Time)
		return m.reofferAfterConflict(ctx, cand, state)
	}
	if err != nil {
		return model.ResponsePayload{}, nil, err
	}

	if err := m.store.UpdateInterviewStage(ctx, cand.ID, model.InterviewScheduled); err != nil {
		return model.ResponsePayload{}, nil, err
	}
	if err := m.store.ClearConversationState(ctx, cand.ID); err != nil {
		m.logger.Warn("clear state after booking failed", "candidate_id", cand.ID, "error", err)
	}
	if err := m.store.DeleteQueueEntry(ctx, cand.ID); err != nil {
		m.logger.Warn("dequeue after booking failed", "candidate_id", cand.ID, "error", err)
	}

	m.confirmAsync(cand.ID, booked, link)

	m.logger.Info("interview booked",
		"candidate_id", cand.ID,
		"slot_id", booked.ID,
		"date", slot.Date.Format("2006-01-02"),
		"time", slot.Time,
	)

	payload := model.ResponsePayload{
		Type:    model.ResponseBookingConfirmed,
		Content: m.phrases.BookingConfirmed(slot, link),
		Metadata: map[string]any{
			"meeting_link": link,
			"slot_id":      booked.ID.String(),
		},
		SchedulingContext: &model.ResponseScheduling{
			Stage:        model.StageConfirmed,
			SelectedSlot: &slot,
		},
	}
	return payload, nil, nil
}

// reofferAfterConflict regenerates availability after a lost booking race.
func (m *Manager) reofferAfterConflict(ctx context.Context, cand model.Candidate, state model.ConversationState) (model.ResponsePayload, *model.ConversationState, error) {
	slots, err := m.slots.GenerateSlots(ctx, m.slotWindowDays, state.TimePreference, m.granularity)
	if err != nil {
		return model.ResponsePayload{}, nil, err
	}
	if len(slots) > offeredSlotCount {
		slots = slots[:offeredSlotCount]
	}

	state.Stage = model.StageSlotsOffered
	state.ShownSlots = slots
	state.SelectedSlotIndex = nil
	state.SchedulingContext.OfferRound++

	var replies []string
	for i := range slots {
		replies = append(replies, strconv.Itoa(i+1))
	}
	payload := model.ResponsePayload{
		Type:         model.ResponseSlotUnavailable,
		Content:      m.phrases.SlotUnavailable(slots),
		QuickReplies: replies,
		SchedulingContext: &model.ResponseScheduling{
			Stage:          model.StageSlotsOffered,
			AvailableSlots: slots,
		},
	}
	return payload, &state, nil
}

// failedSelection counts a selection miss and hands off after too many.
func (m *Manager) failedSelection(ctx context.Context, cand model.Candidate, state model.ConversationState) (model.ResponsePayload, *model.ConversationState, error) {
	state.Stage = model.StageSlotSelection
	state.SchedulingContext.SelectionAttempts++

	if state.SchedulingContext.SelectionAttempts >= maxSelectionAttempts {
		if state.SchedulingContext.EscalatedAt == nil {
			m.fileTicket(ctx, cand, model.UrgencyHigh, model.TriggerSelectionExhausted,
				"Candidate unable to select a slot",
				fmt.Sprintf("%d selection attempts without a match; human follow-up needed.", state.SchedulingContext.SelectionAttempts),
				map[string]any{"shown_slots": state.ShownSlots},
			)
			now := m.now()
			state.SchedulingContext.EscalatedAt = &now
		}
		payload := model.ResponsePayload{
			Type:    model.ResponseEscalationHandoff,
			Content: m.phrases.EscalationHandoff(),
			SchedulingContext: &model.ResponseScheduling{
				Stage:    state.Stage,
				Priority: string(model.UrgencyHigh),
			},
		}
		return payload, &state, nil
	}

	payload := model.ResponsePayload{
		Type:    model.ResponseSelectionRetry,
		Content: m.phrases.SelectionRetry(state.ShownSlots),
		SchedulingContext: &model.ResponseScheduling{
			Stage:          state.Stage,
			AvailableSlots: state.ShownSlots,
		},
	}
	return payload, &state, nil
}

// rescheduleEscalation files a ticket for a reschedule or cancellation
// request. An interview starting within 24 hours makes it critical.
func (m *Manager) rescheduleEscalation(ctx context.Context, cand model.Candidate, state model.ConversationState) (model.ResponsePayload, *model.ConversationState, error) {
	urgency := model.UrgencyHigh
	trigger := model.TriggerRescheduleRequest
	desc := "Candidate asked to reschedule or cancel their interview."

	if slot, err := m.store.NextSlotForCandidate(ctx, cand.ID); err == nil {
		until := slot.StartsAt().Sub(m.now())
		if until > 0 && until < rescheduleCriticalWindow {
			urgency = model.UrgencyCritical
			trigger = model.TriggerRescheduleWithin24h
			desc = fmt.Sprintf("Candidate asked to reschedule an interview starting in %s.", until.Round(time.Minute))
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		m.logger.Warn("next slot lookup failed", "candidate_id", cand.ID, "error", err)
	}

	m.fileTicket(ctx, cand, urgency, trigger, "Reschedule request", desc, map[string]any{
		"stage": state.Stage,
	})
	m.enqueue(ctx, cand.ID, state.TimePreference, urgency)

	if state.Stage == model.StageConfirmed {
		state.Stage = model.StageTimePreference
		state.ShownSlots = nil
		state.SelectedSlotIndex = nil
	}
	now := m.now()
	state.SchedulingContext.EscalatedAt = &now

	payload := model.ResponsePayload{
		Type:    model.ResponseEscalationHandoff,
		Content: m.phrases.EscalationHandoff(),
		SchedulingContext: &model.ResponseScheduling{
			Stage:    state.Stage,
			Priority: string(urgency),
		},
	}
	return payload, &state, nil
}

// supportTurn handles candidates already through the pipeline. Reschedule
// talk still escalates; everything else gets an acknowledgement.
func (m *Manager) supportTurn(ctx context.Context, cand model.Candidate, state model.ConversationState, res intent.Result) (model.ResponsePayload, *model.ConversationState, error) {
	if res.NeedsEscalation {
		return m.rescheduleEscalation(ctx, cand, state)
	}
	payload := model.ResponsePayload{
		Type:    model.ResponseSupportAck,
		Content: m.phrases.SupportAck(),
	}
	return payload, &state, nil
}

// fileTicket sends the ticket to the support desk and fans it out on the
// escalations channel. Both deliveries are best-effort; the turn proceeds.
func (m *Manager) fileTicket(ctx context.Context, cand model.Candidate, urgency model.UrgencyLevel, trigger, title, desc string, extra map[string]any) {
	ticket := model.EscalationTicket{
		ID:          uuid.New(),
		CandidateID: cand.ID,
		Urgency:     urgency,
		TriggerType: trigger,
		Title:       title,
		Description: desc,
		Context:     extra,
		CreatedAt:   m.now(),
	}

	if err := m.escalator.Escalate(ctx, ticket); err != nil {
		m.logger.Error("escalation delivery failed", "candidate_id", cand.ID, "trigger", trigger, "error", err)
	}

	raw, err := json.Marshal(ticket)
	if err == nil {
		err = m.store.Notify(ctx, storage.ChannelEscalations, string(raw))
	}
	if err != nil {
		m.logger.Warn("escalation fanout failed", "candidate_id", cand.ID, "error", err)
	}
}

// priorityScore maps urgency onto the queue's 0..1 ordering key.
var priorityScore = map[model.UrgencyLevel]float64{
	model.UrgencyLow:      0.3,
	model.UrgencyMedium:   0.5,
	model.UrgencyHigh:     0.7,
	model.UrgencyCritical: 0.9,
}

// enqueue records the candidate as waiting for a booking.
func (m *Manager) enqueue(ctx context.Context, candidateID uuid.UUID, pref model.TimePreference, urgency model.UrgencyLevel) {
	if pref == "" {
		pref = model.PreferNone
	}
	err := m.store.UpsertQueueEntry(ctx, model.QueueEntry{
		CandidateID:    candidateID,
		PriorityScore:  priorityScore[urgency],
		PreferredTimes: pref,
		QueueStatus:    model.QueueWaiting,
		UrgencyLevel:   urgency,
	})
	if err != nil {
		m.logger.Warn("queue upsert failed", "candidate_id", candidateID, "error", err)
	}
}

// confirmAsync delivers the booking confirmation off the request path.
func (m *Manager) confirmAsync(candidateID uuid.UUID, slot model.InterviewSlot, link string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), confirmTimeout)
		defer cancel()
		err := m.notifier.Confirm(ctx, notifier.Confirmation{
			CandidateID:   candidateID,
			ScheduledDate: slot.ScheduledDate.Format("2006-01-02"),
			ScheduledTime: slot.ScheduledTime,
			MeetingLink:   link,
		})
		if err != nil {
			m.logger.Warn("booking confirmation delivery failed", "candidate_id", candidateID, "error", err)
		}
	}()
}

// verifyResponse is the outbound quality gate: a typed payload with real
// content, or a generic fallback.
func (m *Manager) verifyResponse(candidateID uuid.UUID, p model.ResponsePayload) model.ResponsePayload {
	if p.Type != "" && len(p.Content) >= 10 {
		return p
	}
	m.logger.Error("response failed quality gate", "candidate_id", candidateID, "type", p.Type)
	return model.ResponsePayload{
		Type:    model.ResponseSystemError,
		Content: m.phrases.SystemError(),
	}
}

// resetToRecoverableStage parks the session at the time-preference stage so
// the next message can restart cleanly after an internal failure.
func (m *Manager) resetToRecoverableStage(ctx context.Context, candidateID uuid.UUID, flow model.FlowName, message string) {
	state := model.ConversationState{
		CandidateID: candidateID,
		Flow:        flow,
		Stage:       model.StageTimePreference,
		LastMessage: message,
	}
	if err := m.store.SaveConversationState(ctx, state, m.stateTTL); err != nil {
		m.logger.Warn("recovery state save failed", "candidate_id", candidateID, "error", err)
	}
}

func slotMinute(hm string) int {
	if len(hm) != 5 {
		return 0
	}
	n, err := strconv.Atoi(hm[3:])
	if err != nil {
		return 0
	}
	return n
}
