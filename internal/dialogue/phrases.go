package dialogue

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/hireloop/hireloop/internal/model"
)

// Phrases renders candidate-facing message content. Implementations must
// return non-trivial text for every method; the turn quality gate rejects
// near-empty content.
type Phrases interface {
	Greeting(name string) string
	AskTimePreference() string
	SlotsOffer(slots []model.SlotRef) string
	BookingConfirmed(slot model.SlotRef, link string) string
	SlotUnavailable(slots []model.SlotRef) string
	SelectionRetry(slots []model.SlotRef) string
	EscalationHandoff() string
	SupportAck() string
	ReactivationInfo() string
	AllSet(slot *model.SlotRef) string
	NoAvailability() string
	SystemError() string
}

// DefaultPhrases is the built-in copy deck. Each method picks a variant at
// random so repeated turns don't read like a form letter.
type DefaultPhrases struct{}

func pick(variants ...string) string {
	return variants[rand.IntN(len(variants))]
}

func numberedSlots(slots []model.SlotRef) string {
	var b strings.Builder
	for i, s := range slots {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s.Label)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (DefaultPhrases) Greeting(name string) string {
	if name == "" {
		name = "there"
	}
	return pick(
		fmt.Sprintf("Hi %s! Let's get your interview scheduled. Do you prefer mornings or afternoons?", name),
		fmt.Sprintf("Hello %s, great to hear from you. When works better for your interview, morning or afternoon?", name),
	)
}

func (DefaultPhrases) AskTimePreference() string {
	return pick(
		"No problem. Would a morning or an afternoon slot suit you better?",
		"Sure — do mornings or afternoons work better for you?",
	)
}

func (DefaultPhrases) SlotsOffer(slots []model.SlotRef) string {
	return pick(
		"Here are the next available interview slots:\n",
		"I found these openings for you:\n",
	) + numberedSlots(slots) + "\n\nReply with a number to book one."
}

func (DefaultPhrases) BookingConfirmed(slot model.SlotRef, link string) string {
	return fmt.Sprintf(
		"You're booked! Your interview is on %s. Join with this link: %s",
		slot.Label, link,
	)
}

func (DefaultPhrases) SlotUnavailable(slots []model.SlotRef) string {
	msg := pick(
		"Sorry, that slot was just taken.",
		"Ah, someone grabbed that slot moments ago.",
	)
	if len(slots) == 0 {
		return msg + " I don't see other openings right now; our team will reach out shortly."
	}
	return msg + " Here are the current openings:\n" + numberedSlots(slots) + "\n\nReply with a number to book one."
}

func (DefaultPhrases) SelectionRetry(slots []model.SlotRef) string {
	return pick(
		"Sorry, I didn't catch which slot you meant. ",
		"I couldn't match that to one of the options. ",
	) + "Please reply with a number:\n" + numberedSlots(slots)
}

func (DefaultPhrases) EscalationHandoff() string {
	return pick(
		"I've looped in our support team — someone will reach out to you shortly to sort this out.",
		"Got it. A member of our team will contact you soon to help with this.",
	)
}

func (DefaultPhrases) SupportAck() string {
	return pick(
		"Thanks for reaching out! Our support team has your message and will follow up soon.",
		"Thanks, we've got your message. Someone from support will get back to you shortly.",
	)
}

func (DefaultPhrases) ReactivationInfo() string {
	return pick(
		"Your account is currently inactive. To get back to work, reply here and our team will walk you through reactivation.",
		"It looks like your account is paused right now. Reply to this message and we'll help you reactivate it.",
	)
}

func (DefaultPhrases) AllSet(slot *model.SlotRef) string {
	if slot != nil {
		return fmt.Sprintf("You're all set — your interview is on %s. See you then!", slot.Label)
	}
	return "You're all set! We'll see you at your interview."
}

func (DefaultPhrases) NoAvailability() string {
	return "We don't have open interview slots at the moment. You're on our list and we'll message you as soon as new times open up."
}

func (DefaultPhrases) SystemError() string {
	return "Sorry, something went wrong on our side. Please try again in a moment."
}
