package voice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/rivertownball/riverchat/internal/extract"
	"github.com/rivertownball/riverchat/internal/log"
)

// MinPhoneDigits is the digit count at which an utterance is treated as
// a pasted phone number rather than conversation.
const MinPhoneDigits = 10

// triggerPhrases are the customer-service keywords that start the
// escalation flow. Matching is case-insensitive substring containment.
var triggerPhrases = []string{
	"customer service",
	"customer support",
	"talk to someone",
	"talk to a person",
	"talk to a human",
	"speak to someone",
	"speak to a person",
	"speak to a human",
	"speak with someone",
	"representative",
	"real person",
	"call me",
}

// IsTrigger reports whether the utterance contains a customer-service
// trigger phrase.
func IsTrigger(text string) bool {
	lowered := strings.ToLower(text)
	for _, phrase := range triggerPhrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}

// numberPrompt is the fixed reply that opens the escalation flow.
const numberPrompt = "I'd be happy to have one of our customer service specialists give you a call! What's the best phone number to reach you?"

// invalidNumberReply re-prompts when the digit sequence cannot be
// canonicalised (e.g. 12 digits).
const invalidNumberReply = "Hmm, that doesn't look like a phone number I can dial. Could you give me a 10-digit US number, like (555) 123-4567?"

// callScript is the task read to the voice agent when the call is
// placed. It identifies the company and the reason for the call.
const callScript = "You are a friendly customer service specialist from the Rivertown Ball Company, makers of high end handcrafted wooden balls. The person you are calling just asked our website chat for a callback. Greet them warmly, thank them for their interest, and help them with their questions about our products or orders."

// CallPlacer places an outbound call. *Client implements it; tests use
// a fake.
type CallPlacer interface {
	PlaceCall(ctx context.Context, req CallRequest) error
}

// Config collects the escalator's dependencies and settings.
type Config struct {
	Calls  CallPlacer
	Phones extract.PhoneExtractor
	Logger log.Logger

	// FallbackNumber is the human-staffed line quoted when call
	// placement fails.
	FallbackNumber string

	// VoiceID and MaxCallDuration are forwarded to the call platform.
	VoiceID         string
	MaxCallDuration int

	// CallTimeout bounds one placement request.
	CallTimeout time.Duration

	// Limiter throttles outbound calls; nil means a conservative
	// default of one call per 10 seconds.
	Limiter *rate.Limiter
}

// Escalator drives the two-turn callback flow. It holds no per-
// conversation state of its own: the session's mode decides which turn
// the conversation is on, and the router owns that.
type Escalator struct {
	calls          CallPlacer
	phones         extract.PhoneExtractor
	fallbackNumber string
	voiceID        string
	maxDuration    int
	callTimeout    time.Duration
	limiter        *rate.Limiter
	logger         log.Logger
}

// NewEscalator creates an Escalator from cfg.
func NewEscalator(cfg Config) *Escalator {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	phones := cfg.Phones
	if phones == nil {
		phones = extract.NewPhones()
	}
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Every(10*time.Second), 1)
	}
	return &Escalator{
		calls:          cfg.Calls,
		phones:         phones,
		fallbackNumber: cfg.FallbackNumber,
		voiceID:        cfg.VoiceID,
		maxDuration:    cfg.MaxCallDuration,
		callTimeout:    cfg.CallTimeout,
		limiter:        limiter,
		logger:         logger,
	}
}

// Result is the outcome of one escalation turn.
type Result struct {
	// Reply is the user-facing text. Empty means the handler declined
	// the turn and the router should fall through.
	Reply string

	// AskedNumber is set when Reply asks the user for a callback
	// number; the session should move to (or stay in) awaiting-phone.
	AskedNumber bool

	// CallPlaced is set when a call was successfully placed; the
	// session's escalation flow is finished.
	CallPlaced bool

	// Phone is the canonical number extracted this turn, if any.
	Phone string
}

// Handle processes one escalation turn. A trigger phrase opens the flow
// with the number prompt; a digit-dominant utterance closes it by
// placing the call. Neither condition holding is a defensive no-match:
// in the designed flow the router only dispatches here after one of the
// two triggers matched.
func (e *Escalator) Handle(ctx context.Context, utterance string) Result {
	switch {
	case IsTrigger(utterance):
		return Result{Reply: numberPrompt, AskedNumber: true}
	case extract.DigitCount(utterance) >= MinPhoneDigits:
		return e.placeCall(ctx, utterance)
	default:
		return Result{}
	}
}

// placeCall canonicalises the number and submits the call request.
// Every branch returns user-facing text; faults never propagate.
func (e *Escalator) placeCall(ctx context.Context, utterance string) Result {
	phone, ok := e.phones.ExtractPhone(utterance)
	if !ok {
		return Result{Reply: invalidNumberReply, AskedNumber: true}
	}

	if !e.limiter.Allow() {
		e.logger.Warn("outbound call rate limit hit", "phone", phone)
		return Result{Reply: e.failureReply(), Phone: phone}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	err := e.calls.PlaceCall(callCtx, CallRequest{
		PhoneNumber:     phone,
		Task:            callScript,
		Voice:           e.voiceID,
		MaxDuration:     e.maxDuration,
		WaitForGreeting: true,
		Record:          false,
	})
	if err != nil {
		e.logger.Error("call placement failed", "error", err)
		return Result{Reply: e.failureReply(), Phone: phone}
	}

	return Result{
		Reply: fmt.Sprintf(
			"Perfect! I've placed a call to %s. One of our customer service specialists will be with you in just a moment.",
			FormatPhone(phone)),
		CallPlaced: true,
		Phone:      phone,
	}
}

func (e *Escalator) failureReply() string {
	return fmt.Sprintf(
		"I'm so sorry, I wasn't able to place that call right now. You can reach our customer care team directly at %s.",
		e.fallbackNumber)
}

// FormatPhone renders a canonical +1XXXXXXXXXX number as
// "(XXX) XXX-XXXX" for display.
func FormatPhone(phone string) string {
	d := strings.TrimPrefix(phone, "+1")
	if len(d) != 10 {
		return phone
	}
	return fmt.Sprintf("(%s) %s-%s", d[:3], d[3:6], d[6:])
}
