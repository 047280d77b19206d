// Package chat is the conversational front end. It turns one text message
// from an owner into a reply, driving the add and delete flows through a
// small per-owner state machine and reading today's events on demand.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/mesh-intelligence/cakeday/internal/daymatch"
	"github.com/mesh-intelligence/cakeday/internal/metrics"
	"github.com/mesh-intelligence/cakeday/pkg/types"
)

// Reply is the response to one message. Options, when present, are the
// choices the client may offer as buttons.
type Reply struct {
	Text    string   `json:"text"`
	Options []string `json:"options,omitempty"`
}

// Reply texts.
const (
	msgWelcome = "Hi! I help you remember birthdays and other yearly events.\n" +
		"Use /add to add one, /list to see them, /today for today's events and /delete to remove one."
	msgHelp = "Commands:\n" +
		"/add - add a birthday\n" +
		"/list - show your birthdays\n" +
		"/today - show today's birthdays\n" +
		"/delete - remove a birthday\n" +
		"/cancel - stop the current step"
	msgIdle          = "Use /add to add a birthday or /help to see all commands."
	msgUnknown       = "Unknown command. Use /help to see all commands."
	msgAskLabel      = "Enter the person's name:"
	msgAskGroup      = "Enter a group such as family, colleagues or friends.\nSend \"no\" to skip."
	msgAskDetails    = "Enter any notes about the person.\nSend \"no\" to skip."
	msgAskDate       = "Enter the date of birth as YYYY-MM-DD:"
	msgBadDate       = "Invalid date format. Please use YYYY-MM-DD."
	msgAdded         = "Birthday added!"
	msgAddFailed     = "Could not save the birthday. Please try again later."
	msgAddCancelled  = "Adding a birthday was cancelled."
	msgDelCancelled  = "Deleting a birthday was cancelled."
	msgNothingCancel = "Nothing to cancel."
	msgAskDelete     = "Choose whose birthday to delete:"
	msgNothingDelete = "You have no saved birthdays to delete."
	msgEmptyList     = "You have no saved birthdays yet."
	msgNoneToday     = "Nobody has a birthday today."
	msgStoreFailed   = "Something went wrong reading your birthdays. Please try again later."
)

// Handler routes messages to commands and sessions. It is safe for
// concurrent use; each owner's messages are handled one at a time.
type Handler struct {
	store   types.RecordStore
	eval    *daymatch.Evaluator
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

// Option configures a Handler.
type Option func(*Handler)

// WithMetrics counts added and deleted records on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithLogger sets the logger for storage failures.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHandler returns a Handler over store and eval.
func NewHandler(store types.RecordStore, eval *daymatch.Evaluator, opts ...Option) *Handler {
	h := &Handler{
		store:    store,
		eval:     eval,
		logger:   slog.Default(),
		sessions: make(map[string]*session),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// State returns the owner's current conversation state.
func (h *Handler) State(ownerID string) State {
	s := h.session(ownerID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (h *Handler) session(ownerID string) *session {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[ownerID]
	if !ok {
		s = &session{}
		h.sessions[ownerID] = s
	}
	return s
}

// Handle processes one message from ownerID. Storage failures are reported
// in the reply text; the only error returned is types.ErrInvalidOwner.
func (h *Handler) Handle(ctx context.Context, ownerID, text string) (Reply, error) {
	if strings.TrimSpace(ownerID) == "" {
		return Reply{}, types.ErrInvalidOwner
	}

	s := h.session(ownerID)
	s.mu.Lock()
	defer s.mu.Unlock()

	text = strings.TrimSpace(text)
	if cmd, ok := command(text); ok {
		return h.command(ctx, s, ownerID, cmd), nil
	}
	return h.answer(ctx, s, ownerID, text), nil
}

// command extracts "/name" from text, dropping any bot suffix ("/add@bot")
// and arguments.
func command(text string) (string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	name := strings.Fields(text)[0]
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name), true
}

func (h *Handler) command(ctx context.Context, s *session, ownerID, cmd string) Reply {
	switch cmd {
	case "/start":
		s.reset(Idle)
		return Reply{Text: msgWelcome}
	case "/help":
		return Reply{Text: msgHelp}
	case "/add":
		s.reset(AwaitingLabel)
		return Reply{Text: msgAskLabel}
	case "/list":
		return h.list(ctx, ownerID)
	case "/today":
		return h.today(ctx, ownerID)
	case "/delete":
		return h.startDelete(ctx, s, ownerID)
	case "/cancel":
		return cancel(s)
	default:
		return Reply{Text: msgUnknown}
	}
}

func cancel(s *session) Reply {
	prev := s.state
	s.reset(Done)
	switch {
	case prev.inAdd():
		return Reply{Text: msgAddCancelled}
	case prev == AwaitingDeleteLabel:
		return Reply{Text: msgDelCancelled}
	default:
		return Reply{Text: msgNothingCancel}
	}
}

// answer feeds free text to the active flow.
func (h *Handler) answer(ctx context.Context, s *session, ownerID, text string) Reply {
	switch s.state {
	case AwaitingLabel:
		if text == "" {
			return Reply{Text: msgAskLabel}
		}
		s.draft.Label = text
		s.state = AwaitingGroup
		return Reply{Text: msgAskGroup}

	case AwaitingGroup:
		s.draft.Group = optionalAnswer(text)
		s.state = AwaitingDetails
		return Reply{Text: msgAskDetails}

	case AwaitingDetails:
		s.draft.Details = optionalAnswer(text)
		s.state = AwaitingDate
		return Reply{Text: msgAskDate}

	case AwaitingDate:
		return h.finishAdd(ctx, s, ownerID, text)

	case AwaitingDeleteLabel:
		return h.finishDelete(ctx, s, ownerID, text)

	default:
		return Reply{Text: msgIdle}
	}
}

func (h *Handler) finishAdd(ctx context.Context, s *session, ownerID, date string) Reply {
	rec := s.draft
	rec.OwnerID = ownerID
	rec.Date = date

	id, err := h.store.Add(ctx, rec)
	switch {
	case errors.Is(err, types.ErrInvalidDate):
		return Reply{Text: msgBadDate}
	case err != nil:
		h.logger.Error("adding record", "owner", ownerID, "error", err)
		return Reply{Text: msgAddFailed}
	}

	h.metrics.RecordAdded()
	h.logger.Debug("record added", "owner", ownerID, "record", id)
	s.reset(Done)
	return Reply{Text: msgAdded}
}

func (h *Handler) startDelete(ctx context.Context, s *session, ownerID string) Reply {
	records, err := h.store.ListByOwner(ctx, ownerID)
	if err != nil {
		h.logger.Error("listing records", "owner", ownerID, "error", err)
		s.reset(Done)
		return Reply{Text: msgStoreFailed}
	}
	if len(records) == 0 {
		s.reset(Done)
		return Reply{Text: msgNothingDelete}
	}

	s.reset(AwaitingDeleteLabel)
	return Reply{Text: msgAskDelete, Options: uniqueLabels(records)}
}

func (h *Handler) finishDelete(ctx context.Context, s *session, ownerID, label string) Reply {
	s.reset(Done)

	deleted, err := h.store.DeleteByOwnerAndLabel(ctx, ownerID, label)
	if err != nil {
		h.logger.Error("deleting record", "owner", ownerID, "error", err)
		return Reply{Text: msgStoreFailed}
	}
	if !deleted {
		return Reply{Text: fmt.Sprintf("Could not delete the birthday of %s.", label)}
	}
	h.metrics.RecordDeleted()
	return Reply{Text: fmt.Sprintf("Birthday of %s deleted.", label)}
}

func (h *Handler) list(ctx context.Context, ownerID string) Reply {
	records, err := h.store.ListByOwner(ctx, ownerID)
	if err != nil {
		h.logger.Error("listing records", "owner", ownerID, "error", err)
		return Reply{Text: msgStoreFailed}
	}
	if len(records) == 0 {
		return Reply{Text: msgEmptyList}
	}

	var b strings.Builder
	b.WriteString("Your birthdays:\n")
	for _, r := range records {
		fmt.Fprintf(&b, "- %s: %s%s\n", r.Label, r.Date, extras(r))
	}
	return Reply{Text: strings.TrimSuffix(b.String(), "\n")}
}

func (h *Handler) today(ctx context.Context, ownerID string) Reply {
	records, err := h.eval.TodayFor(ctx, ownerID)
	if err != nil {
		h.logger.Error("reading today's records", "owner", ownerID, "error", err)
		return Reply{Text: msgStoreFailed}
	}
	if len(records) == 0 {
		return Reply{Text: msgNoneToday}
	}

	var b strings.Builder
	b.WriteString("Birthdays today:\n")
	for _, r := range records {
		fmt.Fprintf(&b, "- %s%s\n", r.Label, extras(r))
	}
	return Reply{Text: strings.TrimSuffix(b.String(), "\n")}
}

// extras renders the optional group and details of r.
func extras(r types.Record) string {
	var s string
	if r.Group != nil {
		s += ", group: " + *r.Group
	}
	if r.Details != nil {
		s += ", " + *r.Details
	}
	return s
}

func uniqueLabels(records []types.Record) []string {
	seen := make(map[string]bool, len(records))
	labels := make([]string, 0, len(records))
	for _, r := range records {
		if seen[r.Label] {
			continue
		}
		seen[r.Label] = true
		labels = append(labels, r.Label)
	}
	return labels
}
