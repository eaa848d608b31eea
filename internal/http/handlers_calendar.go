package http

import (
	"errors"
	"net/http"
	"time"

	"buchhaltung/internal/calendar"
	"buchhaltung/internal/core"
	"buchhaltung/internal/log"
)

const datetimeLocal = "2006-01-02T15:04"

// calendarEvent is the shape the calendar widget consumes.
type calendarEvent struct {
	ID    core.ID    `json:"id"`
	Title string     `json:"title"`
	Start time.Time  `json:"start"`
	End   *time.Time `json:"end,omitempty"`
}

func toCalendarEvent(ev core.Event) calendarEvent {
	return calendarEvent{ID: ev.ID, Title: ev.Title, Start: ev.StartAt, End: ev.EndAt}
}

func toCalendarEvents(evs []core.Event) []calendarEvent {
	out := make([]calendarEvent, len(evs))
	for i, ev := range evs {
		out[i] = toCalendarEvent(ev)
	}
	return out
}

type apiError struct {
	Error string         `json:"error"`
	Event *calendarEvent `json:"event,omitempty"`
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// handleListEvents reloads the board. When the store fails the previously
// displayed events are returned unchanged.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	evs, err := s.board.Load(r.Context())
	if err != nil {
		s.requestLogger(r).ErrorContext(r.Context(), "Event load failed",
			log.FieldError, err,
			log.FieldOperation, log.OpList)
		evs = s.board.Events()
	}
	NewHTMXResponse().BodyJSON(toCalendarEvents(evs)).Write(w)
}

// handleCreateEvent creates an event from a day click or a range
// selection. A day without end becomes a one-hour event; a blank title
// creates nothing.
func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	p, errResp := parseBody(r)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	title := p.Get("title")
	start, ok := parseTime(p.Get("start"))
	if !ok {
		s.writeEventError(w, r, http.StatusBadRequest, msgBadRequest, nil)
		return
	}
	end, hasEnd := parseTime(p.Get("end"))

	var (
		ev      core.Event
		created bool
		err     error
	)
	if !hasEnd && (isDateOnly(p.Get("start")) || p.Get("all_day") == "true") {
		ev, created, err = s.board.CreateAt(r.Context(), start, title)
	} else {
		var endPtr *time.Time
		if hasEnd {
			endPtr = &end
		}
		ev, created, err = s.board.CreateRange(r.Context(), start, endPtr, title)
	}

	switch {
	case errors.Is(err, core.ErrInvalidDateRange):
		s.writeEventError(w, r, http.StatusUnprocessableEntity, msgEventFailed, nil)
		return
	case err != nil:
		s.appMetrics.failures.Add(1)
		s.requestLogger(r).ErrorContext(r.Context(), "Event not created",
			log.FieldError, err,
			log.FieldOperation, log.OpCreate)
		s.writeEventError(w, r, http.StatusBadGateway, msgEventFailed, nil)
		return
	case !created:
		NewHTMXResponse().Status(http.StatusNoContent).Write(w)
		return
	}

	s.appMetrics.mutations.Add(1)
	resp := NewHTMXResponse().
		TriggerCalendarRefresh().
		TriggerSuccessNotification(msgEventSaved)
	if isHTMX(r) {
		resp.BodyHTML("").Write(w)
		return
	}
	resp.Status(http.StatusCreated).BodyJSON(toCalendarEvent(ev)).Write(w)
}

// handleMoveEvent applies a drag or resize. On failure the response
// carries the original event so the widget can revert it.
func (s *Server) handleMoveEvent(w http.ResponseWriter, r *http.Request) {
	p, errResp := parseBody(r)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	id := core.ID(sanitizeInput(r.PathValue("id")))
	start, ok := parseTime(p.Get("start"))
	if !ok {
		s.writeEventError(w, r, http.StatusBadRequest, msgBadRequest, nil)
		return
	}
	var end *time.Time
	if e, ok := parseTime(p.Get("end")); ok {
		end = &e
	}

	if _, ok := s.board.Get(id); !ok {
		if _, err := s.board.Load(r.Context()); err != nil {
			s.requestLogger(r).WarnContext(r.Context(), "Event reload failed", log.FieldError, err)
		}
	}

	ev, err := s.board.Move(r.Context(), id, start, end)
	switch {
	case err == nil:
		s.appMetrics.mutations.Add(1)
		NewHTMXResponse().BodyJSON(toCalendarEvent(ev)).Write(w)
	case errors.Is(err, calendar.ErrEventNotFound):
		s.writeEventError(w, r, http.StatusNotFound, msgEventFailed, nil)
	case errors.Is(err, core.ErrInvalidDateRange):
		var original *calendarEvent
		if cur, ok := s.board.Get(id); ok {
			ce := toCalendarEvent(cur)
			original = &ce
		}
		s.writeEventError(w, r, http.StatusUnprocessableEntity, msgEventFailed, original)
	default:
		s.appMetrics.failures.Add(1)
		s.requestLogger(r).ErrorContext(r.Context(), "Event move rejected",
			log.FieldEventID, id.String(),
			log.FieldError, err,
			log.FieldOperation, log.OpUpdate)
		original := toCalendarEvent(ev)
		s.writeEventError(w, r, http.StatusBadGateway, msgEventFailed, &original)
	}
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id := core.ID(sanitizeInput(r.PathValue("id")))
	if err := s.board.Remove(r.Context(), id); err != nil {
		s.appMetrics.failures.Add(1)
		s.requestLogger(r).ErrorContext(r.Context(), "Event delete failed",
			log.FieldEventID, id.String(),
			log.FieldError, err,
			log.FieldOperation, log.OpDelete)
		s.writeEventError(w, r, http.StatusBadGateway, msgDeleteFailed, nil)
		return
	}
	s.appMetrics.mutations.Add(1)
	NewHTMXResponse().
		Status(http.StatusNoContent).
		TriggerCalendarRefresh().
		TriggerSuccessNotification(msgDeleted).
		Write(w)
}

// writeEventError answers JSON clients with an apiError and htmx clients
// with the error markup. Both get the error toast.
func (s *Server) writeEventError(w http.ResponseWriter, r *http.Request, status int, message string, original *calendarEvent) {
	if isHTMX(r) {
		ErrorResponse(status, message).TriggerErrorNotification(message).Write(w)
		return
	}
	NewHTMXResponse().
		Status(status).
		TriggerErrorNotification(message).
		BodyJSON(apiError{Error: message, Event: original}).
		Write(w)
}

// eventModal drives both event dialogs.
type eventModal struct {
	ID         core.ID
	Title      string
	Start      string
	End        string
	AllDay     bool
	Confirming bool
}

func newEventModal(ev core.Event, state calendar.State) eventModal {
	m := eventModal{
		ID:         ev.ID,
		Title:      ev.Title,
		Start:      ev.StartAt.UTC().Format(datetimeLocal),
		Confirming: state == calendar.ConfirmingDelete,
	}
	if ev.EndAt != nil {
		m.End = ev.EndAt.UTC().Format(datetimeLocal)
	}
	return m
}

// handleNewEventModal renders the create dialog for a clicked day or a
// selected range.
func (s *Server) handleNewEventModal(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	m := eventModal{AllDay: isDateOnly(q.Get("start")) && q.Get("end") == ""}
	if t, ok := parseTime(q.Get("start")); ok {
		m.Start = t.Format(datetimeLocal)
	} else {
		m.Start = time.Now().UTC().Truncate(time.Hour).Format(datetimeLocal)
	}
	if t, ok := parseTime(q.Get("end")); ok {
		m.End = t.Format(datetimeLocal)
	}
	s.renderModal(w, r, "event_new_modal", m)
}

// handleEditEventModal opens the edit dialog of one event, discarding any
// dialog left open for it.
func (s *Server) handleEditEventModal(w http.ResponseWriter, r *http.Request) {
	id := core.ID(sanitizeInput(r.PathValue("id")))
	if _, ok := s.board.Get(id); !ok {
		if _, err := s.board.Load(r.Context()); err != nil {
			s.requestLogger(r).WarnContext(r.Context(), "Event reload failed", log.FieldError, err)
		}
	}

	ed, err := s.board.OpenEditor(id)
	if err != nil {
		NotFoundError(msgEventFailed).TriggerErrorNotification(msgEventFailed).Write(w)
		return
	}
	s.renderModal(w, r, "event_edit_modal", newEventModal(ed.Event(), ed.State()))
}

// handleEditEventAction advances the edit dialog. Each action maps to one
// editor transition; an empty body closes the dialog.
func (s *Server) handleEditEventAction(w http.ResponseWriter, r *http.Request) {
	id := core.ID(sanitizeInput(r.PathValue("id")))
	logger := s.requestLogger(r)
	action := r.PathValue("action")
	ed, ok := s.board.ActiveEditor(id)
	if !ok && action == "close" {
		NewHTMXResponse().BodyHTML("").Write(w)
		return
	}
	if !ok {
		ErrorResponse(http.StatusConflict, msgEventFailed).TriggerErrorNotification(msgEventFailed).Write(w)
		return
	}

	var (
		err     error
		changed bool
		deleted bool
	)
	switch action {
	case "save":
		p, errResp := parseBody(r)
		if errResp != nil {
			errResp.Write(w)
			return
		}
		changed, err = ed.Save(r.Context(), p.Get("title"))
	case "delete":
		err = ed.RequestDelete()
	case "confirm":
		err = ed.ConfirmDelete(r.Context())
		deleted = err == nil
	case "cancel":
		err = ed.Cancel()
	case "close":
		err = ed.Close()
	default:
		NotFoundError(msgBadRequest).Write(w)
		return
	}

	switch {
	case errors.Is(err, calendar.ErrInvalidTransition):
		logger.WarnContext(r.Context(), "Editor transition rejected",
			log.FieldEventID, id.String(),
			log.FieldError, err)
		ErrorResponse(http.StatusConflict, msgEventFailed).TriggerErrorNotification(msgEventFailed).Write(w)
		return
	case errors.Is(err, core.ErrEmptyTitle):
		UnprocessableEntityError(msgEventFailed).TriggerErrorNotification(msgEventFailed).Write(w)
		return
	case err != nil:
		s.appMetrics.failures.Add(1)
		logger.ErrorContext(r.Context(), "Event edit failed",
			log.FieldEventID, id.String(),
			log.FieldError, err)
		message := msgEventFailed
		if action == "confirm" {
			message = msgDeleteFailed
		}
		BadGatewayError(message).TriggerErrorNotification(message).Write(w)
		return
	}

	if ed.State() != calendar.Idle {
		s.renderModal(w, r, "event_edit_modal", newEventModal(ed.Event(), ed.State()))
		return
	}

	resp := NewHTMXResponse()
	switch {
	case deleted:
		s.appMetrics.mutations.Add(1)
		resp.TriggerCalendarRefresh().TriggerSuccessNotification(msgDeleted)
	case changed:
		s.appMetrics.mutations.Add(1)
		resp.TriggerCalendarRefresh().TriggerSuccessNotification(msgEventSaved)
	}
	resp.BodyHTML("").Write(w)
}

func (s *Server) renderModal(w http.ResponseWriter, r *http.Request, name string, m eventModal) {
	html, err := s.renderBuffer(name, m)
	if err != nil {
		s.requestLogger(r).ErrorContext(r.Context(), "Modal render failed",
			log.FieldError, err,
			log.FieldOperation, log.OpRender)
		InternalServerError(msgTemplateFailed).Write(w)
		return
	}
	NewHTMXResponse().BodyHTML(html).Write(w)
}
