package http

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"agenda-api/internal/authz"
	"agenda-api/internal/domain"
)

var errInvalidID = errors.New("identifier must be an integer")

// idValue accepts an identifier sent either as a JSON number or a numeric string.
type idValue int64

func (v *idValue) UnmarshalJSON(data []byte) error {
	raw := string(bytes.Trim(data, `"`))
	if raw == "" || raw == "null" {
		*v = 0
		return nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return errInvalidID
	}
	*v = idValue(n)
	return nil
}

type createEventRequest struct {
	Titulo     string  `json:"titulo"`
	Title      string  `json:"title"`
	DataInicio string  `json:"data_inicio"`
	Start      string  `json:"start"`
	IDAgenda   idValue `json:"id_agenda"`
	AgendaID   idValue `json:"agenda_id"`
}

func (r createEventRequest) agendaID() int64 {
	if r.IDAgenda != 0 {
		return int64(r.IDAgenda)
	}
	return int64(r.AgendaID)
}

// EventResponse is the JSON shape of an event.
type EventResponse struct {
	ID         int64     `json:"id"`
	Titulo     string    `json:"titulo"`
	DataInicio time.Time `json:"data_inicio"`
	IDAgenda   int64     `json:"id_agenda"`
	CriadoEm   time.Time `json:"criado_em"`
}

func eventToResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		Titulo:     e.Title,
		DataInicio: e.StartsAt,
		IDAgenda:   e.AgendaID,
		CriadoEm:   e.CreatedAt,
	}
}

const msgEventFieldsRequired = "Título, data de início e ID da agenda são obrigatórios."

var (
	createEventFailure = failure{
		op:       "create event",
		internal: "Erro ao criar evento.",
		messages: map[int]string{
			http.StatusBadRequest: msgEventFieldsRequired,
			http.StatusNotFound:   "Agenda não encontrada.",
			http.StatusForbidden:  "Acesso negado. Você não é o dono desta agenda.",
		},
	}
	listEventsFailure = failure{
		op:       "list events",
		internal: "Erro ao buscar eventos.",
		messages: map[int]string{
			http.StatusNotFound:  "Agenda não encontrada.",
			http.StatusForbidden: "Acesso negado. Você não é o dono desta agenda.",
		},
	}
	deleteEventFailure = failure{
		op:       "delete event",
		internal: "Erro ao deletar evento.",
		messages: map[int]string{
			http.StatusNotFound:  "Evento não encontrado.",
			http.StatusForbidden: "Acesso negado. Você não é o dono deste evento.",
		},
	}
)

var startLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseStart reads an event start time. Values without an offset are taken as UTC.
func parseStart(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range startLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.New("unrecognized date format")
}

func (h *Handler) createEvent(c *gin.Context) {
	var req createEventRequest
	if err := c.ShouldBindJSON(&req); errors.Is(err, errInvalidID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID da agenda inválido."})
		return
	}

	title := firstNonEmpty(req.Titulo, req.Title)
	rawStart := firstNonEmpty(req.DataInicio, req.Start)
	agendaID := req.agendaID()
	if strings.TrimSpace(title) == "" || rawStart == "" || agendaID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgEventFieldsRequired})
		return
	}
	if agendaID < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID da agenda inválido."})
		return
	}
	startsAt, err := parseStart(rawStart)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Data de início inválida."})
		return
	}

	ctx := c.Request.Context()
	fields := logrus.Fields{"agenda_id": agendaID}
	if d := h.gate.Authorize(ctx, userID(c), authz.EventCreate, authz.Target{AgendaID: agendaID}); !d.Allowed {
		h.fail(c, createEventFailure, d.Err(), fields)
		return
	}

	event, err := h.events.Create(ctx, agendaID, title, startsAt)
	if err != nil {
		h.fail(c, createEventFailure, err, fields)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Evento criado com sucesso!", "id": event.ID})
}

func (h *Handler) listEvents(c *gin.Context) {
	agendaID, ok := pathID(c, "id_agenda")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	fields := logrus.Fields{"agenda_id": agendaID}
	if d := h.gate.Authorize(ctx, userID(c), authz.EventList, authz.Target{AgendaID: agendaID}); !d.Allowed {
		h.fail(c, listEventsFailure, d.Err(), fields)
		return
	}

	events, err := h.events.ListByAgenda(ctx, agendaID)
	if err != nil {
		h.fail(c, listEventsFailure, err, fields)
		return
	}

	resp := make([]EventResponse, len(events))
	for i := range events {
		resp[i] = eventToResponse(events[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) deleteEvent(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	uid := userID(c)
	ctx := c.Request.Context()
	fields := logrus.Fields{"event_id": id}
	if d := h.gate.Authorize(ctx, uid, authz.EventDelete, authz.Target{EventID: id}); !d.Allowed {
		h.fail(c, deleteEventFailure, d.Err(), fields)
		return
	}

	if err := h.events.Delete(ctx, id, uid); err != nil {
		h.fail(c, deleteEventFailure, err, fields)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Evento deletado com sucesso."})
}
