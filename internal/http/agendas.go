package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"agenda-api/internal/authz"
	"agenda-api/internal/domain"
)

type createAgendaRequest struct {
	Titulo string `json:"titulo"`
	Title  string `json:"title"`
}

// AgendaResponse is the JSON shape of an agenda.
type AgendaResponse struct {
	ID        int64     `json:"id"`
	Titulo    string    `json:"titulo"`
	IDUsuario int64     `json:"id_usuario"`
	CriadoEm  time.Time `json:"criado_em"`
}

func agendaToResponse(a domain.Agenda) AgendaResponse {
	return AgendaResponse{
		ID:        a.ID,
		Titulo:    a.Title,
		IDUsuario: a.OwnerID,
		CriadoEm:  a.CreatedAt,
	}
}

const msgAgendaNotFound = "Agenda não encontrada ou não pertence a este usuário."

var (
	createAgendaFailure = failure{
		op:       "create agenda",
		internal: "Erro ao criar agenda.",
		messages: map[int]string{http.StatusBadRequest: "O título da agenda é obrigatório."},
	}
	listAgendasFailure = failure{
		op:       "list agendas",
		internal: "Erro ao buscar agendas.",
	}
	// existence and ownership failures collapse into one 404
	deleteAgendaFailure = failure{
		op:       "delete agenda",
		internal: "Erro ao deletar agenda.",
		messages: map[int]string{
			http.StatusNotFound:  msgAgendaNotFound,
			http.StatusForbidden: msgAgendaNotFound,
		},
	}
	exportAgendaFailure = failure{
		op:       "export agenda",
		internal: "Erro ao exportar agenda.",
		messages: map[int]string{
			http.StatusNotFound:  msgAgendaNotFound,
			http.StatusForbidden: msgAgendaNotFound,
		},
	}
)

func (h *Handler) createAgenda(c *gin.Context) {
	var req createAgendaRequest
	_ = c.ShouldBindJSON(&req)

	title := firstNonEmpty(req.Titulo, req.Title)
	if strings.TrimSpace(title) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": createAgendaFailure.messages[http.StatusBadRequest]})
		return
	}

	uid := userID(c)
	if d := h.gate.Authorize(c.Request.Context(), uid, authz.AgendaCreate, authz.Target{}); !d.Allowed {
		h.fail(c, createAgendaFailure, d.Err(), nil)
		return
	}

	agenda, err := h.agendas.Create(c.Request.Context(), uid, title)
	if err != nil {
		h.fail(c, createAgendaFailure, err, nil)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Agenda criada com sucesso!", "id": agenda.ID})
}

func (h *Handler) listAgendas(c *gin.Context) {
	uid := userID(c)
	if d := h.gate.Authorize(c.Request.Context(), uid, authz.AgendaList, authz.Target{}); !d.Allowed {
		h.fail(c, listAgendasFailure, d.Err(), nil)
		return
	}

	agendas, err := h.agendas.ListByOwner(c.Request.Context(), uid)
	if err != nil {
		h.fail(c, listAgendasFailure, err, nil)
		return
	}

	resp := make([]AgendaResponse, len(agendas))
	for i := range agendas {
		resp[i] = agendaToResponse(agendas[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) deleteAgenda(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	uid := userID(c)
	fields := logrus.Fields{"agenda_id": id}
	if d := h.gate.Authorize(c.Request.Context(), uid, authz.AgendaDelete, authz.Target{AgendaID: id}); !d.Allowed {
		h.fail(c, deleteAgendaFailure, d.Err(), fields)
		return
	}

	if err := h.agendas.Delete(c.Request.Context(), id, uid); err != nil {
		h.fail(c, deleteAgendaFailure, err, fields)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Agenda deletada com sucesso."})
}

// exportAgenda renders an owned agenda and its events as an iCalendar document.
func (h *Handler) exportAgenda(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	fields := logrus.Fields{"agenda_id": id}
	if d := h.gate.Authorize(ctx, userID(c), authz.AgendaExport, authz.Target{AgendaID: id}); !d.Allowed {
		h.fail(c, exportAgendaFailure, d.Err(), fields)
		return
	}

	agenda, err := h.agendas.Get(ctx, id)
	if err != nil {
		h.fail(c, exportAgendaFailure, err, fields)
		return
	}
	events, err := h.events.ListByAgenda(ctx, id)
	if err != nil {
		h.fail(c, exportAgendaFailure, err, fields)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="agenda-%d.ics"`, id))
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(renderCalendar(agenda, events)))
}

func renderCalendar(agenda *domain.Agenda, events []domain.Event) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//agenda-api//agenda export//PT")
	cal.SetXWRCalName(agenda.Title)

	for _, ev := range events {
		vevent := cal.AddEvent(fmt.Sprintf("evento-%d@agenda-api", ev.ID))
		vevent.SetSummary(ev.Title)
		vevent.SetStartAt(ev.StartsAt.UTC())
		vevent.SetDtStampTime(ev.CreatedAt.UTC())
		vevent.SetCreatedTime(ev.CreatedAt.UTC())
	}
	return cal.Serialize()
}
