// Package authz decides whether a session user may act on an agenda or event.
//
// Ownership is a two-hop chain (user owns agenda owns event) that storage does
// not enforce, so every single-resource decision walks the chain from the
// target back to its owning user and compares it with the session binding.
// Request-supplied owner fields are never consulted.
package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"agenda-api/internal/domain"
)

// Operation names a protected action.
type Operation string

const (
	AgendaCreate Operation = "agenda.create"
	AgendaList   Operation = "agenda.list"
	AgendaDelete Operation = "agenda.delete"
	AgendaExport Operation = "agenda.export"
	EventCreate  Operation = "event.create"
	EventList    Operation = "event.list"
	EventDelete  Operation = "event.delete"
)

// Reason explains a denial.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonUnauthenticated Reason = "unauthenticated"
	ReasonNotFound        Reason = "not_found"
	ReasonForbidden       Reason = "forbidden"
	// ReasonStoreFailure means the chain could not be resolved; Cause holds the store error.
	ReasonStoreFailure Reason = "store_failure"
)

// Target identifies the resource an operation acts on. Only the ids relevant
// to the operation are read.
type Target struct {
	AgendaID int64
	EventID  int64
}

// Decision is the outcome of Authorize.
type Decision struct {
	Allowed bool
	Reason  Reason
	Cause   error
}

// Err converts a denial into the matching domain error, or nil when allowed.
func (d Decision) Err() error {
	switch {
	case d.Allowed:
		return nil
	case d.Reason == ReasonUnauthenticated:
		return domain.ErrUnauthenticated
	case d.Reason == ReasonNotFound:
		return domain.ErrNotFound
	case d.Reason == ReasonForbidden:
		return domain.ErrForbidden
	case d.Cause != nil:
		return d.Cause
	default:
		return errors.New("authorization failed")
	}
}

// Outcome is the label used for metrics: "allow" or the denial reason.
func (d Decision) Outcome() string {
	if d.Allowed {
		return "allow"
	}
	return string(d.Reason)
}

// AgendaLookup resolves one ownership hop. Absence is reported as domain.ErrNotFound.
type AgendaLookup interface {
	Get(ctx context.Context, id int64) (*domain.Agenda, error)
}

// EventLookup resolves an event to its parent agenda id.
type EventLookup interface {
	Get(ctx context.Context, id int64) (*domain.Event, error)
}

// Recorder receives every decision, typically a metrics collector.
type Recorder interface {
	RecordAuthzDecision(operation, outcome string)
}

// Policy toggles checks the original service never performed.
type Policy struct {
	// StrictEventCreate requires the caller to own the agenda an event is created under.
	StrictEventCreate bool
	// StrictEventList requires the caller to own the agenda whose events are listed.
	StrictEventList bool
}

// Gate is stateless apart from its collaborators and may be shared across requests.
type Gate struct {
	agendas  AgendaLookup
	events   EventLookup
	policy   Policy
	recorder Recorder
	logger   logrus.FieldLogger
}

// Option customizes a Gate.
type Option func(*Gate)

// WithRecorder reports every decision to r.
func WithRecorder(r Recorder) Option {
	return func(g *Gate) { g.recorder = r }
}

// WithLogger sets the logger denials are written to at debug level.
func WithLogger(l logrus.FieldLogger) Option {
	return func(g *Gate) { g.logger = l }
}

func NewGate(agendas AgendaLookup, events EventLookup, policy Policy, opts ...Option) *Gate {
	g := &Gate{
		agendas: agendas,
		events:  events,
		policy:  policy,
		logger:  logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Policy returns the active policy.
func (g *Gate) Policy() Policy {
	return g.policy
}

// Authorize decides whether sessionUserID may perform op on target.
// A zero sessionUserID means there is no session.
func (g *Gate) Authorize(ctx context.Context, sessionUserID int64, op Operation, target Target) Decision {
	d := g.decide(ctx, sessionUserID, op, target)
	if g.recorder != nil {
		g.recorder.RecordAuthzDecision(string(op), d.Outcome())
	}
	if !d.Allowed {
		entry := g.logger.WithFields(logrus.Fields{
			"operation": op,
			"user_id":   sessionUserID,
			"agenda_id": target.AgendaID,
			"event_id":  target.EventID,
			"reason":    d.Reason,
		})
		if d.Cause != nil {
			entry = entry.WithError(d.Cause)
		}
		entry.Debug("authorization denied")
	}
	return d
}

func (g *Gate) decide(ctx context.Context, uid int64, op Operation, target Target) Decision {
	if uid <= 0 {
		return deny(ReasonUnauthenticated, nil)
	}

	switch op {
	case AgendaCreate, AgendaList:
		// owner comes from the session and listing is filtered by it
		return allow()
	case AgendaDelete, AgendaExport:
		return g.agendaOwner(ctx, uid, target.AgendaID, true)
	case EventCreate:
		if !g.policy.StrictEventCreate {
			return allow()
		}
		return g.agendaOwner(ctx, uid, target.AgendaID, false)
	case EventList:
		if !g.policy.StrictEventList {
			return allow()
		}
		return g.agendaOwner(ctx, uid, target.AgendaID, false)
	case EventDelete:
		return g.eventOwner(ctx, uid, target.EventID)
	default:
		return deny(ReasonForbidden, fmt.Errorf("unknown operation %q", op))
	}
}

// agendaOwner resolves one hop. With collapse set, a foreign agenda is
// reported as not found so non-owners learn nothing about its existence.
func (g *Gate) agendaOwner(ctx context.Context, uid, agendaID int64, collapse bool) Decision {
	agenda, err := g.agendas.Get(ctx, agendaID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return deny(ReasonNotFound, err)
		}
		return deny(ReasonStoreFailure, fmt.Errorf("resolve agenda %d: %w", agendaID, err))
	}
	if !agenda.OwnedBy(uid) {
		cause := fmt.Errorf("agenda %d owned by user %d", agendaID, agenda.OwnerID)
		if collapse {
			return deny(ReasonNotFound, cause)
		}
		return deny(ReasonForbidden, cause)
	}
	return allow()
}

// eventOwner resolves two hops: event -> agenda -> owner. A missing event is
// NotFound; a missing or foreign parent agenda is Forbidden.
func (g *Gate) eventOwner(ctx context.Context, uid, eventID int64) Decision {
	event, err := g.events.Get(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return deny(ReasonNotFound, err)
		}
		return deny(ReasonStoreFailure, fmt.Errorf("resolve event %d: %w", eventID, err))
	}

	agenda, err := g.agendas.Get(ctx, event.AgendaID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return deny(ReasonForbidden, fmt.Errorf("event %d parent agenda %d missing", eventID, event.AgendaID))
		}
		return deny(ReasonStoreFailure, fmt.Errorf("resolve agenda %d: %w", event.AgendaID, err))
	}
	if !agenda.OwnedBy(uid) {
		return deny(ReasonForbidden, fmt.Errorf("event %d agenda %d owned by user %d", eventID, agenda.ID, agenda.OwnerID))
	}
	return allow()
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason Reason, cause error) Decision {
	return Decision{Reason: reason, Cause: cause}
}
