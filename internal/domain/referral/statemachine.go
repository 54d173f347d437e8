package referral

import (
	"time"

	"github.com/google/uuid"

	"github.com/vitalred/vitalred/internal/platform/apperror"
	"github.com/vitalred/vitalred/internal/platform/auth"
)

// legalTransitions is the complete status graph. completed is terminal;
// rejected can only be reopened, never completed directly.
var legalTransitions = map[string][]string{
	StatusReceived:    {StatusUnderReview, StatusAccepted, StatusRejected, StatusDeferred},
	StatusUnderReview: {StatusAccepted, StatusRejected, StatusDeferred, StatusReceived},
	StatusAccepted:    {StatusCompleted, StatusUnderReview},
	StatusRejected:    {StatusUnderReview, StatusReceived},
	StatusDeferred:    {StatusReceived},
	StatusCompleted:   {},
}

// CanTransition reports whether from → to is a legal edge.
func CanTransition(from, to string) bool {
	for _, allowed := range legalTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// verdictStatuses are the states that stamp fecha_evaluacion on first entry.
var verdictStatuses = map[string]bool{
	StatusAccepted: true,
	StatusRejected: true,
	StatusDeferred: true,
}

// AttemptTransition applies the transition to r in memory, enforcing the
// legal-transition table, actor authorization and the companion fields the
// target status requires. r is only mutated when every check passes; the
// caller persists the result with an optimistic status check.
func AttemptTransition(r *Referral, target string, actor *auth.Actor, d *Decision, now time.Time) error {
	if !CanTransition(r.Estado, target) {
		return &apperror.IllegalTransitionError{From: r.Estado, To: target}
	}
	if err := authorizeTransition(r, target, actor); err != nil {
		return err
	}
	if err := requireCompanionFields(r, target, d); err != nil {
		return err
	}

	r.Estado = target

	// A referral back in received belongs to nobody; the next physician to
	// pick it up becomes the evaluator.
	if target == StatusReceived {
		r.MedicoEvaluadorID = nil
	}
	if target == StatusUnderReview && r.MedicoEvaluadorID == nil && actor != nil {
		if id, err := uuid.Parse(actor.ID); err == nil {
			r.MedicoEvaluadorID = &id
		}
	}
	if verdictStatuses[target] {
		if r.FechaEvaluacion == nil {
			t := now
			r.FechaEvaluacion = &t
		}
		if r.MedicoEvaluadorID == nil && actor != nil {
			if id, err := uuid.Parse(actor.ID); err == nil {
				r.MedicoEvaluadorID = &id
			}
		}
	}

	if d != nil {
		applyDecision(r, target, d)
	}
	return nil
}

// authorizeTransition enforces who may move a referral where: administrators
// anywhere, the assigned physician anywhere, and an unassigned referral may
// be picked up by any physician covering its specialty.
func authorizeTransition(r *Referral, target string, actor *auth.Actor) error {
	if actor == nil || actor.IsAdmin() {
		return nil
	}
	if r.AssignedTo(actor.ID) {
		return nil
	}
	if r.MedicoEvaluadorID == nil && actor.HasSpecialty(r.EspecialidadSolicitada) {
		return nil
	}
	return apperror.ErrForbidden
}

func requireCompanionFields(r *Referral, target string, d *Decision) error {
	ve := &apperror.ValidationError{}

	switch target {
	case StatusAccepted:
		if d == nil || d.FechaProgramada == nil {
			ve.Add("fecha_programada", "la aceptación requiere fecha programada")
		}
		if d == nil || d.ServicioDestino == "" {
			ve.Add("servicio_destino", "la aceptación requiere servicio de destino")
		}
	case StatusRejected:
		if d == nil || d.CodigoRechazo == "" {
			ve.Add("codigo_rechazo", "el rechazo requiere código de motivo")
		}
	case StatusDeferred:
		if d == nil || d.Detalle == "" {
			ve.Add("detalle", "debe indicar qué información falta")
		}
	}

	// Reworking an already evaluated case needs the evaluator to explain.
	if (target == StatusDeferred || target == StatusUnderReview) && r.Evaluated() {
		if d == nil || d.Observaciones == "" {
			ve.Add("observaciones", "reabrir un caso evaluado requiere observaciones")
		}
	}

	return ve.OrNil()
}

func applyDecision(r *Referral, target string, d *Decision) {
	switch target {
	case StatusAccepted:
		accion := DecisionAccept
		r.Decision = &accion
		r.FechaProgramada = d.FechaProgramada
		r.ServicioDestino = &d.ServicioDestino
	case StatusRejected:
		accion := DecisionReject
		r.Decision = &accion
		codigo := d.CodigoRechazo
		r.CodigoRechazo = &codigo
	case StatusDeferred:
		accion := DecisionRequestInfo
		r.Decision = &accion
		detalle := d.Detalle
		r.DetalleInfoSolicitada = &detalle
	}
	if d.Observaciones != "" {
		obs := d.Observaciones
		r.ObservacionesEvaluacion = &obs
	}
	if d.PrioridadMedica != "" {
		p := d.PrioridadMedica
		r.PrioridadMedica = &p
	}
}
