package referral

import (
	"time"

	"github.com/vitalred/vitalred/internal/platform/apperror"
)

// Decision actions.
const (
	DecisionAccept      = "aceptar"
	DecisionReject      = "rechazar"
	DecisionRequestInfo = "solicitar_info"
)

// Priority labels an evaluator may assign.
const (
	PriorityHigh   = "Alta"
	PriorityMedium = "Media"
	PriorityLow    = "Baja"
)

// Decision is the tagged evaluation payload. Which fields are required
// depends on Accion: aceptar needs the scheduled date and destination
// service, rechazar a reason code, solicitar_info the detail of what is
// missing.
type Decision struct {
	Accion          string     `json:"accion"`
	FechaProgramada *time.Time `json:"fecha_programada,omitempty"`
	ServicioDestino string     `json:"servicio_destino,omitempty"`
	CodigoRechazo   string     `json:"codigo_rechazo,omitempty"`
	Detalle         string     `json:"detalle,omitempty"`
	Observaciones   string     `json:"observaciones,omitempty"`
	PrioridadMedica string     `json:"prioridad_medica,omitempty"`
}

// TargetStatus maps the action to the status it moves the referral into.
func (d *Decision) TargetStatus() (string, bool) {
	switch d.Accion {
	case DecisionAccept:
		return StatusAccepted, true
	case DecisionReject:
		return StatusRejected, true
	case DecisionRequestInfo:
		return StatusDeferred, true
	default:
		return "", false
	}
}

// Validate checks the per-action required fields, reporting every violation
// at once.
func (d *Decision) Validate() error {
	ve := &apperror.ValidationError{}

	switch d.Accion {
	case DecisionAccept:
		if d.FechaProgramada == nil {
			ve.Add("fecha_programada", "la aceptación requiere fecha programada")
		}
		if d.ServicioDestino == "" {
			ve.Add("servicio_destino", "la aceptación requiere servicio de destino")
		}
	case DecisionReject:
		if d.CodigoRechazo == "" {
			ve.Add("codigo_rechazo", "el rechazo requiere código de motivo")
		}
	case DecisionRequestInfo:
		if d.Detalle == "" {
			ve.Add("detalle", "debe indicar qué información falta")
		}
	default:
		ve.Add("accion", "acción no reconocida: "+d.Accion)
	}

	if d.PrioridadMedica != "" {
		switch d.PrioridadMedica {
		case PriorityHigh, PriorityMedium, PriorityLow:
		default:
			ve.Add("prioridad_medica", "prioridad no reconocida: "+d.PrioridadMedica)
		}
	}

	return ve.OrNil()
}
