package referral

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Referral statuses.
const (
	StatusReceived    = "received"
	StatusUnderReview = "under_review"
	StatusAccepted    = "accepted"
	StatusRejected    = "rejected"
	StatusDeferred    = "deferred"
	StatusCompleted   = "completed"
)

// Intake sources.
const (
	SourceAPI   = "api"
	SourceEmail = "email"
)

// Referral is the central entity: one patient referral submitted by an
// external institution, classified by the AI service and evaluated by a
// physician. Field names follow the hospital's Spanish vocabulary.
type Referral struct {
	ID uuid.UUID `json:"id"`

	PacienteNombre         string `json:"paciente_nombre"`
	PacienteIdentificacion string `json:"paciente_identificacion"`
	PacienteEdad           int    `json:"paciente_edad"`
	PacienteSexo           string `json:"paciente_sexo"`
	PacienteTelefono       string `json:"paciente_telefono"`

	InstitucionRemitente string `json:"institucion_remitente"`
	MedicoRemitente      string `json:"medico_remitente"`
	CorreoRemitente      string `json:"correo_remitente"`

	MotivoConsulta        string          `json:"motivo_consulta"`
	DiagnosticoPresuntivo string          `json:"diagnostico_presuntivo"`
	AntecedentesMedicos   string          `json:"antecedentes_medicos"`
	Medicamentos          string          `json:"medicamentos"`
	SignosVitales         json.RawMessage `json:"signos_vitales,omitempty"`

	EspecialidadSolicitada string `json:"especialidad_solicitada"`

	PrioridadIA     string   `json:"prioridad_ia"`
	PrioridadMedica *string  `json:"prioridad_medica,omitempty"`
	ScoreUrgencia   float64  `json:"score_urgencia"`
	ConfianzaIA     float64  `json:"confianza_ia"`
	TiempoIAMs      *float64 `json:"tiempo_ia_ms,omitempty"`

	Estado            string     `json:"estado"`
	MedicoEvaluadorID *uuid.UUID `json:"medico_evaluador_id,omitempty"`

	Decision                *string    `json:"decision,omitempty"`
	ObservacionesEvaluacion *string    `json:"observaciones_evaluacion,omitempty"`
	CodigoRechazo           *string    `json:"codigo_rechazo,omitempty"`
	FechaProgramada         *time.Time `json:"fecha_programada,omitempty"`
	ServicioDestino         *string    `json:"servicio_destino,omitempty"`
	DetalleInfoSolicitada   *string    `json:"detalle_info_solicitada,omitempty"`
	FechaEvaluacion         *time.Time `json:"fecha_evaluacion,omitempty"`

	FuenteIngreso   string     `json:"fuente_ingreso"`
	ReminderSentAt  *time.Time `json:"reminder_sent_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
}

// Priority returns the effective priority: the evaluator's manual value wins
// over the AI verdict, which is retained for comparison.
func (r *Referral) Priority() string {
	if r.PrioridadMedica != nil && *r.PrioridadMedica != "" {
		return *r.PrioridadMedica
	}
	return r.PrioridadIA
}

// IsUrgent reports whether the referral warrants the dedicated high-priority
// notification path.
func (r *Referral) IsUrgent(scoreThreshold float64) bool {
	return r.Priority() == "Alta" || r.ScoreUrgencia >= scoreThreshold
}

// Evaluated reports whether a physician has already issued a verdict.
func (r *Referral) Evaluated() bool {
	return r.FechaEvaluacion != nil
}

// AssignedTo reports whether the referral is assigned to the given user.
func (r *Referral) AssignedTo(userID string) bool {
	return r.MedicoEvaluadorID != nil && r.MedicoEvaluadorID.String() == userID
}
