package referral

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vitalred/vitalred/internal/platform/apperror"
	"github.com/vitalred/vitalred/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const referralCols = `id, paciente_nombre, paciente_identificacion, paciente_edad, paciente_sexo,
	paciente_telefono, institucion_remitente, medico_remitente, correo_remitente,
	motivo_consulta, diagnostico_presuntivo, antecedentes_medicos, medicamentos, signos_vitales,
	especialidad_solicitada, prioridad_ia, prioridad_medica, score_urgencia, confianza_ia, tiempo_ia_ms,
	estado, medico_evaluador_id, decision, observaciones_evaluacion, codigo_rechazo,
	fecha_programada, servicio_destino, detalle_info_solicitada, fecha_evaluacion,
	fuente_ingreso, reminder_sent_at, created_at, updated_at, deleted_at`

func scanReferral(row pgx.Row) (*Referral, error) {
	var ref Referral
	err := row.Scan(&ref.ID, &ref.PacienteNombre, &ref.PacienteIdentificacion, &ref.PacienteEdad,
		&ref.PacienteSexo, &ref.PacienteTelefono, &ref.InstitucionRemitente, &ref.MedicoRemitente,
		&ref.CorreoRemitente, &ref.MotivoConsulta, &ref.DiagnosticoPresuntivo, &ref.AntecedentesMedicos,
		&ref.Medicamentos, &ref.SignosVitales, &ref.EspecialidadSolicitada, &ref.PrioridadIA,
		&ref.PrioridadMedica, &ref.ScoreUrgencia, &ref.ConfianzaIA, &ref.TiempoIAMs, &ref.Estado, &ref.MedicoEvaluadorID,
		&ref.Decision, &ref.ObservacionesEvaluacion, &ref.CodigoRechazo, &ref.FechaProgramada,
		&ref.ServicioDestino, &ref.DetalleInfoSolicitada, &ref.FechaEvaluacion, &ref.FuenteIngreso,
		&ref.ReminderSentAt, &ref.CreatedAt, &ref.UpdatedAt, &ref.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

func (r *repoPG) Create(ctx context.Context, ref *Referral) error {
	ref.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO solicitudes_medicas (id, paciente_nombre, paciente_identificacion, paciente_edad,
			paciente_sexo, paciente_telefono, institucion_remitente, medico_remitente, correo_remitente,
			motivo_consulta, diagnostico_presuntivo, antecedentes_medicos, medicamentos, signos_vitales,
			especialidad_solicitada, prioridad_ia, score_urgencia, confianza_ia, tiempo_ia_ms,
			estado, fuente_ingreso)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`,
		ref.ID, ref.PacienteNombre, ref.PacienteIdentificacion, ref.PacienteEdad,
		ref.PacienteSexo, ref.PacienteTelefono, ref.InstitucionRemitente, ref.MedicoRemitente,
		ref.CorreoRemitente, ref.MotivoConsulta, ref.DiagnosticoPresuntivo, ref.AntecedentesMedicos,
		ref.Medicamentos, ref.SignosVitales, ref.EspecialidadSolicitada, ref.PrioridadIA,
		ref.ScoreUrgencia, ref.ConfianzaIA, ref.TiempoIAMs, ref.Estado, ref.FuenteIngreso)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Referral, error) {
	return scanReferral(r.conn(ctx).QueryRow(ctx,
		`SELECT `+referralCols+` FROM solicitudes_medicas WHERE id = $1 AND deleted_at IS NULL`, id))
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Referral, int, error) {
	clauses := []string{"deleted_at IS NULL"}
	var args []interface{}

	add := func(clause string, value interface{}) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if f.Pendientes {
		clauses = append(clauses, "estado IN ('received','under_review')")
	} else if f.Estado != "" {
		add("estado = $%d", f.Estado)
	}
	if f.Especialidad != "" {
		add("especialidad_solicitada = $%d", f.Especialidad)
	}
	if f.Prioridad != "" {
		add("COALESCE(prioridad_medica, prioridad_ia) = $%d", f.Prioridad)
	}
	if f.EvaluadorID != nil {
		add("medico_evaluador_id = $%d", *f.EvaluadorID)
	}

	where := " WHERE " + strings.Join(clauses, " AND ")
	order := " ORDER BY created_at DESC"
	if f.Pendientes {
		order = " ORDER BY score_urgencia DESC, created_at"
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM solicitudes_medicas`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM solicitudes_medicas%s%s LIMIT $%d OFFSET $%d`,
		referralCols, where, order, len(args)+1, len(args)+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items, err := collect(rows)
	return items, total, err
}

// Transition persists a status change with an optimistic check on the status
// the caller read. Zero rows affected means somebody else moved the referral
// first.
func (r *repoPG) Transition(ctx context.Context, ref *Referral, expectedStatus string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE solicitudes_medicas SET estado=$3, medico_evaluador_id=$4, decision=$5,
			observaciones_evaluacion=$6, codigo_rechazo=$7, fecha_programada=$8,
			servicio_destino=$9, detalle_info_solicitada=$10, fecha_evaluacion=$11,
			prioridad_medica=$12, updated_at=NOW()
		WHERE id = $1 AND estado = $2 AND deleted_at IS NULL`,
		ref.ID, expectedStatus, ref.Estado, ref.MedicoEvaluadorID, ref.Decision,
		ref.ObservacionesEvaluacion, ref.CodigoRechazo, ref.FechaProgramada,
		ref.ServicioDestino, ref.DetalleInfoSolicitada, ref.FechaEvaluacion,
		ref.PrioridadMedica)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.ErrConflict
	}
	return nil
}

func (r *repoPG) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE solicitudes_medicas SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.ErrNotFound
	}
	return nil
}

func (r *repoPG) ListAwaitingReminder(ctx context.Context, receivedBefore time.Time) ([]*Referral, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+referralCols+` FROM solicitudes_medicas
		WHERE deleted_at IS NULL
		  AND estado IN ('received','under_review')
		  AND created_at < $1
		  AND reminder_sent_at IS NULL
		ORDER BY created_at`, receivedBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func (r *repoPG) MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE solicitudes_medicas SET reminder_sent_at = $2 WHERE id = $1`, id, at)
	return err
}

func collect(rows pgx.Rows) ([]*Referral, error) {
	var items []*Referral
	for rows.Next() {
		ref, err := scanReferral(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, ref)
	}
	return items, rows.Err()
}
