package metrics

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

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

func (r *repoPG) CollectDaily(ctx context.Context, date time.Time) (*DailyMetric, error) {
	day := date.UTC().Truncate(24 * time.Hour)
	next := day.AddDate(0, 0, 1)

	m := &DailyMetric{
		Date:              day,
		Period:            PeriodDaily,
		CountsByStatus:    map[string]int{},
		CountsByPriority:  map[string]int{},
		CountsBySpecialty: map[string]int{},
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT estado, COALESCE(prioridad_medica, prioridad_ia), especialidad_solicitada, COUNT(*)
		FROM solicitudes_medicas
		WHERE created_at >= $1 AND created_at < $2 AND deleted_at IS NULL
		GROUP BY 1, 2, 3`, day, next)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var estado, prioridad, especialidad string
		var count int
		if err := rows.Scan(&estado, &prioridad, &especialidad, &count); err != nil {
			return nil, err
		}
		m.TotalReceived += count
		m.CountsByStatus[estado] += count
		m.CountsByPriority[prioridad] += count
		m.CountsBySpecialty[especialidad] += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Rows missing their timestamps are mid-flight and excluded from the
	// averages; COALESCE keeps empty days at zero.
	err = r.conn(ctx).QueryRow(ctx, `
		SELECT
			COALESCE(AVG(tiempo_ia_ms), 0),
			COALESCE(AVG(EXTRACT(EPOCH FROM fecha_evaluacion - created_at) / 3600.0), 0)
		FROM solicitudes_medicas
		WHERE created_at >= $1 AND created_at < $2 AND deleted_at IS NULL`,
		day, next).Scan(&m.AvgAIProcessingMs, &m.AvgEvaluationHours)
	if err != nil {
		return nil, err
	}

	err = r.conn(ctx).QueryRow(ctx, `
		SELECT COALESCE(
			COUNT(*) FILTER (WHERE status = 'sent')::float /
			NULLIF(COUNT(*) FILTER (WHERE status IN ('sent','failed')), 0), 0)
		FROM notificaciones
		WHERE created_at >= $1 AND created_at < $2`,
		day, next).Scan(&m.NotificationSuccessRate)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (r *repoPG) Upsert(ctx context.Context, m *DailyMetric) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO metricas_diarias (metric_date, period, total_received, counts_by_status,
			counts_by_priority, counts_by_specialty, avg_ai_processing_ms, avg_evaluation_hours,
			notification_success_rate)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (metric_date, period) DO UPDATE SET
			total_received = EXCLUDED.total_received,
			counts_by_status = EXCLUDED.counts_by_status,
			counts_by_priority = EXCLUDED.counts_by_priority,
			counts_by_specialty = EXCLUDED.counts_by_specialty,
			avg_ai_processing_ms = EXCLUDED.avg_ai_processing_ms,
			avg_evaluation_hours = EXCLUDED.avg_evaluation_hours,
			notification_success_rate = EXCLUDED.notification_success_rate,
			updated_at = NOW()`,
		m.Date, m.Period, m.TotalReceived, m.CountsByStatus, m.CountsByPriority,
		m.CountsBySpecialty, m.AvgAIProcessingMs, m.AvgEvaluationHours, m.NotificationSuccessRate)
	return err
}

func (r *repoPG) GetRange(ctx context.Context, from, to time.Time) ([]*DailyMetric, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT metric_date, period, total_received, counts_by_status, counts_by_priority,
			counts_by_specialty, avg_ai_processing_ms, avg_evaluation_hours,
			notification_success_rate, created_at, updated_at
		FROM metricas_diarias
		WHERE period = 'daily' AND metric_date >= $1 AND metric_date <= $2
		ORDER BY metric_date`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*DailyMetric
	for rows.Next() {
		var m DailyMetric
		if err := rows.Scan(&m.Date, &m.Period, &m.TotalReceived, &m.CountsByStatus,
			&m.CountsByPriority, &m.CountsBySpecialty, &m.AvgAIProcessingMs,
			&m.AvgEvaluationHours, &m.NotificationSuccessRate, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, &m)
	}
	return items, rows.Err()
}
