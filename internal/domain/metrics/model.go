package metrics

import "time"

// PeriodDaily is the only rollup period currently produced.
const PeriodDaily = "daily"

// DailyMetric is one rollup row keyed by (date, period). Mid-flight
// referrals count toward the volumes but are excluded from the latency
// averages.
type DailyMetric struct {
	Date   time.Time `json:"date"`
	Period string    `json:"period"`

	TotalReceived     int            `json:"total_received"`
	CountsByStatus    map[string]int `json:"counts_by_status"`
	CountsByPriority  map[string]int `json:"counts_by_priority"`
	CountsBySpecialty map[string]int `json:"counts_by_specialty"`

	AvgAIProcessingMs  float64 `json:"avg_ai_processing_ms"`
	AvgEvaluationHours float64 `json:"avg_evaluation_hours"`

	NotificationSuccessRate float64 `json:"notification_success_rate"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
