package referral

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vitalred/vitalred/internal/domain/audit"
	"github.com/vitalred/vitalred/internal/domain/notification"
	"github.com/vitalred/vitalred/internal/domain/user"
	"github.com/vitalred/vitalred/internal/platform/ai"
	"github.com/vitalred/vitalred/internal/platform/apperror"
	"github.com/vitalred/vitalred/internal/platform/auth"
)

// Auditor records mutations inside the caller's transaction.
type Auditor interface {
	RecordForActor(ctx context.Context, actor *auth.Actor, e *audit.Entry) error
}

// Notifier enqueues notifications for asynchronous delivery.
type Notifier interface {
	Enqueue(ctx context.Context, n *notification.Notification) error
}

// PhysicianDirectory resolves the physicians covering a specialty.
type PhysicianDirectory interface {
	PhysiciansForSpecialty(ctx context.Context, specialty string) ([]*user.User, error)
}

// TxRunner executes fn inside a database transaction carried in ctx.
type TxRunner func(ctx context.Context, fn func(context.Context) error) error

const entityType = "solicitud_medica"

// ServiceConfig holds the intake thresholds.
type ServiceConfig struct {
	BlockedSenderDomains []string
	UrgentScoreThreshold float64
	ReminderAfter        time.Duration
}

// Service is the sole write path for referrals: every mutation runs
// validate, transition, audit and notify in that order, with the mutation
// and its audit record committing atomically.
type Service struct {
	repo       Repository
	classifier ai.Classifier
	auditor    Auditor
	notifier   Notifier
	physicians PhysicianDirectory
	runTx      TxRunner
	cfg        ServiceConfig
	logger     zerolog.Logger
	now        func() time.Time
}

func NewService(repo Repository, classifier ai.Classifier, auditor Auditor, notifier Notifier,
	physicians PhysicianDirectory, runTx TxRunner, cfg ServiceConfig, logger zerolog.Logger) *Service {
	return &Service{
		repo:       repo,
		classifier: classifier,
		auditor:    auditor,
		notifier:   notifier,
		physicians: physicians,
		runTx:      runTx,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// Create validates, classifies and persists a manually submitted referral.
func (s *Service) Create(ctx context.Context, actor *auth.Actor, ref *Referral) error {
	if ref.FuenteIngreso == "" {
		ref.FuenteIngreso = SourceAPI
	}
	ref.Estado = StatusReceived

	if err := ValidateCreate(ref, s.cfg.BlockedSenderDomains); err != nil {
		return err
	}
	s.classify(ctx, ref)
	if ref.Priority() == PriorityHigh && len([]rune(ref.MotivoConsulta)) < minMotivoLengthForAlta {
		return (&apperror.ValidationError{}).
			Add("motivo_consulta", "una solicitud de prioridad Alta requiere un motivo de consulta de al menos 50 caracteres")
	}

	err := s.runTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, ref); err != nil {
			return err
		}
		return s.auditor.RecordForActor(ctx, actor, &audit.Entry{
			Action:     audit.ActionCreate,
			EntityType: entityType,
			EntityID:   ref.ID.String(),
			After:      audit.Snapshot(ref),
		})
	})
	if err != nil {
		return err
	}

	s.notifyCreated(ctx, ref)
	return nil
}

// EmailIntake is the payload the external mail-ingestion service delivers
// for each parsed referral email.
type EmailIntake struct {
	Sender          string          `json:"sender"`
	Subject         string          `json:"subject"`
	Body            string          `json:"body"`
	ExtractedFields *Referral       `json:"extracted_fields"`
	Attachments     json.RawMessage `json:"attachments,omitempty"`
}

// IntakeEmail creates a referral from a parsed inbound email. The referral
// is attributed to the system, not to an operator.
func (s *Service) IntakeEmail(ctx context.Context, in *EmailIntake) (*Referral, error) {
	if in.ExtractedFields == nil {
		return nil, (&apperror.ValidationError{}).Add("extracted_fields", "payload sin campos extraídos")
	}
	ref := in.ExtractedFields
	ref.FuenteIngreso = SourceEmail
	if ref.CorreoRemitente == "" {
		ref.CorreoRemitente = strings.ToLower(strings.TrimSpace(in.Sender))
	}
	if ref.MotivoConsulta == "" {
		ref.MotivoConsulta = strings.TrimSpace(in.Body)
	}
	if err := s.Create(ctx, nil, ref); err != nil {
		return nil, err
	}
	return ref, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Referral, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Referral, int, error) {
	return s.repo.List(ctx, f, limit, offset)
}

// EvaluateRequest is the evaluation payload: either a tagged decision or a
// bare target status for the administrative moves (under_review, completed,
// received).
type EvaluateRequest struct {
	Estado   string    `json:"estado,omitempty"`
	Decision *Decision `json:"decision,omitempty"`
}

func (req *EvaluateRequest) target() (string, error) {
	if req.Decision != nil && req.Decision.Accion != "" {
		if err := req.Decision.Validate(); err != nil {
			return "", err
		}
		target, _ := req.Decision.TargetStatus()
		if req.Estado != "" && req.Estado != target {
			return "", (&apperror.ValidationError{}).
				Add("estado", "el estado no corresponde a la acción "+req.Decision.Accion)
		}
		return target, nil
	}
	// A bare status move; the decision, when present, only carries the
	// evaluator's observations.
	switch req.Estado {
	case StatusUnderReview, StatusCompleted, StatusReceived:
		return req.Estado, nil
	case "":
		return "", (&apperror.ValidationError{}).Add("estado", "debe indicar un estado o una acción")
	default:
		return "", (&apperror.ValidationError{}).
			Add("estado", "el estado "+req.Estado+" requiere una acción de evaluación")
	}
}

// Evaluate applies one status transition. The referral row and its audit
// record commit in the same transaction; losing a concurrent race surfaces
// as Conflict because the optimistic status check finds the row already
// moved.
func (s *Service) Evaluate(ctx context.Context, actor *auth.Actor, id uuid.UUID, req *EvaluateRequest) (*Referral, error) {
	ref, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := AuthorizeUpdate(ref, actor); err != nil {
		return nil, err
	}

	target, err := req.target()
	if err != nil {
		return nil, err
	}

	before := audit.Snapshot(ref)
	expected := ref.Estado
	wasHigh := ref.Priority() == PriorityHigh

	if err := AttemptTransition(ref, target, actor, req.Decision, s.now().UTC()); err != nil {
		return nil, err
	}

	err = s.runTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Transition(ctx, ref, expected); err != nil {
			return err
		}
		return s.auditor.RecordForActor(ctx, actor, &audit.Entry{
			Action:     audit.ActionEvaluate,
			EntityType: entityType,
			EntityID:   ref.ID.String(),
			Before:     before,
			After:      audit.Snapshot(ref),
		})
	})
	if err != nil {
		return nil, err
	}

	s.notifyEvaluated(ctx, ref)
	if !wasHigh && ref.Priority() == PriorityHigh {
		s.notifyUrgent(ctx, ref)
	}
	return ref, nil
}

// SoftDelete marks a referral deleted. Rows are never physically removed.
func (s *Service) SoftDelete(ctx context.Context, actor *auth.Actor, id uuid.UUID) error {
	if !actor.IsAdmin() {
		return apperror.ErrForbidden
	}
	ref, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return s.runTx(ctx, func(ctx context.Context) error {
		if err := s.repo.SoftDelete(ctx, id); err != nil {
			return err
		}
		return s.auditor.RecordForActor(ctx, actor, &audit.Entry{
			Action:     audit.ActionDelete,
			EntityType: entityType,
			EntityID:   id.String(),
			Before:     audit.Snapshot(ref),
		})
	})
}

// SendReminders enqueues a reminder for every referral that has waited past
// the configured window without a verdict. Returns how many were reminded.
func (s *Service) SendReminders(ctx context.Context) (int, error) {
	cutoff := s.now().UTC().Add(-s.cfg.ReminderAfter)
	stale, err := s.repo.ListAwaitingReminder(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, ref := range stale {
		// Mark before enqueueing: a mark failure skips the reminder rather
		// than repeating it on every pass.
		if err := s.repo.MarkReminderSent(ctx, ref.ID, s.now().UTC()); err != nil {
			s.logger.Error().Err(err).Str("referral_id", ref.ID.String()).Msg("mark reminder sent failed")
			continue
		}
		s.fanOut(ctx, ref, notification.TypeReminder,
			"Solicitud pendiente de evaluación",
			"La solicitud de "+ref.EspecialidadSolicitada+" lleva más del plazo establecido sin evaluación.")
		count++
	}
	return count, nil
}

// classify asks the AI service for a triage verdict. Classification is best
// effort: when the service is down or the breaker is open the referral still
// comes in with the fallback priority.
func (s *Service) classify(ctx context.Context, ref *Referral) {
	text := strings.TrimSpace(strings.Join([]string{
		ref.MotivoConsulta, ref.DiagnosticoPresuntivo, ref.AntecedentesMedicos,
	}, "\n"))

	start := s.now()
	cls, err := s.classifier.Classify(ctx, text)
	if err != nil {
		s.logger.Warn().Err(err).Msg("classifier unavailable, using fallback priority")
		cls = ai.FallbackClassification()
	} else {
		elapsed := float64(s.now().Sub(start).Milliseconds())
		ref.TiempoIAMs = &elapsed
	}
	ref.PrioridadIA = cls.Priority
	ref.ScoreUrgencia = cls.UrgencyScore
	ref.ConfianzaIA = cls.Confidence
}

func (s *Service) notifyCreated(ctx context.Context, ref *Referral) {
	if ref.IsUrgent(s.cfg.UrgentScoreThreshold) {
		s.notifyUrgent(ctx, ref)
		return
	}
	s.fanOut(ctx, ref, notification.TypeNewReferral,
		"Nueva solicitud de "+ref.EspecialidadSolicitada,
		"Paciente "+ref.PacienteNombre+", prioridad "+ref.Priority()+".")
}

func (s *Service) notifyUrgent(ctx context.Context, ref *Referral) {
	s.fanOut(ctx, ref, notification.TypeUrgentReferral,
		"Solicitud URGENTE de "+ref.EspecialidadSolicitada,
		"Paciente "+ref.PacienteNombre+" requiere atención prioritaria.")
}

// notifyEvaluated tells the referring institution the outcome by email.
func (s *Service) notifyEvaluated(ctx context.Context, ref *Referral) {
	if ref.CorreoRemitente == "" {
		return
	}
	n := &notification.Notification{
		RecipientEmail: ref.CorreoRemitente,
		Type:           notification.TypeEvaluated,
		Title:          "Su solicitud de remisión fue actualizada",
		Message:        "La solicitud del paciente " + ref.PacienteNombre + " pasó al estado " + ref.Estado + ".",
		Payload:        referralPayload(ref),
		Priority:       ref.Priority(),
		Channels:       []string{notification.ChannelEmail},
	}
	if err := s.notifier.Enqueue(ctx, n); err != nil {
		s.logger.Error().Err(err).Str("referral_id", ref.ID.String()).Msg("enqueue evaluation notice failed")
	}
}

// fanOut enqueues one notification per physician covering the specialty.
// Delivery failures never surface to the triggering request.
func (s *Service) fanOut(ctx context.Context, ref *Referral, notifType, title, message string) {
	recipients, err := s.physicians.PhysiciansForSpecialty(ctx, ref.EspecialidadSolicitada)
	if err != nil {
		s.logger.Error().Err(err).
			Str("specialty", ref.EspecialidadSolicitada).
			Msg("resolve notification recipients failed")
		return
	}
	channels := []string{notification.ChannelInternal}
	if notifType == notification.TypeUrgentReferral {
		channels = append(channels, notification.ChannelEmail)
	}
	for _, recipient := range recipients {
		recipientID := recipient.ID
		n := &notification.Notification{
			RecipientID:    &recipientID,
			RecipientEmail: recipient.Email,
			Type:           notifType,
			Title:          title,
			Message:        message,
			Payload:        referralPayload(ref),
			Priority:       ref.Priority(),
			Channels:       channels,
		}
		if err := s.notifier.Enqueue(ctx, n); err != nil {
			s.logger.Error().Err(err).
				Str("referral_id", ref.ID.String()).
				Str("recipient", recipient.Email).
				Msg("enqueue notification failed")
		}
	}
}

func referralPayload(ref *Referral) json.RawMessage {
	raw, _ := json.Marshal(map[string]interface{}{
		"referral_id":  ref.ID,
		"especialidad": ref.EspecialidadSolicitada,
		"prioridad":    ref.Priority(),
		"estado":       ref.Estado,
	})
	return raw
}
