package user

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vitalred/vitalred/internal/domain/catalog"
	"github.com/vitalred/vitalred/internal/platform/apperror"
	"github.com/vitalred/vitalred/internal/platform/auth"
)

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

type Service struct {
	users  Repository
	logger zerolog.Logger
}

func NewService(users Repository, logger zerolog.Logger) *Service {
	return &Service{users: users, logger: logger}
}

func (s *Service) validate(u *User) error {
	ve := &apperror.ValidationError{}

	if strings.TrimSpace(u.Name) == "" {
		ve.Add("name", "el nombre es obligatorio")
	}
	if !emailRe.MatchString(u.Email) {
		ve.Add("email", "correo electrónico inválido")
	}

	switch u.Role {
	case auth.RoleAdmin:
		if u.LicenseNumber != nil {
			ve.Add("license_number", "un administrador no puede tener registro médico")
		}
		if len(u.Specialties) > 0 {
			ve.Add("specialties", "un administrador no tiene especialidades asignadas")
		}
	case auth.RolePhysician:
		if u.LicenseNumber == nil || strings.TrimSpace(*u.LicenseNumber) == "" {
			ve.Add("license_number", "el registro médico es obligatorio para médicos")
		}
		if len(u.Specialties) == 0 {
			ve.Add("specialties", "un médico debe tener al menos una especialidad")
		}
		for i, sp := range u.Specialties {
			canonical, ok := catalog.CanonicalSpecialty(sp)
			if !ok {
				ve.Add("specialties", "especialidad no reconocida: "+sp)
				continue
			}
			u.Specialties[i] = canonical
		}
	default:
		ve.Add("role", "rol no reconocido: "+u.Role)
	}

	return ve.OrNil()
}

func (s *Service) Create(ctx context.Context, u *User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if err := s.validate(u); err != nil {
		return err
	}
	if existing, err := s.users.GetByEmail(ctx, u.Email); err == nil && existing != nil {
		return (&apperror.ValidationError{}).Add("email", "ya existe una cuenta con este correo")
	}
	u.Active = true
	if err := s.users.Create(ctx, u); err != nil {
		return err
	}
	s.logger.Info().Str("user_id", u.ID.String()).Str("role", u.Role).Msg("user created")
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, u *User) error {
	existing, err := s.users.GetByID(ctx, u.ID)
	if err != nil {
		return err
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if err := s.validate(u); err != nil {
		return err
	}
	if u.Email != existing.Email {
		if other, err := s.users.GetByEmail(ctx, u.Email); err == nil && other != nil && other.ID != u.ID {
			return (&apperror.ValidationError{}).Add("email", "ya existe una cuenta con este correo")
		}
	}
	return s.users.Update(ctx, u)
}

func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	if err := s.users.Deactivate(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("user_id", id.String()).Msg("user deactivated")
	return nil
}

func (s *Service) List(ctx context.Context, role string, limit, offset int) ([]*User, int, error) {
	return s.users.List(ctx, role, limit, offset)
}

// PhysiciansForSpecialty returns the active physicians who can receive
// notifications for referrals in the given specialty.
func (s *Service) PhysiciansForSpecialty(ctx context.Context, specialty string) ([]*User, error) {
	return s.users.ListBySpecialty(ctx, specialty)
}
