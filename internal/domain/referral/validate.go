package referral

import (
	"regexp"
	"strings"

	"github.com/vitalred/vitalred/internal/domain/catalog"
	"github.com/vitalred/vitalred/internal/platform/apperror"
	"github.com/vitalred/vitalred/internal/platform/auth"
)

const minMotivoLengthForAlta = 50

var phoneStripRe = regexp.MustCompile(`[\s().-]`)

// NormalizePhone reduces a phone number to digits with an optional leading
// plus. Returns false when anything else remains.
func NormalizePhone(raw string) (string, bool) {
	s := phoneStripRe.ReplaceAllString(strings.TrimSpace(raw), "")
	if s == "" {
		return "", true
	}
	rest := s
	if strings.HasPrefix(s, "+") {
		rest = s[1:]
	}
	if rest == "" {
		return "", false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return s, true
}

// ValidateCreate normalizes the payload in place and returns every violated
// rule at once. blockedDomains lists sender domains that are rejected
// outright (public webmail providers impersonating institutions).
func ValidateCreate(r *Referral, blockedDomains []string) error {
	ve := &apperror.ValidationError{}

	r.PacienteNombre = strings.TrimSpace(r.PacienteNombre)
	r.PacienteIdentificacion = strings.TrimSpace(r.PacienteIdentificacion)
	r.InstitucionRemitente = strings.TrimSpace(r.InstitucionRemitente)
	r.CorreoRemitente = strings.ToLower(strings.TrimSpace(r.CorreoRemitente))
	r.MotivoConsulta = strings.TrimSpace(r.MotivoConsulta)

	if r.PacienteNombre == "" {
		ve.Add("paciente_nombre", "el nombre del paciente es obligatorio")
	}
	if r.PacienteIdentificacion == "" {
		ve.Add("paciente_identificacion", "la identificación del paciente es obligatoria")
	}
	if r.PacienteEdad < 0 || r.PacienteEdad > 120 {
		ve.Add("paciente_edad", "la edad debe estar entre 0 y 120")
	}
	switch r.PacienteSexo {
	case "Masculino", "Femenino":
	default:
		ve.Add("paciente_sexo", "el sexo debe ser Masculino o Femenino")
	}

	if normalized, ok := NormalizePhone(r.PacienteTelefono); ok {
		r.PacienteTelefono = normalized
	} else {
		ve.Add("paciente_telefono", "teléfono inválido")
	}

	if canonical, ok := catalog.CanonicalSpecialty(r.EspecialidadSolicitada); ok {
		r.EspecialidadSolicitada = canonical
		if catalog.PediatricSpecialty(canonical) && r.PacienteEdad > 17 {
			ve.Add("paciente_edad", "Pediatría solo acepta pacientes de 17 años o menos")
		}
	} else {
		ve.Add("especialidad_solicitada", "especialidad no reconocida: "+r.EspecialidadSolicitada)
	}

	if r.MotivoConsulta == "" {
		ve.Add("motivo_consulta", "el motivo de consulta es obligatorio")
	}
	if r.Priority() == PriorityHigh && len([]rune(r.MotivoConsulta)) < minMotivoLengthForAlta {
		ve.Add("motivo_consulta", "una solicitud de prioridad Alta requiere un motivo de consulta de al menos 50 caracteres")
	}

	if r.CorreoRemitente != "" {
		if domain, ok := emailDomain(r.CorreoRemitente); !ok {
			ve.Add("correo_remitente", "correo del remitente inválido")
		} else {
			for _, blocked := range blockedDomains {
				if strings.EqualFold(domain, blocked) {
					ve.Add("correo_remitente", "el dominio del remitente no corresponde a una institución: "+domain)
					break
				}
			}
		}
	}

	return ve.OrNil()
}

// AuthorizeUpdate enforces the role-aware update rule: a physician may only
// touch referrals assigned to them or within one of their specialties;
// administrators may touch any.
func AuthorizeUpdate(r *Referral, actor *auth.Actor) error {
	if actor == nil || actor.IsAdmin() {
		return nil
	}
	if r.AssignedTo(actor.ID) || actor.HasSpecialty(r.EspecialidadSolicitada) {
		return nil
	}
	return apperror.ErrForbidden
}

func emailDomain(email string) (string, bool) {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "", false
	}
	return email[at+1:], true
}
