// Package catalog holds the controlled vocabularies shared by intake
// validation and user management.
package catalog

import "strings"

// Specialties a referral can be addressed to. Matching is case-insensitive
// but the canonical spelling below is what gets stored.
var Specialties = []string{
	"Medicina Interna",
	"Pediatría",
	"Ginecología",
	"Obstetricia",
	"Cirugía General",
	"Ortopedia",
	"Cardiología",
	"Neurología",
	"Neurocirugía",
	"Psiquiatría",
	"Dermatología",
	"Urología",
	"Oftalmología",
	"Otorrinolaringología",
	"Oncología",
	"Nefrología",
	"Gastroenterología",
	"Endocrinología",
	"Neumología",
	"Infectología",
}

// CanonicalSpecialty returns the canonical spelling for s and whether s is a
// recognized specialty.
func CanonicalSpecialty(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, sp := range Specialties {
		if strings.EqualFold(sp, s) {
			return sp, true
		}
	}
	return "", false
}

// PediatricSpecialty reports whether the specialty only accepts minors.
func PediatricSpecialty(s string) bool {
	return strings.EqualFold(s, "Pediatría")
}
