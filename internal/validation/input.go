package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// Username rules:
// - Lowercase letters, digits, "_" "." "-" in the middle.
// - Start and end with [a-z0-9].
// - Length 3..32.
//
// Examples valid: pat, pat.smith, kid_2, a-b
// Examples invalid: Pat, .pat, pat., ab, "has space", 33+ chars.
var usernameRe = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9_.-]{1,30}[a-z0-9])?$`)

// ValidUsername retorna true si el username cumple el patrón permitido.
func ValidUsername(name string) bool {
	return len(name) >= 3 && usernameRe.MatchString(name)
}

// MinPasswordLen es el largo mínimo aceptado antes de ir al servidor.
const MinPasswordLen = 8

// CheckPassword valida el largo mínimo. El resto de la política es del server.
func CheckPassword(pw string) error {
	if len(pw) < MinPasswordLen {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLen)
	}
	return nil
}

// CheckEmail hace el sanity check mínimo de forma; la verificación real la
// hace el servidor al enviar el mail de confirmación.
func CheckEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil // opcional en el registro
	}
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 || strings.ContainsAny(email, " ;") {
		return fmt.Errorf("invalid email address %q", email)
	}
	return nil
}

// GradeLevel range for learner profiles.
const (
	MinGradeLevel = 0 // kindergarten
	MaxGradeLevel = 12
)

// CheckGradeLevel valida el rango de grade level de un learner.
func CheckGradeLevel(g int) error {
	if g < MinGradeLevel || g > MaxGradeLevel {
		return fmt.Errorf("grade level %d out of range [%d..%d]", g, MinGradeLevel, MaxGradeLevel)
	}
	return nil
}
