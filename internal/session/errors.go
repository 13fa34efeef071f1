package session

import (
	"errors"
	"net/http"

	"github.com/sunschool/sunschool-go/internal/transport"
)

// Errores canónicos user-facing. Cada fallo de login/register mapea a
// exactamente uno de estos; ningún error crudo del transporte llega a la UI.
var (
	ErrCheckConnection    = errors.New("please check your internet connection")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrServerUnavailable  = errors.New("server temporarily unavailable")
	ErrAccountExists      = errors.New("an account with this username already exists")
	ErrMalformedResponse  = errors.New("server returned an incomplete response")
)

func canonical(err error) bool {
	return errors.Is(err, ErrCheckConnection) ||
		errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrServerUnavailable) ||
		errors.Is(err, ErrAccountExists) ||
		errors.Is(err, ErrMalformedResponse)
}

// mapAuthError convierte un error de transporte en el mensaje canónico.
// Orden de prioridad: ya-canónico (pass-through, evita doble wrap) →
// red → 401 → 409 (solo register) → resto.
func mapAuthError(err error, register bool) error {
	if err == nil {
		return nil
	}
	if canonical(err) {
		return err
	}
	if transport.IsNetwork(err) {
		return ErrCheckConnection
	}
	switch transport.StatusOf(err) {
	case http.StatusUnauthorized:
		return ErrInvalidCredentials
	case http.StatusConflict:
		if register {
			return ErrAccountExists
		}
		return ErrServerUnavailable
	default:
		// 500/503 y cualquier otra respuesta con error
		return ErrServerUnavailable
	}
}
