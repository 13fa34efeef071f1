// Package storage provee el key-value persistente del cliente.
//
// Guarda el token de sesión, las preferencias de modo/learner y el blob del
// result cache. Sobrevive reinicios del proceso. Un archivo ausente o
// corrupto se trata como "no seteado", nunca como error fatal.
package storage

// Claves persistidas. Los nombres vienen del cliente original para que un
// perfil existente siga siendo legible.
const (
	KeyAuthToken       = "AUTH_TOKEN"
	KeyAuthTokenData   = "AUTH_TOKEN_DATA"
	KeyPreferredMode   = "preferredMode"
	KeySelectedLearner = "SELECTED_LEARNER_ID"
	KeyResultCache     = "LEARNER_APP_CACHE"
)

// Store es el contrato del key-value persistente.
type Store interface {
	// Get retorna el valor y true si la clave existe.
	Get(key string) (string, bool)

	// Set guarda un valor. Sobrescribe si ya existe.
	Set(key, value string) error

	// Remove elimina una clave. No falla si no existe.
	Remove(key string) error
}
