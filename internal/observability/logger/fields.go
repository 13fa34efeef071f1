package logger

import (
	"time"

	"go.uber.org/zap"
)

// =================================================================================
// CAMPOS ESTÁNDAR - TRANSPORT
// =================================================================================

// RequestID crea un campo para el ID del request saliente.
func RequestID(v string) zap.Field {
	return zap.String("request_id", v)
}

// Method crea un campo para el método HTTP.
func Method(v string) zap.Field {
	return zap.String("method", v)
}

// Path crea un campo para el path del request.
func Path(v string) zap.Field {
	return zap.String("path", v)
}

// Status crea un campo para el status code HTTP.
func Status(v int) zap.Field {
	return zap.Int("status", v)
}

// Duration crea un campo para la duración del request.
func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - SESIÓN
// =================================================================================

// UserID crea un campo para el ID del usuario autenticado.
func UserID(v int64) zap.Field {
	return zap.Int64("user_id", v)
}

// Role crea un campo para el rol del usuario.
func Role(v string) zap.Field {
	return zap.String("role", v)
}

// LearnerID crea un campo para el ID del learner seleccionado.
func LearnerID(v int64) zap.Field {
	return zap.Int64("learner_id", v)
}

// Mode crea un campo para el modo de interacción activo.
func Mode(v string) zap.Field {
	return zap.String("mode", v)
}

// Token crea un campo para un token YA enmascarado (util.MaskToken).
func Token(v string) zap.Field {
	return zap.String("token", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - SISTEMA
// =================================================================================

// Component crea un campo para el componente/módulo.
func Component(v string) zap.Field {
	return zap.String("component", v)
}

// Op crea un campo para la operación actual.
func Op(v string) zap.Field {
	return zap.String("op", v)
}

// Err crea un campo para un error.
func Err(err error) zap.Field {
	return zap.Error(err)
}

// Count crea un campo para un conteo.
func Count(v int) zap.Field {
	return zap.Int("count", v)
}

// Key crea un campo genérico para una clave de storage/cache.
func Key(v string) zap.Field {
	return zap.String("key", v)
}

// String crea un campo string genérico.
func String(key, v string) zap.Field {
	return zap.String(key, v)
}

// Bool crea un campo bool genérico.
func Bool(key string, v bool) zap.Field {
	return zap.Bool(key, v)
}
