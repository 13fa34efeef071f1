package logger

import "go.uber.org/zap"

// S retorna el SugaredLogger del singleton.
// Útil para logs rápidos con formato printf-style en cmd/.
func S() *zap.SugaredLogger {
	return L().Sugar()
}
