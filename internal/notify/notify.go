// Package notify es el sink de notificaciones user-visible ("toasts").
// Fire-and-forget: el core nunca espera ni falla por una notificación.
package notify

import (
	"github.com/sunschool/sunschool-go/internal/observability/logger"
)

// Notifier recibe los resultados visibles de login/register/logout.
type Notifier interface {
	Success(title, detail string)
	Failure(title, detail string)
}

// logNotifier es el default: emite las notificaciones al log.
type logNotifier struct{}

// NewLog crea un Notifier respaldado por el logger del proceso.
func NewLog() Notifier { return logNotifier{} }

func (logNotifier) Success(title, detail string) {
	logger.Named("notify").Info(title, logger.String("detail", detail))
}

func (logNotifier) Failure(title, detail string) {
	logger.Named("notify").Warn(title, logger.String("detail", detail))
}

// Recorder acumula notificaciones. Para tests.
type Recorder struct {
	Successes []Entry
	Failures  []Entry
}

// Entry es una notificación registrada.
type Entry struct {
	Title  string
	Detail string
}

func (r *Recorder) Success(title, detail string) {
	r.Successes = append(r.Successes, Entry{title, detail})
}

func (r *Recorder) Failure(title, detail string) {
	r.Failures = append(r.Failures, Entry{title, detail})
}
