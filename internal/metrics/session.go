package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Session/mode Prometheus metrics. Standalone package to avoid import cycles
// between the session controller and the mode selector.

var (
	Logins = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "session_logins_total",
		Help: "Intentos de login por resultado",
	}, []string{"result"})

	Registrations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "session_registrations_total",
		Help: "Intentos de registro por resultado",
	}, []string{"result"})

	Logouts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "session_logouts_total",
		Help: "Logouts ejecutados",
	})

	TokenValidations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "session_token_validations_total",
		Help: "Validaciones del token persistido al arranque, por resultado",
	}, []string{"result"})

	SessionExpiries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "session_expiries_total",
		Help: "Expiraciones de sesión detectadas fuera de logout",
	})

	LearnerSwitches = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mode_learner_switches_total",
		Help: "Cambios de learner seleccionado",
	})

	ModeToggles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mode_toggles_total",
		Help: "Cambios de modo por modo destino",
	}, []string{"to"})

	CacheInvalidations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_invalidations_total",
		Help: "Keys invalidadas en las familias learner-scoped",
	})
)

// Register registers the session metrics on the given registry (or default if nil).
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	cs := []prometheus.Collector{
		Logins, Registrations, Logouts, TokenValidations,
		SessionExpiries, LearnerSwitches, ModeToggles, CacheInvalidations,
	}
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
