// Package nav implementa la navegación diferida del cliente.
//
// Las operaciones de sesión/modo nunca navegan de forma síncrona: dejan un
// target pendiente que un paso de reconciliación consume después de que el
// estado fue commiteado. Así la pantalla destino nunca renderiza contra
// estado viejo. No "simplificar" esto a llamadas directas.
package nav

import (
	"sync"

	"github.com/sunschool/sunschool-go/internal/observability/logger"
)

// Route es un destino de navegación del cliente.
type Route string

const (
	RouteAuth        Route = "/auth"
	RouteLearnerHome Route = "/learner"
	RouteDashboard   Route = "/dashboard"
	RouteLearners    Route = "/learners"
)

// Navigator ejecuta una transición de vista. La implementación es de la UI.
type Navigator interface {
	Navigate(r Route) error
}

// Func adapta una función a Navigator.
type Func func(r Route) error

func (f Func) Navigate(r Route) error { return f(r) }

// Pending es el target de navegación pendiente del proceso.
type Pending struct {
	mu     sync.Mutex
	target *Route

	primary Navigator
	// fallback se usa cuando la navegación client-side falla
	// (equivalente al full page load del cliente original).
	fallback Navigator
}

// NewPending crea el scheduler de navegación. fallback puede ser nil.
func NewPending(primary, fallback Navigator) *Pending {
	return &Pending{primary: primary, fallback: fallback}
}

// Schedule deja r como target pendiente. Un target previo no consumido se
// sobrescribe: gana la última operación.
func (p *Pending) Schedule(r Route) {
	p.mu.Lock()
	p.target = &r
	p.mu.Unlock()
}

// Peek retorna el target pendiente sin consumirlo.
func (p *Pending) Peek() (Route, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.target == nil {
		return "", false
	}
	return *p.target, true
}

// Reconcile consume el target pendiente y navega. Si la navegación primaria
// falla, intenta el fallback. Retorna el target consumido y si había alguno.
func (p *Pending) Reconcile() (Route, bool) {
	p.mu.Lock()
	if p.target == nil {
		p.mu.Unlock()
		return "", false
	}
	r := *p.target
	p.target = nil
	p.mu.Unlock()

	if p.primary != nil {
		if err := p.primary.Navigate(r); err == nil {
			return r, true
		} else {
			logger.Named("nav").Warn("client-side navigation failed, forcing reload",
				logger.String("route", string(r)), logger.Err(err))
		}
	}
	if p.fallback != nil {
		if err := p.fallback.Navigate(r); err != nil {
			logger.Named("nav").Error("fallback navigation failed",
				logger.String("route", string(r)), logger.Err(err))
		}
	}
	return r, true
}
