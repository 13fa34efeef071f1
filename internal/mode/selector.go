// Package mode implementa el selector de modo y learner: decide el Mode
// activo, mantiene el SelectedLearner de un caregiver y bloquea cambios de
// modo destructivos detrás de la confirmación de unsaved changes.
package mode

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sunschool/sunschool-go/internal/cache"
	"github.com/sunschool/sunschool-go/internal/metrics"
	"github.com/sunschool/sunschool-go/internal/nav"
	"github.com/sunschool/sunschool-go/internal/observability/logger"
	"github.com/sunschool/sunschool-go/internal/session"
	"github.com/sunschool/sunschool-go/internal/storage"
)

// sessionSource es lo que el selector necesita del session controller.
type sessionSource interface {
	Identity() *session.Identity
	Subscribe() <-chan session.ExpiryEvent
}

// learnersAPI emite el fetch de learners.
type learnersAPI interface {
	Get(ctx context.Context, path string, out any) error
}

// ConfirmFunc pide confirmación explícita al usuario para un switch
// destructivo. Retorna true si el usuario acepta.
type ConfirmFunc func(prompt string) bool

// Options son las dependencias del selector.
type Options struct {
	Session sessionSource
	API     learnersAPI
	Store   storage.Store
	Results cache.Client
	Nav     *nav.Pending

	// Confirm gatea los switches con formularios dirty. Si es nil, un
	// registry no vacío siempre bloquea (equivale a declinar).
	Confirm ConfirmFunc
}

// Selector es el selector de modo y learner. Una instancia por proceso,
// construida después del session controller.
type Selector struct {
	session sessionSource
	api     learnersAPI
	store   storage.Store
	results cache.Client
	pending *nav.Pending
	confirm ConfirmFunc
	log     *zap.Logger

	mu              sync.RWMutex
	mode            Mode
	selected        *Learner
	available       []Learner
	loadingLearners bool
	switching       bool
	dirty           map[string]struct{}

	sf   singleflight.Group
	done chan struct{}
}

// New crea el selector. Llamar Init después de que el session controller
// haya resuelto la identidad.
func New(opts Options) *Selector {
	return &Selector{
		session: opts.Session,
		api:     opts.API,
		store:   opts.Store,
		results: opts.Results,
		pending: opts.Nav,
		confirm: opts.Confirm,
		log:     logger.Named("mode"),
		mode:    ModeGrownUp,
		dirty:   map[string]struct{}{},
		done:    make(chan struct{}),
	}
}

// Init resuelve el modo inicial, se suscribe a la expiración de sesión y,
// para identidades caregiver, carga la lista de learners y restaura la
// selección persistida. Re-ejecutar Init cuando la identidad pasa de unset
// a set (post-login) re-evalúa el default de modo.
func (s *Selector) Init(ctx context.Context) {
	s.resolveInitialMode()

	go s.watchExpiry(s.session.Subscribe())

	ident := s.session.Identity()
	if ident != nil && ident.Role.Caregiver() {
		s.RefreshLearners(ctx)
	}
}

// Close detiene el watcher de expiración.
func (s *Selector) Close() {
	close(s.done)
}

// resolveInitialMode: preferencia persistida gana sin importar el rol (un
// caregiver puede elegir arrancar en modo LEARNER); si no hay preferencia,
// default por rol.
func (s *Selector) resolveInitialMode() {
	if raw, ok := s.store.Get(storage.KeyPreferredMode); ok {
		if m, valid := Parse(raw); valid {
			s.mu.Lock()
			s.mode = m
			s.mu.Unlock()
			return
		}
	}
	m := ModeGrownUp
	if ident := s.session.Identity(); ident != nil && ident.Role == session.RoleLearner {
		m = ModeLearner
	}
	s.mu.Lock()
	s.mode = m
	s.mu.Unlock()
}

// watchExpiry limpia las claves derivadas de la selección cuando la sesión
// expira, sin navegar (el logout ya navega por su cuenta). El próximo login
// arranca con selección default limpia.
func (s *Selector) watchExpiry(ch <-chan session.ExpiryEvent) {
	for {
		select {
		case <-s.done:
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			_ = s.store.Remove(storage.KeySelectedLearner)
			_ = s.store.Remove(storage.KeyPreferredMode)
			s.mu.Lock()
			s.selected = nil
			s.available = nil
			s.mu.Unlock()
			s.log.Info("selection cleared after session expiry")
		}
	}
}

// Mode retorna el modo activo.
func (s *Selector) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// IsLearnerMode es un shortcut para la UI.
func (s *Selector) IsLearnerMode() bool { return s.Mode() == ModeLearner }

// SelectedLearner retorna una copia del learner en scope, o nil.
func (s *Selector) SelectedLearner() *Learner {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == nil {
		return nil
	}
	cp := *s.selected
	return &cp
}

// AvailableLearners retorna una copia de la lista vigente (vacía, nunca nil).
func (s *Selector) AvailableLearners() []Learner {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Learner, len(s.available))
	copy(out, s.available)
	return out
}

// IsLoadingLearners es true mientras el fetch de learners está en vuelo.
func (s *Selector) IsLoadingLearners() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadingLearners
}

// IsSwitching es true durante todo el tramo invalidate→select→navigate de
// un cambio de learner. La UI muestra el indicador transicional con esto.
func (s *Selector) IsSwitching() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.switching
}

// RefreshLearners trae la lista de learners del caregiver. Un fetch fallido
// o una respuesta malformada resuelven a lista vacía: este componente nunca
// tumba el render dependiente por un fallo transitorio. Refreshes
// concurrentes se deduplican.
func (s *Selector) RefreshLearners(ctx context.Context) []Learner {
	ident := s.session.Identity()
	if ident == nil || !ident.Role.Caregiver() || ident.ID == 0 {
		s.mu.Lock()
		s.available = nil
		s.selected = nil
		s.mu.Unlock()
		return nil
	}

	path := "/api/learners"
	if ident.Role == session.RoleAdmin {
		// ADMIN lista scoped por su propio id; PARENT deja que el server
		// infiera el scope de la credencial.
		path = "/api/learners?parentId=" + strconv.FormatInt(ident.ID, 10)
	}

	s.mu.Lock()
	s.loadingLearners = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.loadingLearners = false
		s.mu.Unlock()
	}()

	v, _, _ := s.sf.Do("learners", func() (any, error) {
		var list []Learner
		if err := s.api.Get(ctx, path, &list); err != nil {
			s.log.Warn("learner fetch failed, using empty list", logger.Err(err))
			return []Learner{}, nil
		}
		if list == nil {
			list = []Learner{}
		}
		return list, nil
	})
	list := v.([]Learner)

	s.mu.Lock()
	s.available = list
	if len(list) == 0 {
		// Sin learners disponibles no puede quedar selección colgando.
		s.selected = nil
	}
	s.mu.Unlock()

	if len(list) > 0 {
		s.restoreSelection(list)
	}
	return s.AvailableLearners()
}

// restoreSelection corre cuando la lista pasa a no-vacía: el id persistido
// si resuelve a una entrada actual, si no la primera entrada (y el id
// persistido se reescribe para que futuros restores sean estables).
func (s *Selector) restoreSelection(list []Learner) {
	if raw, ok := s.store.Get(storage.KeySelectedLearner); ok {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			for i := range list {
				if list[i].ID == id {
					s.mu.Lock()
					cp := list[i]
					s.selected = &cp
					s.mu.Unlock()
					return
				}
			}
			s.log.Info("persisted learner no longer available, falling back",
				logger.LearnerID(id))
		}
	}

	first := list[0]
	s.mu.Lock()
	s.selected = &first
	s.mu.Unlock()
	if err := s.store.Set(storage.KeySelectedLearner,
		strconv.FormatInt(first.ID, 10)); err != nil {
		s.log.Warn("failed to persist learner selection", logger.Err(err))
	}
}

// SelectLearner pone a l en scope. Idempotente si ya está seleccionado.
// Secuencia para un cambio real: invalidar las cuatro familias learner-scoped
// → actualizar selección → persistir id → forzar modo LEARNER → navegar a
// learner home. El estado "switching" cubre la secuencia completa.
func (s *Selector) SelectLearner(ctx context.Context, l Learner) error {
	if l.ID == 0 {
		// Bug de wiring de la UI, no un fallo user-facing.
		s.log.Error("select rejected: malformed learner object")
		return nil
	}

	s.mu.Lock()
	if s.selected != nil && s.selected.ID == l.ID {
		s.mu.Unlock()
		return nil
	}
	var entry *Learner
	for i := range s.available {
		if s.available[i].ID == l.ID {
			cp := s.available[i]
			entry = &cp
			break
		}
	}
	if entry == nil {
		s.mu.Unlock()
		s.log.Error("select rejected: learner not in available set",
			logger.LearnerID(l.ID))
		return nil
	}
	s.switching = true
	s.mu.Unlock()

	// Invalidación ANTES de que la nueva selección sea observable: cualquier
	// read disparado por el update apunta a datos frescos.
	for _, fam := range LearnerFamilies {
		n, err := s.results.DeletePrefix(ctx, fam+":")
		if err != nil {
			s.log.Warn("cache family invalidation failed",
				logger.String("family", fam), logger.Err(err))
		}
		metrics.CacheInvalidations.Add(float64(n))
	}

	s.mu.Lock()
	s.selected = entry
	s.mode = ModeLearner
	s.mu.Unlock()

	// Los writes persistidos siguen al update en memoria, nunca al revés.
	if err := s.store.Set(storage.KeySelectedLearner,
		strconv.FormatInt(entry.ID, 10)); err != nil {
		s.log.Warn("failed to persist learner selection", logger.Err(err))
	}
	if err := s.store.Set(storage.KeyPreferredMode, string(ModeLearner)); err != nil {
		s.log.Warn("failed to persist mode preference", logger.Err(err))
	}

	// La navegación siempre es el último paso; "switching" termina recién
	// cuando el target fue despachado.
	if s.pending != nil {
		s.pending.Schedule(nav.RouteLearnerHome)
	}
	s.mu.Lock()
	s.switching = false
	s.mu.Unlock()

	metrics.LearnerSwitches.Inc()
	s.log.Info("learner selected",
		logger.LearnerID(entry.ID), logger.String("name", entry.Name))
	return nil
}

// ToggleMode alterna entre LEARNER y GROWN_UP.
//
//   - Un caregiver sin learners no puede entrar a modo LEARNER: se lo manda
//     a la pantalla de gestión de learners, el modo no cambia.
//   - Con formularios dirty, el switch requiere confirmación explícita.
//     Declinar deja modo, selección y registry intactos.
//   - Un caregiver entrando a LEARNER sin selección delega en SelectLearner
//     (que hace el flip y la navegación); este branch nunca setea el modo
//     directo.
func (s *Selector) ToggleMode(ctx context.Context) error {
	ident := s.session.Identity()
	if ident == nil {
		s.log.Error("toggle rejected: no authenticated identity")
		return nil
	}

	current := s.Mode()
	target := ModeLearner
	if current == ModeLearner {
		target = ModeGrownUp
	}

	if target == ModeLearner && ident.Role.Caregiver() {
		if len(s.AvailableLearners()) == 0 {
			if s.pending != nil {
				s.pending.Schedule(nav.RouteLearners)
			}
			s.log.Info("toggle redirected: caregiver has no learners")
			return nil
		}
	}

	if s.DirtyFormCount() > 0 {
		prompt := fmt.Sprintf("You have %d unsaved change(s). Switch mode and discard them?",
			s.DirtyFormCount())
		if s.confirm == nil || !s.confirm(prompt) {
			s.log.Info("toggle declined: unsaved changes")
			return nil
		}
		s.ClearDirtyForms()
	}

	if target == ModeLearner && ident.Role.Caregiver() && s.SelectedLearner() == nil {
		first := s.AvailableLearners()[0]
		return s.SelectLearner(ctx, first)
	}

	s.mu.Lock()
	s.mode = target
	s.mu.Unlock()

	if err := s.store.Set(storage.KeyPreferredMode, string(target)); err != nil {
		s.log.Warn("failed to persist mode preference", logger.Err(err))
	}

	if s.pending != nil {
		if target == ModeLearner {
			s.pending.Schedule(nav.RouteLearnerHome)
		} else {
			s.pending.Schedule(nav.RouteDashboard)
		}
	}

	metrics.ModeToggles.WithLabelValues(string(target)).Inc()
	s.log.Info("mode toggled", logger.Mode(string(target)))
	return nil
}
