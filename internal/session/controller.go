// Package session implementa el session controller del cliente: la única
// fuente de verdad de "hay una identidad autenticada válida" y las cuatro
// operaciones que la mutan (init, login, register, logout).
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sunschool/sunschool-go/internal/cache"
	"github.com/sunschool/sunschool-go/internal/metrics"
	"github.com/sunschool/sunschool-go/internal/nav"
	"github.com/sunschool/sunschool-go/internal/notify"
	"github.com/sunschool/sunschool-go/internal/observability/logger"
	"github.com/sunschool/sunschool-go/internal/storage"
	"github.com/sunschool/sunschool-go/internal/util"
)

// State es el estado del ciclo de inicialización/sesión.
type State int

const (
	// StatePending: Init aún no corrió o está leyendo el estado persistido.
	StatePending State = iota
	// StateValidating: validación del token contra el servidor en vuelo.
	StateValidating
	// StateAuthenticated: hay identidad válida.
	StateAuthenticated
	// StateUnauthenticated: no hay sesión. Es el resultado "normal" de
	// cualquier fallo esperado de inicialización.
	StateUnauthenticated
	// StateError: excepción inesperada durante Init. La UI muestra el
	// fallback de error con reload manual, no la pantalla de loading.
	StateError
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateValidating:
		return "VALIDATING"
	case StateAuthenticated:
		return "AUTHENTICATED"
	case StateUnauthenticated:
		return "UNAUTHENTICATED"
	case StateError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// ExpiryEvent se emite cuando la identidad pasa de presente a nil fuera de
// un logout explícito (revalidación fallida, 401 en un request autenticado).
type ExpiryEvent struct {
	Path string    // endpoint que observó el 401, si aplica
	At   time.Time
}

// apiClient es lo que el controller necesita del transporte.
type apiClient interface {
	BaseURL() string
	SetToken(string)
	ClearToken()
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, in, out any) error
	OnUnauthorized(func(path string))
}

// Options son las dependencias del controller. Todas explícitas: nada de
// singletons ambientales, así el orden clear-on-logout es testeable sin
// storage real.
type Options struct {
	API      apiClient
	Store    storage.Store
	Results  cache.Client
	Notifier notify.Notifier
	Nav      *nav.Pending

	// ValidateTimeout acota la validación inicial del token. Default: 5s.
	ValidateTimeout time.Duration
}

// Controller es el session controller. Una instancia por proceso.
type Controller struct {
	api      apiClient
	store    storage.Store
	results  cache.Client
	notifier notify.Notifier
	pending  *nav.Pending
	log      *zap.Logger

	validateTimeout time.Duration

	mu         sync.RWMutex
	state      State
	identity   *Identity
	initErr    error
	loggingOut bool

	subMu sync.Mutex
	subs  []chan ExpiryEvent
}

// New crea el controller y registra el hook de expiración en el transporte.
func New(opts Options) *Controller {
	c := &Controller{
		api:             opts.API,
		store:           opts.Store,
		results:         opts.Results,
		notifier:        opts.Notifier,
		pending:         opts.Nav,
		log:             logger.Named("session"),
		validateTimeout: opts.ValidateTimeout,
		state:           StatePending,
	}
	if c.validateTimeout == 0 {
		c.validateTimeout = 5 * time.Second
	}
	if c.notifier == nil {
		c.notifier = notify.NewLog()
	}
	c.api.OnUnauthorized(c.expire)
	return c
}

// State retorna el estado actual.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Identity retorna una copia de la identidad actual, o nil.
func (c *Controller) Identity() *Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.identity == nil {
		return nil
	}
	cp := *c.identity
	return &cp
}

// IsLoading es true solo durante PENDING/VALIDATING.
func (c *Controller) IsLoading() bool {
	s := c.State()
	return s == StatePending || s == StateValidating
}

// InitError retorna el error de inicialización inesperado, si hubo.
// Los fallos esperados (token ausente/corto/expirado) NO pueblan esto.
func (c *Controller) InitError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.initErr
}

// Subscribe retorna un canal que recibe los eventos de expiración de sesión.
// El canal tiene buffer 1; un suscriptor lento pierde eventos repetidos,
// nunca bloquea al controller.
func (c *Controller) Subscribe() <-chan ExpiryEvent {
	ch := make(chan ExpiryEvent, 1)
	c.subMu.Lock()
	c.subs = append(c.subs, ch)
	c.subMu.Unlock()
	return ch
}

// Init corre exactamente una vez por proceso, antes de renderizar UI que
// dependa de identidad. Fail-closed: arranca sin identidad y solo la setea
// tras validación explícita del servidor. Siempre termina en un estado
// decidible; nunca deja la UI colgada en loading.
func (c *Controller) Init(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			// Excepción inesperada: se loguea, se limpia y se marca
			// la inicialización como completa igual.
			err = fmt.Errorf("session: init panic: %v", r)
			c.log.Error("unexpected init failure", logger.Err(err))
			c.clearCredentialState(ctx)
			c.mu.Lock()
			c.identity = nil
			c.initErr = err
			c.state = StateError
			c.mu.Unlock()
		}
	}()

	c.mu.Lock()
	c.identity = nil
	c.state = StatePending
	c.mu.Unlock()

	// El blob del result cache persistido se purga antes de confiar en
	// nada: estado local ambiguo se trata como "logged out", no se adivina.
	_ = c.store.Remove(storage.KeyResultCache)

	tok, _ := c.store.Get(storage.KeyAuthToken)
	if !plausibleToken(tok) {
		c.log.Debug("no plausible stored token",
			logger.Token(util.MaskToken(tok)))
		c.finishUnauthenticated(ctx, tok != "")
		metrics.TokenValidations.WithLabelValues("skipped").Inc()
		return nil
	}
	if !c.tokenOriginOK() {
		c.finishUnauthenticated(ctx, true)
		metrics.TokenValidations.WithLabelValues("origin_mismatch").Inc()
		return nil
	}

	c.peekClaims(tok)
	c.api.SetToken(tok)

	c.mu.Lock()
	c.state = StateValidating
	c.mu.Unlock()

	vctx, cancel := context.WithTimeout(ctx, c.validateTimeout)
	defer cancel()

	var ident Identity
	verr := c.api.Get(vctx, "/api/user", &ident)
	if verr != nil || !ident.Valid() {
		if verr != nil {
			c.log.Info("stored token validation failed", logger.Err(verr))
		} else {
			c.log.Info("validation payload missing id or role")
		}
		c.finishUnauthenticated(ctx, true)
		metrics.TokenValidations.WithLabelValues("invalid").Inc()
		return nil
	}

	c.mu.Lock()
	c.identity = &ident
	c.state = StateAuthenticated
	c.mu.Unlock()

	metrics.TokenValidations.WithLabelValues("ok").Inc()
	c.log.Info("session restored",
		logger.UserID(ident.ID), logger.Role(string(ident.Role)))
	return nil
}

// finishUnauthenticated limpia credencial + estado derivado y deja el
// controller en UNAUTHENTICATED. hadToken evita borrar storage que ya
// sabemos vacío.
func (c *Controller) finishUnauthenticated(ctx context.Context, hadToken bool) {
	if hadToken {
		c.clearCredentialState(ctx)
	}
	c.mu.Lock()
	c.identity = nil
	c.state = StateUnauthenticated
	c.mu.Unlock()
}

// clearCredentialState borra el token, su metadata y el estado derivado
// persistido (modo, learner seleccionado, blob de cache). Siempre en bloque:
// un token borrado con preferencias vivas presenta UI autenticada stale.
func (c *Controller) clearCredentialState(ctx context.Context) {
	c.api.ClearToken()
	for _, k := range []string{
		storage.KeyAuthToken,
		storage.KeyAuthTokenData,
		storage.KeyPreferredMode,
		storage.KeySelectedLearner,
		storage.KeyResultCache,
	} {
		if err := c.store.Remove(k); err != nil {
			c.log.Warn("failed to clear persisted key",
				logger.Key(k), logger.Err(err))
		}
	}
}

// LoginRequest son las credenciales del usuario.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest es el perfil de registro.
type RegisterRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Password   string `json:"password"`
	Role       Role   `json:"role"`
	ParentID   int64  `json:"parentId,omitempty"`
	GradeLevel int    `json:"gradeLevel,omitempty"`
}

// authResponse es el shape de /api/login y /api/register. Algunas versiones
// del backend devuelven "userData" en vez de "user".
type authResponse struct {
	Token    string    `json:"token"`
	User     *Identity `json:"user"`
	UserData *Identity `json:"userData"`
	Promoted bool      `json:"wasPromotedToAdmin"`
}

func (r *authResponse) identity() *Identity {
	if r.User != nil {
		return r.User
	}
	return r.UserData
}

// Login intercambia credenciales por un token. En éxito persiste el token y
// reemplaza la identidad completa. En fallo la identidad existente queda
// intacta: solo logout o una validación fallida de Init tiran una sesión.
func (c *Controller) Login(ctx context.Context, req LoginRequest) (*Identity, error) {
	var resp authResponse
	err := c.api.Post(ctx, "/api/login", req, &resp)
	if err != nil {
		mapped := mapAuthError(err, false)
		c.log.Info("login failed",
			logger.String("username", util.MaskEmail(req.Username)),
			logger.Err(err))
		metrics.Logins.WithLabelValues("error").Inc()
		c.notifier.Failure("Login failed", mapped.Error())
		return nil, mapped
	}

	ident := resp.identity()
	if resp.Token == "" || !ident.Valid() {
		// Respuesta 2xx sin token o sin identidad: fallo distinto de
		// credenciales inválidas.
		metrics.Logins.WithLabelValues("malformed").Inc()
		c.notifier.Failure("Login failed", ErrMalformedResponse.Error())
		return nil, ErrMalformedResponse
	}

	c.adoptSession(resp.Token, ident)
	metrics.Logins.WithLabelValues("ok").Inc()
	c.notifier.Success("Login successful",
		fmt.Sprintf("Welcome back, %s!", ident.Name))
	return c.Identity(), nil
}

// Register crea la cuenta y deja la sesión iniciada, igual que Login.
// El primer usuario del sistema se auto-promueve a administrador y recibe
// una notificación distinta.
func (c *Controller) Register(ctx context.Context, req RegisterRequest) (*Identity, error) {
	var resp authResponse
	err := c.api.Post(ctx, "/api/register", req, &resp)
	if err != nil {
		mapped := mapAuthError(err, true)
		c.log.Info("registration failed",
			logger.String("username", util.MaskEmail(req.Username)),
			logger.Err(err))
		metrics.Registrations.WithLabelValues("error").Inc()
		c.notifier.Failure("Registration failed", mapped.Error())
		return nil, mapped
	}

	ident := resp.identity()
	if resp.Token == "" || !ident.Valid() {
		metrics.Registrations.WithLabelValues("malformed").Inc()
		c.notifier.Failure("Registration failed", ErrMalformedResponse.Error())
		return nil, ErrMalformedResponse
	}

	c.adoptSession(resp.Token, ident)
	metrics.Registrations.WithLabelValues("ok").Inc()
	if resp.Promoted {
		c.notifier.Success("You are the first user!",
			fmt.Sprintf("Welcome, %s! As the first user, you've been automatically granted administrator privileges.", ident.Name))
	} else {
		c.notifier.Success("Registration successful",
			fmt.Sprintf("Welcome, %s!", ident.Name))
	}
	return c.Identity(), nil
}

// adoptSession reemplaza la identidad completa y después persiste el token.
// El orden importa: el write persistido sigue al update en memoria, así un
// crash entre ambos nunca deja el storage adelante de la memoria.
func (c *Controller) adoptSession(token string, ident *Identity) {
	c.api.SetToken(token)

	c.mu.Lock()
	cp := *ident
	c.identity = &cp
	c.state = StateAuthenticated
	c.mu.Unlock()

	if err := c.store.Set(storage.KeyAuthToken, token); err != nil {
		c.log.Warn("failed to persist auth token", logger.Err(err))
	}
	c.writeTokenMeta(token)
}

// Logout cierra la sesión. El call remoto es best-effort: su fallo se loguea
// y no bloquea la limpieza local. Logout es un hard boundary: después no
// queda ningún resultado cacheado reutilizable, de ninguna familia. La
// navegación al entry point ocurre incluso si la limpieza falló a medias.
func (c *Controller) Logout(ctx context.Context) error {
	c.mu.Lock()
	c.loggingOut = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.loggingOut = false
		c.mu.Unlock()
	}()

	if err := c.api.Post(ctx, "/api/logout", nil, nil); err != nil {
		c.log.Warn("remote logout failed, continuing local cleanup",
			logger.Err(err))
	}

	var cleanupErr error
	c.clearCredentialState(ctx)
	if err := c.results.Clear(ctx); err != nil {
		cleanupErr = fmt.Errorf("session: clear result cache: %w", err)
		c.log.Error("result cache clear failed", logger.Err(err))
	}

	c.mu.Lock()
	c.identity = nil
	c.state = StateUnauthenticated
	c.mu.Unlock()

	metrics.Logouts.Inc()
	if cleanupErr != nil {
		c.notifier.Failure("Logout failed", ErrServerUnavailable.Error())
	} else {
		c.notifier.Success("Logged out", "You have been logged out successfully.")
	}

	// Siempre, incluso en el error path.
	if c.pending != nil {
		c.pending.Schedule(nav.RouteAuth)
	}
	return cleanupErr
}

// expire maneja la transición identidad→nil fuera de un logout explícito
// (el hook de 401 del transporte). Dispara el evento de expiración una sola
// vez por transición: nil→nil o un logout en curso no lo emiten.
func (c *Controller) expire(path string) {
	c.mu.Lock()
	if c.identity == nil || c.loggingOut {
		c.mu.Unlock()
		return
	}
	c.identity = nil
	c.state = StateUnauthenticated
	c.mu.Unlock()

	c.log.Warn("session expired", logger.Path(path))
	metrics.SessionExpiries.Inc()

	c.api.ClearToken()
	for _, k := range []string{
		storage.KeyAuthToken,
		storage.KeyAuthTokenData,
		storage.KeyPreferredMode,
		storage.KeySelectedLearner,
	} {
		_ = c.store.Remove(k)
	}

	ev := ExpiryEvent{Path: path, At: time.Now()}
	c.subMu.Lock()
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	c.subMu.Unlock()
}
