// Package app arma el árbol de dependencias del cliente: config → storage →
// cache → transport → session controller → mode selector. Composición
// top-down, sin singletons además del logger.
package app

import (
	"context"
	"time"

	"github.com/sunschool/sunschool-go/internal/cache"
	"github.com/sunschool/sunschool-go/internal/config"
	"github.com/sunschool/sunschool-go/internal/metrics"
	"github.com/sunschool/sunschool-go/internal/mode"
	"github.com/sunschool/sunschool-go/internal/nav"
	"github.com/sunschool/sunschool-go/internal/notify"
	"github.com/sunschool/sunschool-go/internal/observability/logger"
	"github.com/sunschool/sunschool-go/internal/session"
	"github.com/sunschool/sunschool-go/internal/storage"
	"github.com/sunschool/sunschool-go/internal/transport"
)

// Container agrupa los componentes vivos del proceso.
type Container struct {
	Cfg      *config.Config
	Store    storage.Store
	Results  cache.Client
	API      *transport.Client
	Nav      *nav.Pending
	Session  *session.Controller
	Selector *mode.Selector
}

// Options permite a la UI inyectar sus colaboradores.
type Options struct {
	Notifier  notify.Notifier
	Confirm   mode.ConfirmFunc
	Navigator nav.Navigator
	Fallback  nav.Navigator
}

// New construye el container. No corre Init de sesión: eso es del caller,
// que decide el contexto y el orden de arranque.
func New(cfg *config.Config, opts Options) (*Container, error) {
	if err := metrics.Register(nil); err != nil {
		return nil, err
	}

	store := storage.NewFile(cfg.Storage.Dir)

	var defaultTTL time.Duration
	if cfg.Cache.Memory.DefaultTTL != "" {
		defaultTTL, _ = time.ParseDuration(cfg.Cache.Memory.DefaultTTL)
	}
	results, err := cache.New(cache.Config{
		Driver:     cfg.Cache.Kind,
		Addr:       cfg.Cache.Redis.Addr,
		Password:   cfg.Cache.Redis.Password,
		DB:         cfg.Cache.Redis.DB,
		Prefix:     cfg.Cache.Redis.Prefix,
		DefaultTTL: defaultTTL,
	})
	if err != nil {
		return nil, err
	}

	api := transport.New(transport.Config{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.APITimeout(),
	})

	pending := nav.NewPending(opts.Navigator, opts.Fallback)

	sess := session.New(session.Options{
		API:             api,
		Store:           store,
		Results:         results,
		Notifier:        opts.Notifier,
		Nav:             pending,
		ValidateTimeout: cfg.ValidateTimeout(),
	})

	sel := mode.New(mode.Options{
		Session: sess,
		API:     api,
		Store:   store,
		Results: results,
		Nav:     pending,
		Confirm: opts.Confirm,
	})

	return &Container{
		Cfg:      cfg,
		Store:    store,
		Results:  results,
		API:      api,
		Nav:      pending,
		Session:  sess,
		Selector: sel,
	}, nil
}

// Start corre la inicialización de sesión y del selector, en ese orden.
func (c *Container) Start(ctx context.Context) error {
	if err := c.Session.Init(ctx); err != nil {
		return err
	}
	c.Selector.Init(ctx)
	return nil
}

// Shutdown persiste el snapshot del result cache y libera recursos.
// El snapshot solo sirve dentro de la misma sesión: el próximo Init lo
// purga antes de confiar en nada.
func (c *Container) Shutdown(ctx context.Context) {
	if snap, err := c.Results.Snapshot(ctx); err == nil && len(snap) > 0 {
		if c.Session.State() == session.StateAuthenticated {
			if err := c.Store.Set(storage.KeyResultCache, string(snap)); err != nil {
				logger.Named("app").Warn("failed to persist cache snapshot",
					logger.Err(err))
			}
		}
	}
	c.Selector.Close()
	_ = c.Results.Close()
}
