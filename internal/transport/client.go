// Package transport implementa el cliente HTTP hacia el API de sunschool.
//
// Mantiene la base URL, los headers por defecto y el bearer token de la
// sesión activa. Los errores de red y los status no-2xx llegan al caller
// como tipos distinguibles (IsNetwork / StatusError); nunca como texto crudo.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sunschool/sunschool-go/internal/observability/logger"
)

// Config configura el cliente.
type Config struct {
	// BaseURL es la dirección del API, ej. "https://sunschool.xyz".
	BaseURL string

	// Timeout por request. Default: 30s (el del cliente original).
	Timeout time.Duration
}

// Client es el cliente HTTP del proceso. Solo el session controller
// escribe el token; el resto de componentes solo emite requests.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string

	// onUnauthorized se invoca cuando un endpoint autenticado (no de auth)
	// retorna 401: la señal de expiración de sesión.
	onUnauthorized func(path string)
}

// New crea un cliente de transporte.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// BaseURL retorna la dirección configurada del API.
func (c *Client) BaseURL() string { return c.baseURL }

// SetToken adjunta el bearer token a todos los requests siguientes.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// ClearToken quita el bearer token.
func (c *Client) ClearToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// Token retorna el bearer token vigente ("" si no hay).
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// OnUnauthorized registra el hook de expiración de sesión.
// Lo setea el session controller durante su inicialización.
func (c *Client) OnUnauthorized(fn func(path string)) {
	c.onUnauthorized = fn
}

// StatusError representa una respuesta con status no-2xx.
type StatusError struct {
	Status int
	Code   string // campo "error" del body, si vino
	Body   string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("transport: status %d: %s", e.Status, e.Code)
	}
	return fmt.Sprintf("transport: status %d", e.Status)
}

// StatusOf retorna el status code si err es un StatusError, 0 si no.
func StatusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}

// IsNetwork indica si err es un fallo de red/timeout (no hubo respuesta).
func IsNetwork(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	return !errors.As(err, &se)
}

// apiError es el shape de error que devuelve el API.
type apiError struct {
	Error string `json:"error"`
}

// authEndpoint indica si el path es uno de los endpoints de auth, que no
// deben disparar el hook de expiración (evita loops durante login/validate).
func authEndpoint(path string) bool {
	return strings.Contains(path, "/login") ||
		strings.Contains(path, "/register") ||
		strings.Contains(path, "/api/user")
}

// DoJSON emite un request con body JSON opcional y decodifica la respuesta
// 2xx en out (si out no es nil). Un status no-2xx retorna *StatusError.
func (c *Client) DoJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("transport: marshal body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("transport: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		logger.From(ctx).Debug("request failed",
			logger.Method(method), logger.Path(path), logger.Err(err))
		return fmt.Errorf("transport: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	logger.From(ctx).Debug("response received",
		logger.Method(method), logger.Path(path),
		logger.Status(resp.StatusCode), logger.Duration(time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode == http.StatusUnauthorized && !authEndpoint(path) {
			if fn := c.onUnauthorized; fn != nil {
				fn(path)
			}
		}
		var ae apiError
		_ = json.Unmarshal(raw, &ae)
		return &StatusError{Status: resp.StatusCode, Code: ae.Error, Body: string(raw)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("transport: decode response: %w", err)
	}
	return nil
}

// Get es un shortcut para DoJSON GET.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.DoJSON(ctx, http.MethodGet, path, nil, out)
}

// Post es un shortcut para DoJSON POST.
func (c *Client) Post(ctx context.Context, path string, in, out any) error {
	return c.DoJSON(ctx, http.MethodPost, path, in, out)
}
