package session

import (
	"encoding/json"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sunschool/sunschool-go/internal/observability/logger"
	"github.com/sunschool/sunschool-go/internal/storage"
	"github.com/sunschool/sunschool-go/internal/util"
)

// MinTokenLen es el umbral mínimo para considerar un token "plausible".
// Es un sanity check previo al round-trip de validación, no un sustituto:
// el número no es load-bearing más allá de cortar tokens obviamente rotos.
const MinTokenLen = 21

// plausibleToken aplica la heurística de longitud mínima.
func plausibleToken(tok string) bool {
	return len(tok) >= MinTokenLen
}

// tokenMeta es el blob de metadata que acompaña al token persistido.
type tokenMeta struct {
	StoredAt int64  `json:"timestamp"`
	Origin   string `json:"origin"`
}

func (c *Controller) writeTokenMeta(token string) {
	meta := tokenMeta{
		StoredAt: time.Now().UnixMilli(),
		Origin:   c.api.BaseURL(),
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return
	}
	if err := c.store.Set(storage.KeyAuthTokenData, string(b)); err != nil {
		c.log.Warn("failed to persist token metadata", logger.Err(err))
	}
	c.log.Debug("auth token stored",
		logger.Token(util.MaskToken(token)),
		logger.String("origin", meta.Origin))
}

// tokenOriginOK valida que el token persistido fue emitido para el API
// configurado. Un mismatch descarta el token en vez de usarlo.
func (c *Controller) tokenOriginOK() bool {
	raw, ok := c.store.Get(storage.KeyAuthTokenData)
	if !ok {
		// Sin metadata (versiones viejas del estado): se acepta el token.
		return true
	}
	var meta tokenMeta
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return true
	}
	if meta.Origin != "" && meta.Origin != c.api.BaseURL() {
		c.log.Warn("origin mismatch in stored token, discarding",
			logger.String("stored_origin", meta.Origin),
			logger.String("api", c.api.BaseURL()))
		return false
	}
	return true
}

// peekClaims decodifica el payload del token SIN verificar la firma, solo
// para loggear exp/rol. El cliente nunca valida tokens localmente; eso es
// del servidor.
func (c *Controller) peekClaims(tok string) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		c.log.Debug("stored token is not a JWT",
			logger.Token(util.MaskToken(tok)))
		return
	}
	var expStr string
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expStr = exp.Time.Format(time.RFC3339)
	}
	role, _ := claims["role"].(string)
	c.log.Debug("token payload",
		logger.Token(util.MaskToken(tok)),
		logger.String("exp", expStr),
		logger.Role(role))
}
