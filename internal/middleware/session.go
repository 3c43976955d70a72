package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-tenant-api/pkg/config"
	"github.com/noah-isme/sma-tenant-api/pkg/session"
)

// ContextSessionKey is the gin context key holding the request's *session.Session.
const ContextSessionKey = "session"

const contextSessionSaveKey = "sessionSave"

type sessionSaver func(ctx context.Context) error

const defaultSessionCookie = "SCHOOLSESSION"

// Session loads the caller's session from the cookie, or starts a new one. Handlers that
// change it call SaveSession before responding; anything left dirty is written back after
// the handler chain.
func Session(store session.Store, cfg config.SessionConfig, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	name := cfg.CookieName
	if name == "" {
		name = defaultSessionCookie
	}
	maxAge := int(cfg.TTL.Seconds())

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var sess *session.Session

		if id, err := c.Cookie(name); err == nil && id != "" {
			values, err := store.Load(ctx, id)
			switch {
			case err == nil:
				sess = session.Restore(id, values)
			case errors.Is(err, session.ErrSessionNotFound):
			default:
				logger.Warn("session load failed", zap.Error(err))
			}
		}
		if sess == nil {
			sess = session.New()
		}

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(name, sess.ID(), maxAge, "/", "", cfg.Secure, true)
		c.Set(ContextSessionKey, sess)
		c.Set(contextSessionSaveKey, sessionSaver(func(ctx context.Context) error {
			return sess.Persist(ctx, store, cfg.TTL)
		}))

		c.Next()

		if err := sess.Persist(ctx, store, cfg.TTL); err != nil {
			logger.Warn("session persist failed", zap.String("session_id", sess.ID()), zap.Error(err))
		}
	}
}

// SaveSession writes pending session changes through the store now, so a failed write can
// still fail the request. It is a no-op when the Session middleware did not run.
func SaveSession(c *gin.Context) error {
	value, ok := c.Get(contextSessionSaveKey)
	if !ok {
		return nil
	}
	save, _ := value.(sessionSaver)
	if save == nil {
		return nil
	}
	return save(c.Request.Context())
}

// SessionFrom returns the request's session, or nil when the middleware did not run.
func SessionFrom(c *gin.Context) *session.Session {
	value, ok := c.Get(ContextSessionKey)
	if !ok {
		return nil
	}
	sess, _ := value.(*session.Session)
	return sess
}
