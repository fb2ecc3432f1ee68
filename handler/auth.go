package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/jellydator/ttlcache/v3"
	"github.com/labstack/echo/v4"
	"github.com/pyama86/itdesk/domain/model"
)

const (
	sessionCookie   = "itdesk_session"
	contextAdminKey = "admin"
	loginPath       = "/login"

	msgNotAllowed = "許可された管理者アカウントではありません"
	// 表示名もメールアドレスも取れない時の回答者名
	fallbackReplier = "管理者"
)

type sessionClaims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

func (h *Handler) issueSession(email, name string) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(h.cfg.SessionTTL)
	claims := sessionClaims{
		Email: model.NormalizeEmail(email),
		Name:  name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   model.NormalizeEmail(email),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.cfg.SessionSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return token, exp, nil
}

func (h *Handler) parseSession(raw string) (*sessionClaims, error) {
	claims := &sessionClaims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if _, err := parser.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(h.cfg.SessionSecret), nil
	}); err != nil {
		return nil, err
	}
	if claims.Email == "" {
		return nil, errors.New("session has no email")
	}
	return claims, nil
}

func (h *Handler) setSession(c echo.Context, token string, exp time.Time) {
	c.SetCookie(&http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		Secure:   h.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSession signs the browser out.
func (h *Handler) clearSession(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) isAllowedAdmin(ctx context.Context, email string) (bool, error) {
	key := model.NormalizeEmail(email)
	if item := h.adminCache.Get(key); item != nil {
		return item.Value(), nil
	}
	ok, err := h.ds.IsAllowedAdmin(ctx, key)
	if err != nil {
		return false, err
	}
	h.adminCache.Set(key, ok, ttlcache.DefaultTTL)
	return ok, nil
}

func (h *Handler) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		cookie, err := c.Cookie(sessionCookie)
		if err != nil || cookie.Value == "" {
			return c.Redirect(http.StatusFound, loginPath)
		}
		claims, err := h.parseSession(cookie.Value)
		if err != nil {
			h.clearSession(c)
			return c.Redirect(http.StatusFound, loginPath)
		}

		ok, err := h.isAllowedAdmin(c.Request().Context(), claims.Email)
		if err != nil {
			return fmt.Errorf("check allow-list: %w", err)
		}
		if !ok {
			// 許可リストから外れたら強制的にサインアウト
			slog.Warn("session of a non allowed account", slog.String("email", claims.Email))
			h.clearSession(c)
			return c.Redirect(http.StatusFound, loginPath)
		}

		c.Set(contextAdminKey, claims)
		return next(c)
	}
}

func adminFrom(c echo.Context) *sessionClaims {
	claims, _ := c.Get(contextAdminKey).(*sessionClaims)
	return claims
}

func replierName(claims *sessionClaims) string {
	if claims == nil {
		return fallbackReplier
	}
	if claims.Name != "" {
		return claims.Name
	}
	if claims.Email != "" {
		return claims.Email
	}
	return fallbackReplier
}

func (h *Handler) loginPage(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"message":   "Googleアカウントでログインしてください",
		"client_id": h.cfg.GoogleClientID,
	})
}

type loginRequest struct {
	IDToken string `json:"id_token" validate:"required"`
}

func (h *Handler) login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	identity, err := h.verifier.Verify(ctx, req.IDToken)
	if err != nil {
		slog.Warn("id token verification failed", slog.Any("err", err))
		h.clearSession(c)
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid id token")
	}

	ok, err := h.isAllowedAdmin(ctx, identity.Email)
	if err != nil {
		return fmt.Errorf("check allow-list: %w", err)
	}
	if !ok {
		slog.Warn("login by a non allowed account", slog.String("email", identity.Email))
		h.clearSession(c)
		return echo.NewHTTPError(http.StatusForbidden, msgNotAllowed)
	}

	token, exp, err := h.issueSession(identity.Email, identity.Name)
	if err != nil {
		return err
	}
	h.setSession(c, token, exp)
	slog.Info("admin signed in", slog.String("email", identity.Email))
	return c.JSON(http.StatusOK, echo.Map{
		"email": model.NormalizeEmail(identity.Email),
		"name":  identity.Name,
	})
}

func (h *Handler) logout(c echo.Context) error {
	h.clearSession(c)
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) me(c echo.Context) error {
	claims := adminFrom(c)
	return c.JSON(http.StatusOK, echo.Map{
		"email": claims.Email,
		"name":  claims.Name,
	})
}
