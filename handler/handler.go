package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jellydator/ttlcache/v3"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pyama86/itdesk/config"
	"github.com/pyama86/itdesk/domain/infra"
)

type Handler struct {
	e          *echo.Echo
	cfg        config.Config
	ds         infra.Datastore
	bus        infra.EventBus
	verifier   infra.IdentityVerifier
	adminCache *ttlcache.Cache[string, bool]
}

type appValidator struct {
	validate *validator.Validate
}

func (v appValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

func NewHandler(cfg config.Config, ds infra.Datastore, bus infra.EventBus, verifier infra.IdentityVerifier) *Handler {
	h := &Handler{
		e:          echo.New(),
		cfg:        cfg,
		ds:         ds,
		bus:        bus,
		verifier:   verifier,
		adminCache: ttlcache.New(ttlcache.WithTTL[string, bool](cfg.AdminCacheTTL)),
	}
	go h.adminCache.Start()
	h.setup()
	return h
}

func (h *Handler) setup() {
	h.e.HideBanner = true
	h.e.Pre(middleware.RemoveTrailingSlash())
	h.e.Use(middleware.Recover())
	h.e.Validator = appValidator{validate: validator.New()}
	h.e.HTTPErrorHandler = errorHandler

	h.e.POST("/api/questions", h.submitQuestion)
	h.e.GET("/login", h.loginPage)
	h.e.POST("/api/login", h.login)
	h.e.POST("/api/logout", h.logout)

	admin := h.e.Group("/api/admin", h.requireAdmin)
	admin.GET("/me", h.me)
	admin.GET("/questions", h.listQuestions)
	admin.GET("/questions/:id", h.getQuestion)
	admin.POST("/questions/:id/reply", h.reply)
	admin.GET("/archives", h.listArchives)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.e.ServeHTTP(w, r)
}

func (h *Handler) Handle() error {
	slog.Info("Server listening", slog.String("bind", h.cfg.ListenSocket))
	if err := h.e.Start(h.cfg.ListenSocket); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (h *Handler) Shutdown(ctx context.Context) error {
	h.adminCache.Stop()
	return h.e.Shutdown(ctx)
}

func errorHandler(err error, c echo.Context) {
	var code int
	var message interface{}

	var herr *echo.HTTPError
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &herr):
		code = herr.Code
		message = echo.Map{"error": herr.Message}
	case errors.As(err, &verrs):
		fields := make(map[string]string, len(verrs))
		for _, v := range verrs {
			fields[v.Field()] = v.Tag()
		}
		code = http.StatusBadRequest
		message = echo.Map{"error": "validation failed", "fields": fields}
	default:
		slog.Error("request failed",
			slog.String("method", c.Request().Method),
			slog.String("path", c.Request().URL.Path),
			slog.Any("err", err),
		)
		code = http.StatusInternalServerError
		message = echo.Map{"error": http.StatusText(http.StatusInternalServerError)}
	}

	if c.Response().Committed {
		return
	}
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, message)
	}
	if err != nil {
		slog.Error("failed to write error response", slog.Any("err", err))
	}
}

func timeNow() time.Time {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		loc = time.UTC
	}
	return time.Now().In(loc)
}
