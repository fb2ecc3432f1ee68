package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pyama86/itdesk/domain/infra"
	"github.com/pyama86/itdesk/domain/model"
)

type submitRequest struct {
	Name         string `json:"name" validate:"required"`
	Faculty      string `json:"faculty" validate:"required"`
	Grade        string `json:"grade" validate:"required"`
	StudentID    string `json:"student_id" validate:"required_unless=Grade 教職員"`
	Email        string `json:"email" validate:"required,email"`
	QuestionText string `json:"question_text" validate:"required"`
}

func (r *submitRequest) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Faculty = strings.TrimSpace(r.Faculty)
	r.Grade = strings.TrimSpace(r.Grade)
	r.StudentID = strings.TrimSpace(r.StudentID)
	r.Email = strings.TrimSpace(r.Email)
	// 先頭の "#" は再投稿の目印なので前方は削らない
	r.QuestionText = strings.TrimRight(r.QuestionText, " \t\r\n")
}

func (h *Handler) submitQuestion(c echo.Context) error {
	var req submitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	req.normalize()
	if err := c.Validate(&req); err != nil {
		return err
	}
	if req.Grade == model.GradeStaff {
		req.StudentID = ""
	}

	ctx := c.Request().Context()
	q := model.NewQuestion(req.Name, req.Faculty, req.Grade, req.StudentID, req.Email, req.QuestionText, timeNow())
	if err := h.ds.CreateQuestion(ctx, q); err != nil {
		return fmt.Errorf("create question: %w", err)
	}
	// 失敗しても定期的な再送で拾われる
	if err := h.bus.Publish(ctx, model.QuestionCreated(q)); err != nil {
		slog.Error("failed to publish question.created", slog.String("question", q.ID), slog.Any("err", err))
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"id":     q.ID,
		"status": q.Status,
	})
}

func (h *Handler) listQuestions(c echo.Context) error {
	questions, err := h.ds.ListQuestions(c.Request().Context())
	if err != nil {
		return err
	}
	if questions == nil {
		questions = []model.Question{}
	}
	return c.JSON(http.StatusOK, questions)
}

func (h *Handler) getQuestion(c echo.Context) error {
	q, err := h.ds.GetQuestion(c.Request().Context(), c.Param("id"))
	if errors.Is(err, infra.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "question not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, q)
}

type replyRequest struct {
	Reply string `json:"reply" validate:"required"`
}

func (h *Handler) reply(c echo.Context) error {
	var req replyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	req.Reply = strings.TrimSpace(req.Reply)
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	id := c.Param("id")
	before, after, err := h.ds.Reply(ctx, id, model.Reply{
		Body:      req.Reply,
		RepliedBy: replierName(adminFrom(c)),
		RepliedAt: timeNow(),
	})
	switch {
	case errors.Is(err, infra.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "question not found")
	case errors.Is(err, infra.ErrAlreadyReplied):
		return echo.NewHTTPError(http.StatusConflict, "question already replied")
	case err != nil:
		return fmt.Errorf("reply %s: %w", id, err)
	}

	if err := h.bus.Publish(ctx, model.QuestionUpdated(before, after)); err != nil {
		slog.Error("failed to publish question.updated", slog.String("question", id), slog.Any("err", err))
	}
	slog.Info("question replied", slog.String("question", id), slog.String("by", after.RepliedBy))
	return c.JSON(http.StatusOK, after)
}

func (h *Handler) listArchives(c echo.Context) error {
	archives, err := h.ds.ListArchives(c.Request().Context())
	if err != nil {
		return err
	}
	if archives == nil {
		archives = []model.Archive{}
	}
	return c.JSON(http.StatusOK, archives)
}
