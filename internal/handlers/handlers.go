// Copyright 2025 The gatewarden authors
// Licensed under the EUPL-1.2

// Package handlers contains the HTTP handlers of the verification API.
package handlers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"gatewarden/internal/ingest"
	"gatewarden/internal/models"
	"gatewarden/internal/repository"
	"gatewarden/internal/token"
)

// maxPayloadBytes caps the submission body; fingerprint payloads are
// small and anything larger is garbage.
const maxPayloadBytes = 256 * 1024

// Publisher hands a token off for asynchronous decisioning.
type Publisher interface {
	Enqueue(tok string) bool
}

// Config carries the handler-level settings.
type Config struct {
	VerifySecret string // HMAC key for signed notifications
	AdminSecret  string // shared secret for the admin surface
	BaseURL      string // public base URL for verification links
	TokenTTL     time.Duration
}

// Handlers contains all HTTP handlers.
type Handlers struct {
	repo     *repository.Repository
	tokens   *token.Manager
	ingestor *ingest.Service
	queue    Publisher
	cfg      Config
}

// New creates a new Handlers instance.
func New(repo *repository.Repository, tokens *token.Manager, ingestor *ingest.Service, queue Publisher, cfg Config) *Handlers {
	return &Handlers{
		repo:     repo,
		tokens:   tokens,
		ingestor: ingestor,
		queue:    queue,
		cfg:      cfg,
	}
}

// Health returns the health status.
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Submit ingests a fingerprint payload from the verification page and
// schedules the decision. The response only acknowledges receipt; the
// verdict lands asynchronously.
func (h *Handlers) Submit(c echo.Context) error {
	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, maxPayloadBytes))
	if err != nil {
		return fail(c, http.StatusBadRequest, "unreadable body")
	}

	payload := ingest.ParsePayload(raw)
	if payload.Token == "" {
		return fail(c, http.StatusBadRequest, "missing token")
	}

	if _, err := h.tokens.Validate(c.Request().Context(), payload.Token); err != nil {
		switch {
		case errors.Is(err, token.ErrNotFound):
			return fail(c, http.StatusNotFound, "unknown token")
		case errors.Is(err, token.ErrAlreadyUsed):
			return fail(c, http.StatusGone, "token already used")
		case errors.Is(err, token.ErrExpired):
			return fail(c, http.StatusGone, "token expired")
		default:
			return err
		}
	}

	if _, _, err := h.ingestor.Ingest(c.Request().Context(), payload.Token, raw, c.RealIP(), c.Request().UserAgent()); err != nil {
		return err
	}

	h.queue.Enqueue(payload.Token)
	return c.JSON(http.StatusOK, map[string]any{"ok": true})
}

// InternalVerify accepts a signed decision trigger from a trusted
// backend. The body is a JSON object carrying the token; X-Signature
// holds a hex HMAC-SHA256 of the token value.
func (h *Handlers) InternalVerify(c echo.Context) error {
	var body struct {
		Token string `json:"token"`
	}
	if err := c.Bind(&body); err != nil || body.Token == "" {
		return fail(c, http.StatusBadRequest, "missing token")
	}

	if !VerifySignature(h.cfg.VerifySecret, body.Token, c.Request().Header.Get("X-Signature")) {
		return fail(c, http.StatusForbidden, "bad signature")
	}

	h.queue.Enqueue(body.Token)
	return c.JSON(http.StatusOK, map[string]any{"ok": true})
}

// Status reports the lifecycle state of a token.
func (h *Handlers) Status(c echo.Context) error {
	rec, err := h.repo.GetTokenByValue(c.Request().Context(), c.Param("token"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fail(c, http.StatusNotFound, "unknown token")
		}
		return err
	}

	resp := map[string]any{
		"ok":        true,
		"subjectId": rec.SubjectID,
		"status":    rec.Status,
		"used":      rec.Used,
	}

	if action, err := h.repo.LatestActionFor(c.Request().Context(), rec.SubjectID); err == nil {
		resp["latestAction"] = action.Action
	}
	if rec.Status == models.StatusQuarantined {
		if q, err := h.repo.ActiveQuarantineFor(c.Request().Context(), rec.SubjectID); err == nil {
			resp["quarantineUntil"] = q.Until
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// Start probes a verification link before the page loads any challenge.
func (h *Handlers) Start(c echo.Context) error {
	_, err := h.tokens.Validate(c.Request().Context(), c.Param("token"))
	switch {
	case errors.Is(err, token.ErrNotFound):
		return fail(c, http.StatusNotFound, "unknown token")
	case errors.Is(err, token.ErrAlreadyUsed):
		return fail(c, http.StatusGone, "token already used")
	case errors.Is(err, token.ErrExpired):
		return fail(c, http.StatusGone, "token expired")
	case err != nil:
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true, "valid": true})
}

// adminAuthorized checks the admin secret, presented either as
// X-Admin-Secret or as a ?secret= query parameter.
func (h *Handlers) adminAuthorized(c echo.Context) bool {
	provided := c.Request().Header.Get("X-Admin-Secret")
	if provided == "" {
		provided = c.QueryParam("secret")
	}
	return secretsMatch(h.cfg.AdminSecret, provided)
}

// Export streams the verification ledger as CSV for operator review.
func (h *Handlers) Export(c echo.Context) error {
	if !h.adminAuthorized(c) {
		return fail(c, http.StatusForbidden, "forbidden")
	}

	rows, err := h.repo.ListVerificationsForExport(c.Request().Context())
	if err != nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="verifications.csv"`)
	c.Response().WriteHeader(http.StatusOK)

	w := csv.NewWriter(c.Response())
	if err := w.Write([]string{"subjectId", "token", "status", "used", "createdAt", "expiresAt", "ip", "asn", "userAgent", "honeypot"}); err != nil {
		return err
	}
	for _, row := range rows {
		if err := w.Write(exportRecord(row)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// Scan gives operators a quick look at a subject: latest fingerprint
// metadata and the most recent audit entry.
func (h *Handlers) Scan(c echo.Context) error {
	if !h.adminAuthorized(c) {
		return fail(c, http.StatusForbidden, "forbidden")
	}
	subjectID := c.Param("subject")

	resp := map[string]any{"ok": true, "subjectId": subjectID}

	rec, err := h.repo.LatestFingerprintForSubject(c.Request().Context(), subjectID)
	switch {
	case err == nil:
		resp["fingerprint"] = map[string]any{
			"ip":        rec.IP,
			"asn":       rec.ASN,
			"userAgent": rec.UserAgent,
			"honeypot":  rec.Honeypot,
			"seenAt":    rec.CreatedAt.UTC().Format(time.RFC3339),
		}
	case errors.Is(err, repository.ErrNotFound):
		// No submission yet; still report the audit trail.
	default:
		return err
	}

	if action, err := h.repo.LatestActionFor(c.Request().Context(), subjectID); err == nil {
		resp["latestAction"] = action.Action
		resp["latestReason"] = action.Reason
	}
	return c.JSON(http.StatusOK, resp)
}

// Reissue mints a fresh verification token for a subject on operator
// request, the manual recovery path when a link expired or a DM never
// arrived.
func (h *Handlers) Reissue(c echo.Context) error {
	if !h.adminAuthorized(c) {
		return fail(c, http.StatusForbidden, "forbidden")
	}
	subjectID := c.Param("subject")

	tok, err := h.tokens.Issue(c.Request().Context(), subjectID, h.cfg.TokenTTL)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"ok":    true,
		"token": tok,
		"link":  fmt.Sprintf("%s/start/%s", h.cfg.BaseURL, tok),
	})
}

func exportRecord(row models.ExportRow) []string {
	expires := ""
	if row.ExpiresAt != nil {
		expires = row.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return []string{
		row.SubjectID,
		row.Token,
		row.Status,
		strconv.FormatBool(row.Used),
		row.CreatedAt.UTC().Format(time.RFC3339),
		expires,
		deref(row.IP),
		deref(row.ASN),
		deref(row.UserAgent),
		strconv.FormatBool(row.Honeypot != nil && *row.Honeypot),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]any{"ok": false, "error": msg})
}
