package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/forest6511/quantavault/pkg/generator"
	"github.com/forest6511/quantavault/pkg/importer"
	"github.com/forest6511/quantavault/pkg/security"
	"github.com/forest6511/quantavault/pkg/strength"
	"github.com/forest6511/quantavault/pkg/vault"
)

// MaxImportSize limits the body of an import request.
const MaxImportSize = 5 * 1024 * 1024

// maxJSONBody limits every other request body.
const maxJSONBody = 64 * 1024

// Handler implements the HTTP endpoints.
type Handler struct {
	vault   *vault.Vault
	auditor *security.Auditor
	reports *ReportCache
	logger  *slog.Logger
}

// NewHandler returns a Handler. reports may be nil to disable caching.
func NewHandler(v *vault.Vault, auditor *security.Auditor, reports *ReportCache, logger *slog.Logger) *Handler {
	return &Handler{vault: v, auditor: auditor, reports: reports, logger: logger}
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type GenerateResponse struct {
	Password string        `json:"password"`
	Score    int           `json:"score"`
	Tier     strength.Tier `json:"tier"`
}

type PassphraseRequest struct {
	WordCount int     `json:"word_count"`
	Separator *string `json:"separator,omitempty"`
}

type PassphraseResponse struct {
	Passphrase string        `json:"passphrase"`
	Score      int           `json:"score"`
	Tier       strength.Tier `json:"tier"`
}

type StrengthRequest struct {
	Secret string `json:"secret"`
}

type ImportResponse struct {
	vault.ImportSummary
	Skipped []importer.Skipped `json:"skipped,omitempty"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Generate returns a random password. Omitted fields take the defaults.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	cfg := generator.DefaultConfig()
	if !decodeOptional(w, r, &cfg) {
		return
	}
	if cfg.Length < generator.MinLength || cfg.Length > generator.MaxLength {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("length must be between %d and %d", generator.MinLength, generator.MaxLength))
		return
	}

	password, err := generator.Random(cfg)
	if err != nil {
		h.handleGeneratorError(w, err)
		return
	}
	score := strength.Score(password)
	writeJSON(w, http.StatusOK, GenerateResponse{Password: password, Score: score, Tier: strength.TierOf(score)})
}

// Passphrase returns a random passphrase.
func (h *Handler) Passphrase(w http.ResponseWriter, r *http.Request) {
	req := PassphraseRequest{WordCount: generator.DefaultWordCount}
	if !decodeOptional(w, r, &req) {
		return
	}
	if req.WordCount > generator.MaxWordCount {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("word_count must be at most %d", generator.MaxWordCount))
		return
	}
	sep := generator.DefaultSeparator
	if req.Separator != nil {
		sep = *req.Separator
	}

	phrase, err := generator.Passphrase(req.WordCount, sep)
	if err != nil {
		h.handleGeneratorError(w, err)
		return
	}
	score := strength.Score(phrase)
	writeJSON(w, http.StatusOK, PassphraseResponse{Passphrase: phrase, Score: score, Tier: strength.TierOf(score)})
}

// Strength scores a secret without storing it.
func (h *Handler) Strength(w http.ResponseWriter, r *http.Request) {
	var req StrengthRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, strength.Evaluate(req.Secret))
}

func (h *Handler) ListCredentials(w http.ResponseWriter, r *http.Request) {
	creds, err := h.vault.List(r.Context(), ownerFrom(r.Context()))
	if err != nil {
		h.handleStoreError(w, err)
		return
	}

	q := r.URL.Query()
	filter := vault.Filter{
		Category: vault.Category(q.Get("category")),
		Query:    q.Get("q"),
	}
	if fav := q.Get("favorite"); fav != "" {
		b, err := strconv.ParseBool(fav)
		if err != nil {
			writeError(w, http.StatusBadRequest, "favorite must be true or false")
			return
		}
		filter.FavoritesOnly = b
	}
	writeJSON(w, http.StatusOK, filter.Apply(creds))
}

func (h *Handler) CreateCredential(w http.ResponseWriter, r *http.Request) {
	var d vault.Draft
	if !decodeJSON(w, r, &d) {
		return
	}
	if err := vault.ValidateFormSecret(d.Secret); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	d.Owner = ownerFrom(r.Context())

	c, err := h.vault.Create(r.Context(), d)
	if err != nil {
		h.handleStoreError(w, err)
		return
	}
	h.invalidate(d.Owner)
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) GetCredential(w http.ResponseWriter, r *http.Request) {
	c, ok := h.ownedCredential(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) UpdateCredential(w http.ResponseWriter, r *http.Request) {
	var p vault.Patch
	if !decodeJSON(w, r, &p) {
		return
	}
	if p.Secret != nil {
		if err := vault.ValidateFormSecret(*p.Secret); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	c, ok := h.ownedCredential(w, r)
	if !ok {
		return
	}
	updated, err := h.vault.Update(r.Context(), c.ID, p)
	if err != nil {
		h.handleStoreError(w, err)
		return
	}
	h.invalidate(c.Owner)
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) DeleteCredential(w http.ResponseWriter, r *http.Request) {
	c, ok := h.ownedCredential(w, r)
	if !ok {
		return
	}
	if err := h.vault.Delete(r.Context(), c.ID); err != nil {
		h.handleStoreError(w, err)
		return
	}
	h.invalidate(c.Owner)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	c, ok := h.ownedCredential(w, r)
	if !ok {
		return
	}
	updated, err := h.vault.ToggleFavorite(r.Context(), c.ID)
	if err != nil {
		h.handleStoreError(w, err)
		return
	}
	h.invalidate(c.Owner)
	writeJSON(w, http.StatusOK, updated)
}

// Import parses the request body in the format given by ?format= and
// creates every candidate.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	format := importer.FormatGeneric
	if f := r.URL.Query().Get("format"); f != "" {
		parsed, err := importer.ParseFormat(f)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		format = parsed
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxImportSize))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "import file too large")
		return
	}

	result := importer.ParseDetailed(data, format)
	if len(result.Candidates) == 0 {
		writeJSON(w, http.StatusUnprocessableEntity, ImportResponse{Skipped: result.Skipped})
		return
	}

	owner := ownerFrom(r.Context())
	summary := h.vault.ImportAll(r.Context(), importer.Drafts(result.Candidates, owner))
	if summary.Imported > 0 {
		h.invalidate(owner)
	}
	h.logger.Info("import finished", "format", format, "imported", summary.Imported, "failed", summary.Failed)
	writeJSON(w, http.StatusOK, ImportResponse{ImportSummary: summary, Skipped: result.Skipped})
}

// SecurityReport returns findings, score and suggestions for the owner.
func (h *Handler) SecurityReport(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())
	var version uint64
	if h.reports != nil {
		if report, ok := h.reports.Get(owner); ok {
			writeJSON(w, http.StatusOK, report)
			return
		}
		version = h.reports.Version(owner)
	}

	creds, err := h.vault.List(r.Context(), owner)
	if err != nil {
		h.handleStoreError(w, err)
		return
	}
	report := h.auditor.Report(creds)
	if h.reports != nil {
		h.reports.Put(owner, version, report)
	}
	writeJSON(w, http.StatusOK, report)
}

// invalidate drops the owner's cached report before the write is acknowledged.
func (h *Handler) invalidate(owner string) {
	if h.reports != nil {
		h.reports.Invalidate(owner)
	}
}

// ownedCredential loads {id} and hides credentials of other owners.
func (h *Handler) ownedCredential(w http.ResponseWriter, r *http.Request) (vault.Credential, bool) {
	c, err := h.vault.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleStoreError(w, err)
		return vault.Credential{}, false
	}
	if c.Owner != ownerFrom(r.Context()) {
		writeError(w, http.StatusNotFound, "credential not found")
		return vault.Credential{}, false
	}
	return c, true
}

func (h *Handler) handleStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, vault.ErrNotFound):
		writeError(w, http.StatusNotFound, "credential not found")
	case errors.Is(err, vault.ErrInvalidCredential):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("vault operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) handleGeneratorError(w http.ResponseWriter, err error) {
	if errors.Is(err, generator.ErrInvalidConfig) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.logger.Error("generator failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

// decodeJSON decodes a required JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// decodeOptional is decodeJSON that accepts an empty body.
func decodeOptional(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
