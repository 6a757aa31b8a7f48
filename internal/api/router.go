package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/quantaleap/ascent/internal/middleware"
	"github.com/quantaleap/ascent/internal/services"
)

// Router wires the assessment repository and admin auth onto the HTTP
// surface the dashboards and the questionnaire front-end call.
type Router struct {
	repo     *services.Repository
	auth     *services.AuthService
	log      *zap.SugaredLogger
	validate *validator.Validate
}

func NewRouter(repo *services.Repository, auth *services.AuthService, log *zap.SugaredLogger) *Router {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Router{repo: repo, auth: auth, log: log, validate: validator.New()}
}

func (rt *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/assessments", rt.handleAssessments)
	mux.HandleFunc("/api/assessments/finalize", rt.handleFinalize)
	mux.HandleFunc("/api/summary", rt.handleSummary)
	mux.HandleFunc("/api/export", rt.handleExport)
	mux.HandleFunc("/api/auth/login", rt.handleLogin)
}

func (rt *Router) handleAssessments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		rt.handleSubmit(w, r)
	case http.MethodGet:
		rt.handleList(w, r)
	case http.MethodDelete:
		rt.handleDelete(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type submitRequest struct {
	SessionID     string    `json:"sessionId" validate:"required"`
	Team          string    `json:"team" validate:"required"`
	SubmitterName string    `json:"submitterName" validate:"required"`
	Scores        []int     `json:"scores" validate:"required,len=2,dive,min=0,max=3"`
	CreatedAt     time.Time `json:"createdAt"`
}

// POST /api/assessments
func (rt *Router) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, rt.log, services.NewInvalidError("invalid JSON in request body"))
		return
	}
	if err := rt.validate.Struct(req); err != nil {
		writeError(w, rt.log, services.NewInvalidError(err.Error()))
		return
	}
	rec := &services.AssessmentRecord{
		SessionID:     req.SessionID,
		Team:          req.Team,
		SubmitterName: req.SubmitterName,
		Scores:        req.Scores,
		CreatedAt:     req.CreatedAt,
	}
	res, err := rt.repo.Submit(r.Context(), rec)
	if err != nil {
		writeError(w, rt.log, err)
		return
	}
	rt.writeSubmitResult(w, res)
}

// POST /api/assessments/finalize
func (rt *Router) handleFinalize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var rec services.AssessmentRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, rt.log, services.NewInvalidError("invalid JSON in request body"))
		return
	}
	res, err := rt.repo.Finalize(r.Context(), &rec)
	if err != nil {
		writeError(w, rt.log, err)
		return
	}
	rt.writeSubmitResult(w, res)
}

func (rt *Router) writeSubmitResult(w http.ResponseWriter, res *services.SubmitResult) {
	body := map[string]any{"success": true, "sessionId": res.SessionID}
	if res.Offline {
		// Saved locally only; the user's submission is safe but unsynced.
		body["offline"] = true
		body["message"] = "saved locally, will sync when the store is reachable"
	}
	writeJSON(w, http.StatusOK, body)
}

// GET /api/assessments?admin=true&sessionId=...&rollup=true
func (rt *Router) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	view := services.ViewPublic
	if q.Get("admin") == "true" {
		if !rt.adminAllowed(r) {
			writeError(w, rt.log, services.NewUnauthorizedError("admin token required"))
			return
		}
		view = services.ViewAdmin
	}
	res, err := rt.repo.List(r.Context(), services.ListOptions{
		View:      view,
		SessionID: q.Get("sessionId"),
		Rollup:    q.Get("rollup") == "true",
	})
	if err != nil {
		writeError(w, rt.log, err)
		return
	}
	body := map[string]any{
		"success":     true,
		"assessments": res.Records,
		"count":       len(res.Records),
	}
	if res.Offline {
		body["offline"] = true
	}
	writeJSON(w, http.StatusOK, body)
}

// DELETE /api/assessments?sessionId=...&partitionKey=...
func (rt *Router) handleDelete(w http.ResponseWriter, r *http.Request) {
	if !rt.adminAllowed(r) {
		writeError(w, rt.log, services.NewUnauthorizedError("admin token required"))
		return
	}
	q := r.URL.Query()
	err := rt.repo.Delete(r.Context(), q.Get("partitionKey"), q.Get("sessionId"))
	if err != nil {
		writeError(w, rt.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// GET /api/summary
func (rt *Router) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	// Aggregate over the admin view: the quality metrics need to see
	// submitter names, and the summary output carries none of them.
	res, err := rt.repo.List(r.Context(), services.ListOptions{
		View:   services.ViewAdmin,
		Rollup: true,
	})
	if err != nil {
		writeError(w, rt.log, err)
		return
	}
	body := map[string]any{
		"success": true,
		"summary": services.BuildSummary(res.Records),
	}
	if res.Offline {
		body["offline"] = true
	}
	writeJSON(w, http.StatusOK, body)
}

// GET /api/export — admin CSV download of the full record log.
func (rt *Router) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !rt.adminAllowed(r) {
		writeError(w, rt.log, services.NewUnauthorizedError("admin token required"))
		return
	}
	res, err := rt.repo.List(r.Context(), services.ListOptions{View: services.ViewAdmin})
	if err != nil {
		writeError(w, rt.log, err)
		return
	}
	b, err := services.ExportAssessmentsCSV(res.Records)
	if err != nil {
		writeError(w, rt.log, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=assessments.csv")
	_, _ = w.Write(b)
}

// POST /api/auth/login
func (rt *Router) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, rt.log, services.NewInvalidError("invalid JSON in request body"))
		return
	}
	token, err := rt.auth.Login(req.Password)
	if err != nil {
		writeError(w, rt.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "token": token})
}

// adminAllowed gates admin surfaces. When no admin password is configured the
// surfaces stay open, matching the original deployment.
func (rt *Router) adminAllowed(r *http.Request) bool {
	if rt.auth == nil || !rt.auth.Enabled() {
		return true
	}
	return middleware.IsAdmin(r.Context())
}
