// internal/server/server.go

// Package server exposes the council over HTTP: conversation and project
// CRUD, message submission as background jobs, job progress via snapshot or
// SSE stream, and council configuration.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/Zeetio/llm-council/internal/appconfig"
	"github.com/Zeetio/llm-council/internal/jobs"
	"github.com/Zeetio/llm-council/internal/logging"
	"github.com/Zeetio/llm-council/internal/storage"
)

type errResp struct {
	Error string `json:"error"`
}

// Server holds the HTTP surface over the store and job controller.
type Server struct {
	cfg   *appconfig.Config
	files *storage.Store
	ctrl  *jobs.Controller
	mux   *http.ServeMux
}

// New assembles the routes.
func New(cfg *appconfig.Config, files *storage.Store, ctrl *jobs.Controller) *Server {
	s := &Server{cfg: cfg, files: files, ctrl: ctrl, mux: http.NewServeMux()}

	s.mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	s.mux.HandleFunc("GET /api/projects", s.handleListProjects)
	s.mux.HandleFunc("POST /api/projects", s.handleCreateProject)
	s.mux.HandleFunc("DELETE /api/projects/{projectID}", s.handleDeleteProject)
	s.mux.HandleFunc("GET /api/projects/{projectID}/memory", s.handleGetMemory)
	s.mux.HandleFunc("PUT /api/projects/{projectID}/memory", s.handleSetMemory)

	s.mux.HandleFunc("GET /api/projects/{projectID}/conversations", s.handleListConversations)
	s.mux.HandleFunc("POST /api/projects/{projectID}/conversations", s.handleCreateConversation)
	s.mux.HandleFunc("GET /api/projects/{projectID}/conversations/{conversationID}", s.handleGetConversation)
	s.mux.HandleFunc("DELETE /api/projects/{projectID}/conversations/{conversationID}", s.handleDeleteConversation)
	s.mux.HandleFunc("POST /api/projects/{projectID}/conversations/{conversationID}/message", s.handleSendMessage)

	s.mux.HandleFunc("GET /api/jobs", s.handleListJobs)
	s.mux.HandleFunc("GET /api/jobs/{jobID}", s.handleGetJob)
	s.mux.HandleFunc("GET /api/jobs/{jobID}/events", s.handleJobEvents)
	s.mux.HandleFunc("POST /api/jobs/{jobID}/cancel", s.handleCancelJob)

	s.mux.HandleFunc("GET /api/council", s.handleGetCouncil)
	s.mux.HandleFunc("PUT /api/council", s.handlePutCouncil)

	return s
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.withCORS(s.mux)
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	allowed := s.cfg.Origins()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && originAllowed(origin, allowed) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func originAllowed(origin string, allowed []string) bool {
	for _, candidate := range allowed {
		if candidate == "*" || candidate == origin {
			return true
		}
	}
	return false
}

func (s *Server) handleListProjects(w http.ResponseWriter, _ *http.Request) {
	projects, err := s.files.ListProjects()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errResp{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(w, r, &req, 1<<16); err != nil {
		writeJSON(w, http.StatusBadRequest, errResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	project, err := s.files.CreateProject(req.Name)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errResp{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	err := s.files.DeleteProject(r.PathValue("projectID"))
	switch {
	case errors.Is(err, storage.ErrProjectProtected):
		writeJSON(w, http.StatusForbidden, errResp{Error: err.Error()})
	case errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errResp{Error: "project not found"})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, errResp{Error: err.Error()})
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleGetMemory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"memory": s.files.MemoryContext(r.PathValue("projectID")),
	})
}

func (s *Server) handleSetMemory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Memory string `json:"memory"`
	}
	if err := decodeJSON(w, r, &req, 1<<20); err != nil {
		writeJSON(w, http.StatusBadRequest, errResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if err := s.files.SetMemoryContext(r.PathValue("projectID"), req.Memory); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errResp{Error: "project not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errResp{Error: err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	metas, err := s.files.ListConversations(r.PathValue("projectID"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errResp{Error: "project not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errResp{Error: err.Error()})
		return
	}
	if metas == nil {
		metas = []storage.ConversationMeta{}
	}
	writeJSON(w, http.StatusOK, metas)
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.files.CreateConversation(r.PathValue("projectID"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errResp{Error: "project not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errResp{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.files.GetConversation(r.PathValue("projectID"), r.PathValue("conversationID"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errResp{Error: "conversation not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errResp{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	err := s.files.DeleteConversation(r.PathValue("projectID"), r.PathValue("conversationID"))
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errResp{Error: "conversation not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errResp{Error: err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSendMessage accepts the user's question and returns immediately with
// the job handle. The first message of a conversation also triggers title
// generation.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("projectID")
	conversationID := r.PathValue("conversationID")

	var req struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(w, r, &req, 1<<20); err != nil {
		writeJSON(w, http.StatusBadRequest, errResp{Error: "invalid JSON: " + err.Error()})
		return
	}

	conv, err := s.files.GetConversation(projectID, conversationID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errResp{Error: "conversation not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errResp{Error: err.Error()})
		return
	}

	job, err := s.ctrl.Submit(jobs.SubmitRequest{
		ProjectID:      projectID,
		ConversationID: conversationID,
		Question:       req.Content,
		GenerateTitle:  len(conv.Messages) == 0 && !s.cfg.DisableTitleGen,
	})
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errResp{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.ID,
		"status": job.Status,
	})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, errResp{Error: "limit must be a positive integer"})
			return
		}
		limit = parsed
	}
	listed, err := s.ctrl.List(limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errResp{Error: err.Error()})
		return
	}
	if listed == nil {
		listed = []*jobs.Job{}
	}
	writeJSON(w, http.StatusOK, listed)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.ctrl.Snapshot(r.PathValue("jobID"))
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errResp{Error: "job not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errResp{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	err := s.ctrl.Cancel(r.PathValue("jobID"))
	switch {
	case errors.Is(err, jobs.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errResp{Error: "job not found"})
	case errors.Is(err, jobs.ErrFinished):
		writeJSON(w, http.StatusConflict, errResp{Error: err.Error()})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, errResp{Error: err.Error()})
	default:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
	}
}

// handleJobEvents streams the job's event sequence as SSE frames. The stream
// ends when the job reaches a terminal state or the client disconnects.
func (s *Server) handleJobEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errResp{Error: "streaming unsupported"})
		return
	}

	ch, unsubscribe, err := s.ctrl.Subscribe(r.PathValue("jobID"))
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errResp{Error: "job not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errResp{Error: err.Error()})
		return
	}
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case event, open := <-ch:
			if !open {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				logging.LogEvent("Failed to encode event for job %s: %v", r.PathValue("jobID"), err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) handleGetCouncil(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, appconfig.LoadCouncil(s.cfg.CouncilConfigPath()))
}

func (s *Server) handlePutCouncil(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errResp{Error: err.Error()})
		return
	}
	council, err := appconfig.SaveCouncil(s.cfg.CouncilConfigPath(), raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errResp{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, council)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any, maxBytes int64) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
