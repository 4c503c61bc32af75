// Package api provides HTTP handlers for CoachFlow endpoints.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/growthloop/coachflow/internal/flow"
	"github.com/growthloop/coachflow/internal/models"
)

func (s *Server) startSessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.startSessionHandler: processing start session request")

	// The body is optional; a user id may be supplied to group sessions.
	var req models.StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		slog.Warn("Server.startSessionHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	result, err := s.engine.StartSession(r.Context(), req.UserID)
	if err != nil {
		slog.Error("Server.startSessionHandler: failed to start session", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to start session"))
		return
	}

	slog.Info("Server.startSessionHandler: session started", "sessionID", result.SessionID, "userID", result.UserID)
	writeJSONResponse(w, http.StatusCreated, models.Success(result))
}

func (s *Server) sendMessageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	sessionID := chi.URLParam(r, "sessionID")
	slog.Debug("Server.sendMessageHandler: processing message", "sessionID", sessionID)

	var req models.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.sendMessageHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	resp, err := s.engine.ProcessMessage(r.Context(), sessionID, req)
	if err != nil {
		s.writeProcessError(w, sessionID, err)
		return
	}

	slog.Debug("Server.sendMessageHandler: message processed", "sessionID", sessionID, "stage", resp.Stage, "demoMode", resp.DemoMode)
	writeJSONResponse(w, http.StatusOK, models.Success(resp))
}

// writeProcessError maps engine errors to HTTP statuses. Unexpected errors
// return an apologetic coaching envelope so the conversation can continue.
func (s *Server) writeProcessError(w http.ResponseWriter, sessionID string, err error) {
	switch {
	case errors.Is(err, models.ErrSessionNotFound):
		slog.Warn("Server.sendMessageHandler: session not found", "sessionID", sessionID)
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
	case errors.Is(err, models.ErrEmptyMessage),
		errors.Is(err, models.ErrMessageTooLong),
		errors.Is(err, models.ErrInvalidMessageType),
		errors.Is(err, models.ErrInvalidTopic),
		errors.Is(err, models.ErrTopicAlreadySet),
		errors.Is(err, models.ErrInvalidActionPayload),
		errors.Is(err, models.ErrInvalidStage):
		slog.Warn("Server.sendMessageHandler: validation failed", "error", err, "sessionID", sessionID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
	default:
		slog.Error("Server.sendMessageHandler: processing failed", "error", err, "sessionID", sessionID)
		writeApologyResponse(w)
	}
}

func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	slog.Debug("Server.getSessionHandler: fetching session", "sessionID", sessionID)

	state, err := s.engine.GetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, models.ErrSessionNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
			return
		}
		slog.Error("Server.getSessionHandler: failed to load session", "error", err, "sessionID", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load session"))
		return
	}

	writeJSONResponse(w, http.StatusOK, models.Success(state))
}

func (s *Server) transitionStageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	sessionID := chi.URLParam(r, "sessionID")
	slog.Debug("Server.transitionStageHandler: processing stage transition", "sessionID", sessionID)

	var req models.StageTransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.transitionStageHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.transitionStageHandler: validation failed", "error", err, "stage", req.Stage)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	resp, err := s.engine.TransitionStage(r.Context(), sessionID, req.Stage)
	if err != nil {
		if errors.Is(err, models.ErrSessionNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
			return
		}
		slog.Error("Server.transitionStageHandler: transition failed", "error", err, "sessionID", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to transition stage"))
		return
	}

	slog.Info("Server.transitionStageHandler: stage transitioned", "sessionID", sessionID, "stage", req.Stage)
	writeJSONResponse(w, http.StatusOK, models.Success(resp))
}

func (s *Server) topicsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.topicsHandler: listing topics")
	writeJSONResponse(w, http.StatusOK, models.Success(flow.Topics()))
}

// healthStatus is the body of GET /health.
type healthStatus struct {
	Status         string `json:"status"`
	App            string `json:"app"`
	LLMConfigured  bool   `json:"llm_configured"`
	ActiveSessions int    `json:"active_sessions"`
	Timestamp      string `json:"timestamp"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	active := 0
	if sessions, err := s.engine.Store().ListSessions(); err == nil {
		active = len(sessions)
	} else {
		slog.Error("Server.healthHandler: failed to count sessions", "error", err)
	}

	writeJSONResponse(w, http.StatusOK, healthStatus{
		Status:         "healthy",
		App:            "CoachFlow",
		LLMConfigured:  s.engine.LLMConfigured(),
		ActiveSessions: active,
		Timestamp:      time.Now().Format(time.RFC3339),
	})
}
