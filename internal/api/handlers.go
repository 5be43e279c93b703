package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/keshavmahale005/ScriptAgent-CHATBOT/internal/models"
	"github.com/keshavmahale005/ScriptAgent-CHATBOT/internal/script"
	"github.com/keshavmahale005/ScriptAgent-CHATBOT/internal/util"
)

// scriptsHandler dispatches /scripts and /scripts/{id}.
func (s *Server) scriptsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.scriptsHandler invoked", "method", r.Method, "path", r.URL.Path)

	path := strings.TrimPrefix(r.URL.Path, "/scripts")
	path = strings.TrimPrefix(path, "/")
	segments := strings.Split(path, "/")

	if len(segments) == 0 || segments[0] == "" {
		switch r.Method {
		case http.MethodPost:
			s.createScriptHandler(w, r)
		case http.MethodGet:
			s.listScriptsHandler(w, r)
		default:
			w.Header().Set("Allow", "GET, POST")
			writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		}
		return
	}

	scriptID := segments[0]
	if len(segments) == 1 {
		switch r.Method {
		case http.MethodGet:
			s.getScriptHandler(w, r, scriptID)
		case http.MethodDelete:
			s.deleteScriptHandler(w, r, scriptID)
		default:
			w.Header().Set("Allow", "GET, DELETE")
			writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		}
		return
	}

	writeJSONResponse(w, http.StatusNotFound, models.Error("Unknown scripts endpoint"))
}

// createScriptHandler handles POST /scripts: parse the text, detect the call
// type and persist the result.
func (s *Server) createScriptHandler(w http.ResponseWriter, r *http.Request) {
	var req models.ScriptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.createScriptHandler: invalid body", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.createScriptHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	doc := script.Parse(req.Text)
	name := req.Name
	if name == "" {
		name = doc.Metadata["script_name"]
	}
	if name == "" {
		name = "Untitled Script"
	}

	now := time.Now().UTC()
	sc := models.Script{
		ID:        util.GenerateScriptID(),
		Name:      name,
		Text:      req.Text,
		CallType:  script.DetectCallType(doc, req.Text),
		Metadata:  doc.Metadata,
		Variables: doc.Variables,
		Sections:  len(doc.Sections),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.st.SaveScript(sc); err != nil {
		slog.Error("Server.createScriptHandler: save failed", "error", err, "scriptID", sc.ID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save script"))
		return
	}

	slog.Info("Server.createScriptHandler: script stored",
		"scriptID", sc.ID, "name", sc.Name, "callType", sc.CallType, "sections", sc.Sections)
	writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("Script stored successfully", sc))
}

// listScriptsHandler handles GET /scripts
func (s *Server) listScriptsHandler(w http.ResponseWriter, r *http.Request) {
	scripts, err := s.st.ListScripts()
	if err != nil {
		slog.Error("Server.listScriptsHandler: list failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list scripts"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"scripts": scripts,
		"count":   len(scripts),
	}))
}

// getScriptHandler handles GET /scripts/{id}
func (s *Server) getScriptHandler(w http.ResponseWriter, r *http.Request, scriptID string) {
	sc, err := s.st.GetScript(scriptID)
	if err != nil {
		slog.Error("Server.getScriptHandler: lookup failed", "error", err, "scriptID", scriptID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch script"))
		return
	}
	if sc == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Script not found"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(sc))
}

// deleteScriptHandler handles DELETE /scripts/{id}
func (s *Server) deleteScriptHandler(w http.ResponseWriter, r *http.Request, scriptID string) {
	sc, err := s.st.GetScript(scriptID)
	if err != nil {
		slog.Error("Server.deleteScriptHandler: lookup failed", "error", err, "scriptID", scriptID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch script"))
		return
	}
	if sc == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Script not found"))
		return
	}
	if err := s.st.DeleteScript(scriptID); err != nil {
		slog.Error("Server.deleteScriptHandler: delete failed", "error", err, "scriptID", scriptID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to delete script"))
		return
	}
	slog.Info("Server.deleteScriptHandler: script deleted", "scriptID", scriptID)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Script deleted successfully", nil))
}

// sessionsHandler dispatches /sessions, /sessions/{id},
// /sessions/{id}/turns and /sessions/{id}/progress.
func (s *Server) sessionsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.sessionsHandler invoked", "method", r.Method, "path", r.URL.Path)

	path := strings.TrimPrefix(r.URL.Path, "/sessions")
	path = strings.TrimPrefix(path, "/")
	segments := strings.Split(path, "/")

	if len(segments) == 0 || segments[0] == "" {
		switch r.Method {
		case http.MethodPost:
			s.createSessionHandler(w, r)
		default:
			w.Header().Set("Allow", "POST")
			writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		}
		return
	}

	sessionID := segments[0]
	if len(segments) == 1 {
		switch r.Method {
		case http.MethodDelete:
			s.endSessionHandler(w, r, sessionID)
		default:
			w.Header().Set("Allow", "DELETE")
			writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		}
		return
	}

	if len(segments) == 2 {
		switch {
		case segments[1] == "turns" && r.Method == http.MethodPost:
			s.turnHandler(w, r, sessionID)
			return
		case segments[1] == "progress" && r.Method == http.MethodGet:
			s.progressHandler(w, r, sessionID)
			return
		case segments[1] == "reset" && r.Method == http.MethodPost:
			s.resetSessionHandler(w, r, sessionID)
			return
		}
	}

	writeJSONResponse(w, http.StatusNotFound, models.Error("Unknown sessions endpoint"))
}

// createSessionHandler handles POST /sessions: start a call over a stored
// script and return the opening line.
func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req models.SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.createSessionHandler: invalid body", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.createSessionHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	sc, err := s.st.GetScript(req.ScriptID)
	if err != nil {
		slog.Error("Server.createSessionHandler: script lookup failed", "error", err, "scriptID", req.ScriptID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch script"))
		return
	}
	if sc == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Script not found"))
		return
	}

	sess, opening, err := s.sessions.Create(r.Context(), *sc, req.NotifyNumber)
	if err != nil {
		slog.Warn("Server.createSessionHandler: session creation failed", "error", err, "scriptID", req.ScriptID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	writeJSONResponse(w, http.StatusCreated, models.Success(map[string]interface{}{
		"session_id": sess.ID,
		"script_id":  sess.ScriptID,
		"call_type":  sess.CallType,
		"opening":    opening,
	}))
}

// turnHandler handles POST /sessions/{id}/turns
func (s *Server) turnHandler(w http.ResponseWriter, r *http.Request, sessionID string) {
	if s.sessions.Get(sessionID) == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}

	var req models.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.turnHandler: invalid body", "error", err, "sessionID", sessionID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.turnHandler: validation failed", "error", err, "sessionID", sessionID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	result, err := s.sessions.Turn(r.Context(), sessionID, req.Input)
	if err != nil {
		slog.Error("Server.turnHandler: turn failed", "error", err, "sessionID", sessionID)
		writeJSONResponse(w, http.StatusConflict, models.Error(err.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

// progressHandler handles GET /sessions/{id}/progress
func (s *Server) progressHandler(w http.ResponseWriter, r *http.Request, sessionID string) {
	sess := s.sessions.Get(sessionID)
	if sess == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(sess.Progress()))
}

// resetSessionHandler handles POST /sessions/{id}/reset: restarts the call
// from the opening line.
func (s *Server) resetSessionHandler(w http.ResponseWriter, r *http.Request, sessionID string) {
	sess := s.sessions.Get(sessionID)
	if sess == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}
	opening := sess.Reset()
	slog.Info("Server.resetSessionHandler: session restarted", "sessionID", sessionID)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Session restarted", opening))
}

// endSessionHandler handles DELETE /sessions/{id}: finishes the call and
// returns its call log.
func (s *Server) endSessionHandler(w http.ResponseWriter, r *http.Request, sessionID string) {
	if s.sessions.Get(sessionID) == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}
	log, err := s.sessions.End(r.Context(), sessionID)
	if err != nil {
		slog.Error("Server.endSessionHandler: end failed", "error", err, "sessionID", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to end session"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Session ended successfully", log))
}

// callsHandler dispatches /calls and /calls/{id}.
func (s *Server) callsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.callsHandler invoked", "method", r.Method, "path", r.URL.Path)

	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/calls")
	path = strings.TrimPrefix(path, "/")
	segments := strings.Split(path, "/")

	if len(segments) == 0 || segments[0] == "" {
		logs, err := s.st.ListCallLogs()
		if err != nil {
			slog.Error("Server.callsHandler: list failed", "error", err)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list call logs"))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
			"calls": logs,
			"count": len(logs),
		}))
		return
	}

	if len(segments) == 1 {
		log, err := s.st.GetCallLog(segments[0])
		if err != nil {
			slog.Error("Server.callsHandler: lookup failed", "error", err, "callID", segments[0])
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch call log"))
			return
		}
		if log == nil {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Call log not found"))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(log))
		return
	}

	writeJSONResponse(w, http.StatusNotFound, models.Error("Unknown calls endpoint"))
}

// healthHandler provides a health check endpoint for monitoring and load balancing
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"status":        "healthy",
		"live_sessions": s.sessions.Count(),
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	})
}
