package transport

import (
	"net/http"
	"strings"

	"github.com/rpggio/agenthub/internal/domain/activity"
)

// ClassifyRequest is the body of POST /v1/agents/classify.
type ClassifyRequest struct {
	Text string `json:"text"`
}

// ClassifyResponse carries the suggested agent for a command.
type ClassifyResponse struct {
	AgentID    string  `json:"agentId"`
	AgentName  string  `json:"agentName,omitempty"`
	Confidence float64 `json:"confidence"`
}

func (s *Server) handleListAgents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.agents.List())
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req ClassifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeDomainError(w, activity.ErrInvalidInput)
		return
	}
	id, confidence := s.classifier.Classify(req.Text)
	resp := ClassifyResponse{AgentID: id, Confidence: confidence}
	if a, ok := s.agents.Get(id); ok {
		resp.AgentName = a.Name
	}
	writeJSON(w, http.StatusOK, resp)
}
