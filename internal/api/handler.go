package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"startgate/internal/gate"
)

// Gate is the part of the orchestrator the API needs.
type Gate interface {
	Run(ctx context.Context) gate.Decision
}

// TokenSink receives push tokens from the messaging integration.
type TokenSink interface {
	Deliver(token string)
}

type GateHandler struct {
	Gate   Gate
	Tokens TokenSink
}

func NewGateHandler(g Gate, tokens TokenSink) *GateHandler {
	return &GateHandler{Gate: g, Tokens: tokens}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Decision returns this cold start's decision, running the gate if needed.
func (h *GateHandler) Decision(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Gate.Run(r.Context()))
}

type pushTokenRequest struct {
	Token string `json:"token"`
}

func (h *GateHandler) PushToken(w http.ResponseWriter, r *http.Request) {
	var req pushTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "token is required"})
		return
	}
	h.Tokens.Deliver(req.Token)
	w.WriteHeader(http.StatusNoContent)
}
