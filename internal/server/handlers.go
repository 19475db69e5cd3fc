package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/tributary-ai/triage-router/internal/types"
)

// routeRequest is the POST /v1/route payload.
type routeRequest struct {
	ID       string            `json:"id,omitempty"`
	Subject  string            `json:"subject,omitempty"`
	Text     string            `json:"text"`
	Priority types.Priority    `json:"priority"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// routeResponse wraps the decision with the analysis provider that
// classified the request.
type routeResponse struct {
	Decision   interface{}             `json:"decision"`
	Provider   string                  `json:"provider"`
	Classifier *types.ClassifierOutput `json:"classifier_output,omitempty"`
}

// handleRoute runs the full pipeline: provider selection, classification,
// group routing. It always produces a decision; classifier failures degrade
// to the fallback backend and then to scoring without classifier input.
func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	var payload routeRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if payload.Text == "" {
		s.writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if payload.Priority == "" {
		payload.Priority = types.PriorityMedium
	}
	if !types.ValidPriorities[payload.Priority] {
		s.writeError(w, http.StatusBadRequest, "unknown priority")
		return
	}
	if payload.ID == "" {
		payload.ID = uuid.New().String()
	}

	req := &types.Request{
		ID:        payload.ID,
		Subject:   payload.Subject,
		Text:      payload.Text,
		Priority:  payload.Priority,
		Metadata:  payload.Metadata,
		CreatedAt: time.Now(),
	}

	provider := s.selector.Select(types.TaskClassification, string(req.Priority))
	cls := s.classifyWithFallback(r.Context(), provider.ID, req.FullText())

	decision := s.router.Route(r.Context(), req, cls)

	s.writeJSON(w, http.StatusOK, routeResponse{
		Decision:   decision,
		Provider:   provider.ID,
		Classifier: cls,
	})
}

// classifyWithFallback runs the selected classifier and degrades to the
// universal fallback backend on failure. A nil output is acceptable; the
// scorer treats it as zero classifier confidence.
func (s *Server) classifyWithFallback(ctx context.Context, providerID, text string) *types.ClassifierOutput {
	classifier, err := s.classifiers.Get(providerID)
	if err == nil {
		if out, cerr := classifier.Classify(ctx, text); cerr == nil {
			return out
		} else {
			err = cerr
		}
	}

	s.logger.WithError(err).WithField("provider", providerID).Warn("Classification failed, trying fallback backend")

	fallback, ferr := s.classifiers.Get(s.fallbackClassifier)
	if ferr != nil {
		return nil
	}
	out, ferr := fallback.Classify(ctx, text)
	if ferr != nil {
		s.logger.WithError(ferr).Warn("Fallback classification failed, routing without classifier input")
		return nil
	}
	return out
}

// outcomeRequest is the POST /v1/decisions/{id}/outcome payload.
type outcomeRequest struct {
	ActualHours  float64 `json:"actual_hours"`
	Satisfaction float64 `json:"satisfaction"`
}

// handleOutcome folds an actual resolution outcome into the rolling history.
func (s *Server) handleOutcome(w http.ResponseWriter, r *http.Request) {
	decisionID := mux.Vars(r)["id"]

	var payload outcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if payload.ActualHours < 0 {
		s.writeError(w, http.StatusBadRequest, "actual_hours must be non-negative")
		return
	}

	if err := s.router.UpdateFromOutcome(r.Context(), decisionID, payload.ActualHours, payload.Satisfaction); err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

// selectProviderRequest is the POST /v1/providers/select payload.
type selectProviderRequest struct {
	TaskType types.TaskType `json:"task_type"`
	Priority string         `json:"priority,omitempty"`
}

// handleSelectProvider exposes provider selection directly.
func (s *Server) handleSelectProvider(w http.ResponseWriter, r *http.Request) {
	var payload selectProviderRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if payload.TaskType == "" {
		payload.TaskType = types.TaskClassification
	}

	provider := s.selector.Select(payload.TaskType, payload.Priority)

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"provider_id": provider.ID,
		"task_type":   payload.TaskType,
	})
}

// switchProviderRequest is the POST /v1/providers/switch payload.
type switchProviderRequest struct {
	CurrentProvider string         `json:"current_provider"`
	TaskType        types.TaskType `json:"task_type"`
}

// handleSwitchProvider keeps a long-lived session on a live provider.
func (s *Server) handleSwitchProvider(w http.ResponseWriter, r *http.Request) {
	var payload switchProviderRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if payload.TaskType == "" {
		payload.TaskType = types.TaskClassification
	}

	provider := s.selector.CheckAndSwitch(payload.CurrentProvider, payload.TaskType)

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"provider_id": provider.ID,
		"switched":    provider.ID != payload.CurrentProvider,
	})
}

// handleUsageStatus returns the read-only per-provider quota view.
func (s *Server) handleUsageStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"providers": s.selector.UsageStatus(),
		"timestamp": time.Now().Unix(),
	})
}

// handleGroupCapacity returns a fresh capacity snapshot per group.
func (s *Server) handleGroupCapacity(w http.ResponseWriter, r *http.Request) {
	snapshots := make([]types.CapacitySnapshot, 0, len(s.groups))
	for _, g := range s.groups {
		snapshots = append(snapshots, s.tracker.Snapshot(r.Context(), g))
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"groups":    snapshots,
		"timestamp": time.Now().Unix(),
	})
}

// handleHealth is the liveness endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}
