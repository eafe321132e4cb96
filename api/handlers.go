/*
handlers.go - HTTP handlers for the chore engine

PURPOSE:
  Exposes the engine via REST. Handles HTTP request/response, JSON
  serialization, and delegates every decision to the chore package.

ENDPOINTS:
  Chores:
    POST   /api/chores                     Create chore + assignments
    GET    /api/chores/{id}                Chore overview (projection)
    PATCH  /api/chores/{id}                Update definition
    POST   /api/chores/{id}/disable        Soft delete
    POST   /api/chores/{id}/enable        Re-enable
    DELETE /api/chores/{id}                Hard delete (cascades)
    PUT    /api/chores/{id}/assignees      Replace assignee set
    POST   /api/chores/{id}/claim          Pool claim-and-complete

  Assignments:
    POST   /api/assignments/{id}/complete
    POST   /api/assignments/{id}/approve   Optional reward_value
    POST   /api/assignments/{id}/reject    Reason required

  People:
    GET    /api/people/{id}/assignments    Work queue
    GET    /api/people/{id}/balance        Derived balance
    POST   /api/people/{id}/adjustments    Manual ledger entry
    GET    /api/people/{id}/adjustments    History

ACTOR IDENTITY:
  The authentication collaborator in front of this service sets the
  X-Actor-ID header. Requests without it get 401; every authorization
  decision beyond that belongs to the engine's Authorizer.

ERROR HANDLING:
  Domain errors map onto HTTP statuses:
  - 400: validation, empty reason
  - 403: forbidden
  - 404: not found
  - 409: conflict, wrong lifecycle state, cooldown, disabled chore
  - 422: invalid reward value
  - 500: storage failures

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/chore-engine/chore"
)

// =============================================================================
// HANDLER
// =============================================================================

// Handler holds the engine facade used by every route.
type Handler struct {
	Service *chore.Service
}

func NewHandler(svc *chore.Service) *Handler {
	return &Handler{Service: svc}
}

const actorHeader = "X-Actor-ID"

func actorID(r *http.Request) chore.PersonID {
	return chore.PersonID(r.Header.Get(actorHeader))
}

// =============================================================================
// CHORE HANDLERS
// =============================================================================

func (h *Handler) CreateChore(w http.ResponseWriter, r *http.Request) {
	actor := actorID(r)
	if actor == "" {
		writeError(w, http.StatusUnauthorized, "missing "+actorHeader+" header")
		return
	}

	var req CreateChoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	spec := chore.ChoreSpec{
		Title:        req.Title,
		Description:  req.Description,
		Recurring:    req.Recurring,
		CooldownDays: req.CooldownDays,
		Mode:         chore.AssignmentMode(req.Mode),
	}
	for _, id := range req.AssigneeIDs {
		spec.AssigneeIDs = append(spec.AssigneeIDs, chore.PersonID(id))
	}

	reward, ok := parseMoney(w, req.Reward, "reward")
	if !ok {
		return
	}
	spec.Reward = reward

	if req.MinReward != nil || req.MaxReward != nil {
		if req.MinReward == nil || req.MaxReward == nil {
			writeError(w, http.StatusBadRequest, "min_reward and max_reward must be supplied together")
			return
		}
		minReward, ok := parseMoney(w, *req.MinReward, "min_reward")
		if !ok {
			return
		}
		maxReward, ok := parseMoney(w, *req.MaxReward, "max_reward")
		if !ok {
			return
		}
		spec.Range = &chore.RewardRange{Min: minReward, Max: maxReward}
	}

	c, err := h.Service.CreateChore(r.Context(), actor, spec)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toChoreDTO(c))
}

func (h *Handler) GetChore(w http.ResponseWriter, r *http.Request) {
	ov, err := h.Service.GetChoreOverview(r.Context(), chore.ChoreID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOverviewDTO(ov))
}

func (h *Handler) UpdateChore(w http.ResponseWriter, r *http.Request) {
	actor := actorID(r)
	var req UpdateChoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	patch := chore.ChorePatch{
		Title:        req.Title,
		Description:  req.Description,
		ClearRange:   req.ClearRange,
		Recurring:    req.Recurring,
		CooldownDays: req.CooldownDays,
	}
	if req.Reward != nil {
		m, ok := parseMoney(w, *req.Reward, "reward")
		if !ok {
			return
		}
		patch.Reward = &m
	}
	if req.MinReward != nil || req.MaxReward != nil {
		if req.MinReward == nil || req.MaxReward == nil {
			writeError(w, http.StatusBadRequest, "min_reward and max_reward must be supplied together")
			return
		}
		minReward, ok := parseMoney(w, *req.MinReward, "min_reward")
		if !ok {
			return
		}
		maxReward, ok := parseMoney(w, *req.MaxReward, "max_reward")
		if !ok {
			return
		}
		patch.Range = &chore.RewardRange{Min: minReward, Max: maxReward}
	}

	c, err := h.Service.UpdateChore(r.Context(), chore.ChoreID(chi.URLParam(r, "id")), actor, patch)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toChoreDTO(c))
}

func (h *Handler) DisableChore(w http.ResponseWriter, r *http.Request) {
	err := h.Service.DisableChore(r.Context(), chore.ChoreID(chi.URLParam(r, "id")), actorID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) EnableChore(w http.ResponseWriter, r *http.Request) {
	err := h.Service.EnableChore(r.Context(), chore.ChoreID(chi.URLParam(r, "id")), actorID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeleteChore(w http.ResponseWriter, r *http.Request) {
	err := h.Service.DeleteChore(r.Context(), chore.ChoreID(chi.URLParam(r, "id")), actorID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SetAssignees(w http.ResponseWriter, r *http.Request) {
	var req SetAssigneesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ids := make([]chore.PersonID, 0, len(req.AssigneeIDs))
	for _, id := range req.AssigneeIDs {
		ids = append(ids, chore.PersonID(id))
	}

	err := h.Service.SetAssignees(r.Context(), chore.ChoreID(chi.URLParam(r, "id")), actorID(r), ids)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClaimChore is the pool-chore completion entry point.
func (h *Handler) ClaimChore(w http.ResponseWriter, r *http.Request) {
	actor := actorID(r)
	if actor == "" {
		writeError(w, http.StatusUnauthorized, "missing "+actorHeader+" header")
		return
	}

	a, err := h.Service.ClaimChore(r.Context(), chore.ChoreID(chi.URLParam(r, "id")), actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAssignmentDTO(a))
}

// =============================================================================
// ASSIGNMENT HANDLERS
// =============================================================================

func (h *Handler) CompleteAssignment(w http.ResponseWriter, r *http.Request) {
	actor := actorID(r)
	if actor == "" {
		writeError(w, http.StatusUnauthorized, "missing "+actorHeader+" header")
		return
	}

	a, err := h.Service.CompleteAssignment(r.Context(), chore.AssignmentID(chi.URLParam(r, "id")), actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAssignmentDTO(a))
}

func (h *Handler) ApproveAssignment(w http.ResponseWriter, r *http.Request) {
	var req ApproveRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	var rewardValue *chore.Money
	if req.RewardValue != nil {
		m, ok := parseMoney(w, *req.RewardValue, "reward_value")
		if !ok {
			return
		}
		rewardValue = &m
	}

	a, err := h.Service.ApproveAssignment(r.Context(), chore.AssignmentID(chi.URLParam(r, "id")), actorID(r), rewardValue)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAssignmentDTO(a))
}

func (h *Handler) RejectAssignment(w http.ResponseWriter, r *http.Request) {
	var req RejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a, err := h.Service.RejectAssignment(r.Context(), chore.AssignmentID(chi.URLParam(r, "id")), actorID(r), req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAssignmentDTO(a))
}

// =============================================================================
// PEOPLE HANDLERS
// =============================================================================

func (h *Handler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Service.ListAssignmentsForPerson(r.Context(), chore.PersonID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]AssignmentDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, toAssignmentDTO(&rows[i]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	b, err := h.Service.GetBalance(r.Context(), chore.PersonID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(b))
}

func (h *Handler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	var req CreateAdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	amount, ok := parseMoney(w, req.Amount, "amount")
	if !ok {
		return
	}

	adj, err := h.Service.CreateAdjustment(r.Context(), actorID(r), chore.PersonID(chi.URLParam(r, "id")), amount, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAdjustmentDTO(adj))
}

func (h *Handler) ListAdjustments(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Service.ListAdjustments(r.Context(), chore.PersonID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]AdjustmentDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, toAdjustmentDTO(&rows[i]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

type errorResponse struct {
	Error         string `json:"error"`
	RemainingDays *int   `json:"remaining_days,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeDomainError maps engine errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error()}

	var cd *chore.CooldownError
	if errors.As(err, &cd) {
		resp.RemainingDays = &cd.RemainingDays
	}

	switch {
	case chore.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, resp)
	case errors.Is(err, chore.ErrForbidden):
		writeJSON(w, http.StatusForbidden, resp)
	case errors.Is(err, chore.ErrInvalidRewardValue):
		writeJSON(w, http.StatusUnprocessableEntity, resp)
	case errors.Is(err, chore.ErrValidation), errors.Is(err, chore.ErrEmptyReason):
		writeJSON(w, http.StatusBadRequest, resp)
	case chore.IsConflict(err), chore.IsClientError(err):
		// Wrong lifecycle state, cooldown, disabled chore, duplicate claim:
		// the request conflicts with current state, not with its own syntax.
		writeJSON(w, http.StatusConflict, resp)
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func parseMoney(w http.ResponseWriter, s, field string) (chore.Money, bool) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+field+": not a decimal amount")
		return chore.Money{}, false
	}
	return chore.Money{Value: d}, true
}
