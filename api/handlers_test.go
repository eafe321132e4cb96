package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/chore-engine/chore"
	"github.com/warp/chore-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testAPI struct {
	router http.Handler
	svc    *chore.Service
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	svc := chore.NewService(memory.New(), chore.CreatorOnly("parent-1"))
	svc.Now = func() time.Time {
		return time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)
	}
	logger := log.New(os.Stderr)
	logger.SetLevel(log.ErrorLevel)
	return &testAPI{
		router: NewRouter(NewHandler(svc), logger, []string{"*"}),
		svc:    svc,
	}
}

// do sends a JSON request as the given actor and returns the recorder.
func (a *testAPI) do(t *testing.T, method, path, actor string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if actor != "" {
		req.Header.Set("X-Actor-ID", actor)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), "body: %s", rec.Body.String())
	return v
}

func (a *testAPI) createSingleChore(t *testing.T, assignee string) ChoreDTO {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/chores", "parent-1", CreateChoreRequest{
		Title:       "take out trash",
		Reward:      "5.00",
		Mode:        "single",
		AssigneeIDs: []string{assignee},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[ChoreDTO](t, rec)
}

func (a *testAPI) singleAssignment(t *testing.T, choreID string) AssignmentDTO {
	t.Helper()
	rec := a.do(t, http.MethodGet, "/api/chores/"+choreID, "parent-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ov := decode[ChoreOverviewDTO](t, rec)
	require.Len(t, ov.Assignments, 1)
	return ov.Assignments[0]
}

// =============================================================================
// CHORE ENDPOINTS
// =============================================================================

func TestAPI_CreateChore_ReturnsChore(t *testing.T) {
	a := newTestAPI(t)

	c := a.createSingleChore(t, "child-a")
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "take out trash", c.Title)
	assert.Equal(t, "5.00", c.Reward)
	assert.Equal(t, "parent-1", c.CreatorID)
	assert.False(t, c.IsRangeReward)
}

func TestAPI_CreateChore_MissingActor_401(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/api/chores", "", CreateChoreRequest{
		Title: "x", Reward: "1.00", Mode: "single", AssigneeIDs: []string{"child-a"},
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_CreateChore_BadMoney_400(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/api/chores", "parent-1", CreateChoreRequest{
		Title: "x", Reward: "five bucks", Mode: "single", AssigneeIDs: []string{"child-a"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_CreateChore_HalfRange_400(t *testing.T) {
	a := newTestAPI(t)

	minReward := "3.00"
	rec := a.do(t, http.MethodPost, "/api/chores", "parent-1", CreateChoreRequest{
		Title: "x", Reward: "0", MinReward: &minReward,
		Mode: "single", AssigneeIDs: []string{"child-a"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_CreateChore_InvalidMode_400(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/api/chores", "parent-1", CreateChoreRequest{
		Title: "x", Reward: "1.00", Mode: "round_robin", AssigneeIDs: []string{"child-a"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_GetChore_Overview(t *testing.T) {
	a := newTestAPI(t)
	c := a.createSingleChore(t, "child-a")

	rec := a.do(t, http.MethodGet, "/api/chores/"+c.ID, "parent-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	ov := decode[ChoreOverviewDTO](t, rec)
	assert.Equal(t, c.ID, ov.Chore.ID)
	require.NotNil(t, ov.AssigneeID)
	assert.Equal(t, "child-a", *ov.AssigneeID)
	assert.False(t, ov.IsCompleted)
}

func TestAPI_GetChore_Missing_404(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodGet, "/api/chores/ghost", "parent-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_UpdateChore_NonCreator_403(t *testing.T) {
	a := newTestAPI(t)
	c := a.createSingleChore(t, "child-a")

	title := "hijacked"
	rec := a.do(t, http.MethodPatch, "/api/chores/"+c.ID, "stranger", UpdateChoreRequest{Title: &title})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAPI_DisableThenComplete_409(t *testing.T) {
	a := newTestAPI(t)
	c := a.createSingleChore(t, "child-a")
	as := a.singleAssignment(t, c.ID)

	rec := a.do(t, http.MethodPost, "/api/chores/"+c.ID+"/disable", "parent-1", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/assignments/"+as.ID+"/complete", "child-a", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

// =============================================================================
// LIFECYCLE ENDPOINTS
// =============================================================================

func TestAPI_CompleteApprove_HappyPath(t *testing.T) {
	a := newTestAPI(t)
	c := a.createSingleChore(t, "child-a")
	as := a.singleAssignment(t, c.ID)

	rec := a.do(t, http.MethodPost, "/api/assignments/"+as.ID+"/complete", "child-a", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[AssignmentDTO](t, rec)
	assert.Equal(t, "pending_approval", got.State)
	assert.NotNil(t, got.CompletedAt)

	rec = a.do(t, http.MethodPost, "/api/assignments/"+as.ID+"/approve", "parent-1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got = decode[AssignmentDTO](t, rec)
	assert.Equal(t, "approved", got.State)
	require.NotNil(t, got.ApprovalReward)
	assert.Equal(t, "5.00", *got.ApprovalReward)

	rec = a.do(t, http.MethodGet, "/api/people/child-a/balance", "parent-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	b := decode[BalanceDTO](t, rec)
	assert.Equal(t, "5.00", b.TotalEarned)
	assert.Equal(t, "5.00", b.BalanceDue)
	assert.Equal(t, "0.00", b.PendingValue)
}

func TestAPI_Complete_WrongActor_403(t *testing.T) {
	a := newTestAPI(t)
	c := a.createSingleChore(t, "child-a")
	as := a.singleAssignment(t, c.ID)

	rec := a.do(t, http.MethodPost, "/api/assignments/"+as.ID+"/complete", "child-b", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAPI_Approve_OutOfRange_422(t *testing.T) {
	a := newTestAPI(t)

	minReward, maxReward := "3.00", "10.00"
	rec := a.do(t, http.MethodPost, "/api/chores", "parent-1", CreateChoreRequest{
		Title: "mow the lawn", Reward: "0",
		MinReward: &minReward, MaxReward: &maxReward,
		Mode: "single", AssigneeIDs: []string{"child-a"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	c := decode[ChoreDTO](t, rec)
	as := a.singleAssignment(t, c.ID)

	rec = a.do(t, http.MethodPost, "/api/assignments/"+as.ID+"/complete", "child-a", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	value := "11.00"
	rec = a.do(t, http.MethodPost, "/api/assignments/"+as.ID+"/approve", "parent-1", ApproveRequest{RewardValue: &value})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	value = "7.50"
	rec = a.do(t, http.MethodPost, "/api/assignments/"+as.ID+"/approve", "parent-1", ApproveRequest{RewardValue: &value})
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[AssignmentDTO](t, rec)
	assert.Equal(t, "7.50", *got.ApprovalReward)
}

func TestAPI_DoubleApprove_409(t *testing.T) {
	a := newTestAPI(t)
	c := a.createSingleChore(t, "child-a")
	as := a.singleAssignment(t, c.ID)

	a.do(t, http.MethodPost, "/api/assignments/"+as.ID+"/complete", "child-a", nil)
	rec := a.do(t, http.MethodPost, "/api/assignments/"+as.ID+"/approve", "parent-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/assignments/"+as.ID+"/approve", "parent-1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAPI_Reject_EmptyReason_400(t *testing.T) {
	a := newTestAPI(t)
	c := a.createSingleChore(t, "child-a")
	as := a.singleAssignment(t, c.ID)

	a.do(t, http.MethodPost, "/api/assignments/"+as.ID+"/complete", "child-a", nil)

	rec := a.do(t, http.MethodPost, "/api/assignments/"+as.ID+"/reject", "parent-1", RejectRequest{Reason: ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_Reject_ReasonVisibleOnAssignment(t *testing.T) {
	a := newTestAPI(t)
	c := a.createSingleChore(t, "child-a")
	as := a.singleAssignment(t, c.ID)

	a.do(t, http.MethodPost, "/api/assignments/"+as.ID+"/complete", "child-a", nil)
	rec := a.do(t, http.MethodPost, "/api/assignments/"+as.ID+"/reject", "parent-1", RejectRequest{Reason: "bins still full"})
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[AssignmentDTO](t, rec)
	assert.Equal(t, "available", got.State)
	assert.Equal(t, "bins still full", got.LastRejectionReason)
	assert.Nil(t, got.CompletedAt)
}

func TestAPI_Cooldown_409WithRemainingDays(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/api/chores", "parent-1", CreateChoreRequest{
		Title: "water the plants", Reward: "2.00",
		Recurring: true, CooldownDays: 7,
		Mode: "single", AssigneeIDs: []string{"child-a"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	c := decode[ChoreDTO](t, rec)
	as := a.singleAssignment(t, c.ID)

	a.do(t, http.MethodPost, "/api/assignments/"+as.ID+"/complete", "child-a", nil)
	rec = a.do(t, http.MethodPost, "/api/assignments/"+as.ID+"/approve", "parent-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Six days later: still one day short.
	a.svc.Now = func() time.Time {
		return time.Date(2025, time.March, 7, 9, 0, 0, 0, time.UTC)
	}
	rec = a.do(t, http.MethodPost, "/api/assignments/"+as.ID+"/complete", "child-a", nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	var body struct {
		Error         string `json:"error"`
		RemainingDays *int   `json:"remaining_days"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.NotNil(t, body.RemainingDays)
	assert.Equal(t, 1, *body.RemainingDays)
}

// =============================================================================
// POOL CLAIMS
// =============================================================================

func TestAPI_Claim_PoolChore(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/api/chores", "parent-1", CreateChoreRequest{
		Title: "rake leaves", Reward: "3.00", Mode: "unassigned",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	c := decode[ChoreDTO](t, rec)

	rec = a.do(t, http.MethodPost, "/api/chores/"+c.ID+"/claim", "child-a", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[AssignmentDTO](t, rec)
	assert.Equal(t, "child-a", got.AssigneeID)
	assert.Equal(t, "pending_approval", got.State)

	// A second child claims independently.
	rec = a.do(t, http.MethodPost, "/api/chores/"+c.ID+"/claim", "child-b", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// The first child claiming again conflicts with their pending row.
	rec = a.do(t, http.MethodPost, "/api/chores/"+c.ID+"/claim", "child-a", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

// =============================================================================
// PEOPLE ENDPOINTS
// =============================================================================

func TestAPI_Adjustments_CreateAndList(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/api/people/child-a/adjustments", "parent-1", CreateAdjustmentRequest{
		Amount: "-2.00", Reason: "broken vase",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodGet, "/api/people/child-a/adjustments", "parent-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	adjs := decode[[]AdjustmentDTO](t, rec)
	require.Len(t, adjs, 1)
	assert.Equal(t, "-2.00", adjs[0].Amount)

	rec = a.do(t, http.MethodGet, "/api/people/child-a/balance", "parent-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	b := decode[BalanceDTO](t, rec)
	assert.Equal(t, "-2.00", b.BalanceDue)
}

func TestAPI_Adjustments_Stranger_403(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/api/people/child-a/adjustments", "stranger", CreateAdjustmentRequest{
		Amount: "5.00", Reason: "bribe",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAPI_ListAssignments_WorkQueue(t *testing.T) {
	a := newTestAPI(t)

	for i := 0; i < 3; i++ {
		rec := a.do(t, http.MethodPost, "/api/chores", "parent-1", CreateChoreRequest{
			Title: fmt.Sprintf("chore %d", i), Reward: "1.00",
			Mode: "single", AssigneeIDs: []string{"child-a"},
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := a.do(t, http.MethodGet, "/api/people/child-a/assignments", "child-a", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rows := decode[[]AssignmentDTO](t, rec)
	assert.Len(t, rows, 3)
}
