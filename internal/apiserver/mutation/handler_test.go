package mutation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"genome-engine/internal/shared/model"
	"genome-engine/internal/shared/storage/repository"
)

func newTestServer(t *testing.T) (*httptest.Server, *repository.Store) {
	t.Helper()
	store, err := repository.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	mux := http.NewServeMux()
	NewHandler(store).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, store
}

// seedMutation 写入一条变异及其依赖的基因组/活动行
func seedMutation(t *testing.T, store *repository.Store) *model.Mutation {
	t.Helper()
	ctx := context.Background()

	g := &model.Genome{
		ID:     "genome-aaaaaaaaaaaa",
		Name:   "mutation test genome",
		UserID: "user-1",
		Data:   json.RawMessage(`{}`),
		Status: model.GenomeStatusActive,
	}
	if err := store.CreateGenome(ctx, g); err != nil {
		t.Fatalf("CreateGenome: %v", err)
	}

	c := &model.Campaign{
		ID:            "camp-aaaaaaaaaaaa",
		GenomeID:      g.ID,
		Name:          "mutation test campaign",
		TargetMetric:  model.MetricLatencyMS,
		Configuration: model.DefaultConfiguration(),
		Status:        model.CampaignStatusRunning,
	}
	if err := store.CreateCampaign(ctx, c); err != nil {
		t.Fatalf("CreateCampaign: %v", err)
	}

	m := &model.Mutation{
		ID:           "mut-aaaaaaaaaaaa",
		CampaignID:   c.ID,
		GenomeID:     g.ID,
		Sequence:     1,
		MutationType: "parameter_tweak",
		OriginalCode: `{"replicas": 3}`,
		MutatedCode:  `{"replicas": 4}`,
		Status:       model.MutationStatusScored,
	}
	if err := store.CreateMutation(ctx, m); err != nil {
		t.Fatalf("CreateMutation: %v", err)
	}
	return m
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// TestGetMutation 测试获取变异详情与 404
func TestGetMutation(t *testing.T) {
	srv, store := newTestServer(t)
	m := seedMutation(t, store)

	resp, err := http.Get(srv.URL + "/api/v1/mutations/" + m.ID)
	if err != nil {
		t.Fatalf("GET mutation: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var got model.Mutation
	decodeBody(t, resp, &got)
	if got.ID != m.ID {
		t.Errorf("ID = %q, want %q", got.ID, m.ID)
	}
	if got.Status != model.MutationStatusScored {
		t.Errorf("Status = %q, want scored", got.Status)
	}

	resp, err = http.Get(srv.URL + "/api/v1/mutations/mut-000000000000")
	if err != nil {
		t.Fatalf("GET missing mutation: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

// TestListMutationTests 测试列出变异的评估记录
func TestListMutationTests(t *testing.T) {
	srv, store := newTestServer(t)
	m := seedMutation(t, store)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		test := &model.MutationTest{
			ID:          fmt.Sprintf("test-%012d", i),
			MutationID:  m.ID,
			PassRate:    0.95,
			LatencyMS:   120,
			TestResults: json.RawMessage(`{"suite": "smoke"}`),
			CreatedAt:   time.Now().Add(time.Duration(i) * time.Second),
		}
		if err := store.CreateMutationTest(ctx, test); err != nil {
			t.Fatalf("CreateMutationTest: %v", err)
		}
	}

	var listResp struct {
		Tests []*model.MutationTest `json:"tests"`
		Count int                   `json:"count"`
	}
	resp, err := http.Get(srv.URL + "/api/v1/mutations/" + m.ID + "/tests")
	if err != nil {
		t.Fatalf("GET tests: %v", err)
	}
	decodeBody(t, resp, &listResp)
	if listResp.Count != 2 {
		t.Errorf("count = %d, want 2", listResp.Count)
	}
	for _, test := range listResp.Tests {
		if test.MutationID != m.ID {
			t.Errorf("MutationID = %q, want %q", test.MutationID, m.ID)
		}
	}

	// 没有评估记录的变异返回空列表而非错误
	resp, err = http.Get(srv.URL + "/api/v1/mutations/mut-000000000000/tests")
	if err != nil {
		t.Fatalf("GET empty tests: %v", err)
	}
	decodeBody(t, resp, &listResp)
	if listResp.Count != 0 {
		t.Errorf("count = %d, want 0", listResp.Count)
	}
}

// TestListMutationHistory 测试列出变异的审计台账
func TestListMutationHistory(t *testing.T) {
	srv, store := newTestServer(t)
	m := seedMutation(t, store)
	ctx := context.Background()

	actions := []model.HistoryAction{
		model.HistoryActionProposed,
		model.HistoryActionEvaluated,
		model.HistoryActionScored,
	}
	for _, action := range actions {
		mutationID := m.ID
		entry := &model.HistoryEntry{
			MutationID: &mutationID,
			CampaignID: m.CampaignID,
			Action:     action,
			Actor:      "engine",
		}
		if err := store.AppendHistory(ctx, entry); err != nil {
			t.Fatalf("AppendHistory: %v", err)
		}
	}

	var listResp struct {
		History []*model.HistoryEntry `json:"history"`
		Count   int                   `json:"count"`
	}
	resp, err := http.Get(srv.URL + "/api/v1/mutations/" + m.ID + "/history")
	if err != nil {
		t.Fatalf("GET history: %v", err)
	}
	decodeBody(t, resp, &listResp)
	if listResp.Count != 3 {
		t.Fatalf("count = %d, want 3", listResp.Count)
	}
	for i, action := range actions {
		if listResp.History[i].Action != action {
			t.Errorf("history[%d].Action = %q, want %q", i, listResp.History[i].Action, action)
		}
	}

	// limit/offset 分页
	resp, err = http.Get(srv.URL + "/api/v1/mutations/" + m.ID + "/history?limit=1&offset=1")
	if err != nil {
		t.Fatalf("GET paged history: %v", err)
	}
	decodeBody(t, resp, &listResp)
	if listResp.Count != 1 {
		t.Fatalf("paged count = %d, want 1", listResp.Count)
	}
	if listResp.History[0].Action != model.HistoryActionEvaluated {
		t.Errorf("paged action = %q, want evaluated", listResp.History[0].Action)
	}
}
