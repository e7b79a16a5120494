package campaign

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"genome-engine/internal/engine/controller"
	"genome-engine/internal/engine/evaluator"
	"genome-engine/internal/engine/generator"
	"genome-engine/internal/engine/history"
	"genome-engine/internal/shared/model"
	"genome-engine/internal/shared/storage/repository"
)

// newTestServer 构建真实 sqlite 存储上的处理器
//
// 管理器不启动消费循环：start 只入队，断言落库状态即可。
func newTestServer(t *testing.T) (*httptest.Server, *repository.Store) {
	t.Helper()
	store, err := repository.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	recorder := history.NewRecorder(store, nil, "engine")
	ctrl := controller.NewController(store, generator.NewScripted(), evaluator.NewMock(), recorder)
	manager := controller.NewManager(store, nil, ctrl, &controller.ManagerConfig{
		FallbackEvery:  time.Hour,
		StaleThreshold: time.Hour,
	})

	mux := http.NewServeMux()
	NewHandler(store, manager).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, store
}

func createGenome(t *testing.T, store *repository.Store) *model.Genome {
	t.Helper()
	g := &model.Genome{
		ID:     generateID("genome"),
		Name:   "campaign test genome",
		UserID: "user-1",
		Data:   json.RawMessage(`{"model": "base"}`),
		Status: model.GenomeStatusActive,
	}
	if err := store.CreateGenome(context.Background(), g); err != nil {
		t.Fatalf("CreateGenome: %v", err)
	}
	return g
}

func createCampaignRow(t *testing.T, store *repository.Store, genomeID string, status model.CampaignStatus) *model.Campaign {
	t.Helper()
	c := &model.Campaign{
		ID:            generateID("camp"),
		GenomeID:      genomeID,
		Name:          "seeded campaign",
		TargetMetric:  model.MetricLatencyMS,
		Configuration: model.DefaultConfiguration(),
		Status:        status,
	}
	if err := store.CreateCampaign(context.Background(), c); err != nil {
		t.Fatalf("CreateCampaign: %v", err)
	}
	return c
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// TestCreateCampaign 测试创建活动，默认配置
func TestCreateCampaign(t *testing.T) {
	srv, store := newTestServer(t)
	g := createGenome(t, store)

	body := `{"genome_id": "` + g.ID + `", "name": "reduce latency", "target_metric": "latency_ms"}`
	resp, err := http.Post(srv.URL+"/api/v1/campaigns", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST campaigns: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	var c model.Campaign
	decodeBody(t, resp, &c)
	if !strings.HasPrefix(c.ID, "camp-") {
		t.Errorf("ID = %q, want camp- prefix", c.ID)
	}
	if c.Status != model.CampaignStatusPending {
		t.Errorf("Status = %q, want pending", c.Status)
	}
	if c.Configuration.BatchSize != 5 {
		t.Errorf("BatchSize = %d, want default 5", c.Configuration.BatchSize)
	}
	if c.Configuration.CancellationMode != model.CancelDrain {
		t.Errorf("CancellationMode = %q, want drain", c.Configuration.CancellationMode)
	}
}

// TestCreateCampaign_CustomConfiguration 测试创建活动，整体替换配置
func TestCreateCampaign_CustomConfiguration(t *testing.T) {
	srv, store := newTestServer(t)
	g := createGenome(t, store)

	body := `{
		"genome_id": "` + g.ID + `",
		"name": "custom config",
		"target_metric": "cost_per_request",
		"configuration": {
			"batch_size": 2,
			"mutation_budget": 10,
			"max_concurrent_evaluations": 1,
			"safety_floor": 0.9,
			"min_improvement": 0.1,
			"weights": {"safety": 0.5, "confidence": 0.2, "improvement": 0.3},
			"cancellation_mode": "abandon"
		}
	}`
	resp, err := http.Post(srv.URL+"/api/v1/campaigns", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST campaigns: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	var c model.Campaign
	decodeBody(t, resp, &c)
	if c.Configuration.BatchSize != 2 {
		t.Errorf("BatchSize = %d, want 2", c.Configuration.BatchSize)
	}
	if c.Configuration.CancellationMode != model.CancelAbandon {
		t.Errorf("CancellationMode = %q, want abandon", c.Configuration.CancellationMode)
	}
}

// TestCreateCampaign_Validation 测试创建请求校验
func TestCreateCampaign_Validation(t *testing.T) {
	srv, store := newTestServer(t)
	g := createGenome(t, store)

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{
			name:     "无效 JSON",
			body:     `{invalid`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "缺少 genome_id",
			body:     `{"name": "c", "target_metric": "latency_ms"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "缺少名称",
			body:     `{"genome_id": "` + g.ID + `", "target_metric": "latency_ms"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "未知目标指标",
			body:     `{"genome_id": "` + g.ID + `", "name": "c", "target_metric": "throughput"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name: "权重和不为 1",
			body: `{"genome_id": "` + g.ID + `", "name": "c", "target_metric": "latency_ms",
				"configuration": {"batch_size": 5, "max_concurrent_evaluations": 4,
				"weights": {"safety": 0.5, "confidence": 0.5, "improvement": 0.5},
				"cancellation_mode": "drain"}}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "基因组不存在",
			body:     `{"genome_id": "genome-000000000000", "name": "c", "target_metric": "latency_ms"}`,
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/v1/campaigns", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("POST campaigns: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.wantCode {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantCode)
			}
		})
	}
}

// TestGetCampaign 测试获取活动详情与 404
func TestGetCampaign(t *testing.T) {
	srv, store := newTestServer(t)
	g := createGenome(t, store)
	c := createCampaignRow(t, store, g.ID, model.CampaignStatusPending)

	resp, err := http.Get(srv.URL + "/api/v1/campaigns/" + c.ID)
	if err != nil {
		t.Fatalf("GET campaign: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var got model.Campaign
	decodeBody(t, resp, &got)
	if got.ID != c.ID {
		t.Errorf("ID = %q, want %q", got.ID, c.ID)
	}

	resp, err = http.Get(srv.URL + "/api/v1/campaigns/camp-000000000000")
	if err != nil {
		t.Fatalf("GET missing campaign: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

// TestListCampaigns 测试列出活动，含状态筛选
func TestListCampaigns(t *testing.T) {
	srv, store := newTestServer(t)
	g := createGenome(t, store)
	createCampaignRow(t, store, g.ID, model.CampaignStatusPending)
	createCampaignRow(t, store, g.ID, model.CampaignStatusCompleted)

	var listResp struct {
		Campaigns []*model.Campaign `json:"campaigns"`
		Count     int               `json:"count"`
	}

	resp, err := http.Get(srv.URL + "/api/v1/campaigns")
	if err != nil {
		t.Fatalf("GET campaigns: %v", err)
	}
	decodeBody(t, resp, &listResp)
	if listResp.Count != 2 {
		t.Errorf("count = %d, want 2", listResp.Count)
	}

	resp, err = http.Get(srv.URL + "/api/v1/campaigns?status=completed")
	if err != nil {
		t.Fatalf("GET campaigns?status=completed: %v", err)
	}
	decodeBody(t, resp, &listResp)
	if listResp.Count != 1 {
		t.Errorf("completed count = %d, want 1", listResp.Count)
	}
}

// TestStartCampaign 测试启动活动执行
func TestStartCampaign(t *testing.T) {
	srv, store := newTestServer(t)
	g := createGenome(t, store)
	c := createCampaignRow(t, store, g.ID, model.CampaignStatusPending)

	resp, err := http.Post(srv.URL+"/api/v1/campaigns/"+c.ID+"/start", "application/json", nil)
	if err != nil {
		t.Fatalf("POST start: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusAccepted)
	}

	var run model.CampaignRun
	decodeBody(t, resp, &run)
	if !strings.HasPrefix(run.ID, "cr-") {
		t.Errorf("run ID = %q, want cr- prefix", run.ID)
	}
	if run.CampaignID != c.ID {
		t.Errorf("CampaignID = %q, want %q", run.CampaignID, c.ID)
	}
	if run.Status != model.RunStatusQueued {
		t.Errorf("Status = %q, want queued", run.Status)
	}
}

// TestStartCampaign_Conflicts 测试非 pending 活动启动与 404
func TestStartCampaign_Conflicts(t *testing.T) {
	srv, store := newTestServer(t)
	g := createGenome(t, store)
	c := createCampaignRow(t, store, g.ID, model.CampaignStatusPending)
	if err := store.UpdateCampaignStatus(context.Background(), c.ID, model.CampaignStatusRunning); err != nil {
		t.Fatalf("UpdateCampaignStatus: %v", err)
	}

	resp, err := http.Post(srv.URL+"/api/v1/campaigns/"+c.ID+"/start", "application/json", nil)
	if err != nil {
		t.Fatalf("POST start: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}

	resp, err = http.Post(srv.URL+"/api/v1/campaigns/camp-000000000000/start", "application/json", nil)
	if err != nil {
		t.Fatalf("POST start missing: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

// TestCancelCampaign 测试取消活动
func TestCancelCampaign(t *testing.T) {
	srv, store := newTestServer(t)
	g := createGenome(t, store)
	c := createCampaignRow(t, store, g.ID, model.CampaignStatusPending)

	resp, err := http.Post(srv.URL+"/api/v1/campaigns/"+c.ID+"/cancel", "application/json",
		strings.NewReader(`{"mode": "abandon"}`))
	if err != nil {
		t.Fatalf("POST cancel: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusAccepted)
	}
	var body map[string]string
	decodeBody(t, resp, &body)
	if body["status"] != "cancelling" {
		t.Errorf("status = %q, want cancelling", body["status"])
	}
	if body["mode"] != "abandon" {
		t.Errorf("mode = %q, want abandon", body["mode"])
	}

	got, err := store.GetCampaign(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("GetCampaign: %v", err)
	}
	if got.Status != model.CampaignStatusCancelled {
		t.Errorf("stored status = %q, want cancelled", got.Status)
	}

	// 已终态的活动再取消应冲突
	resp, err = http.Post(srv.URL+"/api/v1/campaigns/"+c.ID+"/cancel", "application/json", nil)
	if err != nil {
		t.Fatalf("POST cancel again: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}
}

// TestCancelCampaign_ModeHandling 测试取消模式解析
func TestCancelCampaign_ModeHandling(t *testing.T) {
	srv, store := newTestServer(t)
	g := createGenome(t, store)

	t.Run("默认 drain", func(t *testing.T) {
		c := createCampaignRow(t, store, g.ID, model.CampaignStatusPending)
		resp, err := http.Post(srv.URL+"/api/v1/campaigns/"+c.ID+"/cancel", "application/json", nil)
		if err != nil {
			t.Fatalf("POST cancel: %v", err)
		}
		var body map[string]string
		decodeBody(t, resp, &body)
		if body["mode"] != "drain" {
			t.Errorf("mode = %q, want drain", body["mode"])
		}
	})

	t.Run("查询参数", func(t *testing.T) {
		c := createCampaignRow(t, store, g.ID, model.CampaignStatusPending)
		resp, err := http.Post(srv.URL+"/api/v1/campaigns/"+c.ID+"/cancel?mode=abandon", "application/json", nil)
		if err != nil {
			t.Fatalf("POST cancel: %v", err)
		}
		var body map[string]string
		decodeBody(t, resp, &body)
		if body["mode"] != "abandon" {
			t.Errorf("mode = %q, want abandon", body["mode"])
		}
	})

	t.Run("非法模式", func(t *testing.T) {
		c := createCampaignRow(t, store, g.ID, model.CampaignStatusPending)
		resp, err := http.Post(srv.URL+"/api/v1/campaigns/"+c.ID+"/cancel?mode=pause", "application/json", nil)
		if err != nil {
			t.Fatalf("POST cancel: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
		}
	})

	t.Run("活动不存在", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/api/v1/campaigns/camp-000000000000/cancel", "application/json", nil)
		if err != nil {
			t.Fatalf("POST cancel: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
		}
	})
}

// TestListRuns 测试列出活动的执行记录
func TestListRuns(t *testing.T) {
	srv, store := newTestServer(t)
	g := createGenome(t, store)
	c := createCampaignRow(t, store, g.ID, model.CampaignStatusPending)

	for i := 0; i < 2; i++ {
		resp, err := http.Post(srv.URL+"/api/v1/campaigns/"+c.ID+"/start", "application/json", nil)
		if err != nil {
			t.Fatalf("POST start: %v", err)
		}
		resp.Body.Close()
	}

	var listResp struct {
		Runs  []*model.CampaignRun `json:"runs"`
		Count int                  `json:"count"`
	}
	resp, err := http.Get(srv.URL + "/api/v1/campaigns/" + c.ID + "/runs")
	if err != nil {
		t.Fatalf("GET runs: %v", err)
	}
	decodeBody(t, resp, &listResp)
	if listResp.Count != 2 {
		t.Errorf("count = %d, want 2", listResp.Count)
	}
	for _, run := range listResp.Runs {
		if run.CampaignID != c.ID {
			t.Errorf("CampaignID = %q, want %q", run.CampaignID, c.ID)
		}
	}
}

// TestListCampaignMutations 测试列出活动的变异
func TestListCampaignMutations(t *testing.T) {
	srv, store := newTestServer(t)
	g := createGenome(t, store)
	c := createCampaignRow(t, store, g.ID, model.CampaignStatusRunning)

	for i := 1; i <= 3; i++ {
		m := &model.Mutation{
			ID:           generateID("mut"),
			CampaignID:   c.ID,
			GenomeID:     g.ID,
			Sequence:     i,
			MutationType: "parameter_tweak",
			OriginalCode: "a",
			MutatedCode:  "b",
			Status:       model.MutationStatusProposed,
		}
		if err := store.CreateMutation(context.Background(), m); err != nil {
			t.Fatalf("CreateMutation: %v", err)
		}
	}

	var listResp struct {
		Mutations []*model.Mutation `json:"mutations"`
		Count     int               `json:"count"`
	}
	resp, err := http.Get(srv.URL + "/api/v1/campaigns/" + c.ID + "/mutations")
	if err != nil {
		t.Fatalf("GET mutations: %v", err)
	}
	decodeBody(t, resp, &listResp)
	if listResp.Count != 3 {
		t.Errorf("count = %d, want 3", listResp.Count)
	}
	for i, m := range listResp.Mutations {
		if m.Sequence != i+1 {
			t.Errorf("mutations[%d].Sequence = %d, want %d", i, m.Sequence, i+1)
		}
	}
}

// TestGenerateID 测试 ID 生成
func TestGenerateID(t *testing.T) {
	id := generateID("camp")
	if !strings.HasPrefix(id, "camp-") {
		t.Errorf("ID = %q, want camp- prefix", id)
	}
	if len(id) != len("camp-")+12 {
		t.Errorf("ID length = %d, want %d", len(id), len("camp-")+12)
	}
}
