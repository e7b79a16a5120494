package genome

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

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

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// TestCreateGenome 测试创建基因组
func TestCreateGenome(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{"name": "checkout service", "user_id": "user-1", "data": {"model": "base", "params": {"replicas": 3}}}`
	resp, err := http.Post(srv.URL+"/api/v1/genomes", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST genomes: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	var g model.Genome
	decodeBody(t, resp, &g)

	if !strings.HasPrefix(g.ID, "genome-") {
		t.Errorf("ID = %q, want genome- prefix", g.ID)
	}
	if g.Name != "checkout service" {
		t.Errorf("Name = %q, want checkout service", g.Name)
	}
	if g.Status != model.GenomeStatusDraft {
		t.Errorf("Status = %q, want draft", g.Status)
	}
	if g.Version != 1 {
		t.Errorf("Version = %d, want 1", g.Version)
	}
	if g.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

// TestCreateGenome_Validation 测试创建请求校验
func TestCreateGenome_Validation(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name      string
		body      string
		wantCode  int
		wantError string
	}{
		{
			name:      "无效 JSON",
			body:      `{invalid`,
			wantCode:  http.StatusBadRequest,
			wantError: "invalid request body",
		},
		{
			name:      "缺少名称",
			body:      `{"data": {"model": "base"}}`,
			wantCode:  http.StatusBadRequest,
			wantError: "name is required",
		},
		{
			name:      "缺少 data",
			body:      `{"name": "g"}`,
			wantCode:  http.StatusBadRequest,
			wantError: "data must be a JSON payload",
		},
		{
			name:      "非法状态",
			body:      `{"name": "g", "data": {}, "status": "archived"}`,
			wantCode:  http.StatusBadRequest,
			wantError: "status must be draft or active",
		},
		{
			name:     "显式 active 状态",
			body:     `{"name": "g", "data": {}, "status": "active"}`,
			wantCode: http.StatusCreated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/v1/genomes", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("POST genomes: %v", err)
			}
			if resp.StatusCode != tt.wantCode {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantCode)
			}
			if tt.wantError != "" {
				var errResp map[string]string
				decodeBody(t, resp, &errResp)
				if errResp["error"] != tt.wantError {
					t.Errorf("error = %q, want %q", errResp["error"], tt.wantError)
				}
			} else {
				resp.Body.Close()
			}
		})
	}
}

// TestGetGenome 测试获取基因组详情
func TestGetGenome(t *testing.T) {
	srv, store := newTestServer(t)

	g := &model.Genome{
		ID:     generateID("genome"),
		Name:   "lookup target",
		UserID: "user-1",
		Data:   json.RawMessage(`{"model": "base"}`),
		Status: model.GenomeStatusActive,
	}
	if err := store.CreateGenome(context.Background(), g); err != nil {
		t.Fatalf("CreateGenome: %v", err)
	}

	resp, err := http.Get(srv.URL + "/api/v1/genomes/" + g.ID)
	if err != nil {
		t.Fatalf("GET genome: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var got model.Genome
	decodeBody(t, resp, &got)
	if got.ID != g.ID {
		t.Errorf("ID = %q, want %q", got.ID, g.ID)
	}
	if got.Status != model.GenomeStatusActive {
		t.Errorf("Status = %q, want active", got.Status)
	}
}

// TestGetGenome_NotFound 测试获取不存在的基因组
func TestGetGenome_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/genomes/genome-000000000000")
	if err != nil {
		t.Fatalf("GET genome: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

// TestListGenomes 测试列出基因组，含状态筛选与分页
func TestListGenomes(t *testing.T) {
	srv, store := newTestServer(t)

	for i := 0; i < 3; i++ {
		status := model.GenomeStatusActive
		if i == 2 {
			status = model.GenomeStatusDraft
		}
		g := &model.Genome{
			ID:     generateID("genome"),
			Name:   fmt.Sprintf("genome %d", i),
			UserID: "user-1",
			Data:   json.RawMessage(`{}`),
			Status: status,
		}
		if err := store.CreateGenome(context.Background(), g); err != nil {
			t.Fatalf("CreateGenome: %v", err)
		}
	}

	var listResp struct {
		Genomes []*model.Genome `json:"genomes"`
		Count   int             `json:"count"`
	}

	resp, err := http.Get(srv.URL + "/api/v1/genomes")
	if err != nil {
		t.Fatalf("GET genomes: %v", err)
	}
	decodeBody(t, resp, &listResp)
	if listResp.Count != 3 {
		t.Errorf("count = %d, want 3", listResp.Count)
	}

	resp, err = http.Get(srv.URL + "/api/v1/genomes?status=active")
	if err != nil {
		t.Fatalf("GET genomes?status=active: %v", err)
	}
	decodeBody(t, resp, &listResp)
	if listResp.Count != 2 {
		t.Errorf("active count = %d, want 2", listResp.Count)
	}
	for _, g := range listResp.Genomes {
		if g.Status != model.GenomeStatusActive {
			t.Errorf("status = %q, want active", g.Status)
		}
	}

	resp, err = http.Get(srv.URL + "/api/v1/genomes?limit=2")
	if err != nil {
		t.Fatalf("GET genomes?limit=2: %v", err)
	}
	decodeBody(t, resp, &listResp)
	if listResp.Count != 2 {
		t.Errorf("limited count = %d, want 2", listResp.Count)
	}
}

// TestArchiveGenome 测试归档基因组
func TestArchiveGenome(t *testing.T) {
	srv, store := newTestServer(t)

	g := &model.Genome{
		ID:     generateID("genome"),
		Name:   "to archive",
		UserID: "user-1",
		Data:   json.RawMessage(`{}`),
		Status: model.GenomeStatusActive,
	}
	if err := store.CreateGenome(context.Background(), g); err != nil {
		t.Fatalf("CreateGenome: %v", err)
	}

	resp, err := http.Post(srv.URL+"/api/v1/genomes/"+g.ID+"/archive", "application/json", nil)
	if err != nil {
		t.Fatalf("POST archive: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var body map[string]string
	decodeBody(t, resp, &body)
	if body["status"] != "archived" {
		t.Errorf("status = %q, want archived", body["status"])
	}

	got, err := store.GetGenome(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("GetGenome: %v", err)
	}
	if got.Status != model.GenomeStatusArchived {
		t.Errorf("stored status = %q, want archived", got.Status)
	}
}

// TestArchiveGenome_NotFound 测试归档不存在的基因组
func TestArchiveGenome_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/genomes/genome-000000000000/archive", "application/json", nil)
	if err != nil {
		t.Fatalf("POST archive: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

// TestGenerateID 测试 ID 生成
func TestGenerateID(t *testing.T) {
	id := generateID("genome")
	if !strings.HasPrefix(id, "genome-") {
		t.Errorf("ID = %q, want genome- prefix", id)
	}
	if len(id) != len("genome-")+12 {
		t.Errorf("ID length = %d, want %d", len(id), len("genome-")+12)
	}

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := generateID("genome")
		if seen[id] {
			t.Fatalf("duplicate ID generated: %s", id)
		}
		seen[id] = true
	}
}
