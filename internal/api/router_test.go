package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/packhub/boxflow/internal/api"
	"github.com/packhub/boxflow/internal/assign"
	"github.com/packhub/boxflow/internal/dispatcher"
	"github.com/packhub/boxflow/internal/domain"
	"github.com/packhub/boxflow/internal/notify"
	"github.com/packhub/boxflow/internal/refcache"
	"github.com/packhub/boxflow/internal/repository"
)

type okClient struct{}

func (okClient) AssignBox(context.Context, string, string, string) error { return nil }

func newTestServer(t *testing.T, repo *repository.MockQueueRepository) *httptest.Server {
	t.Helper()

	refRepo := repository.NewMockReferenceRepository(
		[]domain.Product{{SKU: "VASE", UnitSize: 7}},
		[]domain.BoxClass{{Name: "Medium", MaxCapacity: 10}},
	)
	cache := refcache.New(refRepo, time.Hour, zap.NewNop())
	if err := cache.Load(context.Background()); err != nil {
		t.Fatalf("load cache: %v", err)
	}

	d := dispatcher.New(
		repo, repository.NewMockAuditRepository(), cache,
		assign.NewEngine(1, "Single", "Parcel"),
		okClient{}, make(chan notify.FailureEvent, 1),
		5, 3, 0, 0, zap.NewNop(), dispatcher.Hooks{},
	)

	router := api.NewRouter(repo, d, prometheus.NewRegistry(), zap.NewNop(), nil)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

const validBody = `{"event": {"order_id": "gid-1", "order_number": "#1", "line_items": [{"sku": "VASE", "quantity": 1}]}}`

func TestIngest_PersistsAndAcknowledges(t *testing.T) {
	repo := repository.NewMockQueueRepository()
	srv := newTestServer(t, repo)

	resp, err := http.Post(srv.URL+"/webhooks/order-allocated", "application/json", strings.NewReader(validBody))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var ack map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	item, err := repo.GetByID(context.Background(), ack["id"])
	if err != nil {
		t.Fatalf("expected the item persisted, got %v", err)
	}
	if item.Status != domain.StatusPending || item.Attempts != 0 {
		t.Fatalf("expected a fresh pending item, got %+v", item)
	}
	if item.OrderNumber != "#1" {
		t.Fatalf("expected denormalized order number, got %q", item.OrderNumber)
	}
}

func TestIngest_UnrecognizedShapeStillAccepted(t *testing.T) {
	repo := repository.NewMockQueueRepository()
	srv := newTestServer(t, repo)

	resp, err := http.Post(srv.URL+"/webhooks/order-allocated", "application/json", strings.NewReader(`{"whatever": 1}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("shape validation is deferred to dispatch: expected 200, got %d", resp.StatusCode)
	}
}

func TestIngest_PersistenceFailureReturns500(t *testing.T) {
	repo := repository.NewMockQueueRepository()
	repo.CreateErr = context.DeadlineExceeded
	srv := newTestServer(t, repo)

	resp, err := http.Post(srv.URL+"/webhooks/order-allocated", "application/json", strings.NewReader(validBody))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("a failed durable write must surface as 500 for redelivery, got %d", resp.StatusCode)
	}
}

func TestIngest_WrongMethodReturns405(t *testing.T) {
	srv := newTestServer(t, repository.NewMockQueueRepository())

	resp, err := http.Get(srv.URL + "/webhooks/order-allocated")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}

func TestIngest_NonJSONBodyRejected(t *testing.T) {
	srv := newTestServer(t, repository.NewMockQueueRepository())

	resp, err := http.Post(srv.URL+"/webhooks/order-allocated", "application/json", strings.NewReader("not json"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestDispatchRun_ProcessesReadyItems(t *testing.T) {
	repo := repository.NewMockQueueRepository()
	srv := newTestServer(t, repo)

	item := domain.NewQueueItem(json.RawMessage(validBody), time.Now().UTC())
	repo.Create(context.Background(), item)

	resp, err := http.Post(srv.URL+"/api/v1/dispatch/run", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	var out map[string]int
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["processed"] != 1 {
		t.Fatalf("expected 1 processed, got %d", out["processed"])
	}

	got, _ := repo.GetByID(context.Background(), item.ID)
	if got.Status != domain.StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
}

func TestQueue_GetByID(t *testing.T) {
	repo := repository.NewMockQueueRepository()
	srv := newTestServer(t, repo)

	item := domain.NewQueueItem(json.RawMessage(validBody), time.Now().UTC())
	repo.Create(context.Background(), item)

	resp, err := http.Get(srv.URL + "/api/v1/queue/" + item.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var got domain.QueueItem
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != item.ID {
		t.Fatalf("expected item %s, got %s", item.ID, got.ID)
	}
}

func TestQueue_GetByID_NotFound(t *testing.T) {
	srv := newTestServer(t, repository.NewMockQueueRepository())

	resp, err := http.Get(srv.URL + "/api/v1/queue/nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestQueue_List_InvalidStatusRejected(t *testing.T) {
	srv := newTestServer(t, repository.NewMockQueueRepository())

	resp, err := http.Get(srv.URL + "/api/v1/queue?status=bogus")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestQueue_Stats(t *testing.T) {
	repo := repository.NewMockQueueRepository()
	srv := newTestServer(t, repo)

	repo.Create(context.Background(), domain.NewQueueItem(json.RawMessage(validBody), time.Now().UTC()))

	resp, err := http.Get(srv.URL + "/api/v1/queue/stats")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var counts map[string]int
	if err := json.NewDecoder(resp.Body).Decode(&counts); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if counts["pending"] != 1 {
		t.Fatalf("expected 1 pending, got %v", counts)
	}
}
