package assign_test

import (
	"errors"
	"testing"
	"time"

	"github.com/packhub/boxflow/internal/assign"
	"github.com/packhub/boxflow/internal/domain"
	"github.com/packhub/boxflow/internal/refcache"
)

func snapshot(products []domain.Product, classes []domain.BoxClass) *refcache.Snapshot {
	bySKU := make(map[string]domain.Product, len(products))
	for _, p := range products {
		bySKU[p.SKU] = p
	}
	return &refcache.Snapshot{Products: bySKU, BoxClasses: classes, FetchedAt: time.Now().UTC()}
}

func testSnapshot() *refcache.Snapshot {
	return snapshot(
		[]domain.Product{
			{SKU: "MUG", UnitSize: 2},
			{SKU: "POSTER", UnitSize: 1},
			{SKU: "VASE", UnitSize: 7},
		},
		[]domain.BoxClass{
			{Name: "Small", MaxCapacity: 5},
			{Name: "Medium", MaxCapacity: 10},
			{Name: "Large", MaxCapacity: 20},
		},
	)
}

func newEngine() *assign.Engine {
	return assign.NewEngine(1, "Single", "Parcel")
}

func TestAssign_SmallestFittingBox(t *testing.T) {
	// Capacities [5, 10, 20] and total size 7 must select capacity 10.
	res, err := newEngine().Assign([]domain.LineItem{{SKU: "VASE", Quantity: 1}}, testSnapshot())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TotalSize != 7 {
		t.Fatalf("expected total size 7, got %d", res.TotalSize)
	}
	if res.Box.MaxCapacity != 10 || res.Box.Name != "Medium" {
		t.Fatalf("expected the Medium (10) box, got %+v", res.Box)
	}
}

func TestAssign_FallsBackToLargestBox(t *testing.T) {
	// Total 14 mugs * 2 = 28 exceeds every capacity; assignment never refuses.
	res, err := newEngine().Assign([]domain.LineItem{{SKU: "MUG", Quantity: 14}}, testSnapshot())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Box.Name != "Large" {
		t.Fatalf("expected fallback to the largest box, got %+v", res.Box)
	}
}

func TestAssign_UnknownSKUUsesDefaultSize(t *testing.T) {
	res, err := newEngine().Assign([]domain.LineItem{{SKU: "X", Quantity: 3}}, testSnapshot())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TotalSize != 3 {
		t.Fatalf("expected total size 3 (default unit size 1), got %d", res.TotalSize)
	}
	if len(res.MissingSKUs) != 1 || res.MissingSKUs[0] != "X" {
		t.Fatalf("expected missing SKU list [X], got %v", res.MissingSKUs)
	}
}

func TestAssign_EmptyReferenceIsHardFailure(t *testing.T) {
	e := newEngine()
	items := []domain.LineItem{{SKU: "MUG", Quantity: 1}}

	noProducts := snapshot(nil, []domain.BoxClass{{Name: "Small", MaxCapacity: 5}})
	if _, err := e.Assign(items, noProducts); !errors.Is(err, domain.ErrReferenceEmpty) {
		t.Fatalf("expected ErrReferenceEmpty with no products, got %v", err)
	}

	noClasses := snapshot([]domain.Product{{SKU: "MUG", UnitSize: 2}}, nil)
	if _, err := e.Assign(items, noClasses); !errors.Is(err, domain.ErrReferenceEmpty) {
		t.Fatalf("expected ErrReferenceEmpty with no box classes, got %v", err)
	}
}

func TestAssign_SingleBoxTranslation(t *testing.T) {
	snap := snapshot(
		[]domain.Product{{SKU: "POSTER", UnitSize: 1}},
		[]domain.BoxClass{
			{Name: "Single", MaxCapacity: 1},
			{Name: "Large", MaxCapacity: 20},
		},
	)

	res, err := newEngine().Assign([]domain.LineItem{{SKU: "POSTER", Quantity: 1}}, snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.BoxName != "Parcel" {
		t.Fatalf("expected downstream name Parcel, got %q", res.BoxName)
	}
	if res.StatusLabel != "Boxed: Single (size 1)" {
		t.Fatalf("status label must keep the original name, got %q", res.StatusLabel)
	}
}

func TestAssign_SelectionIsMonotonic(t *testing.T) {
	// Increasing any quantity never decreases the selected box's capacity.
	e := newEngine()
	snap := testSnapshot()
	prev := 0
	for qty := 1; qty <= 12; qty++ {
		res, err := e.Assign([]domain.LineItem{{SKU: "MUG", Quantity: qty}}, snap)
		if err != nil {
			t.Fatalf("qty %d: unexpected error: %v", qty, err)
		}
		if res.Box.MaxCapacity < prev {
			t.Fatalf("qty %d: capacity decreased from %d to %d", qty, prev, res.Box.MaxCapacity)
		}
		prev = res.Box.MaxCapacity
	}
}

func TestAssign_Deterministic(t *testing.T) {
	e := newEngine()
	snap := testSnapshot()
	items := []domain.LineItem{{SKU: "MUG", Quantity: 2}, {SKU: "X", Quantity: 1}}

	first, err := e.Assign(items, snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := e.Assign(items, snap)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if again.TotalSize != first.TotalSize || again.Box != first.Box || again.StatusLabel != first.StatusLabel {
			t.Fatal("identical inputs and snapshot must produce identical output")
		}
	}
}
