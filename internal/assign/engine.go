// Package assign implements the box-assignment decision: line items plus a
// reference snapshot in, total size and selected box out. The engine is a
// pure function of its inputs — identical items and snapshot always produce
// an identical result.
package assign

import (
	"fmt"

	"github.com/packhub/boxflow/internal/domain"
	"github.com/packhub/boxflow/internal/refcache"
)

// Result is the engine's output for one order.
type Result struct {
	TotalSize int
	// Box is the selected class with its original name.
	Box domain.BoxClass
	// BoxName is the label sent downstream; it differs from Box.Name only
	// when the single-unit class was translated to its canonical alias.
	BoxName string
	// StatusLabel is the composed fulfillment-status string. It always
	// embeds the original box class name.
	StatusLabel string
	// MissingSKUs lists line item SKUs with no product record; their size
	// was substituted with the configured default (soft failure).
	MissingSKUs []string
}

// Engine holds the assignment policy knobs.
type Engine struct {
	defaultUnitSize int
	singleBoxName   string
	singleBoxAlias  string
}

func NewEngine(defaultUnitSize int, singleBoxName, singleBoxAlias string) *Engine {
	return &Engine{
		defaultUnitSize: defaultUnitSize,
		singleBoxName:   singleBoxName,
		singleBoxAlias:  singleBoxAlias,
	}
}

// Assign computes the total order size and selects the smallest box class
// that fits, falling back to the globally largest — assignment never refuses
// for size. Unknown SKUs get the default unit size and are reported back as
// missing. The only hard failure is an empty reference snapshot.
func (e *Engine) Assign(items []domain.LineItem, snap *refcache.Snapshot) (*Result, error) {
	if snap.Empty() {
		return nil, domain.ErrReferenceEmpty
	}

	total := 0
	var missing []string
	for _, li := range items {
		size := e.defaultUnitSize
		if p, ok := snap.Products[li.SKU]; ok {
			size = p.UnitSize
		} else {
			missing = append(missing, li.SKU)
		}
		total += size * li.Quantity
	}

	box := selectBox(snap.BoxClasses, total)

	name := box.Name
	if name == e.singleBoxName {
		name = e.singleBoxAlias
	}

	return &Result{
		TotalSize:   total,
		Box:         box,
		BoxName:     name,
		StatusLabel: fmt.Sprintf("Boxed: %s (size %d)", box.Name, total),
		MissingSKUs: missing,
	}, nil
}

// selectBox picks the smallest class whose capacity covers total.
// classes are pre-sorted by ascending capacity (refcache invariant), so the
// first fit is the smallest and the last entry is the global largest.
func selectBox(classes []domain.BoxClass, total int) domain.BoxClass {
	for _, b := range classes {
		if b.MaxCapacity >= total {
			return b
		}
	}
	return classes[len(classes)-1]
}
