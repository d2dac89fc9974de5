package rules

import (
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/google/uuid"
)

// AssignIDs gives every group and filter in g that lacks an ID a fresh one.
// Existing IDs are kept.
func AssignIDs(g *model.GroupFilter) {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	for i := range g.Filters {
		if g.Filters[i].ID == "" {
			g.Filters[i].ID = uuid.NewString()
		}
	}
	for i := range g.Groups {
		AssignIDs(&g.Groups[i])
	}
}
