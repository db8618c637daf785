package schedule

import (
	"fmt"
	"sort"

	"github.com/ChuLiYu/plantrack/pkg/types"
)

// Catalog is the fixed set of known machines.
type Catalog struct {
	byID map[types.MachineID]types.Machine
	ids  []types.MachineID
}

// DefaultMachines is the shop floor the plan workbook describes.
var DefaultMachines = []types.Machine{
	{ID: 1, Tonnage: 320, Sheet: "MAKİNE 1"},
	{ID: 2, Tonnage: 120, Sheet: "MAKİNE 2"},
	{ID: 3, Tonnage: 150, Sheet: "MAKİNE 3"},
	{ID: 4, Tonnage: 130, Sheet: "MAKİNE 4"},
	{ID: 5, Tonnage: 130, Sheet: "MAKİNE 5"},
	{ID: 6, Tonnage: 150, Sheet: "MAKİNE 6"},
}

// NewCatalog builds a catalog. Duplicate ids are rejected.
func NewCatalog(machines []types.Machine) (*Catalog, error) {
	c := &Catalog{byID: make(map[types.MachineID]types.Machine, len(machines))}
	for _, m := range machines {
		if _, exists := c.byID[m.ID]; exists {
			return nil, fmt.Errorf("duplicate machine id %d", m.ID)
		}
		if m.Sheet == "" {
			m.Sheet = fmt.Sprintf("MAKİNE %d", m.ID)
		}
		c.byID[m.ID] = m
		c.ids = append(c.ids, m.ID)
	}
	sort.Slice(c.ids, func(i, j int) bool { return c.ids[i] < c.ids[j] })
	return c, nil
}

// DefaultCatalog returns the catalog for DefaultMachines.
func DefaultCatalog() *Catalog {
	c, _ := NewCatalog(DefaultMachines)
	return c
}

func (c *Catalog) Known(id types.MachineID) bool {
	_, ok := c.byID[id]
	return ok
}

func (c *Catalog) Tonnage(id types.MachineID) (int, bool) {
	m, ok := c.byID[id]
	return m.Tonnage, ok
}

// IDs returns the known ids in ascending order.
func (c *Catalog) IDs() []types.MachineID {
	out := make([]types.MachineID, len(c.ids))
	copy(out, c.ids)
	return out
}

// Machines returns the known machines in ascending id order.
func (c *Catalog) Machines() []types.Machine {
	out := make([]types.Machine, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, c.byID[id])
	}
	return out
}
