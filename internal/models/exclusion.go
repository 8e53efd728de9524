package models

import (
	"time"

	"github.com/timshannon/bolthold"
)

// GlobalExclusion marks an exclusion that applies to every rule group.
const GlobalExclusion uint64 = 0

// Exclusion is a standing instruction to skip a library item during
// evaluation. RuleGroupID 0 denotes a global exclusion. Parent records the
// top-level ancestor id written during fan-out, so descendant items can be
// matched back to the exclusion that created them.
type Exclusion struct {
	ID          uint64 `boltholdKey:"ID"`
	PlexID      string `boltholdIndex:"PlexID"`
	RuleGroupID uint64 `boltholdIndex:"RuleGroupID"`
	Parent      string
	MediaKind   DataType
	CreatedAt   time.Time
}

// IsGlobal reports whether the exclusion applies across all rule groups
func (e *Exclusion) IsGlobal() bool {
	return e.RuleGroupID == GlobalExclusion
}

// CreateExclusion creates a new exclusion row
func (db *Database) CreateExclusion(exclusion *Exclusion) error {
	exclusion.CreatedAt = time.Now()
	return db.store.Insert(bolthold.NextSequence(), exclusion)
}

// UpdateExclusion updates an existing exclusion row
func (db *Database) UpdateExclusion(exclusion *Exclusion) error {
	return db.store.Update(exclusion.ID, exclusion)
}

// GetExclusionByID retrieves an exclusion by ID
func (db *Database) GetExclusionByID(id uint64) (*Exclusion, error) {
	var exclusion Exclusion
	err := db.store.Get(id, &exclusion)
	if err != nil {
		return nil, err
	}
	return &exclusion, nil
}

// GetExclusionsForGroup retrieves the exclusions that apply to a rule group:
// the group-scoped ones unioned with the global ones.
func (db *Database) GetExclusionsForGroup(ruleGroupID uint64) ([]*Exclusion, error) {
	var exclusions []*Exclusion
	err := db.store.Find(&exclusions,
		bolthold.Where("RuleGroupID").Eq(ruleGroupID).
			Or(bolthold.Where("RuleGroupID").Eq(GlobalExclusion)))
	return exclusions, err
}

// GetExclusionsByItem retrieves exclusions written for an item, directly or
// through an ancestor fan-out.
func (db *Database) GetExclusionsByItem(plexID string) ([]*Exclusion, error) {
	var exclusions []*Exclusion
	err := db.store.Find(&exclusions,
		bolthold.Where("PlexID").Eq(plexID).
			Or(bolthold.Where("Parent").Eq(plexID)))
	return exclusions, err
}

// GetAllExclusions retrieves every exclusion row
func (db *Database) GetAllExclusions() ([]*Exclusion, error) {
	var exclusions []*Exclusion
	err := db.store.Find(&exclusions, nil)
	return exclusions, err
}

// DeleteExclusion deletes an exclusion by ID
func (db *Database) DeleteExclusion(id uint64) error {
	return db.store.Delete(id, &Exclusion{})
}

// DeleteExclusionsByItem deletes the exclusions written for an item within
// one scope. Rows fanned out from the item as parent are removed too, but
// rows belonging to other scopes are left alone.
func (db *Database) DeleteExclusionsByItem(plexID string, ruleGroupID uint64) error {
	return db.store.DeleteMatching(&Exclusion{},
		bolthold.Where("PlexID").Eq(plexID).And("RuleGroupID").Eq(ruleGroupID).
			Or(bolthold.Where("Parent").Eq(plexID).And("RuleGroupID").Eq(ruleGroupID)))
}

// DeleteAllExclusionsByItem deletes every exclusion row written for an item
// regardless of scope, including fan-out rows carrying it as parent.
func (db *Database) DeleteAllExclusionsByItem(plexID string) error {
	return db.store.DeleteMatching(&Exclusion{},
		bolthold.Where("PlexID").Eq(plexID).
			Or(bolthold.Where("Parent").Eq(plexID)))
}
