package models

import (
	"time"

	"github.com/timshannon/bolthold"
)

// RuleGroup is a named, schedulable set of rules targeting one library and
// data type, materializing into one collection.
type RuleGroup struct {
	ID           uint64 `boltholdKey:"ID"`
	Name         string
	Description  string
	LibraryID    string `boltholdIndex:"LibraryID"`
	DataType     DataType
	CollectionID uint64 `boltholdIndex:"CollectionID"`
	IsActive     bool
	// UseRules false turns the group into a manual collection: every
	// non-excluded item in the target library matches unconditionally.
	UseRules  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RuleRecord is one persisted rule. The predicate itself is stored as an
// opaque JSON document plus its section index, and rehydrated at
// evaluation time.
type RuleRecord struct {
	ID          uint64 `boltholdKey:"ID"`
	RuleGroupID uint64 `boltholdIndex:"RuleGroupID"`
	Section     int
	RuleJSON    string
	CreatedAt   time.Time
}

// RuleGroup operations

// CreateRuleGroup creates a new rule group
func (db *Database) CreateRuleGroup(group *RuleGroup) error {
	group.CreatedAt = time.Now()
	group.UpdatedAt = time.Now()
	return db.store.Insert(bolthold.NextSequence(), group)
}

// UpdateRuleGroup updates an existing rule group
func (db *Database) UpdateRuleGroup(group *RuleGroup) error {
	group.UpdatedAt = time.Now()
	return db.store.Update(group.ID, group)
}

// GetRuleGroupByID retrieves a rule group by ID
func (db *Database) GetRuleGroupByID(id uint64) (*RuleGroup, error) {
	var group RuleGroup
	err := db.store.Get(id, &group)
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// GetRuleGroupByCollectionID retrieves the rule group owning a collection
func (db *Database) GetRuleGroupByCollectionID(collectionID uint64) (*RuleGroup, error) {
	var group RuleGroup
	err := db.store.FindOne(&group, bolthold.Where("CollectionID").Eq(collectionID))
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// GetActiveRuleGroups retrieves all active rule groups
func (db *Database) GetActiveRuleGroups() ([]*RuleGroup, error) {
	var groups []*RuleGroup
	err := db.store.Find(&groups, bolthold.Where("IsActive").Eq(true))
	return groups, err
}

// GetAllRuleGroups retrieves all rule groups
func (db *Database) GetAllRuleGroups() ([]*RuleGroup, error) {
	var groups []*RuleGroup
	err := db.store.Find(&groups, nil)
	return groups, err
}

// DeleteRuleGroup deletes a rule group, its rules and its scoped exclusions.
// Global exclusions are never touched.
func (db *Database) DeleteRuleGroup(id uint64) error {
	if err := db.store.DeleteMatching(&RuleRecord{}, bolthold.Where("RuleGroupID").Eq(id)); err != nil {
		return err
	}
	if err := db.store.DeleteMatching(&Exclusion{}, bolthold.Where("RuleGroupID").Eq(id)); err != nil {
		return err
	}
	return db.store.Delete(id, &RuleGroup{})
}

// Rule operations

// CreateRule creates a new persisted rule
func (db *Database) CreateRule(rule *RuleRecord) error {
	rule.CreatedAt = time.Now()
	return db.store.Insert(bolthold.NextSequence(), rule)
}

// GetRulesByGroupID retrieves all rules of a group, ordered by insertion
func (db *Database) GetRulesByGroupID(groupID uint64) ([]*RuleRecord, error) {
	var rules []*RuleRecord
	err := db.store.Find(&rules, bolthold.Where("RuleGroupID").Eq(groupID).SortBy("ID"))
	return rules, err
}

// DeleteRulesByGroupID deletes all rules of a group
func (db *Database) DeleteRulesByGroupID(groupID uint64) error {
	return db.store.DeleteMatching(&RuleRecord{}, bolthold.Where("RuleGroupID").Eq(groupID))
}
