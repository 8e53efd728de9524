package models

import (
	"time"

	"github.com/timshannon/bolthold"
)

// Collection is the materialized result of a rule group: the target a
// matching item is added to, plus the action applied once its dwell time
// has elapsed.
type Collection struct {
	ID        uint64 `boltholdKey:"ID"`
	Title     string
	LibraryID string
	DataType  DataType
	ArrAction ArrAction
	// DeleteAfterDays gates the automation-server action. Zero means the
	// action fires on the first maintenance pass after an item matches.
	DeleteAfterDays int
	// Name of the automation server instance owning items of this
	// collection. Empty when no action should ever be applied.
	RadarrInstance string
	SonarrInstance string
	// Key of the mirrored collection on the library server, once created.
	PlexCollectionKey string
	IsActive          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CollectionMedia records membership of one library item in a collection
// and when it was added, which drives dwell-time computation.
type CollectionMedia struct {
	ID           uint64 `boltholdKey:"ID"`
	CollectionID uint64 `boltholdIndex:"CollectionID"`
	PlexID       string `boltholdIndex:"PlexID"`
	AddDate      time.Time
}

// CollectionLog is an audit entry for collection mutations.
type CollectionLog struct {
	ID           uint64 `boltholdKey:"ID"`
	CollectionID uint64 `boltholdIndex:"CollectionID"`
	Type         CollectionLogType
	Message      string
	CreatedAt    time.Time
}

// Collection operations

// CreateCollection creates a new collection
func (db *Database) CreateCollection(collection *Collection) error {
	collection.CreatedAt = time.Now()
	collection.UpdatedAt = time.Now()
	return db.store.Insert(bolthold.NextSequence(), collection)
}

// UpdateCollection updates an existing collection
func (db *Database) UpdateCollection(collection *Collection) error {
	collection.UpdatedAt = time.Now()
	return db.store.Update(collection.ID, collection)
}

// GetCollectionByID retrieves a collection by ID
func (db *Database) GetCollectionByID(id uint64) (*Collection, error) {
	var collection Collection
	err := db.store.Get(id, &collection)
	if err != nil {
		return nil, err
	}
	return &collection, nil
}

// GetActiveCollections retrieves all active collections
func (db *Database) GetActiveCollections() ([]*Collection, error) {
	var collections []*Collection
	err := db.store.Find(&collections, bolthold.Where("IsActive").Eq(true))
	return collections, err
}

// DeleteCollection deletes a collection with its media rows and logs
func (db *Database) DeleteCollection(id uint64) error {
	if err := db.store.DeleteMatching(&CollectionMedia{}, bolthold.Where("CollectionID").Eq(id)); err != nil {
		return err
	}
	if err := db.store.DeleteMatching(&CollectionLog{}, bolthold.Where("CollectionID").Eq(id)); err != nil {
		return err
	}
	return db.store.Delete(id, &Collection{})
}

// CollectionMedia operations

// AddCollectionMedia records an item as member of a collection
func (db *Database) AddCollectionMedia(media *CollectionMedia) error {
	return db.store.Insert(bolthold.NextSequence(), media)
}

// GetCollectionMedia retrieves the membership rows of a collection
func (db *Database) GetCollectionMedia(collectionID uint64) ([]*CollectionMedia, error) {
	var media []*CollectionMedia
	err := db.store.Find(&media, bolthold.Where("CollectionID").Eq(collectionID))
	return media, err
}

// GetCollectionMediaByItem retrieves one membership row, or nil if the item
// is not a member.
func (db *Database) GetCollectionMediaByItem(collectionID uint64, plexID string) (*CollectionMedia, error) {
	var media CollectionMedia
	err := db.store.FindOne(&media,
		bolthold.Where("CollectionID").Eq(collectionID).And("PlexID").Eq(plexID))
	if err == bolthold.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &media, nil
}

// RemoveCollectionMedia removes an item from a collection
func (db *Database) RemoveCollectionMedia(collectionID uint64, plexID string) error {
	return db.store.DeleteMatching(&CollectionMedia{},
		bolthold.Where("CollectionID").Eq(collectionID).And("PlexID").Eq(plexID))
}

// CollectionLog operations

// AddCollectionLog writes an audit entry for a collection
func (db *Database) AddCollectionLog(collectionID uint64, logType CollectionLogType, message string) error {
	return db.store.Insert(bolthold.NextSequence(), &CollectionLog{
		CollectionID: collectionID,
		Type:         logType,
		Message:      message,
		CreatedAt:    time.Now(),
	})
}

// GetCollectionLogs retrieves the audit entries of a collection
func (db *Database) GetCollectionLogs(collectionID uint64) ([]*CollectionLog, error) {
	var logs []*CollectionLog
	err := db.store.Find(&logs, bolthold.Where("CollectionID").Eq(collectionID).SortBy("ID"))
	return logs, err
}
