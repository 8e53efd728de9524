package models

// DataType identifies the kind of library item a rule group targets.
type DataType int

const (
	DataTypeMovie   DataType = 1
	DataTypeShow    DataType = 2
	DataTypeSeason  DataType = 3
	DataTypeEpisode DataType = 4
)

// DataTypeFromMediaKind maps a Plex metadata type string to a DataType.
// Returns 0 for unknown kinds.
func DataTypeFromMediaKind(kind string) DataType {
	switch kind {
	case "movie":
		return DataTypeMovie
	case "show":
		return DataTypeShow
	case "season":
		return DataTypeSeason
	case "episode":
		return DataTypeEpisode
	}
	return 0
}

// ArrAction is the action applied on the automation server once an item's
// dwell time in a collection has elapsed.
type ArrAction int

const (
	// ActionDelete removes the item and its files from the automation server.
	ActionDelete ArrAction = 0
	// ActionUnmonitor stops monitoring and deletes existing files.
	ActionUnmonitor ArrAction = 1
	// ActionUnmonitorKeepFiles stops monitoring but keeps files on disk.
	ActionUnmonitorKeepFiles ArrAction = 2
)

// CollectionLogType categorizes collection log entries.
type CollectionLogType int

const (
	LogTypeCollection CollectionLogType = 0
	LogTypeMedia      CollectionLogType = 1
	LogTypeExclusion  CollectionLogType = 2
)
