package facts

import "context"

// Empty is the sentinel stored when a device fact cannot be obtained.
// Partial data is acceptable; a missing fact never aborts a collection pass.
const Empty = "Empty"

// DeviceData is a snapshot of the laptop's identity-independent facts.
type DeviceData struct {
	ActivityHistory string
	RAM             string
	ROM             string
	Kernel          string
	Architecture    string
	MAC             string
}

// JournalEntry holds the metadata of one datastore journal item. Every
// field is independently Empty when its metadata file is missing or blank.
type JournalEntry struct {
	Activity       string
	ActivityID     string
	Checksum       string
	CreationTime   string
	FileSize       string
	IconColor      string
	Keep           string
	LaunchTimes    string
	MimeType       string
	Mountpoint     string
	Mtime          string
	ShareScope     string
	SpentTimes     string
	Timestamp      string
	Title          string
	TitleSetByUser string
	UID            string
}

// Provider supplies device facts to the collector. Implementations have no
// side effects on the agent's own state.
type Provider interface {
	Snapshot(ctx context.Context) *DeviceData
	Journal(ctx context.Context) []JournalEntry
}
