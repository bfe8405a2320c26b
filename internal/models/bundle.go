package models

import "time"

// ExportFormatVersion is bumped when the bundle shape changes incompatibly.
const ExportFormatVersion = 1

// ExportMeta describes who produced a bundle and when.
type ExportMeta struct {
	ExportedAt    time.Time `json:"exportedAt"`
	ExportedBy    string    `json:"exportedBy"`
	CoupleID      string    `json:"coupleId"`
	FormatVersion int       `json:"formatVersion"`

	// Encrypted records whether the serialized bundle was subsequently
	// wrapped in a password-derived envelope.
	Encrypted bool `json:"encrypted"`
}

// ExportStats are derived counts computed at export time so an importer can
// sanity-check the payload without walking it.
type ExportStats struct {
	EntryCount   int        `json:"entryCount"`
	PlanCount    int        `json:"planCount"`
	MemoryCount  int        `json:"memoryCount"`
	FirstEntryAt *time.Time `json:"firstEntryAt,omitempty"`
	LastEntryAt  *time.Time `json:"lastEntryAt,omitempty"`
	DaysTogether int        `json:"daysTogether"`
}

// ExportBundle is a portable snapshot of a relationship's data. Diary
// content inside a bundle is always readable plaintext; confidentiality for
// a bundle as a whole comes from encrypting the entire serialized form.
type ExportBundle struct {
	Meta     ExportMeta   `json:"meta"`
	User     *Profile     `json:"user,omitempty"`
	Partner  *Profile     `json:"partner,omitempty"`
	Entries  []DiaryEntry `json:"entries"`
	Plans    []DatePlan   `json:"plans"`
	Memories []Memory     `json:"memories"`
	Stats    ExportStats  `json:"stats"`
}

// ExportResult pairs the final serialized bytes (plain JSON or envelope
// JSON) with the checksum computed over exactly those bytes.
type ExportResult struct {
	Data     []byte `json:"data"`
	Checksum string `json:"checksum"`

	// Filename is the suggested download name.
	Filename string `json:"filename"`

	Encrypted bool `json:"encrypted"`
}
