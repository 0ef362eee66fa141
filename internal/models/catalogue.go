package models

import (
	"slices"
	"strings"
)

// Case answers. The option lists mirror the archive form; everything else the form could hold is invalid.
const (
	RoomEdgar   = "101"
	RoomSusanna = "102"
	RoomSmith   = "104"

	IdentityEdgar     = "edgar"
	IdentitySusanna   = "susanna"
	IdentityFakeSmith = "fake_smith"
	IdentityRealSmith = "real_smith"

	MethodUmbrella          = "umbrella"
	MethodCarried           = "carried"
	MethodMaintenanceWindow = "maintenance_window"

	Window2200 = "2200_2230"
	Window2300 = "2300_2315"
	Window2345 = "2345_0000"
	Window0000 = "0000_0030"

	SuspectEdgar   = "guest_101"
	SuspectSusanna = "guest_102"
	SuspectDean    = "dean"
	SuspectArthur  = "arthur"
)

var fieldOptions = map[Field][]string{
	FieldVictimRoom:       {RoomEdgar, RoomSusanna, RoomSmith},
	FieldVictimIdentity:   {IdentityEdgar, IdentitySusanna, IdentityFakeSmith, IdentityRealSmith},
	FieldMethodClue:       {MethodUmbrella, MethodCarried, MethodMaintenanceWindow},
	FieldMurderTimeWindow: {Window2200, Window2300, Window2345, Window0000},
	FieldAccusedSuspect:   {SuspectEdgar, SuspectSusanna, SuspectDean, SuspectArthur},
}

// Options returns the selectable values of f, nil for unknown fields.
func Options(f Field) []string {
	return slices.Clone(fieldOptions[f])
}

// ValidOption reports whether value may be stored in f. The empty value clears a field and is always valid.
func ValidOption(f Field, value string) bool {
	options, ok := fieldOptions[f]
	if !ok {
		return false
	}
	return value == "" || slices.Contains(options, value)
}

var suspectKeys = map[string]string{
	SuspectEdgar:   "Edgar",
	SuspectSusanna: "Susanna",
	SuspectDean:    "Dean",
	SuspectArthur:  "Arthur",
}

// SuspectKey maps a suspect id to its exclusion grid row.
func SuspectKey(suspect string) (string, bool) {
	key, ok := suspectKeys[suspect]
	return key, ok
}

// WindowKey maps a time window tag to its exclusion grid column, the hour the window starts in.
func WindowKey(window string) (string, bool) {
	if !slices.Contains(fieldOptions[FieldMurderTimeWindow], window) {
		return "", false
	}
	return window[:2], true
}

// ExclusionSuspects lists the grid rows.
func ExclusionSuspects() []string {
	return []string{"Edgar", "Susanna", "Dean", "Arthur"}
}

// ExclusionWindows lists the grid columns in timeline order.
func ExclusionWindows() []string {
	return []string{"22", "23", "00"}
}

// ValidExclusionCell reports whether cell is on the grid.
func ValidExclusionCell(cell ExclusionCell) bool {
	return slices.Contains(ExclusionSuspects(), cell.Suspect) && slices.Contains(ExclusionWindows(), cell.Window)
}

// ParseExclusionKey parses the "<suspect>-<window>" form.
func ParseExclusionKey(key string) (ExclusionCell, bool) {
	suspect, window, ok := strings.Cut(key, "-")
	if !ok {
		return ExclusionCell{}, false
	}
	cell := ExclusionCell{Suspect: suspect, Window: window}
	return cell, ValidExclusionCell(cell)
}

// Document is an entry in the archive catalogue. The text itself lives with the viewer.
type Document struct {
	ID     string `json:"id"`
	Folder string `json:"folder"`
	Title  string `json:"title"`
	Locked bool   `json:"locked"`
}

const (
	FolderAdmin    = "admin"
	FolderService  = "service"
	FolderSystem   = "system"
	FolderEvidence = "evidence"

	// LockedDocumentID is opened by solving the cipher note found in room 104.
	LockedDocumentID = "locker_204"
	// CipherCode is the answer to "ROOM 101 + ROOM 103 = ?".
	CipherCode = "204"
	// CipherHint is the riddle printed on the note.
	CipherHint = "ROOM 101 + ROOM 103 = ?"
)

var documents = []Document{
	{ID: "guest_list", Folder: FolderAdmin, Title: "Guest register, 13 November"},
	{ID: "staff_roster", Folder: FolderAdmin, Title: "Night shift roster"},
	{ID: "dietary", Folder: FolderService, Title: "Resident dietary restrictions"},
	{ID: "room_service", Folder: FolderService, Title: "Room service collection log"},
	{ID: "laundry", Folder: FolderService, Title: "Laundry list"},
	{ID: "sprinkler", Folder: FolderSystem, Title: "Glass corridor sprinkler configuration"},
	{ID: "access_log", Folder: FolderSystem, Title: "Door access log"},
	{ID: "maintenance", Folder: FolderSystem, Title: "Arthur's maintenance notes"},
	{ID: "autopsy", Folder: FolderEvidence, Title: "Preliminary autopsy report"},
	{ID: "cipher", Folder: FolderEvidence, Title: "Torn note from room 104"},
	{ID: LockedDocumentID, Folder: FolderEvidence, Title: "Locker 204 contents", Locked: true},
}

// Folders lists the archive folders in sidebar order.
func Folders() []string {
	return []string{FolderAdmin, FolderService, FolderSystem, FolderEvidence}
}

// Documents returns the catalogue.
func Documents() []Document {
	return slices.Clone(documents)
}

// FindDocument looks up a document by folder and id.
func FindDocument(folder, id string) (Document, bool) {
	idx := slices.IndexFunc(documents, func(d Document) bool {
		return d.Folder == folder && d.ID == id
	})
	if idx < 0 {
		return Document{}, false
	}
	return documents[idx], true
}

// DocumentExists reports whether id is in the catalogue regardless of folder.
func DocumentExists(id string) bool {
	return slices.ContainsFunc(documents, func(d Document) bool { return d.ID == id })
}

// DefaultCursor is where the viewer opens on a new case.
func DefaultCursor() NavCursor {
	return NavCursor{Folder: documents[0].Folder, DocID: documents[0].ID}
}
