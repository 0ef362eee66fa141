package evaluation

import "github.com/myrjola/pinearchives/internal/models"

// Conflict is raised when the accusation contradicts the investigator's own exclusion notes.
type Conflict struct {
	Cell models.ExclusionCell `json:"cell"`
}

// CheckConflict reports whether the accused suspect and murder window fall into a cell the investigator has excluded.
// Records that lack either field never conflict.
func CheckConflict(record models.CaseRecord, grid models.ExclusionGrid) (Conflict, bool) {
	suspect, ok := models.SuspectKey(record.AccusedSuspect)
	if !ok {
		return Conflict{}, false
	}
	window, ok := models.WindowKey(record.MurderTimeWindow)
	if !ok {
		return Conflict{}, false
	}
	cell := models.ExclusionCell{Suspect: suspect, Window: window}
	if !grid.Excluded(cell) {
		return Conflict{}, false
	}
	return Conflict{Cell: cell}, true
}
