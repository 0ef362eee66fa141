package game

import (
	"encoding/json"
	"github.com/myrjola/pinearchives/internal/errors"
	"github.com/myrjola/pinearchives/internal/models"
	"log/slog"
	"slices"
	"time"
)

// Snapshot is the persisted form of a case file.
type Snapshot struct {
	Phase             models.Phase
	Difficulty        models.Difficulty
	Deadline          time.Time
	CaseRecord        models.CaseRecord
	ExclusionGrid     models.ExclusionGrid
	UnlockedDocuments []string
	NavCursor         models.NavCursor
}

// snapshotRecord is the wire format. Pointers tell missing fields apart from zero values.
type snapshotRecord struct {
	Phase             *models.Phase        `json:"phase"`
	Difficulty        *models.Difficulty   `json:"difficulty"`
	Deadline          *int64               `json:"deadline"`
	CaseRecord        *models.CaseRecord   `json:"caseRecord"`
	ExclusionGrid     models.ExclusionGrid `json:"exclusionGrid"`
	UnlockedDocuments []string             `json:"unlockedDocuments"`
	NavCursor         *models.NavCursor    `json:"navCursor"`
}

// MarshalJSON encodes the snapshot with the deadline in epoch milliseconds and the unlocked documents sorted.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	deadline := s.Deadline.UnixMilli()
	unlocked := slices.Clone(s.UnlockedDocuments)
	if unlocked == nil {
		unlocked = []string{}
	}
	slices.Sort(unlocked)
	grid := s.ExclusionGrid
	if grid == nil {
		grid = models.ExclusionGrid{}
	}
	data, err := json.Marshal(snapshotRecord{
		Phase:             &s.Phase,
		Difficulty:        &s.Difficulty,
		Deadline:          &deadline,
		CaseRecord:        &s.CaseRecord,
		ExclusionGrid:     grid,
		UnlockedDocuments: unlocked,
		NavCursor:         &s.NavCursor,
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshal snapshot")
	}
	return data, nil
}

// DecodeSnapshot parses and validates a persisted case file. Missing fields get the values a new session would
// start with, computed from now. Every failure matches ErrCorruptSave.
func DecodeSnapshot(data []byte, now time.Time) (Snapshot, error) {
	var record snapshotRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return Snapshot{}, corruptSaveError{cause: errors.Wrap(err, "parse snapshot")}
	}

	s := Snapshot{
		Phase:             models.PhasePlaying,
		Difficulty:        models.DifficultyNormal,
		ExclusionGrid:     models.ExclusionGrid{},
		UnlockedDocuments: []string{},
		NavCursor:         models.DefaultCursor(),
	}
	if record.Phase != nil {
		s.Phase = *record.Phase
	}
	if !s.Phase.Active() {
		return Snapshot{}, corruptSaveError{cause: errors.New("phase is not resumable",
			slog.String("phase", string(s.Phase)))}
	}
	if record.Difficulty != nil {
		if _, err := models.ParseDifficulty(string(*record.Difficulty)); err != nil {
			return Snapshot{}, corruptSaveError{cause: err}
		}
		s.Difficulty = *record.Difficulty
	}
	s.Deadline = now.Add(s.Difficulty.Duration()).Truncate(time.Millisecond)
	if record.Deadline != nil {
		s.Deadline = time.UnixMilli(*record.Deadline)
	}
	if record.CaseRecord != nil {
		for _, field := range models.Fields() {
			if value := record.CaseRecord.Get(field); !models.ValidOption(field, value) {
				return Snapshot{}, corruptSaveError{cause: errors.New("invalid case record value",
					slog.String("field", string(field)), slog.String("value", value))}
			}
		}
		s.CaseRecord = *record.CaseRecord
	}
	if record.ExclusionGrid != nil {
		s.ExclusionGrid = record.ExclusionGrid
	}
	for _, id := range record.UnlockedDocuments {
		if !models.DocumentExists(id) {
			return Snapshot{}, corruptSaveError{cause: errors.New("unknown unlocked document",
				slog.String("document", id))}
		}
		if !slices.Contains(s.UnlockedDocuments, id) {
			s.UnlockedDocuments = append(s.UnlockedDocuments, id)
		}
	}
	slices.Sort(s.UnlockedDocuments)
	if record.NavCursor != nil {
		if _, ok := models.FindDocument(record.NavCursor.Folder, record.NavCursor.DocID); !ok {
			return Snapshot{}, corruptSaveError{cause: errors.New("unknown cursor document",
				slog.String("folder", record.NavCursor.Folder), slog.String("document", record.NavCursor.DocID))}
		}
		s.NavCursor = *record.NavCursor
	}
	return s, nil
}
