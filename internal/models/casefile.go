package models

import (
	"encoding/json"
	"github.com/myrjola/pinearchives/internal/errors"
	"log/slog"
	"time"
)

// Phase is the stage of a play-through.
type Phase string

const (
	PhaseInit          Phase = "init"
	PhasePlaying       Phase = "playing"
	PhaseViewingResult Phase = "viewing_result"
	PhaseEnded         Phase = "ended"
)

// Valid reports whether p is one of the known phases.
func (p Phase) Valid() bool {
	switch p {
	case PhaseInit, PhasePlaying, PhaseViewingResult, PhaseEnded:
		return true
	default:
		return false
	}
}

// Active reports whether the case clock is running, i.e. the case is resumable.
func (p Phase) Active() bool {
	return p == PhasePlaying || p == PhaseViewingResult
}

// Difficulty picks the total time the investigator has.
type Difficulty string

const (
	DifficultyRelaxed  Difficulty = "relaxed"
	DifficultyNormal   Difficulty = "normal"
	DifficultyHardcore Difficulty = "hardcore"
)

var difficultyDurations = map[Difficulty]time.Duration{
	DifficultyRelaxed:  90 * time.Minute, //nolint:mnd // game balance
	DifficultyNormal:   60 * time.Minute, //nolint:mnd // game balance
	DifficultyHardcore: 30 * time.Minute, //nolint:mnd // game balance
}

// Difficulties lists the difficulties from easiest to hardest.
func Difficulties() []Difficulty {
	return []Difficulty{DifficultyRelaxed, DifficultyNormal, DifficultyHardcore}
}

// Duration returns the total case time. Unknown difficulties return zero.
func (d Difficulty) Duration() time.Duration {
	return difficultyDurations[d]
}

// ParseDifficulty validates s.
func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(s)
	if _, ok := difficultyDurations[d]; !ok {
		return "", errors.New("unknown difficulty", slog.String("difficulty", s))
	}
	return d, nil
}

// Field names a single CaseRecord entry. The names double as the JSON keys.
type Field string

const (
	FieldVictimRoom       Field = "victimRoom"
	FieldVictimIdentity   Field = "victimIdentity"
	FieldMethodClue       Field = "methodClue"
	FieldMurderTimeWindow Field = "murderTimeWindow"
	FieldAccusedSuspect   Field = "accusedSuspect"
)

// Fields lists the case fields in form order.
func Fields() []Field {
	return []Field{FieldVictimRoom, FieldVictimIdentity, FieldMethodClue, FieldMurderTimeWindow, FieldAccusedSuspect}
}

// CaseRecord is the accusation the investigator is working on. Empty strings are unset fields.
type CaseRecord struct {
	VictimRoom       string `json:"victimRoom"`
	VictimIdentity   string `json:"victimIdentity"`
	MethodClue       string `json:"methodClue"`
	MurderTimeWindow string `json:"murderTimeWindow"`
	AccusedSuspect   string `json:"accusedSuspect"`
}

// Get returns the value of field f.
func (c CaseRecord) Get(f Field) string {
	switch f {
	case FieldVictimRoom:
		return c.VictimRoom
	case FieldVictimIdentity:
		return c.VictimIdentity
	case FieldMethodClue:
		return c.MethodClue
	case FieldMurderTimeWindow:
		return c.MurderTimeWindow
	case FieldAccusedSuspect:
		return c.AccusedSuspect
	default:
		return ""
	}
}

// With returns a copy of c where field f is set to value. The second return value is false for unknown fields.
func (c CaseRecord) With(f Field, value string) (CaseRecord, bool) {
	switch f {
	case FieldVictimRoom:
		c.VictimRoom = value
	case FieldVictimIdentity:
		c.VictimIdentity = value
	case FieldMethodClue:
		c.MethodClue = value
	case FieldMurderTimeWindow:
		c.MurderTimeWindow = value
	case FieldAccusedSuspect:
		c.AccusedSuspect = value
	default:
		return c, false
	}
	return c, true
}

// ExclusionCell addresses one square of the exclusion grid.
type ExclusionCell struct {
	Suspect string `json:"suspect"`
	Window  string `json:"window"`
}

// Key is the serialized form "<suspect>-<window>".
func (c ExclusionCell) Key() string {
	return c.Suspect + "-" + c.Window
}

// ExclusionGrid holds the investigator's notes on which suspect could not have acted in which hour.
// Only excluded cells are stored.
type ExclusionGrid map[ExclusionCell]bool

// Excluded reports whether cell is marked.
func (g ExclusionGrid) Excluded(cell ExclusionCell) bool {
	return g[cell]
}

// Clone returns an independent copy.
func (g ExclusionGrid) Clone() ExclusionGrid {
	clone := make(ExclusionGrid, len(g))
	for cell, excluded := range g {
		if excluded {
			clone[cell] = true
		}
	}
	return clone
}

// MarshalJSON encodes the grid as {"Dean-22": true}.
func (g ExclusionGrid) MarshalJSON() ([]byte, error) {
	flat := make(map[string]bool, len(g))
	for cell, excluded := range g {
		if excluded {
			flat[cell.Key()] = true
		}
	}
	return json.Marshal(flat) //nolint:wrapcheck // plain passthrough
}

// UnmarshalJSON decodes the {"Dean-22": true} form. Cells with unknown keys are rejected.
func (g *ExclusionGrid) UnmarshalJSON(data []byte) error {
	var flat map[string]bool
	if err := json.Unmarshal(data, &flat); err != nil {
		return err //nolint:wrapcheck // plain passthrough
	}
	grid := make(ExclusionGrid, len(flat))
	for key, excluded := range flat {
		cell, ok := ParseExclusionKey(key)
		if !ok {
			return errors.New("invalid exclusion cell", slog.String("key", key))
		}
		if excluded {
			grid[cell] = true
		}
	}
	*g = grid
	return nil
}

// NavCursor points at the document open in the viewer.
type NavCursor struct {
	Folder string `json:"folder"`
	DocID  string `json:"docId"`
}

// Verdict is the outcome shown after an accusation or a timeout.
type Verdict struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	IsTerminal  bool   `json:"isTerminal"`
}
