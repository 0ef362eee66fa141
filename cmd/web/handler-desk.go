package main

import (
	"fmt"
	"github.com/myrjola/pinearchives/internal/contexthelpers"
	"github.com/myrjola/pinearchives/internal/game"
	"github.com/myrjola/pinearchives/internal/models"
	"net/http"
	"time"
)

type difficultyOption struct {
	Value    models.Difficulty
	Minutes  int
	Selected bool
}

type fieldView struct {
	Name    models.Field
	Value   string
	Options []string
}

type exclusionCellView struct {
	Suspect  string
	Window   string
	Excluded bool
}

type exclusionRowView struct {
	Suspect string
	Cells   []exclusionCellView
}

type documentView struct {
	models.Document
	Locked  bool
	Current bool
}

type deskTemplateData struct {
	BaseTemplateData
	State        game.State
	Remaining    string
	Difficulties []difficultyOption
	Fields       []fieldView
	Windows      []string
	Grid         []exclusionRowView
	Documents    []documentView
}

func (app *application) deskPage(w http.ResponseWriter, r *http.Request) {
	state := app.deskState(contexthelpers.PlayerID(r.Context()))
	app.render(w, r, http.StatusOK, "desk", newDeskTemplateData(r, state))
}

func newDeskTemplateData(r *http.Request, state game.State) deskTemplateData {
	data := deskTemplateData{
		BaseTemplateData: newBaseTemplateData(r),
		State:            state,
		Remaining:        formatRemaining(state.Remaining),
		Windows:          models.ExclusionWindows(),
	}

	selected := state.Difficulty
	if selected == "" {
		selected = models.DifficultyNormal
	}
	for _, d := range models.Difficulties() {
		data.Difficulties = append(data.Difficulties, difficultyOption{
			Value:    d,
			Minutes:  int(d.Duration().Minutes()),
			Selected: d == selected,
		})
	}

	for _, f := range models.Fields() {
		data.Fields = append(data.Fields, fieldView{Name: f, Value: state.CaseRecord.Get(f), Options: models.Options(f)})
	}

	for _, suspect := range models.ExclusionSuspects() {
		row := exclusionRowView{Suspect: suspect}
		for _, window := range models.ExclusionWindows() {
			cell := models.ExclusionCell{Suspect: suspect, Window: window}
			row.Cells = append(row.Cells, exclusionCellView{
				Suspect:  suspect,
				Window:   window,
				Excluded: state.ExclusionGrid.Excluded(cell),
			})
		}
		data.Grid = append(data.Grid, row)
	}

	unlocked := make(map[string]bool, len(state.UnlockedDocuments))
	for _, id := range state.UnlockedDocuments {
		unlocked[id] = true
	}
	for _, doc := range models.Documents() {
		data.Documents = append(data.Documents, documentView{
			Document: doc,
			Locked:   doc.Locked && !unlocked[doc.ID],
			Current:  state.NavCursor.Folder == doc.Folder && state.NavCursor.DocID == doc.ID,
		})
	}
	return data
}

// formatRemaining renders d as minutes and seconds, e.g. 59:07.
func formatRemaining(d time.Duration) string {
	seconds := int(d.Seconds())
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60) //nolint:mnd // seconds in a minute
}
