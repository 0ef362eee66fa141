package main

import (
	"context"
	"github.com/myrjola/pinearchives/internal/contexthelpers"
	"github.com/myrjola/pinearchives/internal/game"
	"github.com/myrjola/pinearchives/internal/models"
	"net/http"
)

type caseResponse struct {
	State      game.State       `json:"state"`
	Submission *game.Submission `json:"submission,omitempty"`
	Opened     *bool            `json:"opened,omitempty"`
}

func (app *application) getCase(w http.ResponseWriter, r *http.Request) {
	state := app.deskState(contexthelpers.PlayerID(r.Context()))
	app.writeJSON(w, r, http.StatusOK, caseResponse{State: state})
}

type newCaseRequest struct {
	Difficulty models.Difficulty `json:"difficulty"`
}

// newCase abandons whatever is on the desk and opens a fresh case file.
func (app *application) newCase(w http.ResponseWriter, r *http.Request) {
	var req newCaseRequest
	if !app.readJSON(w, r, &req) {
		return
	}
	if req.Difficulty == "" {
		req.Difficulty = models.DifficultyNormal
	}
	ctx := r.Context()
	desk, err := app.playerDesk(r)
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	desk.Reset(ctx)
	if err = desk.StartNewSession(ctx, req.Difficulty); err != nil {
		app.caseError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, caseResponse{State: desk.State()})
}

// resumeCase reloads the saved case file. The desk is saved first so that a case still open in memory resumes
// where it was left.
func (app *application) resumeCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	desk, err := app.playerDesk(r)
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	if err = desk.Flush(ctx); err != nil {
		app.serverError(w, r, err)
		return
	}
	desk.Reset(ctx)
	if err = desk.ResumeSession(ctx); err != nil {
		app.caseError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, caseResponse{State: desk.State()})
}

type fieldRequest struct {
	Field models.Field `json:"field"`
	Value string       `json:"value"`
}

func (app *application) setField(w http.ResponseWriter, r *http.Request) {
	var req fieldRequest
	if !app.readJSON(w, r, &req) {
		return
	}
	desk, err := app.playerDesk(r)
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	if err = desk.SetField(r.Context(), req.Field, req.Value); err != nil {
		app.caseError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, caseResponse{State: desk.State()})
}

type exclusionRequest struct {
	Suspect string `json:"suspect"`
	Window  string `json:"window"`
}

func (app *application) toggleExclusion(w http.ResponseWriter, r *http.Request) {
	var req exclusionRequest
	if !app.readJSON(w, r, &req) {
		return
	}
	desk, err := app.playerDesk(r)
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	if err = desk.ToggleExclusion(r.Context(), req.Suspect, req.Window); err != nil {
		app.caseError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, caseResponse{State: desk.State()})
}

type navigateRequest struct {
	Folder string `json:"folder"`
	DocID  string `json:"docId"`
}

func (app *application) navigate(w http.ResponseWriter, r *http.Request) {
	var req navigateRequest
	if !app.readJSON(w, r, &req) {
		return
	}
	desk, err := app.playerDesk(r)
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	if err = desk.Navigate(r.Context(), req.Folder, req.DocID); err != nil {
		app.caseError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, caseResponse{State: desk.State()})
}

type unlockRequest struct {
	Code string `json:"code"`
}

func (app *application) unlock(w http.ResponseWriter, r *http.Request) {
	var req unlockRequest
	if !app.readJSON(w, r, &req) {
		return
	}
	desk, err := app.playerDesk(r)
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	opened, err := desk.AttemptUnlock(r.Context(), req.Code)
	if err != nil {
		app.caseError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, caseResponse{State: desk.State(), Opened: &opened})
}

// submit evaluates the accusation. A contradiction with the exclusion grid is answered with 409 Conflict and the
// offending cell so that the player can confirm with force-submit.
func (app *application) submit(w http.ResponseWriter, r *http.Request) {
	app.writeSubmission(w, r, (*game.Session).SubmitAccusation)
}

func (app *application) forceSubmit(w http.ResponseWriter, r *http.Request) {
	app.writeSubmission(w, r, (*game.Session).ForceSubmit)
}

func (app *application) writeSubmission(
	w http.ResponseWriter,
	r *http.Request,
	submitFn func(desk *game.Session, ctx context.Context) (game.Submission, error),
) {
	desk, err := app.playerDesk(r)
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	submission, err := submitFn(desk, r.Context())
	if err != nil {
		app.caseError(w, r, err)
		return
	}
	status := http.StatusOK
	if submission.Conflict != nil {
		status = http.StatusConflict
	}
	app.writeJSON(w, r, status, caseResponse{State: desk.State(), Submission: &submission})
}

func (app *application) acknowledge(w http.ResponseWriter, r *http.Request) {
	desk, err := app.playerDesk(r)
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	if err = desk.AcknowledgeResult(r.Context()); err != nil {
		app.caseError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, caseResponse{State: desk.State()})
}
