package game_test

import (
	"context"
	"github.com/myrjola/pinearchives/internal/evaluation"
	"github.com/myrjola/pinearchives/internal/game"
	"github.com/myrjola/pinearchives/internal/kvstore"
	"github.com/myrjola/pinearchives/internal/models"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func fillRecord(t *testing.T, s *game.Session, record models.CaseRecord) {
	t.Helper()
	ctx := context.Background()
	for _, field := range models.Fields() {
		require.NoError(t, s.SetField(ctx, field, record.Get(field)))
	}
}

func truthRecord() models.CaseRecord {
	return models.CaseRecord{
		VictimRoom:       models.RoomSmith,
		VictimIdentity:   models.IdentityFakeSmith,
		MethodClue:       models.MethodMaintenanceWindow,
		MurderTimeWindow: models.Window2345,
		AccusedSuspect:   models.SuspectDean,
	}
}

func TestStartNewSession(t *testing.T) {
	t.Parallel()
	for _, difficulty := range models.Difficulties() {
		t.Run(string(difficulty), func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, nil, game.Config{})
			ctx := context.Background()
			require.NoError(t, f.session.StartNewSession(ctx, difficulty))

			state := f.session.State()
			require.Equal(t, models.PhasePlaying, state.Phase)
			require.Equal(t, difficulty, state.Difficulty)
			require.Equal(t, difficulty.Duration(), state.Deadline.Sub(f.clock.Now()))
			require.Equal(t, difficulty.Duration(), f.session.Remaining())
			require.Equal(t, models.DefaultCursor(), state.NavCursor)
			require.Empty(t, state.UnlockedDocuments)
			require.Empty(t, state.ExclusionGrid)
			require.Equal(t, models.CaseRecord{}, state.CaseRecord)
			require.NotEmpty(t, state.Lifetime)

			phases := f.events.ofType(game.EventPhaseChange)
			require.Len(t, phases, 1)
			require.Equal(t, models.PhasePlaying, phases[0].Phase)
		})
	}
}

func TestInitialState(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, game.Config{})
	require.Equal(t, game.InitialState(), f.session.State())

	ctx := context.Background()
	require.NoError(t, f.session.StartNewSession(ctx, models.DifficultyNormal))
	f.session.Reset(ctx)
	require.Equal(t, game.InitialState(), f.session.State())
}

func TestStartNewSession_rejected(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, game.Config{})
	ctx := context.Background()

	require.ErrorIs(t, f.session.StartNewSession(ctx, "nightmare"), game.ErrInvalidValue)
	require.NoError(t, f.session.StartNewSession(ctx, models.DifficultyNormal))
	require.ErrorIs(t, f.session.StartNewSession(ctx, models.DifficultyHardcore), game.ErrInvalidPhase)
	require.Equal(t, "Nothing to do right now.", f.events.lastToast())
	require.Equal(t, models.DifficultyNormal, f.session.State().Difficulty)

	// Reset allows another case.
	f.session.Reset(ctx)
	require.Equal(t, models.PhaseInit, f.session.State().Phase)
	require.Equal(t, time.Duration(0), f.session.Remaining())
	require.NoError(t, f.session.StartNewSession(ctx, models.DifficultyHardcore))
	require.Equal(t, 30*time.Minute, f.session.Remaining())
}

func TestIntentsInInit(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, game.Config{})
	ctx := context.Background()

	require.ErrorIs(t, f.session.SetField(ctx, models.FieldAccusedSuspect, models.SuspectDean), game.ErrInvalidPhase)
	require.ErrorIs(t, f.session.ToggleExclusion(ctx, "Dean", "22"), game.ErrInvalidPhase)
	require.ErrorIs(t, f.session.UnlockDocument(ctx, models.LockedDocumentID), game.ErrInvalidPhase)
	require.ErrorIs(t, f.session.Navigate(ctx, models.FolderAdmin, "guest_list"), game.ErrInvalidPhase)
	_, err := f.session.SubmitAccusation(ctx)
	require.ErrorIs(t, err, game.ErrInvalidPhase)
	_, err = f.session.ForceSubmit(ctx)
	require.ErrorIs(t, err, game.ErrInvalidPhase)
	require.ErrorIs(t, f.session.AcknowledgeResult(ctx), game.ErrInvalidPhase)
	require.ErrorIs(t, f.session.ApplyPenalty(ctx, time.Minute), game.ErrInvalidPhase)

	require.Len(t, f.events.ofType(game.EventToast), 8)
	state := f.session.State()
	require.Equal(t, models.PhaseInit, state.Phase)
	require.Equal(t, models.CaseRecord{}, state.CaseRecord)
}

func TestSetField(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, game.Config{})
	ctx := context.Background()
	require.NoError(t, f.session.StartNewSession(ctx, models.DifficultyNormal))

	require.NoError(t, f.session.SetField(ctx, models.FieldVictimRoom, models.RoomSmith))
	require.ErrorIs(t, f.session.SetField(ctx, models.FieldVictimRoom, "105"), game.ErrInvalidValue)
	require.ErrorIs(t, f.session.SetField(ctx, "weapon", "candlestick"), game.ErrInvalidValue)
	require.Equal(t, models.CaseRecord{VictimRoom: models.RoomSmith}, f.session.State().CaseRecord)

	require.NoError(t, f.session.SetField(ctx, models.FieldVictimRoom, ""))
	require.Equal(t, models.CaseRecord{}, f.session.State().CaseRecord)
}

func TestToggleExclusion(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, game.Config{})
	ctx := context.Background()
	require.NoError(t, f.session.StartNewSession(ctx, models.DifficultyNormal))

	cell := models.ExclusionCell{Suspect: "Dean", Window: "22"}
	require.NoError(t, f.session.ToggleExclusion(ctx, "Dean", "22"))
	require.True(t, f.session.State().ExclusionGrid.Excluded(cell))
	require.NoError(t, f.session.ToggleExclusion(ctx, "Dean", "22"))
	require.False(t, f.session.State().ExclusionGrid.Excluded(cell))
	require.ErrorIs(t, f.session.ToggleExclusion(ctx, "Dean", "12"), game.ErrInvalidValue)
	require.ErrorIs(t, f.session.ToggleExclusion(ctx, "Holmes", "22"), game.ErrInvalidValue)
}

func TestUnlockDocument(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, game.Config{})
	ctx := context.Background()
	require.NoError(t, f.session.StartNewSession(ctx, models.DifficultyNormal))

	require.NoError(t, f.session.UnlockDocument(ctx, models.LockedDocumentID))
	once := f.session.State().UnlockedDocuments
	require.NoError(t, f.session.UnlockDocument(ctx, models.LockedDocumentID))
	require.Equal(t, once, f.session.State().UnlockedDocuments)
	require.Equal(t, []string{models.LockedDocumentID}, once)

	require.ErrorIs(t, f.session.UnlockDocument(ctx, "diary"), game.ErrUnknownDocument)
}

func TestAttemptUnlockAndNavigate(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, game.Config{})
	ctx := context.Background()
	require.NoError(t, f.session.StartNewSession(ctx, models.DifficultyNormal))

	err := f.session.Navigate(ctx, models.FolderEvidence, models.LockedDocumentID)
	require.ErrorIs(t, err, game.ErrDocumentLocked)
	require.Contains(t, f.events.lastToast(), "Locked")
	require.Equal(t, models.DefaultCursor(), f.session.State().NavCursor)

	opened, err := f.session.AttemptUnlock(ctx, "101")
	require.NoError(t, err)
	require.False(t, opened)
	require.Equal(t, "The key does not fit.", f.events.lastToast())

	opened, err = f.session.AttemptUnlock(ctx, " 204 ")
	require.NoError(t, err)
	require.True(t, opened)
	require.Contains(t, f.events.lastToast(), "Locker 204 is open")

	require.NoError(t, f.session.Navigate(ctx, models.FolderEvidence, models.LockedDocumentID))
	require.Equal(t, models.NavCursor{Folder: models.FolderEvidence, DocID: models.LockedDocumentID},
		f.session.State().NavCursor)

	require.ErrorIs(t, f.session.Navigate(ctx, models.FolderAdmin, "autopsy"), game.ErrUnknownDocument)
}

func TestSubmitAccusation_completeTruth(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, game.Config{})
	ctx := context.Background()
	require.NoError(t, f.session.StartNewSession(ctx, models.DifficultyNormal))
	fillRecord(t, f.session, truthRecord())
	before := f.session.Remaining()

	submission, err := f.session.SubmitAccusation(ctx)
	require.NoError(t, err)
	require.Nil(t, submission.Conflict)
	require.NotNil(t, submission.Judgement)
	require.Equal(t, evaluation.RuleCompleteTruth, submission.Judgement.Rule)
	require.True(t, submission.Judgement.Verdict.IsTerminal)

	state := f.session.State()
	require.Equal(t, models.PhaseEnded, state.Phase)
	require.Equal(t, "truth", state.LastVerdict.ID)
	require.Equal(t, before, f.session.Remaining())
	require.Len(t, f.events.ofType(game.EventVerdict), 1)

	// The case is closed.
	require.ErrorIs(t, f.session.SetField(ctx, models.FieldVictimRoom, models.RoomEdgar), game.ErrInvalidPhase)
	require.ErrorIs(t, f.session.ApplyPenalty(ctx, time.Minute), game.ErrInvalidPhase)
}

func TestSubmitAccusation_misdirection(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, game.Config{})
	ctx := context.Background()
	require.NoError(t, f.session.StartNewSession(ctx, models.DifficultyNormal))
	record := truthRecord()
	record.AccusedSuspect = models.SuspectEdgar
	fillRecord(t, f.session, record)
	before := f.session.Remaining()

	submission, err := f.session.SubmitAccusation(ctx)
	require.NoError(t, err)
	require.Equal(t, evaluation.RuleRedHerringEdgar, submission.Judgement.Rule)
	require.False(t, submission.Judgement.Verdict.IsTerminal)
	require.Equal(t, before-2*time.Minute, f.session.Remaining())

	state := f.session.State()
	require.Equal(t, models.PhaseViewingResult, state.Phase)
	require.Equal(t, "misjudge_edgar", state.LastVerdict.ID)

	// Intents wait until the verdict is acknowledged.
	require.ErrorIs(t, f.session.SetField(ctx, models.FieldAccusedSuspect, models.SuspectDean), game.ErrInvalidPhase)
	require.NoError(t, f.session.ApplyPenalty(ctx, time.Minute))
	require.Equal(t, before-3*time.Minute, f.session.Remaining())

	require.NoError(t, f.session.AcknowledgeResult(ctx))
	require.Equal(t, models.PhasePlaying, f.session.State().Phase)
	require.Equal(t, record, f.session.State().CaseRecord)
	require.ErrorIs(t, f.session.AcknowledgeResult(ctx), game.ErrInvalidPhase)

	// Every submission costs the penalty again.
	_, err = f.session.SubmitAccusation(ctx)
	require.NoError(t, err)
	require.Equal(t, before-5*time.Minute, f.session.Remaining())
}

func TestSubmitAccusation_silentRejection(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, game.Config{})
	ctx := context.Background()
	require.NoError(t, f.session.StartNewSession(ctx, models.DifficultyRelaxed))
	before := f.session.Remaining()

	submission, err := f.session.SubmitAccusation(ctx)
	require.NoError(t, err)
	require.True(t, submission.Judgement.Silent)
	require.Equal(t, models.PhasePlaying, f.session.State().Phase)
	require.Nil(t, f.session.State().LastVerdict)
	require.Equal(t, before-2*time.Minute, f.session.Remaining())
	require.Contains(t, f.events.lastToast(), "(-2 min)")
	require.Empty(t, f.events.ofType(game.EventVerdict))
}

func TestSubmitAccusation_conflict(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, game.Config{})
	ctx := context.Background()
	require.NoError(t, f.session.StartNewSession(ctx, models.DifficultyNormal))
	require.NoError(t, f.session.SetField(ctx, models.FieldAccusedSuspect, models.SuspectDean))
	require.NoError(t, f.session.SetField(ctx, models.FieldMurderTimeWindow, models.Window2200))
	require.NoError(t, f.session.ToggleExclusion(ctx, "Dean", "22"))
	before := f.session.Remaining()

	submission, err := f.session.SubmitAccusation(ctx)
	require.NoError(t, err)
	require.Nil(t, submission.Judgement)
	require.Equal(t, &evaluation.Conflict{Cell: models.ExclusionCell{Suspect: "Dean", Window: "22"}},
		submission.Conflict)
	require.Len(t, f.events.ofType(game.EventConflict), 1)
	require.Equal(t, models.PhasePlaying, f.session.State().Phase)
	require.Equal(t, before, f.session.Remaining())

	submission, err = f.session.ForceSubmit(ctx)
	require.NoError(t, err)
	require.Nil(t, submission.Conflict)
	require.Equal(t, evaluation.RuleIncompleteProof, submission.Judgement.Rule)
	require.Equal(t, models.PhaseViewingResult, f.session.State().Phase)
}

func TestApplyPenalty(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, game.Config{})
	ctx := context.Background()
	require.NoError(t, f.session.StartNewSession(ctx, models.DifficultyHardcore))

	before := f.session.Remaining()
	require.NoError(t, f.session.ApplyPenalty(ctx, 90*time.Second))
	require.Equal(t, before-90*time.Second, f.session.Remaining())
	require.ErrorIs(t, f.session.ApplyPenalty(ctx, -time.Minute), game.ErrInvalidValue)

	// Remaining never goes below zero.
	require.NoError(t, f.session.ApplyPenalty(ctx, time.Hour))
	require.Equal(t, time.Duration(0), f.session.Remaining())
	require.Equal(t, int64(0), f.session.State().RemainingMs)
}

func TestDeadlinePrecedesIntent(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, game.Config{})
	ctx := context.Background()
	require.NoError(t, f.session.StartNewSession(ctx, models.DifficultyNormal))
	fillRecord(t, f.session, truthRecord())

	// Submitted just before the deadline.
	f.clock.Add(time.Hour - time.Millisecond)
	submission, err := f.session.SubmitAccusation(ctx)
	require.NoError(t, err)
	require.Equal(t, evaluation.RuleCompleteTruth, submission.Judgement.Rule)

	g := newFixture(t, nil, game.Config{})
	require.NoError(t, g.session.StartNewSession(ctx, models.DifficultyNormal))
	fillRecord(t, g.session, truthRecord())
	g.clock.Add(time.Hour)
	_, err = g.session.SubmitAccusation(ctx)
	require.ErrorIs(t, err, game.ErrDeadlinePassed)
	state := g.session.State()
	require.Equal(t, models.PhaseEnded, state.Phase)
	require.Equal(t, evaluation.TimeoutVerdict, *state.LastVerdict)
}

func TestTick(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, game.Config{})
	ctx := context.Background()
	f.session.Tick(ctx)
	require.Empty(t, f.events.ofType(game.EventTick), "no ticks before a case starts")

	require.NoError(t, f.session.StartNewSession(ctx, models.DifficultyHardcore))
	f.clock.Add(10 * time.Minute)
	f.session.Tick(ctx)
	ticks := f.events.ofType(game.EventTick)
	require.Len(t, ticks, 1)
	require.Equal(t, (20 * time.Minute).Milliseconds(), *ticks[0].RemainingMs)
	require.Equal(t, models.PhasePlaying, f.session.State().Phase)

	f.clock.Add(21 * time.Minute)
	f.session.Tick(ctx)
	ticks = f.events.ofType(game.EventTick)
	require.Equal(t, int64(0), *ticks[len(ticks)-1].RemainingMs)
	require.Equal(t, models.PhaseEnded, f.session.State().Phase)
}

func TestTimeoutWhileViewingResult(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, game.Config{})
	ctx := context.Background()
	require.NoError(t, f.session.StartNewSession(ctx, models.DifficultyHardcore))
	require.NoError(t, f.session.SetField(ctx, models.FieldAccusedSuspect, models.SuspectSusanna))
	_, err := f.session.SubmitAccusation(ctx)
	require.NoError(t, err)

	f.clock.Add(time.Hour)
	f.session.Tick(ctx)
	require.Equal(t, models.PhaseViewingResult, f.session.State().Phase)

	require.NoError(t, f.session.AcknowledgeResult(ctx))
	f.session.Tick(ctx)
	require.Equal(t, models.PhaseEnded, f.session.State().Phase)
}

func TestTimeoutScenario(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, game.Config{
		TickInterval:     time.Second,
		AutosaveInterval: 5 * time.Second,
	})
	ctx := context.Background()
	require.NoError(t, f.session.StartNewSession(ctx, models.DifficultyHardcore))
	require.Equal(t, int64(1_800_000), f.session.State().Deadline.Sub(f.clock.Now()).Milliseconds())

	// The autosave loop persists the running case.
	advance(f.clock, 5*time.Second, time.Second)
	require.Eventually(t, func() bool {
		_, err := f.store.Get(ctx, game.DefaultKey)
		return err == nil
	}, time.Second, 5*time.Millisecond)

	advance(f.clock, 1_801_000*time.Millisecond-5*time.Second, time.Second)
	require.Eventually(t, func() bool {
		return f.session.State().Phase == models.PhaseEnded
	}, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, evaluation.TimeoutVerdict, *f.session.State().LastVerdict)

	require.NoError(t, f.session.Flush(ctx))
	_, err := f.store.Get(ctx, game.DefaultKey)
	require.ErrorIs(t, err, kvstore.ErrNotFound)
}
