package game_test

import (
	"context"
	"encoding/json"
	"github.com/myrjola/pinearchives/internal/evaluation"
	"github.com/myrjola/pinearchives/internal/game"
	"github.com/myrjola/pinearchives/internal/kvstore"
	"github.com/myrjola/pinearchives/internal/models"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func TestSnapshotJSON(t *testing.T) {
	t.Parallel()
	deadline := time.UnixMilli(1_700_003_600_000)
	snapshot := game.Snapshot{
		Phase:      models.PhaseViewingResult,
		Difficulty: models.DifficultyHardcore,
		Deadline:   deadline,
		CaseRecord: models.CaseRecord{AccusedSuspect: models.SuspectDean, MurderTimeWindow: models.Window2345},
		ExclusionGrid: models.ExclusionGrid{
			{Suspect: "Dean", Window: "22"}: true,
		},
		UnlockedDocuments: []string{models.LockedDocumentID, "autopsy"},
		NavCursor:         models.NavCursor{Folder: models.FolderEvidence, DocID: models.LockedDocumentID},
	}
	data, err := json.Marshal(snapshot)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"phase": "viewing_result",
		"difficulty": "hardcore",
		"deadline": 1700003600000,
		"caseRecord": {"victimRoom": "", "victimIdentity": "", "methodClue": "", "murderTimeWindow": "2345_0000",
			"accusedSuspect": "dean"},
		"exclusionGrid": {"Dean-22": true},
		"unlockedDocuments": ["autopsy", "locker_204"],
		"navCursor": {"folder": "evidence", "docId": "locker_204"}
	}`, string(data))

	decoded, err := game.DecodeSnapshot(data, time.UnixMilli(0))
	require.NoError(t, err)
	require.True(t, deadline.Equal(decoded.Deadline))
	decoded.Deadline = deadline
	snapshot.UnlockedDocuments = []string{"autopsy", models.LockedDocumentID}
	require.Equal(t, snapshot, decoded)

	again, err := json.Marshal(decoded)
	require.NoError(t, err)
	require.Equal(t, data, again, "encoding is byte stable")
}

func TestDecodeSnapshot_defaults(t *testing.T) {
	t.Parallel()
	now := time.UnixMilli(1_700_000_000_000)
	decoded, err := game.DecodeSnapshot([]byte(`{}`), now)
	require.NoError(t, err)
	require.Equal(t, models.PhasePlaying, decoded.Phase)
	require.Equal(t, models.DifficultyNormal, decoded.Difficulty)
	require.True(t, now.Add(time.Hour).Equal(decoded.Deadline))
	require.Equal(t, models.CaseRecord{}, decoded.CaseRecord)
	require.Empty(t, decoded.ExclusionGrid)
	require.Empty(t, decoded.UnlockedDocuments)
	require.Equal(t, models.DefaultCursor(), decoded.NavCursor)

	decoded, err = game.DecodeSnapshot([]byte(`{"difficulty":"relaxed"}`), now)
	require.NoError(t, err)
	require.True(t, now.Add(90*time.Minute).Equal(decoded.Deadline))
}

func TestDecodeSnapshot_corrupt(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{"phase":`},
		{"not an object", `[1, 2]`},
		{"unknown phase", `{"phase":"paused"}`},
		{"ended phase", `{"phase":"ended"}`},
		{"unknown difficulty", `{"difficulty":"nightmare"}`},
		{"deadline is not a number", `{"deadline":"tomorrow"}`},
		{"invalid case record value", `{"caseRecord":{"accusedSuspect":"butler"}}`},
		{"invalid exclusion cell", `{"exclusionGrid":{"Butler-22":true}}`},
		{"unknown unlocked document", `{"unlockedDocuments":["diary"]}`},
		{"unknown cursor", `{"navCursor":{"folder":"admin","docId":"autopsy"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := game.DecodeSnapshot([]byte(tt.data), time.Now())
			require.ErrorIs(t, err, game.ErrCorruptSave)
			require.ErrorIs(t, err, game.ErrNoSavedSession)
		})
	}
}

func TestResumeSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, nil, game.Config{})
	require.NoError(t, f.session.StartNewSession(ctx, models.DifficultyHardcore))
	record := truthRecord()
	record.AccusedSuspect = models.SuspectSusanna
	fillRecord(t, f.session, record)
	require.NoError(t, f.session.ToggleExclusion(ctx, "Edgar", "23"))
	_, err := f.session.AttemptUnlock(ctx, "204")
	require.NoError(t, err)
	require.NoError(t, f.session.Navigate(ctx, models.FolderEvidence, models.LockedDocumentID))
	_, err = f.session.SubmitAccusation(ctx)
	require.NoError(t, err)
	require.NoError(t, f.session.Flush(ctx))
	saved := f.session.State()
	require.Equal(t, models.PhaseViewingResult, saved.Phase)

	data, err := f.store.Get(ctx, game.DefaultKey)
	require.NoError(t, err)
	snapshot, err := game.DecodeSnapshot(data, time.Now())
	require.NoError(t, err)
	require.Equal(t, models.PhaseViewingResult, snapshot.Phase)

	// A second desk on the same store picks the case up where it was left.
	g := newFixture(t, f.store, game.Config{})
	require.NoError(t, g.session.ResumeSession(ctx))
	resumed := g.session.State()
	require.Equal(t, models.PhasePlaying, resumed.Phase)
	require.Equal(t, saved.Difficulty, resumed.Difficulty)
	require.True(t, saved.Deadline.Equal(resumed.Deadline))
	require.Equal(t, saved.CaseRecord, resumed.CaseRecord)
	require.Equal(t, saved.ExclusionGrid, resumed.ExclusionGrid)
	require.Equal(t, saved.UnlockedDocuments, resumed.UnlockedDocuments)
	require.Equal(t, saved.NavCursor, resumed.NavCursor)
	require.NotEqual(t, saved.Lifetime, resumed.Lifetime)

	require.ErrorIs(t, g.session.ResumeSession(ctx), game.ErrInvalidPhase)
}

func TestResumeSession_nothingSaved(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, nil, game.Config{})
	err := f.session.ResumeSession(ctx)
	require.ErrorIs(t, err, game.ErrNoSavedSession)
	require.NotErrorIs(t, err, game.ErrCorruptSave)
	require.Equal(t, models.PhaseInit, f.session.State().Phase)
}

func TestResumeSession_corrupt(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, nil, game.Config{})
	require.NoError(t, f.store.Put(ctx, game.DefaultKey, []byte(`{"phase":"playing","difficulty":`)))
	err := f.session.ResumeSession(ctx)
	require.ErrorIs(t, err, game.ErrCorruptSave)
	require.ErrorIs(t, err, game.ErrNoSavedSession)
	require.Equal(t, models.PhaseInit, f.session.State().Phase)

	// Starting over replaces the corrupt file.
	require.NoError(t, f.session.StartNewSession(ctx, models.DifficultyNormal))
	require.NoError(t, f.session.Flush(ctx))
	data, err := f.store.Get(ctx, game.DefaultKey)
	require.NoError(t, err)
	_, err = game.DecodeSnapshot(data, time.Now())
	require.NoError(t, err)
}

func TestResumeSession_expiredDeadline(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, nil, game.Config{})
	require.NoError(t, f.store.Put(ctx, game.DefaultKey, []byte(`{"phase":"playing","deadline":0}`)))
	require.NoError(t, f.session.ResumeSession(ctx))

	state := f.session.State()
	require.Equal(t, models.PhaseEnded, state.Phase)
	require.Equal(t, evaluation.TimeoutVerdict.ID, state.LastVerdict.ID)
	require.Equal(t, "Time is up.", f.events.lastToast())
	require.ErrorIs(t, f.session.SetField(ctx, models.FieldVictimRoom, models.RoomSmith), game.ErrInvalidPhase)

	// The expired case is gone from the store.
	require.NoError(t, f.session.Flush(ctx))
	_, err := f.store.Get(ctx, game.DefaultKey)
	require.ErrorIs(t, err, kvstore.ErrNotFound)
}

func TestResumeSession_deadlineSurvivesSave(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, nil, game.Config{})
	// Wall clocks are rarely on a whole millisecond.
	f.clock.Set(f.clock.Now().Add(123_456 * time.Nanosecond))
	require.NoError(t, f.session.StartNewSession(ctx, models.DifficultyNormal))
	require.NoError(t, f.session.ApplyPenalty(ctx, 1500*time.Microsecond+7))
	require.NoError(t, f.session.Flush(ctx))
	saved := f.session.State().Deadline
	require.Equal(t, saved, saved.Truncate(time.Millisecond))

	g := newFixture(t, f.store, game.Config{})
	require.NoError(t, g.session.ResumeSession(ctx))
	resumed := g.session.State().Deadline
	require.True(t, saved.Equal(resumed), "saved %s, resumed %s", saved, resumed)
	require.Equal(t, saved.UnixNano(), resumed.UnixNano())
}

func TestStartNewSessionClearsSave(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, nil, game.Config{})
	require.NoError(t, f.store.Put(ctx, game.DefaultKey, []byte(`{"phase":"playing"}`)))
	require.NoError(t, f.session.StartNewSession(ctx, models.DifficultyNormal))
	f.session.Reset(ctx)

	require.ErrorIs(t, f.session.ResumeSession(ctx), game.ErrNoSavedSession)
}
