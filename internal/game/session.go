// Package game runs a case file: the phase machine, the deadline, accusations and the autosave of one play-through.
package game

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/myrjola/pinearchives/internal/errors"
	"github.com/myrjola/pinearchives/internal/evaluation"
	"github.com/myrjola/pinearchives/internal/kvstore"
	"github.com/myrjola/pinearchives/internal/logging"
	"github.com/myrjola/pinearchives/internal/models"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
)

const (
	DefaultTickInterval     = time.Second
	DefaultAutosaveInterval = 5 * time.Second
	DefaultKey              = "casefile"
)

const (
	msgNothingToDo    = "Nothing to do right now."
	msgLocked         = "Locked. The cipher in the evidence folder holds the key."
	msgLockerOpen     = "Locker 204 is open. A new document is in the evidence folder."
	msgWrongKey       = "The key does not fit."
	msgDeadlinePassed = "Time is up."
)

type Config struct {
	// Clock defaults to the wall clock.
	Clock  clock.Clock
	Store  kvstore.Store
	Logger *slog.Logger
	// Emitter defaults to discarding events.
	Emitter Emitter
	// Rules default to evaluation.DefaultRules(Penalty).
	Rules            []evaluation.Rule
	Penalty          time.Duration
	TickInterval     time.Duration
	AutosaveInterval time.Duration
	// Key is the store key of the case file.
	Key string
}

func (c Config) withDefaults() Config {
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	if c.Emitter == nil {
		c.Emitter = EmitterFunc(func(Event) {})
	}
	if c.Penalty <= 0 {
		c.Penalty = evaluation.DefaultPenalty
	}
	if c.Rules == nil {
		c.Rules = evaluation.DefaultRules(c.Penalty)
	}
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.AutosaveInterval <= 0 {
		c.AutosaveInterval = DefaultAutosaveInterval
	}
	if c.Key == "" {
		c.Key = DefaultKey
	}
	return c
}

// Session owns one case file. Every method is safe for concurrent use and runs as a single step under the
// session lock.
type Session struct {
	clock            clock.Clock
	logger           *slog.Logger
	emitter          Emitter
	rules            []evaluation.Rule
	tickInterval     time.Duration
	autosaveInterval time.Duration
	store            kvstore.Store
	key              string
	autosaver        *Autosaver

	mu          sync.Mutex
	phase       models.Phase
	difficulty  models.Difficulty
	deadline    time.Time
	record      models.CaseRecord
	grid        models.ExclusionGrid
	unlocked    map[string]struct{}
	cursor      models.NavCursor
	lastVerdict *models.Verdict
	// revision increments on every change that should reach the store.
	revision uint64
	// lifetime identifies the loops of the current play-through. Loops of an older lifetime are no-ops.
	lifetime  string
	stopLoops context.CancelFunc
	destroyed bool

	loops sync.WaitGroup
}

// NewSession creates a session in the init phase and starts its autosave writer. Call Destroy when done.
func NewSession(ctx context.Context, cfg Config) *Session {
	cfg = cfg.withDefaults()
	return &Session{
		clock:            cfg.Clock,
		logger:           cfg.Logger.With("source", "Session"),
		emitter:          cfg.Emitter,
		rules:            cfg.Rules,
		tickInterval:     cfg.TickInterval,
		autosaveInterval: cfg.AutosaveInterval,
		store:            cfg.Store,
		key:              cfg.Key,
		autosaver:        NewAutosaver(ctx, cfg.Store, cfg.Key, cfg.Logger),
		phase:            models.PhaseInit,
		grid:             models.ExclusionGrid{},
		unlocked:         map[string]struct{}{},
		cursor:           models.DefaultCursor(),
	}
}

// State is a copy of the session for collaborators.
type State struct {
	Phase             models.Phase         `json:"phase"`
	Difficulty        models.Difficulty    `json:"difficulty,omitempty"`
	Deadline          time.Time            `json:"deadline"`
	Remaining         time.Duration        `json:"-"`
	RemainingMs       int64                `json:"remainingMs"`
	CaseRecord        models.CaseRecord    `json:"caseRecord"`
	ExclusionGrid     models.ExclusionGrid `json:"exclusionGrid"`
	UnlockedDocuments []string             `json:"unlockedDocuments"`
	NavCursor         models.NavCursor     `json:"navCursor"`
	LastVerdict       *models.Verdict      `json:"lastVerdict,omitempty"`
	CipherHint        string               `json:"cipherHint"`
	Lifetime          string               `json:"lifetime,omitempty"`
}

// Submission is the outcome of an accusation. Exactly one of the fields is set.
type Submission struct {
	// Conflict is set when the accusation contradicts the exclusion grid and was not evaluated.
	Conflict  *evaluation.Conflict  `json:"conflict,omitempty"`
	Judgement *evaluation.Judgement `json:"judgement,omitempty"`
}

// StartNewSession begins a fresh case with the given difficulty and clears any saved case file.
func (s *Session) StartNewSession(ctx context.Context, difficulty models.Difficulty) error {
	if _, err := models.ParseDifficulty(string(difficulty)); err != nil {
		return errors.Wrap(ErrInvalidValue, "start new session", slog.String("difficulty", string(difficulty)))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != models.PhaseInit || s.destroyed {
		return s.rejectLocked(ctx, "start new session")
	}

	now := s.clock.Now()
	s.difficulty = difficulty
	s.deadline = now.Add(difficulty.Duration()).Truncate(time.Millisecond)
	s.record = models.CaseRecord{}
	s.grid = models.ExclusionGrid{}
	s.unlocked = map[string]struct{}{}
	s.cursor = models.DefaultCursor()
	s.lastVerdict = nil
	s.phase = models.PhasePlaying
	s.revision++
	s.autosaver.Delete()
	s.startLifetimeLocked(ctx)

	s.logger.LogAttrs(ctx, slog.LevelInfo, "started new session",
		slog.String("difficulty", string(difficulty)), slog.Time("deadline", s.deadline),
		slog.String("lifetime", s.lifetime))
	s.emitter.Emit(phaseChange(s.phase))
	return nil
}

// ResumeSession restores the saved case file. The restored session is always playing, even when it was saved
// while a verdict was on screen. A case whose deadline passed while it was saved ends right away.
func (s *Session) ResumeSession(ctx context.Context) error {
	s.mu.Lock()
	if s.phase != models.PhaseInit || s.destroyed {
		err := s.rejectLocked(ctx, "resume session")
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	var (
		data     []byte
		snapshot Snapshot
		err      error
	)
	// Writes still queued from an earlier play-through must land before reading.
	if err = s.autosaver.Flush(ctx); err != nil {
		return errors.Wrap(err, "flush before resume")
	}
	if data, err = s.store.Get(ctx, s.key); err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return errors.Wrap(ErrNoSavedSession, "resume session", slog.String("key", s.key))
		}
		return errors.Wrap(err, "load case file", slog.String("key", s.key))
	}
	if snapshot, err = DecodeSnapshot(data, s.clock.Now()); err != nil {
		err = errors.Wrap(err, "decode case file", slog.String("key", s.key))
		s.logger.LogAttrs(ctx, slog.LevelWarn, "saved case file is corrupt", errors.SlogError(err))
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != models.PhaseInit || s.destroyed {
		return s.rejectLocked(ctx, "resume session")
	}
	s.difficulty = snapshot.Difficulty
	s.deadline = snapshot.Deadline
	s.record = snapshot.CaseRecord
	s.grid = snapshot.ExclusionGrid.Clone()
	s.unlocked = make(map[string]struct{}, len(snapshot.UnlockedDocuments))
	for _, id := range snapshot.UnlockedDocuments {
		s.unlocked[id] = struct{}{}
	}
	s.cursor = snapshot.NavCursor
	s.lastVerdict = nil
	s.phase = models.PhasePlaying
	s.revision++
	s.startLifetimeLocked(ctx)

	s.logger.LogAttrs(ctx, slog.LevelInfo, "resumed session",
		slog.String("saved_phase", string(snapshot.Phase)), slog.Time("deadline", s.deadline),
		slog.String("lifetime", s.lifetime))
	s.emitter.Emit(phaseChange(s.phase))
	if !s.clock.Now().Before(s.deadline) {
		s.timeoutLocked(ctx)
	}
	return nil
}

// Reset returns the session to init from any phase so that another case can be started. Persistence is not
// touched.
func (s *Session) Reset(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLoopsLocked()
	s.lifetime = ""
	s.difficulty = ""
	s.deadline = time.Time{}
	s.record = models.CaseRecord{}
	s.grid = models.ExclusionGrid{}
	s.unlocked = map[string]struct{}{}
	s.cursor = models.DefaultCursor()
	s.lastVerdict = nil
	s.revision++
	if s.phase != models.PhaseInit {
		s.phase = models.PhaseInit
		s.emitter.Emit(phaseChange(s.phase))
	}
	s.logger.LogAttrs(ctx, slog.LevelDebug, "reset session")
}

// SetField sets one field of the case record. The empty value clears the field.
func (s *Session) SetField(ctx context.Context, field models.Field, value string) error {
	return s.playingStep(ctx, "set field", func(time.Time) error {
		if !models.ValidOption(field, value) {
			return errors.Wrap(ErrInvalidValue, "set field",
				slog.String("field", string(field)), slog.String("value", value))
		}
		record, _ := s.record.With(field, value)
		if record != s.record {
			s.record = record
			s.revision++
		}
		return nil
	})
}

// ToggleExclusion flips one cell of the exclusion grid.
func (s *Session) ToggleExclusion(ctx context.Context, suspectKey, windowKey string) error {
	return s.playingStep(ctx, "toggle exclusion", func(time.Time) error {
		cell := models.ExclusionCell{Suspect: suspectKey, Window: windowKey}
		if !models.ValidExclusionCell(cell) {
			return errors.Wrap(ErrInvalidValue, "toggle exclusion", slog.String("cell", cell.Key()))
		}
		if s.grid.Excluded(cell) {
			delete(s.grid, cell)
		} else {
			s.grid[cell] = true
		}
		s.revision++
		return nil
	})
}

// UnlockDocument makes a document readable. Unlocking twice is the same as once.
func (s *Session) UnlockDocument(ctx context.Context, id string) error {
	return s.playingStep(ctx, "unlock document", func(time.Time) error {
		if !models.DocumentExists(id) {
			return errors.Wrap(ErrUnknownDocument, "unlock document", slog.String("document", id))
		}
		s.unlockLocked(id)
		return nil
	})
}

func (s *Session) unlockLocked(id string) {
	if _, ok := s.unlocked[id]; ok {
		return
	}
	s.unlocked[id] = struct{}{}
	s.revision++
}

// AttemptUnlock tries code against the locker. It reports whether the locker opened.
func (s *Session) AttemptUnlock(ctx context.Context, code string) (bool, error) {
	opened := false
	err := s.playingStep(ctx, "attempt unlock", func(time.Time) error {
		if strings.TrimSpace(code) != models.CipherCode {
			s.emitter.Emit(toast(msgWrongKey))
			return nil
		}
		s.unlockLocked(models.LockedDocumentID)
		opened = true
		s.emitter.Emit(toast(msgLockerOpen))
		return nil
	})
	return opened, err
}

// Navigate opens a document in the viewer.
func (s *Session) Navigate(ctx context.Context, folder, docID string) error {
	return s.playingStep(ctx, "navigate", func(time.Time) error {
		doc, ok := models.FindDocument(folder, docID)
		if !ok {
			return errors.Wrap(ErrUnknownDocument, "navigate",
				slog.String("folder", folder), slog.String("document", docID))
		}
		if _, unlocked := s.unlocked[doc.ID]; doc.Locked && !unlocked {
			s.emitter.Emit(toast(msgLocked))
			return errors.Wrap(ErrDocumentLocked, "navigate", slog.String("document", docID))
		}
		cursor := models.NavCursor{Folder: folder, DocID: docID}
		if cursor != s.cursor {
			s.cursor = cursor
			s.revision++
		}
		return nil
	})
}

// SubmitAccusation evaluates the case record unless it contradicts the exclusion grid.
func (s *Session) SubmitAccusation(ctx context.Context) (Submission, error) {
	return s.submit(ctx, true)
}

// ForceSubmit evaluates the case record without checking the exclusion grid.
func (s *Session) ForceSubmit(ctx context.Context) (Submission, error) {
	return s.submit(ctx, false)
}

func (s *Session) submit(ctx context.Context, checkConflict bool) (Submission, error) {
	var submission Submission
	err := s.playingStep(ctx, "submit accusation", func(time.Time) error {
		if checkConflict {
			if conflict, ok := evaluation.CheckConflict(s.record, s.grid); ok {
				submission.Conflict = &conflict
				s.logger.LogAttrs(ctx, slog.LevelDebug, "accusation conflicts with exclusion grid",
					slog.String("cell", conflict.Cell.Key()))
				s.emitter.Emit(conflictEvent(conflict))
				return nil
			}
		}
		judgement := evaluation.Evaluate(s.rules, s.record)
		submission.Judgement = &judgement
		s.applyJudgementLocked(ctx, judgement)
		return nil
	})
	return submission, err
}

func (s *Session) applyJudgementLocked(ctx context.Context, judgement evaluation.Judgement) {
	s.logger.LogAttrs(ctx, slog.LevelInfo, "accusation evaluated",
		slog.String("rule", string(judgement.Rule)),
		slog.String("verdict", judgement.Verdict.ID),
		slog.Bool("terminal", judgement.Verdict.IsTerminal),
		slog.Duration("penalty", judgement.Penalty))
	s.revision++

	verdict := judgement.Verdict
	switch {
	case verdict.IsTerminal:
		s.endLocked(verdict)
	case judgement.Silent:
		s.deadline = s.deadline.Add(-judgement.Penalty).Truncate(time.Millisecond)
		s.emitter.Emit(toast(fmt.Sprintf("%s. %s (-%d min)", verdict.Title, verdict.Description,
			int(judgement.Penalty.Minutes()))))
	default:
		s.deadline = s.deadline.Add(-judgement.Penalty).Truncate(time.Millisecond)
		s.lastVerdict = &verdict
		s.phase = models.PhaseViewingResult
		s.emitter.Emit(phaseChange(s.phase))
		s.emitter.Emit(verdictEvent(verdict))
	}
}

// endLocked closes the case with a terminal verdict. The saved case file is deleted and the loops stop.
func (s *Session) endLocked(verdict models.Verdict) {
	s.lastVerdict = &verdict
	s.phase = models.PhaseEnded
	s.autosaver.Delete()
	s.stopLoopsLocked()
	s.emitter.Emit(phaseChange(s.phase))
	s.emitter.Emit(verdictEvent(verdict))
}

// AcknowledgeResult dismisses the verdict on screen and returns to the investigation.
func (s *Session) AcknowledgeResult(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != models.PhaseViewingResult {
		return s.rejectLocked(ctx, "acknowledge result")
	}
	s.phase = models.PhasePlaying
	s.revision++
	s.emitter.Emit(phaseChange(s.phase))
	return nil
}

// ApplyPenalty moves the deadline d closer. It is only allowed while the case is open.
func (s *Session) ApplyPenalty(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.phase.Active() {
		return s.rejectLocked(ctx, "apply penalty")
	}
	if d < 0 {
		return errors.Wrap(ErrInvalidValue, "apply penalty", slog.Duration("penalty", d))
	}
	s.deadline = s.deadline.Add(-d).Truncate(time.Millisecond)
	s.revision++
	s.logger.LogAttrs(ctx, slog.LevelDebug, "applied penalty", slog.Duration("penalty", d))
	return nil
}

// Remaining is the time left until the deadline, clamped at zero. It is zero before a case has started.
func (s *Session) Remaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remainingLocked(s.clock.Now())
}

func (s *Session) remainingLocked(now time.Time) time.Duration {
	if s.phase == models.PhaseInit {
		return 0
	}
	return max(s.deadline.Sub(now), 0)
}

// InitialState is the state of a session before any case has been opened.
func InitialState() State {
	return State{
		Phase:             models.PhaseInit,
		ExclusionGrid:     models.ExclusionGrid{},
		UnlockedDocuments: []string{},
		NavCursor:         models.DefaultCursor(),
		CipherHint:        models.CipherHint,
	}
}

// State returns a copy of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	remaining := s.remainingLocked(s.clock.Now())
	var lastVerdict *models.Verdict
	if s.lastVerdict != nil {
		verdict := *s.lastVerdict
		lastVerdict = &verdict
	}
	return State{
		Phase:             s.phase,
		Difficulty:        s.difficulty,
		Deadline:          s.deadline,
		Remaining:         remaining,
		RemainingMs:       remaining.Milliseconds(),
		CaseRecord:        s.record,
		ExclusionGrid:     s.grid.Clone(),
		UnlockedDocuments: s.unlockedLocked(),
		NavCursor:         s.cursor,
		LastVerdict:       lastVerdict,
		CipherHint:        models.CipherHint,
		Lifetime:          s.lifetime,
	}
}

func (s *Session) unlockedLocked() []string {
	ids := make([]string, 0, len(s.unlocked))
	for id := range s.unlocked {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		Phase:             s.phase,
		Difficulty:        s.difficulty,
		Deadline:          s.deadline,
		CaseRecord:        s.record,
		ExclusionGrid:     s.grid.Clone(),
		UnlockedDocuments: s.unlockedLocked(),
		NavCursor:         s.cursor,
	}
}

// Tick checks the deadline now instead of waiting for the timer.
func (s *Session) Tick(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickLocked(ctx)
}

// Flush saves the case file if it changed and waits until the write is done.
func (s *Session) Flush(ctx context.Context) error {
	s.mu.Lock()
	s.saveLocked(ctx)
	s.mu.Unlock()
	return s.autosaver.Flush(ctx)
}

// Destroy saves an open case file, stops the loops and the autosave writer. The session can't be used
// afterwards.
func (s *Session) Destroy(ctx context.Context) error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return nil
	}
	s.destroyed = true
	s.saveLocked(ctx)
	s.stopLoopsLocked()
	s.mu.Unlock()

	s.loops.Wait()
	if err := s.autosaver.Close(ctx); err != nil {
		return errors.Wrap(err, "destroy session")
	}
	return nil
}

// playingStep runs fn when the case is open for investigation. An expired deadline ends the case instead.
func (s *Session) playingStep(ctx context.Context, intent string, fn func(now time.Time) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != models.PhasePlaying || s.destroyed {
		return s.rejectLocked(ctx, intent)
	}
	now := s.clock.Now()
	if !now.Before(s.deadline) {
		s.timeoutLocked(ctx)
		return errors.Wrap(ErrDeadlinePassed, intent)
	}
	return fn(now)
}

func (s *Session) rejectLocked(ctx context.Context, intent string) error {
	s.logger.LogAttrs(ctx, slog.LevelDebug, "intent not allowed",
		slog.String("intent", intent), slog.String("phase", string(s.phase)))
	s.emitter.Emit(toast(msgNothingToDo))
	return errors.Wrap(ErrInvalidPhase, intent, slog.String("phase", string(s.phase)))
}

func (s *Session) tickLocked(ctx context.Context) {
	if !s.phase.Active() {
		return
	}
	now := s.clock.Now()
	s.emitter.Emit(tick(remainingMs(s.deadline, now)))
	if s.phase == models.PhasePlaying && !now.Before(s.deadline) {
		s.timeoutLocked(ctx)
	}
}

func (s *Session) timeoutLocked(ctx context.Context) {
	s.logger.LogAttrs(ctx, slog.LevelInfo, "deadline passed", slog.Time("deadline", s.deadline))
	s.revision++
	s.emitter.Emit(toast(msgDeadlinePassed))
	s.endLocked(evaluation.TimeoutVerdict)
}

// saveLocked queues a save when the open case file changed since the last successful save.
func (s *Session) saveLocked(ctx context.Context) {
	if !s.phase.Active() || s.revision == s.autosaver.SavedRevision() {
		return
	}
	data, err := json.Marshal(s.snapshotLocked())
	if err != nil {
		err = errors.Wrap(err, "encode case file")
		s.logger.LogAttrs(ctx, slog.LevelError, "failed to encode case file", errors.SlogError(err))
		return
	}
	s.autosaver.Save(data, s.revision)
}

// startLifetimeLocked replaces the timer and autosave loops with new ones bound to a fresh lifetime id.
func (s *Session) startLifetimeLocked(ctx context.Context) {
	s.stopLoopsLocked()
	lifetime := uuid.NewString()
	s.lifetime = lifetime
	loopCtx, cancel := context.WithCancel(
		logging.WithAttrs(context.WithoutCancel(ctx), slog.String("lifetime", lifetime)))
	s.stopLoops = cancel

	NewTimer(s.clock, s.tickInterval).Start(loopCtx, &s.loops, func(ctx context.Context) {
		s.tickLifetime(ctx, lifetime)
	})
	NewTimer(s.clock, s.autosaveInterval).Start(loopCtx, &s.loops, func(ctx context.Context) {
		s.autosaveLifetime(ctx, lifetime)
	})
}

// tickLifetime is the timer loop body. Ticks of a replaced lifetime are ignored.
func (s *Session) tickLifetime(ctx context.Context, lifetime string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lifetime == lifetime {
		s.tickLocked(ctx)
	}
}

// autosaveLifetime is the autosave loop body. Ticks of a replaced lifetime are ignored.
func (s *Session) autosaveLifetime(ctx context.Context, lifetime string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lifetime == lifetime {
		s.saveLocked(ctx)
	}
}

func (s *Session) stopLoopsLocked() {
	if s.stopLoops != nil {
		s.stopLoops()
		s.stopLoops = nil
	}
}
