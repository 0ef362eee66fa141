// Package casefile holds the terminal commands for working a case file. Every command resumes the saved case,
// dispatches one intent and saves again.
package casefile

import (
	"context"
	"fmt"
	"github.com/myrjola/pinearchives/internal/errors"
	"github.com/myrjola/pinearchives/internal/game"
	"github.com/myrjola/pinearchives/internal/models"
	"github.com/spf13/cobra"
	"log/slog"
	"strings"
	"time"
)

var Group = &cobra.Group{
	ID:    "case",
	Title: "Case file",
}

// Commands builds the case file commands.
func Commands() []*cobra.Command {
	return []*cobra.Command{
		newCommand(),
		statusCommand(),
		setCommand(),
		excludeCommand(),
		navigateCommand(),
		unlockCommand(),
		submitCommand(),
		ackCommand(),
		abandonCommand(),
		savesCommand(),
	}
}

func newCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "new",
		GroupID: Group.ID,
		Short:   "Open a new case",
		Long:    `Opens a new case file. A saved case is discarded.`,
		Args:    cobra.NoArgs,
	}
	difficulty := cmd.Flags().String("difficulty", string(models.DifficultyNormal),
		"relaxed (90 min), normal (60 min) or hardcore (30 min)")
	cmd.RunE = runDesk(false, func(ctx context.Context, d *desk, _ []string) error {
		return d.session.StartNewSession(ctx, models.Difficulty(*difficulty))
	})
	return cmd
}

func statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		GroupID: Group.ID,
		Short:   "Show the open case",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := runDesk(true, func(_ context.Context, d *desk, _ []string) error {
				printState(d, d.session.State())
				return nil
			})(cmd, args)
			if errors.Is(err, game.ErrNoSavedSession) && !errors.Is(err, game.ErrCorruptSave) {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No open case. Run new to start one.")
				return nil
			}
			return err
		},
	}
}

func printState(d *desk, state game.State) {
	w := d.out
	_, _ = fmt.Fprintf(w, "difficulty: %s\n", state.Difficulty)
	_, _ = fmt.Fprintf(w, "time left: %s\n", state.Remaining.Truncate(time.Second))
	_, _ = fmt.Fprintln(w, "case record:")
	for _, f := range models.Fields() {
		value := state.CaseRecord.Get(f)
		if value == "" {
			value = "-"
		}
		_, _ = fmt.Fprintf(w, "  %-17s %s\n", f, value)
	}
	var excluded []string
	for _, suspect := range models.ExclusionSuspects() {
		for _, window := range models.ExclusionWindows() {
			cell := models.ExclusionCell{Suspect: suspect, Window: window}
			if state.ExclusionGrid.Excluded(cell) {
				excluded = append(excluded, cell.Key())
			}
		}
	}
	_, _ = fmt.Fprintf(w, "excluded: %s\n", joinOrDash(excluded))
	_, _ = fmt.Fprintf(w, "unlocked: %s\n", joinOrDash(state.UnlockedDocuments))
	_, _ = fmt.Fprintf(w, "reading: %s/%s\n", state.NavCursor.Folder, state.NavCursor.DocID)
}

func joinOrDash(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, ", ")
}

func setCommand() *cobra.Command {
	fields := make([]string, 0, len(models.Fields()))
	for _, f := range models.Fields() {
		fields = append(fields, fmt.Sprintf("%s (%s)", f, strings.Join(models.Options(f), ", ")))
	}
	return &cobra.Command{
		Use:     "set [field] [value]",
		GroupID: Group.ID,
		Short:   "Fill in a field of the case record",
		Long: "Sets a field of the case record. Leave out the value to clear the field.\n\nFields:\n  " +
			strings.Join(fields, "\n  "),
		Args: cobra.RangeArgs(1, 2), //nolint:mnd // field and optional value
		RunE: runDesk(true, func(ctx context.Context, d *desk, args []string) error {
			var value string
			if len(args) > 1 {
				value = args[1]
			}
			return d.session.SetField(ctx, models.Field(args[0]), value)
		}),
	}
}

func excludeCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "exclude [suspect] [window]",
		GroupID: Group.ID,
		Short:   "Toggle a cell of the exclusion grid",
		Long: fmt.Sprintf("Marks a suspect as ruled out for the hour the window starts in, or clears the mark.\n\n"+
			"Suspects: %s\nWindows: %s",
			strings.Join(models.ExclusionSuspects(), ", "), strings.Join(models.ExclusionWindows(), ", ")),
		Args: cobra.ExactArgs(2), //nolint:mnd // suspect and window
		RunE: runDesk(true, func(ctx context.Context, d *desk, args []string) error {
			return d.session.ToggleExclusion(ctx, args[0], args[1])
		}),
	}
}

func navigateCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "navigate [folder] [document]",
		GroupID: Group.ID,
		Short:   "Open a document of the archive",
		Args:    cobra.ExactArgs(2), //nolint:mnd // folder and document
		RunE: runDesk(true, func(ctx context.Context, d *desk, args []string) error {
			if err := d.session.Navigate(ctx, args[0], args[1]); err != nil {
				return err
			}
			doc, _ := models.FindDocument(args[0], args[1])
			_, _ = fmt.Fprintf(d.out, "reading: %s\n", doc.Title)
			return nil
		}),
	}
}

func unlockCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "unlock [code]",
		GroupID: Group.ID,
		Short:   "Try a code on locker 204",
		Long:    "Tries a code on locker 204. The riddle reads: " + models.CipherHint,
		Args:    cobra.ExactArgs(1),
		RunE: runDesk(true, func(ctx context.Context, d *desk, args []string) error {
			_, err := d.session.AttemptUnlock(ctx, args[0])
			return err
		}),
	}
}

func submitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "submit",
		GroupID: Group.ID,
		Short:   "Submit the accusation",
		Long: `Submits the case record. An accusation that contradicts the exclusion grid is held back unless
--force is given.`,
		Args: cobra.NoArgs,
	}
	force := cmd.Flags().Bool("force", false, "submit even when the exclusion grid contradicts the accusation")
	cmd.RunE = runDesk(true, func(ctx context.Context, d *desk, _ []string) error {
		submit := d.session.SubmitAccusation
		if *force {
			submit = d.session.ForceSubmit
		}
		submission, err := submit(ctx)
		if err != nil {
			return err
		}
		if j := submission.Judgement; j != nil && !j.Verdict.IsTerminal {
			_, _ = fmt.Fprintf(d.out, "time left: %s\n", d.session.Remaining().Truncate(time.Second))
		}
		return nil
	})
	return cmd
}

func ackCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "ack",
		GroupID: Group.ID,
		Short:   "Dismiss the verdict on screen",
		Long: `Dismisses the verdict on screen and returns to the investigation. A resumed case always starts at the
desk, so there is only something to dismiss right after an accusation.`,
		Args: cobra.NoArgs,
		RunE: runDesk(true, func(ctx context.Context, d *desk, _ []string) error {
			err := d.session.AcknowledgeResult(ctx)
			if errors.Is(err, game.ErrInvalidPhase) {
				return nil
			}
			return err
		}),
	}
}

func abandonCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "abandon",
		GroupID: Group.ID,
		Short:   "Throw away the saved case",
		Args:    cobra.NoArgs,
		RunE: runDesk(false, func(ctx context.Context, d *desk, _ []string) error {
			if err := d.store.Delete(ctx, game.DefaultKey); err != nil {
				return errors.Wrap(err, "delete case file")
			}
			_, _ = fmt.Fprintln(d.out, "The case file is back in the archive.")
			return nil
		}),
	}
}

func savesCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "saves [prefix]",
		GroupID: Group.ID,
		Short:   "List saved case files",
		Long: `Lists the saved case files in the SQLite store, including the desks of web players which are saved
under player:<id>:.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runDesk(false, func(ctx context.Context, d *desk, args []string) error {
			if d.snapshots == nil {
				return errors.New("saves are only listed for the sqlite store")
			}
			var prefix string
			if len(args) > 0 {
				prefix = args[0]
			}
			infos, err := d.snapshots.List(ctx, prefix)
			if err != nil {
				return errors.Wrap(err, "list case files", slog.String("prefix", prefix))
			}
			for _, info := range infos {
				_, _ = fmt.Fprintf(d.out, "%s\t%d bytes\t%s\n", info.Key, info.Size, info.Updated)
			}
			return nil
		}),
	}
}
