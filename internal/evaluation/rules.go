// Package evaluation decides what an accusation is worth.
//
// The decision is an ordered table of rules. The first rule whose predicate matches the case record produces the
// judgement, so more specific misdirections must come before broader ones.
package evaluation

import (
	"github.com/myrjola/pinearchives/internal/models"
	"time"
)

// DefaultPenalty is subtracted from the deadline for every accusation that does not close the case.
const DefaultPenalty = 2 * time.Minute

// RuleID tags a rule so that tests and logs can tell which branch fired.
type RuleID string

const (
	RuleRedHerringEdgar   RuleID = "red_herring_edgar"
	RuleRedHerringSusanna RuleID = "red_herring_susanna"
	RuleCompleteTruth     RuleID = "complete_truth"
	RuleIncompleteProof   RuleID = "incomplete_proof"
	RuleRejected          RuleID = "rejected"
)

// Rule pairs a predicate over the case record with the verdict it produces.
type Rule struct {
	ID      RuleID
	Match   func(models.CaseRecord) bool
	Verdict models.Verdict
	// Penalty is applied to the deadline when the verdict is not terminal.
	Penalty time.Duration
	// Silent rules reject the accusation without showing a verdict.
	Silent bool
}

// Judgement is the result of evaluating a case record.
type Judgement struct {
	Rule    RuleID         `json:"rule"`
	Verdict models.Verdict `json:"verdict"`
	Penalty time.Duration  `json:"penalty"`
	Silent  bool           `json:"silent"`
}

func accuses(suspect string) func(models.CaseRecord) bool {
	return func(c models.CaseRecord) bool {
		return c.AccusedSuspect == suspect
	}
}

func provesEverything(c models.CaseRecord) bool {
	return c.AccusedSuspect == models.SuspectDean &&
		c.VictimRoom == models.RoomSmith &&
		c.VictimIdentity == models.IdentityFakeSmith &&
		c.MurderTimeWindow == models.Window2345 &&
		c.MethodClue == models.MethodMaintenanceWindow
}

func always(models.CaseRecord) bool {
	return true
}

// DefaultRules builds the rule table of the Pine Sanatorium case. penalty applies to every non-terminal outcome.
func DefaultRules(penalty time.Duration) []Rule {
	return []Rule{
		{
			ID:      RuleRedHerringEdgar,
			Match:   accuses(models.SuspectEdgar),
			Verdict: verdictMisjudgeEdgar,
			Penalty: penalty,
		},
		{
			ID:      RuleRedHerringSusanna,
			Match:   accuses(models.SuspectSusanna),
			Verdict: verdictMisjudgeSusanna,
			Penalty: penalty,
		},
		{
			ID:      RuleCompleteTruth,
			Match:   provesEverything,
			Verdict: verdictTruth,
		},
		{
			ID:      RuleIncompleteProof,
			Match:   accuses(models.SuspectDean),
			Verdict: verdictIncompleteProof,
			Penalty: penalty,
		},
		{
			ID:      RuleRejected,
			Match:   always,
			Verdict: verdictRejected,
			Penalty: penalty,
			Silent:  true,
		},
	}
}

// Evaluate returns the judgement of the first matching rule. When no rule matches, for example with an empty
// table, the accusation is rejected silently with the default penalty so that evaluation never fails.
func Evaluate(rules []Rule, record models.CaseRecord) Judgement {
	for _, rule := range rules {
		if rule.Match(record) {
			penalty := rule.Penalty
			if rule.Verdict.IsTerminal {
				penalty = 0
			}
			return Judgement{
				Rule:    rule.ID,
				Verdict: rule.Verdict,
				Penalty: penalty,
				Silent:  rule.Silent,
			}
		}
	}
	return Judgement{
		Rule:    RuleRejected,
		Verdict: verdictRejected,
		Penalty: DefaultPenalty,
		Silent:  true,
	}
}
