package evaluation

import "github.com/myrjola/pinearchives/internal/models"

var (
	verdictMisjudgeEdgar = models.Verdict{
		ID:    "misjudge_edgar",
		Title: "Ending B: A hasty accusation",
		Description: "You accused Edgar in room 101 because his key card opened the glass corridor at 23:00. " +
			"The police later found Edgar in a diabetic coma in his room. His card had been stolen. " +
			"Worse, at 23:00 the sprinklers were running, so the victim's slippers could never have stayed dry. " +
			"You ignored the decisive physical evidence.",
	}
	verdictMisjudgeSusanna = models.Verdict{
		ID:    "misjudge_susanna",
		Title: "Ending C: The wrong alibi",
		Description: "You accused Susanna in room 102 because nobody could vouch for her evening. " +
			"The access log shows she was turned away at the main entrance at 21:00 and never reached the corridor. " +
			"A weak alibi is not a motive, and it does not explain how the victim crossed a wet corridor with dry soles.",
	}
	verdictTruth = models.Verdict{
		ID:    "truth",
		Title: "Ending A: A flawless file",
		Description: "The truth is out. The dead man was a journalist posing as the guest in room 104; " +
			"the real Mr. Smith only arrived at 23:30. Dean Helen used the 23:45 to 00:00 sprinkler maintenance " +
			"window, the only time anyone could cross the corridor and stay dry, to lure the journalist into the " +
			"greenhouse and kill him. Only the dean knew the system that well. Your report is airtight.",
		IsTerminal: true,
	}
	verdictIncompleteProof = models.Verdict{
		ID:    "truth_incomplete",
		Title: "Ending A-: The truth without proof",
		Description: "You accused the dean and you are right, but the file does not pin down who died, when, and how. " +
			"She received a guest at 23:30, and the prosecution will struggle to convict without the dry-soles timeline. " +
			"Stress what happened after 23:45.",
	}
	verdictRejected = models.Verdict{
		ID:    "rejected",
		Title: "Case rejected",
		Description: "Your file contradicts itself. Recheck the victim's identity (diet, clothing size) " +
			"and the physical impossibility of the dry slippers.",
	}
	// TimeoutVerdict ends the case when the deadline passes. It bypasses the rule table.
	TimeoutVerdict = models.Verdict{
		ID:    "timeout",
		Title: "Out of time",
		Description: "Dawn breaks over Pine Sanatorium and the police take over the archive. " +
			"The case is closed without your report.",
		IsTerminal: true,
	}
)
