package session

import (
	"regexp"
	"strings"
)

// StarCoverage reports which parts of the Situation/Task/Action/Result
// answer structure a piece of text exhibits.
type StarCoverage struct {
	Situation bool
	Task      bool
	Action    bool
	Result    bool
}

// Complete reports whether all four components were detected.
func (s StarCoverage) Complete() bool {
	return s.Situation && s.Task && s.Action && s.Result
}

// Count returns how many components were detected.
func (s StarCoverage) Count() int {
	n := 0
	for _, b := range []bool{s.Situation, s.Task, s.Action, s.Result} {
		if b {
			n++
		}
	}
	return n
}

// Phrase patterns that typically open each STAR component in spoken answers.
var (
	situationRe = regexp.MustCompile(`\b(at my (previous|last) (job|company|role)|when i (was|worked)|in my (role|team|project)|the situation was|we (had|faced)|there was a)\b`)
	taskRe      = regexp.MustCompile(`\b(my (task|goal|responsibility|job) was|i (needed|had) to|we (needed|had) to|the (task|goal|objective) was|i was (asked|tasked|responsible))\b`)
	actionRe    = regexp.MustCompile(`\b(so i|i (decided|started|built|implemented|created|designed|wrote|led|organized|proposed|refactored)|we (decided|built|implemented|created|migrated)|my approach was|first,? i)\b`)
	resultRe    = regexp.MustCompile(`\b(as a result|in the end|this (led to|resulted in|reduced|improved|increased)|we (achieved|reduced|improved|increased|shipped|delivered)|which (led to|resulted in|saved|improved)|the (result|outcome|impact) was|ultimately)\b`)
)

// DetectStar scans text for phrases characteristic of each STAR component.
// Matching is lowercase and lexical; it flags structure, it does not judge
// content quality.
func DetectStar(text string) StarCoverage {
	t := strings.ToLower(text)
	return StarCoverage{
		Situation: situationRe.MatchString(t),
		Task:      taskRe.MatchString(t),
		Action:    actionRe.MatchString(t),
		Result:    resultRe.MatchString(t),
	}
}
