package service

import (
	"errors"
	"testing"
)

func TestResolveOutcomeFullGrid(t *testing.T) {
	cases := []struct {
		player, opponent Choice
		want             Outcome
	}{
		{ChoiceRock, ChoiceRock, OutcomeTie},
		{ChoiceRock, ChoicePaper, OutcomeLoss},
		{ChoiceRock, ChoiceScissors, OutcomeWin},
		{ChoicePaper, ChoiceRock, OutcomeWin},
		{ChoicePaper, ChoicePaper, OutcomeTie},
		{ChoicePaper, ChoiceScissors, OutcomeLoss},
		{ChoiceScissors, ChoiceRock, OutcomeLoss},
		{ChoiceScissors, ChoicePaper, OutcomeWin},
		{ChoiceScissors, ChoiceScissors, OutcomeTie},
	}
	for _, c := range cases {
		got, err := ResolveOutcome(c.player, c.opponent)
		if err != nil {
			t.Fatalf("%s vs %s: %v", c.player, c.opponent, err)
		}
		if got != c.want {
			t.Fatalf("%s vs %s: got %s want %s", c.player, c.opponent, got, c.want)
		}
	}
}

// 反对称：A 对 B 赢则 B 对 A 必输，平局双向一致
func TestResolveOutcomeAntisymmetry(t *testing.T) {
	for _, a := range allChoices {
		for _, b := range allChoices {
			ab, _ := ResolveOutcome(a, b)
			ba, _ := ResolveOutcome(b, a)
			switch ab {
			case OutcomeWin:
				if ba != OutcomeLoss {
					t.Fatalf("%s/%s: win but reverse is %s", a, b, ba)
				}
			case OutcomeLoss:
				if ba != OutcomeWin {
					t.Fatalf("%s/%s: loss but reverse is %s", a, b, ba)
				}
			case OutcomeTie:
				if ba != OutcomeTie {
					t.Fatalf("%s/%s: tie but reverse is %s", a, b, ba)
				}
			}
		}
	}
}

func TestParseChoiceRejectsUnknown(t *testing.T) {
	for _, s := range []string{"", "lizard", "Rock", "ROCK", "rock ", "spock"} {
		if _, err := ParseChoice(s); !errors.Is(err, ErrInvalidChoice) {
			t.Fatalf("ParseChoice(%q): want ErrInvalidChoice, got %v", s, err)
		}
	}
	for _, s := range []string{"rock", "paper", "scissors"} {
		c, err := ParseChoice(s)
		if err != nil || string(c) != s {
			t.Fatalf("ParseChoice(%q): got %q err %v", s, c, err)
		}
	}
}

func TestRandomChoiceIsMember(t *testing.T) {
	seen := map[Choice]bool{}
	for i := 0; i < 300; i++ {
		c, err := RandomChoice()
		if err != nil {
			t.Fatalf("random choice: %v", err)
		}
		if _, ok := beats[c]; !ok {
			t.Fatalf("random choice outside set: %q", c)
		}
		seen[c] = true
	}
	// 300 次采样三个值都该出现过
	if len(seen) != 3 {
		t.Fatalf("expected all 3 choices in 300 samples, got %v", seen)
	}
}
