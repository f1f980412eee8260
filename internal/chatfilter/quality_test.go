package chatfilter

import (
	"math"
	"testing"
	"time"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScoreMessageMatchesWorkedExample(t *testing.T) {
	// "Hey! What do you think? @CharacterName" -> 0.1+0.3+0.2+0.16+0.14 = 0.9
	got := scoreMessage("Hey! What do you think? @CharacterName", "CharacterName")
	if !almostEqual(got, 0.9) {
		t.Fatalf("scoreMessage() = %v, want 0.9", got)
	}
}

func TestShouldRespondGatesOnCooldown(t *testing.T) {
	q := NewQualityScorer()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	first := q.ShouldRespond("user1", "What do you think about this stream today?", "Aria", base)
	if !first.Respond {
		t.Fatalf("first ShouldRespond() = %+v, want respond=true", first)
	}

	second := q.ShouldRespond("user1", "Another great question for you today?", "Aria", base.Add(10*time.Second))
	if second.Respond || second.Reason != "cooldown" {
		t.Fatalf("second ShouldRespond() = %+v, want cooldown", second)
	}

	third := q.ShouldRespond("user1", "Yet another great question for you today?", "Aria", base.Add(31*time.Second))
	if !third.Respond {
		t.Fatalf("third ShouldRespond() = %+v, want respond=true after cooldown elapses", third)
	}
}

func TestShouldRespondLowScoreIsGated(t *testing.T) {
	q := NewQualityScorer()
	got := q.ShouldRespond("user1", "hi", "Aria", time.Now())
	if got.Respond {
		t.Fatalf("ShouldRespond() = %+v, want respond=false for a bare low-score message", got)
	}
	if got.Reason != "quality_score_too_low" {
		t.Fatalf("Reason = %q, want quality_score_too_low", got.Reason)
	}
}
