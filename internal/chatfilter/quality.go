package chatfilter

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

const (
	lengthWeight     = 0.1
	questionWeight   = 0.3
	mentionWeight    = 0.2
	engagementWeight = 0.2
	uniquenessWeight = 0.2
	uniquenessValue  = 0.7

	minQualityScore    = 0.3
	defaultCooldown    = 30 * time.Second
	responseRetention  = 5 * time.Minute
)

// QualityVerdict is the result of a single ShouldRespond call.
type QualityVerdict struct {
	Respond bool
	Score   float64
	Reason  string
}

// QualityScorer tracks per-user last-response timestamps to enforce the
// response cooldown described in §4.3.
type QualityScorer struct {
	mu              sync.Mutex
	recentResponses map[string]time.Time
	cooldown        time.Duration
}

// NewQualityScorer builds a scorer using the default 30s cooldown.
func NewQualityScorer() *QualityScorer {
	return NewQualityScorerWithCooldown(defaultCooldown)
}

// NewQualityScorerWithCooldown builds a scorer with an operator-configured
// per-user response cooldown (config.Config.ChatCooldown).
func NewQualityScorerWithCooldown(cooldown time.Duration) *QualityScorer {
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	return &QualityScorer{recentResponses: make(map[string]time.Time), cooldown: cooldown}
}

// ShouldRespond gates on the cooldown, then scores the message. If respond
// is true, the user's last-response timestamp is updated before returning.
func (q *QualityScorer) ShouldRespond(userID, text, characterName string, now time.Time) QualityVerdict {
	uid := strings.ToLower(userID)

	q.mu.Lock()
	defer q.mu.Unlock()

	q.sweepOldResponses(now)

	if last, ok := q.recentResponses[uid]; ok && now.Sub(last) < q.cooldown {
		return QualityVerdict{false, 0, "cooldown"}
	}

	score := scoreMessage(text, characterName)
	if score >= minQualityScore {
		q.recentResponses[uid] = now
		return QualityVerdict{true, score, "quality_threshold_met"}
	}
	return QualityVerdict{false, score, "quality_score_too_low"}
}

func scoreMessage(text, characterName string) float64 {
	score := 0.0

	length := utf8.RuneCountInString(text)
	switch {
	case length >= 10 && length <= 200:
		score += lengthWeight * 1.0
	case (length >= 5 && length < 10) || (length > 200 && length <= 300):
		score += lengthWeight * 0.5
	default:
		score += lengthWeight * 0.1
	}

	if strings.Contains(text, "?") {
		score += questionWeight * 1.0
	}

	if characterName != "" && strings.Contains(strings.ToLower(text), strings.ToLower(characterName)) {
		score += mentionWeight * 1.0
	}

	exclamations := strings.Count(text, "!")
	switch {
	case exclamations >= 1 && exclamations <= 3:
		score += engagementWeight * 0.8
	case exclamations == 0:
		score += engagementWeight * 0.5
	}

	score += uniquenessWeight * uniquenessValue

	if score > 1.0 {
		score = 1.0
	}
	return score
}

func (q *QualityScorer) sweepOldResponses(now time.Time) {
	for uid, t := range q.recentResponses {
		if now.Sub(t) > responseRetention {
			delete(q.recentResponses, uid)
		}
	}
}
