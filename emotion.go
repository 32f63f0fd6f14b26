package relengine

import (
	"strings"
	"time"
)

// ──────────────────────────────────────────────
// Emotion Inference — lightweight lexical scoring
// ──────────────────────────────────────────────

// EmotionScore pairs an emotion with its normalized co-occurrence score.
type EmotionScore struct {
	Emotion EmotionalState `json:"emotion"`
	Score   float64        `json:"score"`
}

// EmotionReading is the result of analyzing one message.
type EmotionReading struct {
	Dominant          EmotionalState `json:"dominant"`
	Confidence        float64        `json:"confidence"` // 0.0-1.0
	SubEmotions       []EmotionScore `json:"sub_emotions"`
	Triggers          []string       `json:"triggers"`
	Intensity         float64        `json:"intensity"` // 0.0-1.0
	EstimatedDuration time.Duration  `json:"estimated_duration"`
}

// EmotionAnalyzer infers an emotional reading from free text and the
// prior relationship context. The lexical default stands in for NLU;
// substitute a stronger analyzer without touching the state machine.
type EmotionAnalyzer interface {
	Infer(text string, prior *RelationshipContext) (*EmotionReading, error)
}

type weightedIntensifier struct {
	phrase string
	weight float64
}

// LexicalEmotionAnalyzer scores emotions via curated keyword lexicons.
// Matching is case-insensitive and whole-word, applied to both the raw
// text and a context-shift narrative derived from recent history.
type LexicalEmotionAnalyzer struct {
	lexicons     map[EmotionalState][]string
	intensifiers []weightedIntensifier
}

// NewLexicalEmotionAnalyzer creates an analyzer with the built-in lexicons.
func NewLexicalEmotionAnalyzer() *LexicalEmotionAnalyzer {
	return &LexicalEmotionAnalyzer{
		lexicons:     defaultEmotionLexicons(),
		intensifiers: defaultIntensifiers(),
	}
}

func defaultEmotionLexicons() map[EmotionalState][]string {
	return map[EmotionalState][]string{
		EmotionHappy: {
			"happy", "delighted", "glad", "joyful", "pleased", "excited",
			"great", "wonderful", "awesome", "love", "thrilled", "grateful",
		},
		EmotionSad: {
			"sad", "unhappy", "down", "depressed", "miserable", "disappointed",
			"heartbroken", "lonely", "gloomy", "crying",
		},
		EmotionAngry: {
			"angry", "furious", "mad", "outraged", "hate", "annoyed",
			"irritated", "livid", "hostile", "resentful",
		},
		EmotionFrustrated: {
			"frustrated", "stuck", "fed up", "annoying", "useless",
			"tired of", "giving up", "blocked", "helpless", "exasperated",
		},
	}
}

func defaultIntensifiers() []weightedIntensifier {
	return []weightedIntensifier{
		// Strong degree adverbs
		{phrase: "extremely", weight: 0.4}, {phrase: "absolutely", weight: 0.4},
		{phrase: "incredibly", weight: 0.4}, {phrase: "completely", weight: 0.4},
		{phrase: "totally", weight: 0.4}, {phrase: "utterly", weight: 0.4},
		// Mild degree adverbs
		{phrase: "very", weight: 0.2}, {phrase: "really", weight: 0.2},
		{phrase: "so", weight: 0.2}, {phrase: "quite", weight: 0.15},
		// Urgency
		{phrase: "urgent", weight: 0.3}, {phrase: "immediately", weight: 0.3},
		{phrase: "right now", weight: 0.3}, {phrase: "asap", weight: 0.3},
	}
}

// SetLexicon replaces the word list for one emotion.
func (a *LexicalEmotionAnalyzer) SetLexicon(emotion EmotionalState, words []string) {
	a.lexicons[emotion] = words
}

// AddWords appends words to one emotion's lexicon.
func (a *LexicalEmotionAnalyzer) AddWords(emotion EmotionalState, words ...string) {
	a.lexicons[emotion] = append(a.lexicons[emotion], words...)
}

// Infer analyzes text against the prior context.
// Fails with a validation error when text is blank or the prior
// emotional state is not a recognized value.
func (a *LexicalEmotionAnalyzer) Infer(text string, prior *RelationshipContext) (*EmotionReading, error) {
	if strings.TrimSpace(text) == "" {
		return nil, NewValidationError("emotion inference requires non-empty text")
	}
	if prior != nil && !prior.EmotionalState.Valid() {
		return nil, NewValidationError("prior context has unrecognized emotional state " + string(prior.EmotionalState))
	}

	corpus := normalizeWords(text)
	if narrative := contextShiftNarrative(prior); narrative != "" {
		corpus += " " + narrative
	}

	// Co-occurrence counts per emotion
	counts := make(map[EmotionalState]int, len(AllEmotions))
	total := 0
	for _, emotion := range AllEmotions {
		n := 0
		for _, word := range a.lexicons[emotion] {
			n += countWholeWord(corpus, word)
		}
		counts[emotion] = n
		total += n
	}

	// Normalize and rank; ties resolve in declaration order because the
	// comparison is strictly greater-than.
	sub := make([]EmotionScore, 0, len(AllEmotions))
	dominant := AllEmotions[0]
	top, second := 0.0, 0.0
	for _, emotion := range AllEmotions {
		score := 0.0
		if total > 0 {
			score = float64(counts[emotion]) / float64(total)
		}
		sub = append(sub, EmotionScore{Emotion: emotion, Score: score})
		if score > top {
			second = top
			top = score
			dominant = emotion
		} else if score > second {
			second = score
		}
	}

	confidence := clamp01(0.3 + 0.4*(top-second) + 0.3*top)

	return &EmotionReading{
		Dominant:          dominant,
		Confidence:        confidence,
		SubEmotions:       sub,
		Triggers:          extractTriggers(text),
		Intensity:         a.measureIntensity(text),
		EstimatedDuration: estimateDuration(dominant, tierOf(prior)),
	}, nil
}

// measureIntensity sums fixed weights for lexical intensifiers and
// repeated punctuation, clamped to [0,1].
func (a *LexicalEmotionAnalyzer) measureIntensity(text string) float64 {
	corpus := normalizeWords(text)
	intensity := 0.0
	for _, in := range a.intensifiers {
		intensity += float64(countWholeWord(corpus, in.phrase)) * in.weight
	}
	// Repeated punctuation signals urgency
	intensity += float64(strings.Count(text, "!!")) * 0.25
	intensity += float64(strings.Count(text, "??")) * 0.25
	return clamp01(intensity)
}

// causalConnectives introduce trigger phrases; longer connectives are
// listed first so "because of" wins over "because".
var causalConnectives = []string{
	"because of", "because", "due to", "triggered by", "when", "after", "during",
}

// extractTriggers collects phrases following causal connectives,
// deduplicated, order of first appearance preserved. Text is split
// into clauses first so a trigger never runs past its own sentence.
func extractTriggers(text string) []string {
	var triggers []string
	seen := make(map[string]bool)

	for _, clause := range splitClauses(text) {
		norm := normalizeWords(clause)
		if norm == "" {
			continue
		}
		padded := " " + norm + " "
		for _, conn := range causalConnectives {
			idx := strings.Index(padded, " "+conn+" ")
			if idx < 0 {
				continue
			}
			phrase := strings.TrimSpace(padded[idx+1+len(conn):])
			if phrase != "" && !seen[phrase] {
				seen[phrase] = true
				triggers = append(triggers, phrase)
			}
			break
		}
	}
	return triggers
}

func splitClauses(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		switch r {
		case '.', '!', '?', ';', ',', '\n':
			return true
		}
		return false
	})
}

// contextShiftNarrative renders recent emotional history as plain words
// so the lexicon can pick up on persisting or shifting moods.
func contextShiftNarrative(prior *RelationshipContext) string {
	if prior == nil || len(prior.InteractionHistory) == 0 {
		return ""
	}
	history := prior.InteractionHistory
	if len(history) > 5 {
		history = history[len(history)-5:]
	}
	var parts []string
	for _, rec := range history {
		if rec.EmotionalState.Valid() {
			parts = append(parts, strings.ToLower(string(rec.EmotionalState)))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return "recently the user seemed " + strings.Join(parts, " then ")
}

// Base duration per emotion: anger burns out fastest, sadness lingers.
var emotionBaseDuration = map[EmotionalState]time.Duration{
	EmotionAngry:      10 * time.Minute,
	EmotionFrustrated: 20 * time.Minute,
	EmotionHappy:      30 * time.Minute,
	EmotionSad:        60 * time.Minute,
}

// Closer ties amplify emotional duration, adversarial ties dampen it.
var tierDurationMultiplier = map[RelationshipTier]float64{
	TierFamily:       1.5,
	TierPartner:      1.5,
	TierFriend:       1.3,
	TierAcquaintance: 1.1,
	TierStranger:     1.0,
	TierBusiness:     1.0,
	TierUnknown:      1.0,
	TierCompetitor:   0.8,
	TierAdversary:    0.6,
	TierEnemy:        0.6,
}

func estimateDuration(emotion EmotionalState, tier RelationshipTier) time.Duration {
	base, ok := emotionBaseDuration[emotion]
	if !ok {
		base = 30 * time.Minute
	}
	mult, ok := tierDurationMultiplier[tier]
	if !ok {
		mult = 1.0
	}
	return time.Duration(float64(base) * mult)
}

func tierOf(prior *RelationshipContext) RelationshipTier {
	if prior == nil {
		return TierStranger
	}
	return prior.RelationshipState
}

// ShouldCommitEmotion applies the hysteresis rule that prevents state
// flapping from low-confidence single-message reads: commit when
// confidence > 0.7, or when the emotion changed and confidence > 0.5.
func ShouldCommitEmotion(prior EmotionalState, reading *EmotionReading) bool {
	if reading.Confidence > 0.7 {
		return true
	}
	return reading.Dominant != prior && reading.Confidence > 0.5
}

// normalizeWords lowercases text and strips punctuation so matching is
// whole-word regardless of surrounding symbols.
func normalizeWords(text string) string {
	lower := strings.ToLower(text)
	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '\'' {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// countWholeWord counts whole-word (or whole-phrase) occurrences of
// needle inside an already normalized corpus.
func countWholeWord(corpus, needle string) int {
	padded := " " + corpus + " "
	return strings.Count(padded, " "+needle+" ")
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
