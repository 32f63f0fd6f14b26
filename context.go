package relengine

import (
	"fmt"
	"time"
)

// ──────────────────────────────────────────────
// Relationship Context — per-user persisted record
// ──────────────────────────────────────────────

// RelationshipTier is the coarse-grained classification of the user
// relationship. It is the state machine's controlled variable.
type RelationshipTier string

const (
	TierStranger     RelationshipTier = "STRANGER"
	TierAcquaintance RelationshipTier = "ACQUAINTANCE"
	TierFriend       RelationshipTier = "FRIEND"
	TierFamily       RelationshipTier = "FAMILY"
	TierBusiness     RelationshipTier = "BUSINESS"
	TierPartner      RelationshipTier = "PARTNER"
	TierCompetitor   RelationshipTier = "COMPETITOR"
	TierAdversary    RelationshipTier = "ADVERSARY"
	TierEnemy        RelationshipTier = "ENEMY"
	TierUnknown      RelationshipTier = "UNKNOWN"
)

// Valid reports whether t is one of the declared tiers.
func (t RelationshipTier) Valid() bool {
	switch t {
	case TierStranger, TierAcquaintance, TierFriend, TierFamily, TierBusiness,
		TierPartner, TierCompetitor, TierAdversary, TierEnemy, TierUnknown:
		return true
	}
	return false
}

// PipelineStage is the engine's internal processing phase, distinct from
// the relationship tier.
type PipelineStage string

const (
	StageIdle            PipelineStage = "IDLE"
	StageMonitoring      PipelineStage = "MONITORING"
	StageEmotionAnalysis PipelineStage = "EMOTION_ANALYSIS"
	StageUserEvaluation  PipelineStage = "USER_EVALUATION"
	StageResponseMode    PipelineStage = "RESPONSE_MODE"
)

// Valid reports whether s is one of the declared pipeline stages.
func (s PipelineStage) Valid() bool {
	switch s {
	case StageIdle, StageMonitoring, StageEmotionAnalysis, StageUserEvaluation, StageResponseMode:
		return true
	}
	return false
}

// EmotionalState is the last inferred user emotion.
//
// Declaration order matters: ties in emotion scoring resolve to the
// earliest declared emotion.
type EmotionalState string

const (
	EmotionHappy      EmotionalState = "HAPPY"
	EmotionSad        EmotionalState = "SAD"
	EmotionAngry      EmotionalState = "ANGRY"
	EmotionFrustrated EmotionalState = "FRUSTRATED"
)

// AllEmotions lists every emotion in declaration order.
var AllEmotions = []EmotionalState{EmotionHappy, EmotionSad, EmotionAngry, EmotionFrustrated}

// Valid reports whether e is one of the declared emotions.
func (e EmotionalState) Valid() bool {
	switch e {
	case EmotionHappy, EmotionSad, EmotionAngry, EmotionFrustrated:
		return true
	}
	return false
}

// ResponseMode drives the engagement posture of the response layer.
type ResponseMode string

const (
	ResponseInitial       ResponseMode = "INITIAL"
	ResponseOngoing       ResponseMode = "ONGOING"
	ResponseDisengagement ResponseMode = "DISENGAGEMENT"
)

// MaxInteractionHistory bounds the per-user interaction log. Oldest
// entries are evicted first (FIFO trim, not time-based).
const MaxInteractionHistory = 100

// InteractionRecord is one entry in the per-user interaction history.
type InteractionRecord struct {
	ID             string         `json:"id,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
	Action         string         `json:"action"`
	EmotionalState EmotionalState `json:"emotional_state"`
	ResponseType   string         `json:"response_type"`
}

// StateChange is one accepted relationship-tier transition.
type StateChange struct {
	ID            string           `json:"id,omitempty"`
	PreviousState RelationshipTier `json:"previous_state"`
	NewState      RelationshipTier `json:"new_state"`
	Reason        string           `json:"reason"`
	Timestamp     time.Time        `json:"timestamp"`
}

// RelationshipContext is the persisted per-user relationship record.
// It is mutated only by the engine pipeline and persisted through a
// ContextStore; it is never deleted — termination resets the pipeline
// stage and response mode but preserves history and tier.
type RelationshipContext struct {
	UserID             string              `json:"user_id"`
	CurrentState       PipelineStage       `json:"current_state"`
	RelationshipState  RelationshipTier    `json:"relationship_state"`
	EmotionalState     EmotionalState      `json:"emotional_state"`
	ResponseMode       ResponseMode        `json:"response_mode"`
	CredibilityScore   float64             `json:"credibility_score"`
	LastInteraction    time.Time           `json:"last_interaction"`
	InteractionHistory []InteractionRecord `json:"interaction_history"`
	StateChangeLog     []StateChange       `json:"state_change_log"`
}

// NewRelationshipContext creates the default context for a first contact.
func NewRelationshipContext(userID string) *RelationshipContext {
	return &RelationshipContext{
		UserID:             userID,
		CurrentState:       StageIdle,
		RelationshipState:  TierStranger,
		EmotionalState:     EmotionHappy,
		ResponseMode:       ResponseInitial,
		CredibilityScore:   0,
		InteractionHistory: []InteractionRecord{},
		StateChangeLog:     []StateChange{},
	}
}

// AppendInteraction appends a record and trims the history to the most
// recent MaxInteractionHistory entries, oldest-first order preserved.
func (c *RelationshipContext) AppendInteraction(rec InteractionRecord) {
	c.InteractionHistory = append(c.InteractionHistory, rec)
	if n := len(c.InteractionHistory); n > MaxInteractionHistory {
		c.InteractionHistory = c.InteractionHistory[n-MaxInteractionHistory:]
	}
}

// RecordStateChange appends one log entry for an accepted transition.
func (c *RelationshipContext) RecordStateChange(change StateChange) {
	c.StateChangeLog = append(c.StateChangeLog, change)
}

// LastStateChange returns the most recent transition, or nil if the
// tier has never changed.
func (c *RelationshipContext) LastStateChange() *StateChange {
	if len(c.StateChangeLog) == 0 {
		return nil
	}
	last := c.StateChangeLog[len(c.StateChangeLog)-1]
	return &last
}

// Terminate handles an explicit end-of-engagement event: the pipeline
// returns to IDLE and the response mode resets, but history, tier and
// credibility are preserved.
func (c *RelationshipContext) Terminate() {
	c.CurrentState = StageIdle
	c.ResponseMode = ResponseInitial
}

// Validate checks the context invariants that must hold at every
// mutation boundary.
func (c *RelationshipContext) Validate() error {
	if c.UserID == "" {
		return NewValidationError("context user_id is empty")
	}
	if !c.CurrentState.Valid() {
		return NewValidationError(fmt.Sprintf("unknown pipeline stage %q", c.CurrentState))
	}
	if !c.RelationshipState.Valid() {
		return NewValidationError(fmt.Sprintf("unknown relationship tier %q", c.RelationshipState))
	}
	if !c.EmotionalState.Valid() {
		return NewValidationError(fmt.Sprintf("unknown emotional state %q", c.EmotionalState))
	}
	if c.CredibilityScore < 0 || c.CredibilityScore > 10 {
		return NewValidationError(fmt.Sprintf("credibility score %.2f outside [0,10]", c.CredibilityScore))
	}
	if len(c.InteractionHistory) > MaxInteractionHistory {
		return NewValidationError(fmt.Sprintf("interaction history length %d exceeds %d",
			len(c.InteractionHistory), MaxInteractionHistory))
	}
	return nil
}

// Clone returns a deep copy. The engine mutates clones only, so a
// failed evaluation never dirties the loaded context.
func (c *RelationshipContext) Clone() *RelationshipContext {
	cp := *c
	cp.InteractionHistory = make([]InteractionRecord, len(c.InteractionHistory))
	copy(cp.InteractionHistory, c.InteractionHistory)
	cp.StateChangeLog = make([]StateChange, len(c.StateChangeLog))
	copy(cp.StateChangeLog, c.StateChangeLog)
	return &cp
}
