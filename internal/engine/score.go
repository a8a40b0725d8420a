package engine

import "strings"

// Stage is the coarse qualification bucket used for routing and scoring.
type Stage string

const (
	StageNew       Stage = "NEW"
	StageQualified Stage = "QUALIFIED"
	StageWarm      Stage = "WARM"
	StageHot       Stage = "HOT"
)

// Classification markers recognized by the scoring bonuses. These are
// taxonomy labels the completion service is prompted to emit.
const (
	markerPain    = "nghien_nang" // high-intent / pain customer
	markerVIP     = "vip"         // high-value customer
	markerStress  = "stress"      // urgency / psychological pressure
	markerWarm    = "warm"
	markerWantBuy = "muon_mua"
)

// Score computes the 0–100 lead score. Monotonic in its inputs: adding
// contact info or escalating the stage never lowers the result.
func Score(phone, email string, stage Stage, classification string) int {
	score := 10 // floor for anyone who messaged at all

	// Contact info is the dominant signal.
	if phone != "" || email != "" {
		score += 50
	}

	// Classification bonuses are additive, not mutually exclusive.
	cls := strings.ToLower(classification)
	if strings.Contains(cls, markerPain) {
		score += 15
	}
	if strings.Contains(cls, markerVIP) {
		score += 20
	}
	if strings.Contains(cls, markerStress) {
		score += 10
	}

	switch stage {
	case StageHot:
		score += 20
	case StageWarm:
		score += 10
	case StageQualified:
		score += 5
	}

	if score > 100 {
		score = 100
	}
	return score
}

// DeriveStage recomputes the qualification stage fresh from one message's
// signals. Each rule can only raise the stage set by the previous one.
func DeriveStage(classification, intent, phone, email string) Stage {
	stage := StageNew

	cls := strings.ToLower(classification)
	if classification != "" && cls != "unknown" {
		stage = StageQualified
	}
	if strings.Contains(cls, markerWarm) || strings.Contains(strings.ToLower(intent), markerWantBuy) {
		stage = StageWarm
	}
	if phone != "" || email != "" {
		stage = StageHot
	}
	return stage
}
