package services

import (
	"github.com/novatrust/bio-gateway/internal/core/domain"
	"github.com/novatrust/bio-gateway/internal/core/ports"
)

// Validator classifies terminal proof results. Hard-fail indicators reject
// outright. Sub-threshold scores and cross-check disagreements go to manual
// review only when no hard-fail condition is present. Pure, no side effects.
type Validator struct {
	matchThreshold      float64
	confidenceThreshold float64
}

// NewValidator returns a proof validator with the configured score thresholds
func NewValidator(matchThreshold, confidenceThreshold float64) ports.ProofValidator {
	return &Validator{
		matchThreshold:      matchThreshold,
		confidenceThreshold: confidenceThreshold,
	}
}

// Classify evaluates the rule set over a terminal proof result
func (v *Validator) Classify(result *domain.ProofResult) domain.Verdict {
	var rejects []string
	if !result.LivenessPassed {
		rejects = append(rejects, domain.ReasonLivenessFailed)
	}
	if result.SelfieInjection {
		rejects = append(rejects, domain.ReasonSelfieInjection)
	}
	if result.DocumentInjection {
		rejects = append(rejects, domain.ReasonDocumentInjection)
	}
	if result.PresentationAttack {
		rejects = append(rejects, domain.ReasonPresentationAttack)
	}
	if result.DocumentExpired {
		rejects = append(rejects, domain.ReasonDocumentExpired)
	}
	if len(rejects) > 0 {
		return domain.Verdict{Classification: domain.ClassificationReject, Reasons: rejects}
	}

	var warnings []string
	if result.MatchScore < v.matchThreshold {
		warnings = append(warnings, domain.ReasonLowMatchScore)
	}
	if result.ConfidenceScore < v.confidenceThreshold {
		warnings = append(warnings, domain.ReasonLowConfidence)
	}
	if !result.BarcodeConsistent {
		warnings = append(warnings, domain.ReasonBarcodeMismatch)
	}
	if !result.OCRConsistent {
		warnings = append(warnings, domain.ReasonOCRMismatch)
	}
	if len(warnings) > 0 {
		return domain.Verdict{Classification: domain.ClassificationManualReview, Reasons: warnings}
	}

	return domain.Verdict{Classification: domain.ClassificationAccept}
}
