package domain

import "time"

// ProofResult is the payload the provider returns once an operation reaches
// a terminal remote state. Immutable once recorded against an operation.
type ProofResult struct {
	ResultCode         int        `json:"resultCode"`
	CompletedAt        *time.Time `json:"completedAt"`
	LivenessPassed     bool       `json:"livenessPassed"`
	SelfieInjection    bool       `json:"selfieInjection"`
	DocumentInjection  bool       `json:"documentInjection"`
	PresentationAttack bool       `json:"presentationAttack"`
	DocumentExpired    bool       `json:"documentExpired"`
	MatchScore         float64    `json:"matchScore"`
	ConfidenceScore    float64    `json:"confidenceScore"`
	BarcodeConsistent  bool       `json:"barcodeConsistent"`
	OCRConsistent      bool       `json:"ocrConsistent"`
}

// Classification is the validator verdict over a terminal ProofResult
type Classification string

// Validator verdicts
const (
	ClassificationAccept       Classification = "accept"
	ClassificationReject       Classification = "reject"
	ClassificationManualReview Classification = "manual_review"
)

// Failure and review reasons attached to operations
const (
	ReasonLivenessFailed     = "LivenessFailed"
	ReasonSelfieInjection    = "SelfieInjectionDetected"
	ReasonDocumentInjection  = "DocumentInjectionDetected"
	ReasonPresentationAttack = "PresentationAttackDetected"
	ReasonDocumentExpired    = "DocumentExpired"
	ReasonLowMatchScore      = "MatchScoreBelowThreshold"
	ReasonLowConfidence      = "ConfidenceBelowThreshold"
	ReasonBarcodeMismatch    = "BarcodeCrossCheckMismatch"
	ReasonOCRMismatch        = "OCRCrossCheckMismatch"
	ReasonProviderRejected   = "ProviderRejected"
	ReasonOperationExpired   = "OperationExpired"
)

// Verdict couples a classification with its itemized reasons
type Verdict struct {
	Classification Classification
	Reasons        []string
}
