package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/novatrust/bio-gateway/internal/core/domain"
)

func goodResult() *domain.ProofResult {
	now := time.Now()
	return &domain.ProofResult{
		ResultCode:        domain.ResultCodeSuccess,
		CompletedAt:       &now,
		LivenessPassed:    true,
		MatchScore:        0.95,
		ConfidenceScore:   0.95,
		BarcodeConsistent: true,
		OCRConsistent:     true,
	}
}

func TestClassify(t *testing.T) {
	type expected struct {
		classification domain.Classification
		reasons        []string
	}
	type testConfig struct {
		name     string
		mutate   func(*domain.ProofResult)
		expected expected
	}

	for _, tc := range []testConfig{
		{
			name:     "all checks pass",
			mutate:   func(_ *domain.ProofResult) {},
			expected: expected{classification: domain.ClassificationAccept},
		},
		{
			name:   "liveness failure rejects regardless of match score",
			mutate: func(r *domain.ProofResult) { r.LivenessPassed = false; r.MatchScore = 0.99 },
			expected: expected{
				classification: domain.ClassificationReject,
				reasons:        []string{domain.ReasonLivenessFailed},
			},
		},
		{
			name:   "selfie injection rejects",
			mutate: func(r *domain.ProofResult) { r.SelfieInjection = true },
			expected: expected{
				classification: domain.ClassificationReject,
				reasons:        []string{domain.ReasonSelfieInjection},
			},
		},
		{
			name:   "document injection rejects",
			mutate: func(r *domain.ProofResult) { r.DocumentInjection = true },
			expected: expected{
				classification: domain.ClassificationReject,
				reasons:        []string{domain.ReasonDocumentInjection},
			},
		},
		{
			name:   "presentation attack rejects",
			mutate: func(r *domain.ProofResult) { r.PresentationAttack = true },
			expected: expected{
				classification: domain.ClassificationReject,
				reasons:        []string{domain.ReasonPresentationAttack},
			},
		},
		{
			name:   "expired document rejects",
			mutate: func(r *domain.ProofResult) { r.DocumentExpired = true },
			expected: expected{
				classification: domain.ClassificationReject,
				reasons:        []string{domain.ReasonDocumentExpired},
			},
		},
		{
			name:   "multiple hard failures are all itemized",
			mutate: func(r *domain.ProofResult) { r.LivenessPassed = false; r.SelfieInjection = true },
			expected: expected{
				classification: domain.ClassificationReject,
				reasons:        []string{domain.ReasonLivenessFailed, domain.ReasonSelfieInjection},
			},
		},
		{
			name:   "match score below threshold goes to manual review",
			mutate: func(r *domain.ProofResult) { r.MatchScore = 0.70 },
			expected: expected{
				classification: domain.ClassificationManualReview,
				reasons:        []string{domain.ReasonLowMatchScore},
			},
		},
		{
			name:   "confidence below threshold goes to manual review",
			mutate: func(r *domain.ProofResult) { r.ConfidenceScore = 0.80 },
			expected: expected{
				classification: domain.ClassificationManualReview,
				reasons:        []string{domain.ReasonLowConfidence},
			},
		},
		{
			name:   "barcode cross check mismatch goes to manual review",
			mutate: func(r *domain.ProofResult) { r.BarcodeConsistent = false },
			expected: expected{
				classification: domain.ClassificationManualReview,
				reasons:        []string{domain.ReasonBarcodeMismatch},
			},
		},
		{
			name:   "ocr cross check mismatch goes to manual review",
			mutate: func(r *domain.ProofResult) { r.OCRConsistent = false },
			expected: expected{
				classification: domain.ClassificationManualReview,
				reasons:        []string{domain.ReasonOCRMismatch},
			},
		},
		{
			name:   "hard failure wins over low scores",
			mutate: func(r *domain.ProofResult) { r.LivenessPassed = false; r.MatchScore = 0.50 },
			expected: expected{
				classification: domain.ClassificationReject,
				reasons:        []string{domain.ReasonLivenessFailed},
			},
		},
		{
			name:     "score exactly at threshold accepts",
			mutate:   func(r *domain.ProofResult) { r.MatchScore = 0.80; r.ConfidenceScore = 0.85 },
			expected: expected{classification: domain.ClassificationAccept},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			validator := NewValidator(0.80, 0.85)
			result := goodResult()
			tc.mutate(result)

			verdict := validator.Classify(result)
			assert.Equal(t, tc.expected.classification, verdict.Classification)
			assert.Equal(t, tc.expected.reasons, verdict.Reasons)
		})
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	validator := NewValidator(0.80, 0.85)
	result := goodResult()
	result.MatchScore = 0.70

	first := validator.Classify(result)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, validator.Classify(result))
	}
}
