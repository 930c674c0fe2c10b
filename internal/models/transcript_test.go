package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApplyModeOfTreatment(t *testing.T) {
	cases := []struct {
		mode           ModeOfTreatment
		amount         int
		processingTime ModeOfTreatment
	}{
		{ModeNormal, 1000, ModeNormal},
		{ModeFast, 2000, ModeFast},
		{ModeSuperFast, 3000, ModeSuperFast},
		{ModeVerification, 10000, ModeNormal},
	}
	for _, tc := range cases {
		request := TranscriptRequest{ModeOfTreatment: tc.mode, DeliveryMethod: DeliveryCollect}
		request.ApplyModeOfTreatment()
		assert.Equal(t, tc.amount, request.Amount, string(tc.mode))
		assert.Equal(t, tc.processingTime, request.ProcessingTime, string(tc.mode))
	}
}

func TestApplyModeOfTreatmentVerificationForcesEmailDelivery(t *testing.T) {
	request := TranscriptRequest{ModeOfTreatment: ModeVerification, DeliveryMethod: DeliveryCollect}
	request.ApplyModeOfTreatment()
	assert.Equal(t, DeliveryEmail, request.DeliveryMethod)
}

func TestIsOverdueBoundaries(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	superFast := TranscriptRequest{
		Status:          TranscriptProcessing,
		ModeOfTreatment: ModeSuperFast,
		DateOfRequest:   base,
	}
	assert.False(t, superFast.IsOverdue(base.Add(23*time.Hour)))
	assert.True(t, superFast.IsOverdue(base.Add(25*time.Hour)))

	fast := TranscriptRequest{Status: TranscriptProcessing, ModeOfTreatment: ModeFast, DateOfRequest: base}
	assert.False(t, fast.IsOverdue(base.Add(47*time.Hour)))
	assert.True(t, fast.IsOverdue(base.Add(49*time.Hour)))

	verification := TranscriptRequest{Status: TranscriptProcessing, ModeOfTreatment: ModeVerification, DateOfRequest: base}
	assert.False(t, verification.IsOverdue(base.Add(71*time.Hour)))
	assert.True(t, verification.IsOverdue(base.Add(73*time.Hour)))

	normal := TranscriptRequest{Status: TranscriptProcessing, ModeOfTreatment: ModeNormal, DateOfRequest: base}
	assert.False(t, normal.IsOverdue(base.Add(29*24*time.Hour)))
	assert.True(t, normal.IsOverdue(base.Add(31*24*time.Hour)))
}

func TestIsOverdueKeyedOnModeNotProcessingTime(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	// Verification maps processingTime to Normal but the 72h threshold still
	// follows the chosen tier.
	request := TranscriptRequest{Status: TranscriptProcessing, ModeOfTreatment: ModeVerification, DateOfRequest: base}
	request.ApplyModeOfTreatment()
	assert.Equal(t, ModeNormal, request.ProcessingTime)
	assert.True(t, request.IsOverdue(base.Add(80*time.Hour)))
}

func TestIsOverdueTerminalStates(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	completed := TranscriptRequest{Status: TranscriptCompleted, ModeOfTreatment: ModeSuperFast, DateOfRequest: base}
	assert.False(t, completed.IsOverdue(base.Add(1000*time.Hour)))

	failed := TranscriptRequest{Status: TranscriptFailed, ModeOfTreatment: ModeSuperFast, DateOfRequest: base}
	assert.False(t, failed.IsOverdue(base.Add(1000*time.Hour)))
}

func TestValidTranscriptLevel(t *testing.T) {
	for _, level := range []string{"L200", "L300", "L400", "L500", "L600", "L700"} {
		assert.True(t, ValidTranscriptLevel(level), level)
	}
	for _, level := range []string{"L100", "L800", "400", "l400", "L4000"} {
		assert.False(t, ValidTranscriptLevel(level), level)
	}
}
