package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPhases(t *testing.T) {
	phases := DefaultPhases("web_development")
	assert.Len(t, phases, 3)
	assert.Equal(t, "Planning & Wireframing", phases[0].Name)
	assert.Equal(t, "Testing & Deployment", phases[2].Name)
	for i, phase := range phases {
		assert.Equal(t, i, phase.Position)
		assert.Equal(t, "pending", phase.Status)
	}

	fallback := DefaultPhases("something_else")
	assert.Len(t, fallback, 1)
	assert.Equal(t, "Initial Phase", fallback[0].Name)
}

func TestMpesaTransactionTerminal(t *testing.T) {
	tx := MpesaTransaction{Status: StatusPending}
	assert.False(t, tx.Terminal())

	for _, status := range []string{StatusCompleted, StatusFailed, StatusCancelled, StatusInsufficient, StatusTimeout} {
		tx.Status = status
		assert.True(t, tx.Terminal(), status)
	}
}

func TestValidConsultationStatus(t *testing.T) {
	assert.True(t, ValidConsultationStatus(ConsultationPending))
	assert.True(t, ValidConsultationStatus(ConsultationRescheduled))
	assert.False(t, ValidConsultationStatus("archived"))
	assert.False(t, ValidConsultationStatus(""))
}
