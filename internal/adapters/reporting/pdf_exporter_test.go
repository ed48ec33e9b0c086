package reporting

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/7aylabs/popchain/internal/core/domain"
	"github.com/7aylabs/popchain/internal/crypto"
)

func TestExportSurvey(t *testing.T) {
	summary := &SurveySummary{
		GeneratedAt:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		ReporterCount:   3,
		ActiveReporters: 2,
		DeviceCount:     5,
		StateCounts: map[domain.DeviceState]uint32{
			domain.DeviceActive:   3,
			domain.DeviceInactive: 1,
			domain.DeviceGhost:    1,
		},
		PendingCommits: 2,
		RevealCount:    4,
		TopDevices: []domain.TrackedDevice{
			{MacHash: crypto.RepeatByte(0x01), SignalType: domain.SignalWifi, Confidence: 84, State: domain.DeviceActive},
			{MacHash: crypto.RepeatByte(0x02), SignalType: domain.SignalBle, Confidence: 52, State: domain.DeviceInactive},
		},
	}

	pdf, err := NewPDFExporter().ExportSurvey(summary)
	require.NoError(t, err)
	assert.NotEmpty(t, pdf)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")), "output should be a PDF document")
}

func TestExportSurveyEmpty(t *testing.T) {
	pdf, err := NewPDFExporter().ExportSurvey(&SurveySummary{
		GeneratedAt: time.Now(),
		StateCounts: map[domain.DeviceState]uint32{},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, pdf)
}
