package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/7aylabs/popchain/internal/crypto"
)

func TestValidRSSI(t *testing.T) {
	assert.True(t, ValidRSSI(-100))
	assert.True(t, ValidRSSI(0))
	assert.True(t, ValidRSSI(-50))
	assert.False(t, ValidRSSI(-101))
	assert.False(t, ValidRSSI(-128))
}

func TestSlashAmountNeverExceedsStake(t *testing.T) {
	assert.Equal(t, uint64(500), SlashAmount(10_000, SlashMinorPct))
	assert.Equal(t, uint64(2_000), SlashAmount(10_000, SlashModeratePct))
	assert.Equal(t, uint64(10_000), SlashAmount(10_000, SlashCriticalPct))

	for _, stake := range []uint64{0, 1, 99, 10_000, 1 << 40} {
		for pct := uint8(0); pct <= 100; pct += 5 {
			assert.LessOrEqual(t, SlashAmount(stake, pct), stake)
		}
	}
}

func TestEvidenceRewardCapped(t *testing.T) {
	assert.Equal(t, uint64(500), EvidenceReward(5_000))
	assert.Equal(t, EvidenceRewardMax, EvidenceReward(100_000))

	for _, slash := range []uint64{0, 10, 5_000, 100_000, 1 << 40} {
		assert.LessOrEqual(t, EvidenceReward(slash), EvidenceRewardMax)
	}
}

func TestMaxSubnodes(t *testing.T) {
	assert.Equal(t, uint32(2), MaxSubnodes(45))
	assert.Equal(t, uint32(5), MaxSubnodes(100))
	assert.Equal(t, uint32(8), MaxSubnodes(200))
	assert.Equal(t, uint32(1), MaxSubnodes(0))

	// Monotone non-decreasing and bounded by 8.
	prev := uint32(0)
	for pct := uint32(0); pct <= 500; pct++ {
		n := MaxSubnodes(pct)
		assert.GreaterOrEqual(t, n, prev)
		assert.LessOrEqual(t, n, MaxSubnodesCap)
		prev = n
	}
}

func TestProtocolErrorTags(t *testing.T) {
	assert.True(t, ErrChainBindingInvalid.IsSecurityViolation())
	assert.True(t, ErrSignatureInvalid.IsSecurityViolation())
	assert.False(t, ErrInvalidRssi.IsSecurityViolation())

	assert.True(t, ErrStakeConcentration.IsSlashable())
	assert.True(t, ErrDuplicateVote.IsSlashable())
	assert.True(t, ErrInvalidEvidence.IsSlashable())
	assert.False(t, ErrNotFound.IsSlashable())

	// Every kind renders a message.
	for e := ErrInvalidRssi; e <= ErrScanFailed; e++ {
		assert.NotEmpty(t, e.Error())
	}
}

func TestPaddedNames(t *testing.T) {
	d := ScannedDevice{
		Vendor:     PadVendor("Apple"),
		DeviceName: PadDeviceName("HomeNetwork"),
	}
	assert.Equal(t, "Apple", d.VendorString())
	assert.Equal(t, "HomeNetwork", d.DeviceNameString())

	empty := ScannedDevice{}
	assert.Empty(t, empty.VendorString())
	assert.Empty(t, empty.DeviceNameString())
}

func TestInherentRoundTrip(t *testing.T) {
	freq := uint16(2412)
	data := &DeviceScanInherentData{
		Devices: []ScannedDevice{
			{
				MacHash:      crypto.RepeatByte(0x01),
				RSSI:         -42,
				SignalType:   SignalWifi,
				DeviceType:   DeviceIPhone,
				Vendor:       PadVendor("Apple"),
				DeviceName:   PadDeviceName("iPhone 14"),
				FrequencyMHz: &freq,
				DetectedAt:   1_700_000_000,
			},
			{
				MacHash:    crypto.RepeatByte(0x02),
				RSSI:       -77,
				SignalType: SignalBle,
				DeviceType: DeviceUnknown,
				DetectedAt: 1_700_000_001,
			},
		},
		ReporterPosition: Position{X: 100, Y: -200, Z: 30},
		ScanTimestamp:    1_700_000_002,
	}

	raw, err := EncodeInherent(data)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	decoded, err := DecodeInherent(raw)
	require.NoError(t, err)
	require.Len(t, decoded.Devices, 2)

	assert.Equal(t, data.Devices[0].MacHash, decoded.Devices[0].MacHash)
	assert.Equal(t, int8(-42), decoded.Devices[0].RSSI)
	assert.Equal(t, SignalWifi, decoded.Devices[0].SignalType)
	assert.Equal(t, "Apple", decoded.Devices[0].VendorString())
	assert.Equal(t, "iPhone 14", decoded.Devices[0].DeviceNameString())
	require.NotNil(t, decoded.Devices[0].FrequencyMHz)
	assert.Equal(t, freq, *decoded.Devices[0].FrequencyMHz)

	assert.Nil(t, decoded.Devices[1].Vendor)
	assert.Nil(t, decoded.Devices[1].FrequencyMHz)

	assert.Equal(t, data.ReporterPosition, decoded.ReporterPosition)
	assert.Equal(t, data.ScanTimestamp, decoded.ScanTimestamp)
}

func TestInherentDecodeGarbageFails(t *testing.T) {
	_, err := DecodeInherent([]byte{0xff, 0x01, 0x02})
	assert.Error(t, err)
}

func TestInherentIdentifier(t *testing.T) {
	assert.Equal(t, [8]byte{'d', 'e', 'v', 's', 'c', 'a', 'n', '0'}, InherentIdentifier)
	assert.Equal(t, "devscan0", string(InherentIdentifier[:]))
}
