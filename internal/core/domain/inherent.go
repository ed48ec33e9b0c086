package domain

import (
	"bytes"
	"math/big"

	"github.com/centrifuge/go-substrate-rpc-client/v4/scale"
)

// InherentIdentifier tags the device-scan inherent in the block body.
// Process-wide constant, exactly 8 bytes.
var InherentIdentifier = [8]byte{'d', 'e', 'v', 's', 'c', 'a', 'n', '0'}

// DeviceScanInherentData is the unsigned, authority-injected payload the
// block author assembles from the scan buffer. SCALE field order is
// devices, reporter_position, scan_timestamp.
type DeviceScanInherentData struct {
	Devices          []ScannedDevice `json:"devices"`
	ReporterPosition Position        `json:"reporter_position"`
	ScanTimestamp    uint64          `json:"scan_timestamp"`
}

func (p Position) Encode(enc scale.Encoder) error {
	if err := enc.Encode(p.X); err != nil {
		return err
	}
	if err := enc.Encode(p.Y); err != nil {
		return err
	}
	return enc.Encode(p.Z)
}

func (p *Position) Decode(dec scale.Decoder) error {
	if err := dec.Decode(&p.X); err != nil {
		return err
	}
	if err := dec.Decode(&p.Y); err != nil {
		return err
	}
	return dec.Decode(&p.Z)
}

func (d ScannedDevice) Encode(enc scale.Encoder) error {
	if err := enc.Write(d.MacHash[:]); err != nil {
		return err
	}
	if err := enc.Encode(d.RSSI); err != nil {
		return err
	}
	if err := enc.PushByte(byte(d.SignalType)); err != nil {
		return err
	}
	if err := enc.PushByte(byte(d.DeviceType)); err != nil {
		return err
	}
	if err := encodeOptionBytes(enc, d.Vendor != nil, func() error { return enc.Write(d.Vendor[:]) }); err != nil {
		return err
	}
	if err := encodeOptionBytes(enc, d.DeviceName != nil, func() error { return enc.Write(d.DeviceName[:]) }); err != nil {
		return err
	}
	if d.FrequencyMHz == nil {
		if err := enc.PushByte(0); err != nil {
			return err
		}
	} else {
		if err := enc.PushByte(1); err != nil {
			return err
		}
		if err := enc.Encode(*d.FrequencyMHz); err != nil {
			return err
		}
	}
	return enc.Encode(d.DetectedAt)
}

func (d *ScannedDevice) Decode(dec scale.Decoder) error {
	if err := dec.Read(d.MacHash[:]); err != nil {
		return err
	}
	if err := dec.Decode(&d.RSSI); err != nil {
		return err
	}
	b, err := dec.ReadOneByte()
	if err != nil {
		return err
	}
	d.SignalType = SignalType(b)
	if b, err = dec.ReadOneByte(); err != nil {
		return err
	}
	d.DeviceType = DeviceType(b)

	present, err := dec.ReadOneByte()
	if err != nil {
		return err
	}
	if present == 1 {
		d.Vendor = new([32]byte)
		if err := dec.Read(d.Vendor[:]); err != nil {
			return err
		}
	} else {
		d.Vendor = nil
	}

	if present, err = dec.ReadOneByte(); err != nil {
		return err
	}
	if present == 1 {
		d.DeviceName = new([64]byte)
		if err := dec.Read(d.DeviceName[:]); err != nil {
			return err
		}
	} else {
		d.DeviceName = nil
	}

	if present, err = dec.ReadOneByte(); err != nil {
		return err
	}
	if present == 1 {
		d.FrequencyMHz = new(uint16)
		if err := dec.Decode(d.FrequencyMHz); err != nil {
			return err
		}
	} else {
		d.FrequencyMHz = nil
	}

	return dec.Decode(&d.DetectedAt)
}

func (i DeviceScanInherentData) Encode(enc scale.Encoder) error {
	if err := enc.EncodeUintCompact(*big.NewInt(int64(len(i.Devices)))); err != nil {
		return err
	}
	for _, d := range i.Devices {
		if err := d.Encode(enc); err != nil {
			return err
		}
	}
	if err := i.ReporterPosition.Encode(enc); err != nil {
		return err
	}
	return enc.Encode(i.ScanTimestamp)
}

func (i *DeviceScanInherentData) Decode(dec scale.Decoder) error {
	n, err := dec.DecodeUintCompact()
	if err != nil {
		return err
	}
	count := n.Int64()
	i.Devices = make([]ScannedDevice, 0, count)
	for k := int64(0); k < count; k++ {
		var d ScannedDevice
		if err := d.Decode(dec); err != nil {
			return err
		}
		i.Devices = append(i.Devices, d)
	}
	if err := i.ReporterPosition.Decode(dec); err != nil {
		return err
	}
	return dec.Decode(&i.ScanTimestamp)
}

func encodeOptionBytes(enc scale.Encoder, present bool, write func() error) error {
	if !present {
		return enc.PushByte(0)
	}
	if err := enc.PushByte(1); err != nil {
		return err
	}
	return write()
}

// EncodeInherent serializes the payload to SCALE bytes.
func EncodeInherent(data *DeviceScanInherentData) ([]byte, error) {
	var buf bytes.Buffer
	enc := scale.NewEncoder(&buf)
	if err := data.Encode(*enc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeInherent parses SCALE bytes back into the payload.
func DecodeInherent(raw []byte) (*DeviceScanInherentData, error) {
	dec := scale.NewDecoder(bytes.NewReader(raw))
	var data DeviceScanInherentData
	if err := data.Decode(*dec); err != nil {
		return nil, err
	}
	return &data, nil
}
