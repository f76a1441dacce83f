package session

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"
)

// HardwareType identifies a class of peripheral in the manifest.
type HardwareType uint8

const (
	HWAccelerometer HardwareType = 0x01
	HWGPS           HardwareType = 0x02
	HWDisplay       HardwareType = 0x03
	HWStorage       HardwareType = 0x04
	HWRTC           HardwareType = 0x05
	HWIMU           HardwareType = 0x06
)

// ConnType identifies how a peripheral is attached.
type ConnType uint8

const (
	ConnI2C     ConnType = 0x01
	ConnSPI     ConnType = 0x02
	ConnUART    ConnType = 0x03
	ConnGPIO    ConnType = 0x04
	ConnBuiltin ConnType = 0x05
)

const (
	// manifestMagic marks the manifest sidecar.
	manifestMagic = "OPHW"

	// maxManifestItems bounds the declared peripheral list.
	maxManifestItems = 32

	// maxIdentifierLen bounds a single identifier string.
	maxIdentifierLen = 63
)

// Item declares one peripheral: what it is, how it is connected, and a
// free-form identifier such as "ICM20948@0x69".
type Item struct {
	Type HardwareType
	Conn ConnType
	ID   string
}

// Manifest is the optional per-session hardware declaration, written once
// before data begins. Descriptive metadata only; frame decoding does not
// depend on it.
type Manifest struct {
	Items []Item
}

// Add appends a peripheral declaration. Returns false when the manifest
// is full. Identifiers are truncated to the format limit.
func (m *Manifest) Add(t HardwareType, c ConnType, id string) bool {
	if len(m.Items) >= maxManifestItems {
		return false
	}
	if len(id) > maxIdentifierLen {
		id = id[:maxIdentifierLen]
	}
	m.Items = append(m.Items, Item{Type: t, Conn: c, ID: id})
	return true
}

// Encode serializes the manifest:
//
//	"OPHW" | count u8 | items… | crc32 u32
//
// Each item: type u8, conn u8, id length u8, id bytes. The CRC covers
// every preceding byte.
func (m *Manifest) Encode() []byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, manifestMagic...)
	buf = append(buf, byte(len(m.Items)))

	for _, item := range m.Items {
		buf = append(buf, byte(item.Type), byte(item.Conn), byte(len(item.ID)))
		buf = append(buf, item.ID...)
	}

	crc := crc32.ChecksumIEEE(buf)
	buf = binary.LittleEndian.AppendUint32(buf, crc)
	return buf
}

// DecodeManifest parses and verifies an encoded manifest.
func DecodeManifest(data []byte) (*Manifest, error) {
	if len(data) < len(manifestMagic)+1+4 {
		return nil, fmt.Errorf("manifest too short: %d bytes", len(data))
	}
	if string(data[:len(manifestMagic)]) != manifestMagic {
		return nil, fmt.Errorf("bad manifest magic %q", data[:len(manifestMagic)])
	}

	body := data[:len(data)-4]
	expected := binary.LittleEndian.Uint32(data[len(data)-4:])
	if actual := crc32.ChecksumIEEE(body); actual != expected {
		return nil, fmt.Errorf("manifest checksum mismatch: expected %08x, got %08x", expected, actual)
	}

	count := int(data[len(manifestMagic)])
	offset := len(manifestMagic) + 1

	m := &Manifest{}
	for i := 0; i < count; i++ {
		if offset+3 > len(body) {
			return nil, fmt.Errorf("manifest item %d truncated", i)
		}
		item := Item{
			Type: HardwareType(body[offset]),
			Conn: ConnType(body[offset+1]),
		}
		idLen := int(body[offset+2])
		offset += 3

		if offset+idLen > len(body) {
			return nil, fmt.Errorf("manifest item %d identifier truncated", i)
		}
		item.ID = string(body[offset : offset+idLen])
		offset += idLen

		m.Items = append(m.Items, item)
	}

	return m, nil
}

// WriteFile writes the encoded manifest to path.
func (m *Manifest) WriteFile(path string) error {
	if err := os.WriteFile(path, m.Encode(), 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// ReadManifestFile reads and decodes a manifest sidecar.
func ReadManifestFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return DecodeManifest(data)
}
