// Package ingest writes register blocks using the Raw Ingest v1 protocol.
package ingest

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

const (
	magicHi byte = 0x52 // 'R'
	magicLo byte = 0x49 // 'I'

	versionV1 byte = 0x01

	// holding registers
	areaRegisters byte = 3

	respOK       byte = 0x00
	respRejected byte = 0x01

	headerLen = 10
)

// EndpointClient is stateless: one packet per connection.
type EndpointClient struct {
	endpoint string
	timeout  time.Duration
	memoryID uint16
}

type Config struct {
	Endpoint string
	Timeout  time.Duration

	// MemoryID, when non-zero, replaces the unit id in the packet header.
	MemoryID uint16
}

func NewEndpointClient(cfg Config) (*EndpointClient, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("mirror ingest: endpoint required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	return &EndpointClient{
		endpoint: cfg.Endpoint,
		timeout:  cfg.Timeout,
		memoryID: cfg.MemoryID,
	}, nil
}

func (c *EndpointClient) Close() error { return nil }

func (c *EndpointClient) WriteRegisters(unitID uint8, addr uint16, regs []uint16) error {
	unit := uint16(unitID)
	if c.memoryID != 0 {
		unit = c.memoryID
	}
	pkt := buildPacketV1(areaRegisters, unit, addr, uint16(len(regs)), packRegisters(regs))
	return c.send(pkt)
}

func (c *EndpointClient) send(pkt []byte) error {
	conn, err := net.DialTimeout("tcp", c.endpoint, c.timeout)
	if err != nil {
		return fmt.Errorf("mirror ingest: dial: %w", err)
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(c.timeout))
	if _, err := conn.Write(pkt); err != nil {
		return fmt.Errorf("mirror ingest: write: %w", err)
	}

	var resp [1]byte
	if _, err := io.ReadFull(conn, resp[:]); err != nil {
		return fmt.Errorf("mirror ingest: read status: %w", err)
	}

	switch resp[0] {
	case respOK:
		return nil
	case respRejected:
		return errors.New("mirror ingest: rejected")
	default:
		return fmt.Errorf("mirror ingest: unknown status 0x%02x", resp[0])
	}
}

// Layout:
// 0–1  Magic "RI"
// 2    Version (0x01)
// 3    Area
// 4–5  Unit
// 6–7  Address
// 8–9  Count
// 10+  Payload, big-endian registers
func buildPacketV1(area byte, unit, addr, count uint16, payload []byte) []byte {
	pkt := make([]byte, headerLen, headerLen+len(payload))

	pkt[0] = magicHi
	pkt[1] = magicLo
	pkt[2] = versionV1
	pkt[3] = area

	putU16(pkt[4:6], unit)
	putU16(pkt[6:8], addr)
	putU16(pkt[8:10], count)

	return append(pkt, payload...)
}

func putU16(dst []byte, v uint16) {
	dst[0] = byte(v >> 8)
	dst[1] = byte(v)
}

func packRegisters(regs []uint16) []byte {
	out := make([]byte, len(regs)*2)
	for i, r := range regs {
		putU16(out[2*i:], r)
	}
	return out
}
