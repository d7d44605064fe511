package mirror

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tamzrod/panel-keeper/internal/status"
)

// endpointClient is the exact contract the block writer uses.
type endpointClient interface {
	WriteRegisters(unitID uint8, addr uint16, regs []uint16) error
	Close() error
}

// Plan says where the block lives.
type Plan struct {
	Endpoint string
	UnitID   uint8
	Address  uint16
	Name     string
}

// BlockWriter delivers snapshots into a status register block.
// It receives a snapshot and writes it verbatim.
//
// BlockWriter is not safe for concurrent use; the Mirror goroutine owns it.
type BlockWriter struct {
	plan Plan
	cli  endpointClient

	needFull bool
	last     []uint16
	nameRegs []uint16
}

// NewBlockWriter asserts the full block on its first write.
func NewBlockWriter(plan Plan, cli endpointClient) (*BlockWriter, error) {
	if cli == nil {
		return nil, fmt.Errorf("mirror: missing client for endpoint %s", plan.Endpoint)
	}
	if int(plan.Address)+status.SlotsPerBlock > 0x10000 {
		return nil, fmt.Errorf("mirror: block at %d overflows the register space", plan.Address)
	}
	return &BlockWriter{
		plan:     plan,
		cli:      cli,
		needFull: true,
		nameRegs: status.EncodeName(plan.Name),
	}, nil
}

// Write delivers one snapshot. On any write failure, the next call
// re-asserts the full block.
func (w *BlockWriter) Write(s status.Snapshot) error {
	regs := status.Encode(s)

	// ------------------------------------------------------------
	// Full block write (identity re-assert)
	// ------------------------------------------------------------
	if w.needFull {
		full := w.fullBlockRegs(regs)
		if err := w.cli.WriteRegisters(w.plan.UnitID, w.plan.Address, full); err != nil {
			w.needFull = true
			return fmt.Errorf("mirror: full block write failed: %w", err)
		}
		w.needFull = false
		w.last = append([]uint16(nil), regs[:status.LiveSlots]...)
		return nil
	}

	// ------------------------------------------------------------
	// Incremental: changed live slots only
	// ------------------------------------------------------------
	var errs []string
	for slot := 0; slot < status.LiveSlots; slot++ {
		if w.last[slot] == regs[slot] {
			continue
		}
		addr := w.plan.Address + uint16(slot)
		if err := w.cli.WriteRegisters(w.plan.UnitID, addr, []uint16{regs[slot]}); err != nil {
			errs = append(errs, fmt.Sprintf("slot%d write failed: %v", slot, err))
			continue
		}
		w.last[slot] = regs[slot]
	}

	if len(errs) > 0 {
		// partial failure: the remote block is in doubt
		w.needFull = true
		return errors.New("mirror: " + strings.Join(errs, " | "))
	}
	return nil
}

// Close releases the endpoint client.
func (w *BlockWriter) Close() error { return w.cli.Close() }

func (w *BlockWriter) fullBlockRegs(live []uint16) []uint16 {
	regs := make([]uint16, status.SlotsPerBlock)
	copy(regs[:status.LiveSlots], live[:status.LiveSlots])

	// reserved slots stay zero; the name sits after them
	for i := 0; i < status.SlotNameSlots && i < len(w.nameRegs); i++ {
		regs[status.SlotNameStart+i] = w.nameRegs[i]
	}
	return regs
}
