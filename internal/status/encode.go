package status

import "math"

// Encode converts a Snapshot into the live slots of a status block.
// The returned slice has SlotsPerBlock registers; name and reserved
// slots are zero.
// No IO. No side effects.
func Encode(s Snapshot) []uint16 {
	regs := make([]uint16, SlotsPerBlock)

	regs[SlotStatusCode] = s.Status.Code()
	regs[SlotAutoCheck] = flag(s.AutoCheckEnabled)
	regs[SlotClickCount] = saturate(s.ClickCount)
	regs[SlotSuccessfulClicks] = saturate(s.SuccessfulClicks)
	regs[SlotFailedClicks] = saturate(s.FailedClicks)
	regs[SlotStartVisible] = flag(s.StartVisible)
	regs[SlotStopVisible] = flag(s.StopVisible)
	if s.UptimeSeconds > 0 {
		regs[SlotUptimeMinutes] = saturate(uint64(s.UptimeSeconds / 60))
	}

	return regs
}

// EncodeName packs up to NameMaxChars ASCII characters into SlotNameSlots
// registers, two bytes per register, big-endian. Non-printable bytes
// become '?'.
func EncodeName(name string) []uint16 {
	out := make([]uint16, SlotNameSlots)

	b := []byte(name)
	if len(b) > NameMaxChars {
		b = b[:NameMaxChars]
	}

	for i := 0; i < len(b); i++ {
		if b[i] < 0x20 || b[i] > 0x7E {
			b[i] = '?'
		}
	}

	for i := 0; i < NameMaxChars; i += 2 {
		var hi, lo byte
		if i < len(b) {
			hi = b[i]
		}
		if i+1 < len(b) {
			lo = b[i+1]
		}
		out[i/2] = uint16(hi)<<8 | uint16(lo)
	}

	return out
}

func flag(v bool) uint16 {
	if v {
		return 1
	}
	return 0
}

func saturate(v uint64) uint16 {
	if v > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(v)
}
