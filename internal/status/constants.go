package status

// Status block layout constants.
// These values define the mirror protocol and MUST NOT be configurable.

// ---- BLOCK GEOMETRY ----

// SlotsPerBlock is the fixed number of registers in one status block.
const SlotsPerBlock = 20

// ---- SLOT INDICES ----

// SlotStatusCode holds the inferred status code.
const SlotStatusCode = 0

// SlotAutoCheck holds 1 while auto-check is enabled.
const SlotAutoCheck = 1

// SlotClickCount holds click_count (saturating).
const SlotClickCount = 2

// SlotSuccessfulClicks holds successful_clicks (saturating).
const SlotSuccessfulClicks = 3

// SlotFailedClicks holds failed_clicks (saturating).
const SlotFailedClicks = 4

// SlotStartVisible holds 1 while the start control is visible.
const SlotStartVisible = 5

// SlotStopVisible holds 1 while the stop control is visible.
const SlotStopVisible = 6

// SlotUptimeMinutes holds process uptime in minutes (saturating).
const SlotUptimeMinutes = 7

// LiveSlots is the number of leading slots carrying live values.
const LiveSlots = 8

// ---- RESERVED RANGE ----

// Slots 8–10 are reserved for future use.
const SlotReservedStart = 8
const SlotReservedEnd = 10

// ---- NAME ----

// SlotNameStart is the first slot used for the resource name.
const SlotNameStart = 11

// SlotNameSlots is the number of slots reserved for the name.
const SlotNameSlots = 8

// SlotNameEnd is the last slot used for the name (inclusive).
const SlotNameEnd = SlotNameStart + SlotNameSlots - 1

// ---- LIMITS ----

// NameMaxChars is the maximum number of ASCII characters stored for the name.
const NameMaxChars = 16

// ---- STATUS CODES ----

const (
	CodeUnknown  uint16 = 0
	CodeOffline  uint16 = 1
	CodeStarting uint16 = 2
	CodeRunning  uint16 = 3
)
