package worldstate

// Op selects how a goal slot compares against a candidate slot.
type Op uint8

const (
	EQ Op = iota
	NE
	GT
	GE
	LS
	LE
)

var opNames = [...]string{"EQ", "NE", "GT", "GE", "LS", "LE"}

func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return "Op(?)"
}

func (op Op) valid() bool { return op <= LE }

// UintSlot names an unsigned slot.
type UintSlot uint8

const (
	GoalItemWaitTime UintSlot = iota
	SimilarWorldStateInstanceID

	NumUintSlots
)

// ShortSlot names a signed 16-bit slot.
type ShortSlot uint8

const (
	Health ShortSlot = iota
	Armor
	RawDamageToKill
	PotentialDangerDamage
	ThreatInflictedDamage

	NumShortSlots
)

// BoolSlot names a single bit slot.
type BoolSlot uint8

const (
	HasQuad BoolSlot = iota
	HasShell
	EnemyHasQuad
	HasThreateningEnemy
	HasJustPickedGoalItem

	HasPositionalAdvantage
	CanHitEnemy
	EnemyCanHit
	HasJustKilledEnemy

	IsRunningAway
	HasRunAway

	HasReactedToDanger
	HasReactedToThreat

	IsReactingToEnemyLost
	HasReactedToEnemyLost
	MightSeeLostEnemyAfterTurn

	HasJustTeleported
	HasJustTouchedJumppad
	HasJustEnteredElevator

	HasPendingCoverSpot
	HasPendingRunAwayTeleport
	HasPendingRunAwayJumppad
	HasPendingRunAwayElevator

	HasGoodSniperRangeWeapons
	HasGoodFarRangeWeapons
	HasGoodMiddleRangeWeapons
	HasGoodCloseRangeWeapons

	EnemyHasGoodSniperRangeWeapons
	EnemyHasGoodFarRangeWeapons
	EnemyHasGoodMiddleRangeWeapons
	EnemyHasGoodCloseRangeWeapons

	NumBoolSlots
)

// OriginSlot names a quantized origin slot.
type OriginSlot uint8

const (
	BotOrigin OriginSlot = iota
	EnemyOrigin
	NavTargetOrigin
	PendingOrigin

	DangerHitPoint
	DangerDirection

	DodgeDangerSpot
	ThreatPossibleOrigin
	LostEnemyLastSeenOrigin

	NumOriginSlots
)

// LazySlot names an origin computed on first access.
type LazySlot uint8

const (
	SniperRangeTacticalSpot LazySlot = iota
	FarRangeTacticalSpot
	MiddleRangeTacticalSpot
	CloseRangeTacticalSpot
	CoverSpot

	NumLazySlots
)

// DualLazySlot names a pair of origins computed together on first access.
type DualLazySlot uint8

const (
	RunAwayTeleport DualLazySlot = iota
	RunAwayJumppad
	RunAwayElevator

	NumDualLazySlots
)

var uintNames = [NumUintSlots]string{
	"GoalItemWaitTime",
	"SimilarWorldStateInstanceID",
}

var shortNames = [NumShortSlots]string{
	"Health",
	"Armor",
	"RawDamageToKill",
	"PotentialDangerDamage",
	"ThreatInflictedDamage",
}

var boolNames = [NumBoolSlots]string{
	"HasQuad",
	"HasShell",
	"EnemyHasQuad",
	"HasThreateningEnemy",
	"HasJustPickedGoalItem",
	"HasPositionalAdvantage",
	"CanHitEnemy",
	"EnemyCanHit",
	"HasJustKilledEnemy",
	"IsRunningAway",
	"HasRunAway",
	"HasReactedToDanger",
	"HasReactedToThreat",
	"IsReactingToEnemyLost",
	"HasReactedToEnemyLost",
	"MightSeeLostEnemyAfterTurn",
	"HasJustTeleported",
	"HasJustTouchedJumppad",
	"HasJustEnteredElevator",
	"HasPendingCoverSpot",
	"HasPendingRunAwayTeleport",
	"HasPendingRunAwayJumppad",
	"HasPendingRunAwayElevator",
	"HasGoodSniperRangeWeapons",
	"HasGoodFarRangeWeapons",
	"HasGoodMiddleRangeWeapons",
	"HasGoodCloseRangeWeapons",
	"EnemyHasGoodSniperRangeWeapons",
	"EnemyHasGoodFarRangeWeapons",
	"EnemyHasGoodMiddleRangeWeapons",
	"EnemyHasGoodCloseRangeWeapons",
}

var originNames = [NumOriginSlots]string{
	"BotOrigin",
	"EnemyOrigin",
	"NavTargetOrigin",
	"PendingOrigin",
	"DangerHitPoint",
	"DangerDirection",
	"DodgeDangerSpot",
	"ThreatPossibleOrigin",
	"LostEnemyLastSeenOrigin",
}

var lazyNames = [NumLazySlots]string{
	"SniperRangeTacticalSpot",
	"FarRangeTacticalSpot",
	"MiddleRangeTacticalSpot",
	"CloseRangeTacticalSpot",
	"CoverSpot",
}

var dualLazyNames = [NumDualLazySlots]string{
	"RunAwayTeleportOrigin",
	"RunAwayJumppadOrigin",
	"RunAwayElevatorOrigin",
}

func (s UintSlot) String() string     { return uintNames[s] }
func (s ShortSlot) String() string    { return shortNames[s] }
func (s BoolSlot) String() string     { return boolNames[s] }
func (s OriginSlot) String() string   { return originNames[s] }
func (s LazySlot) String() string     { return lazyNames[s] }
func (s DualLazySlot) String() string { return dualLazyNames[s] }
