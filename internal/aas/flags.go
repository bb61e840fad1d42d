package aas

// Travel types stored in Reachability.TravelType (low 24 bits).
const (
	TravelInvalid      = 1
	TravelWalk         = 2
	TravelCrouch       = 3
	TravelBarrierJump  = 4
	TravelJump         = 5
	TravelLadder       = 6
	TravelWalkOffLedge = 7
	TravelSwim         = 8
	TravelWaterJump    = 9
	TravelTeleport     = 10
	TravelElevator     = 11
	TravelRocketJump   = 12
	TravelBFGJump      = 13
	TravelGrappleHook  = 14
	TravelDoubleJump   = 15
	TravelRampJump     = 16
	TravelStrafeJump   = 17
	TravelJumpPad      = 18
	TravelFuncBob      = 19

	TravelTypeMask = 0xFFFFFF

	// High bits of a travel type restrict the reachability to one team.
	TravelFlagNotTeam1 = 1 << 24
	TravelFlagNotTeam2 = 2 << 24
)

// Area content bits (AreaSettings.Contents).
const (
	ContentsWater         = 1
	ContentsLava          = 2
	ContentsSlime         = 4
	ContentsClusterPortal = 8
	ContentsTelePortal    = 16
	ContentsRoutePortal   = 32
	ContentsTeleporter    = 64
	ContentsJumpPad       = 128
	ContentsDoNotEnter    = 256
	ContentsViewPortal    = 512
	ContentsMover         = 1024
)

// Area flags (AreaSettings.AreaFlags). The low bits come from the file,
// the rest are derived by ComputeExtraAreaData.
const (
	AreaGrounded        = 1
	AreaLadder          = 2
	AreaLiquid          = 4
	AreaDisabled        = 8
	AreaBridge          = 16
	AreaLedge           = 1 << 10
	AreaWall            = 1 << 11
	AreaJunk            = 1 << 12
	AreaInclinedFloor   = 1 << 13
	AreaSlidableRamp    = 1 << 14
	AreaSkipCollision16 = 1 << 20
	AreaSkipCollision32 = 1 << 21
	AreaSkipCollision48 = 1 << 22
	AreaNoFall          = 1 << 25
)

// Presence types.
const (
	PresenceNone   = 1
	PresenceNormal = 2
	PresenceCrouch = 4
)

// Face flags.
const (
	FaceSolid         = 1
	FaceLadder        = 2
	FaceGround        = 4
	FaceGap           = 8
	FaceLiquid        = 16
	FaceLiquidSurface = 32
	FaceBridge        = 64
)

// TravelFlags select which movement techniques a route query may use.
type TravelFlags int

const (
	TFLInvalid      TravelFlags = 0x00000001
	TFLWalk         TravelFlags = 0x00000002
	TFLCrouch       TravelFlags = 0x00000004
	TFLBarrierJump  TravelFlags = 0x00000008
	TFLJump         TravelFlags = 0x00000010
	TFLLadder       TravelFlags = 0x00000020
	TFLWalkOffLedge TravelFlags = 0x00000080
	TFLSwim         TravelFlags = 0x00000100
	TFLWaterJump    TravelFlags = 0x00000200
	TFLTeleport     TravelFlags = 0x00000400
	TFLElevator     TravelFlags = 0x00000800
	TFLRocketJump   TravelFlags = 0x00001000
	TFLBFGJump      TravelFlags = 0x00002000
	TFLGrappleHook  TravelFlags = 0x00004000
	TFLDoubleJump   TravelFlags = 0x00008000
	TFLRampJump     TravelFlags = 0x00010000
	TFLStrafeJump   TravelFlags = 0x00020000
	TFLJumpPad      TravelFlags = 0x00040000
	TFLAir          TravelFlags = 0x00080000
	TFLWater        TravelFlags = 0x00100000
	TFLSlime        TravelFlags = 0x00200000
	TFLLava         TravelFlags = 0x00400000
	TFLDoNotEnter   TravelFlags = 0x00800000
	TFLFuncBob      TravelFlags = 0x01000000
	TFLFlight       TravelFlags = 0x02000000
	TFLBridge       TravelFlags = 0x04000000
	TFLNotTeam1     TravelFlags = 0x08000000
	TFLNotTeam2     TravelFlags = 0x10000000

	TFLDefault = TFLWalk | TFLCrouch | TFLBarrierJump | TFLJump | TFLLadder |
		TFLWalkOffLedge | TFLSwim | TFLWaterJump | TFLTeleport | TFLElevator |
		TFLAir | TFLWater | TFLJumpPad | TFLFuncBob
)

var travelTypeFlags = [...]TravelFlags{
	TravelInvalid:      TFLInvalid,
	TravelWalk:         TFLWalk,
	TravelCrouch:       TFLCrouch,
	TravelBarrierJump:  TFLBarrierJump,
	TravelJump:         TFLJump,
	TravelLadder:       TFLLadder,
	TravelWalkOffLedge: TFLWalkOffLedge,
	TravelSwim:         TFLSwim,
	TravelWaterJump:    TFLWaterJump,
	TravelTeleport:     TFLTeleport,
	TravelElevator:     TFLElevator,
	TravelRocketJump:   TFLRocketJump,
	TravelBFGJump:      TFLBFGJump,
	TravelGrappleHook:  TFLGrappleHook,
	TravelDoubleJump:   TFLDoubleJump,
	TravelRampJump:     TFLRampJump,
	TravelStrafeJump:   TFLStrafeJump,
	TravelJumpPad:      TFLJumpPad,
	TravelFuncBob:      TFLFuncBob,
}

// TravelFlagForType maps a raw reachability travel type, team bits
// included, onto the travel flags a route query must allow to use it.
func TravelFlagForType(travelType int) TravelFlags {
	var flags TravelFlags
	if travelType&TravelFlagNotTeam1 != 0 {
		flags |= TFLNotTeam1
	}
	if travelType&TravelFlagNotTeam2 != 0 {
		flags |= TFLNotTeam2
	}
	travelType &= TravelTypeMask
	if travelType < 0 || travelType >= len(travelTypeFlags) || travelTypeFlags[travelType] == 0 {
		return flags | TFLInvalid
	}
	return flags | travelTypeFlags[travelType]
}

// ContentsTravelFlags returns the travel flags implied by entering an area
// with the given contents.
func ContentsTravelFlags(contents int) TravelFlags {
	var flags TravelFlags
	switch {
	case contents&ContentsWater != 0:
		flags = TFLWater
	case contents&ContentsSlime != 0:
		flags = TFLSlime
	case contents&ContentsLava != 0:
		flags = TFLLava
	default:
		flags = TFLAir
	}
	if contents&ContentsDoNotEnter != 0 {
		flags |= TFLDoNotEnter
	}
	return flags
}
