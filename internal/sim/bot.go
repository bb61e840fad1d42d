package sim

import (
	"time"

	"arena-bots/server/internal/aas"
	"arena-bots/server/internal/geom"
	"arena-bots/server/internal/goals"
	"arena-bots/server/internal/roaming"
	"arena-bots/server/internal/worldstate"
)

// BotSpec describes a bot being added to an Engine.
type BotSpec struct {
	ID     int
	Name   string
	Origin geom.Vec3
	// Speed in units per second. Zero uses the engine default.
	Speed float64
	// Policy weighs nav entities for the bot. Nil weighs them by kind.
	Policy goals.Policy
}

// Bot is the simulated agent the engine drives.
type Bot struct {
	ID      int
	Name    string
	Origin  geom.Vec3
	Forward geom.Vec3
	Speed   float64

	CurrAreaNum     int
	GroundedAreaNum int

	Arbiter *goals.Arbiter
	Roaming *roaming.Selector
	State   worldstate.State

	// crossing is the reachability being travelled, if any.
	crossing *aas.Reachability

	roamTarget   geom.Vec3
	roamActive   bool
	roamDeadline time.Duration

	coverUntil time.Duration
	dirty      bool
}

func (b *Bot) absBounds() (geom.Vec3, geom.Vec3) {
	return b.Origin.Add(aas.PlayerBoxStandMins), b.Origin.Add(aas.PlayerBoxStandMaxs)
}

func (b *Bot) eye() geom.Vec3 {
	return b.Origin.Add(geom.V(0, 0, aas.PlayerViewHeight))
}

func (b *Bot) roamingAgent() roaming.Agent {
	return roaming.Agent{
		Origin:          b.Origin,
		CurrAreaNum:     b.CurrAreaNum,
		GroundedAreaNum: b.GroundedAreaNum,
		PreferredFlags:  aas.TFLDefault,
		AllowedFlags:    aas.TFLDefault,
	}
}

func (b *Bot) goalAgent() goals.Agent {
	return goals.Agent{
		ID:             b.ID,
		Origin:         b.Origin,
		Forward:        b.Forward,
		CurrAreaNum:    b.CurrAreaNum,
		PreferredFlags: aas.TFLDefault,
		AllowedFlags:   aas.TFLDefault,
		CanMove:        true,
	}
}

// BotStatus is a read-only view of a bot for debug output.
type BotStatus struct {
	ID         int       `json:"id"`
	Name       string    `json:"name"`
	Origin     geom.Vec3 `json:"origin"`
	AreaNum    int       `json:"areaNum"`
	Goal       string    `json:"goal,omitempty"`
	GoalOrigin geom.Vec3 `json:"goalOrigin,omitempty"`
	Roaming    bool      `json:"roaming"`
}

func (b *Bot) Status() BotStatus {
	st := BotStatus{ID: b.ID, Name: b.Name, Origin: b.Origin, AreaNum: b.CurrAreaNum, Roaming: b.roamActive}
	if goal := b.Arbiter.NavigationTarget(); goal != nil {
		st.Goal = goal.Name()
		st.GoalOrigin = goal.Origin()
	}
	return st
}
