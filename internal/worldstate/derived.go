package worldstate

import "math"

// Enemy distance bands.
const (
	FarRangeMax    = 2.5 * 900.0
	MiddleRangeMax = 900.0
	CloseRangeMax  = 175.0
)

// Armor rules of the default game type.
const (
	ArmorProtection  = 0.66
	ArmorDegradation = 0.66
)

// DamageToKill returns the damage needed to kill a target with health and
// armor. Armor absorbs protection of every damage point and loses
// degradation points per absorbed point.
func DamageToKill(health, armor, protection, degradation float64) float64 {
	if armor == 0 {
		return health
	}
	if protection == 1 {
		return math.Inf(1)
	}
	if degradation != 0 {
		damageToWipeArmor := armor / degradation
		healthDamageToWipeArmor := damageToWipeArmor * (1 - protection)
		if healthDamageToWipeArmor < health {
			return damageToWipeArmor + (health - healthDamageToWipeArmor)
		}
	}
	return health / (1 - protection)
}

func (s *State) DistanceToEnemy() float64 {
	return s.Origin(BotOrigin).DistanceTo(s.Origin(EnemyOrigin))
}

func (s *State) DistanceToNavTarget() float64 {
	return s.Origin(BotOrigin).DistanceTo(s.Origin(NavTargetOrigin))
}

func (s *State) EnemyIsOnSniperRange() bool { return s.DistanceToEnemy() > FarRangeMax }

func (s *State) EnemyIsOnFarRange() bool {
	d := s.DistanceToEnemy()
	return d > MiddleRangeMax && d <= FarRangeMax
}

func (s *State) EnemyIsOnMiddleRange() bool {
	d := s.DistanceToEnemy()
	return d > CloseRangeMax && d <= MiddleRangeMax
}

func (s *State) EnemyIsOnCloseRange() bool { return s.DistanceToEnemy() <= CloseRangeMax }

// DamageToBeKilled is the damage an enemy has to deal to kill the bot,
// accounting for powerups on both sides.
func (s *State) DamageToBeKilled() float64 {
	damage := DamageToKill(float64(s.Short(Health).Value()), float64(s.Short(Armor).Value()),
		ArmorProtection, ArmorDegradation)
	if s.Bool(HasShell).Value() {
		damage *= 4
	}
	if s.Bool(EnemyHasQuad).Value() {
		damage /= 4
	}
	return damage
}

// DamageToKill is the damage the bot has to deal to kill its enemy.
func (s *State) DamageToKill() float64 {
	damage := float64(s.Short(RawDamageToKill).Value())
	if s.Bool(HasQuad).Value() {
		damage /= 4
	}
	return damage
}

func (s *State) KillToBeKilledDamageRatio() float64 {
	return s.DamageToKill() / s.DamageToBeKilled()
}

// ResetTacticalSpots makes every lazy slot pending again.
func (s *State) ResetTacticalSpots() {
	for slot := LazySlot(0); slot < NumLazySlots; slot++ {
		s.Lazy(slot).Reset()
	}
	for slot := DualLazySlot(0); slot < NumDualLazySlots; slot++ {
		s.DualLazy(slot).Reset()
	}
}
