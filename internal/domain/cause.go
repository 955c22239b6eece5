package domain

import "fmt"

// Cause is the named reason of a kill, the "means of death" of the server log.
// The numeric value of every cause but CauseUnknown is its log code.
type Cause uint8

const (
	CauseUnknown Cause = iota
	CauseShotgun
	CauseGauntlet
	CauseMachinegun
	CauseGrenade
	CauseGrenadeSplash
	CauseRocket
	CauseRocketSplash
	CausePlasma
	CausePlasmaSplash
	CauseRailgun
	CauseLightning
	CauseBFG
	CauseBFGSplash
	CauseWater
	CauseSlime
	CauseLava
	CauseCrush
	CauseTelefrag
	CauseFalling
	CauseSuicide
	CauseTargetLaser
	CauseTriggerHurt
	CauseNail
	CauseChaingun
	CauseProximityMine
	CauseKamikaze
	CauseJuiced
	CauseGrapple
)

var causeNames = [...]string{
	CauseUnknown:       "Unknown",
	CauseShotgun:       "Shotgun",
	CauseGauntlet:      "Gauntlet",
	CauseMachinegun:    "Machinegun",
	CauseGrenade:       "Grenade",
	CauseGrenadeSplash: "Grenade Splash",
	CauseRocket:        "Rocket",
	CauseRocketSplash:  "Rocket Splash",
	CausePlasma:        "Plasma",
	CausePlasmaSplash:  "Plasma Splash",
	CauseRailgun:       "Railgun",
	CauseLightning:     "Lightning",
	CauseBFG:           "BFG",
	CauseBFGSplash:     "BFG Splash",
	CauseWater:         "Water",
	CauseSlime:         "Slime",
	CauseLava:          "Lava",
	CauseCrush:         "Crush",
	CauseTelefrag:      "Telefrag",
	CauseFalling:       "Falling",
	CauseSuicide:       "Suicide",
	CauseTargetLaser:   "Target Laser",
	CauseTriggerHurt:   "Trigger Hurt",
	CauseNail:          "Nail",
	CauseChaingun:      "Chaingun",
	CauseProximityMine: "Proximity Mine",
	CauseKamikaze:      "Kamikaze",
	CauseJuiced:        "Juiced",
	CauseGrapple:       "Grapple",
}

// CauseFromCode classifies a means of death code. It is total: codes outside 1..=28 are CauseUnknown.
func CauseFromCode(code uint32) Cause {
	if code == 0 || code > uint32(CauseGrapple) {
		return CauseUnknown
	}

	return Cause(code)
}

// Causes returns every cause, CauseUnknown first.
func Causes() []Cause {
	cs := make([]Cause, 0, len(causeNames))
	for c := range causeNames {
		cs = append(cs, Cause(c))
	}

	return cs
}

func (c Cause) String() string {
	if int(c) < len(causeNames) {
		return causeNames[c]
	}

	return causeNames[CauseUnknown]
}

func (c Cause) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Cause) UnmarshalText(b []byte) error {
	for i, name := range causeNames {
		if name == string(b) {
			*c = Cause(i)
			return nil
		}
	}

	return fmt.Errorf("unknown cause name %q", b)
}
