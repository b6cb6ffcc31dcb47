package bridge

import (
	"github.com/Usernameusernamenotavailbleisnot/m00nv3il/chain"
)

// Bridge network ids of the two chains
const (
	SepoliaNetworkID  uint32 = 0
	MoonveilNetworkID uint32 = 22
)

// NetworkID returns the bridge network id of a chain name. Anything other
// than moonveil maps to sepolia.
func NetworkID(name string) uint32 {
	if name == chain.Moonveil {
		return MoonveilNetworkID
	}
	return SepoliaNetworkID
}

// Direction is a bridge route between the two networks
type Direction struct {
	Name   string
	Source string
	Target string
}

var (
	ToSepolia  = Direction{Name: "to_sepolia", Source: chain.Moonveil, Target: chain.Sepolia}
	ToMoonveil = Direction{Name: "to_moonveil", Source: chain.Sepolia, Target: chain.Moonveil}
)

// Directions returns every route in processing order
func Directions() []Direction {
	return []Direction{ToSepolia, ToMoonveil}
}

// DirectionByName looks a route up by its configuration key
func DirectionByName(name string) (Direction, bool) {
	for _, d := range Directions() {
		if d.Name == name {
			return d, true
		}
	}
	return Direction{}, false
}

// DestinationID returns the bridge network id of the route target
func (d Direction) DestinationID() uint32 {
	return NetworkID(d.Target)
}

func (d Direction) String() string {
	return d.Source + " -> " + d.Target
}
