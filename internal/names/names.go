// Package names generates the pseudonymous display names shown as an
// idea's author, e.g. "Swift Otter".
package names

import (
	"math/rand"
)

var adjectives = []string{
	"Red", "Swift", "Clever", "Mighty", "Golden", "Silver",
	"Brave", "Quiet", "Curious", "Gentle", "Bold", "Lucky",
}

var animals = []string{
	"Otter", "Falcon", "Badger", "Lynx", "Heron", "Marmot",
	"Walrus", "Gecko", "Puffin", "Ocelot", "Ibex", "Raven",
	"Tapir", "Wombat", "Osprey", "Beaver",
}

// Generate returns a random two-part display name. Names are not
// unique and carry no identity; they exist only so listings read as
// written by someone.
func Generate() string {
	return adjectives[rand.Intn(len(adjectives))] + " " + animals[rand.Intn(len(animals))]
}
