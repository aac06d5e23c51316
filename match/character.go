package match

import "sort"

// Character identifies a playable freelancer by its canonical name.
type Character string

const (
	CharacterNone Character = ""
	// CharacterPendingWillFill marks a seat that asked for an automatic
	// fill; it must never survive into a launched roster.
	CharacterPendingWillFill Character = "PendingWillFill"
	// CharacterTestFreelancer is an internal QA character, never legal in
	// real matches.
	CharacterTestFreelancer Character = "TestFreelancer"
)

// Placeholder reports whether the character is one of the two reserved
// non-playable markers.
func (c Character) Placeholder() bool {
	return c == CharacterPendingWillFill || c == CharacterTestFreelancer
}

type Role int

const (
	RoleTank Role = iota
	RoleSupport
	RoleAssassin
)

func (r Role) String() string {
	switch r {
	case RoleTank:
		return "Tank"
	case RoleSupport:
		return "Support"
	case RoleAssassin:
		return "Assassin"
	}
	return "Unknown"
}

// Catalog is the set of characters legal for play, with their roles.
type Catalog struct {
	roles map[Character]Role
}

func NewCatalog(roles map[Character]Role) Catalog {
	m := make(map[Character]Role, len(roles))
	for ch, r := range roles {
		m[ch] = r
	}
	return Catalog{roles: m}
}

// DefaultCatalog returns the stock character set.
func DefaultCatalog() Catalog {
	return NewCatalog(map[Character]Role{
		"Bulwark": RoleTank,
		"Aegis":   RoleTank,
		"Ramhorn": RoleTank,
		"Titan":   RoleTank,
		"Oracle":  RoleSupport,
		"Mender":  RoleSupport,
		"Lumen":   RoleSupport,
		"Harmony": RoleSupport,
		"Ranger":  RoleAssassin,
		"Viper":   RoleAssassin,
		"Shade":   RoleAssassin,
		"Tempest": RoleAssassin,
		"Ember":   RoleAssassin,
		"Frost":   RoleAssassin,
		"Havoc":   RoleAssassin,
	})
}

func (c Catalog) Contains(ch Character) bool {
	_, ok := c.roles[ch]
	return ok
}

func (c Catalog) Role(ch Character) (Role, bool) {
	r, ok := c.roles[ch]
	return r, ok
}

// HumanPlayable reports whether a human seat may keep this character.
func (c Catalog) HumanPlayable(ch Character) bool {
	if ch.Placeholder() {
		return false
	}
	return c.Contains(ch)
}

// ByRole returns every character of the given role in stable order.
func (c Catalog) ByRole(r Role) []Character {
	var out []Character
	for ch, cr := range c.roles {
		if cr == r {
			out = append(out, ch)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// All returns every playable character in stable order.
func (c Catalog) All() []Character {
	out := make([]Character, 0, len(c.roles))
	for ch := range c.roles {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
