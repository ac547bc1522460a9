package classification

// Group separates the national membership tiers from the candidacy entry tier.
type Group string

const (
	GroupCandidate Group = "candidatura"
	GroupMember    Group = "miembro"
)

// Tier describes a single classification level a researcher may hold.
type Tier struct {
	Key         string `json:"key"`         // stored value, e.g., "nivel_1"
	Name        string `json:"name"`        // display name, e.g., "Nivel I"
	Description string `json:"description"` // short description shown in forms
	Group       Group  `json:"group"`
	Rank        int    `json:"rank"` // ordering, lowest first
}

// DefinedTiers holds every statically defined classification tier, lowest rank first.
var DefinedTiers = []Tier{
	{
		Key:         "candidato",
		Name:        "Candidato",
		Description: "Investigador en etapa de candidatura.",
		Group:       GroupCandidate,
		Rank:        0,
	},
	{
		Key:         "nivel_1",
		Name:        "Nivel I",
		Description: "Primer nivel de membresía.",
		Group:       GroupMember,
		Rank:        1,
	},
	{
		Key:         "nivel_2",
		Name:        "Nivel II",
		Description: "Segundo nivel de membresía.",
		Group:       GroupMember,
		Rank:        2,
	},
	{
		Key:         "nivel_3",
		Name:        "Nivel III",
		Description: "Tercer nivel de membresía.",
		Group:       GroupMember,
		Rank:        3,
	},
	{
		Key:         "emerito",
		Name:        "Emérito",
		Description: "Distinción vitalicia.",
		Group:       GroupMember,
		Rank:        4,
	},
}

var (
	tiersByKey map[string]Tier
	tierKeys   []string
)

func init() {
	tiersByKey = make(map[string]Tier, len(DefinedTiers))
	for _, t := range DefinedTiers {
		tiersByKey[t.Key] = t
		tierKeys = append(tierKeys, t.Key)
	}
}

// GetAllTiers returns a copy of the defined tiers.
func GetAllTiers() []Tier {
	out := make([]Tier, len(DefinedTiers))
	copy(out, DefinedTiers)
	return out
}

// GetAllKeys returns a slice of all tier keys, lowest rank first.
func GetAllKeys() []string {
	keys := make([]string, len(tierKeys))
	copy(keys, tierKeys)
	return keys
}

// IsValidKey checks if a given tier key is defined
func IsValidKey(key string) bool {
	_, ok := tiersByKey[key]
	return ok
}

// GetTier retrieves a specific tier by its key.
// Returns the tier and true if found, otherwise an empty tier and false.
func GetTier(key string) (Tier, bool) {
	t, ok := tiersByKey[key]
	return t, ok
}
