// Package personas defines the built-in role-play call partners. The list
// is static; the dashboard renders it directly and no network fetch is
// involved in choosing a partner.
package personas

// Persona is a simulated call counterpart for sales role-play practice.
type Persona struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Company  string `json:"company"`
	Scenario string `json:"scenario"`
	Initials string `json:"initials"`

	// ElevenLabsAgentID links the persona to a conversational voice agent.
	// Personas without one cannot take voice calls.
	ElevenLabsAgentID string `json:"elevenlabs_agent_id,omitempty"`
}

// VoiceEnabled reports whether the persona can take a voice call.
func (p Persona) VoiceEnabled() bool {
	return p.ElevenLabsAgentID != ""
}

var builtin = []Persona{
	{
		ID:       "1",
		Name:     "Alex Dupont",
		Role:     "VP of Sales Operations",
		Company:  "CustomerCenter",
		Scenario: "Alex is unhappy with their current data provider. Your goal is to understand their needs and pitch a solution that fits their requirements.",
		Initials: "AD",
	},
	{
		ID:       "2",
		Name:     "Sarah Chen",
		Role:     "IT Director",
		Company:  "TechGrowth Inc",
		Scenario: "Sarah wants to modernize her company's infrastructure. She needs a scalable, secure solution for handling sensitive data.",
		Initials: "SC",
	},
	{
		ID:       "3",
		Name:     "Michael Ross",
		Role:     "Operations Manager",
		Company:  "LogisticsPro",
		Scenario: "Michael needs to streamline his logistics processes. He is interested in solutions that can integrate multiple data sources.",
		Initials: "MR",
	},
	{
		ID:       "4",
		Name:     "Laura García",
		Role:     "Customer Success Lead",
		Company:  "SaaS Solutions",
		Scenario: "Laura is evaluating new tooling for her support team. She wants to improve response times and customer satisfaction.",
		Initials: "LG",
	},
	{
		ID:                "5",
		Name:              "José Martínez",
		Role:              "COO",
		Company:           "Snaps",
		Scenario:          "José is looking for a way to streamline his company's internal processes and improve communication between departments.",
		Initials:          "JM",
		ElevenLabsAgentID: "tT9mhGJdnZVWHGHHQMZ4",
	},
}

// All returns the built-in persona list. Callers receive a copy; the
// built-in set is immutable.
func All() []Persona {
	out := make([]Persona, len(builtin))
	copy(out, builtin)
	return out
}

// ByID looks up a persona by its identifier.
func ByID(id string) (Persona, bool) {
	for _, p := range builtin {
		if p.ID == id {
			return p, true
		}
	}
	return Persona{}, false
}
