package salary

type Role string

const (
	RoleDeveloper Role = "developer"
	RoleEngineer  Role = "engineer"
	RoleGeneral   Role = "general"
)

type Seniority string

const (
	SeniorityUnknown Seniority = ""
	SeniorityJunior  Seniority = "junior"
	SeniorityMid     Seniority = "mid"
	SenioritySenior  Seniority = "senior"
)

// Criterion is one way a title can satisfy an anchor. Empty fields are not
// constrained.
type Criterion struct {
	Roles     []Role
	Seniority []Seniority
	Includes  []string
}

type Anchor struct {
	ID       string
	Label    string
	Source   string
	Minimum  float64
	Maximum  float64
	Median   float64
	Criteria []Criterion
}

var softwareSpecialties = []string{"full stack", "backend", "frontend"}

var defaultAnchors = []Anchor{
	{
		ID:       "gd-junior-software-developer",
		Label:    "Glassdoor Junior Software Developer",
		Source:   "glassdoor",
		Minimum:  68_000,
		Maximum:  121_000,
		Median:   90_000,
		Criteria: []Criterion{{Roles: []Role{RoleDeveloper}, Seniority: []Seniority{SeniorityJunior}, Includes: []string{"software"}}},
	},
	{
		ID:       "gd-junior-software-engineer",
		Label:    "Glassdoor Junior Software Engineer",
		Source:   "glassdoor",
		Minimum:  101_000,
		Maximum:  170_000,
		Median:   130_000,
		Criteria: []Criterion{{Roles: []Role{RoleEngineer}, Seniority: []Seniority{SeniorityJunior}, Includes: []string{"software"}}},
	},
	{
		ID:       "gd-senior-software-engineer",
		Label:    "Glassdoor Senior Software Engineer",
		Source:   "glassdoor",
		Minimum:  158_000,
		Maximum:  248_000,
		Median:   196_000,
		Criteria: []Criterion{{Roles: []Role{RoleEngineer}, Seniority: []Seniority{SenioritySenior}, Includes: []string{"software"}}},
	},
	{
		ID:       "gd-senior-software-developer",
		Label:    "Glassdoor Senior Software Developer",
		Source:   "glassdoor",
		Minimum:  140_000,
		Maximum:  215_000,
		Median:   172_000,
		Criteria: []Criterion{{Roles: []Role{RoleDeveloper}, Seniority: []Seniority{SenioritySenior}, Includes: []string{"software"}}},
	},
	{
		ID:      "gd-software-developer",
		Label:   "Glassdoor Software Developer",
		Source:  "glassdoor",
		Minimum: 95_000,
		Maximum: 155_000,
		Median:  121_000,
		Criteria: []Criterion{
			{Roles: []Role{RoleDeveloper}, Includes: []string{"software"}},
			{Roles: []Role{RoleDeveloper}, Includes: softwareSpecialties},
		},
	},
	{
		ID:      "gd-software-engineer",
		Label:   "Glassdoor Software Engineer",
		Source:  "glassdoor",
		Minimum: 118_000,
		Maximum: 188_000,
		Median:  148_000,
		Criteria: []Criterion{
			{Roles: []Role{RoleEngineer}, Includes: []string{"software"}},
			{Roles: []Role{RoleEngineer}, Includes: softwareSpecialties},
		},
	},
	{
		ID:      "indeed-software-engineer",
		Label:   "Indeed Software Engineer",
		Source:  "indeed",
		Minimum: 78_576,
		Maximum: 209_653,
		Median:  128_350,
		Criteria: []Criterion{
			{Roles: []Role{RoleEngineer, RoleDeveloper}, Includes: []string{"software", "swe"}},
			{Roles: []Role{RoleEngineer}, Includes: softwareSpecialties},
		},
	},
}

// DefaultAnchors returns a copy of the built-in reference bands in match
// order.
func DefaultAnchors() []Anchor {
	out := make([]Anchor, len(defaultAnchors))
	copy(out, defaultAnchors)
	return out
}
