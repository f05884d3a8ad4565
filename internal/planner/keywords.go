package planner

// category groups the patterns used to recognise a domain and the terms used
// to search for it.
type category struct {
	Name string
	// Triggers mark the category as relevant when found in profile text as
	// whole words. A trailing "*" matches any word starting with the stem.
	Triggers []string
	// Patterns are specific phrases that become search terms when found verbatim.
	Patterns []string
	// Pack is the fallback term set used when extraction comes back (near) empty.
	Pack []string
	// Broad terms replace specific ones on refinement.
	Broad []string
	// Programmes are the funding programmes the category usually fits.
	Programmes []string
}

const (
	programmeHorizon      = "Horizon Europe"
	programmeDigital      = "Digital Europe"
	programmeEU4Health    = "EU4Health"
	programmeLIFE         = "LIFE Programme"
	programmeEIC          = "EIC Accelerator"
	programmeErasmus      = "Erasmus+"
	programmeCEF          = "Connecting Europe Facility"
	programmeInnovationFd = "Innovation Fund"
)

var categories = []category{
	{
		Name:       "energy",
		Triggers:   []string{"energy", "power", "grid", "microgrid", "solar", "wind", "photovoltaic", "battery", "batteries", "hydrogen", "renewable", "electricity"},
		Patterns:   []string{"microgrid", "smart grid", "battery storage", "energy storage", "inverter", "photovoltaic", "solar", "wind", "hydrogen", "heat pump", "demand response", "energy efficiency"},
		Pack:       []string{"microgrid", "battery storage", "inverter", "smart grid", "renewable energy"},
		Broad:      []string{"clean energy", "energy transition", "renewable energy"},
		Programmes: []string{programmeHorizon, programmeLIFE, programmeInnovationFd},
	},
	{
		Name:       "artificial intelligence",
		Triggers:   []string{"artificial intelligence", "ai", "machine learning", "deep learning", "neural", "nlp"},
		Patterns:   []string{"machine learning", "deep learning", "neural networks", "natural language processing", "generative ai", "trustworthy ai"},
		Pack:       []string{"artificial intelligence", "machine learning", "trustworthy ai"},
		Broad:      []string{"artificial intelligence", "digital technologies"},
		Programmes: []string{programmeHorizon, programmeDigital},
	},
	{
		Name:       "computer vision",
		Triggers:   []string{"computer vision", "image recognition", "image analysis", "imaging"},
		Patterns:   []string{"image recognition", "medical imaging", "visual analytics", "object detection"},
		Pack:       []string{"computer vision", "image recognition", "visual analytics"},
		Broad:      []string{"artificial intelligence", "imaging"},
		Programmes: []string{programmeHorizon, programmeDigital},
	},
	{
		Name:       "data analytics",
		Triggers:   []string{"data analytics", "big data", "analytics", "data mining", "data science"},
		Patterns:   []string{"big data", "predictive analytics", "data mining", "data spaces"},
		Pack:       []string{"big data", "predictive analytics", "data spaces"},
		Broad:      []string{"data economy", "digital technologies"},
		Programmes: []string{programmeDigital},
	},
	{
		Name:       "cloud computing",
		Triggers:   []string{"cloud", "saas", "distributed systems", "edge computing"},
		Patterns:   []string{"cloud computing", "edge computing", "distributed systems", "cloud infrastructure"},
		Pack:       []string{"cloud computing", "edge computing", "cloud infrastructure"},
		Broad:      []string{"digital infrastructure", "digital technologies"},
		Programmes: []string{programmeDigital, programmeCEF},
	},
	{
		Name:       "cybersecurity",
		Triggers:   []string{"cybersecurity", "cyber security", "security", "encryption", "threat"},
		Patterns:   []string{"threat detection", "encryption", "intrusion detection", "zero trust", "post-quantum cryptography"},
		Pack:       []string{"cybersecurity", "threat detection", "encryption"},
		Broad:      []string{"cybersecurity", "digital security"},
		Programmes: []string{programmeDigital, programmeHorizon},
	},
	{
		Name:       "robotics",
		Triggers:   []string{"robot*", "automation", "autonomous", "drone"},
		Patterns:   []string{"collaborative robots", "autonomous systems", "industrial automation", "drones", "robotics"},
		Pack:       []string{"robotics", "autonomous systems", "industrial automation"},
		Broad:      []string{"robotics", "automation"},
		Programmes: []string{programmeHorizon},
	},
	{
		Name:       "biotechnology",
		Triggers:   []string{"biotech*", "genomic", "molecular", "enzyme", "biolog*"},
		Patterns:   []string{"genomics", "molecular biology", "synthetic biology", "bioprocessing"},
		Pack:       []string{"biotechnology", "genomics", "synthetic biology"},
		Broad:      []string{"life sciences", "bioeconomy"},
		Programmes: []string{programmeHorizon, programmeEU4Health},
	},
	{
		Name:       "blockchain",
		Triggers:   []string{"blockchain", "distributed ledger", "web3", "smart contract"},
		Patterns:   []string{"distributed ledger", "smart contracts", "blockchain"},
		Pack:       []string{"blockchain", "distributed ledger"},
		Broad:      []string{"digital technologies"},
		Programmes: []string{programmeDigital},
	},
	{
		Name:       "iot",
		Triggers:   []string{"iot", "internet of things", "sensor", "connected devices", "embedded"},
		Patterns:   []string{"internet of things", "sensor networks", "connected devices", "embedded systems"},
		Pack:       []string{"internet of things", "sensor networks", "connected devices"},
		Broad:      []string{"digital technologies", "smart systems"},
		Programmes: []string{programmeDigital, programmeHorizon},
	},
	{
		Name:       "quantum",
		Triggers:   []string{"quantum"},
		Patterns:   []string{"quantum computing", "quantum algorithms", "quantum sensing", "quantum communication"},
		Pack:       []string{"quantum computing", "quantum technologies"},
		Broad:      []string{"quantum technologies"},
		Programmes: []string{programmeHorizon, programmeDigital},
	},
	{
		Name:       "healthcare",
		Triggers:   []string{"health", "healthcare", "medical", "clinical", "patient", "diagnostic", "therapeut*", "pharma*"},
		Patterns:   []string{"digital health", "medical devices", "diagnostics", "telemedicine", "clinical trials"},
		Pack:       []string{"digital health", "medical devices", "diagnostics"},
		Broad:      []string{"health", "healthcare innovation"},
		Programmes: []string{programmeEU4Health, programmeHorizon},
	},
	{
		Name:       "transport",
		Triggers:   []string{"mobility", "logistics", "transport", "automotive", "vehicle", "aviation", "maritime"},
		Patterns:   []string{"electric vehicles", "smart mobility", "logistics", "zero emission", "charging infrastructure"},
		Pack:       []string{"smart mobility", "electric vehicles", "logistics"},
		Broad:      []string{"sustainable transport", "mobility"},
		Programmes: []string{programmeHorizon, programmeCEF},
	},
	{
		Name:       "agriculture",
		Triggers:   []string{"farm*", "agricultur*", "agritech", "food", "crop"},
		Patterns:   []string{"precision farming", "food systems", "agritech", "soil health"},
		Pack:       []string{"precision farming", "food systems", "agritech"},
		Broad:      []string{"agriculture", "food security"},
		Programmes: []string{programmeHorizon, programmeLIFE},
	},
	{
		Name:       "manufacturing",
		Triggers:   []string{"manufactur*", "factory", "factories", "production line", "industry 4.0", "industrial"},
		Patterns:   []string{"industry 4.0", "additive manufacturing", "digital twin", "advanced manufacturing"},
		Pack:       []string{"advanced manufacturing", "industry 4.0", "digital twin"},
		Broad:      []string{"manufacturing", "industrial innovation"},
		Programmes: []string{programmeHorizon},
	},
	{
		Name:       "environment",
		Triggers:   []string{"climate", "sustainab*", "carbon", "circular", "recycl*", "biodiversity", "pollution"},
		Patterns:   []string{"circular economy", "carbon capture", "climate adaptation", "recycling", "biodiversity"},
		Pack:       []string{"circular economy", "climate adaptation", "carbon capture"},
		Broad:      []string{"climate", "environment"},
		Programmes: []string{programmeLIFE, programmeHorizon},
	},
	{
		Name:       "space",
		Triggers:   []string{"space", "satellite", "aerospace", "earth observation"},
		Patterns:   []string{"earth observation", "satellite navigation", "satellite communication"},
		Pack:       []string{"earth observation", "satellite", "space technologies"},
		Broad:      []string{"space"},
		Programmes: []string{programmeHorizon},
	},
	{
		Name:       "education",
		Triggers:   []string{"education", "e-learning", "school", "vocational", "teach*", "skills training"},
		Patterns:   []string{"e-learning", "digital skills", "vocational training", "higher education"},
		Pack:       []string{"digital skills", "e-learning", "vocational training"},
		Broad:      []string{"education", "skills"},
		Programmes: []string{programmeErasmus, programmeDigital},
	},
}

// genericTerms never count as extracted keywords.
var genericTerms = map[string]struct{}{
	"innovation":   {},
	"innovative":   {},
	"sme":          {},
	"smes":         {},
	"research":     {},
	"technology":   {},
	"technologies": {},
	"solutions":    {},
	"services":     {},
	"company":      {},
	"development":  {},
	"digital":      {},
	"other":        {},
	"general":      {},
}

// Base filter codes of the EU search API.
var (
	statusOpenForthcoming = []string{"31094501", "31094502"}
	baseTypes             = []string{"1", "8"}
	// widenedTypes[n] is used on refinement attempt n+1.
	widenedTypes = [][]string{
		{"1", "2", "8"},
		{"0", "1", "2", "8"},
	}
)

const programmePeriod = "2021 - 2027"
