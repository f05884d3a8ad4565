package eligibility

import "strings"

var memberStates = []string{
	"austria", "belgium", "bulgaria", "croatia", "cyprus", "czechia", "denmark",
	"estonia", "finland", "france", "germany", "greece", "hungary", "ireland",
	"italy", "latvia", "lithuania", "luxembourg", "malta", "netherlands", "poland",
	"portugal", "romania", "slovakia", "slovenia", "spain", "sweden",
}

var associatedCountries = []string{
	"albania", "armenia", "bosnia and herzegovina", "canada", "faroe islands", "georgia",
	"iceland", "israel", "kosovo", "moldova", "montenegro", "new zealand", "north macedonia",
	"norway", "serbia", "south korea", "switzerland", "tunisia", "turkey", "ukraine", "united kingdom",
}

var countryAliases = map[string]string{
	"czech republic":    "czechia",
	"holland":           "netherlands",
	"the netherlands":   "netherlands",
	"uk":                "united kingdom",
	"great britain":     "united kingdom",
	"türkiye":           "turkey",
	"turkiye":           "turkey",
	"republic of korea": "south korea",
	"korea":             "south korea",
	"deutschland":       "germany",
	"españa":            "spain",
	"slovak republic":   "slovakia",
}

var countryCodes = map[string]string{
	"at": "austria", "be": "belgium", "bg": "bulgaria", "hr": "croatia", "cy": "cyprus",
	"cz": "czechia", "dk": "denmark", "ee": "estonia", "fi": "finland", "fr": "france",
	"de": "germany", "el": "greece", "gr": "greece", "hu": "hungary", "ie": "ireland",
	"it": "italy", "lv": "latvia", "lt": "lithuania", "lu": "luxembourg", "mt": "malta",
	"nl": "netherlands", "pl": "poland", "pt": "portugal", "ro": "romania", "sk": "slovakia",
	"si": "slovenia", "es": "spain", "se": "sweden", "no": "norway", "is": "iceland",
	"ch": "switzerland", "gb": "united kingdom", "il": "israel", "ua": "ukraine",
}

// Group names that expand to several countries.
var countryGroups = map[string][]string{
	"eu":                                  memberStates,
	"eu member states":                    memberStates,
	"member states":                       memberStates,
	"all eu member states":                memberStates,
	"eu countries":                        memberStates,
	"european union":                      memberStates,
	"associated countries":                associatedCountries,
	"horizon europe associated countries": associatedCountries,
}

// NormalizeCountry returns the canonical lower-case country name.
func NormalizeCountry(country string) string {
	c := strings.ToLower(strings.Join(strings.Fields(country), " "))
	if alias, ok := countryAliases[c]; ok {
		return alias
	}
	if name, ok := countryCodes[c]; ok {
		return name
	}
	return c
}

// ExpandCountries turns a list of countries and groups into a set of canonical names.
func ExpandCountries(list []string) map[string]struct{} {
	out := make(map[string]struct{}, len(list))
	for _, entry := range list {
		key := strings.ToLower(strings.Join(strings.Fields(entry), " "))
		if group, ok := countryGroups[key]; ok {
			for _, c := range group {
				out[c] = struct{}{}
			}
			continue
		}
		if c := NormalizeCountry(entry); c != "" {
			out[c] = struct{}{}
		}
	}
	return out
}

const orgTypeAny = "any"

var orgTypeAliases = map[string]string{
	"sme":                                "sme",
	"smes":                               "sme",
	"company":                            "sme",
	"enterprise":                         "sme",
	"startup":                            "sme",
	"start-up":                           "sme",
	"private company":                    "sme",
	"for-profit":                         "sme",
	"small and medium-sized enterprise":  "sme",
	"small and medium-sized enterprises": "sme",
	"university":                         "research",
	"universities":                       "research",
	"research":                           "research",
	"research organisation":              "research",
	"research organization":              "research",
	"higher education":                   "research",
	"academia":                           "research",
	"ngo":                                "ngo",
	"ngos":                               "ngo",
	"non-profit":                         "ngo",
	"nonprofit":                          "ngo",
	"non-governmental organisation":      "ngo",
	"non-governmental organization":      "ngo",
	"association":                        "ngo",
	"foundation":                         "ngo",
	"public body":                        "public",
	"public bodies":                      "public",
	"public authority":                   "public",
	"government":                         "public",
	"municipality":                       "public",
	"public":                             "public",
	"any":                                orgTypeAny,
	"all":                                orgTypeAny,
	"any legal entity":                   orgTypeAny,
	"legal entities":                     orgTypeAny,
}

// NormalizeOrgType maps free-form organization types to sme, research, ngo or public.
// Unrecognized types are returned lower-cased.
func NormalizeOrgType(orgType string) string {
	t := strings.ToLower(strings.Join(strings.Fields(orgType), " "))
	if alias, ok := orgTypeAliases[t]; ok {
		return alias
	}
	return t
}
