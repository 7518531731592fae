package hierarchy

// Target installations differ in which custom fields their schema exposes:
// some carry a dedicated external-code field, some a parent-code staging
// field, some a degree field, some none of those. Capabilities are probed
// once per run and threaded into both phases; absence of every optional
// field degrades to the "[code] name" label convention (or a designated
// proxy field) as the sole external-code carrier.

// Candidate custom field names, in order of preference. Installations
// provisioned through Odoo Studio get the x_studio_ prefix.
var (
	keyFieldCandidates     = []string{"x_sankhya_id", "x_codigo_sankhya", "x_studio_sankhya_id"}
	stagingFieldCandidates = []string{"x_parent_sankhya_id", "x_codigo_pai_sankhya", "x_studio_parent_sankhya_id"}
	degreeFieldCandidates  = []string{"x_grau", "x_studio_grau"}
)

// Capabilities records which optional custom fields the target model
// exposes. Empty string means the field is absent.
type Capabilities struct {
	// KeyField holds the external code verbatim and is the preferred
	// lookup key.
	KeyField string

	// StagingField holds the parent's external code for audit purposes.
	StagingField string

	// DegreeField holds the source depth hint.
	DegreeField string
}

// ProbeCapabilities inspects the target model's schema once.
func ProbeCapabilities(store Store, model string) (Capabilities, error) {
	fields, err := store.FieldsGet(model)
	if err != nil {
		return Capabilities{}, err
	}

	return Capabilities{
		KeyField:     firstAvailable(fields, keyFieldCandidates, "char", "integer"),
		StagingField: firstAvailable(fields, stagingFieldCandidates, "char", "integer"),
		DegreeField:  firstAvailable(fields, degreeFieldCandidates, "integer", "float", "char"),
	}, nil
}

// firstAvailable returns the first candidate present in the schema with an
// accepted type, or empty string.
func firstAvailable(fields map[string]map[string]any, candidates []string, types ...string) string {
	for _, name := range candidates {
		attrs, ok := fields[name]
		if !ok {
			continue
		}
		fieldType, _ := attrs["type"].(string)
		for _, t := range types {
			if fieldType == t {
				return name
			}
		}
	}
	return ""
}
