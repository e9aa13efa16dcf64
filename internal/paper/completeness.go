package paper

// RequiredFields are the six fields a paper cannot be generated
// without. Order matters: missing-field reports follow it.
var RequiredFields = []string{
	"research topic",
	"research background",
	"research objective",
	"research method",
	"data source",
	"research findings",
}

// Completeness is the result of checking collected information against
// the required fields.
type Completeness struct {
	Complete bool     `json:"complete"`
	Missing  []string `json:"missing"`
	Rate     float64  `json:"rate"`
}

// CheckCompleteness reports which required fields are still missing
// and the fraction collected. A field counts as present only when it
// has a non-empty value.
func CheckCompleteness(info map[string]string) Completeness {
	var missing []string
	for _, field := range RequiredFields {
		if info[field] == "" {
			missing = append(missing, field)
		}
	}
	n := len(RequiredFields)
	return Completeness{
		Complete: len(missing) == 0,
		Missing:  missing,
		Rate:     float64(n-len(missing)) / float64(n),
	}
}
