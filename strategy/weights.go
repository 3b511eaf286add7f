package strategy

// Weight is one entry of a priority table.
type Weight struct {
	Kind  Kind    `json:"kind"`
	Value float64 `json:"value"`
}

// WeightTable is an ordered priority table. Order matters for cumulative selection and
// values are not normalized.
type WeightTable []Weight

// Get returns the weight for k and whether it is present.
func (t WeightTable) Get(k Kind) (float64, bool) {
	for _, w := range t {
		if w.Kind == k {
			return w.Value, true
		}
	}
	return 0, false
}

// Sum returns the total weight.
func (t WeightTable) Sum() float64 {
	var s float64
	for _, w := range t {
		s += w.Value
	}
	return s
}

// DefaultTable is used for personas without an archetype entry.
func DefaultTable() WeightTable {
	return WeightTable{
		{Scroll, 0.3},
		{Click, 0.3},
		{Read, 0.2},
		{Wait, 0.2},
	}
}

// Archetype names with dedicated weight tables. Lookup is an exact match on the
// persona name.
const (
	ArchetypeShopper      = "Shopper"
	ArchetypeResearcher   = "Researcher"
	ArchetypeSkimmer      = "Skimmer"
	ArchetypeFormTester   = "Form Tester"
	ArchetypeSearcher     = "Searcher"
	ArchetypeRandomTester = "Random Tester"
)

var archetypes = map[string]WeightTable{
	ArchetypeShopper: {
		{Scroll, 0.3},
		{ClickProducts, 0.4},
		{Search, 0.2},
		{Wait, 0.1},
	},
	ArchetypeResearcher: {
		{ReadContent, 0.4},
		{Scroll, 0.3},
		{ClickArticles, 0.2},
		{Search, 0.1},
	},
	ArchetypeSkimmer: {
		{Scroll, 0.5},
		{ReadHeadlines, 0.3},
		{Click, 0.2},
	},
	ArchetypeFormTester: {
		{FillForm, 0.5},
		{ClickCTA, 0.3},
		{Wait, 0.2},
	},
	ArchetypeSearcher: {
		{Search, 0.5},
		{Click, 0.3},
		{Scroll, 0.2},
	},
	ArchetypeRandomTester: {
		{Scroll, 0.25},
		{Click, 0.25},
		{Read, 0.25},
		{Wait, 0.25},
	},
}

// TableFor returns a copy of the archetype table for personaName, or DefaultTable().
func TableFor(personaName string) WeightTable {
	t, ok := archetypes[personaName]
	if !ok {
		return DefaultTable()
	}
	return append(WeightTable(nil), t...)
}
