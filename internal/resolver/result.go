package resolver

// Result is the outcome for one entity: a resolved variant, or absent.
// The zero value is Unresolved.
type Result struct {
	variant string
}

// Unresolved marks an entity for which no candidate could be confirmed.
var Unresolved = Result{}

func Resolved(variant string) Result {
	return Result{variant: variant}
}

func (r Result) Resolved() bool { return r.variant != "" }

// Variant returns the resolved variant and whether there is one.
func (r Result) Variant() (string, bool) {
	return r.variant, r.variant != ""
}

func (r Result) String() string {
	if r.variant == "" {
		return "<unresolved>"
	}
	return r.variant
}

// ResultMap maps every catalog entity to its Result. Enumeration follows the
// order the entities were supplied in.
type ResultMap struct {
	order   []string
	results map[string]Result
}

// NewResultMap zips ids with results positionally. Missing results default to
// Unresolved so the key set always equals ids.
func NewResultMap(ids []string, results []Result) *ResultMap {
	m := &ResultMap{
		order:   append([]string(nil), ids...),
		results: make(map[string]Result, len(ids)),
	}
	for i, id := range ids {
		r := Unresolved
		if i < len(results) {
			r = results[i]
		}
		m.results[id] = r
	}
	return m
}

func (m *ResultMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.order)
}

// Keys returns entity IDs in input order.
func (m *ResultMap) Keys() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.order...)
}

func (m *ResultMap) Get(id string) (Result, bool) {
	if m == nil {
		return Unresolved, false
	}
	r, ok := m.results[id]
	return r, ok
}

// Each calls fn for every entry in input order.
func (m *ResultMap) Each(fn func(id string, r Result)) {
	if m == nil {
		return
	}
	for _, id := range m.order {
		fn(id, m.results[id])
	}
}
