package testutil

// FixedRequestIDs stamps every request with the same id.
//
// Scenario runs use it so logged request ids do not vary between runs. The
// processor's own FixedGenerator hands out ids in sequence instead.
//
// Thread-safety: FixedRequestIDs is stateless and safe for concurrent use.
type FixedRequestIDs struct {
	id string
}

// NewFixedRequestIDs returns a generator of id. If id is empty, Generate
// returns "test-request".
func NewFixedRequestIDs(id string) *FixedRequestIDs {
	if id == "" {
		id = "test-request"
	}
	return &FixedRequestIDs{id: id}
}

// Generate implements processor.RequestIDGenerator.
func (g *FixedRequestIDs) Generate() string {
	return g.id
}
