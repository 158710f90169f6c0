package index

// Posting records how one token occurs inside one item.
type Posting struct {
	Fields map[string]struct{}
	Count  int
}

// PostingMap maps item IDs to their posting for a single token.
type PostingMap map[string]*Posting

// FieldTokens is the tokenised form of one field of one item.
type FieldTokens struct {
	Tokens []string
	Weight float64
	Text   string
}

// IndexedItem is an item as stored in a SearchIndex. Item is the caller's
// value, not a copy of anything it points to.
type IndexedItem[T any] struct {
	ID          string
	Item        T
	Position    int
	FieldTokens map[string]FieldTokens
}

// Stats summarises an index for logging and metrics.
type Stats struct {
	Documents int
	Terms     int
	Tokens    int
}
