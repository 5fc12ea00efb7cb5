package model

// DetectionMethod names the pass that produced a duplicate pair
type DetectionMethod string

const (
	MethodKeyword        DetectionMethod = "keyword"        // Jaccard over keyword sets
	MethodEditDistance   DetectionMethod = "editDistance"   // Confirmed by normalized edit distance
	MethodOppositeAnswer DetectionMethod = "oppositeAnswer" // Near-identical after polarity stripping, answers differ
)

// DuplicatePair is an unordered pair of records judged similar
type DuplicatePair struct {
	A          RecordID        `json:"a"`
	B          RecordID        `json:"b"`
	Similarity float64         `json:"similarity"`
	Method     DetectionMethod `json:"method"`
}

// PairKey is the canonical identity of an unordered pair: Low never sorts
// after High.
type PairKey struct {
	Low  RecordID
	High RecordID
}

// NewPairKey builds the canonical key for two ids
func NewPairKey(a, b RecordID) PairKey {
	if b.Less(a) {
		return PairKey{Low: b, High: a}
	}
	return PairKey{Low: a, High: b}
}

// Key returns the pair's canonical key
func (p DuplicatePair) Key() PairKey {
	return NewPairKey(p.A, p.B)
}

// Canonical returns the pair with A and B in canonical order
func (p DuplicatePair) Canonical() DuplicatePair {
	k := p.Key()
	p.A, p.B = k.Low, k.High
	return p
}

// Less orders keys by Low then High
func (k PairKey) Less(other PairKey) bool {
	if k.Low != other.Low {
		return k.Low.Less(other.Low)
	}
	return k.High.Less(other.High)
}
