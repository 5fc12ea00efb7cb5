package dedupe

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/rs/zerolog"

	"github.com/ppiankov/quizlint/internal/model"
)

// Resolution is the outcome of applying the removal policy to a pair list
type Resolution struct {
	Kept       *model.Corpus
	Removed    map[model.RecordID]bool
	RemovedIDs []model.RecordID // Sorted
	Decisions  []model.RemovalDecision
	Clusters   [][]model.RecordID // Components with more than two members, for triage only
}

// Resolver decides which record of each duplicate pair is dropped
type Resolver struct {
	citations []*regexp.Regexp
	logger    zerolog.Logger
}

// NewResolver compiles the citation patterns. A pattern that does not
// compile is logged and ignored; it never matches.
func NewResolver(citationPatterns []string, logger zerolog.Logger) *Resolver {
	r := &Resolver{logger: logger}
	for _, p := range citationPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			logger.Warn().Err(err).Str("pattern", p).Msg("skipping invalid citation pattern")
			continue
		}
		r.citations = append(r.citations, re)
	}
	return r
}

// HasCitation reports whether the record's explanation or reference carries
// an article/section style citation. Any failure while matching counts as no
// citation.
func (r *Resolver) HasCitation(rec model.QuestionRecord) (found bool) {
	defer func() {
		if rv := recover(); rv != nil {
			r.logger.Warn().
				Str("record", rec.ID.String()).
				Str("panic", fmt.Sprint(rv)).
				Msg("citation check failed, treating as no citation")
			found = false
		}
	}()

	ref := rec.ReferenceText()
	for _, re := range r.citations {
		if re.MatchString(ref) {
			return true
		}
	}
	return false
}

// Loser picks the record to drop from a pair and the rule that decided it.
// The ranking is a total order: citation, then statement length, then the
// lower id wins.
func (r *Resolver) Loser(a, b model.QuestionRecord) (winner, loser model.QuestionRecord, rule model.ResolutionRule) {
	citeA, citeB := r.HasCitation(a), r.HasCitation(b)
	if citeA != citeB {
		if citeA {
			return a, b, model.RuleCitation
		}
		return b, a, model.RuleCitation
	}

	lenA, lenB := a.StatementLength(), b.StatementLength()
	if lenA != lenB {
		if lenA > lenB {
			return a, b, model.RuleLength
		}
		return b, a, model.RuleLength
	}

	if b.ID.Less(a.ID) {
		return b, a, model.RuleID
	}
	return a, b, model.RuleID
}

// Resolve applies the policy to every pair independently and removes every
// loser. Pairs that reference ids missing from the corpus are skipped.
func (r *Resolver) Resolve(c *model.Corpus, pairs []model.DuplicatePair) *Resolution {
	index := c.Index()
	removed := make(map[model.RecordID]bool)
	var decisions []model.RemovalDecision

	for _, pair := range pairs {
		ia, okA := index[pair.A]
		ib, okB := index[pair.B]
		if !okA || !okB || pair.A == pair.B {
			r.logger.Warn().
				Str("a", pair.A.String()).
				Str("b", pair.B.String()).
				Msg("skipping pair with unknown or identical ids")
			continue
		}

		winner, loser, rule := r.Loser(c.Records[ia], c.Records[ib])
		removed[loser.ID] = true
		decisions = append(decisions, model.RemovalDecision{
			Pair:   [2]model.RecordID{pair.A, pair.B},
			Winner: winner.ID,
			Loser:  loser.ID,
			Rule:   rule,
		})
	}

	ids := make([]model.RecordID, 0, len(removed))
	for id := range removed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })

	return &Resolution{
		Kept:       c.Without(removed),
		Removed:    removed,
		RemovedIDs: ids,
		Decisions:  decisions,
		Clusters:   Clusters(pairs, 3),
	}
}

// Clusters returns the connected components of the pair graph that have at
// least minSize members. Members and components are sorted.
func Clusters(pairs []model.DuplicatePair, minSize int) [][]model.RecordID {
	parent := make(map[model.RecordID]model.RecordID)

	var find func(model.RecordID) model.RecordID
	find = func(x model.RecordID) model.RecordID {
		p, ok := parent[x]
		if !ok {
			parent[x] = x
			return x
		}
		if p == x {
			return x
		}
		root := find(p)
		parent[x] = root
		return root
	}
	union := func(a, b model.RecordID) {
		ra, rb := find(a), find(b)
		if ra == rb {
			return
		}
		// Smaller id becomes the root so the result is order independent
		if rb.Less(ra) {
			ra, rb = rb, ra
		}
		parent[rb] = ra
	}

	for _, p := range pairs {
		if p.A != p.B {
			union(p.A, p.B)
		}
	}

	groups := make(map[model.RecordID][]model.RecordID)
	for id := range parent {
		root := find(id)
		groups[root] = append(groups[root], id)
	}

	var clusters [][]model.RecordID
	for _, members := range groups {
		if len(members) < minSize {
			continue
		}
		sort.Slice(members, func(i, j int) bool { return members[i].Less(members[j]) })
		clusters = append(clusters, members)
	}
	sort.Slice(clusters, func(i, j int) bool { return clusters[i][0].Less(clusters[j][0]) })
	return clusters
}
