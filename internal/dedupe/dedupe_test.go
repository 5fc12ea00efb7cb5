package dedupe

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ppiankov/quizlint/internal/model"
	"github.com/ppiankov/quizlint/internal/rules"
	"github.com/ppiankov/quizlint/internal/text"
)

func newTestDetector(t *testing.T, workers int) *Detector {
	t.Helper()
	rs, err := rules.Default()
	if err != nil {
		t.Fatal(err)
	}
	opts := OptionsFromConfig(model.DefaultConfig())
	opts.Workers = workers
	return NewDetector(
		text.NewTokenizer(rs.Stopwords),
		text.NewPolarityNormalizer(rs.PolarityMarkers),
		opts,
		zerolog.Nop(),
	)
}

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	rs, err := rules.Default()
	if err != nil {
		t.Fatal(err)
	}
	return NewResolver(rs.CitationPatterns, zerolog.Nop())
}

func rec(id int64, statement string, answer bool) model.QuestionRecord {
	return model.QuestionRecord{ID: model.IntID(id), Statement: statement, Answer: answer, Category: "営業許可関連"}
}

func TestDetect_TrailingPunctuation(t *testing.T) {
	c := &model.Corpus{Records: []model.QuestionRecord{
		rec(1, "営業許可を得るには申請書を提出する必要がある", true),
		rec(2, "営業許可を得るには申請書を提出する必要がある。", true),
	}}

	res, err := newTestDetector(t, 1).Detect(context.Background(), c)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	if len(res.Pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d: %+v", len(res.Pairs), res.Pairs)
	}
	pair := res.Pairs[0]
	if pair.Method != model.MethodEditDistance {
		t.Errorf("expected editDistance, got %s", pair.Method)
	}
	if pair.Similarity < 0.85 {
		t.Errorf("expected similarity >= 0.85, got %v", pair.Similarity)
	}

	resolution := newTestResolver(t).Resolve(c, res.Pairs)
	if len(resolution.Kept.Records) != 1 {
		t.Fatalf("expected exactly one survivor, got %d", len(resolution.Kept.Records))
	}
	// Neither cites an article; the shorter statement loses
	if resolution.Kept.Records[0].ID != model.IntID(2) {
		t.Errorf("expected record 2 to survive, got %s", resolution.Kept.Records[0].ID)
	}
	if resolution.Decisions[0].Rule != model.RuleLength {
		t.Errorf("expected length rule, got %s", resolution.Decisions[0].Rule)
	}
}

func TestDetect_OppositeAnswer(t *testing.T) {
	c := &model.Corpus{Records: []model.QuestionRecord{
		rec(1, "Xは禁止されている", true),
		rec(2, "Xは禁止されていない", false),
	}}

	res, err := newTestDetector(t, 1).Detect(context.Background(), c)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	if len(res.Pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d: %+v", len(res.Pairs), res.Pairs)
	}
	if res.Pairs[0].Method != model.MethodOppositeAnswer {
		t.Errorf("expected oppositeAnswer, got %s", res.Pairs[0].Method)
	}
	if res.Stats.KeywordCandidates != 1 || res.Stats.EditConfirmed != 0 {
		t.Errorf("expected keyword candidate rejected by edit pass, got %+v", res.Stats)
	}
}

func TestDetect_ConfirmedPairWithFlippedAnswerIsOpposite(t *testing.T) {
	c := &model.Corpus{Records: []model.QuestionRecord{
		rec(1, "営業所ごとに管理者を選任することが禁止されている", true),
		rec(2, "営業所ごとに管理者を選任することが禁止されていない", false),
	}}

	tests := []struct {
		name   string
		adjust func(*Options)
	}{
		{"default thresholds", func(*Options) {}},
		// Only the edit pass can see the pair
		{"edit pass only", func(o *Options) {
			o.KeywordThreshold = 0
			o.OppositeThreshold = 1
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDetector(t, 1)
			tt.adjust(&d.opts)

			res, err := d.Detect(context.Background(), c)
			if err != nil {
				t.Fatal(err)
			}
			if len(res.Pairs) != 1 {
				t.Fatalf("expected 1 pair, got %+v", res.Pairs)
			}
			if res.Pairs[0].Method != model.MethodOppositeAnswer {
				t.Errorf("expected oppositeAnswer, got %s", res.Pairs[0].Method)
			}
		})
	}
}

func TestDetect_MarkerOnlyStatementsNotOpposite(t *testing.T) {
	c := &model.Corpus{Records: []model.QuestionRecord{
		rec(3, "禁止", true),
		rec(4, "違反", false),
	}}

	res, err := newTestDetector(t, 1).Detect(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Pairs) != 0 {
		t.Errorf("statements that normalise to nothing must not pair, got %+v", res.Pairs)
	}
	if res.Stats.OppositeAnswers != 0 {
		t.Errorf("expected no opposite-answer candidates, got %d", res.Stats.OppositeAnswers)
	}

	resolution := newTestResolver(t).Resolve(c, res.Pairs)
	if len(resolution.Kept.Records) != 2 {
		t.Errorf("both records should survive, got %d", len(resolution.Kept.Records))
	}
}

func TestDetect_SameAnswerNegationNotOpposite(t *testing.T) {
	c := &model.Corpus{Records: []model.QuestionRecord{
		rec(1, "Xは禁止されている", true),
		rec(2, "Xは禁止されていない", true),
	}}

	res, err := newTestDetector(t, 1).Detect(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range res.Pairs {
		if p.Method == model.MethodOppositeAnswer {
			t.Errorf("pair with equal answers must not be oppositeAnswer: %+v", p)
		}
	}
}

func TestDetect_Unrelated(t *testing.T) {
	c := &model.Corpus{Records: []model.QuestionRecord{
		rec(1, "営業許可を得るには申請書を提出する必要がある", true),
		rec(2, "景品として現金を提供することはできない", false),
		rec(3, "遊技機の型式検定は三年ごとに更新する", true),
	}}

	res, err := newTestDetector(t, 1).Detect(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Pairs) != 0 {
		t.Errorf("expected no pairs, got %+v", res.Pairs)
	}
	if res.Stats.PairsCompared != 3 {
		t.Errorf("expected 3 comparisons, got %d", res.Stats.PairsCompared)
	}
}

func TestDetect_Empty(t *testing.T) {
	res, err := newTestDetector(t, 4).Detect(context.Background(), &model.Corpus{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Pairs) != 0 || res.Stats.PairsCompared != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}
}

// syntheticCorpus has clusters of repeated statements with mixed answers
func syntheticCorpus(n int) *model.Corpus {
	templates := []string{
		"営業許可を得るには申請書を提出する必要がある",
		"景品として現金を提供することは禁止されている",
		"遊技機の型式検定は三年ごとに更新する",
		"深夜における営業は営業時間の制限を受ける",
	}
	c := &model.Corpus{}
	for i := 0; i < n; i++ {
		s := templates[i%len(templates)]
		switch i % 3 {
		case 1:
			s += "。"
		case 2:
			s = s[:len(s)-len("る")] + "ない"
		}
		c.Records = append(c.Records, rec(int64(n-i), s, i%2 == 0))
	}
	return c
}

func TestDetect_IdempotentAndWorkerIndependent(t *testing.T) {
	c := syntheticCorpus(96)

	first, err := newTestDetector(t, 1).Detect(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	second, err := newTestDetector(t, 1).Detect(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	parallel, err := newTestDetector(t, 4).Detect(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}

	if len(first.Pairs) == 0 {
		t.Fatal("expected synthetic corpus to produce pairs")
	}
	if !reflect.DeepEqual(first.Pairs, second.Pairs) {
		t.Error("two runs produced different pair sets")
	}
	if !reflect.DeepEqual(first.Pairs, parallel.Pairs) {
		t.Error("parallel run produced a different pair set")
	}
	if first.Stats.PairsCompared != 96*95/2 || parallel.Stats.PairsCompared != first.Stats.PairsCompared {
		t.Errorf("unexpected comparison counts: %d, %d", first.Stats.PairsCompared, parallel.Stats.PairsCompared)
	}

	for i, p := range first.Pairs {
		if p.A == p.B {
			t.Errorf("self pair %s", p.A)
		}
		if p.B.Less(p.A) {
			t.Errorf("pair %d not canonical: %s, %s", i, p.A, p.B)
		}
		if i > 0 && !first.Pairs[i-1].Key().Less(p.Key()) {
			t.Errorf("pairs not strictly sorted at %d", i)
		}
	}
}

func TestDetect_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newTestDetector(t, 2).Detect(ctx, syntheticCorpus(80)); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestOptions_Validate(t *testing.T) {
	opts := OptionsFromConfig(model.DefaultConfig())
	if err := opts.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
	opts.EditThreshold = 1.5
	if err := opts.Validate(); err == nil {
		t.Error("expected error for threshold above 1")
	}
}

func TestMerge_FirstMethodWins(t *testing.T) {
	a, b, c := model.IntID(1), model.IntID(2), model.IntID(3)
	edit := []model.DuplicatePair{{A: b, B: a, Similarity: 0.9, Method: model.MethodEditDistance}}
	opposite := []model.DuplicatePair{
		{A: a, B: b, Similarity: 0.95, Method: model.MethodOppositeAnswer},
		{A: c, B: a, Similarity: 0.9, Method: model.MethodOppositeAnswer},
		{A: c, B: c, Similarity: 1, Method: model.MethodOppositeAnswer},
	}

	merged := Merge(edit, opposite)
	if len(merged) != 2 {
		t.Fatalf("expected 2 pairs, got %+v", merged)
	}
	if merged[0].A != a || merged[0].B != b || merged[0].Method != model.MethodEditDistance {
		t.Errorf("unexpected first pair %+v", merged[0])
	}
	if merged[1].A != a || merged[1].B != c {
		t.Errorf("unexpected second pair %+v", merged[1])
	}
}

func TestResolver_Loser(t *testing.T) {
	r := newTestResolver(t)

	cited := rec(5, "短い文", true)
	cited.LegalReference = "風営法第4条"
	plain := rec(1, "こちらはずっと長い問題文である", true)

	tests := []struct {
		name      string
		a, b      model.QuestionRecord
		wantLoser model.RecordID
		wantRule  model.ResolutionRule
	}{
		{"citation beats length", cited, plain, model.IntID(1), model.RuleCitation},
		{"citation beats length reversed", plain, cited, model.IntID(1), model.RuleCitation},
		{"shorter loses", rec(1, "短い", true), rec(2, "もっと長い", true), model.IntID(1), model.RuleLength},
		{"higher id loses", rec(7, "同じ長さ", true), rec(3, "同じ長さ", false), model.IntID(7), model.RuleID},
		{"higher id loses reversed", rec(3, "同じ長さ", false), rec(7, "同じ長さ", true), model.IntID(7), model.RuleID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, loser, rule := r.Loser(tt.a, tt.b)
			if loser.ID != tt.wantLoser {
				t.Errorf("loser = %s, want %s", loser.ID, tt.wantLoser)
			}
			if rule != tt.wantRule {
				t.Errorf("rule = %s, want %s", rule, tt.wantRule)
			}
		})
	}
}

func TestResolver_InvalidPatternMeansNoCitation(t *testing.T) {
	r := NewResolver([]string{"第([0-9]+条"}, zerolog.Nop())
	record := rec(1, "文", true)
	record.LegalReference = "第3条"
	if r.HasCitation(record) {
		t.Error("invalid pattern must not match")
	}
}

func TestResolve_Safety(t *testing.T) {
	c := syntheticCorpus(48)
	res, err := newTestDetector(t, 1).Detect(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}

	resolution := newTestResolver(t).Resolve(c, res.Pairs)

	losers := make(map[model.RecordID]bool)
	for _, d := range resolution.Decisions {
		losers[d.Loser] = true
	}
	for _, id := range resolution.RemovedIDs {
		if !losers[id] {
			t.Errorf("record %s removed without a losing decision", id)
		}
	}
	if len(resolution.Kept.Records)+len(resolution.RemovedIDs) != len(c.Records) {
		t.Errorf("kept %d + removed %d != %d", len(resolution.Kept.Records), len(resolution.RemovedIDs), len(c.Records))
	}

	// Every connected component keeps its top-ranked record
	kept := make(map[model.RecordID]bool)
	for _, r := range resolution.Kept.Records {
		kept[r.ID] = true
	}
	for _, cluster := range Clusters(res.Pairs, 2) {
		survivors := 0
		for _, id := range cluster {
			if kept[id] {
				survivors++
			}
		}
		if survivors == 0 {
			t.Errorf("cluster %v lost every member", cluster)
		}
	}
}

func TestResolve_PreservesOrder(t *testing.T) {
	c := &model.Corpus{Records: []model.QuestionRecord{
		rec(9, "営業許可を得るには申請書を提出する必要がある", true),
		rec(4, "遊技機の型式検定", true),
		rec(2, "営業許可を得るには申請書を提出する必要がある", true),
		rec(6, "景品規制", true),
	}}
	pairs := []model.DuplicatePair{{A: model.IntID(2), B: model.IntID(9), Similarity: 1, Method: model.MethodEditDistance}}

	resolution := newTestResolver(t).Resolve(c, pairs)
	var got []string
	for _, r := range resolution.Kept.Records {
		got = append(got, r.ID.String())
	}
	if fmt.Sprint(got) != "[4 2 6]" {
		t.Errorf("unexpected kept order %v", got)
	}
}

func TestResolve_SkipsUnknownIDs(t *testing.T) {
	c := &model.Corpus{Records: []model.QuestionRecord{rec(1, "a", true)}}
	pairs := []model.DuplicatePair{{A: model.IntID(1), B: model.IntID(99), Method: model.MethodKeyword}}

	resolution := newTestResolver(t).Resolve(c, pairs)
	if len(resolution.RemovedIDs) != 0 || len(resolution.Kept.Records) != 1 {
		t.Errorf("expected nothing removed, got %+v", resolution.RemovedIDs)
	}
}

func TestClusters(t *testing.T) {
	id := model.IntID
	pairs := []model.DuplicatePair{
		{A: id(3), B: id(1)},
		{A: id(1), B: id(2)},
		{A: id(10), B: id(11)},
	}

	got := Clusters(pairs, 3)
	if len(got) != 1 {
		t.Fatalf("expected 1 cluster, got %v", got)
	}
	if fmt.Sprint(got[0]) != "[1 2 3]" {
		t.Errorf("unexpected cluster %v", got[0])
	}

	if all := Clusters(pairs, 2); len(all) != 2 {
		t.Errorf("expected 2 components of size >= 2, got %v", all)
	}
}
