package model

import "time"

// ProblemKind distinguishes how a problem is judged.
type ProblemKind string

const (
	ProblemKindCode ProblemKind = "CODE"
	ProblemKindSQL  ProblemKind = "SQL"
)

// Problem is the judgeable unit. It is immutable while judging runs;
// only the problem-authoring collaborator edits it.
type Problem struct {
	ID          int64       `json:"id"`
	Title       string      `json:"title"`
	Statement   string      `json:"statement"`
	Difficulty  string      `json:"difficulty"`
	Tags        []string    `json:"tags"`
	Kind        ProblemKind `json:"kind"`
	Languages   []string    `json:"languages"`
	TimeLimitMs int64       `json:"time_limit_ms"`
	MemoryMB    int64       `json:"memory_mb"`

	// SQL problems only. OrderMatters preserves row order in the result
	// comparison, for problems whose statement demands an ORDER BY.
	Schema       string `json:"schema,omitempty"`
	SeedData     string `json:"seed_data,omitempty"`
	OrderMatters bool   `json:"order_matters,omitempty"`

	Published bool      `json:"published"`
	CreatedAt time.Time `json:"created_at"`
}

// TestCase belongs to exactly one problem. Ordering is part of the judging
// contract: cases run sequentially and judging stops at the first failure.
type TestCase struct {
	ID        int64  `json:"id"`
	ProblemID int64  `json:"problem_id"`
	Ordinal   int    `json:"ordinal"`
	Input     string `json:"input"`
	Expected  string `json:"expected"`

	// SQL problems carry the expected result set as structured rows instead
	// of raw text.
	ExpectedRows []map[string]interface{} `json:"expected_rows,omitempty"`

	Hidden bool `json:"hidden"`
}

// AllowsLanguage reports whether the problem accepts submissions in lang.
// An empty allow-list accepts every registered language.
func (p *Problem) AllowsLanguage(lang string) bool {
	if len(p.Languages) == 0 {
		return true
	}
	for _, l := range p.Languages {
		if l == lang {
			return true
		}
	}
	return false
}
