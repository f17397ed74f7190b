package domain

// ScoredContext is one retrieved chunk. Score is only meaningful for
// ranking within a single query. The sparse vector is never returned.
type ScoredContext struct {
	Score   float64 `json:"score"`
	Title   string  `json:"title"`
	Text    string  `json:"text"`
	URL     string  `json:"url"`
	Updated int64   `json:"updated"`
}

// Answer is the result of a non-streaming search.
type Answer struct {
	Answer  string          `json:"answer"`
	Sources []ScoredContext `json:"sources"`
}

// StreamEvent is one element of a streaming search. The first event of a
// stream carries Sources; the following events carry Token increments. Err
// is set on the terminal event of a stream that ended due to a failure.
type StreamEvent struct {
	Sources []ScoredContext
	Token   string
	Err     error
}

// IsSources reports whether the event is the sources header.
func (e StreamEvent) IsSources() bool {
	return e.Sources != nil
}
