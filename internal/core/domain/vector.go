package domain

import "sort"

// SparseVector maps term tokens to positive weights. Terms with zero weight
// are absent.
type SparseVector map[string]float64

// Term is a single weighted entry of a SparseVector.
type Term struct {
	Token  string
	Weight float64
}

// Prune removes non-positive weights in place and returns the vector.
func (v SparseVector) Prune() SparseVector {
	for token, w := range v {
		if w <= 0 {
			delete(v, token)
		}
	}
	return v
}

// Terms returns the entries sorted by weight descending, ties by token.
func (v SparseVector) Terms() []Term {
	terms := make([]Term, 0, len(v))
	for token, w := range v {
		terms = append(terms, Term{Token: token, Weight: w})
	}
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].Weight != terms[j].Weight {
			return terms[i].Weight > terms[j].Weight
		}
		return terms[i].Token < terms[j].Token
	})
	return terms
}

// Top returns the n highest-weighted entries. If n <= 0 or the vector has
// at most n entries, all entries are returned.
func (v SparseVector) Top(n int) []Term {
	terms := v.Terms()
	if n > 0 && len(terms) > n {
		terms = terms[:n]
	}
	return terms
}
