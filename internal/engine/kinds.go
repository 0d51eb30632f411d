package engine

import (
	"time"
)

// Kind is the closed set of engine request classes. Each kind carries its
// own endpoint, call timeout and cache TTL; there is no string-keyed
// routing anywhere downstream.
type Kind int

const (
	KindMatchAnalysis Kind = iota
	KindTeamForm
	KindHeadToHead
	KindPredictions
	KindSlipGeneration
)

func (k Kind) String() string {
	switch k {
	case KindMatchAnalysis:
		return "match_analysis"
	case KindTeamForm:
		return "team_form"
	case KindHeadToHead:
		return "head_to_head"
	case KindPredictions:
		return "predictions"
	case KindSlipGeneration:
		return "slip_generation"
	}
	return "unknown"
}

// Path is the engine endpoint for the kind.
func (k Kind) Path() string {
	switch k {
	case KindMatchAnalysis:
		return "/analyze/match"
	case KindTeamForm:
		return "/analyze/team-form"
	case KindHeadToHead:
		return "/analyze/head-to-head"
	case KindPredictions:
		return "/predict"
	case KindSlipGeneration:
		return "/generate/slips"
	}
	return "/unknown"
}

// Timeout is the hard per-call limit for the kind's workload class.
func (k Kind) Timeout() time.Duration {
	switch k {
	case KindSlipGeneration:
		return 300 * time.Second
	case KindMatchAnalysis, KindPredictions:
		return 120 * time.Second
	default:
		return 60 * time.Second
	}
}

// CacheTTL is how long a successful response stays valid in the result
// cache.
func (k Kind) CacheTTL() time.Duration {
	switch k {
	case KindMatchAnalysis:
		return 3600 * time.Second
	case KindTeamForm:
		return 1800 * time.Second
	case KindHeadToHead:
		return 7200 * time.Second
	case KindPredictions:
		return 1800 * time.Second
	case KindSlipGeneration:
		return 300 * time.Second
	}
	return 300 * time.Second
}
