// Package client provides the stream transports and HTTP client for the
// research server. Types mirror the server wire protocol.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// StartRequest is the body of POST /api/research.
type StartRequest struct {
	Topic string `json:"topic"`
}

// StartResponse is returned when a session has been accepted.
type StartResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// ErrorResponse is the body of a non-success response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SessionResult is the accumulating and final artifact of a research
// session. The server's GET /api/research/{id} returns the complete form.
type SessionResult struct {
	Topic            string            `json:"topic,omitempty"`
	Status           string            `json:"status,omitempty"`
	StartedAt        *time.Time        `json:"started_at,omitempty"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
	Error            string            `json:"error,omitempty"`
	Iterations       *IterationHistory `json:"iterations,omitempty"`
	Plan             *Plan             `json:"plan,omitempty"`
	Analysis         *Analysis         `json:"analysis,omitempty"`
	CriticEvaluation *CriticEvaluation `json:"critic_evaluation,omitempty"`
	Papers           Papers            `json:"papers,omitempty"`
	FinalReport      string            `json:"final_report,omitempty"`
	AgentLog         []AgentLogEntry   `json:"agent_log,omitempty"`
	TotalPapers      *int              `json:"total_papers,omitempty"`
	CoverageScore    *Score            `json:"coverage_score,omitempty"`

	// Extra keeps top-level keys this client does not model.
	Extra map[string]json.RawMessage `json:"-"`
}

// ResultKeys lists the top-level keys modelled by SessionResult.
var ResultKeys = []string{
	"topic", "status", "started_at", "completed_at", "error", "iterations",
	"plan", "analysis", "critic_evaluation", "papers", "final_report",
	"agent_log", "total_papers", "coverage_score",
}

func isResultKey(key string) bool {
	for _, k := range ResultKeys {
		if k == key {
			return true
		}
	}
	return false
}

// UnmarshalJSON decodes the modelled fields and collects the rest in Extra.
func (r *SessionResult) UnmarshalJSON(data []byte) error {
	type plain SessionResult
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		if isResultKey(k) {
			continue
		}
		if p.Extra == nil {
			p.Extra = make(map[string]json.RawMessage)
		}
		p.Extra[k] = v
	}
	*r = SessionResult(p)
	return nil
}

// MarshalJSON writes the modelled fields followed by Extra.
func (r SessionResult) MarshalJSON() ([]byte, error) {
	type plain SessionResult
	data, err := json.Marshal(plain(r))
	if err != nil || len(r.Extra) == 0 {
		return data, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	for k, v := range r.Extra {
		if _, ok := m[k]; !ok {
			m[k] = v
		}
	}
	return json.Marshal(m)
}

// Clone returns a deep copy of the result.
func (r *SessionResult) Clone() *SessionResult {
	if r == nil {
		return nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		cp := *r
		return &cp
	}
	var out SessionResult
	if err := json.Unmarshal(data, &out); err != nil {
		cp := *r
		return &cp
	}
	return &out
}

// UniquePaperCount counts distinct papers by arXiv id across all queries.
func (r *SessionResult) UniquePaperCount() int {
	if r == nil {
		return 0
	}
	return len(r.Papers.Unique())
}

// IterationCount returns the number of refinement passes the server reported.
func (r *SessionResult) IterationCount() int {
	if r == nil || r.Iterations == nil {
		return 0
	}
	return r.Iterations.Count
}

// Papers maps a search query id to the papers it retrieved, in order.
type Papers map[string][]Paper

// Unique returns papers with a non-empty arXiv id, first occurrence wins.
// Query ids are visited in sorted order so the output is stable.
func (p Papers) Unique() []Paper {
	seen := make(map[string]bool)
	var out []Paper
	for _, qid := range sortedKeys(p) {
		for _, paper := range p[qid] {
			if paper.ArxivID == "" || seen[paper.ArxivID] {
				continue
			}
			seen[paper.ArxivID] = true
			out = append(out, paper)
		}
	}
	return out
}

// Paper is a single retrieved arXiv record. Failed queries come back as a
// record with only Error and Query set.
type Paper struct {
	ArxivID         string   `json:"arxiv_id,omitempty"`
	Title           string   `json:"title,omitempty"`
	Authors         []string `json:"authors,omitempty"`
	Abstract        string   `json:"abstract,omitempty"`
	Published       string   `json:"published,omitempty"`
	Updated         string   `json:"updated,omitempty"`
	PDFURL          string   `json:"pdf_url,omitempty"`
	Categories      []string `json:"categories,omitempty"`
	PrimaryCategory string   `json:"primary_category,omitempty"`
	Error           string   `json:"error,omitempty"`
	Query           string   `json:"query,omitempty"`
}

// Plan is the planner's research decomposition.
type Plan struct {
	MainTopic         string             `json:"main_topic,omitempty"`
	ResearchQuestions []ResearchQuestion `json:"research_questions,omitempty"`
	SearchQueries     []SearchQuery      `json:"search_queries,omitempty"`
	ScopeNotes        string             `json:"scope_notes,omitempty"`
	Raw               string             `json:"_raw,omitempty"`
}

// ResearchQuestion is one sub-question of the plan.
type ResearchQuestion struct {
	ID       string `json:"id,omitempty"`
	Question string `json:"question,omitempty"`
	Category string `json:"category,omitempty"`
	Priority string `json:"priority,omitempty"`
}

// SearchQuery is one arXiv query of the plan.
type SearchQuery struct {
	ID               string   `json:"id,omitempty"`
	Query            string   `json:"query,omitempty"`
	TargetsQuestions []string `json:"targets_questions,omitempty"`
	Rationale        string   `json:"rationale,omitempty"`
}

// Analysis is the analyzer's synthesis of the retrieved papers.
type Analysis struct {
	ThematicClusters     []ThematicCluster     `json:"thematic_clusters,omitempty"`
	QuestionCoverage     []QuestionCoverage    `json:"question_coverage,omitempty"`
	MethodologyLandscape *MethodologyLandscape `json:"methodology_landscape,omitempty"`
	TimelineTrends       string                `json:"timeline_trends,omitempty"`
	CrossCuttingInsights []string              `json:"cross_cutting_insights,omitempty"`
}

type ThematicCluster struct {
	Theme       string   `json:"theme,omitempty"`
	Description string   `json:"description,omitempty"`
	PaperIDs    []string `json:"paper_ids,omitempty"`
	KeyFindings []string `json:"key_findings,omitempty"`
}

type QuestionCoverage struct {
	QuestionID       string   `json:"question_id,omitempty"`
	QuestionText     string   `json:"question_text,omitempty"`
	CoverageLevel    string   `json:"coverage_level,omitempty"`
	SupportingPapers []string `json:"supporting_papers,omitempty"`
	Summary          string   `json:"summary,omitempty"`
}

type MethodologyLandscape struct {
	DominantMethods []string `json:"dominant_methods,omitempty"`
	EmergingMethods []string `json:"emerging_methods,omitempty"`
	ComparisonNotes string   `json:"comparison_notes,omitempty"`
}

// CriticEvaluation is the critic's coverage assessment.
type CriticEvaluation struct {
	OverallCoverageScore Score            `json:"overall_coverage_score"`
	DimensionScores      map[string]Score `json:"dimension_scores,omitempty"`
	CoveredWell          []string         `json:"covered_well,omitempty"`
	KnowledgeGaps        []KnowledgeGap   `json:"knowledge_gaps,omitempty"`
	QualityIssues        []string         `json:"quality_issues,omitempty"`
	Recommendation       string           `json:"recommendation,omitempty"`
	Reasoning            string           `json:"reasoning,omitempty"`
}

type KnowledgeGap struct {
	Gap            string `json:"gap,omitempty"`
	Severity       string `json:"severity,omitempty"`
	SuggestedQuery string `json:"suggested_query,omitempty"`
}

// AgentLogEntry is one line of the server-side agent log.
type AgentLogEntry struct {
	Timestamp time.Time       `json:"timestamp"`
	Agent     string          `json:"agent"`
	Action    string          `json:"action"`
	Detail    string          `json:"detail,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// IterationSummary describes one completed refinement pass.
type IterationSummary struct {
	Iteration      int    `json:"iteration"`
	PapersFound    int    `json:"papers_found,omitempty"`
	Clusters       int    `json:"clusters,omitempty"`
	CoverageScore  Score  `json:"coverage_score"`
	Recommendation string `json:"recommendation,omitempty"`
	GapsFound      int    `json:"gaps_found,omitempty"`
}

// IterationHistory is either the full per-iteration list (session record)
// or only a count (the "complete" event summary sends a bare number).
type IterationHistory struct {
	Count   int
	Entries []IterationSummary
}

func (h *IterationHistory) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var entries []IterationSummary
		if err := json.Unmarshal(data, &entries); err != nil {
			return err
		}
		h.Entries = entries
		h.Count = len(entries)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("iterations: expected list or count: %w", err)
	}
	h.Entries = nil
	h.Count = n
	return nil
}

func (h IterationHistory) MarshalJSON() ([]byte, error) {
	if h.Entries != nil {
		return json.Marshal(h.Entries)
	}
	return json.Marshal(h.Count)
}

// Score is a numeric score the server may also send as a string ("N/A",
// or a quoted number).
type Score struct {
	Value float64
	Valid bool
	Text  string
}

// NewScore returns a valid numeric score.
func NewScore(v float64) Score {
	return Score{Value: v, Valid: true}
}

func (s *Score) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = Score{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		if v, err := strconv.ParseFloat(text, 64); err == nil {
			*s = Score{Value: v, Valid: true}
			return nil
		}
		*s = Score{Text: text}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("score: %w", err)
	}
	*s = Score{Value: v, Valid: true}
	return nil
}

func (s Score) MarshalJSON() ([]byte, error) {
	if s.Valid {
		return json.Marshal(s.Value)
	}
	if s.Text != "" {
		return json.Marshal(s.Text)
	}
	return []byte("null"), nil
}

// String renders the score for display, "N/A" when unknown.
func (s Score) String() string {
	if s.Valid {
		return strconv.FormatFloat(s.Value, 'f', -1, 64)
	}
	if s.Text != "" {
		return s.Text
	}
	return "N/A"
}

func sortedKeys(p Papers) []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
