package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/research-assistant/monitor/internal/client"
)

// Accumulator merges event payloads into a running SessionResult so a
// partial result exists even if the stream ends early. It is not safe for
// concurrent use.
type Accumulator struct {
	result client.SessionResult
}

// NewAccumulator returns an accumulator holding an empty result.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Add merges the event's payload, if any. On error the result is left as
// it was before the call.
func (a *Accumulator) Add(ev Event) error {
	if !ev.HasData() {
		return nil
	}

	var err error
	switch ev.Stage {
	case StagePlanningDone, StageRefiningDone:
		err = a.setPlan(ev.Data)
	case StageAnalyzingDone:
		err = a.setAnalysis(ev.Data)
	case StageCritiquingDone:
		err = a.setCritic(ev.Data)
	case StageRetrievingDone:
		err = a.mergeKeys(ev.Data, "papers", "total_papers")
	case StageComplete:
		err = a.mergeKeys(ev.Data)
	default:
		err = a.mergeKeys(ev.Data, "papers")
	}
	if err != nil {
		return &MalformedEventError{Raw: ev.Data, Reason: fmt.Sprintf("%s payload", ev.Stage), Err: err}
	}
	return nil
}

// Result returns a deep copy of the accumulated result.
func (a *Accumulator) Result() *client.SessionResult {
	return a.result.Clone()
}

func (a *Accumulator) setPlan(data json.RawMessage) error {
	var p client.Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if err := a.mergeKeys(data, "papers"); err != nil {
		return err
	}
	a.result.Plan = &p
	return nil
}

func (a *Accumulator) setAnalysis(data json.RawMessage) error {
	var an client.Analysis
	if err := json.Unmarshal(data, &an); err != nil {
		return err
	}
	if err := a.mergeKeys(data, "papers"); err != nil {
		return err
	}
	a.result.Analysis = &an
	return nil
}

func (a *Accumulator) setCritic(data json.RawMessage) error {
	var c client.CriticEvaluation
	if err := json.Unmarshal(data, &c); err != nil {
		return err
	}
	if err := a.mergeKeys(data, "papers"); err != nil {
		return err
	}
	a.result.CriticEvaluation = &c
	return nil
}

// mergeKeys overwrites every top-level result key present in data. With a
// non-empty allow list only those keys are considered. Keys absent from
// data are left untouched, and "papers" always replaces the whole map.
func (a *Accumulator) mergeKeys(data json.RawMessage, allow ...string) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(allow) > 0 {
		filtered := make(map[string]json.RawMessage, len(allow))
		for _, k := range allow {
			if v, ok := raw[k]; ok {
				filtered[k] = v
			}
		}
		raw = filtered
	}
	if len(raw) == 0 {
		return nil
	}

	// Decode into a fresh value first so a bad payload leaves the result intact.
	selected, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	var fresh client.SessionResult
	if err := json.Unmarshal(selected, &fresh); err != nil {
		return err
	}
	next := a.result
	for key, value := range raw {
		assignKey(&next, &fresh, key, value)
	}
	a.result = next
	return nil
}

func assignKey(dst, src *client.SessionResult, key string, value json.RawMessage) {
	switch key {
	case "topic":
		dst.Topic = src.Topic
	case "status":
		dst.Status = src.Status
	case "started_at":
		dst.StartedAt = src.StartedAt
	case "completed_at":
		dst.CompletedAt = src.CompletedAt
	case "error":
		dst.Error = src.Error
	case "iterations":
		dst.Iterations = src.Iterations
	case "plan":
		dst.Plan = src.Plan
	case "analysis":
		dst.Analysis = src.Analysis
	case "critic_evaluation":
		dst.CriticEvaluation = src.CriticEvaluation
	case "papers":
		dst.Papers = src.Papers
	case "final_report":
		dst.FinalReport = src.FinalReport
	case "agent_log":
		dst.AgentLog = src.AgentLog
	case "total_papers":
		dst.TotalPapers = src.TotalPapers
	case "coverage_score":
		dst.CoverageScore = src.CoverageScore
	default:
		extra := make(map[string]json.RawMessage, len(dst.Extra)+1)
		for k, v := range dst.Extra {
			extra[k] = v
		}
		extra[key] = value
		dst.Extra = extra
	}
}
