package recommend

import (
	"time"

	"dish-recommender/internal/core/dish"
)

// Phase 一次提交所處的階段
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseRequesting Phase = "requesting"
	PhaseExtracting Phase = "extracting"
	PhaseRetrying   Phase = "retrying"
	PhaseEnriching  Phase = "enriching"
	PhaseSettled    Phase = "settled"
)

// Failure 提交失敗時給展示層的說明
type Failure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Snapshot 菜色集合與流程狀態的唯讀複本
type Snapshot struct {
	SubmissionID string        `json:"submission_id,omitempty"`
	Phase        Phase         `json:"phase"`
	InProgress   bool          `json:"in_progress"`
	Ingredients  string        `json:"ingredients,omitempty"`
	Attempts     int           `json:"attempts"`
	Dishes       []dish.Record `json:"dishes"`
	RawText      string        `json:"raw_text,omitempty"`
	Failure      *Failure      `json:"failure,omitempty"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Settled 是否每道菜都已結束補充
func (s Snapshot) Settled() bool {
	if s.Phase != PhaseSettled {
		return false
	}
	for _, d := range s.Dishes {
		if !d.State.Terminal() {
			return false
		}
	}
	return true
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.Dishes = dish.CloneAll(s.Dishes)
	if s.Failure != nil {
		f := *s.Failure
		out.Failure = &f
	}
	return out
}

type updateKind int

const (
	updateNutrition updateKind = iota
	updateImage
)

// slotUpdate 補充任務回報給協調器的結果，以 (提交, 位置) 識別菜色
type slotUpdate struct {
	submission string
	slot       int
	kind       updateKind

	query      string
	nutrients  *dish.NutrientVector
	normalized *dish.NutrientVector
	err        error

	imageURL string
}
