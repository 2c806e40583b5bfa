package server

import (
	"time"

	"github.com/felixgeelhaar/mnemo/internal/affect"
	"github.com/felixgeelhaar/mnemo/internal/agent"
	"github.com/felixgeelhaar/mnemo/internal/appraisal"
	"github.com/felixgeelhaar/mnemo/internal/memory"
	"github.com/felixgeelhaar/mnemo/internal/relationship"
)

type recalledView struct {
	memory.Entry
	Score    float64 `json:"score"`
	Semantic float64 `json:"semantic"`
	Fallback bool    `json:"fallback"`
}

type turnView struct {
	Conversation string              `json:"conversation"`
	Reply        string              `json:"reply"`
	Recalled     []recalledView      `json:"recalled"`
	Fallback     bool                `json:"fallback_memory"`
	Appraisal    appraisal.Appraisal `json:"appraisal"`
	Mood         affect.Vector       `json:"mood"`
	Label        affect.Label        `json:"label"`
	Relationship relationship.Bucket `json:"relationship"`
	MemoryID     string              `json:"memory_id"`
}

func newTurnView(conv string, rep *agent.Report) turnView {
	v := turnView{
		Conversation: conv,
		Reply:        rep.Reply,
		Recalled:     make([]recalledView, 0, len(rep.Memories)),
		Fallback:     rep.Fallback,
		Appraisal:    rep.Appraisal,
		Mood:         rep.Mood,
		Label:        rep.Label,
		Relationship: rep.Bucket,
		MemoryID:     rep.MemoryID,
	}
	for _, m := range rep.Memories {
		v.Recalled = append(v.Recalled, recalledView{
			Entry:    m.Entry,
			Score:    m.Score,
			Semantic: m.Signals.Semantic,
			Fallback: m.Fallback,
		})
	}
	return v
}

type conversationView struct {
	ID        string    `json:"id"`
	Live      bool      `json:"live"`
	Turns     int       `json:"turns"`
	CreatedAt time.Time `json:"created_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}
