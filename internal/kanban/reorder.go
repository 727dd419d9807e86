// Package kanban resolves card drops on a pipeline board.
package kanban

import (
	"context"
	"errors"
	"fmt"

	appLog "gabinet/internal/log"
	"gabinet/internal/model"
)

var (
	ErrUnknownCard   = errors.New("kanban: unknown card")
	ErrUnknownTarget = errors.New("kanban: unknown drop target")
)

// Board is a snapshot of one pipeline.
type Board struct {
	Stages []model.Stage `json:"stages"`
	Cards  []model.Card  `json:"cards"`
}

// Move is the outcome of a drop.
type Move struct {
	CardID        string  `json:"card_id"`
	FromStageID   string  `json:"from_stage_id"`
	TargetStageID string  `json:"target_stage_id"`
	NewOrder      float64 `json:"new_order"`
	// Noop is set when the card was dropped inside its own stage; nothing
	// needs to be persisted.
	Noop bool `json:"noop"`
}

// Mover persists a card move.
type Mover interface {
	MoveToStage(ctx context.Context, cardID, stageID string, order float64) error
}

// OnDrop resolves dropTargetID (a stage, or a card whose stage is used) and
// appends the card to the bottom of the target stage: the new order is one
// past the largest order already there, or 0 for an empty stage.
func OnDrop(b Board, cardID, dropTargetID string) (Move, error) {
	var card *model.Card
	for i := range b.Cards {
		if b.Cards[i].ID == cardID {
			card = &b.Cards[i]
			break
		}
	}
	if card == nil {
		return Move{}, fmt.Errorf("%w: %s", ErrUnknownCard, cardID)
	}

	target, ok := resolveStage(b, dropTargetID)
	if !ok {
		return Move{}, fmt.Errorf("%w: %s", ErrUnknownTarget, dropTargetID)
	}

	mv := Move{
		CardID:        card.ID,
		FromStageID:   card.PipelineStageID,
		TargetStageID: target,
	}
	if target == card.PipelineStageID {
		mv.Noop = true
		mv.NewOrder = card.StageOrder
		return mv, nil
	}

	found := false
	for _, c := range b.Cards {
		if c.PipelineStageID != target || c.ID == card.ID {
			continue
		}
		if !found || c.StageOrder > mv.NewOrder {
			mv.NewOrder = c.StageOrder
		}
		found = true
	}
	if found {
		mv.NewOrder++
	}
	return mv, nil
}

func resolveStage(b Board, id string) (string, bool) {
	for _, s := range b.Stages {
		if s.ID == id {
			return s.ID, true
		}
	}
	for _, c := range b.Cards {
		if c.ID == id {
			return c.PipelineStageID, true
		}
	}
	return "", false
}

// Drop resolves the drop and hands a real move to m. Errors from m are
// returned unchanged; nothing is retried.
func Drop(ctx context.Context, m Mover, b Board, cardID, dropTargetID string) (Move, error) {
	mv, err := OnDrop(b, cardID, dropTargetID)
	if err != nil {
		return Move{}, err
	}
	if mv.Noop {
		return mv, nil
	}
	if err := m.MoveToStage(ctx, mv.CardID, mv.TargetStageID, mv.NewOrder); err != nil {
		return Move{}, err
	}
	appLog.Info("kanban card moved",
		"card", mv.CardID, "from", mv.FromStageID, "to", mv.TargetStageID, "order", mv.NewOrder)
	return mv, nil
}
