package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"gabinet/internal/kanban"
	"gabinet/internal/model"
)

func (s *Store) CreateStage(ctx context.Context, st *model.Stage) error {
	if st.PipelineID == "" || st.Name == "" {
		return fmt.Errorf("%w: stage needs pipeline and name", ErrInvalid)
	}
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stages (id, pipeline_id, name, position) VALUES (?, ?, ?, ?)`,
		st.ID, st.PipelineID, st.Name, st.Position)
	return err
}

// CreateCard appends c to the bottom of its stage, like a drop would.
func (s *Store) CreateCard(ctx context.Context, c *model.Card) error {
	if c.PipelineStageID == "" {
		return fmt.Errorf("%w: card needs a stage", ErrInvalid)
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var pipelineID string
		var maxOrder sql.NullFloat64
		err := tx.QueryRowContext(ctx, `SELECT s.pipeline_id, (SELECT MAX(stage_order) FROM cards WHERE stage_id = s.id)
			FROM stages s WHERE s.id = ?`, c.PipelineStageID).Scan(&pipelineID, &maxOrder)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		c.PipelineID = pipelineID
		c.StageOrder = 0
		if maxOrder.Valid {
			c.StageOrder = maxOrder.Float64 + 1
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO cards (id, pipeline_id, stage_id, stage_order, title) VALUES (?, ?, ?, ?, ?)`,
			c.ID, c.PipelineID, c.PipelineStageID, c.StageOrder, c.Title)
		return err
	})
}

// Board loads a pipeline snapshot: stages by position, cards by stage order.
func (s *Store) Board(ctx context.Context, pipelineID string) (kanban.Board, error) {
	b := kanban.Board{Stages: []model.Stage{}, Cards: []model.Card{}}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, pipeline_id, name, position FROM stages WHERE pipeline_id = ? ORDER BY position, id`, pipelineID)
	if err != nil {
		return b, err
	}
	for rows.Next() {
		var st model.Stage
		if err := rows.Scan(&st.ID, &st.PipelineID, &st.Name, &st.Position); err != nil {
			rows.Close()
			return b, err
		}
		b.Stages = append(b.Stages, st)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return b, err
	}
	if len(b.Stages) == 0 {
		return b, ErrNotFound
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT id, pipeline_id, stage_id, stage_order, title FROM cards WHERE pipeline_id = ? ORDER BY stage_id, stage_order, id`, pipelineID)
	if err != nil {
		return b, err
	}
	defer rows.Close()
	for rows.Next() {
		var c model.Card
		if err := rows.Scan(&c.ID, &c.PipelineID, &c.PipelineStageID, &c.StageOrder, &c.Title); err != nil {
			return b, err
		}
		b.Cards = append(b.Cards, c)
	}
	return b, rows.Err()
}

// MoveToStage implements kanban.Mover. Stage and order change together.
func (s *Store) MoveToStage(ctx context.Context, cardID, stageID string, order float64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var stagePipeline, cardPipeline string
		err := tx.QueryRowContext(ctx, `SELECT pipeline_id FROM stages WHERE id = ?`, stageID).Scan(&stagePipeline)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		err = tx.QueryRowContext(ctx, `SELECT pipeline_id FROM cards WHERE id = ?`, cardID).Scan(&cardPipeline)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if stagePipeline != cardPipeline {
			return fmt.Errorf("%w: stage %s is not in the card's pipeline", ErrInvalid, stageID)
		}
		_, err = tx.ExecContext(ctx, `UPDATE cards SET stage_id = ?, stage_order = ? WHERE id = ?`, stageID, order, cardID)
		return err
	})
}

// CardPipeline returns the pipeline a card belongs to.
func (s *Store) CardPipeline(ctx context.Context, cardID string) (string, error) {
	var pipelineID string
	err := s.db.QueryRowContext(ctx, `SELECT pipeline_id FROM cards WHERE id = ?`, cardID).Scan(&pipelineID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return pipelineID, err
}
