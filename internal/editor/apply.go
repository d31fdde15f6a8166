package editor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"receiptmaker/internal/receipt"
)

type OpKind string

const (
	OpUpdate    OpKind = "update"
	OpRemove    OpKind = "remove"
	OpDuplicate OpKind = "duplicate"
	OpReorder   OpKind = "reorder"
	OpAdd       OpKind = "add"
	OpSettings  OpKind = "settings"
)

var ErrInvalidOperation = errors.New("invalid editor operation")

// Operation is one JSON-described edit.
type Operation struct {
	Op       OpKind                    `json:"op" binding:"required"`
	ID       string                    `json:"id,omitempty"`
	FromID   string                    `json:"fromId,omitempty"`
	ToID     string                    `json:"toId,omitempty"`
	Type     receipt.Kind              `json:"type,omitempty"`
	Section  json.RawMessage           `json:"section,omitempty"`
	Settings *receipt.TemplateSettings `json:"settings,omitempty"`
}

// Apply runs ops in order. If any op fails the document is restored to its
// state before the batch.
func (s *Session) Apply(ctx context.Context, ops []Operation) error {
	snapshot := s.doc.Clone()
	for i, op := range ops {
		if err := s.apply(ctx, op); err != nil {
			s.doc = snapshot
			s.recompose()
			return fmt.Errorf("operation %d (%s): %w", i, op.Op, err)
		}
	}
	return nil
}

func (s *Session) apply(ctx context.Context, op Operation) error {
	switch op.Op {
	case OpUpdate:
		sec, err := receipt.DecodeSection(op.Section)
		if err != nil {
			return err
		}
		s.UpdateSection(sec)
	case OpRemove:
		s.RemoveSection(op.ID)
	case OpDuplicate:
		s.DuplicateSection(op.ID)
	case OpReorder:
		s.Reorder(op.FromID, op.ToID)
	case OpAdd:
		if _, err := s.AddSection(ctx, op.Type); err != nil {
			return err
		}
	case OpSettings:
		if op.Settings == nil {
			return fmt.Errorf("%w: settings missing", ErrInvalidOperation)
		}
		return s.UpdateSettings(*op.Settings)
	default:
		return fmt.Errorf("%w: unknown op %q", ErrInvalidOperation, op.Op)
	}
	return nil
}
