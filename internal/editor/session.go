// Package editor keeps one receipt document under edit and recomposes its
// preview after every change.
package editor

import (
	"context"
	"fmt"
	"slices"

	"receiptmaker/internal/receipt"
	"receiptmaker/internal/render"
)

// DefaultsSource resolves the starting data for a new section of kind.
type DefaultsSource interface {
	Default(ctx context.Context, kind receipt.Kind) (receipt.Section, error)
}

// Session owns a document and its current RenderTree. Operations address
// sections by id only. A Session is not safe for concurrent use.
type Session struct {
	doc      receipt.Document
	defaults DefaultsSource
	composer *render.Composer
	tree     render.RenderTree
	newID    func(receipt.Kind) string
}

func NewSession(doc receipt.Document, defaults DefaultsSource, composer *render.Composer) *Session {
	s := &Session{
		doc:      doc.Clone(),
		defaults: defaults,
		composer: composer,
		newID:    receipt.NewSectionID,
	}
	s.recompose()
	return s
}

func (s *Session) recompose() {
	s.tree = s.composer.Compose(s.doc)
}

// Document returns a copy of the document under edit.
func (s *Session) Document() receipt.Document {
	return s.doc.Clone()
}

// Preview returns the tree composed after the last mutation.
func (s *Session) Preview() render.RenderTree {
	return s.tree
}

func (s *Session) freshID(kind receipt.Kind) string {
	for {
		id := s.newID(kind)
		if !s.doc.HasID(id) {
			return id
		}
	}
}

// UpdateSection replaces the section with the same id. Unknown ids are a
// no-op and report false, as does a nil section.
func (s *Session) UpdateSection(updated receipt.Section) bool {
	if updated == nil {
		return false
	}
	i := s.doc.IndexOf(updated.SectionID())
	if i < 0 {
		return false
	}
	s.doc.Sections[i] = receipt.CloneSection(updated)
	s.recompose()
	return true
}

// RemoveSection drops the section with id. Unknown ids are a no-op.
func (s *Session) RemoveSection(id string) bool {
	i := s.doc.IndexOf(id)
	if i < 0 {
		return false
	}
	s.doc.Sections = slices.Delete(s.doc.Sections, i, i+1)
	s.recompose()
	return true
}

// DuplicateSection inserts a deep copy with a new id right after the
// original and returns the new id.
func (s *Session) DuplicateSection(id string) (string, bool) {
	i := s.doc.IndexOf(id)
	if i < 0 {
		return "", false
	}
	dup := receipt.CloneSection(s.doc.Sections[i])
	newID := s.freshID(dup.Kind())
	dup.SetID(newID)
	s.doc.Sections = slices.Insert(s.doc.Sections, i+1, dup)
	s.recompose()
	return newID, true
}

// Reorder moves the section fromID into the position currently held by toID.
// The other sections keep their relative order.
func (s *Session) Reorder(fromID, toID string) bool {
	from, to := s.doc.IndexOf(fromID), s.doc.IndexOf(toID)
	if from < 0 || to < 0 {
		return false
	}
	if from == to {
		return true
	}
	moved := s.doc.Sections[from]
	s.doc.Sections = slices.Delete(s.doc.Sections, from, from+1)
	s.doc.Sections = slices.Insert(s.doc.Sections, to, moved)
	s.recompose()
	return true
}

// AddSection appends a new section of kind built from the configured
// defaults, with a fresh id.
func (s *Session) AddSection(ctx context.Context, kind receipt.Kind) (receipt.Section, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", receipt.ErrUnknownKind, kind)
	}
	sec, err := s.defaults.Default(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("resolve default for %s: %w", kind, err)
	}
	sec = receipt.CloneSection(sec)
	sec.SetID(s.freshID(kind))
	s.doc.Sections = append(s.doc.Sections, sec)
	s.recompose()
	return receipt.CloneSection(sec), nil
}

// UpdateSettings replaces the document settings. Empty fields take defaults.
func (s *Session) UpdateSettings(settings receipt.TemplateSettings) error {
	settings = settings.WithDefaults()
	if err := receipt.ValidateSettings(settings); err != nil {
		return err
	}
	s.doc.Settings = settings
	s.recompose()
	return nil
}
