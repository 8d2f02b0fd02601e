package graph

import (
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// SetContent stores text on a link, normalised to NFC so that equal strings
// compare equal regardless of how they were composed.
func (s *Store) SetContent(h Handle, content string) error {
	s.mu.Lock()
	sl := s.lookup(h)
	if sl == nil {
		s.mu.Unlock()
		return fmt.Errorf("set content: %w", ErrNotFound)
	}
	if !sl.typ.IsLink() {
		s.mu.Unlock()
		return fmt.Errorf("set content on %s: %w", h, ErrNotLink)
	}
	sl.content = norm.NFC.String(content)
	sl.hasContent = true
	s.mu.Unlock()
	s.bus.deliver([]Event{{Kind: ContentChanged, Subject: h}})
	return nil
}

// ClearContent removes the text stored on a link. It reports whether the
// link had content.
func (s *Store) ClearContent(h Handle) (bool, error) {
	s.mu.Lock()
	sl := s.lookup(h)
	if sl == nil {
		s.mu.Unlock()
		return false, fmt.Errorf("clear content: %w", ErrNotFound)
	}
	if !sl.typ.IsLink() {
		s.mu.Unlock()
		return false, fmt.Errorf("clear content of %s: %w", h, ErrNotLink)
	}
	had := sl.hasContent
	sl.content, sl.hasContent = "", false
	s.mu.Unlock()
	if had {
		s.bus.deliver([]Event{{Kind: ContentChanged, Subject: h}})
	}
	return had, nil
}

// Content returns the text stored on a link.
func (s *Store) Content(h Handle) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sl := s.lookup(h)
	if sl == nil || !sl.hasContent {
		return "", false
	}
	return sl.content, true
}

// FindLinks returns every link whose content equals content after
// normalisation.
func (s *Store) FindLinks(content string) []Handle {
	content = norm.NFC.String(content)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Handle
	for i := 1; i < len(s.slots); i++ {
		sl := &s.slots[i]
		if sl.live && sl.hasContent && sl.content == content {
			out = append(out, Handle{index: uint32(i), gen: sl.gen})
		}
	}
	return out
}
