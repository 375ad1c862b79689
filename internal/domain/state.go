package domain

import (
	"encoding/json"
	"fmt"
)

// Bookmark records how far an incremental stream has been read.
type Bookmark struct {
	ReplicationKey      string `json:"replication_key,omitempty"`
	ReplicationKeyValue any    `json:"replication_key_value,omitempty"`
}

// State is the Singer state document. Top level keys other than
// "bookmarks" are carried through untouched.
type State struct {
	Bookmarks map[string]*Bookmark
	extra     map[string]json.RawMessage
}

// NewState returns an empty state.
func NewState() *State {
	return &State{Bookmarks: make(map[string]*Bookmark)}
}

// Bookmark returns the bookmark of a stream, or nil.
func (s *State) Bookmark(streamID string) *Bookmark {
	if s == nil {
		return nil
	}
	return s.Bookmarks[streamID]
}

// SetBookmark replaces the bookmark of a stream.
func (s *State) SetBookmark(streamID, key string, value any) {
	if s.Bookmarks == nil {
		s.Bookmarks = make(map[string]*Bookmark)
	}
	s.Bookmarks[streamID] = &Bookmark{ReplicationKey: key, ReplicationKeyValue: value}
}

// Clone returns a copy safe to serialize while the original keeps changing.
func (s *State) Clone() *State {
	out := &State{Bookmarks: make(map[string]*Bookmark, len(s.Bookmarks)), extra: s.extra}
	for id, b := range s.Bookmarks {
		cp := *b
		out.Bookmarks[id] = &cp
	}
	return out
}

func (s *State) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(s.extra)+1)
	for k, v := range s.extra {
		doc[k] = v
	}
	bookmarks := s.Bookmarks
	if bookmarks == nil {
		bookmarks = map[string]*Bookmark{}
	}
	doc["bookmarks"] = bookmarks
	return json.Marshal(doc)
}

func (s *State) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("state must be a JSON object: %w", err)
	}
	s.Bookmarks = make(map[string]*Bookmark)
	s.extra = nil
	for k, v := range raw {
		if k == "bookmarks" {
			continue
		}
		if s.extra == nil {
			s.extra = make(map[string]json.RawMessage)
		}
		s.extra[k] = v
	}
	if bm, ok := raw["bookmarks"]; ok && string(bm) != "null" {
		if err := decodeUseNumber(bm, &s.Bookmarks); err != nil {
			return fmt.Errorf("failed to decode bookmarks: %w", err)
		}
	}
	return nil
}
