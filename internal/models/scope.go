package models

import (
	"fmt"
	"strings"
)

// ScopeKind names the synchronization unit a scope refers to.
type ScopeKind string

const (
	ScopeConversation ScopeKind = "conversation"
	ScopeFeed         ScopeKind = "feed"
	ScopeComments     ScopeKind = "comments"
	ScopeEvents       ScopeKind = "events"
	ScopeReactions    ScopeKind = "reactions"
)

// Scope identifies a synchronization unit. Two scopes are the same unit iff they compare equal.
type Scope struct {
	Kind ScopeKind `json:"kind"`
	Key  string    `json:"key,omitempty"`
}

// ConversationScope returns the scope of the 1:1 thread between a and b.
// The participant order does not matter.
func ConversationScope(a, b string) Scope {
	if b < a {
		a, b = b, a
	}
	return Scope{Kind: ScopeConversation, Key: a + ":" + b}
}

// FeedScope returns the scope of the global feed.
func FeedScope() Scope {
	return Scope{Kind: ScopeFeed}
}

// CommentsScope returns the scope of a single post's comment list.
func CommentsScope(postID string) Scope {
	return Scope{Kind: ScopeComments, Key: postID}
}

// EventsScope returns the scope of the global school event stream.
func EventsScope() Scope {
	return Scope{Kind: ScopeEvents}
}

// ReactionsScope returns the scope of like/unlike changes on feed posts.
func ReactionsScope() Scope {
	return Scope{Kind: ScopeReactions}
}

// Participants returns both user ids of a conversation scope.
func (s Scope) Participants() (string, string, bool) {
	if s.Kind != ScopeConversation {
		return "", "", false
	}
	a, b, ok := strings.Cut(s.Key, ":")
	return a, b, ok
}

func (s Scope) IsZero() bool {
	return s.Kind == ""
}

func (s Scope) String() string {
	if s.Key == "" {
		return string(s.Kind)
	}
	return fmt.Sprintf("%s:%s", s.Kind, s.Key)
}
