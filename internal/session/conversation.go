package session

import (
	"context"
	"fmt"

	"github.com/sjnosa/connect/internal/metrics"
	"github.com/sjnosa/connect/internal/models"
	"github.com/sjnosa/connect/internal/realtime"
)

// messagesFilter takes every new message; the hub keeps only those of the open thread,
// which includes the echoes of our own sends.
var messagesFilter = realtime.Filter{Table: realtime.TableMessages, Op: realtime.OpInsert}

// OpenConversation makes the thread with peerID the active conversation and returns it once
// loaded. Results still in flight for a previously open thread are discarded.
func (s *Session) OpenConversation(ctx context.Context, peerID string) (ThreadSnapshot, error) {
	if peerID == "" || peerID == s.userID {
		return ThreadSnapshot{}, fmt.Errorf("%w: peer %q", ErrInvalidDraft, peerID)
	}
	scope := models.ConversationScope(s.userID, peerID)
	me := s.userID

	var ready <-chan struct{}
	var err error
	if e := s.do(ctx, func() {
		ready, err = s.activate(s.conversation, []binding{{scope: scope, filter: messagesFilter}},
			func(ctx context.Context) ([]models.Record, error) {
				msgs, err := s.backend.ListMessages(ctx, me, peerID)
				if err != nil {
					return nil, err
				}
				out := make([]models.Record, len(msgs))
				for i := range msgs {
					out[i] = msgs[i].ToRecord()
				}
				return out, nil
			})
	}); e != nil {
		return ThreadSnapshot{}, e
	}
	if err != nil {
		return ThreadSnapshot{}, err
	}
	if err := s.wait(ctx, ready); err != nil {
		return ThreadSnapshot{}, err
	}
	return s.Conversation(ctx)
}

// Conversation returns the active conversation.
func (s *Session) Conversation(ctx context.Context) (ThreadSnapshot, error) {
	var snap ThreadSnapshot
	var err error
	if e := s.do(ctx, func() {
		if !s.conversation.active {
			err = ErrScopeInactive
			return
		}
		snap = s.threadSnapshot(s.conversation)
	}); e != nil {
		return ThreadSnapshot{}, e
	}
	return snap, err
}

// CloseConversation leaves the active conversation.
func (s *Session) CloseConversation(ctx context.Context) error {
	return s.close(ctx, s.conversation)
}

// RefreshConversation re-reads the active conversation.
func (s *Session) RefreshConversation(ctx context.Context) (ThreadSnapshot, error) {
	if err := s.refresh(ctx, s.conversation); err != nil {
		return ThreadSnapshot{}, err
	}
	return s.Conversation(ctx)
}

// SendMessage shows content in the thread with peerID right away and writes it in the
// background. peerID must be the active conversation.
func (s *Session) SendMessage(ctx context.Context, peerID, content string) (ThreadSnapshot, string, error) {
	if err := s.validate(models.SendMessageRequest{Content: content}); err != nil {
		return ThreadSnapshot{}, "", err
	}
	scope := models.ConversationScope(s.userID, peerID)
	v := s.conversation

	var snap ThreadSnapshot
	var tempID string
	var err error
	if e := s.do(ctx, func() {
		if !v.active || v.scope != scope {
			err = ErrScopeInactive
			return
		}
		tempID = s.tracker.Apply(scope, models.Record{AuthorID: s.userID, Content: content, CreatedAt: s.opts.Now()})
		metrics.OptimisticWrites.WithLabelValues(string(v.kind), "applied").Inc()

		msg := &models.Message{SenderID: s.userID, ReceiverID: peerID, Content: content}
		gen := v.gen
		go func() {
			werr := s.backend.SendMessage(s.ctx, msg)
			s.post(func() { s.settle(v, gen, tempID, msg.ToRecord(), werr) })
		}()
		snap = s.threadSnapshot(v)
	}); e != nil {
		return ThreadSnapshot{}, "", e
	}
	return snap, tempID, err
}

// settle resolves an optimistic entry with the outcome of its write.
// Must run on the loop.
func (s *Session) settle(v *slot, gen uint64, tempID string, server models.Record, werr error) {
	if werr != nil {
		if _, err := s.tracker.Revert(tempID, werr); err != nil {
			metrics.StaleResults.WithLabelValues(string(v.kind)).Inc()
			return
		}
		metrics.OptimisticWrites.WithLabelValues(string(v.kind), "reverted").Inc()
		s.logger.Warn("write rejected", "scope", v.scope.String(), "temp_id", tempID, "error", werr)
		if v.current(gen) {
			v.err = newViewError(tempID, fmt.Errorf("%w: %w", ErrWriteRejected, werr))
		}
		return
	}

	entry, err := s.tracker.Confirm(tempID, server)
	if err != nil {
		metrics.StaleResults.WithLabelValues(string(v.kind)).Inc()
		return
	}
	metrics.OptimisticWrites.WithLabelValues(string(v.kind), "confirmed").Inc()
	if !v.current(gen) {
		return
	}
	if !v.upsert(entry.Record) {
		// the push echo got here first
		metrics.EchoesSuppressed.WithLabelValues(string(v.kind)).Inc()
		return
	}
	switch v.kind {
	case models.ScopeComments:
		s.bumpCommentCount(v.scope.Key)
	case models.ScopeFeed:
		s.reactions.Seed(entry.Record.ID, entry.Record.LikesCount, s.userID, false)
	}
}
