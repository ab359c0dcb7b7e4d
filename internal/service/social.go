package service

import (
	"context"
	"strings"
	"time"

	"github.com/Nate-Schaefer/SmartDart-App/internal/apperr"
	"github.com/Nate-Schaefer/SmartDart-App/internal/models"
	"github.com/Nate-Schaefer/SmartDart-App/internal/obslog"
	"github.com/Nate-Schaefer/SmartDart-App/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SocialOptions tunes the social graph.
type SocialOptions struct {
	SearchLimit    int
	MaxSearchLimit int
}

// SocialService manages friend requests and friendships.
type SocialService struct {
	postgresRepo *repository.PostgresRepository
	opts         SocialOptions
	now          func() time.Time
}

// NewSocialService creates a new social service
func NewSocialService(postgresRepo *repository.PostgresRepository, opts SocialOptions) *SocialService {
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = 10
	}
	if opts.MaxSearchLimit < opts.SearchLimit {
		opts.MaxSearchLimit = opts.SearchLimit
	}
	return &SocialService{
		postgresRepo: postgresRepo,
		opts:         opts,
		now:          time.Now,
	}
}

// SendRequest creates a pending request from sender to receiver.
func (s *SocialService) SendRequest(ctx context.Context, senderID, receiverID string) (*models.FriendRequest, error) {
	if receiverID == "" {
		return nil, apperr.Invalid("receiver id is required")
	}
	if senderID == receiverID {
		return nil, apperr.ErrSelfRequest
	}

	pairKey := models.PairKey(senderID, receiverID)
	req := &models.FriendRequest{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Status:     models.FriendRequestPending,
		PairKey:    pairKey,
		PendingKey: &pairKey,
		CreatedAt:  s.now().UTC(),
	}

	err := s.postgresRepo.Transaction(ctx, func(tx *repository.PostgresRepository) error {
		if _, err := tx.GetUser(ctx, senderID); err != nil {
			return err
		}
		if _, err := tx.GetUser(ctx, receiverID); err != nil {
			return err
		}
		friends, err := tx.AreFriends(ctx, senderID, receiverID)
		if err != nil {
			return err
		}
		if friends {
			return apperr.ErrAlreadyFriends
		}
		pending, err := tx.FindPendingBetween(ctx, senderID, receiverID)
		if err != nil {
			return err
		}
		if pending != nil {
			return apperr.ErrDuplicatePending
		}
		return tx.CreateFriendRequest(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	obslog.L().Info("friend_request_sent",
		zap.String("request_id", req.ID),
		zap.String("sender_id", senderID),
		zap.String("receiver_id", receiverID),
	)
	return req, nil
}

// Accept turns a pending request into a friendship. Only the receiver may
// accept.
func (s *SocialService) Accept(ctx context.Context, requestID, callerID string) (*models.FriendRequest, error) {
	var out *models.FriendRequest
	err := s.postgresRepo.Transaction(ctx, func(tx *repository.PostgresRepository) error {
		req, err := tx.GetFriendRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if req.ReceiverID != callerID {
			return apperr.ErrForbidden
		}
		now := s.now().UTC()
		if err := tx.TransitionFriendRequest(ctx, requestID, models.FriendRequestAccepted, now); err != nil {
			return err
		}
		if err := tx.CreateFriendship(ctx, req.SenderID, req.ReceiverID, now); err != nil {
			return err
		}
		out, err = tx.GetFriendRequest(ctx, requestID)
		return err
	})
	if err != nil {
		return nil, err
	}

	obslog.L().Info("friend_request_accepted",
		zap.String("request_id", requestID),
		zap.String("sender_id", out.SenderID),
		zap.String("receiver_id", out.ReceiverID),
	)
	return out, nil
}

// Decline closes a pending request. Only the receiver may decline.
func (s *SocialService) Decline(ctx context.Context, requestID, callerID string) (*models.FriendRequest, error) {
	return s.close(ctx, requestID, callerID, models.FriendRequestDeclined)
}

// Cancel withdraws a pending request. Only the sender may cancel.
func (s *SocialService) Cancel(ctx context.Context, requestID, callerID string) (*models.FriendRequest, error) {
	return s.close(ctx, requestID, callerID, models.FriendRequestCanceled)
}

func (s *SocialService) close(ctx context.Context, requestID, callerID string, to models.FriendRequestStatus) (*models.FriendRequest, error) {
	req, err := s.postgresRepo.GetFriendRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	allowed := req.ReceiverID
	if to == models.FriendRequestCanceled {
		allowed = req.SenderID
	}
	if callerID != allowed {
		return nil, apperr.ErrForbidden
	}

	if err := s.postgresRepo.TransitionFriendRequest(ctx, requestID, to, s.now().UTC()); err != nil {
		return nil, err
	}

	obslog.L().Info("friend_request_closed",
		zap.String("request_id", requestID),
		zap.String("status", string(to)),
	)
	return s.postgresRepo.GetFriendRequest(ctx, requestID)
}

// Unfriend removes the friendship between a and b.
func (s *SocialService) Unfriend(ctx context.Context, a, b string) error {
	if a == b {
		return apperr.ErrNotFriends
	}
	if err := s.postgresRepo.DeleteFriendship(ctx, a, b); err != nil {
		return err
	}
	obslog.L().Info("friendship_removed", zap.String("user_id", a), zap.String("friend_id", b))
	return nil
}

// Friends lists the profiles of userID's friends.
func (s *SocialService) Friends(ctx context.Context, userID string) ([]models.User, error) {
	ids, err := s.postgresRepo.FriendIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.profilesInOrder(ctx, ids)
}

// Search finds users by username prefix who are not the caller, not friends
// and have no pending request with the caller in either direction. It keeps
// reading pages of the prefix range until limit results are collected or the
// range is exhausted.
func (s *SocialService) Search(ctx context.Context, query, userID string, limit int) ([]models.User, error) {
	query = strings.TrimSpace(query)
	results := make([]models.User, 0)
	if query == "" {
		return results, nil
	}
	limit = s.clampLimit(limit)

	excluded := map[string]struct{}{userID: {}}
	friendIDs, err := s.postgresRepo.FriendIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	pendingIDs, err := s.postgresRepo.PendingCounterpartIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, id := range append(friendIDs, pendingIDs...) {
		excluded[id] = struct{}{}
	}

	pageSize := limit + len(excluded)
	after := ""
	for len(results) < limit {
		page, err := s.postgresRepo.FindByUsernamePrefix(ctx, query, after, pageSize)
		if err != nil {
			return nil, err
		}
		for _, u := range page {
			if _, skip := excluded[u.ID]; skip {
				continue
			}
			results = append(results, u)
			if len(results) == limit {
				break
			}
		}
		if len(page) < pageSize {
			break
		}
		after = page[len(page)-1].Username
	}
	return results, nil
}

// Overview loads friends and both request lists concurrently.
func (s *SocialService) Overview(ctx context.Context, userID string) (*models.FriendsOverview, error) {
	var (
		friendIDs []string
		incoming  []models.FriendRequest
		outgoing  []models.FriendRequest
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		friendIDs, err = s.postgresRepo.FriendIDs(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		incoming, err = s.postgresRepo.PendingRequests(gctx, userID, true)
		return err
	})
	g.Go(func() error {
		var err error
		outgoing, err = s.postgresRepo.PendingRequests(gctx, userID, false)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ids := append([]string{}, friendIDs...)
	for _, r := range incoming {
		ids = append(ids, r.SenderID)
	}
	for _, r := range outgoing {
		ids = append(ids, r.ReceiverID)
	}
	profiles, err := s.postgresRepo.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := &models.FriendsOverview{
		Friends:  make([]models.User, 0, len(friendIDs)),
		Incoming: make([]models.FriendRequestView, 0, len(incoming)),
		Outgoing: make([]models.FriendRequestView, 0, len(outgoing)),
	}
	for _, id := range friendIDs {
		if u, ok := profiles[id]; ok {
			out.Friends = append(out.Friends, u)
		}
	}
	for _, r := range incoming {
		out.Incoming = append(out.Incoming, models.FriendRequestView{Request: r, User: profiles[r.SenderID]})
	}
	for _, r := range outgoing {
		out.Outgoing = append(out.Outgoing, models.FriendRequestView{Request: r, User: profiles[r.ReceiverID]})
	}
	return out, nil
}

func (s *SocialService) profilesInOrder(ctx context.Context, ids []string) ([]models.User, error) {
	profiles, err := s.postgresRepo.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := profiles[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *SocialService) clampLimit(limit int) int {
	if limit <= 0 {
		return s.opts.SearchLimit
	}
	if limit > s.opts.MaxSearchLimit {
		return s.opts.MaxSearchLimit
	}
	return limit
}
