package service

import (
	"context"
	"fmt"
	"time"

	"license-service/internal/models"
	"license-service/internal/redisclient"
	"license-service/internal/store"
	"license-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const sessionCacheTTL = 5 * time.Minute

// CartService owns cart session lifecycle and item mutation
type CartService struct {
	store  *store.Store
	cache  *redisclient.Client
	logger *zap.Logger
}

// NewCartService creates a new cart service. The cache may be nil; all
// reads fall through to the store.
func NewCartService(st *store.Store, cache *redisclient.Client) *CartService {
	return &CartService{
		store:  st,
		cache:  cache,
		logger: util.GetLogger(),
	}
}

// CartView is the session plus its items as returned to clients
type CartView struct {
	SessionID string             `json:"session_id"`
	Session   models.CartSession `json:"session"`
	Items     []models.CartItem  `json:"items"`
}

// CartMutationRequest is the body for add and remove calls
type CartMutationRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	LicenseID int64  `json:"license_id" binding:"required"`
}

// CartTotals is the response to add and remove calls
type CartTotals struct {
	Total    int64 `json:"total"`
	CareLoop int64 `json:"care_loop"`
}

// OpenOrResume returns the cart for the given session ID, creating a fresh
// active session when no ID is supplied. An unknown ID is ErrNotFound.
func (s *CartService) OpenOrResume(ctx context.Context, sessionID string) (*CartView, error) {
	ctx, span := util.StartSpan(ctx, "CartService.OpenOrResume")
	defer span.End()

	if sessionID == "" {
		sessionID = uuid.New().String()
		sess, err := s.store.CreateCartSession(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to create cart session: %w", err)
		}

		util.CartSessionsCreatedTotal.Inc()
		s.logger.Info("Cart session created", zap.String("session_id", sessionID))

		return &CartView{SessionID: sessionID, Session: *sess, Items: []models.CartItem{}}, nil
	}

	if s.cache != nil {
		var cached CartView
		if found, err := s.cache.GetCartSnapshot(ctx, sessionID, &cached); err == nil && found {
			return &cached, nil
		}
	}

	sess, err := s.store.GetCartSession(ctx, sessionID)
	if err == store.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart session: %w", err)
	}

	items, err := s.store.GetCartItems(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart items: %w", err)
	}
	if items == nil {
		items = []models.CartItem{}
	}

	view := &CartView{SessionID: sessionID, Session: *sess, Items: items}
	if s.cache != nil {
		if err := s.cache.SetCartSnapshot(ctx, sessionID, view, sessionCacheTTL); err != nil {
			s.logger.Warn("Failed to cache cart session", zap.String("session_id", sessionID), zap.Error(err))
		}
	}
	return view, nil
}

// AddItem puts an active license into the cart with its current price
// snapshotted. Later catalog price changes do not touch carts that already
// hold the item.
func (s *CartService) AddItem(ctx context.Context, req *CartMutationRequest) (*CartTotals, error) {
	ctx, span := util.StartSpan(ctx, "CartService.AddItem")
	defer span.End()

	lic, err := s.store.GetActiveLicense(ctx, req.LicenseID)
	if err == store.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load license: %w", err)
	}

	total, careLoop, err := s.store.AddCartItemTx(ctx, req.SessionID, lic.ID, lic.PriceCents)
	switch err {
	case nil:
	case store.ErrNotFound:
		return nil, ErrNotFound
	case store.ErrDuplicateItem:
		util.CartConflictsTotal.WithLabelValues("duplicate_item").Inc()
		return nil, conflict("license already in cart")
	case store.ErrSessionNotActive:
		util.CartConflictsTotal.WithLabelValues("not_active").Inc()
		return nil, conflict("cart session is not active")
	default:
		return nil, fmt.Errorf("failed to add cart item: %w", err)
	}

	util.CartItemsAddedTotal.Inc()
	s.invalidate(ctx, req.SessionID)
	s.logger.Info("Added license to cart",
		zap.String("session_id", req.SessionID),
		zap.Int64("license_id", req.LicenseID),
		zap.Int64("total", total))

	return &CartTotals{Total: total, CareLoop: careLoop}, nil
}

// RemoveItem takes a license out of the cart. Removing an absent item is a
// successful no-op; totals are recomputed either way.
func (s *CartService) RemoveItem(ctx context.Context, req *CartMutationRequest) (*CartTotals, error) {
	ctx, span := util.StartSpan(ctx, "CartService.RemoveItem")
	defer span.End()

	total, careLoop, err := s.store.RemoveCartItemTx(ctx, req.SessionID, req.LicenseID)
	switch err {
	case nil:
	case store.ErrNotFound:
		return nil, ErrNotFound
	case store.ErrSessionNotActive:
		util.CartConflictsTotal.WithLabelValues("not_active").Inc()
		return nil, conflict("cart session is not active")
	default:
		return nil, fmt.Errorf("failed to remove cart item: %w", err)
	}

	util.CartItemsRemovedTotal.Inc()
	s.invalidate(ctx, req.SessionID)

	return &CartTotals{Total: total, CareLoop: careLoop}, nil
}

func (s *CartService) invalidate(ctx context.Context, sessionID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateCartSnapshot(ctx, sessionID); err != nil {
		s.logger.Warn("Failed to invalidate cart cache",
			zap.String("session_id", sessionID), zap.Error(err))
	}
}
