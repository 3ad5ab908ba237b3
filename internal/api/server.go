// Package api exposes the auction engine over HTTP: JSON endpoints for
// commits, reveals and permissionless lifecycle calls, plus a
// websocket event feed.
package api

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"sealed-batch-dex/internal/commitment"
	"sealed-batch-dex/internal/domain"
	"sealed-batch-dex/internal/log"
	"sealed-batch-dex/internal/observability"
	"sealed-batch-dex/internal/orchestrator"
	"sealed-batch-dex/internal/reveal"
	"sealed-batch-dex/internal/slashing"
	"sealed-batch-dex/internal/storage"
)

const moduleName = "api"

// Handler serves the auction API.
type Handler struct {
	registry  *commitment.Registry
	validator *reveal.Validator
	orch      *orchestrator.Orchestrator
	slasher   *slashing.Slasher

	batches     storage.BatchStore
	commitments storage.CommitmentStore
	orders      storage.RevealedOrderStore
	pools       storage.PoolStore
	execOrders  storage.ExecutionOrderStore

	params  domain.Params
	hub     *Hub
	logger  *log.Logger
	metrics *observability.Metrics // optional
}

// HandlerOptions contains configuration for creating a Handler.
type HandlerOptions struct {
	Registry  *commitment.Registry
	Validator *reveal.Validator
	Orch      *orchestrator.Orchestrator
	Slasher   *slashing.Slasher

	BatchStore          storage.BatchStore
	CommitmentStore     storage.CommitmentStore
	OrderStore          storage.RevealedOrderStore
	PoolStore           storage.PoolStore
	ExecutionOrderStore storage.ExecutionOrderStore

	Params  domain.Params
	Hub     *Hub
	Logger  *log.Logger
	Metrics *observability.Metrics
}

// NewHandler creates the API handler.
func NewHandler(opts HandlerOptions) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Handler{
		registry:    opts.Registry,
		validator:   opts.Validator,
		orch:        opts.Orch,
		slasher:     opts.Slasher,
		batches:     opts.BatchStore,
		commitments: opts.CommitmentStore,
		orders:      opts.OrderStore,
		pools:       opts.PoolStore,
		execOrders:  opts.ExecutionOrderStore,
		params:      opts.Params,
		hub:         opts.Hub,
		logger:      logger.With(moduleName),
		metrics:     opts.Metrics,
	}
}

// Router builds the chi router for the API.
func (h *Handler) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.health)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/commitments", h.postCommit)
		r.Get("/commitments/{commit_id}", h.getCommitment)
		r.Post("/commitments/{commit_id}/slash", h.postSlash)

		r.Post("/reveals", h.postReveal)

		r.Get("/batches/current", h.getCurrentBatch)
		r.Get("/batches/{batch_id}", h.getBatch)
		r.Post("/batches/advance", h.postAdvance)
		r.Post("/batches/{batch_id}/settle", h.postSettle)
		r.Get("/batches/{batch_id}/execution-order", h.getExecutionOrder)
		r.Get("/batches/{batch_id}/orders", h.getRevealedOrders)

		r.Get("/pools", h.listPools)
		r.Get("/pools/{pool_id}", h.getPool)

		r.Get("/params", h.getParams)

		if h.hub != nil {
			r.Get("/events", h.hub.ServeWS)
		}
	})
	return r
}

// commitRequest is the POST /v1/commitments body.
type commitRequest struct {
	Depositor  string `json:"depositor"`
	PoolID     string `json:"pool_id"`
	CommitHash string `json:"commit_hash"` // hex, 32 bytes
	Deposit    uint64 `json:"deposit"`
}

func (h *Handler) postCommit(w http.ResponseWriter, r *http.Request) {
	var req commitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	hash, err := parseHash(req.CommitHash)
	if err != nil {
		h.fail(w, http.StatusBadRequest, err)
		return
	}

	c, err := h.registry.Commit(r.Context(), commitment.CommitRequest{
		Depositor:  req.Depositor,
		PoolID:     req.PoolID,
		CommitHash: hash,
		Deposit:    req.Deposit,
	})
	if err != nil {
		if h.metrics != nil {
			h.metrics.CommitFailures.WithLabelValues(rejectionReason(err)).Inc()
		}
		h.failMapped(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.CommitsTotal.Inc()
	}
	h.writeJSON(w, http.StatusCreated, commitmentView(c))
}

// revealRequest is the POST /v1/reveals body.
type revealRequest struct {
	Kind        string `json:"kind"` // reveal | reclaim | cross_venue
	CommitID    string `json:"commit_id"`
	Trader      string `json:"trader"`
	AssetIn     string `json:"asset_in"`
	AssetOut    string `json:"asset_out"`
	AmountIn    uint64 `json:"amount_in"`
	MinOut      uint64 `json:"min_amount_out"`
	Secret      string `json:"secret"` // hex, 32 bytes
	PriorityBid uint64 `json:"priority_bid"`
	Venue       string `json:"venue,omitempty"`
	Caller      string `json:"caller,omitempty"`
}

func (h *Handler) postReveal(w http.ResponseWriter, r *http.Request) {
	var req revealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	secret, err := parseSecret(req.Secret)
	if err != nil {
		h.fail(w, http.StatusBadRequest, err)
		return
	}

	kind := reveal.Kind(req.Kind)
	if req.Kind == "" {
		kind = reveal.KindReveal
	}

	order := domain.Order{
		Trader:       req.Trader,
		AssetIn:      req.AssetIn,
		AssetOut:     req.AssetOut,
		AmountIn:     req.AmountIn,
		MinAmountOut: req.MinOut,
	}
	if err := order.Validate(); err != nil {
		h.fail(w, http.StatusBadRequest, err)
		return
	}

	o, err := h.validator.Reveal(r.Context(), reveal.Request{
		Kind:        kind,
		CommitID:    req.CommitID,
		Order:       order,
		Secret:      secret,
		PriorityBid: req.PriorityBid,
		Venue:       req.Venue,
		Caller:      req.Caller,
	})
	if err != nil {
		if h.metrics != nil {
			h.metrics.RevealFailures.WithLabelValues(rejectionReason(err)).Inc()
		}
		h.failMapped(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RevealsTotal.WithLabelValues(string(kind)).Inc()
	}
	h.writeJSON(w, http.StatusCreated, map[string]any{
		"commit_id":    o.CommitID,
		"batch_id":     o.BatchID,
		"reveal_index": o.RevealIndex,
		"reclaim":      o.Reclaim,
	})
}

func (h *Handler) postAdvance(w http.ResponseWriter, r *http.Request) {
	b, err := h.orch.AdvancePhase(r.Context())
	if err != nil {
		h.failMapped(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, batchView(b))
}

func (h *Handler) postSettle(w http.ResponseWriter, r *http.Request) {
	batchID, err := pathInt64(r, "batch_id")
	if err != nil {
		h.fail(w, http.StatusBadRequest, err)
		return
	}

	res, err := h.orch.SettleBatch(r.Context(), batchID)
	if err != nil {
		h.failMapped(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"batch":       batchView(res.Batch),
		"settlements": res.Settlements,
		"outcomes":    res.Outcomes,
		"slashed":     len(res.Slashed),
		"next_batch":  batchView(res.NextBatch),
	})
}

func (h *Handler) postSlash(w http.ResponseWriter, r *http.Request) {
	commitID := chi.URLParam(r, "commit_id")

	res, err := h.slasher.SlashUnrevealed(r.Context(), commitID)
	if err != nil {
		h.failMapped(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"commit_id":       res.CommitID,
		"forfeited":       res.Forfeited,
		"refunded":        res.Refunded,
		"already_slashed": res.AlreadySlashed,
	})
}

func (h *Handler) getCurrentBatch(w http.ResponseWriter, r *http.Request) {
	b, err := h.batches.GetLatest(r.Context())
	if err != nil {
		h.failMapped(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, batchView(b))
}

func (h *Handler) getBatch(w http.ResponseWriter, r *http.Request) {
	batchID, err := pathInt64(r, "batch_id")
	if err != nil {
		h.fail(w, http.StatusBadRequest, err)
		return
	}
	b, err := h.batches.GetByID(r.Context(), batchID)
	if err != nil {
		h.failMapped(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, batchView(b))
}

func (h *Handler) getCommitment(w http.ResponseWriter, r *http.Request) {
	c, err := h.commitments.GetByID(r.Context(), chi.URLParam(r, "commit_id"))
	if err != nil {
		h.failMapped(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, commitmentView(c))
}

func (h *Handler) getExecutionOrder(w http.ResponseWriter, r *http.Request) {
	batchID, err := pathInt64(r, "batch_id")
	if err != nil {
		h.fail(w, http.StatusBadRequest, err)
		return
	}
	e, err := h.execOrders.GetByBatch(r.Context(), batchID)
	if err != nil {
		h.failMapped(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"batch_id":    e.BatchID,
		"seed":        hex.EncodeToString(e.Seed[:]),
		"permutation": e.Permutation,
		"computed_at": e.ComputedAt,
	})
}

// getRevealedOrders returns a batch's revealed orders. Hidden until the
// batch settles so disclosed orders cannot inform late reveals.
func (h *Handler) getRevealedOrders(w http.ResponseWriter, r *http.Request) {
	batchID, err := pathInt64(r, "batch_id")
	if err != nil {
		h.fail(w, http.StatusBadRequest, err)
		return
	}

	b, err := h.batches.GetByID(r.Context(), batchID)
	if err != nil {
		h.failMapped(w, err)
		return
	}
	if !b.IsSettled {
		h.fail(w, http.StatusNotFound, errors.New("orders are sealed until the batch settles"))
		return
	}

	orders, err := h.orders.GetByBatch(r.Context(), batchID)
	if err != nil {
		h.failMapped(w, err)
		return
	}
	views := make([]map[string]any, 0, len(orders))
	for _, o := range orders {
		views = append(views, map[string]any{
			"commit_id":    o.CommitID,
			"reveal_index": o.RevealIndex,
			"pool_id":      o.PoolID,
			"trader":       o.Order.Trader,
			"asset_in":     o.Order.AssetIn,
			"asset_out":    o.Order.AssetOut,
			"amount_in":    o.Order.AmountIn,
			"min_out":      o.Order.MinAmountOut,
			"priority_bid": o.PriorityBid,
			"source_venue": o.SourceVenue,
			"reclaim":      o.Reclaim,
		})
	}
	h.writeJSON(w, http.StatusOK, views)
}

func (h *Handler) listPools(w http.ResponseWriter, r *http.Request) {
	pools, err := h.pools.List(r.Context())
	if err != nil {
		h.failMapped(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, pools)
}

func (h *Handler) getPool(w http.ResponseWriter, r *http.Request) {
	p, err := h.pools.GetByID(r.Context(), chi.URLParam(r, "pool_id"))
	if err != nil {
		h.failMapped(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

func (h *Handler) getParams(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.params)
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func batchView(b *domain.Batch) map[string]any {
	if b == nil {
		return nil
	}
	// SeedAccum stays hidden until settlement: it leaks which secrets
	// have been revealed.
	v := map[string]any{
		"batch_id":           b.BatchID,
		"start_time":         b.StartTime,
		"phase":              string(b.Phase),
		"revealed_count":     b.RevealedCount,
		"priority_bid_total": b.PriorityBidTotal,
		"is_settled":         b.IsSettled,
	}
	if b.IsSettled {
		v["seed_accum"] = hex.EncodeToString(b.SeedAccum[:])
	}
	return v
}

func commitmentView(c *domain.Commitment) map[string]any {
	return map[string]any{
		"commit_id":      c.CommitID,
		"commit_hash":    hex.EncodeToString(c.CommitHash[:]),
		"pool_id":        c.PoolID,
		"batch_id":       c.BatchID,
		"deposit_amount": c.DepositAmount,
		"depositor":      c.Depositor,
		"status":         string(c.Status),
		"created_at":     c.CreatedAt,
	}
}

func parseHash(s string) (domain.CommitHash, error) {
	var h domain.CommitHash
	raw, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("commit_hash is not hex: %w", err)
	}
	if len(raw) != domain.HashSize {
		return h, fmt.Errorf("commit_hash must be %d bytes, got %d", domain.HashSize, len(raw))
	}
	copy(h[:], raw)
	return h, nil
}

func parseSecret(s string) (domain.Secret, error) {
	var sec domain.Secret
	raw, err := hex.DecodeString(s)
	if err != nil {
		return sec, fmt.Errorf("secret is not hex: %w", err)
	}
	if len(raw) != domain.SecretSize {
		return sec, fmt.Errorf("secret must be %d bytes, got %d", domain.SecretSize, len(raw))
	}
	copy(sec[:], raw)
	return sec, nil
}

func pathInt64(r *http.Request, key string) (int64, error) {
	v, err := strconv.ParseInt(chi.URLParam(r, key), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return v, nil
}

// failMapped translates domain errors to HTTP statuses.
func (h *Handler) failMapped(w http.ResponseWriter, err error) {
	var perr *domain.PhaseError
	if errors.As(err, &perr) {
		h.writeJSON(w, http.StatusConflict, map[string]any{
			"error":        err.Error(),
			"want_phase":   string(perr.Want),
			"got_phase":    string(perr.Got),
			"remaining_ms": perr.RemainingMs,
		})
		return
	}

	switch {
	case errors.Is(err, storage.ErrNotFound):
		h.fail(w, http.StatusNotFound, err)
	case errors.Is(err, domain.ErrUnauthorized):
		h.fail(w, http.StatusForbidden, err)
	case errors.Is(err, domain.ErrAlreadyRevealed),
		errors.Is(err, domain.ErrAlreadySettled),
		errors.Is(err, domain.ErrAlreadySlashed):
		h.fail(w, http.StatusConflict, err)
	case errors.Is(err, domain.ErrHashMismatch),
		errors.Is(err, domain.ErrDepositTooLow),
		errors.Is(err, commitment.ErrBadDepositor),
		errors.Is(err, commitment.ErrUnknownPool),
		errors.Is(err, reveal.ErrUnknownCommit),
		errors.Is(err, reveal.ErrBatchMismatch),
		errors.Is(err, reveal.ErrBadKind):
		h.fail(w, http.StatusBadRequest, err)
	default:
		h.logger.Error("request failed", "err", err)
		h.fail(w, http.StatusInternalServerError, err)
	}
}

func (h *Handler) fail(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", "err", err)
	}
}

// rejectionReason buckets an error for failure counters.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrWrongPhase):
		return "wrong_phase"
	case errors.Is(err, domain.ErrHashMismatch):
		return "hash_mismatch"
	case errors.Is(err, domain.ErrDepositTooLow):
		return "deposit_too_low"
	case errors.Is(err, domain.ErrAlreadyRevealed):
		return "already_revealed"
	case errors.Is(err, domain.ErrAlreadySlashed):
		return "already_slashed"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	default:
		return "other"
	}
}
