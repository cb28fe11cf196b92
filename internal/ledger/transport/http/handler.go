package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"tinysubs/internal/api/dto"
	"tinysubs/internal/ledger"
	"tinysubs/internal/ledger/service"
	"tinysubs/pkg/address"
	"tinysubs/pkg/amount"
	"tinysubs/pkg/middleware"
)

type Handler struct {
	Ledger *service.Service
	Log    *zap.Logger
}

func NewHandler(svc *service.Service, log *zap.Logger) *Handler {
	return &Handler{Ledger: svc, Log: log}
}

// Routes mounts the read endpoints publicly and the mutating ones behind
// JWTAuth; the token subject is the caller address.
func (h *Handler) Routes(r chi.Router, jwtSecret string) {
	r.Get("/creators", h.ListCreators)
	r.Get("/creators/{creator}", h.GetCreatorPlan)
	r.Get("/creators/{creator}/subscribers", h.GetCreatorSubscribers)
	r.Get("/subscribers/{subscriber}/creators", h.GetSubscriberCreators)
	r.Get("/subscriptions/{subscriber}/{creator}", h.GetSubscription)
	r.Get("/platform", h.GetPlatform)
	r.Get("/balances/{account}", h.GetBalance)
	r.Get("/events", h.ListEvents)

	r.Group(func(pr chi.Router) {
		pr.Use(middleware.JWTAuth(jwtSecret))

		pr.With(middleware.ValidateRequest).Post("/creators", h.RegisterCreator)
		pr.With(middleware.ValidateRequest).Put("/creators/me", h.UpdatePlan)
		pr.Post("/creators/me/toggle", h.TogglePlanStatus)
		pr.Post("/creators/me/withdraw", h.WithdrawFunds)

		pr.With(middleware.ValidateRequest).Post("/subscriptions/{creator}", h.Subscribe)
		pr.With(middleware.ValidateRequest).Post("/subscriptions/{creator}/renew", h.RenewSubscription)
		pr.Delete("/subscriptions/{creator}", h.CancelSubscription)

		pr.With(middleware.ValidateRequest).Put("/platform/fee", h.UpdatePlatformFee)
		pr.Post("/platform/withdraw", h.WithdrawPlatformFees)
		pr.With(middleware.ValidateRequest).Post("/platform/owner", h.TransferOwnership)
	})
}

type creatorsResponse struct {
	Creators []address.Address `json:"creators"`
	Count    int               `json:"count"`
}

type subscriptionResponse struct {
	ledger.Subscription
	RemainingDays uint64 `json:"remaining_days"`
	Expired       bool   `json:"expired"`
}

type platformResponse struct {
	Owner           address.Address  `json:"owner"`
	FeeBasisPoints  uint64           `json:"fee_basis_points"`
	AccumulatedFees []ledger.Balance `json:"accumulated_fees"`
	LastEventSeq    uint64           `json:"last_event_seq"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	le, ok := service.AsError(err)
	if !ok {
		h.Log.Error("ledger operation failed", zap.String("path", r.URL.Path), zap.Error(err))
		middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrorResponse{Error: "internal error"})
		return
	}
	status := http.StatusConflict
	switch le.Category {
	case service.CategoryValidation:
		status = http.StatusBadRequest
	case service.CategoryAuthorization:
		status = http.StatusForbidden
	}
	middleware.WriteError(w, status, middleware.ErrorResponse{
		Error:    le.Reason,
		Kind:     string(le.Kind),
		Category: string(le.Category),
		Reason:   le.Reason,
	})
}

// decode reads and validates a JSON body. It writes the 400 itself.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrorResponse{Error: "invalid JSON"})
		return false
	}
	return validate(w, v)
}

func validate(w http.ResponseWriter, v interface{}) bool {
	if err := dto.Validate.Struct(v); err != nil {
		resp := middleware.ErrorResponse{Error: "validation failed"}
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			resp.Field = verrs[0].Field()
			resp.Error = "invalid " + verrs[0].Field()
		}
		middleware.WriteError(w, http.StatusBadRequest, resp)
		return false
	}
	return true
}

// decodeOptional is decode for routes whose body may be absent. An empty body,
// chunked or not, leaves v at its zero value.
func decodeOptional(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Body == nil || r.Body == http.NoBody {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrorResponse{Error: "invalid JSON"})
		return false
	}
	return validate(w, v)
}

// pathAddress parses an address URL parameter. It writes the 400 itself.
func pathAddress(w http.ResponseWriter, r *http.Request, name string) (address.Address, bool) {
	a, err := address.Parse(chi.URLParam(r, name))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrorResponse{Error: "invalid address", Field: name})
		return "", false
	}
	return a, true
}

func caller(r *http.Request) address.Address {
	a, _ := middleware.Caller(r.Context())
	return a
}

func optionalAsset(s string) address.Address {
	if s == "" {
		return address.Zero
	}
	return address.MustParse(s)
}

func (h *Handler) ListCreators(w http.ResponseWriter, r *http.Request) {
	creators := h.Ledger.GetAllCreators()
	writeJSON(w, http.StatusOK, creatorsResponse{Creators: creators, Count: len(creators)})
}

func (h *Handler) GetCreatorPlan(w http.ResponseWriter, r *http.Request) {
	creator, ok := pathAddress(w, r, "creator")
	if !ok {
		return
	}
	if !h.Ledger.IsCreator(creator) {
		middleware.WriteError(w, http.StatusNotFound, middleware.ErrorResponse{Error: service.ErrNotACreator.Reason})
		return
	}
	writeJSON(w, http.StatusOK, h.Ledger.GetCreatorPlan(creator))
}

func (h *Handler) GetCreatorSubscribers(w http.ResponseWriter, r *http.Request) {
	creator, ok := pathAddress(w, r, "creator")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"subscribers": h.Ledger.GetCreatorSubscribers(creator)})
}

func (h *Handler) GetSubscriberCreators(w http.ResponseWriter, r *http.Request) {
	subscriber, ok := pathAddress(w, r, "subscriber")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"creators": h.Ledger.GetSubscriberCreators(subscriber)})
}

// GetSubscription always answers 200; an absent pair is the zero record.
func (h *Handler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	subscriber, ok := pathAddress(w, r, "subscriber")
	if !ok {
		return
	}
	creator, ok := pathAddress(w, r, "creator")
	if !ok {
		return
	}
	sub, days, expired := h.Ledger.SubscriptionStatus(subscriber, creator)
	writeJSON(w, http.StatusOK, subscriptionResponse{Subscription: sub, RemainingDays: days, Expired: expired})
}

func (h *Handler) GetPlatform(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, platformResponse{
		Owner:           h.Ledger.Owner(),
		FeeBasisPoints:  h.Ledger.PlatformFeeBasisPoints(),
		AccumulatedFees: h.Ledger.AllAccumulatedFees(),
		LastEventSeq:    h.Ledger.LastEventSeq(),
	})
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	account, ok := pathAddress(w, r, "account")
	if !ok {
		return
	}
	asset := address.Zero
	if v := r.URL.Query().Get("asset"); v != "" {
		a, err := address.Parse(v)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrorResponse{Error: "invalid address", Field: "asset"})
			return
		}
		asset = a
	}
	writeJSON(w, http.StatusOK, ledger.Balance{Account: account, AssetID: asset, Amount: h.Ledger.BalanceOf(account, asset)})
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var after uint64
	if v := q.Get("after"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrorResponse{Error: "invalid after", Field: "after"})
			return
		}
		after = n
	}
	limit := 100
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrorResponse{Error: "invalid limit", Field: "limit"})
			return
		}
		limit = n
	}

	events, err := h.Ledger.Events(r.Context(), after, limit)
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

func (h *Handler) RegisterCreator(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterCreatorRequest
	if !decode(w, r, &req) {
		return
	}
	price, _ := amount.Parse(req.PricePerMonth)
	c := caller(r)
	if err := h.Ledger.RegisterCreator(r.Context(), c, req.PlanName, req.Description, price, optionalAsset(req.AssetID)); err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.Ledger.GetCreatorPlan(c))
}

func (h *Handler) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdatePlanRequest
	if !decode(w, r, &req) {
		return
	}
	price, _ := amount.Parse(req.PricePerMonth)
	c := caller(r)
	if err := h.Ledger.UpdatePlan(r.Context(), c, req.PlanName, req.Description, price); err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.Ledger.GetCreatorPlan(c))
}

func (h *Handler) TogglePlanStatus(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	if err := h.Ledger.TogglePlanStatus(r.Context(), c); err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.Ledger.GetCreatorPlan(c))
}

func (h *Handler) WithdrawFunds(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	plan := h.Ledger.GetCreatorPlan(c)
	if err := h.Ledger.WithdrawFunds(r.Context(), c); err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ledger.Balance{Account: c, AssetID: plan.AssetID, Amount: h.Ledger.BalanceOf(c, plan.AssetID)})
}

func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	creator, ok := pathAddress(w, r, "creator")
	if !ok {
		return
	}
	var req dto.PaymentRequest
	if !decode(w, r, &req) {
		return
	}
	payment, _ := amount.Parse(req.Payment)
	c := caller(r)
	if err := h.Ledger.Subscribe(r.Context(), c, creator, payment); err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.Ledger.GetSubscription(c, creator))
}

func (h *Handler) RenewSubscription(w http.ResponseWriter, r *http.Request) {
	creator, ok := pathAddress(w, r, "creator")
	if !ok {
		return
	}
	var req dto.PaymentRequest
	if !decode(w, r, &req) {
		return
	}
	payment, _ := amount.Parse(req.Payment)
	c := caller(r)
	if err := h.Ledger.RenewSubscription(r.Context(), c, creator, payment); err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.Ledger.GetSubscription(c, creator))
}

func (h *Handler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	creator, ok := pathAddress(w, r, "creator")
	if !ok {
		return
	}
	c := caller(r)
	if err := h.Ledger.CancelSubscription(r.Context(), c, creator); err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.Ledger.GetSubscription(c, creator))
}

func (h *Handler) UpdatePlatformFee(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateFeeRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.Ledger.UpdatePlatformFee(r.Context(), caller(r), *req.FeeBasisPoints); err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"fee_basis_points": h.Ledger.PlatformFeeBasisPoints()})
}

// WithdrawPlatformFees accepts an optional body naming the asset; without
// one the native asset pool is withdrawn.
func (h *Handler) WithdrawPlatformFees(w http.ResponseWriter, r *http.Request) {
	var req dto.WithdrawFeesRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	asset := optionalAsset(req.AssetID)
	c := caller(r)
	if err := h.Ledger.WithdrawPlatformFees(r.Context(), c, asset); err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ledger.Balance{Account: c, AssetID: asset, Amount: h.Ledger.BalanceOf(c, asset)})
}

func (h *Handler) TransferOwnership(w http.ResponseWriter, r *http.Request) {
	var req dto.TransferOwnershipRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.Ledger.TransferOwnership(r.Context(), caller(r), address.MustParse(req.NewOwner)); err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]address.Address{"owner": h.Ledger.Owner()})
}
