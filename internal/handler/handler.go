// Package handler содержит HTTP-обработчики API леджера комментариев.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mmeshcher/commentpass-ledger/internal/ledger"
	"github.com/mmeshcher/commentpass-ledger/internal/middleware"
	"github.com/mmeshcher/commentpass-ledger/internal/model"
	"github.com/mmeshcher/commentpass-ledger/internal/validation"
)

// Service определяет контракт леджера, используемый HTTP-обработчиками.
type Service interface {
	Deposit(ctx context.Context, caller model.Identity, value model.Amount) error
	Withdraw(ctx context.Context, caller model.Identity, amount model.Amount) error
	PurchaseSubscription(ctx context.Context, caller model.Identity, duration time.Duration, referrer model.Identity, value model.Amount) error
	GiftSubscription(ctx context.Context, payer, recipient model.Identity, duration time.Duration, value model.Amount) error
	PurchaseDailyPasses(ctx context.Context, caller model.Identity, count int64, value model.Amount) error
	GiftDailyPass(ctx context.Context, payer, recipient model.Identity, count int64, value model.Amount) error
	ProcessCommentPayment(ctx context.Context, caller, id model.Identity) (model.CommentCoverage, error)
	CanComment(ctx context.Context, id model.Identity) (bool, error)
	AccountInfo(ctx context.Context, id model.Identity) (model.AccountInfo, error)
	Events(ctx context.Context, id model.Identity, limit int) ([]model.Event, error)
	Pause(ctx context.Context, caller model.Identity) error
	Unpause(ctx context.Context, caller model.Identity) error
	WithdrawFunds(ctx context.Context, caller model.Identity) (model.Amount, error)
	Reserve(ctx context.Context, caller model.Identity) (model.State, error)
}

// Handler реализует HTTP-обработчики API леджера.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	validate       *validator.Validate

	metrics   http.Handler
	rateLimit int
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
// metrics может быть nil, тогда /metrics не публикуется; rateLimit <= 0 отключает ограничение частоты.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, metrics http.Handler, rateLimit int) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		validate:       validator.New(),
		metrics:        metrics,
		rateLimit:      rateLimit,
	}
}

type depositRequest struct {
	Value string `json:"value" validate:"required,max=32"`
}

type withdrawRequest struct {
	Amount string `json:"amount" validate:"required,max=32"`
}

type subscriptionRequest struct {
	Duration int64  `json:"duration" validate:"gt=0,lte=31536000"`
	Referrer string `json:"referrer" validate:"omitempty,max=128"`
	Value    string `json:"value" validate:"required,max=32"`
}

type giftSubscriptionRequest struct {
	Recipient string `json:"recipient" validate:"max=128"`
	Duration  int64  `json:"duration" validate:"gt=0,lte=31536000"`
	Value     string `json:"value" validate:"required,max=32"`
}

type passesRequest struct {
	Count int64  `json:"count" validate:"gt=0,lte=3650"`
	Value string `json:"value" validate:"required,max=32"`
}

type giftPassesRequest struct {
	Recipient string `json:"recipient" validate:"max=128"`
	Count     int64  `json:"count" validate:"gt=0,lte=3650"`
	Value     string `json:"value" validate:"required,max=32"`
}

// Deposit зачисляет сумму на депозит текущего пользователя.
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.GetIdentityFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req depositRequest
	if !h.decode(w, r, &req) {
		return
	}
	value, ok := parseAmount(w, req.Value)
	if !ok {
		return
	}

	if err := h.service.Deposit(r.Context(), caller, value); err != nil {
		h.writeError(w, "deposit", caller, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Withdraw переводит часть депозита обратно пользователю.
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.GetIdentityFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req withdrawRequest
	if !h.decode(w, r, &req) {
		return
	}
	amount, ok := parseAmount(w, req.Amount)
	if !ok {
		return
	}

	if err := h.service.Withdraw(r.Context(), caller, amount); err != nil {
		h.writeError(w, "withdraw", caller, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// PurchaseSubscription продлевает подписку текущего пользователя.
func (h *Handler) PurchaseSubscription(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.GetIdentityFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req subscriptionRequest
	if !h.decode(w, r, &req) {
		return
	}
	value, ok := parseAmount(w, req.Value)
	if !ok {
		return
	}

	referrer := validation.NormalizeIdentity(req.Referrer)
	err := h.service.PurchaseSubscription(r.Context(), caller, time.Duration(req.Duration)*time.Second, referrer, value)
	if err != nil {
		h.writeError(w, "purchase subscription", caller, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// GiftSubscription продлевает подписку другого пользователя за счёт текущего.
func (h *Handler) GiftSubscription(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.GetIdentityFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req giftSubscriptionRequest
	if !h.decode(w, r, &req) {
		return
	}
	value, ok := parseAmount(w, req.Value)
	if !ok {
		return
	}

	recipient := validation.NormalizeIdentity(req.Recipient)
	err := h.service.GiftSubscription(r.Context(), caller, recipient, time.Duration(req.Duration)*time.Second, value)
	if err != nil {
		h.writeError(w, "gift subscription", caller, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// PurchaseDailyPasses добавляет текущему пользователю дневные пропуски.
func (h *Handler) PurchaseDailyPasses(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.GetIdentityFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req passesRequest
	if !h.decode(w, r, &req) {
		return
	}
	value, ok := parseAmount(w, req.Value)
	if !ok {
		return
	}

	if err := h.service.PurchaseDailyPasses(r.Context(), caller, req.Count, value); err != nil {
		h.writeError(w, "purchase daily passes", caller, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// GiftDailyPass дарит дневные пропуски другому пользователю.
func (h *Handler) GiftDailyPass(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.GetIdentityFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req giftPassesRequest
	if !h.decode(w, r, &req) {
		return
	}
	value, ok := parseAmount(w, req.Value)
	if !ok {
		return
	}

	recipient := validation.NormalizeIdentity(req.Recipient)
	if err := h.service.GiftDailyPass(r.Context(), caller, recipient, req.Count, value); err != nil {
		h.writeError(w, "gift daily pass", caller, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type accountResponse struct {
	Identity           string `json:"identity"`
	DepositBalance     string `json:"deposit_balance"`
	SubscriptionExpiry string `json:"subscription_expiry,omitempty"`
	HasSubscription    bool   `json:"has_subscription"`
	DailyPasses        int64  `json:"daily_passes"`
	PassesExpiry       string `json:"passes_expiry,omitempty"`
	HasReferrer        bool   `json:"has_referrer"`
}

// GetAccount возвращает состояние счёта.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathIdentity(w, r)
	if !ok {
		return
	}

	info, err := h.service.AccountInfo(r.Context(), id)
	if err != nil {
		h.writeError(w, "get account", id, err)
		return
	}

	writeJSON(w, accountResponse{
		Identity:           string(id),
		DepositBalance:     info.DepositBalance.String(),
		SubscriptionExpiry: formatTime(info.SubscriptionExpiry),
		HasSubscription:    info.HasSubscription,
		DailyPasses:        info.DailyPasses,
		PassesExpiry:       formatTime(info.PassesExpiry),
		HasReferrer:        info.HasReferrer,
	})
}

// CanComment сообщает, может ли пользователь оставить комментарий.
func (h *Handler) CanComment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathIdentity(w, r)
	if !ok {
		return
	}

	allowed, err := h.service.CanComment(r.Context(), id)
	if err != nil {
		h.writeError(w, "can comment", id, err)
		return
	}

	writeJSON(w, struct {
		CanComment bool `json:"can_comment"`
	}{CanComment: allowed})
}

type eventResponse struct {
	ID           string `json:"id"`
	Kind         string `json:"kind"`
	Identity     string `json:"identity"`
	Counterparty string `json:"counterparty,omitempty"`
	Amount       string `json:"amount"`
	Duration     int64  `json:"duration,omitempty"`
	Count        int64  `json:"count,omitempty"`
	CreatedAt    string `json:"created_at"`
}

// GetEvents возвращает историю событий счёта.
func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := pathIdentity(w, r)
	if !ok {
		return
	}

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		limit = n
	}

	evs, err := h.service.Events(r.Context(), id, limit)
	if err != nil {
		h.writeError(w, "get events", id, err)
		return
	}

	if len(evs) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]eventResponse, 0, len(evs))
	for _, ev := range evs {
		resp = append(resp, eventResponse{
			ID:           ev.ID.String(),
			Kind:         string(ev.Kind),
			Identity:     string(ev.Identity),
			Counterparty: string(ev.Counterparty),
			Amount:       ev.Amount.String(),
			Duration:     int64(ev.Duration / time.Second),
			Count:        ev.Count,
			CreatedAt:    ev.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, resp)
}

// ProcessCommentPayment оплачивает комментарий пользователя; доступно оператору.
func (h *Handler) ProcessCommentPayment(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.GetIdentityFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	id, ok := pathIdentity(w, r)
	if !ok {
		return
	}

	coverage, err := h.service.ProcessCommentPayment(r.Context(), caller, id)
	if err != nil {
		h.writeError(w, "process comment payment", id, err)
		return
	}

	writeJSON(w, struct {
		CoveredBy string `json:"covered_by"`
	}{CoveredBy: string(coverage)})
}

// Pause приостанавливает операции с движением средств.
func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.GetIdentityFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	if err := h.service.Pause(r.Context(), caller); err != nil {
		h.writeError(w, "pause", caller, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Unpause возобновляет операции с движением средств.
func (h *Handler) Unpause(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.GetIdentityFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	if err := h.service.Unpause(r.Context(), caller); err != nil {
		h.writeError(w, "unpause", caller, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// WithdrawFunds переводит оператору средства сверх депозитов пользователей.
func (h *Handler) WithdrawFunds(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.GetIdentityFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	amount, err := h.service.WithdrawFunds(r.Context(), caller)
	if err != nil {
		h.writeError(w, "withdraw funds", caller, err)
		return
	}

	writeJSON(w, struct {
		Withdrawn string `json:"withdrawn"`
	}{Withdrawn: amount.String()})
}

type reserveResponse struct {
	TotalDeposits string `json:"total_deposits"`
	Custodied     string `json:"custodied"`
	Excess        string `json:"excess"`
	Paused        bool   `json:"paused"`
}

// GetReserve возвращает глобальные счётчики леджера; доступно оператору.
func (h *Handler) GetReserve(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.GetIdentityFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	st, err := h.service.Reserve(r.Context(), caller)
	if err != nil {
		h.writeError(w, "get reserve", caller, err)
		return
	}

	writeJSON(w, reserveResponse{
		TotalDeposits: st.TotalDeposits.String(),
		Custodied:     st.Custodied.String(),
		Excess:        st.Excess().String(),
		Paused:        st.Paused,
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, req any) bool {
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return false
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return false
	}
	return true
}

func parseAmount(w http.ResponseWriter, s string) (model.Amount, bool) {
	a, err := model.ParseAmount(s)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return 0, false
	}
	return a, true
}

func pathIdentity(w http.ResponseWriter, r *http.Request) (model.Identity, bool) {
	id := validation.NormalizeIdentity(chi.URLParam(r, "identity"))
	if !validation.IsValidIdentity(id) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return "", false
	}
	return id, true
}

// statusFor переводит ошибку леджера в HTTP-статус.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrInvalidDuration),
		errors.Is(err, ledger.ErrInvalidPayment),
		errors.Is(err, ledger.ErrInvalidRecipient):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return http.StatusPaymentRequired
	case errors.Is(err, ledger.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrTransferFailed):
		return http.StatusBadGateway
	case errors.Is(err, ledger.ErrPaused):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, op string, id model.Identity, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		h.logger.Error(op+" error", zap.Error(err), zap.String("identity", string(id)))
	}
	http.Error(w, http.StatusText(status), status)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
