package marketplace

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/greenledger/greenledger-api/internal/domain/credit"
	"github.com/greenledger/greenledger-api/internal/middleware"
	"github.com/greenledger/greenledger-api/internal/pkg/lockmgr"
	"github.com/greenledger/greenledger-api/internal/pkg/response"
	"github.com/greenledger/greenledger-api/internal/pkg/validator"
)

type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// Mint mints a credit batch for the authenticated producer.
func (h *Handler) Mint(w http.ResponseWriter, r *http.Request) {
	producerID := middleware.GetUserID(r.Context())
	if producerID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req MintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	c, t, err := h.engine.MintCredit(r.Context(), producerID, req.BatchID, req.Units, req.ProductionDate)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.Created(w, MintResponse{
		Credit:          c,
		Transaction:     t,
		TransactionHash: t.IntegrityHash,
		Message:         "Credit minted successfully",
	})
}

// Holdings lists the credits the authenticated user currently owns.
func (h *Handler) Holdings(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	credits, err := h.engine.HoldingsOf(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, map[string]interface{}{"credits": credits})
}

// Available lists unsold, unretired credits with producer names.
func (h *Handler) Available(w http.ResponseWriter, r *http.Request) {
	credits, err := h.engine.AvailableCredits(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, map[string]interface{}{"credits": credits})
}

// Purchase transfers a credit to the authenticated buyer.
func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	buyerID := middleware.GetUserID(r.Context())
	if buyerID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}
	creditID, err := uuid.Parse(req.CreditID)
	if err != nil {
		response.BadRequest(w, "invalid credit_id")
		return
	}

	t, err := h.engine.PurchaseCredit(r.Context(), creditID, buyerID, req.Units)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.OK(w, TransactionResponse{
		Transaction:     t,
		TransactionHash: t.IntegrityHash,
		Message:         "Credit purchased successfully",
	})
}

// Purchases lists the authenticated buyer's incoming transfers.
func (h *Handler) Purchases(w http.ResponseWriter, r *http.Request) {
	buyerID := middleware.GetUserID(r.Context())
	if buyerID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	purchases, err := h.engine.PurchasesOf(r.Context(), buyerID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, map[string]interface{}{"purchases": purchases})
}

// Retire retires a credit the authenticated user owns.
func (h *Handler) Retire(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	creditID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid credit id")
		return
	}

	t, err := h.engine.RetireCredit(r.Context(), creditID, userID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.OK(w, TransactionResponse{
		Transaction:     t,
		TransactionHash: t.IntegrityHash,
		Message:         "Credit retired successfully",
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, credit.ErrInvalidUnits),
		errors.Is(err, credit.ErrInvalidDate),
		errors.Is(err, ErrUnitsMismatch):
		response.BadRequest(w, err.Error())
	case errors.Is(err, credit.ErrNotFound):
		response.NotFound(w, "credit not found")
	case errors.Is(err, credit.ErrAlreadyRetired):
		response.Conflict(w, "credit already retired")
	case errors.Is(err, credit.ErrAlreadySold):
		response.Conflict(w, "credit already sold")
	case errors.Is(err, credit.ErrNotOwner):
		response.Forbidden(w, "only the current owner can retire a credit")
	case errors.Is(err, lockmgr.ErrBusy):
		response.Busy(w)
	default:
		log.Error().Err(err).Msg("marketplace operation failed")
		response.InternalError(w)
	}
}

// ProducerRoutes mounts the producer-facing endpoints.
func (h *Handler) ProducerRoutes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(middleware.RequireProducer())
	r.Post("/mint-credit", h.Mint)
	r.Get("/credits", h.Holdings)
	return r
}

// BuyerRoutes mounts the buyer-facing endpoints.
func (h *Handler) BuyerRoutes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(middleware.RequireBuyer())
	r.Get("/available-credits", h.Available)
	r.Post("/purchase-credit", h.Purchase)
	r.Get("/purchases", h.Purchases)
	return r
}

// CreditRoutes mounts endpoints shared by producers and buyers.
func (h *Handler) CreditRoutes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(middleware.RequireRole("producer", "buyer"))
	r.Post("/{id}/retire", h.Retire)
	return r
}
