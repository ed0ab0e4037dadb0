package overview

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/greenledger/greenledger-api/internal/domain/ledger"
	"github.com/greenledger/greenledger-api/internal/middleware"
	"github.com/greenledger/greenledger-api/internal/pkg/archive"
	"github.com/greenledger/greenledger-api/internal/pkg/response"
)

// UserDirectory resolves user ids to display names for the transaction view.
type UserDirectory interface {
	DisplayNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

// EnrichedTransaction is a ledger entry with resolved party names.
type EnrichedTransaction struct {
	ledger.Transaction
	FromUserName string `json:"from_user_name"`
	ToUserName   string `json:"to_user_name"`
}

type Handler struct {
	aggregator *Aggregator
	ledger     *ledger.Ledger
	users      UserDirectory
	archive    archive.Store
}

func NewHandler(aggregator *Aggregator, l *ledger.Ledger, users UserDirectory, archiveStore archive.Store) *Handler {
	return &Handler{aggregator: aggregator, ledger: l, users: users, archive: archiveStore}
}

// Transactions returns the full ledger, newest first, with party names.
func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.ledger.ListAll(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to list transactions")
		response.InternalError(w)
		return
	}

	ids := make([]uuid.UUID, 0, 2*len(txs))
	for _, t := range txs {
		ids = append(ids, t.FromUserID, t.ToUserID)
	}
	names, err := h.users.DisplayNames(r.Context(), ids)
	if err != nil {
		log.Error().Err(err).Msg("failed to resolve transaction parties")
		response.InternalError(w)
		return
	}

	enriched := make([]EnrichedTransaction, 0, len(txs))
	for _, t := range txs {
		enriched = append(enriched, EnrichedTransaction{
			Transaction:  t,
			FromUserName: names[t.FromUserID],
			ToUserName:   names[t.ToUserID],
		})
	}
	response.OK(w, map[string]interface{}{"transactions": enriched})
}

// CreditsOverview returns aggregate credit counts.
func (h *Handler) CreditsOverview(w http.ResponseWriter, r *http.Request) {
	ov, err := h.aggregator.ComputeOverview(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to compute overview")
		response.InternalError(w)
		return
	}
	response.OK(w, map[string]interface{}{"overview": ov})
}

// VerifyChain audits the ledger end to end. A break is not auto-healed; the
// response localizes it for the operator.
func (h *Handler) VerifyChain(w http.ResponseWriter, r *http.Request) {
	idx, err := h.ledger.VerifyChain(r.Context())
	if err != nil {
		if errors.Is(err, ledger.ErrChainBroken) {
			log.Error().Int("break_index", idx).Msg("ledger chain verification failed")
			response.ErrorWithDetails(w, http.StatusConflict, "CHAIN_BROKEN",
				"Ledger integrity verification failed", map[string]string{
					"break_index": fmt.Sprintf("%d", idx),
				})
			return
		}
		log.Error().Err(err).Msg("chain verification errored")
		response.InternalError(w)
		return
	}
	response.OK(w, map[string]interface{}{"valid": true})
}

type auditExport struct {
	ExportedAt   time.Time            `json:"exported_at"`
	ChainValid   bool                 `json:"chain_valid"`
	Transactions []ledger.Transaction `json:"transactions"`
}

// AuditExport snapshots the full ledger into the audit archive and returns
// the retrieval URL.
func (h *Handler) AuditExport(w http.ResponseWriter, r *http.Request) {
	idx, err := h.ledger.VerifyChain(r.Context())
	if err != nil && !errors.Is(err, ledger.ErrChainBroken) {
		log.Error().Err(err).Msg("audit export verification errored")
		response.InternalError(w)
		return
	}

	txs, err := h.ledger.ListAll(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("audit export failed to list ledger")
		response.InternalError(w)
		return
	}

	export := auditExport{
		ExportedAt:   time.Now().UTC(),
		ChainValid:   idx == -1,
		Transactions: txs,
	}
	payload, err := json.Marshal(export)
	if err != nil {
		response.InternalError(w)
		return
	}

	key := fmt.Sprintf("audits/ledger-%s.json", export.ExportedAt.Format("20060102-150405"))
	if err := h.archive.Put(r.Context(), key, bytes.NewReader(payload), "application/json"); err != nil {
		log.Error().Err(err).Str("key", key).Msg("audit export upload failed")
		response.InternalError(w)
		return
	}

	response.Created(w, map[string]interface{}{
		"key":          key,
		"url":          h.archive.URL(key),
		"chain_valid":  export.ChainValid,
		"transactions": len(txs),
	})
}

// Routes mounts the regulator endpoints.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(middleware.RequireRegulator())
	r.Get("/transactions", h.Transactions)
	r.Get("/credits-overview", h.CreditsOverview)
	r.Get("/verify-chain", h.VerifyChain)
	r.Post("/audit-export", h.AuditExport)
	return r
}
