package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/punchamoorthee/bankledger/internal/domain"
	"github.com/punchamoorthee/bankledger/internal/models"
	"github.com/punchamoorthee/bankledger/internal/service"
)

const maxBodyBytes = 1 << 20

var errEmptyBody = errors.New("empty payload")

type Handler struct {
	transfers *service.TransferService
	accounts  *service.AccountService
	clients   *service.ClientService
	health    Pinger
	log       *slog.Logger
}

func NewHandler(transfers *service.TransferService, accounts *service.AccountService, clients *service.ClientService, health Pinger, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		transfers: transfers,
		accounts:  accounts,
		clients:   clients,
		health:    health,
		log:       logger,
	}
}

// CreateTransfer handles POST /transfers and returns the destination account.
func (h *Handler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req models.TransferRequest
	if err := decodeBody(r, &req); err != nil {
		h.respondBadBody(w, err)
		return
	}
	if req.SrcAccount == "" || req.DestAccount == "" {
		respondError(w, http.StatusBadRequest, "'src_account' and 'dest_account' are required", domain.KindInvalidInput)
		return
	}
	amount, err := req.Amount.Decimal()
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}

	res, err := h.transfers.Transfer(r.Context(), req.SrcAccount, req.DestAccount, amount)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/transfers/%d", res.Transfer.ID))
	respondJSON(w, http.StatusOK, models.NewAccount(res.Destination))
}

// CreditAccount handles PATCH /accounts/{id}/transfer.
func (h *Handler) CreditAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req models.CreditRequest
	if err := decodeBody(r, &req); err != nil {
		h.respondBadBody(w, err)
		return
	}
	amount, err := req.Amount.Decimal()
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}

	acc, err := h.transfers.Credit(r.Context(), id, amount)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, models.NewAccount(acc))
}

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAccountRequest
	if err := decodeBody(r, &req); err != nil {
		h.respondBadBody(w, err)
		return
	}
	acc, err := h.accounts.Create(r.Context(), service.CreateAccountInput{
		ClientID:    req.UserID,
		Number:      req.Number,
		AccountType: req.AccountType,
	})
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/v1/accounts/%d", acc.ID))
	respondJSON(w, http.StatusCreated, models.NewAccount(acc))
}

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.List(r.Context())
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, models.NewAccounts(accounts))
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	acc, err := h.accounts.Get(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, models.NewAccount(acc))
}

func (h *Handler) GetAccountEntries(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	entries, err := h.accounts.Entries(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, models.NewLedgerEntries(entries))
}

func (h *Handler) GetTransfer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	tr, err := h.accounts.Transfer(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, models.NewTransfer(tr))
}

// Helpers

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "Invalid id", domain.KindInvalidInput)
		return 0, false
	}
	return id, true
}

func decodeBody(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return errEmptyBody
	}
	return json.Unmarshal(body, dst)
}

func (h *Handler) respondBadBody(w http.ResponseWriter, err error) {
	if errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "Empty payload", domain.KindInvalidInput)
		return
	}
	respondError(w, http.StatusBadRequest, "Malformed JSON body", domain.KindInvalidInput)
}

// statusFor maps error classes onto HTTP status codes.
func statusFor(kind domain.Kind) int {
	switch kind.Class() {
	case domain.ClassValidation:
		return http.StatusBadRequest
	case domain.ClassNotFound:
		return http.StatusNotFound
	case domain.ClassBusinessRule:
		return http.StatusUnprocessableEntity
	case domain.ClassConflict:
		return http.StatusConflict
	default:
		return http.StatusServiceUnavailable
	}
}

func (h *Handler) respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var derr *domain.Error
	if !errors.As(err, &derr) {
		h.log.ErrorContext(r.Context(), "unclassified error", slog.Any("error", err))
		respondError(w, http.StatusServiceUnavailable, "Service temporarily unavailable", domain.KindPersistence)
		return
	}
	code := statusFor(derr.Kind)
	msg := derr.Msg
	if derr.Kind.Class() == domain.ClassValidation && derr.Err != nil {
		msg = derr.Err.Error()
	}
	if code == http.StatusServiceUnavailable {
		// Internal causes stay in the logs.
		msg = "Service temporarily unavailable: " + derr.Msg
	}
	respondError(w, code, msg, derr.Kind)
}

func respondJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

func respondError(w http.ResponseWriter, code int, msg string, kind domain.Kind) {
	if code == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	respondJSON(w, code, models.Error{Error: msg, Kind: kind.String()})
}
