package aliasstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Store is the persistence the merges handler needs.
type Store interface {
	Get(ctx context.Context, account string) (Merges, error)
	Put(ctx context.Context, account, canonicalID string, merge Merge, user string) (Merges, error)
	Delete(ctx context.Context, account, canonicalID string) (Merges, []string, error)
}

const maxBodyBytes = 1 << 20

type handler struct {
	store    Store
	accounts map[string]struct{}
	logger   *zap.Logger
}

// NewHandler serves /api/merges for the given accounts (DefaultAccounts when empty).
func NewHandler(store Store, accounts []string, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(accounts) == 0 {
		accounts = DefaultAccounts
	}
	h := &handler{store: store, accounts: make(map[string]struct{}, len(accounts)), logger: logger}
	for _, a := range accounts {
		h.accounts[strings.ToLower(strings.TrimSpace(a))] = struct{}{}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/merges", h.handleMerges)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

func (h *handler) validAccounts() string {
	names := make([]string, 0, len(h.accounts))
	for a := range h.accounts {
		names = append(names, a)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func (h *handler) handleMerges(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	raw := r.URL.Query().Get("account")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "account parameter required")
		return
	}
	account := strings.ToLower(raw)
	if _, ok := h.accounts[account]; !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid account: %s. Must be one of: %s", raw, h.validAccounts()))
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.handleGet(w, r, account)
	case http.MethodPost:
		h.handlePost(w, r, account)
	case http.MethodDelete:
		h.handleDelete(w, r, account)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *handler) handleGet(w http.ResponseWriter, r *http.Request, account string) {
	merges, err := h.store.Get(r.Context(), account)
	if err != nil {
		h.storeError(w, "get", account, err)
		return
	}
	writeJSON(w, http.StatusOK, merges)
}

type postBody struct {
	CanonicalID string `json:"canonicalId"`
	Merge       *Merge `json:"merge"`
	User        string `json:"user"`
}

func (h *handler) handlePost(w http.ResponseWriter, r *http.Request, account string) {
	var body postBody
	if err := decodeBody(r.Body, &body); err != nil || body.CanonicalID == "" || body.Merge == nil {
		writeError(w, http.StatusBadRequest, "canonicalId and merge required")
		return
	}
	merges, err := h.store.Put(r.Context(), account, body.CanonicalID, *body.Merge, body.User)
	if err != nil {
		h.storeError(w, "put", account, err)
		return
	}
	h.logger.Info("merge saved",
		zap.String("account", account),
		zap.String("canonical_id", body.CanonicalID),
		zap.Int("absorbed", len(body.Merge.Absorbed)),
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"mergeCount":    len(merges),
		"totalAbsorbed": merges.TotalAbsorbed(),
	})
}

type deleteBody struct {
	CanonicalID string `json:"canonicalId"`
}

func (h *handler) handleDelete(w http.ResponseWriter, r *http.Request, account string) {
	var body deleteBody
	if err := decodeBody(r.Body, &body); err != nil || body.CanonicalID == "" {
		writeError(w, http.StatusBadRequest, "canonicalId required")
		return
	}
	merges, unmerged, err := h.store.Delete(r.Context(), account, body.CanonicalID)
	if err != nil {
		h.storeError(w, "delete", account, err)
		return
	}
	if unmerged == nil {
		unmerged = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"remainingCount":   len(merges),
		"unmergedEntities": unmerged,
	})
}

func (h *handler) storeError(w http.ResponseWriter, op, account string, err error) {
	h.logger.Error("merge store error", zap.String("op", op), zap.String("account", account), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "Database error")
}

func decodeBody(r io.Reader, v any) error {
	if r == nil {
		return io.EOF
	}
	return json.NewDecoder(io.LimitReader(r, maxBodyBytes)).Decode(v)
}
