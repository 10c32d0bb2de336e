package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"next-mission/internal/discovery"
	"next-mission/internal/model"
	"next-mission/internal/query"

	"go.uber.org/zap"
)

// OwnerHeader 携带调用方的 owner identity；也可用 owner_id 查询参数。
const OwnerHeader = "X-Owner-ID"

// Discoverer 抽象发现服务，便于测试替换。
type Discoverer interface {
	Discover(ctx context.Context, kind model.Kind, owner string) (any, error)
	Cached(ctx context.Context, kind model.Kind, owner string) ([]json.RawMessage, error)
	Summary(ctx context.Context, owner string) (query.Keywords, error)
}

// NewHandler 构造 HTTP 多路复用器。
func NewHandler(svc Discoverer, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	for _, kind := range model.Kinds() {
		base := "/api/" + string(kind)

		mux.HandleFunc(base+"/search", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			owner, ok := ownerOf(w, r)
			if !ok {
				return
			}
			records, err := svc.Discover(r.Context(), kind, owner)
			if err != nil {
				writeError(w, logger, err)
				return
			}
			writeJSON(w, http.StatusOK, records)
		})

		cached := func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			owner, ok := ownerOf(w, r)
			if !ok {
				return
			}
			docs, err := svc.Cached(r.Context(), kind, owner)
			if err != nil {
				writeError(w, logger, err)
				return
			}
			writeJSON(w, http.StatusOK, docs)
		}
		mux.HandleFunc(base+"/all", cached)
		mux.HandleFunc(base+"/fetch", cached)
	}

	mux.HandleFunc("/api/profile/summary", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		owner, ok := ownerOf(w, r)
		if !ok {
			return
		}
		kw, err := svc.Summary(r.Context(), owner)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		if kw.Terms == nil {
			kw.Terms = []string{}
		}
		writeJSON(w, http.StatusOK, kw)
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "next-mission api"})
	})

	return mux
}

func ownerOf(w http.ResponseWriter, r *http.Request) (string, bool) {
	owner := strings.TrimSpace(r.Header.Get(OwnerHeader))
	if owner == "" {
		owner = strings.TrimSpace(r.URL.Query().Get("owner_id"))
	}
	if owner == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing owner identity"})
		return "", false
	}
	return owner, true
}

func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, model.ErrProfileNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "profile not found"})
	case errors.Is(err, discovery.ErrUnknownKind):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, context.Canceled):
		logger.Info("request cancelled", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "request cancelled"})
	default:
		logger.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
