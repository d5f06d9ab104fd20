package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/laundry-billing/internal/domain/auth"
)

// APIKeyHeader carries the staff API key.
const APIKeyHeader = "X-API-Key"

// SecurityHandler authenticates staff by HMAC-SHA256 hashed API keys.
type SecurityHandler struct {
	apikeys auth.Repository
	pepper  []byte
}

// NewSecurityHandler creates a SecurityHandler with the given API key
// repository and HMAC pepper.
func NewSecurityHandler(apikeys auth.Repository, pepper []byte) *SecurityHandler {
	return &SecurityHandler{
		apikeys: apikeys,
		pepper:  pepper,
	}
}

// HashAPIKey returns the hex HMAC-SHA256 of key under pepper, as stored in
// the api_keys table.
func HashAPIKey(key string, pepper []byte) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

// Middleware rejects requests without a valid key and stores the resolved
// staff identity in the request context.
func (s *SecurityHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		key := strings.TrimSpace(r.Header.Get(APIKeyHeader))
		if key == "" {
			writeError(ctx, w, newError("unauthenticated", "api key required", http.StatusUnauthorized))
			return
		}

		hexHash := HashAPIKey(key, s.pepper)
		info, err := s.apikeys.FindByHash(ctx, hexHash)
		if err != nil {
			if !isNotFound(err) {
				zctx.From(ctx).Error("API key lookup failed", zap.Error(err))
			}
			writeError(ctx, w, newError("unauthenticated", "invalid api key", http.StatusUnauthorized))
			return
		}

		// The row was found by hash; compare again in constant time in case
		// the repository returned a different row.
		computed, _ := hex.DecodeString(hexHash)
		stored, err := hex.DecodeString(info.KeyHash)
		if err != nil || subtle.ConstantTimeCompare(computed, stored) != 1 {
			writeError(ctx, w, newError("unauthenticated", "invalid api key", http.StatusUnauthorized))
			return
		}

		ctx = auth.WithIdentity(ctx, info)
		ctx = zctx.With(ctx, zap.String("staff_id", info.StaffID), zap.String("branch_id", info.BranchID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
