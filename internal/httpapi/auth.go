package httpapi

import (
	"crypto/sha256"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/settlement-engine/internal/common"
)

// TokenHeader carries the operator token.
const TokenHeader = "X-Operator-Token"

// tokenVerifier checks tokens against one argon2id hash. A token that already
// matched is remembered by its sha256 so argon2 runs once per token.
type tokenVerifier struct {
	hash string

	mu       sync.RWMutex
	verified map[[sha256.Size]byte]struct{}
}

func newTokenVerifier(hash string) *tokenVerifier {
	return &tokenVerifier{hash: hash, verified: make(map[[sha256.Size]byte]struct{})}
}

func (v *tokenVerifier) verify(token string) bool {
	sum := sha256.Sum256([]byte(token))
	v.mu.RLock()
	_, hit := v.verified[sum]
	v.mu.RUnlock()
	if hit {
		return true
	}

	match, err := common.VerifyArgon2id(token, v.hash)
	if err != nil {
		log.WithError(err).Error("operator token hash is unusable")
		return false
	}
	if match {
		v.mu.Lock()
		v.verified[sum] = struct{}{}
		v.mu.Unlock()
	}
	return match
}

// requireOperator rejects requests without a valid operator token.
func requireOperator(v *tokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader(TokenHeader))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apiResponse{Code: http.StatusUnauthorized, Message: "missing " + TokenHeader})
			return
		}
		if !v.verify(token) {
			log.WithField("client_ip", c.ClientIP()).Warn("rejected operator token")
			c.AbortWithStatusJSON(http.StatusForbidden, apiResponse{Code: http.StatusForbidden, Message: "invalid operator token"})
			return
		}
		c.Next()
	}
}
