// Package middleware содержит HTTP middleware для API леджера.
package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/mmeshcher/commentpass-ledger/internal/model"
	"github.com/mmeshcher/commentpass-ledger/internal/validation"
)

type contextKey string

const identityKey contextKey = "identity"

const bearerPrefix = "Bearer "

// AuthMiddleware проверяет подписанный токен с идентификатором вызывающего.
// Токены выпускает внешний слой, выполнивший аутентификацию кошелька, общим секретом.
type AuthMiddleware struct {
	secretKey []byte
}

// NewAuthMiddleware создаёт новый экземпляр AuthMiddleware с указанным секретным ключом.
// Пустой секрет заменяется случайным: токены, выпущенные до перезапуска, перестают действовать.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}

	return &AuthMiddleware{
		secretKey: key,
	}
}

// Middleware проверяет заголовок Authorization и добавляет идентификатор вызывающего в контекст запроса.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		id, ok := a.parseToken(strings.TrimPrefix(header, bearerPrefix))
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Token выпускает токен для идентификатора id в формате "<id>.<hex hmac>".
func (a *AuthMiddleware) Token(id model.Identity) string {
	return string(id) + "." + a.sign(string(id))
}

func (a *AuthMiddleware) sign(id string) string {
	mac := hmac.New(sha256.New, a.secretKey)
	mac.Write([]byte(id))
	return hex.EncodeToString(mac.Sum(nil))
}

func (a *AuthMiddleware) parseToken(token string) (model.Identity, bool) {
	i := strings.LastIndexByte(token, '.')
	if i <= 0 {
		return "", false
	}

	idStr, signature := token[:i], token[i+1:]
	if !hmac.Equal([]byte(signature), []byte(a.sign(idStr))) {
		return "", false
	}

	id := validation.NormalizeIdentity(idStr)
	if !validation.IsValidIdentity(id) {
		return "", false
	}
	return id, true
}

// GetIdentityFromContext извлекает идентификатор вызывающего из контекста запроса.
func GetIdentityFromContext(ctx context.Context) (model.Identity, bool) {
	id, ok := ctx.Value(identityKey).(model.Identity)
	return id, ok && id != ""
}

// WithIdentity кладёт идентификатор в контекст; используется в тестах обработчиков.
func WithIdentity(ctx context.Context, id model.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}
