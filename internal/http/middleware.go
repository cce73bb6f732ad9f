package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	callerKey
)

// Claims are the storefront's access token claims.
type Claims struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken signs an HS256 access token for userID.
func GenerateToken(userID, role, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ExpiredFunc is told about a correctly signed token that has expired.
type ExpiredFunc func(ctx context.Context, userID, token string)

// AuthMiddleware validates the bearer token and stores the caller in the request context.
// The raw token is kept so it can be forwarded to the backend. onExpired may be nil.
func AuthMiddleware(secret string, onExpired ExpiredFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if h == "" || !strings.HasPrefix(h, "Bearer ") {
				respondError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid token")
				return
			}
			tokenStr := strings.TrimPrefix(h, "Bearer ")

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				code := "invalid_token"
				// the signature is checked before expiry, so claims of an expired token are genuine
				if errors.Is(err, jwt.ErrTokenExpired) {
					code = "relogin"
					if onExpired != nil && claims.UserID != "" {
						onExpired(r.Context(), claims.UserID, tokenStr)
					}
				}
				respondError(w, http.StatusUnauthorized, code, "invalid token")
				return
			}
			if claims.UserID == "" {
				respondError(w, http.StatusUnauthorized, "invalid_token", "invalid claims")
				return
			}

			ctx := context.WithValue(r.Context(), callerKey, callerInfo{userID: claims.UserID, token: tokenStr})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type callerInfo struct {
	userID string
	token  string
}

func getCaller(ctx context.Context) (callerInfo, bool) {
	c, ok := ctx.Value(callerKey).(callerInfo)
	return c, ok && c.userID != ""
}

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = middleware.GetReqID(r.Context())
		}
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func getRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// AccessLog logs one line per request.
func AccessLog(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", getRequestID(r.Context())))
		})
	}
}
