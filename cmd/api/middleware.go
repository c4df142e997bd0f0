package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"storefront/internal/auth"
	"storefront/internal/checkout"
	"storefront/internal/domain/users"
	"storefront/internal/session"

	"github.com/google/uuid"
)

type ctxKey string

const (
	userCtx          ctxKey = "user"
	guestCtx         ctxKey = "guest"
	guestTokenHeader        = "X-Guest-Token"
)

func getUserFromContext(r *http.Request) *users.User {
	if user, ok := r.Context().Value(userCtx).(*users.User); ok {
		return user
	}
	return nil
}

func getGuestToken(r *http.Request) string {
	token, _ := r.Context().Value(guestCtx).(string)
	return token
}

func identityOf(user *users.User) checkout.Identity {
	if user == nil {
		return checkout.Identity{}
	}
	return checkout.Identity{UserID: user.ID, Email: user.Email, Name: user.FullName()}
}

// sessionFor returns the caller's shopping session.
func (app *application) sessionFor(r *http.Request) (*session.Session, error) {
	return app.sessions.Get(r.Context(), identityOf(getUserFromContext(r)), getGuestToken(r))
}

func (app *application) BasicAuthMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				app.unauthorizedBasicErrorResponse(w, r, fmt.Errorf("authorization header is missing"))
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Basic" {
				app.unauthorizedBasicErrorResponse(w, r, fmt.Errorf("authorization header is malformed"))
				return
			}

			decoded, err := base64.StdEncoding.DecodeString(parts[1])
			if err != nil {
				app.unauthorizedBasicErrorResponse(w, r, err)
				return
			}

			username := app.config.auth.basic.user
			pass := app.config.auth.basic.pass

			creds := strings.SplitN(string(decoded), ":", 2)
			if pass == "" || len(creds) != 2 || creds[0] != username || creds[1] != pass {
				app.unauthorizedBasicErrorResponse(w, r, fmt.Errorf("invalid credentials"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// userFromBearer resolves the user behind an "Authorization: Bearer" header.
func (app *application) userFromBearer(r *http.Request, authHeader string) (*users.User, error) {
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, fmt.Errorf("authorization header is malformed")
	}

	jwtToken, err := app.authenticator.ValidateAccessToken(parts[1])
	if err != nil {
		return nil, err
	}
	userID, err := auth.UserID(jwtToken)
	if err != nil {
		return nil, err
	}
	return app.store.Users.GetByID(r.Context(), userID)
}

func (app *application) AuthTokenMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			app.unauthorizedErrorResponse(w, r, fmt.Errorf("authorization header is missing"))
			return
		}

		user, err := app.userFromBearer(r, authHeader)
		if err != nil {
			app.unauthorizedErrorResponse(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), userCtx, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IdentifyMiddleware accepts either a bearer token or a guest token. A
// request with neither is issued a fresh guest token in the response header.
func (app *application) IdentifyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if authHeader := r.Header.Get("Authorization"); authHeader != "" {
			user, err := app.userFromBearer(r, authHeader)
			if err != nil {
				app.unauthorizedErrorResponse(w, r, err)
				return
			}
			ctx = context.WithValue(ctx, userCtx, user)
		} else {
			token := strings.TrimSpace(r.Header.Get(guestTokenHeader))
			if token == "" {
				token = uuid.NewString()
			} else if _, err := uuid.Parse(token); err != nil {
				app.badRequestResponse(w, r, errors.New("guest token must be a UUID"))
				return
			}
			w.Header().Set(guestTokenHeader, token)
			ctx = context.WithValue(ctx, guestCtx, token)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (app *application) RequireUserMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if getUserFromContext(r) == nil {
			app.unauthorizedErrorResponse(w, r, errors.New("sign in required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimiterMiddleware keys on the guest token when one is sent, else the
// client address.
func (app *application) RateLimiterMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if app.config.rateLimiter.Enabled {
			key := r.RemoteAddr
			if token := r.Header.Get(guestTokenHeader); token != "" {
				key = "guest:" + token
			}
			if allow, retryAfter := app.rateLimiter.Allow(key); !allow {
				app.rateLimitExceededResponse(w, r, retryAfter.String())
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
