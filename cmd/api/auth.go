package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"storefront/internal/auth"
	"storefront/internal/domain/users"
	"storefront/internal/session"
)

// ErrorBadRequestResponse represents the standard error format for bad request API responses.
//
//	@name			ErrorBadRequestResponse
//	@description	Standard error response format returned by all bad request API endpoints
type ErrorBadRequestResponse struct {
	Success bool   `json:"success" example:"false"`
	Message string `json:"message" example:"It show error from err.Error()"`
	Status  int    `json:"status" example:"400"`
}

// ErrorInternalServerResponse represents the standard error format for internal server API responses.
//
//	@name			ErrorInternalServerResponse
//	@description	Standard error response format returned by all internal server error API endpoints
type ErrorInternalServerResponse struct {
	Success bool   `json:"success" example:"false"`
	Message string `json:"message" example:"the server encountered a problem"`
	Status  int    `json:"status" example:"500"`
}

type RegisterUserPayload struct {
	FirstName string `json:"first_name" validate:"required,max=50"`
	LastName  string `json:"last_name" validate:"required,max=50"`
	Email     string `json:"email" validate:"required,email,max=255"`
	Phone     string `json:"phone" validate:"required,phone"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
}

// registerUserHandler godoc
//
//	@Summary		Registers a user
//	@Description	Creates a shopper account. Checkout works without one, but saved addresses and order history need it.
//	@Tags			authentication
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		RegisterUserPayload			true	"User credentials"
//	@Success		201		{object}	users.User					"User registered"
//	@Failure		400		{object}	ErrorBadRequestResponse		"Bad request"
//	@Failure		500		{object}	ErrorInternalServerResponse	"Internal Server Error"
//	@Router			/authentication/user [post]
func (app *application) registerUserHandler(w http.ResponseWriter, r *http.Request) {
	var payload RegisterUserPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user := &users.User{
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Email:     payload.Email,
		Phone:     payload.Phone,
		IsActive:  true,
	}
	// hash the user password.
	if err := user.Password.Set(payload.Password); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.store.Users.Create(r.Context(), user); err != nil {
		switch {
		case errors.Is(err, users.ErrDuplicateEmail):
			app.badRequestResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusCreated, user); err != nil {
		app.internalServerError(w, r, err)
	}
}

type CreateUserTokenPayload struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=3,max=72"`
}

// TokenResponse represents the structure of the tokens in the response. made for swagger doc success output
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	UserID       string `json:"user_id"`
}

// Envelope is a wrapper for API responses.made for swagger doc success output
type Envelope struct {
	Data TokenResponse `json:"data"`
}

// issueTokens generates a token pair and stores the refresh token.
func (app *application) issueTokens(r *http.Request, userID int64) (TokenResponse, error) {
	accessToken, refreshToken, err := app.authenticator.GenerateTokens(userID)
	if err != nil {
		return TokenResponse{}, err
	}
	if err := app.store.Users.SaveRefreshToken(r.Context(), userID, refreshToken); err != nil {
		return TokenResponse{}, err
	}
	return TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		UserID:       strconv.FormatInt(userID, 10),
	}, nil
}

// createTokenHandler godoc
//
//	@Summary		Login to get Token
//	@Description	Exchanges email and password for an access and refresh token pair.
//	@Tags			authentication
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		CreateUserTokenPayload	true	"User credentials"
//	@Success		200		{object}	Envelope				"Token pair"
//	@Failure		400		{object}	error
//	@Failure		401		{object}	error
//	@Failure		500		{object}	error
//	@Router			/authentication/token [post]
func (app *application) createTokenHandler(w http.ResponseWriter, r *http.Request) {
	var payload CreateUserTokenPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user, err := app.store.Users.GetByEmail(r.Context(), payload.Email)
	if err != nil {
		switch {
		case errors.Is(err, users.ErrNotFound):
			app.unauthorizedErrorResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := user.Password.Compare(payload.Password); err != nil {
		app.unauthorizedErrorResponse(w, r, err)
		return
	}

	tokens, err := app.issueTokens(r, user.ID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, tokens); err != nil {
		app.internalServerError(w, r, err)
	}
}

// LogoutUser godoc
//
//	@Summary		logout user
//	@Description	Nullifies the refresh token and ends the shopping session. The saved cart is kept.
//	@Tags			authentication
//	@Accept			json
//	@Produce		json
//	@Success		204	{string}	string	"No Content"
//	@Failure		500	{object}	error	"Internal server error"
//	@Security		ApiKeyAuth
//	@Router			/authentication/logout [post]
func (app *application) logoutHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	if err := app.store.Users.DeleteRefreshToken(r.Context(), user.ID); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if key, err := session.Key(identityOf(user), ""); err == nil {
		app.sessions.End(key)
	}

	w.WriteHeader(http.StatusNoContent)
}

type RefreshPayload struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// refreshTokenHandler godoc
//
//	@Summary		Refresh authentication tokens
//	@Description	Validates the provided refresh token and issues new access and refresh tokens.
//	@Tags			authentication
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		RefreshPayload	true	"Refresh token payload"
//	@Success		200		{object}	Envelope		"New access and refresh tokens"
//	@Failure		400		{object}	error			"Bad request"
//	@Failure		401		{object}	error			"Unauthorized"
//	@Failure		500		{object}	error			"Internal server error"
//	@Router			/authentication/refresh [post]
func (app *application) refreshTokenHandler(w http.ResponseWriter, r *http.Request) {
	var payload RefreshPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	token, err := app.authenticator.ValidateRefreshToken(payload.RefreshToken)
	if err != nil || !token.Valid {
		app.unauthorizedErrorResponse(w, r, fmt.Errorf("invalid refresh token"))
		return
	}

	userID, err := auth.UserID(token)
	if err != nil {
		app.unauthorizedErrorResponse(w, r, err)
		return
	}

	// the presented token must be the one we issued last
	ok, err := app.store.Users.MatchRefreshToken(r.Context(), userID, payload.RefreshToken)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	if !ok {
		app.unauthorizedErrorResponse(w, r, fmt.Errorf("refresh token mismatch"))
		return
	}

	tokens, err := app.issueTokens(r, userID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, tokens); err != nil {
		app.internalServerError(w, r, err)
	}
}
