package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

type PushTokenPayload struct {
	Token      string          `json:"token" validate:"required,expotoken"`
	DeviceInfo json.RawMessage `json:"device_info,omitempty" swaggertype:"object"`
}

// savePushTokenHandler godoc
//
//	@Summary		Register a push token
//	@Description	Stores the device's Expo push token so order updates reach it. Re-registering moves the token to the caller.
//	@Tags			notifications
//	@Accept			json
//	@Param			payload	body	PushTokenPayload	true	"Expo push token"
//	@Success		204
//	@Failure		400	{object}	ErrorBadRequestResponse
//	@Failure		401	{object}	error
//	@Security		ApiKeyAuth
//	@Router			/users/push-tokens [post]
func (app *application) savePushTokenHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	var payload PushTokenPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := app.store.PushTokens.Save(ctx, user.ID, payload.Token, payload.DeviceInfo); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// removePushTokenHandler godoc
//
//	@Summary		Unregister a push token
//	@Description	Call on sign-out so the device stops receiving this shopper's order updates.
//	@Tags			notifications
//	@Accept			json
//	@Param			payload	body	PushTokenPayload	true	"Expo push token"
//	@Success		204
//	@Failure		400	{object}	ErrorBadRequestResponse
//	@Failure		401	{object}	error
//	@Security		ApiKeyAuth
//	@Router			/users/push-tokens [delete]
func (app *application) removePushTokenHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	var payload PushTokenPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := app.store.PushTokens.Remove(ctx, user.ID, payload.Token); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
