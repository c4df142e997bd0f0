package main

import (
	"context"
	"net/http"
	"time"

	"storefront/internal/domain/addresses"

	"github.com/go-chi/chi/v5"
)

// AddressPayload is the editable part of a saved address.
type AddressPayload struct {
	Type         addresses.Type `json:"type"`
	Name         string         `json:"name"`
	Street       string         `json:"street"`
	Apartment    string         `json:"apartment,omitempty"`
	City         string         `json:"city"`
	State        string         `json:"state"`
	Zip          string         `json:"zip"`
	Country      string         `json:"country"`
	Phone        string         `json:"phone" validate:"omitempty,phone"`
	IsDefault    bool           `json:"is_default"`
	Instructions string         `json:"instructions,omitempty"`
}

func (p AddressPayload) address() addresses.Address {
	return addresses.Address{
		Type:         p.Type,
		Name:         p.Name,
		Street:       p.Street,
		Apartment:    p.Apartment,
		City:         p.City,
		State:        p.State,
		Zip:          p.Zip,
		Country:      p.Country,
		Phone:        p.Phone,
		IsDefault:    p.IsDefault,
		Instructions: p.Instructions,
	}
}

// listAddressesHandler godoc
//
//	@Summary		List saved addresses
//	@Tags			addresses
//	@Produce		json
//	@Success		200	{array}		addresses.Address
//	@Failure		401	{object}	error
//	@Security		ApiKeyAuth
//	@Router			/store/addresses [get]
func (app *application) listAddressesHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := app.sessionFor(r)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	list, err := sess.Addresses.List(ctx)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, list); err != nil {
		app.internalServerError(w, r, err)
	}
}

// createAddressHandler godoc
//
//	@Summary		Save address
//	@Description	The first address saved becomes the default.
//	@Tags			addresses
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		AddressPayload	true	"Address"
//	@Success		201		{object}	addresses.Address
//	@Failure		400		{object}	ErrorBadRequestResponse
//	@Security		ApiKeyAuth
//	@Router			/store/addresses [post]
func (app *application) createAddressHandler(w http.ResponseWriter, r *http.Request) {
	var payload AddressPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	sess, err := app.sessionFor(r)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	a, err := sess.Addresses.Create(ctx, payload.address())
	if err != nil {
		app.outcomeErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusCreated, a); err != nil {
		app.internalServerError(w, r, err)
	}
}

// updateAddressHandler godoc
//
//	@Summary		Update address
//	@Tags			addresses
//	@Accept			json
//	@Produce		json
//	@Param			addressID	path		string			true	"Address ID"
//	@Param			payload		body		AddressPayload	true	"Address"
//	@Success		200			{object}	addresses.Address
//	@Failure		400			{object}	ErrorBadRequestResponse
//	@Failure		404			{object}	error
//	@Security		ApiKeyAuth
//	@Router			/store/addresses/{addressID} [put]
func (app *application) updateAddressHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "addressID")

	var payload AddressPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	sess, err := app.sessionFor(r)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	a, err := sess.Addresses.Update(ctx, id, payload.address())
	if err != nil {
		app.outcomeErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, a); err != nil {
		app.internalServerError(w, r, err)
	}
}

// deleteAddressHandler godoc
//
//	@Summary		Delete address
//	@Description	The default address can only be deleted when it is the last one.
//	@Tags			addresses
//	@Param			addressID	path	string	true	"Address ID"
//	@Success		204
//	@Failure		404	{object}	error
//	@Failure		409	{object}	error
//	@Security		ApiKeyAuth
//	@Router			/store/addresses/{addressID} [delete]
func (app *application) deleteAddressHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "addressID")

	sess, err := app.sessionFor(r)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := sess.Addresses.Delete(ctx, id); err != nil {
		app.outcomeErrorResponse(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// setDefaultAddressHandler godoc
//
//	@Summary		Make address the default
//	@Tags			addresses
//	@Produce		json
//	@Param			addressID	path		string	true	"Address ID"
//	@Success		200			{object}	addresses.Address
//	@Failure		404			{object}	error
//	@Security		ApiKeyAuth
//	@Router			/store/addresses/{addressID}/default [put]
func (app *application) setDefaultAddressHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "addressID")

	sess, err := app.sessionFor(r)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	a, err := sess.Addresses.SetDefault(ctx, id)
	if err != nil {
		app.outcomeErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, a); err != nil {
		app.internalServerError(w, r, err)
	}
}
