package addresses_test

import (
	"context"
	"errors"
	"testing"

	"storefront/internal/domain/addresses"
	"storefront/internal/mocks"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const userID int64 = 42

func createTestBook(t *testing.T) (*addresses.Book, *mocks.MockAddressBackend) {
	t.Helper()
	backend := mocks.NewMockAddressBackend(t)
	return addresses.NewBook(userID, backend, zap.NewNop().Sugar()), backend
}

func home(id string, isDefault bool) addresses.Address {
	return addresses.Address{
		ID: id, Type: addresses.TypeHome, Name: "Ada Lovelace", Street: "1 Main St",
		City: "Springfield", State: "IL", Zip: "62701", Country: "US", Phone: "5550100",
		IsDefault: isDefault,
	}
}

func TestCreateFirstAddressBecomesDefault(t *testing.T) {
	book, backend := createTestBook(t)
	in := home("", false)
	want := in
	want.IsDefault = true
	saved := home("a1", true)

	backend.On("List", mock.Anything, userID).Return([]addresses.Address{}, nil).Once()
	backend.On("Create", mock.Anything, userID, want).Return(saved, nil).Once()
	backend.On("List", mock.Anything, userID).Return([]addresses.Address{saved}, nil).Once()

	got, err := book.Create(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, got.IsDefault)

	def, ok := book.Default()
	require.True(t, ok)
	assert.Equal(t, "a1", def.ID)
}

func TestCreateSecondAddressKeepsRequestedFlag(t *testing.T) {
	book, backend := createTestBook(t)
	in := home("", false)
	in.Type = addresses.TypeWork

	backend.On("List", mock.Anything, userID).Return([]addresses.Address{home("a1", true)}, nil).Once()
	backend.On("Create", mock.Anything, userID, in).Return(addresses.Address{ID: "a2", Type: addresses.TypeWork}, nil).Once()
	backend.On("List", mock.Anything, userID).Return([]addresses.Address{home("a1", true), {ID: "a2"}}, nil).Once()

	got, err := book.Create(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, got.IsDefault)
}

func TestCreateValidatesBeforeBackend(t *testing.T) {
	book, backend := createTestBook(t)
	in := home("", false)
	in.Type = "castle"
	in.Zip = ""

	_, err := book.Create(context.Background(), in)
	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Len(t, verrs, 2)
	backend.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateDefaultStaysDefault(t *testing.T) {
	book, backend := createTestBook(t)
	in := home("", false)
	in.Street = "2 Elm St"
	want := in
	want.ID = "a1"
	want.IsDefault = true

	backend.On("List", mock.Anything, userID).Return([]addresses.Address{home("a1", true), home("a2", false)}, nil).Once()
	backend.On("Update", mock.Anything, userID, want).Return(want, nil).Once()
	backend.On("List", mock.Anything, userID).Return([]addresses.Address{want, home("a2", false)}, nil).Once()

	got, err := book.Update(context.Background(), "a1", in)
	require.NoError(t, err)
	assert.True(t, got.IsDefault)
	assert.Equal(t, "2 Elm St", got.Street)
}

func TestUpdateUnknownAddress(t *testing.T) {
	book, backend := createTestBook(t)
	backend.On("List", mock.Anything, userID).Return([]addresses.Address{home("a1", true)}, nil).Once()

	_, err := book.Update(context.Background(), "missing", home("", false))
	assert.ErrorIs(t, err, addresses.ErrNotFound)
}

func TestDeleteDefaultWithOthersIsRefused(t *testing.T) {
	book, backend := createTestBook(t)
	backend.On("List", mock.Anything, userID).Return([]addresses.Address{home("a1", true), home("a2", false)}, nil).Once()

	err := book.Delete(context.Background(), "a1")
	assert.ErrorIs(t, err, addresses.ErrCannotDeleteDefault)
	backend.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteLastAddress(t *testing.T) {
	book, backend := createTestBook(t)
	backend.On("List", mock.Anything, userID).Return([]addresses.Address{home("a1", true)}, nil).Once()
	backend.On("Delete", mock.Anything, userID, "a1").Return(nil).Once()
	backend.On("List", mock.Anything, userID).Return([]addresses.Address{}, nil).Once()

	require.NoError(t, book.Delete(context.Background(), "a1"))
	_, ok := book.Default()
	assert.False(t, ok)
}

func TestSetDefaultMovesTheFlag(t *testing.T) {
	book, backend := createTestBook(t)
	backend.On("List", mock.Anything, userID).Return([]addresses.Address{home("a1", true), home("a2", false)}, nil).Once()
	backend.On("SetDefault", mock.Anything, userID, "a2").Return(home("a2", true), nil).Once()
	backend.On("List", mock.Anything, userID).Return([]addresses.Address{home("a1", false), home("a2", true)}, nil).Once()

	got, err := book.SetDefault(context.Background(), "a2")
	require.NoError(t, err)
	assert.Equal(t, "a2", got.ID)

	def, ok := book.Default()
	require.True(t, ok)
	assert.Equal(t, "a2", def.ID)
	a1, ok := book.Get("a1")
	require.True(t, ok)
	assert.False(t, a1.IsDefault)
}

func TestListBackendFailure(t *testing.T) {
	book, backend := createTestBook(t)
	backend.On("List", mock.Anything, userID).Return(nil, errors.New("timeout")).Once()

	_, err := book.List(context.Background())
	assert.ErrorContains(t, err, "list addresses")
}
