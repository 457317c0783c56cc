package broker

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyAPIErrorInsufficientQuantity(t *testing.T) {
	err := classifyAPIError(403, []byte(`{"message":"insufficient qty available for order"}`))
	assert.True(t, errors.Is(err, ErrInsufficientQuantity))
	assert.True(t, IsGhostPositionError(err))
}

func TestClassifyAPIErrorPositionNotFound(t *testing.T) {
	err := classifyAPIError(404, []byte(`{"message":"position does not exist"}`))
	assert.True(t, errors.Is(err, ErrPositionNotFound))
	assert.True(t, IsGhostPositionError(err))
}

func TestClassifyAPIErrorUnrelatedRejectionIsNotAGhost(t *testing.T) {
	err := classifyAPIError(422, []byte(`{"message":"invalid limit price"}`))
	assert.False(t, IsGhostPositionError(err))
	assert.ErrorContains(t, err, "alpaca API error")
}

func TestIsGhostPositionErrorWrappedError(t *testing.T) {
	wrapped := errors.Join(errors.New("retry 3 failed"), ErrPositionNotFound)
	assert.True(t, IsGhostPositionError(wrapped))
}

func TestSentinelErrorMessage(t *testing.T) {
	assert.Equal(t, "insufficient quantity", ErrInsufficientQuantity.Error())
	assert.Equal(t, "position does not exist", ErrPositionNotFound.Error())
}
