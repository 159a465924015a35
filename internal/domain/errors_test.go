package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpstreamErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("broker: fetch page: %w", &UpstreamError{Exchange: ExchangeKalshi, Err: cause})

	var uerr *UpstreamError
	assert.True(t, errors.As(err, &uerr))
	assert.Equal(t, ExchangeKalshi, uerr.Exchange)
	assert.True(t, errors.Is(err, cause))
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Field: "ticker", Reason: "missing native id"}
	assert.Equal(t, "validation: ticker: missing native id", err.Error())
}
