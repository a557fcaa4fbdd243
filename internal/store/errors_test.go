package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		err           error
		notFound      bool
		alreadyExists bool
	}{
		{name: "nil error", err: nil},
		{name: "generic error", err: errors.New("some error")},
		{name: "not found", err: ErrNotFound, notFound: true},
		{name: "job not found", err: ErrJobNotFound, notFound: true},
		{
			name:     "wrapped job not found",
			err:      fmt.Errorf("get status: %w", ErrJobNotFound),
			notFound: true,
		},
		{name: "job exists", err: ErrJobExists, alreadyExists: true},
		{
			name:          "wrapped already exists",
			err:           fmt.Errorf("%w: duplicate key", ErrAlreadyExists),
			alreadyExists: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.notFound, IsNotFoundError(tt.err))
			assert.Equal(t, tt.alreadyExists, IsAlreadyExistsError(tt.err))
		})
	}
}

func TestJobErrorsAreDistinct(t *testing.T) {
	t.Parallel()

	assert.NotErrorIs(t, ErrJobNotFound, ErrAlreadyExists)
	assert.NotErrorIs(t, ErrJobExists, ErrNotFound)
	assert.ErrorIs(t, ErrJobNotFound, ErrNotFound)
	assert.ErrorIs(t, ErrJobExists, ErrAlreadyExists)
}
