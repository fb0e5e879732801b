package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Bright-River-CGI/lifestyle-app/internal/access"
	"github.com/Bright-River-CGI/lifestyle-app/internal/lifecycle"
	"github.com/Bright-River-CGI/lifestyle-app/internal/repository"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestTranslateLeavesServiceErrorsAlone(t *testing.T) {
	lower := []error{
		fmt.Errorf("%w: employee may not delete-order", access.ErrDenied),
		gorm.ErrRecordNotFound,
		repository.ErrStaleVersion,
		fmt.Errorf("%w: approved to rejected", lifecycle.ErrInvalidTransition),
		lifecycle.ErrUnknownStatus,
	}
	for _, err := range lower {
		once := translate(err)
		twice := translate(once)
		assert.Same(t, once, twice)
		assert.Equal(t, once.Error(), twice.Error())
	}

	denied := translate(translate(fmt.Errorf("%w: client may not delete-order", access.ErrDenied)))
	assert.ErrorIs(t, denied, ErrUnauthorized)
	assert.Equal(t, "unauthorized: capability denied: client may not delete-order", denied.Error())

	plain := errors.New("disk full")
	assert.Same(t, plain, translate(plain))
}
