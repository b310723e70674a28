//go:build !azure

package azure

import (
	"github.com/hyy20190326/luis-0509/internal/models"
	"github.com/hyy20190326/luis-0509/internal/service/stt"
)

// New always fails without the azure build tag.
func New(Config, models.SessionDescriptor) (stt.Engine, error) {
	return nil, ErrUnavailable
}
