package repository

import (
	"fmt"

	"github.com/arklim/maintenance-service/internal/core/domain"
)

// ErrNotFound indicates the requested record does not exist. It matches domain.ErrNotFound.
var ErrNotFound = fmt.Errorf("repository: %w", domain.ErrNotFound)
