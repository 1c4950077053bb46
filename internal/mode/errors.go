package mode

import "errors"

var (
	// ErrNotFound indicates no mode exists with the given id.
	ErrNotFound = errors.New("mode not found")

	// ErrNameTaken indicates another mode already uses the name.
	ErrNameTaken = errors.New("mode name already taken")

	// ErrEmptyName indicates the mode name is missing.
	ErrEmptyName = errors.New("mode name cannot be empty")

	// ErrEmptyFormatting indicates the required formatting prompt section is missing.
	ErrEmptyFormatting = errors.New("formatting section cannot be empty")

	// ErrInvalidPattern indicates a regex pattern does not compile.
	ErrInvalidPattern = errors.New("invalid regex pattern")

	// ErrEmptyOwner indicates a create or clone without a caller identity.
	ErrEmptyOwner = errors.New("mode owner cannot be empty")

	// ErrSystemOwned indicates the operation targets a built-in mode.
	ErrSystemOwned = errors.New("system-owned modes cannot be modified")

	// ErrNotOwner indicates the caller does not own the target mode.
	ErrNotOwner = errors.New("mode belongs to another user")
)
