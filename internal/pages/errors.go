package pages

import (
	"errors"
	"fmt"
)

var (
	ErrSlugRequired   = errors.New("pages: slug is required")
	ErrParentRequired = errors.New("pages: parent is required")
	ErrStatusInvalid  = errors.New("pages: status is invalid")
	ErrPageNotFound   = errors.New("pages: page not found")
)

// PageNotFoundError reports a lookup that matched no page.
type PageNotFoundError struct {
	Key string
}

func (e *PageNotFoundError) Error() string {
	if e.Key == "" {
		return ErrPageNotFound.Error()
	}
	return fmt.Sprintf("pages: page %q not found", e.Key)
}

func (e *PageNotFoundError) Unwrap() error {
	return ErrPageNotFound
}

// IsNotFound reports whether err signals a missing page.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPageNotFound)
}
