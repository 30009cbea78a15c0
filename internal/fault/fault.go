// Package fault holds the error kinds shared by every gatelearn package.
package fault

import "github.com/pkg/errors"

var (
	// ErrConfiguration marks invalid construction parameters: bad layer sizes,
	// unknown activation or gate names, non-positive rates.
	ErrConfiguration = errors.New("configuration error")

	// ErrShape marks inputs whose dimensions disagree with a model.
	ErrShape = errors.New("shape error")
)

// Configf returns an ErrConfiguration carrying a formatted message.
func Configf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrConfiguration, format, args...)
}

// Shapef returns an ErrShape carrying a formatted message.
func Shapef(format string, args ...interface{}) error {
	return errors.Wrapf(ErrShape, format, args...)
}
