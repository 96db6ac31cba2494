package services

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoData is returned by providers when a symbol has no bars for the
// requested window. It is a data gap, not a provider failure.
var ErrNoData = errors.New("no data")

// ErrNoCredential is returned when a provider needs an API key that is not set
var ErrNoCredential = errors.New("credential missing")

// DataFetchError reports that a quote request failed for every symbol
type DataFetchError struct {
	Symbols []string
	Causes  []error
}

func (e *DataFetchError) Error() string {
	msgs := make([]string, 0, len(e.Causes))
	for _, c := range e.Causes {
		msgs = append(msgs, c.Error())
	}
	return fmt.Sprintf("failed to fetch data for %s: %s",
		strings.Join(e.Symbols, ", "), strings.Join(msgs, "; "))
}

func (e *DataFetchError) Unwrap() []error {
	return e.Causes
}

// IsDataFetchError reports whether err is a total quote fetch failure
func IsDataFetchError(err error) bool {
	var dfe *DataFetchError
	return errors.As(err, &dfe)
}
