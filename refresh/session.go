package refresh

import "stock-dashboard/models"

// Session is the single user's dashboard input. It survives refreshes and
// changes only through SetParameters.
type Session struct {
	Parameters models.Parameters
}

// NewSession validates params and returns a Session holding them
func NewSession(params models.Parameters) (Session, error) {
	p, err := params.Normalize()
	if err != nil {
		return Session{}, err
	}
	return Session{Parameters: p}, nil
}

// AlertRule returns the session's one alert slot
func (s Session) AlertRule() models.AlertRule {
	return s.Parameters.Alert
}

// QuoteKey is the quote cache key for the session's current request
func (s Session) QuoteKey() string {
	return models.QuoteKey(s.Parameters.Symbols, s.Parameters.Period)
}

// ShowsNews reports whether news is part of the current display
func (s Session) ShowsNews() bool {
	return !s.Parameters.CompareMode
}
