// Package sport defines sport classifications shared across the pipeline.
package sport

// Sport is a broad classification of a league or event.
type Sport string

const (
	Fighting   Sport = "Fighting"
	Boxing     Sport = "Boxing"
	Wrestling  Sport = "Wrestling"
	Motorsport Sport = "Motorsport"
	TeamSport  Sport = "TeamSport"
	Unknown    Sport = ""
)

// IsFighting reports whether the sport uses multi-part fight cards.
func IsFighting(s Sport) bool {
	switch s {
	case Fighting, Boxing, Wrestling:
		return true
	}
	return false
}

// IsRoundBased reports whether events are identified by round number.
func IsRoundBased(s Sport) bool {
	return s == Motorsport
}

// IsDateBased reports whether events are identified by calendar date.
func IsDateBased(s Sport) bool {
	return s == TeamSport
}
