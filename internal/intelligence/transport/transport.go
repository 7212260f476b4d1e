// Package transport holds the request shapes of the intelligence HTTP API.
// Responses serialize the engine result types directly.
package transport

import "time"

// AsOfRequest optionally pins the reference time of a scoring request.
// Omitted, the server clock is used. Backdating is how support reproduces
// "what did the engine see last Tuesday".
type AsOfRequest struct {
	AsOf *time.Time `json:"asOf" binding:"omitempty"`
}

// Resolve returns the requested reference time, or fallback when unset.
func (r AsOfRequest) Resolve(fallback time.Time) time.Time {
	if r.AsOf != nil {
		return *r.AsOf
	}
	return fallback
}
