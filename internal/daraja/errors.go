package daraja

import "fmt"

// AuthError reports missing credentials or a rejected token exchange.
type AuthError struct {
	Status int
	Detail string
}

func (e *AuthError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("daraja auth: status %d: %s", e.Status, e.Detail)
	}
	return "daraja auth: " + e.Detail
}

// GatewayError reports a rejected or timed-out push initiation. Body carries
// the gateway's error payload verbatim when one was returned.
type GatewayError struct {
	Status int
	Body   string
}

func (e *GatewayError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("daraja gateway: status %d: %s", e.Status, e.Body)
	}
	return "daraja gateway: " + e.Body
}
