package auth

import "time"

// SetClock replaces the provider's clock.
func (p *Provider) SetClock(now func() time.Time) { p.now = now }
