package decompiler

import (
	"sync"

	"github.com/wippyai/decompiler/domain"
)

var (
	domainsMu sync.Mutex
	domains   []*domain.Domain
	fallback  *domain.Domain
)

// Current returns the innermost pushed domain, or the default domain when
// none is pushed.
func Current() *domain.Domain {
	domainsMu.Lock()
	defer domainsMu.Unlock()
	if n := len(domains); n > 0 {
		return domains[n-1]
	}
	if fallback == nil {
		fallback = domain.New(domain.DefaultSemantics())
	}
	return fallback
}

// SetDefault replaces the domain Current returns when none is pushed.
func SetDefault(d *domain.Domain) {
	domainsMu.Lock()
	defer domainsMu.Unlock()
	fallback = d
}

// push makes d current and returns the function restoring the previous
// domain. The restore tolerates being run after a panic.
func push(d *domain.Domain) func() {
	domainsMu.Lock()
	domains = append(domains, d)
	depth := len(domains)
	domainsMu.Unlock()
	return func() {
		domainsMu.Lock()
		defer domainsMu.Unlock()
		if len(domains) >= depth {
			domains = domains[:depth-1]
		}
	}
}

// WithDomain runs fn with d as the current domain.
func WithDomain(d *domain.Domain, fn func() error) error {
	restore := push(d)
	defer restore()
	return fn()
}
