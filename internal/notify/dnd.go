package notify

// DNDChecker reports whether the host's focus/do-not-disturb mode is on.
type DNDChecker interface {
	Enabled() bool
}

// NewSystemDNDChecker returns the checker for the host platform.
func NewSystemDNDChecker() DNDChecker {
	return newSystemDNDChecker()
}

// SetDNDChecker replaces the checker. Tests use it; the default probes
// the host.
func (d *Dispatcher) SetDNDChecker(checker DNDChecker) {
	d.dnd = checker
}
