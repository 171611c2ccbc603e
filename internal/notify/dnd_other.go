//go:build !darwin

package notify

// systemDNDChecker is a no-op on platforms without a queryable focus
// mode; notifications are never suppressed for DND there.
type systemDNDChecker struct{}

func newSystemDNDChecker() DNDChecker {
	return systemDNDChecker{}
}

func (systemDNDChecker) Enabled() bool {
	return false
}
