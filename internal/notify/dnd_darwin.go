//go:build darwin

package notify

import (
	"os/exec"
	"strings"
)

// systemDNDChecker reads the Focus/Do Not Disturb flag that Notification
// Center keeps in its defaults domain.
type systemDNDChecker struct{}

func newSystemDNDChecker() DNDChecker {
	return systemDNDChecker{}
}

func (systemDNDChecker) Enabled() bool {
	out, err := exec.Command("defaults", "-currentHost", "read", "com.apple.notificationcenterui", "doNotDisturb").Output()
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(out)) == "1"
}
