package dynload

import "strings"

// diagnosticText extracts the OS loader message from an error returned by a native call.
// It is evaluated right after the failing call, while the thread-local dlerror or
// GetLastError state still belongs to that call.
func diagnosticText(err error) string {
	if err == nil {
		return ""
	}
	return strings.TrimSpace(err.Error())
}
