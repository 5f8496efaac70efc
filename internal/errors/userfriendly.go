package errors

import (
	"fmt"
	"strings"
)

// UserFriendlyError provides user-friendly error messages with context and hints
type UserFriendlyError struct {
	Message string
	Reason  string
	Hint    string
	Try     string
	Err     error
}

func (e UserFriendlyError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Message)
	if e.Reason != "" {
		buf.WriteString("\n  Reason: " + e.Reason)
	}
	if e.Hint != "" {
		buf.WriteString("\n  Hint: " + e.Hint)
	}
	if e.Try != "" {
		buf.WriteString("\n  Try: " + e.Try)
	}
	if e.Err != nil {
		buf.WriteString("\n  Details: " + e.Err.Error())
	}
	return buf.String()
}

func (e UserFriendlyError) Unwrap() error {
	return e.Err
}

// WrapListenError wraps listener setup errors with user-friendly context
func WrapListenError(err error, ip string, port int) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Failed to listen on %s:%d", ip, port),
		Reason:  extractListenReason(err),
		Hint:    "Another process may already be using this port, or the address may not exist on this host",
		Try:     fmt.Sprintf("plcmock serve --listen-port 0 --listen-ip %s", ip),
		Err:     err,
	}
}

// WrapConfigError wraps configuration errors with user-friendly context
func WrapConfigError(err error, configPath string) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Configuration error in %s", configPath),
		Reason:  err.Error(),
		Hint:    "Compare against the built-in defaults for the expected layout",
		Try:     fmt.Sprintf("Validate your config: plcmock validate-config --config %s", configPath),
		Err:     err,
	}
}

// WrapCaptureError wraps packet capture errors with user-friendly context
func WrapCaptureError(err error, iface string) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Failed to start packet capture on %s", iface),
		Reason:  extractCaptureReason(err),
		Hint:    "Capture usually requires elevated privileges and a real interface name",
		Try:     "Run with sudo, or list interfaces with: ip link show",
		Err:     err,
	}
}

func extractListenReason(err error) string {
	errStr := err.Error()

	if strings.Contains(errStr, "address already in use") {
		return "Port already in use - another server is bound to this address"
	}
	if strings.Contains(errStr, "permission denied") {
		return "Permission denied - ports below 1024 require elevated privileges"
	}
	if strings.Contains(errStr, "cannot assign requested address") {
		return "Address not available - the listen IP does not belong to this host"
	}

	return "Listener setup failed"
}

func extractCaptureReason(err error) string {
	errStr := err.Error()

	if strings.Contains(errStr, "permission") || strings.Contains(errStr, "Operation not permitted") {
		return "Insufficient privileges to open the capture interface"
	}
	if strings.Contains(errStr, "No such device") {
		return "Capture interface does not exist"
	}

	return "Packet capture failed"
}
