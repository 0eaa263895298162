package errmap

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	neturl "net/url"
	"strings"
	"syscall"
)

// Code classifies high-level error categories for user-facing messages.
type Code string

const (
	CodeCanceled            Code = "canceled"
	CodeTimeout             Code = "timeout"
	CodeDNSError            Code = "dns_error"
	CodeInvalidURL          Code = "invalid_url"
	CodeUnsupportedScheme   Code = "unsupported_scheme"
	CodeConnectionRefused   Code = "connection_refused"
	CodeConnectionReset     Code = "connection_reset"
	CodeNetworkUnreachable  Code = "network_unreachable"
	CodeTLSUnknownAuthority Code = "tls_unknown_authority"
	CodeTLSHostnameMismatch Code = "tls_hostname_mismatch"
	CodeTLSHandshake        Code = "tls_handshake"
	CodeIO                  Code = "io_error"
	CodeUnexpected          Code = "unexpected"
	CodeExpressionSyntax    Code = "expression_syntax"
	CodeExpressionRuntime   Code = "expression_runtime"
	CodeValidation          Code = "validation"
	CodeAssertionFailed     Code = "assertion_failed"
	CodeScript              Code = "script_error"
	CodeSQL                 Code = "sql_error"
	CodeLoopSafetyLimit     Code = "loop_safety_limit"
)

// Error carries a code and request context while preserving the original
// cause via Unwrap.
type Error struct {
	Code      Code
	Message   string
	Method    string
	URL       string
	Temporary bool
	Retryable bool
	cause     error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Message
	if msg == "" {
		msg = humanize(e.Code, e.cause)
	}
	if e.Method != "" && e.URL != "" {
		return fmt.Sprintf("%s %s: %s", e.Method, e.URL, msg)
	}
	if e.URL != "" {
		return fmt.Sprintf("%s: %s", e.URL, msg)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.cause }

func humanize(code Code, cause error) string {
	switch code {
	case CodeCanceled:
		return "request was canceled"
	case CodeTimeout:
		return "request timed out"
	case CodeDNSError:
		var dn *net.DNSError
		if errors.As(cause, &dn) {
			if dn.Name != "" {
				return fmt.Sprintf("DNS lookup failed for %q: %s", dn.Name, dn.Err)
			}
			return fmt.Sprintf("DNS error: %s", dn.Err)
		}
		return "DNS error"
	case CodeInvalidURL:
		return "invalid URL"
	case CodeUnsupportedScheme:
		return "unsupported protocol scheme"
	case CodeConnectionRefused:
		return "connection refused by remote host"
	case CodeConnectionReset:
		return "connection reset by peer"
	case CodeNetworkUnreachable:
		return "network unreachable"
	case CodeTLSUnknownAuthority:
		return "TLS: unknown certificate authority"
	case CodeTLSHostnameMismatch:
		return "TLS: certificate does not match host"
	case CodeTLSHandshake:
		return "TLS handshake failed"
	case CodeIO:
		return "I/O error"
	case CodeExpressionSyntax:
		if cause != nil {
			return fmt.Sprintf("expression syntax error: %s", cause.Error())
		}
		return "expression syntax error"
	case CodeExpressionRuntime:
		if cause != nil {
			return fmt.Sprintf("expression evaluation error: %s", cause.Error())
		}
		return "expression evaluation error"
	case CodeValidation:
		if cause != nil {
			return fmt.Sprintf("scenario validation failed: %s", cause.Error())
		}
		return "scenario validation failed"
	case CodeAssertionFailed:
		if cause != nil {
			return fmt.Sprintf("assertion failed: %s", cause.Error())
		}
		return "assertion failed"
	case CodeScript:
		if cause != nil {
			return fmt.Sprintf("script error: %s", cause.Error())
		}
		return "script error"
	case CodeSQL:
		if cause != nil {
			return fmt.Sprintf("sql error: %s", cause.Error())
		}
		return "sql error"
	case CodeLoopSafetyLimit:
		return "loop exceeded the configured safety cap"
	default:
		if cause != nil {
			return cause.Error()
		}
		return "unexpected error"
	}
}

// Map converts an arbitrary error into an *Error with a best-effort code.
// It keeps the original error as the cause.
func Map(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err // already mapped
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Code: CodeCanceled, Retryable: true, cause: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Code: CodeTimeout, Retryable: true, cause: err}
	}

	// url.Error often wraps timeouts, invalid URLs, etc.
	var uerr *neturl.Error
	if errors.As(err, &uerr) {
		var t net.Error
		if errors.As(uerr.Err, &t) && t.Timeout() {
			return &Error{Code: CodeTimeout, Temporary: t.Temporary(), Retryable: true, cause: err}
		}
		lower := strings.ToLower(uerr.Error())
		if strings.Contains(lower, "unsupported protocol scheme") {
			return &Error{Code: CodeUnsupportedScheme, cause: err}
		}
		if strings.Contains(lower, "invalid url") || strings.Contains(lower, "invalid uri") || strings.Contains(lower, "malformed url") {
			return &Error{Code: CodeInvalidURL, cause: err}
		}
		err = uerr.Err
	}

	var dnserr *net.DNSError
	if errors.As(err, &dnserr) {
		return &Error{Code: CodeDNSError, Temporary: dnserr.IsTemporary, Retryable: dnserr.IsTemporary, cause: dnserr}
	}

	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return &Error{Code: CodeTimeout, Temporary: nerr.Temporary(), Retryable: true, cause: nerr}
	}

	var operr *net.OpError
	if errors.As(err, &operr) {
		switch {
		case errors.Is(operr.Err, syscall.ECONNREFUSED):
			return &Error{Code: CodeConnectionRefused, Retryable: true, cause: err}
		case errors.Is(operr.Err, syscall.ECONNRESET):
			return &Error{Code: CodeConnectionReset, Temporary: true, Retryable: true, cause: err}
		case errors.Is(operr.Err, syscall.ENETUNREACH), errors.Is(operr.Err, syscall.EHOSTUNREACH):
			return &Error{Code: CodeNetworkUnreachable, Temporary: true, Retryable: true, cause: err}
		}
	}

	// x509 errors travel the chain by value, so the As targets must be
	// value types.
	var ua x509.UnknownAuthorityError
	if errors.As(err, &ua) {
		return &Error{Code: CodeTLSUnknownAuthority, cause: err}
	}
	var hn x509.HostnameError
	if errors.As(err, &hn) {
		return &Error{Code: CodeTLSHostnameMismatch, cause: err}
	}

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "handshake failure"), strings.Contains(lower, "tls"):
		return &Error{Code: CodeTLSHandshake, cause: err}
	case strings.Contains(lower, "timeout"):
		return &Error{Code: CodeTimeout, cause: err}
	case strings.Contains(lower, "unsupported protocol scheme"):
		return &Error{Code: CodeUnsupportedScheme, cause: err}
	case strings.Contains(lower, "refused"):
		return &Error{Code: CodeConnectionRefused, cause: err}
	case strings.Contains(lower, "reset"):
		return &Error{Code: CodeConnectionReset, cause: err}
	}

	return &Error{Code: CodeUnexpected, cause: err}
}

// New constructs an Error with the supplied code, message, and underlying cause.
func New(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// MapRequestError annotates the mapped error with request context.
func MapRequestError(method, urlStr string, err error) error {
	if err == nil {
		return nil
	}
	m := Map(err)
	var me *Error
	if errors.As(m, &me) {
		me.Method = method
		me.URL = urlStr
		return me
	}
	return m
}

// CodeOf extracts the code from a mapped error, or CodeUnexpected.
func CodeOf(err error) Code {
	var me *Error
	if errors.As(err, &me) {
		return me.Code
	}
	return CodeUnexpected
}
