package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"net/url"
	"strings"
	"syscall"
)

// Classify maps a transport error onto an ErrorKind and a short message.
// Precedence: timeout, certificate, other coded network error, unknown.
func Classify(err error) (ErrorKind, string) {
	if err == nil {
		return ErrorKindNone, ""
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorKindTimeout, "timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorKindTimeout, "timeout"
	}

	inner := err
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		inner = urlErr.Err
	}

	if isTLSError(inner) {
		return ErrorKindSSL, sslReason(inner.Error())
	}

	var opErr *net.OpError
	var dnsErr *net.DNSError
	var addrErr *net.AddrError
	var errno syscall.Errno
	switch {
	case errors.As(inner, &opErr),
		errors.As(inner, &dnsErr),
		errors.As(inner, &addrErr),
		errors.As(inner, &errno),
		errors.Is(inner, io.EOF),
		errors.Is(inner, io.ErrUnexpectedEOF),
		errors.Is(inner, context.Canceled):
		return ErrorKindOther, inner.Error()
	}

	return ErrorKindUnknown, err.Error()
}

func isTLSError(err error) bool {
	var unknownAuthority x509.UnknownAuthorityError
	var hostname x509.HostnameError
	var invalid x509.CertificateInvalidError
	var verification *tls.CertificateVerificationError
	var header tls.RecordHeaderError
	var alert tls.AlertError
	if errors.As(err, &unknownAuthority) ||
		errors.As(err, &hostname) ||
		errors.As(err, &invalid) ||
		errors.As(err, &verification) ||
		errors.As(err, &header) ||
		errors.As(err, &alert) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "x509:") || strings.Contains(msg, "tls:")
}

func sslReason(msg string) string {
	if _, reason, ok := strings.Cut(msg, ", reason:"); ok {
		return strings.TrimSpace(reason)
	}
	return msg
}
