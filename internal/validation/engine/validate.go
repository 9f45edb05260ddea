package engine

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/vietddude/guildwatch/internal/core/domain"
	"github.com/vietddude/guildwatch/internal/infra/probe"
)

var countryCode = regexp.MustCompile(`^[A-Z]{2}$`)

// ValidateLocation checks a declared geographic claim.
func ValidateLocation(loc *domain.Location) (bool, string) {
	switch {
	case loc == nil:
		return false, "location missing"
	case strings.TrimSpace(loc.Name) == "":
		return false, "location name missing"
	case !countryCode.MatchString(loc.Country):
		return false, fmt.Sprintf("country %q is not a two-letter uppercase code", loc.Country)
	case loc.Latitude < -90 || loc.Latitude > 90:
		return false, fmt.Sprintf("latitude %v out of range", loc.Latitude)
	case loc.Longitude < -180 || loc.Longitude > 180:
		return false, fmt.Sprintf("longitude %v out of range", loc.Longitude)
	case loc.Latitude == 0 && loc.Longitude == 0:
		return false, "coordinates 0,0"
	}
	return true, ""
}

// ValidateURL checks that raw is an absolute http(s) URL.
func ValidateURL(raw string) (bool, string) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false, err.Error()
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false, fmt.Sprintf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return false, "host missing"
	}
	return true, ""
}

func (e *Engine) checkTLS(ctx context.Context, env *Env) (bool, string) {
	u, err := url.Parse(env.Target.URL)
	if err != nil {
		return false, err.Error()
	}
	host, port := u.Hostname(), u.Port()
	if port == "" {
		port = "443"
	}

	timeout := env.Chain.Request.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialer := &tls.Dialer{
		Config: &tls.Config{
			ServerName: host,
			RootCAs:    e.rootCAs,
			MinVersion: tls.VersionTLS12,
		},
	}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
	if err != nil {
		kind, msg := probe.Classify(err)
		return false, string(kind) + ": " + msg
	}
	defer conn.Close()

	certs := conn.(*tls.Conn).ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return false, "no peer certificate"
	}
	expiry := certs[0].NotAfter
	if expiry.Sub(e.now()) < env.Chain.TLS.MinValidity {
		return false, "certificate expires " + expiry.UTC().Format(time.DateOnly)
	}
	return true, "valid until " + expiry.UTC().Format(time.DateOnly)
}
