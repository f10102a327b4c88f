package security

import (
	"context"
	"crypto/tls"
	"math"
	"net"
	"net/url"
	"time"
)

const (
	dialTimeout = 10 * time.Second

	// expiringWithin is the window in which a valid certificate is reported
	// as "expiring".
	expiringWithin = 30 * 24 * time.Hour
)

// CertStatus describes the leaf certificate presented by the ingestion
// endpoint.
type CertStatus struct {
	Endpoint string
	Status   string // valid | expiring | expired | unreachable
	Issuer   string
	NotAfter time.Time
	DaysLeft int
}

// Check dials the ingestion endpoint and inspects its leaf certificate.
//
// Returns nil for non-HTTPS endpoints; there is no certificate to inspect.
// The chain is not verified here; only expiry is reported.
func Check(ctx context.Context, endpoint string) *CertStatus {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme != "https" {
		return nil
	}

	cs := &CertStatus{Endpoint: endpoint}

	host := u.Host
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "443")
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{},
		Config: &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec
			ServerName:         u.Hostname(),
		},
	}

	netConn, err := dialer.DialContext(dialCtx, "tcp", host)
	if err != nil {
		cs.Status = "unreachable"
		return cs
	}
	conn := netConn.(*tls.Conn)
	defer conn.Close()

	peerCerts := conn.ConnectionState().PeerCertificates
	if len(peerCerts) == 0 {
		cs.Status = "unreachable"
		return cs
	}

	leaf := peerCerts[0]
	left := time.Until(leaf.NotAfter)

	cs.NotAfter = leaf.NotAfter.UTC()
	cs.Issuer = leaf.Issuer.CommonName
	cs.DaysLeft = int(math.Floor(left.Hours() / 24))

	switch {
	case left <= 0:
		cs.Status = "expired"
	case left <= expiringWithin:
		cs.Status = "expiring"
	default:
		cs.Status = "valid"
	}
	return cs
}
