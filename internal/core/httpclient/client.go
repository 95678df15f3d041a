// Package httpclient builds the outbound client shared by provider API
// calls and artifact downloads.
package httpclient

import (
	"net"
	"net/http"
	"time"
)

// NewOutbound returns a pooled client with a generous overall timeout;
// downloading a rendered PNG can take considerably longer than an API
// round trip.
func NewOutbound() *http.Client {
	return &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			MaxIdleConns:          64,
			MaxIdleConnsPerHost:   32,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}
