package quic

import "errors"

var errNoTLS = errors.New("quic: Listen requires a TLS configuration")
