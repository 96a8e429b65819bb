package stt

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/lexiqai/speech-transcriber/internal/config"
)

const (
	signAlgorithm = "hmac-sha256"
	signedHeaders = "host date request-line"
)

// SignedURL is a connection URL valid for a single handshake
type SignedURL struct {
	URL           string
	Authorization string // base64 authorization value, also present in URL
	Date          string // RFC1123 date in GMT, also present in URL
}

// Signer builds HMAC-signed connection URLs for one endpoint
type Signer struct {
	scheme string
	host   string
	path   string
}

// NewSigner creates a signer for scheme://host/path
func NewSigner(scheme, host, path string) *Signer {
	return &Signer{scheme: scheme, host: host, path: path}
}

// Sign produces the connection URL for creds at now. The service checks
// the date against its own clock, so it is always rendered in UTC.
func (s *Signer) Sign(creds config.Credentials, now time.Time) (SignedURL, error) {
	if err := creds.Validate(); err != nil {
		return SignedURL{}, newError(KindConfiguration, "sign url", err)
	}

	date := now.UTC().Format(http.TimeFormat)
	canonical := fmt.Sprintf("host: %s\ndate: %s\nGET %s HTTP/1.1", s.host, date, s.path)

	mac := hmac.New(sha256.New, []byte(creds.APISecret))
	mac.Write([]byte(canonical))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	authOrigin := fmt.Sprintf(`api_key="%s", algorithm="%s", headers="%s", signature="%s"`,
		creds.APIKey, signAlgorithm, signedHeaders, signature)
	authorization := base64.StdEncoding.EncodeToString([]byte(authOrigin))

	query := url.Values{}
	query.Set("authorization", authorization)
	query.Set("date", date)
	query.Set("host", s.host)

	u := url.URL{
		Scheme:   s.scheme,
		Host:     s.host,
		Path:     s.path,
		RawQuery: query.Encode(),
	}
	return SignedURL{URL: u.String(), Authorization: authorization, Date: date}, nil
}
