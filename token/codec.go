// Package token reads bearer tokens issued by the campus REST API.
//
// Tokens are never verified here. The portal only needs the subject and the
// expiry to drive its own session lifecycle; the REST API remains the
// authority on whether a token is accepted.
package token

import (
	"encoding/json"
	"strconv"
	"strings"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Payload is the decoded middle segment of a bearer token.
type Payload struct {
	Subject   string           // sub claim, the user id as a string
	IssuedAt  *int64           // iat claim, epoch seconds
	ExpiresAt *int64           // exp claim, epoch seconds; nil means unusable
	Claims    jwtlib.MapClaims // every claim, including ones the portal does not interpret
}

var segmentDecoder = jwtlib.NewParser()

// Decode parses the payload segment of a three segment token without
// verifying the signature. The header and signature segments are not read.
// It returns nil for any malformed input and never panics.
func Decode(raw string) *Payload {
	parts := strings.Split(strings.TrimSpace(raw), ".")
	if len(parts) != 3 || parts[1] == "" {
		return nil
	}

	data, err := segmentDecoder.DecodeSegment(parts[1])
	if err != nil {
		return nil
	}

	claims := jwtlib.MapClaims{}
	if err := json.Unmarshal(data, &claims); err != nil {
		return nil
	}

	p := &Payload{Claims: claims}
	p.Subject = subjectOf(claims["sub"])
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		issued := iat.Unix()
		p.IssuedAt = &issued
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expires := exp.Unix()
		p.ExpiresAt = &expires
	}
	return p
}

// Expiry returns the exp claim and whether it was present and numeric.
func (p *Payload) Expiry() (int64, bool) {
	if p == nil || p.ExpiresAt == nil {
		return 0, false
	}
	return *p.ExpiresAt, true
}

// The REST API writes sub as a string; hand-minted tokens sometimes carry the
// numeric student id instead.
func subjectOf(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case json.Number:
		return s.String()
	default:
		return ""
	}
}
