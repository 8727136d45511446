// Package meeting issues signed interview meeting links.
//
// A link is a URL of the form <base>/interview/<token> where the token is an
// HS256 JWT binding the candidate and the booked slot. Links are verified
// when an interview room is joined, so a candidate cannot fabricate or swap
// a slot by editing the URL.
package meeting

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims are the payload carried by a meeting-link token.
type Claims struct {
	CandidateID   uuid.UUID `json:"cid"`
	ScheduledDate string    `json:"date"` // YYYY-MM-DD
	ScheduledTime string    `json:"time"` // HH:MM
	jwt.RegisteredClaims
}

// LinkSigner mints and verifies meeting links.
type LinkSigner struct {
	secret  []byte
	baseURL string
	now     func() time.Time
}

// NewLinkSigner creates a signer. baseURL must not end with a slash; now may
// be nil for wall-clock time.
func NewLinkSigner(secret, baseURL string, now func() time.Time) *LinkSigner {
	if now == nil {
		now = time.Now
	}
	return &LinkSigner{
		secret:  []byte(secret),
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     now,
	}
}

// Link returns a signed meeting URL for the booked slot. The token expires
// 24 hours after the interview starts.
func (s *LinkSigner) Link(candidateID uuid.UUID, date time.Time, hm string, startsAt time.Time) (string, error) {
	claims := Claims{
		CandidateID:   candidateID,
		ScheduledDate: date.Format("2006-01-02"),
		ScheduledTime: hm,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   candidateID.String(),
			IssuedAt:  jwt.NewNumericDate(s.now()),
			ExpiresAt: jwt.NewNumericDate(startsAt.Add(24 * time.Hour)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("meeting: sign link: %w", err)
	}
	return s.baseURL + "/interview/" + token, nil
}

// Verify parses and validates a meeting token.
func (s *LinkSigner) Verify(token string) (Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return Claims{}, fmt.Errorf("meeting: verify link: %w", err)
	}
	if !parsed.Valid {
		return Claims{}, fmt.Errorf("meeting: invalid token")
	}
	return claims, nil
}
