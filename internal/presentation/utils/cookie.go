package utils

import (
	"encoding/base64"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const CookieNameMemberID = "member_id"

const memberIDCookieLifetime = 30 * 24 * time.Hour

// EnsureMemberID returns the caller's guest identity, minting one on first
// contact. Identity is a random uuid in a long-lived cookie; there are no
// accounts.
func EnsureMemberID(w http.ResponseWriter, r *http.Request) string {
	if id := GetMemberIDFromCookie(r); id != "" {
		return id
	}
	newID := uuid.New().String()
	SetPersistentMemberIDCookie(newID, w)
	return newID
}

func GetMemberIDFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(CookieNameMemberID)
	if err != nil {
		return ""
	}
	decoded, err := base64.StdEncoding.DecodeString(cookie.Value)
	if err != nil {
		return ""
	}
	return string(decoded)
}

func memberIDCookie(memberID string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieNameMemberID,
		Value:    base64.StdEncoding.EncodeToString([]byte(memberID)),
		Path:     "/",
		HttpOnly: true,
		Expires:  time.Now().Add(memberIDCookieLifetime),
		SameSite: http.SameSiteLaxMode,
		Secure:   true,
	}
}

func SetPersistentMemberIDCookie(memberID string, w http.ResponseWriter) {
	http.SetCookie(w, memberIDCookie(memberID))
}

// MemberIDSetCookieHeader builds the Set-Cookie header for a websocket
// upgrade response, where headers set on the ResponseWriter are not sent.
func MemberIDSetCookieHeader(memberID string) http.Header {
	header := http.Header{}
	header.Add("Set-Cookie", memberIDCookie(memberID).String())
	return header
}

func GetMemberIDFromRequest(r *http.Request) string {
	// First try header (for API clients)
	if token := r.Header.Get("X-Member-Token"); token != "" {
		return token
	}

	// Fall back to cookie (for browsers and WebSocket)
	return GetMemberIDFromCookie(r)
}
