package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"
	"time"
)

const SessionCookieName = "thinkflow_session"

// SessionCookies signs session ids into cookie values. With an empty secret
// the id is stored as is, which is only acceptable in development.
type SessionCookies struct {
	secret []byte
	TTL    time.Duration
	Secure bool
}

func NewSessionCookies(secret []byte, ttl time.Duration, secure bool) SessionCookies {
	return SessionCookies{secret: append([]byte(nil), secret...), TTL: ttl, Secure: secure}
}

func (c SessionCookies) sign(id string) []byte {
	mac := hmac.New(sha256.New, c.secret)
	_, _ = mac.Write([]byte(id))
	return mac.Sum(nil)
}

func (c SessionCookies) Encode(sessionID string) string {
	if len(c.secret) == 0 {
		return sessionID
	}
	return sessionID + "." + base64.RawURLEncoding.EncodeToString(c.sign(sessionID))
}

func (c SessionCookies) Decode(value string) (string, bool) {
	if len(c.secret) == 0 {
		return value, value != ""
	}
	id, sig64, ok := strings.Cut(value, ".")
	if !ok || id == "" {
		return "", false
	}
	sig, err := base64.RawURLEncoding.DecodeString(sig64)
	if err != nil || len(sig) != sha256.Size {
		return "", false
	}
	if subtle.ConstantTimeCompare(sig, c.sign(id)) != 1 {
		return "", false
	}
	return id, true
}

// FromRequest returns the verified session id carried by r, if any.
func (c SessionCookies) FromRequest(r *http.Request) (string, bool) {
	ck, err := r.Cookie(SessionCookieName)
	if err != nil {
		return "", false
	}
	return c.Decode(ck.Value)
}

func (c SessionCookies) Set(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, c.cookie(c.Encode(sessionID), int(c.TTL.Seconds()), time.Now().Add(c.TTL)))
}

func (c SessionCookies) Clear(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie("", -1, time.Unix(0, 0)))
}

func (c SessionCookies) cookie(value string, maxAge int, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
		Expires:  expires,
	}
}
