package httpx

import (
	"net/http"
	"time"
)

// Cookie names carrying the token pair.
const (
	AccessCookieName  = "access_token"
	RefreshCookieName = "refresh_token"
)

// CookieConfig holds the attributes shared by both auth cookies.
type CookieConfig struct {
	Secure   bool
	SameSite http.SameSite
	Domain   string
}

// SetAuthCookies writes both token cookies. Max-Age equals each token's TTL.
func (c CookieConfig) SetAuthCookies(w http.ResponseWriter, access, refresh string, accessTTL, refreshTTL time.Duration) {
	http.SetCookie(w, c.cookie(AccessCookieName, access, int(accessTTL/time.Second)))
	http.SetCookie(w, c.cookie(RefreshCookieName, refresh, int(refreshTTL/time.Second)))
}

// ClearAuthCookies expires both token cookies using the same attributes they were set with.
func (c CookieConfig) ClearAuthCookies(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie(AccessCookieName, "", -1))
	http.SetCookie(w, c.cookie(RefreshCookieName, "", -1))
}

func (c CookieConfig) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	}
}

// CookieValue returns the value of cookie name, or "".
func CookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
