// Package cookie writes the session cookie, signed with HMAC-SHA256 when
// a secret is configured.
//
//	jar, err := cookie.New(cookie.WithSecret(cfg.Session.Secret), cookie.WithSecure(true))
//	jar.Write(w, "canopy_sid", token, 86400)
//	token, err := jar.Read(r, "canopy_sid") // ErrBadSig if tampered
package cookie
