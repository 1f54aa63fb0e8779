// Package cookies carries opaque values in HttpOnly cookies. It never
// inspects what it carries.
package cookies

import (
	"net/http"
	"time"
)

// Options controls the attributes of every cookie the transport writes.
type Options struct {
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

// normalize applies safe defaults without breaking callers
func (o Options) normalize() Options {
	if o.Path == "" {
		o.Path = "/"
	}
	if o.SameSite == 0 {
		o.SameSite = http.SameSiteLaxMode
	}
	return o
}

type Transport struct {
	opts Options
}

func NewTransport(opts Options) *Transport {
	return &Transport{opts: opts.normalize()}
}

// Read returns the named cookie's value. Empty values count as absent.
func (t *Transport) Read(r *http.Request, name string) (string, bool) {
	c, err := r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// Write sets an HttpOnly cookie that lives for maxAge.
func (t *Transport) Write(w http.ResponseWriter, name, value string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     t.opts.Path,
		Domain:   t.opts.Domain,
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: true,
		Secure:   t.opts.Secure,
		SameSite: t.opts.SameSite,
	})
}

// Clear expires the named cookie if the request carried it.
func (t *Transport) Clear(r *http.Request, w http.ResponseWriter, name string) {
	if _, err := r.Cookie(name); err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     t.opts.Path,
		Domain:   t.opts.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   t.opts.Secure,
		SameSite: t.opts.SameSite,
	})
}
