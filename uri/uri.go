/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

// Package uri parses, composes, normalizes, resolves and
// template-expands the URIs carried on the request line and in route
// target templates. It wraps net/url for the grammar and adds the
// normalization rules the wire protocol needs: IDNA-folded hosts and
// case-folded scheme/host tokens (path and query stay case-sensitive
// per the connection invariants).
package uri

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var caser = cases.Fold()

// URI is the parsed form of a request-line target or a route template
// target. Path and RawQuery are preserved byte-for-byte (case-sensitive
// per the route-matching invariant); Scheme and Host are normalized.
type URI struct {
	Scheme   string
	Host     string // normalized, port stripped
	Port     string // empty if default/none
	Path     string
	RawQuery string
	Fragment string

	// Opaque is "*" for an asterisk-form target; otherwise it holds
	// net/url's opaque part of a reference that has no path.
	Opaque string
}

// Parse parses raw into a URI, normalizing scheme and host. raw may be
// an origin-form path ("/a/b?q"), an absolute URI, or "*" (OPTIONS).
func Parse(raw string) (*URI, error) {
	if raw == "" {
		return nil, fmt.Errorf("uri: empty")
	}

	if raw == "*" {
		return &URI{Opaque: "*"}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("uri: %w", err)
	}

	out := &URI{
		Path:     u.Path,
		RawQuery: u.RawQuery,
		Fragment: u.Fragment,
	}

	if u.Scheme != "" {
		out.Scheme = foldToken(u.Scheme)
	}

	if u.Host != "" {
		host, port, err := splitHostPort(u.Host)
		if err != nil {
			return nil, err
		}

		norm, err := normalizeHost(host)
		if err != nil {
			return nil, err
		}

		out.Host = norm
		out.Port = port
	}

	if out.Path == "" && u.Opaque != "" {
		out.Opaque = u.Opaque
	}

	return out, nil
}

// splitHostPort separates an optional trailing ":port" from host,
// tolerating bracketed IPv6 literals.
func splitHostPort(hostport string) (host, port string, err error) {
	if strings.HasPrefix(hostport, "[") {
		end := strings.IndexByte(hostport, ']')
		if end < 0 {
			return "", "", fmt.Errorf("uri: malformed IPv6 host %q", hostport)
		}

		host = hostport[:end+1]
		rest := hostport[end+1:]

		if strings.HasPrefix(rest, ":") {
			port = rest[1:]
		}

		return host, port, nil
	}

	if i := strings.LastIndexByte(hostport, ':'); i >= 0 {
		return hostport[:i], hostport[i+1:], nil
	}

	return hostport, "", nil
}

func isIPLiteral(host string) bool {
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		return true
	}

	// a dotted-quad with no letters is treated as an IPv4 literal; a
	// DNS label never needs IDNA handling in that shape.
	for _, r := range host {
		if (r < '0' || r > '9') && r != '.' {
			return false
		}
	}

	return host != ""
}

func normalizeHost(host string) (string, error) {
	if host == "" || isIPLiteral(host) {
		return host, nil
	}

	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		// fall back to a plain case-fold; a malformed label is not
		// reason enough to reject a Host header outright, the router
		// will simply fail to match any route for it.
		return foldToken(host), nil
	}

	return foldToken(ascii), nil
}

func foldToken(s string) string {
	return caser.String(s)
}

// Compose renders u back to its wire/string form.
func (u *URI) Compose() string {
	if u.Opaque == "*" {
		return "*"
	}

	var b strings.Builder

	if u.Scheme != "" {
		b.WriteString(u.Scheme)
		b.WriteString("://")
		b.WriteString(u.HostPort())
	}

	if u.Path != "" {
		b.WriteString(u.Path)
	} else if u.Opaque != "" {
		b.WriteString(u.Opaque)
	}

	if u.RawQuery != "" {
		b.WriteByte('?')
		b.WriteString(u.RawQuery)
	}

	if u.Fragment != "" {
		b.WriteByte('#')
		b.WriteString(u.Fragment)
	}

	return b.String()
}

// HostPort renders Host and Port as a single authority token, bracketing
// IPv6 literals only once.
func (u *URI) HostPort() string {
	if u.Host == "" {
		return ""
	}

	if u.Port == "" {
		return u.Host
	}

	return u.Host + ":" + u.Port
}

// Resolve resolves ref against base, following RFC 3986 §5 rules (the
// parts net/url.URL.ResolveReference already implements); scheme/host
// normalization is re-applied to the result.
func Resolve(base *URI, ref *URI) (*URI, error) {
	bu, err := url.Parse(base.Compose())
	if err != nil {
		return nil, err
	}

	ru, err := url.Parse(ref.Compose())
	if err != nil {
		return nil, err
	}

	return Parse(bu.ResolveReference(ru).String())
}

// Query parses RawQuery into a tree of repeated values, matching the
// request's query-parameter exposure to route conditions/updates.
func (u *URI) Query() map[string][]string {
	v, err := url.ParseQuery(u.RawQuery)
	if err != nil || v == nil {
		return map[string][]string{}
	}

	return map[string][]string(v)
}

// Expand substitutes "{name}" placeholders in tmpl with values from
// params, used by route targets (`run TEMPLATE`, `redirect`, defense
// `cmd` argument templating).
func Expand(tmpl string, params map[string]string) string {
	var b strings.Builder
	b.Grow(len(tmpl))

	i := 0
	for i < len(tmpl) {
		if tmpl[i] == '{' {
			if end := strings.IndexByte(tmpl[i:], '}'); end > 0 {
				name := tmpl[i+1 : i+end]
				if v, ok := params[name]; ok {
					b.WriteString(v)
					i += end + 1
					continue
				}
			}
		}

		b.WriteByte(tmpl[i])
		i++
	}

	return b.String()
}

// DefaultPort returns the conventional port for scheme, or "" if unknown.
func DefaultPort(scheme string) string {
	switch foldToken(scheme) {
	case "http", "ws":
		return "80"
	case "https", "wss":
		return "443"
	}

	return ""
}

// EffectivePort returns u.Port, or the scheme's default if Port is empty.
func (u *URI) EffectivePort() (int, error) {
	p := u.Port
	if p == "" {
		p = DefaultPort(u.Scheme)
	}

	if p == "" {
		return 0, fmt.Errorf("uri: no port for scheme %q", u.Scheme)
	}

	return strconv.Atoi(p)
}

// supportedLanguage reports whether tag parses as a BCP 47 language
// tag, used by route language-directory negotiation (Accept-Language).
func supportedLanguage(tag string) bool {
	_, err := language.Parse(tag)
	return err == nil
}
