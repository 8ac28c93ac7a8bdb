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

// Package route implements the route pattern language: a small
// template syntax compiled to a regular expression, plus the
// condition/update/target evaluation pipeline §4.4 describes. It is
// deliberately not a generic net/http-style mux: conditions can
// REROUTE (restart matching against a different route), which a plain
// prefix tree cannot express.
package route

import (
	"fmt"
	"regexp"
	"strings"
)

// Pattern is a compiled route pattern: the resulting regexp plus the
// ordered names of its capturing groups (positional, 1-indexed to
// match regexp.SubexpNames semantics).
type Pattern struct {
	Source string
	Regexp *regexp.Regexp
	Tokens []string
}

// CompilePattern converts the route pattern syntax to a regular
// expression:
//   - "{name}"        -> capturing `([^/]*)`, token "name"
//   - "{name=regex}"  -> capturing `(regex)`, token "name"
//   - "(~ text ~)"    -> non-capturing optional `(?:text)?`
//
// Everything else is treated as a regexp literal already (the pattern
// author is expected to escape literal regex metacharacters
// themselves, matching the teacher's own route-string conventions).
func CompilePattern(src string) (*Pattern, error) {
	var b strings.Builder
	var tokens []string

	i := 0
	for i < len(src) {
		switch {
		case strings.HasPrefix(src[i:], "(~"):
			end := strings.Index(src[i:], "~)")
			if end < 0 {
				return nil, fmt.Errorf("route: unterminated optional group in %q", src)
			}

			inner := strings.TrimSpace(src[i+2 : i+end])
			b.WriteString("(?:")
			b.WriteString(inner)
			b.WriteString(")?")
			i += end + 2

		case src[i] == '{':
			end := strings.IndexByte(src[i:], '}')
			if end < 0 {
				return nil, fmt.Errorf("route: unterminated token in %q", src)
			}

			body := src[i+1 : i+end]
			name := body
			inner := "[^/]*"

			if eq := strings.IndexByte(body, '='); eq >= 0 {
				name = body[:eq]
				inner = body[eq+1:]
			}

			if name == "" {
				return nil, fmt.Errorf("route: empty token name in %q", src)
			}

			tokens = append(tokens, name)
			b.WriteByte('(')
			b.WriteString(inner)
			b.WriteByte(')')
			i += end + 1

		default:
			b.WriteByte(src[i])
			i++
		}
	}

	full := "^" + b.String() + "$"

	re, err := regexp.Compile(full)
	if err != nil {
		return nil, fmt.Errorf("route: compile %q: %w", src, err)
	}

	return &Pattern{Source: src, Regexp: re, Tokens: tokens}, nil
}

// Match runs the pattern against path, returning the captured tokens by
// name, and whether it matched at all.
func (p *Pattern) Match(path string) (params map[string]string, ok bool) {
	m := p.Regexp.FindStringSubmatch(path)
	if m == nil {
		return nil, false
	}

	params = make(map[string]string, len(p.Tokens))

	names := p.Regexp.SubexpNames()
	_ = names // named groups unused: tokens tracked positionally below

	// p.Tokens is populated in the same left-to-right order the
	// capturing groups appear in the compiled regexp, so m[1:] lines
	// up with p.Tokens index-for-index.
	for idx, name := range p.Tokens {
		if idx+1 < len(m) {
			params[name] = m[idx+1]
		}
	}

	return params, true
}

// StartSegment extracts the first literal path segment of a pattern
// (the portion before the first token or optional group), used to
// bucket routes for the fast-reject/grouping optimization in §4.4 step 2.
func StartSegment(src string) string {
	end := len(src)

	if i := strings.IndexAny(src, "{("); i >= 0 {
		end = i
	}

	seg := src[:end]

	if strings.HasSuffix(seg, "/") {
		return strings.TrimSuffix(seg, "/")
	}

	if i := strings.LastIndexByte(seg, '/'); i >= 0 {
		return seg[:i]
	}

	return seg
}

// Expand renders a replacement template, substituting `$&` for the
// whole match, and back-tick/`'`-delimited references to everything
// before/after the match, mirroring the template back-reference
// syntax §4.4 specifies for target templates.
func Expand(template, whole, before, after string) string {
	out := template
	out = strings.ReplaceAll(out, "$&", whole)
	out = strings.ReplaceAll(out, "`", before)
	out = strings.ReplaceAll(out, "'", after)
	return out
}
