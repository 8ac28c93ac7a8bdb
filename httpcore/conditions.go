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

package httpcore

import "github.com/sabouaram/httpcore/route"

// authCondition implements route's "unauthorized" category (§4.4 step
// 7): reject unless the connection already carries an authenticated
// session. conn.Conn answers IsAuthenticated() via Hooks.IsAuthenticated,
// which httpcore wires to the configured auth.Authenticator.
type authCondition struct{}

func (authCondition) Name() string { return "auth" }

func (authCondition) Eval(ctx route.MatchContext) route.Verdict {
	if ctx.IsAuthenticated() {
		return route.Continue
	}
	return route.Reject
}

// secureCondition implements the "secure" category: reject plaintext
// requests to a route that requires TLS.
type secureCondition struct{}

func (secureCondition) Name() string { return "secure" }

func (secureCondition) Eval(ctx route.MatchContext) route.Verdict {
	if ctx.IsSecure() {
		return route.Continue
	}
	return route.Reject
}

// buildConditions turns the plain RouteConfig auth fields into the
// route.Condition list route.Router.Match evaluates, in the §4.4 step 7
// order: secure, then unauthorized. allowDeny (RequiredAbilities) is
// already enforced natively by Router.matchOnce, so it needs no
// Condition here.
func buildConditions(rc RouteConfig) []route.Condition {
	var conds []route.Condition

	if rc.RequireSecure {
		conds = append(conds, secureCondition{})
	}
	if rc.RequireAuth {
		conds = append(conds, authCondition{})
	}

	return conds
}
