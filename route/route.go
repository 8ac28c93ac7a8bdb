package route

import (
	"fmt"
	"net/http"
	"strings"
)

// MAX_REWRITE bounds how many times the condition pipeline may REROUTE
// a single request before giving up, preventing a misconfigured loop
// of rerouting conditions from hanging a connection forever.
const MAX_REWRITE = 16

// Verdict is what a Condition's evaluation decided.
type Verdict uint8

const (
	Continue Verdict = iota
	Reject
	Reroute
)

// MatchContext is the minimal per-request surface a Condition, Update
// or Target needs. conn/rx/auth/session provide the concrete
// implementation; this package only depends on the interface so it
// stays below them in the dependency order.
type MatchContext interface {
	Method() string
	PathInfo() string
	Header(name string) string
	QueryParam(name string) string
	FormParam(name string) string
	SetFormParam(name, value string)
	IsSecure() bool
	IsAuthenticated() bool
	Ability(name string) bool
	FileExists(path string) bool
	IsDirectory(path string) bool
	// Reroute switches the active route to target for the next
	// matching attempt; used by the Reroute verdict.
	Reroute(target string)
}

// Condition is one entry of a route's condition list (§4.4 step 7):
// allowDeny, auth, directory, exists, match, secure, unauthorized.
type Condition interface {
	Name() string
	Eval(ctx MatchContext) Verdict
}

// Update applies a side effect after conditions pass but before the
// target executes (§4.4 step 8): param, cmd, lang.
type Update interface {
	Apply(ctx MatchContext)
}

// TargetKind is which action a route's target performs once matched.
type TargetKind uint8

const (
	TargetRun TargetKind = iota
	TargetRedirect
	TargetWrite
	TargetClose
)

// Target is a route's terminal action.
type Target struct {
	Kind     TargetKind
	Template string
	Status   int
	Body     []byte
}

// Route is an immutable-after-finalize request matcher and action.
// Copy-on-write inheritance (a child route overriding only some
// fields) is modeled by Clone + targeted field assignment, since Go has
// no native prototype inheritance.
type Route struct {
	Name    string
	Prefix  string
	Pattern *Pattern
	Methods map[string]bool

	RequiredAbilities []string
	Conditions        []Condition
	Updates           []Update
	Target            Target

	Handler string
	Filters []string

	MimeTypes     map[string]string
	ErrorDocument map[int]string

	ResponseHeaders map[string][]string // add/set semantics resolved by caller
	SessionCookie   string

	finalized bool
}

// Clone returns a shallow copy suitable for a child route to further
// customize before Finalize; slice/map fields are shared until the
// child explicitly replaces them (copy-on-write).
func (r *Route) Clone() *Route {
	c := *r
	c.finalized = false
	return &c
}

// Finalize marks the route as built and returns it. The flag is not
// consulted anywhere: the route's fields stay assignable afterwards.
func (r *Route) Finalize() *Route {
	r.finalized = true
	return r
}

// AllowsMethod reports whether m is permitted by this route; "*"
// permits everything, and HEAD is always accepted when GET is.
func (r *Route) AllowsMethod(m string) bool {
	m = strings.ToUpper(m)

	if r.Methods == nil || r.Methods["*"] {
		return true
	}

	if r.Methods[m] {
		return true
	}

	if m == http.MethodHead && r.Methods[http.MethodGet] {
		return true
	}

	return false
}

// stripped returns pathInfo with r.Prefix removed, or false if it
// doesn't start with the prefix at all (§4.4 step 1).
func (r *Route) stripped(pathInfo string) (string, bool) {
	if r.Prefix == "" {
		return pathInfo, true
	}

	if !strings.HasPrefix(pathInfo, r.Prefix) {
		return "", false
	}

	return pathInfo[len(r.Prefix):], true
}

// evalConditions evaluates r.Conditions in slice order; it does not
// reorder them by category, so the category order of §4.4 step 7 is
// whatever order the route's builder put them in.
func (r *Route) evalConditions(ctx MatchContext) Verdict {
	for _, c := range r.Conditions {
		switch c.Eval(ctx) {
		case Reject:
			return Reject
		case Reroute:
			return Reroute
		}
	}

	return Continue
}

// MatchResult is a successfully matched route plus its bound params.
type MatchResult struct {
	Route  *Route
	Params map[string]string
}

// Router holds an ordered route list plus the startSegment grouping
// index used to fast-reject non-matching groups (§4.4 step 2, "already
// present in the source and worth preserving" per the teacher's own
// performance notes).
type Router struct {
	routes  []*Route
	groups  map[string][]*Route
	byName  map[string]*Route
	defRoute *Route
}

// NewRouter builds an empty Router.
func NewRouter() *Router {
	return &Router{groups: make(map[string][]*Route), byName: make(map[string]*Route)}
}

// Add registers a route. The route with an empty pattern/prefix (the
// catch-all) is kept aside as the default, tried only after every
// other route's group fails to match, per "default route last" in the
// Host data model.
func (rt *Router) Add(r *Route) error {
	if r.Name == "" {
		return fmt.Errorf("route: name required")
	}

	if _, dup := rt.byName[r.Name]; dup {
		return fmt.Errorf("route: duplicate name %q", r.Name)
	}

	rt.byName[r.Name] = r

	if r.Pattern == nil {
		rt.defRoute = r
		return nil
	}

	seg := StartSegment(r.Pattern.Source)
	rt.groups[seg] = append(rt.groups[seg], r)
	rt.routes = append(rt.routes, r)

	return nil
}

// Get looks up a route by name (used by `redirect`/`run` targets that
// reference another route).
func (rt *Router) Get(name string) (*Route, bool) {
	r, ok := rt.byName[name]
	return r, ok
}

// Match runs the full algorithm of §4.4 against ctx: prefix-strip,
// startSegment fast reject, pattern match, method check, and the
// condition pipeline, restarting on REROUTE up to MAX_REWRITE times.
func (rt *Router) Match(ctx MatchContext) (*MatchResult, error) {
	path := ctx.PathInfo()

	for attempt := 0; attempt < MAX_REWRITE; attempt++ {
		res, rerouted, err := rt.matchOnce(ctx, path)
		if err != nil {
			return nil, err
		}

		if !rerouted {
			return res, nil
		}

		path = ctx.PathInfo()
	}

	return nil, fmt.Errorf("route: exceeded MAX_REWRITE (%d) reroutes", MAX_REWRITE)
}

func (rt *Router) matchOnce(ctx MatchContext, path string) (res *MatchResult, rerouted bool, err error) {
	seg := StartSegment(path)

	candidates := rt.groups[seg]
	if len(candidates) == 0 {
		// fall through to a linear scan: a request path's literal
		// prefix need not equal a route's StartSegment token form
		// (e.g. a pattern "{name}" at the root has segment ""), so an
		// empty-group lookup does not by itself mean "no route can
		// match" — only the per-route prefix/pattern check decides.
		candidates = rt.routes
	}

	for _, r := range candidates {
		stripped, ok := r.stripped(path)
		if !ok {
			continue
		}

		params, ok := r.Pattern.Match(stripped)
		if !ok {
			continue
		}

		if !r.AllowsMethod(ctx.Method()) {
			continue
		}

		missingAbility := false
		for _, ab := range r.RequiredAbilities {
			if !ctx.Ability(ab) {
				missingAbility = true
				break
			}
		}
		if missingAbility {
			continue
		}

		switch r.evalConditions(ctx) {
		case Reject:
			continue
		case Reroute:
			return nil, true, nil
		}

		for _, u := range r.Updates {
			u.Apply(ctx)
		}

		return &MatchResult{Route: r, Params: params}, false, nil
	}

	if rt.defRoute != nil {
		return &MatchResult{Route: rt.defRoute, Params: map[string]string{}}, false, nil
	}

	return nil, false, fmt.Errorf("route: no route matched %q", path)
}
