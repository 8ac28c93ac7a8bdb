package auth

import "github.com/sabouaram/httpcore/route"

// fakeMatchContext is a minimal route.MatchContext for exercising
// Type.ParseAuth without pulling in the conn package.
type fakeMatchContext struct {
	method  string
	headers map[string]string
	form    map[string]string
}

func newFakeMatchContext() *fakeMatchContext {
	return &fakeMatchContext{
		method:  "GET",
		headers: make(map[string]string),
		form:    make(map[string]string),
	}
}

func (f *fakeMatchContext) Method() string                  { return f.method }
func (f *fakeMatchContext) PathInfo() string                { return "/" }
func (f *fakeMatchContext) Header(name string) string       { return f.headers[name] }
func (f *fakeMatchContext) QueryParam(string) string         { return "" }
func (f *fakeMatchContext) FormParam(name string) string    { return f.form[name] }
func (f *fakeMatchContext) SetFormParam(name, value string) { f.form[name] = value }
func (f *fakeMatchContext) IsSecure() bool                  { return false }
func (f *fakeMatchContext) IsAuthenticated() bool           { return false }
func (f *fakeMatchContext) Ability(string) bool              { return false }
func (f *fakeMatchContext) FileExists(string) bool           { return false }
func (f *fakeMatchContext) IsDirectory(string) bool           { return false }
func (f *fakeMatchContext) Reroute(string)                    {}

var _ route.MatchContext = (*fakeMatchContext)(nil)
