package services

import (
	"net/http"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"goa.design/goa/v3/eval"
	"goa.design/goa/v3/expr"

	_ "grantdesk/api/design"
	"grantdesk/internal/chat"
	"grantdesk/internal/docstore"
)

type routeRecorder struct {
	routes []string
}

func (r *routeRecorder) Handle(method, pattern string, _ http.HandlerFunc) {
	r.routes = append(r.routes, method+" "+pattern)
}

func (r *routeRecorder) Vars(*http.Request) map[string]string { return nil }

// The design document is not code-generated; it has to describe exactly the
// routes the hand-mounted handlers serve.
func TestMountedRoutesMatchDesign(t *testing.T) {
	require.NoError(t, eval.RunDSL())

	var designed []string
	for _, svc := range expr.Root.API.HTTP.Services {
		for _, endpoint := range svc.HTTPEndpoints {
			for _, route := range endpoint.Routes {
				for _, path := range route.FullPaths() {
					designed = append(designed, route.Method+" "+path)
				}
			}
		}
	}

	rec := &routeRecorder{}
	auth := NewAuthService(nil)
	svc := chat.NewService(docstore.NewMemoryStore())
	auth.Mount(rec)
	NewInquiryHandlers(svc, auth).Mount(rec)
	NewLiveFeeds(svc, auth, []string{"*"}).Mount(rec)
	rec.Handle(http.MethodGet, "/health", HealthHandler())

	sort.Strings(designed)
	sort.Strings(rec.routes)
	assert.Equal(t, designed, rec.routes)
}
