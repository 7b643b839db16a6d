package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/siteanalyzer/backend/analyzer"
	"github.com/siteanalyzer/backend/api"
	"github.com/siteanalyzer/backend/auth"
	"github.com/siteanalyzer/backend/critique"
	"github.com/siteanalyzer/backend/logging"
	"github.com/siteanalyzer/backend/metrics"
	"github.com/siteanalyzer/backend/middleware"
	"github.com/siteanalyzer/backend/store"
)

const page = `<!DOCTYPE html>
<html>
<head><title>Plain page</title></head>
<body>
  <h1>Hello</h1>
  <img src="/a.png">
  <p>Some words here.</p>
</body>
</html>`

type fakeCritic struct{}

func (fakeCritic) Enabled() bool { return true }

func (fakeCritic) Critique(_ context.Context, url string, _ critique.Input) (*critique.Analysis, error) {
	return &critique.Analysis{URL: url, Recommendations: "ship it"}, nil
}

type fakeArchiver struct {
	mu   sync.Mutex
	keys []string
}

func (f *fakeArchiver) Archive(_ context.Context, id string, _ time.Time, _ any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, id)
	return "reports/" + id + ".json", nil
}

type harness struct {
	server   *api.Server
	router   *gin.Engine
	store    *store.Store
	archiver *fakeArchiver
	site     *httptest.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(page))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(site.Close)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	st, err := store.Open(context.Background(), store.Config{
		Driver: store.DriverSQLite,
		DSN:    fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano()),
	})
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })

	tokens, err := auth.NewTokenIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer() error = %v", err)
	}

	az := analyzer.New(analyzer.WithCritic(fakeCritic{}), analyzer.WithLogger(logging.Nop()))
	t.Cleanup(az.Shutdown)

	m := metrics.NewManager()
	archiver := &fakeArchiver{}
	srv := api.New(api.Deps{
		Analyzer:        az,
		Store:           st,
		Tokens:          tokens,
		Archiver:        archiver,
		Statistics:      logging.NewStatistics(t.TempDir(), false),
		Metrics:         m,
		Logger:          logging.Nop(),
		APILimiter:      middleware.NewRateLimiter("api", 600, 100, m),
		AnalysisLimiter: middleware.NewRateLimiter("analysis", 600, 100, m),
		Trial:           middleware.NewTrialGate(1, false),
	})
	return &harness{server: srv, router: srv.Router(), store: st, archiver: archiver, site: site}
}

func (h *harness) do(method, path string, body any, header map[string]string) (*httptest.ResponseRecorder, map[string]interface{}) {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	var out map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

// register creates an account and returns its bearer token.
func (h *harness) register(email string) string {
	_, body := h.do(http.MethodPost, "/api/auth/register", map[string]string{"email": email, "password": "hunter22"}, nil)
	token, _ := body["token"].(string)
	return token
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestHealthAndInfo(t *testing.T) {
	Convey("Given a running API", t, func() {
		h := newHarness(t)

		Convey("health answers ok", func() {
			w, body := h.do(http.MethodGet, "/api/health", nil, nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(body["status"], ShouldEqual, "ok")
		})

		Convey("plans are ordered by price with features as arrays", func() {
			w := httptest.NewRecorder()
			h.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/plans", nil))
			So(w.Code, ShouldEqual, http.StatusOK)

			var plans []store.Plan
			So(json.Unmarshal(w.Body.Bytes(), &plans), ShouldBeNil)
			So(len(plans), ShouldEqual, 4)
			So(plans[0].ID, ShouldEqual, "free")
			So(plans[3].ID, ShouldEqual, "enterprise")
			So(len(plans[1].Features), ShouldBeGreaterThan, 0)
		})

		Convey("statistics include the analyzer cache", func() {
			w, body := h.do(http.MethodGet, "/api/statistics", nil, nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(body, ShouldContainKey, "cache")
			So(body, ShouldContainKey, "totalRequests")
		})

		Convey("metrics are exposed", func() {
			h.do(http.MethodGet, "/api/health", nil, nil)
			w := httptest.NewRecorder()
			h.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "siteanalyzer_http_requests_total")
		})
	})
}

func TestAccounts(t *testing.T) {
	Convey("Given a running API", t, func() {
		h := newHarness(t)
		creds := map[string]string{"email": "Ada@Example.com", "password": "hunter22"}

		Convey("registration requires email and password", func() {
			w, body := h.do(http.MethodPost, "/api/auth/register", map[string]string{"email": "a@example.com"}, nil)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(body["error"], ShouldEqual, "Email and password are required")
		})

		Convey("a new account gets a token and three credits", func() {
			w, body := h.do(http.MethodPost, "/api/auth/register", creds, nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(body["token"], ShouldNotBeEmpty)

			user := body["user"].(map[string]interface{})
			So(user["email"], ShouldEqual, "ada@example.com")
			So(user["credits_remaining"], ShouldEqual, 3)
			So(user["tier"], ShouldEqual, "free")

			Convey("the same email cannot register twice", func() {
				w, body := h.do(http.MethodPost, "/api/auth/register", creds, nil)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(body["error"], ShouldEqual, "Email already exists")
			})

			Convey("login returns the API key", func() {
				w, body := h.do(http.MethodPost, "/api/auth/login", creds, nil)
				So(w.Code, ShouldEqual, http.StatusOK)
				user := body["user"].(map[string]interface{})
				So(user["api_key"], ShouldStartWith, "sk_")
			})

			Convey("a wrong password is rejected", func() {
				w, body := h.do(http.MethodPost, "/api/auth/login", map[string]string{"email": "ada@example.com", "password": "nope"}, nil)
				So(w.Code, ShouldEqual, http.StatusUnauthorized)
				So(body["error"], ShouldEqual, "Invalid credentials")
			})

			Convey("the profile is readable with the token", func() {
				w, body := h.do(http.MethodGet, "/api/user/profile", nil, bearer(body["token"].(string)))
				So(w.Code, ShouldEqual, http.StatusOK)
				So(body["email"], ShouldEqual, "ada@example.com")
				So(body, ShouldNotContainKey, "password_hash")
			})
		})

		Convey("unknown emails cannot log in", func() {
			w, _ := h.do(http.MethodPost, "/api/auth/login", creds, nil)
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("user routes need a token", func() {
			w, _ := h.do(http.MethodGet, "/api/user/history", nil, nil)
			So(w.Code, ShouldEqual, http.StatusUnauthorized)

			w, _ = h.do(http.MethodGet, "/api/user/history", nil, bearer("garbage"))
			So(w.Code, ShouldEqual, http.StatusForbidden)
		})
	})
}

func TestAnalyze(t *testing.T) {
	Convey("Given a registered user", t, func() {
		h := newHarness(t)
		token := h.register("grace@example.com")
		So(token, ShouldNotBeEmpty)

		Convey("a missing url is a bad request", func() {
			w, body := h.do(http.MethodPost, "/api/analyze", map[string]string{}, bearer(token))
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(body["error"], ShouldEqual, "URL is required")
		})

		Convey("an unreachable page fails the analysis", func() {
			w, body := h.do(http.MethodPost, "/api/analyze", map[string]string{"url": h.site.URL + "/missing"}, bearer(token))
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(body["error"], ShouldEqual, "Analysis failed")

			Convey("and costs nothing", func() {
				_, profile := h.do(http.MethodGet, "/api/user/profile", nil, bearer(token))
				So(profile["credits_remaining"], ShouldEqual, 3)
			})
		})

		Convey("an analysis spends a credit and is stored", func() {
			w, body := h.do(http.MethodPost, "/api/analyze", map[string]string{"url": h.site.URL}, bearer(token))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(body["success"], ShouldEqual, true)
			So(body["credits_remaining"], ShouldEqual, 2)
			So(body["aiAnalysis"], ShouldNotBeNil)
			So(body, ShouldNotContainKey, "limitedTrial")

			h.server.Wait()
			h.archiver.mu.Lock()
			So(h.archiver.keys, ShouldResemble, []string{body["id"].(string)})
			h.archiver.mu.Unlock()

			w, _ = h.do(http.MethodGet, "/api/user/history", nil, bearer(token))
			var history []store.AnalysisRecord
			So(json.Unmarshal(w.Body.Bytes(), &history), ShouldBeNil)
			So(len(history), ShouldEqual, 1)
			So(history[0].ID, ShouldEqual, body["id"])
			So(string(history[0].Report), ShouldNotContainSubstring, "credits_remaining")

			_, st := h.do(http.MethodGet, "/api/user/stats", nil, bearer(token))
			So(st["total_analyses"], ShouldEqual, 1)
			So(st["best_score"], ShouldEqual, body["overallScore"])
		})

		Convey("repeat analyses of one url are dated when they run", func() {
			_, first := h.do(http.MethodPost, "/api/analyze", map[string]string{"url": h.site.URL}, bearer(token))
			time.Sleep(10 * time.Millisecond)
			_, second := h.do(http.MethodPost, "/api/analyze", map[string]string{"url": h.site.URL}, bearer(token))
			So(second["timestamp"], ShouldNotEqual, first["timestamp"])

			w, _ := h.do(http.MethodGet, "/api/user/history", nil, bearer(token))
			var history []store.AnalysisRecord
			So(json.Unmarshal(w.Body.Bytes(), &history), ShouldBeNil)
			So(len(history), ShouldEqual, 2)
			So(history[0].ID, ShouldEqual, second["id"])
			So(history[1].ID, ShouldEqual, first["id"])
			So(history[0].CreatedAt.After(history[1].CreatedAt), ShouldBeTrue)
		})

		Convey("a user without credits is refused", func() {
			for i := 0; i < 3; i++ {
				w, _ := h.do(http.MethodPost, "/api/analyze", map[string]string{"url": h.site.URL}, bearer(token))
				So(w.Code, ShouldEqual, http.StatusOK)
			}
			w, body := h.do(http.MethodPost, "/api/analyze", map[string]string{"url": h.site.URL}, bearer(token))
			So(w.Code, ShouldEqual, http.StatusPaymentRequired)
			So(body["error"], ShouldEqual, "Insufficient credits")
		})
	})
}

func TestTrial(t *testing.T) {
	Convey("Given an anonymous visitor", t, func() {
		h := newHarness(t)

		Convey("the trial returns a limited report once", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/analyze/trial", strings.NewReader(`{"url":"`+h.site.URL+`"}`))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			h.router.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusOK)

			var report analyzer.Report
			So(json.Unmarshal(w.Body.Bytes(), &report), ShouldBeNil)
			So(report.LimitedTrial, ShouldBeTrue)
			So(len(report.Recommendations), ShouldBeLessThanOrEqualTo, 3)
			So(report.AIAnalysis, ShouldBeNil)
			So(report.CreditsRemaining, ShouldBeNil)

			cookies := w.Result().Cookies()
			So(len(cookies), ShouldEqual, 1)

			req = httptest.NewRequest(http.MethodPost, "/api/analyze/trial", strings.NewReader(`{"url":"`+h.site.URL+`"}`))
			req.Header.Set("Content-Type", "application/json")
			req.AddCookie(cookies[0])
			w = httptest.NewRecorder()
			h.router.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusPaymentRequired)
			So(w.Body.String(), ShouldContainSubstring, "Trial limit reached")
		})
	})
}

func TestDeveloperAPI(t *testing.T) {
	Convey("Given a user with an API key", t, func() {
		h := newHarness(t)
		h.register("linus@example.com")
		user, err := h.store.UserByEmail(context.Background(), "linus@example.com")
		So(err, ShouldBeNil)
		key := map[string]string{"X-API-Key": user.APIKey}

		Convey("requests without a key are refused", func() {
			w, body := h.do(http.MethodPost, "/api/v1/analyze", map[string]string{"url": h.site.URL}, nil)
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
			So(body["error"], ShouldEqual, "API key required")
		})

		Convey("successful and failed calls are both logged", func() {
			w, body := h.do(http.MethodPost, "/api/v1/analyze", map[string]string{"url": h.site.URL}, key)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(body["credits_remaining"], ShouldEqual, 2)

			w, _ = h.do(http.MethodPost, "/api/v1/analyze", map[string]string{"url": "ftp://nope"}, key)
			So(w.Code, ShouldEqual, http.StatusBadRequest)

			n, err := h.store.APICallCount(context.Background(), user.ID)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 2)
		})
	})
}
