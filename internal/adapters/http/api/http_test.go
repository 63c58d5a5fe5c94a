package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/rebooked/apsmatch/internal/adapters/http/api"
	service "github.com/rebooked/apsmatch/internal/app"
	"github.com/rebooked/apsmatch/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

const learnerJSON = `[
	{"name": "Maths", "mark": 75},
	{"name": "English HL", "mark": 80},
	{"name": "Physical Science", "mark": 70},
	{"name": "Life Sciences", "mark": 65},
	{"name": "Geography", "mark": 72},
	{"name": "Accounting", "mark": 78},
	{"name": "LO", "mark": 85}
]`

func newMux(opts ...api.Option) (*http.ServeMux, *service.Service) {
	svc := service.New(service.WithWorkerCount(2), service.WithQueueSize(10))
	mux := http.NewServeMux()
	api.NewServer(svc, opts...).Register(context.Background(), mux)
	return mux, svc
}

func do(mux http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decodeBody(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
	return out
}

func TestSubjectsEndpoints(t *testing.T) {
	Convey("Given the API over a service", t, func() {
		mux, _ := newMux()

		Convey("GET /subjects/normalize resolves aliases", func() {
			w := do(mux, http.MethodGet, "/subjects/normalize?name=maths+lit", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decodeBody(w)
			So(body["normalized"], ShouldEqual, "Mathematical Literacy")
			So(body["known"], ShouldEqual, true)
		})

		Convey("GET /subjects/normalize without a name is a bad request", func() {
			w := do(mux, http.MethodGet, "/subjects/normalize", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decodeBody(w)["code"], ShouldEqual, "bad_request")
		})

		Convey("GET /subjects lists the alias table", func() {
			w := do(mux, http.MethodGet, "/subjects", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(len(decodeBody(w)["subjects"].([]any)), ShouldBeGreaterThan, 10)
		})

		Convey("POST /subjects/match returns the match result", func() {
			w := do(mux, http.MethodPost, "/subjects/match",
				`{"user_subject": "Mathematics", "required_subject": "Mathematical Literacy"}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decodeBody(w)
			So(body["is_match"], ShouldEqual, false)
			So(body["confidence"], ShouldEqual, float64(100))
		})

		Convey("POST /subjects/match with a missing field lists it", func() {
			w := do(mux, http.MethodPost, "/subjects/match", `{"user_subject": "Mathematics"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decodeBody(w)["message"], ShouldContainSubstring, "required_subject is required")
		})

		Convey("POST /subjects/level reports out-of-scale levels as data", func() {
			w := do(mux, http.MethodPost, "/subjects/level",
				`{"user_level": 9, "required_level": 5, "subject": "Mathematics"}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decodeBody(w)
			So(body["is_valid"], ShouldEqual, false)
			So(body["outcome"], ShouldEqual, "invalid")
			So(body["reason"], ShouldContainSubstring, "outside the 1-7 scale")
		})

		Convey("Wrong methods get a JSON 405", func() {
			w := do(mux, http.MethodGet, "/subjects/match", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
			So(w.Header().Get("Allow"), ShouldEqual, http.MethodPost)
			So(decodeBody(w)["code"], ShouldEqual, "method_not_allowed")
		})
	})
}

func TestEligibilityEndpoints(t *testing.T) {
	Convey("Given the API over a service", t, func() {
		mux, _ := newMux()

		Convey("POST /eligibility checks an ad-hoc requirement list", func() {
			w := do(mux, http.MethodPost, "/eligibility", `{
				"user_subjects": [
					{"name": "Mathematics", "level": 6},
					{"name": "English Home Language", "level": 5}
				],
				"required_subjects": [
					{"name": "Mathematics", "level": 5, "is_required": true},
					{"name": "English", "level": 4, "is_required": true},
					{"name": "Physical Sciences", "level": 4, "is_required": true}
				]
			}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decodeBody(w)
			So(body["is_eligible"], ShouldEqual, false)
			So(body["required_count"], ShouldEqual, float64(3))
			So(body["details"], ShouldContainSubstring, "Missing: Physical Sciences")
		})

		Convey("POST /aps scores marks and leaves Life Orientation out", func() {
			w := do(mux, http.MethodPost, "/aps", `{"subjects": `+learnerJSON+`}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decodeBody(w)["total"], ShouldEqual, float64(36))
		})

		Convey("POST /aps rejects out-of-range marks", func() {
			w := do(mux, http.MethodPost, "/aps", `{"subjects": [{"name": "Mathematics", "mark": 101}]}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decodeBody(w)["message"], ShouldContainSubstring, "subjects[0].mark must be at most 100")
		})

		Convey("POST /aps rejects a missing mark", func() {
			w := do(mux, http.MethodPost, "/aps", `{"subjects": [{"name": "Mathematics"}]}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decodeBody(w)["message"], ShouldContainSubstring, "subjects[0].mark is required")
		})

		Convey("POST /aps rejects duplicate subjects", func() {
			w := do(mux, http.MethodPost, "/aps",
				`{"subjects": [{"name": "Maths", "mark": 60}, {"name": "Mathematics", "mark": 70}]}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("POST /aps rejects malformed JSON", func() {
			w := do(mux, http.MethodPost, "/aps", `{"subjects": [`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decodeBody(w)["message"], ShouldContainSubstring, "invalid JSON body")
		})
	})
}

func TestProgramsEndpoints(t *testing.T) {
	Convey("Given the API over a service", t, func() {
		mux, svc := newMux()

		Convey("GET /programs lists the catalog", func() {
			w := do(mux, http.MethodGet, "/programs", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decodeBody(w)["count"], ShouldEqual, float64(svc.Catalog().Len()))
		})

		Convey("GET /programs/{id} returns one program", func() {
			w := do(mux, http.MethodGet, "/programs/sun-mbchb", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decodeBody(w)["min_aps"], ShouldEqual, float64(40))
		})

		Convey("GET /programs/{id} for an unknown id is 404", func() {
			w := do(mux, http.MethodGet, "/programs/nope", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(decodeBody(w)["code"], ShouldEqual, "not_found")
		})

		Convey("POST /programs/evaluate ranks the requested programs", func() {
			w := do(mux, http.MethodPost, "/programs/evaluate", `{
				"subjects": `+learnerJSON+`,
				"program_ids": ["sun-mbchb", "up-beng-civil", "uct-bsc-computer-science"]
			}`)
			So(w.Code, ShouldEqual, http.StatusOK)

			var resp struct {
				APS struct {
					Total int `json:"total"`
				} `json:"aps"`
				Programs []struct {
					Rank      int    `json:"rank"`
					ProgramID string `json:"program_id"`
					Eligible  bool   `json:"eligible"`
				} `json:"programs"`
			}
			So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
			So(resp.APS.Total, ShouldEqual, 36)
			So(len(resp.Programs), ShouldEqual, 3)
			So(resp.Programs[0].ProgramID, ShouldEqual, "up-beng-civil")
			So(resp.Programs[2].ProgramID, ShouldEqual, "sun-mbchb")
			So(resp.Programs[2].Eligible, ShouldBeFalse)
		})

		Convey("POST /programs/evaluate with an unknown program is 404", func() {
			w := do(mux, http.MethodPost, "/programs/evaluate",
				`{"subjects": `+learnerJSON+`, "program_ids": ["nope"]}`)
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestEvaluationsEndpoints(t *testing.T) {
	Convey("Given the API over a started service", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		mux, svc := newMux()
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		Convey("POST /evaluations accepts the job and GET returns its result", func() {
			w := do(mux, http.MethodPost, "/evaluations",
				`{"request_id": "req-42", "subjects": `+learnerJSON+`, "program_ids": ["uct-bsc-computer-science"]}`)
			So(w.Code, ShouldEqual, http.StatusAccepted)
			body := decodeBody(w)
			id, _ := body["id"].(string)
			So(id, ShouldNotBeEmpty)
			So(body["status"], ShouldEqual, "pending")
			So(w.Header().Get("Location"), ShouldEqual, "/evaluations/"+id)

			var status any
			for i := 0; i < 200 && status != "completed"; i++ {
				time.Sleep(10 * time.Millisecond)
				status = decodeBody(do(mux, http.MethodGet, "/evaluations/"+id, ""))["status"]
			}
			So(status, ShouldEqual, "completed")

			Convey("And a repeated request_id answers 200 with the same id", func() {
				again := do(mux, http.MethodPost, "/evaluations",
					`{"request_id": "req-42", "subjects": `+learnerJSON+`}`)
				So(again.Code, ShouldEqual, http.StatusOK)
				body := decodeBody(again)
				So(body["id"], ShouldEqual, id)
				So(body["duplicate"], ShouldEqual, true)
			})
		})

		Convey("GET /evaluations/{id} for an unknown id is 404", func() {
			w := do(mux, http.MethodGet, "/evaluations/unknown", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("GET /stats reports the running service", func() {
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decodeBody(w)["started"], ShouldEqual, true)
		})
	})
}

func TestHealthAndRateLimit(t *testing.T) {
	Convey("Given the API with a tight rate limit", t, func() {
		mux, _ := newMux(api.WithRateLimiter(api.NewRateLimiter(1, 2)))

		Convey("GET /healthz serves Prometheus metrics", func() {
			_ = do(mux, http.MethodGet, "/programs", "")
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "apsmatch_service_http_requests_total")
		})

		Convey("Requests beyond the burst are rejected with 429", func() {
			codes := make([]int, 0, 3)
			for i := 0; i < 3; i++ {
				codes = append(codes, do(mux, http.MethodGet, "/programs", "").Code)
			}
			So(codes[0], ShouldEqual, http.StatusOK)
			So(codes[1], ShouldEqual, http.StatusOK)
			So(codes[2], ShouldEqual, http.StatusTooManyRequests)
		})

		Convey("Clients are limited separately by connection address", func() {
			for i := 0; i < 3; i++ {
				_ = do(mux, http.MethodGet, "/programs", "")
			}
			req := httptest.NewRequest(http.MethodGet, "/programs", http.NoBody)
			req.RemoteAddr = "198.51.100.4:40000"
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Forwarding headers do not open a fresh bucket", func() {
			codes := make([]int, 0, 3)
			for i := 0; i < 3; i++ {
				req := httptest.NewRequest(http.MethodGet, "/programs", http.NoBody)
				req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
				req.Header.Set("X-Real-IP", fmt.Sprintf("198.51.100.%d", i))
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, req)
				codes = append(codes, w.Code)
			}
			So(codes[2], ShouldEqual, http.StatusTooManyRequests)
		})

		Convey("The health endpoint is never limited", func() {
			for i := 0; i < 5; i++ {
				So(do(mux, http.MethodGet, "/healthz", "").Code, ShouldEqual, http.StatusOK)
			}
		})
	})

	Convey("Given the API behind a trusted proxy", t, func() {
		mux, _ := newMux(api.WithRateLimiter(api.NewRateLimiter(1, 2, api.WithTrustedProxy(true))))

		Convey("Clients are keyed by the first forwarded hop", func() {
			for i := 0; i < 3; i++ {
				_ = do(mux, http.MethodGet, "/programs", "")
			}
			req := httptest.NewRequest(http.MethodGet, "/programs", http.NoBody)
			req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusOK)
		})
	})

	Convey("Given a non-positive rate", t, func() {
		Convey("Then no limiter is built", func() {
			So(api.NewRateLimiter(0, 10), ShouldBeNil)
		})
	})
}
