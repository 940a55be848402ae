package embedding_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/okian/eventrank/internal/adapters/embedding"
	. "github.com/smartystreets/goconvey/convey"
)

const testToken = "hf_supersecret_token"

func vectorJSON(n int, nested bool) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("%g", float64(i%7)/10)
	}
	flat := "[" + strings.Join(parts, ",") + "]"
	if nested {
		return "[" + flat + "]"
	}
	return flat
}

type recordedRequest struct {
	auth   string
	inputs string
}

// newServer answers with the given status/body sequence, repeating the last
// entry once the sequence is exhausted.
func newServer(calls *atomic.Int32, last *atomic.Value, statuses []int, bodies []string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		i := int(calls.Add(1)) - 1
		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		last.Store(recordedRequest{auth: r.Header.Get("Authorization"), inputs: payload["inputs"]})

		if i >= len(statuses) {
			i = len(statuses) - 1
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statuses[i])
		_, _ = w.Write([]byte(bodies[i]))
	}))
}

func fastRetry() embedding.Option {
	return embedding.WithRetry(2, time.Millisecond, 4*time.Millisecond)
}

func TestClientSuccess(t *testing.T) {
	Convey("Given an embedding endpoint returning a flat vector", t, func() {
		var calls atomic.Int32
		var last atomic.Value
		srv := newServer(&calls, &last, []int{200}, []string{vectorJSON(384, false)})
		defer srv.Close()

		c := embedding.NewClient(srv.URL, testToken, fastRetry())

		Convey("When text is embedded", func() {
			vec, err := c.Embed(context.Background(), "  AI, Robotics  ")

			Convey("Then the request should carry the bearer token and trimmed inputs", func() {
				So(err, ShouldBeNil)
				So(vec, ShouldHaveLength, 384)
				So(vec[1], ShouldAlmostEqual, 0.1, 1e-6)
				req := last.Load().(recordedRequest)
				So(req.auth, ShouldEqual, "Bearer "+testToken)
				So(req.inputs, ShouldEqual, "AI, Robotics")
				So(calls.Load(), ShouldEqual, 1)
			})
		})
	})

	Convey("Given an endpoint returning a singly nested vector", t, func() {
		var calls atomic.Int32
		var last atomic.Value
		srv := newServer(&calls, &last, []int{200}, []string{vectorJSON(384, true)})
		defer srv.Close()

		vec, err := embedding.NewClient(srv.URL, testToken).Embed(context.Background(), "x")

		Convey("Then it should be flattened", func() {
			So(err, ShouldBeNil)
			So(vec, ShouldHaveLength, 384)
		})
	})

	Convey("Given input longer than the limit", t, func() {
		var calls atomic.Int32
		var last atomic.Value
		srv := newServer(&calls, &last, []int{200}, []string{vectorJSON(384, false)})
		defer srv.Close()

		c := embedding.NewClient(srv.URL, testToken, embedding.WithMaxInputChars(10))
		_, err := c.Embed(context.Background(), strings.Repeat("é", 25))

		Convey("Then it should be truncated at a rune boundary", func() {
			So(err, ShouldBeNil)
			inputs := last.Load().(recordedRequest).inputs
			So(utf8.RuneCountInString(inputs), ShouldEqual, 10)
			So(utf8.ValidString(inputs), ShouldBeTrue)
		})
	})
}

func TestClientErrors(t *testing.T) {
	Convey("Given a client", t, func() {
		ctx := context.Background()

		Convey("When the input is blank", func() {
			var calls atomic.Int32
			var last atomic.Value
			srv := newServer(&calls, &last, []int{200}, []string{vectorJSON(384, false)})
			defer srv.Close()

			_, err := embedding.NewClient(srv.URL, testToken).Embed(ctx, "   ")

			Convey("Then it should fail before any network call", func() {
				So(errors.Is(err, embedding.ErrEmptyInput), ShouldBeTrue)
				So(calls.Load(), ShouldEqual, 0)
			})
		})

		Convey("When no token is configured", func() {
			var calls atomic.Int32
			var last atomic.Value
			srv := newServer(&calls, &last, []int{200}, []string{vectorJSON(384, false)})
			defer srv.Close()

			_, err := embedding.NewClient(srv.URL, "").Embed(ctx, "hello")

			Convey("Then a config error is returned without a network call", func() {
				So(errors.Is(err, embedding.ErrConfig), ShouldBeTrue)
				So(errors.Is(err, embedding.ErrMissingToken), ShouldBeTrue)
				So(calls.Load(), ShouldEqual, 0)
			})
		})

		Convey("When the service rejects the credentials", func() {
			var calls atomic.Int32
			var last atomic.Value
			body := `{"error":"Invalid credentials in Authorization header: Bearer ` + testToken + `"}`
			srv := newServer(&calls, &last, []int{401}, []string{body})
			defer srv.Close()

			_, err := embedding.NewClient(srv.URL, testToken, fastRetry()).Embed(ctx, "hello")

			Convey("Then it is a config error, not retried, and the token is redacted", func() {
				So(errors.Is(err, embedding.ErrConfig), ShouldBeTrue)
				So(errors.Is(err, embedding.ErrTransient), ShouldBeFalse)
				So(calls.Load(), ShouldEqual, 1)
				So(err.Error(), ShouldNotContainSubstring, testToken)
				So(err.Error(), ShouldContainSubstring, "401")
				var e *embedding.Error
				So(errors.As(err, &e), ShouldBeTrue)
				So(e.StatusCode, ShouldEqual, 401)
			})
		})

		Convey("When the service is temporarily unavailable then recovers", func() {
			var calls atomic.Int32
			var last atomic.Value
			srv := newServer(&calls, &last,
				[]int{503, 429, 200},
				[]string{`{"error":"Model is loading"}`, `{"error":"rate limited"}`, vectorJSON(384, false)})
			defer srv.Close()

			vec, err := embedding.NewClient(srv.URL, testToken, fastRetry()).Embed(ctx, "hello")

			Convey("Then it should retry and succeed", func() {
				So(err, ShouldBeNil)
				So(vec, ShouldHaveLength, 384)
				So(calls.Load(), ShouldEqual, 3)
			})
		})

		Convey("When the service stays unavailable", func() {
			var calls atomic.Int32
			var last atomic.Value
			srv := newServer(&calls, &last, []int{502}, []string{"bad gateway"})
			defer srv.Close()

			_, err := embedding.NewClient(srv.URL, testToken, fastRetry()).Embed(ctx, "hello")

			Convey("Then it should give up after the bounded retries", func() {
				So(errors.Is(err, embedding.ErrTransient), ShouldBeTrue)
				So(embedding.KindOf(err), ShouldEqual, embedding.KindTransient)
				So(calls.Load(), ShouldEqual, 3)
			})
		})

		Convey("When the service answers with a client or server error status", func() {
			cases := []struct {
				status int
				kind   embedding.Kind
				hits   int32
			}{
				{http.StatusUnauthorized, embedding.KindConfig, 1},
				{http.StatusForbidden, embedding.KindConfig, 1},
				{http.StatusNotFound, embedding.KindConfig, 1},
				{http.StatusMethodNotAllowed, embedding.KindConfig, 1},
				{http.StatusBadRequest, embedding.KindFormat, 1},
				{http.StatusRequestEntityTooLarge, embedding.KindFormat, 1},
				{http.StatusUnprocessableEntity, embedding.KindFormat, 1},
				{http.StatusTooManyRequests, embedding.KindTransient, 3},
				{http.StatusInternalServerError, embedding.KindTransient, 3},
				{http.StatusBadGateway, embedding.KindTransient, 3},
				{http.StatusServiceUnavailable, embedding.KindTransient, 3},
			}
			for _, tc := range cases {
				var calls atomic.Int32
				var last atomic.Value
				srv := newServer(&calls, &last, []int{tc.status}, []string{`{"error":"rejected"}`})

				_, err := embedding.NewClient(srv.URL, testToken, fastRetry()).Embed(ctx, "hello")
				srv.Close()

				Convey(fmt.Sprintf("Then status %d should be %s after %d request(s)", tc.status, tc.kind, tc.hits), func() {
					So(err, ShouldNotBeNil)
					So(embedding.KindOf(err), ShouldEqual, tc.kind)
					So(calls.Load(), ShouldEqual, tc.hits)
					var e *embedding.Error
					So(errors.As(err, &e), ShouldBeTrue)
					So(e.StatusCode, ShouldEqual, tc.status)
				})
			}
		})

		Convey("When the payload is malformed", func() {
			cases := map[string]string{
				"wrong dimension": vectorJSON(10, false),
				"non numeric":     `["a","b"]`,
				"object":          `{"embedding":[1,2,3]}`,
				"doubly nested":   `[[[0.1,0.2]]]`,
				"not json":        `<html>`,
			}
			for name, body := range cases {
				var calls atomic.Int32
				var last atomic.Value
				srv := newServer(&calls, &last, []int{200}, []string{body})

				_, err := embedding.NewClient(srv.URL, testToken, fastRetry()).Embed(ctx, "hello")
				srv.Close()

				Convey("Then "+name+" should be a format error that is not retried", func() {
					So(errors.Is(err, embedding.ErrFormat), ShouldBeTrue)
					So(calls.Load(), ShouldEqual, 1)
				})
			}
		})

		Convey("When the wrong dimension is returned", func() {
			var calls atomic.Int32
			var last atomic.Value
			srv := newServer(&calls, &last, []int{200}, []string{vectorJSON(383, true)})
			defer srv.Close()

			_, err := embedding.NewClient(srv.URL, testToken).Embed(ctx, "hello")

			Convey("Then the cause should name the dimension", func() {
				So(errors.Is(err, embedding.ErrInvalidDimension), ShouldBeTrue)
			})
		})

		Convey("When the caller's context is canceled during backoff", func() {
			var calls atomic.Int32
			var last atomic.Value
			srv := newServer(&calls, &last, []int{503}, []string{"{}"})
			defer srv.Close()

			cctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
			defer cancel()
			c := embedding.NewClient(srv.URL, testToken, embedding.WithRetry(5, time.Second, time.Second))
			_, err := c.Embed(cctx, "hello")

			Convey("Then it should stop early with a transient error", func() {
				So(errors.Is(err, embedding.ErrTransient), ShouldBeTrue)
				So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
				So(calls.Load(), ShouldEqual, 1)
			})
		})

		Convey("When the endpoint is unreachable", func() {
			srv := httptest.NewServer(http.NotFoundHandler())
			url := srv.URL
			srv.Close()

			_, err := embedding.NewClient(url, testToken, fastRetry()).Embed(ctx, "hello")

			Convey("Then it should be transient", func() {
				So(errors.Is(err, embedding.ErrTransient), ShouldBeTrue)
			})
		})
	})
}

func TestEmbedderFunc(t *testing.T) {
	Convey("Given a function adapted to Embedder", t, func() {
		var e embedding.Embedder = embedding.EmbedderFunc(func(_ context.Context, text string) ([]float32, error) {
			return []float32{float32(len(text))}, nil
		})

		Convey("Then Embed should delegate to it", func() {
			v, err := e.Embed(context.Background(), "abc")
			So(err, ShouldBeNil)
			So(v, ShouldResemble, []float32{3})
		})
	})
}
