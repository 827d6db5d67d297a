package webhook_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/frahmantamala/audit-management/internal/notification"
	"github.com/frahmantamala/audit-management/internal/notification/webhook"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestWebhook(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Webhook Suite")
}

var _ = Describe("Dispatcher", func() {
	var (
		server   *httptest.Server
		calls    atomic.Int32
		statuses []int
		received webhook.Event
		sig      string
		lastBody []byte
	)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	newDispatcher := func(retries int) *webhook.Dispatcher {
		return webhook.NewDispatcher(webhook.Config{
			URL:     server.URL,
			Secret:  "hook-secret",
			Timeout: time.Second,
			Retries: retries,
			Backoff: time.Millisecond,
		}, logger)
	}

	BeforeEach(func() {
		calls.Store(0)
		statuses = []int{http.StatusNoContent}
		received = webhook.Event{}
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n := int(calls.Add(1)) - 1
			lastBody, _ = io.ReadAll(r.Body)
			sig = r.Header.Get(webhook.SignatureHeader)
			_ = json.Unmarshal(lastBody, &received)
			if n >= len(statuses) {
				n = len(statuses) - 1
			}
			w.WriteHeader(statuses[n])
		}))
		DeferCleanup(server.Close)
	})

	It("posts a signed event", func() {
		err := newDispatcher(0).Emit(context.Background(), 7, notification.EventNew, map[string]string{"title": "Finding committed"})
		Expect(err).NotTo(HaveOccurred())
		Expect(calls.Load()).To(Equal(int32(1)))
		Expect(received.Event).To(Equal(notification.EventNew))
		Expect(received.UserID).To(Equal(int64(7)))
		Expect(received.Payload).To(HaveKeyWithValue("title", "Finding committed"))
		Expect(sig).To(Equal(webhook.Sign("hook-secret", lastBody)))
		Expect(sig).To(HaveLen(64))
	})

	It("retries server errors until one succeeds", func() {
		statuses = []int{http.StatusBadGateway, http.StatusTooManyRequests, http.StatusOK}
		Expect(newDispatcher(2).Emit(context.Background(), 7, notification.EventNew, nil)).To(Succeed())
		Expect(calls.Load()).To(Equal(int32(3)))
	})

	It("gives up after the retry budget", func() {
		statuses = []int{http.StatusServiceUnavailable}
		err := newDispatcher(1).Emit(context.Background(), 7, notification.EventNew, nil)
		Expect(err).To(MatchError(ContainSubstring("status 503")))
		Expect(calls.Load()).To(Equal(int32(2)))
	})

	It("does not retry client errors", func() {
		statuses = []int{http.StatusBadRequest}
		err := newDispatcher(3).Emit(context.Background(), 7, notification.EventNew, nil)
		Expect(err).To(MatchError(ContainSubstring("status 400")))
		Expect(calls.Load()).To(Equal(int32(1)))
	})
})

type failing struct{ err error }

func (f failing) Emit(context.Context, int64, string, interface{}) error { return f.err }

type counting struct{ n *int }

func (c counting) Emit(context.Context, int64, string, interface{}) error {
	*c.n++
	return nil
}

var _ = Describe("MultiDispatcher", func() {
	It("reaches every channel and joins failures", func() {
		var reached int
		boom := errors.New("redis unavailable")
		multi := notification.MultiDispatcher{failing{boom}, counting{&reached}}

		err := multi.Emit(context.Background(), 1, notification.EventNew, nil)
		Expect(err).To(MatchError(boom))
		Expect(reached).To(Equal(1))

		Expect(notification.MultiDispatcher{counting{&reached}}.Emit(context.Background(), 1, notification.EventNew, nil)).To(Succeed())
		Expect(reached).To(Equal(2))
	})
})
