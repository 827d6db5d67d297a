package redis_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/frahmantamala/audit-management/internal"
	notificationredis "github.com/frahmantamala/audit-management/internal/notification/redis"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	goredis "github.com/redis/go-redis/v9"
)

func TestNotificationRedis(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Notification Redis Suite")
}

var _ = Describe("Dispatcher", func() {
	var (
		ctx    context.Context
		server *miniredis.Miniredis
		client *goredis.Client
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		server, err = miniredis.Run()
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(server.Close)

		client, err = notificationredis.NewClient(ctx, internal.RedisConfig{Addr: server.Addr(), DialTimeout: time.Second})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(client.Close)
	})

	It("names one channel per recipient", func() {
		Expect(notificationredis.NewDispatcher(client, "").Channel(7)).To(Equal("notifications:user:7"))
		Expect(notificationredis.NewDispatcher(client, "audit").Channel(7)).To(Equal("audit:user:7"))
	})

	It("publishes a JSON envelope on the recipient channel", func() {
		dispatcher := notificationredis.NewDispatcher(client, "audit")
		sub := client.Subscribe(ctx, dispatcher.Channel(7))
		DeferCleanup(sub.Close)
		_, err := sub.Receive(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(dispatcher.Emit(ctx, 7, "notification:new", map[string]string{"id": "n-1"})).To(Succeed())

		var msg *goredis.Message
		Eventually(sub.Channel()).WithTimeout(2 * time.Second).Should(Receive(&msg))

		var env struct {
			Event   string            `json:"event"`
			UserID  int64             `json:"user_id"`
			Payload map[string]string `json:"payload"`
		}
		Expect(json.Unmarshal([]byte(msg.Payload), &env)).To(Succeed())
		Expect(env.Event).To(Equal("notification:new"))
		Expect(env.UserID).To(Equal(int64(7)))
		Expect(env.Payload).To(HaveKeyWithValue("id", "n-1"))
	})

	It("reports a lost connection", func() {
		dispatcher := notificationredis.NewDispatcher(client, "")
		server.Close()

		err := dispatcher.Emit(ctx, 7, "notification:new", nil)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("publish notification:new to user 7"))
	})

	It("fails to connect to a dead address", func() {
		addr := server.Addr()
		server.Close()

		_, err := notificationredis.NewClient(ctx, internal.RedisConfig{Addr: addr, DialTimeout: 200 * time.Millisecond})
		Expect(err).To(HaveOccurred())
	})
})
