package lock_test

import (
	"context"
	"time"

	"lotero/internal/lock"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"
)

func behavesLikeALock(newLocker func() lock.Locker) {
	Context("as a Locker", func() {
		sharedLockSpecs(newLocker)
	})
}

func sharedLockSpecs(newLocker func() lock.Locker) {
	var (
		locker lock.Locker
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		locker = newLocker()
	})

	It("rejects a second holder", func() {
		release, err := locker.TryLock(ctx)
		Expect(err).NotTo(HaveOccurred())
		defer release()

		_, err = locker.TryLock(ctx)
		Expect(err).To(MatchError(lock.ErrLocked))
	})

	It("can be taken again after release", func() {
		release, err := locker.TryLock(ctx)
		Expect(err).NotTo(HaveOccurred())
		release()
		release()

		release, err = locker.TryLock(ctx)
		Expect(err).NotTo(HaveOccurred())
		release()
	})
}

var _ = Describe("Local", func() {
	behavesLikeALock(func() lock.Locker { return lock.NewLocal() })
})

var _ = Describe("Redis", func() {
	var (
		server *miniredis.Miniredis
		client *redis.Client
		ctx    context.Context
	)

	BeforeEach(func() {
		server = miniredis.RunT(GinkgoT())
		client = redis.NewClient(&redis.Options{Addr: server.Addr()})
		ctx = context.Background()
	})

	AfterEach(func() {
		Expect(client.Close()).To(Succeed())
	})

	behavesLikeALock(func() lock.Locker {
		return lock.NewRedis(client, "sync", time.Minute)
	})

	It("stores a token with the TTL and deletes it on release", func() {
		release, err := lock.NewRedis(client, "sync", time.Minute).TryLock(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(server.Exists("lotero:lock:sync")).To(BeTrue())
		Expect(server.TTL("lotero:lock:sync")).To(Equal(time.Minute))

		release()
		Expect(server.Exists("lotero:lock:sync")).To(BeFalse())
	})

	It("does not release a lock taken over by another holder", func() {
		release, err := lock.NewRedis(client, "sync", time.Minute).TryLock(ctx)
		Expect(err).NotTo(HaveOccurred())

		server.Set("lotero:lock:sync", "other-holder")
		release()

		v, err := server.Get("lotero:lock:sync")
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal("other-holder"))
	})

	It("can be taken once the TTL lapses", func() {
		l := lock.NewRedis(client, "sync", time.Minute)
		release, err := l.TryLock(ctx)
		Expect(err).NotTo(HaveOccurred())
		defer release()

		server.FastForward(2 * time.Minute)

		second, err := l.TryLock(ctx)
		Expect(err).NotTo(HaveOccurred())
		second()
	})

	It("renews the TTL while held", func() {
		release, err := lock.NewRedis(client, "sync", 300*time.Millisecond).TryLock(ctx)
		Expect(err).NotTo(HaveOccurred())
		defer release()

		for i := 0; i < 5; i++ {
			server.FastForward(100 * time.Millisecond)
			time.Sleep(150 * time.Millisecond)
		}
		Expect(server.Exists("lotero:lock:sync")).To(BeTrue())
	})

	It("reports redis failures", func() {
		server.Close()

		_, err := lock.NewRedis(client, "sync", time.Minute).TryLock(ctx)
		Expect(err).To(HaveOccurred())
		Expect(err).NotTo(MatchError(lock.ErrLocked))
	})

	It("rejects malformed URLs", func() {
		_, err := lock.NewRedisFromURL("not-a-url", "sync", 0)
		Expect(err).To(HaveOccurred())
	})

	It("connects to a redis:// URL", func() {
		l, err := lock.NewRedisFromURL("redis://"+server.Addr()+"/0", "url", time.Minute)
		Expect(err).NotTo(HaveOccurred())
		defer l.Close()

		release, err := l.TryLock(ctx)
		Expect(err).NotTo(HaveOccurred())
		release()
	})
})
