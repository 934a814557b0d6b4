package redis_test

import (
	"context"
	"errors"
	"testing"
	"time"

	authredis "github.com/frahmantamala/event-permission/internal/auth/redis"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	goredis "github.com/redis/go-redis/v9"
)

func TestRedis(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Session Revocation Redis Suite")
}

type fakeClient struct {
	keys   map[string]time.Duration
	setErr error
	getErr error
}

func (f *fakeClient) Set(_ context.Context, key string, _ interface{}, expiration time.Duration) *goredis.StatusCmd {
	if f.setErr != nil {
		return goredis.NewStatusResult("", f.setErr)
	}
	f.keys[key] = expiration
	return goredis.NewStatusResult("OK", nil)
}

func (f *fakeClient) Exists(_ context.Context, keys ...string) *goredis.IntCmd {
	if f.getErr != nil {
		return goredis.NewIntResult(0, f.getErr)
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.keys[k]; ok {
			n++
		}
	}
	return goredis.NewIntResult(n, nil)
}

var _ = Describe("RevocationStore", func() {
	var (
		client *fakeClient
		store  *authredis.RevocationStore
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		client = &fakeClient{keys: map[string]time.Duration{}}
		store = authredis.NewRevocationStore(client)
	})

	It("stores the session id until the token expires", func() {
		Expect(store.Revoke(ctx, "sid-1", time.Now().Add(10*time.Minute))).To(Succeed())

		Expect(client.keys).To(HaveKey("session:revoked:sid-1"))
		Expect(client.keys["session:revoked:sid-1"]).To(BeNumerically("~", 10*time.Minute, 5*time.Second))
		Expect(store.IsRevoked(ctx, "sid-1")).To(BeTrue())
		Expect(store.IsRevoked(ctx, "sid-2")).To(BeFalse())
	})

	It("skips tokens that have already expired", func() {
		Expect(store.Revoke(ctx, "old", time.Now().Add(-time.Minute))).To(Succeed())
		Expect(client.keys).To(BeEmpty())
	})

	It("wraps client failures", func() {
		client.setErr = errors.New("READONLY")
		Expect(store.Revoke(ctx, "sid", time.Now().Add(time.Minute))).To(MatchError(ContainSubstring("revoke session")))

		client.getErr = errors.New("connection refused")
		_, err := store.IsRevoked(ctx, "sid")
		Expect(err).To(MatchError(ContainSubstring("check session revocation")))
	})
})
