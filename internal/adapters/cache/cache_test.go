package cache

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/eventrank/internal/adapters/database"
)

func sampleVector() []float32 {
	v := make([]float32, 384)
	for i := range v {
		v[i] = float32(i) / 384
	}
	return v
}

// behavesLikeCache runs the shared contract against any backend.
func behavesLikeCache(c Cache) {
	ctx := context.Background()
	vec := sampleVector()

	Convey("When nothing was stored", func() {
		got, ok, err := c.Get(ctx, "event:missing", "h1")

		Convey("Then it should be a miss", func() {
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
			So(got, ShouldBeNil)
		})
	})

	Convey("When a vector is stored", func() {
		So(c.Put(ctx, "event:e1", "h1", vec), ShouldBeNil)

		Convey("Then reading with the same hash should hit", func() {
			got, ok, err := c.Get(ctx, "event:e1", "h1")
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(got, ShouldResemble, vec)
		})

		Convey("Then reading with a different hash should miss", func() {
			_, ok, err := c.Get(ctx, "event:e1", "h2")
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
		})

		Convey("And it is replaced for new content", func() {
			newer := sampleVector()
			newer[0] = 42
			So(c.Put(ctx, "event:e1", "h2", newer), ShouldBeNil)

			Convey("Then only the new hash should hit", func() {
				_, okOld, _ := c.Get(ctx, "event:e1", "h1")
				got, okNew, _ := c.Get(ctx, "event:e1", "h2")
				So(okOld, ShouldBeFalse)
				So(okNew, ShouldBeTrue)
				So(got[0], ShouldEqual, 42)
			})
		})
	})

	Convey("When the key is empty", func() {
		Convey("Then Put should be rejected", func() {
			So(c.Put(ctx, "", "h", vec), ShouldEqual, ErrEmptyKey)
		})
	})
}

func TestMemoryCache(t *testing.T) {
	Convey("Given an in-memory cache", t, func() {
		m := NewMemory()
		behavesLikeCache(m)

		Convey("When the caller mutates a returned vector", func() {
			ctx := context.Background()
			So(m.Put(ctx, "profile:u1", "h", sampleVector()), ShouldBeNil)
			got, _, _ := m.Get(ctx, "profile:u1", "h")
			got[0] = 99

			Convey("Then the stored copy should be unaffected", func() {
				again, _, _ := m.Get(ctx, "profile:u1", "h")
				So(again[0], ShouldEqual, 0)
				So(m.Len(), ShouldEqual, 1)
			})
		})

		Convey("When many readers and writers run concurrently", func() {
			ctx := context.Background()
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(2)
				go func() {
					defer wg.Done()
					_ = m.Put(ctx, "event:hot", "h", sampleVector())
				}()
				go func() {
					defer wg.Done()
					_, _, _ = m.Get(ctx, "event:hot", "h")
				}()
			}
			wg.Wait()

			Convey("Then the entry should be intact", func() {
				got, ok, err := m.Get(ctx, "event:hot", "h")
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(got, ShouldHaveLength, 384)
			})
		})
	})
}

func TestVectorCodec(t *testing.T) {
	Convey("Given a vector blob", t, func() {
		Convey("When it is a valid encoding", func() {
			v := []float32{1.5, -2.25, 0}
			got, err := decodeVector(encodeVector(v))

			Convey("Then it should decode to the original values", func() {
				So(err, ShouldBeNil)
				So(got, ShouldResemble, v)
				So(encodeVector(v), ShouldHaveLength, 12)
			})
		})

		Convey("When its length is not a multiple of four", func() {
			_, err := decodeVector([]byte{1, 2, 3})

			Convey("Then decoding should fail", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("EVENTRANK_TEST_REDIS")
	if addr == "" {
		t.Skip("EVENTRANK_TEST_REDIS not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	Convey("Given a Redis cache", t, func() {
		prefix := "eventrank:test:" + time.Now().Format("150405.000000") + ":"
		r := NewRedis(client, WithPrefix(prefix), WithTTL(time.Minute))
		So(r.Ping(context.Background()), ShouldBeNil)

		behavesLikeCache(r)
	})
}

func TestPostgresCache(t *testing.T) {
	dsn := os.Getenv("EVENTRANK_TEST_DSN")
	if dsn == "" {
		t.Skip("EVENTRANK_TEST_DSN not set")
	}

	ctx := context.Background()
	db, err := database.Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	defer func() { _ = database.Close(db) }()

	Convey("Given a Postgres cache", t, func() {
		p := NewPostgres(db)
		So(p.Migrate(ctx), ShouldBeNil)
		So(db.Exec("DELETE FROM embedding_cache").Error, ShouldBeNil)

		behavesLikeCache(p)
	})
}
