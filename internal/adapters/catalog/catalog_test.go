package catalog

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/eventrank/internal/adapters/database"
	"github.com/okian/eventrank/internal/domain/model"
)

const snapshotYAML = `
profiles:
  - id: u1
    major: Informatika
    interests: "AI, Robotics"
  - id: u2
    interests: "music"
events:
  - id: e2
    title: Robotics Expo
    description: Robots and AI demos
    category: expo
    target_majors: [Umum]
    tags: [robotics, ai]
    date: 2026-05-02T09:00:00Z
  - id: e1
    title: Coding Bootcamp
    description: Learn Go in a weekend
    category: workshop
    target_majors: [Informatika]
    tags: [go]
    date: 2026-04-01T09:00:00Z
  - id: e0
    title: Old Event
    description: Already happened
    target_majors: []
    date: 2025-01-01T09:00:00Z
`

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func behavesLikeCatalog(c Catalog) {
	ctx := context.Background()

	Convey("When an existing profile is read", func() {
		p, err := c.GetProfile(ctx, "u1")

		Convey("Then its fields should be populated", func() {
			So(err, ShouldBeNil)
			So(p.Major, ShouldEqual, "Informatika")
			So(p.Interests, ShouldEqual, "AI, Robotics")
		})
	})

	Convey("When an unknown profile is read", func() {
		_, err := c.GetProfile(ctx, "nobody")

		Convey("Then ErrNotFound should be returned", func() {
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})
	})

	Convey("When candidates are listed from a date", func() {
		events, err := c.GetCandidateEvents(ctx, Filter{From: day(2026, 1, 1)})

		Convey("Then past events should be excluded and the rest ordered by date", func() {
			So(err, ShouldBeNil)
			So(events, ShouldHaveLength, 2)
			So(events[0].ID, ShouldEqual, "e1")
			So(events[1].ID, ShouldEqual, "e2")
			So(events[1].TargetMajors, ShouldResemble, []string{"Umum"})
			So(events[1].Tags, ShouldResemble, []string{"robotics", "ai"})
		})
	})

	Convey("When candidates are listed with a limit", func() {
		events, err := c.GetCandidateEvents(ctx, Filter{Limit: 1})

		Convey("Then only the earliest should be returned", func() {
			So(err, ShouldBeNil)
			So(events, ShouldHaveLength, 1)
			So(events[0].ID, ShouldEqual, "e0")
		})
	})
}

func TestMemoryCatalog(t *testing.T) {
	Convey("Given a catalog parsed from a YAML snapshot", t, func() {
		m, err := ParseSnapshot(strings.NewReader(snapshotYAML))
		So(err, ShouldBeNil)

		behavesLikeCatalog(m)

		Convey("When a profile has no major", func() {
			p, err := m.GetProfile(context.Background(), "u2")

			Convey("Then it should fall back to the general sentinel", func() {
				So(err, ShouldBeNil)
				So(p.Major, ShouldEqual, model.MajorGeneral)
			})
		})

		Convey("When a returned event is mutated", func() {
			events, _ := m.GetCandidateEvents(context.Background(), Filter{})
			events[1].Tags[0] = "changed"

			Convey("Then the snapshot should be unaffected", func() {
				again, _ := m.GetCandidateEvents(context.Background(), Filter{})
				So(again[1].Tags, ShouldResemble, []string{"go"})
			})
		})
	})

	Convey("Given malformed snapshots", t, func() {
		Convey("Then an event without id should be rejected", func() {
			_, err := ParseSnapshot(strings.NewReader("events:\n  - title: x\n"))
			So(err, ShouldNotBeNil)
		})

		Convey("Then invalid YAML should be rejected", func() {
			_, err := ParseSnapshot(strings.NewReader("profiles: [\n"))
			So(err, ShouldNotBeNil)
		})

		Convey("Then an empty document should yield an empty catalog", func() {
			m, err := ParseSnapshot(strings.NewReader(""))
			So(err, ShouldBeNil)
			events, _ := m.GetCandidateEvents(context.Background(), Filter{})
			So(events, ShouldBeEmpty)
		})

		Convey("Then a missing file should be reported", func() {
			_, err := LoadSnapshot("/no/such/snapshot.yaml")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestPostgresCatalog(t *testing.T) {
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

	Convey("Given a Postgres catalog seeded from the snapshot", t, func() {
		p := NewPostgres(db)
		So(p.Migrate(ctx), ShouldBeNil)
		So(db.Exec("DELETE FROM events").Error, ShouldBeNil)
		So(db.Exec("DELETE FROM user_profiles").Error, ShouldBeNil)

		m, err := ParseSnapshot(strings.NewReader(snapshotYAML))
		So(err, ShouldBeNil)
		for _, id := range []string{"u1", "u2"} {
			prof, _ := m.GetProfile(ctx, id)
			So(p.upsertProfile(ctx, prof), ShouldBeNil)
		}
		events, _ := m.GetCandidateEvents(ctx, Filter{})
		for _, e := range events {
			So(p.upsertEvent(ctx, e), ShouldBeNil)
		}

		behavesLikeCatalog(p)
	})
}
