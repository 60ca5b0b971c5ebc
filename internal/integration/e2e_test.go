//go:build integration || !unit

package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"capcorn_sync/internal/adapters/bridge"
	"capcorn_sync/internal/adapters/redisad"
	"capcorn_sync/internal/app"
	"capcorn_sync/internal/domain"
	mysqlrepo "capcorn_sync/internal/storage/mysql"
)

// ---------- helpers ----------

func mustEnv(t *testing.T, k string) string {
	t.Helper()
	v := os.Getenv(k)
	if v == "" {
		t.Fatalf("%s not set; export it (e.g. MIGRATIONS_DIR=/path/to/migrations)", k)
	}
	return v
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := mustEnv(t, "MIGRATIONS_DIR")

	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		t.Fatalf("MIGRATIONS_DIR=%s is not a directory or missing", dir)
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)
	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

func startMySQL(t *testing.T) *sql.DB {
	t.Helper()
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=capcorn",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	dsn := fmt.Sprintf("root:root@tcp(127.0.0.1:%s)/capcorn?parseTime=true&multiStatements=true&charset=utf8mb4,utf8&loc=UTC",
		resource.GetPort("3306/tcp"))
	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	applyMigrations(t, db)
	return db
}

// fakeBridge mimics the on-prem bridge service, German field names and
// all, including guest pagination over a 120-guest roster.
func fakeBridge(t *testing.T) *httptest.Server {
	t.Helper()
	const totalGuests = 120

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"total_guests":120,"total_rooms":2}`))
	})
	mux.HandleFunc("/rooms", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"count":2,"rooms":[
			{"zimn":101,"name":"Alpenblick 101","caid":1,"bession":2,"extrabet":1,"status":"active"},
			{"zimm":"102","beze":"Enzian 102","catg":"1","bett":3}
		]}`))
	})
	mux.HandleFunc("/categories", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"count":1,"categories":[{"catg":1,"name":"Doppelzimmer"}]}`))
	})
	mux.HandleFunc("/guests", func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		if limit <= 0 {
			limit = 50
		}
		type guest struct {
			Gast int    `json:"gast"`
			Vorn string `json:"vorn"`
			Nacn string `json:"nacn"`
		}
		var page []guest
		for i := offset; i < offset+limit && i < totalGuests; i++ {
			page = append(page, guest{Gast: i + 1, Vorn: "Gast", Nacn: fmt.Sprintf("Nr%d", i+1)})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"count": len(page), "total": totalGuests, "guests": page,
		})
	})
	mux.HandleFunc("/calendar", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("start_date") != "2000-01-01" || r.URL.Query().Get("end_date") != "2050-12-31" {
			http.Error(w, "unexpected window", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"count":1,"bookings":[
			{"resn":555,"gast":1,"stat":1,"andf":"2026-07-01","ande":"2026-07-05","chid":4,
			 "rooms":[{"zimn":101,"datea":"2026-07-01","datee":"2026-07-05","pers":2,"preis":"412,50"}]}
		]}`))
	})
	mux.HandleFunc("/availability", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"count":2,"availability":[
			{"date":"2026-07-01","zimn":101,"status":"booked","resn":555},
			{"date":"2026-07-01","zimn":102,"status":"free"}
		]}`))
	})
	mux.HandleFunc("/articles", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"count":1,"articles":[{"artn":30,"beze":"Kurtaxe","prei":2.5,"knto":8400}]}`))
	})
	mux.HandleFunc("/channels", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"count":1,"channels":[{"chid":4,"name":"Booking.com"}]}`))
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

// ---------- the test ----------

func TestFullSync_EndToEnd(t *testing.T) {
	db := startMySQL(t)
	mr := miniredis.RunT(t)
	bridgeSrv := fakeBridge(t)

	repo := mysqlrepo.New(db)
	status := redisad.NewStatusStore(mr.Addr(), "", 0)
	cache := redisad.NewCacheFromClient(status.Client())
	client, err := bridge.New(bridgeSrv.URL, 100)
	if err != nil {
		t.Fatalf("bridge.New: %v", err)
	}

	eng := app.NewEngine(client, repo, status, cache, 50, nil)
	ctx := context.Background()

	sum, err := eng.RunFull(ctx)
	if err != nil {
		t.Fatalf("RunFull: %v", err)
	}
	if len(sum.Errors) != 0 {
		t.Fatalf("run errors: %+v", sum.Errors)
	}

	want := map[domain.ResourceKind]int{
		domain.KindRooms:        2,
		domain.KindCategories:   1,
		domain.KindGuests:       120,
		domain.KindBookings:     1,
		domain.KindAvailability: 2,
		domain.KindArticles:     1,
		domain.KindChannels:     1,
	}
	for kind, n := range want {
		if sum.Counts[kind] != n {
			t.Fatalf("%s count = %d, want %d", kind, sum.Counts[kind], n)
		}
	}

	// Documents landed in MySQL with the canonical shape.
	counts, err := repo.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	for kind, n := range want {
		if counts[kind] != n {
			t.Fatalf("stored %s = %d, want %d", kind, counts[kind], n)
		}
	}

	docs, err := repo.Collection(ctx, domain.KindBookings, 10)
	if err != nil || len(docs) != 1 {
		t.Fatalf("bookings collection: %v %d", err, len(docs))
	}
	var b domain.Booking
	if err := json.Unmarshal(docs[0].Body, &b); err != nil {
		t.Fatalf("unmarshal booking: %v", err)
	}
	if b.ExternalID != "555" || b.Status != "confirmed" || b.TotalPrice != 412.5 || b.Nights != 4 {
		t.Fatalf("unexpected booking: %+v", b)
	}

	// Legacy-alias room made it through.
	docs, _ = repo.Collection(ctx, domain.KindRooms, 10)
	var names []string
	for _, d := range docs {
		var rm domain.Room
		_ = json.Unmarshal(d.Body, &rm)
		names = append(names, rm.Name)
	}
	sort.Strings(names)
	if len(names) != 2 || names[0] != "Alpenblick 101" || names[1] != "Enzian 102" {
		t.Fatalf("unexpected room names: %v", names)
	}

	// Every kind reports synced; the run summary is retrievable.
	recs, err := status.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	for _, r := range recs {
		if r.State != domain.StateSynced {
			t.Fatalf("%s state = %s", r.Kind, r.State)
		}
	}
	last, err := status.LastRun(ctx)
	if err != nil || last == nil || last.RunID != sum.RunID {
		t.Fatalf("last run: %+v, %v", last, err)
	}

	// A second run replaces rather than accumulates.
	sum2, err := eng.RunFull(ctx)
	if err != nil || len(sum2.Errors) != 0 {
		t.Fatalf("second run: %v %+v", err, sum2.Errors)
	}
	counts, _ = repo.Counts(ctx)
	if counts[domain.KindGuests] != 120 {
		t.Fatalf("second run accumulated: guests = %d", counts[domain.KindGuests])
	}

	// The read service sees the documents through the cache.
	q := app.NewQueryService(repo, status, cache, 0)
	items, err := q.Collection(ctx, domain.KindChannels, 100)
	if err != nil || len(items) != 1 {
		t.Fatalf("query collection: %v %d", err, len(items))
	}
}
