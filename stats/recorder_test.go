package stats_test

import (
	"database/sql"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cachesim/memref"
	"github.com/sarchlab/cachesim/stats"
)

type sample struct {
	Name  string
	Count uint64
	Ratio float64
}

var _ = Describe("Recorder", func() {
	var (
		r    *stats.Recorder
		name string
	)

	BeforeEach(func() {
		name = filepath.Join(GinkgoT().TempDir(), "results")

		var err error
		r, err = stats.NewRecorder(name)
		Expect(err).ToNot(HaveOccurred())
		Expect(r.Path()).To(Equal(name + ".sqlite3"))
		Expect(r.RunID()).ToNot(BeEmpty())
	})

	It("should store rows on close", func() {
		Expect(r.CreateTable("samples", sample{})).To(Succeed())
		Expect(r.Insert("samples", sample{"a", 1, 0.5})).To(Succeed())
		Expect(r.Insert("samples", sample{"b", 2, 0.25})).To(Succeed())
		Expect(r.Close()).To(Succeed())

		db, err := sql.Open("sqlite3", name+".sqlite3")
		Expect(err).ToNot(HaveOccurred())
		defer db.Close()

		var count int
		Expect(db.QueryRow("SELECT COUNT(*) FROM samples").Scan(&count)).To(Succeed())
		Expect(count).To(Equal(2))

		var total float64
		Expect(db.QueryRow("SELECT SUM(Ratio) FROM samples").Scan(&total)).To(Succeed())
		Expect(total).To(BeNumerically("~", 0.75))
	})

	It("should store device rows", func() {
		s := stats.NewCacheStats(stats.Options{Name: "LL", BlockSize: 64})
		s.Access(memref.Ref{Kind: memref.KindRead, Addr: 0}, false, nil)

		Expect(r.CreateTable("devices", stats.DeviceRow{})).To(Succeed())
		Expect(r.Insert("devices", s.Row(r.RunID()))).To(Succeed())
		Expect(r.Close()).To(Succeed())

		db, err := sql.Open("sqlite3", name+".sqlite3")
		Expect(err).ToNot(HaveOccurred())
		defer db.Close()

		var device string
		var misses int
		Expect(db.QueryRow("SELECT Device, Misses FROM devices").Scan(&device, &misses)).To(Succeed())
		Expect(device).To(Equal("LL"))
		Expect(misses).To(Equal(1))
	})

	It("should reject misuse", func() {
		Expect(r.CreateTable("samples", sample{})).To(Succeed())
		Expect(r.CreateTable("samples", sample{})).To(MatchError(stats.ErrTableExists))
		Expect(r.CreateTable("bad", struct{ M map[string]int }{})).To(MatchError(stats.ErrFieldType))
		Expect(r.Insert("missing", sample{})).To(MatchError(stats.ErrNoTable))
		Expect(r.Insert("samples", stats.DeviceRow{})).To(MatchError(stats.ErrFieldType))
		Expect(r.Close()).To(Succeed())
	})

	It("should list the created tables", func() {
		Expect(r.CreateTable("samples", sample{})).To(Succeed())
		Expect(r.CreateTable("devices", stats.DeviceRow{})).To(Succeed())
		Expect(r.Tables()).To(ConsistOf("samples", "devices"))
		Expect(r.Close()).To(Succeed())
	})

	It("should do nothing when flushed after close", func() {
		Expect(r.CreateTable("samples", sample{})).To(Succeed())
		Expect(r.Insert("samples", sample{"a", 1, 0.5})).To(Succeed())
		Expect(r.Close()).To(Succeed())

		Expect(r.Flush()).To(Succeed())
		Expect(r.Close()).To(Succeed())
		Expect(r.Insert("samples", sample{"b", 2, 0.25})).To(MatchError(stats.ErrRecorderClosed))
		Expect(r.CreateTable("more", sample{})).To(MatchError(stats.ErrRecorderClosed))

		db, err := sql.Open("sqlite3", name+".sqlite3")
		Expect(err).ToNot(HaveOccurred())
		defer db.Close()

		var count int
		Expect(db.QueryRow("SELECT COUNT(*) FROM samples").Scan(&count)).To(Succeed())
		Expect(count).To(Equal(1))
	})

	It("should not overwrite an existing database", func() {
		Expect(r.Close()).To(Succeed())

		_, err := os.Stat(name + ".sqlite3")
		Expect(err).ToNot(HaveOccurred())

		_, err = stats.NewRecorder(name)
		Expect(err).To(HaveOccurred())
	})
})
