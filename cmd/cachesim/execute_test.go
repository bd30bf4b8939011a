package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cachesim/config"
	"github.com/sarchlab/cachesim/simulator"
	"github.com/sarchlab/cachesim/trace"
)

func writeTrace(dir string, lines ...string) string {
	path := filepath.Join(dir, "trace.txt")
	Expect(os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644)).
		To(Succeed())

	return path
}

func sequentialReads(n int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("1 1 read 0x%x 8 0x400000", i*64)
	}

	return lines
}

func resetFlags(dir string) {
	flags = globalFlags{
		envFiles:  []string{filepath.Join(dir, "missing.env")},
		statsDir:  filepath.Join(dir, "stats"),
		batchSize: 3,
	}
	runFlags.knobs = ""
	runFlags.hierarchy = ""
	runFlags.metric = ""
	tlbFlags.knobs = ""
	configFlags.tlb = false
	configFlags.out = ""
}

var _ = Describe("simulate", func() {
	var (
		dir string
		k   *config.Knobs
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		k = config.DefaultKnobs()
		k.NumCores = 1
		k.DataPrefetcher = "none"
		k.StatsDir = filepath.Join(dir, "stats")
	})

	open := func(lines ...string) *trace.Reader {
		r, err := trace.Open(writeTrace(dir, lines...))
		Expect(err).ToNot(HaveOccurred())
		DeferCleanup(r.Close)

		return r
	}

	It("should replay the whole trace", func() {
		s, err := simulator.NewCacheSimulator(k)
		Expect(err).ToNot(HaveOccurred())

		Expect(simulate(context.Background(), s, open(sequentialReads(10)...), 3)).
			To(Succeed())
		Expect(s.Processed()).To(Equal(uint64(10)))
		Expect(s.StatsOf(s.L1D(0)).Misses()).To(Equal(uint64(10)))
	})

	It("should stop quietly once the budget is spent", func() {
		k.SimRefs = 4
		s, err := simulator.NewCacheSimulator(k)
		Expect(err).ToNot(HaveOccurred())

		Expect(simulate(context.Background(), s, open(sequentialReads(100)...), 2)).
			To(Succeed())
		Expect(s.Processed()).To(Equal(uint64(4)))
	})

	It("should report a malformed line", func() {
		s, err := simulator.NewCacheSimulator(k)
		Expect(err).ToNot(HaveOccurred())

		lines := append(sequentialReads(5), "1 1 read nonsense")
		err = simulate(context.Background(), s, open(lines...), 2)
		Expect(err).To(MatchError(trace.ErrSyntax))
	})

	It("should stop when the context is cancelled", func() {
		s, err := simulator.NewCacheSimulator(k)
		Expect(err).ToNot(HaveOccurred())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err = simulate(ctx, s, open(sequentialReads(100)...), 1)
		Expect(err).To(MatchError(context.Canceled))
	})
})

var _ = Describe("commands", func() {
	var (
		dir string
		out *bytes.Buffer
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		resetFlags(dir)

		out = &bytes.Buffer{}
		rootCmd.SetOut(out)
		rootCmd.SetErr(out)
		DeferCleanup(func() { rootCmd.SetArgs(nil) })
	})

	execute := func(args ...string) error {
		rootCmd.SetArgs(args)
		return rootCmd.Execute()
	}

	It("should run the cache simulator and write the results", func() {
		path := writeTrace(dir, sequentialReads(20)...)
		db := filepath.Join(dir, "results")
		env := filepath.Join(dir, "sim.env")
		Expect(os.WriteFile(env, []byte("CACHESIM_DATA_PREFETCHER=none\n"), 0o644)).
			To(Succeed())

		err := execute("run",
			"--env-file", env,
			"--stats-dir", filepath.Join(dir, "stats"),
			"--progress", "0",
			"--record", db,
			"--metric", "misses",
			path)
		Expect(err).ToNot(HaveOccurred())

		Expect(out.String()).To(HavePrefix("Cache simulation results:\nCore #0 (1 thread)\n"))
		Expect(out.String()).To(ContainSubstring("core 0 L1D misses: 20\n"))
		Expect(out.String()).To(ContainSubstring("core 3 LL misses: 20\n"))
		Expect(filepath.Join(dir, "stats", "LL.txt")).To(BeAnExistingFile())
		Expect(db + ".sqlite3").To(BeAnExistingFile())
	})

	It("should run the TLB simulator", func() {
		path := writeTrace(dir, "1 1 read 0x1000 8 0x400000", "2 1 read 0x1000 8 0x400000")

		err := execute("tlb",
			"--env-file", filepath.Join(dir, "missing.env"),
			"--stats-dir", filepath.Join(dir, "stats"),
			"--progress", "0",
			path)
		Expect(err).ToNot(HaveOccurred())
		Expect(out.String()).To(HavePrefix("TLB simulation results:\n"))
		Expect(out.String()).To(ContainSubstring("L2_TLB_0 stats:"))
	})

	It("should apply environment files to the printed knobs", func() {
		env := filepath.Join(dir, "sim.env")
		Expect(os.WriteFile(env, []byte("CACHESIM_NUM_CORES=2\nCACHESIM_LL_ASSOC=8\n"), 0o644)).
			To(Succeed())

		err := execute("config", "--env-file", env, "--stats-dir", "out")
		Expect(err).ToNot(HaveOccurred())

		Expect(out.String()).To(ContainSubstring(`"num_cores": 2,`))
		Expect(out.String()).To(ContainSubstring(`"ll_assoc": 8,`))
		Expect(out.String()).To(ContainSubstring(`"stats_dir": "out",`))
	})

	It("should save the TLB knobs", func() {
		file := filepath.Join(dir, "tlb.json")

		err := execute("config", "--tlb", "--out", file,
			"--env-file", filepath.Join(dir, "missing.env"))
		Expect(err).ToNot(HaveOccurred())

		k, err := config.LoadTLBKnobs(file)
		Expect(err).ToNot(HaveOccurred())
		Expect(k.L2Entries).To(Equal(1024))
	})

	It("should reject invalid knobs from the environment", func() {
		env := filepath.Join(dir, "bad.env")
		Expect(os.WriteFile(env, []byte("CACHESIM_L1D_ASSOC=3\n"), 0o644)).To(Succeed())

		err := execute("config", "--env-file", env)
		Expect(err).To(HaveOccurred())
	})
})
