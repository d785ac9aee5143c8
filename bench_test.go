package larch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// benchPySource is a realistic test-suite file with lifecycle hooks, helper
// methods, control flow, and a mix of matching and non-matching calls, for
// exercising the full parse/classify/match pipeline.
const benchPySource = `from lisa import TestSuite, TestCaseMetadata


class PerfSuite(TestSuite):
    def before_case(self):
        self.log.info("preparing")
        self._reset()

    @TestCaseMetadata(description="throughput")
    def test_throughput(self, node, target):
        node.execute("ethtool eth0")
        result = node.execute(f"iperf3 -c {target}")
        if result.exit_code != 0:
            self.log.warning("iperf run was unstable")
        for i in range(10):
            node.execute("free -m")

    def verify_memory(self, node):
        node.execute("cat /proc/meminfo")
        with node.session() as s:
            s.execute("sysctl -a")

    def test_disk(self, node):
        def sample():
            return node.execute("df -h")

        try:
            node.execute("fio --name=randread")
        except Exception:
            self.log.warning("fio failed to start")

    def _reset(self):
        self.node.execute("dmesg")

    def after_case(self):
        self.log.info("done")
`

func BenchmarkCheckSource(b *testing.B) {
	e, err := New(Config{})
	if err != nil {
		b.Fatal(err)
	}
	content := []byte(benchPySource)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		res, err := e.CheckSource(ctx, "testsuites/perf.py", content)
		if err != nil {
			b.Fatal(err)
		}
		if res.ParseErr != nil {
			b.Fatal("fixture must parse")
		}
	}
}

func BenchmarkCheckFilesParallel(b *testing.B) {
	dir := filepath.Join(b.TempDir(), "testsuites")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		b.Fatal(err)
	}
	var paths []string
	for i := 0; i < 32; i++ {
		path := filepath.Join(dir, fmt.Sprintf("suite%02d.py", i))
		if err := os.WriteFile(path, []byte(benchPySource), 0o644); err != nil {
			b.Fatal(err)
		}
		paths = append(paths, path)
	}

	e, err := New(Config{})
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.CheckFiles(ctx, paths); err != nil {
			b.Fatal(err)
		}
	}
}
