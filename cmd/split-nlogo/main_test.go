package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nvandessel/split-nlogo/internal/ledger"
)

const testModel = `globals [ infected ]
to setup
  clear-all
end
@#$#@#$#@
NetLogo 6.4.0
@#$#@#$#@
<experiments>
  <experiment name="sweep" repetitions="6" runMetricsEveryStep="true">
    <setup>setup</setup>
    <go>go</go>
    <enumeratedValueSet variable="x">
      <value value="1"/>
      <value value="2"/>
      <value value="3"/>
    </enumeratedValueSet>
    <enumeratedValueSet variable="color">
      <value value="&quot;red&quot;"/>
    </enumeratedValueSet>
  </experiment>
  <experiment name="grid search" repetitions="1">
    <setup>setup</setup>
    <steppedValueSet variable="speed" first="1" step="1" last="2"/>
  </experiment>
</experiments>
@#$#@#$#@
`

// setupWorkspace writes the test model into a fresh directory, changes into
// it and returns its path.
func setupWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "virus.v2.nlogo"), []byte(testModel), 0644); err != nil {
		t.Fatalf("write model: %v", err)
	}
	if err := os.Mkdir(filepath.Join(dir, "out"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	t.Chdir(dir)
	return dir
}

// runCLI runs the command with args and returns the exit code and output.
func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestRun_SweepScenario(t *testing.T) {
	dir := setupWorkspace(t)

	code, _, stderr := runCLI(t,
		"--nlogo_file", "virus.v2.nlogo",
		"--experiment", "sweep",
		"--repetitions_per_run", "2",
		"--output_dir", "out")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %q", code, stderr)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "out"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	want := []string{
		"sweep_1.xml", "sweep_2.xml", "sweep_3.xml",
		"sweep_4.xml", "sweep_5.xml", "sweep_6.xml",
		"sweep_7.xml", "sweep_8.xml", "sweep_9.xml",
	}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("generated files mismatch (-want +got):\n%s", diff)
	}

	doc := readFile(t, filepath.Join(dir, "out", "sweep_4.xml"))
	for _, s := range []string{
		`<?xml version="1.0" encoding="us-ascii"?>`,
		`<!DOCTYPE experiments SYSTEM "behaviorspace.dtd">`,
		`repetitions="2"`,
		`<enumeratedValueSet variable="x"><value value="2"/></enumeratedValueSet>`,
		`<enumeratedValueSet variable="color">`,
	} {
		if !strings.Contains(doc, s) {
			t.Errorf("sweep_4.xml missing %q:\n%s", s, doc)
		}
	}
	if strings.Contains(stderr, "does not divide") {
		t.Errorf("unexpected split warning: %q", stderr)
	}
}

func TestRun_AllExperimentsWithPrefix(t *testing.T) {
	dir := setupWorkspace(t)

	code, _, stderr := runCLI(t, "-n", "virus.v2.nlogo", "-a", "--output_dir", "out", "--output_prefix", "b1_")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %q", code, stderr)
	}
	for _, name := range []string{"b1_sweep_6.xml", "b1_grid_search_1.xml", "b1_grid_search_2.xml"} {
		if _, err := os.Stat(filepath.Join(dir, "out", name)); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}
}

func TestRun_RunTableAndScript(t *testing.T) {
	dir := setupWorkspace(t)
	tmpl := "#PBS -t 1-{numexps}\nrun {modelname} {experiment} {csvfpath} ${{HOME}} {queue}\n"
	if err := os.WriteFile(filepath.Join(dir, "job.pbs"), []byte(tmpl), 0644); err != nil {
		t.Fatalf("write template: %v", err)
	}

	code, _, stderr := runCLI(t,
		"-n", "virus.v2.nlogo", "-e", "sweep",
		"--repetitions_per_run", "3",
		"--output_dir", "out",
		"--create_run_table",
		"--create_script", "job.pbs",
		"--csv_output_dir", "tables")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %q", code, stderr)
	}

	table := readFile(t, filepath.Join(dir, "out", "sweep_run_table.csv"))
	wantTable := "Experiment number,x\n1,1\n2,1\n3,2\n4,2\n5,3\n6,3\n"
	if table != wantTable {
		t.Errorf("run table = %q, want %q", table, wantTable)
	}

	gotScript := readFile(t, filepath.Join(dir, "out", "sweep_script.pbs"))
	wantScript := fmt.Sprintf("#PBS -t 1-6\nrun virus sweep %s ${HOME} {queue}\n", filepath.Join(dir, "tables"))
	if gotScript != wantScript {
		t.Errorf("script = %q, want %q", gotScript, wantScript)
	}

	if !strings.Contains(stderr, "unknown placeholder") || !strings.Contains(stderr, "{queue}") {
		t.Errorf("expected unknown placeholder warning, stderr = %q", stderr)
	}
}

func TestRun_NoPathTranslation(t *testing.T) {
	dir := setupWorkspace(t)
	if err := os.WriteFile(filepath.Join(dir, "job.sh"), []byte("{model} {csvfpath}"), 0644); err != nil {
		t.Fatalf("write template: %v", err)
	}

	code, _, stderr := runCLI(t,
		"-n", "virus.v2.nlogo", "-e", "grid search",
		"--output_dir", "out",
		"--create_script", "job.sh",
		"--no_path_translation")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %q", code, stderr)
	}

	if got := readFile(t, filepath.Join(dir, "out", "grid_search_script.sh")); got != "virus.v2.nlogo out" {
		t.Errorf("script = %q, want %q", got, "virus.v2.nlogo out")
	}
}

func TestRun_PositionalExperimentNames(t *testing.T) {
	dir := setupWorkspace(t)

	code, _, stderr := runCLI(t, "-n", "virus.v2.nlogo", "--output_dir", "out", "-e", "sweep", "grid search")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %q", code, stderr)
	}
	for _, name := range []string{"sweep_1.xml", "grid_search_2.xml"} {
		if _, err := os.Stat(filepath.Join(dir, "out", name)); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}
}

func TestRun_MissingExperimentWarns(t *testing.T) {
	dir := setupWorkspace(t)

	code, _, stderr := runCLI(t, "-n", "virus.v2.nlogo", "--output_dir", "out", "-e", "sweep", "-e", "nope")
	if code != 0 {
		t.Fatalf("exit code = %d, want 0 (stderr = %q)", code, stderr)
	}
	if !strings.Contains(stderr, "experiment not found") || !strings.Contains(stderr, "experiment=nope") {
		t.Errorf("expected missing experiment warning, stderr = %q", stderr)
	}
	if strings.Contains(stderr, "experiment=sweep") {
		t.Errorf("found experiment reported missing: %q", stderr)
	}
	if _, err := os.Stat(filepath.Join(dir, "out", "sweep_1.xml")); err != nil {
		t.Errorf("sweep was not split: %v", err)
	}
}

func TestRun_InexactSplitWarns(t *testing.T) {
	setupWorkspace(t)

	code, _, stderr := runCLI(t, "-n", "virus.v2.nlogo", "--output_dir", "out", "-e", "sweep", "--repetitions_per_run", "4")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %q", code, stderr)
	}
	if !strings.Contains(stderr, "does not divide") {
		t.Errorf("expected split warning, stderr = %q", stderr)
	}
}

func TestRun_MissingModelFile(t *testing.T) {
	setupWorkspace(t)

	code, _, stderr := runCLI(t, "-n", "missing.nlogo", "-a")
	if code != int(syscall.ENOENT) {
		t.Errorf("exit code = %d, want %d", code, int(syscall.ENOENT))
	}
	if !strings.HasSuffix(strings.TrimSpace(stderr), "'missing.nlogo'") {
		t.Errorf("stderr = %q, want it to end with the quoted path", stderr)
	}
}

func TestRun_MissingOutputDir(t *testing.T) {
	dir := setupWorkspace(t)

	code, _, stderr := runCLI(t, "-n", "virus.v2.nlogo", "-a", "--output_dir", "nowhere")
	if code != int(syscall.ENOENT) {
		t.Errorf("exit code = %d, want %d (stderr = %q)", code, int(syscall.ENOENT), stderr)
	}
	if !strings.Contains(stderr, filepath.Join(dir, "nowhere")) {
		t.Errorf("stderr = %q, want the failing path", stderr)
	}
}

func TestRun_MissingTemplateWritesNothing(t *testing.T) {
	dir := setupWorkspace(t)

	code, _, _ := runCLI(t, "-n", "virus.v2.nlogo", "-a", "--output_dir", "out", "--create_script", "none.sh")
	if code != int(syscall.ENOENT) {
		t.Errorf("exit code = %d, want %d", code, int(syscall.ENOENT))
	}
	entries, _ := os.ReadDir(filepath.Join(dir, "out"))
	if len(entries) != 0 {
		t.Errorf("run files written before template check: %d", len(entries))
	}
}

func TestRun_ParseErrorExitsOne(t *testing.T) {
	dir := t.TempDir()
	model := `<experiments><experiment name="bad" repetitions="many"></experiment></experiments>`
	if err := os.WriteFile(filepath.Join(dir, "bad.nlogo"), []byte(model), 0644); err != nil {
		t.Fatalf("write model: %v", err)
	}
	t.Chdir(dir)

	code, _, stderr := runCLI(t, "-n", "bad.nlogo", "-a")
	if code != exitFailure {
		t.Errorf("exit code = %d, want %d", code, exitFailure)
	}
	if !strings.Contains(stderr, "repetitions") {
		t.Errorf("stderr = %q, want it to name the attribute", stderr)
	}
}

func TestRun_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no selection", []string{"-n", "virus.v2.nlogo"}},
		{"both selections", []string{"-n", "virus.v2.nlogo", "-a", "-e", "sweep"}},
		{"no model file", []string{"-a"}},
		{"unknown flag", []string{"-n", "virus.v2.nlogo", "-a", "--frobnicate"}},
		{"bad integer", []string{"-n", "virus.v2.nlogo", "-a", "--repetitions_per_run", "two"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupWorkspace(t)
			code, _, stderr := runCLI(t, tt.args...)
			if code != exitUsage {
				t.Errorf("exit code = %d, want %d (stderr = %q)", code, exitUsage, stderr)
			}
			if !strings.Contains(stderr, "--help") {
				t.Errorf("stderr = %q, want a usage hint", stderr)
			}
		})
	}
}

func TestRun_HelpNamesSubcommandCollision(t *testing.T) {
	code, stdout, _ := runCLI(t, "--help")
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stdout, "repeat -e for several") || !strings.Contains(stdout, "(list, version), which need -e") {
		t.Errorf("--experiment help does not explain -e for subcommand names:\n%s", stdout)
	}
}

func TestRun_Debug(t *testing.T) {
	setupWorkspace(t)

	code, stdout, stderr := runCLI(t, "-n", "virus.v2.nlogo", "-e", "sweep", "--output_dir", "out", "--debug")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %q", code, stderr)
	}
	if !strings.Contains(stdout, "level=DEBUG") || !strings.Contains(stdout, "planned experiment") {
		t.Errorf("expected debug output on stdout, got %q", stdout)
	}
	if strings.Contains(stderr, "level=DEBUG") {
		t.Errorf("debug output leaked to stderr: %q", stderr)
	}
}

func TestRun_Version(t *testing.T) {
	code, stdout, _ := runCLI(t, "--version")
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if want := "split-nlogo version " + version + "\n"; stdout != want {
		t.Errorf("stdout = %q, want %q", stdout, want)
	}
}

func TestRun_ConfigFile(t *testing.T) {
	dir := setupWorkspace(t)
	cfg := "nlogo_file: virus.v2.nlogo\nall_experiments: true\noutput_dir: elsewhere\ncreate_run_table: true\n"
	if err := os.WriteFile(filepath.Join(dir, "split.yaml"), []byte(cfg), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	// The flag overrides the file's output_dir.
	code, _, stderr := runCLI(t, "--config", "split.yaml", "--output_dir", "out")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %q", code, stderr)
	}
	for _, name := range []string{"sweep_1.xml", "grid_search_run_table.csv"} {
		if _, err := os.Stat(filepath.Join(dir, "out", name)); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}
}

func TestRun_ConfigFileSelectionOverride(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		args    []string
		want    []string
		notWant []string
	}{
		{
			name:   "all_experiments flag over file names",
			config: "experiments: [sweep]\n",
			args:   []string{"--all_experiments"},
			want:   []string{"sweep_1.xml", "grid_search_1.xml"},
		},
		{
			name:    "experiment flag over file all_experiments",
			config:  "all_experiments: true\n",
			args:    []string{"-e", "sweep"},
			want:    []string{"sweep_1.xml"},
			notWant: []string{"grid_search_1.xml"},
		},
		{
			name:    "positional name over file all_experiments",
			config:  "all_experiments: true\n",
			args:    []string{"grid search"},
			want:    []string{"grid_search_1.xml"},
			notWant: []string{"sweep_1.xml"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := setupWorkspace(t)
			cfg := "nlogo_file: virus.v2.nlogo\noutput_dir: out\n" + tt.config
			if err := os.WriteFile(filepath.Join(dir, "split.yaml"), []byte(cfg), 0644); err != nil {
				t.Fatalf("write config: %v", err)
			}

			code, _, stderr := runCLI(t, append([]string{"--config", "split.yaml"}, tt.args...)...)
			if code != 0 {
				t.Fatalf("exit code = %d, stderr = %q", code, stderr)
			}
			for _, name := range tt.want {
				if _, err := os.Stat(filepath.Join(dir, "out", name)); err != nil {
					t.Errorf("expected %s: %v", name, err)
				}
			}
			for _, name := range tt.notWant {
				if _, err := os.Stat(filepath.Join(dir, "out", name)); err == nil {
					t.Errorf("unexpected %s", name)
				}
			}
		})
	}
}

func TestRun_ConfigFileBothSelectionFlags(t *testing.T) {
	dir := setupWorkspace(t)
	cfg := "nlogo_file: virus.v2.nlogo\nall_experiments: true\n"
	if err := os.WriteFile(filepath.Join(dir, "split.yaml"), []byte(cfg), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	code, _, stderr := runCLI(t, "--config", "split.yaml", "-a", "-e", "sweep")
	if code != exitUsage {
		t.Errorf("exit code = %d, want %d (stderr = %q)", code, exitUsage, stderr)
	}
}

func TestRun_ConfigFileMissing(t *testing.T) {
	setupWorkspace(t)

	code, _, stderr := runCLI(t, "--config", "nope.yaml", "-n", "virus.v2.nlogo", "-a")
	if code != int(syscall.ENOENT) {
		t.Errorf("exit code = %d, want %d (stderr = %q)", code, int(syscall.ENOENT), stderr)
	}
}

func TestRun_RunLedger(t *testing.T) {
	dir := setupWorkspace(t)

	code, _, stderr := runCLI(t, "-n", "virus.v2.nlogo", "-e", "sweep", "--output_dir", "out",
		"--repetitions_per_run", "3", "--run_db", "runs.db")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %q", code, stderr)
	}

	ctx := context.Background()
	l, err := ledger.Open(ctx, filepath.Join(dir, "runs.db"))
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	defer l.Close()

	exp, ok, err := l.Lookup(ctx, "sweep")
	if err != nil || !ok {
		t.Fatalf("Lookup() = %v, %v", ok, err)
	}
	if exp.TotalRuns != 6 || len(exp.Runs) != 6 {
		t.Fatalf("recorded %d runs (total %d), want 6", len(exp.Runs), exp.TotalRuns)
	}
	if exp.ModelFile != filepath.Join(dir, "virus.v2.nlogo") {
		t.Errorf("ModelFile = %q", exp.ModelFile)
	}
	want := ledger.Run{
		Number: 5,
		File:   filepath.Join(dir, "out", "sweep_5.xml"),
		Values: []ledger.Value{{Variable: "x", Value: "3"}},
	}
	if diff := cmp.Diff(want, exp.Runs[4]); diff != "" {
		t.Errorf("run 5 mismatch (-want +got):\n%s", diff)
	}
}

func TestReportError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantOut  string
	}{
		{
			name:     "path error with errno",
			err:      fmt.Errorf("reading model file: %w", &fs.PathError{Op: "open", Path: "/m.nlogo", Err: syscall.EACCES}),
			wantCode: int(syscall.EACCES),
			wantOut:  syscall.EACCES.Error() + " '/m.nlogo'\n",
		},
		{
			name:     "path error without errno",
			err:      &fs.PathError{Op: "write", Path: "/x", Err: errors.New("short write")},
			wantCode: exitFailure,
			wantOut:  "short write '/x'\n",
		},
		{
			name:     "usage",
			err:      &usageError{err: errors.New("nlogo_file is required")},
			wantCode: exitUsage,
			wantOut:  "Error: nlogo_file is required\nRun 'split-nlogo --help' for usage.\n",
		},
		{
			name:     "other",
			err:      errors.New("boom"),
			wantCode: exitFailure,
			wantOut:  "Error: boom\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if got := reportError(&buf, tt.err); got != tt.wantCode {
				t.Errorf("reportError() = %d, want %d", got, tt.wantCode)
			}
			if buf.String() != tt.wantOut {
				t.Errorf("output = %q, want %q", buf.String(), tt.wantOut)
			}
		})
	}
}

func TestNewVersionCmd(t *testing.T) {
	cmd := newVersionCmd()
	if cmd.Use != "version" {
		t.Errorf("Use = %q, want %q", cmd.Use, "version")
	}

	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"--json"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	var got map[string]string
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", buf.String(), err)
	}
	if got["version"] != version {
		t.Errorf("version = %q, want %q", got["version"], version)
	}
}
