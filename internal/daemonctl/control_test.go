package daemonctl_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"lecturenote/internal/api"
	"lecturenote/internal/daemonctl"
)

type fakeProbe struct {
	up atomic.Bool
}

func (f *fakeProbe) Health(context.Context) (api.HealthResponse, error) {
	if f.up.Load() {
		return api.HealthResponse{Status: "ok"}, nil
	}
	return api.HealthResponse{}, fmt.Errorf("%w: dial refused", api.ErrUnavailable)
}

func TestReadPID(t *testing.T) {
	dir := t.TempDir()
	missing, err := daemonctl.ReadPID(filepath.Join(dir, "missing.pid"))
	if err != nil || missing != 0 {
		t.Fatalf("missing pid file: got %d, %v", missing, err)
	}

	good := filepath.Join(dir, "good.pid")
	if err := os.WriteFile(good, []byte("4242\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if pid, err := daemonctl.ReadPID(good); err != nil || pid != 4242 {
		t.Fatalf("good pid file: got %d, %v", pid, err)
	}

	bad := filepath.Join(dir, "bad.pid")
	if err := os.WriteFile(bad, []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := daemonctl.ReadPID(bad); err == nil {
		t.Fatal("expected malformed pid error")
	}
}

func TestEnsureStartedSkipsLaunchWhenHealthy(t *testing.T) {
	probe := &fakeProbe{}
	probe.up.Store(true)
	res, err := daemonctl.EnsureStarted(context.Background(), probe, "", daemonctl.LaunchOptions{}, time.Second)
	if err != nil {
		t.Fatalf("EnsureStarted: %v", err)
	}
	if res.State != daemonctl.StartStateAlreadyRunning {
		t.Fatalf("expected already running, got %+v", res)
	}
}

func TestEnsureStartedRequiresExecutable(t *testing.T) {
	_, err := daemonctl.EnsureStarted(context.Background(), &fakeProbe{}, "", daemonctl.LaunchOptions{}, time.Second)
	if err == nil {
		t.Fatal("expected launch error for empty executable")
	}
}

func TestStopReportsNotRunning(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "lecturenote.pid")
	_, err := daemonctl.Stop(context.Background(), &fakeProbe{}, pidPath, time.Second)
	if !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestStopRemovesStalePIDFile(t *testing.T) {
	cmd := exec.Command("true")
	if err := cmd.Run(); err != nil {
		t.Skipf("true unavailable: %v", err)
	}
	pidPath := filepath.Join(t.TempDir(), "lecturenote.pid")
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(cmd.Process.Pid)), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := daemonctl.Stop(context.Background(), &fakeProbe{}, pidPath, time.Second)
	if !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
	if _, statErr := os.Stat(pidPath); !os.IsNotExist(statErr) {
		t.Fatalf("expected stale pid file removed, stat err %v", statErr)
	}
}

func TestStopTerminatesRecordedProcess(t *testing.T) {
	cmd := exec.Command("sleep", "30")
	if err := cmd.Start(); err != nil {
		t.Skipf("sleep unavailable: %v", err)
	}
	exited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(exited)
	}()
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		<-exited
	})

	pidPath := filepath.Join(t.TempDir(), "lecturenote.pid")
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(cmd.Process.Pid)+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	probe := &fakeProbe{}
	probe.up.Store(true)
	res, err := daemonctl.Stop(context.Background(), probe, pidPath, 5*time.Second)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if res.PID != cmd.Process.Pid || res.ForcedKill {
		t.Fatalf("unexpected stop result %+v", res)
	}
	select {
	case <-exited:
	case <-time.After(5 * time.Second):
		t.Fatal("process still running after Stop")
	}
}
