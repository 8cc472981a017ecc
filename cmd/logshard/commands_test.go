package main

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"logshard/internal/ledger"
	"logshard/internal/rollover"
	"logshard/internal/testsupport"
)

func TestWhitelistCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "whitelist.txt")
	testsupport.WriteLines(t, path, "# hosts", "10.0.0.1", "", "bogus")

	out, _, err := runCLI(t, []string{"whitelist", "check", path}, "")
	if err != nil {
		t.Fatalf("whitelist check: %v", err)
	}
	requireContains(t, out, "10.0.0.1")
	requireContains(t, out, "bogus")
	requireContains(t, out, "2 entries, 1 invalid")

	if _, _, err := runCLI(t, []string{"whitelist", "check", filepath.Join(t.TempDir(), "missing")}, ""); err == nil {
		t.Fatal("expected missing whitelist to fail")
	}
}

func TestLedgerListsShipments(t *testing.T) {
	env := setupCLITestEnv(t)
	dbPath := filepath.Join(env.baseDir, "ledger.db")
	store := testsupport.MustOpenLedger(t, dbPath)
	if _, err := store.Record(context.Background(), ledger.Shipment{
		LogName:     "2024-01-01.log",
		StartOffset: 0,
		EndOffset:   42,
		PayloadSize: 42,
		ClientIP:    "10.9.8.7",
		RequestID:   "0123456789abcdef",
	}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	out, _, err := runCLI(t, []string{"ledger", "--ledger", dbPath}, env.configPath)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	requireContains(t, out, "2024-01-01.log")
	requireContains(t, out, "10.9.8.7")
	requireContains(t, out, "01234567")

	if _, _, err := runCLI(t, []string{"ledger"}, env.configPath); err == nil {
		t.Fatal("expected error without a configured ledger")
	}
}

func TestArgumentValidation(t *testing.T) {
	env := setupCLITestEnv(t)

	cases := [][]string{
		{"server", "not-a-port"},
		{"server", "70000"},
		{"client", "only-host"},
		{"client", "127.0.0.1", "port"},
		{"server", "8080", "--offset", "-1"},
	}
	for _, args := range cases {
		if _, _, err := runCLI(t, args, env.configPath); err == nil {
			t.Fatalf("expected %v to fail", args)
		}
	}
}

func TestServerAndClientReplicate(t *testing.T) {
	env := setupCLITestEnv(t)
	port := freePort(t)
	writeTestConfig(t, env, port)

	logName := rollover.DailyName(rollover.LogSuffix, time.Now())
	testsupport.AppendString(t, filepath.Join(env.logDir, logName), "alpha\nbeta\npartial")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverDone := make(chan error, 1)
	go func() {
		_, _, err := runCLIContext(ctx, []string{"server", strconv.Itoa(port)}, env.configPath)
		serverDone <- err
	}()

	marker := filepath.Join(env.baseDir, "created")
	clientDone := make(chan error, 1)
	go func() {
		_, _, err := runCLIContext(ctx, []string{"client", "127.0.0.1", strconv.Itoa(port), "-c", "echo %s > " + marker}, env.configPath)
		clientDone <- err
	}()

	replica := filepath.Join(env.localDir, logName)
	deadline := time.Now().Add(10 * time.Second)
	for testsupport.ReadString(t, replica) != "alpha\nbeta\n" {
		if time.Now().After(deadline) {
			t.Fatalf("replica never caught up: %q", testsupport.ReadString(t, replica))
		}
		time.Sleep(50 * time.Millisecond)
	}
	for testsupport.ReadString(t, marker) != replica+"\n" {
		if time.Now().After(deadline) {
			t.Fatalf("new-file command never ran: %q", testsupport.ReadString(t, marker))
		}
		time.Sleep(50 * time.Millisecond)
	}

	accessLog := filepath.Join(env.accessDir, rollover.DailyName(rollover.AccessLogSuffix, time.Now()))
	if _, err := os.Stat(accessLog); err != nil {
		t.Fatalf("expected access log: %v", err)
	}

	cancel()
	for name, done := range map[string]chan error{"server": serverDone, "client": clientDone} {
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("%s: %v", name, err)
			}
		case <-time.After(10 * time.Second):
			t.Fatalf("%s did not stop", name)
		}
	}
}
