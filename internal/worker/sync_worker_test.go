package worker

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"bankfees/internal/amqp"
	"bankfees/internal/core"
	applog "bankfees/internal/log"
	"bankfees/internal/storage"
)

type fakeUpstream struct {
	mu    sync.Mutex
	banks []core.Bank
	err   error
	calls int
}

func (f *fakeUpstream) ListBanks(context.Context) ([]core.Bank, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.banks, f.err
}

func (f *fakeUpstream) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeMirror struct {
	banks      []core.Bank
	replaced   int
	replaceErr error
	runs       []string
	recordErr  error
}

func (m *fakeMirror) ReplaceBanks(_ context.Context, banks []core.Bank) error {
	if m.replaceErr != nil {
		return m.replaceErr
	}
	m.replaced++
	m.banks = banks
	return nil
}

func (m *fakeMirror) RecordSync(_ context.Context, sourceName, trigger string, count int) error {
	m.runs = append(m.runs, sourceName+"/"+trigger)
	return m.recordErr
}

var twoBanks = []core.Bank{
	{ID: "sonali", Name: "Sonali Bank", AccountTypes: []core.AccountFees{{Type: core.Savings, AccountMaintenanceFee: 600}}},
	{ID: "brac", Name: "BRAC Bank"},
}

func TestSync(t *testing.T) {
	tests := []struct {
		name         string
		upstream     *fakeUpstream
		mirror       *fakeMirror
		wantN        int
		wantErr      bool
		wantReplaced int
		wantRuns     int
	}{
		{"mirrors banks", &fakeUpstream{banks: twoBanks}, &fakeMirror{}, 2, false, 1, 1},
		{"empty upstream keeps mirror", &fakeUpstream{banks: []core.Bank{}}, &fakeMirror{banks: twoBanks}, 0, false, 0, 0},
		{"upstream failure", &fakeUpstream{err: errors.New("timeout")}, &fakeMirror{}, 0, true, 0, 0},
		{"write failure", &fakeUpstream{banks: twoBanks}, &fakeMirror{replaceErr: errors.New("disk full")}, 0, true, 0, 0},
		{"audit failure is not fatal", &fakeUpstream{banks: twoBanks}, &fakeMirror{recordErr: errors.New("locked")}, 2, false, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewSyncWorker(tt.upstream, tt.mirror, "remote", applog.Discard(), nil)
			n, err := w.Sync(context.Background(), TriggerInterval)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if n != tt.wantN {
				t.Errorf("n = %d, want %d", n, tt.wantN)
			}
			if tt.mirror.replaced != tt.wantReplaced || len(tt.mirror.runs) != tt.wantRuns {
				t.Errorf("replaced=%d runs=%v", tt.mirror.replaced, tt.mirror.runs)
			}
		})
	}
}

func TestSyncEmptyUpstreamPreservesMirror(t *testing.T) {
	mirror := &fakeMirror{banks: twoBanks}
	w := NewSyncWorker(&fakeUpstream{}, mirror, "sheets", applog.Discard(), nil)
	if _, err := w.Sync(context.Background(), TriggerStartup); err != nil {
		t.Fatal(err)
	}
	if len(mirror.banks) != 2 {
		t.Fatalf("mirror was wiped: %v", mirror.banks)
	}
}

func TestHandleRefreshMessage(t *testing.T) {
	mirror := &fakeMirror{}
	w := NewSyncWorker(&fakeUpstream{banks: twoBanks}, mirror, "remote", applog.Discard(), nil)

	if err := w.HandleRefreshMessage(context.Background(), amqp.NewRefreshMessage("api")); err != nil {
		t.Fatal(err)
	}
	if len(mirror.runs) != 1 || mirror.runs[0] != "remote/amqp" {
		t.Fatalf("unexpected runs %v", mirror.runs)
	}

	failing := NewSyncWorker(&fakeUpstream{err: errors.New("down")}, &fakeMirror{}, "remote", applog.Discard(), nil)
	if err := failing.HandleRefreshMessage(context.Background(), amqp.NewRefreshMessage("api")); err == nil {
		t.Fatal("a failed sync must be reported so the message is requeued")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	up := &fakeUpstream{banks: twoBanks}
	w := NewSyncWorker(up, &fakeMirror{}, "remote", applog.Discard(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for up.Calls() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if up.Calls() < 2 {
		t.Fatalf("expected periodic syncs, got %d", up.Calls())
	}
}

func TestSyncIntoSQLiteMirror(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "mirror.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer repo.Close()

	ctx := context.Background()
	w := NewSyncWorker(&fakeUpstream{banks: twoBanks}, repo, "remote", applog.Discard(), nil)
	if err := w.StartupSync(ctx); err != nil {
		t.Fatal(err)
	}

	banks, err := repo.ListBanks(ctx)
	if err != nil || len(banks) != 2 {
		t.Fatalf("mirror holds %d banks, err=%v", len(banks), err)
	}
	b, err := repo.GetBank(ctx, "sonali")
	if err != nil || len(b.AccountTypes) != 1 || b.AccountTypes[0].AccountMaintenanceFee != 600 {
		t.Fatalf("unexpected mirrored bank %+v err=%v", b, err)
	}

	run, ok, err := repo.LastSync(ctx)
	if err != nil || !ok || run.Trigger != TriggerStartup || run.BankCount != 2 || run.Source != "remote" {
		t.Fatalf("unexpected sync run %+v ok=%v err=%v", run, ok, err)
	}
}
