package control

import (
	"strings"
	"testing"
	"time"

	"github.com/openpony/ponylog/internal/buffer"
	"github.com/openpony/ponylog/internal/quota"
	"github.com/openpony/ponylog/internal/session"
	"github.com/openpony/ponylog/internal/stats"
	"github.com/openpony/ponylog/internal/telemetry"
)

func startTestServer(t *testing.T) (*Server, *Client, Deps) {
	t.Helper()

	dir := t.TempDir()
	writer, err := session.NewWriter(session.Options{Dir: dir, Compression: false, FlushFrames: 16})
	if err != nil {
		t.Fatal(err)
	}
	quotaMgr, err := quota.New(quota.Options{
		Dir:           dir,
		HighWaterMark: 0.99,
		LowWaterMark:  0.75,
		Stat: func(string) (uint64, uint64, error) {
			return 1000, 900, nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	deps := Deps{
		Ring:   buffer.New(16),
		Cell:   telemetry.NewCell(),
		Writer: writer,
		Quota:  quotaMgr,
		GForce: stats.NewGForce(),
		Dir:    dir,
	}

	srv := NewServer(Options{Address: "127.0.0.1:0"}, deps)
	go srv.Run()
	t.Cleanup(srv.Shutdown)

	// Wait for the listener to bind.
	var client *Client
	deadline := time.Now().Add(2 * time.Second)
	for {
		addr := srv.Addr()
		if !strings.HasSuffix(addr, ":0") {
			client, err = Dial(addr, 2*time.Second)
			if err == nil {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not come up: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Cleanup(func() { client.Close() })

	return srv, client, deps
}

func TestServer_Status(t *testing.T) {
	_, client, deps := startTestServer(t)

	deps.Ring.Push(telemetry.Sample{GTotal: 1.0})

	resp, err := client.Do(Request{Op: OpStatus})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if !resp.OK || resp.Status == nil {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Status.Buffer.Count != 1 || resp.Status.Buffer.Capacity != 16 {
		t.Errorf("unexpected buffer status: %+v", resp.Status.Buffer)
	}
	if resp.Status.Session.Open {
		t.Error("no session should be open")
	}
	if resp.Status.Storage.UsagePct != 10 {
		t.Errorf("expected usage 10%%, got %v", resp.Status.Storage.UsagePct)
	}
}

func TestServer_SessionLifecycle(t *testing.T) {
	_, client, deps := startTestServer(t)

	resp, err := client.Do(Request{Op: OpStartSession, Name: "testlap"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !resp.OK || resp.Session == nil {
		t.Fatalf("start failed: %+v", resp)
	}
	if resp.Session.Name != "testlap.opl" {
		t.Errorf("unexpected session name %q", resp.Session.Name)
	}

	// Starting again while open is a contract violation.
	resp, err = client.Do(Request{Op: OpStartSession})
	if err != nil {
		t.Fatal(err)
	}
	if resp.OK {
		t.Error("second start should fail")
	}

	s := telemetry.Sample{TimestampUs: 1, GTotal: 1.2}
	deps.Writer.Log(&s)
	deps.GForce.Add(1.2)

	resp, err = client.Do(Request{Op: OpStopSession})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.OK || resp.Session == nil {
		t.Fatalf("stop failed: %+v", resp)
	}
	if resp.Session.Frames != 1 {
		t.Errorf("expected 1 frame, got %d", resp.Session.Frames)
	}
	if resp.Session.GForce.Count != 1 {
		t.Errorf("expected aggregate count=1, got %d", resp.Session.GForce.Count)
	}

	// Stopping while idle is also a contract violation.
	resp, _ = client.Do(Request{Op: OpStopSession})
	if resp.OK {
		t.Error("stop while idle should fail")
	}
}

func TestServer_ListAndDelete(t *testing.T) {
	_, client, _ := startTestServer(t)

	client.Do(Request{Op: OpStartSession, Name: "one"})
	client.Do(Request{Op: OpStopSession})
	client.Do(Request{Op: OpStartSession, Name: "two"})

	resp, err := client.Do(Request{Op: OpListSessions})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(resp.Sessions))
	}

	var activeCount int
	for _, s := range resp.Sessions {
		if s.Active {
			activeCount++
			if s.Name != "two.opl" {
				t.Errorf("wrong session marked active: %s", s.Name)
			}
		}
	}
	if activeCount != 1 {
		t.Errorf("expected exactly one active session, got %d", activeCount)
	}

	// The active session cannot be deleted.
	resp, _ = client.Do(Request{Op: OpDeleteSession, Name: "two.opl"})
	if resp.OK {
		t.Error("deleting the active session should fail")
	}

	// Path traversal is rejected.
	resp, _ = client.Do(Request{Op: OpDeleteSession, Name: "../one.opl"})
	if resp.OK {
		t.Error("path traversal should be rejected")
	}

	resp, err = client.Do(Request{Op: OpDeleteSession, Name: "one.opl"})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.OK {
		t.Fatalf("delete failed: %s", resp.Error)
	}

	resp, _ = client.Do(Request{Op: OpListSessions})
	if len(resp.Sessions) != 1 {
		t.Errorf("expected 1 session after delete, got %d", len(resp.Sessions))
	}
}

func TestServer_SnapshotAndReset(t *testing.T) {
	_, client, deps := startTestServer(t)

	// Before the first publish there is nothing to report.
	resp, err := client.Do(Request{Op: OpSnapshot})
	if err != nil {
		t.Fatal(err)
	}
	if resp.OK {
		t.Error("snapshot before first publish should fail")
	}

	deps.Cell.Publish(telemetry.Snapshot{GTotal: 1.23, Time: time.Now()})

	resp, err = client.Do(Request{Op: OpSnapshot})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.OK || resp.Snapshot == nil {
		t.Fatalf("snapshot failed: %+v", resp)
	}
	if resp.Snapshot.GTotal != 1.23 {
		t.Errorf("expected g=1.23, got %v", resp.Snapshot.GTotal)
	}

	deps.Ring.Push(telemetry.Sample{})
	deps.Ring.Pop()

	if resp, _ = client.Do(Request{Op: OpResetCounters}); !resp.OK {
		t.Fatalf("reset failed: %s", resp.Error)
	}
	if st := deps.Ring.Stats(); st.PushCount != 0 || st.PopCount != 0 {
		t.Errorf("counters not reset: %+v", st)
	}
}

func TestServer_UnknownOpAndGarbage(t *testing.T) {
	_, client, _ := startTestServer(t)

	resp, err := client.Do(Request{Op: "self-destruct"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.OK || !strings.Contains(resp.Error, "unknown operation") {
		t.Errorf("unexpected response: %+v", resp)
	}

	// The connection survives a bad request.
	resp, err = client.Do(Request{Op: OpStatus})
	if err != nil {
		t.Fatalf("connection should survive an error reply: %v", err)
	}
	if !resp.OK {
		t.Error("status should succeed after an error reply")
	}
}
