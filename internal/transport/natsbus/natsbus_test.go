package natsbus

import (
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/danmuck/packlink/internal/testutil/testlog"
)

func TestSubjectsMirror(t *testing.T) {
	testlog.Start(t)
	atx, arx := Subjects(Config{Link: "wand", Authoritative: true})
	stx, srx := Subjects(Config{Link: "wand"})
	if atx != srx || arx != stx {
		t.Fatalf("subjects do not mirror auth=(%s,%s) sub=(%s,%s)", atx, arx, stx, srx)
	}
	if atx != "packlink.link.wand.auth" {
		t.Fatalf("unexpected auth subject %q", atx)
	}
}

func TestAttachRejectsNilConn(t *testing.T) {
	testlog.Start(t)
	if _, err := Attach(nil, Config{Link: "wand"}); err == nil {
		t.Fatalf("expected nil connection error")
	}
}

// Requires a reachable server, e.g. PACKLINK_TEST_NATS=nats://127.0.0.1:4222.
func TestBusRoundTrip(t *testing.T) {
	testlog.Start(t)
	url := os.Getenv("PACKLINK_TEST_NATS")
	if url == "" {
		t.Skip("PACKLINK_TEST_NATS not set")
	}
	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer nc.Close()

	prefix := "packlink.test." + nats.NewInbox()[7:]
	auth, err := Attach(nc, Config{Prefix: prefix, Link: "wand", Authoritative: true})
	if err != nil {
		t.Fatalf("attach auth: %v", err)
	}
	defer auth.Close()
	sub, err := Attach(nc, Config{Prefix: prefix, Link: "wand"})
	if err != nil {
		t.Fatalf("attach sub: %v", err)
	}
	defer sub.Close()
	if err := nc.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	if err := sub.Send(1, []byte{0xC2, 0x01, 0, 0, 0xC3}); err != nil {
		t.Fatalf("send: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if d, ok := auth.Poll(); ok {
			if d.Tag != 1 || len(d.Payload) != 5 || d.Payload[1] != 0x01 {
				t.Fatalf("unexpected datagram: %+v", d)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for bus datagram")
}
