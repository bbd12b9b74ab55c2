package link

import (
	"testing"

	"github.com/danmuck/packlink/internal/protocol/catalog"
	"github.com/danmuck/packlink/internal/testutil/testlog"
)

func TestHandlerTableRoutesByAction(t *testing.T) {
	testlog.Start(t)
	table := NewHandlerTable()
	var fired []uint16
	table.Register(catalog.ActionFiringStart, func(link LinkID, arg uint16) bool {
		if link != "wand" {
			t.Fatalf("unexpected link %s", link)
		}
		fired = append(fired, arg)
		return false
	})
	if table.Handle("wand", catalog.ActionFiringStart, 3) {
		t.Fatalf("firing must not satisfy a milestone")
	}
	if table.Handle("wand", catalog.ActionVent, 0) {
		t.Fatalf("unregistered action must be a no-op")
	}
	if len(fired) != 1 || fired[0] != 3 {
		t.Fatalf("handler calls got=%v", fired)
	}
}

func TestHandlerTableSyncEndDefaultsToMilestone(t *testing.T) {
	testlog.Start(t)
	table := NewHandlerTable()
	if !table.Handle("belt", catalog.ActionSyncEnd, 0) {
		t.Fatalf("unregistered SYNC_END must satisfy the milestone")
	}
	table.Register(catalog.ActionSyncEnd, func(LinkID, uint16) bool { return false })
	if table.Handle("belt", catalog.ActionSyncEnd, 0) {
		t.Fatalf("registered handler result ignored")
	}
	table.Register(catalog.ActionSyncEnd, nil)
	if len(table.Registered()) != 0 {
		t.Fatalf("nil registration must remove the handler")
	}
}
