package link

import (
	"time"

	logs "github.com/danmuck/packlink/internal/logging"
	"github.com/danmuck/packlink/internal/observability"
	"github.com/danmuck/packlink/internal/protocol"
	"github.com/danmuck/packlink/internal/protocol/catalog"
	"github.com/danmuck/packlink/internal/state"
)

type syncPhase uint8

const (
	phaseStart syncPhase = iota
	phaseItems
	phaseReconcile
	phaseEnd
)

// synchronizer streams the source state to a subordinate:
// SYNC_START, one item per piece of state, SYNC_END. Items are read from
// the live source at emission time; before SYNC_END any item whose value
// moved since it was emitted goes out again, so the shadow matches the
// source when SYNC_END leaves.
type synchronizer struct {
	l       *Link
	phase   syncPhase
	cursor  int
	emitted map[int]state.Item
	snap    protocol.SyncSnapshot
	sent    int
}

func newSynchronizer(l *Link) *synchronizer {
	observability.RecordSyncRun(l.node, string(l.id))
	logs.Infof("link.synchronizer.start node=%s link=%s snapshot=%v burst=%d",
		l.node, l.id, l.cat.SnapshotDump, l.cfg.SyncBurst)
	return &synchronizer{l: l, emitted: make(map[int]state.Item)}
}

// items returns the dump for this link: the live source filtered to what
// the catalog can express.
func (s *synchronizer) items() []state.Item {
	all := s.l.st.DumpItems()
	out := all[:0]
	for _, it := range all {
		if it.Volume {
			if s.l.cat.CarriesShape(protocol.ShapeData) {
				out = append(out, it)
			}
			continue
		}
		if s.l.cat.Has(it.Action) {
			out = append(out, it)
		}
	}
	return out
}

// step emits up to SyncBurst messages (all when 0). A failed send leaves
// the cursor where it was for the next tick.
func (s *synchronizer) step(now time.Time) {
	budget := s.l.cfg.SyncBurst
	spend := func() bool {
		if budget == 0 {
			return true
		}
		if s.sent >= budget {
			return false
		}
		s.sent++
		return true
	}
	s.sent = 0

	for {
		switch s.phase {
		case phaseStart:
			if !spend() {
				return
			}
			arg := uint16(0)
			if s.l.bootSequence {
				arg = 1
			}
			if s.l.sendAction(catalog.ActionSyncStart, arg) != nil {
				return
			}
			s.phase = phaseItems

		case phaseItems:
			if s.l.cat.SnapshotDump {
				if !spend() {
					return
				}
				snap := s.l.st.Snapshot()
				if s.l.sendBody(snap) != nil {
					return
				}
				s.snap = snap
				s.phase = phaseReconcile
				continue
			}
			items := s.items()
			if s.cursor >= len(items) {
				s.phase = phaseReconcile
				continue
			}
			if !spend() {
				return
			}
			it := items[s.cursor]
			if s.emit(it) != nil {
				return
			}
			s.cursor++

		case phaseReconcile:
			if s.l.cat.SnapshotDump {
				current := s.l.st.Snapshot()
				if current != s.snap {
					if !spend() {
						return
					}
					if s.l.sendBody(current) != nil {
						return
					}
					s.snap = current
				}
				s.phase = phaseEnd
				continue
			}
			stale, ok := s.nextStale()
			if !ok {
				s.phase = phaseEnd
				continue
			}
			if !spend() {
				return
			}
			if s.emit(stale) != nil {
				return
			}

		case phaseEnd:
			// a change may have landed between ticks
			if s.l.cat.SnapshotDump && s.l.st.Snapshot() != s.snap {
				s.phase = phaseReconcile
				continue
			}
			if !s.l.cat.SnapshotDump {
				if _, ok := s.nextStale(); ok {
					s.phase = phaseReconcile
					continue
				}
			}
			if !spend() {
				return
			}
			if s.l.sendAction(catalog.ActionSyncEnd, 0) != nil {
				return
			}
			logs.Infof("link.synchronizer.done node=%s link=%s items=%d", s.l.node, s.l.id, len(s.emitted))
			s.l.transition(now, StateConnected, "sync_end_sent")
			return
		}
	}
}

func (s *synchronizer) emit(it state.Item) error {
	var err error
	if it.Volume {
		err = s.l.sendBody(protocol.DataMsg{ID: s.l.cat.VolumeID, Fields: it.Fields})
	} else {
		err = s.l.sendAction(it.Action, it.Arg)
	}
	if err == nil {
		s.emitted[it.Key()] = it
	}
	return err
}

func (s *synchronizer) nextStale() (state.Item, bool) {
	for _, it := range s.items() {
		prev, ok := s.emitted[it.Key()]
		if !ok || prev != it {
			return it, true
		}
	}
	return state.Item{}, false
}
