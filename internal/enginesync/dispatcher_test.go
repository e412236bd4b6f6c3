package enginesync

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/heimdex/timeline-agent/internal/timeline"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type failingSink struct {
	calls atomic.Int32
}

func (f *failingSink) Name() string { return "failing" }

func (f *failingSink) Deliver(context.Context, Message) error {
	f.calls.Add(1)
	return errors.New("renderer gone")
}

func clip(id string, offset float64) timeline.Clip {
	return timeline.Clip{ID: id, Kind: timeline.ClipAnimation, GroupID: "g1", Offset: offset, Length: 10}
}

func TestQueue_PublishAssignsSequence(t *testing.T) {
	q := NewQueue(QueueToEngine)
	q.Publish(AddClip{Clip: clip("a", 0)})
	q.Publish(UpdateClip{Clip: clip("a", 5)})
	q.Publish(nil)

	if q.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", q.Len())
	}
	msgs := q.Drain()
	if msgs[0].Seq != 1 || msgs[1].Seq != 2 {
		t.Errorf("seqs = %d,%d, want 1,2", msgs[0].Seq, msgs[1].Seq)
	}
	if msgs[0].QueueName != QueueToEngine {
		t.Errorf("QueueName = %q", msgs[0].QueueName)
	}
	if q.Len() != 0 {
		t.Error("Drain() left messages behind")
	}
}

func TestQueue_PublishDoesNotBlock(t *testing.T) {
	q := NewQueue(QueueToEngine)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10000; i++ {
			q.Publish(UpdateClip{Clip: clip("a", float64(i))})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Publish blocked with no consumer")
	}
	if q.Published() != 10000 {
		t.Errorf("Published() = %d, want 10000", q.Published())
	}
}

func TestDispatcher_FlushKeepsOrderWithoutCoalescing(t *testing.T) {
	q := NewQueue(QueueToEngine)
	d := NewDispatcher(q, testLogger())
	rec := NewRecorder("rec")
	d.Subscribe(rec)

	for i := 0; i < 5; i++ {
		q.Publish(UpdateClip{Clip: clip("a", float64(i))})
	}
	q.Publish(DeleteClip{Clip: clip("a", 4)})

	if n := d.Flush(context.Background()); n != 6 {
		t.Fatalf("Flush() = %d, want 6", n)
	}

	msgs := rec.Messages()
	if len(msgs) != 6 {
		t.Fatalf("recorded %d messages, want 6", len(msgs))
	}
	for i, m := range msgs[:5] {
		got := m.Data.(UpdateClip).Clip.Offset
		if got != float64(i) {
			t.Errorf("message %d offset = %v, want %v", i, got, i)
		}
	}
	if msgs[5].Action() != ActionDeleteClip {
		t.Errorf("last action = %s, want DELETE_CLIP", msgs[5].Action())
	}
}

func TestDispatcher_FailedSinkDoesNotStopOthers(t *testing.T) {
	q := NewQueue(QueueToEngine)
	d := NewDispatcher(q, testLogger())
	bad := &failingSink{}
	rec := NewRecorder("rec")
	d.Subscribe(bad)
	d.Subscribe(rec)

	q.Publish(Mute{GroupID: timeline.GlobalAudioGroupID})
	q.Publish(Unmute{GroupID: timeline.GlobalAudioGroupID})
	d.Flush(context.Background())

	if bad.calls.Load() != 2 {
		t.Errorf("failing sink calls = %d, want 2 (no retry)", bad.calls.Load())
	}
	if len(rec.Messages()) != 2 {
		t.Errorf("healthy sink got %d messages, want 2", len(rec.Messages()))
	}
	if d.Failures() != 2 {
		t.Errorf("Failures() = %d, want 2", d.Failures())
	}
}

func TestDispatcher_PauseHoldsMessages(t *testing.T) {
	q := NewQueue(QueueToEngine)
	d := NewDispatcher(q, testLogger())
	rec := NewRecorder("rec")
	d.Subscribe(rec)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Pause()
	go d.Start(ctx)

	q.Publish(AddKeyframe{Keyframe: timeline.Keyframe{ID: "k1", Offset: 1}})
	q.Publish(AddKeyframe{Keyframe: timeline.Keyframe{ID: "k2", Offset: 2}})
	time.Sleep(50 * time.Millisecond)

	if len(rec.Messages()) != 0 {
		t.Fatal("messages delivered while paused")
	}

	d.Resume(ctx)
	msgs := rec.Messages()
	if len(msgs) != 2 {
		t.Fatalf("after resume got %d messages, want 2", len(msgs))
	}
	if msgs[0].Data.(AddKeyframe).Keyframe.ID != "k1" {
		t.Error("resume delivered out of order")
	}
}

func TestDispatcher_StartDelivers(t *testing.T) {
	q := NewQueue(QueueToEngine)
	d := NewDispatcher(q, testLogger())
	rec := NewRecorder("rec")
	d.Subscribe(rec)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Start(ctx)

	q.Publish(ToggleCameraState{Enabled: false})

	deadline := time.Now().Add(2 * time.Second)
	for len(rec.Messages()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if len(rec.Messages()) != 1 {
		t.Fatalf("got %d messages, want 1", len(rec.Messages()))
	}
}

func TestDispatcher_Unsubscribe(t *testing.T) {
	q := NewQueue(QueueToEngine)
	d := NewDispatcher(q, testLogger())
	rec := NewRecorder("rec")
	unsubscribe := d.Subscribe(rec)

	q.Publish(ToggleCameraState{Enabled: true})
	d.Flush(context.Background())
	unsubscribe()
	q.Publish(ToggleCameraState{Enabled: false})
	d.Flush(context.Background())

	if len(rec.Messages()) != 1 {
		t.Errorf("got %d messages, want 1", len(rec.Messages()))
	}
	if d.SinkCount() != 0 {
		t.Errorf("SinkCount() = %d, want 0", d.SinkCount())
	}
	if d.Delivered() != 2 {
		t.Errorf("Delivered() = %d, want 2", d.Delivered())
	}
}

func TestTranslate_EveryAction(t *testing.T) {
	payloads := []Payload{
		AddClip{Clip: clip("a", 0)},
		UpdateClip{Clip: clip("a", 1)},
		DeleteClip{Clip: clip("a", 1)},
		AddKeyframe{Keyframe: timeline.Keyframe{ID: "k"}},
		UpdateKeyframe{Keyframe: timeline.Keyframe{ID: "k"}},
		DeleteKeyframe{Keyframe: timeline.Keyframe{ID: "k"}},
		Mute{GroupID: "g"},
		Unmute{GroupID: "g"},
		AddObject{GroupID: "g", ObjectID: "o", ObjectKind: timeline.ObjectCharacter},
		DeleteObject{GroupID: "g", ObjectID: "o"},
		ToggleCameraState{Enabled: true},
		ChangeCameraAspectRatio{AspectRatio: 1.5},
	}

	for i, p := range payloads {
		f, err := Translate(Message{Seq: uint64(i + 1), QueueName: QueueToEngine, Data: p})
		if err != nil {
			t.Errorf("Translate(%s) error = %v", p.Action(), err)
			continue
		}
		if f.Action != p.Action() {
			t.Errorf("frame action = %s, want %s", f.Action, p.Action())
		}
		if f.Data == nil {
			t.Errorf("Translate(%s) produced no data", p.Action())
		}
	}

	if _, err := Translate(Message{Seq: 99}); err == nil {
		t.Error("Translate() of an empty message should fail")
	}
}

func TestMessage_MarshalJSON(t *testing.T) {
	msg := Message{Seq: 3, QueueName: QueueToEngine, Data: Mute{GroupID: "g1", ObjectID: "o1"}}
	b, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded["action"] != "MUTE" || decoded["queueName"] != QueueToEngine {
		t.Errorf("unexpected envelope: %s", b)
	}
}
