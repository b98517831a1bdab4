package bus

import (
	"context"
	"testing"

	"github.com/yungbote/noc-backend/internal/realtime"
)

func TestLocalBusForwards(t *testing.T) {
	b := NewLocalBus()
	var got []realtime.Message
	if err := b.StartForwarder(context.Background(), func(m realtime.Message) { got = append(got, m) }); err != nil {
		t.Fatalf("StartForwarder: %v", err)
	}
	if err := b.Publish(context.Background(), realtime.Message{Channel: "c", Event: realtime.EventAlertCreated}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(got) != 1 || got[0].Event != realtime.EventAlertCreated {
		t.Fatalf("forwarded: want=1 alert.created got=%v", got)
	}
}
