package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func TestPubSubRefreshPublisherPublishesMessage(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	defer func() {
		_ = client.Close()
	}()

	if _, err := client.CreateTopic(ctx, "market-data-refresh"); err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	emittedAt := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)
	publisher, err := NewPubSubRefreshPublisher(client, "market-data-refresh",
		WithPublisherClock(func() time.Time { return emittedAt }),
	)
	if err != nil {
		t.Fatalf("NewPubSubRefreshPublisher: %v", err)
	}
	defer publisher.Stop()

	fetchedAt := emittedAt.Add(-time.Minute)
	msg := PriceRefreshMessage{
		Provider:  "gold_price",
		Value:     7512.4,
		Source:    "live",
		FetchedAt: fetchedAt,
	}

	if err := publisher.PublishPriceRefresh(ctx, msg); err != nil {
		t.Fatalf("PublishPriceRefresh: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload PriceRefreshMessage
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Provider != "gold_price" || payload.Value != 7512.4 {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if payload.EventID == "" {
		t.Fatalf("expected an event id to be stamped")
	}
	if !payload.EmittedAt.Equal(emittedAt) {
		t.Fatalf("expected emittedAt from the injected clock, got %v", payload.EmittedAt)
	}
	if attr := messages[0].Attributes["event"]; attr != "market_data.refreshed" {
		t.Fatalf("expected event attribute, got %q", attr)
	}
	if attr := messages[0].Attributes["provider"]; attr != "gold_price" {
		t.Fatalf("expected provider attribute, got %q", attr)
	}
}

func TestNewPubSubRefreshPublisherValidatesInputs(t *testing.T) {
	if _, err := NewPubSubRefreshPublisher(nil, "market-data-refresh"); err == nil {
		t.Fatalf("expected error for a nil client")
	}
}

func TestRefreshPublisherFuncNilIsNoOp(t *testing.T) {
	var fn RefreshPublisherFunc
	if err := fn.PublishPriceRefresh(context.Background(), PriceRefreshMessage{}); err != nil {
		t.Fatalf("nil publisher func must be a no-op, got %v", err)
	}
}
