package pubsub

import (
	"context"
	"testing"

	"github.com/patternseek/ecommerce/pkg/config"
)

func TestResourceName(t *testing.T) {
	cases := []struct {
		name    string
		project string
		input   string
		want    string
	}{
		{name: "bare id", project: "shop", input: "ecommerce-transactions", want: "projects/shop/topics/ecommerce-transactions"},
		{name: "trimmed", project: " shop ", input: "  txns ", want: "projects/shop/topics/txns"},
		{name: "full name", project: "other", input: "projects/shop/topics/txns", want: "projects/shop/topics/txns"},
		{name: "empty", project: "shop", input: "", want: ""},
		{name: "no project", project: "", input: "txns", want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := resourceName(tc.project, "topics", tc.input); got != tc.want {
				t.Fatalf("resourceName() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNewClientRequiresProject(t *testing.T) {
	if _, err := NewClient(context.Background(), config.PubSubConfig{TransactionsTopic: "txns"}, nil); err != errProjectIDRequired {
		t.Fatalf("expected project id error, got %v", err)
	}
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	if c.Publisher("txns") != nil {
		t.Fatal("expected nil publisher")
	}
	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("expected ping error")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
}

func TestTopicNames(t *testing.T) {
	if got := topicNames(config.PubSubConfig{TransactionsTopic: " "}); len(got) != 0 {
		t.Fatalf("expected no topics, got %v", got)
	}
	if got := topicNames(config.PubSubConfig{TransactionsTopic: "txns"}); len(got) != 1 || got[0] != "txns" {
		t.Fatalf("unexpected topics %v", got)
	}
}
