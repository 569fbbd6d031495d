package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestKindForStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorKind
	}{
		{400, KindServerValidation},
		{422, KindServerValidation},
		{404, KindClient},
		{403, KindClient},
		{500, KindServer},
		{503, KindServer},
	}
	for _, tt := range tests {
		if got := KindForStatus(tt.status); got != tt.want {
			t.Errorf("KindForStatus(%d) = %s, want %s", tt.status, got, tt.want)
		}
	}
}

func TestAPIErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("list tasks: %w", NewNetworkError(cause))

	if !errors.Is(err, cause) {
		t.Fatal("expected network error to unwrap to its cause")
	}
	apiErr, ok := AsAPIError(err)
	if !ok {
		t.Fatal("expected AsAPIError to find the APIError")
	}
	if apiErr.Kind != KindNetwork {
		t.Fatalf("expected network kind, got %s", apiErr.Kind)
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"busy", ErrBusy, "already in progress"},
		{"network", NewNetworkError(errors.New("dial")), "Could not reach the server"},
		{"server", &APIError{Kind: KindServer, StatusCode: 500, Message: "boom"}, "failed to process"},
		{"verbatim", &APIError{Kind: KindServerValidation, StatusCode: 422, Message: "title too long"}, "title too long"},
		{"plain", errors.New("oops"), "oops"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UserMessage(tt.err)
			if tt.want == "" && got != "" {
				t.Fatalf("expected empty message, got %q", got)
			}
			if !strings.Contains(got, tt.want) {
				t.Fatalf("UserMessage() = %q, want substring %q", got, tt.want)
			}
		})
	}
}
