package natskv

import "testing"

func TestKVKey(t *testing.T) {
	tests := map[string]string{
		"tasks":              "tasks",
		"tasks?page=2":       "tasks.page_2",
		"tasks?page=2&q=all": "tasks.page_2.q_all",
	}
	for in, want := range tests {
		if got := kvKey(in); got != want {
			t.Errorf("kvKey(%q) = %q, want %q", in, got, want)
		}
	}
}
