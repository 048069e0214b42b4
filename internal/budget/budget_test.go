package budget

import (
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
)

func Test_Estimate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"a", 1},        // < 4 chars → 1
		{"abcd", 1},     // exactly 4 chars → 1
		{"abcde", 1},    // 5 chars → 1
		{"abcdefgh", 2}, // 8 chars → 2
		{strings.Repeat("x", 400), 100},
	}
	for _, tc := range cases {
		got := Estimate(tc.input)
		if got != tc.want {
			t.Errorf("Estimate(%q) = %d, want %d", tc.input, got, tc.want)
		}
	}
}

func Test_EstimateMessages(t *testing.T) {
	t.Parallel()
	msgs := []*schema.Message{
		schema.UserMessage("hello world"), // 4 overhead + 1 (role) + 2 (content) = 7
		schema.UserMessage("hello world"),
	}
	got := EstimateMessages(msgs)
	// Each message: 4 overhead + Estimate("user")=1 + Estimate("hello world")=2 = 7
	// Two messages: 14
	if got != 14 {
		t.Errorf("EstimateMessages = %d, want 14", got)
	}
}

func Test_Check(t *testing.T) {
	t.Parallel()

	small := []*schema.Message{schema.UserMessage("What is an agent?")}
	large := []*schema.Message{schema.UserMessage(strings.Repeat("x", 4*7000))}

	cases := []struct {
		name     string
		msgs     []*schema.Message
		limit    int
		wantOver bool
		wantLim  int
	}{
		{"small under default", small, 0, false, DefaultMaxContextTokens},
		{"large over default", large, 0, true, DefaultMaxContextTokens},
		{"small over tiny limit", small, 3, true, 3},
		{"large under explicit limit", large, 10000, false, 10000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			u := Check(tc.msgs, tc.limit)
			if u.Over() != tc.wantOver {
				t.Errorf("Over() = %v, want %v (tokens=%d limit=%d)", u.Over(), tc.wantOver, u.Tokens, u.Limit)
			}
			if u.Limit != tc.wantLim {
				t.Errorf("Limit = %d, want %d", u.Limit, tc.wantLim)
			}
			if u.Tokens != EstimateMessages(tc.msgs) {
				t.Errorf("Tokens = %d, want %d", u.Tokens, EstimateMessages(tc.msgs))
			}
		})
	}
}

func Test_Usage_ZeroLimitNeverOver(t *testing.T) {
	t.Parallel()
	if (Usage{Tokens: 1 << 20}).Over() {
		t.Error("a zero limit must not report over")
	}
}
