package ai

import (
	"errors"
	"testing"
)

func TestIsRetryablePartition(t *testing.T) {
	cases := []struct {
		ft   FailureType
		want bool
	}{
		{FailureRateLimit, true},
		{FailureNetwork, true},
		{FailureTimeout, true},
		{FailureUnknown, true},
		{FailureValidation, false},
		{FailureAuthentication, false},
	}
	for _, tc := range cases {
		if got := IsRetryable(tc.ft); got != tc.want {
			t.Errorf("IsRetryable(%s) = %v, want %v", tc.ft, got, tc.want)
		}
	}
}

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		status int
		want   FailureType
	}{
		{429, FailureRateLimit},
		{401, FailureAuthentication},
		{403, FailureAuthentication},
		{400, FailureValidation},
		{422, FailureValidation},
		{408, FailureTimeout},
		{504, FailureTimeout},
		{500, FailureNetwork},
		{503, FailureNetwork},
		{200, FailureUnknown},
		{0, FailureUnknown},
	}
	for _, tc := range cases {
		if got := ClassifyStatus(tc.status); got != tc.want {
			t.Errorf("ClassifyStatus(%d) = %s, want %s", tc.status, got, tc.want)
		}
	}
}

func TestFailureTypeOf(t *testing.T) {
	err := NewProviderError("anthropic", FailureRateLimit, "rate limited", nil)
	if got := FailureTypeOf(err); got != FailureRateLimit {
		t.Errorf("FailureTypeOf() = %s, want RATE_LIMIT", got)
	}
	if got := FailureTypeOf(errors.New("plain error")); got != FailureUnknown {
		t.Errorf("FailureTypeOf(plain error) = %s, want UNKNOWN", got)
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	Register("test-dup", func(cfg ProviderConfig) (Provider, error) { return nil, nil })
	defer Unregister("test-dup")

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("Register() did not panic on duplicate id")
		}
	}()
	Register("test-dup", func(cfg ProviderConfig) (Provider, error) { return nil, nil })
}

func TestCreateUnregistered(t *testing.T) {
	_, err := Create("no-such-provider", ProviderConfig{})
	if err == nil {
		t.Fatal("Create() succeeded for unregistered provider")
	}
	if FailureTypeOf(err) != FailureValidation {
		t.Errorf("unregistered provider error classified as %s, want VALIDATION_ERROR", FailureTypeOf(err))
	}
}

func TestParseReviewJSON(t *testing.T) {
	raw := `{
		"summary": "Looks mostly fine.",
		"issues": [
			{"file_path": "main.go", "line": 12, "severity": "minor", "category": "style", "title": "Unused variable", "description": "x is never read"}
		]
	}`
	result, err := ParseReviewJSON(raw)
	if err != nil {
		t.Fatalf("ParseReviewJSON() error: %v", err)
	}
	if !result.Success {
		t.Error("Success = false, want true")
	}
	if result.Summary != "Looks mostly fine." {
		t.Errorf("Summary = %q", result.Summary)
	}
	if len(result.Issues) != 1 || result.Issues[0].FilePath != "main.go" {
		t.Errorf("Issues = %+v", result.Issues)
	}
}

func TestParseReviewJSONStripsFencing(t *testing.T) {
	raw := "```json\n{\"summary\": \"ok\", \"issues\": []}\n```"
	result, err := ParseReviewJSON(raw)
	if err != nil {
		t.Fatalf("ParseReviewJSON() error: %v", err)
	}
	if result.Summary != "ok" || len(result.Issues) != 0 {
		t.Errorf("result = %+v", result)
	}
}

func TestParseReviewJSONInvalid(t *testing.T) {
	if _, err := ParseReviewJSON("not json at all"); err == nil {
		t.Fatal("ParseReviewJSON() accepted invalid input")
	}
}
