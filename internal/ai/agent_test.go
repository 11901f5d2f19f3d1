// internal/ai/agent_test.go
package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeGenerator struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string, _ float64, _ int) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

type fakeFetcher struct {
	pages     map[string]string
	redirects map[string]string
}

func (f *fakeFetcher) FetchPage(_ context.Context, url string) (string, string, error) {
	html, ok := f.pages[url]
	if !ok {
		return "", "", errors.New("no such page")
	}
	return html, url, nil
}

func (f *fakeFetcher) FollowRedirects(_ context.Context, url string) (string, error) {
	if final, ok := f.redirects[url]; ok {
		return final, nil
	}
	return url, nil
}

func TestAgentUnavailable(t *testing.T) {
	agent := NewAgent(AgentOptions{})

	if agent.Available() {
		t.Fatal("agent with no generator should not be available")
	}
	if _, err := agent.Analyze(context.Background(), "https://short.example/x", "<html></html>"); err == nil {
		t.Fatal("expected error from unavailable agent")
	}
}

func TestAnalyzeParsesCleanJSON(t *testing.T) {
	gen := &fakeGenerator{response: `{
		"protection_type": "countdown_timer",
		"confidence": 85,
		"key_elements": ["#timer"],
		"javascript_required": true,
		"bypass_strategy": ["wait for countdown", "extract revealed link"],
		"estimated_difficulty": "medium",
		"recommended_method": "countdown_timer"
	}`}
	agent := NewAgent(AgentOptions{Generator: gen, Model: "test-model"})

	cls, err := agent.Analyze(context.Background(), "https://short.example/x", "<html></html>")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if cls.ProtectionType != "countdown_timer" {
		t.Errorf("protection_type = %q, want countdown_timer", cls.ProtectionType)
	}
	if cls.Confidence != 85 {
		t.Errorf("confidence = %v, want 85", cls.Confidence)
	}
	if !cls.JavaScriptRequired {
		t.Error("javascript_required should be true")
	}
	if agent.Stats().TotalAnalyses != 1 {
		t.Errorf("total_analyses = %d, want 1", agent.Stats().TotalAnalyses)
	}
}

func TestAnalyzeStripsMarkdownFences(t *testing.T) {
	gen := &fakeGenerator{response: "```json\n" + `{"protection_type":"cloudflare_protection","confidence":70,"javascript_required":true,"bypass_strategy":["retry with browser headers"]}` + "\n```"}
	agent := NewAgent(AgentOptions{Generator: gen})

	cls, err := agent.Analyze(context.Background(), "https://short.example/x", "<html></html>")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if cls.ProtectionType != "cloudflare_protection" {
		t.Errorf("protection_type = %q", cls.ProtectionType)
	}
}

func TestAnalyzeExtractsEmbeddedJSON(t *testing.T) {
	gen := &fakeGenerator{response: `Sure, here is the analysis:
{"protection_type":"redirect_chain","confidence":60,"javascript_required":false,"bypass_strategy":["follow redirects"]}
Let me know if you need more detail.`}
	agent := NewAgent(AgentOptions{Generator: gen})

	cls, err := agent.Analyze(context.Background(), "https://short.example/x", "<html></html>")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if cls.ProtectionType != "redirect_chain" {
		t.Errorf("protection_type = %q", cls.ProtectionType)
	}
}

func TestAnalyzeRejectsIncompleteResponse(t *testing.T) {
	gen := &fakeGenerator{response: `{"confidence": 50}`}
	agent := NewAgent(AgentOptions{Generator: gen})

	if _, err := agent.Analyze(context.Background(), "https://short.example/x", "<html></html>"); err == nil {
		t.Fatal("expected error for response missing required fields")
	}
}

func TestAnalyzeTruncatesLargePages(t *testing.T) {
	gen := &fakeGenerator{response: `{"protection_type":"dynamic_loading","confidence":50,"javascript_required":true,"bypass_strategy":["fetch ajax endpoint"]}`}
	agent := NewAgent(AgentOptions{Generator: gen})

	big := strings.Repeat("x", 40000)
	if _, err := agent.Analyze(context.Background(), "https://short.example/x", big); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(gen.prompts) != 1 {
		t.Fatalf("expected one prompt, got %d", len(gen.prompts))
	}
	if len(gen.prompts[0]) > 20000 {
		t.Errorf("prompt not truncated: %d bytes", len(gen.prompts[0]))
	}
}

func TestSynthesizeValidatesOps(t *testing.T) {
	cls := &Classification{ProtectionType: "base64_encoded", BypassStrategy: []string{"decode the data attribute"}}

	tests := []struct {
		name     string
		response string
		wantErr  bool
	}{
		{
			name:     "valid plan",
			response: `{"protection_type":"base64_encoded","steps":[{"op":"fetch"},{"op":"select","selector":"[data-url]","attr":"data-url"},{"op":"decode_b64"}]}`,
		},
		{
			name:     "unknown op rejected",
			response: `{"steps":[{"op":"fetch"},{"op":"eval_js"}]}`,
			wantErr:  true,
		},
		{
			name:     "empty plan rejected",
			response: `{"steps":[]}`,
			wantErr:  true,
		},
		{
			name:     "oversized plan rejected",
			response: `{"steps":[{"op":"fetch"},{"op":"fetch"},{"op":"fetch"},{"op":"fetch"},{"op":"fetch"},{"op":"fetch"},{"op":"fetch"}]}`,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agent := NewAgent(AgentOptions{Generator: &fakeGenerator{response: tt.response}})
			_, err := agent.Synthesize(context.Background(), "https://short.example/x", cls)
			if tt.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("Synthesize failed: %v", err)
			}
		})
	}
}

func TestExecuteDisabledByDefault(t *testing.T) {
	agent := NewAgent(AgentOptions{Generator: &fakeGenerator{}, Fetcher: &fakeFetcher{}})
	strat := &Strategy{Steps: []Step{{Op: OpFetch}}}

	if _, err := agent.Execute(context.Background(), "https://short.example/x", strat); err == nil {
		t.Fatal("execution should be refused when not enabled")
	}
}

func TestExecuteSelectAndDecode(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://short.example/x": `<html><body><div data-url="aHR0cDovL2Nkbi5leGFtcGxlLmNvbS9maWxlLnppcA=="></div></body></html>`,
	}}
	agent := NewAgent(AgentOptions{
		Generator:         &fakeGenerator{},
		Fetcher:           fetcher,
		ExecuteStrategies: true,
	})

	strat := &Strategy{Steps: []Step{
		{Op: OpFetch},
		{Op: OpSelect, Selector: "[data-url]", Attr: "data-url"},
		{Op: OpDecodeB64},
	}}

	got, err := agent.Execute(context.Background(), "https://short.example/x", strat)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got != "http://cdn.example.com/file.zip" {
		t.Errorf("resolved = %q, want http://cdn.example.com/file.zip", got)
	}
}

func TestExecuteFollowRedirects(t *testing.T) {
	fetcher := &fakeFetcher{redirects: map[string]string{
		"https://short.example/x": "http://files.example.com/get/abc",
	}}
	agent := NewAgent(AgentOptions{
		Generator:         &fakeGenerator{},
		Fetcher:           fetcher,
		ExecuteStrategies: true,
	})

	strat := &Strategy{Steps: []Step{{Op: OpFollowRedirects}}}
	got, err := agent.Execute(context.Background(), "https://short.example/x", strat)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got != "http://files.example.com/get/abc" {
		t.Errorf("resolved = %q", got)
	}
}

func TestExecuteRejectsNonURLResult(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://short.example/x": `<html><body><span class="note">not a link</span></body></html>`,
	}}
	agent := NewAgent(AgentOptions{
		Generator:         &fakeGenerator{},
		Fetcher:           fetcher,
		ExecuteStrategies: true,
	})

	strat := &Strategy{Steps: []Step{
		{Op: OpFetch},
		{Op: OpSelect, Selector: ".note"},
	}}

	if _, err := agent.Execute(context.Background(), "https://short.example/x", strat); err == nil {
		t.Fatal("expected rejection of non-URL result")
	}
}
