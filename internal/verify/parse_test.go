package verify

import "testing"

const sampleReply = `{"decision":"accept_with_corrections","confidence":0.85,"reasoning":"usulan benar","corrected_content":"Teks final.","additional_issues":[{"type":"typo","description":"salah ketik","location":"ayat (2)"}]}`

func TestParseVerdictBareJSON(t *testing.T) {
	v := parseVerdict(sampleReply)

	if v.Decision != DecisionAcceptCorrections {
		t.Fatalf("decision = %q, want %q", v.Decision, DecisionAcceptCorrections)
	}
	if v.Confidence != 0.85 {
		t.Errorf("confidence = %v, want 0.85", v.Confidence)
	}
	if v.CorrectedContent != "Teks final." {
		t.Errorf("corrected_content = %q", v.CorrectedContent)
	}
	if len(v.AdditionalIssues) != 1 || v.AdditionalIssues[0].Type != "typo" {
		t.Errorf("additional_issues = %+v", v.AdditionalIssues)
	}
}

func TestParseVerdictFenced(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"tagged fence", "```json\n" + sampleReply + "\n```"},
		{"bare fence", "```\n" + sampleReply + "\n```"},
		{"surrounding whitespace", "\n\n  ```json\n" + sampleReply + "\n```  \n"},
	}
	want := parseVerdict(sampleReply)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := parseVerdict(tc.raw)
			if got.Decision != want.Decision || got.Confidence != want.Confidence || got.Reasoning != want.Reasoning {
				t.Errorf("fenced parse diverged: got %+v, want %+v", got, want)
			}
		})
	}
}

func TestParseVerdictDegrades(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", "Maaf, saya tidak dapat menilai usulan ini."},
		{"truncated", `{"decision":"accept","confiden`},
		{"unknown decision", `{"decision":"maybe","confidence":0.5,"reasoning":"?"}`},
		{"empty", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := parseVerdict(tc.raw)
			if v.Decision != DecisionError {
				t.Errorf("decision = %q, want %q", v.Decision, DecisionError)
			}
			if v.Confidence != 0 {
				t.Errorf("confidence = %v, want 0", v.Confidence)
			}
			if v.Reasoning != "parse failure" {
				t.Errorf("reasoning = %q", v.Reasoning)
			}
		})
	}
}

func TestParseVerdictClampsConfidence(t *testing.T) {
	v := parseVerdict(`{"decision":"reject","confidence":1.7,"reasoning":"x"}`)
	if v.Confidence != 1 {
		t.Errorf("confidence = %v, want clamped to 1", v.Confidence)
	}
	v = parseVerdict(`{"decision":"reject","confidence":-0.2,"reasoning":"x"}`)
	if v.Confidence != 0 {
		t.Errorf("confidence = %v, want clamped to 0", v.Confidence)
	}
}
