package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"scribeq/internal/faults"
)

const helperJSON = `{"segments": [
	{"start": 0, "end": 4.2, "speaker": "SPEAKER_00"},
	{"start": 4.2, "end": 9.9, "speaker": "SPEAKER_01"}
]}`

func TestDiarize_Success(t *testing.T) {
	runner := &fakeRunner{fn: func(name string, args []string, env []string) (commandResult, error) {
		return commandResult{Stdout: helperJSON}, nil
	}}

	d := NewHelperDiarizer("", "hf_testtoken")
	d.runner = runner
	d.lookPath = foundLookPath

	min, max := 2, 4
	turns, err := d.Diarize(context.Background(), "/tmp/a.wav", &min, &max)
	if err != nil {
		t.Fatalf("Diarize failed: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("got %d turns, want 2", len(turns))
	}
	if turns[0].Speaker != "SPEAKER_00" || turns[1].End != 9.9 {
		t.Errorf("turns did not parse: %+v", turns)
	}

	if len(runner.calls) != 1 {
		t.Fatalf("got %d invocations, want 1", len(runner.calls))
	}
	call := runner.calls[0]
	joined := strings.Join(call.args, " ")
	for _, want := range []string{"--audio /tmp/a.wav", "--min-speakers 2", "--max-speakers 4"} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %v", want, call.args)
		}
	}
	if len(call.env) != 1 || call.env[0] != "HF_TOKEN=hf_testtoken" {
		t.Errorf("token not passed via env: %v", call.env)
	}
}

func TestDiarize_NoSpeakerBounds(t *testing.T) {
	runner := &fakeRunner{fn: func(name string, args []string, env []string) (commandResult, error) {
		return commandResult{Stdout: `{"segments": []}`}, nil
	}}

	d := NewHelperDiarizer("", "hf_testtoken")
	d.runner = runner
	d.lookPath = foundLookPath

	if _, err := d.Diarize(context.Background(), "/tmp/a.wav", nil, nil); err != nil {
		t.Fatalf("Diarize failed: %v", err)
	}

	joined := strings.Join(runner.calls[0].args, " ")
	if strings.Contains(joined, "--min-speakers") || strings.Contains(joined, "--max-speakers") {
		t.Errorf("nil bounds must not add speaker flags: %s", joined)
	}
}

func TestDiarize_MissingHelper(t *testing.T) {
	d := NewHelperDiarizer("", "hf_testtoken")
	d.lookPath = func(string) (string, error) { return "", errors.New("not found") }

	_, err := d.Diarize(context.Background(), "/tmp/a.wav", nil, nil)
	if got := faults.KindOf(err); got != faults.KindDependencyMissing {
		t.Errorf("got kind %q, want dependency_missing", got)
	}
}

func TestDiarize_MissingToken(t *testing.T) {
	d := NewHelperDiarizer("", "")
	d.lookPath = foundLookPath
	t.Setenv("HF_TOKEN", "")
	t.Setenv("HOME", t.TempDir())

	_, err := d.Diarize(context.Background(), "/tmp/a.wav", nil, nil)
	if got := faults.KindOf(err); got != faults.KindDependencyMissing {
		t.Errorf("got kind %q, want dependency_missing", got)
	}
}

func TestDiarize_TokenFromEnv(t *testing.T) {
	runner := &fakeRunner{fn: func(name string, args []string, env []string) (commandResult, error) {
		return commandResult{Stdout: `{"segments": []}`}, nil
	}}

	d := NewHelperDiarizer("", "")
	d.runner = runner
	d.lookPath = foundLookPath
	t.Setenv("HF_TOKEN", "hf_fromenv")

	if _, err := d.Diarize(context.Background(), "/tmp/a.wav", nil, nil); err != nil {
		t.Fatalf("Diarize failed: %v", err)
	}
	if runner.calls[0].env[0] != "HF_TOKEN=hf_fromenv" {
		t.Errorf("env token not used: %v", runner.calls[0].env)
	}
}

func TestDiarize_UnreadableOutput(t *testing.T) {
	d := NewHelperDiarizer("", "hf_testtoken")
	d.runner = &fakeRunner{fn: func(name string, args []string, env []string) (commandResult, error) {
		return commandResult{Stdout: "Traceback (most recent call last):"}, nil
	}}
	d.lookPath = foundLookPath

	_, err := d.Diarize(context.Background(), "/tmp/a.wav", nil, nil)
	if got := faults.KindOf(err); got != faults.KindProcessingFailure {
		t.Errorf("got kind %q, want processing_failure", got)
	}
}

func TestClassifyDiarizeError(t *testing.T) {
	cause := errors.New("exit status 1")
	tests := []struct {
		name   string
		stderr string
		want   faults.Kind
	}{
		{"rejected token", "HTTPError: 401 Client Error: Unauthorized", faults.KindResourceUnavailable},
		{"invalid token", "ValueError: invalid token passed", faults.KindResourceUnavailable},
		{"model fetch timeout", "requests.exceptions.ConnectTimeout: timed out", faults.KindNetworkFailure},
		{"rate limited", "HTTPError: 429 Client Error: Too Many Requests", faults.KindRateLimited},
		{"unknown", "RuntimeError: CUDA out of memory", faults.KindProcessingFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyDiarizeError(tt.stderr, cause)
			if got := faults.KindOf(err); got != tt.want {
				t.Errorf("got kind %q, want %q", got, tt.want)
			}
		})
	}
}
