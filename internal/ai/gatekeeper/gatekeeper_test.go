package gatekeeper

import (
	"context"
	"errors"
	"testing"

	"github.com/AndrewDeWitt/grimlog/internal/ai/provider"
)

type fakeCompleter struct {
	response provider.Response
	err      error
	calls    int
}

func (f *fakeCompleter) Complete(_ context.Context, _ provider.Request) (provider.Response, error) {
	f.calls++
	return f.response, f.err
}

func TestCheckRelevant(t *testing.T) {
	completer := &fakeCompleter{response: provider.Response{
		Text: `{"relevant": true, "reason": "mentions stratagem use"}`,
	}}
	verdict := New(completer).Check(context.Background(), "use armour of contempt on the terminators")
	if !verdict.Relevant || verdict.FailedOpen {
		t.Errorf("verdict = %+v", verdict)
	}
	if verdict.Reason != "mentions stratagem use" {
		t.Errorf("reason = %q", verdict.Reason)
	}
}

func TestCheckIrrelevant(t *testing.T) {
	completer := &fakeCompleter{response: provider.Response{
		Text: `{"relevant": false, "reason": "table talk"}`,
	}}
	verdict := New(completer).Check(context.Background(), "anyone want pizza")
	if verdict.Relevant {
		t.Errorf("verdict = %+v", verdict)
	}
}

func TestCheckFailsOpenOnProviderError(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("rate limited")}
	verdict := New(completer).Check(context.Background(), "advance to round two")
	if !verdict.Relevant || !verdict.FailedOpen {
		t.Errorf("verdict = %+v, want fail-open relevant", verdict)
	}
}

func TestCheckFailsOpenOnInvalidOutput(t *testing.T) {
	completer := &fakeCompleter{response: provider.Response{Text: `{"verdict": "yes"}`}}
	verdict := New(completer).Check(context.Background(), "advance to round two")
	if !verdict.Relevant || !verdict.FailedOpen {
		t.Errorf("verdict = %+v, want fail-open relevant", verdict)
	}

	completer = &fakeCompleter{response: provider.Response{Text: `not json`}}
	verdict = New(completer).Check(context.Background(), "advance to round two")
	if !verdict.Relevant || !verdict.FailedOpen {
		t.Errorf("verdict = %+v, want fail-open relevant", verdict)
	}
}

func TestCheckEmptyTranscriptSkipsProvider(t *testing.T) {
	completer := &fakeCompleter{}
	verdict := New(completer).Check(context.Background(), "   ")
	if verdict.Relevant || verdict.FailedOpen {
		t.Errorf("verdict = %+v", verdict)
	}
	if completer.calls != 0 {
		t.Errorf("provider calls = %d, want 0", completer.calls)
	}
}
