package capture

import (
	"testing"

	"github.com/go-rod/rod/lib/proto"
)

func TestAuthResponderAnswersServerChallengesOnce(t *testing.T) {
	a := newAuthResponder(Login{Username: "admin", Password: "s3cret"})
	challenge := &proto.FetchAuthRequired{
		RequestID:     "req-1",
		AuthChallenge: &proto.FetchAuthChallenge{Source: proto.FetchAuthChallengeSourceServer, Origin: "https://acme.example"},
	}

	first := a.respond(challenge)
	resp := first.AuthChallengeResponse
	if first.RequestID != "req-1" || resp.Response != proto.FetchAuthChallengeResponseResponseProvideCredentials {
		t.Fatalf("expected credentials for the first challenge, got %+v", resp)
	}
	if resp.Username != "admin" || resp.Password != "s3cret" {
		t.Fatalf("unexpected credentials %+v", resp)
	}

	again := a.respond(challenge).AuthChallengeResponse
	if again.Response != proto.FetchAuthChallengeResponseResponseCancelAuth || again.Password != "" {
		t.Fatalf("rejected credentials must not be resent, got %+v", again)
	}

	other := a.respond(&proto.FetchAuthRequired{RequestID: "req-2"}).AuthChallengeResponse
	if other.Response != proto.FetchAuthChallengeResponseResponseProvideCredentials {
		t.Fatalf("a new request should get credentials, got %+v", other)
	}
}

func TestAuthResponderIgnoresProxyChallenges(t *testing.T) {
	a := newAuthResponder(Login{Username: "admin", Password: "s3cret"})
	resp := a.respond(&proto.FetchAuthRequired{
		RequestID:     "req-1",
		AuthChallenge: &proto.FetchAuthChallenge{Source: proto.FetchAuthChallengeSourceProxy},
	}).AuthChallengeResponse
	if resp.Response != proto.FetchAuthChallengeResponseResponseDefault || resp.Username != "" {
		t.Fatalf("proxy challenge must not receive site credentials, got %+v", resp)
	}
}
