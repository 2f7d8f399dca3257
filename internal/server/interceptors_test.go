package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/alfredjeanlab/trackd/internal/presence"
	"github.com/alfredjeanlab/trackd/internal/rpc"
)

var getTicketMethod = rpc.FullMethod(rpc.MethodGetTicket)

func stubHandler(context.Context, any) (any, error) { return "ok", nil }

func TestCheckBearer(t *testing.T) {
	for _, tc := range []struct {
		header string
		want   error
	}{
		{"", errNoAuthorization},
		{"Basic c2VjcmV0", errAuthScheme},
		{"bearer secret", errAuthScheme},
		{"Bearer wrong", errBadToken},
		{"Bearer secret", nil},
	} {
		if got := checkBearer(tc.header, "secret"); got != tc.want {
			t.Errorf("checkBearer(%q) = %v, want %v", tc.header, got, tc.want)
		}
	}
}

func TestAuthInterceptor(t *testing.T) {
	withAuth := func(v string) context.Context {
		return metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", v))
	}
	for _, tc := range []struct {
		name   string
		token  string
		ctx    context.Context
		method string
		want   codes.Code
	}{
		{"disabled", "", context.Background(), getTicketMethod, codes.OK},
		{"health exempt", "secret", context.Background(), rpc.FullMethod(rpc.MethodHealth), codes.OK},
		{"no metadata", "secret", context.Background(), getTicketMethod, codes.Unauthenticated},
		{"no header", "secret", metadata.NewIncomingContext(context.Background(), metadata.MD{}), getTicketMethod, codes.Unauthenticated},
		{"wrong scheme", "secret", withAuth("Token secret"), getTicketMethod, codes.Unauthenticated},
		{"wrong token", "secret", withAuth("Bearer nope"), getTicketMethod, codes.Unauthenticated},
		{"valid", "secret", withAuth("Bearer secret"), getTicketMethod, codes.OK},
	} {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := AuthInterceptor(tc.token)(tc.ctx, nil, &grpc.UnaryServerInfo{FullMethod: tc.method}, stubHandler)
			if got := status.Code(err); got != tc.want {
				t.Fatalf("code = %v, want %v (err %v)", got, tc.want, err)
			}
			if tc.want == codes.OK && resp != "ok" {
				t.Fatalf("handler not called, resp = %v", resp)
			}
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	for _, tc := range []struct {
		name   string
		token  string
		method string
		path   string
		header string
		want   int
	}{
		{"disabled", "", http.MethodGet, "/v1/projects", "", http.StatusNoContent},
		{"health exempt", "secret", http.MethodGet, "/v1/health", "", http.StatusNoContent},
		{"health POST not exempt", "secret", http.MethodPost, "/v1/health", "", http.StatusUnauthorized},
		{"no header", "secret", http.MethodGet, "/v1/projects", "", http.StatusUnauthorized},
		{"wrong scheme", "secret", http.MethodGet, "/v1/projects", "Basic c2VjcmV0", http.StatusUnauthorized},
		{"wrong token", "secret", http.MethodGet, "/v1/projects", "Bearer nope", http.StatusUnauthorized},
		{"valid", "secret", http.MethodGet, "/v1/projects", "Bearer secret", http.StatusNoContent},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			AuthMiddleware(tc.token, ok).ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

// requireCode asserts that err is a gRPC error with the given status code.
func requireCode(t *testing.T, err error, code codes.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected gRPC error with code %v, got nil", code)
	}
	st, ok := status.FromError(err)
	if !ok {
		t.Fatalf("expected gRPC status error, got %v", err)
	}
	if st.Code() != code {
		t.Fatalf("expected code=%v, got %v", code, st.Code())
	}
}

func TestLoggingInterceptor(t *testing.T) {
	info := &grpc.UnaryServerInfo{FullMethod: "/test.Service/Method"}

	if resp, err := LoggingInterceptor(context.Background(), nil, info, stubHandler); err != nil || resp != "ok" {
		t.Fatalf("resp=%v err=%v", resp, err)
	}
	boom := status.Error(codes.FailedPrecondition, "boom")
	_, err := LoggingInterceptor(context.Background(), nil, info,
		func(context.Context, any) (any, error) { return nil, boom })
	if err != boom {
		t.Fatalf("err = %v, want the handler's error unchanged", err)
	}
}

func TestRecoveryInterceptor(t *testing.T) {
	info := &grpc.UnaryServerInfo{FullMethod: "/test.Service/Method"}

	if resp, err := RecoveryInterceptor(context.Background(), nil, info, stubHandler); err != nil || resp != "ok" {
		t.Fatalf("resp=%v err=%v", resp, err)
	}
	_, err := RecoveryInterceptor(context.Background(), nil, info,
		func(_ context.Context, _ any) (any, error) { panic("test panic") })
	requireCode(t, err, codes.Internal)
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := RecoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("test panic")
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/projects", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestLoggingMiddleware_KeepsStatusAndFlusher(t *testing.T) {
	var flushable bool
	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, flushable = w.(http.Flusher)
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/projects", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected 418, got %d", rec.Code)
	}
	if !flushable {
		t.Fatal("wrapped writer should still implement http.Flusher")
	}
}

func TestPresenceMiddleware(t *testing.T) {
	tracker := presence.New()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/projects/{pid}/tickets/{id}", PresenceMiddleware(tracker, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/projects/pr-1/tickets/tk-1", nil)
	req.Header.Set(ActorHeader, "us-alice")
	mux.ServeHTTP(httptest.NewRecorder(), req)

	// Anonymous requests are not tracked.
	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/projects/pr-1/tickets/tk-2", nil))

	roster := tracker.Roster(0, "pr-1")
	if len(roster) != 1 {
		t.Fatalf("expected 1 roster entry, got %d", len(roster))
	}
	e := roster[0]
	if e.UserID != "us-alice" || e.TicketID != "tk-1" || e.LastAction != "GET /v1/projects/{pid}/tickets/{id}" {
		t.Fatalf("unexpected entry: %+v", e)
	}
}

func TestPresenceMiddleware_UnroutedRequest(t *testing.T) {
	tracker := presence.New()
	h := PresenceMiddleware(tracker, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/healthz", nil)
	req.Header.Set(ActorHeader, "us-bob")
	h(httptest.NewRecorder(), req)

	roster := tracker.Roster(0, "")
	if len(roster) != 1 || roster[0].LastAction != "POST /healthz" {
		t.Fatalf("unexpected roster: %+v", roster)
	}
}
