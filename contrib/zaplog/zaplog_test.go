package zaplog

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/petal-labs/showroom/catalog"
	"github.com/petal-labs/showroom/core"
	"github.com/petal-labs/showroom/showroomtest"
)

func TestHookLogsCallLifecycle(t *testing.T) {
	obs, logs := observer.New(zapcore.DebugLevel)
	srv := showroomtest.NewServer(t)
	srv.FailNext(showroomtest.RouteGet, http.StatusServiceUnavailable, 1)
	c := srv.Client(t, core.WithTelemetry(New(zap.New(obs))))

	if _, err := catalog.New(c).Get(context.Background(), showroomtest.OakChairID); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	var msgs []string
	for _, e := range logs.All() {
		msgs = append(msgs, e.Message)
	}
	want := []string{"call started", "retrying call", "call completed"}
	if len(msgs) != len(want) {
		t.Fatalf("messages = %v, want %v", msgs, want)
	}
	for i := range want {
		if msgs[i] != want[i] {
			t.Errorf("message %d = %q, want %q", i, msgs[i], want[i])
		}
	}

	end := logs.FilterMessage("call completed").All()[0].ContextMap()
	if end["op"] != "catalog.get" || end["attempts"] != int64(2) || end["status"] != int64(200) {
		t.Errorf("end fields = %v", end)
	}
	retry := logs.FilterMessage("retrying call").All()[0].ContextMap()
	if retry["error_kind"] != "server" || retry["attempt"] != int64(2) {
		t.Errorf("retry fields = %v", retry)
	}
}

func TestHookLogsFailures(t *testing.T) {
	obs, logs := observer.New(zapcore.InfoLevel)
	h := New(zap.New(obs))

	h.OnRequestEnd(core.RequestEndEvent{
		CallID: "c1",
		Op:     "chat.send",
		Status: 401,
		Err:    &core.APIError{Status: 401, Code: "invalid_api_key", Err: core.ErrAuth},
	})

	entries := logs.FilterMessage("call failed").All()
	if len(entries) != 1 || entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("entries = %v", logs.All())
	}
	if kind := entries[0].ContextMap()["error_kind"]; kind != "auth" {
		t.Errorf("error_kind = %v, want auth", kind)
	}
}

func TestNewNilLogger(t *testing.T) {
	h := New(nil)
	h.OnRequestStart(core.RequestStartEvent{Op: "health"})
	h.OnRequestEnd(core.RequestEndEvent{Op: "health", Err: errors.New("x")})
}
