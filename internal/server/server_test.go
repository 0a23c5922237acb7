package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/MrWong99/captionlens/internal/layout"
	"github.com/MrWong99/captionlens/internal/observe"
	"github.com/MrWong99/captionlens/internal/server"
	"github.com/MrWong99/captionlens/internal/session"
	"github.com/MrWong99/captionlens/internal/store"
	"github.com/MrWong99/captionlens/internal/store/memory"
	"github.com/MrWong99/captionlens/internal/visual"
	"github.com/MrWong99/captionlens/pkg/audio"
	"github.com/MrWong99/captionlens/pkg/provider/stt"
	sttmock "github.com/MrWong99/captionlens/pkg/provider/stt/mock"
	"github.com/MrWong99/captionlens/pkg/types"
)

func newTestServer(t *testing.T, deps ...server.Option) (*server.Server, *httptest.Server) {
	t.Helper()
	return newTestServerConfig(t, server.Config{TickRate: 100}, deps...)
}

func newTestServerConfig(t *testing.T, cfg server.Config, deps ...server.Option) (*server.Server, *httptest.Server) {
	t.Helper()
	met, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	deps = append([]server.Option{
		server.WithMetrics(met),
		server.WithMeasurer(layout.Monospace{Advance: 10}),
	}, deps...)
	srv, err := server.New(cfg, session.DefaultOptions(), deps...)
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	mux := http.NewServeMux()
	srv.Register(mux)
	hs := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		hs.Close()
	})
	return srv, hs
}

func dial(t *testing.T, ctx context.Context, hs *httptest.Server) (*websocket.Conn, server.Hello) {
	t.Helper()
	ws, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(hs.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { ws.CloseNow() })

	var hello server.Hello
	if err := wsjson.Read(ctx, ws, &hello); err != nil {
		t.Fatalf("read hello: %v", err)
	}
	if hello.Type != server.MsgHello {
		t.Fatalf("first message: got type %q, want %q", hello.Type, server.MsgHello)
	}
	return ws, hello
}

// message is the union of all server messages a test looks at.
type message struct {
	Type    string `json:"type"`
	Scene   string `json:"scene"`
	Text    string `json:"text"`
	For     string `json:"for"`
	Error   string `json:"error"`
	Handle  string `json:"handle"`
	Added   bool   `json:"added"`
}

// readUntil reads messages until match returns true.
func readUntil(t *testing.T, ctx context.Context, ws *websocket.Conn, match func(message) bool) message {
	t.Helper()
	for {
		var m message
		if err := wsjson.Read(ctx, ws, &m); err != nil {
			t.Fatalf("read: %v", err)
		}
		if match(m) {
			return m
		}
	}
}

func reply(m message) bool {
	return m.Type == server.MsgImageShown || m.Type == server.MsgError
}

func send(t *testing.T, ctx context.Context, ws *websocket.Conn, v any) {
	t.Helper()
	if err := wsjson.Write(ctx, ws, v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestServer_HypothesisReachesFrame(t *testing.T) {
	t.Parallel()

	_, hs := newTestServer(t)
	ctx := testContext(t)
	ws, hello := dial(t, ctx, hs)

	if hello.SessionID == "" {
		t.Error("hello: empty session id")
	}
	if hello.TickRate != 100 {
		t.Errorf("hello: got tick rate %d, want 100", hello.TickRate)
	}
	if hello.Audio {
		t.Error("hello: audio enabled without a recognizer")
	}

	f := readUntil(t, ctx, ws, func(m message) bool { return m.Type == server.MsgFrame })
	if f.Scene != "transcription" {
		t.Errorf("frame: got scene %q, want %q", f.Scene, "transcription")
	}

	send(t, ctx, ws, server.Inbound{Type: server.MsgHypothesis, Text: "hello there"})
	readUntil(t, ctx, ws, func(m message) bool {
		return m.Type == server.MsgFrame && strings.Contains(m.Text, "ello there")
	})
}

func TestServer_CaptionsReplaceRecognizer(t *testing.T) {
	t.Parallel()

	_, hs := newTestServer(t)
	ctx := testContext(t)
	ws, _ := dial(t, ctx, hs)

	mode := types.CaptionEveryone
	send(t, ctx, ws, server.Inbound{Type: server.MsgOptions, Options: &server.OptionsPatch{CaptionMode: &mode}})
	send(t, ctx, ws, server.Inbound{Type: server.MsgCaptions, Enabled: true, Everyone: "good morning everyone"})
	readUntil(t, ctx, ws, func(m message) bool {
		return m.Type == server.MsgFrame && strings.Contains(m.Text, "ood morning everyone")
	})
}

func TestServer_Messages(t *testing.T) {
	t.Parallel()

	_, hs := newTestServer(t)
	ctx := testContext(t)
	ws, _ := dial(t, ctx, hs)

	badMode := types.SummaryMode("Sometimes")
	zero := 0

	steps := []struct {
		name    string
		msg     server.Inbound
		wantErr bool
	}{
		{name: "image before overlay scene", msg: server.Inbound{Type: server.MsgImage, Label: "red fox"}, wantErr: true},
		{name: "unknown scene", msg: server.Inbound{Type: server.MsgScene, Name: "karaoke"}, wantErr: true},
		{name: "unknown type", msg: server.Inbound{Type: "dance"}, wantErr: true},
		{name: "missing options", msg: server.Inbound{Type: server.MsgOptions}, wantErr: true},
		{name: "invalid summary mode", msg: server.Inbound{Type: server.MsgOptions, Options: &server.OptionsPatch{SummaryMode: &badMode}}, wantErr: true},
		{name: "zero max lines", msg: server.Inbound{Type: server.MsgOptions, Options: &server.OptionsPatch{MaxLines: &zero}}, wantErr: true},
	}
	for _, st := range steps {
		send(t, ctx, ws, st.msg)
		m := readUntil(t, ctx, ws, reply)
		if got := m.Type == server.MsgError; got != st.wantErr {
			t.Errorf("%s: got %+v, want error=%v", st.name, m, st.wantErr)
		}
		if m.For != st.msg.Type {
			t.Errorf("%s: error for %q, want %q", st.name, m.For, st.msg.Type)
		}
	}
}

func TestServer_ImageOverlay(t *testing.T) {
	t.Parallel()

	_, hs := newTestServer(t)
	ctx := testContext(t)
	ws, _ := dial(t, ctx, hs)

	send(t, ctx, ws, server.Inbound{Type: server.MsgScene, Name: "interactive_image"})
	readUntil(t, ctx, ws, func(m message) bool {
		return m.Type == server.MsgFrame && m.Scene == "interactive_image"
	})

	send(t, ctx, ws, server.Inbound{Type: server.MsgImage, Label: "a red fox", URL: "https://example.com/fox.png"})
	shown := readUntil(t, ctx, ws, reply)
	if shown.Type != server.MsgImageShown || !shown.Added || shown.Handle == "" {
		t.Fatalf("image: got %+v, want a new image", shown)
	}

	send(t, ctx, ws, server.Inbound{Type: server.MsgImage, Label: "a red fox"})
	again := readUntil(t, ctx, ws, reply)
	if again.Added || again.Handle != shown.Handle {
		t.Errorf("duplicate image: got %+v, want existing handle %q", again, shown.Handle)
	}

	var h visual.Handle
	if err := h.UnmarshalText([]byte(shown.Handle)); err != nil {
		t.Fatalf("handle %q: %v", shown.Handle, err)
	}
	remove := server.Inbound{Type: server.MsgRemoveImage, Handle: h}
	send(t, ctx, ws, remove)
	send(t, ctx, ws, remove)
	if m := readUntil(t, ctx, ws, reply); m.Type != server.MsgError || m.For != server.MsgRemoveImage {
		t.Errorf("second remove: got %+v, want an error", m)
	}
}

func TestServer_Audio(t *testing.T) {
	t.Parallel()

	stream := sttmock.NewStream(4)
	_, hs := newTestServer(t, server.WithSTT(&sttmock.Provider{Stream: stream}))
	ctx := testContext(t)
	ws, hello := dial(t, ctx, hs)
	if !hello.Audio {
		t.Fatal("hello: audio disabled with a recognizer")
	}

	if err := ws.Write(ctx, websocket.MessageBinary, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	stream.Emit(types.Hypothesis{Text: "audio works", IsFinal: true})
	readUntil(t, ctx, ws, func(m message) bool {
		return m.Type == server.MsgFrame && strings.Contains(m.Text, "udio works")
	})
	waitFor(t, func() bool { return len(stream.Audio()) == 1 })
	if got := stream.Audio()[0]; len(got) != 4 {
		t.Errorf("Audio: got %v, want a 4 byte chunk", got)
	}

	ws.Close(websocket.StatusNormalClosure, "")
	waitFor(t, func() bool { return stream.Closes() > 0 })
}

func TestServer_AudioConversion(t *testing.T) {
	t.Parallel()

	stream := sttmock.NewStream(4)
	cfg := server.Config{
		TickRate: 100,
		STT:      stt.StreamConfig{SampleRate: 16000, Channels: 1},
		AudioIn:  audio.Format{SampleRate: 48000, Channels: 2},
	}
	_, hs := newTestServerConfig(t, cfg, server.WithSTT(&sttmock.Provider{Stream: stream}))
	ctx := testContext(t)
	ws, _ := dial(t, ctx, hs)

	// Twelve stereo frames at 48 kHz become four mono samples at 16 kHz.
	if err := ws.Write(ctx, websocket.MessageBinary, make([]byte, 48)); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	waitFor(t, func() bool { return len(stream.Audio()) == 1 })
	if got := len(stream.Audio()[0]); got != 8 {
		t.Errorf("Audio: got %d bytes, want 8", got)
	}
}

func TestServer_TranscriptArchive(t *testing.T) {
	t.Parallel()

	srv, hs := newTestServer(t, server.WithStore(memory.New(0)))
	ctx := testContext(t)
	ws, hello := dial(t, ctx, hs)

	send(t, ctx, ws, server.Inbound{Type: server.MsgHypothesis, Text: "archive me please", IsFinal: true})
	readUntil(t, ctx, ws, func(m message) bool {
		return m.Type == server.MsgFrame && strings.Contains(m.Text, "rchive me please")
	})
	ws.Close(websocket.StatusNormalClosure, "")
	waitFor(t, func() bool { return srv.Sessions() == 0 })

	tests := []struct {
		path       string
		wantStatus int
	}{
		{path: "/sessions/" + hello.SessionID + "/transcript", wantStatus: http.StatusOK},
		{path: "/sessions/" + hello.SessionID + "/transcript?limit=1", wantStatus: http.StatusOK},
		{path: "/sessions/" + hello.SessionID + "/transcript?limit=abc", wantStatus: http.StatusBadRequest},
		{path: "/sessions/nope/transcript", wantStatus: http.StatusNotFound},
	}
	for _, tt := range tests {
		resp, err := http.Get(hs.URL + tt.path)
		if err != nil {
			t.Fatalf("GET %s: %v", tt.path, err)
		}
		if resp.StatusCode != tt.wantStatus {
			t.Errorf("GET %s: got status %d, want %d", tt.path, resp.StatusCode, tt.wantStatus)
		}
		if resp.StatusCode == http.StatusOK {
			var tr server.Transcript
			if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
				t.Errorf("GET %s: decode: %v", tt.path, err)
			}
			if len(tr.Entries) == 0 || tr.Entries[len(tr.Entries)-1].Kind != store.KindLine ||
				!strings.Contains(tr.Entries[len(tr.Entries)-1].Text, "rchive me please") {
				t.Errorf("GET %s: got entries %+v", tt.path, tr.Entries)
			}
		}
		resp.Body.Close()
	}
}

func TestServer_TranscriptWithoutStore(t *testing.T) {
	t.Parallel()

	_, hs := newTestServer(t)
	resp, err := http.Get(hs.URL + "/sessions/abc/transcript")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET: got status %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestServer_UpdateOptions(t *testing.T) {
	t.Parallel()

	srv, hs := newTestServer(t)
	ctx := testContext(t)
	ws, _ := dial(t, ctx, hs)
	waitFor(t, func() bool { return srv.Sessions() == 1 })

	bad := session.DefaultOptions()
	bad.Layout.MaxLines = 0
	if err := srv.UpdateOptions(bad); err == nil {
		t.Error("UpdateOptions(invalid): got nil error")
	}

	opts := session.DefaultOptions()
	opts.SummaryMode = types.SummaryDisabled
	if err := srv.UpdateOptions(opts); err != nil {
		t.Fatalf("UpdateOptions: %v", err)
	}
	send(t, ctx, ws, server.Inbound{Type: server.MsgTap})
	send(t, ctx, ws, server.Inbound{Type: server.MsgHypothesis, Text: "still streaming"})
	readUntil(t, ctx, ws, func(m message) bool {
		return m.Type == server.MsgFrame && strings.Contains(m.Text, "till streaming")
	})
}

func TestServer_CloseEndsSessions(t *testing.T) {
	t.Parallel()

	srv, hs := newTestServer(t)
	ctx := testContext(t)
	ws, _ := dial(t, ctx, hs)
	waitFor(t, func() bool { return srv.Sessions() == 1 })

	srv.Close()
	if n := srv.Sessions(); n != 0 {
		t.Errorf("Sessions after Close: got %d, want 0", n)
	}
	for {
		if _, _, err := ws.Read(ctx); err != nil {
			break
		}
	}

	resp, err := http.Get(hs.URL + "/ws")
	if err != nil {
		t.Fatalf("GET /ws: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("GET /ws after Close: got status %d, want %d", resp.StatusCode, http.StatusServiceUnavailable)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
