package client

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	enc "github.com/qnkhuat/tcast/pkg/encoder"
	"github.com/qnkhuat/tcast/pkg/message"
	"github.com/qnkhuat/tcast/pkg/server"
)

const sampleCast = `{"version": 2, "width": 10, "height": 2}
[0, "o", "hi"]
[1, "o", "\u001b[6n"]
`

func newServer(t *testing.T) *httptest.Server {
	db, err := server.SetupDB(filepath.Join(t.TempDir(), "tcast"))
	require.NoError(t, err)
	s, err := server.New("127.0.0.1:0", t.TempDir(), db)
	require.NoError(t, err)
	s.SetEncoder(func(ctx context.Context, dir, out string, opts enc.Options) error {
		return os.WriteFile(out, []byte("video:"+filepath.Ext(out)), 0644)
	})

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Stop()
		db.Close()
	})
	return ts
}

func TestWsURL(t *testing.T) {
	u, err := New("https://render.example.com/").wsURL("/ws/render/x")
	require.NoError(t, err)
	assert.Equal(t, "wss://render.example.com/ws/render/x", u)

	u, err = New("http://localhost:3000/base").wsURL("/ws/render/x")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:3000/base/ws/render/x", u)

	_, err = New("ftp://localhost").wsURL("/x")
	assert.Error(t, err)
}

func TestRemoteRender(t *testing.T) {
	ts := newServer(t)
	c := New(ts.URL)
	out := filepath.Join(t.TempDir(), "out.gif")

	var calls int
	info, err := c.Render(context.Background(), strings.NewReader(sampleCast),
		message.RenderQuery{FPS: 4, Skip: true, Format: "gif", Title: "remote"}, out,
		func(p message.Progress) { calls += 1 })
	require.NoError(t, err)

	assert.Equal(t, message.RDone, info.Status)
	assert.Equal(t, "remote", info.Title)
	assert.Equal(t, 4, info.FPS)
	assert.LessOrEqual(t, calls, 4)

	body, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "video:.gif", string(body))

	got, err := c.Info(context.Background(), info.Key)
	require.NoError(t, err)
	assert.Equal(t, info.Key, got.Key)

	var buf bytes.Buffer
	n, err := c.Download(context.Background(), info.Key, &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(len("video:.gif")), n)
}

func TestRemoteRenderFailure(t *testing.T) {
	ts := newServer(t)
	c := New(ts.URL)

	_, err := c.Render(context.Background(), strings.NewReader(sampleCast),
		message.RenderQuery{FPS: 4}, filepath.Join(t.TempDir(), "out.mp4"), nil)
	assert.ErrorIs(t, err, ErrRenderFailed)

	_, err = c.Submit(context.Background(), strings.NewReader("garbage"), message.RenderQuery{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")

	_, err = c.Info(context.Background(), "missing")
	assert.Error(t, err)
}
