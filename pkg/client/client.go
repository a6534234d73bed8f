/*
Client of the render server.

A remote render is three steps:
1. Upload the cast with POST /api/render, the server answers with the render key
2. Follow the render over the websocket until a Done or Error message arrives
3. Download the video
*/
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/gorilla/schema"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/qnkhuat/tcast/pkg/message"
)

var ErrRenderFailed = errors.New("remote render failed")

var encoder = schema.NewEncoder()

type Client struct {
	serverAddr string
	http       *http.Client
}

func New(serverAddr string) *Client {
	return &Client{
		serverAddr: strings.TrimRight(serverAddr, "/"),
		http:       http.DefaultClient,
	}
}

func (c *Client) url(path string, q url.Values) string {
	u := c.serverAddr + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// wsURL maps the http(s) server address to its ws(s) equivalent.
func (c *Client) wsURL(path string) (string, error) {
	u, err := url.Parse(c.serverAddr)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported server scheme: %s", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String(), nil
}

func (c *Client) do(req *http.Request, v interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s %s: %s: %s", req.Method, req.URL.Path, resp.Status, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// Submit uploads cast and returns the queued render.
func (c *Client) Submit(ctx context.Context, cast io.Reader, q message.RenderQuery) (message.RenderInfo, error) {
	var info message.RenderInfo
	values := url.Values{}
	if err := encoder.Encode(q, values); err != nil {
		return info, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/api/render", values), cast)
	if err != nil {
		return info, err
	}
	req.Header.Set("Content-Type", "application/x-asciicast")
	err = c.do(req, &info)
	return info, err
}

func (c *Client) Info(ctx context.Context, key string) (message.RenderInfo, error) {
	var info message.RenderInfo
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/api/render/"+url.PathEscape(key), nil), nil)
	if err != nil {
		return info, err
	}
	err = c.do(req, &info)
	return info, err
}

// Follow blocks until the render stops, calling progress for every progress message.
func (c *Client) Follow(ctx context.Context, key string, progress func(message.Progress)) (message.RenderInfo, error) {
	var info message.RenderInfo
	u, err := c.wsURL("/ws/render/" + url.PathEscape(key))
	if err != nil {
		return info, err
	}
	log.Printf("Openning socket at %s", u)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		log.Printf("Failed to open websocket: %s", err)
		return info, err
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		msg := message.Wrapper{}
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return info, ctx.Err()
			}
			return info, fmt.Errorf("render %s: connection lost: %w", key, err)
		}

		switch msg.Type {
		case message.TProgress:
			var p message.Progress
			if err := message.ToStruct(msg.Data, &p); err == nil && progress != nil {
				progress(p)
			}
		case message.TDone:
			err := message.ToStruct(msg.Data, &info)
			return info, err
		case message.TError:
			var e message.Error
			message.ToStruct(msg.Data, &e)
			return info, fmt.Errorf("%w: %s", ErrRenderFailed, e.Reason)
		default:
			log.Printf("Unexpected message type: %s", msg.Type)
		}
	}
}

// Download copies the video of a finished render into w.
func (c *Client) Download(ctx context.Context, key string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/api/render/"+url.PathEscape(key)+"/video", nil), nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return 0, fmt.Errorf("download %s: %s: %s", key, resp.Status, strings.TrimSpace(string(body)))
	}
	return io.Copy(w, resp.Body)
}

// Render runs a whole remote render and writes the video to out.
func (c *Client) Render(ctx context.Context, cast io.Reader, q message.RenderQuery, out string, progress func(message.Progress)) (message.RenderInfo, error) {
	info, err := c.Submit(ctx, cast, q)
	if err != nil {
		return info, err
	}
	log.Printf("Submitted render %s", info.Key)

	info, err = c.Follow(ctx, info.Key, progress)
	if err != nil {
		return info, err
	}

	f, err := os.OpenFile(out, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return info, err
	}
	if _, err := c.Download(ctx, info.Key, f); err != nil {
		f.Close()
		return info, err
	}
	return info, f.Close()
}
