package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"taskflow/models"
	"taskflow/utilities"

	"github.com/googleapis/gax-go/v2"
	"github.com/gorilla/websocket"
)

const (
	feedMinBackoff = 500 * time.Millisecond
	feedMaxBackoff = 30 * time.Second
)

// Feed é a inscrição no feed de mudanças de um workspace.
type Feed struct {
	WorkspaceID string

	client     *Client
	dialer     *websocket.Dialer
	minBackoff time.Duration
	maxBackoff time.Duration
	now        func() time.Time
}

func (c *Client) Feed(workspaceID string) *Feed {
	return &Feed{
		WorkspaceID: workspaceID,
		client:      c,
		dialer:      &websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: http.ProxyFromEnvironment},
		minBackoff:  feedMinBackoff,
		maxBackoff:  feedMaxBackoff,
		now:         time.Now,
	}
}

// Run entrega cada evento a handle até ctx ser cancelado. Quedas de conexão
// são refeitas com backoff exponencial com jitter. Cada conexão aberta, a
// primeira inclusive, começa com um RESYNC: o que foi gravado antes do
// handshake não passa pelo feed. Devolve models.ErrNotMember quando o
// servidor recusa ou encerra o feed porque o usuário deixou de ser membro.
func (f *Feed) Run(ctx context.Context, handle func(models.ChangeEvent)) error {
	backoff := f.backoff()
	for {
		conn, err := f.dial(ctx)
		if err == nil {
			handle(models.ResyncEvent(f.WorkspaceID, f.now()))
			backoff = f.backoff()
			err = f.read(ctx, conn, handle)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if isFatal(err) {
			return err
		}

		pause := backoff.Pause()
		utilities.LogDebug("feed do workspace %s caiu (%v), reconectando em %s", f.WorkspaceID, err, pause)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pause):
		}
	}
}

func (f *Feed) backoff() *gax.Backoff {
	return &gax.Backoff{Initial: f.minBackoff, Max: f.maxBackoff, Multiplier: 2}
}

func isFatal(err error) bool {
	var apiErr *APIError
	return errors.Is(err, models.ErrNotMember) || errors.Is(err, errNoTokens) || errors.As(err, &apiErr)
}

func (f *Feed) dial(ctx context.Context) (*websocket.Conn, error) {
	if f.client.tokens == nil {
		return nil, errNoTokens
	}
	tok, err := f.client.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("feed token: %w", err)
	}
	header := http.Header{}
	tok.SetAuthHeader(&http.Request{Header: header})

	conn, resp, err := f.dialer.DialContext(ctx, f.client.realtimeURL(f.WorkspaceID), header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			switch resp.StatusCode {
			case http.StatusForbidden:
				return nil, models.ErrNotMember
			case http.StatusUnauthorized, http.StatusBadRequest, http.StatusNotFound:
				return nil, &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
			}
		}
		return nil, err
	}
	return conn, nil
}

func (f *Feed) read(ctx context.Context, conn *websocket.Conn, handle func(models.ChangeEvent)) error {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	for {
		var e models.ChangeEvent
		if err := conn.ReadJSON(&e); err != nil {
			if websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
				return models.ErrNotMember
			}
			return err
		}
		e.Normalize()
		handle(e)
	}
}
