// Package transcriber streams PCM16 audio to Deepgram over a duplex
// websocket and reconciles interim and final transcript fragments into a
// running transcript.
package transcriber

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/coder/websocket"
)

const deepgramEndpoint = "wss://api.deepgram.com/v1/listen"

// ErrUnauthorized distinguishes a rejected API key from transient
// connection failures so callers can skip pointless retries.
var ErrUnauthorized = errors.New("deepgram rejected the API key")

// Config carries the query-parameter contract of the streaming endpoint.
type Config struct {
	SampleRate     int
	Channels       int
	Model          string
	Language       string
	Punctuate      bool
	InterimResults bool
	EndpointingMs  int
	SmartFormat    bool
}

type Deepgram struct {
	apiKey string
	cfg    Config
}

func NewDeepgram(apiKey string, cfg Config) *Deepgram {
	if cfg.Model == "" {
		cfg.Model = "nova-3"
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	return &Deepgram{apiKey: apiKey, cfg: cfg}
}

func (d *Deepgram) buildURL() (string, error) {
	endpoint, err := url.Parse(deepgramEndpoint)
	if err != nil {
		return "", err
	}
	q := endpoint.Query()
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(d.cfg.SampleRate))
	q.Set("channels", strconv.Itoa(d.cfg.Channels))
	q.Set("model", d.cfg.Model)
	q.Set("language", d.cfg.Language)
	q.Set("punctuate", strconv.FormatBool(d.cfg.Punctuate))
	q.Set("interim_results", strconv.FormatBool(d.cfg.InterimResults))
	q.Set("endpointing", strconv.Itoa(d.cfg.EndpointingMs))
	q.Set("smart_format", strconv.FormatBool(d.cfg.SmartFormat))
	endpoint.RawQuery = q.Encode()
	return endpoint.String(), nil
}

// Connect opens the duplex stream and starts the sender and receiver
// duties. The returned session stays usable across capture sessions until
// Close; Reset clears the transcript between captures.
func (d *Deepgram) Connect(ctx context.Context) (*Session, error) {
	if d.apiKey == "" {
		return nil, errors.New("DEEPGRAM_API_KEY not set")
	}

	wsURL, err := d.buildURL()
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+d.apiKey)

	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		cancel()
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("deepgram dial: %w", err)
	}

	return newSession(&deepgramStream{conn: conn, ctx: streamCtx, cancel: cancel}), nil
}

// deepgramResult is the inbound message shape of the /listen stream.
type deepgramResult struct {
	IsFinal bool `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// deepgramStream adapts the websocket to the streamConn contract.
type deepgramStream struct {
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
}

func (s *deepgramStream) Send(pcm []byte) error {
	return s.conn.Write(s.ctx, websocket.MessageBinary, pcm)
}

// KeepAlive writes an empty frame to hold the idle connection open.
func (s *deepgramStream) KeepAlive() error {
	return s.conn.Write(s.ctx, websocket.MessageBinary, nil)
}

func (s *deepgramStream) Recv() (Update, error) {
	_, data, err := s.conn.Read(s.ctx)
	if err != nil {
		return Update{}, err
	}

	var result deepgramResult
	if err := json.Unmarshal(data, &result); err != nil {
		// Non-result frames (metadata, etc.) are not an error.
		return Update{}, nil
	}
	transcript := ""
	if len(result.Channel.Alternatives) > 0 {
		transcript = result.Channel.Alternatives[0].Transcript
	}
	return Update{
		Transcript: strings.TrimSpace(transcript),
		IsFinal:    result.IsFinal,
	}, nil
}

func (s *deepgramStream) Close() error {
	s.cancel()
	return s.conn.Close(websocket.StatusNormalClosure, "")
}
