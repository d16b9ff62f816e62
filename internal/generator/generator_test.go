package generator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPGeneratorGenerateReturnsText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(generateResponse{Text: "hello world"})
	}))
	defer server.Close()

	g := NewHTTPGenerator(server.URL, "")
	text, err := g.Generate(context.Background(), "prompt", 100, 0.7)
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
}

func TestHTTPGeneratorStreamEmitsTokensThenDone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, _ := w.(http.Flusher)
		for _, chunk := range []string{"hel", "lo"} {
			data, _ := json.Marshal(generateResponse{Text: chunk})
			w.Write(data)
			w.Write([]byte("\n"))
			if flusher != nil {
				flusher.Flush()
			}
		}
	}))
	defer server.Close()

	g := NewHTTPGenerator(server.URL, "")
	ch, err := g.Stream(context.Background(), "prompt", 100, 0.7)
	require.NoError(t, err)

	var text string
	var sawDone bool
	for tok := range ch {
		if tok.Done {
			sawDone = true
			continue
		}
		require.NoError(t, tok.Err)
		text += tok.Text
	}
	assert.Equal(t, "hello", text)
	assert.True(t, sawDone)
}

func TestHTTPGeneratorStreamStopsOnCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, _ := w.(http.Flusher)
		for i := 0; i < 50; i++ {
			data, _ := json.Marshal(generateResponse{Text: "x"})
			w.Write(data)
			w.Write([]byte("\n"))
			if flusher != nil {
				flusher.Flush()
			}
			time.Sleep(5 * time.Millisecond)
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	g := NewHTTPGenerator(server.URL, "")
	ch, err := g.Stream(ctx, "prompt", 100, 0.7)
	require.NoError(t, err)

	<-ch
	cancel()

	require.Eventually(t, func() bool {
		_, ok := <-ch
		return !ok
	}, time.Second, 5*time.Millisecond)
}
