package antelope

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newChainServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chain/get_info", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{
			"server_version": "abc",
			"chain_id": "aca376f206b8fc25a6ed44dbdc66547c36c6c33e3a119ffbeaef943642f0e906",
			"head_block_num": 1000,
			"last_irreversible_block_num": 670,
			"head_block_time": "2024-01-01T00:00:00.000"
		}`)
	})
	mux.HandleFunc("/v1/chain/get_block", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			BlockNumOrID uint32 `json:"block_num_or_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.BlockNumOrID > 1000 {
			w.WriteHeader(http.StatusInternalServerError)
			io.WriteString(w, `{"code":500,"message":"unknown block"}`)
			return
		}
		io.WriteString(w, `{"id":"`+strings.Repeat("ab", 32)+`"}`)
	})
	mux.HandleFunc("/v1/chain/get_producers", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"rows":[
			{"owner":"alpha","url":"https://alpha.io","is_active":1,"location":840},
			{"owner":"beta","url":"","is_active":1,"location":0},
			{"owner":"gamma","url":"https://gamma.io","is_active":0,"location":0},
			{"owner":"delta","url":" https://delta.io ","is_active":true,"location":276}
		]}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestGetInfo(t *testing.T) {
	srv := newChainServer(t)
	c := NewClient(srv.URL, time.Second)

	info, err := c.GetInfo(context.Background())
	if err != nil {
		t.Fatalf("GetInfo failed: %v", err)
	}
	if info.HeadBlockNum != 1000 || info.LastIrreversibleBlockNum != 670 {
		t.Errorf("unexpected info: %+v", info)
	}
}

func TestGetBlockID(t *testing.T) {
	srv := newChainServer(t)
	c := NewClient(srv.URL, time.Second)

	id, err := c.GetBlockID(context.Background(), 980)
	if err != nil {
		t.Fatalf("GetBlockID failed: %v", err)
	}
	if len(id) != 64 {
		t.Errorf("id = %q", id)
	}

	if _, err := c.GetBlockID(context.Background(), 5000); err == nil {
		t.Error("expected error for unknown block")
	}
}

func TestGetProducers_FiltersInactiveAndURLless(t *testing.T) {
	srv := newChainServer(t)
	c := NewClient(srv.URL, time.Second)

	producers, err := c.GetProducers(context.Background(), 21)
	if err != nil {
		t.Fatalf("GetProducers failed: %v", err)
	}
	if len(producers) != 2 {
		t.Fatalf("expected 2 producers, got %d: %+v", len(producers), producers)
	}
	if producers[0].Owner != "alpha" || producers[0].Location != 840 {
		t.Errorf("unexpected first producer: %+v", producers[0])
	}
	if producers[1].URL != "https://delta.io" {
		t.Errorf("url not trimmed: %q", producers[1].URL)
	}
}

func TestMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html>not json</html>`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	if _, err := c.GetInfo(context.Background()); !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("GetInfo error = %v, want ErrMalformedResponse", err)
	}
	if _, err := c.GetProducers(context.Background(), 10); !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("GetProducers error = %v, want ErrMalformedResponse", err)
	}
}
