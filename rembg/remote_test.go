package rembg

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaos-io/nobg/apperr"
)

func newInferenceServer(t *testing.T, prob float32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v2/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /v2/models/rmbg/infer", func(w http.ResponseWriter, r *http.Request) {
		var req inferRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if len(req.Inputs) != 1 || req.Inputs[0].Name != InputName || len(req.Inputs[0].Data) != 3*planeSize {
			http.Error(w, "bad inputs", http.StatusBadRequest)
			return
		}
		data := make([]float32, planeSize)
		for i := range data {
			data[i] = prob
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(inferResponse{
			ModelName: "rmbg",
			Outputs: []inferTensor{{
				Name: "output", Shape: []int{1, 1, InputSize, InputSize}, Datatype: "FP32", Data: data,
			}},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRemoteEngine(t *testing.T) {
	srv := newInferenceServer(t, 1)
	s := NewSession(RemoteLoader(srv.URL+"/", nil), WithoutModelFile())
	require.NoError(t, s.Init(context.Background(), "rmbg"))

	mask, err := s.Infer(context.Background(), image.NewNRGBA(image.Rect(0, 0, 5, 3)))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 5, 3), mask.Bounds())
	assert.Equal(t, uint8(255), mask.GrayAt(2, 1).Y)
}

func TestRemoteEngine_UnknownModel(t *testing.T) {
	srv := newInferenceServer(t, 1)
	s := NewSession(RemoteLoader(srv.URL, nil), WithoutModelFile())
	require.NoError(t, s.Init(context.Background(), "other"))

	_, err := s.Infer(context.Background(), image.NewNRGBA(image.Rect(0, 0, 5, 3)))
	require.Error(t, err)
	assert.Equal(t, apperr.Inference, apperr.KindOf(err))
}

func TestRemoteEngine_NotReady(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := NewSession(RemoteLoader(srv.URL, nil), WithoutModelFile())
	err := s.Init(context.Background(), "rmbg")
	require.Error(t, err)
	assert.Equal(t, apperr.Inference, apperr.KindOf(err))
	assert.False(t, s.Ready())
}
